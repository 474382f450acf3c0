// Package conflict is the Conflict Resolver (C6): given the enriched file
// list and the priority-ordered pack list, mark each file kept or
// excluded with a reason. Pure and synchronous — no I/O here.
//
// The resolver runs in two modes over the same algorithm: a cheap
// Priority pass with no metadata required, and a Rich pass that
// additionally consults each file's parsed ModMetadata. Both walk packs
// in their current order and, within a pack, files in the order the
// loader produced them — first seen wins.
package conflict

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mmerge/modmerge/internal/model"
	"github.com/mmerge/modmerge/internal/version"
)

// PackFiles pairs a pack with the files it contributed, in loader order.
type PackFiles struct {
	Pack  *model.Pack
	Files []*model.FileRecord
}

// registeredVersion tracks, for a given mod id, the version + pack name
// that currently "owns" that id within the walk.
type registeredVersion struct {
	version string
	pack    string
}

// Resolve runs the priority-ordered greedy assignment over packs (in the
// order given — callers must pass packs already in pack-list order) and
// mutates each FileRecord's Enabled/IsDuplicate/KeptSource/ConflictReason
// in place. It also returns the Conflict diagnostics produced along the
// way.
func Resolve(packs []PackFiles) []model.Conflict {
	seenPaths := map[string]string{} // path -> pack name that kept it
	modRegistry := map[string]registeredVersion{}
	slugRegistry := map[string]string{} // slug -> file name that owns it
	slugPacks := map[string]string{}    // slug -> pack name that owns it

	var conflicts []model.Conflict

	for _, pf := range packs {
		for _, f := range pf.Files {
			f.Enabled = true
			f.IsDuplicate = false
			f.ConflictReason = ""
			f.KeptSource = ""

			// Exact path duplicate check always applies.
			if ownerName, ok := seenPaths[f.Path]; ok {
				f.Enabled = false
				f.IsDuplicate = true
				f.ConflictReason = "exact path duplicate"
				f.KeptSource = ownerName
				conflicts = append(conflicts, model.Conflict{
					Kind:          model.ConflictDuplicate,
					OtherFileName: ownerName,
				})
				continue
			}

			if f.Metadata != nil && len(f.Metadata.Mods) > 0 {
				primary := f.Metadata.Mods[0]
				if reg, ok := modRegistry[primary.ID]; ok && version.Compare(version.Parse(reg.version), version.Parse(primary.Version)) > 0 {
					f.Enabled = false
					f.IsDuplicate = true
					f.ConflictReason = fmt.Sprintf("Older version (Mod ID: %s)", primary.ID)
					f.KeptSource = reg.pack
					conflicts = append(conflicts, model.Conflict{
						Kind:          model.ConflictVersion,
						ModID:         primary.ID,
						ThisVersion:   primary.Version,
						OtherVersion:  reg.version,
						OtherFileName: reg.pack,
						Resolution:    model.ResolutionKeepOther,
					})
					continue
				}
				if _, ok := modRegistry[primary.ID]; !ok {
					modRegistry[primary.ID] = registeredVersion{version: primary.Version, pack: pf.Pack.Name}
				}
			} else if f.Category == model.CategoryMods {
				slug := slugOf(f.FileName)
				if owner, ok := slugRegistry[slug]; ok {
					f.Enabled = false
					f.IsDuplicate = true
					f.ConflictReason = fmt.Sprintf("Possible duplicate of %s", owner)
					f.KeptSource = slugPacks[slug]
					conflicts = append(conflicts, model.Conflict{
						Kind:          model.ConflictDuplicate,
						OtherFileName: owner,
					})
					continue
				}
				slugRegistry[slug] = f.FileName
				slugPacks[slug] = pf.Pack.Name
			}

			// File survives; register its path as owned.
			seenPaths[f.Path] = pf.Pack.Name
		}
	}

	return conflicts
}

var slugVersionSuffix = regexp.MustCompile(`[-+](v?\d)`)

// slugOf derives a human-comparable slug from a mods-category filename:
// drop a trailing ".jar", strip from the first "[-+](digit|v-digit)"
// onward, lowercase, trim.
func slugOf(fileName string) string {
	name := strings.TrimSuffix(fileName, ".jar")
	if loc := slugVersionSuffix.FindStringIndex(name); loc != nil {
		name = name[:loc[0]]
	}
	return strings.ToLower(strings.TrimSpace(name))
}
