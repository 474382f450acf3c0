// Package depcheck is the Dependency Validator (C8): given the enabled
// files surviving conflict resolution, build a presence index of every
// discovered mod id and flag each primary entry's declared dependency
// as missing or outdated. Pure and synchronous — no I/O.
package depcheck

import (
	"sort"
	"strings"

	"github.com/mmerge/modmerge/internal/depgraph"
	"github.com/mmerge/modmerge/internal/model"
	"github.com/mmerge/modmerge/internal/version"
)

// platformIDs are runtime/loader identifiers a dependency may name that
// are never reported missing/outdated — they're satisfied by the
// environment itself, not by another mod in the merged set.
var platformIDs = map[string]struct{}{
	"minecraft":     {},
	"java":          {},
	"fabricloader":  {},
	"fabric":        {},
	"quiltloader":   {},
	"forge":         {},
	"neoforge":      {},
	"liteloader":    {},
	"mixinextras":   {},
	"mixinextra":    {},
	"mixins":        {},
	"cloth-config":  {},
	"cloth-config2": {},
}

func isPlatform(id string) bool {
	_, ok := platformIDs[strings.ToLower(id)]
	return ok
}

// presence is one entry in the presence index: the version discovered
// and the file name it came from.
type presence struct {
	version string
	source  string
}

// buildPresence indexes every ModEntry (primary and bundled) across the
// enabled files, then layers in provides aliases — but only where no
// real entry already claims that id: a real entry always beats a
// provided alias.
func buildPresence(files []*model.FileRecord) map[string]presence {
	real := make(map[string]presence)
	aliases := make(map[string]presence)

	for _, f := range files {
		if !f.Enabled || f.Metadata == nil {
			continue
		}
		entries := make([]model.ModEntry, 0, 1+len(f.Metadata.Bundled))
		entries = append(entries, f.Metadata.Mods...)
		entries = append(entries, f.Metadata.Bundled...)

		for _, m := range entries {
			if m.ID == "" {
				continue
			}
			if _, ok := real[m.ID]; !ok {
				real[m.ID] = presence{version: m.Version, source: f.FileName}
			}
			for _, alias := range m.Provides {
				if _, ok := aliases[alias]; !ok {
					aliases[alias] = presence{version: m.Version, source: f.FileName}
				}
			}
		}
	}

	for id, p := range aliases {
		if _, ok := real[id]; !ok {
			real[id] = p
		}
	}

	return real
}

// Validate runs the Dependency Validator over files (already narrowed to
// the enabled set by the Conflict Resolver). Issues come back in a
// deterministic order: primary mod ids walked via internal/depgraph's
// topological sort, then each primary's own dependency ids sorted.
func Validate(files []*model.FileRecord) []model.DependencyIssue {
	presenceIdx := buildPresence(files)

	g := depgraph.New()
	type primaryInfo struct {
		entry    *model.ModEntry
		fileName string
	}
	primaries := make(map[string]primaryInfo)

	for _, f := range files {
		if !f.Enabled || f.Metadata == nil {
			continue
		}
		primary := f.Metadata.Primary()
		if primary == nil || primary.ID == "" {
			continue
		}
		primaries[primary.ID] = primaryInfo{entry: primary, fileName: f.FileName}
		g.AddNode(primary.ID)
		for depID := range primary.Depends {
			if isPlatform(depID) {
				continue
			}
			g.AddDependency(primary.ID, depID)
		}
	}

	var issues []model.DependencyIssue
	for _, id := range g.Cyclic() {
		if _, ok := primaries[id]; !ok {
			continue
		}
		issues = append(issues, model.DependencyIssue{
			Kind:    model.DependencyCycle,
			ModID:   id,
			Message: id + " is part of, or a dependency of, a dependency cycle; its declared dependencies were still checked, but the cycle itself must be broken manually",
		})
	}

	for _, node := range g.Sorted() {
		info, ok := primaries[node.ID]
		if !ok {
			continue
		}

		depIDs := make([]string, 0, len(info.entry.Depends))
		for depID := range info.entry.Depends {
			depIDs = append(depIDs, depID)
		}
		sort.Strings(depIDs)

		for _, depID := range depIDs {
			if isPlatform(depID) {
				continue
			}
			wantRange := info.entry.Depends[depID]

			p, found := presenceIdx[depID]
			if !found {
				issues = append(issues, model.DependencyIssue{
					Kind:          model.DependencyMissing,
					ModID:         depID,
					RequiredBy:    info.entry.ID,
					RequiredRange: wantRange,
				})
				continue
			}
			if !version.Satisfies(p.version, wantRange) {
				issues = append(issues, model.DependencyIssue{
					Kind:           model.DependencyOutdated,
					ModID:          depID,
					RequiredBy:     info.entry.ID,
					RequiredRange:  wantRange,
					PresentVersion: p.version,
				})
			}
		}
	}

	return issues
}
