// Package loader is the Pack Loader (C4): given an opened zip, classify
// it as indexed or standard, enumerate its file records, and detect its
// Minecraft version and mod loader.
package loader

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Jeffail/gabs"

	"github.com/mmerge/modmerge/internal/model"
)

// Diagnostic mirrors manifest.Diagnostic — a non-fatal warning surfaced
// to the caller's log sink.
type Diagnostic struct {
	Message  string
	Severity model.Severity
}

// Load classifies ar as indexed or standard and produces the pack's file
// records plus its detected minecraft version/loader. name is the pack's
// display name; head, if non-nil, is the already-loaded pack at index 0,
// consulted for inheritance when a standard pack can't detect its own
// version/loader.
func Load(ar model.ArchiveReader, name string, head *model.Pack) (*model.Pack, []model.FileRecord, []Diagnostic) {
	if ar.Has("modrinth.index.json") {
		return loadIndexed(ar, name)
	}
	return loadStandard(ar, name, head)
}

// --- Indexed packs -----------------------------------------------------

func loadIndexed(ar model.ArchiveReader, name string) (*model.Pack, []model.FileRecord, []Diagnostic) {
	var diags []Diagnostic

	data, err := ar.ReadBytes("modrinth.index.json")
	if err != nil {
		diags = append(diags, Diagnostic{
			Message:  fmt.Sprintf("%s: failed to read modrinth.index.json: %v", name, err),
			Severity: model.SeverityDanger,
		})
		return nil, nil, diags
	}

	parsed, err := gabs.ParseJSON(data)
	if err != nil {
		diags = append(diags, Diagnostic{
			Message:  fmt.Sprintf("%s: failed to parse modrinth.index.json: %v", name, err),
			Severity: model.SeverityDanger,
		})
		return nil, nil, diags
	}

	index := &model.PackIndex{
		FormatVersion: intOr(parsed, "formatVersion", 1),
		Game:          stringOr(parsed, "game", "minecraft"),
		VersionID:     stringOr(parsed, "versionId", ""),
		Name:          stringOr(parsed, "name", name),
		Dependencies:  stringMap(parsed.Path("dependencies")),
	}

	pack := &model.Pack{
		Name:             name,
		Type:             model.PackIndexed,
		Archive:          ar,
		Index:            index,
		MinecraftVersion: index.Dependencies["minecraft"],
		Loader:           detectLoaderFromDependencyKeys(index.Dependencies),
	}

	var files []model.FileRecord

	if fileObjs, err := parsed.Path("files").Children(); err == nil {
		for _, fo := range fileObjs {
			path := stringOr(fo, "path", "")
			if path == "" {
				continue
			}
			downloads := stringSlice(fo.Path("downloads"))
			if len(downloads) == 0 {
				continue
			}

			indexFile := model.IndexFile{
				Path:      path,
				Downloads: downloads,
				Hashes:    stringMap(fo.Path("hashes")),
				FileSize:  int64(intOr(fo, "fileSize", 0)),
				Env:       stringMap(fo.Path("env")),
			}
			index.Files = append(index.Files, indexFile)

			files = append(files, model.FileRecord{
				Path:     path,
				FileName: baseName(path),
				Category: model.CategoryMods,
				Enabled:  true,
				Origin: model.Origin{
					Kind:       model.OriginRemote,
					URLs:       downloads,
					Descriptor: &index.Files[len(index.Files)-1],
				},
			})
		}
	}

	const overridesPrefix = "overrides/"
	for _, entry := range ar.Entries() {
		if strings.HasSuffix(entry, "/") || !strings.HasPrefix(entry, overridesPrefix) {
			continue
		}
		relPath := strings.TrimPrefix(entry, overridesPrefix)
		if relPath == "" {
			continue
		}

		files = append(files, model.FileRecord{
			Path:     relPath,
			FileName: baseName(relPath),
			Category: classify(relPath),
			Enabled:  true,
			Origin:   model.Origin{Kind: model.OriginLocal, EntryPath: entry},
		})
	}

	return pack, files, diags
}

// loaderDependencyPriority is scanned in order against an index's
// dependency keys: fabric, forge (unless a neoforge key is also
// present), neoforge, quilt, liteloader; default fabric.
var loaderDependencyPriority = []struct {
	substr string
	loader model.Loader
}{
	{"fabric", model.LoaderFabric},
	{"forge", model.LoaderForge}, // skipped below when neoforge is also present
	{"neoforge", model.LoaderNeoForge},
	{"quilt", model.LoaderQuilt},
	{"liteloader", model.LoaderLiteLoader},
}

// detectLoaderFromDependencyKeys walks loaderDependencyPriority in order,
// returning the first matching loader; a "forge" match is skipped in
// favor of "neoforge" when both are present, since NeoForge's own
// dependency key still contains "forge" as a substring.
func detectLoaderFromDependencyKeys(deps map[string]string) model.Loader {
	keys := make([]string, 0, len(deps))
	for k := range deps {
		keys = append(keys, strings.ToLower(k))
	}

	has := func(substr string) bool {
		for _, k := range keys {
			if strings.Contains(k, substr) {
				return true
			}
		}
		return false
	}

	for _, cand := range loaderDependencyPriority {
		if cand.loader == model.LoaderForge && has("neoforge") {
			continue
		}
		if has(cand.substr) {
			return cand.loader
		}
	}
	return model.LoaderFabric
}

// --- Standard packs ------------------------------------------------------

var instanceCfgVersion = regexp.MustCompile(`(?m)^IntendedVersion=(.+)$`)

func loadStandard(ar model.ArchiveReader, name string, head *model.Pack) (*model.Pack, []model.FileRecord, []Diagnostic) {
	var diags []Diagnostic
	var files []model.FileRecord

	for _, entry := range ar.Entries() {
		if strings.HasSuffix(entry, "/") {
			continue
		}
		files = append(files, model.FileRecord{
			Path:     entry,
			FileName: baseName(entry),
			Category: classify(entry),
			Enabled:  true,
			Origin:   model.Origin{Kind: model.OriginLocal, EntryPath: entry},
		})
	}

	mcVersion, loaderID, ok := detectCurseForgeManifest(ar)
	if !ok {
		mcVersion, loaderID, ok = detectInstanceCfg(ar)
	}
	if !ok {
		mcVersion, loaderID = detectFromModFilenames(files)
		ok = mcVersion != "" || loaderID != model.LoaderUnknown
	}

	if mcVersion == "" || loaderID == model.LoaderUnknown || loaderID == "" {
		if head != nil {
			if mcVersion == "" {
				mcVersion = head.MinecraftVersion
			}
			if loaderID == model.LoaderUnknown || loaderID == "" {
				loaderID = head.Loader
			}
		} else {
			if mcVersion == "" {
				mcVersion = "1.20.1"
				diags = append(diags, Diagnostic{
					Message:  fmt.Sprintf("%s: could not detect a Minecraft version, defaulting to %s", name, mcVersion),
					Severity: model.SeverityWarning,
				})
			}
			if loaderID == model.LoaderUnknown || loaderID == "" {
				loaderID = model.LoaderFabric
				diags = append(diags, Diagnostic{
					Message:  fmt.Sprintf("%s: could not detect a mod loader, defaulting to %s", name, loaderID),
					Severity: model.SeverityWarning,
				})
			}
		}
	}

	pack := &model.Pack{
		Name:             name,
		Type:             model.PackStandard,
		Archive:          ar,
		MinecraftVersion: mcVersion,
		Loader:           loaderID,
	}

	return pack, files, diags
}

// detectCurseForgeManifest reads manifest.json's minecraft.version and the
// first minecraft.modLoaders[].id, taking the prefix before the first '-'.
func detectCurseForgeManifest(ar model.ArchiveReader) (string, model.Loader, bool) {
	if !ar.Has("manifest.json") {
		return "", "", false
	}

	data, err := ar.ReadBytes("manifest.json")
	if err != nil {
		return "", "", false
	}

	parsed, err := gabs.ParseJSON(data)
	if err != nil {
		return "", "", false
	}

	mcVersion, ok := parsed.Path("minecraft.version").Data().(string)
	if !ok {
		return "", "", false
	}

	loaders, err := parsed.Path("minecraft.modLoaders").Children()
	if err != nil || len(loaders) == 0 {
		return mcVersion, "", true
	}

	id, _ := loaders[0].Path("id").Data().(string)
	loaderName := id
	if i := strings.Index(id, "-"); i >= 0 {
		loaderName = id[:i]
	}

	return mcVersion, model.Loader(strings.ToLower(loaderName)), true
}

// detectInstanceCfg reads MultiMC/Prism's instance.cfg: IntendedVersion=
// for the Minecraft version, and the LWJGL-gated Fabric/Forge heuristic
// for the loader.
func detectInstanceCfg(ar model.ArchiveReader) (string, model.Loader, bool) {
	if !ar.Has("instance.cfg") {
		return "", "", false
	}

	content, err := ar.ReadString("instance.cfg")
	if err != nil {
		return "", "", false
	}

	m := instanceCfgVersion.FindStringSubmatch(content)
	if m == nil {
		return "", "", false
	}
	mcVersion := strings.TrimSpace(m[1])

	var loader model.Loader
	if strings.Contains(content, "LWJGL") {
		if strings.Contains(content, "Fabric") {
			loader = model.LoaderFabric
		} else {
			loader = model.LoaderForge
		}
	}

	return mcVersion, loader, true
}

var mcVersionInFilename = regexp.MustCompile(`1\.\d+(\.\d+)?`)

var loaderSubstrings = []model.Loader{
	model.LoaderFabric, model.LoaderForge, model.LoaderQuilt,
	model.LoaderNeoForge, model.LoaderLiteLoader,
}

// detectFromModFilenames scans filenames under any mods/ directory for a
// "1.X"/"1.X.Y" version substring and a case-insensitive loader-name
// substring (or ".litemod" -> liteloader), first hit wins for each.
func detectFromModFilenames(files []model.FileRecord) (string, model.Loader) {
	var mcVersion string
	var loader model.Loader

	for _, f := range files {
		if !strings.Contains(f.Path, "mods/") {
			continue
		}
		lower := strings.ToLower(f.FileName)

		if mcVersion == "" {
			if m := mcVersionInFilename.FindString(f.FileName); m != "" {
				mcVersion = m
			}
		}

		if loader == "" {
			if strings.HasSuffix(lower, ".litemod") {
				loader = model.LoaderLiteLoader
			} else {
				for _, l := range loaderSubstrings {
					if strings.Contains(lower, string(l)) {
						loader = l
						break
					}
				}
			}
		}

		if mcVersion != "" && loader != "" {
			break
		}
	}

	return mcVersion, loader
}

// classify assigns a file's category from its target path.
func classify(p string) model.Category {
	switch {
	case strings.HasPrefix(p, "mods/"):
		return model.CategoryMods
	case strings.HasPrefix(p, "resourcepacks/"):
		return model.CategoryResourcePacks
	case strings.HasPrefix(p, "shaderpacks/"):
		return model.CategoryShaderPacks
	case strings.HasPrefix(p, "config/"), strings.HasPrefix(p, "scripts/"):
		return model.CategoryConfigs
	default:
		return model.CategoryOthers
	}
}

func baseName(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func stringOr(c *gabs.Container, key, def string) string {
	if v, ok := c.Path(key).Data().(string); ok && v != "" {
		return v
	}
	return def
}

func intOr(c *gabs.Container, key string, def int) int {
	switch v := c.Path(key).Data().(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func stringMap(c *gabs.Container) map[string]string {
	out := map[string]string{}
	if c == nil {
		return out
	}
	m, err := c.ChildrenMap()
	if err != nil {
		return out
	}
	for k, v := range m {
		if s, ok := v.Data().(string); ok {
			out[k] = s
		}
	}
	return out
}

func stringSlice(c *gabs.Container) []string {
	if c == nil {
		return nil
	}
	arr, err := c.Children()
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		if s, ok := el.Data().(string); ok {
			out = append(out, s)
		}
	}
	return out
}
