// Package manifest is the Manifest Parser (C3): given an opened archive,
// extract a model.ModMetadata by trying, in order, the fabric-style JSON
// manifest, the forge-style mods.toml, and finally a synthetic fallback
// entry. No parse failure at any level is fatal to the caller — each
// returns a fallback ModMetadata plus a diagnostic.
package manifest

import (
	"fmt"
	"path"
	"regexp"

	"github.com/Jeffail/gabs"

	"github.com/mmerge/modmerge/internal/archive"
	"github.com/mmerge/modmerge/internal/model"
)

const maxRecursionDepth = 4

// ArchiveReader is the minimal surface Parse needs from an opened archive;
// satisfied by *archive.Reader.
type ArchiveReader interface {
	Has(path string) bool
	ReadBytes(path string) ([]byte, error)
}

// Diagnostic is a non-fatal parse failure surfaced to the caller's log
// sink; Parse always returns a usable ModMetadata alongside any Diagnostics.
type Diagnostic struct {
	Message  string
	Severity model.Severity
}

// Parse extracts a ModMetadata from archiveName's contents, trying the
// fabric manifest, then the forge manifest, then the fallback entry.
func Parse(ar ArchiveReader, archiveName string) (*model.ModMetadata, []Diagnostic) {
	return parseDepth(ar, archiveName, 0)
}

func parseDepth(ar ArchiveReader, archiveName string, depth int) (*model.ModMetadata, []Diagnostic) {
	if depth > maxRecursionDepth {
		return fallback(archiveName), []Diagnostic{{
			Message:  fmt.Sprintf("%s: nested archive recursion depth exceeded", archiveName),
			Severity: model.SeverityWarning,
		}}
	}

	var failures []Diagnostic
	if ar.Has("fabric.mod.json") {
		md, diags, ok := parseFabric(ar, archiveName, depth)
		if ok {
			return md, diags
		}
		failures = append(failures, diags...)
	}

	if ar.Has("META-INF/mods.toml") {
		md, diags, ok := parseForge(ar, archiveName)
		if ok {
			return md, diags
		}
		failures = append(failures, diags...)
	}

	return fallback(archiveName), failures
}

func fallback(archiveName string) *model.ModMetadata {
	return &model.ModMetadata{
		Mods: []model.ModEntry{{
			ID:      archiveName,
			Version: "unknown",
			Depends: map[string]string{},
		}},
	}
}

func parseFabric(ar ArchiveReader, archiveName string, depth int) (*model.ModMetadata, []Diagnostic, bool) {
	data, err := ar.ReadBytes("fabric.mod.json")
	if err != nil {
		return nil, []Diagnostic{{
			Message:  fmt.Sprintf("%s: failed to read fabric.mod.json: %v", archiveName, err),
			Severity: model.SeverityWarning,
		}}, false
	}

	parsed, err := gabs.ParseJSON(data)
	if err != nil {
		return nil, []Diagnostic{{
			Message:  fmt.Sprintf("%s: failed to parse fabric.mod.json: %v", archiveName, err),
			Severity: model.SeverityWarning,
		}}, false
	}

	primary := model.ModEntry{
		ID:      stringOr(parsed, "id", "unknown"),
		Version: stringOr(parsed, "version", "unknown"),
		Name:    stringOr(parsed, "name", ""),
		Depends: stringMap(parsed.Path("depends")),
		Provides: provides(parsed.Path("provides")),
	}

	md := &model.ModMetadata{Mods: []model.ModEntry{primary}}

	var diags []Diagnostic
	if jars, err := parsed.Path("jars").Children(); err == nil && jars != nil {
		for _, jarObj := range jars {
			inner := jarObj.Path("file").Data()
			innerPath, ok := inner.(string)
			if !ok || innerPath == "" {
				continue
			}
			innerBytes, err := ar.ReadBytes(innerPath)
			if err != nil {
				diags = append(diags, Diagnostic{
					Message:  fmt.Sprintf("%s: failed to read bundled jar %s: %v", archiveName, innerPath, err),
					Severity: model.SeverityWarning,
				})
				continue
			}

			innerAr, err := openNested(innerBytes)
			if err != nil {
				diags = append(diags, Diagnostic{
					Message:  fmt.Sprintf("%s: failed to open bundled jar %s: %v", archiveName, innerPath, err),
					Severity: model.SeverityWarning,
				})
				continue
			}

			innerMeta, innerDiags := parseDepth(innerAr, path.Base(innerPath), depth+1)
			diags = append(diags, innerDiags...)
			if innerMeta != nil && len(innerMeta.Mods) > 0 {
				md.Bundled = append(md.Bundled, innerMeta.Mods[0])
			}
		}
	}

	return md, diags, true
}

func openNested(data []byte) (ArchiveReader, error) {
	return archive.Open(data)
}

var modsTomlModID = regexp.MustCompile(`(?m)^\s*modId\s*=\s*"([^"]*)"`)
var modsTomlVersion = regexp.MustCompile(`(?m)^\s*version\s*=\s*"([^"]*)"`)
var dependencyBlock = regexp.MustCompile(`(?s)\[\[dependencies\.[^\]]+\]\]((?:[^\[]|\[[^\[])*)`)
var dependencyID = regexp.MustCompile(`(?m)^\s*modId\s*=\s*"([^"]*)"`)
var dependencyRange = regexp.MustCompile(`(?m)^\s*versionRange\s*=\s*"([^"]*)"`)
var dependencyMandatory = regexp.MustCompile(`(?m)^\s*mandatory\s*=\s*(true|false)`)

// parseForge extracts modId, version, and every mandatory
// [[dependencies.<id>]] block's versionRange from META-INF/mods.toml using
// targeted regexes rather than a full TOML parser: only these three
// shapes are ever consumed.
func parseForge(ar ArchiveReader, archiveName string) (*model.ModMetadata, []Diagnostic, bool) {
	data, err := ar.ReadBytes("META-INF/mods.toml")
	if err != nil {
		return nil, []Diagnostic{{
			Message:  fmt.Sprintf("%s: failed to read META-INF/mods.toml: %v", archiveName, err),
			Severity: model.SeverityWarning,
		}}, false
	}
	text := string(data)

	id := firstGroup(modsTomlModID, text, "unknown")
	ver := firstGroup(modsTomlVersion, text, "unknown")

	depends := map[string]string{}
	for _, block := range dependencyBlock.FindAllStringSubmatch(text, -1) {
		body := block[1]
		if !dependencyMandatory.MatchString(body) {
			continue
		}
		mandatoryMatch := dependencyMandatory.FindStringSubmatch(body)
		if len(mandatoryMatch) > 1 && mandatoryMatch[1] != "true" {
			continue
		}
		depID := firstGroup(dependencyID, body, "")
		depRange := firstGroup(dependencyRange, body, "*")
		if depID != "" {
			depends[depID] = depRange
		}
	}

	primary := model.ModEntry{ID: id, Version: ver, Depends: depends}
	return &model.ModMetadata{Mods: []model.ModEntry{primary}}, nil, true
}

func firstGroup(re *regexp.Regexp, text, def string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return def
	}
	return m[1]
}

func stringOr(c *gabs.Container, key, def string) string {
	v := c.Path(key).Data()
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

// stringMap reads a JSON object of string values into a Go map, defaulting
// to an empty map when depends is absent or malformed.
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

// provides normalizes the "provides" field, which upstream manifests
// write inconsistently as either a JSON array or a JSON object — only
// the identifiers (array elements, or object keys) are kept; any object
// values are discarded.
func provides(c *gabs.Container) []string {
	if c == nil {
		return nil
	}

	if _, isArray := c.Data().([]interface{}); isArray {
		arr, _ := c.Children()
		out := make([]string, 0, len(arr))
		for _, el := range arr {
			if s, ok := el.Data().(string); ok {
				out = append(out, s)
			}
		}
		return out
	}

	if m, err := c.ChildrenMap(); err == nil && m != nil {
		out := make([]string, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		return out
	}

	return nil
}

