// Package emit is the Merge Emitter (C9): the Collect/Manifest/Produce
// pipeline that turns a priority-ordered, already-resolved set of packs
// into either a full-archive zip or an index-descriptor (.mrpack) zip.
//
// The outer archive writer is treated as a plain collaborator: Produce
// writes store-only zips directly with the standard library's
// archive/zip, the same way a installer writing already-compressed JARs
// avoids wasting CPU deflating them a second time.
package emit

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mmerge/modmerge/internal/console"
	"github.com/mmerge/modmerge/internal/fetch"
	"github.com/mmerge/modmerge/internal/metacache"
	"github.com/mmerge/modmerge/internal/model"
)

// Mode selects the Collect/Manifest/Produce output shape.
type Mode int

const (
	ModeFullArchive Mode = iota
	ModeIndexDescriptor
)

// Diagnostic is a non-fatal problem encountered while collecting one file;
// collection continues past it rather than aborting the whole emit.
type Diagnostic struct {
	Path    string
	Message string
}

// PackFiles pairs a pack with the files it contributed, in priority order
// — the same shape conflict.PackFiles uses, kept separate so emit doesn't
// have to import the resolver package just for this struct.
type PackFiles struct {
	Pack  *model.Pack
	Files []*model.FileRecord
}

// collected is one surviving file after the Collect phase.
type collected struct {
	path       string
	data       []byte // materialized bytes; nil for an index-mode remote pass-through
	isOverride bool    // index mode: write under overrides/<path>
	descriptor *model.IndexFile
}

// Collect walks packs in priority order and, within each, its enabled
// files in loader order, materializing or describing each unseen path
// exactly once. Remote bytes are served from cache when available;
// everything still missing after that first pass is resolved in one
// fetch.BatchFetch call, batchSize URLs in flight at a time, rather than
// one blocking fetch per file.
func Collect(packs []PackFiles, mode Mode, cache *metacache.Cache, batchSize int) ([]collected, []Diagnostic) {
	seen := map[string]bool{}
	var out []collected
	var diags []Diagnostic

	type pendingFetch struct {
		outIdx   int
		path     string
		url      string
		metadata *model.ModMetadata
	}
	var pendings []pendingFetch
	var jobs []fetch.Job

	for _, pf := range packs {
		for _, f := range pf.Files {
			if !f.Enabled || seen[f.Path] {
				continue
			}
			seen[f.Path] = true

			switch f.Origin.Kind {
			case model.OriginLocal:
				data, err := readLocal(pf.Pack, f)
				if err != nil {
					diags = append(diags, Diagnostic{Path: f.Path, Message: err.Error()})
					continue
				}
				if mode == ModeIndexDescriptor {
					out = append(out, collected{path: f.Path, data: data, isOverride: true})
				} else {
					out = append(out, collected{path: f.Path, data: data})
				}

			case model.OriginRemote:
				if mode == ModeIndexDescriptor {
					out = append(out, collected{path: f.Path, descriptor: remoteDescriptor(f)})
					continue
				}
				if len(f.Origin.URLs) == 0 {
					diags = append(diags, Diagnostic{Path: f.Path, Message: fmt.Sprintf("emit: remote file %s has no download urls", f.Path)})
					continue
				}
				url := f.Origin.URLs[0]

				if cache != nil {
					if _, raw, ok := cache.Get(url); ok && raw != nil {
						out = append(out, collected{path: f.Path, data: raw})
						continue
					}
				}

				out = append(out, collected{path: f.Path})
				pendings = append(pendings, pendingFetch{outIdx: len(out) - 1, path: f.Path, url: url, metadata: f.Metadata})
				jobs = append(jobs, fetch.Job{Key: url, URL: url})
			}
		}
	}

	if len(jobs) > 0 {
		results := fetch.BatchFetch(jobs, batchSize)
		failed := make(map[int]bool, len(pendings))
		for i, p := range pendings {
			res := results[i]
			if res.Err != nil {
				diags = append(diags, Diagnostic{Path: p.path, Message: fmt.Sprintf("emit: failed to fetch %s: %v", p.path, res.Err)})
				failed[p.outIdx] = true
				continue
			}
			out[p.outIdx].data = res.Data
			if cache != nil {
				_ = cache.Put(p.url, p.metadata, res.Data)
			}
		}
		if len(failed) > 0 {
			filtered := make([]collected, 0, len(out)-len(failed))
			for i, c := range out {
				if !failed[i] {
					filtered = append(filtered, c)
				}
			}
			out = filtered
		}
	}

	return out, diags
}

func readLocal(pack *model.Pack, f *model.FileRecord) ([]byte, error) {
	if pack == nil || pack.Archive == nil {
		return nil, fmt.Errorf("emit: pack %d has no open archive", f.PackID)
	}
	return pack.Archive.ReadBytes(f.Origin.EntryPath)
}

func remoteDescriptor(f *model.FileRecord) *model.IndexFile {
	if f.Origin.Descriptor != nil {
		return f.Origin.Descriptor
	}
	return &model.IndexFile{Path: f.Path, Downloads: f.Origin.URLs}
}

// ComposeManifest builds the modrinth.index.json descriptor for
// index-descriptor emits. Dependencies are copied from the head pack's
// own index when it was itself indexed, otherwise synthesized from its
// detected version/loader.
func ComposeManifest(head *model.Pack, items []collected, versionID, name string) ([]byte, error) {
	files := make([]model.IndexFile, 0, len(items))
	for _, c := range items {
		if c.descriptor != nil {
			files = append(files, *c.descriptor)
		}
	}

	deps := map[string]string{}
	if head.Type == model.PackIndexed && head.Index != nil {
		for k, v := range head.Index.Dependencies {
			deps[k] = v
		}
	} else {
		deps["minecraft"] = head.MinecraftVersion
		deps[string(head.Loader)] = "latest"
	}

	doc := struct {
		FormatVersion int               `json:"formatVersion"`
		Game          string            `json:"game"`
		VersionID     string            `json:"versionId"`
		Name          string            `json:"name"`
		Files         []model.IndexFile `json:"files"`
		Dependencies  map[string]string `json:"dependencies"`
	}{
		FormatVersion: 1,
		Game:          "minecraft",
		VersionID:     versionID,
		Name:          name,
		Files:         files,
		Dependencies:  deps,
	}

	return json.MarshalIndent(doc, "", "  ")
}

// Produce writes the final zip: store-only, since the payload is
// already-compressed JARs and deflating again wastes CPU for no size
// win, reporting a monotone percentage as it writes each entry. manifest
// is nil for a full-archive emit.
func Produce(items []collected, manifest []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	total := len(items)
	if manifest != nil {
		total++
	}

	writeStored := func(name string, data []byte) error {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	for i, c := range items {
		if c.data == nil {
			continue // index-mode remote pass-through: no bytes in the archive
		}
		path := c.path
		if c.isOverride {
			path = "overrides/" + path
		}
		if err := writeStored(path, c.data); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("emit: failed to write %s: %w", path, err)
		}
		console.Progress(pct(i+1, total), path)
	}

	if manifest != nil {
		if err := writeStored("modrinth.index.json", manifest); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("emit: failed to write manifest: %w", err)
		}
		console.Progress(100, "modrinth.index.json")
	}
	console.Done()

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("emit: failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func pct(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}
