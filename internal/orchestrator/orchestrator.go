// Package orchestrator is the Orchestrator (C10): the single logical
// actor that owns pack order, triggers quick/deep analysis on every
// state-changing event, and drives the Merge Emitter. Built around the
// same "one mutation in, one analysis out" command-dispatch idiom a CLI
// verb table naturally falls into.
package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/mmerge/modmerge/internal/archive"
	"github.com/mmerge/modmerge/internal/compat"
	"github.com/mmerge/modmerge/internal/conflict"
	"github.com/mmerge/modmerge/internal/config"
	"github.com/mmerge/modmerge/internal/console"
	"github.com/mmerge/modmerge/internal/depcheck"
	"github.com/mmerge/modmerge/internal/emit"
	"github.com/mmerge/modmerge/internal/fetch"
	"github.com/mmerge/modmerge/internal/loader"
	"github.com/mmerge/modmerge/internal/manifest"
	"github.com/mmerge/modmerge/internal/metacache"
	"github.com/mmerge/modmerge/internal/model"
)

// packEntry is one loaded pack plus the file records it contributed.
type packEntry struct {
	pack  *model.Pack
	files []*model.FileRecord
}

// Orchestrator holds every pack currently loaded, in priority order
// (index 0 is the head pack), and the last analysis results.
type Orchestrator struct {
	cfg   config.Config
	cache *metacache.Cache

	packs  []*packEntry
	nextID model.PackID

	deepAnalysisPerformed bool
	analysisInProgress    bool

	Conflicts    []model.Conflict
	CompatIssues []model.CompatibilityIssue
	DepIssues    []model.DependencyIssue
}

// New builds an orchestrator with its own session-scoped metadata cache.
func New(cfg config.Config) (*Orchestrator, error) {
	cache, err := metacache.Open()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: failed to open metadata cache: %w", err)
	}
	return &Orchestrator{cfg: cfg, cache: cache, nextID: 1}, nil
}

// Close releases the session's metadata cache.
func (o *Orchestrator) Close() error {
	return o.cache.Close()
}

// Packs returns the current pack list in priority order.
func (o *Orchestrator) Packs() []*model.Pack {
	out := make([]*model.Pack, len(o.packs))
	for i, pe := range o.packs {
		out[i] = pe.pack
	}
	return out
}

func (o *Orchestrator) head() *model.Pack {
	if len(o.packs) == 0 {
		return nil
	}
	return o.packs[0].pack
}

// LoadPack handles the LoadPack event: opens data as a zip, classifies
// and loads it against the current head, appends it, and runs quick
// analysis. Loading a pack whose name matches one already loaded is a
// soft-skip with a warning, not an error.
func (o *Orchestrator) LoadPack(name string, data []byte) error {
	for _, pe := range o.packs {
		if pe.pack.Name == name {
			console.Log(model.SeverityWarning, "%s: a pack with this name is already loaded, skipping", name)
			return nil
		}
	}

	ar, err := archive.Open(data)
	if err != nil {
		return fmt.Errorf("orchestrator: failed to open %s: %w", name, err)
	}

	pack, files, diags := loader.Load(ar, name, o.head())
	for _, d := range diags {
		console.Log(d.Severity, "%s: %s", name, d.Message)
	}
	if pack == nil {
		return fmt.Errorf("orchestrator: %s was rejected by the loader", name)
	}

	pack.Archive = ar
	pack.ID = o.nextID
	pack.LoadedAt = time.Now()
	o.nextID++

	recs := make([]*model.FileRecord, len(files))
	for i := range files {
		files[i].PackID = pack.ID
		recs[i] = &files[i]
	}

	o.packs = append(o.packs, &packEntry{pack: pack, files: recs})
	o.onStateChange()
	return nil
}

// RemovePack handles the RemovePack event: drops exactly the pack with
// the given id and nothing else — the files it contributed and no
// others.
func (o *Orchestrator) RemovePack(id model.PackID) error {
	for i, pe := range o.packs {
		if pe.pack.ID == id {
			o.packs = append(o.packs[:i], o.packs[i+1:]...)
			o.onStateChange()
			return nil
		}
	}
	return fmt.Errorf("orchestrator: no loaded pack with id %d", id)
}

// Reorder handles Reorder(i, dir): swaps the pack at index i with its
// neighbor dir steps away (dir is -1 or +1). Moving the head pack (index
// 0) changes which pack subsequent compatibility checks compare against.
func (o *Orchestrator) Reorder(i, dir int) error {
	j := i + dir
	if i < 0 || i >= len(o.packs) || j < 0 || j >= len(o.packs) {
		return fmt.Errorf("orchestrator: reorder index out of range (i=%d dir=%d len=%d)", i, dir, len(o.packs))
	}
	o.packs[i], o.packs[j] = o.packs[j], o.packs[i]
	o.onStateChange()
	return nil
}

// EditHeadLoaderOrVersion handles EditHeadLoaderOrVersion: overrides the
// head pack's detected minecraft version and/or loader (empty values
// leave the current field unchanged) and re-runs quick analysis, since
// every other pack's compatibility is judged against the head. Only a
// standard head pack can be edited.
func (o *Orchestrator) EditHeadLoaderOrVersion(mcVersion string, ldr model.Loader) error {
	h := o.head()
	if h == nil {
		return fmt.Errorf("orchestrator: no head pack loaded")
	}
	if h.Type != model.PackStandard {
		return fmt.Errorf("orchestrator: head pack %s is %s; only standard packs can be edited", h.Name, h.Type)
	}
	if mcVersion != "" {
		h.MinecraftVersion = mcVersion
	}
	if ldr != "" {
		h.Loader = ldr
	}
	o.onStateChange()
	return nil
}

// onStateChange implements the rule shared by every mutating event:
// every state-changing event resets deepAnalysisPerformed to false and
// triggers a quick analysis.
func (o *Orchestrator) onStateChange() {
	o.deepAnalysisPerformed = false
	o.RequestQuickAnalysis()
}

// RequestQuickAnalysis runs the cheap pass: conflict resolution without
// requiring any parsed metadata, plus the compatibility validator.
func (o *Orchestrator) RequestQuickAnalysis() {
	o.Conflicts = conflict.Resolve(o.conflictInput())
	o.CompatIssues = compat.Validate(o.head(), o.others())
}

// RequestDeepAnalysis handles RequestDeepAnalysis: parses manifests for
// every mods-category file still missing metadata in bounded-batch
// concurrency, re-runs the rich conflict pass now that metadata is
// available, and runs the dependency validator. Refuses to start while
// any compatibility issue is outstanding.
func (o *Orchestrator) RequestDeepAnalysis() error {
	if len(o.CompatIssues) > 0 {
		return fmt.Errorf("orchestrator: deep analysis blocked by %d compatibility issue(s)", len(o.CompatIssues))
	}
	if o.analysisInProgress {
		return fmt.Errorf("orchestrator: analysis already in progress")
	}
	o.analysisInProgress = true
	defer func() { o.analysisInProgress = false }()

	o.parseMissingMetadata()

	o.Conflicts = conflict.Resolve(o.conflictInput())
	if len(o.CompatIssues) > 0 {
		return fmt.Errorf("orchestrator: deep analysis blocked by %d compatibility issue(s)", len(o.CompatIssues))
	}

	var allFiles []*model.FileRecord
	for _, pe := range o.packs {
		allFiles = append(allFiles, pe.files...)
	}
	o.DepIssues = depcheck.Validate(allFiles)
	o.deepAnalysisPerformed = true
	return nil
}

// metadataJob is one enabled mods-category file still missing metadata,
// paired with the pack it belongs to.
type metadataJob struct {
	pack *model.Pack
	file *model.FileRecord
}

// parseMissingMetadata fills in ModMetadata for every enabled
// mods-category file that doesn't have it yet. Remote bytes for every
// job in the set are resolved up front through a single fetch.BatchFetch
// call, then parsing itself runs in fixed-size concurrent batches,
// awaiting each batch before dispatching the next.
func (o *Orchestrator) parseMissingMetadata() {
	var jobs []metadataJob
	for _, pe := range o.packs {
		for _, f := range pe.files {
			if f.Enabled && f.Category == model.CategoryMods && f.Metadata == nil {
				jobs = append(jobs, metadataJob{pack: pe.pack, file: f})
			}
		}
	}

	batchSize := o.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	fetched := o.fetchRemoteJars(jobs, batchSize)

	for start := 0; start < len(jobs); start += batchSize {
		end := start + batchSize
		if end > len(jobs) {
			end = len(jobs)
		}

		var wg sync.WaitGroup
		for k := start; k < end; k++ {
			wg.Add(1)
			go func(j metadataJob) {
				defer wg.Done()
				o.parseOne(j.pack, j.file, fetched)
			}(jobs[k])
		}
		wg.Wait()
	}
}

// fetchRemoteJars resolves every remote job's bytes through a single
// fetch.BatchFetch call, skipping cache hits and jobs with no url, so
// the network side of a deep analysis round-trips batchSize URLs at a
// time instead of one fetch per parseOne call.
func (o *Orchestrator) fetchRemoteJars(jobs []metadataJob, batchSize int) map[string][]byte {
	var fetchJobs []fetch.Job
	for _, j := range jobs {
		if j.file.Origin.Kind != model.OriginRemote || len(j.file.Origin.URLs) == 0 {
			continue
		}
		key := j.file.Origin.URLs[0]
		if _, _, ok := o.cache.Get(key); ok {
			continue
		}
		fetchJobs = append(fetchJobs, fetch.Job{Key: key, URL: key})
	}
	if len(fetchJobs) == 0 {
		return nil
	}

	fetched := make(map[string][]byte, len(fetchJobs))
	for _, res := range fetch.BatchFetch(fetchJobs, batchSize) {
		if res.Err != nil {
			console.Log(model.SeverityWarning, "%s: %v", res.Key, res.Err)
			continue
		}
		fetched[res.Key] = res.Data
	}
	return fetched
}

func (o *Orchestrator) parseOne(pack *model.Pack, f *model.FileRecord, fetched map[string][]byte) {
	var key string
	switch f.Origin.Kind {
	case model.OriginLocal:
		key = metacache.LocalKey(pack.ID, f.Path)
	case model.OriginRemote:
		if len(f.Origin.URLs) == 0 {
			return
		}
		key = f.Origin.URLs[0]
	}

	if md, raw, ok := o.cache.Get(key); ok {
		f.Metadata = md
		_ = raw
		return
	}

	var data []byte
	var err error
	switch f.Origin.Kind {
	case model.OriginLocal:
		data, err = pack.Archive.ReadBytes(f.Origin.EntryPath)
	case model.OriginRemote:
		b, ok := fetched[key]
		if !ok {
			console.Log(model.SeverityWarning, "%s: fetch failed, skipping", f.FileName)
			return
		}
		data = b
	}
	if err != nil {
		console.Log(model.SeverityWarning, "%s: %v", f.FileName, err)
		return
	}

	ar, err := archive.Open(data)
	if err != nil {
		console.Log(model.SeverityWarning, "%s: not a readable jar: %v", f.FileName, err)
		return
	}

	md, diags := manifest.Parse(ar, f.FileName)
	for _, d := range diags {
		console.Log(d.Severity, "%s: %s", f.FileName, d.Message)
	}
	f.Metadata = md
	_ = o.cache.Put(key, md, data)
}

func (o *Orchestrator) conflictInput() []conflict.PackFiles {
	pf := make([]conflict.PackFiles, len(o.packs))
	for i, pe := range o.packs {
		pf[i] = conflict.PackFiles{Pack: pe.pack, Files: pe.files}
	}
	return pf
}

func (o *Orchestrator) others() []*model.Pack {
	if len(o.packs) < 2 {
		return nil
	}
	out := make([]*model.Pack, 0, len(o.packs)-1)
	for _, pe := range o.packs[1:] {
		out = append(out, pe.pack)
	}
	return out
}

// RequestEmit handles RequestEmit(mode): refuses while compatibility
// issues are outstanding, otherwise runs the Collect/Manifest/Produce
// pipeline and returns the final zip bytes.
func (o *Orchestrator) RequestEmit(mode emit.Mode, versionID, name string) ([]byte, error) {
	if len(o.CompatIssues) > 0 {
		return nil, fmt.Errorf("orchestrator: emit blocked by %d compatibility issue(s)", len(o.CompatIssues))
	}
	if len(o.packs) == 0 {
		return nil, fmt.Errorf("orchestrator: no packs loaded")
	}

	packFiles := make([]emit.PackFiles, len(o.packs))
	for i, pe := range o.packs {
		packFiles[i] = emit.PackFiles{Pack: pe.pack, Files: pe.files}
	}

	items, diags := emit.Collect(packFiles, mode, o.cache, o.cfg.BatchSize)
	for _, d := range diags {
		console.Log(model.SeverityWarning, "%s: %s", d.Path, d.Message)
	}

	var manifestJSON []byte
	if mode == emit.ModeIndexDescriptor {
		var err error
		manifestJSON, err = emit.ComposeManifest(o.head(), items, versionID, name)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: failed to compose manifest: %w", err)
		}
	}

	data, err := emit.Produce(items, manifestJSON)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: emit failed: %w", err)
	}
	return data, nil
}

// DeepAnalysisPerformed reports whether the cached deep-analysis result
// is still valid for the current pack state.
func (o *Orchestrator) DeepAnalysisPerformed() bool {
	return o.deepAnalysisPerformed
}
