package orchestrator

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/mmerge/modmerge/internal/config"
	"github.com/mmerge/modmerge/internal/emit"
)

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip.Create(%s): %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write(%s): %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip.Close: %v", err)
	}
	return buf.Bytes()
}

func testOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New(config.Config{BatchSize: 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestLoadPackExactDuplicateExcludesSecond(t *testing.T) {
	o := testOrchestrator(t)

	packA := buildZip(t, map[string][]byte{
		"manifest.json": []byte(`{"minecraft":{"version":"1.20.1","modLoaders":[{"id":"fabric-0.15.0","primary":true}]}}`),
		"mods/foo.jar":  []byte("foo-bytes"),
	})
	packB := buildZip(t, map[string][]byte{
		"manifest.json": []byte(`{"minecraft":{"version":"1.20.1","modLoaders":[{"id":"fabric-0.15.0","primary":true}]}}`),
		"mods/foo.jar":  []byte("foo-bytes-2"),
	})

	if err := o.LoadPack("A", packA); err != nil {
		t.Fatalf("LoadPack(A): %v", err)
	}
	if err := o.LoadPack("B", packB); err != nil {
		t.Fatalf("LoadPack(B): %v", err)
	}

	if len(o.CompatIssues) != 0 {
		t.Fatalf("expected aligned packs, got compat issues: %+v", o.CompatIssues)
	}

	packs := o.packs
	var aFile, bFile string
	for _, pe := range packs {
		for _, f := range pe.files {
			if f.Path == "mods/foo.jar" {
				if pe.pack.Name == "A" {
					aFile = f.ConflictReason
					if !f.Enabled {
						t.Error("expected A's file enabled")
					}
				} else {
					bFile = f.ConflictReason
					if f.Enabled {
						t.Error("expected B's file excluded")
					}
				}
			}
		}
	}
	if aFile != "" {
		t.Errorf("expected A's file to have no conflict reason, got %q", aFile)
	}
	if bFile != "exact path duplicate" {
		t.Errorf("expected B's reason 'exact path duplicate', got %q", bFile)
	}
}

func TestLoadPackDuplicateNameIsSoftSkipped(t *testing.T) {
	o := testOrchestrator(t)

	first := buildZip(t, map[string][]byte{"mods/foo.jar": []byte("foo-bytes")})
	second := buildZip(t, map[string][]byte{"mods/bar.jar": []byte("bar-bytes")})

	if err := o.LoadPack("Same Name", first); err != nil {
		t.Fatalf("LoadPack(first): %v", err)
	}
	if err := o.LoadPack("Same Name", second); err != nil {
		t.Fatalf("LoadPack(second) should soft-skip, not error: %v", err)
	}

	if len(o.packs) != 1 {
		t.Fatalf("expected the second load to be skipped, got %d packs", len(o.packs))
	}
	if len(o.packs[0].files) != 1 || o.packs[0].files[0].Path != "mods/foo.jar" {
		t.Errorf("expected only the first pack's files to be loaded, got %+v", o.packs[0].files)
	}
}

func TestCompatibilityIssueBlocksDeepAnalysisAndEmit(t *testing.T) {
	o := testOrchestrator(t)

	head := buildZip(t, map[string][]byte{
		"manifest.json": []byte(`{"minecraft":{"version":"1.20.1","modLoaders":[{"id":"fabric-0.15.0","primary":true}]}}`),
	})
	second := buildZip(t, map[string][]byte{
		"manifest.json": []byte(`{"minecraft":{"version":"1.19.2","modLoaders":[{"id":"forge-43.2.0","primary":true}]}}`),
	})

	if err := o.LoadPack("Head", head); err != nil {
		t.Fatalf("LoadPack(Head): %v", err)
	}
	if err := o.LoadPack("Second", second); err != nil {
		t.Fatalf("LoadPack(Second): %v", err)
	}

	if len(o.CompatIssues) != 2 {
		t.Fatalf("expected 2 compatibility issues, got %+v", o.CompatIssues)
	}

	if err := o.RequestDeepAnalysis(); err == nil {
		t.Error("expected deep analysis to be blocked by compatibility issues")
	}
	if _, err := o.RequestEmit(emit.ModeFullArchive, "", ""); err == nil {
		t.Error("expected emit to be blocked by compatibility issues")
	}
}

func TestRemovePackRemovesOnlyItsFiles(t *testing.T) {
	o := testOrchestrator(t)

	a := buildZip(t, map[string][]byte{"mods/a.jar": []byte("a")})
	b := buildZip(t, map[string][]byte{"mods/b.jar": []byte("b")})

	if err := o.LoadPack("A", a); err != nil {
		t.Fatalf("LoadPack(A): %v", err)
	}
	if err := o.LoadPack("B", b); err != nil {
		t.Fatalf("LoadPack(B): %v", err)
	}

	bID := o.packs[1].pack.ID
	if err := o.RemovePack(bID); err != nil {
		t.Fatalf("RemovePack: %v", err)
	}

	if len(o.packs) != 1 || o.packs[0].pack.Name != "A" {
		t.Errorf("expected only pack A to remain, got %+v", o.Packs())
	}
}

func TestEmitFullArchiveProducesZip(t *testing.T) {
	o := testOrchestrator(t)

	pack := buildZip(t, map[string][]byte{"mods/foo.jar": []byte("foo-bytes")})
	if err := o.LoadPack("A", pack); err != nil {
		t.Fatalf("LoadPack: %v", err)
	}

	data, err := o.RequestEmit(emit.ModeFullArchive, "", "")
	if err != nil {
		t.Fatalf("RequestEmit: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("output is not a valid zip: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "mods/foo.jar" {
		t.Fatalf("unexpected archive contents: %+v", zr.File)
	}
}
