package emit

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/mmerge/modmerge/internal/model"
)

type fakeArchive struct {
	files map[string][]byte
}

func (f *fakeArchive) Entries() []string {
	out := make([]string, 0, len(f.files))
	for k := range f.files {
		out = append(out, k)
	}
	return out
}
func (f *fakeArchive) Has(p string) bool { _, ok := f.files[p]; return ok }
func (f *fakeArchive) ReadBytes(p string) ([]byte, error) {
	data, ok := f.files[p]
	if !ok {
		return nil, errNotFound{}
	}
	return data, nil
}
func (f *fakeArchive) ReadString(p string) (string, error) {
	data, err := f.ReadBytes(p)
	return string(data), err
}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

func TestCollectAndProduceFullArchive(t *testing.T) {
	pack := &model.Pack{ID: 1, Name: "A", Archive: &fakeArchive{files: map[string][]byte{
		"mods/foo.jar": []byte("foo-bytes"),
	}}}

	files := []*model.FileRecord{
		{Path: "mods/foo.jar", FileName: "foo.jar", PackID: 1, Enabled: true,
			Origin: model.Origin{Kind: model.OriginLocal, EntryPath: "mods/foo.jar"}},
	}

	items, diags := Collect([]PackFiles{{Pack: pack, Files: files}}, ModeFullArchive, nil, 5)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}

	data, err := Produce(items, nil)
	if err != nil {
		t.Fatalf("Produce failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("output is not a valid zip: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "mods/foo.jar" {
		t.Fatalf("unexpected archive contents: %+v", zr.File)
	}
	if zr.File[0].Method != zip.Store {
		t.Errorf("expected store-only compression, got method %d", zr.File[0].Method)
	}
}

func TestCollectIndexModeSeparatesOverridesFromRemote(t *testing.T) {
	pack := &model.Pack{ID: 1, Name: "Indexed", Type: model.PackIndexed, MinecraftVersion: "1.20.1", Loader: model.LoaderFabric,
		Archive: &fakeArchive{files: map[string][]byte{
			"overrides/config/foo.toml": []byte("cfg=1"),
		}}}

	files := []*model.FileRecord{
		{Path: "config/foo.toml", FileName: "foo.toml", PackID: 1, Enabled: true,
			Origin: model.Origin{Kind: model.OriginLocal, EntryPath: "overrides/config/foo.toml"}},
		{Path: "mods/sodium.jar", FileName: "sodium.jar", PackID: 1, Enabled: true,
			Origin: model.Origin{Kind: model.OriginRemote, URLs: []string{"https://cdn.example/sodium.jar"}}},
	}

	items, diags := Collect([]PackFiles{{Pack: pack, Files: files}}, ModeIndexDescriptor, nil, 5)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}

	manifest, err := ComposeManifest(pack, items, "1.0.0", "Example")
	if err != nil {
		t.Fatalf("ComposeManifest failed: %v", err)
	}

	data, err := Produce(items, manifest)
	if err != nil {
		t.Fatalf("Produce failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("output is not a valid zip: %v", err)
	}

	var sawOverride, sawManifest bool
	for _, f := range zr.File {
		if f.Name == "overrides/config/foo.toml" {
			sawOverride = true
		}
		if f.Name == "modrinth.index.json" {
			sawManifest = true
		}
		if f.Name == "mods/sodium.jar" {
			t.Error("remote file bytes should never appear in an index-mode archive")
		}
	}
	if !sawOverride {
		t.Error("expected overrides/config/foo.toml in the output archive")
	}
	if !sawManifest {
		t.Error("expected modrinth.index.json in the output archive")
	}
	if !bytes.Contains(manifest, []byte("https://cdn.example/sodium.jar")) {
		t.Error("expected the manifest to reference the remote mod's url")
	}
}
