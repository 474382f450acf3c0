package metacache

import (
	"testing"

	"github.com/mmerge/modmerge/internal/model"
)

func TestGetMissThenPutThenHit(t *testing.T) {
	c, err := Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	key := LocalKey(1, "mods/libx.jar")

	if _, _, ok := c.Get(key); ok {
		t.Fatal("expected a cache miss before Put")
	}

	md := &model.ModMetadata{Mods: []model.ModEntry{{ID: "libx", Version: "1.2.0"}}}
	if err := c.Put(key, md, []byte("jar-bytes")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, raw, ok := c.Get(key)
	if !ok {
		t.Fatal("expected a cache hit after Put")
	}
	if got.Mods[0].ID != "libx" || got.Mods[0].Version != "1.2.0" {
		t.Errorf("unexpected cached metadata: %+v", got)
	}
	if string(raw) != "jar-bytes" {
		t.Errorf("unexpected cached raw bytes: %q", raw)
	}
}

func TestPutOverwritesExistingEntry(t *testing.T) {
	c, err := Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	key := LocalKey(1, "mods/libx.jar")
	_ = c.Put(key, &model.ModMetadata{Mods: []model.ModEntry{{ID: "libx", Version: "1.0.0"}}}, nil)
	_ = c.Put(key, &model.ModMetadata{Mods: []model.ModEntry{{ID: "libx", Version: "2.0.0"}}}, nil)

	got, _, ok := c.Get(key)
	if !ok || got.Mods[0].Version != "2.0.0" {
		t.Errorf("expected overwritten entry with version 2.0.0, got %+v", got)
	}
}
