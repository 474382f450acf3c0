package conflict

import (
	"testing"

	"github.com/mmerge/modmerge/internal/model"
)

func TestExactPathDuplicate(t *testing.T) {
	a := &model.Pack{ID: 1, Name: "A"}
	b := &model.Pack{ID: 2, Name: "B"}

	fa := &model.FileRecord{Path: "mods/foo.jar", FileName: "foo.jar", PackID: 1, Category: model.CategoryMods}
	fb := &model.FileRecord{Path: "mods/foo.jar", FileName: "foo.jar", PackID: 2, Category: model.CategoryMods}

	Resolve([]PackFiles{
		{Pack: a, Files: []*model.FileRecord{fa}},
		{Pack: b, Files: []*model.FileRecord{fb}},
	})

	if !fa.Enabled || fa.IsDuplicate {
		t.Errorf("expected A's file to be enabled and not a duplicate, got %+v", fa)
	}
	if fb.Enabled {
		t.Error("expected B's file to be disabled")
	}
	if fb.ConflictReason != "exact path duplicate" {
		t.Errorf("unexpected reason: %q", fb.ConflictReason)
	}
	if fb.KeptSource != "A" {
		t.Errorf("expected kept source A, got %q", fb.KeptSource)
	}
}

func TestOlderVersionExcludedByModID(t *testing.T) {
	a := &model.Pack{ID: 1, Name: "A"}
	b := &model.Pack{ID: 2, Name: "B"}

	fa := &model.FileRecord{
		Path: "mods/libX-1.2.0.jar", FileName: "libX-1.2.0.jar", PackID: 1, Category: model.CategoryMods,
		Metadata: &model.ModMetadata{Mods: []model.ModEntry{{ID: "libx", Version: "1.2.0"}}},
	}
	fb := &model.FileRecord{
		Path: "mods/libX-1.1.0.jar", FileName: "libX-1.1.0.jar", PackID: 2, Category: model.CategoryMods,
		Metadata: &model.ModMetadata{Mods: []model.ModEntry{{ID: "libx", Version: "1.1.0"}}},
	}

	Resolve([]PackFiles{
		{Pack: a, Files: []*model.FileRecord{fa}},
		{Pack: b, Files: []*model.FileRecord{fb}},
	})

	if !fa.Enabled {
		t.Error("expected A's file to remain enabled")
	}
	if fb.Enabled {
		t.Error("expected B's file to be excluded")
	}
	want := "Older version (Mod ID: libx)"
	if fb.ConflictReason != want {
		t.Errorf("expected reason %q, got %q", want, fb.ConflictReason)
	}
}

func TestSlugDuplicateWithoutMetadata(t *testing.T) {
	a := &model.Pack{ID: 1, Name: "A"}
	b := &model.Pack{ID: 2, Name: "B"}

	fa := &model.FileRecord{Path: "mods/journeymap-5.9.jar", FileName: "journeymap-5.9.jar", PackID: 1, Category: model.CategoryMods}
	fb := &model.FileRecord{Path: "mods/journeymap-5.9-fabric.jar", FileName: "journeymap-5.9-fabric.jar", PackID: 2, Category: model.CategoryMods}

	Resolve([]PackFiles{
		{Pack: a, Files: []*model.FileRecord{fa}},
		{Pack: b, Files: []*model.FileRecord{fb}},
	})

	if !fa.Enabled {
		t.Error("expected A's file to remain enabled")
	}
	if fb.Enabled {
		t.Error("expected B's file to be excluded")
	}
	want := "Possible duplicate of journeymap-5.9.jar"
	if fb.ConflictReason != want {
		t.Errorf("expected reason %q, got %q", want, fb.ConflictReason)
	}
}

func TestEnumerationOrderDeterminesSlugWinner(t *testing.T) {
	a := &model.Pack{ID: 1, Name: "A"}

	f1 := &model.FileRecord{Path: "mods/journeymap-5.9.jar", FileName: "journeymap-5.9.jar", PackID: 1, Category: model.CategoryMods}
	f2 := &model.FileRecord{Path: "mods/journeymap-5.9-fabric.jar", FileName: "journeymap-5.9-fabric.jar", PackID: 1, Category: model.CategoryMods}

	// Within a single pack, the loader's emission order decides which
	// equal-priority slug match wins — first seen survives.
	Resolve([]PackFiles{{Pack: a, Files: []*model.FileRecord{f1, f2}}})

	if !f1.Enabled {
		t.Error("expected the first-enumerated file to win the slug tie")
	}
	if f2.Enabled {
		t.Error("expected the second-enumerated file to lose the slug tie")
	}
}

func TestEqualVersionsDifferentPathsCoexist(t *testing.T) {
	a := &model.Pack{ID: 1, Name: "A"}

	f1 := &model.FileRecord{
		Path: "mods/one.jar", FileName: "one.jar", PackID: 1, Category: model.CategoryMods,
		Metadata: &model.ModMetadata{Mods: []model.ModEntry{{ID: "libx", Version: "1.0.0"}}},
	}
	f2 := &model.FileRecord{
		Path: "mods/two.jar", FileName: "two.jar", PackID: 1, Category: model.CategoryMods,
		Metadata: &model.ModMetadata{Mods: []model.ModEntry{{ID: "libx", Version: "1.0.0"}}},
	}

	Resolve([]PackFiles{{Pack: a, Files: []*model.FileRecord{f1, f2}}})

	if !f1.Enabled || !f2.Enabled {
		t.Errorf("expected both equal-version files at distinct paths to coexist, got f1=%v f2=%v", f1.Enabled, f2.Enabled)
	}
}
