package invops

import (
	"testing"

	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/repoview"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

func mustTemplate(t *testing.T) *asset.NameTemplate {
	t.Helper()
	tmpl, err := asset.ParseTemplate(asset.DefaultNameFormat)
	if err != nil {
		t.Fatalf("ParseTemplate() failed: %v", err)
	}
	return tmpl
}

func emptyOverlay() *Overlay {
	return NewOverlay(&repoview.View{})
}

func TestNewDirectoryThenNewAsset(t *testing.T) {
	tmpl := mustTemplate(t)
	ov := emptyOverlay()

	if err := Apply(ov, Operation{Kind: NewDirectory, Path: "warehouse"}, tmpl); err != nil {
		t.Fatalf("new-directory failed: %v", err)
	}
	if !ov.HasDir("warehouse") {
		t.Fatal("expected warehouse to be tracked")
	}

	op := Operation{Kind: NewAsset, Path: "warehouse/laptop_apple_macbookpro.867"}
	if err := Apply(ov, op, tmpl); err != nil {
		t.Fatalf("new-asset failed: %v", err)
	}
	a := ov.Asset("warehouse/laptop_apple_macbookpro.867")
	if a == nil {
		t.Fatal("expected asset to be present in overlay")
	}
	if a.Body.Get("serial").Scalar != "867" {
		t.Fatalf("serial = %+v, want 867", a.Body.Get("serial"))
	}
}

func TestNewAssetRejectsMissingParentDirectory(t *testing.T) {
	tmpl := mustTemplate(t)
	ov := emptyOverlay()

	err := Apply(ov, Operation{Kind: NewAsset, Path: "warehouse/laptop_apple_macbookpro.867"}, tmpl)
	if kind, ok := onyoerr.Of(err); !ok || kind != onyoerr.NoSuchDirectory {
		t.Fatalf("Apply() = %v, want NoSuchDirectory", err)
	}
}

func TestNewAssetRejectsDuplicateName(t *testing.T) {
	tmpl := mustTemplate(t)
	ov := emptyOverlay()
	_ = Apply(ov, Operation{Kind: NewDirectory, Path: "warehouse"}, tmpl)
	_ = Apply(ov, Operation{Kind: NewDirectory, Path: "offsite"}, tmpl)

	if err := Apply(ov, Operation{Kind: NewAsset, Path: "warehouse/laptop_apple_macbookpro.867"}, tmpl); err != nil {
		t.Fatalf("first new-asset failed: %v", err)
	}
	err := Apply(ov, Operation{Kind: NewAsset, Path: "offsite/laptop_apple_macbookpro.867"}, tmpl)
	if kind, ok := onyoerr.Of(err); !ok || kind != onyoerr.NameCollision {
		t.Fatalf("Apply() = %v, want NameCollision", err)
	}
}

func TestModifyAssetRejectsBoundKey(t *testing.T) {
	tmpl := mustTemplate(t)
	ov := emptyOverlay()
	_ = Apply(ov, Operation{Kind: NewDirectory, Path: "warehouse"}, tmpl)
	_ = Apply(ov, Operation{Kind: NewAsset, Path: "warehouse/laptop_apple_macbookpro.867"}, tmpl)

	err := Apply(ov, Operation{
		Kind:  ModifyAsset,
		Path:  "warehouse/laptop_apple_macbookpro.867",
		Patch: yamldoc.Patch{Set: map[string]any{"serial": "999"}},
	}, tmpl)
	if kind, ok := onyoerr.Of(err); !ok || kind != onyoerr.BoundKeyMutation {
		t.Fatalf("Apply() = %v, want BoundKeyMutation", err)
	}
}

func TestModifyAssetAppliesPatch(t *testing.T) {
	tmpl := mustTemplate(t)
	ov := emptyOverlay()
	_ = Apply(ov, Operation{Kind: NewDirectory, Path: "warehouse"}, tmpl)
	_ = Apply(ov, Operation{Kind: NewAsset, Path: "warehouse/laptop_apple_macbookpro.867"}, tmpl)

	err := Apply(ov, Operation{
		Kind:  ModifyAsset,
		Path:  "warehouse/laptop_apple_macbookpro.867",
		Patch: yamldoc.Patch{Set: map[string]any{"color": "silver"}},
	}, tmpl)
	if err != nil {
		t.Fatalf("modify-asset failed: %v", err)
	}
	if ov.Asset("warehouse/laptop_apple_macbookpro.867").Body.Get("color").Scalar != "silver" {
		t.Fatal("patch was not applied")
	}
}

func TestRenameAssetUpdatesBoundFields(t *testing.T) {
	tmpl := mustTemplate(t)
	ov := emptyOverlay()
	_ = Apply(ov, Operation{Kind: NewDirectory, Path: "warehouse"}, tmpl)
	_ = Apply(ov, Operation{Kind: NewAsset, Path: "warehouse/laptop_apple_macbookpro.867"}, tmpl)

	err := Apply(ov, Operation{
		Kind: RenameAsset,
		Path: "warehouse/laptop_apple_macbookpro.867",
		Dest: "laptop_apple_macbookpro.999",
	}, tmpl)
	if err != nil {
		t.Fatalf("rename-asset failed: %v", err)
	}
	if ov.HasAsset("warehouse/laptop_apple_macbookpro.867") {
		t.Fatal("old path should no longer be an asset")
	}
	renamed := ov.Asset("warehouse/laptop_apple_macbookpro.999")
	if renamed == nil {
		t.Fatal("expected renamed asset to be present")
	}
	if renamed.Body.Get("serial").Scalar != "999" {
		t.Fatalf("serial = %+v, want 999", renamed.Body.Get("serial"))
	}
}

func TestMoveAssetRelocates(t *testing.T) {
	tmpl := mustTemplate(t)
	ov := emptyOverlay()
	_ = Apply(ov, Operation{Kind: NewDirectory, Path: "warehouse"}, tmpl)
	_ = Apply(ov, Operation{Kind: NewDirectory, Path: "offsite"}, tmpl)
	_ = Apply(ov, Operation{Kind: NewAsset, Path: "warehouse/laptop_apple_macbookpro.867"}, tmpl)

	if err := Apply(ov, Operation{Kind: MoveAsset, Path: "warehouse/laptop_apple_macbookpro.867", Dest: "offsite"}, tmpl); err != nil {
		t.Fatalf("move-asset failed: %v", err)
	}
	if ov.HasAsset("warehouse/laptop_apple_macbookpro.867") {
		t.Fatal("asset should be gone from its old path")
	}
	if !ov.HasAsset("offsite/laptop_apple_macbookpro.867") {
		t.Fatal("asset should exist at its new path")
	}
}

func TestRemoveDirectoryRejectsNonEmpty(t *testing.T) {
	tmpl := mustTemplate(t)
	ov := emptyOverlay()
	_ = Apply(ov, Operation{Kind: NewDirectory, Path: "warehouse"}, tmpl)
	_ = Apply(ov, Operation{Kind: NewAsset, Path: "warehouse/laptop_apple_macbookpro.867"}, tmpl)

	err := Apply(ov, Operation{Kind: RemoveDirectory, Path: "warehouse"}, tmpl)
	if kind, ok := onyoerr.Of(err); !ok || kind != onyoerr.NotEmpty {
		t.Fatalf("Apply() = %v, want NotEmpty", err)
	}

	if err := Apply(ov, Operation{Kind: RemoveDirectory, Path: "warehouse", Recursive: true}, tmpl); err != nil {
		t.Fatalf("recursive remove-directory failed: %v", err)
	}
	if ov.HasDir("warehouse") {
		t.Fatal("warehouse should no longer be tracked")
	}
}

func TestConvertToAndFromAssetDir(t *testing.T) {
	tmpl := mustTemplate(t)
	ov := emptyOverlay()
	_ = Apply(ov, Operation{Kind: NewDirectory, Path: "warehouse"}, tmpl)
	_ = Apply(ov, Operation{Kind: NewAsset, Path: "warehouse/laptop_apple_macbookpro.867"}, tmpl)

	if err := Apply(ov, Operation{Kind: ConvertToAssetDir, Path: "warehouse/laptop_apple_macbookpro.867"}, tmpl); err != nil {
		t.Fatalf("convert-to-asset-dir failed: %v", err)
	}
	if !ov.IsAssetDirectory("warehouse/laptop_apple_macbookpro.867") {
		t.Fatal("expected asset to be an asset directory")
	}

	if err := Apply(ov, Operation{Kind: ConvertFromAssetDir, Path: "warehouse/laptop_apple_macbookpro.867"}, tmpl); err != nil {
		t.Fatalf("convert-from-asset-dir failed: %v", err)
	}
	if ov.IsAssetDirectory("warehouse/laptop_apple_macbookpro.867") {
		t.Fatal("expected asset to no longer be an asset directory")
	}
}
