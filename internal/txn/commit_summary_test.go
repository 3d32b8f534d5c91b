package txn

import (
	"strings"
	"testing"

	"github.com/onyo-org/onyo/internal/invops"
)

func TestRenamedPathJoinsDestAgainstParent(t *testing.T) {
	op := invops.Operation{Kind: invops.RenameAsset, Path: "warehouse/laptop_apple_macbookpro.867", Dest: "laptop_apple_macbookpro.999"}
	got := renamedPath(op)
	want := "warehouse/laptop_apple_macbookpro.999"
	if got != want {
		t.Fatalf("renamedPath() = %q, want %q", got, want)
	}
}

func TestRenamedPathAtRoot(t *testing.T) {
	op := invops.Operation{Kind: invops.RenameAsset, Path: "laptop_apple_macbookpro.867", Dest: "laptop_apple_macbookpro.999"}
	got := renamedPath(op)
	want := "laptop_apple_macbookpro.999"
	if got != want {
		t.Fatalf("renamedPath() = %q, want %q", got, want)
	}
}

func TestOperationsSummaryGroupsAndSortsWithinGroup(t *testing.T) {
	tx := &Transaction{ops: []invops.Operation{
		{Kind: invops.NewAsset, Path: "warehouse/z.1"},
		{Kind: invops.NewAsset, Path: "warehouse/a.1"},
		{Kind: invops.RemoveDirectory, Path: "shelf"},
		{Kind: invops.MoveAsset, Path: "warehouse/laptop.1", Dest: "storage"},
	}}

	summary := tx.operationsSummary()

	if !strings.HasPrefix(summary, "--- Inventory Operations ---") {
		t.Fatalf("summary missing header: %q", summary)
	}
	newIdx := strings.Index(summary, "New assets:")
	aIdx := strings.Index(summary, "- warehouse/a.1")
	zIdx := strings.Index(summary, "- warehouse/z.1")
	if newIdx == -1 || aIdx == -1 || zIdx == -1 || !(newIdx < aIdx && aIdx < zIdx) {
		t.Fatalf("expected sorted 'New assets:' bullets, got: %q", summary)
	}
	if !strings.Contains(summary, "Moved assets:") || !strings.Contains(summary, "- warehouse/laptop.1 -> storage") {
		t.Fatalf("expected a moved-assets line, got: %q", summary)
	}
	if !strings.Contains(summary, "Removed directories:") || !strings.Contains(summary, "- shelf") {
		t.Fatalf("expected a removed-directories line, got: %q", summary)
	}
	if strings.Contains(summary, "Modified assets:") {
		t.Fatalf("did not expect an empty 'Modified assets:' group, got: %q", summary)
	}
}

func TestOperationsSummaryOmitsEmptyGroups(t *testing.T) {
	tx := &Transaction{ops: []invops.Operation{
		{Kind: invops.NewDirectory, Path: "warehouse"},
	}}
	summary := tx.operationsSummary()
	if !strings.Contains(summary, "New directories:") {
		t.Fatalf("expected a 'New directories:' group, got: %q", summary)
	}
	if strings.Contains(summary, "New assets:") {
		t.Fatalf("did not expect an empty 'New assets:' group, got: %q", summary)
	}
	if strings.HasSuffix(summary, "\n") {
		t.Fatalf("expected trailing newline to be trimmed, got: %q", summary)
	}
}
