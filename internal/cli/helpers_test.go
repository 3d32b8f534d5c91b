package cli

import (
	"testing"

	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/query"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

func TestParseKeyValues(t *testing.T) {
	values, err := parseKeyValues([]string{"serial=1", "serial=2", "make=apple"})
	if err != nil {
		t.Fatalf("parseKeyValues() failed: %v", err)
	}
	if got := values["serial"]; len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("serial = %v, want [1 2]", got)
	}
	if got := values["make"]; len(got) != 1 || got[0] != "apple" {
		t.Fatalf("make = %v, want [apple]", got)
	}
}

func TestParseKeyValuesRejectsMalformedEntry(t *testing.T) {
	if _, err := parseKeyValues([]string{"no-equals-sign"}); err == nil {
		t.Fatal("expected an error for a KEY=VALUE entry missing '='")
	}
}

func TestAssetCountBroadcastsSingleValues(t *testing.T) {
	n, err := assetCount(map[string][]string{"make": {"apple"}}, []string{"warehouse"})
	if err != nil {
		t.Fatalf("assetCount() failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}
}

func TestAssetCountAgreesWithMultiValuedKey(t *testing.T) {
	n, err := assetCount(map[string][]string{"serial": {"1", "2", "3"}}, []string{"warehouse"})
	if err != nil {
		t.Fatalf("assetCount() failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("n = %d, want 3", n)
	}
}

func TestAssetCountRejectsConflictingCounts(t *testing.T) {
	_, err := assetCount(map[string][]string{
		"serial": {"1", "2", "3"},
		"model":  {"a", "b"},
	}, nil)
	if err == nil {
		t.Fatal("expected an error for conflicting --keys counts")
	}
}

func TestAssetCountRejectsConflictingDirCount(t *testing.T) {
	_, err := assetCount(map[string][]string{"serial": {"1", "2", "3"}}, []string{"a", "b"})
	if err == nil {
		t.Fatal("expected an error for --directory count conflicting with --keys count")
	}
}

func TestValueAtBroadcastsSingleValue(t *testing.T) {
	v, ok := valueAt([]string{"apple"}, 2)
	if !ok || v != "apple" {
		t.Fatalf("valueAt() = %q, %v, want apple, true", v, ok)
	}
}

func TestValueAtIndexesMultiValue(t *testing.T) {
	v, ok := valueAt([]string{"a", "b", "c"}, 1)
	if !ok || v != "b" {
		t.Fatalf("valueAt() = %q, %v, want b, true", v, ok)
	}
}

func TestValueAtEmptyIsAbsent(t *testing.T) {
	if _, ok := valueAt(nil, 0); ok {
		t.Fatal("expected ok=false for an empty value list")
	}
}

func TestDirAtBroadcastsSingleDir(t *testing.T) {
	if got := dirAt([]string{"warehouse"}, 5); got != "warehouse" {
		t.Fatalf("dirAt() = %q, want warehouse", got)
	}
}

func TestDirAtEmptyIsRoot(t *testing.T) {
	if got := dirAt(nil, 0); got != "" {
		t.Fatalf("dirAt() = %q, want empty", got)
	}
}

func TestBuildAssetSplitsBoundAndBodyKeys(t *testing.T) {
	tmpl, err := asset.ParseTemplate(asset.DefaultNameFormat)
	if err != nil {
		t.Fatalf("ParseTemplate() failed: %v", err)
	}
	nameTpl = tmpl

	values := map[string][]string{
		"type":   {"laptop"},
		"make":   {"apple"},
		"model":  {"macbookpro"},
		"serial": {"867"},
		"color":  {"silver"},
	}
	body, name, err := buildAsset(yamldoc.Empty(), values, 0, map[string]bool{})
	if err != nil {
		t.Fatalf("buildAsset() failed: %v", err)
	}
	if name != "laptop_apple_macbookpro.867" {
		t.Fatalf("name = %q, want laptop_apple_macbookpro.867", name)
	}
	if got := body.Get("color").Scalar; got != "silver" {
		t.Fatalf("color = %q, want silver", got)
	}
	if body.Get("type").Kind != yamldoc.KindNull {
		t.Fatalf("bound key %q leaked into the body", "type")
	}
}

func TestBuildAssetRejectsReservedKey(t *testing.T) {
	tmpl, err := asset.ParseTemplate(asset.DefaultNameFormat)
	if err != nil {
		t.Fatalf("ParseTemplate() failed: %v", err)
	}
	nameTpl = tmpl

	values := map[string][]string{
		"type":   {"laptop"},
		"make":   {"apple"},
		"model":  {"macbookpro"},
		"serial": {"867"},
		"path":   {"elsewhere"},
	}
	if _, _, err := buildAsset(yamldoc.Empty(), values, 0, map[string]bool{}); err == nil {
		t.Fatal("expected an error for setting a reserved pseudo-key")
	}
}

func TestAlternation(t *testing.T) {
	got := alternation([]string{"laptop", "a.b"})
	want := `^(laptop|a\.b)$`
	if got != want {
		t.Fatalf("alternation() = %q, want %q", got, want)
	}
}

func TestSortKeysForDirection(t *testing.T) {
	asc := sortKeysFor([]string{"make"}, false)
	if len(asc) != 1 || asc[0] != (query.SortKey{Key: "make", Descending: false}) {
		t.Fatalf("sortKeysFor(ascending) = %v", asc)
	}
	desc := sortKeysFor([]string{"make"}, true)
	if len(desc) != 1 || desc[0] != (query.SortKey{Key: "make", Descending: true}) {
		t.Fatalf("sortKeysFor(descending) = %v", desc)
	}
}

func TestParseSingleKeyValues(t *testing.T) {
	patch, err := parseSingleKeyValues([]string{"make=apple", "model=macbookpro"})
	if err != nil {
		t.Fatalf("parseSingleKeyValues() failed: %v", err)
	}
	if patch["make"] != "apple" || patch["model"] != "macbookpro" {
		t.Fatalf("patch = %v", patch)
	}
}

func TestParseSingleKeyValuesRejectsMalformedEntry(t *testing.T) {
	if _, err := parseSingleKeyValues([]string{"no-equals-sign"}); err == nil {
		t.Fatal("expected an error for a KEY=VALUE entry missing '='")
	}
}

func TestSortedKeysIsDeterministic(t *testing.T) {
	got := sortedKeys(map[string]string{"model": "x", "make": "y", "type": "z"})
	want := []string{"make", "model", "type"}
	if len(got) != len(want) {
		t.Fatalf("sortedKeys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sortedKeys() = %v, want %v", got, want)
		}
	}
}

func TestIsDirectChildOfRoot(t *testing.T) {
	if !isDirectChild("", "warehouse") {
		t.Fatal("warehouse should be a direct child of the repository root")
	}
	if isDirectChild("", "warehouse/shelf") {
		t.Fatal("warehouse/shelf should not be a direct child of the repository root")
	}
}

func TestIsDirectChildOfNestedDir(t *testing.T) {
	if !isDirectChild("warehouse", "warehouse/shelf") {
		t.Fatal("warehouse/shelf should be a direct child of warehouse")
	}
	if isDirectChild("warehouse", "warehouse/shelf/bin") {
		t.Fatal("warehouse/shelf/bin should not be a direct child of warehouse")
	}
	if isDirectChild("warehouse", "other/shelf") {
		t.Fatal("other/shelf should not be a direct child of warehouse")
	}
}

func TestUnderRootMatchesEverythingAtRepoRoot(t *testing.T) {
	if !underRoot("warehouse/shelf/laptop.1", "") {
		t.Fatal("every path is under the empty root")
	}
}

func TestUnderRootMatchesPrefixedPaths(t *testing.T) {
	if !underRoot("warehouse/shelf", "warehouse") {
		t.Fatal("warehouse/shelf should be under warehouse")
	}
	if !underRoot("warehouse", "warehouse") {
		t.Fatal("warehouse should be under itself")
	}
	if underRoot("other/shelf", "warehouse") {
		t.Fatal("other/shelf should not be under warehouse")
	}
}
