package asset

import (
	"path"
	"strings"

	"github.com/gosimple/slug"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

// ReservedPseudoKeys are pseudo-key aliases that are addressable in
// queries but never written into an asset's body (spec §9 Design Notes,
// onyo/lib/pseudokeys.py's PSEUDOKEY_ALIASES plus is_asset_directory).
var ReservedPseudoKeys = []string{"path", "directory", "is_asset_directory", "template", "onyo"}

// Asset is a name-bound YAML document at a path inside the inventory.
type Asset struct {
	Dir              string // repo-relative parent directory
	Name             string // basename (bound-field encoded)
	IsAssetDirectory bool
	Body             *yamldoc.Document
}

// Path returns the asset's full repo-relative path.
func (a *Asset) Path() string {
	if a.Dir == "" || a.Dir == "." {
		return a.Name
	}
	return path.Join(a.Dir, a.Name)
}

// ContentFile returns the repo-relative path of the file that actually
// holds the asset's YAML: the asset path itself for a plain asset file,
// or Path()/AssetDirFileName for an asset directory.
func (a *Asset) ContentFile() string {
	if a.IsAssetDirectory {
		return path.Join(a.Path(), AssetDirFileName)
	}
	return a.Path()
}

// Bind writes template's bound-field values, parsed from name, into
// body, returning the resulting document. This is the only legitimate
// way bound fields enter or change in the body: create and rename call
// it; modify must reject any attempt to touch a bound field directly
// (see IsBoundKey).
func Bind(template *NameTemplate, name string, body *yamldoc.Document) (*yamldoc.Document, error) {
	values, err := template.Parse(name)
	if err != nil {
		return nil, err
	}
	set := make(map[string]any, len(values))
	for k, v := range values {
		set[k] = v
	}
	return yamldoc.ApplyPatch(body, yamldoc.Patch{Set: set, ReplaceScalar: true})
}

// VerifyBinding checks that the bound-field values stored in body match
// those parsed from name (spec §8 invariant 2). It returns a
// *onyoerr.Error of kind BoundKeyMutation naming the first field that
// disagrees, or nil if all bound fields match.
func VerifyBinding(template *NameTemplate, name string, body *yamldoc.Document) error {
	values, err := template.Parse(name)
	if err != nil {
		return err
	}
	for _, field := range template.Fields() {
		want := values[field]
		got := body.Get(field)
		if got.Kind != yamldoc.KindScalar || got.Scalar != want {
			return onyoerr.New(onyoerr.BoundKeyMutation, field)
		}
	}
	return nil
}

// IsBoundKey reports whether key (a possibly-dotted key) is a bound
// field of template — i.e. one of its top-level placeholder names.
func IsBoundKey(template *NameTemplate, key string) bool {
	top := strings.SplitN(key, ".", 2)[0]
	for _, f := range template.Fields() {
		if f == top {
			return true
		}
	}
	return false
}

// IsReservedKey reports whether key is a pseudo-key alias that may never
// be set as body content (spec's supplemented RESERVED_KEYS behavior).
func IsReservedKey(key string) bool {
	top := strings.SplitN(key, ".", 2)[0]
	for _, r := range ReservedPseudoKeys {
		if top == r {
			return true
		}
	}
	return false
}

// SuggestDisplayName produces a filesystem-and-URL-friendly suggestion
// for a TSV import row's optional "display" column, when the caller
// wants a human-facing label distinct from the bound-field name.
func SuggestDisplayName(make_, model string) string {
	return slug.Make(strings.TrimSpace(make_ + " " + model))
}
