package invops

import (
	"path"
	"strings"

	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

// Kind is one of the ten primitive inventory operation variants.
type Kind string

const (
	NewDirectory        Kind = "new-directory"
	NewAsset            Kind = "new-asset"
	ModifyAsset         Kind = "modify-asset"
	RenameAsset         Kind = "rename-asset"
	MoveAsset           Kind = "move-asset"
	MoveDirectory       Kind = "move-directory"
	RemoveAsset         Kind = "remove-asset"
	RemoveDirectory     Kind = "remove-directory"
	ConvertToAssetDir   Kind = "convert-to-asset-dir"
	ConvertFromAssetDir Kind = "convert-from-asset-dir"
)

// Operation is a tagged record of one intended change. Only the fields
// relevant to Kind are meaningful; see the table in each case below.
type Operation struct {
	Kind Kind

	Path string // P: the operation's primary subject path
	Dest string // D / newName: destination directory (move-*) or new basename (rename-asset)

	Body  *yamldoc.Document // new-asset: the full desired body, pre-binding
	Patch yamldoc.Patch     // modify-asset: the patch to apply

	Recursive bool // remove-directory: remove non-empty directories
}

// Apply validates op's preconditions against ov and, if satisfied,
// mutates ov to reflect op's postcondition. ov is left unchanged on
// error. tmpl is the repository's configured name template, used by the
// variants that parse or render bound fields.
func Apply(ov *Overlay, op Operation, tmpl *asset.NameTemplate) error {
	switch op.Kind {
	case NewDirectory:
		return applyNewDirectory(ov, op)
	case NewAsset:
		return applyNewAsset(ov, op, tmpl)
	case ModifyAsset:
		return applyModifyAsset(ov, op, tmpl)
	case RenameAsset:
		return applyRenameAsset(ov, op, tmpl)
	case MoveAsset:
		return applyMoveAsset(ov, op)
	case MoveDirectory:
		return applyMoveDirectory(ov, op)
	case RemoveAsset:
		return applyRemoveAsset(ov, op)
	case RemoveDirectory:
		return applyRemoveDirectory(ov, op)
	case ConvertToAssetDir:
		return applyConvertToAssetDir(ov, op)
	case ConvertFromAssetDir:
		return applyConvertFromAssetDir(ov, op)
	default:
		return onyoerr.New(onyoerr.MalformedDocument, "unknown operation kind: "+string(op.Kind))
	}
}

// applyNewDirectory: P not present; ancestors present or created by
// earlier ops in the same transaction -> P is a tracked directory with
// an anchor.
func applyNewDirectory(ov *Overlay, op Operation) error {
	if ov.HasDir(op.Path) {
		return onyoerr.New(onyoerr.AlreadyARepository, op.Path)
	}
	for _, ancestor := range ancestors(op.Path) {
		if !ov.HasDir(ancestor) {
			return onyoerr.New(onyoerr.NoSuchDirectory, ancestor)
		}
	}
	ov.putDir(op.Path)
	return nil
}

// applyNewAsset: parent(P) is/will be tracked; P's name parses; no
// existing asset at P -> asset at P with bound fields = name parse,
// body applied on top.
func applyNewAsset(ov *Overlay, op Operation, tmpl *asset.NameTemplate) error {
	dir := parentOf(op.Path)
	if dir != "" && !ov.HasDir(dir) {
		return onyoerr.New(onyoerr.NoSuchDirectory, dir)
	}
	if ov.HasAsset(op.Path) {
		return onyoerr.New(onyoerr.NameCollision, op.Path)
	}
	name := baseName(op.Path)
	if existing, taken := ov.NameTaken(name, ""); taken {
		return onyoerr.New(onyoerr.NameCollision, existing)
	}

	body := op.Body
	if body == nil {
		body = yamldoc.Empty()
	}
	bound, err := asset.Bind(tmpl, name, body)
	if err != nil {
		return err
	}

	ov.putAsset(&asset.Asset{Dir: dir, Name: name, Body: bound})
	return nil
}

// applyModifyAsset: asset P exists; patch does not touch bound fields
// -> asset at P with patched body. Callers touching an asset the
// overlay hasn't seen yet must Overlay.Seed it first.
func applyModifyAsset(ov *Overlay, op Operation, tmpl *asset.NameTemplate) error {
	if !ov.HasAsset(op.Path) {
		return onyoerr.New(onyoerr.NoSuchAsset, op.Path)
	}
	for key := range op.Patch.Set {
		if asset.IsBoundKey(tmpl, key) {
			return onyoerr.New(onyoerr.BoundKeyMutation, key)
		}
		if asset.IsReservedKey(key) {
			return onyoerr.New(onyoerr.BoundKeyMutation, key)
		}
	}
	for _, key := range op.Patch.Unset {
		if asset.IsBoundKey(tmpl, key) {
			return onyoerr.New(onyoerr.BoundKeyMutation, key)
		}
	}

	current := ov.Asset(op.Path)
	if current == nil {
		return onyoerr.New(onyoerr.MalformedDocument, "asset not seeded into overlay: "+op.Path)
	}
	patched, err := yamldoc.ApplyPatch(current.Body, op.Patch)
	if err != nil {
		return err
	}

	next := *current
	next.Body = patched
	ov.putAsset(&next)
	return nil
}

// applyRenameAsset: asset P exists; newName parses and is unique in
// parent(P) -> asset at parent(P)/newName with body's bound fields
// updated.
func applyRenameAsset(ov *Overlay, op Operation, tmpl *asset.NameTemplate) error {
	if !ov.HasAsset(op.Path) {
		return onyoerr.New(onyoerr.NoSuchAsset, op.Path)
	}
	current := ov.Asset(op.Path)
	if current == nil {
		return onyoerr.New(onyoerr.MalformedDocument, "asset not seeded into overlay: "+op.Path)
	}

	newPath := path.Join(parentOf(op.Path), op.Dest)
	if existing, taken := ov.NameTaken(op.Dest, op.Path); taken {
		return onyoerr.New(onyoerr.NameCollision, existing)
	}

	bound, err := asset.Bind(tmpl, op.Dest, current.Body)
	if err != nil {
		return err
	}

	ov.removeAsset(op.Path)
	ov.putAsset(&asset.Asset{
		Dir:              parentOf(newPath),
		Name:             op.Dest,
		IsAssetDirectory: current.IsAssetDirectory,
		Body:             bound,
	})
	return nil
}

// applyMoveAsset: asset P exists; D is/will be tracked; D/basename(P)
// unique -> asset at D/basename(P), history preserved.
func applyMoveAsset(ov *Overlay, op Operation) error {
	if !ov.HasAsset(op.Path) {
		return onyoerr.New(onyoerr.NoSuchAsset, op.Path)
	}
	if !ov.HasDir(op.Dest) {
		return onyoerr.New(onyoerr.NoSuchDirectory, op.Dest)
	}
	current := ov.Asset(op.Path)
	if current == nil {
		return onyoerr.New(onyoerr.MalformedDocument, "asset not seeded into overlay: "+op.Path)
	}
	newPath := path.Join(op.Dest, current.Name)
	if ov.HasAsset(newPath) {
		return onyoerr.New(onyoerr.NameCollision, newPath)
	}

	ov.removeAsset(op.Path)
	next := *current
	next.Dir = op.Dest
	ov.putAsset(&next)
	return nil
}

// applyMoveDirectory: S is a tracked directory; D's parent exists; no
// collision -> S's contents relocated under D.
//
// The overlay only tracks that S is gone and D is present; relocation
// of the assets underneath is a single `git mv S D` at commit time (the
// Git Adapter renames the whole subtree in one call, preserving history
// for every contained blob), so the per-asset basenames in the overlay's
// name index stay valid without per-child bookkeeping here.
func applyMoveDirectory(ov *Overlay, op Operation) error {
	if !ov.HasDir(op.Path) {
		return onyoerr.New(onyoerr.NoSuchDirectory, op.Path)
	}
	destParent := parentOf(op.Dest)
	if destParent != "" && !ov.HasDir(destParent) {
		return onyoerr.New(onyoerr.NoSuchDirectory, destParent)
	}
	if ov.HasDir(op.Dest) {
		return onyoerr.New(onyoerr.AlreadyARepository, op.Dest)
	}

	ov.removeDir(op.Path)
	ov.putDir(op.Dest)
	return nil
}

// applyRemoveAsset: asset P exists -> P absent.
func applyRemoveAsset(ov *Overlay, op Operation) error {
	if !ov.HasAsset(op.Path) {
		return onyoerr.New(onyoerr.NoSuchAsset, op.Path)
	}
	ov.removeAsset(op.Path)
	return nil
}

// applyRemoveDirectory: P tracked; if not recursive, P must be empty ->
// P absent. Emptiness is judged against the overlay: no asset or
// subdirectory whose path has P as a prefix.
func applyRemoveDirectory(ov *Overlay, op Operation) error {
	if !ov.HasDir(op.Path) {
		return onyoerr.New(onyoerr.NoSuchDirectory, op.Path)
	}
	if !op.Recursive && hasDescendant(ov, op.Path) {
		return onyoerr.New(onyoerr.NotEmpty, op.Path)
	}
	ov.removeDir(op.Path)
	return nil
}

// hasDescendant reports whether any tracked asset or directory has dir
// as a strict path prefix, as judged against the overlay's delta over
// its base View.
func hasDescendant(ov *Overlay, dir string) bool {
	prefix := dir + "/"
	for p := range ov.assets {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	for d := range ov.dirs {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	for _, d := range ov.base.Dirs() {
		if strings.HasPrefix(d, prefix) && !ov.removedDirs[d] {
			return true
		}
	}
	for _, a := range ov.base.Assets() {
		if strings.HasPrefix(a, prefix) && !ov.removedAssets[a] {
			return true
		}
	}
	return false
}

// applyConvertToAssetDir: asset P is a file -> P is an asset directory.
func applyConvertToAssetDir(ov *Overlay, op Operation) error {
	if !ov.HasAsset(op.Path) {
		return onyoerr.New(onyoerr.NoSuchAsset, op.Path)
	}
	if ov.IsAssetDirectory(op.Path) {
		return onyoerr.New(onyoerr.AlreadyARepository, op.Path)
	}
	current := ov.Asset(op.Path)
	if current == nil {
		return onyoerr.New(onyoerr.MalformedDocument, "asset not seeded into overlay: "+op.Path)
	}
	next := *current
	next.IsAssetDirectory = true
	ov.putAsset(&next)
	return nil
}

// applyConvertFromAssetDir: asset P is a directory with only the body
// file -> P is an asset file. "Only the body file" is checked the same
// way applyRemoveDirectory judges emptiness: no tracked asset or
// directory may have P as a path prefix, since the commit plan deletes
// P's whole subtree to make room for the plain file.
func applyConvertFromAssetDir(ov *Overlay, op Operation) error {
	if !ov.HasAsset(op.Path) {
		return onyoerr.New(onyoerr.NoSuchAsset, op.Path)
	}
	if !ov.IsAssetDirectory(op.Path) {
		return onyoerr.New(onyoerr.InvalidAssetName, op.Path)
	}
	if hasDescendant(ov, op.Path) {
		return onyoerr.New(onyoerr.NotEmpty, op.Path)
	}
	current := ov.Asset(op.Path)
	if current == nil {
		return onyoerr.New(onyoerr.MalformedDocument, "asset not seeded into overlay: "+op.Path)
	}
	next := *current
	next.IsAssetDirectory = false
	ov.putAsset(&next)
	return nil
}
