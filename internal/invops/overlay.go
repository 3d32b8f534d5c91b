// Package invops is the Operation Set: the closed, tagged vocabulary of
// primitive inventory changes, each with preconditions checked against
// an Overlay and a postcondition that mutates it. The Transaction Engine
// is the only caller; it clones the Overlay before every push so a
// rejected operation never leaves a visible trace.
package invops

import (
	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/repoview"
)

// Overlay is the in-memory delta over a Repository View that a
// Transaction accumulates. A path is resolved by checking the delta
// first and falling back to the base View underneath.
type Overlay struct {
	base *repoview.View

	dirs        map[string]bool // newly created tracked directories
	removedDirs map[string]bool

	assets        map[string]*asset.Asset // newly created or modified assets, keyed by path
	removedAssets map[string]bool
	assetDirs     map[string]bool // subset of assets that are asset-directory variants (added or flipped)

	names map[string]string // bound basename -> path, for assets added by this overlay
}

// NewOverlay returns an Overlay with an empty delta over base.
func NewOverlay(base *repoview.View) *Overlay {
	return &Overlay{
		base:          base,
		dirs:          map[string]bool{},
		removedDirs:   map[string]bool{},
		assets:        map[string]*asset.Asset{},
		removedAssets: map[string]bool{},
		assetDirs:     map[string]bool{},
		names:         map[string]string{},
	}
}

// Clone deep-copies the delta (not the base View, which is immutable)
// so a rejected push never mutates the overlay a Transaction is holding.
func (o *Overlay) Clone() *Overlay {
	c := NewOverlay(o.base)
	for k, v := range o.dirs {
		c.dirs[k] = v
	}
	for k, v := range o.removedDirs {
		c.removedDirs[k] = v
	}
	for k, v := range o.assets {
		c.assets[k] = v
	}
	for k, v := range o.removedAssets {
		c.removedAssets[k] = v
	}
	for k, v := range o.assetDirs {
		c.assetDirs[k] = v
	}
	for k, v := range o.names {
		c.names[k] = v
	}
	return c
}

// HasDir reports whether path is a tracked directory as of this
// overlay.
func (o *Overlay) HasDir(path string) bool {
	if o.removedDirs[path] {
		return false
	}
	if o.dirs[path] {
		return true
	}
	return o.base.IsTrackedDir(path)
}

// HasAsset reports whether path is a known asset as of this overlay.
func (o *Overlay) HasAsset(path string) bool {
	if o.removedAssets[path] {
		return false
	}
	if _, ok := o.assets[path]; ok {
		return true
	}
	return o.base.IsAsset(path)
}

// IsAssetDirectory reports whether the asset at path is currently the
// asset-directory variant.
func (o *Overlay) IsAssetDirectory(path string) bool {
	if a, ok := o.assets[path]; ok {
		return a.IsAssetDirectory
	}
	return o.base.IsAssetDirectory(path)
}

// Seed hydrates the overlay's delta with a's current state when a is
// known (via HasAsset) but has not yet been touched by this Transaction
// — the overlay itself never reads the filesystem or git, so the
// Transaction Engine is responsible for loading the body (via
// repoview.View.Document) and calling Seed before pushing an operation
// that reads or rewrites an existing asset's body (modify, rename,
// move, convert-*). A path already present in the delta is left
// untouched.
func (o *Overlay) Seed(a *asset.Asset) {
	if _, ok := o.assets[a.Path()]; ok {
		return
	}
	o.putAsset(a)
}

// Asset returns the asset this overlay has added or modified at path,
// or nil if path is untouched by the overlay (including when it exists,
// unmodified, in the base View — callers fall back to
// repoview.View.Document for that case).
func (o *Overlay) Asset(path string) *asset.Asset {
	return o.assets[path]
}

// NameTaken reports whether basename is already bound to a path other
// than except, either by the base View or by this overlay's delta.
func (o *Overlay) NameTaken(basename, except string) (path string, taken bool) {
	if p, ok := o.names[basename]; ok && p != except {
		return p, true
	}
	if p, ok := o.base.Lookup(basename); ok && p != except && !o.removedAssets[p] {
		return p, true
	}
	return "", false
}

// putAsset records a as the overlay's current state for its path,
// updating the name index.
func (o *Overlay) putAsset(a *asset.Asset) {
	p := a.Path()
	o.assets[p] = a
	o.names[a.Name] = p
	delete(o.removedAssets, p)
	if a.IsAssetDirectory {
		o.assetDirs[p] = true
	} else {
		delete(o.assetDirs, p)
	}
}

// putDir marks dir as a tracked directory present in the overlay.
func (o *Overlay) putDir(dir string) {
	o.dirs[dir] = true
	delete(o.removedDirs, dir)
}

// removeAsset marks the asset at path as gone.
func (o *Overlay) removeAsset(path string) {
	if a, ok := o.assets[path]; ok {
		delete(o.names, a.Name)
	}
	delete(o.assets, path)
	delete(o.assetDirs, path)
	o.removedAssets[path] = true
}

// removeDir marks dir as no longer tracked.
func (o *Overlay) removeDir(dir string) {
	delete(o.dirs, dir)
	o.removedDirs[dir] = true
}

// ancestors returns the set of ancestor directories of path, most distant
// first, excluding the repository root.
func ancestors(path string) []string {
	var out []string
	for d := parentOf(path); d != ""; d = parentOf(d) {
		out = append([]string{d}, out...)
	}
	return out
}

func parentOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
