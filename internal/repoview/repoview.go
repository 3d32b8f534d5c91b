// Package repoview is the Repository View: a cached, read-only
// projection of the tracked tree into the sets and indices the other
// components query repeatedly (tracked directories, asset paths, the
// name -> path uniqueness index, and a small LRU of parsed bodies). It
// never writes; a new view is built after every commit.
package repoview

import (
	"context"
	"log/slog"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/gitrepo"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

// DefaultDocumentCacheSize bounds the number of parsed asset bodies kept
// warm across a single command invocation's queries.
const DefaultDocumentCacheSize = 256

// View is an immutable snapshot of the repository's tracked tree as of
// the commit it was built from.
type View struct {
	repo *gitrepo.Repo

	dirs       map[string]bool   // tracked directory -> true (repo-relative, "" is root)
	assetPaths map[string]bool   // asset path -> true (plain file or directory-variant root)
	assetDirs  map[string]bool   // subset of assetPaths that are asset directories
	byName     map[string]string // bound asset basename -> full path, for global uniqueness checks

	docs *lru.Cache[string, *yamldoc.Document]
}

func normalizeDir(d string) string {
	if d == "." {
		return ""
	}
	return d
}

// Build walks repo's tracked files and assembles a View. It fails with
// onyoerr.NameCollision if two tracked assets resolve to the same
// basename (spec §8 invariant 3: names are unique across the whole
// tree, not just within a directory).
func Build(ctx context.Context, repo *gitrepo.Repo) (*View, error) {
	tracked, err := repo.ListTracked(ctx, "")
	if err != nil {
		return nil, err
	}

	dirs := map[string]bool{"": true}
	assetDirBodies := map[string]bool{}
	plainFiles := map[string]bool{}

	for _, rel := range tracked {
		for d := normalizeDir(path.Dir(rel)); d != ""; d = normalizeDir(path.Dir(d)) {
			dirs[d] = true
		}

		dir := normalizeDir(path.Dir(rel))
		base := path.Base(rel)
		switch base {
		case asset.AnchorFileName:
			continue
		case asset.AssetDirFileName:
			assetDirBodies[dir] = true
		default:
			plainFiles[rel] = true
		}
	}

	assetPaths := map[string]bool{}
	assetDirs := map[string]bool{}
	byName := map[string]string{}

	for rel := range plainFiles {
		assetPaths[rel] = true
		if err := registerName(byName, rel); err != nil {
			return nil, err
		}
	}
	for dir := range assetDirBodies {
		assetPaths[dir] = true
		assetDirs[dir] = true
		if err := registerName(byName, dir); err != nil {
			return nil, err
		}
	}

	docs, _ := lru.New[string, *yamldoc.Document](DefaultDocumentCacheSize)

	slog.Debug("repoview rebuilt", "dirs", len(dirs), "assets", len(assetPaths))

	return &View{
		repo:       repo,
		dirs:       dirs,
		assetPaths: assetPaths,
		assetDirs:  assetDirs,
		byName:     byName,
		docs:       docs,
	}, nil
}

// registerName records rel's basename in byName, failing with
// onyoerr.NameCollision if that basename is already bound to a
// different path anywhere else in the tree.
func registerName(byName map[string]string, rel string) error {
	name := path.Base(rel)
	if existing, ok := byName[name]; ok && existing != rel {
		return onyoerr.New(onyoerr.NameCollision, name)
	}
	byName[name] = rel
	return nil
}

// IsTrackedDir reports whether dir (repo-relative, "" for root) is a
// tracked directory.
func (v *View) IsTrackedDir(dir string) bool { return v.dirs[strings.TrimSuffix(dir, "/")] }

// IsAsset reports whether rel is a known asset path (file or directory
// variant).
func (v *View) IsAsset(rel string) bool { return v.assetPaths[rel] }

// IsAssetDirectory reports whether rel is an asset-directory-variant
// asset.
func (v *View) IsAssetDirectory(rel string) bool { return v.assetDirs[rel] }

// Lookup resolves an asset's bound basename to its full repo-relative
// path, for the global name-uniqueness index.
func (v *View) Lookup(name string) (path string, ok bool) {
	path, ok = v.byName[name]
	return
}

// Dirs returns all tracked directories (including root as "").
func (v *View) Dirs() []string {
	out := make([]string, 0, len(v.dirs))
	for d := range v.dirs {
		out = append(out, d)
	}
	return out
}

// Assets returns all known asset paths.
func (v *View) Assets() []string {
	out := make([]string, 0, len(v.assetPaths))
	for a := range v.assetPaths {
		out = append(out, a)
	}
	return out
}

// Document returns the parsed body of the asset at rel, loading and
// caching it on first access. revision selects the git revision to read
// from ("" reads the current index via git show ":path").
func (v *View) Document(ctx context.Context, rel, revision string) (*yamldoc.Document, error) {
	key := revision + ":" + rel
	if doc, ok := v.docs.Get(key); ok {
		slog.Debug("repoview document cache hit", "path", rel, "revision", revision)
		return doc, nil
	}

	data, err := v.readContent(ctx, rel, revision)
	if err != nil {
		return nil, err
	}
	doc, err := yamldoc.Load(data)
	if err != nil {
		return nil, err
	}
	if evicted := v.docs.Add(key, doc); evicted {
		slog.Debug("repoview document cache evicted an entry", "path", rel, "revision", revision, "size", v.docs.Len())
	}
	return doc, nil
}

func (v *View) readContent(ctx context.Context, rel, revision string) ([]byte, error) {
	contentPath := rel
	if v.assetDirs[rel] {
		contentPath = path.Join(rel, asset.AssetDirFileName)
	}
	if revision == "" {
		if !v.repo.Exists(contentPath) {
			return nil, onyoerr.New(onyoerr.NoSuchAsset, rel)
		}
		return v.repo.ReadBlob(ctx, contentPath, "")
	}
	return v.repo.ReadBlob(ctx, contentPath, revision)
}
