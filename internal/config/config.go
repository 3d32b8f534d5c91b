// Package config is the Config Layer: layered resolution over the git
// config chain and the onyo-tracked .onyo/config file, plus the fixed
// set of recognised onyo.* keys and their defaults (spec §4.8).
package config

import (
	"context"
	"os"
	"strconv"

	"github.com/onyo-org/onyo/internal/gitrepo"
	"github.com/onyo-org/onyo/internal/onyoerr"
)

// Recognised keys and their documented defaults.
const (
	KeyCoreEditor         = "onyo.core.editor"
	KeyHistoryInteractive = "onyo.history.interactive"
	KeyHistoryNonInteractive = "onyo.history.non-interactive"
	KeyNewTemplate        = "onyo.new.template"
	KeyAssetsNameFormat   = "onyo.assets.name-format"
	KeyRepoVersion        = "onyo.repo.version"

	DefaultHistoryInteractive    = "tig --follow"
	DefaultHistoryNonInteractive = "git --no-pager log --follow"
	DefaultNewTemplate           = "empty"
	DefaultAssetsNameFormat      = "{type}_{make}_{model}.{serial}"
	DefaultEditor                = "nano"
)

// Config resolves onyo.* settings for a single repository.
type Config struct {
	repo *gitrepo.Repo
}

// New wraps repo for config resolution.
func New(repo *gitrepo.Repo) *Config {
	return &Config{repo: repo}
}

// Get resolves key by checking the git config chain (local, global,
// system, in git's own precedence order) first, falling back to the
// onyo-tracked .onyo/config file (spec §4.8, "Resolution precedence on
// read: git config chain, then onyo-tracked config").
func (c *Config) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	if value, ok, err = c.repo.ConfigGet(ctx, key, gitrepo.ScopeLocal); err != nil {
		return "", false, err
	} else if ok {
		return value, true, nil
	}
	if value, ok, err = c.repo.ConfigGet(ctx, key, gitrepo.ScopeGlobal); err != nil {
		return "", false, err
	} else if ok {
		return value, true, nil
	}
	if value, ok, err = c.repo.ConfigGet(ctx, key, gitrepo.ScopeSystem); err != nil {
		return "", false, err
	} else if ok {
		return value, true, nil
	}
	return c.repo.ConfigGet(ctx, key, gitrepo.ScopeTracked)
}

// Set writes key=value into the given scope explicitly (spec §4.8,
// "Writes target the chosen scope explicitly" — there is no implicit
// write-through across the resolution chain).
func (c *Config) Set(ctx context.Context, key, value string, scope gitrepo.ConfigScope) error {
	return c.repo.ConfigSet(ctx, key, value, scope)
}

// Unset removes key from the given scope.
func (c *Config) Unset(ctx context.Context, key string, scope gitrepo.ConfigScope) error {
	return c.repo.ConfigUnset(ctx, key, scope)
}

// Editor resolves the command to run for edit-like subcommands:
// onyo.core.editor -> git's core.editor -> $EDITOR -> "nano".
func (c *Config) Editor(ctx context.Context) (string, error) {
	if v, ok, err := c.Get(ctx, KeyCoreEditor); err != nil {
		return "", err
	} else if ok && v != "" {
		return v, nil
	}
	if v, ok, err := c.repo.ConfigGet(ctx, "core.editor", gitrepo.ScopeLocal); err != nil {
		return "", err
	} else if ok && v != "" {
		return v, nil
	}
	if v, ok, err := c.repo.ConfigGet(ctx, "core.editor", gitrepo.ScopeGlobal); err != nil {
		return "", err
	} else if ok && v != "" {
		return v, nil
	}
	if v := os.Getenv("EDITOR"); v != "" {
		return v, nil
	}
	return DefaultEditor, nil
}

// HistoryInteractive resolves the command onyo history runs.
func (c *Config) HistoryInteractive(ctx context.Context) (string, error) {
	return c.getOrDefault(ctx, KeyHistoryInteractive, DefaultHistoryInteractive)
}

// HistoryNonInteractive resolves the command onyo history --non-interactive runs.
func (c *Config) HistoryNonInteractive(ctx context.Context) (string, error) {
	return c.getOrDefault(ctx, KeyHistoryNonInteractive, DefaultHistoryNonInteractive)
}

// NewTemplate resolves the default template name for onyo new.
func (c *Config) NewTemplate(ctx context.Context) (string, error) {
	return c.getOrDefault(ctx, KeyNewTemplate, DefaultNewTemplate)
}

// AssetsNameFormat resolves the asset filename template.
func (c *Config) AssetsNameFormat(ctx context.Context) (string, error) {
	return c.getOrDefault(ctx, KeyAssetsNameFormat, DefaultAssetsNameFormat)
}

// RepoVersion resolves onyo.repo.version as an integer. It fails with
// onyoerr.MalformedDocument if the key is set but not a valid integer,
// and returns ok=false if it is unset entirely (a repository that has
// never been initialised by this engine).
func (c *Config) RepoVersion(ctx context.Context) (version int, ok bool, err error) {
	raw, ok, err := c.Get(ctx, KeyRepoVersion)
	if err != nil || !ok {
		return 0, ok, err
	}
	version, convErr := strconv.Atoi(raw)
	if convErr != nil {
		return 0, false, onyoerr.Wrap(onyoerr.MalformedDocument, "config", KeyRepoVersion, convErr)
	}
	return version, true, nil
}

func (c *Config) getOrDefault(ctx context.Context, key, def string) (string, error) {
	v, ok, err := c.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return def, nil
	}
	return v, nil
}
