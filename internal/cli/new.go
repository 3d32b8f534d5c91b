package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/invops"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/txn"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

var (
	newKeys     []string
	newDirs     []string
	newTemplate string
	newClone    string
	newEdit     bool
	newTSV      string
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create one or more new assets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tx := txn.New(repo, view, nameTpl)

		if newTSV != "" {
			if err := newFromTSV(ctx, tx, newTSV); err != nil {
				return err
			}
			return finishTransaction(ctx, tx)
		}

		if err := newFromCLI(ctx, tx); err != nil {
			return err
		}
		return finishTransaction(ctx, tx)
	},
}

func init() {
	newCmd.Flags().StringArrayVarP(&newKeys, "keys", "k", nil, "KEY=VALUE pairs to populate new assets (repeatable)")
	newCmd.Flags().StringArrayVarP(&newDirs, "directory", "d", nil, "directory to create new assets in (repeatable)")
	newCmd.Flags().StringVarP(&newTemplate, "template", "t", "", "template to populate the new asset's content")
	newCmd.Flags().StringVarP(&newClone, "clone", "c", "", "path of an existing asset to clone content from")
	newCmd.Flags().BoolVarP(&newEdit, "edit", "e", false, "open new assets in an editor before committing")
	newCmd.Flags().StringVar(&newTSV, "tsv", "", "TSV file of rows to batch-create in a single commit")
	rootCmd.AddCommand(newCmd)
}

// parseKeyValues splits "-k key=value" pairs (possibly given many times
// for the same key, to create several assets at once) into a map of
// field name to its list of values in flag order.
func parseKeyValues(pairs []string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, onyoerr.New(onyoerr.InvalidAssetName, "malformed --keys entry (want KEY=VALUE): "+p)
		}
		out[k] = append(out[k], v)
	}
	return out, nil
}

// assetCount reconciles the per-key value counts and the --directory
// count into the number of assets this invocation creates: a value or
// directory given once broadcasts to every asset; given N>1 times, it
// must agree with every other multi-valued flag (spec's supplemented
// "new --keys serial={1,2,3}" batching, from onyo/cli/new.py).
func assetCount(values map[string][]string, dirs []string) (int, error) {
	n := 1
	for k, vs := range values {
		if len(vs) > 1 {
			if n > 1 && n != len(vs) {
				return 0, onyoerr.New(onyoerr.InvalidAssetName, fmt.Sprintf("--keys %s has %d values, conflicting with an earlier count of %d", k, len(vs), n))
			}
			n = len(vs)
		}
	}
	if len(dirs) > 1 {
		if n > 1 && n != len(dirs) {
			return 0, onyoerr.New(onyoerr.InvalidAssetName, "--directory count conflicts with --keys count")
		}
		if n == 1 {
			n = len(dirs)
		}
	}
	return n, nil
}

func valueAt(vs []string, i int) (string, bool) {
	if len(vs) == 0 {
		return "", false
	}
	if len(vs) == 1 {
		return vs[0], true
	}
	return vs[i], true
}

func dirAt(dirs []string, i int) string {
	if len(dirs) == 0 {
		return ""
	}
	if len(dirs) == 1 {
		return dirs[0]
	}
	return dirs[i]
}

func newFromCLI(ctx context.Context, tx *txn.Transaction) error {
	values, err := parseKeyValues(newKeys)
	if err != nil {
		return err
	}
	n, err := assetCount(values, newDirs)
	if err != nil {
		return err
	}

	templateBody, err := loadTemplateBody(ctx, newTemplate, newClone)
	if err != nil {
		return err
	}

	dirsCreated := map[string]bool{}
	taken := existingFauxSerials()
	for i := 0; i < n; i++ {
		dir := dirAt(newDirs, i)
		if err := ensureDirs(ctx, tx, dirsCreated, dir); err != nil {
			return err
		}

		body, name, err := buildAsset(templateBody, values, i, taken)
		if err != nil {
			return err
		}

		fullPath := path.Join(dir, name)
		if err := tx.Push(ctx, invops.Operation{Kind: invops.NewAsset, Path: fullPath, Body: body}); err != nil {
			return err
		}

		if newEdit {
			if err := editAssetInPlace(ctx, tx, fullPath); err != nil {
				return err
			}
		}
	}
	return nil
}

// existingFauxSerials collects every tail-field value already in use
// across the tracked tree, so a freshly generated faux serial retries
// against real collisions instead of surfacing one as a push-time
// NameCollision (spec §4.3: "retrying ... on collision").
func existingFauxSerials() map[string]bool {
	taken := map[string]bool{}
	for _, p := range view.Assets() {
		fields, err := nameTpl.Parse(path.Base(p))
		if err != nil {
			continue
		}
		if v, ok := fields[nameTpl.Tail()]; ok {
			taken[v] = true
		}
	}
	return taken
}

// buildAsset assembles the i'th asset's pre-binding body and rendered
// basename from the per-key value lists: bound fields (the name
// template's placeholders) render the name, everything else becomes a
// body key. taken accumulates generated faux serials across a batch so
// two assets in the same `onyo new` invocation never collide with each
// other, not just with what is already on disk.
func buildAsset(templateBody *yamldoc.Document, values map[string][]string, i int, taken map[string]bool) (*yamldoc.Document, string, error) {
	nameValues := map[string]string{}
	patchSet := map[string]any{}

	for k, vs := range values {
		v, ok := valueAt(vs, i)
		if !ok {
			continue
		}
		switch {
		case asset.IsBoundKey(nameTpl, k):
			nameValues[k] = v
		case asset.IsReservedKey(k):
			return nil, "", onyoerr.New(onyoerr.BoundKeyMutation, k)
		default:
			patchSet[k] = v
		}
	}

	tail := nameTpl.Tail()
	if _, ok := nameValues[tail]; !ok {
		serial, err := asset.FauxSerial(asset.DefaultFauxSerialLength, taken)
		if err != nil {
			return nil, "", err
		}
		nameValues[tail] = serial
		taken[serial] = true
	}

	name, err := nameTpl.Render(nameValues)
	if err != nil {
		return nil, "", err
	}

	body, err := yamldoc.ApplyPatch(templateBody, yamldoc.Patch{Set: patchSet, ReplaceScalar: true, CreateIntermediate: true})
	if err != nil {
		return nil, "", err
	}
	return body, name, nil
}

// loadTemplateBody resolves the starting document for a new asset:
// --clone (an existing asset's body) and --template (a named template
// in .onyo/templates/) are mutually exclusive; absent either, it falls
// back to onyo.new.template.
func loadTemplateBody(ctx context.Context, templateName, clonePath string) (*yamldoc.Document, error) {
	if templateName != "" && clonePath != "" {
		return nil, onyoerr.New(onyoerr.InvalidAssetName, "--template and --clone cannot be used together")
	}
	if clonePath != "" {
		doc, err := view.Document(ctx, clonePath, "")
		if err != nil {
			return nil, err
		}
		return doc.Clone(), nil
	}

	name := templateName
	if name == "" {
		var err error
		name, err = cfg.NewTemplate(ctx)
		if err != nil {
			return nil, err
		}
	}
	data, err := repo.ReadFile(path.Join(".onyo", "templates", name))
	if err != nil {
		return nil, onyoerr.Wrap(onyoerr.TemplateNotFound, "new", name, err)
	}
	return yamldoc.Load(data)
}

// ensureDirs pushes new-directory operations for dir and any of its
// missing ancestors, in root-to-leaf order, skipping directories already
// tracked or already queued earlier in this same batch.
func ensureDirs(ctx context.Context, tx *txn.Transaction, created map[string]bool, dir string) error {
	if dir == "" || dir == "." || view.IsTrackedDir(dir) || created[dir] {
		return nil
	}
	parent := path.Dir(dir)
	if parent == "." {
		parent = ""
	}
	if err := ensureDirs(ctx, tx, created, parent); err != nil {
		return err
	}
	if err := tx.Push(ctx, invops.Operation{Kind: invops.NewDirectory, Path: dir}); err != nil {
		return err
	}
	created[dir] = true
	return nil
}

// editAssetInPlace re-reads the just-pushed asset's body from the
// transaction's overlay, opens it in the configured editor, and pushes
// a modify-asset patch with whatever the user changed.
func editAssetInPlace(ctx context.Context, tx *txn.Transaction, assetPath string) error {
	editor, err := cfg.Editor(ctx)
	if err != nil {
		return err
	}
	current := tx.Asset(assetPath)
	if current == nil {
		return onyoerr.New(onyoerr.MalformedDocument, assetPath)
	}
	edited, err := editDocument(ctx, editor, current.Body)
	if err != nil {
		return err
	}

	set := map[string]any{}
	for _, k := range edited.Keys() {
		if asset.IsBoundKey(nameTpl, k) {
			continue
		}
		v := edited.Get(k)
		if v.Kind != yamldoc.KindScalar {
			// Composite values are left untouched here; the user would
			// have had to clear and retype them as scalars to change
			// them through this patch path.
			continue
		}
		set[k] = v.Scalar
	}
	if len(set) == 0 {
		return nil
	}
	return tx.Push(ctx, invops.Operation{Kind: invops.ModifyAsset, Path: assetPath, Patch: yamldoc.Patch{Set: set, ReplaceScalar: true}})
}

var tsvRequiredColumns = []string{"type", "make", "model", "serial", "directory"}

// newFromTSV batches every row of a TSV file into new-asset operations
// on a single Transaction, matching spec §8 scenario 5: "if any row is
// invalid, the entire batch aborts with no commit" — since Commit is
// never reached unless every Push above succeeds, an early return here
// leaves the Transaction Rejected/Abandoned and the caller uncommitted.
func newFromTSV(ctx context.Context, tx *txn.Transaction, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return onyoerr.Wrap(onyoerr.NoSuchAsset, "tsv", filePath, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return onyoerr.Wrap(onyoerr.MalformedDocument, "tsv-header", filePath, err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	for _, required := range tsvRequiredColumns {
		if _, ok := col[required]; !ok {
			return onyoerr.New(onyoerr.MalformedDocument, "tsv missing required column: "+required)
		}
	}

	dirsCreated := map[string]bool{}
	taken := existingFauxSerials()
	rowNum := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return onyoerr.Wrap(onyoerr.MalformedDocument, "tsv-row", filePath, err)
		}
		rowNum++

		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(row) {
				return row[i]
			}
			return ""
		}

		typ, make_, model, serial, dir := get("type"), get("make"), get("model"), get("serial"), get("directory")
		if typ == "" || make_ == "" || model == "" || serial == "" || dir == "" {
			return onyoerr.New(onyoerr.InvalidAssetName, fmt.Sprintf("row %d: type, make, model, serial and directory are all required", rowNum))
		}

		if serial == "faux" {
			generated, err := asset.FauxSerial(asset.DefaultFauxSerialLength, taken)
			if err != nil {
				return err
			}
			serial = generated
			taken[serial] = true
		}

		if err := ensureDirs(ctx, tx, dirsCreated, dir); err != nil {
			return err
		}

		name, err := nameTpl.Render(map[string]string{"type": typ, "make": make_, "model": model, "serial": serial})
		if err != nil {
			return err
		}

		patchSet := map[string]any{}
		for colName, idx := range col {
			if colName == "type" || colName == "make" || colName == "model" || colName == "serial" || colName == "directory" {
				continue
			}
			if idx >= len(row) || row[idx] == "" {
				continue
			}
			if asset.IsReservedKey(colName) {
				return onyoerr.New(onyoerr.BoundKeyMutation, fmt.Sprintf("row %d: %s", rowNum, colName))
			}
			patchSet[colName] = row[idx]
		}

		body, err := yamldoc.ApplyPatch(yamldoc.Empty(), yamldoc.Patch{Set: patchSet, ReplaceScalar: true, CreateIntermediate: true})
		if err != nil {
			return err
		}

		fullPath := path.Join(dir, name)
		if err := tx.Push(ctx, invops.Operation{Kind: invops.NewAsset, Path: fullPath, Body: body}); err != nil {
			return err
		}
	}
	return nil
}
