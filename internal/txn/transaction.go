// Package txn is the Transaction Engine: the component that
// accumulates Operations against a copy-on-write Overlay, renders a
// diff for approval, and on commit flushes the overlay to disk and git
// in a single observable step.
package txn

import (
	"context"

	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/gitrepo"
	"github.com/onyo-org/onyo/internal/invops"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/repoview"
)

// State is one of the Transaction's lifecycle states.
type State int

const (
	Open State = iota
	Rejected
	Committed
	Abandoned
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Rejected:
		return "rejected"
	case Committed:
		return "committed"
	case Abandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Transaction is an ordered list of Operations plus their derived
// Overlay, held against a single Repository View.
type Transaction struct {
	repo *gitrepo.Repo
	view *repoview.View
	tmpl *asset.NameTemplate

	state State
	ops   []invops.Operation
	ov    *invops.Overlay

	rejectedOp  *invops.Operation
	rejectedErr error
}

// New opens a Transaction against view, using tmpl to parse and render
// bound fields for any asset it touches.
func New(repo *gitrepo.Repo, view *repoview.View, tmpl *asset.NameTemplate) *Transaction {
	return &Transaction{
		repo:  repo,
		view:  view,
		tmpl:  tmpl,
		state: Open,
		ov:    invops.NewOverlay(view),
	}
}

// State returns the Transaction's current lifecycle state.
func (t *Transaction) State() State { return t.state }

// Operations returns the operations successfully pushed so far, in
// push order.
func (t *Transaction) Operations() []invops.Operation {
	out := make([]invops.Operation, len(t.ops))
	copy(out, t.ops)
	return out
}

// Asset returns the overlay's current state for path — the asset as it
// stands after every operation pushed so far, or nil if path is
// untouched by this Transaction. Used by commands that need to inspect
// or re-edit a just-pushed asset's body before commit (e.g. `new -e`).
func (t *Transaction) Asset(path string) *asset.Asset {
	return t.ov.Asset(path)
}

// Rejection returns the operation and error that caused Rejected state,
// or (nil, nil) if the Transaction was never rejected.
func (t *Transaction) Rejection() (*invops.Operation, error) {
	return t.rejectedOp, t.rejectedErr
}

// needsSeed reports whether op reads or rewrites an asset that may
// already exist outside this Transaction's overlay, in which case its
// current body must be loaded before Apply runs.
func needsSeed(kind invops.Kind) bool {
	switch kind {
	case invops.ModifyAsset, invops.RenameAsset, invops.MoveAsset, invops.ConvertToAssetDir, invops.ConvertFromAssetDir:
		return true
	default:
		return false
	}
}

// Push validates op against the Transaction's overlay-so-far and
// either appends it (state stays Open) or rejects it: state becomes
// Rejected with the offending operation retained for reporting via
// Rejection, then immediately Abandoned, since a rejected Transaction
// can never be pushed to or committed again (spec §4.6 state machine).
func (t *Transaction) Push(ctx context.Context, op invops.Operation) error {
	if t.state != Open {
		return onyoerr.New(onyoerr.UserAbort, "push on a "+t.state.String()+" transaction")
	}

	if needsSeed(op.Kind) && t.ov.Asset(op.Path) == nil && t.view.IsAsset(op.Path) {
		doc, err := t.view.Document(ctx, op.Path, "")
		if err != nil {
			t.reject(&op, err)
			return err
		}
		t.ov.Seed(&asset.Asset{
			Dir:              parentDir(op.Path),
			Name:             baseNameOf(op.Path),
			IsAssetDirectory: t.view.IsAssetDirectory(op.Path),
			Body:             doc,
		})
	}

	clone := t.ov.Clone()
	if err := invops.Apply(clone, op, t.tmpl); err != nil {
		t.reject(&op, err)
		return err
	}

	t.ov = clone
	t.ops = append(t.ops, op)
	return nil
}

func (t *Transaction) reject(op *invops.Operation, err error) {
	t.rejectedOp = op
	t.rejectedErr = err
	t.state = Rejected
	t.state = Abandoned
}

// Abandon discards the Transaction without touching disk or git. It is
// always side-effect-free, regardless of how many operations were
// pushed (spec §5: "before the engine's commit step, abandoning is
// side-effect-free").
func (t *Transaction) Abandon() {
	if t.state == Open {
		t.state = Abandoned
	}
}

func parentDir(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i]
		}
	}
	return ""
}

func baseNameOf(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}
