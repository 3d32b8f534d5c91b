package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/onyo-org/onyo/internal/cliutil"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/txn"
)

// finishTransaction renders the pending diff, asks for confirmation
// unless -y/-q suppress it, and commits. It is the shared tail end of
// every write subcommand (new, edit, mv, mkdir, rm, rmdir, set, unset):
// spec §6's "0 on commit" / "1 on user abort" exit semantics, and
// §4.6's "an operation batch that reduces to a no-op produces none"
// (Commit returns "" with no error in that case).
func finishTransaction(ctx context.Context, tx *txn.Transaction) error {
	if len(tx.Operations()) == 0 {
		return nil
	}

	if clean, err := repo.IsClean(ctx); err != nil {
		return err
	} else if !clean {
		tx.Abandon()
		return onyoerr.New(onyoerr.DirtyWorkingTree, "")
	}

	if !quiet() {
		fmt.Print(tx.RenderDiff(ctx, display.Color(quiet())))
	}

	if cliutil.ShouldPrompt(yes() || quiet()) {
		if !cliutil.Confirm(os.Stdin, "Commit changes?") {
			tx.Abandon()
			return onyoerr.Sentinel(onyoerr.UserAbort)
		}
	}

	when, msgs, noAuto := commitOptions()
	id, err := tx.Commit(ctx, txn.CommitOptions{
		Identity:       identity(),
		When:           when,
		UserParagraphs: msgs,
		NoAutoMessage:  noAuto,
	})
	if err != nil {
		return err
	}
	if id != "" && !quiet() {
		fmt.Println(id)
		if len(msgs) > 0 {
			echoUserMessage(msgs)
		}
	}
	return nil
}

// echoUserMessage renders the user's -m paragraphs as Markdown and
// prints them after the commit id, so a multi-paragraph message with
// headings or lists reads back the way it will in onyo history's
// glamour-rendered log instead of as raw text.
func echoUserMessage(paragraphs []string) {
	rendered, err := cliutil.RenderMarkdown(strings.Join(paragraphs, "\n\n"), display.TermWidth)
	if err != nil {
		fmt.Println(strings.Join(paragraphs, "\n\n"))
		return
	}
	fmt.Print(rendered)
}
