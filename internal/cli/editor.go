package cli

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

// editDocument writes doc to a temporary file, spawns editor on it
// synchronously (spec §9: "the editor spawn is synchronous by design;
// user confirmation is part of the contract"), and re-parses whatever
// the user saved.
func editDocument(ctx context.Context, editor string, doc *yamldoc.Document) (*yamldoc.Document, error) {
	data, err := yamldoc.Dump(doc)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "onyo-*.yaml")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", editor+" "+shellQuote(tmpPath))
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, onyoerr.Wrap(onyoerr.PluginFailure, "edit", tmpPath, err)
	}

	edited, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, err
	}
	return yamldoc.Load(edited)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
