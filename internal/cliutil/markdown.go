package cliutil

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
)

// MarkdownRenderMargin is the left margin used for terminal Markdown
// rendering of history and --message output.
const MarkdownRenderMargin = 2

// RenderMarkdown renders content for terminal display, used by onyo
// history's built-in fallback pager (when the resolved history command
// is empty or its executable is not found) and by the --message echo
// shown after a commit.
func RenderMarkdown(content string, width int) (string, error) {
	if width <= 0 {
		width = DefaultTermWidth
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(onyoMarkdownStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return "", err
	}

	rendered = strings.TrimRight(rendered, "\n") + "\n"
	return rendered, nil
}

func onyoMarkdownStyle() ansi.StyleConfig {
	muted := mdStringPtr("8")
	accent := mdStringPtr("#4ADE80")

	return ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				BlockPrefix: "\n",
				BlockSuffix: "\n",
			},
			Margin: mdUintPtr(MarkdownRenderMargin),
		},
		BlockQuote: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: muted},
			Indent:         mdUintPtr(1),
			IndentToken:    mdStringPtr("| "),
		},
		Heading: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				BlockSuffix: "\n",
				Color:       accent,
				Bold:        mdBoolPtr(true),
			},
		},
		H1: ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Prefix: "# "}},
		H2: ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Prefix: "## "}},
		H3: ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Prefix: "### "}},
		Strong: ansi.StylePrimitive{Bold: mdBoolPtr(true)},
		Emph:   ansi.StylePrimitive{Italic: mdBoolPtr(true)},
		Item:   ansi.StylePrimitive{BlockPrefix: "- "},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Prefix: "`", Suffix: "`"},
		},
		CodeBlock: ansi.StyleCodeBlock{
			StyleBlock: ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{}},
		},
	}
}

func mdBoolPtr(v bool) *bool     { return &v }
func mdStringPtr(v string) *string { return &v }
func mdUintPtr(v uint) *uint     { return &v }
