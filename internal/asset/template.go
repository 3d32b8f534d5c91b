// Package asset implements the Asset Model: name templates, the
// reserved-character set, name/content binding, faux-serial generation,
// and the asset-directory variant.
package asset

import (
	"regexp"
	"strings"

	"github.com/onyo-org/onyo/internal/onyoerr"
)

// DefaultNameFormat is onyo.assets.name-format's default value.
const DefaultNameFormat = "{type}_{make}_{model}.{serial}"

// AnchorFileName is the empty marker file placed in every tracked
// directory except the repository root.
const AnchorFileName = ".anchor"

// AssetDirFileName is the reserved name of the file that holds an asset
// directory's content. It is dot-prefixed so it can never collide with a
// legal asset basename (spec §9 Open Question iii).
const AssetDirFileName = ".onyo-asset-dir"

// NameTemplate is a parsed `{field}_{field}.{field}` name format: a
// sequence of literal runs and field placeholders, with exactly one
// "tail" field (the template's last placeholder) carrying the relaxed
// character set used to accommodate manufacturer serials.
type NameTemplate struct {
	raw    string
	tokens []token
	tail   string
}

type token struct {
	literal string // non-empty for a literal run
	field   string // non-empty for a placeholder
}

var fieldRe = regexp.MustCompile(`\{([a-zA-Z0-9_.]+)\}`)

// ParseTemplate parses a name-format string such as
// "{type}_{make}_{model}.{serial}" into a NameTemplate. It fails with
// onyoerr.InvalidAssetName if the format contains no placeholders.
func ParseTemplate(format string) (*NameTemplate, error) {
	locs := fieldRe.FindAllStringSubmatchIndex(format, -1)
	if len(locs) == 0 {
		return nil, onyoerr.New(onyoerr.InvalidAssetName, "name-format has no {field} placeholders: "+format)
	}

	var tokens []token
	pos := 0
	var fields []string
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		if start > pos {
			tokens = append(tokens, token{literal: format[pos:start]})
		}
		field := format[loc[2]:loc[3]]
		tokens = append(tokens, token{field: field})
		fields = append(fields, field)
		pos = end
	}
	if pos < len(format) {
		tokens = append(tokens, token{literal: format[pos:]})
	}

	// The tail field is the template's last placeholder, whatever
	// literal precedes it; spec §4.3: "exactly one placeholder is the
	// 'tail' ... and has the relaxed character set".
	tail := fields[len(fields)-1]
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].field != "" {
			tail = tokens[i].field
			break
		}
		if strings.Contains(tokens[i].literal, ".") {
			break
		}
	}

	return &NameTemplate{raw: format, tokens: tokens, tail: tail}, nil
}

// Fields returns the placeholder names in template order.
func (t *NameTemplate) Fields() []string {
	var out []string
	for _, tk := range t.tokens {
		if tk.field != "" {
			out = append(out, tk.field)
		}
	}
	return out
}

// Tail returns the name of the tail field.
func (t *NameTemplate) Tail() string { return t.tail }

// Render formats values (a map of field -> string) into a name.
// It fails with onyoerr.InvalidAssetName if a required field is
// missing, or if a non-tail field's value contains a reserved character.
func (t *NameTemplate) Render(values map[string]string) (string, error) {
	var b strings.Builder
	for _, tk := range t.tokens {
		if tk.literal != "" {
			b.WriteString(tk.literal)
			continue
		}
		v, ok := values[tk.field]
		if !ok || v == "" {
			return "", onyoerr.New(onyoerr.InvalidAssetName, "missing value for field "+tk.field)
		}
		if tk.field != t.tail {
			if strings.ContainsAny(v, "_.") {
				return "", onyoerr.New(onyoerr.InvalidAssetName, "field "+tk.field+" contains a reserved character (_ or .): "+v)
			}
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// Parse matches name against the template, returning the bound field
// values. Parsing is greedy from the template's literal structure: each
// non-tail field matches `[^_.]+`, the tail matches `.+`. It fails with
// onyoerr.InvalidAssetName if name does not conform.
func (t *NameTemplate) Parse(name string) (map[string]string, error) {
	var pattern strings.Builder
	pattern.WriteString("^")
	for _, tk := range t.tokens {
		if tk.literal != "" {
			pattern.WriteString(regexp.QuoteMeta(tk.literal))
			continue
		}
		if tk.field == t.tail {
			pattern.WriteString("(.+)")
		} else {
			pattern.WriteString("([^_.]+)")
		}
	}
	pattern.WriteString("$")

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, onyoerr.Wrap(onyoerr.InvalidAssetName, "parse", name, err)
	}
	m := re.FindStringSubmatch(name)
	if m == nil {
		return nil, onyoerr.New(onyoerr.InvalidAssetName, name+" does not match name-format "+t.raw)
	}

	out := make(map[string]string)
	i := 1
	for _, tk := range t.tokens {
		if tk.field == "" {
			continue
		}
		out[tk.field] = m[i]
		i++
	}
	return out, nil
}
