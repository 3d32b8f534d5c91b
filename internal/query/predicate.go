package query

import (
	"regexp"
	"strings"

	"github.com/onyo-org/onyo/internal/onyoerr"
)

// Predicate is a parsed `key=regex` (or `key!=regex`, supplemented from
// the original source's richer filter grammar) match condition. regex
// is unanchored: it matches if any substring of the rendered value
// matches.
type Predicate struct {
	Key    string
	Negate bool
	re     *regexp.Regexp
}

// ParsePredicate parses a single match argument such as "type=laptop"
// or "serial!=faux.*". It fails with onyoerr.InvalidAssetName if arg
// has no recognised operator or the pattern does not compile.
func ParsePredicate(arg string) (Predicate, error) {
	op := "="
	idx := strings.Index(arg, "!=")
	negate := false
	if idx >= 0 {
		op = "!="
		negate = true
	} else {
		idx = strings.Index(arg, "=")
		if idx < 0 {
			return Predicate{}, onyoerr.New(onyoerr.InvalidAssetName, "match predicate must be key=regex: "+arg)
		}
	}
	if idx == 0 {
		return Predicate{}, onyoerr.New(onyoerr.InvalidAssetName, "match predicate has no key: "+arg)
	}

	key := arg[:idx]
	pattern := arg[idx+len(op):]
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Predicate{}, onyoerr.Wrap(onyoerr.InvalidAssetName, "match", arg, err)
	}
	return Predicate{Key: key, Negate: negate, re: re}, nil
}

// Match reports whether rendered (the render-time token for p.Key, e.g.
// a scalar, "[unset]", "[dict]", or "[list]") satisfies the predicate.
func (p Predicate) Match(rendered string) bool {
	matched := p.re.MatchString(rendered)
	if p.Negate {
		return !matched
	}
	return matched
}
