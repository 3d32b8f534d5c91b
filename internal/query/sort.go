package query

import (
	"sort"
	"strconv"
	"strings"
)

// SortKey is one key of a stable multi-key sort. Key need not be part
// of the output projection (spec §4.7).
type SortKey struct {
	Key        string
	Descending bool
}

// stableSort sorts rows by keys in order, using natural (version-aware)
// ordering for each key's rendered value so "img2" sorts before
// "img10". Later keys break ties among rows equal on earlier keys.
func stableSort(rows []Row, keys []SortKey) {
	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i]
		sort.SliceStable(rows, func(a, b int) bool {
			cmp := naturalCompare(rows[a].sortValues[k.Key], rows[b].sortValues[k.Key])
			if k.Descending {
				return cmp > 0
			}
			return cmp < 0
		})
	}
}

// naturalCompare compares a and b splitting each into runs of digits
// and non-digits, comparing digit runs numerically and non-digit runs
// lexicographically, so "v2" < "v10" instead of the reverse under plain
// byte comparison. No pack library offers a general-purpose natural
// string comparator, so this is hand-rolled.
func naturalCompare(a, b string) int {
	ac, bc := chunk(a), chunk(b)
	for i := 0; i < len(ac) && i < len(bc); i++ {
		if c := compareChunk(ac[i], bc[i]); c != 0 {
			return c
		}
	}
	return len(ac) - len(bc)
}

func compareChunk(a, b string) int {
	an, aErr := strconv.Atoi(a)
	bn, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

func chunk(s string) []string {
	var out []string
	var cur strings.Builder
	var curIsDigit bool
	for i, r := range s {
		isDigit := r >= '0' && r <= '9'
		if i > 0 && isDigit != curIsDigit {
			out = append(out, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
		curIsDigit = isDigit
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
