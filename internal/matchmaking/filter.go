// internal/matchmaking/filter.go
package matchmaking

import (
	"strconv"

	"github.com/lanlobby/lanlobby/internal/lobby"
)

// Comparison is the operator of a search criterion. Operators other than
// Equal are accepted but do not affect the include/exclude outcome.
type Comparison int

const (
	CmpEqualOrLess Comparison = iota - 2
	CmpLess
	CmpEqual
	CmpGreater
	CmpEqualOrGreater
	CmpNotEqual
)

// Criterion is one search filter over lobby metadata: a string or numeric
// match against a key, looked up case-insensitively.
type Criterion struct {
	Key         string
	StringValue string
	IntValue    int
	Numeric     bool
	Op          Comparison
}

// matches evaluates one criterion against a lobby's metadata.
func (c Criterion) matches(values lobby.Metadata) bool {
	raw, present := values.Lookup(c.Key)
	if !present {
		// A lobby missing the key never matches an Equal filter.
		return c.Op != CmpEqual
	}

	if !c.Numeric {
		// Equal requires an exact string match; the key lookup alone is
		// case-insensitive.
		if c.Op == CmpEqual {
			return raw == c.StringValue
		}
		return true
	}

	// Empty string parses as 0; non-numeric content is a parse failure and
	// excludes the lobby outright.
	n := 0
	if raw != "" {
		parsed, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return false
		}
		n = int(parsed)
	}
	if c.Op == CmpEqual {
		return n == c.IntValue
	}
	return true
}

// matchesAll reports whether a lobby passes every criterion.
func matchesAll(l *lobby.Lobby, criteria []Criterion) bool {
	for _, c := range criteria {
		if !c.matches(l.Values) {
			return false
		}
	}
	return true
}
