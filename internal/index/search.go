// Search predicate contract. The predicate language itself is owned by the
// caller: the cache only needs a compiled Matcher.

package index

import (
	"fmt"
	"strings"

	"github.com/tracklab/trove/internal/object"
)

// Matcher is a compiled search predicate over records.
type Matcher interface {
	Match(*object.Record) bool
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(*object.Record) bool

// Match implements Matcher.
func (f MatcherFunc) Match(r *object.Record) bool {
	return f(r)
}

// Compiler turns a search expression into a Matcher. An empty expression
// never reaches the compiler: it means "all records of the type".
type Compiler func(expr string) (Matcher, error)

// CompileSubstring is the default search compiler: case-insensitive
// substring match over the record's ID, tags, attribute keys, and
// stringified attribute values.
func CompileSubstring(expr string) (Matcher, error) {
	needle := strings.ToLower(strings.TrimSpace(expr))
	return MatcherFunc(func(r *object.Record) bool {
		if strings.Contains(strings.ToLower(r.ID.String()), needle) {
			return true
		}
		for _, tag := range r.Tags {
			if strings.Contains(strings.ToLower(tag), needle) {
				return true
			}
		}
		for k, v := range r.Attributes {
			if strings.Contains(strings.ToLower(k), needle) {
				return true
			}
			if strings.Contains(strings.ToLower(fmt.Sprint(v)), needle) {
				return true
			}
		}
		return false
	}), nil
}
