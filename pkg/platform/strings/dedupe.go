// Package strings holds list parsing shared by config and HTTP query parsing.
package strings

import (
	"strings"
)

// SplitList splits comma-separated values and returns the trimmed, non-empty,
// first-seen-unique elements. Each input may itself hold several values, so
// both "a,b" and []string{"a", "b"} yield the same list.
func SplitList(values ...string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
