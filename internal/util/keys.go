package util

import "strings"

// KeySeparator joins the parts of a composite key.
const KeySeparator = ":"

// JoinKey returns a deterministic composite key of the non-empty parts, in order.
func JoinKey(parts ...string) string {
	n := 0
	for _, p := range parts {
		if p != "" {
			n++
		}
	}
	if n == len(parts) {
		return strings.Join(parts, KeySeparator)
	}
	kept := make([]string, 0, n)
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, KeySeparator)
}
