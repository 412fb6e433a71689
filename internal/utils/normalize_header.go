package utils

import (
	"strings"
	"unicode"
)

// NormalizeHeader reduces a column name to lowercase letters and digits so that
// "Tree ID", "tree_id" and "TreeId" compare equal.
func NormalizeHeader(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
