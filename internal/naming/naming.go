// Package naming converts source identifiers to the canonical snake_case
// form used throughout the IR.
package naming

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Normalize converts an identifier in camelCase, PascalCase, kebab-case,
// or a mix of those into lowercase snake_case.
//
// Hyphens, spaces and underscores are separators. A separator is inserted
// before an uppercase letter when the previous rune is lowercase or a digit,
// or when the next rune is lowercase, so acronym runs stay together
// ("HTTPServer" becomes "http_server"). Separator runs collapse to one and
// leading/trailing separators are trimmed. Uppercase runes without a
// lowercase mapping are copied as is. Normalize is idempotent.
func Normalize(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	lastSep := true // suppresses leading separators
	sep := func() {
		if !lastSep {
			b.WriteByte('_')
			lastSep = true
		}
	}

	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '_':
			sep()
		case isUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || nextLower {
					sep()
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastSep = false
		default:
			b.WriteRune(r)
			lastSep = false
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// isUpper reports whether r is an uppercase rune that lowercases to another
// rune. Runes such as 'ϓ' stay put, so a second pass sees the same input.
func isUpper(r rune) bool {
	return unicode.IsUpper(r) && unicode.ToLower(r) != r
}

// IsFileName reports whether s can be used as a single file name inside a
// directory. It rejects empty names, "." and "..", and anything containing
// a path separator.
func IsFileName(s string) bool {
	return s != "." && filepath.IsLocal(s) && !strings.ContainsAny(s, `/\`)
}

// Pascal converts an identifier to PascalCase ("lifecycle_rule" becomes
// "LifecycleRule"). Common acronyms are not special-cased.
func Pascal(s string) string {
	parts := strings.Split(Normalize(s), "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// Singularize strips an English plural suffix from the last word of a
// snake_case identifier: "policies" becomes "policy", "addresses" becomes
// "address", "buckets" becomes "bucket". Words ending in "ss", "us" or "is"
// are left alone.
func Singularize(s string) string {
	head, word := "", s
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		head, word = s[:i+1], s[i+1:]
	}
	lower := strings.ToLower(word)
	switch {
	case len(word) <= 2:
	case strings.HasSuffix(lower, "ies") && len(word) > 3:
		word = word[:len(word)-3] + matchCase(word[len(word)-3:], "y")
	case strings.HasSuffix(lower, "sses"), strings.HasSuffix(lower, "xes"),
		strings.HasSuffix(lower, "ches"), strings.HasSuffix(lower, "shes"):
		word = word[:len(word)-2]
	case strings.HasSuffix(lower, "ss"), strings.HasSuffix(lower, "us"), strings.HasSuffix(lower, "is"):
	case strings.HasSuffix(lower, "s"):
		word = word[:len(word)-1]
	}
	return head + word
}

func matchCase(ref, repl string) string {
	if ref == strings.ToUpper(ref) {
		return strings.ToUpper(repl)
	}
	return repl
}
