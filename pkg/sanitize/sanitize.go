// Package sanitize turns arbitrary strings into safe path segments.
package sanitize

import (
	"strings"
	"unicode"
)

// MaxLength is the longest name Filename returns, in characters.
const MaxLength = 200

var illegal = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// Filename replaces characters that are illegal in a path segment with an
// underscore, trims surrounding whitespace and periods, and truncates to
// MaxLength characters. Filename(Filename(s)) == Filename(s) and non-ASCII
// characters are left alone.
func Filename(name string) string {
	name = trim(illegal.Replace(name))
	if r := []rune(name); len(r) > MaxLength {
		name = trim(string(r[:MaxLength]))
	}
	return name
}

func trim(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
}
