// Package sanitize turns scraped display labels into names that are safe to
// use as file and directory names inside the staging area.
package sanitize

import (
	"net/url"
	"path"
	"strings"
)

// forbidden are replaced by a space; they either separate path components or
// are rejected by common filesystems.
var forbidden = strings.NewReplacer("/", " ", "?", " ", "*", " ")

// Label is the default sanitizer used for group and attachment names.
// Non-printable characters are dropped, the text is cut before its first
// newline, forbidden characters become spaces and the result is trimmed.
func Label(raw string) string {
	text := Printable(raw)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(forbidden.Replace(text))
}

// EntryLabel is the sanitizer used for listing rows. Listing labels look like
// "CODE - Category\nTitle", so the text is first reduced to what follows the
// last hyphen and then to what follows the last newline before Label runs.
func EntryLabel(raw string) string {
	text := raw
	if i := strings.LastIndexByte(text, '-'); i >= 0 {
		text = strings.TrimSpace(text[i+1:])
	}
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[i+1:])
	}
	return Label(text)
}

// Usable reports whether name can stand as a single path segment inside
// the staging area. "." and ".." resolve to the directory or its parent.
func Usable(name string) bool {
	return name != "" && name != "." && name != ".."
}

// Printable keeps printable ASCII and the ASCII whitespace characters.
func Printable(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if isPrintable(raw[i]) {
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

func isPrintable(c byte) bool {
	switch {
	case c >= 0x20 && c <= 0x7e:
		return true
	case c == '\t', c == '\n', c == '\r', c == '\v', c == '\f':
		return true
	default:
		return false
	}
}

// FallbackName derives a file name from the last path segment of address.
// It is used when a link's label sanitizes to the empty string.
func FallbackName(address string) string {
	u, err := url.Parse(address)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	if name := Label(base); Usable(name) {
		return name
	}
	return ""
}
