// Package sanitize cleans user-provided text before it is stored, diffed or
// rendered into notification emails.
package sanitize

import (
	"html"
	"regexp"
	"strings"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// StripHTML removes HTML tags and decodes entities. Tags hidden behind
// entities are stripped after decoding.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = html.UnescapeString(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text strips HTML and collapses whitespace runs, so a note that only differs
// in spacing does not register as a change.
func Text(s string) string {
	return whitespaceRegex.ReplaceAllString(StripHTML(s), " ")
}

// TextPtr is Text for optional fields.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}

// Code normalizes identifiers such as callsigns, tail numbers and ICAO codes.
func Code(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// CodePtr is Code for optional fields.
func CodePtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Code(*s)
	return &result
}
