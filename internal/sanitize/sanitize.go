// Package sanitize strips reasoning markup from model output before it is
// spoken or recorded as conversation text.
package sanitize

import "strings"

const (
	openDelim  = "<think>"
	closeDelim = "</think>"
)

// Strip removes every thinking span from text: well-formed <think>...</think>
// pairs including everything between them (multi-line spans too), plus any
// unmatched lone delimiter. The result never contains either delimiter, so
// Strip(Strip(x)) == Strip(x). Empty input is returned unchanged.
func Strip(text string) string {
	for {
		start := strings.Index(text, openDelim)
		if start < 0 {
			break
		}
		rest := text[start+len(openDelim):]
		end := strings.Index(rest, closeDelim)
		if end < 0 {
			// Lone opening delimiter: drop the delimiter, keep the text.
			text = text[:start] + rest
			continue
		}
		text = text[:start] + rest[end+len(closeDelim):]
	}
	// Closing delimiters that appeared before any opening one, or were left
	// over from overlapping spans.
	return strings.ReplaceAll(text, closeDelim, "")
}
