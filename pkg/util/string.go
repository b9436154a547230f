package util

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxErrorLength bounds every error message that is stored or displayed.
const MaxErrorLength = 1000

var (
	tagRe       = regexp.MustCompile(`<[^>]*>`)
	breakRe     = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockEndRe  = regexp.MustCompile(`(?i)</p>|</div>`)
	listItemRe  = regexp.MustCompile(`(?i)<li>`)
	spacesRe    = regexp.MustCompile(`[ \t]+`)
	blankLineRe = regexp.MustCompile(`\n\s*\n`)
)

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// TruncateWithEllipsis cuts s to max runes, ending with "..." when it had to cut.
func TruncateWithEllipsis(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return Truncate(s, max)
	}
	return strings.TrimRightFunc(Truncate(s, max-3), unicode.IsSpace) + "..."
}

func TruncateError(msg string) string {
	return Truncate(msg, MaxErrorLength)
}

// StripTags removes every HTML tag and trims the result.
func StripTags(html string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(html, ""))
}

// HTMLToText converts announce HTML into plain text, keeping paragraph and
// line breaks.
func HTMLToText(html string) string {
	if html == "" {
		return ""
	}
	s := breakRe.ReplaceAllString(html, "\n")
	s = blockEndRe.ReplaceAllString(s, "\n")
	s = listItemRe.ReplaceAllString(s, "\n- ")
	s = tagRe.ReplaceAllString(s, "")
	s = spacesRe.ReplaceAllString(s, " ")
	s = blankLineRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// EndsWithColon reports whether the plain text of html ends in a colon,
// ignoring trailing whitespace and emoji. Such announces expect a link.
func EndsWithColon(html string) bool {
	plain := StripTags(html)
	idx := strings.LastIndex(plain, ":")
	if idx == -1 {
		return false
	}
	for _, r := range plain[idx+1:] {
		if !unicode.IsSpace(r) && !isEmoji(r) {
			return false
		}
	}
	return true
}

func isEmoji(r rune) bool {
	return r >= 0x1F000 || (r >= 0x2600 && r <= 0x27BF) || r == 0xFE0F || r == 0x200D
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ptr returns a pointer to s, or nil for "".
func Ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
