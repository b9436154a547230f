package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "", Truncate("abc", 0))
	// runes, not bytes
	assert.Equal(t, "при", Truncate("привет", 3))
}

func TestTruncateWithEllipsis(t *testing.T) {
	assert.Equal(t, "short", TruncateWithEllipsis("short", 280))
	out := TruncateWithEllipsis(strings.Repeat("a", 300), 280)
	assert.Len(t, out, 280)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Equal(t, "hello...", TruncateWithEllipsis("hello    world", 11))
}

func TestTruncateError(t *testing.T) {
	long := strings.Repeat("x", MaxErrorLength*2)
	assert.Len(t, TruncateError(long), MaxErrorLength)
}

func TestHTMLToText(t *testing.T) {
	in := "<p>First   line</p><p>Second<br/>line</p><ul><li>one</li><li>two</li></ul>"
	assert.Equal(t, "First line\nSecond\nline\n\n- one\n- two", HTMLToText(in))
	assert.Equal(t, "", HTMLToText(""))
}

func TestEndsWithColon(t *testing.T) {
	cases := map[string]bool{
		"Read more:":             true,
		"<b>Read more:</b>  ":    true,
		"Details: 👇":             true,
		"No link here.":          false,
		"Time 10:30 in the news": false,
		"":                       false,
	}
	for in, want := range cases {
		assert.Equal(t, want, EndsWithColon(in), in)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", FirstNonEmpty("", "  ", "b", "c"))
	assert.Equal(t, "", FirstNonEmpty("", ""))
}

func TestPtrDeref(t *testing.T) {
	assert.Nil(t, Ptr(""))
	assert.Equal(t, "x", Deref(Ptr("x")))
	assert.Equal(t, "", Deref(nil))
}
