package errors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkSurvivesWrapping(t *testing.T) {
	err := Validation("no main recipe for project %s", "news")
	err = Wrap(err, "schedule")
	assert.True(t, IsValidation(err))
	assert.False(t, IsStaleData(err))
	assert.Contains(t, err.Error(), "no main recipe for project news")
}

func TestStorageKeepsCause(t *testing.T) {
	assert.Nil(t, Storage(nil, "update"))

	cause := New("disk full")
	err := Storage(cause, "update job")
	assert.True(t, Is(err, ErrStorage))
	assert.True(t, Is(err, cause))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "already processed", UserMessage(Wrap(Mark(New("0 rows"), ErrStaleData), "approve")))
	assert.Equal(t, "platform not configured", UserMessage(Configuration("missing vk token")))

	long := New(strings.Repeat("e", 5000))
	assert.Len(t, UserMessage(long), 1000)
}

func TestSecondaryErrorKeepsPrimaryCategory(t *testing.T) {
	gen := Mark(New("llm down"), ErrGeneration)
	err := WithSecondaryError(Storage(New("conn reset"), "rollback decision"), gen)
	assert.True(t, Is(err, ErrStorage))
	assert.Contains(t, err.Error(), "rollback decision")
}
