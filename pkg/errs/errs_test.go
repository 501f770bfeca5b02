package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSample = Conflict("sample_locked")

func TestKindOfWrapped(t *testing.T) {
	wrapped := fmt.Errorf("record payment: %w", errSample)

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindConflict, kind)
	assert.True(t, errors.Is(wrapped, errSample))
	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, "sample_locked", CodeOf(wrapped))
}

func TestKindOfJoined(t *testing.T) {
	joined := errors.Join(errors.New("plain"), NotFound("missing"))
	assert.True(t, IsNotFound(joined))
}

func TestKindOfUnclassified(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
	assert.Equal(t, "", CodeOf(nil))
}

func TestBatchItemErrorKeepsCause(t *testing.T) {
	item := NewBatchItemError("42", "2025-01", fmt.Errorf("generate: %w", errSample))

	assert.Equal(t, "sample_locked", item.Reason)
	assert.True(t, errors.Is(item, errSample))
	assert.Equal(t, "subscriber 42 period 2025-01: sample_locked", item.Error())

	plain := NewBatchItemError("7", "", errors.New("boom"))
	assert.Equal(t, "boom", plain.Reason)
	assert.Equal(t, "subscriber 7: boom", plain.Error())
}
