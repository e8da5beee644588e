package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("send: %w", ErrEmptyMessage)

	assert.True(t, errors.Is(wrapped, ErrEmptyMessage))
	assert.False(t, errors.Is(wrapped, ErrSelfRequest))
	assert.Equal(t, CodeInvalidArgument, CodeOf(wrapped))
	assert.Equal(t, "message content cannot be empty", MessageOf(wrapped))
}

func TestAppError_CauseIsKept(t *testing.T) {
	cause := errors.New("broken pipe")
	err := Transport(cause)

	assert.Equal(t, CodeUnavailable, CodeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "transport failure: broken pipe", err.Error())
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("boom")))
	assert.Equal(t, "internal error", MessageOf(errors.New("boom")))
}
