package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	e := NewError(ErrProvider, "upstream exploded").WithProvider("openai")
	assert.Equal(t, "[PROVIDER] upstream exploded", e.Error())

	wrapped := NewError(ErrProvider, "request failed").WithCause(fmt.Errorf("dial tcp: refused"))
	assert.Contains(t, wrapped.Error(), "dial tcp: refused")
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := NewError(ErrSessionNotFound, "no session for agent a1")
	assert.True(t, errors.Is(err, NewError(ErrSessionNotFound, "")))
	assert.False(t, errors.Is(err, NewError(ErrConfiguration, "")))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrUpstreamError, "bad gateway").WithCause(cause)
	assert.ErrorIs(t, err, cause)
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrConfiguration, GetErrorCode(NewError(ErrConfiguration, "x")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}
