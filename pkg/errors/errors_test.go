package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := E(KindNotFound, "getFileStatus", "/a/b", "no such file or directory")
	assert.Contains(t, err.Error(), "getFileStatus")
	assert.Contains(t, err.Error(), "/a/b")
	assert.Contains(t, err.Error(), "no such file or directory")
}

func TestKindMatching(t *testing.T) {
	err := New(KindStorageFailure, "request failed").WithKey("data/x").WithCause(fmt.Errorf("timeout"))

	assert.Equal(t, KindStorageFailure, KindOf(err))
	assert.True(t, IsKind(err, KindStorageFailure))
	assert.False(t, IsKind(err, KindNotFound))
	assert.False(t, IsNotFound(err))
}

func TestWrappedKindMatching(t *testing.T) {
	inner := New(KindNotFound, "no such object")
	wrapped := fmt.Errorf("while listing: %w", inner)

	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := New(KindStorageFailure, "request failed").WithCause(cause)

	assert.True(t, stderrors.Is(err, cause))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(KindStorageFailure, "transient")))
	assert.False(t, Retryable(New(KindNotFound, "gone")))
	assert.False(t, Retryable(New(KindInvalidArgument, "bad path")))
	assert.False(t, Retryable(nil))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(fmt.Errorf("plain")))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))
}
