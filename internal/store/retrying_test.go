package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatfs/flatfs/pkg/errors"
	"github.com/flatfs/flatfs/pkg/retry"
	"github.com/flatfs/flatfs/pkg/types"
)

// flakyStore fails a configurable number of times before succeeding. Only
// the methods under test are implemented.
type flakyStore struct {
	Store
	failures  int
	calls     int
	failureFn func() error
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	f.calls++
	if f.calls <= f.failures {
		return f.failureFn()
	}
	return nil
}

func (f *flakyStore) RetrieveMetadata(ctx context.Context, key string) (*types.ObjectMetadata, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.failureFn()
	}
	return &types.ObjectMetadata{Key: key}, nil
}

func storageFailure() error {
	return errors.New(errors.KindStorageFailure, "transient")
}

func TestRetryingStoreRetriesTransientFailures(t *testing.T) {
	inner := &flakyStore{failures: 2, failureFn: storageFailure}
	s := WithRetries(inner, retry.Policy{MaxAttempts: 4, Delay: time.Millisecond})

	require.NoError(t, s.Delete(context.Background(), "k"))
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingStoreExhaustsAttempts(t *testing.T) {
	inner := &flakyStore{failures: 10, failureFn: storageFailure}
	s := WithRetries(inner, retry.Policy{MaxAttempts: 4, Delay: time.Millisecond})

	err := s.Delete(context.Background(), "k")
	assert.True(t, errors.IsKind(err, errors.KindStorageFailure))
	assert.Equal(t, 4, inner.calls)
}

func TestRetryingStoreDoesNotRetryStructuralFailures(t *testing.T) {
	inner := &flakyStore{failures: 10, failureFn: func() error {
		return errors.New(errors.KindNotFound, "no such object")
	}}
	s := WithRetries(inner, retry.Policy{MaxAttempts: 4, Delay: time.Millisecond})

	err := s.Delete(context.Background(), "k")
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingStorePassesResultsThrough(t *testing.T) {
	inner := &flakyStore{failures: 1, failureFn: storageFailure}
	s := WithRetries(inner, retry.Policy{MaxAttempts: 4, Delay: time.Millisecond})

	meta, err := s.RetrieveMetadata(context.Background(), "data/x")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "data/x", meta.Key)
}

func TestListPrefix(t *testing.T) {
	assert.Equal(t, "", ListPrefix(""))
	assert.Equal(t, "a/", ListPrefix("a"))
	assert.Equal(t, "a/b/", ListPrefix("a/b"))
	assert.Equal(t, "a/b/", ListPrefix("a/b/"))
}
