package store

import (
	"context"
	"io"

	"github.com/flatfs/flatfs/pkg/retry"
	"github.com/flatfs/flatfs/pkg/types"
)

// RetryingStore decorates a Store so that every operation is re-executed
// under the policy registered for its name. Callers above this layer never
// see a transient failure unless the policy's attempts are exhausted, at
// which point the final failure is surfaced unchanged.
type RetryingStore struct {
	inner   Store
	retryer *retry.Retryer
}

var _ Store = (*RetryingStore)(nil)

// WithRetries wraps inner with the given base policy applied to every
// operation name.
func WithRetries(inner Store, policy retry.Policy) *RetryingStore {
	return &RetryingStore{
		inner:   inner,
		retryer: retry.New(policy, Operations, nil),
	}
}

func (s *RetryingStore) RetrieveMetadata(ctx context.Context, key string) (*types.ObjectMetadata, error) {
	var meta *types.ObjectMetadata
	err := s.retryer.Do(ctx, OpRetrieveMetadata, func(ctx context.Context) error {
		var err error
		meta, err = s.inner.RetrieveMetadata(ctx, key)
		return err
	})
	return meta, err
}

func (s *RetryingStore) Retrieve(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := s.retryer.Do(ctx, OpRetrieve, func(ctx context.Context) error {
		var err error
		rc, err = s.inner.Retrieve(ctx, key, offset, length)
		return err
	})
	return rc, err
}

func (s *RetryingStore) StoreFile(ctx context.Context, key, localFile string, appendTo bool) error {
	return s.retryer.Do(ctx, OpStoreFile, func(ctx context.Context) error {
		return s.inner.StoreFile(ctx, key, localFile, appendTo)
	})
}

func (s *RetryingStore) StoreFiles(ctx context.Context, key string, localFiles []string, appendTo bool) error {
	return s.retryer.Do(ctx, OpStoreFiles, func(ctx context.Context) error {
		return s.inner.StoreFiles(ctx, key, localFiles, appendTo)
	})
}

func (s *RetryingStore) StoreEmptyFile(ctx context.Context, key string) error {
	return s.retryer.Do(ctx, OpStoreEmptyFile, func(ctx context.Context) error {
		return s.inner.StoreEmptyFile(ctx, key)
	})
}

func (s *RetryingStore) List(ctx context.Context, prefix string, maxKeys int, priorLastKey string, recursive bool) (*types.PartialListing, error) {
	var listing *types.PartialListing
	err := s.retryer.Do(ctx, OpList, func(ctx context.Context) error {
		var err error
		listing, err = s.inner.List(ctx, prefix, maxKeys, priorLastKey, recursive)
		return err
	})
	return listing, err
}

func (s *RetryingStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	return s.retryer.Do(ctx, OpCopy, func(ctx context.Context) error {
		return s.inner.Copy(ctx, srcKey, dstKey)
	})
}

func (s *RetryingStore) Delete(ctx context.Context, key string) error {
	return s.retryer.Do(ctx, OpDelete, func(ctx context.Context) error {
		return s.inner.Delete(ctx, key)
	})
}

func (s *RetryingStore) DoesObjectExist(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.retryer.Do(ctx, OpDoesObjectExist, func(ctx context.Context) error {
		var err error
		exists, err = s.inner.DoesObjectExist(ctx, key)
		return err
	})
	return exists, err
}

func (s *RetryingStore) Purge(ctx context.Context, prefix string) error {
	return s.retryer.Do(ctx, OpPurge, func(ctx context.Context) error {
		return s.inner.Purge(ctx, prefix)
	})
}

func (s *RetryingStore) Dump(ctx context.Context) ([]types.ObjectMetadata, error) {
	var objects []types.ObjectMetadata
	err := s.retryer.Do(ctx, OpDump, func(ctx context.Context) error {
		var err error
		objects, err = s.inner.Dump(ctx)
		return err
	})
	return objects, err
}

func (s *RetryingStore) Close() error {
	return s.inner.Close()
}
