// Package minio implements the flatfs storage primitive on any
// S3-compatible endpoint through the MinIO client.
package minio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/flatfs/flatfs/internal/config"
	"github.com/flatfs/flatfs/internal/store"
	"github.com/flatfs/flatfs/pkg/errors"
	"github.com/flatfs/flatfs/pkg/types"
)

// Store is the MinIO-backed implementation of store.Store.
type Store struct {
	client *miniogo.Client
	bucket string
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

func New(cfg config.StoreConfig, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio store requires a bucket")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio store requires an endpoint")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Store{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

func (s *Store) RetrieveMetadata(ctx context.Context, key string) (*types.ObjectMetadata, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, translate("retrieveMetadata", key, err)
	}
	return &types.ObjectMetadata{
		Key:          key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ETag:         info.ETag,
	}, nil
}

func (s *Store) Retrieve(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	opts := miniogo.GetObjectOptions{}
	if length > 0 {
		if err := opts.SetRange(offset, offset+length-1); err != nil {
			return nil, translate("retrieve", key, err)
		}
	} else if offset > 0 {
		if err := opts.SetRange(offset, 0); err != nil {
			return nil, translate("retrieve", key, err)
		}
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return nil, translate("retrieve", key, err)
	}
	// GetObject is lazy; a Stat forces the first request so a missing
	// object surfaces here rather than on the first Read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, errors.New(errors.KindNotFound, "no such object").WithKey(key)
		}
		return nil, translate("retrieve", key, err)
	}
	return obj, nil
}

func (s *Store) StoreFile(ctx context.Context, key, localFile string, appendTo bool) error {
	return s.StoreFiles(ctx, key, []string{localFile}, appendTo)
}

func (s *Store) StoreFiles(ctx context.Context, key string, localFiles []string, appendTo bool) error {
	var readers []io.Reader
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				s.logger.Warn("failed to close upload source", "key", key, "error", err)
			}
		}
	}()

	if appendTo {
		existing, err := s.client.GetObject(ctx, s.bucket, key, miniogo.GetObjectOptions{})
		if err != nil {
			return translate("storeFiles", key, err)
		}
		if _, err := existing.Stat(); err != nil {
			existing.Close()
			if !isNotFound(err) {
				return translate("storeFiles", key, err)
			}
		} else {
			readers = append(readers, existing)
			closers = append(closers, existing)
		}
	}

	for _, localFile := range localFiles {
		f, err := os.Open(localFile)
		if err != nil {
			return errors.New(errors.KindStorageFailure, "failed to open block file").WithKey(key).WithCause(err)
		}
		readers = append(readers, f)
		closers = append(closers, f)
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, io.MultiReader(readers...), -1, miniogo.PutObjectOptions{})
	if err != nil {
		return translate("storeFiles", key, err)
	}
	return nil
}

func (s *Store) StoreEmptyFile(ctx context.Context, key string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, strings.NewReader(""), 0, miniogo.PutObjectOptions{})
	if err != nil {
		return translate("storeEmptyFile", key, err)
	}
	return nil
}

// List walks a recursive object listing and folds keys below the first
// nested separator into common prefixes client-side, matching delimiter
// semantics across MinIO server versions.
func (s *Store) List(ctx context.Context, prefix string, maxKeys int, priorLastKey string, recursive bool) (*types.PartialListing, error) {
	eff := store.ListPrefix(prefix)

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := s.client.ListObjects(listCtx, s.bucket, miniogo.ListObjectsOptions{
		Prefix:     eff,
		Recursive:  true,
		StartAfter: priorLastKey,
	})

	listing := &types.PartialListing{}
	seenPrefixes := make(map[string]bool)
	count := 0
	last := ""

	for obj := range objects {
		if obj.Err != nil {
			return nil, translate("list", prefix, obj.Err)
		}
		key := obj.Key
		if key <= priorLastKey {
			continue
		}

		if maxKeys > 0 && count >= maxKeys {
			listing.PriorLastKey = last
			return listing, nil
		}

		if recursive {
			listing.Files = append(listing.Files, types.ObjectMetadata{
				Key:          key,
				Size:         obj.Size,
				LastModified: obj.LastModified,
				ETag:         obj.ETag,
			})
			count++
			last = key
			continue
		}

		rest := strings.TrimPrefix(key, eff)
		if i := strings.Index(rest, "/"); i >= 0 {
			cp := eff + rest[:i+1]
			if !seenPrefixes[cp] {
				seenPrefixes[cp] = true
				listing.CommonPrefixes = append(listing.CommonPrefixes, cp)
				count++
			}
		} else {
			listing.Files = append(listing.Files, types.ObjectMetadata{
				Key:          key,
				Size:         obj.Size,
				LastModified: obj.LastModified,
				ETag:         obj.ETag,
			})
			count++
		}
		last = key
	}

	sort.Strings(listing.CommonPrefixes)
	return listing, nil
}

func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := s.client.CopyObject(ctx,
		miniogo.CopyDestOptions{Bucket: s.bucket, Object: dstKey},
		miniogo.CopySrcOptions{Bucket: s.bucket, Object: srcKey})
	if err != nil {
		if isNotFound(err) {
			return errors.New(errors.KindNotFound, "no such object").WithKey(srcKey)
		}
		return translate("copy", srcKey, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	exists, err := s.DoesObjectExist(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return errors.New(errors.KindNotFound, "no such object").WithKey(key)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return translate("delete", key, err)
	}
	return nil
}

func (s *Store) DoesObjectExist(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, translate("doesObjectExist", key, err)
	}
	return true, nil
}

func (s *Store) Purge(ctx context.Context, prefix string) error {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range s.client.ListObjects(listCtx, s.bucket, miniogo.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return translate("purge", prefix, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, miniogo.RemoveObjectOptions{}); err != nil {
			return translate("purge", obj.Key, err)
		}
	}
	return nil
}

func (s *Store) Dump(ctx context.Context) ([]types.ObjectMetadata, error) {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []types.ObjectMetadata
	for obj := range s.client.ListObjects(listCtx, s.bucket, miniogo.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, translate("dump", "", obj.Err)
		}
		objects = append(objects, types.ObjectMetadata{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
		})
	}
	return objects, nil
}

func (s *Store) Close() error { return nil }

func translate(op, key string, err error) error {
	return &errors.Error{
		Kind:    errors.KindStorageFailure,
		Op:      op,
		Key:     key,
		Message: "minio request failed",
		Cause:   err,
	}
}

func isNotFound(err error) bool {
	resp := miniogo.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == 404
}
