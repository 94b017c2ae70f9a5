// Package s3 implements the flatfs storage primitive on Amazon S3 and
// S3-compatible services using the AWS SDK v2.
package s3

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/flatfs/flatfs/internal/config"
	"github.com/flatfs/flatfs/internal/store"
	"github.com/flatfs/flatfs/pkg/errors"
	"github.com/flatfs/flatfs/pkg/types"
)

// Store is the S3-backed implementation of store.Store.
type Store struct {
	client   *awss3.Client
	uploader *manager.Uploader
	bucket   string
	logger   *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New builds an S3 store from cfg. Credentials fall back to the SDK default
// chain when no static keys are configured; a custom endpoint with path-style
// addressing supports S3-compatible services.
func New(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 store requires a bucket")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		logger:   logger,
	}, nil
}

func (s *Store) RetrieveMetadata(ctx context.Context, key string) (*types.ObjectMetadata, error) {
	out, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, s.translate("retrieveMetadata", key, err)
	}
	return &types.ObjectMetadata{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ETag:         aws.ToString(out.ETag),
	}, nil
}

func (s *Store) Retrieve(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	var rangeHeader *string
	if length > 0 {
		rangeHeader = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	} else if offset > 0 {
		rangeHeader = aws.String(fmt.Sprintf("bytes=%d-", offset))
	}

	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  rangeHeader,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.New(errors.KindNotFound, "no such object").WithKey(key)
		}
		return nil, s.translate("retrieve", key, err)
	}
	return out.Body, nil
}

func (s *Store) StoreFile(ctx context.Context, key, localFile string, appendTo bool) error {
	return s.StoreFiles(ctx, key, []string{localFile}, appendTo)
}

// StoreFiles streams the ordered block files as a single object upload. S3
// has no native append, so an append preserves the current object by
// streaming it ahead of the new blocks within the same upload.
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
		existing, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		switch {
		case err == nil:
			readers = append(readers, existing.Body)
			closers = append(closers, existing.Body)
		case isNotFound(err):
			// Appending to a missing object degrades to a plain create.
		default:
			return s.translate("storeFiles", key, err)
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

	_, err := s.uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   io.MultiReader(readers...),
	})
	if err != nil {
		return s.translate("storeFiles", key, err)
	}
	return nil
}

func (s *Store) StoreEmptyFile(ctx context.Context, key string) error {
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return s.translate("storeEmptyFile", key, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string, maxKeys int, priorLastKey string, recursive bool) (*types.PartialListing, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(store.ListPrefix(prefix)),
	}
	if maxKeys > 0 {
		input.MaxKeys = aws.Int32(int32(maxKeys))
	}
	if priorLastKey != "" {
		input.StartAfter = aws.String(priorLastKey)
	}
	if !recursive {
		input.Delimiter = aws.String("/")
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, s.translate("list", prefix, err)
	}

	listing := &types.PartialListing{}
	last := ""
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		listing.Files = append(listing.Files, types.ObjectMetadata{
			Key:          key,
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         aws.ToString(obj.ETag),
		})
		if key > last {
			last = key
		}
	}
	for _, cp := range out.CommonPrefixes {
		p := aws.ToString(cp.Prefix)
		listing.CommonPrefixes = append(listing.CommonPrefixes, p)
		if p > last {
			last = p
		}
	}
	if aws.ToBool(out.IsTruncated) {
		listing.PriorLastKey = last
	}
	return listing, nil
}

func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := s.client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + srcKey),
		Key:        aws.String(dstKey),
	})
	if err != nil {
		if isNotFound(err) {
			return errors.New(errors.KindNotFound, "no such object").WithKey(srcKey)
		}
		return s.translate("copy", srcKey, err)
	}
	return nil
}

// Delete removes key. S3's DeleteObject succeeds for absent keys, so an
// existence check runs first to honor the NotFound contract.
func (s *Store) Delete(ctx context.Context, key string) error {
	exists, err := s.DoesObjectExist(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return errors.New(errors.KindNotFound, "no such object").WithKey(key)
	}
	_, err = s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s.translate("delete", key, err)
	}
	return nil
}

func (s *Store) DoesObjectExist(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, s.translate("doesObjectExist", key, err)
	}
	return true, nil
}

func (s *Store) Purge(ctx context.Context, prefix string) error {
	var continuation *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return s.translate("purge", prefix, err)
		}
		for _, obj := range out.Contents {
			_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return s.translate("purge", aws.ToString(obj.Key), err)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			return nil
		}
		continuation = out.NextContinuationToken
	}
}

func (s *Store) Dump(ctx context.Context) ([]types.ObjectMetadata, error) {
	var objects []types.ObjectMetadata
	var continuation *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, s.translate("dump", "", err)
		}
		for _, obj := range out.Contents {
			objects = append(objects, types.ObjectMetadata{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         aws.ToString(obj.ETag),
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			return objects, nil
		}
		continuation = out.NextContinuationToken
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) translate(op, key string, err error) error {
	return &errors.Error{
		Kind:    errors.KindStorageFailure,
		Op:      op,
		Key:     key,
		Message: "s3 request failed",
		Cause:   err,
	}
}

func isNotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	if stderrors.As(err, &noSuchKey) {
		return true
	}
	var notFound *s3types.NotFound
	return stderrors.As(err, &notFound)
}
