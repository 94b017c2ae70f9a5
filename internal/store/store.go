// Package store defines the flat object-store primitive that the filesystem
// adapter is built on, together with the retry decorator every backend is
// wrapped in. Backends live in subpackages; all of them expose put, get,
// list-by-prefix, copy and delete and nothing more — every filesystem notion
// (directories, rename, recursive delete) is emulated above this interface.
package store

import (
	"context"
	"io"

	"github.com/flatfs/flatfs/pkg/types"
)

// Operation names, used as keys into the retry policy table.
const (
	OpRetrieveMetadata = "retrieveMetadata"
	OpRetrieve         = "retrieve"
	OpStoreFile        = "storeFile"
	OpStoreFiles       = "storeFiles"
	OpStoreEmptyFile   = "storeEmptyFile"
	OpList             = "list"
	OpCopy             = "copy"
	OpDelete           = "delete"
	OpDoesObjectExist  = "doesObjectExist"
	OpPurge            = "purge"
	OpDump             = "dump"
)

// Operations lists every retry-governed operation name.
var Operations = []string{
	OpRetrieveMetadata, OpRetrieve, OpStoreFile, OpStoreFiles,
	OpStoreEmptyFile, OpList, OpCopy, OpDelete, OpDoesObjectExist,
	OpPurge, OpDump,
}

// Store is the storage primitive consumed by the filesystem adapter. All
// calls block until the underlying round trip completes; cancellation is the
// caller's context.
type Store interface {
	// RetrieveMetadata returns the metadata for key, or (nil, nil) when the
	// object does not exist.
	RetrieveMetadata(ctx context.Context, key string) (*types.ObjectMetadata, error)

	// Retrieve opens a byte-range reader over the object. length <= 0 reads
	// to the end of the object.
	Retrieve(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)

	// StoreFile uploads a single local file as the object at key.
	StoreFile(ctx context.Context, key, localFile string, appendTo bool) error

	// StoreFiles uploads the ordered local files as one logical object at
	// key. With appendTo set, the existing object's content is preserved
	// ahead of the new data.
	StoreFiles(ctx context.Context, key string, localFiles []string, appendTo bool) error

	// StoreEmptyFile stores a zero-length object at key. Used for directory
	// markers.
	StoreEmptyFile(ctx context.Context, key string) error

	// List returns one page of keys under prefix. A trailing separator is
	// appended to a non-empty prefix before listing. When recursive is
	// false, keys sharing the next path segment are folded into common
	// prefixes; when true, all keys are returned flat. priorLastKey resumes
	// a previous page; maxKeys bounds the page size.
	List(ctx context.Context, prefix string, maxKeys int, priorLastKey string, recursive bool) (*types.PartialListing, error)

	// Copy duplicates srcKey to dstKey.
	Copy(ctx context.Context, srcKey, dstKey string) error

	// Delete removes the object at key. Fails with a NotFound error when the
	// object does not exist.
	Delete(ctx context.Context, key string) error

	// DoesObjectExist reports whether an object is stored at key.
	DoesObjectExist(ctx context.Context, key string) (bool, error)

	// Purge removes every object under prefix.
	Purge(ctx context.Context, prefix string) error

	// Dump returns the metadata of every stored object, for diagnostics.
	Dump(ctx context.Context) ([]types.ObjectMetadata, error)

	// Close releases backend resources.
	Close() error
}

// ListPrefix normalizes a listing prefix the way every backend must: a
// non-empty prefix that does not already end with the separator gets one
// appended, so "a" lists the contents of directory a rather than every key
// with the string prefix "a".
func ListPrefix(prefix string) string {
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		return prefix + "/"
	}
	return prefix
}
