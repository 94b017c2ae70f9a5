// Package types provides the core data structures shared between the flatfs
// storage layer and the filesystem adapter.
package types

import "time"

// ObjectMetadata describes a single stored object as reported by the
// underlying object store. It is produced fresh on every metadata lookup and
// never cached across calls.
type ObjectMetadata struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// PartialListing is one page of a prefix listing: the file entries, the
// common prefixes folded at the next path-segment level (empty when the
// listing was recursive), and the continuation cursor.
//
// PriorLastKey is the last key consumed while producing this page. It is the
// empty string exactly when no further pages remain; callers chain it into
// the next List call until they see "".
type PartialListing struct {
	Files          []ObjectMetadata
	CommonPrefixes []string
	PriorLastKey   string
}

// Truncated reports whether more pages remain after this one.
func (p *PartialListing) Truncated() bool {
	return p.PriorLastKey != ""
}

// FileStatus is the filesystem-level view of a path: either a file backed by
// an object, or a directory inferred from markers or listing contents.
type FileStatus struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}
