// Package fs presents a hierarchical filesystem over a flat object store.
// Paths map to keys, directories exist as zero-byte marker objects or as
// implied prefixes, and multi-object operations are composed from the
// store's primitives.
package fs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flatfs/flatfs/internal/config"
	"github.com/flatfs/flatfs/internal/metrics"
	"github.com/flatfs/flatfs/internal/store"
	"github.com/flatfs/flatfs/pkg/errors"
	"github.com/flatfs/flatfs/pkg/types"
)

// FileSystem implements hierarchical semantics over a store.Store.
type FileSystem struct {
	store   store.Store
	logger  *slog.Logger
	metrics *metrics.Collector

	scheme           string
	blockSize        int64
	readBufferSize   int64
	algorithmVersion int
	tempDir          string

	mu         sync.Mutex
	workingDir string
}

// New validates the buffer configuration and builds a filesystem on st.
// An oversized read buffer is clamped with a warning; an unknown reader
// algorithm version is a hard error.
func New(st store.Store, cfg *config.Configuration, logger *slog.Logger, collector *metrics.Collector) (*FileSystem, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.NewDefault()
	}

	version := cfg.Buffer.ReaderAlgorithmVersion
	if version != 1 && version != 2 {
		return nil, errors.New(errors.KindUnsupportedConfiguration,
			"unsupported reader algorithm version")
	}

	readBuffer := cfg.Buffer.ReadBufferSize
	if readBuffer <= 0 {
		readBuffer = config.DefaultReadBufferSize
	}
	if readBuffer > config.MaxReadBufferSize {
		logger.Warn("read buffer size exceeds maximum, clamping",
			"configured", readBuffer, "max", config.MaxReadBufferSize)
		readBuffer = config.MaxReadBufferSize
	}

	blockSize := cfg.Buffer.BlockSize
	if blockSize <= 0 {
		blockSize = config.DefaultBlockSize
	}

	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "flatfs"
	}

	return &FileSystem{
		store:            st,
		logger:           logger,
		metrics:          collector,
		scheme:           scheme,
		blockSize:        blockSize,
		readBufferSize:   int64(readBuffer),
		algorithmVersion: version,
		tempDir:          cfg.Buffer.TempDir,
		workingDir:       pathSeparator,
	}, nil
}

// Scheme returns the URI scheme this filesystem answers to.
func (f *FileSystem) Scheme() string { return f.scheme }

// Close releases the underlying store.
func (f *FileSystem) Close() error { return f.store.Close() }

// WorkingDirectory returns the current working directory.
func (f *FileSystem) WorkingDirectory() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.workingDir
}

// SetWorkingDirectory changes the working directory. The path must be
// absolute; existence is not checked.
func (f *FileSystem) SetWorkingDirectory(path string) error {
	if !isAbsolute(path) {
		return errors.E(errors.KindInvalidArgument, "setWorkingDirectory", path, "path must be absolute")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workingDir = normalizePath(path)
	return nil
}

// checkPath rejects relative paths before any store traffic happens.
func (f *FileSystem) checkPath(op, path string) (string, error) {
	if !isAbsolute(path) {
		return "", errors.E(errors.KindInvalidArgument, op, path, "path must be absolute")
	}
	return normalizePath(path), nil
}

func (f *FileSystem) observe(op string, start time.Time, err error) {
	f.metrics.ObserveOperation(op, time.Since(start), err)
}

// Create opens a new file for writing. An existing directory at path is
// always an error; an existing file is an error unless overwrite is set.
func (f *FileSystem) Create(ctx context.Context, path string, overwrite bool) (w *Writer, err error) {
	start := time.Now()
	defer func() { f.observe("create", start, err) }()

	path, err = f.checkPath("create", path)
	if err != nil {
		return nil, err
	}

	status, err := f.GetFileStatus(ctx, path)
	switch {
	case err == nil && status.IsDir:
		return nil, errors.E(errors.KindIsADirectory, "create", path, "path is a directory")
	case err == nil && !overwrite:
		return nil, errors.E(errors.KindAlreadyExists, "create", path, "file already exists")
	case err != nil && !errors.IsNotFound(err):
		return nil, err
	}

	f.logger.Debug("creating file", "path", path)
	return f.newWriter(ctx, path, false), nil
}

// Append opens path for appending. A missing file is created on close;
// appending to a directory is an error.
func (f *FileSystem) Append(ctx context.Context, path string) (w *Writer, err error) {
	start := time.Now()
	defer func() { f.observe("append", start, err) }()

	path, err = f.checkPath("append", path)
	if err != nil {
		return nil, err
	}

	status, err := f.GetFileStatus(ctx, path)
	switch {
	case err == nil && status.IsDir:
		return nil, errors.E(errors.KindIsADirectory, "append", path, "path is a directory")
	case err != nil && !errors.IsNotFound(err):
		return nil, err
	}

	f.logger.Debug("appending to file", "path", path)
	return f.newWriter(ctx, path, true), nil
}

// Open returns a positioned reader over the file at path.
func (f *FileSystem) Open(ctx context.Context, path string) (r *Reader, err error) {
	start := time.Now()
	defer func() { f.observe("open", start, err) }()

	path, err = f.checkPath("open", path)
	if err != nil {
		return nil, err
	}

	status, err := f.GetFileStatus(ctx, path)
	if err != nil {
		return nil, err
	}
	if status.IsDir {
		return nil, errors.E(errors.KindIsADirectory, "open", path, "path is a directory")
	}

	return f.newReader(ctx, pathToKey(path), status.Size), nil
}

// Delete removes path. A missing path returns false without error; a
// non-empty directory requires recursive. The parent directory is
// re-materialized afterwards so it does not vanish with its last child.
func (f *FileSystem) Delete(ctx context.Context, path string, recursive bool) (deleted bool, err error) {
	start := time.Now()
	defer func() { f.observe("delete", start, err) }()

	path, err = f.checkPath("delete", path)
	if err != nil {
		return false, err
	}

	status, err := f.GetFileStatus(ctx, path)
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	key := pathToKey(path)

	if !status.IsDir {
		f.logger.Debug("deleting file", "path", path)
		// Keep the parent visible once its last child is gone.
		if err := f.createParent(ctx, path); err != nil {
			return false, err
		}
		if err := f.store.Delete(ctx, key); err != nil && !errors.IsNotFound(err) {
			return false, err
		}
		return true, nil
	}

	empty, err := f.isDirEmpty(ctx, key)
	if err != nil {
		return false, err
	}
	if !empty && !recursive {
		return false, errors.E(errors.KindDirectoryNotEmpty, "delete", path, "directory is not empty")
	}

	f.logger.Debug("deleting directory", "path", path, "recursive", recursive)
	if path != pathSeparator {
		if err := f.createParent(ctx, path); err != nil {
			return false, err
		}
	}
	if err := f.deleteAllUnder(ctx, key); err != nil {
		return false, err
	}

	// Markers for the directory itself. The slash marker lives under the
	// prefix and is removed above; the legacy marker is a sibling key.
	if key != "" {
		for _, marker := range []string{key + pathSeparator, key + folderSuffix} {
			if err := f.store.Delete(ctx, marker); err != nil && !errors.IsNotFound(err) {
				return false, err
			}
		}
	}
	return true, nil
}

// isDirEmpty reports whether the directory at key has any entry besides
// its own marker.
func (f *FileSystem) isDirEmpty(ctx context.Context, key string) (bool, error) {
	listing, err := f.store.List(ctx, key, 2, "", true)
	if err != nil {
		return false, err
	}
	marker := store.ListPrefix(key)
	for _, obj := range listing.Files {
		if obj.Key != marker {
			return false, nil
		}
	}
	return listing.PriorLastKey == "", nil
}

// deleteAllUnder removes every object below key, marker included.
func (f *FileSystem) deleteAllUnder(ctx context.Context, key string) error {
	for {
		listing, err := f.store.List(ctx, key, maxListingKeys, "", true)
		if err != nil {
			return err
		}
		if len(listing.Files) == 0 {
			return nil
		}
		for _, obj := range listing.Files {
			if err := f.store.Delete(ctx, obj.Key); err != nil && !errors.IsNotFound(err) {
				return err
			}
		}
		if listing.PriorLastKey == "" && len(listing.Files) < maxListingKeys {
			return nil
		}
	}
}

// createParent ensures the parent directory of path survives as an
// explicit marker once path stops implying it.
func (f *FileSystem) createParent(ctx context.Context, path string) error {
	parent := parentPath(path)
	if parent == pathSeparator {
		return nil
	}
	return f.mkdir(ctx, parent)
}

// Rename moves src to dst by copying every object and deleting the
// originals. The move is not atomic; a failure can leave both trees
// partially populated. Precondition violations return false, nil.
func (f *FileSystem) Rename(ctx context.Context, src, dst string) (renamed bool, err error) {
	start := time.Now()
	defer func() { f.observe("rename", start, err) }()

	src, err = f.checkPath("rename", src)
	if err != nil {
		return false, err
	}
	dst, err = f.checkPath("rename", dst)
	if err != nil {
		return false, err
	}

	if src == pathSeparator {
		f.logger.Debug("rename rejected: source is root")
		return false, nil
	}

	srcStatus, err := f.GetFileStatus(ctx, src)
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	dstStatus, err := f.GetFileStatus(ctx, dst)
	switch {
	case err == nil && !dstStatus.IsDir:
		f.logger.Debug("rename rejected: destination file exists", "dst", dst)
		return false, nil
	case err == nil && dstStatus.IsDir:
		// Renaming into a directory targets a child named after the source.
		dst = normalizePath(dst+pathSeparator+baseName(src))
		if _, err := f.GetFileStatus(ctx, dst); err == nil {
			f.logger.Debug("rename rejected: target inside destination exists", "dst", dst)
			return false, nil
		} else if !errors.IsNotFound(err) {
			return false, err
		}
	case errors.IsNotFound(err):
		parent, perr := f.GetFileStatus(ctx, parentPath(dst))
		if perr != nil {
			if errors.IsNotFound(perr) {
				return false, nil
			}
			return false, perr
		}
		if !parent.IsDir {
			return false, nil
		}
	default:
		return false, err
	}

	if src == dst || isDescendant(src, dst) {
		return false, nil
	}

	srcKey := pathToKey(src)
	dstKey := pathToKey(dst)

	if !srcStatus.IsDir {
		f.logger.Debug("renaming file", "src", src, "dst", dst)
		if err := f.store.Copy(ctx, srcKey, dstKey); err != nil {
			return false, err
		}
		if err := f.store.Delete(ctx, srcKey); err != nil && !errors.IsNotFound(err) {
			return false, err
		}
	} else {
		f.logger.Debug("renaming directory", "src", src, "dst", dst)
		if err := f.mkdir(ctx, dst); err != nil {
			return false, err
		}
		if err := f.renameTree(ctx, srcKey, dstKey); err != nil {
			return false, err
		}
		for _, marker := range []string{srcKey + pathSeparator, srcKey + folderSuffix} {
			if err := f.store.Delete(ctx, marker); err != nil && !errors.IsNotFound(err) {
				return false, err
			}
		}
	}

	if err := f.createParent(ctx, src); err != nil {
		return false, err
	}
	return true, nil
}

// renameTree copies then deletes every object below srcKey.
func (f *FileSystem) renameTree(ctx context.Context, srcKey, dstKey string) error {
	srcPrefix := store.ListPrefix(srcKey)
	dstPrefix := store.ListPrefix(dstKey)

	var keys []string
	err := f.forEachPage(ctx, srcKey, true, func(listing *types.PartialListing) error {
		for _, obj := range listing.Files {
			keys = append(keys, obj.Key)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, key := range keys {
		target := dstPrefix + key[len(srcPrefix):]
		if err := f.store.Copy(ctx, key, target); err != nil {
			return err
		}
	}
	for _, key := range keys {
		if err := f.store.Delete(ctx, key); err != nil && !errors.IsNotFound(err) {
			return err
		}
	}
	return nil
}
