package fs

import (
	"context"
	"time"

	"github.com/flatfs/flatfs/pkg/errors"
	"github.com/flatfs/flatfs/pkg/types"
)

// GetFileStatus resolves path against the store. Resolution order: the
// root is always a directory; an object at the exact key is a file; a
// slash marker or legacy suffix marker is a directory; any key below the
// prefix implies a directory; otherwise the path does not exist.
func (f *FileSystem) GetFileStatus(ctx context.Context, path string) (st *types.FileStatus, err error) {
	start := time.Now()
	defer func() { f.observe("getFileStatus", start, err) }()

	path, err = f.checkPath("getFileStatus", path)
	if err != nil {
		return nil, err
	}

	key := pathToKey(path)
	if key == "" {
		return dirStatus(path, time.Time{}), nil
	}

	meta, err := f.store.RetrieveMetadata(ctx, key)
	if err != nil {
		return nil, err
	}
	if meta != nil {
		return &types.FileStatus{
			Path:    path,
			Size:    meta.Size,
			ModTime: meta.LastModified,
			IsDir:   false,
		}, nil
	}

	marker, err := f.store.RetrieveMetadata(ctx, key+pathSeparator)
	if err != nil {
		return nil, err
	}
	if marker != nil {
		return dirStatus(path, marker.LastModified), nil
	}

	legacy, err := f.store.RetrieveMetadata(ctx, key+folderSuffix)
	if err != nil {
		return nil, err
	}
	if legacy != nil {
		return dirStatus(path, legacy.LastModified), nil
	}

	listing, err := f.store.List(ctx, key, 1, "", false)
	if err != nil {
		return nil, err
	}
	if len(listing.Files) > 0 || len(listing.CommonPrefixes) > 0 {
		return dirStatus(path, time.Time{}), nil
	}

	return nil, errors.E(errors.KindNotFound, "getFileStatus", path, "no such file or directory")
}

func dirStatus(path string, modTime time.Time) *types.FileStatus {
	return &types.FileStatus{Path: path, ModTime: modTime, IsDir: true}
}

// Mkdirs creates the directory at path along with any missing ancestors,
// root to leaf. An existing directory anywhere on the chain is fine; an
// existing file is not.
func (f *FileSystem) Mkdirs(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { f.observe("mkdirs", start, err) }()

	path, err = f.checkPath("mkdirs", path)
	if err != nil {
		return err
	}

	for _, ancestor := range ancestors(path) {
		if ancestor == pathSeparator {
			continue
		}
		status, err := f.GetFileStatus(ctx, ancestor)
		switch {
		case err == nil && status.IsDir:
			continue
		case err == nil:
			return errors.E(errors.KindAlreadyExists, "mkdirs", ancestor, "path exists as a file")
		case errors.IsNotFound(err):
			if err := f.mkdir(ctx, ancestor); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

// mkdir writes the slash marker for a single directory level.
func (f *FileSystem) mkdir(ctx context.Context, path string) error {
	key := pathToKey(path)
	if key == "" {
		return nil
	}
	f.logger.Debug("creating directory marker", "path", path)
	return f.store.StoreEmptyFile(ctx, key+pathSeparator)
}
