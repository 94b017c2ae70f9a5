package fs

import (
	"context"
	"sort"
	"time"

	"github.com/flatfs/flatfs/internal/store"
	"github.com/flatfs/flatfs/pkg/types"
)

// forEachPage drives the store's pagination: pages of up to
// maxListingKeys are fetched until the continuation key comes back empty.
func (f *FileSystem) forEachPage(ctx context.Context, prefix string, recursive bool, fn func(*types.PartialListing) error) error {
	priorLastKey := ""
	for {
		listing, err := f.store.List(ctx, prefix, maxListingKeys, priorLastKey, recursive)
		if err != nil {
			return err
		}
		if err := fn(listing); err != nil {
			return err
		}
		if listing.PriorLastKey == "" {
			return nil
		}
		priorLastKey = listing.PriorLastKey
	}
}

// ListStatus returns the entries directly under path, sorted by path.
// Listing a file returns that file's own status. Marker objects and
// common prefixes that name the same directory are merged.
func (f *FileSystem) ListStatus(ctx context.Context, path string) (statuses []types.FileStatus, err error) {
	start := time.Now()
	defer func() { f.observe("listStatus", start, err) }()

	path, err = f.checkPath("listStatus", path)
	if err != nil {
		return nil, err
	}

	status, err := f.GetFileStatus(ctx, path)
	if err != nil {
		return nil, err
	}
	if !status.IsDir {
		return []types.FileStatus{*status}, nil
	}

	key := pathToKey(path)
	selfMarker := store.ListPrefix(key)

	entries := make(map[string]types.FileStatus)
	err = f.forEachPage(ctx, key, false, func(listing *types.PartialListing) error {
		for _, obj := range listing.Files {
			if obj.Key == selfMarker {
				continue
			}
			entryPath := keyToPath(obj.Key)
			if isDirKey(obj.Key) {
				if _, ok := entries[entryPath]; !ok {
					entries[entryPath] = *dirStatus(entryPath, obj.LastModified)
				}
				continue
			}
			entries[entryPath] = types.FileStatus{
				Path:    entryPath,
				Size:    obj.Size,
				ModTime: obj.LastModified,
				IsDir:   false,
			}
		}
		for _, cp := range listing.CommonPrefixes {
			entryPath := keyToPath(cp)
			if _, ok := entries[entryPath]; !ok {
				entries[entryPath] = *dirStatus(entryPath, time.Time{})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	statuses = make([]types.FileStatus, 0, len(entries))
	for _, st := range entries {
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Path < statuses[j].Path })
	return statuses, nil
}

// isDirKey reports whether key is a directory marker of either flavor.
func isDirKey(key string) bool {
	if key == "" {
		return false
	}
	return key[len(key)-1] == '/' || hasFolderSuffix(key)
}

func hasFolderSuffix(key string) bool {
	return len(key) >= len(folderSuffix) && key[len(key)-len(folderSuffix):] == folderSuffix
}
