// Package mem provides an in-memory Store implementation with faithful
// delimiter folding and page-size pagination. It backs the adapter test
// suites; nothing in it is safe to use as durable storage.
package mem

import (
	"bytes"
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flatfs/flatfs/internal/store"
	"github.com/flatfs/flatfs/pkg/errors"
	"github.com/flatfs/flatfs/pkg/types"
)

type object struct {
	data    []byte
	modTime time.Time
}

// Store is an in-memory object store.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{objects: make(map[string]object)}
}

// Put stores raw bytes at key directly, bypassing the Store interface. Test
// setup helper.
func (s *Store) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: append([]byte(nil), data...), modTime: time.Now()}
}

// Get returns the raw bytes at key, or nil when absent. Test helper.
func (s *Store) Get(key string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if obj, ok := s.objects[key]; ok {
		return append([]byte(nil), obj.data...)
	}
	return nil
}

// Keys returns every stored key in lexicographic order. Test helper.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedKeysLocked()
}

func (s *Store) sortedKeysLocked() []string {
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) RetrieveMetadata(_ context.Context, key string) (*types.ObjectMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, nil
	}
	return &types.ObjectMetadata{
		Key:          key,
		Size:         int64(len(obj.data)),
		LastModified: obj.modTime,
	}, nil
}

func (s *Store) Retrieve(_ context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, errors.New(errors.KindNotFound, "no such object").WithKey(key)
	}
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(obj.data)) {
		offset = int64(len(obj.data))
	}
	end := int64(len(obj.data))
	if length > 0 && offset+length < end {
		end = offset + length
	}
	return io.NopCloser(bytes.NewReader(obj.data[offset:end])), nil
}

func (s *Store) StoreFile(ctx context.Context, key, localFile string, appendTo bool) error {
	return s.StoreFiles(ctx, key, []string{localFile}, appendTo)
}

func (s *Store) StoreFiles(_ context.Context, key string, localFiles []string, appendTo bool) error {
	var buf bytes.Buffer
	s.mu.RLock()
	if existing, ok := s.objects[key]; ok && appendTo {
		buf.Write(existing.data)
	}
	s.mu.RUnlock()

	for _, localFile := range localFiles {
		data, err := os.ReadFile(localFile)
		if err != nil {
			return errors.New(errors.KindStorageFailure, "failed to read block file").WithKey(key).WithCause(err)
		}
		buf.Write(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: buf.Bytes(), modTime: time.Now()}
	return nil
}

func (s *Store) StoreEmptyFile(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{modTime: time.Now()}
	return nil
}

func (s *Store) List(_ context.Context, prefix string, maxKeys int, priorLastKey string, recursive bool) (*types.PartialListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	eff := store.ListPrefix(prefix)
	listing := &types.PartialListing{}
	seenPrefixes := make(map[string]bool)
	count := 0
	lastKey := ""

	for _, key := range s.sortedKeysLocked() {
		if !strings.HasPrefix(key, eff) {
			continue
		}
		if priorLastKey != "" && key <= priorLastKey {
			continue
		}
		if maxKeys > 0 && count >= maxKeys {
			// More matching keys remain, so hand back a cursor.
			listing.PriorLastKey = lastKey
			return listing, nil
		}

		if !recursive {
			rest := key[len(eff):]
			if idx := strings.Index(rest, "/"); idx >= 0 {
				cp := eff + rest[:idx+1]
				if !seenPrefixes[cp] {
					seenPrefixes[cp] = true
					listing.CommonPrefixes = append(listing.CommonPrefixes, cp)
					count++
				}
				lastKey = key
				continue
			}
		}

		obj := s.objects[key]
		listing.Files = append(listing.Files, types.ObjectMetadata{
			Key:          key,
			Size:         int64(len(obj.data)),
			LastModified: obj.modTime,
		})
		count++
		lastKey = key
	}
	return listing, nil
}

func (s *Store) Copy(_ context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.objects[srcKey]
	if !ok {
		return errors.New(errors.KindNotFound, "no such object").WithKey(srcKey)
	}
	s.objects[dstKey] = object{data: append([]byte(nil), src.data...), modTime: time.Now()}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return errors.New(errors.KindNotFound, "no such object").WithKey(key)
	}
	delete(s.objects, key)
	return nil
}

func (s *Store) DoesObjectExist(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *Store) Purge(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			delete(s.objects, key)
		}
	}
	return nil
}

func (s *Store) Dump(_ context.Context) ([]types.ObjectMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects := make([]types.ObjectMetadata, 0, len(s.objects))
	for _, key := range s.sortedKeysLocked() {
		obj := s.objects[key]
		objects = append(objects, types.ObjectMetadata{
			Key:          key,
			Size:         int64(len(obj.data)),
			LastModified: obj.modTime,
		})
	}
	return objects, nil
}

func (s *Store) Close() error { return nil }
