package fs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/flatfs/flatfs/pkg/errors"
)

// Writer buffers written data in local block files of at most blockSize
// bytes each and uploads them as one object on Close. A single Write that
// crosses a block boundary is split, so n bytes always land in exactly
// ceil(n/blockSize) blocks.
type Writer struct {
	ctx      context.Context
	fs       *FileSystem
	path     string
	key      string
	appendTo bool

	mu      sync.Mutex
	blocks  []string
	current *os.File
	filled  int64
	total   int64
	closed  bool
}

func (f *FileSystem) newWriter(ctx context.Context, path string, appendTo bool) *Writer {
	return &Writer{
		ctx:      ctx,
		fs:       f,
		path:     path,
		key:      pathToKey(path),
		appendTo: appendTo,
	}
}

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, errors.E(errors.KindStreamClosed, "write", w.path, "writer is closed")
	}
	if w.total+int64(len(p)) > maxObjectSize {
		return 0, errors.E(errors.KindInvalidArgument, "write", w.path, "object size limit exceeded")
	}

	written := 0
	for written < len(p) {
		if w.current == nil {
			if err := w.rollBlock(); err != nil {
				return written, err
			}
		}

		room := w.fs.blockSize - w.filled
		chunk := int64(len(p) - written)
		if chunk > room {
			chunk = room
		}

		n, err := w.current.Write(p[written : written+int(chunk)])
		written += n
		w.filled += int64(n)
		w.total += int64(n)
		if err != nil {
			return written, errors.E(errors.KindStorageFailure, "write", w.path, "failed to buffer block").WithCause(err)
		}

		if w.filled == w.fs.blockSize {
			if err := w.sealBlock(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// rollBlock opens a fresh temp file for the next block.
func (w *Writer) rollBlock() error {
	f, err := os.CreateTemp(w.fs.tempDir, "flatfs-block-*")
	if err != nil {
		return errors.E(errors.KindStorageFailure, "write", w.path, "failed to create block file").WithCause(err)
	}
	w.fs.logger.Debug("rolling to new block", "path", w.path, "block", len(w.blocks))
	w.current = f
	w.filled = 0
	return nil
}

// sealBlock closes the active block file and queues it for upload.
func (w *Writer) sealBlock() error {
	name := w.current.Name()
	if err := w.current.Close(); err != nil {
		return errors.E(errors.KindStorageFailure, "write", w.path, "failed to seal block file").WithCause(err)
	}
	w.blocks = append(w.blocks, name)
	w.current = nil
	w.filled = 0
	return nil
}

// Close uploads the buffered blocks as a single object and removes the
// temp files. Closing twice is safe; the second Close is a no-op. Cleanup
// failures are logged but never mask an upload error.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.current != nil {
		if err := w.sealBlock(); err != nil {
			w.cleanup()
			return err
		}
	}

	blockCount := len(w.blocks)
	err := w.fs.store.StoreFiles(w.ctx, w.key, w.blocks, w.appendTo)
	w.cleanup()
	if err != nil {
		return err
	}

	w.fs.metrics.AddBytesWritten(w.total)
	w.fs.logger.Debug("stored file", "path", w.path, "bytes", w.total, "blocks", blockCount, "append", w.appendTo)
	return nil
}

// CleanupOrphanBlocks removes leftover block files from dir, typically
// after a crash left writers unclosed. An empty dir means the system
// temporary directory.
func CleanupOrphanBlocks(dir string, logger *slog.Logger) error {
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	matches, err := filepath.Glob(filepath.Join(dir, "flatfs-block-*"))
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			logger.Warn("failed to remove orphan block file", "file", match, "error", err)
			continue
		}
		logger.Debug("removed orphan block file", "file", match)
	}
	return nil
}

func (w *Writer) cleanup() {
	if w.current != nil {
		if err := w.current.Close(); err != nil {
			w.fs.logger.Warn("failed to close block file", "path", w.path, "error", err)
		}
		w.blocks = append(w.blocks, w.current.Name())
		w.current = nil
	}
	for _, block := range w.blocks {
		if err := os.Remove(block); err != nil {
			w.fs.logger.Warn("failed to remove block file", "path", w.path, "file", block, "error", err)
		}
	}
	w.blocks = nil
}
