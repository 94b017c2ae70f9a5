package fs

import (
	"context"
	"io"
	"sync"

	"github.com/flatfs/flatfs/pkg/errors"
)

// minReadWindow is the smallest fetch window the adaptive algorithm
// drops to after a seek.
const minReadWindow int64 = 64 * 1024

// Reader is a seekable reader over a single object. Version 1 fetches a
// fixed-size window on every buffer miss; version 2 shrinks the window
// after a seek and grows it back while reads stay sequential.
type Reader struct {
	ctx       context.Context
	fs        *FileSystem
	key       string
	size      int64
	algo      int
	maxWindow int64

	mu       sync.Mutex
	pos      int64
	buf      []byte
	bufStart int64
	window   int64
	closed   bool
}

func (f *FileSystem) newReader(ctx context.Context, key string, size int64) *Reader {
	return &Reader{
		ctx:       ctx,
		fs:        f,
		key:       key,
		size:      size,
		algo:      f.algorithmVersion,
		maxWindow: f.readBufferSize,
		window:    f.readBufferSize,
	}
}

func (r *Reader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, errors.E(errors.KindStreamClosed, "read", r.key, "reader is closed")
	}
	if r.pos >= r.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	if !r.buffered(r.pos) {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}

	off := r.pos - r.bufStart
	n := copy(p, r.buf[off:])
	r.pos += int64(n)
	r.fs.metrics.AddBytesRead(int64(n))
	return n, nil
}

func (r *Reader) buffered(pos int64) bool {
	return pos >= r.bufStart && pos < r.bufStart+int64(len(r.buf))
}

// fill fetches the next window starting at the current position.
func (r *Reader) fill() error {
	window := r.window
	if r.algo == 2 {
		sequential := r.pos == r.bufStart+int64(len(r.buf)) && len(r.buf) > 0
		if sequential {
			window = r.window * 2
			if window > r.maxWindow {
				window = r.maxWindow
			}
		} else {
			window = minReadWindow
		}
		r.window = window
	}

	remaining := r.size - r.pos
	if window > remaining {
		window = remaining
	}

	body, err := r.fs.store.Retrieve(r.ctx, r.key, r.pos, window)
	if err != nil {
		return err
	}
	defer body.Close()

	buf, err := io.ReadAll(body)
	if err != nil {
		return errors.E(errors.KindStorageFailure, "read", r.key, "failed to read object body").WithCause(err)
	}
	if len(buf) == 0 {
		return io.EOF
	}

	r.buf = buf
	r.bufStart = r.pos
	return nil
}

// ReadAt reads len(p) bytes starting at off without moving the read
// position. It bypasses the window buffer and fetches the exact range.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, errors.E(errors.KindStreamClosed, "readAt", r.key, "reader is closed")
	}
	r.mu.Unlock()

	if off < 0 {
		return 0, errors.E(errors.KindInvalidArgument, "readAt", r.key, "negative offset")
	}
	if off >= r.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	length := int64(len(p))
	if off+length > r.size {
		length = r.size - off
	}

	body, err := r.fs.store.Retrieve(r.ctx, r.key, off, length)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.ReadFull(body, p[:length])
	r.fs.metrics.AddBytesRead(int64(n))
	if err != nil {
		return n, errors.E(errors.KindStorageFailure, "readAt", r.key, "failed to read object body").WithCause(err)
	}
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// Seek repositions the reader. Seeking past the end is allowed; the next
// Read returns io.EOF. Seeking before the start is an error.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, errors.E(errors.KindStreamClosed, "seek", r.key, "reader is closed")
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.pos + offset
	case io.SeekEnd:
		target = r.size + offset
	default:
		return 0, errors.E(errors.KindInvalidArgument, "seek", r.key, "invalid whence")
	}
	if target < 0 {
		return 0, errors.E(errors.KindInvalidArgument, "seek", r.key, "negative position")
	}

	r.pos = target
	return target, nil
}

// Pos returns the current read position.
func (r *Reader) Pos() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

// SeekToNewSource always reports false: every object has a single source.
func (r *Reader) SeekToNewSource(targetPos int64) bool {
	return false
}

// Size returns the object length observed at open time.
func (r *Reader) Size() int64 { return r.size }

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.buf = nil
	return nil
}
