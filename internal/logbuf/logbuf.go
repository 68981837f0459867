package logbuf

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ErrClosed is returned by Write once the buffer has been closed.
var ErrClosed = errors.New("log buffer closed")

// Buffer is an append-only log shared between a producer and a polling
// consumer. Reads never block: they return whatever has been written since
// the previous read, possibly nothing.
type Buffer struct {
	mu   sync.Mutex
	data []byte
	off  int

	finished atomic.Bool
}

// New returns an empty, open Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Write appends p to the log.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.finished.Load() {
		return 0, ErrClosed
	}
	b.mu.Lock()
	b.data = append(b.data, p...)
	b.mu.Unlock()
	return len(p), nil
}

// Read copies unread log data into p and returns the number of bytes copied.
// Zero means nothing new is available right now, not that the log is done.
func (b *Buffer) Read(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := copy(p, b.data[b.off:])
	b.off += n
	return n
}

// Bytes returns a copy of everything written so far, read or not.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

// Close marks the producer as finished. Data written before Close stays
// readable.
func (b *Buffer) Close() error {
	b.finished.Store(true)
	return nil
}

// Finished reports whether Close has been called.
func (b *Buffer) Finished() bool {
	return b.finished.Load()
}

// Source is a non-blocking log stream.
type Source interface {
	Read(p []byte) int
	Finished() bool
}

// Drain copies src to w until the producer has finished and every byte has
// been delivered, polling every interval while no data is available.
//
// The finished flag is sampled before each read. A read that returns zero
// after the flag was already set proves the tail has been consumed.
func Drain(ctx context.Context, src Source, w io.Writer, interval time.Duration) error {
	buf := make([]byte, 4096)
	for {
		done := src.Finished()
		n := src.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return errors.Wrap(err, "write log")
			}
			continue
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
