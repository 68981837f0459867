package vboard

import (
	"context"
	"io"
	"time"

	"github.com/buckleypaul/vboard/internal/logbuf"
)

type logReader struct {
	src logbuf.Source
}

// Read copies available log bytes into p without blocking. It returns 0 and
// a nil error when nothing new has been written yet, and io.EOF once the
// producer has finished and every byte has been read.
//
// Read does not block, so do not hand the reader to io.Copy; use Drain.
func (r logReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	finished := r.src.Finished()
	n := r.src.Read(p)
	if n == 0 && finished {
		return 0, io.EOF
	}
	return n, nil
}

// Disconnected reports whether the producer has finished. Bytes may still
// be buffered; keep reading until Read returns io.EOF.
func (r logReader) Disconnected() bool {
	return r.src.Finished()
}

// Drain copies the log to w until the producer has finished and the tail is
// read, polling every interval.
func (r logReader) Drain(ctx context.Context, w io.Writer, interval time.Duration) error {
	return logbuf.Drain(ctx, r.src, w, interval)
}

// BuildLogReader streams the output of a Toolchain compile.
type BuildLogReader struct {
	logReader
	buf *logbuf.Buffer
}

// Bytes returns the whole build log written so far, including the part
// already consumed by Read.
func (r *BuildLogReader) Bytes() []byte {
	return r.buf.Bytes()
}

// BoardLogReader streams the runtime output of a board session.
type BoardLogReader struct {
	logReader
}
