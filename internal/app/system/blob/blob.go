// Package blob stores file content independently of file metadata. Content
// is addressed by an opaque id returned from Put.
package blob

import (
	"context"
	"errors"
	"io"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned when no content exists for an id.
var ErrNotFound = errors.New("blob: content not found")

// Meta describes content being stored.
type Meta struct {
	Owner       primitive.ObjectID
	Filename    string
	ContentType string
}

// Store is a content-addressed blob backend.
//
// Put must not leave readable content behind when it returns an error: a
// failed or cancelled write is aborted.
type Store interface {
	Put(ctx context.Context, r io.Reader, meta Meta) (contentID string, size int64, err error)
	Get(ctx context.Context, contentID string) (io.ReadCloser, error)
	Delete(ctx context.Context, contentID string) error
}

// contextReader fails reads once ctx is done, so a cancelled upload stops
// at the next chunk boundary.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// countingReader records how many bytes passed through.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// ErrOverLimit is returned by a LimitedReader once its limit is passed.
var ErrOverLimit = errors.New("blob: content over size limit")

// LimitedReader fails with ErrOverLimit as soon as more than its limit is
// read, so a Put fed from it aborts instead of storing a truncated blob.
type LimitedReader struct {
	r        io.Reader
	left     int64
	exceeded bool
}

// Limit wraps r so that reading more than max bytes fails.
func Limit(r io.Reader, max int64) *LimitedReader {
	return &LimitedReader{r: r, left: max}
}

// Exceeded reports whether the limit was passed. Backends may wrap the
// read error, so callers check this instead of matching ErrOverLimit.
func (l *LimitedReader) Exceeded() bool { return l.exceeded }

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, ErrOverLimit
	}
	if int64(len(p)) > l.left+1 {
		p = p[:l.left+1]
	}
	n, err := l.r.Read(p)
	if int64(n) > l.left {
		l.exceeded = true
		return 0, ErrOverLimit
	}
	l.left -= int64(n)
	return n, err
}
