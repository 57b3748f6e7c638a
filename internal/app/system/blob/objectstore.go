package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
)

// ObjectStore adapts a WAFFLE storage backend (local disk or S3). Content
// ids are object keys of the form "<owner hex>/<uuid>-<filename>".
type ObjectStore struct {
	store storage.Store
}

// NewObjectStore wraps a WAFFLE storage.Store.
func NewObjectStore(store storage.Store) *ObjectStore {
	return &ObjectStore{store: store}
}

// objectKey builds a collision-free key that keeps the original name for
// anyone browsing the bucket.
func objectKey(meta Meta) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(meta.Filename)
	if name == "" {
		name = "blob"
	}
	return fmt.Sprintf("%s/%s-%s", meta.Owner.Hex(), uuid.NewString(), name)
}

// Put writes r under a fresh key. A failed write is cleaned up best effort.
func (o *ObjectStore) Put(ctx context.Context, r io.Reader, meta Meta) (string, int64, error) {
	key := objectKey(meta)
	cr := &countingReader{r: contextReader{ctx: ctx, r: r}}

	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := o.store.Put(ctx, key, cr, &storage.PutOptions{ContentType: contentType}); err != nil {
		_ = o.store.Delete(context.WithoutCancel(ctx), key)
		return "", 0, fmt.Errorf("object put: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = o.store.Delete(context.WithoutCancel(ctx), key)
		return "", 0, err
	}
	return key, cr.n, nil
}

// Get opens the object for reading.
func (o *ObjectStore) Get(ctx context.Context, contentID string) (io.ReadCloser, error) {
	rc, err := o.store.Get(ctx, contentID)
	if err != nil {
		if isNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rc, nil
}

// Delete removes the object.
func (o *ObjectStore) Delete(ctx context.Context, contentID string) error {
	if err := o.store.Delete(ctx, contentID); err != nil {
		if isNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func isNotExist(err error) bool {
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not found") || strings.Contains(s, "nosuchkey") || strings.Contains(s, "no such file")
}
