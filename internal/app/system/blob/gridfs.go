package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultBucket is the GridFS bucket name used when none is configured.
const DefaultBucket = "fs"

// GridFS stores content in a MongoDB GridFS bucket. Content ids are the hex
// form of the GridFS file ObjectID.
type GridFS struct {
	db     *mongo.Database
	bucket string
}

// NewGridFS returns a GridFS store over the named bucket.
func NewGridFS(db *mongo.Database, bucket string) *GridFS {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &GridFS{db: db, bucket: bucket}
}

func (g *GridFS) open(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(g.db, options.GridFSBucket().SetName(g.bucket))
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := b.SetWriteDeadline(dl); err != nil {
			return nil, err
		}
		if err := b.SetReadDeadline(dl); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Put streams r into a new GridFS file. On read error or cancellation the
// upload is aborted and its chunks removed.
func (g *GridFS) Put(ctx context.Context, r io.Reader, meta Meta) (string, int64, error) {
	b, err := g.open(ctx)
	if err != nil {
		return "", 0, err
	}

	opts := options.GridFSUpload().SetMetadata(bson.M{
		"user_id":      meta.Owner,
		"content_type": meta.ContentType,
	})
	up, err := b.OpenUploadStream(meta.Filename, opts)
	if err != nil {
		return "", 0, err
	}

	n, err := io.Copy(up, contextReader{ctx: ctx, r: r})
	if err != nil {
		return "", 0, g.discard(ctx, up, fmt.Errorf("gridfs upload: %w", err))
	}
	if err := up.Close(); err != nil {
		return "", 0, g.discard(ctx, up, fmt.Errorf("gridfs upload close: %w", err))
	}

	id, ok := up.FileID.(primitive.ObjectID)
	if !ok {
		return "", 0, fmt.Errorf("gridfs upload: unexpected file id type %T", up.FileID)
	}
	return id.Hex(), n, nil
}

// cleanupTimeout bounds removing the chunks of a failed upload.
const cleanupTimeout = 10 * time.Second

// discard removes whatever a failed upload already wrote. Abort runs under
// the bucket's write deadline, which may be what failed the upload, so the
// chunks and any files document are also deleted on a fresh context.
func (g *GridFS) discard(ctx context.Context, up *gridfs.UploadStream, cause error) error {
	if err := up.Abort(); err == nil {
		return cause
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	_, cerr := g.db.Collection(g.bucket+".chunks").DeleteMany(cctx, bson.M{"files_id": up.FileID})
	_, ferr := g.db.Collection(g.bucket+".files").DeleteOne(cctx, bson.M{"_id": up.FileID})
	if err := errors.Join(cerr, ferr); err != nil {
		return fmt.Errorf("%w (cleanup: %v)", cause, err)
	}
	return cause
}

// Get opens the content for reading.
func (g *GridFS) Get(ctx context.Context, contentID string) (io.ReadCloser, error) {
	oid, err := primitive.ObjectIDFromHex(contentID)
	if err != nil {
		return nil, ErrNotFound
	}
	b, err := g.open(ctx)
	if err != nil {
		return nil, err
	}
	ds, err := b.OpenDownloadStream(oid)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// Delete removes the file and its chunks.
func (g *GridFS) Delete(ctx context.Context, contentID string) error {
	oid, err := primitive.ObjectIDFromHex(contentID)
	if err != nil {
		return ErrNotFound
	}
	b, err := g.open(ctx)
	if err != nil {
		return err
	}
	if err := b.DeleteContext(ctx, oid); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
