package lifecycle

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"

	"github.com/dalemusser/stratadrive/internal/app/store/file"
	"github.com/dalemusser/stratadrive/internal/app/store/folder"
	"github.com/dalemusser/stratadrive/internal/app/system/access"
	"github.com/dalemusser/stratadrive/internal/app/system/blob"
	"github.com/dalemusser/stratadrive/internal/app/system/normalize"
	"github.com/dalemusser/stratadrive/internal/domain"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// CreateFolder creates an active folder at the root (parentID nil) or inside
// an active folder of the owner.
func (e *Engine) CreateFolder(ctx context.Context, id access.Identity, name string, parentID *primitive.ObjectID) (*models.Folder, error) {
	uid, err := owner(id)
	if err != nil {
		return nil, err
	}
	name = normalize.Name(name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := e.activeFolder(ctx, uid, parentID); err != nil {
		return nil, err
	}

	f, err := e.folders.Create(ctx, folder.CreateInput{
		UserID:   uid,
		Name:     name,
		ParentID: parentID,
	})
	if err != nil {
		return nil, e.fault("create folder", models.ItemRef{Kind: models.KindFolder}, err)
	}
	return f, nil
}

// UploadInput describes one uploaded file.
type UploadInput struct {
	Filename    string
	FolderID    *primitive.ObjectID
	ContentType string // guessed from the extension when empty
	Body        io.Reader
	MaxSize     int64 // zero means no limit
}

// CreateFileFromUpload stores Body and then records the file. The content is
// written first: a failed, cancelled or oversize write leaves no record, and
// a failed record insert deletes the content again. The caller sees either a
// complete file or an error.
func (e *Engine) CreateFileFromUpload(ctx context.Context, id access.Identity, in UploadInput) (*models.File, error) {
	uid, err := owner(id)
	if err != nil {
		return nil, err
	}
	name := normalize.Filename(in.Filename)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if in.Body == nil {
		return nil, domain.InvalidInput("file content is required")
	}
	if err := e.activeFolder(ctx, uid, in.FolderID); err != nil {
		return nil, err
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body := in.Body
	var capped *blob.LimitedReader
	if in.MaxSize > 0 {
		capped = blob.Limit(in.Body, in.MaxSize)
		body = capped
	}

	contentID, size, err := e.blobs.Put(ctx, body, blob.Meta{
		Owner:       uid,
		Filename:    name,
		ContentType: contentType,
	})
	if err != nil {
		if capped != nil && capped.Exceeded() {
			e.log.Info("upload over size limit",
				zap.String("name", name),
				zap.Int64("max_size", in.MaxSize))
			return nil, domain.TooLarge("file exceeds the upload size limit")
		}
		if ctx.Err() == nil {
			e.log.Error("content write failed", zap.String("name", name), zap.Error(err))
		}
		return nil, domain.StorageFault("store content", err)
	}

	f, err := e.files.Create(ctx, file.CreateInput{
		UserID:      uid,
		FolderID:    in.FolderID,
		Name:        name,
		Size:        size,
		ContentType: contentType,
		ContentID:   contentID,
	})
	if err != nil {
		cleanup := context.WithoutCancel(ctx)
		if derr := e.blobs.Delete(cleanup, contentID); derr != nil && !errors.Is(derr, blob.ErrNotFound) {
			e.log.Error("content cleanup after failed insert", zap.String("content_id", contentID), zap.Error(derr))
			if e.orphans != nil {
				_ = e.orphans.Record(cleanup, contentID, uid, primitive.NilObjectID, derr)
			}
		}
		return nil, e.fault("create file", models.ItemRef{Kind: models.KindFile}, err)
	}

	e.log.Debug("file uploaded",
		zap.String("item", f.Ref().String()),
		zap.Int64("size", f.Size))
	return f, nil
}

// FetchContent opens a file's content. A missing record and a record whose
// content is missing are both NotFound; the latter is logged as an
// inconsistency.
func (e *Engine) FetchContent(ctx context.Context, id access.Identity, ref models.ItemRef) (io.ReadCloser, *models.File, error) {
	uid, err := owner(id)
	if err != nil {
		return nil, nil, err
	}
	if ref.Kind != models.KindFile {
		return nil, nil, domain.InvalidInput("only files have content")
	}

	f, err := e.files.Get(ctx, uid, ref.ID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil, domain.NotFound("file")
	}
	if err != nil {
		return nil, nil, e.fault("fetch content", ref, err)
	}

	rc, err := e.blobs.Get(ctx, f.ContentID)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			e.log.Error("file record without content",
				zap.String("item", ref.String()),
				zap.String("content_id", f.ContentID))
			return nil, nil, domain.NotFoundWith("file content", err)
		}
		return nil, nil, e.fault("fetch content", ref, err)
	}
	return rc, f, nil
}
