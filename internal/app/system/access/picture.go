package access

import (
	"context"
	"errors"
	"io"
	"mime"

	"github.com/dalemusser/stratadrive/internal/app/system/blob"
	"github.com/dalemusser/stratadrive/internal/domain"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MaxPictureSize bounds uploaded profile pictures.
const MaxPictureSize = 5 << 20

// pictureTypes are the accepted picture formats. SVG can carry script and
// is not among them.
var pictureTypes = []any{"image/png", "image/jpeg", "image/gif", "image/webp"}

var errNoPictureStore = errors.New("picture uploads are not configured")

// OrphanRecorder remembers content whose delete failed so a background job
// can retry it. *orphanstore.Store implements it.
type OrphanRecorder interface {
	Record(ctx context.Context, contentID string, userID, fileID primitive.ObjectID, cause error) error
}

// SetPictureStore enables picture uploads. orphans may be nil, in which
// case a failed delete of replaced content is only logged.
func (s *Service) SetPictureStore(blobs blob.Store, orphans OrphanRecorder) {
	s.pictures = blobs
	s.orphans = orphans
}

// SetPicture stores r as the caller's profile picture and drops the one it
// replaces. contentType must be PNG, JPEG, GIF or WebP (InvalidInput
// otherwise); content over MaxPictureSize fails with TooLarge and leaves
// nothing stored.
func (s *Service) SetPicture(ctx context.Context, id Identity, r io.Reader, contentType string) (*models.User, error) {
	if !id.Valid() {
		return nil, domain.AuthenticationFailed()
	}
	if s.pictures == nil {
		return nil, domain.StorageFault("store picture", errNoPictureStore)
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}
	if err := validation.Validate(mediaType,
		validation.Required.Error("picture type is required"),
		validation.In(pictureTypes...).Error("picture must be PNG, JPEG, GIF or WebP"),
	); err != nil {
		return nil, invalid(err)
	}

	body := blob.Limit(r, MaxPictureSize)
	contentID, _, err := s.pictures.Put(ctx, body, blob.Meta{
		Owner:       id.UserID(),
		Filename:    "picture",
		ContentType: mediaType,
	})
	if err != nil {
		if body.Exceeded() {
			return nil, domain.TooLarge("picture exceeds the size limit")
		}
		return nil, domain.StorageFault("store picture", err)
	}

	prev, err := s.users.SetPicture(ctx, id.UserID(), contentID, mediaType)
	if err != nil {
		s.dropPicture(ctx, id.UserID(), contentID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("user")
		}
		return nil, domain.StorageFault("save picture", err)
	}
	if prev != "" {
		s.dropPicture(ctx, id.UserID(), prev)
	}

	s.logger.Info("profile picture updated", zap.String("user_id", id.UserID().Hex()))
	return s.User(ctx, id)
}

// Picture opens the caller's uploaded picture and returns its content type.
// NotFound when none was uploaded.
func (s *Service) Picture(ctx context.Context, id Identity) (io.ReadCloser, string, error) {
	u, err := s.User(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if u.PictureID == "" || s.pictures == nil {
		return nil, "", domain.NotFound("picture")
	}

	rc, err := s.pictures.Get(ctx, u.PictureID)
	if errors.Is(err, blob.ErrNotFound) {
		s.logger.Error("picture content missing",
			zap.String("user_id", u.ID.Hex()),
			zap.String("content_id", u.PictureID))
		return nil, "", domain.NotFoundWith("picture content", err)
	}
	if err != nil {
		return nil, "", domain.StorageFault("read picture", err)
	}
	return rc, u.PictureType, nil
}

// RemovePicture deletes the caller's uploaded picture. It is a no-op when
// there is none.
func (s *Service) RemovePicture(ctx context.Context, id Identity) error {
	if !id.Valid() {
		return domain.AuthenticationFailed()
	}
	prev, err := s.users.ClearPicture(ctx, id.UserID())
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.NotFound("user")
	}
	if err != nil {
		return domain.StorageFault("clear picture", err)
	}
	if prev != "" && s.pictures != nil {
		s.dropPicture(ctx, id.UserID(), prev)
	}
	return nil
}

// dropPicture deletes content no user references any more. The delete runs
// even if ctx was cancelled, and a failure is handed to the orphan reaper.
func (s *Service) dropPicture(ctx context.Context, userID primitive.ObjectID, contentID string) {
	cleanup := context.WithoutCancel(ctx)
	err := s.pictures.Delete(cleanup, contentID)
	if err == nil || errors.Is(err, blob.ErrNotFound) {
		return
	}
	s.logger.Warn("picture content delete failed",
		zap.String("content_id", contentID),
		zap.Error(err))
	if s.orphans == nil {
		return
	}
	if rerr := s.orphans.Record(cleanup, contentID, userID, primitive.NilObjectID, err); rerr != nil {
		s.logger.Error("orphan record failed",
			zap.String("content_id", contentID),
			zap.Error(rerr))
	}
}
