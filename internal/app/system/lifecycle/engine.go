// Package lifecycle is the drive's state machine. Files and folders move
// between ACTIVE and TRASHED, carry an orthogonal starred flag, and end in
// PURGED, which removes the record (and, for files, the stored content).
//
// Every operation is scoped to an access.Identity. Single-item transitions
// are conditional updates in itemstore; folder cascades and subtree purges
// run through txn.Run.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratadrive/internal/app/store/file"
	"github.com/dalemusser/stratadrive/internal/app/store/folder"
	orphanstore "github.com/dalemusser/stratadrive/internal/app/store/orphans"
	"github.com/dalemusser/stratadrive/internal/app/system/access"
	"github.com/dalemusser/stratadrive/internal/app/system/blob"
	"github.com/dalemusser/stratadrive/internal/domain"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Defaults applied by New when Config leaves a value unset.
const (
	DefaultRetention  = 24 * time.Hour
	DefaultSweepBatch = 200
	MaxNameLength     = 255
)

// Config tunes the engine.
type Config struct {
	// Retention is how long an item stays in the trash before
	// SweepExpired purges it.
	Retention time.Duration

	// SweepBatch caps how many expired roots are read per query.
	SweepBatch int64
}

// Engine implements the lifecycle operations.
type Engine struct {
	db      *mongo.Database
	folders *folder.Store
	files   *file.Store
	blobs   blob.Store
	orphans *orphanstore.Store
	log     *zap.Logger
	cfg     Config
	clock   func() time.Time
}

// New builds an engine over db and blobs. orphans may be nil, in which case
// blobs that fail to delete are only logged.
func New(db *mongo.Database, blobs blob.Store, orphans *orphanstore.Store, logger *zap.Logger, cfg Config) *Engine {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = DefaultSweepBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:      db,
		folders: folder.New(db),
		files:   file.New(db),
		blobs:   blobs,
		orphans: orphans,
		log:     logger,
		cfg:     cfg,
		clock:   time.Now,
	}
}

// Retention returns the configured trash retention window.
func (e *Engine) Retention() time.Duration { return e.cfg.Retention }

func (e *Engine) now() time.Time {
	return e.clock().UTC().Truncate(time.Millisecond)
}

// owner extracts the user id of a bound identity.
func owner(id access.Identity) (primitive.ObjectID, error) {
	if !id.Valid() {
		return primitive.NilObjectID, domain.AuthenticationFailed()
	}
	return id.UserID(), nil
}

// itemOps is the part of the item stores that is the same for both kinds.
type itemOps interface {
	SetStarred(ctx context.Context, userID, id primitive.ObjectID, starred bool) error
	Rename(ctx context.Context, userID, id primitive.ObjectID, name string) error
	SetParent(ctx context.Context, userID, id primitive.ObjectID, parent *primitive.ObjectID) error
	Trash(ctx context.Context, userID, id primitive.ObjectID, at time.Time) (bool, error)
	Restore(ctx context.Context, userID, id primitive.ObjectID, detach bool) (bool, error)
}

func (e *Engine) ops(ref models.ItemRef) (itemOps, error) {
	switch ref.Kind {
	case models.KindFolder:
		return e.folders, nil
	case models.KindFile:
		return e.files, nil
	}
	return nil, domain.InvalidInput("unknown item kind")
}

// load reads one item of the owner in any state.
func (e *Engine) load(ctx context.Context, uid primitive.ObjectID, ref models.ItemRef) (models.Item, error) {
	switch ref.Kind {
	case models.KindFolder:
		f, err := e.folders.Get(ctx, uid, ref.ID)
		if err != nil {
			return nil, err
		}
		return f, nil
	case models.KindFile:
		f, err := e.files.Get(ctx, uid, ref.ID)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, domain.InvalidInput("unknown item kind")
}

// activeFolder checks that parent is nil or an active folder of the owner.
func (e *Engine) activeFolder(ctx context.Context, uid primitive.ObjectID, parent *primitive.ObjectID) error {
	if parent == nil {
		return nil
	}
	_, err := e.folders.GetActive(ctx, uid, *parent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.NotFound("folder")
	}
	if err != nil {
		return e.fault("load folder", models.FolderRef(*parent), err)
	}
	return nil
}

// fail classifies a store error for ref. Already-classified errors pass
// through; a missing document is NotFound; anything else is a logged
// StorageFault.
func (e *Engine) fail(op string, ref models.ItemRef, err error) error {
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.NotFound(string(ref.Kind))
	}
	return e.fault(op, ref, err)
}

func (e *Engine) fault(op string, ref models.ItemRef, err error) error {
	e.log.Error("drive storage fault",
		zap.String("op", op),
		zap.String("item", ref.String()),
		zap.Error(err))
	return domain.StorageFault(op, err)
}

func validateName(name string) error {
	err := validation.Validate(name,
		validation.Required.Error("name is required"),
		validation.RuneLength(1, MaxNameLength).Error("name is too long"),
	)
	if err != nil {
		return domain.InvalidInput(err.Error())
	}
	return nil
}
