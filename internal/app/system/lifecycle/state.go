package lifecycle

import (
	"context"
	"errors"

	"github.com/dalemusser/stratadrive/internal/app/system/access"
	"github.com/dalemusser/stratadrive/internal/app/system/normalize"
	"github.com/dalemusser/stratadrive/internal/app/system/txn"
	"github.com/dalemusser/stratadrive/internal/domain"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Star sets or clears the starred flag. Trashed items can be starred too.
func (e *Engine) Star(ctx context.Context, id access.Identity, ref models.ItemRef, starred bool) error {
	uid, err := owner(id)
	if err != nil {
		return err
	}
	ops, err := e.ops(ref)
	if err != nil {
		return err
	}
	if err := ops.SetStarred(ctx, uid, ref.ID, starred); err != nil {
		return e.fail("star", ref, err)
	}
	return nil
}

// Rename changes an item's name. The name is trimmed and must not be empty.
func (e *Engine) Rename(ctx context.Context, id access.Identity, ref models.ItemRef, name string) error {
	uid, err := owner(id)
	if err != nil {
		return err
	}
	ops, err := e.ops(ref)
	if err != nil {
		return err
	}
	name = normalize.Name(name)
	if err := validateName(name); err != nil {
		return err
	}
	if err := ops.Rename(ctx, uid, ref.ID, name); err != nil {
		return e.fail("rename", ref, err)
	}
	return nil
}

// SoftDelete moves an item to the trash. Trashing a folder also trashes every
// active item below it, stamped with the folder's id so Restore can bring
// back exactly that set. Trashing an already-trashed item does nothing.
func (e *Engine) SoftDelete(ctx context.Context, id access.Identity, ref models.ItemRef) error {
	uid, err := owner(id)
	if err != nil {
		return err
	}
	at := e.now()

	switch ref.Kind {
	case models.KindFile:
		if _, err := e.files.Trash(ctx, uid, ref.ID, at); err != nil {
			return e.fail("trash", ref, err)
		}
		return nil
	case models.KindFolder:
	default:
		return domain.InvalidInput("unknown item kind")
	}

	var cascaded int64
	err = txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		cascaded = 0
		ok, err := e.folders.Trash(ctx, uid, ref.ID, at)
		if err != nil || !ok {
			return err
		}
		below, err := e.folders.Descendants(ctx, uid, ref.ID, bson.M{"deleted": false})
		if err != nil {
			return err
		}
		nf, err := e.folders.TrashWith(ctx, uid, below, ref.ID, at)
		if err != nil {
			return err
		}
		parents := append([]primitive.ObjectID{ref.ID}, below...)
		nfiles, err := e.files.TrashUnder(ctx, uid, parents, ref.ID, at)
		if err != nil {
			return err
		}
		cascaded = nf + nfiles
		return nil
	})
	if err != nil {
		return e.fail("trash", ref, err)
	}
	if cascaded > 0 {
		e.log.Debug("folder trashed", zap.String("item", ref.String()), zap.Int64("cascaded", cascaded))
	}
	return nil
}

// Restore brings a trashed item back. Items trashed together with it (same
// stamp) come back too; items trashed separately beforehand stay in the
// trash. If the item's parent is gone or still trashed, the item is moved to
// the root. Restoring an active item does nothing.
func (e *Engine) Restore(ctx context.Context, id access.Identity, ref models.ItemRef) error {
	uid, err := owner(id)
	if err != nil {
		return err
	}
	item, err := e.load(ctx, uid, ref)
	if err != nil {
		return e.fail("restore", ref, err)
	}
	st := item.State()
	if !st.Deleted {
		return nil
	}

	detach, err := e.orphaned(ctx, uid, item.Parent())
	if err != nil {
		return e.fail("restore", ref, err)
	}

	if ref.Kind == models.KindFile {
		if _, err := e.files.Restore(ctx, uid, ref.ID, detach); err != nil {
			return e.fail("restore", ref, err)
		}
		return nil
	}

	stamp := ref.ID
	if st.TrashedWith != nil {
		stamp = *st.TrashedWith
	}

	err = txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		ok, err := e.folders.Restore(ctx, uid, ref.ID, detach)
		if err != nil || !ok {
			return err
		}
		below, err := e.folders.Descendants(ctx, uid, ref.ID, bson.M{"deleted": true, "trashed_with": stamp})
		if err != nil {
			return err
		}
		if _, err := e.folders.RestoreWith(ctx, uid, below, stamp); err != nil {
			return err
		}
		parents := append([]primitive.ObjectID{ref.ID}, below...)
		_, err = e.files.RestoreUnder(ctx, uid, parents, stamp)
		return err
	})
	if err != nil {
		return e.fail("restore", ref, err)
	}
	return nil
}

// orphaned reports whether a restored item must be detached because its
// parent folder no longer exists or is trashed.
func (e *Engine) orphaned(ctx context.Context, uid primitive.ObjectID, parent *primitive.ObjectID) (bool, error) {
	if parent == nil {
		return false, nil
	}
	_, err := e.folders.GetActive(ctx, uid, *parent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return true, nil
	}
	return false, err
}

// Move re-parents an active item. parent nil moves it to the root. A folder
// cannot be moved into itself or below itself.
func (e *Engine) Move(ctx context.Context, id access.Identity, ref models.ItemRef, parent *primitive.ObjectID) error {
	uid, err := owner(id)
	if err != nil {
		return err
	}
	ops, err := e.ops(ref)
	if err != nil {
		return err
	}

	item, err := e.load(ctx, uid, ref)
	if err != nil {
		return e.fail("move", ref, err)
	}
	if item.State().Deleted {
		return domain.InvalidInput("trashed items cannot be moved")
	}
	if err := e.activeFolder(ctx, uid, parent); err != nil {
		return err
	}

	if ref.Kind == models.KindFolder && parent != nil {
		within, err := e.folders.IsWithin(ctx, uid, *parent, ref.ID)
		if err != nil {
			return e.fail("move", ref, err)
		}
		if within {
			return domain.InvalidInput("a folder cannot be moved into itself")
		}
	}

	if err := ops.SetParent(ctx, uid, ref.ID, parent); err != nil {
		return e.fail("move", ref, err)
	}
	return nil
}
