package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratadrive/internal/app/store/itemstore"
	"github.com/dalemusser/stratadrive/internal/app/system/access"
	"github.com/dalemusser/stratadrive/internal/app/system/blob"
	"github.com/dalemusser/stratadrive/internal/app/system/txn"
	"github.com/dalemusser/stratadrive/internal/domain"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Purge permanently removes an item in any state. For a folder the whole
// subtree goes with it; for files the stored content is deleted after the
// records are gone.
//
// The delete is predicated on the version and trashed flag observed when
// the item was read. If a concurrent star, rename, move or restore changed
// it in between, Purge fails with Conflict and nothing is removed.
func (e *Engine) Purge(ctx context.Context, id access.Identity, ref models.ItemRef) error {
	uid, err := owner(id)
	if err != nil {
		return err
	}
	item, err := e.load(ctx, uid, ref)
	if err != nil {
		return e.fail("purge", ref, err)
	}
	st := item.State()
	snapshot := itemstore.Snapshot{Version: st.Version, Deleted: st.Deleted}

	var gone []models.File
	switch ref.Kind {
	case models.KindFile:
		f, err := e.files.DeleteIfUnchanged(ctx, uid, ref.ID, snapshot)
		if err != nil {
			return e.purgeFail(ref, err)
		}
		gone = []models.File{*f}

	case models.KindFolder:
		err = txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
			gone = nil
			if _, err := e.folders.DeleteIfUnchanged(ctx, uid, ref.ID, snapshot); err != nil {
				return err
			}
			_, gone, err = e.removeSubtree(ctx, uid, ref.ID)
			return err
		})
		if err != nil {
			return e.purgeFail(ref, err)
		}
	}

	e.log.Info("item purged", zap.String("item", ref.String()), zap.Int("files", len(gone)))
	return e.deleteContent(ctx, gone)
}

func (e *Engine) purgeFail(ref models.ItemRef, err error) error {
	if errors.Is(err, itemstore.ErrStale) {
		return domain.Conflict(string(ref.Kind) + " changed while it was being purged")
	}
	return e.fail("purge", ref, err)
}

// removeSubtree deletes every folder below root and every file in root or
// below it, in any state. root itself must already be deleted by the
// caller. It returns the number of folders removed below root and the
// removed files, whose content still has to be deleted.
func (e *Engine) removeSubtree(ctx context.Context, uid, root primitive.ObjectID) (int, []models.File, error) {
	below, err := e.folders.Descendants(ctx, uid, root, nil)
	if err != nil {
		return 0, nil, err
	}
	files, err := e.files.InFolders(ctx, uid, append([]primitive.ObjectID{root}, below...))
	if err != nil {
		return 0, nil, err
	}
	if _, err := e.folders.DeleteByIDs(ctx, uid, below); err != nil {
		return 0, nil, err
	}
	ids := make([]primitive.ObjectID, len(files))
	for i := range files {
		ids[i] = files[i].ID
	}
	if _, err := e.files.DeleteByIDs(ctx, uid, ids); err != nil {
		return 0, nil, err
	}
	return len(below), files, nil
}

// deleteContent removes the blobs of purged files. Every blob is attempted;
// failures are recorded as orphans for the reaper and reported as a single
// StorageFault.
func (e *Engine) deleteContent(ctx context.Context, files []models.File) error {
	var errs []error
	for i := range files {
		f := &files[i]
		err := e.blobs.Delete(ctx, f.ContentID)
		if err == nil {
			continue
		}
		if errors.Is(err, blob.ErrNotFound) {
			e.log.Warn("purged file had no content", zap.String("item", f.Ref().String()))
			continue
		}
		e.log.Error("content delete failed",
			zap.String("item", f.Ref().String()),
			zap.String("content_id", f.ContentID),
			zap.Error(err))
		if e.orphans != nil {
			if rerr := e.orphans.Record(context.WithoutCancel(ctx), f.ContentID, f.UserID, f.ID, err); rerr != nil {
				e.log.Error("orphan record failed", zap.String("content_id", f.ContentID), zap.Error(rerr))
			}
		}
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return domain.StorageFault("delete content", errors.Join(errs...))
	}
	return nil
}

// EmptyTrash purges every item in the owner's trash listing. Items that
// vanish or change concurrently are skipped. It returns how many roots were
// purged.
func (e *Engine) EmptyTrash(ctx context.Context, id access.Identity) (int, error) {
	listing, err := e.ListTrashed(ctx, id)
	if err != nil {
		return 0, err
	}

	refs := make([]models.ItemRef, 0, len(listing.Folders)+len(listing.Files))
	for i := range listing.Folders {
		refs = append(refs, listing.Folders[i].Ref())
	}
	for i := range listing.Files {
		refs = append(refs, listing.Files[i].Ref())
	}

	purged := 0
	var faults []error
	for _, ref := range refs {
		err := e.Purge(ctx, id, ref)
		switch {
		case err == nil:
			purged++
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict):
		case errors.Is(err, domain.ErrStorageFault) && ctx.Err() == nil:
			// The record is gone; only content cleanup failed.
			purged++
			faults = append(faults, err)
		default:
			return purged, err
		}
	}
	if len(faults) > 0 {
		return purged, faults[0]
	}
	return purged, nil
}

// SweepResult counts what SweepExpired removed.
type SweepResult struct {
	Folders int `json:"folders"`
	Files   int `json:"files"`
}

// SweepExpired purges, across all owners, every trash root whose deleted_at
// is older than now minus the retention window, together with the items
// trashed with it. Each delete re-checks deleted and deleted_at, so an item
// restored while the sweep runs is left alone.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) (SweepResult, error) {
	cutoff := now.UTC().Add(-e.cfg.Retention)
	var res SweepResult
	var faults []error

	for {
		ids, err := e.folders.ExpiredRootIDs(ctx, cutoff, e.cfg.SweepBatch)
		if err != nil {
			return res, e.fault("sweep", models.ItemRef{Kind: models.KindFolder}, err)
		}
		for _, fid := range ids {
			var gone []models.File
			var removed int
			err := txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
				gone, removed = nil, 0
				doc, err := e.folders.DeleteExpired(ctx, fid, cutoff)
				if err != nil {
					return err
				}
				n, files, err := e.removeSubtree(ctx, doc.UserID, fid)
				if err != nil {
					return err
				}
				gone, removed = files, 1+n
				return nil
			})
			if errors.Is(err, mongo.ErrNoDocuments) {
				continue
			}
			if err != nil {
				return res, e.fault("sweep", models.FolderRef(fid), err)
			}
			res.Folders += removed
			res.Files += len(gone)
			if err := e.deleteContent(ctx, gone); err != nil {
				faults = append(faults, err)
			}
		}
		if int64(len(ids)) < e.cfg.SweepBatch {
			break
		}
	}

	for {
		ids, err := e.files.ExpiredRootIDs(ctx, cutoff, e.cfg.SweepBatch)
		if err != nil {
			return res, e.fault("sweep", models.ItemRef{Kind: models.KindFile}, err)
		}
		for _, fid := range ids {
			f, err := e.files.DeleteExpired(ctx, fid, cutoff)
			if errors.Is(err, mongo.ErrNoDocuments) {
				continue
			}
			if err != nil {
				return res, e.fault("sweep", models.FileRef(fid), err)
			}
			res.Files++
			if err := e.deleteContent(ctx, []models.File{*f}); err != nil {
				faults = append(faults, err)
			}
		}
		if int64(len(ids)) < e.cfg.SweepBatch {
			break
		}
	}

	if res.Folders > 0 || res.Files > 0 {
		e.log.Info("trash sweep purged items",
			zap.Int("folders", res.Folders),
			zap.Int("files", res.Files),
			zap.Time("cutoff", cutoff))
	}
	if len(faults) > 0 {
		return res, errors.Join(faults...)
	}
	return res, nil
}
