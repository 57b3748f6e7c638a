package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/stratadrive/internal/app/store/itemstore"
	"github.com/dalemusser/stratadrive/internal/app/system/blob"
	"github.com/dalemusser/stratadrive/internal/domain"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
)

// brokenDeletes fails every content delete.
type brokenDeletes struct {
	blob.Store
}

func (brokenDeletes) Delete(context.Context, string) error {
	return errors.New("object store unavailable")
}

func (f *fixture) contentExists(contentID string) bool {
	f.t.Helper()
	rc, err := f.blobs.Get(f.ctx, contentID)
	if errors.Is(err, blob.ErrNotFound) {
		return false
	}
	if err != nil {
		f.t.Fatalf("blobs.Get(%s) error = %v", contentID, err)
	}
	rc.Close()
	return true
}

func TestPurge_Irreversible(t *testing.T) {
	f := newFixture(t)
	file := f.upload("a.txt", nil, "a")
	ref := file.Ref()

	if err := f.e.SoftDelete(f.ctx, f.ana, ref); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}
	if err := f.e.Purge(f.ctx, f.ana, ref); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}

	if err := f.e.Restore(f.ctx, f.ana, ref); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Restore(purged) error = %v, want NotFound", err)
	}
	if err := f.e.Star(f.ctx, f.ana, ref, true); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Star(purged) error = %v, want NotFound", err)
	}
	if err := f.e.Rename(f.ctx, f.ana, ref, "b.txt"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Rename(purged) error = %v, want NotFound", err)
	}
	if err := f.e.Purge(f.ctx, f.ana, ref); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second Purge() error = %v, want NotFound", err)
	}

	active, _ := f.e.ListActive(f.ctx, f.ana, nil, ListOptions{})
	trash, _ := f.e.ListTrashed(f.ctx, f.ana)
	starred, _ := f.e.ListStarred(f.ctx, f.ana)
	for name, l := range map[string]*Listing{"active": active, "trash": trash, "starred": starred} {
		if refsOf(l)[ref.String()] {
			t.Errorf("purged file still listed in %s", name)
		}
	}
	if f.contentExists(file.ContentID) {
		t.Error("purged file content still stored")
	}
}

func TestPurge_ActiveItem(t *testing.T) {
	f := newFixture(t)
	file := f.upload("a.txt", nil, "a")

	if err := f.e.Purge(f.ctx, f.ana, file.Ref()); err != nil {
		t.Fatalf("Purge(active) error = %v", err)
	}
	if _, err := f.e.Get(f.ctx, f.ana, file.Ref()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get(purged) error = %v, want NotFound", err)
	}
}

func TestPurge_FolderSubtree(t *testing.T) {
	f := newFixture(t)
	a := f.folder("A", nil)
	b := f.folder("B", &a.ID)
	inA := f.upload("a.txt", &a.ID, "a")
	inB := f.upload("b.txt", &b.ID, "b")
	outside := f.upload("keep.txt", nil, "k")

	// Trashed separately; still part of the subtree.
	_ = f.e.SoftDelete(f.ctx, f.ana, inB.Ref())
	_ = f.e.SoftDelete(f.ctx, f.ana, a.Ref())

	if err := f.e.Purge(f.ctx, f.ana, a.Ref()); err != nil {
		t.Fatalf("Purge(A) error = %v", err)
	}
	for _, ref := range []models.ItemRef{a.Ref(), b.Ref(), inA.Ref(), inB.Ref()} {
		if _, err := f.e.Get(f.ctx, f.ana, ref); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Get(%s) after folder purge error = %v, want NotFound", ref, err)
		}
	}
	for _, contentID := range []string{inA.ContentID, inB.ContentID} {
		if f.contentExists(contentID) {
			t.Errorf("content %s should be deleted", contentID)
		}
	}
	if f.get(outside.Ref()).State().Deleted {
		t.Error("unrelated file changed")
	}
	if !f.contentExists(outside.ContentID) {
		t.Error("unrelated content deleted")
	}
}

func TestPurge_StaleSnapshotConflicts(t *testing.T) {
	f := newFixture(t)
	file := f.upload("a.txt", nil, "a")
	_ = f.e.SoftDelete(f.ctx, f.ana, file.Ref())
	st := f.state(file.Ref())
	seen := itemstore.Snapshot{Version: st.Version, Deleted: st.Deleted}

	// A star lands between the purge's read and its delete.
	if err := f.e.Star(f.ctx, f.ana, file.Ref(), true); err != nil {
		t.Fatalf("Star() error = %v", err)
	}

	_, err := f.e.files.DeleteIfUnchanged(f.ctx, f.ana.UserID(), file.ID, seen)
	if !errors.Is(err, itemstore.ErrStale) {
		t.Fatalf("DeleteIfUnchanged(stale) error = %v, want ErrStale", err)
	}
	if got := f.e.purgeFail(file.Ref(), err); !errors.Is(got, domain.ErrConflict) {
		t.Errorf("purgeFail(ErrStale) = %v, want Conflict", got)
	}

	st = f.state(file.Ref())
	if !st.Starred || !st.Deleted {
		t.Errorf("state after conflict = %+v, want starred and trashed", st)
	}
	if !f.contentExists(file.ContentID) {
		t.Error("content deleted despite conflict")
	}
}

func TestPurge_FailedContentDeleteRecordsOrphan(t *testing.T) {
	f := newFixtureWithBlobs(t, func(s blob.Store) blob.Store { return brokenDeletes{s} })
	file := f.upload("a.txt", nil, "a")

	err := f.e.Purge(f.ctx, f.ana, file.Ref())
	if !errors.Is(err, domain.ErrStorageFault) {
		t.Fatalf("Purge() error = %v, want StorageFault", err)
	}
	if _, err := f.e.Get(f.ctx, f.ana, file.Ref()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("record should be gone, Get() error = %v", err)
	}

	n, err := f.orphans.Count(f.ctx)
	if err != nil {
		t.Fatalf("orphans.Count() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("orphans.Count() = %d, want 1", n)
	}
	due, _ := f.orphans.ListDue(f.ctx, 10)
	if len(due) != 1 || due[0].ContentID != file.ContentID {
		t.Errorf("orphan = %+v, want content %s", due, file.ContentID)
	}
}

func TestPurge_MissingContentIsNotAnError(t *testing.T) {
	f := newFixture(t)
	file := f.upload("a.txt", nil, "a")
	if err := f.blobs.Delete(f.ctx, file.ContentID); err != nil {
		t.Fatalf("blobs.Delete() error = %v", err)
	}
	if err := f.e.Purge(f.ctx, f.ana, file.Ref()); err != nil {
		t.Errorf("Purge() error = %v, want nil", err)
	}
}

func TestEmptyTrash(t *testing.T) {
	f := newFixture(t)
	a := f.folder("A", nil)
	f.upload("in-a.txt", &a.ID, "a")
	loose := f.upload("loose.txt", nil, "l")
	keep := f.upload("keep.txt", nil, "k")
	_ = f.e.SoftDelete(f.ctx, f.ana, a.Ref())
	_ = f.e.SoftDelete(f.ctx, f.ana, loose.Ref())

	n, err := f.e.EmptyTrash(f.ctx, f.ana)
	if err != nil {
		t.Fatalf("EmptyTrash() error = %v", err)
	}
	if n != 2 {
		t.Errorf("EmptyTrash() = %d, want 2", n)
	}
	trash, _ := f.e.ListTrashed(f.ctx, f.ana)
	if len(trash.Folders)+len(trash.Files) != 0 {
		t.Errorf("trash not empty: %+v", trash)
	}
	if f.get(keep.Ref()).State().Deleted {
		t.Error("active file touched by EmptyTrash")
	}

	n, err = f.e.EmptyTrash(f.ctx, f.ana)
	if err != nil || n != 0 {
		t.Errorf("EmptyTrash(empty) = %d, %v, want 0, nil", n, err)
	}
}

func TestSweepExpired_Retention(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.e.clock = func() time.Time { return t0 }
	window := f.e.Retention()

	file := f.upload("a.txt", nil, "a")
	if err := f.e.SoftDelete(f.ctx, f.ana, file.Ref()); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	res, err := f.e.SweepExpired(f.ctx, t0.Add(window-time.Second))
	if err != nil {
		t.Fatalf("SweepExpired(before window) error = %v", err)
	}
	if res.Files != 0 {
		t.Errorf("SweepExpired(before window) purged %d files, want 0", res.Files)
	}
	if !f.state(file.Ref()).Deleted {
		t.Fatal("file should still be in the trash")
	}

	res, err = f.e.SweepExpired(f.ctx, t0.Add(window+time.Second))
	if err != nil {
		t.Fatalf("SweepExpired(after window) error = %v", err)
	}
	if res.Files != 1 {
		t.Errorf("SweepExpired(after window) purged %d files, want 1", res.Files)
	}
	if _, err := f.e.Get(f.ctx, f.ana, file.Ref()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get(swept) error = %v, want NotFound", err)
	}
	if f.contentExists(file.ContentID) {
		t.Error("swept content still stored")
	}
}

func TestSweepExpired_FoldersAndActiveItems(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.e.clock = func() time.Time { return t0 }

	a := f.folder("A", nil)
	b := f.folder("B", &a.ID)
	inB := f.upload("b.txt", &b.ID, "b")
	active := f.upload("active.txt", nil, "x")
	restored := f.upload("restored.txt", nil, "r")

	_ = f.e.SoftDelete(f.ctx, f.ana, a.Ref())
	_ = f.e.SoftDelete(f.ctx, f.ana, restored.Ref())
	_ = f.e.Restore(f.ctx, f.ana, restored.Ref())

	res, err := f.e.SweepExpired(f.ctx, t0.Add(f.e.Retention()+time.Hour))
	if err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if res.Folders != 2 || res.Files != 1 {
		t.Errorf("SweepExpired() = %+v, want 2 folders and 1 file", res)
	}
	for _, ref := range []models.ItemRef{a.Ref(), b.Ref(), inB.Ref()} {
		if _, err := f.e.Get(f.ctx, f.ana, ref); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Get(%s) error = %v, want NotFound", ref, err)
		}
	}
	for _, ref := range []models.ItemRef{active.Ref(), restored.Ref()} {
		if f.get(ref).State().Deleted {
			t.Errorf("%s should be untouched", ref)
		}
	}
}

func TestSweepExpired_AllOwners(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.e.clock = func() time.Time { return t0 }

	mine := f.upload("ana.txt", nil, "a")
	theirs, err := f.e.CreateFolder(f.ctx, f.bob, "Bob's", nil)
	if err != nil {
		t.Fatalf("CreateFolder(bob) error = %v", err)
	}
	_ = f.e.SoftDelete(f.ctx, f.ana, mine.Ref())
	_ = f.e.SoftDelete(f.ctx, f.bob, theirs.Ref())

	res, err := f.e.SweepExpired(f.ctx, t0.Add(f.e.Retention()+time.Minute))
	if err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if res.Folders != 1 || res.Files != 1 {
		t.Errorf("SweepExpired() = %+v, want one item of each owner", res)
	}
}

func TestSweepExpired_Batches(t *testing.T) {
	f := newFixture(t)
	f.e.cfg.SweepBatch = 2
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.e.clock = func() time.Time { return t0 }

	for _, name := range []string{"1", "2", "3", "4", "5"} {
		file := f.upload(name+".txt", nil, name)
		_ = f.e.SoftDelete(f.ctx, f.ana, file.Ref())
	}

	res, err := f.e.SweepExpired(f.ctx, t0.Add(f.e.Retention()+time.Minute))
	if err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if res.Files != 5 {
		t.Errorf("SweepExpired() files = %d, want 5", res.Files)
	}
	left, _ := f.db.Collection("files").CountDocuments(f.ctx, bson.M{})
	if left != 0 {
		t.Errorf("%d file records left after sweep", left)
	}
}
