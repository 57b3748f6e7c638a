// Package itemstore implements the lifecycle updates shared by the folders
// and files collections. Every mutation is a conditional single-statement
// update filtered by _id, user_id and the expected lifecycle state, so
// concurrent callers serialize on the document. Every update also
// increments the document's version.
package itemstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrStale is returned by DeleteIfUnchanged when the document still exists
// but no longer matches the snapshot the caller read.
var ErrStale = errors.New("itemstore: item changed since it was read")

// Now returns the current time truncated to what MongoDB stores, so values
// written and values read back compare equal.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Collection wraps a collection whose documents inline models.ItemState.
// T is the document type; parentField names its parent reference
// ("parent_id" for folders, "folder_id" for files).
type Collection[T any] struct {
	c           *mongo.Collection
	parentField string
}

// NewCollection binds a collection.
func NewCollection[T any](c *mongo.Collection, parentField string) Collection[T] {
	return Collection[T]{c: c, parentField: parentField}
}

func owned(userID, id primitive.ObjectID) bson.M {
	return bson.M{"_id": id, "user_id": userID}
}

// Get loads one item of the owner. Returns mongo.ErrNoDocuments if missing.
func (s Collection[T]) Get(ctx context.Context, userID, id primitive.ObjectID) (*T, error) {
	var out T
	if err := s.c.FindOne(ctx, owned(userID, id)).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetActive loads one non-trashed item of the owner.
func (s Collection[T]) GetActive(ctx context.Context, userID, id primitive.ObjectID) (*T, error) {
	filter := owned(userID, id)
	filter["deleted"] = false
	var out T
	if err := s.c.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Exists reports whether the owner has an item with this id.
func (s Collection[T]) Exists(ctx context.Context, userID, id primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, owned(userID, id), options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Insert stores a new document.
func (s Collection[T]) Insert(ctx context.Context, doc *T) error {
	_, err := s.c.InsertOne(ctx, doc)
	return err
}

// changes builds the update document for set, stamping updated_at and
// bumping version.
func changes(set bson.M) bson.M {
	set["updated_at"] = Now()
	return bson.M{"$set": set, "$inc": bson.M{"version": 1}}
}

// update applies set to the matching document and reports whether one
// matched.
func (s Collection[T]) update(ctx context.Context, filter, set bson.M) (bool, error) {
	res, err := s.c.UpdateOne(ctx, filter, changes(set))
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// updateExisting is update for operations that are valid in any state:
// no match means the item does not exist.
func (s Collection[T]) updateExisting(ctx context.Context, userID, id primitive.ObjectID, set bson.M) error {
	ok, err := s.update(ctx, owned(userID, id), set)
	if err != nil {
		return err
	}
	if !ok {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetStarred flips the starred overlay. Allowed in any non-purged state.
func (s Collection[T]) SetStarred(ctx context.Context, userID, id primitive.ObjectID, starred bool) error {
	return s.updateExisting(ctx, userID, id, bson.M{"starred": starred})
}

// Rename sets name and its folded form.
func (s Collection[T]) Rename(ctx context.Context, userID, id primitive.ObjectID, name string) error {
	return s.updateExisting(ctx, userID, id, bson.M{
		"name":    name,
		"name_ci": text.Fold(name),
	})
}

// SetParent moves an active item. Returns mongo.ErrNoDocuments if the item
// is missing or trashed.
func (s Collection[T]) SetParent(ctx context.Context, userID, id primitive.ObjectID, parent *primitive.ObjectID) error {
	filter := owned(userID, id)
	filter["deleted"] = false
	ok, err := s.update(ctx, filter, bson.M{s.parentField: parent})
	if err != nil {
		return err
	}
	if !ok {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Trash moves an active item to the trash as a trash root. It returns false
// with a nil error when the item was already trashed.
func (s Collection[T]) Trash(ctx context.Context, userID, id primitive.ObjectID, at time.Time) (bool, error) {
	filter := owned(userID, id)
	filter["deleted"] = false
	ok, err := s.update(ctx, filter, bson.M{
		"deleted":      true,
		"deleted_at":   at,
		"trashed_with": nil,
	})
	if err != nil || ok {
		return ok, err
	}
	exists, err := s.Exists(ctx, userID, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, mongo.ErrNoDocuments
	}
	return false, nil
}

// TrashWith stamps the given active items as trashed together with root.
func (s Collection[T]) TrashWith(ctx context.Context, userID primitive.ObjectID, ids []primitive.ObjectID, root primitive.ObjectID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.trashMany(ctx, bson.M{
		"_id":     bson.M{"$in": ids},
		"user_id": userID,
		"deleted": false,
	}, root, at)
}

// TrashUnder stamps every active item whose parent is in parents.
func (s Collection[T]) TrashUnder(ctx context.Context, userID primitive.ObjectID, parents []primitive.ObjectID, root primitive.ObjectID, at time.Time) (int64, error) {
	if len(parents) == 0 {
		return 0, nil
	}
	return s.trashMany(ctx, bson.M{
		"user_id":     userID,
		s.parentField: bson.M{"$in": parents},
		"deleted":     false,
	}, root, at)
}

func (s Collection[T]) trashMany(ctx context.Context, filter bson.M, root primitive.ObjectID, at time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx, filter, changes(bson.M{
		"deleted":      true,
		"deleted_at":   at,
		"trashed_with": root,
	}))
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Restore brings a trashed item back. When detach is set the parent
// reference is cleared as well. It returns false with a nil error when the
// item was already active.
func (s Collection[T]) Restore(ctx context.Context, userID, id primitive.ObjectID, detach bool) (bool, error) {
	filter := owned(userID, id)
	filter["deleted"] = true
	set := restoredFields()
	if detach {
		set[s.parentField] = nil
	}
	ok, err := s.update(ctx, filter, set)
	if err != nil || ok {
		return ok, err
	}
	exists, err := s.Exists(ctx, userID, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, mongo.ErrNoDocuments
	}
	return false, nil
}

// RestoreWith restores the listed items that still carry the stamp.
func (s Collection[T]) RestoreWith(ctx context.Context, userID primitive.ObjectID, ids []primitive.ObjectID, stamp primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.restoreMany(ctx, bson.M{
		"_id":          bson.M{"$in": ids},
		"user_id":      userID,
		"deleted":      true,
		"trashed_with": stamp,
	})
}

// RestoreUnder restores every item under parents that carries the stamp.
func (s Collection[T]) RestoreUnder(ctx context.Context, userID primitive.ObjectID, parents []primitive.ObjectID, stamp primitive.ObjectID) (int64, error) {
	if len(parents) == 0 {
		return 0, nil
	}
	return s.restoreMany(ctx, bson.M{
		"user_id":      userID,
		s.parentField:  bson.M{"$in": parents},
		"deleted":      true,
		"trashed_with": stamp,
	})
}

func (s Collection[T]) restoreMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := s.c.UpdateMany(ctx, filter, changes(restoredFields()))
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func restoredFields() bson.M {
	return bson.M{
		"deleted":      false,
		"deleted_at":   nil,
		"trashed_with": nil,
	}
}

// ChildIDs returns the ids of items whose parent is in parents and that
// also match extra (may be nil).
func (s Collection[T]) ChildIDs(ctx context.Context, userID primitive.ObjectID, parents []primitive.ObjectID, extra bson.M) ([]primitive.ObjectID, error) {
	if len(parents) == 0 {
		return nil, nil
	}
	filter := bson.M{
		"user_id":     userID,
		s.parentField: bson.M{"$in": parents},
	}
	for k, v := range extra {
		filter[k] = v
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

// Snapshot is the state a caller observed before deciding to delete.
type Snapshot struct {
	Version int64
	Deleted bool
}

// DeleteIfUnchanged removes the item only if its version and trashed flag
// still equal the snapshot. Returns mongo.ErrNoDocuments if the item is
// gone and ErrStale if it changed.
func (s Collection[T]) DeleteIfUnchanged(ctx context.Context, userID, id primitive.ObjectID, snap Snapshot) (*T, error) {
	filter := owned(userID, id)
	filter["version"] = snap.Version
	filter["deleted"] = snap.Deleted

	var out T
	err := s.c.FindOneAndDelete(ctx, filter).Decode(&out)
	if err == nil {
		return &out, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	exists, xerr := s.Exists(ctx, userID, id)
	if xerr != nil {
		return nil, xerr
	}
	if exists {
		return nil, ErrStale
	}
	return nil, mongo.ErrNoDocuments
}

// DeleteExpired removes a trashed item whose deleted_at is before cutoff.
// Returns mongo.ErrNoDocuments if it no longer qualifies.
func (s Collection[T]) DeleteExpired(ctx context.Context, id primitive.ObjectID, cutoff time.Time) (*T, error) {
	var out T
	err := s.c.FindOneAndDelete(ctx, bson.M{
		"_id":        id,
		"deleted":    true,
		"deleted_at": bson.M{"$lt": cutoff},
	}).Decode(&out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteByIDs removes the listed items of the owner.
func (s Collection[T]) DeleteByIDs(ctx context.Context, userID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}, "user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ExpiredRootIDs returns trash roots of any owner trashed before cutoff.
func (s Collection[T]) ExpiredRootIDs(ctx context.Context, cutoff time.Time, limit int64) ([]primitive.ObjectID, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "deleted_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{
		"deleted":      true,
		"deleted_at":   bson.M{"$lt": cutoff},
		"trashed_with": nil,
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

// Find runs an owner-scoped query. The user_id condition is always added.
func (s Collection[T]) Find(ctx context.Context, userID primitive.ObjectID, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	q := bson.M{"user_id": userID}
	for k, v := range filter {
		q[k] = v
	}
	cur, err := s.c.Find(ctx, q, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
