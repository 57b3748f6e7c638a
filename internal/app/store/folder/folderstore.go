// Package folder provides storage for folders.
package folder

import (
	"context"
	"regexp"

	"github.com/dalemusser/stratadrive/internal/app/store/itemstore"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding folders.
const CollectionName = "folders"

// Store provides access to the folders collection. Lifecycle updates come
// from the embedded itemstore.Collection.
type Store struct {
	itemstore.Collection[models.Folder]
}

// New creates a new folder store.
func New(db *mongo.Database) *Store {
	return &Store{
		Collection: itemstore.NewCollection[models.Folder](db.Collection(CollectionName), "parent_id"),
	}
}

// CreateInput contains the input for creating a folder.
type CreateInput struct {
	UserID   primitive.ObjectID
	Name     string
	ParentID *primitive.ObjectID
}

// Create creates a new active folder.
func (s *Store) Create(ctx context.Context, input CreateInput) (*models.Folder, error) {
	folder := models.Folder{
		ID:        primitive.NewObjectID(),
		Name:      input.Name,
		NameCI:    text.Fold(input.Name),
		ParentID:  input.ParentID,
		ItemState: models.NewItemState(input.UserID, itemstore.Now()),
	}

	if err := s.Insert(ctx, &folder); err != nil {
		return nil, err
	}

	return &folder, nil
}

// ListOptions contains options for listing folders.
type ListOptions struct {
	SortBy    string // "name", "created_at", "updated_at"
	SortOrder int    // 1 = asc, -1 = desc
	Search    string // Filter by name
	AnyParent bool   // Ignore the parent and match across all folders
}

// ListActive returns the owner's active folders within a parent folder.
// Pass nil for parentID to list root folders.
func (s *Store) ListActive(ctx context.Context, userID primitive.ObjectID, parentID *primitive.ObjectID, opts ListOptions) ([]models.Folder, error) {
	filter := bson.M{"deleted": false}
	if !opts.AnyParent {
		filter["parent_id"] = parentID
	}
	if opts.Search != "" {
		filter["name_ci"] = bson.M{"$regex": regexp.QuoteMeta(text.Fold(opts.Search))}
	}

	// Determine sort field
	sortField := "name_ci"
	switch opts.SortBy {
	case "created_at", "date":
		sortField = "created_at"
	case "updated_at":
		sortField = "updated_at"
	}

	sortOrder := 1
	if opts.SortOrder != 0 {
		sortOrder = opts.SortOrder
	}

	return s.Find(ctx, userID, filter, options.Find().SetSort(bson.D{{Key: sortField, Value: sortOrder}}))
}

// ListStarred returns the owner's starred active folders.
func (s *Store) ListStarred(ctx context.Context, userID primitive.ObjectID) ([]models.Folder, error) {
	return s.Find(ctx, userID,
		bson.M{"starred": true, "deleted": false},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}}),
	)
}

// ListTrashRoots returns folders the owner trashed directly, most recent
// first. Folders trashed by a cascade are not included.
func (s *Store) ListTrashRoots(ctx context.Context, userID primitive.ObjectID) ([]models.Folder, error) {
	return s.Find(ctx, userID,
		bson.M{"deleted": true, "trashed_with": nil},
		options.Find().SetSort(bson.D{{Key: "deleted_at", Value: -1}}),
	)
}

// Descendants returns the ids of every folder below root, in breadth-first
// order. extra narrows which folders are followed (nil follows all).
func (s *Store) Descendants(ctx context.Context, userID, root primitive.ObjectID, extra bson.M) ([]primitive.ObjectID, error) {
	var all []primitive.ObjectID
	frontier := []primitive.ObjectID{root}
	for len(frontier) > 0 {
		kids, err := s.ChildIDs(ctx, userID, frontier, extra)
		if err != nil {
			return nil, err
		}
		all = append(all, kids...)
		frontier = kids
	}
	return all, nil
}

// GetAncestors returns all ancestors of a folder, ordered from root to
// immediate parent.
func (s *Store) GetAncestors(ctx context.Context, userID, id primitive.ObjectID) ([]models.Folder, error) {
	folder, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	var ancestors []models.Folder

	// Walk up the parent chain
	currentParentID := folder.ParentID
	for currentParentID != nil {
		parent, err := s.Get(ctx, userID, *currentParentID)
		if err != nil {
			return nil, err
		}
		ancestors = append([]models.Folder{*parent}, ancestors...)
		currentParentID = parent.ParentID
	}

	return ancestors, nil
}

// IsWithin reports whether folder id is target or lies below it.
func (s *Store) IsWithin(ctx context.Context, userID, id, target primitive.ObjectID) (bool, error) {
	if id == target {
		return true, nil
	}
	ancestors, err := s.GetAncestors(ctx, userID, id)
	if err != nil {
		return false, err
	}
	for _, a := range ancestors {
		if a.ID == target {
			return true, nil
		}
	}
	return false, nil
}
