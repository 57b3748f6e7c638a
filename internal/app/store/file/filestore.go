// Package file provides storage for file metadata.
package file

import (
	"context"
	"regexp"
	"strings"

	"github.com/dalemusser/stratadrive/internal/app/store/itemstore"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding file records.
const CollectionName = "files"

// Store provides access to the files collection.
type Store struct {
	itemstore.Collection[models.File]
}

// New creates a new file store.
func New(db *mongo.Database) *Store {
	return &Store{
		Collection: itemstore.NewCollection[models.File](db.Collection(CollectionName), "folder_id"),
	}
}

// CreateInput contains the input for creating a file.
type CreateInput struct {
	UserID      primitive.ObjectID
	FolderID    *primitive.ObjectID
	Name        string
	Size        int64
	ContentType string
	ContentID   string
}

// Create creates a new active file record.
func (s *Store) Create(ctx context.Context, input CreateInput) (*models.File, error) {
	file := models.File{
		ID:          primitive.NewObjectID(),
		FolderID:    input.FolderID,
		Name:        input.Name,
		NameCI:      text.Fold(input.Name),
		Size:        input.Size,
		ContentType: input.ContentType,
		ContentID:   input.ContentID,
		ItemState:   models.NewItemState(input.UserID, itemstore.Now()),
	}

	if err := s.Insert(ctx, &file); err != nil {
		return nil, err
	}

	return &file, nil
}

// ListOptions contains options for listing files.
type ListOptions struct {
	SortBy      string // "name", "created_at", "updated_at", "size", "content_type"
	SortOrder   int    // 1 = asc, -1 = desc
	ContentType string // Filter by MIME type: prefix match (e.g., "image/") or contains match with ~ prefix (e.g., "~word,document")
	Search      string // Filter by filename
	AnyParent   bool   // Ignore the folder and match across all files
}

// ListActive returns the owner's active files within a folder.
// Pass nil for folderID to list root-level files.
func (s *Store) ListActive(ctx context.Context, userID primitive.ObjectID, folderID *primitive.ObjectID, opts ListOptions) ([]models.File, error) {
	filter := bson.M{"deleted": false}
	if !opts.AnyParent {
		filter["folder_id"] = folderID
	}

	// Apply content type filter
	if opts.ContentType != "" {
		if strings.HasPrefix(opts.ContentType, "~") {
			// Contains matching: ~word,document means contains "word" OR "document"
			terms := strings.Split(opts.ContentType[1:], ",")
			var orConditions []bson.M
			for _, term := range terms {
				term = strings.TrimSpace(term)
				if term != "" {
					orConditions = append(orConditions, bson.M{
						"content_type": bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"},
					})
				}
			}
			if len(orConditions) > 0 {
				filter["$or"] = orConditions
			}
		} else {
			filter["content_type"] = bson.M{"$regex": "^" + regexp.QuoteMeta(opts.ContentType)}
		}
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
	case "size":
		sortField = "size"
	case "content_type", "type":
		sortField = "content_type"
	}

	sortOrder := 1
	if opts.SortOrder != 0 {
		sortOrder = opts.SortOrder
	}

	return s.Find(ctx, userID, filter, options.Find().SetSort(bson.D{{Key: sortField, Value: sortOrder}}))
}

// ListStarred returns the owner's starred active files.
func (s *Store) ListStarred(ctx context.Context, userID primitive.ObjectID) ([]models.File, error) {
	return s.Find(ctx, userID,
		bson.M{"starred": true, "deleted": false},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}}),
	)
}

// ListTrashRoots returns files the owner trashed directly, most recent first.
func (s *Store) ListTrashRoots(ctx context.Context, userID primitive.ObjectID) ([]models.File, error) {
	return s.Find(ctx, userID,
		bson.M{"deleted": true, "trashed_with": nil},
		options.Find().SetSort(bson.D{{Key: "deleted_at", Value: -1}}),
	)
}

// ListRecent returns the owner's most recently changed active files.
func (s *Store) ListRecent(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.File, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.Find(ctx, userID,
		bson.M{"deleted": false},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}).SetLimit(limit),
	)
}

// InFolders returns every file of the owner whose folder is in folderIDs,
// regardless of state.
func (s *Store) InFolders(ctx context.Context, userID primitive.ObjectID, folderIDs []primitive.ObjectID) ([]models.File, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	return s.Find(ctx, userID, bson.M{"folder_id": bson.M{"$in": folderIDs}})
}
