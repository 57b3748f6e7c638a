// Package orphanstore records blobs whose metadata was purged but whose
// content could not be deleted, so a background job can retry later.
package orphanstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding orphaned blob references.
const CollectionName = "orphan_blobs"

// Orphan is a blob without a metadata record.
type Orphan struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ContentID string             `bson:"content_id"`
	UserID    primitive.ObjectID `bson:"user_id"`
	FileID    primitive.ObjectID `bson:"file_id"`
	Attempts  int                `bson:"attempts"`
	LastError string             `bson:"last_error,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// Store provides access to the orphan_blobs collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new orphan store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// Record adds an orphan. Recording the same content id twice keeps one entry.
func (s *Store) Record(ctx context.Context, contentID string, userID, fileID primitive.ObjectID, cause error) error {
	now := time.Now()
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.c.UpdateOne(ctx,
		bson.M{"content_id": contentID},
		bson.M{
			"$set": bson.M{"last_error": msg, "updated_at": now},
			"$setOnInsert": bson.M{
				"user_id":    userID,
				"file_id":    fileID,
				"attempts":   0,
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// ListDue returns up to limit orphans, least recently tried first.
func (s *Store) ListDue(ctx context.Context, limit int64) ([]Orphan, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Orphan
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkFailed bumps the attempt counter after a failed retry.
func (s *Store) MarkFailed(ctx context.Context, id primitive.ObjectID, cause error) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"attempts": 1},
			"$set": bson.M{"last_error": cause.Error(), "updated_at": time.Now()},
		},
	)
	return err
}

// Delete removes an orphan once its blob is gone.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Count returns the number of recorded orphans.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}
