// internal/app/store/jobstats/jobstatsstore.go
package jobstatsstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Counter suffixes recorded per job.
const (
	SuffixRuns     = ".runs"
	SuffixFailures = ".failures"
)

// Day holds one job's counters for a single UTC day.
type Day struct {
	ID        primitive.ObjectID `bson:"_id"`
	Date      time.Time          `bson:"date"` // UTC midnight
	Job       string             `bson:"job"`
	Counters  map[string]int64   `bson:"counters"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// Count returns a counter, or zero when it was never incremented.
func (d *Day) Count(name string) int64 {
	if d == nil {
		return 0
	}
	return d.Counters[name]
}

// Store persists per-day background job counters.
type Store struct {
	c *mongo.Collection
}

// New creates a job stats store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("job_stats")}
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Increment atomically adds delta to a job's counter for the day containing at.
func (s *Store) Increment(ctx context.Context, at time.Time, job, counter string, delta int64) error {
	_, err := s.c.UpdateOne(ctx, bson.M{
		"date": truncateToDay(at),
		"job":  job,
	}, bson.M{
		"$inc":         bson.M{"counters." + counter: delta},
		"$set":         bson.M{"updated_at": time.Now().UTC()},
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
	}, options.Update().SetUpsert(true))
	return err
}

// GetRange returns every job's counters for days in [from, to], oldest first.
func (s *Store) GetRange(ctx context.Context, from, to time.Time) ([]Day, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"date": bson.M{
			"$gte": truncateToDay(from),
			"$lte": truncateToDay(to),
		},
	}, options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "job", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Day
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
