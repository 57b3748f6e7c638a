// internal/app/store/ratelimit/store.go
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratadrive/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding attempt counters.
const CollectionName = "rate_limits"

// Attempt tracks failed sign-in attempts for one email.
type Attempt struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`         // Normalized email (lowercase)
	AttemptCount int                `bson:"attempt_count"` // Failed attempts in current window
	WindowStart  time.Time          `bson:"window_start"`  // When the current counting window started
	LockedUntil  *time.Time         `bson:"locked_until"`  // Lockout expiry time (nil if not locked)
	LastAttempt  time.Time          `bson:"last_attempt"`  // Most recent attempt (TTL index)
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// Store manages sign-in throttling. Counters are updated with atomic
// upserts so concurrent failures for one email are all counted.
type Store struct {
	c               *mongo.Collection
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
}

// New creates a new rate limit Store with the given configuration.
func New(db *mongo.Database, maxAttempts int, window, lockout time.Duration) *Store {
	return &Store{
		c:               db.Collection(CollectionName),
		maxAttempts:     maxAttempts,
		windowDuration:  window,
		lockoutDuration: lockout,
	}
}

// CheckAllowed checks if the given email may attempt to sign in.
// Returns:
//   - allowed: true if the attempt should be processed
//   - remaining: attempts left before lockout (-1 if locked)
//   - lockedUntil: when the lockout expires (nil if not locked)
//
// Lookup errors fail open.
func (s *Store) CheckAllowed(ctx context.Context, email string) (allowed bool, remaining int, lockedUntil *time.Time) {
	now := time.Now()

	attempt, err := s.GetAttempt(ctx, email)
	if err != nil || attempt == nil {
		return true, s.maxAttempts, nil
	}

	if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
		return false, -1, attempt.LockedUntil
	}

	if s.windowExpired(attempt, now) {
		return true, s.maxAttempts, nil
	}

	remaining = s.maxAttempts - attempt.AttemptCount
	if remaining <= 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

func (s *Store) windowExpired(a *Attempt, now time.Time) bool {
	return now.After(a.WindowStart.Add(s.windowDuration))
}

// RecordFailure counts a failed attempt for the given email.
// Returns:
//   - lockedOut: true if this failure triggered a lockout
//   - lockedUntil: when the lockout expires (nil if not locked)
func (s *Store) RecordFailure(ctx context.Context, email string) (lockedOut bool, lockedUntil *time.Time) {
	key := normalize.Email(email)
	now := time.Now()

	// Start a new window if the current one has lapsed.
	_, _ = s.c.UpdateOne(ctx,
		bson.M{"email": key, "window_start": bson.M{"$lt": now.Add(-s.windowDuration)}},
		bson.M{"$set": bson.M{
			"attempt_count": 0,
			"window_start":  now,
			"locked_until":  nil,
		}},
	)

	var attempt Attempt
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"email": key},
		bson.M{
			"$inc": bson.M{"attempt_count": 1},
			"$set": bson.M{"last_attempt": now, "updated_at": now},
			"$setOnInsert": bson.M{
				"window_start": now,
				"locked_until": nil,
				"created_at":   now,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&attempt)
	if err != nil {
		return false, nil
	}

	if attempt.AttemptCount < s.maxAttempts {
		return false, nil
	}

	until := now.Add(s.lockoutDuration)
	_, _ = s.c.UpdateOne(ctx,
		bson.M{"_id": attempt.ID},
		bson.M{"$set": bson.M{"locked_until": until, "updated_at": now}},
	)
	return true, &until
}

// ClearOnSuccess removes the counter after a successful sign-in.
func (s *Store) ClearOnSuccess(ctx context.Context, email string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"email": normalize.Email(email)})
	return err
}

// GetAttempt returns the current attempt record, or nil if there is none.
func (s *Store) GetAttempt(ctx context.Context, email string) (*Attempt, error) {
	var attempt Attempt
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&attempt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}
