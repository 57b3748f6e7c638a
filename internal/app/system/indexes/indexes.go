// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// collectionIndexes pairs a collection with the indexes it needs.
type collectionIndexes struct {
	name   string
	models []mongo.IndexModel
}

func all() []collectionIndexes {
	return []collectionIndexes{
		{"users", usersIndexes()},
		{"folders", itemIndexes("folders", "parent_id")},
		{"files", append(itemIndexes("files", "folder_id"), filesExtraIndexes()...)},
		{"orphan_blobs", orphanIndexes()},
		{"rate_limits", rateLimitIndexes()},
		{"job_stats", jobStatsIndexes()},
	}
}

/*
EnsureAll is called at startup. Each index set is idempotent.
Errors are aggregated so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, ci := range all() {
		if err := ensureIndexSet(ctx, db.Collection(ci.name), ci.models); err != nil {
			problems = append(problems, ci.name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolValue(p *bool) bool {
	return p != nil && *p
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		// Missing collection: nothing exists yet.
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listExisting(ctx, coll)

	for _, m := range models {
		var name string
		var unique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = m.Options.Unique
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[sig]; ok {
			if boolValue(unique) == boolValue(ex.Unique) {
				zap.L().Debug("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", sig))
				continue
			}
			// Uniqueness changed: drop and recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s: drop failed: %v", name, err))
				continue
			}
		}

		created, err := coll.Indexes().CreateOne(ctx, m)
		if err != nil {
			if isDuplicateKeyErr(err) && boolValue(unique) {
				errs = append(errs, fmt.Sprintf("%s: cannot create unique index (duplicates present)", name))
			} else {
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			}
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", name),
				zap.String("keys", sig),
				zap.Error(err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", created),
			zap.String("keys", sig),
			zap.Bool("unique", boolValue(unique)),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func usersIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email_ci"),
		},
	}
}

// itemIndexes covers the lifecycle queries shared by folders and files.
func itemIndexes(prefix, parentField string) []mongo.IndexModel {
	return []mongo.IndexModel{
		// Listing a folder's active children, sorted by name
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "deleted", Value: 1},
				{Key: parentField, Value: 1},
				{Key: "name_ci", Value: 1},
			},
			Options: options.Index().SetName("idx_" + prefix + "_owner_state_parent_name"),
		},
		// Starred view
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "starred", Value: 1},
				{Key: "deleted", Value: 1},
			},
			Options: options.Index().SetName("idx_" + prefix + "_owner_starred"),
		},
		// Retention sweep
		{
			Keys: bson.D{
				{Key: "deleted", Value: 1},
				{Key: "deleted_at", Value: 1},
			},
			Options: options.Index().SetName("idx_" + prefix + "_deleted_at"),
		},
		// Cascade restore
		{
			Keys:    bson.D{{Key: "trashed_with", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("idx_" + prefix + "_trashed_with"),
		},
	}
}

func filesExtraIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Recent view
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "deleted", Value: 1},
				{Key: "updated_at", Value: -1},
			},
			Options: options.Index().SetName("idx_files_owner_recent"),
		},
	}
}

func orphanIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "content_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_orphan_content_id"),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetName("idx_orphan_updated"),
		},
	}
}

func rateLimitIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_ratelimit_email"),
		},
		// TTL: drop stale counters after 24 hours
		{
			Keys:    bson.D{{Key: "last_attempt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(86400).SetName("idx_ratelimit_ttl"),
		},
	}
}

func jobStatsIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "date", Value: 1}, {Key: "job", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_jobstats_date_job"),
		},
	}
}
