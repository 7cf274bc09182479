// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/classhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each collection's set is reconciled
idempotently; problems are aggregated so startup fails with the full list.
*/
func EnsureAll(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	specs := Specs()
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	var problems []string
	for _, name := range names {
		if err := ensureIndexSet(ctx, db.Collection(name), specs[name], log); err != nil {
			problems = append(problems, name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Specs returns the desired indexes keyed by collection name.
func Specs() map[string][]mongo.IndexModel {
	out := map[string][]mongo.IndexModel{
		"users": {
			named(bson.D{{Key: "email", Value: 1}}, "uniq_users_email", true),
			named(bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}}, "idx_users_role_status", false),
			named(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}}, "idx_users_name", false),
		},
		"notifications": {
			named(bson.D{{Key: "receivers", Value: 1}, {Key: "created_at", Value: -1}}, "idx_notifications_receiver_recent", false),
			named(bson.D{{Key: "record_id", Value: 1}}, "idx_notifications_record", false),
		},
		"audit_events": {
			named(bson.D{{Key: "record_id", Value: 1}, {Key: "timestamp", Value: -1}}, "idx_audit_record_recent", false),
			named(bson.D{{Key: "timestamp", Value: -1}}, "idx_audit_recent", false),
		},
	}
	for _, k := range models.Kinds {
		c := k.Collection()
		out[c] = []mongo.IndexModel{
			named(bson.D{{Key: "approval.status", Value: 1}, {Key: "created_at", Value: -1}}, "idx_"+c+"_status_recent", false),
			named(bson.D{{Key: "uploader_id", Value: 1}, {Key: "created_at", Value: -1}}, "idx_"+c+"_uploader_recent", false),
			named(bson.D{{Key: "title_ci", Value: 1}, {Key: "_id", Value: 1}}, "idx_"+c+"_title", false),
		}
	}
	return out
}

func named(keys bson.D, name string, unique bool) mongo.IndexModel {
	opts := options.Index().SetName(name)
	if unique {
		opts.SetUnique(true)
	}
	return mongo.IndexModel{Keys: keys, Options: opts}
}

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

func sameBoolPtr(a, b *bool) bool {
	return (a != nil && *a) == (b != nil && *b)
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listExisting(ctx context.Context, coll *mongo.Collection, log *zap.Logger) map[string]existingIndex {
	existing := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			log.Warn("failed to decode existing index", zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

// ensureIndexSet creates missing indexes and drops and recreates an index
// whose key pattern matches but whose name or uniqueness differs.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, want []mongo.IndexModel, log *zap.Logger) error {
	existing := listExisting(ctx, coll, log)
	var errs []string

	for _, m := range want {
		name := *m.Options.Name
		unique := m.Options.Unique
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[sig]; ok {
			if ex.Name == name && sameBoolPtr(unique, ex.Unique) {
				log.Debug("reusing existing index", zap.String("collection", coll.Name()), zap.String("name", name))
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s: drop %s failed: %v", name, ex.Name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) {
				errs = append(errs, fmt.Sprintf("%s: cannot create unique index on %s (duplicates present)", name, sig))
			} else {
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			}
			continue
		}
		log.Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
