// internal/app/store/records/recordstore.go
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/classhub/internal/app/system/txn"
	"github.com/dalemusser/classhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("record was modified concurrently")
	ErrUnknownKind     = errors.New("unknown record kind")
)

// Cascader removes data that hangs off a record. The notifications store
// implements it.
type Cascader interface {
	DeleteByRecord(ctx context.Context, recordID primitive.ObjectID) (int64, error)
}

// Store persists the three record kinds, one collection per kind.
type Store struct {
	db      *mongo.Database
	log     *zap.Logger
	cascade Cascader
}

func New(db *mongo.Database, log *zap.Logger, cascade Cascader) *Store {
	return &Store{db: db, log: log, cascade: cascade}
}

func (s *Store) coll(kind models.Kind) (*mongo.Collection, error) {
	if !kind.Valid() {
		return nil, ErrUnknownKind
	}
	return s.db.Collection(kind.Collection()), nil
}

// normalize fills fields legacy documents may lack.
func normalize(kind models.Kind, rec *models.Record) {
	rec.Kind = kind
	if rec.Comments == nil {
		rec.Comments = []models.Comment{}
	}
	rec.CommentCount = len(rec.Comments)
}

// Create inserts rec with version 1.
func (s *Store) Create(ctx context.Context, rec models.Record) (models.Record, error) {
	c, err := s.coll(rec.Kind)
	if err != nil {
		return models.Record{}, err
	}
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	rec.TitleCI = text.Fold(rec.Title)
	rec.Version = 1
	normalize(rec.Kind, &rec)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if _, err := c.InsertOne(ctx, rec); err != nil {
		return models.Record{}, fmt.Errorf("insert %s: %w", rec.Kind, err)
	}
	return rec, nil
}

// Get returns the record or ErrNotFound.
func (s *Store) Get(ctx context.Context, kind models.Kind, id primitive.ObjectID) (models.Record, error) {
	c, err := s.coll(kind)
	if err != nil {
		return models.Record{}, err
	}
	var rec models.Record
	if err := c.FindOne(ctx, bson.M{"_id": id}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Record{}, ErrNotFound
		}
		return models.Record{}, err
	}
	normalize(kind, &rec)
	return rec, nil
}

// versionFilter matches expected, treating a missing field as version 0.
func versionFilter(id primitive.ObjectID, expected int64) bson.M {
	if expected == 0 {
		return bson.M{"_id": id, "$or": bson.A{
			bson.M{"version": 0},
			bson.M{"version": bson.M{"$exists": false}},
		}}
	}
	return bson.M{"_id": id, "version": expected}
}

// Update replaces the stored record if its version still equals expected.
// The returned record carries the incremented version.
func (s *Store) Update(ctx context.Context, rec models.Record, expected int64) (models.Record, error) {
	c, err := s.coll(rec.Kind)
	if err != nil {
		return models.Record{}, err
	}
	rec.Version = expected + 1
	rec.TitleCI = text.Fold(rec.Title)
	rec.CommentCount = len(rec.Comments)
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	res, err := c.ReplaceOne(ctx, versionFilter(rec.ID, expected), rec)
	if err != nil {
		return models.Record{}, fmt.Errorf("replace %s: %w", rec.Kind, err)
	}
	if res.MatchedCount == 0 {
		n, err := c.CountDocuments(ctx, bson.M{"_id": rec.ID}, options.Count().SetLimit(1))
		if err != nil {
			return models.Record{}, err
		}
		if n == 0 {
			return models.Record{}, ErrNotFound
		}
		return models.Record{}, ErrVersionConflict
	}
	return rec, nil
}

// Delete removes the record and, in the same transaction where the server
// supports one, its notifications.
func (s *Store) Delete(ctx context.Context, kind models.Kind, id primitive.ObjectID) error {
	c, err := s.coll(kind)
	if err != nil {
		return err
	}
	return txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		res, err := c.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return ErrNotFound
		}
		if s.cascade != nil {
			if _, err := s.cascade.DeleteByRecord(ctx, id); err != nil {
				return fmt.Errorf("delete notifications: %w", err)
			}
		}
		return nil
	})
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Status     models.Status
	UploaderID *primitive.ObjectID
	Limit      int64
}

// StatusQuery returns the Mongo condition for status. Pending also matches
// legacy "responded" values and records without an approval.
func StatusQuery(status models.Status) interface{} {
	if status == models.StatusPending {
		return bson.M{"$in": bson.A{models.StatusPending, models.StatusResponded, "", nil}}
	}
	return status
}

// List returns records of kind, newest first.
func (s *Store) List(ctx context.Context, kind models.Kind, f Filter) ([]models.Record, error) {
	c, err := s.coll(kind)
	if err != nil {
		return nil, err
	}
	q := bson.M{}
	if f.Status != "" {
		q["approval.status"] = StatusQuery(f.Status)
	}
	if f.UploaderID != nil {
		q["uploader_id"] = *f.UploaderID
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cur, err := c.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Record{}
	for cur.Next(ctx) {
		var rec models.Record
		if err := cur.Decode(&rec); err != nil {
			s.log.Warn("skipping undecodable record", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		normalize(kind, &rec)
		out = append(out, rec)
	}
	return out, cur.Err()
}

// Watch streams inserted and updated records of kind to fn until ctx ends.
// It requires a replica set; callers treat an error as "feed unavailable".
func (s *Store) Watch(ctx context.Context, kind models.Kind, fn func(models.Record)) error {
	c, err := s.coll(kind)
	if err != nil {
		return err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": bson.A{"insert", "update", "replace"}}}}},
	}
	cs, err := c.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return err
	}
	defer cs.Close(context.Background())

	for cs.Next(ctx) {
		var ev struct {
			FullDocument *models.Record `bson:"fullDocument"`
		}
		if err := cs.Decode(&ev); err != nil {
			s.log.Warn("change stream decode failed", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		if ev.FullDocument == nil {
			continue
		}
		normalize(kind, ev.FullDocument)
		fn(*ev.FullDocument)
	}
	if ctx.Err() != nil {
		return nil
	}
	return cs.Err()
}
