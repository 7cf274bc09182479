package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/dalemusser/classhub/internal/app/notify"
	recordstore "github.com/dalemusser/classhub/internal/app/store/records"
	"github.com/dalemusser/classhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecordRepo is an in-memory record repository with the same version
// compare-and-swap semantics as the Mongo store.
type RecordRepo struct {
	mu   sync.Mutex
	recs map[primitive.ObjectID]models.Record

	// BeforeUpdate, when set, runs before each Update; tests use it to
	// simulate a concurrent writer.
	BeforeUpdate func(rec models.Record)
}

func NewRecordRepo() *RecordRepo {
	return &RecordRepo{recs: map[primitive.ObjectID]models.Record{}}
}

// Seed stores rec as-is (version included) and returns it.
func (r *RecordRepo) Seed(rec models.Record) models.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.Comments == nil {
		rec.Comments = []models.Comment{}
	}
	r.recs[rec.ID] = rec.Clone()
	return rec
}

// Stored returns the current stored copy.
func (r *RecordRepo) Stored(id primitive.ObjectID) (models.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	return rec.Clone(), ok
}

func (r *RecordRepo) Get(_ context.Context, kind models.Kind, id primitive.ObjectID) (models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok || rec.Kind != kind {
		return models.Record{}, recordstore.ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *RecordRepo) List(_ context.Context, kind models.Kind, f recordstore.Filter) ([]models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Record{}
	for _, rec := range r.recs {
		if rec.Kind != kind {
			continue
		}
		if f.Status != "" {
			st := rec.Status()
			if st == models.StatusResponded {
				st = models.StatusPending
			}
			if st != f.Status {
				continue
			}
		}
		if f.UploaderID != nil && (rec.UploaderID == nil || *rec.UploaderID != *f.UploaderID) {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *RecordRepo) Create(_ context.Context, rec models.Record) (models.Record, error) {
	if !rec.Kind.Valid() {
		return models.Record{}, recordstore.ErrUnknownKind
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	rec.Version = 1
	rec.CommentCount = len(rec.Comments)
	r.recs[rec.ID] = rec.Clone()
	return rec, nil
}

func (r *RecordRepo) Update(_ context.Context, rec models.Record, expected int64) (models.Record, error) {
	if r.BeforeUpdate != nil {
		r.BeforeUpdate(rec)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.recs[rec.ID]
	if !ok {
		return models.Record{}, recordstore.ErrNotFound
	}
	if cur.Version != expected {
		return models.Record{}, recordstore.ErrVersionConflict
	}
	rec.Version = expected + 1
	rec.CommentCount = len(rec.Comments)
	r.recs[rec.ID] = rec.Clone()
	return rec, nil
}

// Bump increments a stored record's version as another writer would.
func (r *RecordRepo) Bump(id primitive.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.recs[id]
	rec.Version++
	r.recs[id] = rec
}

func (r *RecordRepo) Delete(_ context.Context, kind models.Kind, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok || rec.Kind != kind {
		return recordstore.ErrNotFound
	}
	delete(r.recs, id)
	return nil
}

// MemBlobs is an in-memory blob.Store.
type MemBlobs struct {
	mu      sync.Mutex
	Files   map[string][]byte
	PutErr  error
	Deleted []string
}

func NewMemBlobs() *MemBlobs {
	return &MemBlobs{Files: map[string][]byte{}}
}

func (m *MemBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files[key] = buf.Bytes()
	return nil
}

func (m *MemBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Files, key)
	m.Deleted = append(m.Deleted, key)
	return nil
}

func (m *MemBlobs) URL(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	return "/files/" + key, nil
}

// Has reports whether key is stored.
func (m *MemBlobs) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Files[key]
	return ok
}

// Notifier records notification events.
type Notifier struct {
	mu     sync.Mutex
	Events []notify.Event
}

func (n *Notifier) Notify(ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = append(n.Events, ev)
}

// Count returns the number of recorded events.
func (n *Notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Events)
}

// AuditEntry is one recorded workflow audit call.
type AuditEntry struct {
	Actor   models.Actor
	Record  models.Record
	Event   string
	Details map[string]string
}

// Auditor records workflow audit calls.
type Auditor struct {
	mu      sync.Mutex
	Entries []AuditEntry
}

func (a *Auditor) RecordEvent(_ context.Context, actor models.Actor, rec *models.Record, event string, details map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Entries = append(a.Entries, AuditEntry{Actor: actor, Record: rec.Clone(), Event: event, Details: details})
}

// Events returns the recorded event types in order.
func (a *Auditor) Events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.Entries))
	for i, e := range a.Entries {
		out[i] = e.Event
	}
	return out
}

// Feed records published snapshots.
type Feed struct {
	mu        sync.Mutex
	Snapshots []models.Record
}

func (f *Feed) Publish(rec models.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Snapshots = append(f.Snapshots, rec.Clone())
}

// Count returns the number of published snapshots.
func (f *Feed) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Snapshots)
}
