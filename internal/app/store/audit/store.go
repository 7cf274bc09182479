// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth     = "auth"
	CategoryWorkflow = "workflow"
	CategoryAdmin    = "admin"
)

// Auth event types
const (
	EventLoginSuccess = "login_success"
	EventLoginFailed  = "login_failed"
	EventLogout       = "logout"
)

// Workflow event types
const (
	EventRecordUploaded    = "record_uploaded"
	EventRecordUpdated     = "record_updated"
	EventRecordDeleted     = "record_deleted"
	EventRecordApproved    = "record_approved"
	EventRevisionRequested = "revision_requested"
	EventRevisionResponded = "revision_responded"
	EventCommentAdded      = "comment_added"
	EventCommentEdited     = "comment_edited"
	EventCommentDeleted    = "comment_deleted"
)

// Admin event types
const (
	EventUserCreated       = "user_created"
	EventUserRoleChanged   = "user_role_changed"
	EventUserStatusChanged = "user_status_changed"
)

// Event is one audit entry.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`

	Category  string `bson:"category" json:"category"`
	EventType string `bson:"event_type" json:"event_type"`

	// Who
	ActorID   *primitive.ObjectID `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	ActorName string              `bson:"actor_name,omitempty" json:"actor_name,omitempty"`
	ActorRole string              `bson:"actor_role,omitempty" json:"actor_role,omitempty"`
	UserID    *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"` // affected account

	// What
	RecordID *primitive.ObjectID `bson:"record_id,omitempty" json:"record_id,omitempty"`
	Kind     string              `bson:"kind,omitempty" json:"kind,omitempty"`

	IP            string            `bson:"ip,omitempty" json:"ip,omitempty"`
	Success       bool              `bson:"success" json:"success"`
	FailureReason string            `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	Details       map[string]string `bson:"details,omitempty" json:"details,omitempty"`
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// ForRecord returns the record's history, most recent first.
func (s *Store) ForRecord(ctx context.Context, recordID primitive.ObjectID, limit int64) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, bson.M{"record_id": recordID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	events := []Event{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
