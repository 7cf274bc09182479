// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType classifies what triggered a notification.
type NotificationType string

const (
	NotifyUpload  NotificationType = "upload"
	NotifyComment NotificationType = "comment"
	NotifySystem  NotificationType = "system"
)

// Notification is a single fan-out record. One document is written per
// event; every receiver reads it through the receivers array.
type Notification struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	SenderID   primitive.ObjectID   `bson:"sender_id" json:"sender_id"`
	SenderName string               `bson:"sender_name" json:"sender_name"`
	TargetPath string               `bson:"target_path" json:"target_path"`
	Message    string               `bson:"message" json:"message"`
	Type       NotificationType     `bson:"type" json:"type"`
	IsRead     bool                 `bson:"is_read" json:"is_read"`
	ReadBy     []primitive.ObjectID `bson:"read_by,omitempty" json:"-"`
	Receivers  []primitive.ObjectID `bson:"receivers" json:"-"`

	// RecordID links the notification to the record it describes so record
	// deletion can cascade.
	RecordID *primitive.ObjectID `bson:"record_id,omitempty" json:"record_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
