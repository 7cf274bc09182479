// internal/domain/models/actor.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Actor is the authenticated user performing a workflow action. It is
// resolved from the session by authz and never read from request bodies.
type Actor struct {
	ID   primitive.ObjectID
	Name string
	Role string
}
