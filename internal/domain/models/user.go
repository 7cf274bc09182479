// internal/domain/models/user.go
package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles recognised by the school. Role strings are stored lowercased.
const (
	RoleAdmin           = "admin"
	RolePrincipal       = "principal"
	RoleVicePrincipal   = "vice_principal"
	RoleHeadTeacher     = "head_teacher"
	RoleViceHeadTeacher = "vice_head_teacher"
	RoleTeacher         = "teacher"
	RoleStaff           = "staff"
)

// AllRoles is the set of assignable roles.
var AllRoles = []string{
	RoleAdmin,
	RolePrincipal,
	RoleVicePrincipal,
	RoleHeadTeacher,
	RoleViceHeadTeacher,
	RoleTeacher,
	RoleStaff,
}

// IsValidRole reports whether role is one of AllRoles (case-insensitive).
func IsValidRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User statuses.
const (
	UserActive   = "active"
	UserDisabled = "disabled"
)

// User is a staff account: administrators, school leadership and teachers.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName     string             `bson:"full_name" json:"full_name"`
	FullNameCI   string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email        string             `bson:"email" json:"email"`
	Role         string             `bson:"role" json:"role"`
	Status       string             `bson:"status" json:"status"` // active | disabled
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
