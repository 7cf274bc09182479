// Package approvalpolicy provides the permission predicates for the record
// approval workflow.
//
// Authorization rules:
//   - Owners (by uploader ID, or by uploader name on legacy records) may edit and delete
//   - Reviewers are defined per record kind by a fixed role allow-list
//   - Nobody may comment on, respond to, or re-review an approved record
//   - Only the author of a comment may edit or delete it
//
// Every predicate is pure: it looks only at the actor and the record snapshot.
package approvalpolicy

import (
	"strings"

	"github.com/dalemusser/classhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
)

// Actor is the user performing an action.
type Actor = models.Actor

// Rules describes who reviews a record kind.
type Rules struct {
	// ApproverRoles may approve and request revisions.
	ApproverRoles []string
	// CommenterRoles may leave plain comments in addition to approvers and the owner.
	CommenterRoles []string
	// RequireUploaderRole, when set, limits review to records uploaded by that role.
	RequireUploaderRole string
}

var rulesByKind = map[models.Kind]Rules{
	models.KindClassFile: {
		ApproverRoles:       []string{models.RoleHeadTeacher, models.RoleViceHeadTeacher},
		CommenterRoles:      []string{models.RolePrincipal, models.RoleVicePrincipal, models.RoleAdmin},
		RequireUploaderRole: models.RoleTeacher,
	},
	models.KindGroupPlan: {
		ApproverRoles:  []string{models.RolePrincipal, models.RoleAdmin},
		CommenterRoles: []string{models.RoleVicePrincipal},
	},
	models.KindOfficeDocument: {
		ApproverRoles:  []string{models.RolePrincipal, models.RoleAdmin},
		CommenterRoles: []string{models.RoleVicePrincipal},
	},
}

// RulesFor returns the review rules for kind. Unknown kinds get empty rules,
// which deny every review action.
func RulesFor(kind models.Kind) Rules {
	return rulesByKind[kind]
}

// ApproverRoles returns the reviewer allow-list for kind.
func ApproverRoles(kind models.Kind) []string {
	return RulesFor(kind).ApproverRoles
}

func hasRole(role string, allowed []string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, want := range allowed {
		if role == want {
			return true
		}
	}
	return false
}

// IsOwner reports whether actor uploaded rec. Records without an uploader ID
// fall back to a case-insensitive name comparison.
func IsOwner(actor Actor, rec *models.Record) bool {
	if rec == nil || actor.ID.IsZero() {
		return false
	}
	if rec.UploaderID != nil && !rec.UploaderID.IsZero() {
		return *rec.UploaderID == actor.ID
	}
	name := text.Fold(strings.TrimSpace(actor.Name))
	return name != "" && name == text.Fold(strings.TrimSpace(rec.Uploader))
}

// CanEdit reports whether actor may edit the record's metadata.
func CanEdit(actor Actor, rec *models.Record) bool {
	return IsOwner(actor, rec)
}

// CanDelete reports whether actor may delete the record.
func CanDelete(actor Actor, rec *models.Record) bool {
	return IsOwner(actor, rec)
}

// IsReviewer reports whether actor's role reviews records of rec's kind,
// including the uploader-role restriction for class files.
func IsReviewer(actor Actor, rec *models.Record) bool {
	if rec == nil {
		return false
	}
	rules := RulesFor(rec.Kind)
	if !hasRole(actor.Role, rules.ApproverRoles) {
		return false
	}
	if rules.RequireUploaderRole != "" && strings.ToLower(rec.UploaderRole) != rules.RequireUploaderRole {
		return false
	}
	return true
}

// CanApprove reports whether actor may approve rec in its current state.
func CanApprove(actor Actor, rec *models.Record) bool {
	if !IsReviewer(actor, rec) {
		return false
	}
	switch rec.Status() {
	case models.StatusPending, models.StatusNeedsRevision, models.StatusResponded:
		return true
	}
	return false
}

// CanRequestRevision reports whether actor may ask the owner for changes.
func CanRequestRevision(actor Actor, rec *models.Record) bool {
	return CanApprove(actor, rec)
}

// CanComment reports whether actor may add a plain comment. Approved and
// rejected records are closed to discussion regardless of role.
func CanComment(actor Actor, rec *models.Record) bool {
	if rec == nil {
		return false
	}
	switch rec.Status() {
	case models.StatusApproved, models.StatusRejected:
		return false
	}
	return MayDiscuss(actor, rec)
}

// MayDiscuss reports whether actor takes part in rec's discussion at all:
// the owner, a reviewer, or a commenter role. It ignores the record's status.
func MayDiscuss(actor Actor, rec *models.Record) bool {
	if rec == nil {
		return false
	}
	if IsOwner(actor, rec) || IsReviewer(actor, rec) {
		return true
	}
	return hasRole(actor.Role, RulesFor(rec.Kind).CommenterRoles)
}

// CanRespond reports whether actor may answer an outstanding revision request.
func CanRespond(actor Actor, rec *models.Record) bool {
	return IsOwner(actor, rec) && rec.Status() == models.StatusNeedsRevision
}

// CanManageComment reports whether actor authored c and may edit or delete it.
func CanManageComment(actor Actor, c models.Comment) bool {
	return !actor.ID.IsZero() && c.UserID == actor.ID
}
