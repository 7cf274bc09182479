package workflow

import (
	"strings"
	"time"

	"github.com/dalemusser/classhub/internal/domain/models"
)

// closed reports whether status accepts no further discussion or review.
func closed(s models.Status) bool {
	return s == models.StatusApproved || s == models.StatusRejected
}

// reviewable reports whether a reviewer may act from status. The legacy
// responded value behaves like pending.
func reviewable(s models.Status) bool {
	switch s {
	case models.StatusPending, models.StatusNeedsRevision, models.StatusResponded:
		return true
	}
	return false
}

func ensureApproval(rec *models.Record) *models.Approval {
	if rec.Approval == nil {
		rec.Approval = &models.Approval{Status: models.StatusPending}
	}
	if rec.Approval.Status == "" {
		rec.Approval.Status = models.StatusPending
	}
	return rec.Approval
}

func stampReviewer(a *models.Approval, reviewer models.Actor, now time.Time) {
	id := reviewer.ID
	at := now
	a.ReviewerID = &id
	a.ReviewerName = reviewer.Name
	a.ReviewerRole = reviewer.Role
	a.ReviewedAt = &at
}

// Approve moves a reviewable record to approved and records the reviewer.
func Approve(rec *models.Record, reviewer models.Actor, now time.Time) error {
	if !reviewable(rec.Status()) {
		return ErrInvalidTransition
	}
	a := ensureApproval(rec)
	a.Status = models.StatusApproved
	a.RejectionReason = nil
	stampReviewer(a, reviewer, now)
	rec.UpdatedAt = now
	return nil
}

// RequestRevision appends a request comment carrying reason and moves the
// record to needs_revision.
func RequestRevision(rec *models.Record, reviewer models.Actor, reason string, now time.Time) (models.Comment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Comment{}, ErrEmptyContent
	}
	if !reviewable(rec.Status()) {
		return models.Comment{}, ErrInvalidTransition
	}
	c := newComment(reviewer, models.CommentRequest, reason, now)
	appendComment(rec, c)

	a := ensureApproval(rec)
	a.Status = models.StatusNeedsRevision
	a.RejectionReason = &reason
	stampReviewer(a, reviewer, now)
	rec.UpdatedAt = now
	return c, nil
}

// Respond appends the owner's response to an outstanding request. The
// response supersedes every earlier request, so the record returns to pending.
func Respond(rec *models.Record, author models.Actor, content string, now time.Time) (models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, ErrEmptyContent
	}
	if rec.Status() != models.StatusNeedsRevision {
		return models.Comment{}, ErrInvalidTransition
	}
	c := newComment(author, models.CommentResponse, content, now)
	appendComment(rec, c)
	Revert(rec)
	rec.UpdatedAt = now
	return c, nil
}

// Revert re-derives the revision state from the ledger: the record needs
// revision iff some request has no later response, and the rejection reason
// mirrors that request. Closed records are left alone.
func Revert(rec *models.Record) {
	if closed(rec.Status()) {
		return
	}
	open := OutstandingRequest(rec)
	if open == nil {
		if rec.Approval == nil {
			return
		}
		rec.Approval.Status = models.StatusPending
		rec.Approval.RejectionReason = nil
		return
	}
	a := ensureApproval(rec)
	a.Status = models.StatusNeedsRevision
	reason := open.Content
	a.RejectionReason = &reason
}

// Initialize prepares a freshly uploaded record: pending, empty ledger.
func Initialize(rec *models.Record, now time.Time) {
	rec.Approval = &models.Approval{Status: models.StatusPending}
	rec.Comments = []models.Comment{}
	rec.CommentCount = 0
	rec.HasNewComments = false
	rec.CreatedAt = now
	rec.UpdatedAt = now
}
