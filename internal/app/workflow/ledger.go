// Package workflow implements the record approval state machine and the
// comment ledger it is derived from.
//
// Functions mutate the *models.Record they are given and leave it untouched
// when they return an error. Callers that need snapshot semantics pass a
// Clone. Every mutation keeps CommentCount equal to len(Comments).
package workflow

import (
	"strings"
	"time"

	"github.com/dalemusser/classhub/internal/domain/models"
	"github.com/google/uuid"
)

// newComment builds a ledger entry authored by actor.
func newComment(actor models.Actor, typ models.CommentType, content string, now time.Time) models.Comment {
	return models.Comment{
		ID:        uuid.NewString(),
		UserID:    actor.ID,
		UserName:  actor.Name,
		UserRole:  actor.Role,
		Content:   content,
		Timestamp: now,
		Type:      typ,
	}
}

// appendComment pushes c onto the ledger and flags the record as having
// unseen discussion.
func appendComment(rec *models.Record, c models.Comment) {
	rec.Comments = append(rec.Comments, c)
	rec.HasNewComments = true
	syncCount(rec)
}

func syncCount(rec *models.Record) {
	rec.CommentCount = len(rec.Comments)
}

// FindComment returns the index of the comment with id, or -1.
func FindComment(rec *models.Record, id string) int {
	for i := range rec.Comments {
		if rec.Comments[i].ID == id {
			return i
		}
	}
	return -1
}

// AddComment appends a plain comment. Approved and rejected records are
// closed to discussion.
func AddComment(rec *models.Record, author models.Actor, content string, now time.Time) (models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, ErrEmptyContent
	}
	if closed(rec.Status()) {
		return models.Comment{}, ErrInvalidTransition
	}
	c := newComment(author, models.CommentPlain, content, now)
	appendComment(rec, c)
	rec.UpdatedAt = now
	return c, nil
}

// EditComment replaces the content of the editor's own comment and stamps
// EditedAt. Comments on approved and rejected records are frozen. Editing an
// outstanding revision request refreshes the rejection reason.
func EditComment(rec *models.Record, id string, editor models.Actor, content string, now time.Time) (models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, ErrEmptyContent
	}
	i := FindComment(rec, id)
	if i < 0 {
		return models.Comment{}, ErrCommentNotFound
	}
	if rec.Comments[i].UserID != editor.ID {
		return models.Comment{}, ErrNotCommentAuthor
	}
	if closed(rec.Status()) {
		return models.Comment{}, ErrInvalidTransition
	}
	rec.Comments[i].Content = content
	edited := now
	rec.Comments[i].EditedAt = &edited
	if rec.Comments[i].EntryType() == models.CommentRequest {
		Revert(rec)
	}
	rec.UpdatedAt = now
	return rec.Comments[i], nil
}

// DeleteComment removes the actor's own comment. Removing a request or a
// response re-derives the revision state from what remains in the ledger.
func DeleteComment(rec *models.Record, id string, actor models.Actor, now time.Time) (models.Comment, error) {
	i := FindComment(rec, id)
	if i < 0 {
		return models.Comment{}, ErrCommentNotFound
	}
	removed := rec.Comments[i]
	if removed.UserID != actor.ID {
		return models.Comment{}, ErrNotCommentAuthor
	}

	rec.Comments = append(rec.Comments[:i:i], rec.Comments[i+1:]...)
	syncCount(rec)
	rec.HasNewComments = len(rec.Comments) > 0

	switch removed.EntryType() {
	case models.CommentRequest, models.CommentResponse:
		if !closed(rec.Status()) {
			Revert(rec)
		}
	}
	rec.UpdatedAt = now
	return removed, nil
}

// MarkSeen clears the unseen-comments flag.
func MarkSeen(rec *models.Record) {
	rec.HasNewComments = false
}

// OutstandingRequest returns the latest request that no later response has
// answered, or nil when nothing is outstanding.
func OutstandingRequest(rec *models.Record) *models.Comment {
	var open *models.Comment
	for i := range rec.Comments {
		switch rec.Comments[i].EntryType() {
		case models.CommentRequest:
			open = &rec.Comments[i]
		case models.CommentResponse:
			open = nil
		}
	}
	return open
}
