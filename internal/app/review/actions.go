package review

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/classhub/internal/app/notify"
	"github.com/dalemusser/classhub/internal/app/store/audit"
	"github.com/dalemusser/classhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/classhub/internal/app/workflow"
	"github.com/dalemusser/classhub/internal/domain/models"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxCommentLength bounds comment, response and revision reason text.
const MaxCommentLength = 4000

type textInput struct {
	Content string
}

// cleanText strips markup and validates the result.
func cleanText(raw string) (string, error) {
	in := textInput{Content: htmlsanitize.PlainText(raw)}
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Content, validation.Required, validation.RuneLength(1, MaxCommentLength)),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return in.Content, nil
}

// Approve closes the review.
func (s *Service) Approve(ctx context.Context, kind models.Kind, id primitive.ObjectID, actor models.Actor) (models.Record, error) {
	rec, err := s.mutate(ctx, kind, id, actor, reviewGate, func(rec *models.Record, now time.Time) error {
		return workflow.Approve(rec, actor, now)
	})
	if err != nil {
		return models.Record{}, err
	}
	s.record(ctx, actor, &rec, audit.EventRecordApproved, nil)
	s.notify(notify.Event{Type: models.NotifyComment, Actor: actor, Resource: resourceFor(&rec, "approved")})
	return rec, nil
}

// RequestRevision asks the owner for changes.
func (s *Service) RequestRevision(ctx context.Context, kind models.Kind, id primitive.ObjectID, actor models.Actor, reason string) (models.Record, models.Comment, error) {
	text, err := cleanText(reason)
	if err != nil {
		return models.Record{}, models.Comment{}, err
	}
	var c models.Comment
	rec, err := s.mutate(ctx, kind, id, actor, reviewGate, func(rec *models.Record, now time.Time) error {
		var err error
		c, err = workflow.RequestRevision(rec, actor, text, now)
		return err
	})
	if err != nil {
		return models.Record{}, models.Comment{}, err
	}
	s.record(ctx, actor, &rec, audit.EventRevisionRequested, map[string]string{"comment_id": c.ID})
	s.notify(notify.Event{Type: models.NotifyComment, Actor: actor, Resource: resourceFor(&rec, "revision requested: "+truncate(text, 80))})
	return rec, c, nil
}

// Respond answers the outstanding revision request.
func (s *Service) Respond(ctx context.Context, kind models.Kind, id primitive.ObjectID, actor models.Actor, content string) (models.Record, models.Comment, error) {
	text, err := cleanText(content)
	if err != nil {
		return models.Record{}, models.Comment{}, err
	}
	var c models.Comment
	rec, err := s.mutate(ctx, kind, id, actor, respondGate, func(rec *models.Record, now time.Time) error {
		var err error
		c, err = workflow.Respond(rec, actor, text, now)
		return err
	})
	if err != nil {
		return models.Record{}, models.Comment{}, err
	}
	s.record(ctx, actor, &rec, audit.EventRevisionResponded, map[string]string{"comment_id": c.ID})
	s.notify(notify.Event{Type: models.NotifyComment, Actor: actor, Resource: resourceFor(&rec, truncate(text, 80))})
	return rec, c, nil
}

// Comment appends a plain comment.
func (s *Service) Comment(ctx context.Context, kind models.Kind, id primitive.ObjectID, actor models.Actor, content string) (models.Record, models.Comment, error) {
	text, err := cleanText(content)
	if err != nil {
		return models.Record{}, models.Comment{}, err
	}
	var c models.Comment
	rec, err := s.mutate(ctx, kind, id, actor, commentGate, func(rec *models.Record, now time.Time) error {
		var err error
		c, err = workflow.AddComment(rec, actor, text, now)
		return err
	})
	if err != nil {
		return models.Record{}, models.Comment{}, err
	}
	s.record(ctx, actor, &rec, audit.EventCommentAdded, map[string]string{"comment_id": c.ID})
	s.notify(notify.Event{Type: models.NotifyComment, Actor: actor, Resource: resourceFor(&rec, truncate(text, 80))})
	return rec, c, nil
}

// EditComment replaces the text of the actor's own comment.
func (s *Service) EditComment(ctx context.Context, kind models.Kind, id primitive.ObjectID, commentID string, actor models.Actor, content string) (models.Record, models.Comment, error) {
	text, err := cleanText(content)
	if err != nil {
		return models.Record{}, models.Comment{}, err
	}
	var c models.Comment
	rec, err := s.mutate(ctx, kind, id, actor, manageGate, func(rec *models.Record, now time.Time) error {
		var err error
		c, err = workflow.EditComment(rec, commentID, actor, text, now)
		return err
	})
	if err != nil {
		return models.Record{}, models.Comment{}, err
	}
	s.record(ctx, actor, &rec, audit.EventCommentEdited, map[string]string{"comment_id": c.ID})
	return rec, c, nil
}

// DeleteComment removes the actor's own comment and re-derives the revision state.
func (s *Service) DeleteComment(ctx context.Context, kind models.Kind, id primitive.ObjectID, commentID string, actor models.Actor) (models.Record, error) {
	var c models.Comment
	rec, err := s.mutate(ctx, kind, id, actor, manageGate, func(rec *models.Record, now time.Time) error {
		var err error
		c, err = workflow.DeleteComment(rec, commentID, actor, now)
		return err
	})
	if err != nil {
		return models.Record{}, err
	}
	s.record(ctx, actor, &rec, audit.EventCommentDeleted, map[string]string{
		"comment_id":   c.ID,
		"comment_type": string(c.EntryType()),
	})
	return rec, nil
}

// MarkSeen clears the new-comments flag when the owner opens the record.
// Other viewers leave the flag alone and get the record unchanged.
func (s *Service) MarkSeen(ctx context.Context, kind models.Kind, id primitive.ObjectID, actor models.Actor) (models.Record, error) {
	cur, err := s.load(ctx, kind, id)
	if err != nil {
		return models.Record{}, err
	}
	if !cur.HasNewComments || ownerGate.check(actor, &cur) != nil {
		s.withURL(ctx, &cur)
		return cur, nil
	}
	return s.mutate(ctx, kind, id, actor, ownerGate, func(rec *models.Record, _ time.Time) error {
		workflow.MarkSeen(rec)
		return nil
	})
}
