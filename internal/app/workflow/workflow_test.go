package workflow_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/classhub/internal/app/workflow"
	"github.com/dalemusser/classhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func teacher() models.Actor {
	return models.Actor{ID: primitive.NewObjectID(), Name: "Jane Doe", Role: models.RoleTeacher}
}

func headTeacher() models.Actor {
	return models.Actor{ID: primitive.NewObjectID(), Name: "Sam Head", Role: models.RoleHeadTeacher}
}

func newRecord(owner models.Actor) *models.Record {
	id := owner.ID
	rec := &models.Record{
		ID:           primitive.NewObjectID(),
		Kind:         models.KindClassFile,
		Title:        "Unit plan",
		UploaderID:   &id,
		Uploader:     owner.Name,
		UploaderRole: owner.Role,
	}
	workflow.Initialize(rec, now)
	return rec
}

func assertCount(t *testing.T, rec *models.Record) {
	t.Helper()
	if rec.CommentCount != len(rec.Comments) {
		t.Fatalf("CommentCount = %d, len(Comments) = %d", rec.CommentCount, len(rec.Comments))
	}
}

func TestInitialize(t *testing.T) {
	rec := newRecord(teacher())
	if rec.Status() != models.StatusPending {
		t.Errorf("status: got %q, want pending", rec.Status())
	}
	if rec.CommentCount != 0 || len(rec.Comments) != 0 {
		t.Errorf("expected empty ledger, got %d comments", len(rec.Comments))
	}
}

func TestStatus_MissingApprovalIsPending(t *testing.T) {
	rec := &models.Record{}
	if rec.Status() != models.StatusPending {
		t.Errorf("status: got %q, want pending", rec.Status())
	}
}

func TestRevisionCycle_EndToEnd(t *testing.T) {
	owner := teacher()
	reviewer := headTeacher()
	rec := newRecord(owner)

	if _, err := workflow.RequestRevision(rec, reviewer, "fix intro", now); err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	if rec.Status() != models.StatusNeedsRevision {
		t.Fatalf("status after request: got %q", rec.Status())
	}
	if rec.CommentCount != 1 || rec.Comments[0].Type != models.CommentRequest {
		t.Fatalf("ledger after request: %+v", rec.Comments)
	}
	if rec.Approval.RejectionReason == nil || *rec.Approval.RejectionReason != "fix intro" {
		t.Errorf("rejection reason not set: %+v", rec.Approval)
	}

	if _, err := workflow.Respond(rec, owner, "fixed", now.Add(time.Minute)); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if rec.CommentCount != 2 || rec.Comments[1].Type != models.CommentResponse {
		t.Fatalf("ledger after respond: %+v", rec.Comments)
	}
	if rec.Status() != models.StatusPending {
		t.Errorf("status after respond: got %q, want pending", rec.Status())
	}

	if err := workflow.Approve(rec, reviewer, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	a := rec.Approval
	if a.Status != models.StatusApproved {
		t.Errorf("status after approve: got %q", a.Status)
	}
	if a.ReviewerID == nil || *a.ReviewerID != reviewer.ID {
		t.Error("reviewer id not recorded")
	}
	if a.ReviewerName != reviewer.Name || a.ReviewerRole != reviewer.Role {
		t.Errorf("reviewer name/role: got %q/%q", a.ReviewerName, a.ReviewerRole)
	}
	if a.ReviewedAt == nil || !a.ReviewedAt.Equal(now.Add(2*time.Minute)) {
		t.Errorf("reviewed_at: got %v", a.ReviewedAt)
	}
	assertCount(t, rec)
}

func TestApproved_BlocksFurtherActions(t *testing.T) {
	owner := teacher()
	reviewer := headTeacher()
	rec := newRecord(owner)
	if err := workflow.Approve(rec, reviewer, now); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if _, err := workflow.RequestRevision(rec, reviewer, "again", now); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("RequestRevision on approved: got %v", err)
	}
	if _, err := workflow.AddComment(rec, reviewer, "hello", now); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("AddComment on approved: got %v", err)
	}
	if _, err := workflow.Respond(rec, owner, "reply", now); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("Respond on approved: got %v", err)
	}
	if err := workflow.Approve(rec, reviewer, now); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("Approve twice: got %v", err)
	}
	if rec.CommentCount != 0 {
		t.Errorf("ledger changed on rejected actions: %d", rec.CommentCount)
	}
}

func TestDeleteSoleRequest_RevertsToPending(t *testing.T) {
	reviewer := headTeacher()
	rec := newRecord(teacher())
	c, err := workflow.RequestRevision(rec, reviewer, "fix intro", now)
	if err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}

	if _, err := workflow.DeleteComment(rec, c.ID, reviewer, now); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if rec.Status() != models.StatusPending {
		t.Errorf("status: got %q, want pending", rec.Status())
	}
	if rec.Approval.RejectionReason != nil {
		t.Errorf("rejection reason should be cleared, got %q", *rec.Approval.RejectionReason)
	}
	if rec.CommentCount != 0 {
		t.Errorf("CommentCount: got %d, want 0", rec.CommentCount)
	}
	if rec.HasNewComments {
		t.Error("HasNewComments should be false with an empty ledger")
	}
}

func TestDeleteResponse_RestoresNeedsRevision(t *testing.T) {
	owner := teacher()
	reviewer := headTeacher()
	rec := newRecord(owner)
	if _, err := workflow.RequestRevision(rec, reviewer, "fix intro", now); err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	resp, err := workflow.Respond(rec, owner, "fixed", now)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if _, err := workflow.DeleteComment(rec, resp.ID, owner, now); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if rec.Status() != models.StatusNeedsRevision {
		t.Errorf("status: got %q, want needs_revision", rec.Status())
	}
	if rec.Approval.RejectionReason == nil || *rec.Approval.RejectionReason != "fix intro" {
		t.Error("rejection reason should track the outstanding request")
	}
	assertCount(t, rec)
}

func TestDeleteOneOfTwoRequests_StaysNeedsRevision(t *testing.T) {
	reviewer := headTeacher()
	rec := newRecord(teacher())
	first, err := workflow.RequestRevision(rec, reviewer, "fix intro", now)
	if err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	if _, err := workflow.RequestRevision(rec, reviewer, "fix summary", now); err != nil {
		t.Fatalf("second RequestRevision: %v", err)
	}

	if _, err := workflow.DeleteComment(rec, first.ID, reviewer, now); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if rec.Status() != models.StatusNeedsRevision {
		t.Errorf("status: got %q, want needs_revision", rec.Status())
	}
	if got := *rec.Approval.RejectionReason; got != "fix summary" {
		t.Errorf("rejection reason: got %q, want %q", got, "fix summary")
	}
}

func TestDeleteRequest_AfterResponseStaysPending(t *testing.T) {
	owner := teacher()
	reviewer := headTeacher()
	rec := newRecord(owner)
	req, _ := workflow.RequestRevision(rec, reviewer, "fix intro", now)
	if _, err := workflow.Respond(rec, owner, "fixed", now); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if _, err := workflow.DeleteComment(rec, req.ID, reviewer, now); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if rec.Status() != models.StatusPending {
		t.Errorf("status: got %q, want pending", rec.Status())
	}
}

func TestDeleteComment_OnApprovedKeepsStatus(t *testing.T) {
	reviewer := headTeacher()
	rec := newRecord(teacher())
	req, _ := workflow.RequestRevision(rec, reviewer, "fix intro", now)
	if err := workflow.Approve(rec, reviewer, now); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := workflow.DeleteComment(rec, req.ID, reviewer, now); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if rec.Status() != models.StatusApproved {
		t.Errorf("status: got %q, want approved", rec.Status())
	}
}

func TestDeleteComment_Errors(t *testing.T) {
	owner := teacher()
	rec := newRecord(owner)
	c, err := workflow.AddComment(rec, owner, "note", now)
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	if _, err := workflow.DeleteComment(rec, "missing", owner, now); !errors.Is(err, workflow.ErrCommentNotFound) {
		t.Errorf("missing id: got %v", err)
	}
	if _, err := workflow.DeleteComment(rec, c.ID, headTeacher(), now); !errors.Is(err, workflow.ErrNotCommentAuthor) {
		t.Errorf("other author: got %v", err)
	}
	if rec.CommentCount != 1 {
		t.Errorf("ledger should be unchanged, CommentCount = %d", rec.CommentCount)
	}
}

func TestEditComment(t *testing.T) {
	owner := teacher()
	rec := newRecord(owner)
	c, _ := workflow.AddComment(rec, owner, "draft", now)

	later := now.Add(time.Hour)
	edited, err := workflow.EditComment(rec, c.ID, owner, "final", later)
	if err != nil {
		t.Fatalf("EditComment: %v", err)
	}
	if edited.Content != "final" || rec.Comments[0].Content != "final" {
		t.Errorf("content not replaced: %+v", rec.Comments[0])
	}
	if rec.Comments[0].EditedAt == nil || !rec.Comments[0].EditedAt.Equal(later) {
		t.Error("EditedAt not stamped")
	}

	if _, err := workflow.EditComment(rec, c.ID, headTeacher(), "hijack", later); !errors.Is(err, workflow.ErrNotCommentAuthor) {
		t.Errorf("other author: got %v", err)
	}
	if _, err := workflow.EditComment(rec, c.ID, owner, "   ", later); !errors.Is(err, workflow.ErrEmptyContent) {
		t.Errorf("blank content: got %v", err)
	}
}

func TestEditComment_FrozenOnClosedRecords(t *testing.T) {
	for _, status := range []models.Status{models.StatusApproved, models.StatusRejected} {
		t.Run(string(status), func(t *testing.T) {
			reviewer := headTeacher()
			rec := newRecord(teacher())
			c, _ := workflow.AddComment(rec, reviewer, "looks fine", now)
			rec.Approval.Status = status

			if _, err := workflow.EditComment(rec, c.ID, reviewer, "rewritten later", now.Add(time.Hour)); !errors.Is(err, workflow.ErrInvalidTransition) {
				t.Fatalf("EditComment: got %v, want ErrInvalidTransition", err)
			}
			if got := rec.Comments[0]; got.Content != "looks fine" || got.EditedAt != nil {
				t.Errorf("comment changed: %+v", got)
			}
			if rec.Status() != status {
				t.Errorf("status = %s, want %s", rec.Status(), status)
			}
		})
	}
}

func TestEditRequest_RefreshesRejectionReason(t *testing.T) {
	reviewer := headTeacher()
	rec := newRecord(teacher())
	req, _ := workflow.RequestRevision(rec, reviewer, "fix intro", now)
	if _, err := workflow.EditComment(rec, req.ID, reviewer, "fix the intro paragraph", now); err != nil {
		t.Fatalf("EditComment: %v", err)
	}
	if got := *rec.Approval.RejectionReason; got != "fix the intro paragraph" {
		t.Errorf("rejection reason: got %q", got)
	}
}

func TestCommentCountInvariant(t *testing.T) {
	owner := teacher()
	reviewer := headTeacher()
	rec := newRecord(owner)

	steps := []func() error{
		func() error { _, err := workflow.AddComment(rec, owner, "a", now); return err },
		func() error { _, err := workflow.RequestRevision(rec, reviewer, "b", now); return err },
		func() error { _, err := workflow.Respond(rec, owner, "c", now); return err },
		func() error { _, err := workflow.AddComment(rec, reviewer, "d", now); return err },
		func() error { _, err := workflow.DeleteComment(rec, rec.Comments[0].ID, owner, now); return err },
		func() error { _, err := workflow.DeleteComment(rec, rec.Comments[1].ID, owner, now); return err },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		assertCount(t, rec)
	}
	// request remains, its response was removed in the last step
	if rec.Status() != models.StatusNeedsRevision {
		t.Errorf("final status: got %q, want needs_revision", rec.Status())
	}
}

func TestRespond_RequiresNeedsRevision(t *testing.T) {
	owner := teacher()
	rec := newRecord(owner)
	if _, err := workflow.Respond(rec, owner, "unprompted", now); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("got %v, want ErrInvalidTransition", err)
	}
}

func TestRequestRevision_EmptyReason(t *testing.T) {
	rec := newRecord(teacher())
	if _, err := workflow.RequestRevision(rec, headTeacher(), "  ", now); !errors.Is(err, workflow.ErrEmptyContent) {
		t.Errorf("got %v, want ErrEmptyContent", err)
	}
	if rec.Status() != models.StatusPending || rec.CommentCount != 0 {
		t.Error("record should be unchanged")
	}
}

func TestLegacyRespondedBehavesAsPending(t *testing.T) {
	rec := newRecord(teacher())
	rec.Approval.Status = models.StatusResponded
	if err := workflow.Approve(rec, headTeacher(), now); err != nil {
		t.Errorf("Approve from responded: %v", err)
	}
}

func TestRejectedIsClosed(t *testing.T) {
	owner := teacher()
	rec := newRecord(owner)
	rec.Approval.Status = models.StatusRejected
	if err := workflow.Approve(rec, headTeacher(), now); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("Approve from rejected: got %v", err)
	}
	if _, err := workflow.AddComment(rec, owner, "hi", now); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("AddComment on rejected: got %v", err)
	}
}

func TestLegacyCommentTypeDefaultsToComment(t *testing.T) {
	c := models.Comment{ID: "x"}
	if c.EntryType() != models.CommentPlain {
		t.Errorf("EntryType: got %q", c.EntryType())
	}
}

func TestClone_DoesNotAlias(t *testing.T) {
	owner := teacher()
	rec := newRecord(owner)
	if _, err := workflow.AddComment(rec, owner, "a", now); err != nil {
		t.Fatal(err)
	}
	cp := rec.Clone()
	if _, err := workflow.RequestRevision(&cp, headTeacher(), "b", now); err != nil {
		t.Fatal(err)
	}
	if rec.CommentCount != 1 || rec.Status() != models.StatusPending {
		t.Errorf("original mutated: count=%d status=%q", rec.CommentCount, rec.Status())
	}
}

func TestCommentIDs_Unique(t *testing.T) {
	owner := teacher()
	rec := newRecord(owner)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		c, err := workflow.AddComment(rec, owner, "same instant", now)
		if err != nil {
			t.Fatal(err)
		}
		if seen[c.ID] {
			t.Fatalf("duplicate comment id %q", c.ID)
		}
		seen[c.ID] = true
	}
}
