package review_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/classhub/internal/app/review"
	"github.com/dalemusser/classhub/internal/app/store/audit"
	recordstore "github.com/dalemusser/classhub/internal/app/store/records"
	"github.com/dalemusser/classhub/internal/app/workflow"
	"github.com/dalemusser/classhub/internal/domain/models"
	"github.com/dalemusser/classhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type harness struct {
	svc    *review.Service
	repo   *testutil.RecordRepo
	blobs  *testutil.MemBlobs
	notes  *testutil.Notifier
	audit  *testutil.Auditor
	feed   *testutil.Feed
	now    time.Time
	ctx    context.Context
	owner  models.Actor
	head   models.Actor
	viceHd models.Actor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:   testutil.NewRecordRepo(),
		blobs:  testutil.NewMemBlobs(),
		notes:  &testutil.Notifier{},
		audit:  &testutil.Auditor{},
		feed:   &testutil.Feed{},
		now:    time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC),
		ctx:    context.Background(),
		owner:  testutil.TeacherUser().Actor(),
		head:   testutil.HeadTeacherUser().Actor(),
		viceHd: models.Actor{ID: primitive.NewObjectID(), Name: "Vice Head", Role: models.RoleViceHeadTeacher},
	}
	h.svc = review.New(review.Deps{
		Repo:     h.repo,
		Blobs:    h.blobs,
		Notifier: h.notes,
		Audit:    h.audit,
		Feed:     h.feed,
		Log:      zap.NewNop(),
		Now:      func() time.Time { return h.now },
	})
	return h
}

func (h *harness) upload(t *testing.T) models.Record {
	t.Helper()
	rec, err := h.svc.Upload(h.ctx, models.KindClassFile, h.owner, review.Details{
		Title:     "Fractions lesson",
		ClassName: "4B",
		Subject:   "Maths",
	}, &review.File{Name: "fractions.pdf", Size: 5, ContentType: "application/pdf", Body: strings.NewReader("%PDF-")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return rec
}

func TestUpload_CreatesPendingRecord(t *testing.T) {
	h := newHarness(t)
	rec := h.upload(t)

	if rec.Status() != models.StatusPending || rec.CommentCount != 0 || rec.Version != 1 {
		t.Errorf("unexpected new record: status=%s count=%d version=%d", rec.Status(), rec.CommentCount, rec.Version)
	}
	if rec.UploaderID == nil || *rec.UploaderID != h.owner.ID || rec.UploaderRole != models.RoleTeacher {
		t.Errorf("uploader not recorded: %+v", rec)
	}
	if !h.blobs.Has(rec.FilePath) || !strings.HasPrefix(rec.FilePath, "class_file/2024/09/") {
		t.Errorf("file not stored under dated key: %q", rec.FilePath)
	}
	if rec.FileURL != "/files/"+rec.FilePath {
		t.Errorf("FileURL = %q", rec.FileURL)
	}
	if h.notes.Count() != 1 || h.notes.Events[0].Type != models.NotifyUpload {
		t.Errorf("expected one upload notification, got %+v", h.notes.Events)
	}
	if got := h.audit.Events(); len(got) != 1 || got[0] != audit.EventRecordUploaded {
		t.Errorf("audit events = %v", got)
	}
	if h.feed.Count() != 1 {
		t.Errorf("feed snapshots = %d", h.feed.Count())
	}
}

func TestUpload_Validation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		kind models.Kind
		d    review.Details
		f    *review.File
	}{
		{"missing title", models.KindOfficeDocument, review.Details{}, nil},
		{"markup-only title", models.KindOfficeDocument, review.Details{Title: "<b></b>"}, nil},
		{"class file without class", models.KindClassFile, review.Details{Title: "x", Subject: "Maths"}, nil},
		{"plan without meeting date", models.KindGroupPlan, review.Details{Title: "x", GroupName: "Science"}, nil},
		{"unknown kind", models.Kind("poster"), review.Details{Title: "x"}, nil},
		{"empty file", models.KindOfficeDocument, review.Details{Title: "x"}, &review.File{Name: "a.txt", Body: strings.NewReader("")}},
		{"oversize file", models.KindOfficeDocument, review.Details{Title: "x"}, &review.File{Name: "a.txt", Size: review.MaxUploadSize + 1, Body: strings.NewReader("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Upload(h.ctx, tt.kind, h.owner, tt.d, tt.f)
			if !errors.Is(err, review.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
	if len(h.blobs.Files) != 0 {
		t.Error("no file should be stored for invalid uploads")
	}
}

func TestUpload_AnonymousForbidden(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Upload(h.ctx, models.KindOfficeDocument, models.Actor{}, review.Details{Title: "x"}, nil)
	if !errors.Is(err, review.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestRevisionCycle(t *testing.T) {
	h := newHarness(t)
	rec := h.upload(t)

	rec, req, err := h.svc.RequestRevision(h.ctx, rec.Kind, rec.ID, h.head, "fix intro")
	if err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	if rec.Status() != models.StatusNeedsRevision || rec.CommentCount != 1 || req.Type != models.CommentRequest {
		t.Fatalf("after request: status=%s count=%d type=%s", rec.Status(), rec.CommentCount, req.Type)
	}
	if rec.Approval.RejectionReason == nil || *rec.Approval.RejectionReason != "fix intro" {
		t.Errorf("rejection reason not set")
	}

	rec, resp, err := h.svc.Respond(h.ctx, rec.Kind, rec.ID, h.owner, "fixed")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if rec.Status() != models.StatusPending || rec.CommentCount != 2 || resp.Type != models.CommentResponse {
		t.Fatalf("after respond: status=%s count=%d", rec.Status(), rec.CommentCount)
	}

	rec, err = h.svc.Approve(h.ctx, rec.Kind, rec.ID, h.viceHd)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if rec.Status() != models.StatusApproved || rec.Approval.ReviewerID == nil || *rec.Approval.ReviewerID != h.viceHd.ID {
		t.Errorf("approval not recorded: %+v", rec.Approval)
	}
	if rec.Approval.ReviewedAt == nil || !rec.Approval.ReviewedAt.Equal(h.now) {
		t.Errorf("reviewedAt = %v", rec.Approval.ReviewedAt)
	}
	if rec.Version != 4 {
		t.Errorf("version = %d, want 4", rec.Version)
	}

	want := []string{audit.EventRecordUploaded, audit.EventRevisionRequested, audit.EventRevisionResponded, audit.EventRecordApproved}
	got := h.audit.Events()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("audit trail = %v", got)
	}

	// Closed to further discussion.
	if _, _, err := h.svc.Comment(h.ctx, rec.Kind, rec.ID, h.owner, "thanks"); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("comment on approved: %v", err)
	}
	if _, _, err := h.svc.RequestRevision(h.ctx, rec.Kind, rec.ID, h.head, "more"); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("revision on approved: %v", err)
	}
	if _, _, err := h.svc.EditComment(h.ctx, rec.Kind, rec.ID, req.ID, h.head, "fix intro and outro"); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("edit on approved: %v", err)
	}
	stored, _ := h.repo.Stored(rec.ID)
	if stored.Comments[0].Content != "fix intro" || stored.Version != 4 {
		t.Errorf("approved ledger changed: content=%q version=%d", stored.Comments[0].Content, stored.Version)
	}
}

func TestDeleteOwnRequest_RevertsToPending(t *testing.T) {
	h := newHarness(t)
	rec := h.upload(t)
	rec, req, err := h.svc.RequestRevision(h.ctx, rec.Kind, rec.ID, h.head, "fix intro")
	if err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}

	rec, err = h.svc.DeleteComment(h.ctx, rec.Kind, rec.ID, req.ID, h.head)
	if err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if rec.Status() != models.StatusPending || rec.CommentCount != 0 || rec.Approval.RejectionReason != nil {
		t.Errorf("expected pending with no reason, got status=%s count=%d", rec.Status(), rec.CommentCount)
	}
}

func TestPermissions(t *testing.T) {
	h := newHarness(t)
	rec := h.upload(t)
	staff := testutil.StaffUser().Actor()
	principal := testutil.PrincipalUser().Actor()

	if _, err := h.svc.Approve(h.ctx, rec.Kind, rec.ID, principal); !errors.Is(err, review.ErrForbidden) {
		t.Errorf("principal approving class file: %v", err)
	}
	if _, _, err := h.svc.RequestRevision(h.ctx, rec.Kind, rec.ID, h.owner, "self review"); !errors.Is(err, review.ErrForbidden) {
		t.Errorf("owner requesting revision: %v", err)
	}
	if _, _, err := h.svc.Comment(h.ctx, rec.Kind, rec.ID, staff, "hi"); !errors.Is(err, review.ErrForbidden) {
		t.Errorf("staff commenting: %v", err)
	}
	if _, _, err := h.svc.Comment(h.ctx, rec.Kind, rec.ID, principal, "looks good"); err != nil {
		t.Errorf("principal is a class file commenter: %v", err)
	}
	if _, _, err := h.svc.Respond(h.ctx, rec.Kind, rec.ID, h.head, "x"); !errors.Is(err, review.ErrForbidden) {
		t.Errorf("non-owner responding: %v", err)
	}
	if _, _, err := h.svc.Respond(h.ctx, rec.Kind, rec.ID, h.owner, "nothing requested"); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("respond while pending: %v", err)
	}
	if err := h.svc.Delete(h.ctx, rec.Kind, rec.ID, h.head); !errors.Is(err, review.ErrForbidden) {
		t.Errorf("reviewer deleting: %v", err)
	}
}

func TestCommentAuthorship(t *testing.T) {
	h := newHarness(t)
	rec := h.upload(t)
	rec, c, err := h.svc.Comment(h.ctx, rec.Kind, rec.ID, h.head, "<i>nice</i> work")
	if err != nil {
		t.Fatalf("Comment: %v", err)
	}
	if c.Content != "nice work" {
		t.Errorf("markup not stripped: %q", c.Content)
	}

	if _, _, err := h.svc.EditComment(h.ctx, rec.Kind, rec.ID, c.ID, h.owner, "hijack"); !errors.Is(err, review.ErrForbidden) {
		t.Errorf("edit by non-author: %v", err)
	}
	if _, err := h.svc.DeleteComment(h.ctx, rec.Kind, rec.ID, c.ID, h.owner); !errors.Is(err, review.ErrForbidden) {
		t.Errorf("delete by non-author: %v", err)
	}
	if _, err := h.svc.DeleteComment(h.ctx, rec.Kind, rec.ID, "missing", h.head); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("delete missing comment: %v", err)
	}

	rec, edited, err := h.svc.EditComment(h.ctx, rec.Kind, rec.ID, c.ID, h.head, "great work")
	if err != nil {
		t.Fatalf("EditComment: %v", err)
	}
	if edited.Content != "great work" || edited.EditedAt == nil || rec.Comments[0].Content != "great work" {
		t.Errorf("edit not applied: %+v", edited)
	}
}

func TestEmptyContentIsValidationError(t *testing.T) {
	h := newHarness(t)
	rec := h.upload(t)
	if _, _, err := h.svc.RequestRevision(h.ctx, rec.Kind, rec.ID, h.head, "   "); !errors.Is(err, review.ErrValidation) {
		t.Errorf("blank reason: %v", err)
	}
	if _, _, err := h.svc.Comment(h.ctx, rec.Kind, rec.ID, h.head, strings.Repeat("x", review.MaxCommentLength+1)); !errors.Is(err, review.ErrValidation) {
		t.Errorf("overlong comment: %v", err)
	}
}

func TestConcurrentWriteConflicts(t *testing.T) {
	h := newHarness(t)
	rec := h.upload(t)

	h.repo.BeforeUpdate = func(models.Record) { h.repo.Bump(rec.ID) }
	_, err := h.svc.Approve(h.ctx, rec.Kind, rec.ID, h.head)
	if !errors.Is(err, review.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	h.repo.BeforeUpdate = nil

	stored, _ := h.repo.Stored(rec.ID)
	if stored.Status() != models.StatusPending {
		t.Errorf("lost write must not be applied, status=%s", stored.Status())
	}
	if h.notes.Count() != 1 {
		t.Errorf("no notification for a failed write, got %d", h.notes.Count())
	}
}

func TestNotFound(t *testing.T) {
	h := newHarness(t)
	missing := primitive.NewObjectID()
	if _, err := h.svc.Approve(h.ctx, models.KindClassFile, missing, h.head); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("Approve missing: %v", err)
	}
	if _, err := h.svc.Get(h.ctx, models.KindGroupPlan, missing); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("Get missing: %v", err)
	}
	rec := h.upload(t)
	if _, err := h.svc.Get(h.ctx, models.KindGroupPlan, rec.ID); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("Get with wrong kind: %v", err)
	}
}

func TestMarkSeen(t *testing.T) {
	h := newHarness(t)
	rec := h.upload(t)
	rec, _, err := h.svc.Comment(h.ctx, rec.Kind, rec.ID, h.head, "see page 3")
	if err != nil {
		t.Fatalf("Comment: %v", err)
	}
	if !rec.HasNewComments {
		t.Fatal("expected new comments flag")
	}

	viewed, err := h.svc.MarkSeen(h.ctx, rec.Kind, rec.ID, h.head)
	if err != nil || !viewed.HasNewComments || viewed.Version != rec.Version {
		t.Errorf("non-owner view must not change the record: %v %+v", err, viewed)
	}

	seen, err := h.svc.MarkSeen(h.ctx, rec.Kind, rec.ID, h.owner)
	if err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if seen.HasNewComments || seen.CommentCount != 1 {
		t.Errorf("owner view should clear the flag only: %+v", seen)
	}
}

func strp(s string) *string { return &s }

func TestEdit(t *testing.T) {
	h := newHarness(t)
	rec := h.upload(t)

	if _, err := h.svc.Edit(h.ctx, rec.Kind, rec.ID, h.head, review.Patch{Title: strp("x")}); !errors.Is(err, review.ErrForbidden) {
		t.Errorf("edit by reviewer: %v", err)
	}
	got, err := h.svc.Edit(h.ctx, rec.Kind, rec.ID, h.owner, review.Patch{Title: strp("Fractions v2")})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got.Title != "Fractions v2" || got.ClassName != "4B" || got.Subject != "Maths" || got.Status() != models.StatusPending {
		t.Errorf("absent fields should be kept: %+v", got)
	}
	if _, err := h.svc.Edit(h.ctx, rec.Kind, rec.ID, h.owner, review.Patch{Subject: strp("  ")}); !errors.Is(err, review.ErrValidation) {
		t.Errorf("clearing a required field: %v", err)
	}
}

func TestEdit_KeepsFolder(t *testing.T) {
	h := newHarness(t)
	owner := h.owner
	rec := h.repo.Seed(models.Record{
		Kind:         models.KindOfficeDocument,
		Title:        "Timetable",
		Folder:       "Admin/2024",
		UploaderID:   &owner.ID,
		Uploader:     owner.Name,
		UploaderRole: owner.Role,
		Version:      1,
	})

	got, err := h.svc.Edit(h.ctx, rec.Kind, rec.ID, owner, review.Patch{Title: strp("Timetable v2")})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got.Folder != "Admin/2024" {
		t.Errorf("folder = %q, want it kept", got.Folder)
	}
	got, err = h.svc.Edit(h.ctx, rec.Kind, rec.ID, owner, review.Patch{Folder: strp("")})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got.Folder != "" || got.Title != "Timetable v2" {
		t.Errorf("explicit empty folder: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	rec := h.upload(t)

	if err := h.svc.Delete(h.ctx, rec.Kind, rec.ID, h.owner); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := h.repo.Stored(rec.ID); ok {
		t.Error("record should be gone")
	}
	if h.blobs.Has(rec.FilePath) {
		t.Error("file should be removed")
	}
	if err := h.svc.Delete(h.ctx, rec.Kind, rec.ID, h.owner); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestDelete_LegacyOwnerByName(t *testing.T) {
	h := newHarness(t)
	rec := h.repo.Seed(models.Record{
		Kind:     models.KindGroupPlan,
		Title:    "Minutes",
		Uploader: "Jane Doe",
		Version:  3,
	})
	jane := models.Actor{ID: primitive.NewObjectID(), Name: "jane doe", Role: models.RoleTeacher}

	if err := h.svc.Delete(h.ctx, rec.Kind, rec.ID, jane); err != nil {
		t.Errorf("legacy owner should be able to delete: %v", err)
	}
}

func TestList(t *testing.T) {
	h := newHarness(t)
	first := h.upload(t)
	h.now = h.now.Add(time.Hour)
	second := h.upload(t)
	if _, err := h.svc.Approve(h.ctx, first.Kind, first.ID, h.head); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	h.repo.Seed(models.Record{Kind: models.KindClassFile, Title: "legacy", Approval: &models.Approval{Status: models.StatusResponded}})

	all, err := h.svc.List(h.ctx, models.KindClassFile, recordstore.Filter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("List all: %d, %v", len(all), err)
	}
	if all[0].ID != second.ID {
		t.Errorf("expected newest first")
	}

	pending, _ := h.svc.List(h.ctx, models.KindClassFile, recordstore.Filter{Status: models.StatusPending})
	if len(pending) != 2 {
		t.Errorf("pending (incl. legacy responded) = %d, want 2", len(pending))
	}
	if _, err := h.svc.List(h.ctx, "poster", recordstore.Filter{}); !errors.Is(err, review.ErrValidation) {
		t.Errorf("unknown kind: %v", err)
	}
}

func TestTargetPath(t *testing.T) {
	rec := &models.Record{ID: primitive.NewObjectID(), Kind: models.KindOfficeDocument}
	if got := review.TargetPath(rec); got != "/records/office-documents/"+rec.ID.Hex() {
		t.Errorf("TargetPath = %q", got)
	}
}

type fakeHistory struct {
	events []audit.Event
	asked  primitive.ObjectID
}

func (f *fakeHistory) ForRecord(_ context.Context, id primitive.ObjectID, _ int64) ([]audit.Event, error) {
	f.asked = id
	return f.events, nil
}

func TestHistory(t *testing.T) {
	h := newHarness(t)
	rec := h.upload(t)
	hist := &fakeHistory{events: []audit.Event{{EventType: audit.EventRecordUploaded}}}
	svc := review.New(review.Deps{Repo: h.repo, History: hist})

	events, err := svc.History(h.ctx, rec.Kind, rec.ID, h.head)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(events) != 1 || hist.asked != rec.ID {
		t.Errorf("events = %+v asked = %s, want one event for %s", events, hist.asked.Hex(), rec.ID.Hex())
	}

	staff := testutil.StaffUser().Actor()
	if _, err := svc.History(h.ctx, rec.Kind, rec.ID, staff); !errors.Is(err, review.ErrForbidden) {
		t.Errorf("staff history: %v, want forbidden", err)
	}
	if _, err := svc.History(h.ctx, models.KindGroupPlan, rec.ID, h.head); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("wrong kind: %v, want not found", err)
	}

	// Without a reader the trail is empty, not an error.
	events, err = h.svc.History(h.ctx, rec.Kind, rec.ID, h.owner)
	if err != nil || len(events) != 0 {
		t.Errorf("no reader: %v %v", events, err)
	}
}
