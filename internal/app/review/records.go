package review

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dalemusser/classhub/internal/app/notify"
	"github.com/dalemusser/classhub/internal/app/policy/approvalpolicy"
	"github.com/dalemusser/classhub/internal/app/store/audit"
	recordstore "github.com/dalemusser/classhub/internal/app/store/records"
	"github.com/dalemusser/classhub/internal/app/system/blob"
	"github.com/dalemusser/classhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/classhub/internal/app/workflow"
	"github.com/dalemusser/classhub/internal/domain/models"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MaxUploadSize bounds uploaded files.
const MaxUploadSize = 50 << 20

// Details are the descriptive fields of a record. Which fields are required
// depends on the kind.
type Details struct {
	Title       string
	ClassName   string
	Subject     string
	GroupName   string
	MeetingDate *time.Time
	Folder      string
}

func (d *Details) clean() {
	d.Title = htmlsanitize.PlainText(d.Title)
	d.ClassName = htmlsanitize.PlainText(d.ClassName)
	d.Subject = htmlsanitize.PlainText(d.Subject)
	d.GroupName = htmlsanitize.PlainText(d.GroupName)
	d.Folder = htmlsanitize.PlainText(d.Folder)
}

func (d *Details) validate(kind models.Kind) error {
	err := validation.ValidateStruct(d,
		validation.Field(&d.Title, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&d.ClassName,
			validation.When(kind == models.KindClassFile, validation.Required),
			validation.RuneLength(0, 100)),
		validation.Field(&d.Subject,
			validation.When(kind == models.KindClassFile, validation.Required),
			validation.RuneLength(0, 100)),
		validation.Field(&d.GroupName,
			validation.When(kind == models.KindGroupPlan, validation.Required),
			validation.RuneLength(0, 100)),
		validation.Field(&d.MeetingDate,
			validation.When(kind == models.KindGroupPlan, validation.Required)),
		validation.Field(&d.Folder, validation.RuneLength(0, 200)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func (d Details) apply(rec *models.Record) {
	rec.Title = d.Title
	switch rec.Kind {
	case models.KindClassFile:
		rec.ClassName, rec.Subject = d.ClassName, d.Subject
	case models.KindGroupPlan:
		rec.GroupName, rec.MeetingDate = d.GroupName, d.MeetingDate
	case models.KindOfficeDocument:
		rec.Folder = d.Folder
	}
}

// Patch names the descriptive fields to change. Nil fields keep their
// stored value.
type Patch struct {
	Title       *string
	ClassName   *string
	Subject     *string
	GroupName   *string
	MeetingDate *time.Time
	Folder      *string
}

func detailsOf(rec *models.Record) Details {
	return Details{
		Title:       rec.Title,
		ClassName:   rec.ClassName,
		Subject:     rec.Subject,
		GroupName:   rec.GroupName,
		MeetingDate: rec.MeetingDate,
		Folder:      rec.Folder,
	}
}

func (p Patch) over(d Details) Details {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&d.Title, p.Title)
	set(&d.ClassName, p.ClassName)
	set(&d.Subject, p.Subject)
	set(&d.GroupName, p.GroupName)
	set(&d.Folder, p.Folder)
	if p.MeetingDate != nil {
		t := *p.MeetingDate
		d.MeetingDate = &t
	}
	return d
}

// File is an uploaded file body.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

type fileInput struct {
	Name string
	Size int64
}

func (f *File) validate() error {
	in := fileInput{Name: strings.TrimSpace(f.Name), Size: f.Size}
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, 255)),
		validation.Field(&in.Size, validation.Required, validation.Max(int64(MaxUploadSize))),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if f.Body == nil {
		return fmt.Errorf("%w: file body is required", ErrValidation)
	}
	return nil
}

// Upload stores the file and creates a pending record owned by actor.
func (s *Service) Upload(ctx context.Context, kind models.Kind, actor models.Actor, d Details, f *File) (models.Record, error) {
	if !kind.Valid() {
		return models.Record{}, fmt.Errorf("%w: unknown record kind %q", ErrValidation, kind)
	}
	if actor.ID.IsZero() {
		return models.Record{}, ErrForbidden
	}
	d.clean()
	if err := d.validate(kind); err != nil {
		return models.Record{}, err
	}

	now := s.clock()
	uploaderID := actor.ID
	rec := models.Record{
		Kind:         kind,
		UploaderID:   &uploaderID,
		Uploader:     actor.Name,
		UploaderRole: actor.Role,
	}
	d.apply(&rec)
	workflow.Initialize(&rec, now)

	if f != nil {
		if err := f.validate(); err != nil {
			return models.Record{}, err
		}
		if s.blobs == nil {
			return models.Record{}, fmt.Errorf("file storage is not configured")
		}
		key := blob.Key(string(kind), f.Name, now)
		if err := s.blobs.Put(ctx, key, f.Body, f.Size, f.ContentType); err != nil {
			return models.Record{}, fmt.Errorf("store file: %w", err)
		}
		rec.FilePath = key
		rec.FileName = blob.SanitizeFilename(f.Name)
		rec.FileSize = f.Size
	}

	saved, err := s.repo.Create(ctx, rec)
	if err != nil {
		if rec.FilePath != "" {
			s.removeBlob(ctx, rec.FilePath)
		}
		return models.Record{}, storeErr(err)
	}
	s.withURL(ctx, &saved)

	s.record(ctx, actor, &saved, audit.EventRecordUploaded, map[string]string{"file_name": saved.FileName})
	s.notify(notify.Event{Type: models.NotifyUpload, Actor: actor, Resource: resourceFor(&saved, "")})
	s.publish(saved)
	return saved, nil
}

// Edit merges p into the record's descriptive fields and validates the
// result for the record's kind. Only the owner may edit.
func (s *Service) Edit(ctx context.Context, kind models.Kind, id primitive.ObjectID, actor models.Actor, p Patch) (models.Record, error) {
	rec, err := s.mutate(ctx, kind, id, actor, gate{participant: approvalpolicy.CanEdit}, func(rec *models.Record, _ time.Time) error {
		d := p.over(detailsOf(rec))
		d.clean()
		if err := d.validate(rec.Kind); err != nil {
			return err
		}
		d.apply(rec)
		return nil
	})
	if err != nil {
		return models.Record{}, err
	}
	s.record(ctx, actor, &rec, audit.EventRecordUpdated, nil)
	return rec, nil
}

// Get returns one record with its file URL resolved.
func (s *Service) Get(ctx context.Context, kind models.Kind, id primitive.ObjectID) (models.Record, error) {
	rec, err := s.load(ctx, kind, id)
	if err != nil {
		return models.Record{}, err
	}
	s.withURL(ctx, &rec)
	return rec, nil
}

// List returns records of kind, newest first.
func (s *Service) List(ctx context.Context, kind models.Kind, f recordstore.Filter) ([]models.Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown record kind %q", ErrValidation, kind)
	}
	recs, err := s.repo.List(ctx, kind, f)
	if err != nil {
		return nil, storeErr(err)
	}
	for i := range recs {
		s.withURL(ctx, &recs[i])
	}
	return recs, nil
}

// Delete removes the record, its comment ledger and its notifications.
// The file is removed afterwards on a best-effort basis.
func (s *Service) Delete(ctx context.Context, kind models.Kind, id primitive.ObjectID, actor models.Actor) error {
	cur, err := s.load(ctx, kind, id)
	if err != nil {
		return err
	}
	if !approvalpolicy.CanDelete(actor, &cur) {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, kind, id); err != nil {
		return storeErr(err)
	}
	if cur.HasFile() {
		s.removeBlob(ctx, cur.FilePath)
	}
	s.record(ctx, actor, &cur, audit.EventRecordDeleted, map[string]string{"title": cur.Title})
	return nil
}

func (s *Service) removeBlob(ctx context.Context, key string) {
	if s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.log.Warn("file cleanup failed", zap.String("key", key), zap.Error(err))
	}
}

// withURL fills FileURL from the blob store. Presigned URLs expire, so
// they are resolved on read rather than stored.
func (s *Service) withURL(ctx context.Context, rec *models.Record) {
	if !rec.HasFile() || s.blobs == nil {
		return
	}
	u, err := s.blobs.URL(ctx, rec.FilePath)
	if err != nil {
		s.log.Warn("file url failed", zap.String("record_id", rec.ID.Hex()), zap.Error(err))
		return
	}
	rec.FileURL = u
}

// WithFileURL returns rec with FileURL resolved. The change-stream feed
// uses it for snapshots that did not pass through the service.
func (s *Service) WithFileURL(ctx context.Context, rec models.Record) models.Record {
	s.withURL(ctx, &rec)
	return rec
}

// historyLimit caps the audit trail returned for one record.
const historyLimit = 200

// History returns the record's audit trail, newest first. Only people who
// take part in the record's discussion may read it.
func (s *Service) History(ctx context.Context, kind models.Kind, id primitive.ObjectID, actor models.Actor) ([]audit.Event, error) {
	rec, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !approvalpolicy.MayDiscuss(actor, &rec) {
		return nil, ErrForbidden
	}
	if s.history == nil {
		return []audit.Event{}, nil
	}
	return s.history.ForRecord(ctx, id, historyLimit)
}
