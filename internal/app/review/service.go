// Package review applies workflow actions to stored records.
//
// Each action loads the record, checks the actor's permission, applies the
// transition to a copy, and writes it back with a compare-and-swap on the
// record version. Audit, notification and the live feed run only after a
// successful write.
package review

import (
	"context"
	"time"

	"github.com/dalemusser/classhub/internal/app/notify"
	"github.com/dalemusser/classhub/internal/app/policy/approvalpolicy"
	"github.com/dalemusser/classhub/internal/app/store/audit"
	recordstore "github.com/dalemusser/classhub/internal/app/store/records"
	"github.com/dalemusser/classhub/internal/app/system/blob"
	"github.com/dalemusser/classhub/internal/app/workflow"
	"github.com/dalemusser/classhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Repository persists records. *recordstore.Store implements it.
type Repository interface {
	Get(ctx context.Context, kind models.Kind, id primitive.ObjectID) (models.Record, error)
	List(ctx context.Context, kind models.Kind, f recordstore.Filter) ([]models.Record, error)
	Create(ctx context.Context, rec models.Record) (models.Record, error)
	Update(ctx context.Context, rec models.Record, expectedVersion int64) (models.Record, error)
	Delete(ctx context.Context, kind models.Kind, id primitive.ObjectID) error
}

// Notifier receives fire-and-forget notification events. *notify.Dispatcher implements it.
type Notifier interface {
	Notify(ev notify.Event)
}

// Auditor records workflow history. *auditlog.Logger implements it.
type Auditor interface {
	RecordEvent(ctx context.Context, actor models.Actor, rec *models.Record, eventType string, details map[string]string)
}

// HistoryReader lists a record's audit trail. *audit.Store implements it.
type HistoryReader interface {
	ForRecord(ctx context.Context, recordID primitive.ObjectID, limit int64) ([]audit.Event, error)
}

// Publisher receives every new snapshot. *feed.Hub implements it.
type Publisher interface {
	Publish(rec models.Record)
}

// Deps holds the service collaborators. Only Repo is required.
type Deps struct {
	Repo     Repository
	Blobs    blob.Store
	Notifier Notifier
	Audit    Auditor
	Feed     Publisher
	History  HistoryReader
	Log      *zap.Logger
	Now      func() time.Time
}

type Service struct {
	repo     Repository
	blobs    blob.Store
	notifier Notifier
	audit    Auditor
	feed     Publisher
	history  HistoryReader
	log      *zap.Logger
	now      func() time.Time
}

func New(d Deps) *Service {
	s := &Service{
		repo:     d.Repo,
		blobs:    d.Blobs,
		notifier: d.Notifier,
		audit:    d.Audit,
		feed:     d.Feed,
		history:  d.History,
		log:      d.Log,
		now:      d.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) clock() time.Time { return s.now().UTC() }

func (s *Service) load(ctx context.Context, kind models.Kind, id primitive.ObjectID) (models.Record, error) {
	rec, err := s.repo.Get(ctx, kind, id)
	if err != nil {
		return models.Record{}, storeErr(err)
	}
	return rec, nil
}

// gate checks who may act (participant) and then whether the record's
// state allows it (allowed). Failing the first is ErrForbidden, failing
// only the second is workflow.ErrInvalidTransition.
type gate struct {
	participant func(models.Actor, *models.Record) bool
	allowed     func(models.Actor, *models.Record) bool
}

func (g gate) check(actor models.Actor, rec *models.Record) error {
	if g.participant != nil && !g.participant(actor, rec) {
		return ErrForbidden
	}
	if g.allowed != nil && !g.allowed(actor, rec) {
		return workflow.ErrInvalidTransition
	}
	return nil
}

var (
	reviewGate  = gate{participant: approvalpolicy.IsReviewer, allowed: approvalpolicy.CanApprove}
	respondGate = gate{participant: approvalpolicy.IsOwner, allowed: approvalpolicy.CanRespond}
	commentGate = gate{participant: approvalpolicy.MayDiscuss, allowed: approvalpolicy.CanComment}
	ownerGate   = gate{participant: approvalpolicy.IsOwner}
	manageGate  = gate{} // authorship is enforced by the ledger
)

// mutate runs apply on a copy of the stored record and persists it with CAS.
func (s *Service) mutate(ctx context.Context, kind models.Kind, id primitive.ObjectID, actor models.Actor, g gate, apply func(rec *models.Record, now time.Time) error) (models.Record, error) {
	cur, err := s.load(ctx, kind, id)
	if err != nil {
		return models.Record{}, err
	}
	if err := g.check(actor, &cur); err != nil {
		return models.Record{}, err
	}

	now := s.clock()
	next := cur.Clone()
	if err := apply(&next, now); err != nil {
		return models.Record{}, workflowErr(err)
	}
	next.UpdatedAt = now

	saved, err := s.repo.Update(ctx, next, cur.Version)
	if err != nil {
		err = storeErr(err)
		if err == ErrConflict {
			s.log.Info("record write lost a race",
				zap.String("record_id", id.Hex()),
				zap.String("kind", string(kind)),
				zap.Int64("version", cur.Version))
		}
		return models.Record{}, err
	}
	s.withURL(ctx, &saved)
	s.publish(saved)
	return saved, nil
}

func (s *Service) publish(rec models.Record) {
	if s.feed != nil {
		s.feed.Publish(rec)
	}
}

func (s *Service) record(ctx context.Context, actor models.Actor, rec *models.Record, event string, details map[string]string) {
	if s.audit != nil {
		s.audit.RecordEvent(ctx, actor, rec, event, details)
	}
}

func (s *Service) notify(ev notify.Event) {
	if s.notifier != nil {
		s.notifier.Notify(ev)
	}
}

// TargetPath is the API path of a record.
func TargetPath(rec *models.Record) string {
	return "/records/" + URLKind(rec.Kind) + "/" + rec.ID.Hex()
}

// URLKind is the path segment for kind.
func URLKind(kind models.Kind) string {
	switch kind {
	case models.KindClassFile:
		return "class-files"
	case models.KindGroupPlan:
		return "group-plans"
	case models.KindOfficeDocument:
		return "office-documents"
	}
	return string(kind)
}

func resourceFor(rec *models.Record, extra string) notify.Resource {
	id := rec.ID
	return notify.Resource{
		Kind:       rec.Kind,
		ID:         &id,
		Name:       rec.Title,
		TargetPath: TargetPath(rec),
		ExtraInfo:  extra,
		OwnerID:    rec.UploaderID,
	}
}

// truncate shortens s to n runes for notification previews.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
