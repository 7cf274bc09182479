// Package notify turns workflow events into notification records.
//
// Receivers come from static role tables:
//   - upload: the reviewers of the record's kind
//   - comment: the record's owner plus the reviewers of its kind
//   - system: administrators
//
// The acting user never receives their own notification. Dispatch failures
// are logged and never reach the workflow.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/classhub/internal/app/policy/approvalpolicy"
	"github.com/dalemusser/classhub/internal/app/system/timeouts"
	"github.com/dalemusser/classhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Resource describes what the notification is about.
type Resource struct {
	Kind       models.Kind
	ID         *primitive.ObjectID
	Name       string
	TargetPath string
	ExtraInfo  string
	// OwnerID is the record's uploader, notified on comments.
	OwnerID *primitive.ObjectID
}

// Event is one notifiable action.
type Event struct {
	Type     models.NotificationType
	Actor    models.Actor
	Resource Resource
}

// Sink stores notifications. The notifications store implements it.
type Sink interface {
	Insert(ctx context.Context, n models.Notification) (models.Notification, error)
}

// Directory resolves roles to active user ids. The users store implements it.
type Directory interface {
	IDsByRole(ctx context.Context, role string) ([]primitive.ObjectID, error)
}

// Publisher pushes a stored notification to live clients.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// Dispatcher writes one fan-out notification per event.
type Dispatcher struct {
	sink    Sink
	dir     Directory
	pub     Publisher
	log     *zap.Logger
	now     func() time.Time
	wg      sync.WaitGroup
	timeout time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPublisher adds a live push after each stored notification.
func WithPublisher(p Publisher) Option { return func(d *Dispatcher) { d.pub = p } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

// WithTimeout bounds each background dispatch.
func WithTimeout(t time.Duration) Option { return func(d *Dispatcher) { d.timeout = t } }

func New(sink Sink, dir Directory, log *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{sink: sink, dir: dir, log: log, now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ErrNoReceivers is returned by Dispatch when nobody is left to notify.
var ErrNoReceivers = errors.New("notification has no receivers")

// ReceiverRoles returns the role table entry for an event.
func ReceiverRoles(t models.NotificationType, kind models.Kind) []string {
	switch t {
	case models.NotifyUpload, models.NotifyComment:
		return approvalpolicy.ApproverRoles(kind)
	case models.NotifySystem:
		return []string{models.RoleAdmin}
	}
	return nil
}

// Message renders the human-readable text for ev.
func Message(ev Event) string {
	name := ev.Resource.Name
	if name == "" {
		name = "a document"
	}
	var msg string
	switch ev.Type {
	case models.NotifyUpload:
		msg = fmt.Sprintf("%s uploaded %s", ev.Actor.Name, name)
	case models.NotifyComment:
		msg = fmt.Sprintf("%s commented on %s", ev.Actor.Name, name)
	default:
		msg = name
	}
	if ev.Resource.ExtraInfo != "" {
		msg += ": " + ev.Resource.ExtraInfo
	}
	return msg
}

// Receivers resolves the deduplicated receiver ids for ev, excluding the actor.
// Roles are looked up concurrently.
func (d *Dispatcher) Receivers(ctx context.Context, ev Event) ([]primitive.ObjectID, error) {
	roles := ReceiverRoles(ev.Type, ev.Resource.Kind)
	results := make([][]primitive.ObjectID, len(roles))

	g, gctx := errgroup.WithContext(ctx)
	for i, role := range roles {
		i, role := i, role
		g.Go(func() error {
			ids, err := d.dir.IDsByRole(gctx, role)
			if err != nil {
				return fmt.Errorf("resolve role %s: %w", role, err)
			}
			results[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := map[primitive.ObjectID]struct{}{}
	var out []primitive.ObjectID
	add := func(id primitive.ObjectID) {
		if id.IsZero() || id == ev.Actor.ID {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if ev.Type == models.NotifyComment && ev.Resource.OwnerID != nil {
		add(*ev.Resource.OwnerID)
	}
	for _, ids := range results {
		for _, id := range ids {
			add(id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out, nil
}

// Dispatch stores the notification and pushes it when a publisher is set.
// A failed push is logged; the stored notification is still returned.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (models.Notification, error) {
	receivers, err := d.Receivers(ctx, ev)
	if err != nil {
		return models.Notification{}, err
	}
	if len(receivers) == 0 {
		return models.Notification{}, ErrNoReceivers
	}

	n, err := d.sink.Insert(ctx, models.Notification{
		SenderID:   ev.Actor.ID,
		SenderName: ev.Actor.Name,
		TargetPath: strings.TrimSpace(ev.Resource.TargetPath),
		Message:    Message(ev),
		Type:       ev.Type,
		IsRead:     false,
		Receivers:  receivers,
		RecordID:   ev.Resource.ID,
		CreatedAt:  d.now().UTC(),
	})
	if err != nil {
		return models.Notification{}, fmt.Errorf("store notification: %w", err)
	}

	if d.pub != nil {
		if err := d.pub.Publish(ctx, n); err != nil {
			d.log.Warn("notification push failed", zap.String("notification_id", n.ID.Hex()), zap.Error(err))
		}
	}
	return n, nil
}

// Notify dispatches in the background, detached from the caller's context.
func (d *Dispatcher) Notify(ev Event) {
	if d == nil {
		return
	}
	timeout := d.timeout
	if timeout <= 0 {
		timeout = timeouts.Notify()
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if _, err := d.Dispatch(ctx, ev); err != nil {
			if errors.Is(err, ErrNoReceivers) {
				d.log.Debug("notification skipped; no receivers", zap.String("type", string(ev.Type)))
				return
			}
			d.log.Warn("notification dispatch failed",
				zap.String("type", string(ev.Type)),
				zap.String("actor_id", ev.Actor.ID.Hex()),
				zap.Error(err))
		}
	}()
}

// Wait blocks until background dispatches finish. Shutdown and tests use it.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}
