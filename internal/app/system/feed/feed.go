// Package feed fans record snapshots out to live subscribers, one topic per
// record kind. Subscribers receive deep copies and never share state with
// the publisher.
package feed

import (
	"sync"

	"github.com/dalemusser/classhub/internal/domain/models"
	"go.uber.org/zap"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 16

type subscriber struct {
	ch chan models.Record
}

// Hub is safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	subs   map[models.Kind]map[*subscriber]struct{}
	buffer int
	closed bool
	log    *zap.Logger
}

// NewHub creates an empty hub. buffer <= 0 uses DefaultBuffer.
func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[models.Kind]map[*subscriber]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers for snapshots of kind. The returned func unsubscribes
// and closes the channel; calling it more than once is safe.
func (h *Hub) Subscribe(kind models.Kind) (<-chan models.Record, func()) {
	s := &subscriber{ch: make(chan models.Record, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	if h.subs[kind] == nil {
		h.subs[kind] = make(map[*subscriber]struct{})
	}
	h.subs[kind][s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[kind][s]; ok {
				delete(h.subs[kind], s)
				close(s.ch)
			}
		})
	}
}

// Publish delivers a copy of rec to every subscriber of rec.Kind. A
// subscriber whose buffer is full misses this snapshot.
func (h *Hub) Publish(rec models.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[rec.Kind] {
		select {
		case s.ch <- rec.Clone():
		default:
			h.log.Debug("feed subscriber lagging; snapshot dropped",
				zap.String("kind", string(rec.Kind)),
				zap.String("record_id", rec.ID.Hex()))
		}
	}
}

// Subscribers returns the number of live subscribers for kind.
func (h *Hub) Subscribers(kind models.Kind) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[kind])
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for kind, set := range h.subs {
		for s := range set {
			close(s.ch)
		}
		delete(h.subs, kind)
	}
}
