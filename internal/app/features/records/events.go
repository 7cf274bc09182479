// internal/app/features/records/events.go
package records

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/classhub/internal/app/system/authz"
	"github.com/dalemusser/classhub/internal/app/system/httpjson"
	"go.uber.org/zap"
)

// Events handles GET /records/{kind}/events.
//
// Every committed snapshot of a record of {kind} is sent as a Server-Sent
// Event named "record" whose data is the record JSON. A comment line is
// written every KeepAlive to hold idle connections open.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	if h.Feed == nil {
		httpjson.Error(w, http.StatusServiceUnavailable, "live feed is not enabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpjson.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	_, _, userID, _ := authz.UserCtx(r)

	snapshots, unsubscribe := h.Feed.Subscribe(kind)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	h.Log.Debug("record feed connected",
		zap.String("kind", string(kind)),
		zap.String("user_id", userID.Hex()))

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.Log.Debug("record feed disconnected", zap.String("kind", string(kind)))
			return
		case rec, open := <-snapshots:
			if !open {
				return
			}
			data, err := json.Marshal(rec)
			if err != nil {
				h.Log.Warn("record feed encode failed", zap.String("record_id", rec.ID.Hex()), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "id: %s-%d\nevent: record\ndata: %s\n\n", rec.ID.Hex(), rec.Version, data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
