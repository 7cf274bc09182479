package health

import (
	"context"
	"net/http"
	"sort"

	"github.com/dalemusser/classhub/internal/app/system/httpjson"
	"github.com/dalemusser/classhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Check probes one backend.
type Check func(ctx context.Context) error

// Handler holds the backend probes run by the health endpoint.
type Handler struct {
	Checks map[string]Check
	Log    *zap.Logger
}

// Pinger is a backend with a liveness probe, such as the Redis publisher.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHandler checks the Mongo client and, when set, the Redis publisher.
func NewHandler(client *mongo.Client, redis Pinger, logger *zap.Logger) *Handler {
	checks := map[string]Check{
		"database": func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
	}
	if redis != nil {
		checks["redis"] = redis.Ping
	}
	return &Handler{Checks: checks, Log: logger}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "components":{"database":"connected","redis":"connected"} }
//
// When any check fails: 503 with that component "disconnected" and its error.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	resp := healthResponse{Status: "ok", Components: map[string]string{}}
	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			h.Log.Error("health-check failed", zap.String("component", name), zap.Error(err))
			resp.Status = "error"
			resp.Components[name] = "disconnected"
			if resp.Errors == nil {
				resp.Errors = map[string]string{}
			}
			resp.Errors[name] = err.Error()
			continue
		}
		resp.Components[name] = "connected"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httpjson.Write(w, status, resp)
}
