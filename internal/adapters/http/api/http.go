// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/wheelsmith/internal/domain/bounds"
	"github.com/okian/wheelsmith/internal/domain/model"
)

// maxBodyBytes bounds request bodies; verification requests carry whole
// ticket lists.
const maxBodyBytes = 32 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	BuildWheel(ctx context.Context, req model.BuildRequest) (*model.Wheel, error)
	ComputeStats(ctx context.Context, n, k, m int) (bounds.Stats, error)
	SubmitVerification(ctx context.Context, req model.VerifyRequest) (string, error)
	PollVerification(ctx context.Context, id string) (model.Job, error)
}

// Server wires HTTP routes for the wheel API.
type Server struct {
	healthHandler        *HealthHandler
	statsHandler         *StatsHandler
	wheelsHandler        *WheelsHandler
	boundsHandler        *BoundsHandler
	verificationsHandler *VerificationsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:        NewHealthHandler(),
		statsHandler:         NewStatsHandler(statsProvider),
		wheelsHandler:        NewWheelsHandler(deps),
		boundsHandler:        NewBoundsHandler(deps),
		verificationsHandler: NewVerificationsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleHealth, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /wheels", MetricsMiddleware(s.wheelsHandler.HandleBuild, "wheels"))
	mux.HandleFunc("GET /bounds", MetricsMiddleware(s.boundsHandler.HandleBounds, "bounds"))
	mux.HandleFunc("POST /verifications", MetricsMiddleware(s.verificationsHandler.HandleSubmit, "verifications"))
	mux.HandleFunc("GET /verifications/{id}", MetricsMiddleware(s.verificationsHandler.HandlePoll, "verification"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeBody reads a JSON body into v, rejecting unknown fields and
// trailing data.
func decodeBody(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	if dec.More() {
		return NewKind(op, ErrBadRequest)
	}
	return nil
}
