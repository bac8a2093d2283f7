// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	service "github.com/lastofguss/tapd/internal/app"
	"github.com/lastofguss/tapd/internal/auth"
	"github.com/lastofguss/tapd/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Authenticate(ctx context.Context, username, password string) (service.AuthResult, error)
	Tap(ctx context.Context, userID, roundID int64, suppress bool) (service.TapResult, error)
	UserScore(ctx context.Context, userID, roundID int64) (int64, error)
	Rounds(ctx context.Context) ([]service.RoundInfo, error)
	Round(ctx context.Context, id int64) (service.RoundInfo, error)
	CreateRound(ctx context.Context) (model.Round, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	authHandler   *AuthHandler
	tapHandler    *TapHandler
	roundsHandler *RoundsHandler
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	tokens        auth.Provider
}

// NewServer creates an API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, tokens auth.Provider) *Server {
	return &Server{
		authHandler:   NewAuthHandler(deps),
		tapHandler:    NewTapHandler(deps),
		roundsHandler: NewRoundsHandler(deps),
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		tokens:        tokens,
	}
}

// Router builds the chi router with all routes attached.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.With(MetricsMiddleware("healthz")).Get("/healthz", s.healthHandler.HandleHealth)
	r.With(MetricsMiddleware("stats")).Get("/stats", s.statsHandler.HandleStats)
	r.With(MetricsMiddleware("auth")).Post("/auth", s.authHandler.HandleAuth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(s.tokens))
		r.With(MetricsMiddleware("tap")).Put("/tap", s.tapHandler.HandleTap)
		r.With(MetricsMiddleware("tap_score")).Get("/tap/score/{roundID}", s.tapHandler.HandleGetScore)
		r.With(MetricsMiddleware("rounds")).Get("/rounds", s.roundsHandler.HandleListRounds)
		r.With(MetricsMiddleware("rounds")).Post("/rounds", s.roundsHandler.HandleCreateRound)
		r.With(MetricsMiddleware("round")).Get("/rounds/{roundID}", s.roundsHandler.HandleGetRound)
	})

	return r
}

// roundResponse mirrors the round shape returned by round queries. Leader
// is null until somebody holds a strictly positive score.
type roundResponse struct {
	ID        int64     `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
	Leader    *string   `json:"leader"`
	MyScore   *int64    `json:"my_score,omitempty"`
}

func toRoundResponse(info service.RoundInfo) roundResponse {
	resp := roundResponse{
		ID:        info.Round.ID,
		StartTime: info.Round.StartTime,
		EndTime:   info.Round.EndTime,
		Status:    info.Status,
	}
	if info.HasLeader {
		leader := info.Leader
		resp.Leader = &leader
	}
	return resp
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

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
