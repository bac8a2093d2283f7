package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	service "github.com/lastofguss/tapd/internal/app"
	"github.com/lastofguss/tapd/internal/domain/model"
)

// RoundDependencies defines the interface for round operations.
type RoundDependencies interface {
	Rounds(ctx context.Context) ([]service.RoundInfo, error)
	Round(ctx context.Context, id int64) (service.RoundInfo, error)
	CreateRound(ctx context.Context) (model.Round, error)
	UserScore(ctx context.Context, userID, roundID int64) (int64, error)
}

// RoundsHandler handles round requests.
type RoundsHandler struct {
	deps RoundDependencies
}

// NewRoundsHandler creates a new rounds handler.
func NewRoundsHandler(deps RoundDependencies) *RoundsHandler {
	return &RoundsHandler{deps: deps}
}

// HandleListRounds handles GET /rounds requests. Leaders in the list come
// from the refresh cache and may trail the ledger by a moment.
func (h *RoundsHandler) HandleListRounds(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_rounds"

	infos, err := h.deps.Rounds(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	out := make([]roundResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, toRoundResponse(info))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreateRound handles POST /rounds requests. Admin only.
func (h *RoundsHandler) HandleCreateRound(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_round"

	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	if !claims.Admin {
		writeError(w, http.StatusForbidden, "forbidden", NewKind(op, ErrForbidden))
		return
	}

	round, err := h.deps.CreateRound(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, roundResponse{
		ID:        round.ID,
		StartTime: round.StartTime,
		EndTime:   round.EndTime,
	})
}

// HandleGetRound handles GET /rounds/{roundID} requests. The response
// includes the caller's own score alongside the round's authoritative
// leader.
func (h *RoundsHandler) HandleGetRound(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_round"

	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}

	roundID, err := strconv.ParseInt(chi.URLParam(r, "roundID"), 10, 64)
	if err != nil || roundID < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	info, err := h.deps.Round(r.Context(), roundID)
	if err != nil {
		if errors.Is(err, service.ErrRoundNotFound) {
			writeError(w, http.StatusNotFound, "round_not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	score, err := h.deps.UserScore(r.Context(), claims.UserID, roundID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	resp := toRoundResponse(info)
	resp.MyScore = &score
	writeJSON(w, http.StatusOK, resp)
}
