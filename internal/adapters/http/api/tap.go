package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	service "github.com/lastofguss/tapd/internal/app"
)

// TapDependencies defines the interface for tap processing.
type TapDependencies interface {
	Tap(ctx context.Context, userID, roundID int64, suppress bool) (service.TapResult, error)
	UserScore(ctx context.Context, userID, roundID int64) (int64, error)
}

// TapHandler handles tap requests.
type TapHandler struct {
	deps TapDependencies
}

// NewTapHandler creates a new tap handler.
func NewTapHandler(deps TapDependencies) *TapHandler {
	return &TapHandler{deps: deps}
}

type tapRequest struct {
	RoundID int64 `json:"round_id"`
}

type tapResponse struct {
	Count int64 `json:"count"`
	Score int64 `json:"score"`
}

type scoreResponse struct {
	Score int64 `json:"score"`
}

// HandleTap handles PUT /tap requests. The suppressed capability rides in
// on the caller's claims, never recomputed here.
func (h *TapHandler) HandleTap(w http.ResponseWriter, r *http.Request) {
	const op = "api.tap"

	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}

	var req tapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.RoundID < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	result, err := h.deps.Tap(r.Context(), claims.UserID, req.RoundID, claims.Suppressed)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoundNotFound):
			writeError(w, http.StatusNotFound, "round_not_found", err)
		case errors.Is(err, service.ErrRoundNotActive):
			writeError(w, http.StatusConflict, "round_not_active", err)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		}
		return
	}
	writeJSON(w, http.StatusOK, tapResponse{Count: result.Count, Score: result.Score})
}

// HandleGetScore handles GET /tap/score/{roundID} requests. Returns zero
// when the caller has not tapped in the round.
func (h *TapHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.tap_score"

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

	score, err := h.deps.UserScore(r.Context(), claims.UserID, roundID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{Score: score})
}
