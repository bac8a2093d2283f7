package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	service "github.com/lastofguss/tapd/internal/app"
)

// AuthDependencies defines the interface for authentication.
type AuthDependencies interface {
	Authenticate(ctx context.Context, username, password string) (service.AuthResult, error)
}

// AuthHandler handles login-or-register requests.
type AuthHandler struct {
	deps AuthDependencies
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(deps AuthDependencies) *AuthHandler {
	return &AuthHandler{deps: deps}
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a authRequest) validate() error {
	switch {
	case strings.TrimSpace(a.Username) == "":
		return errors.New("missing username")
	case a.Password == "":
		return errors.New("missing password")
	}
	return nil
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
}

// HandleAuth handles POST /auth requests. Unknown usernames are registered
// on the fly; known ones must present the matching password.
func (h *AuthHandler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	const op = "api.auth"

	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	result, err := h.deps.Authenticate(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken: result.Token,
		Username:    result.User.Username,
	})
}
