package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/thislinkplease/midterm-cross-platform/internal/token"
	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
)

// Handler exposes the admin-create-user function over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, logger: logger}
}

// ServeHTTP lets the handler be registered as a function directly.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.CreateUser(w, r)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.Authorize(r.Context(), token.FromHeader(r.Header.Get("Authorization"))); err != nil {
		h.writeError(w, err)
		return
	}

	var req entity.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid create user payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	resp, err := h.svc.CreateUser(r.Context(), req)
	if err != nil {
		h.logger.Warnw("create user failed", "email", req.Email, "err", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// writeError maps service errors to status codes. Anything that is not an
// authorization failure is a 400 carrying the error text.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrForbidden):
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "Forbidden"})
	default:
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
