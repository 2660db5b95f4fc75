package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/recipe-app/recipe-api/internal/platform/httpx"
	"github.com/recipe-app/recipe-api/internal/platform/validation"
	"github.com/recipe-app/recipe-api/internal/shared"
)

// Handler wires HTTP endpoints for token authentication.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validation.Validator
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, v *validation.Validator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: v}
}

// MountRoutes registers token routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/token", h.obtainToken)
	r.With(RequireToken(h.service, h.logger)).Delete("/token", h.revokeToken)
}

func (h *Handler) obtainToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	token, err := h.service.IssueToken(r.Context(), req.Email, req.Password)
	if err != nil {
		if httpx.IsServerError(err) {
			h.logger.Error("issue token", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{Token: token.Key})
}

func (h *Handler) revokeToken(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Revoke(r.Context(), shared.UserIDFromContext(r.Context())); err != nil {
		h.logger.Error("revoke token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}
