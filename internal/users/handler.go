package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/recipe-app/recipe-api/internal/platform/httpx"
	"github.com/recipe-app/recipe-api/internal/platform/validation"
	"github.com/recipe-app/recipe-api/internal/shared"
)

// Handler manages user registration and profile endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validator   *validation.Validator
	requireAuth func(http.Handler) http.Handler
}

// NewHandler builds Handler instance. requireAuth guards the profile routes.
func NewHandler(logger *slog.Logger, service *Service, v *validation.Validator, requireAuth func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: v, requireAuth: requireAuth}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/create", h.createUser)
	r.With(h.requireAuth).Route("/me", func(r chi.Router) {
		r.Get("/", h.retrieveProfile)
		r.Put("/", h.replaceProfile)
		r.Patch("/", h.patchProfile)
	})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, err)
		return
	}
	user, err := h.service.Register(r.Context(), CreateUserParams{Email: req.Email, Password: req.Password, Name: req.Name})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("user registered", slog.Int64("user_id", user.ID))
	httpx.JSON(w, http.StatusCreated, toResponse(user))
}

func (h *Handler) retrieveProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(user))
}

func (h *Handler) replaceProfile(w http.ResponseWriter, r *http.Request) {
	var req replaceProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, err)
		return
	}
	h.update(w, r, UpdateProfileParams{Email: &req.Email, Name: &req.Name, Password: req.Password})
}

func (h *Handler) patchProfile(w http.ResponseWriter, r *http.Request) {
	var req patchProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, err)
		return
	}
	h.update(w, r, UpdateProfileParams{Email: req.Email, Name: req.Name, Password: req.Password})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, params UpdateProfileParams) {
	user, err := h.service.UpdateProfile(r.Context(), shared.UserIDFromContext(r.Context()), params)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(user))
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error("users request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
