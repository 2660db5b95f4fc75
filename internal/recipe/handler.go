package recipe

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/recipe-app/recipe-api/internal/platform/httpx"
	"github.com/recipe-app/recipe-api/internal/platform/validation"
	"github.com/recipe-app/recipe-api/internal/shared"
)

// MaxImageBytes bounds uploaded image size.
const MaxImageBytes = 5 << 20

const sniffLen = 512

// action names the viewset operation being served.
type action string

const (
	actionList          action = "list"
	actionRetrieve      action = "retrieve"
	actionCreate        action = "create"
	actionUpdate        action = "update"
	actionPartialUpdate action = "partial_update"
)

// detailed reports whether the action renders nested tags and ingredients.
func (a action) detailed() bool {
	return a == actionList || a == actionRetrieve
}

// render picks the recipe representation for a.
func render(a action, rec Recipe) any {
	if a.detailed() {
		return recipeDetailResponse(rec)
	}
	return recipeResponse(rec)
}

// Handler serves tag, ingredient and recipe endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validator   *validation.Validator
	requireAuth func(http.Handler) http.Handler
}

// NewHandler builds Handler instance. Every route requires authentication.
func NewHandler(logger *slog.Logger, service *Service, v *validation.Validator, requireAuth func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: v, requireAuth: requireAuth}
}

// MountRoutes registers recipe routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/tags", h.listTags)
		r.Post("/tags", h.createTag)
		for _, path := range []string{"/ingredients", "/incredients"} {
			r.Get(path, h.listIngredients)
			r.Post(path, h.createIngredient)
		}

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", h.listRecipes)
			r.Post("/", h.createRecipe)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.retrieveRecipe)
				r.Put("/", h.replaceRecipe)
				r.Patch("/", h.patchRecipe)
				r.Delete("/", h.deleteRecipe)
				r.Post("/upload-image", h.uploadImage)
			})
		})
	})
}

func (h *Handler) listTags(w http.ResponseWriter, r *http.Request) {
	assignedOnly, err := parseAssignedOnly(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	tags, err := h.service.ListTags(r.Context(), shared.UserIDFromContext(r.Context()), assignedOnly)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]AttributeResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagResponse(t))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createTag(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeAttribute(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	tag, err := h.service.CreateTag(r.Context(), shared.UserIDFromContext(r.Context()), req.Name)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tagResponse(tag))
}

func (h *Handler) listIngredients(w http.ResponseWriter, r *http.Request) {
	assignedOnly, err := parseAssignedOnly(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	ingredients, err := h.service.ListIngredients(r.Context(), shared.UserIDFromContext(r.Context()), assignedOnly)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]AttributeResponse, 0, len(ingredients))
	for _, i := range ingredients {
		out = append(out, ingredientResponse(i))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createIngredient(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeAttribute(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	ingredient, err := h.service.CreateIngredient(r.Context(), shared.UserIDFromContext(r.Context()), req.Name)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ingredientResponse(ingredient))
}

func (h *Handler) decodeAttribute(r *http.Request) (attributeRequest, error) {
	var req attributeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return req, err
	}
	return req, h.validator.Struct(req)
}

func (h *Handler) listRecipes(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	recipes, err := h.service.ListRecipes(r.Context(), shared.UserIDFromContext(r.Context()), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]any, 0, len(recipes))
	for _, rec := range recipes {
		out = append(out, render(actionList, rec))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) retrieveRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(r)
	if !ok {
		h.fail(w, shared.ErrNotFound)
		return
	}
	rec, err := h.service.GetRecipe(r.Context(), shared.UserIDFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, render(actionRetrieve, rec))
}

func (h *Handler) createRecipe(w http.ResponseWriter, r *http.Request) {
	var req createRecipeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, err)
		return
	}
	userID := shared.UserIDFromContext(r.Context())
	rec, err := h.service.CreateRecipe(r.Context(), userID, req.input())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("recipe created", slog.Int64("recipe_id", rec.ID), slog.Int64("user_id", userID))
	httpx.JSON(w, http.StatusCreated, render(actionCreate, rec))
}

func (h *Handler) replaceRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(r)
	if !ok {
		h.fail(w, shared.ErrNotFound)
		return
	}
	var req createRecipeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, err)
		return
	}
	rec, err := h.service.UpdateRecipe(r.Context(), shared.UserIDFromContext(r.Context()), id, req.input(), false)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, render(actionUpdate, rec))
}

func (h *Handler) patchRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(r)
	if !ok {
		h.fail(w, shared.ErrNotFound)
		return
	}
	var req patchRecipeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, err)
		return
	}
	rec, err := h.service.UpdateRecipe(r.Context(), shared.UserIDFromContext(r.Context()), id, req.input(), true)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, render(actionPartialUpdate, rec))
}

func (h *Handler) deleteRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(r)
	if !ok {
		h.fail(w, shared.ErrNotFound)
		return
	}
	if err := h.service.DeleteRecipe(r.Context(), shared.UserIDFromContext(r.Context()), id); err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(r)
	if !ok {
		h.fail(w, shared.ErrNotFound)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes+sniffLen*2)
	if err := r.ParseMultipartForm(MaxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, shared.NewValidationError("image", "Ensure the image is no larger than 5 MiB."))
			return
		}
		h.fail(w, shared.NewValidationError("image", "The submitted data was not a file. Check the encoding type on the form."))
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		h.fail(w, shared.NewValidationError("image", "No file was submitted."))
		return
	}
	defer file.Close()

	contentType, err := sniffImage(file, header)
	if err != nil {
		h.fail(w, err)
		return
	}
	rec, err := h.service.UploadImage(r.Context(), shared.UserIDFromContext(r.Context()), id, header.Filename, contentType, file)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("recipe image stored", slog.Int64("recipe_id", rec.ID), slog.String("key", rec.Image))
	httpx.JSON(w, http.StatusOK, imageResponse{ID: rec.ID, Image: rec.Image})
}

// sniffImage checks the upload looks like an image and rewinds it.
func sniffImage(file multipart.File, header *multipart.FileHeader) (string, error) {
	invalid := shared.NewValidationError("image", "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	if header.Size > MaxImageBytes {
		return "", shared.NewValidationError("image", "Ensure the image is no larger than 5 MiB.")
	}
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", invalid
	}
	contentType := http.DetectContentType(buf[:n])
	if !strings.HasPrefix(contentType, "image/") {
		return "", invalid
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return contentType, nil
}

func recipeID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func parseAssignedOnly(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("assigned_only")
	if raw == "" {
		return false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return false, shared.NewValidationError("assigned_only", "A valid integer is required.")
	}
	return n != 0, nil
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	verr := &shared.ValidationError{}
	q := r.URL.Query()
	filter := ListFilter{
		TagIDs:        parseIDs(q.Get("tags"), "tags", verr),
		IngredientIDs: parseIDs(q.Get("ingredients"), "ingredients", verr),
	}
	return filter, verr.Err()
}

// parseIDs parses a comma separated id list such as "1,2,3".
func parseIDs(raw, field string, verr *shared.ValidationError) []int64 {
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			verr.Add(field, "Enter a comma separated list of ids.")
			return nil
		}
		ids = append(ids, id)
	}
	return ids
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error("recipe request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
