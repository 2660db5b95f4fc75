package recipe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/recipe-app/recipe-api/internal/shared"
)

// ImagePrefix is the object key prefix for recipe images.
const ImagePrefix = "recipes"

// ImageStore persists uploaded recipe images.
type ImageStore interface {
	Put(ctx context.Context, prefix, filename, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// ImageJanitor removes stale image objects asynchronously.
type ImageJanitor interface {
	ScheduleImageCleanup(ctx context.Context, key string) error
}

// Service handles tag, ingredient and recipe business logic.
type Service struct {
	repo    Repository
	images  ImageStore
	janitor ImageJanitor
	logger  *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithImageStore enables image uploads.
func WithImageStore(store ImageStore) Option {
	return func(s *Service) { s.images = store }
}

// WithImageJanitor routes stale image removal through a background queue.
func WithImageJanitor(j ImageJanitor) Option {
	return func(s *Service) { s.janitor = j }
}

// WithLogger sets the logger used for best-effort side effects.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService builds Service instance.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListTags returns the user's tags.
func (s *Service) ListTags(ctx context.Context, userID int64, assignedOnly bool) ([]Tag, error) {
	return s.repo.ListTags(ctx, userID, assignedOnly)
}

// CreateTag creates a tag owned by userID.
func (s *Service) CreateTag(ctx context.Context, userID int64, name string) (Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tag{}, shared.NewValidationError("name", "This field may not be blank.")
	}
	return s.repo.CreateTag(ctx, Tag{Name: name, UserID: userID})
}

// ListIngredients returns the user's ingredients.
func (s *Service) ListIngredients(ctx context.Context, userID int64, assignedOnly bool) ([]Ingredient, error) {
	return s.repo.ListIngredients(ctx, userID, assignedOnly)
}

// CreateIngredient creates an ingredient owned by userID.
func (s *Service) CreateIngredient(ctx context.Context, userID int64, name string) (Ingredient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Ingredient{}, shared.NewValidationError("name", "This field may not be blank.")
	}
	return s.repo.CreateIngredient(ctx, Ingredient{Name: name, UserID: userID})
}

// ListRecipes returns the user's recipes matching filter.
func (s *Service) ListRecipes(ctx context.Context, userID int64, filter ListFilter) ([]Recipe, error) {
	return s.repo.ListRecipes(ctx, userID, filter)
}

// GetRecipe returns one of the user's recipes.
func (s *Service) GetRecipe(ctx context.Context, userID, id int64) (Recipe, error) {
	return s.repo.GetRecipe(ctx, userID, id)
}

// CreateRecipe validates input and creates a recipe for userID.
func (s *Service) CreateRecipe(ctx context.Context, userID int64, in RecipeInput) (Recipe, error) {
	verr := requireFields(in)
	w := RecipeWrite{UserID: userID}
	applyInput(&w, in)
	if err := s.check(ctx, userID, w, verr); err != nil {
		return Recipe{}, err
	}
	return s.repo.CreateRecipe(ctx, w)
}

// UpdateRecipe applies in to an existing recipe. A full update requires every
// scalar field; a partial update leaves absent fields untouched. Relation sets
// are replaced only when supplied.
func (s *Service) UpdateRecipe(ctx context.Context, userID, id int64, in RecipeInput, partial bool) (Recipe, error) {
	verr := &shared.ValidationError{}
	if !partial {
		verr = requireFields(in)
	}
	current, err := s.repo.GetRecipe(ctx, userID, id)
	if err != nil {
		return Recipe{}, err
	}
	w := RecipeWrite{
		ID:            current.ID,
		UserID:        userID,
		Title:         current.Title,
		TimeMinutes:   current.TimeMinutes,
		Price:         current.Price,
		Link:          current.Link,
		TagIDs:        current.TagIDs(),
		IngredientIDs: current.IngredientIDs(),
	}
	applyInput(&w, in)
	if err := s.check(ctx, userID, w, verr); err != nil {
		return Recipe{}, err
	}
	return s.repo.UpdateRecipe(ctx, w)
}

// DeleteRecipe removes a recipe and schedules removal of its image.
func (s *Service) DeleteRecipe(ctx context.Context, userID, id int64) error {
	deleted, err := s.repo.DeleteRecipe(ctx, userID, id)
	if err != nil {
		return err
	}
	s.discardImage(ctx, deleted.Image)
	return nil
}

// UploadImage stores body as the recipe's image and returns the updated recipe.
func (s *Service) UploadImage(ctx context.Context, userID, id int64, filename, contentType string, body io.Reader) (Recipe, error) {
	if s.images == nil {
		return Recipe{}, shared.ErrStorageUnavailable
	}
	rec, err := s.repo.GetRecipe(ctx, userID, id)
	if err != nil {
		return Recipe{}, err
	}
	key, err := s.images.Put(ctx, ImagePrefix, filename, contentType, body)
	if err != nil {
		return Recipe{}, fmt.Errorf("recipe: store image: %w", err)
	}
	previous, err := s.repo.SetImage(ctx, userID, id, key)
	if err != nil {
		s.discardImage(ctx, key)
		return Recipe{}, err
	}
	if previous != "" && previous != key {
		s.discardImage(ctx, previous)
	}
	rec.Image = key
	return rec, nil
}

func (s *Service) discardImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if s.janitor != nil {
		if err := s.janitor.ScheduleImageCleanup(ctx, key); err != nil {
			s.logger.Warn("schedule image cleanup failed", slog.String("key", key), slog.Any("error", err))
		}
		return
	}
	if s.images != nil {
		if err := s.images.Delete(ctx, key); err != nil {
			s.logger.Warn("delete image failed", slog.String("key", key), slog.Any("error", err))
		}
	}
}

// check runs the cross-field rules that struct tags cannot express.
func (s *Service) check(ctx context.Context, userID int64, w RecipeWrite, verr *shared.ValidationError) error {
	if strings.TrimSpace(w.Title) == "" && !verr.Has("title") {
		verr.Add("title", "This field may not be blank.")
	}
	if !verr.Has("time_minutes") {
		switch {
		case w.TimeMinutes < 0:
			verr.Add("time_minutes", "Ensure this value is greater than or equal to 0.")
		case w.TimeMinutes > MaxTimeMinutes:
			verr.Add("time_minutes", fmt.Sprintf("Ensure this value is less than or equal to %d.", MaxTimeMinutes))
		}
	}
	if msg := priceError(w.Price); msg != "" && !verr.Has("price") {
		verr.Add("price", msg)
	}

	missingTags, err := s.repo.MissingTagIDs(ctx, userID, w.TagIDs)
	if err != nil {
		return err
	}
	for _, id := range missingTags {
		verr.Add("tags", invalidPK(id))
	}
	missingIngredients, err := s.repo.MissingIngredientIDs(ctx, userID, w.IngredientIDs)
	if err != nil {
		return err
	}
	for _, id := range missingIngredients {
		verr.Add("ingredients", invalidPK(id))
	}
	return verr.Err()
}

// MaxPrice is the largest price a recipe may carry.
const MaxPrice = 999.99

// MaxTimeMinutes bounds time_minutes to the INTEGER column.
const MaxTimeMinutes = math.MaxInt32

func priceError(price float64) string {
	switch {
	case math.IsNaN(price) || math.IsInf(price, 0):
		return "A valid number is required."
	case price < 0:
		return "Ensure this value is greater than or equal to 0."
	case price > MaxPrice:
		return "Ensure that there are no more than 5 digits in total."
	}
	cents := price * 100
	if math.Abs(cents-math.Round(cents)) > 1e-6 {
		return "Ensure that there are no more than 2 decimal places."
	}
	return ""
}

func invalidPK(id int64) string {
	return fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id)
}

func requireFields(in RecipeInput) *shared.ValidationError {
	verr := &shared.ValidationError{}
	if in.Title == nil {
		verr.Add("title", "This field is required.")
	}
	if in.TimeMinutes == nil {
		verr.Add("time_minutes", "This field is required.")
	}
	if in.Price == nil {
		verr.Add("price", "This field is required.")
	}
	return verr
}

func applyInput(w *RecipeWrite, in RecipeInput) {
	if in.Title != nil {
		w.Title = strings.TrimSpace(*in.Title)
	}
	if in.TimeMinutes != nil {
		w.TimeMinutes = *in.TimeMinutes
	}
	if in.Price != nil {
		w.Price = *in.Price
	}
	if in.Link != nil {
		w.Link = strings.TrimSpace(*in.Link)
	}
	if in.TagIDs != nil {
		w.TagIDs = dedupe(in.TagIDs)
	}
	if in.IngredientIDs != nil {
		w.IngredientIDs = dedupe(in.IngredientIDs)
	}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
