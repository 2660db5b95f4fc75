package recipe

import "time"

// Tag labels recipes; tags are private to their owner.
type Tag struct {
	ID     int64
	Name   string
	UserID int64
}

func (t Tag) String() string { return t.Name }

// Ingredient is a named recipe component owned by a user.
type Ingredient struct {
	ID     int64
	Name   string
	UserID int64
}

func (i Ingredient) String() string { return i.Name }

// Recipe is a user's recipe with its tag and ingredient sets.
type Recipe struct {
	ID          int64
	UserID      int64
	Title       string
	TimeMinutes int
	Price       float64
	Link        string
	Image       string
	Tags        []Tag
	Ingredients []Ingredient
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r Recipe) String() string { return r.Title }

// TagIDs returns the ids of the recipe's tags.
func (r Recipe) TagIDs() []int64 {
	ids := make([]int64, 0, len(r.Tags))
	for _, t := range r.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

// IngredientIDs returns the ids of the recipe's ingredients.
func (r Recipe) IngredientIDs() []int64 {
	ids := make([]int64, 0, len(r.Ingredients))
	for _, i := range r.Ingredients {
		ids = append(ids, i.ID)
	}
	return ids
}

// ListFilter narrows recipe listings. Empty slices do not filter.
type ListFilter struct {
	TagIDs        []int64
	IngredientIDs []int64
}

// RecipeInput carries recipe fields from a write request. Nil fields are
// absent from the payload; for full updates the handler requires them.
type RecipeInput struct {
	Title         *string
	TimeMinutes   *int
	Price         *float64
	Link          *string
	TagIDs        []int64
	IngredientIDs []int64
}

// RecipeWrite is the fully resolved state persisted by the repository.
type RecipeWrite struct {
	ID            int64
	UserID        int64
	Title         string
	TimeMinutes   int
	Price         float64
	Link          string
	TagIDs        []int64
	IngredientIDs []int64
}
