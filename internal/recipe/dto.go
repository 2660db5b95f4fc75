package recipe

type attributeRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// AttributeResponse renders a tag or ingredient.
type AttributeResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// createRecipeRequest is used for POST and PUT; every scalar field is required.
type createRecipeRequest struct {
	Title       *string  `json:"title" validate:"required,min=1,max=255"`
	TimeMinutes *int     `json:"time_minutes" validate:"required,gte=0,lte=2147483647"`
	Price       *float64 `json:"price" validate:"required,gte=0,lte=999.99"`
	Link        *string  `json:"link,omitempty" validate:"omitempty,url,max=255"`
	Tags        []int64  `json:"tags,omitempty" validate:"omitempty,dive,gt=0"`
	Ingredients []int64  `json:"ingredients,omitempty" validate:"omitempty,dive,gt=0"`
}

type patchRecipeRequest struct {
	Title       *string  `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	TimeMinutes *int     `json:"time_minutes,omitempty" validate:"omitempty,gte=0,lte=2147483647"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gte=0,lte=999.99"`
	Link        *string  `json:"link,omitempty" validate:"omitempty,url,max=255"`
	Tags        []int64  `json:"tags,omitempty" validate:"omitempty,dive,gt=0"`
	Ingredients []int64  `json:"ingredients,omitempty" validate:"omitempty,dive,gt=0"`
}

func (r createRecipeRequest) input() RecipeInput {
	return RecipeInput{
		Title:         r.Title,
		TimeMinutes:   r.TimeMinutes,
		Price:         r.Price,
		Link:          r.Link,
		TagIDs:        r.Tags,
		IngredientIDs: r.Ingredients,
	}
}

func (r patchRecipeRequest) input() RecipeInput {
	return RecipeInput{
		Title:         r.Title,
		TimeMinutes:   r.TimeMinutes,
		Price:         r.Price,
		Link:          r.Link,
		TagIDs:        r.Tags,
		IngredientIDs: r.Ingredients,
	}
}

// RecipeResponse is the write representation: related objects as id lists.
type RecipeResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	TimeMinutes int     `json:"time_minutes"`
	Price       float64 `json:"price"`
	Link        string  `json:"link"`
	Tags        []int64 `json:"tags"`
	Ingredients []int64 `json:"ingredients"`
}

// RecipeDetailResponse nests tags and ingredients.
type RecipeDetailResponse struct {
	ID          int64               `json:"id"`
	Title       string              `json:"title"`
	TimeMinutes int                 `json:"time_minutes"`
	Price       float64             `json:"price"`
	Link        string              `json:"link"`
	Image       string              `json:"image,omitempty"`
	Tags        []AttributeResponse `json:"tags"`
	Ingredients []AttributeResponse `json:"ingredients"`
}

type imageResponse struct {
	ID    int64  `json:"id"`
	Image string `json:"image"`
}

func tagResponse(t Tag) AttributeResponse {
	return AttributeResponse{ID: t.ID, Name: t.Name}
}

func ingredientResponse(i Ingredient) AttributeResponse {
	return AttributeResponse{ID: i.ID, Name: i.Name}
}

func recipeResponse(r Recipe) RecipeResponse {
	return RecipeResponse{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price,
		Link:        r.Link,
		Tags:        r.TagIDs(),
		Ingredients: r.IngredientIDs(),
	}
}

func recipeDetailResponse(r Recipe) RecipeDetailResponse {
	out := RecipeDetailResponse{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price,
		Link:        r.Link,
		Image:       r.Image,
		Tags:        make([]AttributeResponse, 0, len(r.Tags)),
		Ingredients: make([]AttributeResponse, 0, len(r.Ingredients)),
	}
	for _, t := range r.Tags {
		out.Tags = append(out.Tags, tagResponse(t))
	}
	for _, i := range r.Ingredients {
		out.Ingredients = append(out.Ingredients, ingredientResponse(i))
	}
	return out
}
