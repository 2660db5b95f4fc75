package recipe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/recipe-app/recipe-api/internal/platform/db"
	"github.com/recipe-app/recipe-api/internal/shared"
)

// Repository defines persistence operations for tags, ingredients and recipes.
// Every read and write is scoped to the owning user.
type Repository interface {
	ListTags(ctx context.Context, userID int64, assignedOnly bool) ([]Tag, error)
	CreateTag(ctx context.Context, tag Tag) (Tag, error)
	ListIngredients(ctx context.Context, userID int64, assignedOnly bool) ([]Ingredient, error)
	CreateIngredient(ctx context.Context, ingredient Ingredient) (Ingredient, error)
	MissingTagIDs(ctx context.Context, userID int64, ids []int64) ([]int64, error)
	MissingIngredientIDs(ctx context.Context, userID int64, ids []int64) ([]int64, error)
	ListRecipes(ctx context.Context, userID int64, filter ListFilter) ([]Recipe, error)
	GetRecipe(ctx context.Context, userID, id int64) (Recipe, error)
	CreateRecipe(ctx context.Context, w RecipeWrite) (Recipe, error)
	UpdateRecipe(ctx context.Context, w RecipeWrite) (Recipe, error)
	DeleteRecipe(ctx context.Context, userID, id int64) (Recipe, error)
	SetImage(ctx context.Context, userID, id int64, key string) (string, error)
}

// Pool is the subset of *pgxpool.Pool used by the repository.
type Pool interface {
	db.DBTX
	db.TxBeginner
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// attribute tables share a shape; the names below are constants, never input.
type attributeTable struct {
	table    string
	junction string
	column   string
}

var (
	tagTable        = attributeTable{table: "tags", junction: "recipe_tags", column: "tag_id"}
	ingredientTable = attributeTable{table: "ingredients", junction: "recipe_ingredients", column: "ingredient_id"}
)

type attributeRow struct {
	id     int64
	name   string
	userID int64
}

func (r *PGRepository) listAttributes(ctx context.Context, t attributeTable, userID int64, assignedOnly bool) ([]attributeRow, error) {
	query := `SELECT a.id, a.name, a.user_id FROM ` + t.table + ` a WHERE a.user_id = $1`
	if assignedOnly {
		query += ` AND EXISTS (SELECT 1 FROM ` + t.junction + ` j WHERE j.` + t.column + ` = a.id)`
	}
	query += ` ORDER BY a.name DESC, a.id DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("recipe: list %s: %w", t.table, err)
	}
	defer rows.Close()

	var out []attributeRow
	for rows.Next() {
		var a attributeRow
		if err := rows.Scan(&a.id, &a.name, &a.userID); err != nil {
			return nil, fmt.Errorf("recipe: scan %s: %w", t.table, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PGRepository) createAttribute(ctx context.Context, t attributeTable, name string, userID int64) (attributeRow, error) {
	a := attributeRow{name: name, userID: userID}
	err := r.pool.QueryRow(ctx, `INSERT INTO `+t.table+` (name, user_id) VALUES ($1, $2) RETURNING id`, name, userID).Scan(&a.id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return attributeRow{}, fmt.Errorf("recipe: create %s: %w", t.table, shared.ErrUnauthorized)
		}
		return attributeRow{}, fmt.Errorf("recipe: create %s: %w", t.table, err)
	}
	return a, nil
}

func (r *PGRepository) missingAttributes(ctx context.Context, t attributeTable, userID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM `+t.table+` WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("recipe: check %s: %w", t.table, err)
	}
	defer rows.Close()

	owned := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("recipe: scan %s id: %w", t.table, err)
		}
		owned[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := owned[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// ListTags returns the user's tags ordered by name descending.
func (r *PGRepository) ListTags(ctx context.Context, userID int64, assignedOnly bool) ([]Tag, error) {
	rows, err := r.listAttributes(ctx, tagTable, userID, assignedOnly)
	if err != nil {
		return nil, err
	}
	tags := make([]Tag, 0, len(rows))
	for _, a := range rows {
		tags = append(tags, Tag{ID: a.id, Name: a.name, UserID: a.userID})
	}
	return tags, nil
}

// CreateTag inserts a tag for its owner.
func (r *PGRepository) CreateTag(ctx context.Context, tag Tag) (Tag, error) {
	a, err := r.createAttribute(ctx, tagTable, tag.Name, tag.UserID)
	if err != nil {
		return Tag{}, err
	}
	return Tag{ID: a.id, Name: a.name, UserID: a.userID}, nil
}

// ListIngredients returns the user's ingredients ordered by name descending.
func (r *PGRepository) ListIngredients(ctx context.Context, userID int64, assignedOnly bool) ([]Ingredient, error) {
	rows, err := r.listAttributes(ctx, ingredientTable, userID, assignedOnly)
	if err != nil {
		return nil, err
	}
	ingredients := make([]Ingredient, 0, len(rows))
	for _, a := range rows {
		ingredients = append(ingredients, Ingredient{ID: a.id, Name: a.name, UserID: a.userID})
	}
	return ingredients, nil
}

// CreateIngredient inserts an ingredient for its owner.
func (r *PGRepository) CreateIngredient(ctx context.Context, ingredient Ingredient) (Ingredient, error) {
	a, err := r.createAttribute(ctx, ingredientTable, ingredient.Name, ingredient.UserID)
	if err != nil {
		return Ingredient{}, err
	}
	return Ingredient{ID: a.id, Name: a.name, UserID: a.userID}, nil
}

// MissingTagIDs returns the ids in ids that are not tags owned by userID.
func (r *PGRepository) MissingTagIDs(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	return r.missingAttributes(ctx, tagTable, userID, ids)
}

// MissingIngredientIDs returns the ids in ids that are not ingredients owned by userID.
func (r *PGRepository) MissingIngredientIDs(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	return r.missingAttributes(ctx, ingredientTable, userID, ids)
}

const recipeColumns = `r.id, r.user_id, r.title, r.time_minutes, r.price::float8, r.link, r.image, r.created_at, r.updated_at`

// ListRecipes returns the user's recipes, newest first, with relations loaded.
func (r *PGRepository) ListRecipes(ctx context.Context, userID int64, filter ListFilter) ([]Recipe, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + recipeColumns + ` FROM recipes r WHERE r.user_id = $1`)
	args := []any{userID}
	if len(filter.TagIDs) > 0 {
		args = append(args, filter.TagIDs)
		sb.WriteString(` AND r.id IN (SELECT recipe_id FROM recipe_tags WHERE tag_id = ANY($` + strconv.Itoa(len(args)) + `))`)
	}
	if len(filter.IngredientIDs) > 0 {
		args = append(args, filter.IngredientIDs)
		sb.WriteString(` AND r.id IN (SELECT recipe_id FROM recipe_ingredients WHERE ingredient_id = ANY($` + strconv.Itoa(len(args)) + `))`)
	}
	sb.WriteString(` ORDER BY r.id DESC`)

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("recipe: list recipes: %w", err)
	}
	defer rows.Close()

	recipes := make([]Recipe, 0)
	for rows.Next() {
		rec, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("recipe: scan recipe: %w", err)
		}
		recipes = append(recipes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadRelations(ctx, r.pool, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// GetRecipe fetches one of the user's recipes.
func (r *PGRepository) GetRecipe(ctx context.Context, userID, id int64) (Recipe, error) {
	return getRecipe(ctx, r.pool, userID, id)
}

// CreateRecipe inserts a recipe and its relations in one transaction.
func (r *PGRepository) CreateRecipe(ctx context.Context, w RecipeWrite) (Recipe, error) {
	var created Recipe
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `INSERT INTO recipes (user_id, title, time_minutes, price, link)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`, w.UserID, w.Title, w.TimeMinutes, w.Price, w.Link).Scan(&id)
		if err != nil {
			return fmt.Errorf("recipe: insert recipe: %w", err)
		}
		if err := setRelations(ctx, tx, id, w); err != nil {
			return err
		}
		created, err = getRecipe(ctx, tx, w.UserID, id)
		return err
	})
	return created, err
}

// UpdateRecipe rewrites the recipe scalars and replaces both relation sets.
func (r *PGRepository) UpdateRecipe(ctx context.Context, w RecipeWrite) (Recipe, error) {
	var updated Recipe
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE recipes
SET title = $3, time_minutes = $4, price = $5, link = $6, updated_at = NOW()
WHERE id = $1 AND user_id = $2`, w.ID, w.UserID, w.Title, w.TimeMinutes, w.Price, w.Link)
		if err != nil {
			return fmt.Errorf("recipe: update recipe: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("recipe: update recipe: %w", shared.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM recipe_tags WHERE recipe_id = $1`, w.ID); err != nil {
			return fmt.Errorf("recipe: clear tags: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM recipe_ingredients WHERE recipe_id = $1`, w.ID); err != nil {
			return fmt.Errorf("recipe: clear ingredients: %w", err)
		}
		if err := setRelations(ctx, tx, w.ID, w); err != nil {
			return err
		}
		updated, err = getRecipe(ctx, tx, w.UserID, w.ID)
		return err
	})
	return updated, err
}

// DeleteRecipe removes a recipe and returns its final state.
func (r *PGRepository) DeleteRecipe(ctx context.Context, userID, id int64) (Recipe, error) {
	row := r.pool.QueryRow(ctx, `DELETE FROM recipes r WHERE r.id = $1 AND r.user_id = $2 RETURNING `+recipeColumns, id, userID)
	rec, err := scanRecipe(row)
	if err != nil {
		return Recipe{}, mapNotFound("delete recipe", err)
	}
	return rec, nil
}

// SetImage records a new image key and returns the previous one.
func (r *PGRepository) SetImage(ctx context.Context, userID, id int64, key string) (string, error) {
	var previous string
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT image FROM recipes WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, userID).Scan(&previous)
		if err != nil {
			return mapNotFound("lock recipe image", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE recipes SET image = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`, id, userID, key); err != nil {
			return fmt.Errorf("recipe: set image: %w", err)
		}
		return nil
	})
	return previous, err
}

func getRecipe(ctx context.Context, q db.DBTX, userID, id int64) (Recipe, error) {
	rec, err := scanRecipe(q.QueryRow(ctx, `SELECT `+recipeColumns+` FROM recipes r WHERE r.id = $1 AND r.user_id = $2`, id, userID))
	if err != nil {
		return Recipe{}, mapNotFound("get recipe", err)
	}
	recipes := []Recipe{rec}
	if err := loadRelations(ctx, q, recipes); err != nil {
		return Recipe{}, err
	}
	return recipes[0], nil
}

// setRelations links only attributes owned by the recipe's user.
func setRelations(ctx context.Context, tx pgx.Tx, recipeID int64, w RecipeWrite) error {
	if len(w.TagIDs) > 0 {
		_, err := tx.Exec(ctx, `INSERT INTO recipe_tags (recipe_id, tag_id)
SELECT $1, id FROM tags WHERE user_id = $2 AND id = ANY($3)
ON CONFLICT DO NOTHING`, recipeID, w.UserID, w.TagIDs)
		if err != nil {
			return fmt.Errorf("recipe: link tags: %w", err)
		}
	}
	if len(w.IngredientIDs) > 0 {
		_, err := tx.Exec(ctx, `INSERT INTO recipe_ingredients (recipe_id, ingredient_id)
SELECT $1, id FROM ingredients WHERE user_id = $2 AND id = ANY($3)
ON CONFLICT DO NOTHING`, recipeID, w.UserID, w.IngredientIDs)
		if err != nil {
			return fmt.Errorf("recipe: link ingredients: %w", err)
		}
	}
	return nil
}

func loadRelations(ctx context.Context, q db.DBTX, recipes []Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	ids := make([]int64, len(recipes))
	index := make(map[int64]int, len(recipes))
	for i, rec := range recipes {
		ids[i] = rec.ID
		index[rec.ID] = i
		recipes[i].Tags = []Tag{}
		recipes[i].Ingredients = []Ingredient{}
	}

	rows, err := q.Query(ctx, `SELECT rt.recipe_id, t.id, t.name, t.user_id
FROM recipe_tags rt JOIN tags t ON t.id = rt.tag_id
WHERE rt.recipe_id = ANY($1)
ORDER BY t.id`, ids)
	if err != nil {
		return fmt.Errorf("recipe: load tags: %w", err)
	}
	for rows.Next() {
		var recipeID int64
		var t Tag
		if err := rows.Scan(&recipeID, &t.ID, &t.Name, &t.UserID); err != nil {
			rows.Close()
			return fmt.Errorf("recipe: scan tag: %w", err)
		}
		i := index[recipeID]
		recipes[i].Tags = append(recipes[i].Tags, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `SELECT ri.recipe_id, i.id, i.name, i.user_id
FROM recipe_ingredients ri JOIN ingredients i ON i.id = ri.ingredient_id
WHERE ri.recipe_id = ANY($1)
ORDER BY i.id`, ids)
	if err != nil {
		return fmt.Errorf("recipe: load ingredients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var recipeID int64
		var ing Ingredient
		if err := rows.Scan(&recipeID, &ing.ID, &ing.Name, &ing.UserID); err != nil {
			return fmt.Errorf("recipe: scan ingredient: %w", err)
		}
		i := index[recipeID]
		recipes[i].Ingredients = append(recipes[i].Ingredients, ing)
	}
	return rows.Err()
}

func scanRecipe(row pgx.Row) (Recipe, error) {
	var rec Recipe
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Title, &rec.TimeMinutes, &rec.Price, &rec.Link, &rec.Image, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func mapNotFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("recipe: %s: %w", op, shared.ErrNotFound)
	}
	return fmt.Errorf("recipe: %s: %w", op, err)
}

var _ Repository = (*PGRepository)(nil)
