package recipe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipe-app/recipe-api/internal/platform/httpx"
	"github.com/recipe-app/recipe-api/internal/platform/validation"
	"github.com/recipe-app/recipe-api/internal/shared"
)

// Authorization headers accepted by the fake auth middleware.
var testTokens = map[string]int64{
	"Token alice": 1,
	"Token bob":   2,
}

type recipeAPI struct {
	router http.Handler
	svc    *Service
	logs   *bytes.Buffer
}

func newRecipeAPI(t *testing.T, opts ...Option) *recipeAPI {
	t.Helper()
	svc := NewService(newMemoryRepo(), opts...)
	requireAuth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := testTokens[r.Header.Get("Authorization")]
			if !ok {
				httpx.Unauthorized(w, shared.ErrUnauthorized.Error())
				return
			}
			ctx := shared.ContextWithPrincipal(r.Context(), shared.Principal{UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	logs := &bytes.Buffer{}
	h := NewHandler(slog.New(slog.NewTextHandler(logs, nil)), svc, validation.New(), requireAuth)
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Route("/recipe", h.MountRoutes)
	return &recipeAPI{router: r, svc: svc, logs: logs}
}

func (a *recipeAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	res := httptest.NewRecorder()
	a.router.ServeHTTP(res, req)
	return res
}

func decodeInto[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out), res.Body.String())
	return out
}

func TestRecipeEndpointsRequireAuth(t *testing.T) {
	api := newRecipeAPI(t)
	for _, path := range []string{"/recipe/tags", "/recipe/incredients", "/recipe/ingredients", "/recipe/recipes"} {
		res := api.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, res.Code, path)
		assert.Equal(t, "Token", res.Header().Get("WWW-Authenticate"))
	}
}

func TestTagsListAndCreate(t *testing.T) {
	api := newRecipeAPI(t)
	ctx := context.Background()
	_, _ = api.svc.CreateTag(ctx, 1, "Dessert")
	_, _ = api.svc.CreateTag(ctx, 2, "Fruity")

	res := api.do(t, http.MethodPost, "/recipe/tags", "Token alice", map[string]string{"name": "Vegan"})
	require.Equal(t, http.StatusCreated, res.Code)
	created := decodeInto[AttributeResponse](t, res)
	assert.Equal(t, "Vegan", created.Name)

	res = api.do(t, http.MethodGet, "/recipe/tags/", "Token alice", nil)
	require.Equal(t, http.StatusOK, res.Code)
	tags := decodeInto[[]AttributeResponse](t, res)
	require.Len(t, tags, 2)
	assert.Equal(t, "Vegan", tags[0].Name)
	assert.Equal(t, "Dessert", tags[1].Name)
}

func TestCreateTagInvalid(t *testing.T) {
	api := newRecipeAPI(t)
	res := api.do(t, http.MethodPost, "/recipe/tags", "Token alice", map[string]string{"name": ""})
	require.Equal(t, http.StatusBadRequest, res.Code)
	body := decodeInto[httpx.ProblemDetail](t, res)
	assert.Contains(t, body.Errors, "name")
}

func TestTagsRejectOtherMethods(t *testing.T) {
	api := newRecipeAPI(t)
	res := api.do(t, http.MethodDelete, "/recipe/tags", "Token alice", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, res.Code)
}

func TestIngredientAliasesShareData(t *testing.T) {
	api := newRecipeAPI(t)
	res := api.do(t, http.MethodPost, "/recipe/incredients", "Token alice", map[string]string{"name": "Kale"})
	require.Equal(t, http.StatusCreated, res.Code)

	res = api.do(t, http.MethodGet, "/recipe/ingredients", "Token alice", nil)
	require.Equal(t, http.StatusOK, res.Code)
	items := decodeInto[[]AttributeResponse](t, res)
	require.Len(t, items, 1)
	assert.Equal(t, "Kale", items[0].Name)

	res = api.do(t, http.MethodGet, "/recipe/ingredients", "Token bob", nil)
	assert.Empty(t, decodeInto[[]AttributeResponse](t, res))
}

func TestAssignedOnlyQuery(t *testing.T) {
	api := newRecipeAPI(t)
	ctx := context.Background()
	breakfast, _ := api.svc.CreateTag(ctx, 1, "Breakfast")
	_, _ = api.svc.CreateTag(ctx, 1, "Lunch")
	in := sampleInput()
	in.TagIDs = []int64{breakfast.ID}
	_, err := api.svc.CreateRecipe(ctx, 1, in)
	require.NoError(t, err)

	res := api.do(t, http.MethodGet, "/recipe/tags?assigned_only=1", "Token alice", nil)
	require.Equal(t, http.StatusOK, res.Code)
	tags := decodeInto[[]AttributeResponse](t, res)
	require.Len(t, tags, 1)
	assert.Equal(t, "Breakfast", tags[0].Name)

	res = api.do(t, http.MethodGet, "/recipe/tags?assigned_only=yes", "Token alice", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestCreateRecipeReturnsWriteRepresentation(t *testing.T) {
	api := newRecipeAPI(t)
	ctx := context.Background()
	vegan, _ := api.svc.CreateTag(ctx, 1, "Vegan")
	salt, _ := api.svc.CreateIngredient(ctx, 1, "Salt")

	payload := map[string]any{
		"title":        "Chocolate cheesecake",
		"time_minutes": 30,
		"price":        5.00,
		"tags":         []int64{vegan.ID},
		"ingredients":  []int64{salt.ID},
	}
	res := api.do(t, http.MethodPost, "/recipe/recipes", "Token alice", payload)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	body := decodeInto[RecipeResponse](t, res)
	assert.Equal(t, "Chocolate cheesecake", body.Title)
	assert.Equal(t, 30, body.TimeMinutes)
	assert.InDelta(t, 5.0, body.Price, 0.001)
	assert.Equal(t, []int64{vegan.ID}, body.Tags)
	assert.Equal(t, []int64{salt.ID}, body.Ingredients)
}

func TestCreateRecipeValidation(t *testing.T) {
	api := newRecipeAPI(t)
	cases := []struct {
		name    string
		payload map[string]any
		field   string
	}{
		{"missing title", map[string]any{"time_minutes": 5, "price": 1}, "title"},
		{"negative minutes", map[string]any{"title": "x", "time_minutes": -1, "price": 1}, "time_minutes"},
		{"price too high", map[string]any{"title": "x", "time_minutes": 1, "price": 1000}, "price"},
		{"price decimals", map[string]any{"title": "x", "time_minutes": 1, "price": 1.234}, "price"},
		{"bad link", map[string]any{"title": "x", "time_minutes": 1, "price": 1, "link": "not a url"}, "link"},
		{"foreign tag", map[string]any{"title": "x", "time_minutes": 1, "price": 1, "tags": []int{77}}, "tags"},
		{"wrong type", map[string]any{"title": "x", "time_minutes": "soon", "price": 1}, "time_minutes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := api.do(t, http.MethodPost, "/recipe/recipes", "Token alice", tc.payload)
			require.Equal(t, http.StatusBadRequest, res.Code, res.Body.String())
			body := decodeInto[httpx.ProblemDetail](t, res)
			assert.Contains(t, body.Errors, tc.field)
		})
	}
}

func TestTimeMinutesBoundedByIntegerColumn(t *testing.T) {
	api := newRecipeAPI(t)
	want := []string{"Ensure this value is less than or equal to 2147483647."}

	res := api.do(t, http.MethodPost, "/recipe/recipes", "Token alice", map[string]any{"title": "Stew", "time_minutes": 3000000000, "price": 5})
	require.Equal(t, http.StatusBadRequest, res.Code, res.Body.String())
	assert.Equal(t, want, decodeInto[httpx.ProblemDetail](t, res).Errors["time_minutes"])

	recipes, err := api.svc.ListRecipes(context.Background(), 1, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, recipes)

	rec, err := api.svc.CreateRecipe(context.Background(), 1, sampleInput())
	require.NoError(t, err)
	path := fmt.Sprintf("/recipe/recipes/%d", rec.ID)
	res = api.do(t, http.MethodPatch, path, "Token alice", map[string]any{"time_minutes": 2147483648})
	require.Equal(t, http.StatusBadRequest, res.Code, res.Body.String())
	assert.Equal(t, want, decodeInto[httpx.ProblemDetail](t, res).Errors["time_minutes"])

	res = api.do(t, http.MethodPatch, path, "Token alice", map[string]any{"time_minutes": 2147483647})
	assert.Equal(t, http.StatusOK, res.Code, res.Body.String())
}

func TestListAndRetrieveUseDetailRepresentation(t *testing.T) {
	api := newRecipeAPI(t)
	ctx := context.Background()
	vegan, _ := api.svc.CreateTag(ctx, 1, "Vegan")
	in := sampleInput()
	in.TagIDs = []int64{vegan.ID}
	rec, err := api.svc.CreateRecipe(ctx, 1, in)
	require.NoError(t, err)
	_, err = api.svc.CreateRecipe(ctx, 2, sampleInput())
	require.NoError(t, err)

	res := api.do(t, http.MethodGet, "/recipe/recipes", "Token alice", nil)
	require.Equal(t, http.StatusOK, res.Code)
	list := decodeInto[[]RecipeDetailResponse](t, res)
	require.Len(t, list, 1)
	assert.Equal(t, []AttributeResponse{{ID: vegan.ID, Name: "Vegan"}}, list[0].Tags)

	res = api.do(t, http.MethodGet, fmt.Sprintf("/recipe/recipes/%d", rec.ID), "Token alice", nil)
	require.Equal(t, http.StatusOK, res.Code)
	detail := decodeInto[RecipeDetailResponse](t, res)
	assert.Equal(t, rec.ID, detail.ID)
	assert.Equal(t, "Vegan", detail.Tags[0].Name)
	assert.NotNil(t, detail.Ingredients)
}

func TestRecipeFilterQuery(t *testing.T) {
	api := newRecipeAPI(t)
	ctx := context.Background()
	vegan, _ := api.svc.CreateTag(ctx, 1, "Vegan")
	in := sampleInput()
	in.TagIDs = []int64{vegan.ID}
	tagged, _ := api.svc.CreateRecipe(ctx, 1, in)
	_, _ = api.svc.CreateRecipe(ctx, 1, sampleInput())

	res := api.do(t, http.MethodGet, fmt.Sprintf("/recipe/recipes?tags=%d,999", vegan.ID), "Token alice", nil)
	require.Equal(t, http.StatusOK, res.Code)
	list := decodeInto[[]RecipeDetailResponse](t, res)
	require.Len(t, list, 1)
	assert.Equal(t, tagged.ID, list[0].ID)

	res = api.do(t, http.MethodGet, "/recipe/recipes?ingredients=abc", "Token alice", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRetrieveOtherUsersRecipe(t *testing.T) {
	api := newRecipeAPI(t)
	rec, err := api.svc.CreateRecipe(context.Background(), 2, sampleInput())
	require.NoError(t, err)

	res := api.do(t, http.MethodGet, fmt.Sprintf("/recipe/recipes/%d", rec.ID), "Token alice", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = api.do(t, http.MethodGet, "/recipe/recipes/abc", "Token alice", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestPatchAndPutRecipe(t *testing.T) {
	api := newRecipeAPI(t)
	ctx := context.Background()
	rec, err := api.svc.CreateRecipe(ctx, 1, sampleInput())
	require.NoError(t, err)
	curry, _ := api.svc.CreateTag(ctx, 1, "Curry")
	path := fmt.Sprintf("/recipe/recipes/%d", rec.ID)

	res := api.do(t, http.MethodPatch, path, "Token alice", map[string]any{"title": "Chicken tikka", "tags": []int64{curry.ID}})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	patched := decodeInto[RecipeResponse](t, res)
	assert.Equal(t, "Chicken tikka", patched.Title)
	assert.Equal(t, 10, patched.TimeMinutes)
	assert.Equal(t, []int64{curry.ID}, patched.Tags)

	res = api.do(t, http.MethodPut, path, "Token alice", map[string]any{"title": "Spaghetti carbonara"})
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = api.do(t, http.MethodPut, path, "Token alice", map[string]any{"title": "Spaghetti carbonara", "time_minutes": 25, "price": 5})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	replaced := decodeInto[RecipeResponse](t, res)
	assert.Equal(t, "Spaghetti carbonara", replaced.Title)
	assert.Equal(t, 25, replaced.TimeMinutes)
	assert.Equal(t, []int64{curry.ID}, replaced.Tags)
}

func TestDeleteRecipe(t *testing.T) {
	api := newRecipeAPI(t)
	rec, err := api.svc.CreateRecipe(context.Background(), 1, sampleInput())
	require.NoError(t, err)
	path := fmt.Sprintf("/recipe/recipes/%d", rec.ID)

	res := api.do(t, http.MethodDelete, path, "Token bob", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = api.do(t, http.MethodDelete, path, "Token alice", nil)
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = api.do(t, http.MethodGet, path, "Token alice", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\x0D\x0A\x1A\x0A\x00\x00\x00\x0DIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (a *recipeAPI) upload(t *testing.T, id int64, field, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, data)
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/recipe/recipes/%d/upload-image", id), body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Token alice")
	res := httptest.NewRecorder()
	a.router.ServeHTTP(res, req)
	return res
}

func TestUploadImage(t *testing.T) {
	store := newMemoryStore()
	api := newRecipeAPI(t, WithImageStore(store))
	rec, err := api.svc.CreateRecipe(context.Background(), 1, sampleInput())
	require.NoError(t, err)

	res := api.upload(t, rec.ID, "image", "photo.png", pngHeader)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	body := decodeInto[imageResponse](t, res)
	assert.Equal(t, rec.ID, body.ID)
	require.Contains(t, store.objects, body.Image)
	assert.Equal(t, pngHeader, store.objects[body.Image])

	res = api.do(t, http.MethodGet, fmt.Sprintf("/recipe/recipes/%d", rec.ID), "Token alice", nil)
	detail := decodeInto[RecipeDetailResponse](t, res)
	assert.Equal(t, body.Image, detail.Image)
}

func TestUploadImageRejectsBadRequests(t *testing.T) {
	store := newMemoryStore()
	api := newRecipeAPI(t, WithImageStore(store))
	rec, err := api.svc.CreateRecipe(context.Background(), 1, sampleInput())
	require.NoError(t, err)

	res := api.upload(t, rec.ID, "image", "notes.txt", []byte("definitely not an image"))
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = api.upload(t, rec.ID, "file", "photo.png", pngHeader)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = api.do(t, http.MethodPost, fmt.Sprintf("/recipe/recipes/%d/upload-image", rec.ID), "Token alice", map[string]string{"image": "x"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Empty(t, store.objects)
}

func TestUploadImageWithoutStorageAnswers503(t *testing.T) {
	api := newRecipeAPI(t)
	rec, err := api.svc.CreateRecipe(context.Background(), 1, sampleInput())
	require.NoError(t, err)

	res := api.upload(t, rec.ID, "image", "photo.png", pngHeader)
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
	assert.NotContains(t, api.logs.String(), "level=ERROR")
}

func TestRenderPicksRepresentation(t *testing.T) {
	rec := Recipe{ID: 1, Title: "x", Tags: []Tag{{ID: 3, Name: "t"}}}
	assert.IsType(t, RecipeDetailResponse{}, render(actionList, rec))
	assert.IsType(t, RecipeDetailResponse{}, render(actionRetrieve, rec))
	assert.IsType(t, RecipeResponse{}, render(actionCreate, rec))
	assert.IsType(t, RecipeResponse{}, render(actionUpdate, rec))
	assert.IsType(t, RecipeResponse{}, render(actionPartialUpdate, rec))
}
