package cooking

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantree/db"
	"pantree/dto"
	"pantree/mq"
)

type recorder struct {
	mu     sync.Mutex
	events []mq.Event
}

func (r *recorder) Emit(_ context.Context, ev mq.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type testServer struct {
	h      *Handlers
	router *httprouter.Router
	events *recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	events := &recorder{}
	h := New(db.NewMemoryStore(), events)
	h.PublicURL = "https://pantree.example"

	router := httprouter.New()
	router.GET("/api/foods", h.GetFoods)
	router.POST("/api/foods", h.AddFood)
	router.GET("/api/foods/:id", h.GetFood)
	router.PUT("/api/foods/:id", h.EditFood)
	router.DELETE("/api/foods/:id", h.DeleteFood)
	router.GET("/api/foods/:id/recipes", h.GetRecipesUsingFood)
	router.GET("/api/recipes", h.GetRecipes)
	router.POST("/api/recipes", h.AddRecipe)
	router.GET("/api/recipes/:id", h.GetRecipe)
	router.PUT("/api/recipes/:id", h.EditRecipe)
	router.DELETE("/api/recipes/:id", h.DeleteRecipe)
	router.GET("/api/recipes/:id/image", h.GetRecipeImage)
	router.POST("/api/recipes/:id/image", h.SetRecipeImage)
	router.DELETE("/api/recipes/:id/image", h.DeleteRecipeImage)
	router.GET("/api/recipes/:id/card", h.GetRecipeCard)
	return &testServer{h: h, router: router, events: events}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestFoodLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/foods", `{"name":"Oats","measurement":{"unit":"gram","value":100},"nutrition":{"calories":380}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created dto.Food
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotNil(t, created.ID)
	assert.Equal(t, *created.ID, rec.Header().Get("Location"))
	assert.Equal(t, 380.0, *created.Nutrition.Calories)
	id := *created.ID

	rec = s.do(t, http.MethodGet, "/api/foods", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []dto.Food
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 1)
	assert.True(t, all[0].Equal(&created))

	rec = s.do(t, http.MethodPut, "/api/foods/"+id, `{"id":"`+uuid.NewString()+`","name":"Rolled Oats","measurement":{"unit":"gram","value":40}}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/foods/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got dto.Food
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Rolled Oats", *got.Name)
	assert.Equal(t, id, *got.ID)
	assert.Nil(t, got.Nutrition)

	// posting an existing id edits in place
	rec = s.do(t, http.MethodPost, "/api/foods", `{"id":"`+id+`","name":"Oats"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))

	rec = s.do(t, http.MethodDelete, "/api/foods/"+id, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/foods/"+id, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgNotFound, errorMessage(t, rec))

	assert.Equal(t, []string{mq.FoodCreated, mq.FoodUpdated, mq.FoodUpdated, mq.FoodDeleted}, s.events.types())
}

func TestListSearchFilter(t *testing.T) {
	s := newTestServer(t)
	for _, name := range []string{"Rolled Oats", "Oat Milk", "Butter"} {
		rec := s.do(t, http.MethodPost, "/api/foods", `{"name":"`+name+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/foods?search=OAT", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var found []dto.Food
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	assert.Len(t, found, 2)

	rec = s.do(t, http.MethodGet, "/api/recipes?search=anything", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestBadAndUnknownIDs(t *testing.T) {
	s := newTestServer(t)
	unknown := uuid.NewString()

	for _, tc := range []struct {
		method, path, body string
		code               int
		msg                string
	}{
		{http.MethodGet, "/api/foods/not-a-guid", "", http.StatusBadRequest, MsgBadID},
		{http.MethodPut, "/api/foods/not-a-guid", `{"name":"x"}`, http.StatusBadRequest, MsgBadID},
		{http.MethodDelete, "/api/recipes/not-a-guid", "", http.StatusBadRequest, MsgBadID},
		{http.MethodGet, "/api/recipes/" + unknown, "", http.StatusNotFound, MsgNotFound},
		{http.MethodPut, "/api/foods/" + unknown, `{"name":"x"}`, http.StatusNotFound, MsgNotFound},
		{http.MethodDelete, "/api/foods/" + unknown, "", http.StatusNotFound, MsgNotFound},
		{http.MethodGet, "/api/foods/" + unknown + "/recipes", "", http.StatusNotFound, MsgNotFound},
		{http.MethodGet, "/api/recipes/" + unknown + "/image", "", http.StatusNotFound, MsgRecipeNotFound},
		{http.MethodGet, "/api/recipes/" + unknown + "/card", "", http.StatusNotFound, MsgRecipeNotFound},
		{http.MethodPost, "/api/foods", `{"name":`, http.StatusBadRequest, MsgBadBody},
	} {
		rec := s.do(t, tc.method, tc.path, tc.body)
		assert.Equal(t, tc.code, rec.Code, tc.method+" "+tc.path)
		assert.Equal(t, tc.msg, errorMessage(t, rec), tc.method+" "+tc.path)
	}
	assert.Empty(t, s.events.types())
}

func TestFoodValidationMessages(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/foods", `{"name":"Oats","measurement":{"unit":"gram","value":0}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, dto.MsgNonPositiveValue, errorMessage(t, rec))

	rec = s.do(t, http.MethodPost, "/api/foods", `{"name":"Oats","measurement":{"unit":"handful","value":-1}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	msg := errorMessage(t, rec)
	assert.True(t, strings.HasPrefix(msg, "The provided configuration was not valid:"))
	assert.Contains(t, msg, "\n  1. "+dto.MsgInvalidUnit)
	assert.Contains(t, msg, "\n  2. "+dto.MsgNonPositiveValue)
}

func porridge(foodID string) string {
	return `{
		"name": "Porridge",
		"instructions": ["Boil water", "Stir in oats"],
		"servings": 2,
		"preparationTime": 5,
		"cookingTime": 10,
		"ingredients": [{
			"food": {
				"id": "` + foodID + `",
				"name": "Oats",
				"measurement": {"unit": "gram", "value": 100},
				"nutrition": {"calories": 380, "protein": 13}
			},
			"quantity": {"unit": "gram", "value": 50}
		}]
	}`
}

func createRecipe(t *testing.T, s *testServer, foodID string) dto.Recipe {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/recipes", porridge(foodID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out dto.Recipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRecipeLifecycle(t *testing.T) {
	s := newTestServer(t)
	foodID := uuid.NewString()

	created := createRecipe(t, s, foodID)
	assert.Equal(t, uint(15), *created.TotalTime)
	assert.Equal(t, 190.0, *created.TotalNutrition.Calories)
	assert.Equal(t, 95.0, *created.NutritionPerServing.Calories)
	assert.Equal(t, 6.5, *created.TotalNutrition.Protein)
	assert.Nil(t, created.TotalNutrition.Sugar)
	require.Len(t, created.Ingredients, 1)
	assert.Equal(t, 190.0, *created.Ingredients[0].Nutrition.Calories)

	// the ingredient's food is stored with the recipe
	rec := s.do(t, http.MethodGet, "/api/foods/"+foodID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/foods/"+foodID+"/recipes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var using []dto.Recipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &using))
	require.Len(t, using, 1)
	assert.True(t, using[0].Equal(&created))
	assert.Equal(t, created.Hash(), using[0].Hash())

	rec = s.do(t, http.MethodDelete, "/api/foods/"+foodID, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgInUse, errorMessage(t, rec))

	// editing replaces the recipe; the food is updated to the ingredient's state
	edited := strings.Replace(porridge(foodID), `"calories": 380`, `"calories": 400`, 1)
	rec = s.do(t, http.MethodPut, "/api/recipes/"+*created.ID, edited)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/recipes/"+*created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got dto.Recipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 200.0, *got.TotalNutrition.Calories)
	assert.False(t, got.Equal(&created))

	rec = s.do(t, http.MethodDelete, "/api/recipes/"+*created.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/foods/"+foodID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, []string{mq.RecipeCreated, mq.RecipeUpdated, mq.RecipeDeleted, mq.FoodDeleted}, s.events.types())
}

func TestFoodDimensionChangesAreRefused(t *testing.T) {
	s := newTestServer(t)
	foodID := uuid.NewString()
	created := createRecipe(t, s, foodID)

	cupFood := `{"name":"Oats","measurement":{"unit":"cup","value":1},"nutrition":{"calories":300}}`
	rec := s.do(t, http.MethodPut, "/api/foods/"+foodID, cupFood)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(errorMessage(t, rec), "(Oats): "), errorMessage(t, rec))

	rec = s.do(t, http.MethodPost, "/api/foods", `{"id":"`+foodID+`","name":"Oats","measurement":{"unit":"cup","value":1}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// another recipe may not upsert the food into a different dimension
	inCups := strings.Replace(porridge(foodID), `"measurement": {"unit": "gram", "value": 100}`, `"measurement": {"unit": "cup", "value": 1}`, 1)
	inCups = strings.Replace(inCups, `"quantity": {"unit": "gram", "value": 50}`, `"quantity": {"unit": "cup", "value": 0.5}`, 1)
	rec = s.do(t, http.MethodPost, "/api/recipes", inCups)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "(Oats): ")

	// the recipe that owns the only use may switch dimension itself
	rec = s.do(t, http.MethodPut, "/api/recipes/"+*created.ID, inCups)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// a compatible change goes through
	rec = s.do(t, http.MethodPut, "/api/foods/"+foodID, cupFood)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/recipes/"+*created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got dto.Recipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Ingredients[0].Nutrition)
	assert.Equal(t, 150.0, *got.TotalNutrition.Calories)
}

func TestRecipeRejectsConflictingFoodStates(t *testing.T) {
	s := newTestServer(t)
	foodID := uuid.NewString()
	body := `{
		"name": "Oat Bake",
		"instructions": ["Mix"],
		"ingredients": [
			{"food": {"id": "` + foodID + `", "name": "Oats", "measurement": {"unit": "gram", "value": 100}}, "quantity": {"unit": "gram", "value": 50}},
			{"food": {"id": "` + foodID + `", "name": "Oats", "measurement": {"unit": "cup", "value": 1}}, "quantity": {"unit": "cup", "value": 1}}
		]
	}`
	rec := s.do(t, http.MethodPost, "/api/recipes", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "(Oats): ")

	rec = s.do(t, http.MethodGet, "/api/foods/"+foodID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecipeValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/recipes", `{"name":"Nothing","servings":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	msg := errorMessage(t, rec)
	assert.Contains(t, msg, dto.MsgNoInstructions)
	assert.Contains(t, msg, dto.MsgNoIngredients)
	assert.Contains(t, msg, dto.MsgNoServings)

	// a quantity that cannot be related to the food's measurement
	mismatch := strings.Replace(porridge(uuid.NewString()), `"quantity": {"unit": "gram"`, `"quantity": {"unit": "cup"`, 1)
	rec = s.do(t, http.MethodPost, "/api/recipes", mismatch)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(errorMessage(t, rec), "(Oats): "))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (s *testServer) upload(t *testing.T, path string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "photo.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestRecipeImage(t *testing.T) {
	s := newTestServer(t)
	s.h.MaxImageDim = 16
	recipe := createRecipe(t, s, uuid.NewString())
	path := "/api/recipes/" + *recipe.ID + "/image"

	rec := s.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgNoImage, errorMessage(t, rec))

	rec = s.upload(t, path, []byte("definitely not a picture"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgBadImage, errorMessage(t, rec))

	rec = s.upload(t, path, pngBytes(t, 40, 20))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	cfg, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Width)
	assert.Equal(t, 8, cfg.Height)

	rec = s.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPrepareImageKeepsSmallImages(t *testing.T) {
	data := pngBytes(t, 10, 10)
	img, err := prepareImage(data, 2048)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, data, img.Data)
}

func TestRecipeCard(t *testing.T) {
	s := newTestServer(t)
	recipe := createRecipe(t, s, uuid.NewString())

	rec := s.do(t, http.MethodGet, "/api/recipes/"+*recipe.ID+"/card", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	assert.Equal(t, "https://pantree.example/api/v1/recipes/"+*recipe.ID, s.h.RecipeLink(*recipe.ID))
	assert.Equal(t, "Serves 2  |  Prep 5 min  |  Cook 10 min  |  Total 15 min", summaryLine(&recipe))
}
