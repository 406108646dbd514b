package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantree/dto"
	"pantree/measure"
	"pantree/models"
)

const fdcResponse = `{
  "foods": [
    {
      "fdcId": 1,
      "description": "ARTESANO THE ORIGINAL BAKERY BREAD",
      "brandName": "SARA LEE",
      "servingSize": 38,
      "servingSizeUnit": "g",
      "foodNutrients": [
        {"nutrientName": "Energy", "unitName": "KCAL", "value": 263},
        {"nutrientName": "Protein", "unitName": "G", "value": 7.89},
        {"nutrientName": "Total lipid (fat)", "unitName": "G", "value": 3.95},
        {"nutrientName": "Sodium, Na", "unitName": "MG", "value": 447},
        {"nutrientName": "Vitamin C", "unitName": "MG", "value": 0},
        {"nutrientName": "Fiber, total dietary", "unitName": "G"}
      ]
    },
    {
      "fdcId": 2,
      "description": "MYSTERY LOAF",
      "foodNutrients": [{"nutrientName": "Energy", "value": 100}]
    },
    {
      "fdcId": 3,
      "description": "ORANGE JUICE",
      "servingSize": 240,
      "servingSizeUnit": "MLT",
      "foodNutrients": [{"nutrientName": "Energy", "value": 50}]
    }
  ]
}`

func newFDCServer(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("api_key"))
		assert.Equal(t, "true", q.Get("requireAllWords"))
		if q.Get("query") == "broken" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fdcResponse))
	}))
}

func TestNewFoodDataCentralRequiresKey(t *testing.T) {
	_, err := NewFoodDataCentral("", "http://example.invalid", nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestQueryURLClamps(t *testing.T) {
	p, err := NewFoodDataCentral("k", "https://fdc.example/search", nil)
	require.NoError(t, err)

	assert.Contains(t, p.queryURL("rye bread", 500, 0), "pageSize=200")
	assert.Contains(t, p.queryURL("rye bread", 500, 0), "pageNumber=1")
	assert.Contains(t, p.queryURL("rye bread", 0, 3), "pageSize=1")
	assert.Contains(t, p.queryURL("rye bread", 25, 3), "query=rye+bread")
}

func TestFoodDataCentralSearch(t *testing.T) {
	hits := 0
	srv := newFDCServer(t, &hits)
	defer srv.Close()

	p, err := NewFoodDataCentral("secret", srv.URL, srv.Client())
	require.NoError(t, err)

	foods, err := p.Search(context.Background(), "artesano bread", 25, 1)
	require.NoError(t, err)
	require.Len(t, foods, 2)

	bread := foods[0]
	assert.Equal(t, "ARTESANO THE ORIGINAL BAKERY BREAD (SARA LEE)", bread.Name)
	assert.Equal(t, measure.New(38, measure.Gram), *bread.Measurement)
	require.NotNil(t, bread.Nutrition.Calories)
	assert.Equal(t, 100.0, *bread.Nutrition.Calories)
	assert.Equal(t, 3.0, *bread.Nutrition.Protein)
	assert.Equal(t, 2.0, *bread.Nutrition.TotalFat)
	assert.Equal(t, 170.0, *bread.Nutrition.Sodium)
	assert.Nil(t, bread.Nutrition.Fiber)
	assert.Nil(t, bread.Nutrition.Sugar)

	juice := foods[1]
	assert.Equal(t, "ORANGE JUICE", juice.Name)
	assert.Equal(t, measure.Milliliter, juice.Measurement.Unit)
	assert.Equal(t, 120.0, *juice.Nutrition.Calories)

	_, err = p.Search(context.Background(), "broken", 25, 1)
	assert.Error(t, err)
}

func TestConvertFoodsSkipsUnusableServings(t *testing.T) {
	zero, grams := 0.0, 30.0
	name := func(s string) *string { return &s }
	foods := convertFoods([]fdcFood{
		{FdcID: 1, Description: name("No serving")},
		{FdcID: 2, Description: name("Zero serving"), ServingSize: &zero, ServingSizeUnit: name("g")},
		{FdcID: 3, Description: name("Crackers"), ServingSize: &grams, ServingSizeUnit: name("g")},
	})
	require.Len(t, foods, 1)
	assert.Equal(t, "Crackers", foods[0].Name)
	assert.Equal(t, measure.New(30, measure.Gram), *foods[0].Measurement)
}

func TestServingUnit(t *testing.T) {
	assert.Equal(t, measure.Gram, servingUnit("GRM"))
	assert.Equal(t, measure.Gram, servingUnit("g"))
	assert.Equal(t, measure.Milliliter, servingUnit("ml"))
	assert.Equal(t, measure.UnitCount, servingUnit("piece"))
	assert.Equal(t, measure.UnitCount, servingUnit(""))
}

type fakeCache struct {
	data   map[string][]byte
	getErr error
}

func (f *fakeCache) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func TestCachedSearch(t *testing.T) {
	hits := 0
	srv := newFDCServer(t, &hits)
	defer srv.Close()

	p, err := NewFoodDataCentral("secret", srv.URL, srv.Client())
	require.NoError(t, err)
	cache := &fakeCache{data: map[string][]byte{}}
	c := &Cached{Provider: p, Cache: cache, TTL: time.Hour}

	first, err := c.Search(context.Background(), "bread", 25, 1)
	require.NoError(t, err)
	second, err := c.Search(context.Background(), "bread", 25, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, hits)
	require.Len(t, second, len(first))
	assert.Equal(t, first[0].Name, second[0].Name)
	assert.Equal(t, *first[0].Nutrition.Calories, *second[0].Nutrition.Calories)
	assert.NotEqual(t, first[0].ID, second[0].ID)

	// a failing cache falls through to the provider
	cache.getErr = errors.New("connection refused")
	_, err = c.Search(context.Background(), "bread", 25, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, hits)
}

type stubProvider struct {
	foods []models.Food
	err   error
	got   uint
}

func (s *stubProvider) Search(ctx context.Context, query string, numResults, page uint) ([]models.Food, error) {
	s.got = numResults
	return s.foods, s.err
}

func serve(h httprouter.Handle, query string) *httptest.ResponseRecorder {
	router := httprouter.New()
	router.GET("/api/search/foods/:query", h)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search/foods/"+query, nil))
	return rec
}

func TestSearchFoodsHandler(t *testing.T) {
	food := models.NewFood("Oats")
	m := measure.New(40, measure.Gram)
	food.Measurement = &m
	stub := &stubProvider{foods: []models.Food{*food}}

	rec := serve(SearchFoods(stub), "oats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint(MaxFoodResults), stub.got)

	var got []dto.Food
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Oats", *got[0].Name)
	assert.Equal(t, food.ID.String(), *got[0].ID)
	assert.Equal(t, "gram", got[0].Measurement.Unit)
}

func TestSearchFoodsHandlerErrors(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, serve(SearchFoods(nil), "oats").Code)
	assert.Equal(t, http.StatusBadGateway, serve(SearchFoods(&stubProvider{err: errors.New("boom")}), "oats").Code)

	rec := serve(SearchFoods(&stubProvider{}), "nothing")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
