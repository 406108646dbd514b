package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pantree/logger"
	"pantree/measure"
	"pantree/models"
	"pantree/nutrition"
)

const (
	maxPageSize = 200
	// FDC reports nutrients per 100 g of food.
	fdcReferenceAmount = 100
)

var ErrNoAPIKey = errors.New("an API key for FoodData Central must be specified")

type fdcSearchResult struct {
	Foods []fdcFood `json:"foods"`
}

type fdcFood struct {
	FdcID           int           `json:"fdcId"`
	Description     *string       `json:"description"`
	BrandName       *string       `json:"brandName"`
	ServingSize     *float64      `json:"servingSize"`
	ServingSizeUnit *string       `json:"servingSizeUnit"`
	FoodNutrients   []fdcNutrient `json:"foodNutrients"`
}

type fdcNutrient struct {
	NutrientName *string  `json:"nutrientName"`
	UnitName     *string  `json:"unitName"`
	Value        *float64 `json:"value"`
}

// FoodDataCentral searches the USDA FoodData Central database.
type FoodDataCentral struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewFoodDataCentral returns ErrNoAPIKey when apiKey is empty.
func NewFoodDataCentral(apiKey, baseURL string, client *http.Client) (*FoodDataCentral, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &FoodDataCentral{apiKey: apiKey, baseURL: baseURL, client: client}, nil
}

func (p *FoodDataCentral) Search(ctx context.Context, query string, numResults, page uint) ([]models.Food, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.queryURL(query, numResults, page), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create FoodData Central request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call FoodData Central: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read FoodData Central response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("FoodData Central API error %d: %s", resp.StatusCode, string(body))
	}

	var result fdcSearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse FoodData Central JSON: %w", err)
	}
	return convertFoods(result.Foods), nil
}

func (p *FoodDataCentral) queryURL(query string, numResults, page uint) string {
	numResults = min(max(numResults, 1), maxPageSize)
	page = max(page, 1)

	v := url.Values{}
	v.Set("api_key", p.apiKey)
	v.Set("query", query)
	v.Set("pageSize", strconv.FormatUint(uint64(numResults), 10))
	v.Set("pageNumber", strconv.FormatUint(uint64(page), 10))
	v.Set("requireAllWords", "true")
	return p.baseURL + "?" + v.Encode()
}

// convertFoods skips foods without a positive serving size since their
// nutrients cannot be related to a measurement.
func convertFoods(in []fdcFood) []models.Food {
	out := make([]models.Food, 0, len(in))
	for _, f := range in {
		if f.ServingSize == nil || *f.ServingSize <= 0 {
			continue
		}
		out = append(out, convertFood(f))
	}
	return out
}

func convertFood(f fdcFood) models.Food {
	name := deref(f.Description)
	if f.BrandName != nil {
		name = fmt.Sprintf("%s (%s)", name, *f.BrandName)
	}

	serving := measure.New(*f.ServingSize, servingUnit(deref(f.ServingSizeUnit)))
	coefficient := fdcReferenceAmount / measure.ToBase(serving).Value

	n := &nutrition.Nutrition{}
	for _, nut := range f.FoodNutrients {
		key := strings.ToUpper(deref(nut.NutrientName))
		field := nutrientField(n, key)
		if field == nil {
			logger.Debug("ignored nutrient information", zap.String("nutrient", key), zap.Int("fdcId", f.FdcID))
			continue
		}
		if nut.Value != nil {
			*field = nutrition.Float(math.Round(*nut.Value / coefficient))
		}
	}

	food := models.NewFood(name)
	food.Nutrition = n
	food.Measurement = &serving
	return *food
}

func servingUnit(raw string) measure.Unit {
	switch strings.ToUpper(raw) {
	case "G", "GRM":
		return measure.Gram
	case "ML", "MLT":
		return measure.Milliliter
	default:
		return measure.UnitCount
	}
}

func nutrientField(n *nutrition.Nutrition, key string) **float64 {
	switch key {
	case "ENERGY":
		return &n.Calories
	case "TOTAL LIPID (FAT)":
		return &n.TotalFat
	case "FATTY ACIDS, TOTAL SATURATED":
		return &n.SaturatedFat
	case "FATTY ACIDS, TOTAL TRANS":
		return &n.TransFat
	case "CHOLESTEROL":
		return &n.Cholesterol
	case "SODIUM, NA":
		return &n.Sodium
	case "CARBOHYDRATE, BY DIFFERENCE":
		return &n.Carbohydrates
	case "FIBER, TOTAL DIETARY":
		return &n.Fiber
	case "SUGARS, TOTAL INCLUDING NLEA":
		return &n.Sugar
	case "PROTEIN":
		return &n.Protein
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
