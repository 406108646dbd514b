package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"pantree/measure"
	"pantree/models"
	"pantree/nutrition"
)

// FoodRecord is a stored food. Both the mongo and the postgres backends use
// it.
type FoodRecord struct {
	ID        string               `bson:"_id" gorm:"primaryKey;type:uuid"`
	Name      string               `bson:"name" gorm:"not null"`
	Nutrition *nutrition.Nutrition `bson:"nutrition,omitempty" gorm:"serializer:json"`
	Unit      *string              `bson:"unit,omitempty"`
	Value     *float64             `bson:"value,omitempty"`
}

func (FoodRecord) TableName() string { return "foods" }

// IngredientRecord is embedded in the recipe document for mongo and is its
// own table for postgres.
type IngredientRecord struct {
	ID       string     `bson:"id" gorm:"primaryKey;type:uuid"`
	RecipeID string     `bson:"-" gorm:"type:uuid;index;not null"`
	FoodID   string     `bson:"foodId" gorm:"type:uuid;index;not null"`
	Food     FoodRecord `bson:"-" gorm:"foreignKey:FoodID;references:ID;constraint:OnDelete:RESTRICT"`
	Unit     string     `bson:"unit" gorm:"not null"`
	Value    float64    `bson:"value"`
}

func (IngredientRecord) TableName() string { return "ingredients" }

type RecipeRecord struct {
	ID              string             `bson:"_id" gorm:"primaryKey;type:uuid"`
	Name            string             `bson:"name" gorm:"not null"`
	Description     *string            `bson:"description,omitempty"`
	Instructions    []string           `bson:"instructions" gorm:"serializer:json"`
	Ingredients     []IngredientRecord `bson:"ingredients" gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
	Servings        uint               `bson:"servings"`
	PreparationTime *time.Duration     `bson:"preparationTime,omitempty"`
	CookingTime     *time.Duration     `bson:"cookingTime,omitempty"`
}

func (RecipeRecord) TableName() string { return "recipes" }

// ImageRecord holds the picture of one recipe.
type ImageRecord struct {
	RecipeID    string       `bson:"_id" gorm:"primaryKey;type:uuid"`
	Recipe      RecipeRecord `bson:"-" gorm:"foreignKey:RecipeID;references:ID;constraint:OnDelete:CASCADE"`
	ContentType string       `bson:"contentType"`
	Data        []byte       `bson:"data"`
}

func (ImageRecord) TableName() string { return "recipe_images" }

func foodToRecord(f *models.Food) FoodRecord {
	rec := FoodRecord{ID: f.ID.String(), Name: f.Name, Nutrition: f.Nutrition.Clone()}
	if f.Measurement != nil {
		unit := f.Measurement.Unit.String()
		value := f.Measurement.Value
		rec.Unit, rec.Value = &unit, &value
	}
	return rec
}

func foodFromRecord(rec FoodRecord) (*models.Food, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("food %q: %w", rec.ID, err)
	}
	f := &models.Food{ID: id, Name: rec.Name, Nutrition: rec.Nutrition.Clone()}
	if rec.Unit != nil && rec.Value != nil {
		unit, err := measure.ParseUnit(*rec.Unit)
		if err != nil {
			return nil, fmt.Errorf("food %q: %w", rec.ID, err)
		}
		m := measure.New(*rec.Value, unit)
		f.Measurement = &m
	}
	return f, nil
}

// recipeToRecord splits a recipe into its row and the foods it references.
func recipeToRecord(r *models.Recipe) (RecipeRecord, []FoodRecord) {
	rec := RecipeRecord{
		ID:              r.ID.String(),
		Name:            r.Name,
		Description:     clonePtr(r.Description),
		Instructions:    append([]string{}, r.Instructions...),
		Ingredients:     make([]IngredientRecord, 0, len(r.Ingredients)),
		Servings:        r.Servings,
		PreparationTime: clonePtr(r.PreparationTime),
		CookingTime:     clonePtr(r.CookingTime),
	}
	var foods []FoodRecord
	for _, f := range r.Foods() {
		foods = append(foods, foodToRecord(f))
	}
	for _, ing := range r.Ingredients {
		rec.Ingredients = append(rec.Ingredients, IngredientRecord{
			ID:       ing.ID.String(),
			RecipeID: rec.ID,
			FoodID:   ing.Food.ID.String(),
			Unit:     ing.Quantity.Unit.String(),
			Value:    ing.Quantity.Value,
		})
	}
	return rec, foods
}

// recipeFromRecord resolves ingredient foods through foods, keyed by id.
func recipeFromRecord(rec RecipeRecord, foods map[string]*models.Food) (*models.Recipe, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("recipe %q: %w", rec.ID, err)
	}
	r := &models.Recipe{
		ID:              id,
		Name:            rec.Name,
		Description:     clonePtr(rec.Description),
		Instructions:    append([]string{}, rec.Instructions...),
		Ingredients:     make([]*models.Ingredient, 0, len(rec.Ingredients)),
		Servings:        rec.Servings,
		PreparationTime: clonePtr(rec.PreparationTime),
		CookingTime:     clonePtr(rec.CookingTime),
	}
	for _, ir := range rec.Ingredients {
		ingID, err := uuid.Parse(ir.ID)
		if err != nil {
			return nil, fmt.Errorf("ingredient %q: %w", ir.ID, err)
		}
		food, ok := foods[ir.FoodID]
		if !ok {
			return nil, fmt.Errorf("ingredient %q: food %q: %w", ir.ID, ir.FoodID, ErrNotFound)
		}
		unit, err := measure.ParseUnit(ir.Unit)
		if err != nil {
			return nil, fmt.Errorf("ingredient %q: %w", ir.ID, err)
		}
		r.Ingredients = append(r.Ingredients, &models.Ingredient{
			ID:       ingID,
			Food:     food,
			Quantity: measure.New(ir.Value, unit),
		})
	}
	return r, nil
}

// foodIDs lists the distinct food ids referenced by recs.
func foodIDs(recs ...RecipeRecord) []string {
	seen := map[string]bool{}
	var out []string
	for _, rec := range recs {
		for _, ing := range rec.Ingredients {
			if !seen[ing.FoodID] {
				seen[ing.FoodID] = true
				out = append(out, ing.FoodID)
			}
		}
	}
	return out
}

func foodIndex(recs []FoodRecord) (map[string]*models.Food, error) {
	out := make(map[string]*models.Food, len(recs))
	for _, rec := range recs {
		f, err := foodFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out[rec.ID] = f
	}
	return out, nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
