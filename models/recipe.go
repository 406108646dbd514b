package models

import (
	"time"

	"github.com/google/uuid"

	"pantree/measure"
	"pantree/nutrition"
)

const (
	DefaultRecipeName     = "New Recipe"
	DefaultRecipeServings = 1
)

// Ingredient is a quantity of a food used by exactly one recipe.
type Ingredient struct {
	ID       uuid.UUID
	Food     *Food
	Quantity measure.Measurement
}

// NewIngredient references food with the given quantity.
func NewIngredient(food *Food, quantity measure.Measurement) *Ingredient {
	return &Ingredient{ID: uuid.New(), Food: food, Quantity: quantity}
}

// Nutrition is the food's nutrition scaled to the ingredient quantity.
func (i *Ingredient) Nutrition() (*nutrition.Nutrition, error) {
	if i.Food == nil {
		return nil, nil
	}
	return nutrition.Scale(i.Food.Nutrition, i.Food.BaseMeasurement(), i.Quantity)
}

type Recipe struct {
	ID           uuid.UUID
	Name         string
	Description  *string
	Instructions []string
	Ingredients  []*Ingredient
	Servings     uint

	PreparationTime *time.Duration
	CookingTime     *time.Duration

	// image bytes are loaded on demand through the image store
	ImageContentType *string
}

func NewRecipe(name string) *Recipe {
	if name == "" {
		name = DefaultRecipeName
	}
	return &Recipe{
		ID:           uuid.New(),
		Name:         name,
		Instructions: []string{},
		Ingredients:  []*Ingredient{},
		Servings:     DefaultRecipeServings,
	}
}

// TotalTime is the sum of the known phase durations, or nil when neither is
// known.
func (r *Recipe) TotalTime() *time.Duration {
	switch {
	case r.PreparationTime == nil && r.CookingTime == nil:
		return nil
	case r.PreparationTime == nil:
		d := *r.CookingTime
		return &d
	case r.CookingTime == nil:
		d := *r.PreparationTime
		return &d
	}
	d := *r.PreparationTime + *r.CookingTime
	return &d
}

// TotalNutrition sums the nutrition of every ingredient.
func (r *Recipe) TotalNutrition() (*nutrition.Nutrition, error) {
	parts := make([]*nutrition.Nutrition, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		n, err := ing.Nutrition()
		if err != nil {
			return nil, err
		}
		parts = append(parts, n)
	}
	return nutrition.Sum(parts...), nil
}

// NutritionPerServing divides TotalNutrition by the serving count.
func (r *Recipe) NutritionPerServing() (*nutrition.Nutrition, error) {
	total, err := r.TotalNutrition()
	if err != nil {
		return nil, err
	}
	servings := r.Servings
	if servings == 0 {
		servings = DefaultRecipeServings
	}
	return nutrition.PerServing(total, servings), nil
}

// Foods returns the distinct foods the recipe's ingredients reference.
func (r *Recipe) Foods() []*Food {
	seen := make(map[uuid.UUID]bool, len(r.Ingredients))
	out := make([]*Food, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		if ing.Food == nil || seen[ing.Food.ID] {
			continue
		}
		seen[ing.Food.ID] = true
		out = append(out, ing.Food)
	}
	return out
}

// Uses reports whether any ingredient references the food.
func (r *Recipe) Uses(foodID uuid.UUID) bool {
	for _, ing := range r.Ingredients {
		if ing.Food != nil && ing.Food.ID == foodID {
			return true
		}
	}
	return false
}
