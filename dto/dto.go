// Package dto holds the API payload shapes for foods and recipes together
// with their validation, equality and hashing rules.
package dto

import (
	"encoding/json"

	"pantree/measure"
	"pantree/nutrition"
)

const (
	DefaultUnit  = "unit"
	DefaultValue = 1.0
)

// FoodMeasurement is a measurement as clients send it: a free-form unit name
// that still needs validating.
type FoodMeasurement struct {
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

// NewFoodMeasurement returns the default measurement, one unit.
func NewFoodMeasurement() FoodMeasurement {
	return FoodMeasurement{Unit: DefaultUnit, Value: DefaultValue}
}

// UnmarshalJSON fills omitted fields with the defaults.
func (m *FoodMeasurement) UnmarshalJSON(data []byte) error {
	type plain FoodMeasurement
	out := plain(NewFoodMeasurement())
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*m = FoodMeasurement(out)
	return nil
}

// Measurement parses the unit. Call after Validate.
func (m FoodMeasurement) Measurement() (measure.Measurement, error) {
	unit, err := measure.ParseUnit(m.Unit)
	if err != nil {
		return measure.Measurement{}, err
	}
	return measure.New(m.Value, unit), nil
}

type Food struct {
	ID          *string              `json:"id"`
	Name        *string              `json:"name"`
	Nutrition   *nutrition.Nutrition `json:"nutrition"`
	Measurement *FoodMeasurement     `json:"measurement"`
}

type Ingredient struct {
	ID        *string              `json:"id"`
	Food      Food                 `json:"food"`
	Quantity  FoodMeasurement      `json:"quantity"`
	Nutrition *nutrition.Nutrition `json:"nutrition"`
}

func (i *Ingredient) UnmarshalJSON(data []byte) error {
	type plain Ingredient
	out := plain{Quantity: NewFoodMeasurement()}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*i = Ingredient(out)
	return nil
}

// Recipe times are whole minutes.
type Recipe struct {
	ID                  *string              `json:"id"`
	Name                *string              `json:"name"`
	Description         *string              `json:"description"`
	Instructions        []string             `json:"instructions"`
	Ingredients         []Ingredient         `json:"ingredients"`
	Servings            *uint                `json:"servings"`
	PreparationTime     *uint                `json:"preparationTime"`
	CookingTime         *uint                `json:"cookingTime"`
	TotalTime           *uint                `json:"totalTime"`
	TotalNutrition      *nutrition.Nutrition `json:"totalNutrition"`
	NutritionPerServing *nutrition.Nutrition `json:"nutritionPerServing"`
}

// Identifiable is implemented by every top-level payload.
type Identifiable interface {
	Validator
	GetID() *string
	SetID(id string)
}

func (f *Food) GetID() *string { return f.ID }
func (f *Food) SetID(id string) { f.ID = &id }
func (r *Recipe) GetID() *string { return r.ID }
func (r *Recipe) SetID(id string) { r.ID = &id }

// String returns a pointer to s.
func String(s string) *string { return &s }

// Uint returns a pointer to v.
func Uint(v uint) *uint { return &v }
