package models

import (
	"github.com/google/uuid"

	"pantree/measure"
	"pantree/nutrition"
)

// Food is a named item with optional nutrition for a base measurement.
type Food struct {
	ID          uuid.UUID
	Name        string
	Nutrition   *nutrition.Nutrition
	Measurement *measure.Measurement
}

func NewFood(name string) *Food {
	return &Food{ID: uuid.New(), Name: name}
}

// BaseMeasurement is the measurement the nutrition refers to, falling back to
// one unit.
func (f *Food) BaseMeasurement() measure.Measurement {
	if f.Measurement == nil {
		return measure.Default()
	}
	return *f.Measurement
}
