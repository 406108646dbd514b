package dto

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"pantree/measure"
)

const (
	MsgInvalidID         = "The ID provided is not a valid GUID."
	MsgNonPositiveValue  = "The measurement's value must be strictly greater than 0."
	MsgNoInstructions    = "There must be at least one instruction for creating the recipe."
	MsgNoIngredients     = "There must be at least one ingredient for the recipe."
	MsgNoServings        = "The recipe must make at least 1 serving."
	invalidUnitMsgPrefix = "The provided unit was not one of: "
)

// MsgInvalidUnit lists the accepted unit names.
var MsgInvalidUnit = invalidUnitMsgPrefix + strings.Join(measure.UnitNames(), ", ")

// Validator reports every defect of a payload in one pass.
type Validator interface {
	Validate() (bool, []string)
}

// ValidationError carries the messages of a failed validation.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Messages, "; "))
}

// Check runs v.Validate and wraps failures in a *ValidationError.
func Check(v Validator) error {
	if ok, msgs := v.Validate(); !ok {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

func validID(id *string) bool {
	if id == nil {
		return true
	}
	_, err := uuid.Parse(*id)
	return err == nil
}

func (m FoodMeasurement) Validate() (bool, []string) {
	var msgs []string
	if _, err := measure.ParseUnit(m.Unit); err != nil {
		msgs = append(msgs, MsgInvalidUnit)
	}
	if m.Value <= 0 {
		msgs = append(msgs, MsgNonPositiveValue)
	}
	return len(msgs) == 0, msgs
}

func (f *Food) Validate() (bool, []string) {
	var msgs []string
	if !validID(f.ID) {
		msgs = append(msgs, MsgInvalidID)
	}
	// no measurement means the default one, which is valid
	if f.Measurement != nil {
		_, m := f.Measurement.Validate()
		msgs = append(msgs, m...)
	}
	return len(msgs) == 0, msgs
}

func (i *Ingredient) Validate() (bool, []string) {
	var msgs []string
	if !validID(i.ID) {
		msgs = append(msgs, MsgInvalidID)
	}
	_, m := i.Food.Validate()
	msgs = append(msgs, m...)
	_, m = i.Quantity.Validate()
	msgs = append(msgs, m...)
	return len(msgs) == 0, msgs
}

func (r *Recipe) Validate() (bool, []string) {
	var msgs []string
	if !validID(r.ID) {
		msgs = append(msgs, MsgInvalidID)
	}
	if len(r.Instructions) == 0 {
		msgs = append(msgs, MsgNoInstructions)
	}
	if len(r.Ingredients) == 0 {
		msgs = append(msgs, MsgNoIngredients)
	}
	for i := range r.Ingredients {
		ing := &r.Ingredients[i]
		ok, m := ing.Validate()
		if ok {
			continue
		}
		name := ""
		if ing.Food.Name != nil {
			name = *ing.Food.Name
		}
		for _, msg := range m {
			msgs = append(msgs, fmt.Sprintf("(%s): %s", name, msg))
		}
	}
	if r.Servings != nil && *r.Servings == 0 {
		msgs = append(msgs, MsgNoServings)
	}
	return len(msgs) == 0, msgs
}
