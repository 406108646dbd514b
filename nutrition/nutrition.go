package nutrition

import (
	"fmt"
	"math"

	"pantree/measure"
)

// Nutrition holds optional nutrient amounts for some base measurement of a
// food. A nil field means the amount is unknown, not zero.
type Nutrition struct {
	Calories      *float64 `json:"calories" bson:"calories,omitempty"`
	TotalFat      *float64 `json:"totalFat" bson:"totalFat,omitempty"`
	SaturatedFat  *float64 `json:"saturatedFat" bson:"saturatedFat,omitempty"`
	TransFat      *float64 `json:"transFat" bson:"transFat,omitempty"`
	Cholesterol   *float64 `json:"cholesterol" bson:"cholesterol,omitempty"`
	Sodium        *float64 `json:"sodium" bson:"sodium,omitempty"`
	Carbohydrates *float64 `json:"carbohydrates" bson:"carbohydrates,omitempty"`
	Fiber         *float64 `json:"fiber" bson:"fiber,omitempty"`
	Sugar         *float64 `json:"sugar" bson:"sugar,omitempty"`
	Protein       *float64 `json:"protein" bson:"protein,omitempty"`
}

// InvalidMeasurementError is returned when a base measurement cannot be used
// as a divisor.
type InvalidMeasurementError struct {
	Measurement measure.Measurement
}

func (e *InvalidMeasurementError) Error() string {
	return fmt.Sprintf("invalid base measurement %s: value must be greater than 0", e.Measurement)
}

// Float returns a pointer to v. Handy for literals.
func Float(v float64) *float64 { return &v }

func (n *Nutrition) fields() [10]**float64 {
	return [10]**float64{
		&n.Calories, &n.TotalFat, &n.SaturatedFat, &n.TransFat, &n.Cholesterol,
		&n.Sodium, &n.Carbohydrates, &n.Fiber, &n.Sugar, &n.Protein,
	}
}

// Values returns the ten fields in declaration order.
func (n *Nutrition) Values() [10]*float64 {
	var out [10]*float64
	if n == nil {
		return out
	}
	for i, f := range n.fields() {
		out[i] = *f
	}
	return out
}

// Clone deep-copies n.
func (n *Nutrition) Clone() *Nutrition {
	return n.mapDefined(func(v float64) float64 { return v })
}

func (n *Nutrition) mapDefined(fn func(float64) float64) *Nutrition {
	if n == nil {
		return nil
	}
	out := &Nutrition{}
	src := n.Values()
	for i, dst := range out.fields() {
		if src[i] != nil {
			*dst = Float(fn(*src[i]))
		}
	}
	return out
}

// Equal compares field by field; nil equals only nil.
func (n *Nutrition) Equal(other *Nutrition) bool {
	if n == nil || other == nil {
		return n == other
	}
	a, b := n.Values(), other.Values()
	for i := range a {
		if (a[i] == nil) != (b[i] == nil) {
			return false
		}
		if a[i] != nil && *a[i] != *b[i] {
			return false
		}
	}
	return true
}

// Scale converts requested into base.Unit and multiplies every defined
// nutrient by requested/base.
func Scale(n *Nutrition, base, requested measure.Measurement) (*Nutrition, error) {
	if base.Value <= 0 {
		return nil, &InvalidMeasurementError{Measurement: base}
	}
	converted, err := measure.Convert(requested, base.Unit)
	if err != nil {
		return nil, err
	}
	ratio := converted.Value / base.Value
	return n.mapDefined(func(v float64) float64 { return v * ratio }), nil
}

// Sum adds records field by field. A field stays nil only when it is nil in
// every record; otherwise missing values count as zero.
func Sum(list ...*Nutrition) *Nutrition {
	out := &Nutrition{}
	dst := out.fields()
	for _, n := range list {
		for i, v := range n.Values() {
			if v == nil {
				continue
			}
			if *dst[i] == nil {
				*dst[i] = Float(0)
			}
			**dst[i] += *v
		}
	}
	return out
}

// PerServing divides every defined nutrient by servings. Callers guarantee
// servings > 0.
func PerServing(total *Nutrition, servings uint) *Nutrition {
	return total.mapDefined(func(v float64) float64 { return v / float64(servings) })
}

// Round rounds every defined nutrient to the nearest integer.
func Round(n *Nutrition) *Nutrition {
	return n.mapDefined(math.Round)
}
