package measure

import "fmt"

// Measurement is an immutable quantity of some unit.
type Measurement struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// New builds a Measurement.
func New(value float64, unit Unit) Measurement {
	return Measurement{Value: value, Unit: unit}
}

// Default is the measurement assumed for foods that do not declare one.
func Default() Measurement {
	return Measurement{Value: 1, Unit: UnitCount}
}

func (m Measurement) String() string {
	return fmt.Sprintf("%g %s", m.Value, m.Unit)
}

// Convert expresses m in the target unit: value * factor(from) / factor(to).
// No rounding is applied.
func Convert(m Measurement, target Unit) (Measurement, error) {
	if !m.Unit.valid() {
		return Measurement{}, &UnknownUnitError{Name: m.Unit.String()}
	}
	if !target.valid() {
		return Measurement{}, &UnknownUnitError{Name: target.String()}
	}
	if m.Unit.Dimension() != target.Dimension() {
		return Measurement{}, &IncompatibleDimensionError{From: m.Unit, To: target}
	}
	if m.Unit == target {
		return m, nil
	}
	return Measurement{Value: m.Value * m.Unit.Factor() / target.Factor(), Unit: target}, nil
}

// To is shorthand for Convert(m, target).
func (m Measurement) To(target Unit) (Measurement, error) {
	return Convert(m, target)
}

// ToBase converts m into the base unit of its dimension. It cannot fail for a
// known unit.
func ToBase(m Measurement) Measurement {
	base, err := Convert(m, m.Unit.Dimension().Base())
	if err != nil {
		return m
	}
	return base
}
