package measure

import "fmt"

// IncompatibleDimensionError is returned when converting between units of
// different dimensions, e.g. grams to cups.
type IncompatibleDimensionError struct {
	From Unit
	To   Unit
}

func (e *IncompatibleDimensionError) Error() string {
	return fmt.Sprintf("cannot convert %s (%s) to %s (%s)", e.From, e.From.Dimension(), e.To, e.To.Dimension())
}

// UnknownUnitError is returned for unit names outside the table.
type UnknownUnitError struct {
	Name string
}

func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("unknown unit %q", e.Name)
}
