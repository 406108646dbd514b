package measure

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Dimension is the physical quantity a unit measures.
type Dimension int

const (
	Mass Dimension = iota
	Volume
	Count
)

func (d Dimension) String() string {
	switch d {
	case Mass:
		return "mass"
	case Volume:
		return "volume"
	case Count:
		return "count"
	}
	return fmt.Sprintf("dimension(%d)", int(d))
}

// Unit is one of the fixed food units.
type Unit int

const (
	Gram Unit = iota
	Milligram
	Liter
	Milliliter
	Ounce
	FluidOunce
	Pound
	Cup
	Tablespoon
	Teaspoon
	UnitCount
)

type unitInfo struct {
	name      string
	dimension Dimension
	// factor converts one of this unit into the base unit of its dimension
	factor float64
}

var table = [...]unitInfo{
	Gram:       {"gram", Mass, 1},
	Milligram:  {"milligram", Mass, 0.001},
	Liter:      {"liter", Volume, 1000},
	Milliliter: {"milliliter", Volume, 1},
	Ounce:      {"ounce", Mass, 28.349523125},
	FluidOunce: {"fluid ounce", Volume, 29.5735295625},
	Pound:      {"pound", Mass, 453.59237},
	Cup:        {"cup", Volume, 236.5882365},
	Tablespoon: {"tablespoon", Volume, 14.78676478125},
	Teaspoon:   {"teaspoon", Volume, 4.92892159375},
	UnitCount:  {"unit", Count, 1},
}

// Units lists every unit in table order.
func Units() []Unit {
	out := make([]Unit, len(table))
	for i := range table {
		out[i] = Unit(i)
	}
	return out
}

// UnitNames lists the display name of every unit in table order.
func UnitNames() []string {
	out := make([]string, len(table))
	for i, info := range table {
		out[i] = info.name
	}
	return out
}

func (u Unit) valid() bool { return u >= 0 && int(u) < len(table) }

func (u Unit) String() string {
	if !u.valid() {
		return fmt.Sprintf("unit(%d)", int(u))
	}
	return table[u].name
}

// Dimension reports what u measures.
func (u Unit) Dimension() Dimension {
	if !u.valid() {
		return -1
	}
	return table[u].dimension
}

// Factor is the number of base units in one u.
func (u Unit) Factor() float64 {
	if !u.valid() {
		return 0
	}
	return table[u].factor
}

// Base returns the base unit of a dimension.
func (d Dimension) Base() Unit {
	switch d {
	case Volume:
		return Milliliter
	case Count:
		return UnitCount
	}
	return Gram
}

// ParseUnit resolves a unit name case-insensitively. Both "fluid ounce" and
// "fluidounce" are accepted.
func ParseUnit(s string) (Unit, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, info := range table {
		if key == info.name || key == strings.ReplaceAll(info.name, " ", "") {
			return Unit(i), nil
		}
	}
	return 0, &UnknownUnitError{Name: s}
}

func (u Unit) MarshalJSON() ([]byte, error) {
	if !u.valid() {
		return nil, &UnknownUnitError{Name: u.String()}
	}
	return json.Marshal(u.String())
}

func (u *Unit) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseUnit(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
