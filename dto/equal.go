package dto

import (
	"encoding/binary"
	"math"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"

	"pantree/nutrition"
)

func eqString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqUint(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (m FoodMeasurement) Equal(other FoodMeasurement) bool {
	return m.Unit == other.Unit && m.Value == other.Value
}

func (f *Food) Equal(other *Food) bool {
	if f == nil || other == nil {
		return f == other
	}
	if !eqString(f.ID, other.ID) || !eqString(f.Name, other.Name) || !f.Nutrition.Equal(other.Nutrition) {
		return false
	}
	if f.Measurement == nil || other.Measurement == nil {
		return f.Measurement == other.Measurement
	}
	return f.Measurement.Equal(*other.Measurement)
}

func (i *Ingredient) Equal(other *Ingredient) bool {
	if i == nil || other == nil {
		return i == other
	}
	return eqString(i.ID, other.ID) &&
		i.Food.Equal(&other.Food) &&
		i.Quantity.Equal(other.Quantity) &&
		i.Nutrition.Equal(other.Nutrition)
}

// Equal compares recipes structurally. Instructions must match in order;
// ingredients match as a multiset.
func (r *Recipe) Equal(other *Recipe) bool {
	if r == nil || other == nil {
		return false
	}
	return eqString(r.ID, other.ID) &&
		eqString(r.Name, other.Name) &&
		eqString(r.Description, other.Description) &&
		slices.Equal(r.Instructions, other.Instructions) &&
		sameIngredients(r.Ingredients, other.Ingredients) &&
		eqUint(r.Servings, other.Servings) &&
		eqUint(r.PreparationTime, other.PreparationTime) &&
		eqUint(r.CookingTime, other.CookingTime) &&
		eqUint(r.TotalTime, other.TotalTime) &&
		r.TotalNutrition.Equal(other.TotalNutrition) &&
		r.NutritionPerServing.Equal(other.NutritionPerServing)
}

func sameIngredients(a, b []Ingredient) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
outer:
	for i := range a {
		for j := range b {
			if !used[j] && a[i].Equal(&b[j]) {
				used[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}

// hasher writes tagged values so that nil and zero hash differently.
type hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

func newHasher() *hasher { return &hasher{d: xxhash.New()} }

func (h *hasher) raw(b []byte) { _, _ = h.d.Write(b) }

func (h *hasher) tag(present bool) {
	if present {
		h.raw([]byte{1})
	} else {
		h.raw([]byte{0})
	}
}

func (h *hasher) u64(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:8], v)
	h.raw(h.buf[:8])
}

func (h *hasher) str(s string) {
	h.u64(uint64(len(s)))
	_, _ = h.d.WriteString(s)
}

func (h *hasher) optStr(s *string) {
	h.tag(s != nil)
	if s != nil {
		h.str(*s)
	}
}

func (h *hasher) optUint(v *uint) {
	h.tag(v != nil)
	if v != nil {
		h.u64(uint64(*v))
	}
}

func (h *hasher) float(v float64) {
	// -0 == 0
	if v == 0 {
		v = 0
	}
	h.u64(math.Float64bits(v))
}

func (h *hasher) nutrition(n *nutrition.Nutrition) {
	h.tag(n != nil)
	if n == nil {
		return
	}
	for _, v := range n.Values() {
		h.tag(v != nil)
		if v != nil {
			h.float(*v)
		}
	}
}

func (h *hasher) measurement(m FoodMeasurement) {
	h.str(m.Unit)
	h.float(m.Value)
}

func (h *hasher) sum() uint64 { return h.d.Sum64() }

func (m FoodMeasurement) Hash() uint64 {
	h := newHasher()
	h.measurement(m)
	return h.sum()
}

func (f *Food) Hash() uint64 {
	h := newHasher()
	h.optStr(f.ID)
	h.optStr(f.Name)
	h.nutrition(f.Nutrition)
	h.tag(f.Measurement != nil)
	if f.Measurement != nil {
		h.measurement(*f.Measurement)
	}
	return h.sum()
}

func (i *Ingredient) Hash() uint64 {
	h := newHasher()
	h.optStr(i.ID)
	h.u64(i.Food.Hash())
	h.measurement(i.Quantity)
	h.nutrition(i.Nutrition)
	return h.sum()
}

// Hash is consistent with Equal: ingredient order does not matter,
// instruction order does.
func (r *Recipe) Hash() uint64 {
	type keyed struct {
		id   string
		hash uint64
	}
	ings := make([]keyed, len(r.Ingredients))
	for i := range r.Ingredients {
		ing := &r.Ingredients[i]
		k := keyed{hash: ing.Hash()}
		if ing.ID != nil {
			k.id = *ing.ID
		}
		ings[i] = k
	}
	slices.SortFunc(ings, func(a, b keyed) int {
		if c := strings.Compare(a.id, b.id); c != 0 {
			return c
		}
		switch {
		case a.hash < b.hash:
			return -1
		case a.hash > b.hash:
			return 1
		}
		return 0
	})

	h := newHasher()
	h.optStr(r.ID)
	h.optStr(r.Name)
	h.optStr(r.Description)
	h.u64(uint64(len(r.Instructions)))
	for _, step := range r.Instructions {
		h.str(step)
	}
	h.u64(uint64(len(ings)))
	for _, k := range ings {
		h.u64(k.hash)
	}
	h.optUint(r.Servings)
	h.optUint(r.PreparationTime)
	h.optUint(r.CookingTime)
	h.optUint(r.TotalTime)
	h.nutrition(r.TotalNutrition)
	h.nutrition(r.NutritionPerServing)
	return h.sum()
}
