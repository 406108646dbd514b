package nutrition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantree/measure"
)

func TestScale(t *testing.T) {
	n := &Nutrition{Calories: Float(100), Protein: Float(10)}

	scaled, err := Scale(n, measure.New(100, measure.Gram), measure.New(250, measure.Gram))
	require.NoError(t, err)
	assert.InDelta(t, 250, *scaled.Calories, 1e-9)
	assert.InDelta(t, 25, *scaled.Protein, 1e-9)
	assert.Nil(t, scaled.Sodium)

	// the input is untouched
	assert.Equal(t, 100.0, *n.Calories)
}

func TestScaleConvertsUnits(t *testing.T) {
	n := &Nutrition{Calories: Float(120)}
	scaled, err := Scale(n, measure.New(1, measure.Cup), measure.New(8, measure.Tablespoon))
	require.NoError(t, err)
	assert.InDelta(t, 60, *scaled.Calories, 1e-9)

	scaled, err = Scale(n, measure.New(1, measure.Pound), measure.New(453.59237, measure.Gram))
	require.NoError(t, err)
	assert.InDelta(t, 120, *scaled.Calories, 1e-9)
}

func TestScaleMilligramBaseToGrams(t *testing.T) {
	n := &Nutrition{Calories: Float(100)}
	scaled, err := Scale(n, measure.New(10, measure.Milligram), measure.New(1, measure.Gram))
	require.NoError(t, err)
	assert.InDelta(t, 10000, *scaled.Calories, 1e-9)
	assert.Nil(t, scaled.Protein)
}

func TestScaleErrors(t *testing.T) {
	n := &Nutrition{Calories: Float(1)}

	_, err := Scale(n, measure.New(1, measure.Gram), measure.New(1, measure.Cup))
	var dimErr *measure.IncompatibleDimensionError
	assert.ErrorAs(t, err, &dimErr)

	_, err = Scale(n, measure.New(0, measure.Gram), measure.New(1, measure.Gram))
	var invalid *InvalidMeasurementError
	assert.ErrorAs(t, err, &invalid)

	_, err = Scale(n, measure.New(-2, measure.Gram), measure.New(1, measure.Gram))
	assert.ErrorAs(t, err, &invalid)
}

func TestScaleNil(t *testing.T) {
	scaled, err := Scale(nil, measure.New(1, measure.Gram), measure.New(2, measure.Gram))
	require.NoError(t, err)
	assert.Nil(t, scaled)
}

func TestSum(t *testing.T) {
	a := &Nutrition{Calories: Float(100), Fiber: Float(2)}
	b := &Nutrition{Calories: Float(50)}
	c := &Nutrition{}

	total := Sum(a, b, c, nil)
	require.NotNil(t, total.Calories)
	assert.Equal(t, 150.0, *total.Calories)
	// defined in one record only: the rest count as zero
	assert.Equal(t, 2.0, *total.Fiber)
	// undefined everywhere stays undefined
	assert.Nil(t, total.Protein)
	assert.Nil(t, total.Sugar)
}

func TestSumEmpty(t *testing.T) {
	total := Sum()
	for _, v := range total.Values() {
		assert.Nil(t, v)
	}
}

func TestPerServing(t *testing.T) {
	total := &Nutrition{Calories: Float(400), Sodium: Float(30)}
	per := PerServing(total, 4)
	assert.Equal(t, 100.0, *per.Calories)
	assert.Equal(t, 7.5, *per.Sodium)
	assert.Nil(t, per.Protein)

	assert.Nil(t, PerServing(nil, 2))
}

func TestRoundAndEqual(t *testing.T) {
	n := &Nutrition{Calories: Float(10.4), Protein: Float(2.6)}
	rounded := Round(n)
	assert.True(t, rounded.Equal(&Nutrition{Calories: Float(10), Protein: Float(3)}))
	assert.False(t, rounded.Equal(&Nutrition{Calories: Float(10)}))
	assert.False(t, rounded.Equal(nil))
	assert.True(t, (*Nutrition)(nil).Equal(nil))
	assert.True(t, n.Clone().Equal(n))
}
