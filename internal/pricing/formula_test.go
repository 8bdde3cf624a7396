package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantBasePrices(t *testing.T) {
	// At a reference index of 70 USD/bbl
	assert.InDelta(t, 1.33, FormulaV10.BasePrice(70), 1e-9)
	assert.InDelta(t, 1.335, FormulaV11.BasePrice(70), 1e-9)
	// v1.2 adds the nonlinear crude term: 1.33 + 0.0001*70
	assert.InDelta(t, 1.337, FormulaV12.BasePrice(70), 1e-9)
}

func TestDefaultVariant(t *testing.T) {
	assert.Equal(t, "1.0", DefaultVariant().Name)
}

func TestVariantByName(t *testing.T) {
	variant, err := VariantByName("1.1")
	require.NoError(t, err)
	assert.Equal(t, FormulaV11, variant)

	_, err = VariantByName("9.9")
	assert.Error(t, err)
}

func TestVariantsListing(t *testing.T) {
	variants := Variants()
	require.Len(t, variants, 3)

	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = v.Name
	}
	assert.Equal(t, []string{"1.0", "1.1", "1.2"}, names)
}
