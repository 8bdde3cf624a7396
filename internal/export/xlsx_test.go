package export

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/goldrush/polyprice/internal/pricing"
)

func samplePriced() pricing.PricedSeries {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return pricing.PricedSeries{
		{
			Date:            base,
			ReferenceIndex:  70,
			FXRate:          5.0,
			BasePrice:       1.33,
			CFR:             1.39,
			LandedCost:      7.784,
			OperationalCost: 7.934,
			NetPrice:        8.7274,
			FinalPrice:      10.643,
			TrailingAverage: math.NaN(),
		},
		{
			Date:            base.AddDate(0, 0, 1),
			ReferenceIndex:  71,
			FXRate:          5.0,
			BasePrice:       1.344,
			CFR:             1.404,
			LandedCost:      7.8624,
			OperationalCost: 8.0124,
			NetPrice:        8.8136,
			FinalPrice:      10.748,
			TrailingAverage: 10.7,
		},
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, samplePriced()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, columns, rows[0])
	assert.Equal(t, "2024-06-01", rows[1][0])
	assert.Equal(t, "70", rows[1][1])

	// missing trailing average leaves the cell empty
	assert.Less(t, len(rows[1]), len(columns))
	assert.Equal(t, "10.7", rows[2][len(columns)-1])
}

func TestWriteXLSXEmptySeries(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXLSX(&buf, nil)
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}
