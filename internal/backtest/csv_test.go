package backtest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObservedCSV(t *testing.T) {
	input := strings.NewReader(
		"date,price\n" +
			"2024-06-01,10.5\n" +
			"2024-06-02,11.0\n")

	observed, skipped, err := ParseObservedCSV(input, "date", "price")
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, observed, 2)
	assert.Equal(t, day(0), observed[0].Date)
	assert.Equal(t, 10.5, observed[0].Price)
	assert.Equal(t, 11.0, observed[1].Price)
}

func TestParseObservedCSVCustomHeaders(t *testing.T) {
	input := strings.NewReader(
		"Data,Preco,Fonte\n" +
			"2024-06-01,10.5,manual\n")

	// header match is case-insensitive
	observed, skipped, err := ParseObservedCSV(input, "data", "preco")
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, observed, 1)
	assert.Equal(t, 10.5, observed[0].Price)
}

func TestParseObservedCSVCommaDecimal(t *testing.T) {
	input := strings.NewReader(
		"date,price\n" +
			"2024-06-01,\"10,5\"\n")

	observed, _, err := ParseObservedCSV(input, "date", "price")
	require.NoError(t, err)
	require.Len(t, observed, 1)
	assert.Equal(t, 10.5, observed[0].Price)
}

func TestParseObservedCSVLenientDates(t *testing.T) {
	input := strings.NewReader(
		"date,price\n" +
			"01/06/2024,10.5\n" +
			"2024-06-02 00:00:00,11.0\n" +
			"2024-06-03T00:00:00Z,12.0\n")

	observed, skipped, err := ParseObservedCSV(input, "date", "price")
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, observed, 3)
	assert.Equal(t, day(0), observed[0].Date)
	assert.Equal(t, day(1), observed[1].Date)
	assert.Equal(t, day(2), observed[2].Date)
}

func TestParseObservedCSVSkipsBadRows(t *testing.T) {
	input := strings.NewReader(
		"date,price\n" +
			"2024-06-01,10.5\n" +
			"not-a-date,11.0\n" +
			"2024-06-03,not-a-price\n" +
			"2024-06-04,12.0\n")

	observed, skipped, err := ParseObservedCSV(input, "date", "price")
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	assert.Len(t, observed, 2)
}

func TestParseObservedCSVMissingColumn(t *testing.T) {
	input := strings.NewReader(
		"date,amount\n" +
			"2024-06-01,10.5\n")

	_, _, err := ParseObservedCSV(input, "date", "price")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price")
}

func TestParseObservedCSVNoParseableRows(t *testing.T) {
	input := strings.NewReader(
		"date,price\n" +
			"garbage,garbage\n")

	_, skipped, err := ParseObservedCSV(input, "date", "price")
	require.Error(t, err)
	assert.Equal(t, 1, skipped)
}
