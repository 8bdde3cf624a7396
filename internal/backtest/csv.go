package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goldrush/polyprice/internal/marketdata"
)

var observedDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// ParseObservedCSV reads observed prices from an uploaded CSV. The caller
// maps the header names of the date and price columns; matching is
// case-insensitive. Rows that fail to parse are skipped and counted.
func ParseObservedCSV(r io.Reader, dateColumn, priceColumn string) ([]ObservedPrice, int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("reading csv header: %w", err)
	}
	dateIdx, priceIdx := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case strings.ToLower(dateColumn):
			dateIdx = i
		case strings.ToLower(priceColumn):
			priceIdx = i
		}
	}
	if dateIdx < 0 || priceIdx < 0 {
		return nil, 0, fmt.Errorf("csv is missing column %q or %q", dateColumn, priceColumn)
	}

	var observed []ObservedPrice
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if dateIdx >= len(record) || priceIdx >= len(record) {
			skipped++
			continue
		}
		date, err := parseObservedDate(record[dateIdx])
		if err != nil {
			skipped++
			continue
		}
		price, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(record[priceIdx]), ",", "."), 64)
		if err != nil {
			skipped++
			continue
		}
		observed = append(observed, ObservedPrice{Date: marketdata.Day(date), Price: price})
	}
	if len(observed) == 0 {
		return nil, skipped, fmt.Errorf("no parseable rows in csv")
	}
	return observed, skipped, nil
}

func parseObservedDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range observedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
