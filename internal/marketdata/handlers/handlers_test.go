package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldrush/polyprice/internal/marketdata"
)

type stubWarehouse struct {
	series marketdata.Series
}

func (s *stubWarehouse) GetRange(from time.Time) (marketdata.Series, error) {
	return s.series, nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	end := marketdata.Day(time.Now().UTC())
	series := marketdata.Series{
		{Date: end.AddDate(0, 0, -2), ReferenceIndex: 70, FXRate: 5.0, BasePrice: 1.33},
		{Date: end.AddDate(0, 0, -1), ReferenceIndex: 71, FXRate: 5.1, BasePrice: math.NaN()},
		{Date: end, ReferenceIndex: 72, FXRate: 5.2, BasePrice: 1.35},
	}
	source := marketdata.NewSource(marketdata.SourceConfig{
		Warehouse: &stubWarehouse{series: series},
		Validator: marketdata.NewValidator(logger),
		Log:       logger,
	})

	return NewHandler(source, marketdata.NewQualityScorer(), logger)
}

func TestHandleGetData(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/market/data", nil)
	w := httptest.NewRecorder()

	handler.HandleGetData(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]interface{}
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	assert.Equal(t, 30.0, response["window_days"])
	observations := response["observations"].([]interface{})
	require.Len(t, observations, 3)

	// missing base price serializes as null, not NaN
	second := observations[1].(map[string]interface{})
	assert.Nil(t, second["base_price"])
}

func TestHandleGetDataCustomWindow(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/market/data?days=90", nil)
	w := httptest.NewRecorder()

	handler.HandleGetData(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)
	assert.Equal(t, 90.0, response["window_days"])
}

func TestHandleGetDataRejectsBadDays(t *testing.T) {
	handler := newTestHandler(t)

	for _, days := range []string{"abc", "0", "-5", "99999"} {
		req := httptest.NewRequest("GET", "/api/market/data?days="+days, nil)
		w := httptest.NewRecorder()

		handler.HandleGetData(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, "days=%s should be rejected", days)
	}
}

func TestHandleGetQuality(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/market/quality", nil)
	w := httptest.NewRecorder()

	handler.HandleGetQuality(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	assert.Contains(t, response, "completeness")
	assert.Contains(t, response, "date_range")
}
