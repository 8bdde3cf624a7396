package marketdata

import "fmt"

// DataValidationError signals structurally invalid input: an empty payload,
// all required columns absent, or a series that cleaning emptied out.
type DataValidationError struct {
	Reason string
}

func (e *DataValidationError) Error() string {
	return fmt.Sprintf("market data validation failed: %s", e.Reason)
}

// newValidationError builds a DataValidationError with a formatted reason
func newValidationError(format string, args ...interface{}) *DataValidationError {
	return &DataValidationError{Reason: fmt.Sprintf(format, args...)}
}

// DataUnavailableError signals that every fetch tier failed. The synthetic
// placeholder tier makes this near-unreachable; it is reserved for catastrophe.
type DataUnavailableError struct {
	WindowDays int
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("no market data available for a %d-day window after all fallback tiers", e.WindowDays)
}
