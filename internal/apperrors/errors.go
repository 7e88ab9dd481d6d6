// Package apperrors defines the error taxonomy shared by signal computation,
// the backtester and the order tracker. Callers match with errors.As.
package apperrors

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// DataGapError reports candles missing inside a requested range. Computation
// proceeds on the data that exists; missing bars are never fabricated.
type DataGapError struct {
	Symbol    string
	Timeframe string
	From      time.Time
	To        time.Time
	Missing   int
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap %s/%s: %d bars missing in [%s, %s]",
		e.Symbol, e.Timeframe, e.Missing,
		e.From.UTC().Format(time.RFC3339), e.To.UTC().Format(time.RFC3339))
}

// ParameterError rejects invalid indicator or risk parameters before any
// computation starts.
type ParameterError struct {
	Field  string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

func NewParameterError(field, reason string) error {
	return &ParameterError{Field: field, Reason: reason}
}

// ExchangeTransientError marks a retryable exchange failure (network,
// rate limit). Surfaced only after the retry budget is exhausted.
type ExchangeTransientError struct {
	Op  string
	Err error
}

func (e *ExchangeTransientError) Error() string {
	return fmt.Sprintf("exchange transient on %s: %v", e.Op, e.Err)
}

func (e *ExchangeTransientError) Unwrap() error { return e.Err }

// ExchangeRejectedError is terminal: the venue refused the order.
type ExchangeRejectedError struct {
	Symbol  string
	OrderID string
	Reason  string
}

func (e *ExchangeRejectedError) Error() string {
	return fmt.Sprintf("order rejected %s (order %s): %s", e.Symbol, e.OrderID, e.Reason)
}

// TrackerTimeoutError means the poll budget ran out without a terminal
// state. The order is left in its last known state for manual check.
type TrackerTimeoutError struct {
	Symbol     string
	OrderID    string
	LastStatus string
	Polls      int
}

func (e *TrackerTimeoutError) Error() string {
	return fmt.Sprintf("tracker timeout %s (order %s): still %s after %d polls",
		e.Symbol, e.OrderID, e.LastStatus, e.Polls)
}

// IsTransient reports whether err wraps an ExchangeTransientError.
func IsTransient(err error) bool {
	var te *ExchangeTransientError
	return errors.As(err, &te)
}
