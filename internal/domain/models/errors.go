package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the forecasting pipeline.
type ErrorKind string

const (
	KindInvalidRate         ErrorKind = "INVALID_RATE"
	KindUnsupportedCurrency ErrorKind = "UNSUPPORTED_CURRENCY"
	KindDataSource          ErrorKind = "DATA_SOURCE"
	KindComputation         ErrorKind = "COMPUTATION"
)

// Sentinels for errors.Is. They match any PredictionError of the same kind.
var (
	ErrInvalidRate         = &PredictionError{Kind: KindInvalidRate, Message: "invalid base rate"}
	ErrUnsupportedCurrency = &PredictionError{Kind: KindUnsupportedCurrency, Message: "currency not supported"}
	ErrDataSource          = &PredictionError{Kind: KindDataSource, Message: "rate source failure"}
	ErrComputation         = &PredictionError{Kind: KindComputation, Message: "computation failure"}
)

// PredictionError is the single error type surfaced by the pipeline.
type PredictionError struct {
	Kind     ErrorKind
	Currency string
	Message  string
	Err      error
}

func (e *PredictionError) Error() string {
	msg := e.Message
	if e.Currency != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Currency)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *PredictionError) Unwrap() error { return e.Err }

// Is matches on kind so callers can compare against the package sentinels.
func (e *PredictionError) Is(target error) bool {
	t, ok := target.(*PredictionError)
	return ok && t.Kind == e.Kind
}

// Code is the stable machine-readable code of the error.
func (e *PredictionError) Code() string { return "ERR_" + string(e.Kind) }

// NewInvalidRateError reports a non-positive base rate.
func NewInvalidRateError(currency string, rate float64) *PredictionError {
	return &PredictionError{
		Kind:     KindInvalidRate,
		Currency: currency,
		Message:  fmt.Sprintf("base rate must be positive, got %v", rate),
	}
}

// NewUnsupportedCurrencyError reports a code outside the supported set.
func NewUnsupportedCurrencyError(currency string) *PredictionError {
	return &PredictionError{
		Kind:     KindUnsupportedCurrency,
		Currency: currency,
		Message:  "currency not supported",
	}
}

// NewDataSourceError wraps a rate-source failure.
func NewDataSourceError(currency string, err error) *PredictionError {
	return &PredictionError{
		Kind:     KindDataSource,
		Currency: currency,
		Message:  "rate source failure",
		Err:      err,
	}
}

// NewComputationError reports an unexpected numerical failure.
func NewComputationError(currency, message string) *PredictionError {
	return &PredictionError{
		Kind:     KindComputation,
		Currency: currency,
		Message:  message,
	}
}

// KindOf returns the kind of the first PredictionError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PredictionError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
