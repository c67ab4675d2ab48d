// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientInput   = errors.New("insufficient input")
	ErrNoPrice             = errors.New("lack of price data")
	ErrNoStrike            = errors.New("instrument has no strike")
	ErrContractNotFound    = errors.New("contract not found")
	ErrMaxLegs             = errors.New("maximum number of legs reached")
	ErrDraftIncomplete     = errors.New("order draft is incomplete")
	ErrEstimateUnavailable = errors.New("order lock or fees unavailable")
	ErrStaleGeneration     = errors.New("result superseded by a newer request")
	ErrUnpricedLeg         = errors.New("leg has no resolved premium")
	ErrAlreadySubmitted    = errors.New("order already submitted")
	ErrSubmitInProgress    = errors.New("order submission in progress")
	ErrDeskClosed          = errors.New("desk is closed")
	ErrConnectionFailed    = errors.New("connection failed")
	ErrTimeout             = errors.New("operation timed out")
	ErrRateLimited         = errors.New("rate limited")
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrDatabaseError       = errors.New("database error")
	ErrOrderRejected       = errors.New("order rejected")
)

// PricingError represents a failed reference price lookup.
type PricingError struct {
	Op     string
	Kind   string
	Date   string
	Strike string
	Err    error
}

func (e *PricingError) Error() string {
	target := e.Kind
	if e.Strike != "" {
		target += "@" + e.Strike
	}
	if e.Err != nil {
		return fmt.Sprintf("pricing error [%s] %s %s: %v", e.Op, target, e.Date, e.Err)
	}
	return fmt.Sprintf("pricing error [%s] %s %s", e.Op, target, e.Date)
}

func (e *PricingError) Unwrap() error {
	return e.Err
}

// NewPricingError creates a new PricingError.
func NewPricingError(op, kind, date, strike string, err error) *PricingError {
	return &PricingError{
		Op:     op,
		Kind:   kind,
		Date:   date,
		Strike: strike,
		Err:    err,
	}
}

// SDKError represents an error returned by the trading API.
type SDKError struct {
	Code    string
	Message string
	Err     error
}

func (e *SDKError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sdk error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("sdk error [%s]: %s", e.Code, e.Message)
}

func (e *SDKError) Unwrap() error {
	return e.Err
}

// NewSDKError creates a new SDKError.
func NewSDKError(code, message string, err error) *SDKError {
	return &SDKError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// OrderError represents an error related to order operations.
type OrderError struct {
	ClientOrderID string
	Action        string
	Reason        string
	Err           error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error [%s] %s: %s: %v", e.ClientOrderID, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error [%s] %s: %s", e.ClientOrderID, e.Action, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(clientOrderID, action, reason string, err error) *OrderError {
	return &OrderError{
		ClientOrderID: clientOrderID,
		Action:        action,
		Reason:        reason,
		Err:           err,
	}
}

// ValidationError represents a validation error. Validation errors on user
// supplied strategy input unwrap to ErrInsufficientInput.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInsufficientInput
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
