// Package apperror defines the coded errors the stock engine surfaces to callers.
package apperror

import (
	"errors"
	"fmt"
	"strconv"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs)
	Metadata map[string]string // Template data for localized messages
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidUnit         = New(CodeInvalidUnit, "invalid unit")
	ErrInvalidQuantity     = New(CodeInvalidQuantity, "invalid quantity")
	ErrInvalidArgument     = New(CodeInvalidArgument, "invalid argument")
	ErrItemNotFound        = New(CodeItemNotFound, "stocked item not found")
	ErrIngredientNotFound  = New(CodeIngredientNotFound, "ingredient not found")
	ErrRecipeNotFound      = New(CodeRecipeNotFound, "recipe not found")
	ErrOrderNotFound       = New(CodeOrderNotFound, "order not found")
	ErrInsufficientStock   = New(CodeInsufficientStock, "insufficient stock")
	ErrConcurrencyConflict = New(CodeConcurrencyConflict, "concurrency conflict")
	ErrInvalidTransition   = New(CodeInvalidTransition, "invalid order status transition")
	ErrRecipeInUse         = New(CodeRecipeInUse, "recipe is referenced by orders")
	ErrDuplicateRequest    = New(CodeDuplicateRequest, "request already processed")
)

// InsufficientStockError carries the shortage detail callers render to end users.
type InsufficientStockError struct {
	ItemID    string
	ItemName  string
	Needed    float64
	Available float64
}

func InsufficientStock(itemID, itemName string, needed, available float64) *InsufficientStockError {
	return &InsufficientStockError{ItemID: itemID, ItemName: itemName, Needed: needed, Available: available}
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: needed %s, available %s",
		e.ItemName, formatQty(e.Needed), formatQty(e.Available))
}

func (e *InsufficientStockError) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Code == CodeInsufficientStock
	}
	return false
}

// Metadata is the template data used when localizing the shortage message.
func (e *InsufficientStockError) Metadata() map[string]string {
	return map[string]string{
		"item_id":   e.ItemID,
		"item_name": e.ItemName,
		"needed":    formatQty(e.Needed),
		"available": formatQty(e.Available),
	}
}

// CodeOf extracts the code of a domain error, or CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var shortage *InsufficientStockError
	if errors.As(err, &shortage) {
		return CodeInsufficientStock
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsRetryable reports whether the caller may safely retry the operation.
func IsRetryable(err error) bool {
	return CodeOf(err) == CodeConcurrencyConflict
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
