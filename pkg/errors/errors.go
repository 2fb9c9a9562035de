package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an expected failure. Every fallible checkout operation resolves
// to either a value or an error whose Kind can be recovered with KindOf.
type Kind string

// Error kinds. KindCompensationFailure is the only fatal kind: it means a
// compensating release failed and stock counts may have drifted.
const (
	KindInvalidArgument     Kind = "invalid_argument"
	KindNotFound            Kind = "not_found"
	KindOutOfStock          Kind = "out_of_stock"
	KindEmptyCart           Kind = "empty_cart"
	KindUnauthenticated     Kind = "unauthenticated"
	KindProductUnavailable  Kind = "product_unavailable"
	KindPaymentDeclined     Kind = "payment_declined"
	KindCompensationFailure Kind = "internal_compensation_failure"
	KindAlreadyExists       Kind = "already_exists"
	KindConflict            Kind = "conflict"
	KindServiceUnavailable  Kind = "service_unavailable"
	KindInternal            Kind = "internal"
)

// Standard sentinel errors, one per kind.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("resource not found")
	ErrOutOfStock          = errors.New("out of stock")
	ErrEmptyCart           = errors.New("empty cart")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrProductUnavailable  = errors.New("product unavailable")
	ErrPaymentDeclined     = errors.New("payment declined")
	ErrCompensationFailure = errors.New("compensation failure")
	ErrAlreadyExists       = errors.New("resource already exists")
	ErrConflict            = errors.New("conflict")
	ErrServiceUnavail      = errors.New("service unavailable")
	ErrInternal            = errors.New("internal error")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_ARGUMENT",
		Message: message,
		Kind:    KindInvalidArgument,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Kind:    KindNotFound,
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// OutOfStock creates a 409 error for a reservation that exceeds available stock.
func OutOfStock(productID string, requested, available int) *AppError {
	return &AppError{
		Code:    "OUT_OF_STOCK",
		Message: fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", productID, requested, available),
		Kind:    KindOutOfStock,
		Status:  http.StatusConflict,
		Err:     ErrOutOfStock,
	}
}

// EmptyCart creates a 422 error for a checkout attempted on an empty cart.
func EmptyCart(sessionID string) *AppError {
	return &AppError{
		Code:    "EMPTY_CART",
		Message: fmt.Sprintf("cart for session %s is empty", sessionID),
		Kind:    KindEmptyCart,
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrEmptyCart,
	}
}

// Unauthenticated creates a 401 error.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHENTICATED",
		Message: message,
		Kind:    KindUnauthenticated,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthenticated,
	}
}

// ProductUnavailable creates a 409 error for a product that vanished between
// add-to-cart and checkout.
func ProductUnavailable(productID string) *AppError {
	return &AppError{
		Code:    "PRODUCT_UNAVAILABLE",
		Message: fmt.Sprintf("product %s is no longer available", productID),
		Kind:    KindProductUnavailable,
		Status:  http.StatusConflict,
		Err:     ErrProductUnavailable,
	}
}

// PaymentDeclined creates a 402 error carrying the gateway's detail.
func PaymentDeclined(detail string) *AppError {
	return &AppError{
		Code:    "PAYMENT_DECLINED",
		Message: detail,
		Kind:    KindPaymentDeclined,
		Status:  http.StatusPaymentRequired,
		Err:     ErrPaymentDeclined,
	}
}

// CompensationFailed creates a 500 error for a compensating release that failed.
// The cause is kept so the drifted product can be identified from logs.
func CompensationFailed(productID string, qty int, cause error) *AppError {
	return &AppError{
		Code:    "COMPENSATION_FAILED",
		Message: fmt.Sprintf("failed to release %d units of product %s", qty, productID),
		Kind:    KindCompensationFailure,
		Status:  http.StatusInternalServerError,
		Err:     errors.Join(ErrCompensationFailure, cause),
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Kind:    KindAlreadyExists,
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Kind:    KindConflict,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Kind:    KindServiceUnavailable,
		Status:  http.StatusServiceUnavailable,
		Err:     ErrServiceUnavail,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Kind:    KindInternal,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

var sentinelKinds = []struct {
	err  error
	kind Kind
}{
	{ErrCompensationFailure, KindCompensationFailure},
	{ErrInvalidInput, KindInvalidArgument},
	{ErrNotFound, KindNotFound},
	{ErrOutOfStock, KindOutOfStock},
	{ErrEmptyCart, KindEmptyCart},
	{ErrUnauthenticated, KindUnauthenticated},
	{ErrProductUnavailable, KindProductUnavailable},
	{ErrPaymentDeclined, KindPaymentDeclined},
	{ErrAlreadyExists, KindAlreadyExists},
	{ErrConflict, KindConflict},
	{ErrServiceUnavail, KindServiceUnavailable},
}

// KindOf returns the kind of err. Errors that carry no kind are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != "" {
		return appErr.Kind
	}
	for _, s := range sentinelKinds {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindInternal
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsFatal reports whether err signals stock-count drift and must be escalated
// rather than handled as an ordinary business failure.
func IsFatal(err error) bool {
	return Is(err, KindCompensationFailure)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}

	switch KindOf(err) {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindOutOfStock, KindProductUnavailable, KindAlreadyExists, KindConflict:
		return http.StatusConflict
	case KindEmptyCart:
		return http.StatusUnprocessableEntity
	case KindPaymentDeclined:
		return http.StatusPaymentRequired
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
