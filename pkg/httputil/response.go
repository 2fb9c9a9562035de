package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
	"github.com/utafrali/checkoutcore/pkg/logger"
	"github.com/utafrali/checkoutcore/pkg/validator"
)

// Response is the JSON envelope for every API response.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Kind      apperrors.Kind    `json:"kind,omitempty"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the Data envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// WriteError maps err to its kind's status and writes the error envelope.
// Internal errors are logged without leaking their detail to the client;
// compensation failures are logged at ERROR with their cause since they
// mean stock counts may have drifted.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(err)
	body := &ErrorResponse{Kind: kind, RequestID: requestID}

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr) && kind != apperrors.KindInternal:
		body.Code = appErr.Code
		body.Message = appErr.Message
	case kind == apperrors.KindInternal:
		body.Code = "INTERNAL_ERROR"
		body.Message = "an internal error occurred"
	default:
		body.Code = codeForKind(kind)
		body.Message = err.Error()
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("kind", string(kind)),
			slog.Bool("fatal", apperrors.IsFatal(err)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: body})
}

func codeForKind(kind apperrors.Kind) string {
	switch kind {
	case apperrors.KindInvalidArgument:
		return "INVALID_ARGUMENT"
	case apperrors.KindNotFound:
		return "NOT_FOUND"
	case apperrors.KindOutOfStock:
		return "OUT_OF_STOCK"
	case apperrors.KindEmptyCart:
		return "EMPTY_CART"
	case apperrors.KindUnauthenticated:
		return "UNAUTHENTICATED"
	case apperrors.KindProductUnavailable:
		return "PRODUCT_UNAVAILABLE"
	case apperrors.KindPaymentDeclined:
		return "PAYMENT_DECLINED"
	case apperrors.KindCompensationFailure:
		return "COMPENSATION_FAILED"
	case apperrors.KindAlreadyExists:
		return "ALREADY_EXISTS"
	case apperrors.KindConflict:
		return "CONFLICT"
	case apperrors.KindServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// WriteValidationError writes a 400 with field-level detail for validator errors.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Kind:    apperrors.KindInvalidArgument,
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_ARGUMENT", Kind: apperrors.KindInvalidArgument, Message: err.Error()},
	})
}

// ParseUUID parses param as a UUID. On failure it writes a 400 and returns false.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "INVALID_PARAMETER",
				Kind:    apperrors.KindInvalidArgument,
				Message: "invalid UUID: " + param,
			},
		})
		return uuid.Nil, false
	}
	return id, true
}
