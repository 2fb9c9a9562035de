package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
	"github.com/utafrali/checkoutcore/pkg/logger"
	"github.com/utafrali/checkoutcore/pkg/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *ErrorResponse {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"key":"value"}}`, rec.Body.String())
}

func TestWriteError_KindMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		kind   apperrors.Kind
	}{
		{"invalid", apperrors.InvalidInput("quantity must be >= 1"), http.StatusBadRequest, "INVALID_ARGUMENT", apperrors.KindInvalidArgument},
		{"unauthenticated", apperrors.Unauthenticated("missing session"), http.StatusUnauthorized, "UNAUTHENTICATED", apperrors.KindUnauthenticated},
		{"not found", apperrors.NotFound("product", "p1"), http.StatusNotFound, "NOT_FOUND", apperrors.KindNotFound},
		{"out of stock", apperrors.OutOfStock("p1", 3, 2), http.StatusConflict, "OUT_OF_STOCK", apperrors.KindOutOfStock},
		{"empty cart", apperrors.EmptyCart("s1"), http.StatusUnprocessableEntity, "EMPTY_CART", apperrors.KindEmptyCart},
		{"unavailable", apperrors.ProductUnavailable("p1"), http.StatusConflict, "PRODUCT_UNAVAILABLE", apperrors.KindProductUnavailable},
		{"declined", apperrors.PaymentDeclined("card declined"), http.StatusPaymentRequired, "PAYMENT_DECLINED", apperrors.KindPaymentDeclined},
		{"compensation", apperrors.CompensationFailed("p1", 2, errors.New("io")), http.StatusInternalServerError, "COMPENSATION_FAILED", apperrors.KindCompensationFailure},
		{"wrapped sentinel", fmt.Errorf("load: %w", apperrors.ErrNotFound), http.StatusNotFound, "NOT_FOUND", apperrors.KindNotFound},
		{"unknown", errors.New("db exploded"), http.StatusInternalServerError, "INTERNAL_ERROR", apperrors.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
			WriteError(rec, req, tt.err, testLogger())

			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.kind, body.Kind)
		})
	}
}

func TestWriteError_InternalHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	WriteError(rec, req, apperrors.Internal(errors.New("password=hunter2")), testLogger())

	body := decodeError(t, rec)
	assert.Equal(t, "an internal error occurred", body.Message)
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestWriteError_LogsFatalWithRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter("test", "info", &buf)

	ctx := logger.NewContext(context.Background(), l)
	ctx = logger.WithCorrelationID(ctx, "corr-1")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	WriteError(rec, req, apperrors.CompensationFailed("p1", 2, errors.New("timeout")), testLogger())

	body := decodeError(t, rec)
	assert.Equal(t, "corr-1", body.RequestID)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, true, line["fatal"])
	assert.Equal(t, string(apperrors.KindCompensationFailure), line["kind"])
}

func TestWriteError_NoCorrelationID_OmitsRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteError(rec, req, apperrors.NotFound("order", "o1"), testLogger())

	assert.NotContains(t, rec.Body.String(), "request_id")
}

func TestWriteValidationError(t *testing.T) {
	type dto struct {
		Quantity int `json:"quantity" validate:"gte=1"`
	}

	rec := httptest.NewRecorder()
	WriteValidationError(rec, validator.Validate(dto{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Contains(t, body.Fields, "quantity")

	rec = httptest.NewRecorder()
	WriteValidationError(rec, errors.New("decode request body: EOF"))
	body = decodeError(t, rec)
	assert.Equal(t, "INVALID_ARGUMENT", body.Code)
	assert.Equal(t, "decode request body: EOF", body.Message)
}

func TestParseUUID(t *testing.T) {
	rec := httptest.NewRecorder()
	id, ok := ParseUUID(rec, "550e8400-e29b-41d4-a716-446655440000")
	assert.True(t, ok)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id.String())

	rec = httptest.NewRecorder()
	_, ok = ParseUUID(rec, "not-a-uuid")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeError(t, rec).Code)
}
