package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/checkoutcore/internal/domain"
	"github.com/utafrali/checkoutcore/internal/payment"
	"github.com/utafrali/checkoutcore/internal/pricing"
	"github.com/utafrali/checkoutcore/internal/repository/memory"
	"github.com/utafrali/checkoutcore/internal/service"
	"github.com/utafrali/checkoutcore/pkg/health"
	"github.com/utafrali/checkoutcore/pkg/httputil"
	"github.com/utafrali/checkoutcore/pkg/middleware"
	"github.com/utafrali/checkoutcore/pkg/pagination"
)

const testSecret = "test-secret-key-for-jwt-signing"

// --- Test Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupRouter(t *testing.T, secret string) http.Handler {
	t.Helper()
	logger := testLogger()
	inventory := memory.NewInventoryStore()
	ctx := context.Background()
	require.NoError(t, inventory.Upsert(ctx, &domain.Product{ID: "p1", Title: "Notebook", UnitPrice: 100, Stock: 5, Category: "book"}))
	require.NoError(t, inventory.Upsert(ctx, &domain.Product{ID: "p2", Title: "Pen", UnitPrice: 250, Stock: 5, Category: "office"}))

	calc := pricing.NewCalculator(pricing.PolicySum,
		pricing.Rule{Name: "vip", Type: pricing.RuleVIPOnly, Amount: 50},
	)
	checkout := service.NewCheckoutService(service.Stores{
		Inventory: inventory,
		Carts:     memory.NewCartStore(),
		Ledger:    memory.NewOrderLedger(),
		Attempts:  memory.NewAttemptRepository(),
	}, payment.NewMockGateway(), nil, logger, service.WithDiscount(calc.Discount))

	reg := prometheus.NewRegistry()
	return NewRouter(RouterConfig{
		Checkout:       checkout,
		Catalog:        service.NewCatalogService(inventory, logger),
		Health:         health.NewHandler(),
		Metrics:        middleware.NewHTTPMetrics(reg, "checkoutcore"),
		Gatherer:       reg,
		IdentitySecret: secret,
		Logger:         logger,
	})
}

type request struct {
	method  string
	path    string
	body    string
	headers map[string]string
}

func do(t *testing.T, h http.Handler, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if req.body != "" {
		body = bytes.NewReader([]byte(req.body))
	} else {
		body = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if req.body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func session(id string) map[string]string {
	return map[string]string{middleware.SessionIDHeader: id}
}

func shopper(id, credential string) map[string]string {
	return map[string]string{
		middleware.SessionIDHeader: id,
		"Authorization":            "Bearer " + credential,
	}
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func addItem(t *testing.T, h http.Handler, sessionID, productID string, qty int) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(AddItemRequest{ProductID: productID, Quantity: qty})
	require.NoError(t, err)
	return do(t, h, request{method: http.MethodPost, path: "/api/v1/cart/items", body: string(body), headers: session(sessionID)})
}

// ============================================================================
// Cart
// ============================================================================

func TestAddItem_Success(t *testing.T) {
	h := setupRouter(t, "")

	rec := addItem(t, h, "s1", "p1", 2)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeData[domain.CartView](t, rec)
	assert.Equal(t, "s1", cart.SessionID)
	assert.Equal(t, 2, cart.ItemCount)
	assert.NotEmpty(t, rec.Header().Get(middleware.CorrelationIDHeader))

	rec = do(t, h, request{method: http.MethodGet, path: "/api/v1/cart", headers: session("s1")})
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decodeData[domain.CartView](t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Reserved)
}

func TestAddItem_Errors(t *testing.T) {
	h := setupRouter(t, "")

	tests := []struct {
		name    string
		body    string
		headers map[string]string
		status  int
		code    string
	}{
		{"missing session", `{"product_id":"p1","quantity":1}`, nil, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"bad session", `{"product_id":"p1","quantity":1}`, session("has space"), http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"zero quantity", `{"product_id":"p1","quantity":0}`, session("s1"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", `{"product_id":"p1","quantity":1,"price":1}`, session("s1"), http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"out of stock", `{"product_id":"p1","quantity":6}`, session("s1"), http.StatusConflict, "OUT_OF_STOCK"},
		{"unknown product", `{"product_id":"p9","quantity":1}`, session("s1"), http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, request{method: http.MethodPost, path: "/api/v1/cart/items", body: tt.body, headers: tt.headers})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestAddItem_RejectsNonJSON(t *testing.T) {
	h := setupRouter(t, "")
	r := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader([]byte("product_id=p1")))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set(middleware.SessionIDHeader, "s1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestClearCart(t *testing.T) {
	h := setupRouter(t, "")
	require.Equal(t, http.StatusOK, addItem(t, h, "s1", "p1", 5).Code)

	rec := do(t, h, request{method: http.MethodDelete, path: "/api/v1/cart", headers: session("s1")})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// The released units are available to another session again.
	assert.Equal(t, http.StatusOK, addItem(t, h, "s2", "p1", 5).Code)
}

// ============================================================================
// Checkout
// ============================================================================

func TestCheckout_Success(t *testing.T) {
	h := setupRouter(t, "")
	require.Equal(t, http.StatusOK, addItem(t, h, "s1", "p1", 2).Code)
	require.Equal(t, http.StatusOK, addItem(t, h, "s1", "p2", 1).Code)

	rec := do(t, h, request{method: http.MethodPost, path: "/api/v1/checkout", headers: shopper("s1", "tok_visa")})
	require.Equal(t, http.StatusCreated, rec.Code)
	order := decodeData[domain.Order](t, rec)
	assert.Equal(t, int64(450), order.Total)
	assert.Equal(t, domain.OrderStatusCommitted, order.Status)
	require.Len(t, order.Lines, 2)

	rec = do(t, h, request{method: http.MethodGet, path: "/api/v1/orders", headers: session("s1")})
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decodeData[[]domain.Order](t, rec)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	rec = do(t, h, request{method: http.MethodGet, path: "/api/v1/cart", headers: session("s1")})
	assert.Empty(t, decodeData[domain.CartView](t, rec).Items)
}

func TestCheckout_Errors(t *testing.T) {
	h := setupRouter(t, "")
	require.Equal(t, http.StatusOK, addItem(t, h, "s1", "p1", 1).Code)

	tests := []struct {
		name    string
		headers map[string]string
		status  int
		code    string
	}{
		{"no credential", session("s1"), http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"no session", map[string]string{"Authorization": "Bearer tok"}, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"declined", shopper("s1", payment.DeclinePrefix+"card"), http.StatusPaymentRequired, "PAYMENT_DECLINED"},
		{"empty cart", shopper("s2", "tok"), http.StatusUnprocessableEntity, "EMPTY_CART"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, request{method: http.MethodPost, path: "/api/v1/checkout", headers: tt.headers})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestCheckoutAttempts(t *testing.T) {
	h := setupRouter(t, "")
	require.Equal(t, http.StatusOK, addItem(t, h, "s1", "p1", 1).Code)
	rec := do(t, h, request{method: http.MethodPost, path: "/api/v1/checkout", headers: shopper("s1", "decline_card")})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = do(t, h, request{method: http.MethodGet, path: "/api/v1/checkout/attempts", headers: session("s1")})
	require.Equal(t, http.StatusOK, rec.Code)
	attempts := decodeData[[]domain.CheckoutAttempt](t, rec)
	require.Len(t, attempts, 1)
	assert.Equal(t, domain.AttemptFailed, attempts[0].State)

	rec = do(t, h, request{method: http.MethodGet, path: "/api/v1/checkout/attempts/" + attempts[0].ID, headers: session("s1")})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, attempts[0].ID, decodeData[domain.CheckoutAttempt](t, rec).ID)

	rec = do(t, h, request{method: http.MethodGet, path: "/api/v1/checkout/attempts/" + attempts[0].ID, headers: session("s2")})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, request{method: http.MethodGet, path: "/api/v1/checkout/attempts/not-a-uuid", headers: session("s1")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeError(t, rec).Code)
}

func TestCheckout_VIPHeaderAppliesDiscount(t *testing.T) {
	h := setupRouter(t, "")
	require.Equal(t, http.StatusOK, addItem(t, h, "s1", "p1", 2).Code)

	headers := shopper("s1", "tok")
	headers[CustomerLevelHeader] = "vip"
	rec := do(t, h, request{method: http.MethodPost, path: "/api/v1/checkout", headers: headers})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(150), decodeData[domain.Order](t, rec).Total)
}

// ============================================================================
// Signed identity
// ============================================================================

func signIdentity(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestSignedIdentity(t *testing.T) {
	h := setupRouter(t, testSecret)
	require.Equal(t, http.StatusOK, addItem(t, h, "s1", "p1", 2).Code)
	require.Equal(t, http.StatusOK, addItem(t, h, "s2", "p1", 2).Code)

	// Unsigned level headers are ignored.
	headers := shopper("s1", "tok")
	headers[CustomerLevelHeader] = "vip"
	rec := do(t, h, request{method: http.MethodPost, path: "/api/v1/checkout", headers: headers})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(200), decodeData[domain.Order](t, rec).Total)

	headers = shopper("s2", "tok")
	headers[IdentityTokenHeader] = signIdentity(t, testSecret, jwt.MapClaims{
		"sub":   "user-7",
		"level": "vip",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	rec = do(t, h, request{method: http.MethodPost, path: "/api/v1/checkout", headers: headers})
	require.Equal(t, http.StatusCreated, rec.Code)
	order := decodeData[domain.Order](t, rec)
	assert.Equal(t, int64(150), order.Total)
	assert.Equal(t, "user-7", order.UserID)
}

func TestSignedIdentity_Rejected(t *testing.T) {
	h := setupRouter(t, testSecret)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signIdentity(t, "other-secret", jwt.MapClaims{"sub": "u1"})},
		{"expired", signIdentity(t, testSecret, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()})},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := shopper("s1", "tok")
			headers[IdentityTokenHeader] = tt.token
			rec := do(t, h, request{method: http.MethodGet, path: "/api/v1/cart", headers: headers})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "tok", bearerToken("Bearer tok"))
	assert.Equal(t, "tok", bearerToken("bearer  tok "))
	assert.Empty(t, bearerToken("Basic dXNlcg=="))
	assert.Empty(t, bearerToken(""))
	assert.Equal(t, []string{"A", "B"}, splitCoupons(" A, ,B"))
}

// ============================================================================
// Products
// ============================================================================

func TestProducts(t *testing.T) {
	h := setupRouter(t, "")

	rec := do(t, h, request{method: http.MethodPut, path: "/api/v1/products/p3", body: `{"title":"Mug","unit_price":900,"stock":4,"category":"home"}`})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p3", decodeData[domain.Product](t, rec).ID)

	rec = do(t, h, request{method: http.MethodPut, path: "/api/v1/products/p3", body: `{"title":"","unit_price":900}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)

	rec = do(t, h, request{method: http.MethodPatch, path: "/api/v1/products/p3/price", body: `{"unit_price":750}`})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(750), decodeData[domain.Product](t, rec).UnitPrice)

	rec = do(t, h, request{method: http.MethodPatch, path: "/api/v1/products/p3/price", body: `{}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, request{method: http.MethodGet, path: "/api/v1/products/missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, request{method: http.MethodGet, path: "/api/v1/products?page=4611686018427387904&per_page=4"})
	require.Equal(t, http.StatusOK, rec.Code)
	var far pagination.Result[domain.Product]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&far))
	assert.Empty(t, far.Data)
	assert.Equal(t, 3, far.TotalCount)

	rec = do(t, h, request{method: http.MethodGet, path: "/api/v1/products?page=1&per_page=2"})
	require.Equal(t, http.StatusOK, rec.Code)
	var page pagination.Result[domain.Product]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Equal(t, 3, page.TotalCount)
	assert.Len(t, page.Data, 2)
	assert.True(t, page.HasNext)
}

// ============================================================================
// Operational endpoints
// ============================================================================

func TestHealthAndMetrics(t *testing.T) {
	h := setupRouter(t, "")

	assert.Equal(t, http.StatusOK, do(t, h, request{method: http.MethodGet, path: "/health/live"}).Code)
	assert.Equal(t, http.StatusOK, do(t, h, request{method: http.MethodGet, path: "/health/ready"}).Code)

	require.Equal(t, http.StatusOK, addItem(t, h, "s1", "p1", 1).Code)
	rec := do(t, h, request{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRateLimit_PerSession(t *testing.T) {
	h := NewRouter(RouterConfig{
		Catalog:        service.NewCatalogService(memory.NewInventoryStore(), testLogger()),
		Health:         health.NewHandler(),
		RateLimitRPS:   0.001,
		RateLimitBurst: 2,
		Logger:         testLogger(),
	})

	list := func(sessionID string) int {
		return do(t, h, request{method: http.MethodGet, path: "/api/v1/products", headers: session(sessionID)}).Code
	}

	assert.Equal(t, http.StatusOK, list("s1"))
	assert.Equal(t, http.StatusOK, list("s1"))
	assert.Equal(t, http.StatusTooManyRequests, list("s1"))
	assert.Equal(t, http.StatusOK, list("s2"))

	// Health endpoints sit outside the limiter.
	rec := do(t, h, request{method: http.MethodGet, path: "/health/live", headers: session("s1")})
	assert.Equal(t, http.StatusOK, rec.Code)
}
