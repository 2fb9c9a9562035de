package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
	"github.com/utafrali/checkoutcore/pkg/httpclient"
)

const chargePath = "/api/v1/charges"

// CircuitOpenFallback answers for the payment provider while its breaker is
// open, so callers see a retry hint instead of the raw breaker error.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("payment provider is temporarily unavailable, please retry later")
}

// HTTPGateway charges through an external payment service. Callers normally
// pass a *httpclient.CircuitBreakerClient as the Doer.
type HTTPGateway struct {
	client  httpclient.Doer
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

// NewHTTPGateway creates a gateway posting charges to baseURL.
func NewHTTPGateway(client httpclient.Doer, baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPGateway {
	return &HTTPGateway{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

// Name returns the provider name.
func (g *HTTPGateway) Name() string {
	return "http"
}

type chargeRequest struct {
	Amount int64  `json:"amount"`
	Source string `json:"source"`
}

type chargeResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

// Charge posts the charge. An idempotency key is attached so the retrying
// client may replay the request without double charging.
func (g *HTTPGateway) Charge(ctx context.Context, amount int64, credential string) (*Charge, error) {
	if err := validateCharge(amount, credential); err != nil {
		return nil, err
	}

	b := httpclient.NewRequestBuilder().
		Method(http.MethodPost).
		URL(g.baseURL+chargePath).
		Header(httpclient.IdempotencyKeyHeader, uuid.New().String()).
		JSONBody(chargeRequest{Amount: amount, Source: credential})
	if g.timeout > 0 {
		b.Timeout(g.timeout)
	}
	outbound, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build charge request: %w", err)
	}

	req, cancel, err := outbound.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call payment service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, httpclient.ParseResponseError(resp, "payment")
	}

	var body chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode charge response: %w", err)
	}

	if body.Status != "succeeded" {
		reason := body.FailureReason
		if reason == "" {
			reason = "payment " + body.Status
		}
		return nil, apperrors.PaymentDeclined(reason)
	}
	if body.TransactionID == "" {
		return nil, fmt.Errorf("payment service returned no transaction id")
	}

	g.logger.InfoContext(ctx, "payment charged",
		slog.String("transaction_id", body.TransactionID),
		slog.Int64("amount", amount),
	)

	return &Charge{
		TransactionID: body.TransactionID,
		Amount:        amount,
		Provider:      g.Name(),
		ChargedAt:     time.Now().UTC(),
	}, nil
}
