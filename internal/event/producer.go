package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/checkoutcore/internal/domain"
	pkgkafka "github.com/utafrali/checkoutcore/pkg/kafka"
	"github.com/utafrali/checkoutcore/pkg/logger"
)

// Kafka topics produced by the checkout service.
var (
	TopicOrderCommitted              = pkgkafka.Topic("order", "committed")
	TopicCheckoutFailed              = pkgkafka.Topic("checkout", "failed")
	TopicInventoryCompensationFailed = pkgkafka.Topic("inventory", "compensation_failed")
)

// Aggregate type constants.
const (
	AggregateTypeOrder    = "order"
	AggregateTypeCheckout = "checkout"
	AggregateTypeProduct  = "product"
)

// SourceCheckoutService identifies events originating from this service.
const SourceCheckoutService = "checkout-service"

// OrderCommittedData is the payload for an order.committed event.
type OrderCommittedData struct {
	OrderID       string             `json:"order_id"`
	SessionID     string             `json:"session_id"`
	UserID        string             `json:"user_id,omitempty"`
	Lines         []domain.OrderLine `json:"lines"`
	Subtotal      int64              `json:"subtotal"`
	Discount      int64              `json:"discount"`
	Total         int64              `json:"total"`
	TransactionID string             `json:"transaction_id"`
}

// CheckoutFailedData is the payload for a checkout.failed event.
type CheckoutFailedData struct {
	AttemptID     string `json:"attempt_id"`
	SessionID     string `json:"session_id"`
	FailureKind   string `json:"failure_kind"`
	FailureReason string `json:"failure_reason"`
}

// CompensationFailedData is the payload for an inventory.compensation_failed
// event. Operators use it to correct the drifted stock count.
type CompensationFailedData struct {
	SessionID string `json:"session_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Error     string `json:"error"`
}

// Producer publishes checkout domain events to Kafka. A nil *Producer is
// valid and publishes nothing, which is how the service runs without Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the checkout service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p == nil || p.kafka == nil {
		return nil
	}

	ev, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceCheckoutService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		ev.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// PublishOrderCommitted publishes an order.committed event.
func (p *Producer) PublishOrderCommitted(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, TopicOrderCommitted, order.ID, AggregateTypeOrder, OrderCommittedData{
		OrderID:       order.ID,
		SessionID:     order.SessionID,
		UserID:        order.UserID,
		Lines:         order.Lines,
		Subtotal:      order.Subtotal,
		Discount:      order.Discount,
		Total:         order.Total,
		TransactionID: order.TransactionID,
	})
}

// PublishCheckoutFailed publishes a checkout.failed event.
func (p *Producer) PublishCheckoutFailed(ctx context.Context, attempt *domain.CheckoutAttempt) error {
	return p.publish(ctx, TopicCheckoutFailed, attempt.ID, AggregateTypeCheckout, CheckoutFailedData{
		AttemptID:     attempt.ID,
		SessionID:     attempt.SessionID,
		FailureKind:   attempt.FailureKind,
		FailureReason: attempt.FailureReason,
	})
}

// PublishCompensationFailed publishes an inventory.compensation_failed event.
func (p *Producer) PublishCompensationFailed(ctx context.Context, sessionID, productID string, qty int, cause error) error {
	data := CompensationFailedData{
		SessionID: sessionID,
		ProductID: productID,
		Quantity:  qty,
	}
	if cause != nil {
		data.Error = cause.Error()
	}
	return p.publish(ctx, TopicInventoryCompensationFailed, productID, AggregateTypeProduct, data)
}
