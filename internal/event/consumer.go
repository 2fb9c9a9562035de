package event

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
	pkgkafka "github.com/utafrali/checkoutcore/pkg/kafka"
)

// TopicProductPriceChanged is consumed to keep unit prices current.
var TopicProductPriceChanged = pkgkafka.Topic("product", "price_changed")

// PriceSetter defines the catalog operation required by the consumer.
type PriceSetter interface {
	SetPrice(ctx context.Context, productID string, unitPrice int64) error
}

// PriceChangedData is the expected payload of a product.price_changed event.
type PriceChangedData struct {
	ProductID string `json:"product_id"`
	UnitPrice int64  `json:"unit_price"`
}

// Consumer processes incoming Kafka events for the checkout service.
type Consumer struct {
	catalog PriceSetter
	logger  *slog.Logger
}

// NewConsumer creates a new event consumer.
func NewConsumer(catalog PriceSetter, logger *slog.Logger) *Consumer {
	return &Consumer{catalog: catalog, logger: logger}
}

// HandlePriceChanged applies a product.price_changed event. Events for unknown
// products or with invalid prices are dropped; retrying would not help.
func (c *Consumer) HandlePriceChanged(ctx context.Context, event *pkgkafka.Event) error {
	var data PriceChangedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal product.price_changed data: %w", err)
	}

	err := c.catalog.SetPrice(ctx, data.ProductID, data.UnitPrice)
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.KindNotFound), apperrors.Is(err, apperrors.KindInvalidArgument):
		c.logger.WarnContext(ctx, "dropping product.price_changed event",
			slog.String("event_id", event.EventID),
			slog.String("product_id", data.ProductID),
			slog.String("error", err.Error()),
		)
		return nil
	default:
		return fmt.Errorf("set price for product %s: %w", data.ProductID, err)
	}

	c.logger.InfoContext(ctx, "product price updated",
		slog.String("product_id", data.ProductID),
		slog.Int64("unit_price", data.UnitPrice),
	)
	return nil
}
