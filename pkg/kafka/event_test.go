package kafka

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priceChanged struct {
	ProductID string `json:"product_id"`
	UnitPrice int64  `json:"unit_price"`
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "shop.order.committed", Topic("order", "committed"))
	assert.Equal(t, "shop.product.price_changed", Topic("product", "price_changed"))
	assert.Equal(t, "shop.order.committed.dlq", DLQTopic(Topic("order", "committed")))
}

func TestNewEvent_RoundTrip(t *testing.T) {
	ev, err := NewEvent("product.price_changed", "p1", "product", "catalog", priceChanged{ProductID: "p1", UnitPrice: 150})
	require.NoError(t, err)

	_, err = uuid.Parse(ev.EventID)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Version)
	assert.False(t, ev.Timestamp.IsZero())

	ev.WithCorrelationID("corr-1").WithMetadata("session_id", "s1")

	raw, err := ev.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, ev.EventID, decoded.EventID)
	assert.Equal(t, "corr-1", decoded.CorrelationID)
	assert.Equal(t, "s1", decoded.Metadata["session_id"])

	var payload priceChanged
	require.NoError(t, decoded.UnmarshalData(&payload))
	assert.Equal(t, priceChanged{ProductID: "p1", UnitPrice: 150}, payload)
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	_, err := NewEvent("x", "a", "b", "c", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal x payload")
}

func TestUnmarshalEvent_Rejects(t *testing.T) {
	for _, raw := range []string{"", "{not json", `{"event_id":"e1"}`} {
		_, err := UnmarshalEvent([]byte(raw))
		assert.Error(t, err, "input %q", raw)
	}
}
