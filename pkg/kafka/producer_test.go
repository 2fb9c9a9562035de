package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"b1:9092"})
	assert.Equal(t, []string{"b1:9092"}, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.False(t, cfg.Async)
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	m := NewMetrics(prometheus.NewRegistry())
	p := NewProducerWithWriter(w, nil, testLogger(), m)

	ev, err := NewEvent("order.committed", "ord-1", "order", "checkout", map[string]int{"total": 200})
	require.NoError(t, err)
	ev.WithCorrelationID("corr-9")

	require.NoError(t, p.Publish(context.Background(), Topic("order", "committed"), ev))

	msgs := w.written()
	require.Len(t, msgs, 1)
	assert.Equal(t, "shop.order.committed", msgs[0].Topic)
	assert.Equal(t, []byte("ord-1"), msgs[0].Key)

	c := NewHeaderCarrier(&msgs[0].Headers)
	assert.Equal(t, "order.committed", c.Get("event_type"))
	assert.Equal(t, "checkout", c.Get("source"))
	assert.Equal(t, "corr-9", c.Get("correlation_id"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Published.WithLabelValues("shop.order.committed")))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	m := NewMetrics(prometheus.NewRegistry())
	p := NewProducerWithWriter(w, nil, testLogger(), m)

	ev, err := NewEvent("checkout.failed", "s1", "checkout", "checkout", struct{}{})
	require.NoError(t, err)

	err = p.Publish(context.Background(), "shop.checkout.failed", ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event to shop.checkout.failed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishErrors.WithLabelValues("shop.checkout.failed")))
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}
