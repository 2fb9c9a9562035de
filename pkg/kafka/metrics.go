package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds producer and consumer instruments. Build one per registry.
type Metrics struct {
	Published      *prometheus.CounterVec
	PublishErrors  *prometheus.CounterVec
	Processed      *prometheus.CounterVec
	Failed         *prometheus.CounterVec
	DeadLettered   *prometheus.CounterVec
	HandleDuration *prometheus.HistogramVec
}

// NewMetrics registers the kafka instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_messages_published_total",
			Help: "Messages published, by topic",
		}, []string{"topic"}),
		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_publish_errors_total",
			Help: "Publish failures, by topic",
		}, []string{"topic"}),
		Processed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_processed_total",
			Help: "Messages handled successfully",
		}, []string{"topic", "consumer_group"}),
		Failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_failed_total",
			Help: "Messages that exhausted handler retries",
		}, []string{"topic", "consumer_group"}),
		DeadLettered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_dead_lettered_total",
			Help: "Messages forwarded to a dead-letter topic",
		}, []string{"topic", "consumer_group"}),
		HandleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kafka_consumer_processing_duration_seconds",
			Help:    "Handler execution time",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic", "consumer_group"}),
	}
}
