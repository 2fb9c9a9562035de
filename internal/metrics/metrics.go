package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reservation results.
const (
	ResultReserved   = "reserved"
	ResultOutOfStock = "out_of_stock"
	ResultNotFound   = "not_found"
	ResultError      = "error"
)

// Checkout outcomes.
const (
	OutcomeCommitted          = "committed"
	OutcomeEmptyCart          = "empty_cart"
	OutcomeDeclined           = "declined"
	OutcomeCancelled          = "cancelled"
	OutcomeFailed             = "failed"
	OutcomeCompensationFailed = "compensation_failed"
)

// Checkout holds the orchestrator's instruments. A nil *Checkout is valid and
// records nothing.
type Checkout struct {
	Reservations         *prometheus.CounterVec
	Releases             *prometheus.CounterVec
	ReleasedUnits        prometheus.Counter
	Checkouts            *prometheus.CounterVec
	CompensationFailures prometheus.Counter
	PaymentDuration      *prometheus.HistogramVec
}

// New registers the checkout instruments with reg.
func New(reg prometheus.Registerer) *Checkout {
	f := promauto.With(reg)
	return &Checkout{
		Reservations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_inventory_reservations_total",
			Help: "Inventory reservation attempts, by result",
		}, []string{"result"}),
		Releases: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_inventory_releases_total",
			Help: "Inventory releases, by reason",
		}, []string{"reason"}),
		ReleasedUnits: f.NewCounter(prometheus.CounterOpts{
			Name: "checkout_inventory_released_units_total",
			Help: "Units returned to inventory",
		}),
		Checkouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_attempts_total",
			Help: "Checkout attempts, by outcome",
		}, []string{"outcome"}),
		CompensationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "checkout_compensation_failures_total",
			Help: "Releases that failed during compensation; stock may have drifted",
		}),
		PaymentDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkout_payment_duration_seconds",
			Help:    "Payment gateway charge latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "result"}),
	}
}

// ObserveReservation counts one reservation attempt.
func (m *Checkout) ObserveReservation(result string) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(result).Inc()
}

// ObserveRelease counts a release of qty units.
func (m *Checkout) ObserveRelease(reason string, qty int) {
	if m == nil {
		return
	}
	m.Releases.WithLabelValues(reason).Inc()
	m.ReleasedUnits.Add(float64(qty))
}

// ObserveCheckout counts a finished checkout.
func (m *Checkout) ObserveCheckout(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

// ObserveCompensationFailure counts a failed compensating release.
func (m *Checkout) ObserveCompensationFailure() {
	if m == nil {
		return
	}
	m.CompensationFailures.Inc()
}

// ObservePayment records a charge's latency.
func (m *Checkout) ObservePayment(provider, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.PaymentDuration.WithLabelValues(provider, result).Observe(d.Seconds())
}
