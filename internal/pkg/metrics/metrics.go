// Package metrics exposes Prometheus metrics for booking operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation names used as label values
const (
	OpReplaceBookings = "replace_bookings"
	OpCancelBooking   = "cancel_booking"
	OpDeleteStudent   = "delete_student"
)

// Outcome label values
const (
	OutcomeOK         = "ok"
	OutcomeValidation = "validation"
	OutcomeNotFound   = "not_found"
	OutcomeQuota      = "quota"
	OutcomeConflict   = "conflict"
	OutcomeInternal   = "internal"
)

// Recorder is what services use to report booking activity
type Recorder interface {
	RecordOperation(op, outcome string, duration time.Duration)
}

// Collector is the Prometheus implementation of Recorder
type Collector struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers it on reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotbook_booking_operations_total",
			Help: "Booking coordinator operations by outcome",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slotbook_booking_operation_duration_seconds",
			Help:    "Latency of booking coordinator operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(c.operations, c.latency)

	return c
}

// RecordOperation counts one coordinator call and observes its latency
func (c *Collector) RecordOperation(op, outcome string, duration time.Duration) {
	c.operations.WithLabelValues(op, outcome).Inc()
	c.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// Handler returns the scrape handler for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything
type Nop struct{}

// RecordOperation does nothing
func (Nop) RecordOperation(string, string, time.Duration) {}
