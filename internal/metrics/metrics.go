package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"eventTickets/internal/model"
)

var (
	registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_registrations_total",
			Help: "Registration attempts by outcome",
		},
		[]string{"result"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets minted by committed registrations",
		},
	)

	redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_redemptions_total",
			Help: "Scan attempts by outcome",
		},
		[]string{"result"},
	)

	cancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_cancellations_total",
			Help: "Cancellation attempts by outcome",
		},
		[]string{"result"},
	)

	inventoryDrift = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_drift_corrections_total",
			Help: "Event counters restored by the reconciler",
		},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Result maps an operation error onto a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, model.ErrTicketAlreadyUsed):
		return "already_used"
	case errors.Is(err, model.ErrTicketCancelled):
		return "cancelled"
	case errors.Is(err, model.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, model.ErrForbidden), errors.Is(err, model.ErrUnauthorized):
		return "denied"
	case errors.Is(err, model.ErrInvalidInput):
		return "invalid_input"
	}
	return "error"
}

func ObserveRegistration(err error, tickets int) {
	registrations.WithLabelValues(Result(err)).Inc()
	if err == nil {
		ticketsIssued.Add(float64(tickets))
	}
}

func ObserveRedemption(err error) {
	redemptions.WithLabelValues(Result(err)).Inc()
}

func ObserveCancellation(err error) {
	cancellations.WithLabelValues(Result(err)).Inc()
}

func InventoryDriftCorrected() {
	inventoryDrift.Inc()
}

func ObserveRequest(method, route, status string, elapsed time.Duration) {
	requestDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}
