package metrics

import (
	"strconv"
	"sync"
	"time"

	"parkwise/internal/events"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "parkwise"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"endpoint", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	entriesRegistered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_registered_total",
			Help:      "Vehicle entries registered per parking.",
		},
		[]string{"parking"},
	)

	entriesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_closed_total",
			Help:      "Vehicle exits registered per parking.",
		},
		[]string{"parking"},
	)

	revenue = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revenue_total",
			Help:      "Charged amount per parking.",
		},
		[]string{"parking"},
	)

	availableSpaces = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "available_spaces",
			Help:      "Free spaces per parking as of the last transition.",
		},
		[]string{"parking"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_tasks_total",
			Help:      "Notification task outcomes by type.",
		},
		[]string{"type", "status"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			entriesRegistered,
			entriesClosed,
			revenue,
			availableSpaces,
			notifications,
			rateLimited,
		)
	})
}

func ObserveHTTP(endpoint string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func IncNotification(taskType, status string) {
	notifications.WithLabelValues(taskType, status).Inc()
}

func IncRateLimited() {
	rateLimited.Inc()
}

func SetAvailableSpaces(parking string, available int64) {
	availableSpaces.WithLabelValues(parking).Set(float64(available))
}

// SubscribeToEvents keeps the entry counters and space gauges in step with the
// entry lifecycle.
func SubscribeToEvents(bus *events.EventBus) {
	bus.Subscribe(events.EventEntryRegistered, func(e *events.Event) error {
		var p events.EntryEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		entriesRegistered.WithLabelValues(p.ParkingCode).Inc()
		SetAvailableSpaces(p.ParkingCode, p.AvailableSpaces)
		return nil
	})

	bus.Subscribe(events.EventEntryClosed, func(e *events.Event) error {
		var p events.EntryEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		entriesClosed.WithLabelValues(p.ParkingCode).Inc()
		revenue.WithLabelValues(p.ParkingCode).Add(p.ChargedAmount)
		SetAvailableSpaces(p.ParkingCode, p.AvailableSpaces)
		return nil
	})

	bus.Subscribe(events.EventParkingChanged, func(e *events.Event) error {
		var p events.ParkingEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		if p.Deleted {
			availableSpaces.DeleteLabelValues(p.ParkingCode)
			return nil
		}
		SetAvailableSpaces(p.ParkingCode, p.AvailableSpaces)
		return nil
	})
}
