package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReservationTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cibf_reservation_transitions_total",
			Help: "Reservation state transitions by resulting status",
		},
		[]string{"status"},
	)

	ReservationRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cibf_reservation_rejections_total",
			Help: "Rejected reservation operations by error kind",
		},
		[]string{"op", "kind"},
	)

	QuotaBackstopCancellationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cibf_quota_backstop_cancellations_total",
			Help: "Reservations cancelled after commit because the user exceeded the quota",
		},
	)

	StallOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cibf_stall_operations_total",
			Help: "Stall allocator operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cibf_notifications_total",
			Help: "Notification deliveries by event kind and outcome (sent, skipped, degraded, duplicate)",
		},
		[]string{"event", "outcome"},
	)

	ConsumerMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cibf_consumer_messages_total",
			Help: "Consumed messages by topic and outcome",
		},
		[]string{"consumer", "topic", "outcome"},
	)

	ConsumerHandleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cibf_consumer_handle_duration_seconds",
			Help:    "Time spent handling one message including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"consumer", "topic"},
	)

	OutboxPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cibf_outbox_published_total",
			Help: "Outbox rows published by relay",
		},
		[]string{"relay"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cibf_http_request_duration_seconds",
			Help:    "HTTP request duration by route and status code",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)
)

var once sync.Once

// Register registers all collectors with the default registry. Safe to call
// more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(ReservationTransitionsTotal)
		prometheus.MustRegister(ReservationRejectionsTotal)
		prometheus.MustRegister(QuotaBackstopCancellationsTotal)
		prometheus.MustRegister(StallOperationsTotal)
		prometheus.MustRegister(NotificationsTotal)
		prometheus.MustRegister(ConsumerMessagesTotal)
		prometheus.MustRegister(ConsumerHandleDuration)
		prometheus.MustRegister(OutboxPublishedTotal)
		prometheus.MustRegister(HTTPRequestDuration)
	})
}
