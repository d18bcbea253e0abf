package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Offer metrics
	Offers *prometheus.CounterVec

	// Settlement metrics
	Settlements        prometheus.Counter
	SettlementFailures *prometheus.CounterVec
	SettlementDuration prometheus.Histogram
	TransferFee        prometheus.Histogram
	CascadeRejections  prometheus.Counter

	// Ledger metrics
	LedgerPostings *prometheus.CounterVec
	RuleFirings    *prometheus.CounterVec

	// Market metrics
	MarketOpen prometheus.Gauge

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBRetries prometheus.Counter

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisErrors     *prometheus.CounterVec
	LockContention  prometheus.Counter

	// Outbox metrics
	EventsPublished *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec

	// Authentication metrics
	AuthFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Audit metrics
	AuditLogsCreated *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all metrics and registers them on reg
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Offer metrics
		Offers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubmarket_offers_total",
				Help: "Offer transitions by resulting status",
			},
			[]string{"status"},
		),

		// Settlement metrics
		Settlements: factory.NewCounter(prometheus.CounterOpts{
			Name: "clubmarket_settlements_total",
			Help: "Total number of completed settlements",
		}),
		SettlementFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubmarket_settlement_failures_total",
				Help: "Failed settlements by error kind",
			},
			[]string{"reason"},
		),
		SettlementDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "clubmarket_settlement_duration_seconds",
			Help:    "Duration of settlement operations",
			Buckets: prometheus.DefBuckets,
		}),
		TransferFee: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "clubmarket_transfer_fee",
			Help:    "Settled transfer fees",
			Buckets: []float64{1000, 10000, 100000, 1000000, 10000000, 100000000},
		}),
		CascadeRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "clubmarket_cascade_rejections_total",
			Help: "Competing offers rejected because their player was transferred",
		}),

		// Ledger metrics
		LedgerPostings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubmarket_ledger_postings_total",
				Help: "Wallet transactions posted by type",
			},
			[]string{"type"},
		),
		RuleFirings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubmarket_rule_firings_total",
				Help: "Automatic rule triggers fired",
			},
			[]string{"trigger"},
		),

		// Market metrics
		MarketOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "clubmarket_market_open",
			Help: "1 when the transfer window is open",
		}),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubmarket_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clubmarket_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "clubmarket_db_retries_total",
			Help: "Transactions retried after serialization failures or deadlocks",
		}),

		// Redis metrics
		RedisOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubmarket_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubmarket_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),
		LockContention: factory.NewCounter(prometheus.CounterOpts{
			Name: "clubmarket_lock_contention_total",
			Help: "Settlement lock attempts that found the lock held",
		}),

		// Outbox metrics
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubmarket_events_published_total",
				Help: "Outbox events delivered by type",
			},
			[]string{"event_type"},
		),
		PublishFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubmarket_event_publish_failures_total",
				Help: "Outbox events that failed to deliver by type",
			},
			[]string{"event_type"},
		),

		// Authentication metrics
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubmarket_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubmarket_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),

		// Audit metrics
		AuditLogsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clubmarket_audit_logs_total",
				Help: "Total audit logs created",
			},
			[]string{"action", "status"},
		),
	}
}
