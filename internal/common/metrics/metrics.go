// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Conversations and outbound queue
var (
	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbound_messages_total",
			Help: "New messages stored from the WhatsApp session by direction",
		},
		[]string{"direction"},
	)

	OutboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbound_messages_total",
			Help: "Outbound WhatsApp messages by dispatch outcome",
		},
		[]string{"status"},
	)

	OutboundQueuePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbound_queue_pending",
			Help: "Items waiting in the outbound queue",
		},
	)

	OutboundDispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbound_dispatch_duration_seconds",
			Help:    "Time spent in the transport send call",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Leads and negotiation
var (
	HotLeadsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hot_leads_detected_total",
			Help: "Contacts whose cumulative score reached the hot-lead threshold",
		},
	)

	LeadScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lead_score",
			Help:    "Cumulative lead score after each scored message",
			Buckets: []float64{0, 10, 25, 40, 55, 70, 85, 100},
		},
	)

	Negotiations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "negotiations_total",
			Help: "Negotiation outcomes by result type",
		},
		[]string{"type"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Hot-lead alerts by channel and outcome",
		},
		[]string{"channel", "status"},
	)
)
