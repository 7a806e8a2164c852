package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_email_jobs_scheduled_total",
			Help: "Total email jobs accepted by the provider",
		},
		[]string{"type"},
	)

	ScheduleFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_email_schedule_failures_total",
			Help: "Total email jobs the provider did not accept",
		},
		[]string{"type"},
	)

	JobsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_email_jobs_cancelled_total",
			Help: "Total email jobs cancelled",
		},
	)

	CancelFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_email_cancel_failures_total",
			Help: "Total email job cancellations the provider rejected",
		},
	)

	JobsRetried = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_email_jobs_retried_total",
			Help: "Total failed email jobs resubmitted",
		},
	)

	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_update_notifications_total",
			Help: "Total session update notifications by outcome",
		},
		[]string{"outcome"},
	)

	DeliveryEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_delivery_events_total",
			Help: "Total provider delivery events applied",
		},
		[]string{"status"},
	)

	ProviderRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "email_provider_request_duration_seconds",
			Help:    "Latency of email provider API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)
)

func Init() {
	prometheus.MustRegister(JobsScheduled)
	prometheus.MustRegister(ScheduleFailures)
	prometheus.MustRegister(JobsCancelled)
	prometheus.MustRegister(CancelFailures)
	prometheus.MustRegister(JobsRetried)
	prometheus.MustRegister(NotificationsSent)
	prometheus.MustRegister(DeliveryEvents)
	prometheus.MustRegister(ProviderRequests)
}
