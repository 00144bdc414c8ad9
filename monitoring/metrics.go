package monitoring

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)

var (
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by role and outcome",
		},
		[]string{"role", "outcome"},
	)

	InvitationsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "invitations_sent_total",
			Help: "Invitation emails delivered",
		},
	)

	MailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "invitation_mail_failures_total",
			Help: "Invitation emails that could not be delivered",
		},
	)

	EstateSaves = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "estate_records_saved_total",
			Help: "Estate record saves",
		},
	)

	EventPublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "client_event_publish_failures_total",
			Help: "Client events that could not be published",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			RequestDuration,
			LoginsTotal,
			InvitationsSent,
			MailFailures,
			EstateSaves,
			EventPublishFailures,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
