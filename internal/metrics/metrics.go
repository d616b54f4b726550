// Package metrics declares the Prometheus collectors of the service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// RateLimitDecisions counts limiter outcomes: allowed, blocked or
	// fail_open when the counter store errored.
	RateLimitDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_decisions_total",
		Help: "Rate limiter decisions by class and result",
	}, []string{"class", "result"})

	AuthEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_events_total",
		Help: "Authentication events by kind and outcome",
	}, []string{"event", "outcome"})

	MailJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_jobs_total",
		Help: "Activation mail jobs by outcome",
	}, []string{"outcome"})
)

// Register adds every collector to reg, or to the default registerer when
// reg is nil.  Only the first call has an effect.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(HTTPRequests, HTTPDuration, RateLimitDecisions, AuthEvents, MailJobs)
	})
}

// AuthEvent records one authentication event.
func AuthEvent(event string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	AuthEvents.WithLabelValues(event, outcome).Inc()
}
