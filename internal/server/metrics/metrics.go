// Package metrics exposes Prometheus counters for authentication, lockout,
// key deletion and decryption events. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dropkeeper"

// Decryption outcomes.
const (
	DecryptOK             = "ok"
	DecryptKeyUnavailable = "key_unavailable"
	DecryptNotFound       = "not_found"
	DecryptError          = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	loginAttempts   *prometheus.CounterVec
	lockouts        prometheus.Counter
	keysDeleted     prometheus.Counter
	decryptions     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Journalist login attempts by outcome.",
		}, []string{"outcome"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lockouts_total",
			Help:      "Login attempts rejected because the account was locked.",
		}),
		keysDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_keys_deleted_total",
			Help:      "Source keypairs irreversibly deleted.",
		}),
		decryptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decryptions_total",
			Help:      "Submission decryptions by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}

	m.registry.MustRegister(
		m.loginAttempts, m.lockouts, m.keysDeleted, m.decryptions, m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Lockout() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

func (m *Metrics) SourceKeyDeleted() {
	if m == nil {
		return
	}
	m.keysDeleted.Inc()
}

func (m *Metrics) Decryption(outcome string) {
	if m == nil {
		return
	}
	m.decryptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRequest(method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, code).Observe(elapsed.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
