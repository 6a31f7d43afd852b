package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BackendMetrics records calls made to the storefront REST backend.
type BackendMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	csrf     prometheus.Counter
}

func NewBackendMetrics(reg prometheus.Registerer) *BackendMetrics {
	if reg == nil {
		return &BackendMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_backend_requests_total",
		Help: "Backend API requests by resource, method and status.",
	}, []string{"resource", "method", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_backend_request_duration_seconds",
		Help:    "Backend API request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource", "method"})
	csrf := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_backend_csrf_handshakes_total",
		Help: "CSRF handshakes issued against the backend.",
	})
	reg.MustRegister(requests, duration, csrf)
	return &BackendMetrics{requests: requests, duration: duration, csrf: csrf}
}

// Observe records one finished request. status 0 means a transport failure.
func (b *BackendMetrics) Observe(resource, method string, status int, elapsed time.Duration) {
	if b == nil || b.requests == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	b.requests.WithLabelValues(normalizeLabel(resource), method, code).Inc()
	b.duration.WithLabelValues(normalizeLabel(resource), method).Observe(elapsed.Seconds())
}

// IncCSRFHandshake counts a CSRF bootstrap request actually sent.
func (b *BackendMetrics) IncCSRFHandshake() {
	if b == nil || b.csrf == nil {
		return
	}
	b.csrf.Inc()
}

// StorefrontMetrics covers session-level events.
type StorefrontMetrics struct {
	sessions      prometheus.Gauge
	loginBlocked  prometheus.Counter
	loginFailures prometheus.Counter
	checkouts     prometheus.Counter
}

func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	m := &StorefrontMetrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_sessions_active",
			Help: "Storefront sessions currently held in memory.",
		}),
		loginBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_login_rate_limited_total",
			Help: "Login attempts refused by the lockout window.",
		}),
		loginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_login_failures_total",
			Help: "Failed login attempts.",
		}),
		checkouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "Completed checkouts.",
		}),
	}
	reg.MustRegister(m.sessions, m.loginBlocked, m.loginFailures, m.checkouts)
	return m
}

func (m *StorefrontMetrics) SetSessions(n int) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func (m *StorefrontMetrics) IncLoginBlocked() {
	if m == nil || m.loginBlocked == nil {
		return
	}
	m.loginBlocked.Inc()
}

func (m *StorefrontMetrics) IncLoginFailure() {
	if m == nil || m.loginFailures == nil {
		return
	}
	m.loginFailures.Inc()
}

func (m *StorefrontMetrics) IncCheckout() {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.Inc()
}
