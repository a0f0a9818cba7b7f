package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"
)

// Outcome labels for LogRequests.
const (
	OutcomeReceived    = "received"
	OutcomeProbe       = "probe"
	OutcomeNotFound    = "not_found"
	OutcomeDroppedRead = "dropped_read"
	OutcomeDroppedUTF8 = "dropped_utf8"
	OutcomeDroppedJSON = "dropped_json"
)

// Result labels for UIEvents and ProxyRequests.
const (
	UIEmitted      = "emitted"
	UIQueueFull    = "queue_full"
	UIUndelivered  = "undelivered"
	ProxyOK        = "ok"
	ProxyTransport = "transport_error"
	ProxyRead      = "read_error"
)

// Metrics holds the shell's counters on a private registry so tests can
// build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	// LogRequests
	// - every request reaching the log listener, labelled by what happened.
	// - dropped_* outcomes are requests that got no response at all.
	LogRequests *prometheus.CounterVec

	// UIEvents
	// - banners offered to the UI: emitted, dropped on a full queue, or
	//   refused by the UI side (no session, write timeout).
	UIEvents *prometheus.CounterVec

	// ProxyRequests / ProxyDuration
	// - outbound calls to the generation backend. Any HTTP status counts
	//   as ok; only transport and read failures are errors.
	ProxyRequests *prometheus.CounterVec
	ProxyDuration prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		LogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentlog_log_requests_total",
			Help: "Requests received by the log ingest listener, by outcome.",
		}, []string{"outcome"}),
		UIEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentlog_ui_events_total",
			Help: "log-line events offered to the UI, by result.",
		}, []string{"result"}),
		ProxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentlog_proxy_requests_total",
			Help: "Calls forwarded to the generation backend, by result.",
		}, []string{"result"}),
		ProxyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentlog_proxy_request_duration_seconds",
			Help:    "Wall time of calls to the generation backend.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
	reg.MustRegister(m.LogRequests, m.UIEvents, m.ProxyRequests, m.ProxyDuration)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr in the background. It is only called
// when METRICS_ADDR is set.
func (m *Metrics) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zlog.Info().Str("addr", addr).Msg("metrics listener started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Error().Err(err).Str("addr", addr).Msg("metrics listener stopped")
		}
	}()
	return srv
}
