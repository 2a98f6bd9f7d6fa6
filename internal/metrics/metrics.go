// Package metrics exports token lifecycle counters in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oauth"

// Recorder implements auth.Recorder with Prometheus counters held in its own
// registry.
type Recorder struct {
	registry *prometheus.Registry
	issued   *prometheus.CounterVec
	revoked  *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

// NewRecorder creates the counters and registers them together with the Go
// runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens issued, by kind.",
		}, []string{"kind"}),
		revoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_revoked_total",
			Help:      "Tokens revoked, by kind and whether a grace period applied.",
		}, []string{"kind", "graced"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_rejections_total",
			Help:      "Client authentication failures, by reason.",
		}, []string{"reason"}),
	}
	r.registry.MustRegister(
		r.issued,
		r.revoked,
		r.rejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

var _ auth.Recorder = (*Recorder)(nil)

func (r *Recorder) TokenIssued(kind auth.TokenKind) {
	r.issued.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) TokenRevoked(kind auth.TokenKind, graced bool) {
	r.revoked.WithLabelValues(string(kind), strconv.FormatBool(graced)).Inc()
}

func (r *Recorder) ClientRejected(reason string) {
	r.rejected.WithLabelValues(reason).Inc()
}

// Handler serves the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
