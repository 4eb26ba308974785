// Package metrics exposes lifecycle and concurrency outcomes as Prometheus
// counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// Recorder implements domain.MetricsRecorder.
type Recorder struct {
	transitions   *prometheus.CounterVec
	preconditions *prometheus.CounterVec
	registry      *prometheus.Registry
}

// New creates a Recorder and registers its counters on registry.
func New(registry *prometheus.Registry) *Recorder {
	r := &Recorder{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apiplane_lifecycle_transitions_total",
				Help: "Lifecycle actions evaluated, by entity kind, action and outcome",
			},
			[]string{"kind", "action", "outcome"},
		),
		preconditions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apiplane_precondition_failures_total",
				Help: "Requests rejected because the entity changed since it was read",
			},
			[]string{"kind"},
		),
		registry: registry,
	}
	registry.MustRegister(r.transitions, r.preconditions)
	return r
}

func (r *Recorder) TransitionApplied(kind domain.Kind, action domain.Action) {
	r.transitions.WithLabelValues(string(kind), string(action), "applied").Inc()
}

func (r *Recorder) TransitionRejected(kind domain.Kind, action domain.Action) {
	r.transitions.WithLabelValues(string(kind), string(action), "rejected").Inc()
}

func (r *Recorder) PreconditionFailed(kind domain.Kind) {
	r.preconditions.WithLabelValues(string(kind)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
