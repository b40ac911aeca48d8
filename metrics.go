package auth

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ ActivitySink = (*MetricsSink)(nil)

// MetricsSink is an ActivitySink that counts auth events with Prometheus
type MetricsSink struct {
	Events *prometheus.CounterVec
}

// NewMetricsSink registers the auth counters with reg. A nil reg uses the
// default registerer.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &MetricsSink{
		Events: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "auth",
				Name:      "events_total",
				Help:      "Total number of authentication events",
			},
			[]string{"event", "provider", "code"}, // code is empty on success
		),
	}
}

// Record implements ActivitySink.
func (m *MetricsSink) Record(_ context.Context, event ActivityEvent) error {
	code := ""
	if v, ok := event.Metadata["code"]; ok && v != nil {
		code = fmt.Sprint(v)
	}
	m.Events.WithLabelValues(string(event.EventType), event.Provider, code).Inc()
	return nil
}
