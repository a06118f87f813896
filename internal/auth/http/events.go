package http

import "github.com/prometheus/client_golang/prometheus"

// AuthEvents counts authentication outcomes by event and result.
type AuthEvents struct {
	total *prometheus.CounterVec
}

func NewAuthEvents(reg prometheus.Registerer, namespace string) *AuthEvents {
	e := &AuthEvents{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Authentication events by outcome.",
		}, []string{"event", "result"}),
	}
	reg.MustRegister(e.total)
	return e
}

// record is nil-safe so handlers work without metrics.
func (e *AuthEvents) record(event string, err error) {
	if e == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	e.total.WithLabelValues(event, result).Inc()
}
