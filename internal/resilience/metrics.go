package resilience

import "github.com/prometheus/client_golang/prometheus"

var (
	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "outbound_breaker_state",
			Help: "Breaker state per outbound target: 0=closed, 1=open, 2=half-open.",
		},
		[]string{"target"},
	)
	breakerOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbound_breaker_open_total",
			Help: "Times a breaker tripped open per outbound target.",
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(breakerState, breakerOpened)
}

func (b *Breaker) recordState() {
	var v float64
	switch b.state {
	case Open:
		v = 1
	case HalfOpen:
		v = 2
	}
	breakerState.WithLabelValues(b.targetLabel()).Set(v)
}

func (b *Breaker) recordTransition(_, to State) {
	if to == Open {
		breakerOpened.WithLabelValues(b.targetLabel()).Inc()
	}
}
