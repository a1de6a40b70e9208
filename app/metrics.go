package app

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	// ChangeEvents counts change events published to the feed, by kind.
	ChangeEvents *prometheus.CounterVec
	// FeedConnections is the number of open change feed connections.
	FeedConnections prometheus.Gauge
	SlowConsumers   prometheus.Counter
	// RejectedWrites counts message writes that failed, by operation.
	RejectedWrites *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChangeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gymchat",
			Name:      "change_events_total",
			Help:      "Change events published to room feeds",
		}, []string{"kind"}),
		FeedConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gymchat",
			Name:      "feed_connections",
			Help:      "Open change feed connections",
		}),
		SlowConsumers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gymchat",
			Name:      "feed_slow_consumers_total",
			Help:      "Feed connections dropped because their buffer was full",
		}),
		RejectedWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gymchat",
			Name:      "rejected_writes_total",
			Help:      "Message writes rejected by the server",
		}, []string{"op"}),
	}
	reg.MustRegister(m.ChangeEvents, m.FeedConnections, m.SlowConsumers, m.RejectedWrites)
	return m
}
