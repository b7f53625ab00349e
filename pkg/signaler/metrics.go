package signaler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "snapbooth",
		Name:      "push_connections",
		Help:      "Number of live push transport connections.",
	})
	relayedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "snapbooth",
		Name:      "relayed_frames_total",
		Help:      "Number of signaling frames forwarded by the push hub.",
	})
)
