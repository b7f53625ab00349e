package rooms

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "snapbooth",
		Name:      "rooms",
		Help:      "Number of live rooms.",
	})
	participantsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "snapbooth",
		Name:      "participants",
		Help:      "Number of joined participants over all rooms.",
	})
)
