package internal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	oauthExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_exchanges_total",
			Help: "Discord OAuth code exchanges by outcome",
		},
		[]string{"outcome"},
	)

	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Webhook notification deliveries by outcome",
		},
		[]string{"outcome"},
	)
)
