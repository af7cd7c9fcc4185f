package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WebhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inbox",
		Name:      "webhook_events_total",
		Help:      "Webhook messages and statuses processed, by kind and outcome.",
	}, []string{"kind", "outcome"})

	OutboundMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inbox",
		Name:      "outbound_messages_total",
		Help:      "Messages handed to the Cloud API, by type and outcome.",
	}, []string{"type", "outcome"})

	CatalogSync = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inbox",
		Name:      "catalog_sync_total",
		Help:      "Catalogue product sync attempts, by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(WebhookEvents, OutboundMessages, CatalogSync)
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
