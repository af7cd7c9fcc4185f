package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersExposed(t *testing.T) {
	before := testutil.ToFloat64(WebhookEvents.WithLabelValues("message", "recorded"))
	WebhookEvents.WithLabelValues("message", "recorded").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(WebhookEvents.WithLabelValues("message", "recorded")))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "inbox_webhook_events_total")
}
