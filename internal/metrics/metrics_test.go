package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	c := NewCollector("goarea_test")

	c.RoundStarted()
	c.RoundStarted()
	c.RoundCommitted()
	c.RoundSuperseded()
	c.IntegratorCall("area", 10*time.Millisecond)
	c.SetIntegratorAvailable(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.RoundsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RoundsCommitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RoundsSuperseded))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.IntegratorCalls.WithLabelValues("area")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.IntegratorUp))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goarea_test_rounds_started_total 2")
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RoundStarted()
		c.RoundCommitted()
		c.RoundSuperseded()
		c.TriggerSuppressed()
		c.IntegratorCall("area", time.Millisecond)
		c.SetIntegratorAvailable(true)
	})
}
