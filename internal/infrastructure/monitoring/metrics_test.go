package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordFetch(KindScript, nil, time.Millisecond)
		m.RecordCacheLookup(KindStylesheet, TierGlobal, true)
		m.RecordCacheWrite(KindStylesheet, false)
		m.RecordMount(nil)
		m.RecordUnmount()
		m.RecordHTTPRequest("GET", "/apps", "200", time.Millisecond)
		NewTimer(m, KindDocument).Stop(nil)
	})
	assert.Nil(t, m.Registry())
}

func TestRecordFetch(t *testing.T) {
	m := NewMetrics()

	m.RecordFetch(KindStylesheet, nil, 10*time.Millisecond)
	m.RecordFetch(KindStylesheet, errors.New("boom"), time.Millisecond)
	NewTimer(m, KindScript).Stop(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues(KindStylesheet, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues(KindStylesheet, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues(KindScript, "success")))
}

func TestCacheCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordCacheLookup(KindStylesheet, TierApp, false)
	m.RecordCacheLookup(KindStylesheet, TierGlobal, true)
	m.RecordCacheWrite(KindStylesheet, true)
	m.RecordCacheWrite(KindStylesheet, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(KindStylesheet, TierApp, "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(KindStylesheet, TierGlobal, "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWrites.WithLabelValues(KindStylesheet, "stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWrites.WithLabelValues(KindStylesheet, "ignored")))
}

func TestMountGauge(t *testing.T) {
	m := NewMetrics()

	m.RecordMount(nil)
	m.RecordMount(nil)
	m.RecordMount(errors.New("unreachable"))
	m.RecordUnmount()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AppsMounted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MountsTotal.WithLabelValues("error")))
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/apps/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, id := range []string{"app_1", "app_2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/apps/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/apps/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "microhost_http_requests_total")
}
