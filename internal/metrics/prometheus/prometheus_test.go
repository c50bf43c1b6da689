package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marinade-finance/bonds-settlements/internal/metrics/metricsTypes"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func Test_PrometheusMetricsClient(t *testing.T) {
	c, err := NewPrometheusMetricsClient(&PrometheusMetricsConfig{Metrics: metricsTypes.MetricTypes}, zap.NewNop())
	require.Nil(t, err)

	t.Run("Test counters with a reason label", func(t *testing.T) {
		labels := []metricsTypes.MetricsLabel{
			{Name: metricsTypes.Label_Reason, Value: "Bidding"},
			{Name: "undeclared", Value: "dropped"},
		}
		assert.Nil(t, c.Incr(metricsTypes.Metric_Incr_SettlementsGenerated, labels, 2))
		assert.Nil(t, c.Incr(metricsTypes.Metric_Incr_SettlementsGenerated, labels, 3))
		assert.Equal(t, float64(5), testutil.ToFloat64(c.counters[metricsTypes.Metric_Incr_SettlementsGenerated].WithLabelValues("Bidding")))
	})
	t.Run("Test missing labels are filled in", func(t *testing.T) {
		assert.Nil(t, c.Gauge(metricsTypes.Metric_Gauge_SettlementsLamports, 42, nil))
		assert.Equal(t, float64(42), testutil.ToFloat64(c.gauges[metricsTypes.Metric_Gauge_SettlementsLamports].WithLabelValues("")))
	})
	t.Run("Test unknown metrics are ignored", func(t *testing.T) {
		assert.Nil(t, c.Incr("nope", nil, 1))
		assert.Nil(t, c.Gauge("nope", 1, nil))
		assert.Nil(t, c.Timing("nope", time.Second, nil))
	})
	t.Run("Test a second client registers independently", func(t *testing.T) {
		_, err := NewPrometheusMetricsClient(&PrometheusMetricsConfig{Metrics: metricsTypes.MetricTypes}, zap.NewNop())
		assert.Nil(t, err)
	})
	t.Run("Test metrics are served with sanitized names", func(t *testing.T) {
		assert.Nil(t, c.Timing(metricsTypes.Metric_Timing_MerkleBuildDuration, 20*time.Millisecond, nil))

		srv := NewPrometheusServer(&PrometheusServerConfig{Port: 0}, c.Registry(), zap.NewNop())
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		body := rec.Body.String()
		assert.True(t, strings.Contains(body, `bonds_settlements_settlements_generated_total{reason="Bidding"} 5`))
		assert.True(t, strings.Contains(body, "bonds_settlements_merkle_build_duration_ms_count 1"))
	})
}
