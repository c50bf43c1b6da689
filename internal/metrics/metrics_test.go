package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/marinade-finance/bonds-settlements/internal/config"
	"github.com/marinade-finance/bonds-settlements/internal/metrics/metricsTypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	incrs   map[string]float64
	gauges  map[string]float64
	timings map[string]time.Duration
	labels  []metricsTypes.MetricsLabel
	flushed int
	err     error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		incrs:   map[string]float64{},
		gauges:  map[string]float64{},
		timings: map[string]time.Duration{},
	}
}

func (f *fakeClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	f.incrs[name] += value
	f.labels = labels
	return f.err
}

func (f *fakeClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	f.gauges[name] = value
	f.labels = labels
	return f.err
}

func (f *fakeClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	f.timings[name] = value
	f.labels = labels
	return f.err
}

func (f *fakeClient) Flush() { f.flushed++ }

func Test_MetricsSink(t *testing.T) {
	t.Run("Test values fan out with default labels", func(t *testing.T) {
		a, b := newFakeClient(), newFakeClient()
		sink, err := NewMetricsSink(&MetricsSinkConfig{
			DefaultLabels: []metricsTypes.MetricsLabel{{Name: metricsTypes.Label_Command, Value: "generate-settlements"}},
		}, []metricsTypes.IMetricsClient{a, b})
		require.Nil(t, err)

		assert.Nil(t, sink.Incr(metricsTypes.Metric_Incr_ClaimsGenerated, Reason("Bidding"), 4))
		assert.Nil(t, sink.Gauge(metricsTypes.Metric_Gauge_MerkleTrees, 9, nil))
		assert.Nil(t, sink.Timing(metricsTypes.Metric_Timing_MerkleBuildDuration, time.Second, nil))
		sink.Flush()

		for _, c := range []*fakeClient{a, b} {
			assert.Equal(t, float64(4), c.incrs[metricsTypes.Metric_Incr_ClaimsGenerated])
			assert.Equal(t, float64(9), c.gauges[metricsTypes.Metric_Gauge_MerkleTrees])
			assert.Equal(t, time.Second, c.timings[metricsTypes.Metric_Timing_MerkleBuildDuration])
			assert.Equal(t, 1, c.flushed)
		}
	})
	t.Run("Test default labels come before call labels", func(t *testing.T) {
		c := newFakeClient()
		sink, _ := NewMetricsSink(&MetricsSinkConfig{
			DefaultLabels: []metricsTypes.MetricsLabel{{Name: "env", Value: "test"}},
		}, []metricsTypes.IMetricsClient{c})
		assert.Nil(t, sink.Incr("x", Reason("BondRiskFee"), 1))
		assert.Equal(t, []metricsTypes.MetricsLabel{{Name: "env", Value: "test"}, {Name: "reason", Value: "BondRiskFee"}}, c.labels)
	})
	t.Run("Test client errors are returned", func(t *testing.T) {
		c := newFakeClient()
		c.err = errors.New("boom")
		sink, _ := NewMetricsSink(&MetricsSinkConfig{}, []metricsTypes.IMetricsClient{c})
		assert.Error(t, sink.Incr("x", nil, 1))
	})
	t.Run("Test nothing enabled yields no clients", func(t *testing.T) {
		clients, pm, err := InitMetricsSinksFromConfig(&config.Config{}, zap.NewNop())
		assert.Nil(t, err)
		assert.Empty(t, clients)
		assert.Nil(t, pm)
	})
	t.Run("Test prometheus client is returned for serving", func(t *testing.T) {
		cfg := &config.Config{PrometheusConfig: config.PrometheusConfig{Enabled: true, Port: 2112}}
		clients, pm, err := InitMetricsSinksFromConfig(cfg, zap.NewNop())
		assert.Nil(t, err)
		assert.Len(t, clients, 1)
		assert.NotNil(t, pm)
	})
}
