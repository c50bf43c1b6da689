package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
	Flush()
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

const (
	Label_Reason  = "reason"
	Label_Command = "command"
)

var (
	Metric_Incr_SettlementsGenerated = "settlements.generated"
	Metric_Incr_ClaimsGenerated      = "claims.generated"
	Metric_Incr_ValidatorsSkipped    = "validators.skipped"

	Metric_Gauge_SettlementsLamports = "settlements.lamports"
	Metric_Gauge_MerkleTrees         = "merkle.trees"

	Metric_Timing_MerkleBuildDuration = "merkle.build.duration"
	Metric_Timing_CommandDuration     = "command.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_SettlementsGenerated,
			Labels: []string{Label_Reason},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ClaimsGenerated,
			Labels: []string{Label_Reason},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ValidatorsSkipped,
			Labels: []string{Label_Reason},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_SettlementsLamports,
			Labels: []string{Label_Reason},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_MerkleTrees,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_MerkleBuildDuration,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_CommandDuration,
			Labels: []string{Label_Command},
		},
	},
}
