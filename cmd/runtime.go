package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/marinade-finance/bonds-settlements/internal/config"
	"github.com/marinade-finance/bonds-settlements/internal/logger"
	"github.com/marinade-finance/bonds-settlements/internal/metrics"
	"github.com/marinade-finance/bonds-settlements/internal/metrics/metricsTypes"
	"github.com/marinade-finance/bonds-settlements/internal/metrics/prometheus"
	"github.com/marinade-finance/bonds-settlements/internal/shutdown"
	"github.com/marinade-finance/bonds-settlements/pkg/artifacts"
	"github.com/marinade-finance/bonds-settlements/pkg/merkleTrees"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// runtime is what every command needs once flags are parsed.
type runtime struct {
	command string
	cfg     *config.Config
	logger  *zap.Logger
	sink    *metrics.MetricsSink
	writer  *artifacts.Writer
	started time.Time
	cancel  context.CancelFunc
}

func bindCommandFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		if err := viper.BindPFlag(key, f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(key); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}

func newRuntime(ctx context.Context, cmd *cobra.Command) (*runtime, context.Context, error) {
	bindCommandFlags(cmd)
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, err
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, Name: cmd.Name()})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	clients, pm, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup metrics: %w", err)
	}
	sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{
		DefaultLabels: []metricsTypes.MetricsLabel{{Name: metricsTypes.Label_Command, Value: cmd.Name()}},
	}, clients)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup metrics sink: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	go shutdown.ListenForShutdown(ctx, shutdown.CreateGracefulShutdownChannel(), cancel, l)
	if pm != nil {
		prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{Port: cfg.PrometheusConfig.Port}, pm.Registry(), l).Start(ctx)
	}

	return &runtime{
		command: cmd.Name(),
		cfg:     cfg,
		logger:  l,
		sink:    sink,
		writer: artifacts.NewWriter(&artifacts.WriterConfig{
			Dir:       cfg.OutputConfig.Dir,
			Checksums: cfg.OutputConfig.Checksums,
			Progress:  cfg.OutputConfig.Progress,
		}, l),
		started: time.Now(),
		cancel:  cancel,
	}, ctx, nil
}

func (rt *runtime) close() {
	if err := rt.sink.Since(metricsTypes.Metric_Timing_CommandDuration, rt.started, nil); err != nil {
		rt.logger.Sugar().Warnw("Failed to record command duration", zap.Error(err))
	}
	rt.sink.Flush()
	rt.cancel()
	_ = rt.logger.Sync()
}

func (rt *runtime) warnOnMetricsError(err error) {
	if err != nil {
		rt.logger.Sugar().Warnw("Failed to record metric", zap.Error(err))
	}
}

func (rt *runtime) recordSettlements(collection *settlements.SettlementCollection) {
	counts := make(map[settlements.ReasonKind]int)
	claims := make(map[settlements.ReasonKind]int)
	lamports := make(map[settlements.ReasonKind]uint64)
	for _, s := range collection.Settlements {
		counts[s.Reason.Kind]++
		claims[s.Reason.Kind] += len(s.Claims)
		lamports[s.Reason.Kind] += s.ClaimsAmount
	}
	for reason, n := range counts {
		labels := metrics.Reason(string(reason))
		rt.warnOnMetricsError(rt.sink.Incr(metricsTypes.Metric_Incr_SettlementsGenerated, labels, float64(n)))
		rt.warnOnMetricsError(rt.sink.Incr(metricsTypes.Metric_Incr_ClaimsGenerated, labels, float64(claims[reason])))
		rt.warnOnMetricsError(rt.sink.Gauge(metricsTypes.Metric_Gauge_SettlementsLamports, float64(lamports[reason]), labels))
	}
}

func (rt *runtime) recordSkipped(skipped map[string]int) {
	for reason, n := range skipped {
		rt.warnOnMetricsError(rt.sink.Incr(metricsTypes.Metric_Incr_ValidatorsSkipped, metrics.Reason(reason), float64(n)))
	}
}

func (rt *runtime) merkleBuilder() *merkleTrees.Builder {
	return merkleTrees.NewBuilder(rt.cfg.ValidatorBondsConfig, rt.cfg.MerkleConfig.Workers, rt.logger)
}

// buildTrees times a merkle build and records how many trees it produced.
func (rt *runtime) buildTrees(build func() (*merkleTrees.MerkleTreeCollection, error)) (*merkleTrees.MerkleTreeCollection, error) {
	start := time.Now()
	trees, err := build()
	if err != nil {
		return nil, err
	}
	rt.warnOnMetricsError(rt.sink.Since(metricsTypes.Metric_Timing_MerkleBuildDuration, start, nil))
	rt.warnOnMetricsError(rt.sink.Gauge(metricsTypes.Metric_Gauge_MerkleTrees, float64(len(trees.MerkleTrees)), nil))
	return trees, nil
}

// writeSettlementOutputs writes the settlement collection, the optional tree
// collection and csv reports, then the manifest.
func (rt *runtime) writeSettlementOutputs(
	collection *settlements.SettlementCollection,
	settlementsPath string,
	trees *merkleTrees.MerkleTreeCollection,
	treesPath string,
) error {
	if _, err := rt.writer.WriteJSON(settlementsPath, collection); err != nil {
		return err
	}
	if rt.cfg.OutputConfig.CsvReport {
		if _, err := rt.writer.WriteCsv(csvPath(settlementsPath), artifacts.SettlementRows(collection)); err != nil {
			return err
		}
	}
	if trees != nil {
		if err := rt.writeTrees(trees, treesPath); err != nil {
			return err
		}
	}
	_, err := rt.writer.WriteManifest(rt.command, collection.Epoch, collection.Slot, trees)
	return err
}

func (rt *runtime) writeTrees(trees *merkleTrees.MerkleTreeCollection, path string) error {
	if _, err := rt.writer.WriteJSON(path, trees); err != nil {
		return err
	}
	if rt.cfg.OutputConfig.CsvReport {
		if _, err := rt.writer.WriteCsv(csvPath(path), artifacts.MerkleTreeRows(trees)); err != nil {
			return err
		}
	}
	return nil
}

func csvPath(jsonPath string) string {
	return strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath)) + ".csv"
}
