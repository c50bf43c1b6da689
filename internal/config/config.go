package config

import (
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "BONDS_SETTLEMENTS"

// Debug is also the environment variable tests read to turn on debug logging.
const Debug = "debug"

const (
	ValidatorBondsConfig = "validator-bonds-config"

	SettlementConfigFile             = "settlement-config"
	StakeMetaCollectionFile          = "stake-meta-collection"
	SamMetaCollectionFile            = "sam-meta-collection"
	RewardsDir                       = "rewards-dir"
	ProtectedEventCollectionFile     = "protected-event-collection"
	ValidatorMetaCollectionFile      = "validator-meta-collection"
	RevenueExpectationCollectionFile = "revenue-expectation-collection"
	InstitutionalPayoutFile          = "institutional-payout"
	InstitutionalConfigFile          = "institutional-config"
	InputSettlementFiles             = "input-settlement-files"
	MerkleTreeCollectionFile         = "merkle-tree-collection"

	OutputDir                          = "output.dir"
	OutputProtectedEventCollectionFile = "output.protected-event-collection"
	OutputSettlementCollectionFile     = "output.settlement-collection"
	OutputMerkleTreeCollectionFile     = "output.merkle-tree-collection"
	OutputCsvReport                    = "output.csv-report"
	OutputChecksums                    = "output.checksums"
	OutputProgress                     = "output.progress"

	MerkleWorkers = "merkle.workers"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample_rate"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"
)

type Config struct {
	Debug                bool
	ValidatorBondsConfig solana.PublicKey
	InputConfig          InputConfig
	OutputConfig         OutputConfig
	MerkleConfig         MerkleConfig
	DataDogConfig        DataDogConfig
	PrometheusConfig     PrometheusConfig
}

type InputConfig struct {
	SettlementConfig             string
	StakeMetaCollection          string
	SamMetaCollection            string
	RewardsDir                   string
	ProtectedEventCollection     string
	ValidatorMetaCollection      string
	RevenueExpectationCollection string
	InstitutionalPayout          string
	InstitutionalConfig          string
	SettlementFiles              []string
	MerkleTreeCollection         string
}

type OutputConfig struct {
	Dir                      string
	ProtectedEventCollection string
	SettlementCollection     string
	MerkleTreeCollection     string
	CsvReport                bool
	Checksums                bool
	Progress                 bool
}

type MerkleConfig struct {
	Workers int
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

// NewConfig reads the bound flags and environment. A malformed validator
// bonds config address is reported; an absent one stays zero.
func NewConfig() (*Config, error) {
	cfg := &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		InputConfig: InputConfig{
			SettlementConfig:             viper.GetString(normalizeFlagName(SettlementConfigFile)),
			StakeMetaCollection:          viper.GetString(normalizeFlagName(StakeMetaCollectionFile)),
			SamMetaCollection:            viper.GetString(normalizeFlagName(SamMetaCollectionFile)),
			RewardsDir:                   viper.GetString(normalizeFlagName(RewardsDir)),
			ProtectedEventCollection:     viper.GetString(normalizeFlagName(ProtectedEventCollectionFile)),
			ValidatorMetaCollection:      viper.GetString(normalizeFlagName(ValidatorMetaCollectionFile)),
			RevenueExpectationCollection: viper.GetString(normalizeFlagName(RevenueExpectationCollectionFile)),
			InstitutionalPayout:          viper.GetString(normalizeFlagName(InstitutionalPayoutFile)),
			InstitutionalConfig:          viper.GetString(normalizeFlagName(InstitutionalConfigFile)),
			SettlementFiles:              parseListValue(viper.GetStringSlice(normalizeFlagName(InputSettlementFiles))),
			MerkleTreeCollection:         viper.GetString(normalizeFlagName(MerkleTreeCollectionFile)),
		},

		OutputConfig: OutputConfig{
			Dir:                      viper.GetString(normalizeFlagName(OutputDir)),
			ProtectedEventCollection: viper.GetString(normalizeFlagName(OutputProtectedEventCollectionFile)),
			SettlementCollection:     viper.GetString(normalizeFlagName(OutputSettlementCollectionFile)),
			MerkleTreeCollection:     viper.GetString(normalizeFlagName(OutputMerkleTreeCollectionFile)),
			CsvReport:                viper.GetBool(normalizeFlagName(OutputCsvReport)),
			Checksums:                viper.GetBool(normalizeFlagName(OutputChecksums)),
			Progress:                 viper.GetBool(normalizeFlagName(OutputProgress)),
		},

		MerkleConfig: MerkleConfig{
			Workers: viper.GetInt(normalizeFlagName(MerkleWorkers)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:        viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(normalizeFlagName(DataDogStatsdSampleRate)),
			},
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},
	}

	if v := viper.GetString(normalizeFlagName(ValidatorBondsConfig)); v != "" {
		pk, err := solana.PublicKeyFromBase58(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s %q", ValidatorBondsConfig, v)
		}
		cfg.ValidatorBondsConfig = pk
	}
	return cfg, nil
}

func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}

// parseListValue accepts both repeated flags and a single comma separated
// value coming from the environment.
func parseListValue(values []string) []string {
	l := make([]string, 0, len(values))
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				l = append(l, s)
			}
		}
	}
	return l
}
