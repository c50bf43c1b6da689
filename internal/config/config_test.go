package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func Test_Config(t *testing.T) {
	t.Run("Test kebab flags map to snake keys", func(t *testing.T) {
		assert.Equal(t, "output.csv_report", KebabToSnakeCase(OutputCsvReport))
		assert.Equal(t, "validator_bonds_config", KebabToSnakeCase(ValidatorBondsConfig))
	})
	t.Run("Test NewConfig reads viper values", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		viper.Set("debug", true)
		viper.Set("validator_bonds_config", "vbMaRfmTCg92HWGzmd53APkMNpPnGVGZTUHwUJQkXAU")
		viper.Set("input_settlement_files", []string{"a.json, b.json", "c.json"})
		viper.Set("merkle.workers", 3)
		viper.Set("output.csv_report", true)
		viper.Set("prometheus.port", 2112)

		cfg, err := NewConfig()
		assert.Nil(t, err)
		assert.True(t, cfg.Debug)
		assert.Equal(t, "vbMaRfmTCg92HWGzmd53APkMNpPnGVGZTUHwUJQkXAU", cfg.ValidatorBondsConfig.String())
		assert.Equal(t, []string{"a.json", "b.json", "c.json"}, cfg.InputConfig.SettlementFiles)
		assert.Equal(t, 3, cfg.MerkleConfig.Workers)
		assert.True(t, cfg.OutputConfig.CsvReport)
		assert.Equal(t, 2112, cfg.PrometheusConfig.Port)
	})
	t.Run("Test invalid bonds config address is rejected", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		viper.Set("validator_bonds_config", "not-base58-0OIl")
		_, err := NewConfig()
		assert.Error(t, err)
	})
	t.Run("Test missing bonds config stays zero", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		cfg, err := NewConfig()
		assert.Nil(t, err)
		assert.True(t, cfg.ValidatorBondsConfig.IsZero())
		assert.Empty(t, cfg.InputConfig.SettlementFiles)
	})
}
