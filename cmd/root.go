package cmd

import (
	"os"
	"strings"

	"github.com/marinade-finance/bonds-settlements/internal/config"
	"github.com/marinade-finance/bonds-settlements/pkg/merkleTrees"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "bonds-settlements",
	Short: "Generates validator bond settlements and the merkle trees that commit to them",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)
	rootCmd.PersistentFlags().String(config.ValidatorBondsConfig, "", `Validator bonds config account used to derive bond and settlement addresses`)
	rootCmd.PersistentFlags().Int(config.MerkleWorkers, merkleTrees.DefaultWorkers, `The number of merkle trees to build in parallel`)

	rootCmd.PersistentFlags().String(config.OutputDir, "", `Directory relative output paths are resolved against`)
	rootCmd.PersistentFlags().Bool(config.OutputChecksums, true, `Write a .sha256 file next to every artifact`)
	rootCmd.PersistentFlags().Bool(config.OutputProgress, false, `Show a progress bar while writing artifacts`)
	rootCmd.PersistentFlags().Bool(config.OutputCsvReport, false, `Also write a csv summary of the generated settlements or trees`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.DataDogStatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	// setup sub commands
	rootCmd.AddCommand(generateSettlementsCmd)
	rootCmd.AddCommand(generateProtectedEventsCmd)
	rootCmd.AddCommand(generateInstitutionalSettlementsCmd)
	rootCmd.AddCommand(generateMerkleTreesCmd)
	rootCmd.AddCommand(verifyProofCmd)
	rootCmd.AddCommand(runVersionCmd)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}
