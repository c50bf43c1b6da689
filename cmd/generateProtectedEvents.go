package cmd

import (
	"fmt"

	"github.com/marinade-finance/bonds-settlements/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var generateProtectedEventsCmd = &cobra.Command{
	Use:   "generate-protected-events",
	Short: "Derive protected events from validator metas and revenue expectations",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := newRuntime(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer rt.close()
		return runGenerateProtectedEvents(rt)
	},
}

func init() {
	generateProtectedEventsCmd.Flags().String(config.ValidatorMetaCollectionFile, "", "Validator meta collection json (required)")
	generateProtectedEventsCmd.Flags().String(config.RevenueExpectationCollectionFile, "", "Revenue expectation collection json (required)")
	generateProtectedEventsCmd.Flags().String(config.OutputProtectedEventCollectionFile, "protected_events.json", "Where to write the protected event collection")
}

func runGenerateProtectedEvents(rt *runtime) error {
	in := rt.cfg.InputConfig
	if in.ValidatorMetaCollection == "" || in.RevenueExpectationCollection == "" {
		return fmt.Errorf("--%s and --%s are required", config.ValidatorMetaCollectionFile, config.RevenueExpectationCollectionFile)
	}
	events, err := deriveProtectedEvents(rt, in.ValidatorMetaCollection, in.RevenueExpectationCollection)
	if err != nil {
		return err
	}
	rt.logger.Sugar().Infow("Derived protected events",
		zap.Uint64("epoch", events.Epoch),
		zap.Int("events", len(events.Events)),
	)
	if _, err := rt.writer.WriteJSON(rt.cfg.OutputConfig.ProtectedEventCollection, events); err != nil {
		return err
	}
	_, err = rt.writer.WriteManifest(rt.command, events.Epoch, events.Slot, nil)
	return err
}
