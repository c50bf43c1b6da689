package cmd

import (
	"context"
	"fmt"

	"github.com/marinade-finance/bonds-settlements/internal/config"
	"github.com/marinade-finance/bonds-settlements/pkg/artifacts"
	"github.com/marinade-finance/bonds-settlements/pkg/generators"
	"github.com/marinade-finance/bonds-settlements/pkg/merkleTrees"
	"github.com/marinade-finance/bonds-settlements/pkg/protectedEvents"
	"github.com/marinade-finance/bonds-settlements/pkg/rewards"
	"github.com/marinade-finance/bonds-settlements/pkg/settlementConfig"
	"github.com/marinade-finance/bonds-settlements/pkg/stakeIndex"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var generateSettlementsCmd = &cobra.Command{
	Use:   "generate-settlements",
	Short: "Generate auction and protected event settlements for an epoch",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, ctx, err := newRuntime(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer rt.close()
		return runGenerateSettlements(ctx, rt)
	},
}

func init() {
	generateSettlementsCmd.Flags().String(config.SettlementConfigFile, "", "Settlement config file, yaml or json (required)")
	generateSettlementsCmd.Flags().String(config.StakeMetaCollectionFile, "", "Stake meta collection json (required)")
	generateSettlementsCmd.Flags().String(config.SamMetaCollectionFile, "", "Auction validator metas json, required for auction settlements")
	generateSettlementsCmd.Flags().String(config.RewardsDir, "", "Directory with the epoch reward files, required for bidding settlements")
	generateSettlementsCmd.Flags().String(config.ProtectedEventCollectionFile, "", "Protected event collection json")
	generateSettlementsCmd.Flags().String(config.ValidatorMetaCollectionFile, "", "Validator meta collection json, used to derive protected events")
	generateSettlementsCmd.Flags().String(config.RevenueExpectationCollectionFile, "", "Revenue expectation collection json, used to derive protected events")
	generateSettlementsCmd.Flags().String(config.OutputProtectedEventCollectionFile, "", "Where to write derived protected events")
	generateSettlementsCmd.Flags().String(config.OutputSettlementCollectionFile, "settlements.json", "Where to write the settlement collection")
	generateSettlementsCmd.Flags().String(config.OutputMerkleTreeCollectionFile, "", "Where to write one merkle tree per settlement")
}

func runGenerateSettlements(ctx context.Context, rt *runtime) error {
	in := rt.cfg.InputConfig
	if in.SettlementConfig == "" || in.StakeMetaCollection == "" {
		return fmt.Errorf("--%s and --%s are required", config.SettlementConfigFile, config.StakeMetaCollectionFile)
	}

	settlementCfg, err := settlementConfig.LoadBidDistributionConfig(in.SettlementConfig)
	if err != nil {
		return err
	}
	stakeMetas := &stakeIndex.StakeMetaCollection{}
	if err := artifacts.ReadJSON(in.StakeMetaCollection, stakeMetas); err != nil {
		return err
	}
	rt.logger.Sugar().Infow("Loaded stake metas",
		zap.Uint64("epoch", stakeMetas.Epoch),
		zap.Uint64("slot", stakeMetas.Slot),
		zap.Int("stakeMetas", len(stakeMetas.StakeMetas)),
	)

	input := &generators.BidDistributionInput{}
	if in.SamMetaCollection != "" {
		if err := artifacts.ReadJSON(in.SamMetaCollection, &input.SamMetas); err != nil {
			return err
		}
	}
	if in.RewardsDir != "" {
		input.Rewards, err = rewards.NewRewardsLoader(rt.logger).LoadRewardsFromDirectory(in.RewardsDir, stakeMetas)
		if err != nil {
			return err
		}
	}
	var derivedEvents bool
	input.ProtectedEvents, derivedEvents, err = loadProtectedEvents(rt)
	if err != nil {
		return err
	}

	sg := generators.NewSettlementGenerator(stakeIndex.NewStakeIndex(stakeMetas), settlementCfg.AuthorityFilter(), rt.logger)
	collection, err := sg.GenerateBidDistributionSettlements(settlementCfg, input)
	if err != nil {
		return err
	}
	rt.recordSkipped(sg.SkippedValidators())
	if err := merkleTrees.AssignBondAccounts(collection.Settlements, rt.cfg.ValidatorBondsConfig); err != nil {
		return err
	}
	rt.recordSettlements(collection)

	var trees *merkleTrees.MerkleTreeCollection
	if rt.cfg.OutputConfig.MerkleTreeCollection != "" {
		trees, err = rt.buildTrees(func() (*merkleTrees.MerkleTreeCollection, error) {
			return rt.merkleBuilder().BuildMerkleTreeCollection(ctx, collection)
		})
		if err != nil {
			return err
		}
	}

	if derivedEvents && rt.cfg.OutputConfig.ProtectedEventCollection != "" {
		if _, err := rt.writer.WriteJSON(rt.cfg.OutputConfig.ProtectedEventCollection, input.ProtectedEvents); err != nil {
			return err
		}
	}
	return rt.writeSettlementOutputs(collection, rt.cfg.OutputConfig.SettlementCollection, trees, rt.cfg.OutputConfig.MerkleTreeCollection)
}

// loadProtectedEvents reads a protected event collection, or derives one from
// validator metas and revenue expectations. The bool reports a derived collection.
func loadProtectedEvents(rt *runtime) (*protectedEvents.ProtectedEventCollection, bool, error) {
	in := rt.cfg.InputConfig
	if in.ProtectedEventCollection != "" {
		events := &protectedEvents.ProtectedEventCollection{}
		if err := artifacts.ReadJSON(in.ProtectedEventCollection, events); err != nil {
			return nil, false, err
		}
		return events, false, nil
	}
	if in.ValidatorMetaCollection == "" && in.RevenueExpectationCollection == "" {
		return nil, false, nil
	}
	if in.ValidatorMetaCollection == "" || in.RevenueExpectationCollection == "" {
		return nil, false, fmt.Errorf("--%s and --%s must be given together",
			config.ValidatorMetaCollectionFile, config.RevenueExpectationCollectionFile)
	}
	events, err := deriveProtectedEvents(rt, in.ValidatorMetaCollection, in.RevenueExpectationCollection)
	if err != nil {
		return nil, false, err
	}
	return events, true, nil
}

func deriveProtectedEvents(rt *runtime, validatorMetaPath, revenueExpectationPath string) (*protectedEvents.ProtectedEventCollection, error) {
	validatorMetas := &protectedEvents.ValidatorMetaCollection{}
	if err := artifacts.ReadJSON(validatorMetaPath, validatorMetas); err != nil {
		return nil, err
	}
	expectations := &protectedEvents.RevenueExpectationMetaCollection{}
	if err := artifacts.ReadJSON(revenueExpectationPath, expectations); err != nil {
		return nil, err
	}
	return protectedEvents.NewProtectedEventGenerator(rt.logger).GenerateProtectedEventCollection(validatorMetas, expectations)
}
