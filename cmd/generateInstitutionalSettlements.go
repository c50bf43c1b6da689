package cmd

import (
	"context"
	"fmt"

	"github.com/marinade-finance/bonds-settlements/internal/config"
	"github.com/marinade-finance/bonds-settlements/pkg/artifacts"
	"github.com/marinade-finance/bonds-settlements/pkg/generators"
	"github.com/marinade-finance/bonds-settlements/pkg/institutionalPayout"
	"github.com/marinade-finance/bonds-settlements/pkg/merkleTrees"
	"github.com/marinade-finance/bonds-settlements/pkg/settlementConfig"
	"github.com/marinade-finance/bonds-settlements/pkg/stakeIndex"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var generateInstitutionalSettlementsCmd = &cobra.Command{
	Use:   "generate-institutional-settlements",
	Short: "Turn precomputed institutional payouts into settlements",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, ctx, err := newRuntime(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer rt.close()
		return runGenerateInstitutionalSettlements(ctx, rt)
	},
}

func init() {
	generateInstitutionalSettlementsCmd.Flags().String(config.InstitutionalPayoutFile, "", "Institutional payout json (required)")
	generateInstitutionalSettlementsCmd.Flags().String(config.InstitutionalConfigFile, "", "Institutional distribution config, yaml or json (required)")
	generateInstitutionalSettlementsCmd.Flags().String(config.StakeMetaCollectionFile, "", "Stake meta collection json used to find fee deposit accounts (required)")
	generateInstitutionalSettlementsCmd.Flags().String(config.OutputSettlementCollectionFile, "institutional_settlements.json", "Where to write the settlement collection")
	generateInstitutionalSettlementsCmd.Flags().String(config.OutputMerkleTreeCollectionFile, "", "Where to write one merkle tree per settlement")
}

func runGenerateInstitutionalSettlements(ctx context.Context, rt *runtime) error {
	in := rt.cfg.InputConfig
	if in.InstitutionalPayout == "" || in.InstitutionalConfig == "" || in.StakeMetaCollection == "" {
		return fmt.Errorf("--%s, --%s and --%s are required",
			config.InstitutionalPayoutFile, config.InstitutionalConfigFile, config.StakeMetaCollectionFile)
	}

	institutionalCfg, err := settlementConfig.LoadInstitutionalDistributionConfig(in.InstitutionalConfig)
	if err != nil {
		return err
	}
	payout, err := institutionalPayout.LoadInstitutionalPayout(in.InstitutionalPayout)
	if err != nil {
		return err
	}
	stakeMetas := &stakeIndex.StakeMetaCollection{}
	if err := artifacts.ReadJSON(in.StakeMetaCollection, stakeMetas); err != nil {
		return err
	}
	if stakeMetas.Epoch != payout.Epoch {
		rt.logger.Sugar().Warnw("Stake metas and institutional payout are for different epochs",
			zap.Uint64("stakeMetasEpoch", stakeMetas.Epoch),
			zap.Uint64("payoutEpoch", payout.Epoch),
		)
	}

	sg := generators.NewSettlementGenerator(stakeIndex.NewStakeIndex(stakeMetas), nil, rt.logger)
	collection, err := sg.GenerateInstitutionalSettlements(payout, institutionalCfg)
	if err != nil {
		return err
	}

	bondsConfig := rt.cfg.ValidatorBondsConfig
	if bondsConfig.IsZero() {
		bondsConfig = institutionalCfg.ValidatorBondsConfig
	}
	if err := merkleTrees.AssignBondAccounts(collection.Settlements, bondsConfig); err != nil {
		return err
	}
	rt.recordSettlements(collection)

	var trees *merkleTrees.MerkleTreeCollection
	if rt.cfg.OutputConfig.MerkleTreeCollection != "" {
		builder := merkleTrees.NewBuilder(bondsConfig, rt.cfg.MerkleConfig.Workers, rt.logger)
		trees, err = rt.buildTrees(func() (*merkleTrees.MerkleTreeCollection, error) {
			return builder.BuildMerkleTreeCollection(ctx, collection)
		})
		if err != nil {
			return err
		}
	}
	return rt.writeSettlementOutputs(collection, rt.cfg.OutputConfig.SettlementCollection, trees, rt.cfg.OutputConfig.MerkleTreeCollection)
}
