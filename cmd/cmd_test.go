package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/config"
	"github.com/marinade-finance/bonds-settlements/internal/logger"
	"github.com/marinade-finance/bonds-settlements/internal/metrics"
	"github.com/marinade-finance/bonds-settlements/pkg/artifacts"
	"github.com/marinade-finance/bonds-settlements/pkg/merkleTrees"
	"github.com/marinade-finance/bonds-settlements/pkg/samMeta"
	"github.com/marinade-finance/bonds-settlements/pkg/settlementConfig"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"github.com/marinade-finance/bonds-settlements/pkg/stakeIndex"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pk(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	k[31] = 5
	return k
}

func testRuntime(t *testing.T, cfg *config.Config) *runtime {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: os.Getenv(config.Debug) == "true"})
	require.Nil(t, err)
	sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, nil)
	require.Nil(t, err)
	return &runtime{
		command: "test",
		cfg:     cfg,
		logger:  l,
		sink:    sink,
		writer:  artifacts.NewWriter(&artifacts.WriterConfig{Dir: cfg.OutputConfig.Dir, Checksums: true}, l),
		started: time.Now(),
		cancel:  func() {},
	}
}

func writeJSON(t *testing.T, path string, v interface{}) {
	data, err := json.Marshal(v)
	require.Nil(t, err)
	require.Nil(t, os.WriteFile(path, data, 0644))
}

func Test_Commands(t *testing.T) {
	dir := t.TempDir()
	vote := pk(0xa0)
	bondsConfig := pk(0xcc)

	stakeMetasPath := filepath.Join(dir, "stake_metas.json")
	writeJSON(t, stakeMetasPath, &stakeIndex.StakeMetaCollection{
		Epoch: 700,
		Slot:  302400000,
		StakeMetas: []stakeIndex.StakeMeta{
			{Pubkey: pk(1), Validator: &vote, WithdrawAuthority: pk(0x10), StakeAuthority: pk(0x30), ActiveDelegationLamports: 600_000_000},
			{Pubkey: pk(2), Validator: &vote, WithdrawAuthority: pk(0x11), StakeAuthority: pk(0x30), ActiveDelegationLamports: 400_000_000},
		},
	})
	samMetasPath := filepath.Join(dir, "sam_metas.json")
	writeJSON(t, samMetasPath, []samMeta.ValidatorSamMeta{{
		VoteAccount: vote,
		Epoch:       700,
		RevShare:    samMeta.RevShare{BlacklistPenaltyPmpe: decimal.NewFromInt(1)},
	}})
	settlementConfigPath := filepath.Join(dir, "config.json")
	writeJSON(t, settlementConfigPath, &settlementConfig.BidDistributionConfig{
		FeeConfig: settlementConfig.FeeConfig{MarinadeFeeBps: 1000},
		Settlements: []settlementConfig.SettlementConfig{
			{Meta: settlements.SettlementMeta{Funder: settlements.FunderValidatorBond}, Kind: settlementConfig.BlacklistPenaltyConfig{}},
		},
	})

	outDir := filepath.Join(dir, "out")
	ctx := context.Background()

	t.Run("Test generate-settlements writes settlements, trees and manifest", func(t *testing.T) {
		rt := testRuntime(t, &config.Config{
			ValidatorBondsConfig: bondsConfig,
			InputConfig: config.InputConfig{
				SettlementConfig:    settlementConfigPath,
				StakeMetaCollection: stakeMetasPath,
				SamMetaCollection:   samMetasPath,
			},
			OutputConfig: config.OutputConfig{
				Dir:                  outDir,
				SettlementCollection: "settlements.json",
				MerkleTreeCollection: "settlement_trees.json",
				CsvReport:            true,
			},
			MerkleConfig: config.MerkleConfig{Workers: 2},
		})
		require.Nil(t, runGenerateSettlements(ctx, rt))

		collection := &settlements.SettlementCollection{}
		require.Nil(t, artifacts.ReadJSON(filepath.Join(outDir, "settlements.json"), collection))
		require.Len(t, collection.Settlements, 1)
		s := collection.Settlements[0]
		assert.Equal(t, settlements.ReasonBlacklistPenalty, s.Reason.Kind)
		assert.Equal(t, uint64(1_000_000), s.ClaimsAmount)

		bond, err := merkleTrees.BondAddress(bondsConfig, vote)
		require.Nil(t, err)
		require.NotNil(t, s.BondAccount)
		assert.Equal(t, bond, *s.BondAccount)

		trees := &merkleTrees.MerkleTreeCollection{}
		require.Nil(t, artifacts.ReadJSON(filepath.Join(outDir, "settlement_trees.json"), trees))
		require.Len(t, trees.MerkleTrees, 1)
		assert.Nil(t, merkleTrees.VerifyCollection(trees))

		for _, f := range []string{"settlements.csv", "settlement_trees.csv", artifacts.ManifestFileName} {
			_, err := os.Stat(filepath.Join(outDir, f))
			assert.Nil(t, err, f)
		}
		assert.Nil(t, artifacts.NewArtifactFile(filepath.Join(outDir, "settlements.json")).ValidateHash())
	})
	t.Run("Test generate-merkle-trees merges and verify-proof accepts the result", func(t *testing.T) {
		rt := testRuntime(t, &config.Config{
			ValidatorBondsConfig: bondsConfig,
			InputConfig: config.InputConfig{
				SettlementFiles: []string{filepath.Join(outDir, "settlements.json")},
			},
			OutputConfig: config.OutputConfig{
				Dir:                  outDir,
				MerkleTreeCollection: "merkle_trees.json",
			},
		})
		require.Nil(t, runGenerateMerkleTrees(ctx, rt))

		trees := &merkleTrees.MerkleTreeCollection{}
		require.Nil(t, artifacts.ReadJSON(filepath.Join(outDir, "merkle_trees.json"), trees))
		assert.Equal(t, []string{"settlements.json"}, trees.Sources)
		require.Len(t, trees.MerkleTrees, 1)
		assert.Equal(t, map[settlements.Funder]uint64{settlements.FunderValidatorBond: 1_000_000}, trees.MerkleTrees[0].FundingSources)

		verify := testRuntime(t, &config.Config{
			InputConfig: config.InputConfig{MerkleTreeCollection: filepath.Join(outDir, "merkle_trees.json")},
		})
		assert.Nil(t, runVerifyProof(verify))
	})
	t.Run("Test verify-proof rejects a tampered collection", func(t *testing.T) {
		trees := &merkleTrees.MerkleTreeCollection{}
		require.Nil(t, artifacts.ReadJSON(filepath.Join(outDir, "merkle_trees.json"), trees))
		trees.MerkleTrees[0].TreeNodes[0].Claim++
		tampered := filepath.Join(dir, "tampered.json")
		writeJSON(t, tampered, trees)

		rt := testRuntime(t, &config.Config{InputConfig: config.InputConfig{MerkleTreeCollection: tampered}})
		assert.Error(t, runVerifyProof(rt))
	})
	t.Run("Test required inputs are enforced", func(t *testing.T) {
		rt := testRuntime(t, &config.Config{})
		assert.Error(t, runGenerateSettlements(ctx, rt))
		assert.Error(t, runGenerateMerkleTrees(ctx, rt))
		assert.Error(t, runGenerateInstitutionalSettlements(ctx, rt))
		assert.Error(t, runGenerateProtectedEvents(rt))
		assert.Error(t, runVerifyProof(rt))
	})
	t.Run("Test csv path follows the json path", func(t *testing.T) {
		assert.Equal(t, "out/settlements.csv", csvPath("out/settlements.json"))
		assert.Equal(t, "report.csv", csvPath("report"))
	})
}
