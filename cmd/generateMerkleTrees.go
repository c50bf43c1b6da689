package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/marinade-finance/bonds-settlements/internal/config"
	"github.com/marinade-finance/bonds-settlements/pkg/artifacts"
	"github.com/marinade-finance/bonds-settlements/pkg/merkleTrees"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var generateMerkleTreesCmd = &cobra.Command{
	Use:   "generate-merkle-trees",
	Short: "Merge settlement collections into one merkle tree per validator",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, ctx, err := newRuntime(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer rt.close()
		return runGenerateMerkleTrees(ctx, rt)
	},
}

func init() {
	generateMerkleTreesCmd.Flags().StringSlice(config.InputSettlementFiles, nil, "Settlement collection files to merge, comma separated (required)")
	generateMerkleTreesCmd.Flags().String(config.OutputMerkleTreeCollectionFile, "merkle_trees.json", "Where to write the merkle tree collection")
}

func runGenerateMerkleTrees(ctx context.Context, rt *runtime) error {
	files := rt.cfg.InputConfig.SettlementFiles
	if len(files) == 0 {
		return fmt.Errorf("--%s is required", config.InputSettlementFiles)
	}
	if rt.cfg.ValidatorBondsConfig.IsZero() {
		return fmt.Errorf("--%s is required", config.ValidatorBondsConfig)
	}

	sources := make([]merkleTrees.NamedCollection, 0, len(files))
	for _, f := range files {
		collection := &settlements.SettlementCollection{}
		if err := artifacts.ReadJSON(f, collection); err != nil {
			return err
		}
		rt.logger.Sugar().Infow("Loaded settlement collection",
			zap.String("file", f),
			zap.Uint64("epoch", collection.Epoch),
			zap.Int("settlements", len(collection.Settlements)),
		)
		sources = append(sources, merkleTrees.NamedCollection{Name: filepath.Base(f), Collection: collection})
	}

	trees, err := rt.buildTrees(func() (*merkleTrees.MerkleTreeCollection, error) {
		return rt.merkleBuilder().BuildUnifiedMerkleTreeCollection(ctx, sources)
	})
	if err != nil {
		return err
	}
	if err := merkleTrees.VerifyCollection(trees); err != nil {
		return err
	}

	if err := rt.writeTrees(trees, rt.cfg.OutputConfig.MerkleTreeCollection); err != nil {
		return err
	}
	manifest, err := rt.writer.WriteManifest(rt.command, trees.Epoch, trees.Slot, trees)
	if err != nil {
		return err
	}
	rt.logger.Sugar().Infow("Generated merkle trees",
		zap.Uint64("epoch", trees.Epoch),
		zap.Int("trees", len(trees.MerkleTrees)),
		zap.String("collectionRoot", manifest.CollectionRoot),
		zap.String("runId", manifest.RunId),
	)
	return nil
}
