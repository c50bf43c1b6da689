package cmd

import (
	"fmt"

	"github.com/marinade-finance/bonds-settlements/internal/config"
	"github.com/marinade-finance/bonds-settlements/pkg/artifacts"
	"github.com/marinade-finance/bonds-settlements/pkg/merkleTrees"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var verifyProofCmd = &cobra.Command{
	Use:   "verify-proof",
	Short: "Check every proof of a merkle tree collection against its root",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := newRuntime(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer rt.close()
		return runVerifyProof(rt)
	},
}

func init() {
	verifyProofCmd.Flags().String(config.MerkleTreeCollectionFile, "", "Merkle tree collection json (required)")
}

func runVerifyProof(rt *runtime) error {
	path := rt.cfg.InputConfig.MerkleTreeCollection
	if path == "" {
		return fmt.Errorf("--%s is required", config.MerkleTreeCollectionFile)
	}
	trees := &merkleTrees.MerkleTreeCollection{}
	if err := artifacts.ReadJSON(path, trees); err != nil {
		return err
	}
	if err := merkleTrees.VerifyCollection(trees); err != nil {
		return err
	}

	var nodes int
	for _, t := range trees.MerkleTrees {
		nodes += len(t.TreeNodes)
	}
	root, err := artifacts.CollectionRoot(trees)
	if err != nil {
		return err
	}
	rt.logger.Sugar().Infow("All proofs verified",
		zap.Uint64("epoch", trees.Epoch),
		zap.Int("trees", len(trees.MerkleTrees)),
		zap.Int("nodes", nodes),
		zap.String("collectionRoot", root),
	)
	return nil
}
