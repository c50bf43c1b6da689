package artifacts

import (
	"encoding/hex"
	"time"

	"github.com/marinade-finance/bonds-settlements/pkg/merkleTrees"
	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
)

const ManifestFileName = "manifest.json"

type ManifestEntry struct {
	File   string `json:"file"`
	Bytes  uint64 `json:"bytes"`
	Sha256 string `json:"sha256,omitempty"`
}

// Manifest describes one run: which artifacts were produced and an audit root
// over every merkle tree root of the run.
type Manifest struct {
	RunId          string          `json:"run_id"`
	Command        string          `json:"command"`
	CreatedAt      string          `json:"created_at"`
	Epoch          uint64          `json:"epoch"`
	Slot           uint64          `json:"slot"`
	MerkleTrees    int             `json:"merkle_trees"`
	CollectionRoot string          `json:"collection_root,omitempty"`
	Files          []ManifestEntry `json:"files"`
}

// CollectionRoot is the keccak256 merkle root over (vote account, merkle root)
// of every tree that has a root, in collection order. It is empty when no tree
// has a root.
func CollectionRoot(collection *merkleTrees.MerkleTreeCollection) (string, error) {
	data := make([][]byte, 0, len(collection.MerkleTrees))
	for i := range collection.MerkleTrees {
		t := &collection.MerkleTrees[i]
		if t.MerkleRoot == nil {
			continue
		}
		leaf := make([]byte, 0, 64)
		leaf = append(leaf, t.VoteAccount[:]...)
		leaf = append(leaf, t.MerkleRoot[:]...)
		data = append(data, leaf)
	}
	if len(data) == 0 {
		return "", nil
	}

	tree, err := merkletree.NewTree(
		merkletree.WithData(data),
		merkletree.WithHashType(keccak256.New()),
	)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(tree.Root()), nil
}

// WriteManifest records every artifact written so far. trees may be nil for
// runs that produce no merkle trees.
func (w *Writer) WriteManifest(command string, epoch, slot uint64, trees *merkleTrees.MerkleTreeCollection) (*Manifest, error) {
	m := &Manifest{
		RunId:     w.runId.String(),
		Command:   command,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Epoch:     epoch,
		Slot:      slot,
		Files:     w.Entries(),
	}
	if trees != nil {
		root, err := CollectionRoot(trees)
		if err != nil {
			return nil, err
		}
		m.MerkleTrees = len(trees.MerkleTrees)
		m.CollectionRoot = root
	}
	if _, err := w.WriteJSON(ManifestFileName, m); err != nil {
		return nil, err
	}
	return m, nil
}
