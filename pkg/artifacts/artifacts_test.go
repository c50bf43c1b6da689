package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/config"
	"github.com/marinade-finance/bonds-settlements/internal/logger"
	"github.com/marinade-finance/bonds-settlements/pkg/merkle"
	"github.com/marinade-finance/bonds-settlements/pkg/merkleTrees"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup() (*zap.Logger, error) {
	return logger.NewLogger(&logger.LoggerConfig{Debug: os.Getenv(config.Debug) == "true"})
}

func pk(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	k[31] = 9
	return k
}

func Test_Writer(t *testing.T) {
	l, err := setup()
	require.Nil(t, err)

	t.Run("Test json is written with a checksum sidecar", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(&WriterConfig{Dir: dir, Checksums: true}, l)

		af, err := w.WriteJSON("out/collection.json", map[string]int{"epoch": 700})
		require.Nil(t, err)
		assert.Equal(t, filepath.Join(dir, "out", "collection.json"), af.FullPath())

		var decoded map[string]int
		require.Nil(t, ReadJSON(af.FullPath(), &decoded))
		assert.Equal(t, 700, decoded["epoch"])

		assert.Nil(t, af.ValidateHash())
		hashFile, err := os.ReadFile(af.HashFilePath())
		require.Nil(t, err)
		assert.True(t, strings.HasSuffix(strings.TrimSpace(string(hashFile)), " collection.json"))

		entries := w.Entries()
		require.Len(t, entries, 1)
		assert.Len(t, entries[0].Sha256, 64)
	})
	t.Run("Test no temporary files are left behind", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(&WriterConfig{Dir: dir}, l)
		_, err := w.WriteBytes("a.json", []byte("{}"))
		require.Nil(t, err)

		files, err := os.ReadDir(dir)
		require.Nil(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "a.json", files[0].Name())
	})
	t.Run("Test existing file is replaced", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(&WriterConfig{Dir: dir}, l)
		_, err := w.WriteBytes("a.json", []byte(`{"v":1}`))
		require.Nil(t, err)
		af, err := w.WriteBytes("a.json", []byte(`{"v":2}`))
		require.Nil(t, err)

		data, err := os.ReadFile(af.FullPath())
		require.Nil(t, err)
		assert.Equal(t, `{"v":2}`, string(data))
	})
	t.Run("Test tampered artifact fails hash validation", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(&WriterConfig{Dir: dir, Checksums: true}, l)
		af, err := w.WriteBytes("a.json", []byte("{}"))
		require.Nil(t, err)

		require.Nil(t, os.WriteFile(af.FullPath(), []byte("[]"), 0644))
		assert.Error(t, af.ValidateHash())

		af.ClearFiles()
		_, err = os.Stat(af.HashFilePath())
		assert.True(t, os.IsNotExist(err))
	})
}

func Test_Csv(t *testing.T) {
	l, err := setup()
	require.Nil(t, err)

	bond := pk(0xbb)
	collection := &settlements.SettlementCollection{
		Epoch: 700,
		Settlements: []settlements.Settlement{
			{
				Reason:       settlements.NewReason(settlements.ReasonBidding),
				Meta:         settlements.SettlementMeta{Funder: settlements.FunderValidatorBond},
				VoteAccount:  pk(0xa0),
				BondAccount:  &bond,
				ClaimsCount:  2,
				ClaimsAmount: 1_500_000_000,
			},
		},
	}

	t.Run("Test settlements report rows", func(t *testing.T) {
		rows := SettlementRows(collection)
		require.Len(t, rows, 1)
		assert.Equal(t, "Bidding", rows[0].Reason)
		assert.Equal(t, "1.5", rows[0].ClaimsAmountSol)
		assert.Equal(t, bond.String(), rows[0].BondAccount)

		w := NewWriter(&WriterConfig{Dir: t.TempDir()}, l)
		af, err := w.WriteCsv("settlements.csv", rows)
		require.Nil(t, err)
		data, err := os.ReadFile(af.FullPath())
		require.Nil(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "reason,funder,vote_account,bond_account,claims_count,claims_amount,claims_amount_sol", lines[0])
		assert.True(t, strings.HasPrefix(lines[1], "Bidding,ValidatorBond,"))
	})
	t.Run("Test merkle tree report renders roots in base58", func(t *testing.T) {
		root := merkle.Hash{1}
		rows := MerkleTreeRows(&merkleTrees.MerkleTreeCollection{
			MerkleTrees: []merkleTrees.MerkleTreeMeta{{VoteAccount: pk(1), MerkleRoot: &root}, {VoteAccount: pk(2)}},
		})
		assert.Equal(t, root.String(), rows[0].MerkleRoot)
		assert.Empty(t, rows[1].MerkleRoot)
	})
}

func Test_Manifest(t *testing.T) {
	l, err := setup()
	require.Nil(t, err)

	rootA, rootB := merkle.Hash{1}, merkle.Hash{2}
	trees := &merkleTrees.MerkleTreeCollection{
		Epoch: 700,
		MerkleTrees: []merkleTrees.MerkleTreeMeta{
			{VoteAccount: pk(1), MerkleRoot: &rootA},
			{VoteAccount: pk(2)},
			{VoteAccount: pk(3), MerkleRoot: &rootB},
		},
	}

	t.Run("Test collection root is stable and skips trees without root", func(t *testing.T) {
		first, err := CollectionRoot(trees)
		require.Nil(t, err)
		assert.True(t, strings.HasPrefix(first, "0x"))
		assert.Len(t, first, 66)

		withoutEmpty := &merkleTrees.MerkleTreeCollection{MerkleTrees: []merkleTrees.MerkleTreeMeta{trees.MerkleTrees[0], trees.MerkleTrees[2]}}
		second, err := CollectionRoot(withoutEmpty)
		require.Nil(t, err)
		assert.Equal(t, first, second)

		rootB[0] = 3
		changed, err := CollectionRoot(trees)
		require.Nil(t, err)
		assert.NotEqual(t, first, changed)
	})
	t.Run("Test no roots gives an empty collection root", func(t *testing.T) {
		root, err := CollectionRoot(&merkleTrees.MerkleTreeCollection{})
		assert.Nil(t, err)
		assert.Empty(t, root)
	})
	t.Run("Test manifest lists written files", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(&WriterConfig{Dir: dir, Checksums: true}, l)
		_, err := w.WriteJSON("merkle_trees.json", trees)
		require.Nil(t, err)

		m, err := w.WriteManifest("generate-merkle-trees", 700, 1, trees)
		require.Nil(t, err)
		assert.Equal(t, w.RunId().String(), m.RunId)
		assert.Equal(t, 3, m.MerkleTrees)
		assert.NotEmpty(t, m.CollectionRoot)

		var decoded Manifest
		require.Nil(t, ReadJSON(filepath.Join(dir, ManifestFileName), &decoded))
		require.Len(t, decoded.Files, 1)
		assert.Equal(t, "merkle_trees.json", decoded.Files[0].File)

		raw, err := json.Marshal(decoded)
		require.Nil(t, err)
		assert.Contains(t, string(raw), `"command":"generate-merkle-trees"`)
	})
}

func Test_ReadFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "in.yaml")
	require.Nil(t, os.WriteFile(yamlPath, []byte("epoch: 5\nslot: 6\n"), 0644))

	var out struct {
		Epoch uint64 `yaml:"epoch" json:"epoch"`
		Slot  uint64 `yaml:"slot" json:"slot"`
	}
	assert.Nil(t, ReadFile(yamlPath, &out))
	assert.Equal(t, uint64(5), out.Epoch)

	assert.Error(t, ReadFile(filepath.Join(dir, "missing.json"), &out))
}
