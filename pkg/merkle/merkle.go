package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/types/invariants"
	"github.com/mr-tron/base58"
)

const (
	leafPrefix         = 0x00
	intermediatePrefix = 0x01
)

// Hash is a 32 byte SHA-256 digest. It encodes to JSON as an array of numbers
// and prints as base58.
type Hash [32]byte

func (h Hash) String() string {
	return base58.Encode(h[:])
}

func HashFromBase58(s string) (Hash, error) {
	var h Hash
	b, err := base58.Decode(s)
	if err != nil {
		return h, fmt.Errorf("invalid base58 hash %q: %w", s, err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("invalid hash length %d for %q", len(b), s)
	}
	copy(h[:], b)
	return h, nil
}

// TreeNode is one claim as committed on chain.
type TreeNode struct {
	StakeAuthority    solana.PublicKey `json:"stake_authority"`
	WithdrawAuthority solana.PublicKey `json:"withdraw_authority"`
	Claim             uint64           `json:"claim"`
	Index             uint64           `json:"index"`
	Proof             []Hash           `json:"proof,omitempty"`
}

// Hash is the node hash the on-chain program recomputes
//
// sha256(stake_authority || withdraw_authority || claim_le || index_le)
func (n *TreeNode) Hash() Hash {
	var buf [32 + 32 + 8 + 8]byte
	copy(buf[0:32], n.StakeAuthority[:])
	copy(buf[32:64], n.WithdrawAuthority[:])
	binary.LittleEndian.PutUint64(buf[64:72], n.Claim)
	binary.LittleEndian.PutUint64(buf[72:80], n.Index)
	return sha256.Sum256(buf[:])
}

// LeafHash domain-separates a node hash as a tree leaf.
func LeafHash(nodeHash Hash) Hash {
	var buf [1 + 32]byte
	buf[0] = leafPrefix
	copy(buf[1:], nodeHash[:])
	return sha256.Sum256(buf[:])
}

// IntermediateHash hashes a sibling pair, smaller hash first.
func IntermediateHash(a, b Hash) Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	var buf [1 + 32 + 32]byte
	buf[0] = intermediatePrefix
	copy(buf[1:33], a[:])
	copy(buf[33:], b[:])
	return sha256.Sum256(buf[:])
}

// MerkleTree keeps every level, leaves first. A node without a right
// neighbour is paired with itself.
type MerkleTree struct {
	levels [][]Hash
}

// NewMerkleTree builds a tree over node hashes in the given order.
func NewMerkleTree(nodeHashes []Hash) *MerkleTree {
	if len(nodeHashes) == 0 {
		return &MerkleTree{}
	}
	leaves := make([]Hash, len(nodeHashes))
	for i, h := range nodeHashes {
		leaves[i] = LeafHash(h)
	}
	levels := [][]Hash{leaves}
	for current := leaves; len(current) > 1; {
		next := make([]Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			right := current[i]
			if i+1 < len(current) {
				right = current[i+1]
			}
			next = append(next, IntermediateHash(current[i], right))
		}
		levels = append(levels, next)
		current = next
	}
	return &MerkleTree{levels: levels}
}

func (t *MerkleTree) LeafCount() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels[0])
}

// Root returns false for an empty tree.
func (t *MerkleTree) Root() (Hash, bool) {
	if len(t.levels) == 0 {
		return Hash{}, false
	}
	return t.levels[len(t.levels)-1][0], true
}

// Proof returns the sibling at every level above the leaves for leaf i.
func (t *MerkleTree) Proof(i int) ([]Hash, error) {
	if i < 0 || i >= t.LeafCount() {
		return nil, fmt.Errorf("%w: no leaf %d in tree of %d leaves", invariants.ErrInvariantViolation, i, t.LeafCount())
	}
	proof := make([]Hash, 0, len(t.levels)-1)
	idx := i
	for _, level := range t.levels[:len(t.levels)-1] {
		var sibling Hash
		switch {
		case idx%2 == 1:
			sibling = level[idx-1]
		case idx+1 < len(level):
			sibling = level[idx+1]
		default:
			sibling = level[idx]
		}
		proof = append(proof, sibling)
		idx /= 2
	}
	return proof, nil
}

// VerifyProof folds the proof over the node's leaf and compares with root.
func VerifyProof(proof []Hash, root Hash, nodeHash Hash) bool {
	current := LeafHash(nodeHash)
	for _, sibling := range proof {
		current = IntermediateHash(current, sibling)
	}
	return current == root
}
