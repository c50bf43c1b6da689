package merkleTrees

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
	"github.com/marinade-finance/bonds-settlements/pkg/merkle"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"github.com/marinade-finance/bonds-settlements/pkg/stakeIndex"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

type MerkleTreeMeta struct {
	MerkleRoot        *merkle.Hash                  `json:"merkle_root"`
	MaxTotalClaimSum  uint64                        `json:"max_total_claim_sum"`
	MaxTotalClaims    uint64                        `json:"max_total_claims"`
	VoteAccount       solana.PublicKey              `json:"vote_account"`
	BondAccount       *solana.PublicKey             `json:"bond_account,omitempty"`
	SettlementAccount *solana.PublicKey             `json:"settlement_account,omitempty"`
	FundingSources    map[settlements.Funder]uint64 `json:"funding_sources,omitempty"`
	TreeNodes         []merkle.TreeNode             `json:"tree_nodes"`
}

type MerkleTreeCollection struct {
	Epoch                uint64           `json:"epoch"`
	Slot                 uint64           `json:"slot"`
	ValidatorBondsConfig solana.PublicKey `json:"validator_bonds_config"`
	Sources              []string         `json:"sources,omitempty"`
	MerkleTrees          []MerkleTreeMeta `json:"merkle_trees"`
}

// NamedCollection is a settlement collection with the file it was read from.
type NamedCollection struct {
	Name       string
	Collection *settlements.SettlementCollection
}

// Builder turns settlements into merkle trees. Trees are built concurrently,
// at most Workers at a time.
type Builder struct {
	logger               *zap.Logger
	validatorBondsConfig solana.PublicKey
	workers              int
}

func NewBuilder(validatorBondsConfig solana.PublicKey, workers int, l *zap.Logger) *Builder {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Builder{
		logger:               l,
		validatorBondsConfig: validatorBondsConfig,
		workers:              workers,
	}
}

type treeInput struct {
	voteAccount solana.PublicKey
	claims      []settlements.SettlementClaim
	claimsSum   uint64
	funding     map[settlements.Funder]uint64
}

// BuildMerkleTreeCollection builds one tree per settlement, in settlement order.
func (b *Builder) BuildMerkleTreeCollection(ctx context.Context, collection *settlements.SettlementCollection) (*MerkleTreeCollection, error) {
	inputs := make([]treeInput, len(collection.Settlements))
	for i := range collection.Settlements {
		s := &collection.Settlements[i]
		if err := s.Validate(); err != nil {
			return nil, err
		}
		claims := make([]settlements.SettlementClaim, len(s.Claims))
		copy(claims, s.Claims)
		settlements.SortClaims(claims)
		inputs[i] = treeInput{
			voteAccount: s.VoteAccount,
			claims:      claims,
			claimsSum:   s.ClaimsAmount,
			funding:     map[settlements.Funder]uint64{s.Meta.Funder: s.ClaimsAmount},
		}
	}

	trees, err := b.buildAll(ctx, inputs, collection.Epoch)
	if err != nil {
		return nil, err
	}
	for i := range trees {
		s := &collection.Settlements[i]
		if trees[i].MaxTotalClaimSum != s.ClaimsAmount || trees[i].MaxTotalClaims != s.ClaimsCount {
			return nil, fmt.Errorf("%w: tree of %s commits %d lamports in %d claims, settlement has %d in %d",
				settlements.ErrInvariantViolation, s.VoteAccount, trees[i].MaxTotalClaimSum, trees[i].MaxTotalClaims, s.ClaimsAmount, s.ClaimsCount)
		}
	}

	return &MerkleTreeCollection{
		Epoch:                collection.Epoch,
		Slot:                 collection.Slot,
		ValidatorBondsConfig: b.validatorBondsConfig,
		MerkleTrees:          trees,
	}, nil
}

// BuildUnifiedMerkleTreeCollection merges settlements from several files into
// one tree per validator, recording how much each funder contributes.
func (b *Builder) BuildUnifiedMerkleTreeCollection(ctx context.Context, sources []NamedCollection) (*MerkleTreeCollection, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no settlement collections to merge")
	}
	epoch := sources[0].Collection.Epoch
	slot := sources[0].Collection.Slot
	names := make([]string, 0, len(sources))

	byValidator := orderedmap.New[solana.PublicKey, *treeInput]()
	for _, src := range sources {
		if src.Collection.Epoch != epoch {
			return nil, fmt.Errorf("%w: %s is for epoch %d, %s for epoch %d",
				settlements.ErrEpochMismatch, src.Name, src.Collection.Epoch, sources[0].Name, epoch)
		}
		if src.Collection.Slot != slot {
			b.logger.Sugar().Warnw("Settlement collections were generated at different slots",
				zap.String("source", src.Name),
				zap.Uint64("slot", src.Collection.Slot),
				zap.Uint64("expectedSlot", slot),
			)
		}
		names = append(names, src.Name)

		for i := range src.Collection.Settlements {
			s := &src.Collection.Settlements[i]
			if err := s.Validate(); err != nil {
				return nil, fmt.Errorf("%s: %w", src.Name, err)
			}
			in, ok := byValidator.Get(s.VoteAccount)
			if !ok {
				in = &treeInput{voteAccount: s.VoteAccount, funding: make(map[settlements.Funder]uint64)}
				byValidator.Set(s.VoteAccount, in)
			}
			in.claims = append(in.claims, s.Claims...)
			var err error
			if in.funding[s.Meta.Funder], err = numbers.CheckedAdd(in.funding[s.Meta.Funder], s.ClaimsAmount); err != nil {
				return nil, fmt.Errorf("%s: %s funding of %s: %w", src.Name, s.Meta.Funder, s.VoteAccount, err)
			}
		}
	}

	inputs := make([]treeInput, 0, byValidator.Len())
	for p := byValidator.Oldest(); p != nil; p = p.Next() {
		merged, err := settlements.MergeClaims(p.Value.claims)
		if err != nil {
			return nil, fmt.Errorf("claims of %s: %w", p.Key, err)
		}
		if len(merged) == 0 {
			b.logger.Sugar().Debugw("Skipping validator without claims", zap.String("voteAccount", p.Key.String()))
			continue
		}
		p.Value.claims = merged
		if p.Value.claimsSum, err = settlements.SumClaims(merged); err != nil {
			return nil, fmt.Errorf("claims of %s: %w", p.Key, err)
		}
		var funded uint64
		for _, lamports := range p.Value.funding {
			if funded, err = numbers.CheckedAdd(funded, lamports); err != nil {
				return nil, fmt.Errorf("funding of %s: %w", p.Key, err)
			}
		}
		if funded != p.Value.claimsSum {
			return nil, fmt.Errorf("%w: %s claims %d lamports but funding sources hold %d",
				settlements.ErrInvariantViolation, p.Key, p.Value.claimsSum, funded)
		}
		inputs = append(inputs, *p.Value)
	}
	sort.SliceStable(inputs, func(i, j int) bool {
		return bytes.Compare(inputs[i].voteAccount[:], inputs[j].voteAccount[:]) < 0
	})

	trees, err := b.buildAll(ctx, inputs, epoch)
	if err != nil {
		return nil, err
	}
	b.logger.Sugar().Infow("Built unified merkle trees",
		zap.Uint64("epoch", epoch),
		zap.Int("sources", len(sources)),
		zap.Int("trees", len(trees)),
	)
	return &MerkleTreeCollection{
		Epoch:                epoch,
		Slot:                 slot,
		ValidatorBondsConfig: b.validatorBondsConfig,
		Sources:              names,
		MerkleTrees:          trees,
	}, nil
}

func (b *Builder) buildAll(ctx context.Context, inputs []treeInput, epoch uint64) ([]MerkleTreeMeta, error) {
	trees := make([]MerkleTreeMeta, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := range inputs {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tree, err := b.buildTree(&inputs[i], epoch)
			if err != nil {
				return fmt.Errorf("tree of %s: %w", inputs[i].voteAccount, err)
			}
			trees[i] = *tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trees, nil
}

func (b *Builder) buildTree(in *treeInput, epoch uint64) (*MerkleTreeMeta, error) {
	// every authority pair may appear only once in a tree
	seen := orderedmap.New[stakeIndex.AuthorityPair, int]()
	nodes := make([]merkle.TreeNode, len(in.claims))
	hashes := make([]merkle.Hash, len(in.claims))
	var sum uint64
	for i := range in.claims {
		c := &in.claims[i]
		if prev, present := seen.Set(c.Pair(), i); present {
			return nil, fmt.Errorf("%w: claims %d and %d share authorities %s/%s",
				settlements.ErrInvariantViolation, prev, i, c.WithdrawAuthority, c.StakeAuthority)
		}
		nodes[i] = merkle.TreeNode{
			StakeAuthority:    c.StakeAuthority,
			WithdrawAuthority: c.WithdrawAuthority,
			Claim:             c.ClaimAmount,
			Index:             uint64(i),
		}
		hashes[i] = nodes[i].Hash()
		sum += c.ClaimAmount
	}
	if sum != in.claimsSum {
		return nil, fmt.Errorf("%w: tree nodes sum to %d, expected %d", settlements.ErrInvariantViolation, sum, in.claimsSum)
	}

	tree := merkle.NewMerkleTree(hashes)
	meta := &MerkleTreeMeta{
		MaxTotalClaimSum: sum,
		MaxTotalClaims:   uint64(len(nodes)),
		VoteAccount:      in.voteAccount,
		FundingSources:   in.funding,
		TreeNodes:        nodes,
	}
	root, ok := tree.Root()
	if !ok {
		return meta, nil
	}
	meta.MerkleRoot = &root
	for i := range nodes {
		proof, err := tree.Proof(i)
		if err != nil {
			return nil, err
		}
		nodes[i].Proof = proof
	}

	if !b.validatorBondsConfig.IsZero() {
		bond, err := BondAddress(b.validatorBondsConfig, in.voteAccount)
		if err != nil {
			return nil, fmt.Errorf("bond address: %w", err)
		}
		settlement, err := SettlementAddress(bond, root, epoch)
		if err != nil {
			return nil, fmt.Errorf("settlement address: %w", err)
		}
		meta.BondAccount = &bond
		meta.SettlementAccount = &settlement
	}
	return meta, nil
}

// VerifyCollection re-checks every node proof against its tree root.
func VerifyCollection(collection *MerkleTreeCollection) error {
	for _, t := range collection.MerkleTrees {
		if len(t.TreeNodes) == 0 {
			continue
		}
		if t.MerkleRoot == nil {
			return fmt.Errorf("%w: tree of %s has nodes but no root", settlements.ErrInvariantViolation, t.VoteAccount)
		}
		for i := range t.TreeNodes {
			n := &t.TreeNodes[i]
			if !merkle.VerifyProof(n.Proof, *t.MerkleRoot, n.Hash()) {
				return fmt.Errorf("%w: proof of node %d in tree of %s does not match root %s",
					settlements.ErrInvariantViolation, n.Index, t.VoteAccount, t.MerkleRoot)
			}
		}
	}
	return nil
}
