package stakeIndex

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// StakeMeta is a single delegated stake account as captured by the snapshot parser.
type StakeMeta struct {
	Pubkey                         solana.PublicKey  `json:"pubkey"`
	BalanceLamports                uint64            `json:"balance_lamports"`
	ActiveDelegationLamports       uint64            `json:"active_delegation_lamports"`
	ActivatingDelegationLamports   uint64            `json:"activating_delegation_lamports"`
	DeactivatingDelegationLamports uint64            `json:"deactivating_delegation_lamports"`
	Validator                      *solana.PublicKey `json:"validator,omitempty"`
	StakeAuthority                 solana.PublicKey  `json:"stake_authority"`
	WithdrawAuthority              solana.PublicKey  `json:"withdraw_authority"`
}

type StakeMetaCollection struct {
	Epoch      uint64      `json:"epoch"`
	Slot       uint64      `json:"slot"`
	StakeMetas []StakeMeta `json:"stake_metas"`
}

// AuthorityPair identifies a staker by the (withdraw, stake) authority couple.
type AuthorityPair struct {
	Withdraw solana.PublicKey
	Stake    solana.PublicKey
}

// Compare orders pairs by withdraw authority bytes, then stake authority bytes.
func (a AuthorityPair) Compare(b AuthorityPair) int {
	if c := bytes.Compare(a.Withdraw[:], b.Withdraw[:]); c != 0 {
		return c
	}
	return bytes.Compare(a.Stake[:], b.Stake[:])
}

func (a AuthorityPair) IsZero() bool {
	return a.Withdraw.IsZero() && a.Stake.IsZero()
}

// StakeGroup holds every stake account of one authority pair delegated to one validator.
type StakeGroup struct {
	Pair       AuthorityPair
	StakeMetas []StakeMeta
}

// ActiveStake sums the active delegation of the group.
func (g StakeGroup) ActiveStake() (uint64, error) {
	var total uint64
	for _, sm := range g.StakeMetas {
		var err error
		if total, err = numbers.CheckedAdd(total, sm.ActiveDelegationLamports); err != nil {
			return 0, fmt.Errorf("stake of %s/%s: %w", g.Pair.Withdraw, g.Pair.Stake, err)
		}
	}
	return total, nil
}

// StakeAccounts maps each stake account of the group to its active delegation.
func (g StakeGroup) StakeAccounts() map[solana.PublicKey]uint64 {
	accounts := make(map[solana.PublicKey]uint64, len(g.StakeMetas))
	for _, sm := range g.StakeMetas {
		accounts[sm.Pubkey] = sm.ActiveDelegationLamports
	}
	return accounts
}

// StakeIndex groups stake metas by validator and then by authority pair.
// It is built once and never mutated afterwards.
type StakeIndex struct {
	collection *StakeMetaCollection
	groups     map[solana.PublicKey][]StakeGroup
}

func NewStakeIndex(collection *StakeMetaCollection) *StakeIndex {
	byValidator := make(map[solana.PublicKey]*orderedmap.OrderedMap[AuthorityPair, []StakeMeta])

	for _, sm := range collection.StakeMetas {
		if sm.Validator == nil {
			continue
		}
		pairs, ok := byValidator[*sm.Validator]
		if !ok {
			pairs = orderedmap.New[AuthorityPair, []StakeMeta]()
			byValidator[*sm.Validator] = pairs
		}
		pair := AuthorityPair{Withdraw: sm.WithdrawAuthority, Stake: sm.StakeAuthority}
		existing, _ := pairs.Get(pair)
		pairs.Set(pair, append(existing, sm))
	}

	groups := make(map[solana.PublicKey][]StakeGroup, len(byValidator))
	for validator, pairs := range byValidator {
		list := make([]StakeGroup, 0, pairs.Len())
		for p := pairs.Oldest(); p != nil; p = p.Next() {
			list = append(list, StakeGroup{Pair: p.Key, StakeMetas: p.Value})
		}
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Pair.Compare(list[j].Pair) < 0
		})
		groups[validator] = list
	}

	return &StakeIndex{
		collection: collection,
		groups:     groups,
	}
}

func (si *StakeIndex) Epoch() uint64 {
	return si.collection.Epoch
}

func (si *StakeIndex) Slot() uint64 {
	return si.collection.Slot
}

// GroupedStakeMetas returns the authority-pair groups delegated to a validator,
// ordered by pair. The second value is false if the validator has no stake.
func (si *StakeIndex) GroupedStakeMetas(voteAccount solana.PublicKey) ([]StakeGroup, bool) {
	g, ok := si.groups[voteAccount]
	return g, ok
}

// FeeDepositStakeAccounts looks up the first stake account owned by the given
// authority pair. Fee claims reference it so the distributor can route funds.
func (si *StakeIndex) FeeDepositStakeAccounts(pair AuthorityPair) map[solana.PublicKey]uint64 {
	accounts := make(map[solana.PublicKey]uint64)
	for _, sm := range si.collection.StakeMetas {
		if sm.WithdrawAuthority.Equals(pair.Withdraw) && sm.StakeAuthority.Equals(pair.Stake) {
			accounts[sm.Pubkey] = sm.ActiveDelegationLamports
			break
		}
	}
	return accounts
}

// StakeToVoteAccount maps each delegated stake account to its validator.
func (si *StakeIndex) StakeToVoteAccount() map[solana.PublicKey]solana.PublicKey {
	m := make(map[solana.PublicKey]solana.PublicKey, len(si.collection.StakeMetas))
	for _, sm := range si.collection.StakeMetas {
		if sm.Validator != nil {
			m[sm.Pubkey] = *sm.Validator
		}
	}
	return m
}
