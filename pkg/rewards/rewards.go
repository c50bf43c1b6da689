package rewards

import (
	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
)

const (
	InflationRewardsFile           = "inflation.json"
	JitoPriorityFeeFile            = "jito_priority_fee.json"
	MevRewardsFile                 = "mev.json"
	ValidatorsBlocksRewardsFile    = "validators_blocks.json"
	ValidatorsInflationRewardsFile = "validators_inflation.json"
	ValidatorsMevRewardsFile       = "validators_mev.json"
)

// StakeRewardEntry is a reward paid into a stake account.
type StakeRewardEntry struct {
	Epoch        uint64             `json:"epoch"`
	StakeAccount solana.PublicKey   `json:"stake_account"`
	Amount       numbers.FlexUint64 `json:"amount"`
}

// VoteRewardEntry is a reward kept by a validator on its vote account.
type VoteRewardEntry struct {
	Epoch       uint64             `json:"epoch"`
	VoteAccount solana.PublicKey   `json:"vote_account"`
	Amount      numbers.FlexUint64 `json:"amount"`
}

type ValidatorBlockRewardEntry struct {
	Epoch           uint64             `json:"epoch"`
	IdentityAccount solana.PublicKey   `json:"identity_account"`
	NodePubkey      solana.PublicKey   `json:"node_pubkey"`
	AuthorizedVoter solana.PublicKey   `json:"authorized_voter"`
	VoteAccount     solana.PublicKey   `json:"vote_account"`
	Amount          numbers.FlexUint64 `json:"amount"`
}

// VoteAccountRewards aggregates every reward earned through one vote account in an epoch.
//
// TotalAmount does not include the jito priority fee; that fee redistributes
// block rewards the validator already earned.
type VoteAccountRewards struct {
	VoteAccount            solana.PublicKey
	TotalAmount            uint64
	InflationRewards       uint64
	MevRewards             uint64
	BlockRewards           uint64
	JitoPriorityFeeRewards uint64
	ValidatorsTotalAmount  uint64

	StakersInflationRewards   uint64
	StakersMevRewards         uint64
	StakersPriorityFeeRewards uint64
	StakersTotalAmount        uint64
}

type RewardsCollection struct {
	Epoch                uint64
	RewardsByVoteAccount map[solana.PublicKey]*VoteAccountRewards
}

// Get returns the rewards of a vote account, or nil when it earned nothing.
func (rc *RewardsCollection) Get(voteAccount solana.PublicKey) *VoteAccountRewards {
	return rc.RewardsByVoteAccount[voteAccount]
}

func (rc *RewardsCollection) HasRewards(voteAccount solana.PublicKey) bool {
	_, ok := rc.RewardsByVoteAccount[voteAccount]
	return ok
}

// TotalRewards sums TotalAmount across all vote accounts.
func (rc *RewardsCollection) TotalRewards() uint64 {
	var total uint64
	for _, r := range rc.RewardsByVoteAccount {
		total = numbers.SaturatingAdd(total, r.TotalAmount)
	}
	return total
}
