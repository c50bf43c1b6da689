package samMeta

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

type Tvl struct {
	MarinadeMndeTvlSol decimal.Decimal `json:"marinadeMndeTvlSol"`
	MarinadeSamTvlSol  decimal.Decimal `json:"marinadeSamTvlSol"`
}

type SamMetadata struct {
	ScoringId                   string          `json:"scoringId"`
	Tvl                         Tvl             `json:"tvl"`
	DelegationStrategyMndeVotes decimal.Decimal `json:"delegationStrategyMndeVotes"`
}

// RevShare holds the auction's per-mille-per-epoch figures for a validator.
type RevShare struct {
	TotalPmpe                     decimal.Decimal  `json:"totalPmpe"`
	InflationPmpe                 decimal.Decimal  `json:"inflationPmpe"`
	MevPmpe                       decimal.Decimal  `json:"mevPmpe"`
	BidPmpe                       decimal.Decimal  `json:"bidPmpe"`
	AuctionEffectiveBidPmpe       decimal.Decimal  `json:"auctionEffectiveBidPmpe"`
	BidTooLowPenaltyPmpe          decimal.Decimal  `json:"bidTooLowPenaltyPmpe"`
	BlacklistPenaltyPmpe          decimal.Decimal  `json:"blacklistPenaltyPmpe"`
	EffParticipatingBidPmpe       decimal.Decimal  `json:"effParticipatingBidPmpe"`
	ExpectedMaxEffBidPmpe         decimal.Decimal  `json:"expectedMaxEffBidPmpe"`
	BlockPmpe                     *decimal.Decimal `json:"blockPmpe,omitempty"`
	OnchainDistributedPmpe        *decimal.Decimal `json:"onchainDistributedPmpe,omitempty"`
	BondObligationPmpe            *decimal.Decimal `json:"bondObligationPmpe,omitempty"`
	AuctionEffectiveStaticBidPmpe *decimal.Decimal `json:"auctionEffectiveStaticBidPmpe,omitempty"`
}

// CommissionDetails are commission rates as fractions of one. The "in bond"
// rates are what the validator committed to; "onchain" rates are what it charged.
type CommissionDetails struct {
	InflationCommissionDec            decimal.Decimal  `json:"inflationCommissionDec"`
	MevCommissionDec                  decimal.Decimal  `json:"mevCommissionDec"`
	BlockRewardsCommissionDec         decimal.Decimal  `json:"blockRewardsCommissionDec"`
	InflationCommissionOnchainDec     decimal.Decimal  `json:"inflationCommissionOnchainDec"`
	InflationCommissionInBondDec      *decimal.Decimal `json:"inflationCommissionInBondDec,omitempty"`
	InflationCommissionOverrideDec    *decimal.Decimal `json:"inflationCommissionOverrideDec,omitempty"`
	MevCommissionOnchainDec           *decimal.Decimal `json:"mevCommissionOnchainDec,omitempty"`
	MevCommissionInBondDec            *decimal.Decimal `json:"mevCommissionInBondDec,omitempty"`
	MevCommissionOverrideDec          *decimal.Decimal `json:"mevCommissionOverrideDec,omitempty"`
	BlockRewardsCommissionInBondDec   *decimal.Decimal `json:"blockRewardsCommissionInBondDec,omitempty"`
	BlockRewardsCommissionOverrideDec *decimal.Decimal `json:"blockRewardsCommissionOverrideDec,omitempty"`
}

type AuctionValidatorValues struct {
	BondBalanceSol            *decimal.Decimal   `json:"bondBalanceSol,omitempty"`
	MarinadeActivatedStakeSol decimal.Decimal    `json:"marinadeActivatedStakeSol"`
	BondRiskFeeSol            decimal.Decimal    `json:"bondRiskFeeSol"`
	PaidUndelegationSol       decimal.Decimal    `json:"paidUndelegationSol"`
	SamBlacklisted            bool               `json:"samBlacklisted"`
	Commissions               *CommissionDetails `json:"commissions,omitempty"`
}

// ValidatorSamMeta is one validator's outcome of the stake auction for an epoch.
type ValidatorSamMeta struct {
	VoteAccount           solana.PublicKey        `json:"voteAccount"`
	MarinadeMndeTargetSol decimal.Decimal         `json:"marinadeMndeTargetSol"`
	MarinadeSamTargetSol  decimal.Decimal         `json:"marinadeSamTargetSol"`
	RevShare              RevShare                `json:"revShare"`
	StakePriority         uint32                  `json:"stakePriority"`
	UnstakePriority       uint32                  `json:"unstakePriority"`
	MaxStakeWanted        decimal.Decimal         `json:"maxStakeWanted"`
	EffectiveBid          decimal.Decimal         `json:"effectiveBid"`
	Constraints           string                  `json:"constraints"`
	Metadata              SamMetadata             `json:"metadata"`
	ScoringRunId          uint32                  `json:"scoringRunId"`
	Epoch                 uint64                  `json:"epoch"`
	Values                *AuctionValidatorValues `json:"values,omitempty"`
}

// Commissions returns the commission details when the auction published them.
func (v *ValidatorSamMeta) Commissions() *CommissionDetails {
	if v.Values == nil {
		return nil
	}
	return v.Values.Commissions
}

// EffectiveStaticBidPmpe is the static bid charged by the auction, falling back
// to the effective bid when the auction did not publish a static one.
func (v *ValidatorSamMeta) EffectiveStaticBidPmpe() decimal.Decimal {
	if v.RevShare.AuctionEffectiveStaticBidPmpe != nil {
		return *v.RevShare.AuctionEffectiveStaticBidPmpe
	}
	return v.EffectiveBid
}

// ValidateEpoch checks every validator meta belongs to the given epoch.
func ValidateEpoch(metas []ValidatorSamMeta, epoch uint64) error {
	for _, m := range metas {
		if m.Epoch != epoch {
			return fmt.Errorf("sam meta of %s is for epoch %d, expected %d", m.VoteAccount, m.Epoch, epoch)
		}
	}
	return nil
}
