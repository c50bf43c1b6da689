package protectedEvents

import (
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

type ValidatorMeta struct {
	VoteAccount   solana.PublicKey `json:"vote_account"`
	Commission    uint8            `json:"commission"`
	MevCommission *uint16          `json:"mev_commission"`
	Stake         uint64           `json:"stake"`
	Credits       uint64           `json:"credits"`
}

type ValidatorMetaCollection struct {
	Epoch                uint64          `json:"epoch"`
	Slot                 uint64          `json:"slot"`
	Capitalization       uint64          `json:"capitalization"`
	EpochDurationInYears float64         `json:"epoch_duration_in_years"`
	ValidatorRate        float64         `json:"validator_rate"`
	ValidatorRewards     uint64          `json:"validator_rewards"`
	ValidatorMetas       []ValidatorMeta `json:"validator_metas"`
}

// TotalStake sums the stake delegated to every validator.
func (c *ValidatorMetaCollection) TotalStake() decimal.Decimal {
	total := decimal.Zero
	for _, v := range c.ValidatorMetas {
		total = total.Add(decimal.NewFromUint64(v.Stake))
	}
	return total
}

// TotalStakeWeightedCredits sums credits*stake over every validator.
func (c *ValidatorMetaCollection) TotalStakeWeightedCredits() decimal.Decimal {
	total := decimal.Zero
	for _, v := range c.ValidatorMetas {
		total = total.Add(decimal.NewFromUint64(v.Credits).Mul(decimal.NewFromUint64(v.Stake)))
	}
	return total
}

// RevenueExpectationMeta is what the auction expected a validator to pay its
// stakers and what it actually paid. PMPE values are SOL per 1000 staked SOL.
type RevenueExpectationMeta struct {
	VoteAccount                     solana.PublicKey `json:"voteAccount"`
	ExpectedInflationCommission     decimal.Decimal  `json:"expectedInflationCommission"`
	ActualInflationCommission       decimal.Decimal  `json:"actualInflationCommission"`
	PastInflationCommission         decimal.Decimal  `json:"pastInflationCommission"`
	ExpectedMevCommission           *decimal.Decimal `json:"expectedMevCommission"`
	ActualMevCommission             *decimal.Decimal `json:"actualMevCommission"`
	PastMevCommission               *decimal.Decimal `json:"pastMevCommission"`
	ExpectedNonBidPmpe              decimal.Decimal  `json:"expectedNonBidPmpe"`
	ActualNonBidPmpe                decimal.Decimal  `json:"actualNonBidPmpe"`
	ExpectedSamPmpe                 decimal.Decimal  `json:"expectedSamPmpe"`
	BeforeSamCommissionIncreasePmpe decimal.Decimal  `json:"beforeSamCommissionIncreasePmpe"`
	MaxSamStake                     *decimal.Decimal `json:"maxSamStake"`
	SamStakeShare                   decimal.Decimal  `json:"samStakeShare"`
	LossPerStake                    decimal.Decimal  `json:"lossPerStake"`
}

type RevenueExpectationMetaCollection struct {
	Epoch               uint64                   `json:"epoch"`
	Slot                uint64                   `json:"slot"`
	RevenueExpectations []RevenueExpectationMeta `json:"revenueExpectations"`
}
