package generators

import (
	"fmt"

	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
	"github.com/marinade-finance/bonds-settlements/pkg/rewards"
	"github.com/marinade-finance/bonds-settlements/pkg/samMeta"
	"github.com/marinade-finance/bonds-settlements/pkg/settlementConfig"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	SkipNoStake           = "no_stake"
	SkipZeroTotalStake    = "zero_total_stake"
	SkipZeroProtocolStake = "zero_protocol_stake"
	SkipNoAuctionValues   = "no_auction_values"
)

// BidClaims are the four components a validator owes for an epoch of auction stake.
type BidClaims struct {
	InflationCommissionClaim decimal.Decimal `json:"inflation_commission_claim"`
	MevCommissionClaim       decimal.Decimal `json:"mev_commission_claim"`
	BlockCommissionClaim     decimal.Decimal `json:"block_commission_claim"`
	StaticBidClaim           decimal.Decimal `json:"static_bid_claim"`
}

func (c BidClaims) Sum() decimal.Decimal {
	return c.InflationCommissionClaim.
		Add(c.MevCommissionClaim).
		Add(c.BlockCommissionClaim).
		Add(c.StaticBidClaim)
}

type BidSettlementDetails struct {
	TotalActiveStake                uint64    `json:"total_active_stake"`
	TotalMarinadeActiveStake        uint64    `json:"total_marinade_active_stake"`
	AuctionEffectiveStaticBid       string    `json:"auction_effective_static_bid"`
	EffectiveSamMarinadeActiveStake uint64    `json:"effective_sam_marinade_active_stake"`
	MarinadeStakeShare              string    `json:"marinade_stake_share"`
	MarinadeInflationRewards        string    `json:"marinade_inflation_rewards"`
	MarinadeMevRewards              string    `json:"marinade_mev_rewards"`
	MarinadeBlockRewards            string    `json:"marinade_block_rewards"`
	StakerInflationRewards          *string   `json:"staker_inflation_rewards"`
	StakerMevRewards                *string   `json:"staker_mev_rewards"`
	StakerBlockRewards              *string   `json:"staker_block_rewards"`
	StakerBidRewards                *string   `json:"staker_bid_rewards"`
	TotalMarinadeStakersRewards     string    `json:"total_marinade_stakers_rewards"`
	SettlementClaims                BidClaims `json:"settlement_claims"`
	StakersTotalClaim               uint64    `json:"stakers_total_claim"`
	MarinadeFeeClaim                uint64    `json:"marinade_fee_claim"`
	DaoFeeClaim                     uint64    `json:"dao_fee_claim"`
}

// GenerateBidSettlements charges each auction validator for the commission it
// took above what it committed to plus its static bid, and splits the charge
// between protocol stakers, the protocol fee and the DAO fee.
func (sg *SettlementGenerator) GenerateBidSettlements(
	samMetas []samMeta.ValidatorSamMeta,
	rewardsCollection *rewards.RewardsCollection,
	cfg *settlementConfig.SettlementConfig,
	feeConfig *settlementConfig.FeeConfig,
) ([]settlements.Settlement, error) {
	sg.logger.Sugar().Infow("Generating bid settlements",
		zap.Uint64("epoch", sg.stakeIndex.Epoch()),
		zap.Int("validators", len(samMetas)),
	)
	out := make([]settlements.Settlement, 0)

	for i := range samMetas {
		validator := &samMetas[i]
		settlement, err := sg.bidSettlement(validator, rewardsCollection, cfg, feeConfig)
		if err != nil {
			return nil, fmt.Errorf("bid settlement of %s: %w", validator.VoteAccount, err)
		}
		if settlement == nil {
			continue
		}
		out = append(out, *settlement)
	}
	return out, nil
}

func (sg *SettlementGenerator) bidSettlement(
	validator *samMeta.ValidatorSamMeta,
	rewardsCollection *rewards.RewardsCollection,
	cfg *settlementConfig.SettlementConfig,
	feeConfig *settlementConfig.FeeConfig,
) (*settlements.Settlement, error) {
	vs, ok, err := sg.validatorStake(validator.VoteAccount)
	if err != nil {
		return nil, err
	}
	if !ok {
		sg.logger.Sugar().Debugw("No stake delegated to validator", zap.String("voteAccount", validator.VoteAccount.String()))
		return nil, nil
	}
	if vs.totalStake == 0 {
		sg.skip(validator.VoteAccount, SkipZeroTotalStake)
		return nil, nil
	}
	if vs.protocolStake == 0 {
		sg.skip(validator.VoteAccount, SkipZeroProtocolStake, zap.Uint64("totalStake", vs.totalStake))
		return nil, nil
	}

	rw := rewardsCollection.Get(validator.VoteAccount)
	if rw == nil {
		sg.logger.Sugar().Warnw("No rewards found for validator, using zero",
			zap.String("voteAccount", validator.VoteAccount.String()),
			zap.Uint64("epoch", sg.stakeIndex.Epoch()),
		)
		rw = &rewards.VoteAccountRewards{VoteAccount: validator.VoteAccount}
	}

	protocolStake := decimal.NewFromUint64(vs.protocolStake)
	share := numbers.CalculateStakeShare(vs.protocolStake, vs.totalStake)
	inflationRewards := decimal.NewFromUint64(rw.InflationRewards).Mul(share)
	mevRewards := decimal.NewFromUint64(rw.MevRewards).Mul(share)
	blockRewards := decimal.NewFromUint64(rw.BlockRewards).Mul(share)

	var claims BidClaims
	commissions := validator.Commissions()
	if commissions != nil {
		if claims, err = commissionClaims(commissions, rw, inflationRewards, mevRewards, blockRewards); err != nil {
			return nil, err
		}
	}

	details := BidSettlementDetails{
		TotalActiveStake:                vs.totalStake,
		TotalMarinadeActiveStake:        vs.protocolStake,
		EffectiveSamMarinadeActiveStake: vs.protocolStake,
		MarinadeStakeShare:              share.String(),
		MarinadeInflationRewards:        inflationRewards.String(),
		MarinadeMevRewards:              mevRewards.String(),
		MarinadeBlockRewards:            blockRewards.String(),
	}

	// baseline is what the auction promised protocol stakers this epoch
	var baseline decimal.Decimal
	if commissions != nil {
		stakerInflation := inflationRewards.Mul(decimal.NewFromInt(1).Sub(commissions.InflationCommissionDec))
		stakerMev := mevRewards.Mul(decimal.NewFromInt(1).Sub(commissions.MevCommissionDec))
		stakerBlock := blockRewards.Mul(decimal.NewFromInt(1).Sub(commissions.BlockRewardsCommissionDec))
		stakerBid := numbers.PerMille(validator.RevShare.BidPmpe).Mul(protocolStake)
		baseline = stakerInflation.Add(stakerMev).Add(stakerBlock).Add(stakerBid)

		details.StakerInflationRewards = decimalString(stakerInflation)
		details.StakerMevRewards = decimalString(stakerMev)
		details.StakerBlockRewards = decimalString(stakerBlock)
		details.StakerBidRewards = decimalString(stakerBid)
	} else {
		baseline = protocolStake.Mul(numbers.PerMille(validator.RevShare.TotalPmpe))
	}

	staticBidPmpe := validator.EffectiveStaticBidPmpe()
	claims.StaticBidClaim = protocolStake.Mul(numbers.PerMille(staticBidPmpe))

	total := claims.Sum()
	split, err := bidFeeSplit(total, baseline, feeConfig)
	if err != nil {
		return nil, err
	}
	sg.logger.Sugar().Debugw("Bid settlement totals",
		zap.String("voteAccount", validator.VoteAccount.String()),
		zap.String("stakersRewards", baseline.String()),
		zap.String("totalClaim", total.String()),
		zap.Uint64("distributorFee", split.distributor),
	)

	settlementClaims, claimed, err := sg.stakerClaims(vs, split.stakers)
	if err != nil {
		return nil, err
	}
	settlementClaims, claimed, err = sg.appendFeeClaims(settlementClaims, claimed, split, feeConfig, vs.protocolStake, split.total)
	if err != nil {
		return nil, err
	}

	details.AuctionEffectiveStaticBid = staticBidPmpe.String()
	details.TotalMarinadeStakersRewards = baseline.String()
	details.SettlementClaims = claims
	details.StakersTotalClaim = split.stakers
	details.MarinadeFeeClaim = split.protocol
	details.DaoFeeClaim = split.dao

	list, err := appendSettlement(nil, settlements.NewReason(settlements.ReasonBidding), cfg.Meta,
		validator.VoteAccount, settlementClaims, claimed, details)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// commissionClaims charges the protocol share of rewards for every category in
// which the on-chain commission exceeded the committed one.
func commissionClaims(
	c *samMeta.CommissionDetails,
	rw *rewards.VoteAccountRewards,
	inflationRewards, mevRewards, blockRewards decimal.Decimal,
) (BidClaims, error) {
	one := decimal.NewFromInt(1)
	var claims BidClaims

	inflationInBond := one
	if c.InflationCommissionInBondDec != nil {
		inflationInBond = *c.InflationCommissionInBondDec
	}
	if c.InflationCommissionOnchainDec.GreaterThan(one) {
		return claims, fmt.Errorf("%w: on-chain inflation commission %s is above 1",
			settlements.ErrInvariantViolation, c.InflationCommissionOnchainDec)
	}
	if c.InflationCommissionOnchainDec.GreaterThan(inflationInBond) {
		claims.InflationCommissionClaim = inflationRewards.Mul(c.InflationCommissionOnchainDec.Sub(inflationInBond))
	}

	if c.MevCommissionInBondDec != nil {
		mevOnchain := one
		if c.MevCommissionOnchainDec != nil {
			mevOnchain = *c.MevCommissionOnchainDec
		}
		if mevOnchain.GreaterThan(*c.MevCommissionInBondDec) {
			claims.MevCommissionClaim = mevRewards.Mul(mevOnchain.Sub(*c.MevCommissionInBondDec))
		}
	}

	if c.BlockRewardsCommissionInBondDec != nil && rw.BlockRewards > 0 {
		block := decimal.NewFromUint64(rw.BlockRewards)
		blockOnchain := numbers.Div(block.Sub(decimal.NewFromUint64(rw.JitoPriorityFeeRewards)), block)
		if blockOnchain.GreaterThan(*c.BlockRewardsCommissionInBondDec) {
			claims.BlockCommissionClaim = blockRewards.Mul(blockOnchain.Sub(*c.BlockRewardsCommissionInBondDec))
		}
	}
	return claims, nil
}

// bidFeeSplit takes the distributor fee as fee_bps of the stakers' baseline,
// capped at the total charge.
func bidFeeSplit(total, baseline decimal.Decimal, feeConfig *settlementConfig.FeeConfig) (feeSplit, error) {
	minimumFee := baseline.Mul(numbers.BpsToFraction(feeConfig.MarinadeFeeBps))
	distributor, err := numbers.FloorToLamports(decimal.Min(minimumFee, total))
	if err != nil {
		return feeSplit{}, fmt.Errorf("distributor fee: %w", err)
	}
	totalLamports, err := numbers.FloorToLamports(total)
	if err != nil {
		return feeSplit{}, fmt.Errorf("total claim: %w", err)
	}
	dao, err := numbers.CalculateDaoFee(distributor, feeConfig.Dao.FeeSplitShareBps)
	if err != nil {
		return feeSplit{}, fmt.Errorf("dao fee: %w", err)
	}
	split := feeSplit{
		total:       totalLamports,
		distributor: distributor,
		stakers:     numbers.SaturatingSub(totalLamports, distributor),
		dao:         dao,
		protocol:    distributor - dao,
	}
	return split, split.validate()
}

func decimalString(d decimal.Decimal) *string {
	s := d.String()
	return &s
}
