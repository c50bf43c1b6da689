package generators

import (
	"fmt"

	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
	"github.com/marinade-finance/bonds-settlements/pkg/samMeta"
	"github.com/marinade-finance/bonds-settlements/pkg/settlementConfig"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type BidTooLowPenaltyDetails struct {
	TotalMarinadeActiveStake         uint64 `json:"total_marinade_active_stake"`
	EffectiveSamMarinadeActiveStake  uint64 `json:"effective_sam_marinade_active_stake"`
	BidTooLowPenaltyPmpe             string `json:"bid_too_low_penalty_pmpe"`
	BidTooLowPenaltyTotalClaim       string `json:"bid_too_low_penalty_total_claim"`
	DistributorBidTooLowPenaltyClaim uint64 `json:"distributor_bid_too_low_penalty_claim"`
	StakersBidTooLowPenaltyClaim     uint64 `json:"stakers_bid_too_low_penalty_claim"`
	DaoBidTooLowPenaltyClaim         uint64 `json:"dao_bid_too_low_penalty_claim"`
	MarinadeBidTooLowPenaltyClaim    uint64 `json:"marinade_bid_too_low_penalty_claim"`
}

type BlacklistPenaltyDetails struct {
	TotalMarinadeActiveStake        uint64 `json:"total_marinade_active_stake"`
	EffectiveSamMarinadeActiveStake uint64 `json:"effective_sam_marinade_active_stake"`
	BlacklistPenaltyPmpe            string `json:"blacklist_penalty_pmpe"`
	BlacklistPenaltyTotalClaim      string `json:"blacklist_penalty_total_claim"`
	StakersBlacklistPenaltyClaim    uint64 `json:"stakers_blacklist_penalty_claim"`
}

type BondRiskFeeDetails struct {
	TotalMarinadeActiveStake uint64 `json:"total_marinade_active_stake"`
	BondRiskFeeSol           string `json:"bond_risk_fee_sol"`
	StakersBondRiskFeeClaim  uint64 `json:"stakers_bond_risk_fee_claim"`
}

// GeneratePenaltySettlements charges auction penalties. A nil config disables
// that penalty kind.
func (sg *SettlementGenerator) GeneratePenaltySettlements(
	samMetas []samMeta.ValidatorSamMeta,
	bidTooLowCfg *settlementConfig.SettlementConfig,
	blacklistCfg *settlementConfig.SettlementConfig,
	feeConfig *settlementConfig.FeeConfig,
) ([]settlements.Settlement, error) {
	sg.logger.Sugar().Infow("Generating penalty settlements",
		zap.Uint64("epoch", sg.stakeIndex.Epoch()),
		zap.Bool("bidTooLow", bidTooLowCfg != nil),
		zap.Bool("blacklist", blacklistCfg != nil),
	)
	out := make([]settlements.Settlement, 0)

	for i := range samMetas {
		validator := &samMetas[i]
		vs, ok, err := sg.validatorStake(validator.VoteAccount)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if bidTooLowCfg != nil {
			if out, err = sg.bidTooLowPenalty(out, validator, vs, bidTooLowCfg, feeConfig); err != nil {
				return nil, fmt.Errorf("bid too low penalty of %s: %w", validator.VoteAccount, err)
			}
		}
		if blacklistCfg != nil {
			if out, err = sg.blacklistPenalty(out, validator, vs, blacklistCfg); err != nil {
				return nil, fmt.Errorf("blacklist penalty of %s: %w", validator.VoteAccount, err)
			}
		}
	}
	return out, nil
}

func (sg *SettlementGenerator) bidTooLowPenalty(
	out []settlements.Settlement,
	validator *samMeta.ValidatorSamMeta,
	vs *validatorStake,
	cfg *settlementConfig.SettlementConfig,
	feeConfig *settlementConfig.FeeConfig,
) ([]settlements.Settlement, error) {
	penaltyPerStake := numbers.PerMille(validator.RevShare.BidTooLowPenaltyPmpe)
	pool := decimal.NewFromUint64(vs.protocolStake).Mul(penaltyPerStake)

	totalLamports, err := numbers.FloorToLamports(pool)
	if err != nil {
		return nil, err
	}
	distributor, err := numbers.CalculateDistributorFee(pool, feeConfig.MarinadeFeeBps)
	if err != nil {
		return nil, err
	}
	dao, err := numbers.CalculateDaoFee(distributor, feeConfig.Dao.FeeSplitShareBps)
	if err != nil {
		return nil, err
	}
	split := feeSplit{
		total:       totalLamports,
		distributor: distributor,
		stakers:     numbers.SaturatingSub(totalLamports, distributor),
		dao:         dao,
		protocol:    numbers.SaturatingSub(distributor, dao),
	}
	if err := split.validate(); err != nil {
		return nil, err
	}

	claims, claimed, err := sg.stakerClaims(vs, split.stakers)
	if err != nil {
		return nil, err
	}
	if vs.protocolStake > 0 {
		if claims, claimed, err = sg.appendFeeClaims(claims, claimed, split, feeConfig, vs.protocolStake, split.total); err != nil {
			return nil, err
		}
	}

	details := BidTooLowPenaltyDetails{
		TotalMarinadeActiveStake:         vs.protocolStake,
		EffectiveSamMarinadeActiveStake:  vs.protocolStake,
		BidTooLowPenaltyPmpe:             penaltyPerStake.String(),
		BidTooLowPenaltyTotalClaim:       pool.String(),
		DistributorBidTooLowPenaltyClaim: split.distributor,
		StakersBidTooLowPenaltyClaim:     split.stakers,
		DaoBidTooLowPenaltyClaim:         split.dao,
		MarinadeBidTooLowPenaltyClaim:    split.protocol,
	}
	return appendSettlement(out, settlements.NewReason(settlements.ReasonBidTooLowPenalty), cfg.Meta,
		validator.VoteAccount, claims, claimed, details)
}

func (sg *SettlementGenerator) blacklistPenalty(
	out []settlements.Settlement,
	validator *samMeta.ValidatorSamMeta,
	vs *validatorStake,
	cfg *settlementConfig.SettlementConfig,
) ([]settlements.Settlement, error) {
	penaltyPerStake := numbers.PerMille(validator.RevShare.BlacklistPenaltyPmpe)
	pool := decimal.NewFromUint64(vs.protocolStake).Mul(penaltyPerStake)
	stakersPool, err := numbers.FloorToLamports(pool)
	if err != nil {
		return nil, err
	}

	claims, claimed, err := sg.stakerClaims(vs, stakersPool)
	if err != nil {
		return nil, err
	}
	details := BlacklistPenaltyDetails{
		TotalMarinadeActiveStake:        vs.protocolStake,
		EffectiveSamMarinadeActiveStake: vs.protocolStake,
		BlacklistPenaltyPmpe:            penaltyPerStake.String(),
		BlacklistPenaltyTotalClaim:      pool.String(),
		StakersBlacklistPenaltyClaim:    stakersPool,
	}
	return appendSettlement(out, settlements.NewReason(settlements.ReasonBlacklistPenalty), cfg.Meta,
		validator.VoteAccount, claims, claimed, details)
}

// GenerateBondRiskFeeSettlements passes the auction's bond risk fee in full to
// the protocol stakers of each validator.
func (sg *SettlementGenerator) GenerateBondRiskFeeSettlements(
	samMetas []samMeta.ValidatorSamMeta,
	cfg *settlementConfig.SettlementConfig,
) ([]settlements.Settlement, error) {
	sg.logger.Sugar().Infow("Generating bond risk fee settlements", zap.Uint64("epoch", sg.stakeIndex.Epoch()))
	out := make([]settlements.Settlement, 0)

	for i := range samMetas {
		validator := &samMetas[i]
		if validator.Values == nil {
			sg.skip(validator.VoteAccount, SkipNoAuctionValues)
			continue
		}
		fee := validator.Values.BondRiskFeeSol
		if !fee.IsPositive() {
			continue
		}
		vs, ok, err := sg.validatorStake(validator.VoteAccount)
		if err != nil {
			return nil, err
		}
		if !ok {
			sg.skip(validator.VoteAccount, SkipNoStake, zap.String("bondRiskFeeSol", fee.String()))
			continue
		}
		if vs.protocolStake == 0 {
			sg.skip(validator.VoteAccount, SkipZeroProtocolStake, zap.String("bondRiskFeeSol", fee.String()))
			continue
		}
		pool, err := numbers.SolToLamports(fee)
		if err != nil {
			return nil, fmt.Errorf("bond risk fee of %s: %w", validator.VoteAccount, err)
		}

		claims, claimed, err := sg.stakerClaims(vs, pool)
		if err != nil {
			return nil, fmt.Errorf("bond risk fee of %s: %w", validator.VoteAccount, err)
		}
		details := BondRiskFeeDetails{
			TotalMarinadeActiveStake: vs.protocolStake,
			BondRiskFeeSol:           fee.String(),
			StakersBondRiskFeeClaim:  pool,
		}
		if out, err = appendSettlement(out, settlements.NewReason(settlements.ReasonBondRiskFee), cfg.Meta,
			validator.VoteAccount, claims, claimed, details); err != nil {
			return nil, err
		}
	}
	return out, nil
}
