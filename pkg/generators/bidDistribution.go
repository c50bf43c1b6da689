package generators

import (
	"fmt"

	"github.com/marinade-finance/bonds-settlements/pkg/protectedEvents"
	"github.com/marinade-finance/bonds-settlements/pkg/rewards"
	"github.com/marinade-finance/bonds-settlements/pkg/samMeta"
	"github.com/marinade-finance/bonds-settlements/pkg/settlementConfig"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"go.uber.org/zap"
)

// BidDistributionInput carries the per-epoch facts the configured settlement
// kinds draw from. SamMetas and Rewards are needed by the auction kinds,
// ProtectedEvents by the protected-event kinds.
type BidDistributionInput struct {
	SamMetas        []samMeta.ValidatorSamMeta
	Rewards         *rewards.RewardsCollection
	ProtectedEvents *protectedEvents.ProtectedEventCollection
}

// GenerateBidDistributionSettlements runs every settlement kind present in cfg
// and returns one collection sorted by reason and vote account.
func (sg *SettlementGenerator) GenerateBidDistributionSettlements(
	cfg *settlementConfig.BidDistributionConfig,
	in *BidDistributionInput,
) (*settlements.SettlementCollection, error) {
	epoch := sg.stakeIndex.Epoch()
	bidding := cfg.BiddingConfig()
	bidTooLow := cfg.BidTooLowPenaltyConfig()
	blacklist := cfg.BlacklistPenaltyConfig()
	bondRiskFee := cfg.BondRiskFeeConfig()
	psr := cfg.PsrSettlements()

	auction := bidding != nil || bidTooLow != nil || blacklist != nil || bondRiskFee != nil
	if auction {
		if in.SamMetas == nil {
			return nil, fmt.Errorf("auction settlements are configured but no sam metas were provided")
		}
		if err := samMeta.ValidateEpoch(in.SamMetas, epoch); err != nil {
			return nil, fmt.Errorf("%w: %s", settlements.ErrEpochMismatch, err.Error())
		}
	}
	if bidding != nil {
		if in.Rewards == nil {
			return nil, fmt.Errorf("bidding settlements are configured but no rewards were provided")
		}
		if in.Rewards.Epoch != epoch {
			return nil, fmt.Errorf("%w: rewards for epoch %d, stake metas for epoch %d",
				settlements.ErrEpochMismatch, in.Rewards.Epoch, epoch)
		}
	}

	out := make([]settlements.Settlement, 0)
	if bidding != nil {
		list, err := sg.GenerateBidSettlements(in.SamMetas, in.Rewards, bidding, &cfg.FeeConfig)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	if bidTooLow != nil || blacklist != nil {
		list, err := sg.GeneratePenaltySettlements(in.SamMetas, bidTooLow, blacklist, &cfg.FeeConfig)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	if bondRiskFee != nil {
		list, err := sg.GenerateBondRiskFeeSettlements(in.SamMetas, bondRiskFee)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	if len(psr) > 0 {
		if in.ProtectedEvents == nil {
			sg.logger.Sugar().Warnw("Protected event settlements are configured but no events were provided",
				zap.Int("configs", len(psr)),
			)
		} else {
			list, err := sg.GeneratePsrSettlements(in.ProtectedEvents, psr)
			if err != nil {
				return nil, err
			}
			out = append(out, list...)
		}
	}

	for i := range out {
		if err := out[i].Validate(); err != nil {
			return nil, err
		}
	}
	settlements.SortSettlements(out)

	sg.logger.Sugar().Infow("Generated settlements",
		zap.Uint64("epoch", epoch),
		zap.Int("settlements", len(out)),
		zap.Any("skipped", sg.SkippedValidators()),
	)
	return &settlements.SettlementCollection{
		Slot:        sg.stakeIndex.Slot(),
		Epoch:       epoch,
		Settlements: out,
	}, nil
}
