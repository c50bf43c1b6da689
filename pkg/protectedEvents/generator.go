package protectedEvents

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/types/invariants"
	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProtectedEventGenerator derives protected events from a validator snapshot and
// the auction's revenue expectations for the same epoch.
type ProtectedEventGenerator struct {
	logger *zap.Logger
}

func NewProtectedEventGenerator(l *zap.Logger) *ProtectedEventGenerator {
	return &ProtectedEventGenerator{logger: l}
}

// GenerateProtectedEventCollection emits CommissionSamIncrease events followed by
// DowntimeRevenueImpact events, each in validator-meta order.
func (g *ProtectedEventGenerator) GenerateProtectedEventCollection(
	validatorMetas *ValidatorMetaCollection,
	revenueExpectations *RevenueExpectationMetaCollection,
) (*ProtectedEventCollection, error) {
	if validatorMetas.Epoch != revenueExpectations.Epoch {
		return nil, fmt.Errorf("%w: validator meta epoch %d, revenue expectation epoch %d",
			invariants.ErrEpochMismatch, validatorMetas.Epoch, revenueExpectations.Epoch)
	}
	if validatorMetas.Slot != revenueExpectations.Slot {
		return nil, fmt.Errorf("%w: validator meta slot %d, revenue expectation slot %d",
			invariants.ErrEpochMismatch, validatorMetas.Slot, revenueExpectations.Slot)
	}

	expectations := make(map[solana.PublicKey]*RevenueExpectationMeta, len(revenueExpectations.RevenueExpectations))
	for i := range revenueExpectations.RevenueExpectations {
		re := &revenueExpectations.RevenueExpectations[i]
		expectations[re.VoteAccount] = re
	}

	commissionEvents, err := g.collectCommissionSamIncreaseEvents(validatorMetas, expectations)
	if err != nil {
		return nil, err
	}
	downtimeEvents, err := g.collectDowntimeRevenueImpactEvents(validatorMetas, expectations)
	if err != nil {
		return nil, err
	}

	events := make([]ProtectedEvent, 0, len(commissionEvents)+len(downtimeEvents))
	events = append(events, commissionEvents...)
	events = append(events, downtimeEvents...)

	g.logger.Sugar().Infow("Generated protected events",
		zap.Uint64("epoch", validatorMetas.Epoch),
		zap.Int("commissionSamIncrease", len(commissionEvents)),
		zap.Int("downtimeRevenueImpact", len(downtimeEvents)),
	)

	return &ProtectedEventCollection{
		Epoch:  validatorMetas.Epoch,
		Slot:   validatorMetas.Slot,
		Events: events,
	}, nil
}

func (g *ProtectedEventGenerator) collectCommissionSamIncreaseEvents(
	validatorMetas *ValidatorMetaCollection,
	expectations map[solana.PublicKey]*RevenueExpectationMeta,
) ([]ProtectedEvent, error) {
	events := make([]ProtectedEvent, 0)
	for _, vm := range validatorMetas.ValidatorMetas {
		if vm.Stake == 0 {
			continue
		}
		re, ok := expectations[vm.VoteAccount]
		if !ok {
			g.logger.Sugar().Debugw("Revenue expectation not found", zap.String("voteAccount", vm.VoteAccount.String()))
			continue
		}
		expectedPmpe := re.ExpectedNonBidPmpe.Add(re.BeforeSamCommissionIncreasePmpe)
		if !re.ActualNonBidPmpe.LessThan(expectedPmpe) {
			continue
		}
		lossBps, err := numbers.BpsDecimal(expectedPmpe.Sub(re.ActualNonBidPmpe), expectedPmpe)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate commission loss for %s: %w", vm.VoteAccount, err)
		}
		g.logger.Sugar().Debugw("Validator increased commission",
			zap.String("voteAccount", vm.VoteAccount.String()),
			zap.String("expectedNonBidPmpe", re.ExpectedNonBidPmpe.String()),
			zap.String("actualNonBidPmpe", re.ActualNonBidPmpe.String()),
		)
		events = append(events, ProtectedEvent{Event: &CommissionSamIncrease{
			VoteAccount:                     vm.VoteAccount,
			ExpectedInflationCommission:     re.ExpectedInflationCommission,
			ActualInflationCommission:       re.ActualInflationCommission,
			PastInflationCommission:         re.PastInflationCommission,
			ExpectedMevCommission:           re.ExpectedMevCommission,
			ActualMevCommission:             re.ActualMevCommission,
			PastMevCommission:               re.PastMevCommission,
			BeforeSamCommissionIncreasePmpe: re.BeforeSamCommissionIncreasePmpe,
			ExpectedEpr:                     numbers.PerMille(expectedPmpe),
			ActualEpr:                       numbers.PerMille(re.ActualNonBidPmpe),
			EprLossBps:                      lossBps,
			Stake:                           vm.Stake,
		}})
	}
	return events, nil
}

func (g *ProtectedEventGenerator) collectDowntimeRevenueImpactEvents(
	validatorMetas *ValidatorMetaCollection,
	expectations map[solana.PublicKey]*RevenueExpectationMeta,
) ([]ProtectedEvent, error) {
	events := make([]ProtectedEvent, 0)

	totalStake := validatorMetas.TotalStake()
	if totalStake.IsZero() {
		g.logger.Sugar().Warnw("No stake in validator metas, skipping downtime events")
		return events, nil
	}
	weightedCredits, _ := validatorMetas.TotalStakeWeightedCredits().QuoRem(totalStake, 0)
	expectedCredits, err := numbers.FloorToLamports(weightedCredits)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate expected credits: %w", err)
	}

	for _, vm := range validatorMetas.ValidatorMetas {
		if vm.Stake == 0 {
			continue
		}
		re, ok := expectations[vm.VoteAccount]
		if !ok {
			continue
		}
		if vm.Credits >= expectedCredits || vm.Commission >= 100 {
			continue
		}
		lossBps, err := numbers.Bps(expectedCredits-vm.Credits, expectedCredits)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate downtime loss for %s: %w", vm.VoteAccount, err)
		}
		uptime := numbers.Div(decimal.NewFromUint64(vm.Credits), decimal.NewFromUint64(expectedCredits))
		expectedEpr := numbers.PerMille(re.ActualNonBidPmpe)

		g.logger.Sugar().Debugw("Validator had downtime",
			zap.String("voteAccount", vm.VoteAccount.String()),
			zap.Uint64("credits", vm.Credits),
			zap.Uint64("expectedCredits", expectedCredits),
		)
		events = append(events, ProtectedEvent{Event: &DowntimeRevenueImpact{
			VoteAccount:     vm.VoteAccount,
			ActualCredits:   vm.Credits,
			ExpectedCredits: expectedCredits,
			ExpectedEpr:     expectedEpr,
			ActualEpr:       expectedEpr.Mul(uptime),
			EprLossBps:      lossBps,
			Stake:           vm.Stake,
		}})
	}
	return events, nil
}
