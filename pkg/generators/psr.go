package generators

import (
	"fmt"

	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
	"github.com/marinade-finance/bonds-settlements/pkg/protectedEvents"
	"github.com/marinade-finance/bonds-settlements/pkg/settlementConfig"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GeneratePsrSettlements compensates protocol stakers for protected events.
// Every config is matched against every event of its kind, so one event may be
// settled by several configs covering different loss ranges.
func (sg *SettlementGenerator) GeneratePsrSettlements(
	collection *protectedEvents.ProtectedEventCollection,
	configs []settlementConfig.SettlementConfig,
) ([]settlements.Settlement, error) {
	if collection.Epoch != sg.stakeIndex.Epoch() || collection.Slot != sg.stakeIndex.Slot() {
		return nil, fmt.Errorf("%w: protected events at epoch %d slot %d, stake metas at epoch %d slot %d",
			settlements.ErrEpochMismatch, collection.Epoch, collection.Slot, sg.stakeIndex.Epoch(), sg.stakeIndex.Slot())
	}

	out := make([]settlements.Settlement, 0)
	for i := range configs {
		cfg := &configs[i]
		psr := cfg.Psr()
		if psr == nil {
			return nil, fmt.Errorf("settlement config %s is not a protected event config", cfg.Type())
		}
		sg.logger.Sugar().Infow("Generating protected event settlements",
			zap.String("type", string(cfg.Type())),
			zap.String("funder", string(cfg.Meta.Funder)),
		)

		for j := range collection.Events {
			event := collection.Events[j]
			if !sg.matches(psr, event.Event) {
				continue
			}
			settlement, err := sg.psrSettlement(cfg, psr, event)
			if err != nil {
				return nil, fmt.Errorf("%s settlement of %s: %w", cfg.Type(), event.GetVoteAccount(), err)
			}
			if settlement != nil {
				out = append(out, *settlement)
			}
		}
	}
	return out, nil
}

// matches pairs configs with events of the same kind whose loss reaches the grace.
func (sg *SettlementGenerator) matches(psr settlementConfig.PsrKind, event protectedEvents.Event) bool {
	switch psr.(type) {
	case *settlementConfig.DowntimeRevenueImpactConfig:
		if event.Kind() != protectedEvents.KindDowntimeRevenueImpact {
			return false
		}
	case *settlementConfig.CommissionSamIncreaseConfig:
		if event.Kind() != protectedEvents.KindCommissionSamIncrease {
			return false
		}
	default:
		return false
	}
	if event.GetEprLossBps() < psr.GraceBps() {
		sg.logger.Sugar().Debugw("Protected event is under grace",
			zap.String("kind", event.Kind()),
			zap.String("voteAccount", event.GetVoteAccount().String()),
			zap.Uint64("eprLossBps", event.GetEprLossBps()),
			zap.Uint64("graceBps", psr.GraceBps()),
		)
		return false
	}
	return true
}

func (sg *SettlementGenerator) psrSettlement(
	cfg *settlementConfig.SettlementConfig,
	psr settlementConfig.PsrKind,
	event protectedEvents.ProtectedEvent,
) (*settlements.Settlement, error) {
	vs, ok, err := sg.validatorStake(event.GetVoteAccount())
	if err != nil {
		return nil, err
	}
	if !ok {
		sg.logger.Sugar().Debugw("No stake delegated to validator with protected event",
			zap.String("voteAccount", event.GetVoteAccount().String()))
		return nil, nil
	}

	claimPerStake, err := coveredClaimPerStake(psr, event.Event)
	if err != nil {
		return nil, err
	}

	claims := make([]settlements.SettlementClaim, 0, len(vs.groups)+1)
	var claimed uint64
	for _, g := range vs.groups {
		if !sg.filter.Allows(g.Pair.Stake) {
			continue
		}
		active, err := g.ActiveStake()
		if err != nil {
			return nil, err
		}
		if active == 0 {
			continue
		}
		amount, err := numbers.FloorToLamports(decimal.Max(decimal.Zero, decimal.NewFromUint64(active).Mul(claimPerStake)))
		if err != nil {
			return nil, err
		}
		if amount == 0 {
			continue
		}
		claims = append(claims, settlements.SettlementClaim{
			WithdrawAuthority: g.Pair.Withdraw,
			StakeAuthority:    g.Pair.Stake,
			StakeAccounts:     g.StakeAccounts(),
			ActiveStake:       active,
			ClaimAmount:       amount,
		})
		if claimed, err = numbers.CheckedAdd(claimed, amount); err != nil {
			return nil, err
		}
	}

	if len(claims) == 0 && cfg.Meta.Funder != settlements.FunderMarinade {
		sg.logger.Sugar().Debugw("Protected event produced no claims",
			zap.String("voteAccount", event.GetVoteAccount().String()))
		return nil, nil
	}
	if claimed < psr.GetMinSettlementLamports() {
		sg.logger.Sugar().Debugw("Protected event settlement is below the minimum",
			zap.String("voteAccount", event.GetVoteAccount().String()),
			zap.Uint64("claimsAmount", claimed),
			zap.Uint64("minSettlementLamports", psr.GetMinSettlementLamports()),
		)
		return nil, nil
	}
	// identical claim sets funded by different parties must still get distinct roots
	if cfg.Meta.Funder == settlements.FunderMarinade {
		claims = append(claims, settlements.NullClaim())
	}

	settlement := settlements.NewSettlement(settlements.NewProtectedEventReason(event), cfg.Meta,
		event.GetVoteAccount(), claims, claimed, nil)
	return &settlement, nil
}

// coveredClaimPerStake is the per-lamport compensation inside the covered range
//
// min(claim_per_stake, upper * expected_epr) - lower * expected_epr
func coveredClaimPerStake(psr settlementConfig.PsrKind, event protectedEvents.Event) (decimal.Decimal, error) {
	cps, err := claimPerStake(psr, event)
	if err != nil {
		return decimal.Zero, err
	}
	covered := psr.GetCoveredRangeBps()
	expected := event.GetExpectedEpr()
	upper := numbers.BpsToFraction(covered[1]).Mul(expected)
	lower := numbers.BpsToFraction(covered[0]).Mul(expected)
	return decimal.Min(cps, upper).Sub(lower), nil
}

func claimPerStake(psr settlementConfig.PsrKind, event protectedEvents.Event) (decimal.Decimal, error) {
	base := event.GetExpectedEpr().Sub(event.GetActualEpr())
	switch e := event.(type) {
	case *protectedEvents.DowntimeRevenueImpact:
		return base, nil
	case *protectedEvents.CommissionSamIncrease:
		cfg, ok := psr.(*settlementConfig.CommissionSamIncreaseConfig)
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: %s event settled with %s config",
				settlements.ErrInvariantViolation, event.Kind(), psr.Type())
		}
		markup := cfg.Markup(e.ActualInflationCommission, e.ActualMevCommission)
		return base.Add(base.Mul(markup)), nil
	}
	return decimal.Zero, fmt.Errorf("%w: no claim per stake for %s events", settlements.ErrInvariantViolation, event.Kind())
}
