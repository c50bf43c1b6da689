package generators

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
	"github.com/marinade-finance/bonds-settlements/pkg/institutionalPayout"
	"github.com/marinade-finance/bonds-settlements/pkg/settlementConfig"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"github.com/marinade-finance/bonds-settlements/pkg/stakeIndex"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

// GenerateInstitutionalSettlements re-projects precomputed institutional
// payouts into one settlement per validator. Distributor payouts go to the
// protocol fee deposit, minus the DAO share when one is configured.
func (sg *SettlementGenerator) GenerateInstitutionalSettlements(
	payout *institutionalPayout.InstitutionalPayout,
	cfg *settlementConfig.InstitutionalDistributionConfig,
) (*settlements.SettlementCollection, error) {
	sg.logger.Sugar().Infow("Generating institutional payout settlements",
		zap.Uint64("epoch", payout.Epoch),
		zap.Int("payoutStakers", len(payout.PayoutStakers)),
		zap.Int("payoutDistributors", len(payout.PayoutDistributors)),
	)

	byValidator := orderedmap.New[solana.PublicKey, []settlements.SettlementClaim]()
	add := func(vote solana.PublicKey, claim settlements.SettlementClaim) {
		existing, _ := byValidator.Get(vote)
		byValidator.Set(vote, append(existing, claim))
	}

	for i, ps := range payout.PayoutStakers {
		accounts := make(map[solana.PublicKey]uint64, len(ps.StakeAccounts))
		var sum uint64
		for _, sa := range ps.StakeAccounts {
			var err error
			if accounts[sa.Address], err = numbers.CheckedAdd(accounts[sa.Address], uint64(sa.EffectiveStake)); err != nil {
				return nil, err
			}
			if sum, err = numbers.CheckedAdd(sum, uint64(sa.EffectiveStake)); err != nil {
				return nil, err
			}
		}
		if sum != uint64(ps.EffectiveStake) {
			return nil, fmt.Errorf("%w: payoutStakers[%d] of %s has stake accounts summing to %d, effective stake %d",
				settlements.ErrInvariantViolation, i, ps.VoteAccount, sum, uint64(ps.EffectiveStake))
		}
		add(ps.VoteAccount, settlements.SettlementClaim{
			WithdrawAuthority: ps.Withdrawer,
			StakeAuthority:    ps.Staker,
			StakeAccounts:     accounts,
			ActiveStake:       uint64(ps.EffectiveStake),
			ClaimAmount:       uint64(ps.PayoutLamports),
		})
	}

	protocolPair := cfg.MarinadePair()
	protocolAccounts := sg.stakeIndex.FeeDepositStakeAccounts(protocolPair)
	var protocolActive uint64
	for _, lamports := range protocolAccounts {
		protocolActive = numbers.SaturatingAdd(protocolActive, lamports)
	}
	daoPair := stakeIndex.AuthorityPair{Withdraw: cfg.DaoWithdrawAuthority, Stake: cfg.DaoStakeAuthority}

	for _, pd := range payout.PayoutDistributors {
		amount := uint64(pd.PayoutLamports)
		dao, err := numbers.CalculateDaoFee(amount, cfg.DaoFeeSplitShareBps)
		if err != nil {
			return nil, err
		}
		if dao == 0 || amount > dao {
			add(pd.VoteAccount, settlements.SettlementClaim{
				WithdrawAuthority: protocolPair.Withdraw,
				StakeAuthority:    protocolPair.Stake,
				StakeAccounts:     protocolAccounts,
				ActiveStake:       protocolActive,
				ClaimAmount:       amount - dao,
			})
		}
		if dao > 0 {
			add(pd.VoteAccount, settlements.SettlementClaim{
				WithdrawAuthority: daoPair.Withdraw,
				StakeAuthority:    daoPair.Stake,
				StakeAccounts:     sg.stakeIndex.FeeDepositStakeAccounts(daoPair),
				ActiveStake:       protocolActive,
				ClaimAmount:       dao,
			})
		}
	}

	out := make([]settlements.Settlement, 0, byValidator.Len())
	for p := byValidator.Oldest(); p != nil; p = p.Next() {
		merged, err := settlements.MergeClaims(p.Value)
		if err != nil {
			return nil, fmt.Errorf("institutional claims of %s: %w", p.Key, err)
		}
		merged = nonZeroClaims(merged)
		if len(merged) == 0 {
			sg.logger.Sugar().Debugw("Institutional payout has nothing to claim", zap.String("voteAccount", p.Key.String()))
			continue
		}
		amount, err := settlements.SumClaims(merged)
		if err != nil {
			return nil, fmt.Errorf("institutional claims of %s: %w", p.Key, err)
		}
		out = append(out, settlements.NewSettlement(settlements.NewReason(settlements.ReasonInstitutionalPayout),
			cfg.SettlementMeta, p.Key, merged, amount, nil))
	}
	settlements.SortSettlements(out)

	return &settlements.SettlementCollection{
		Slot:        cfg.SnapshotSlot,
		Epoch:       payout.Epoch,
		Settlements: out,
	}, nil
}

func nonZeroClaims(claims []settlements.SettlementClaim) []settlements.SettlementClaim {
	out := claims[:0]
	for _, c := range claims {
		if c.ClaimAmount > 0 {
			out = append(out, c)
		}
	}
	return out
}
