package generators

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
	"github.com/marinade-finance/bonds-settlements/pkg/settlementConfig"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"github.com/marinade-finance/bonds-settlements/pkg/stakeIndex"
	"go.uber.org/zap"
)

// SettlementGenerator turns epoch facts into settlements. Calls are not safe
// for concurrent use.
type SettlementGenerator struct {
	logger     *zap.Logger
	stakeIndex *stakeIndex.StakeIndex
	filter     stakeIndex.AuthorityFilter
	skipped    map[string]int
}

func NewSettlementGenerator(
	idx *stakeIndex.StakeIndex,
	filter stakeIndex.AuthorityFilter,
	l *zap.Logger,
) *SettlementGenerator {
	if filter == nil {
		filter = stakeIndex.NewAuthorityFilter(nil)
	}
	return &SettlementGenerator{
		logger:     l,
		stakeIndex: idx,
		filter:     filter,
		skipped:    make(map[string]int),
	}
}

// validatorStake is the stake delegated to one validator split into all stake
// and the part controlled by admitted authorities.
type validatorStake struct {
	groups        []stakeIndex.StakeGroup
	totalStake    uint64
	protocolStake uint64
}

func (sg *SettlementGenerator) validatorStake(voteAccount solana.PublicKey) (*validatorStake, bool, error) {
	groups, ok := sg.stakeIndex.GroupedStakeMetas(voteAccount)
	if !ok {
		return nil, false, nil
	}
	vs := &validatorStake{groups: groups}
	for _, g := range groups {
		active, err := g.ActiveStake()
		if err != nil {
			return nil, false, fmt.Errorf("active stake of %s: %w", voteAccount, err)
		}
		if vs.totalStake, err = numbers.CheckedAdd(vs.totalStake, active); err != nil {
			return nil, false, err
		}
		if sg.filter.Allows(g.Pair.Stake) {
			if vs.protocolStake, err = numbers.CheckedAdd(vs.protocolStake, active); err != nil {
				return nil, false, err
			}
		}
	}
	return vs, true, nil
}

// stakerClaims splits pool across the admitted authority pairs of a validator
// proportionally to their active stake. Zero claims are dropped and the
// flooring dust stays unclaimed.
func (sg *SettlementGenerator) stakerClaims(vs *validatorStake, pool uint64) ([]settlements.SettlementClaim, uint64, error) {
	claims := make([]settlements.SettlementClaim, 0, len(vs.groups))
	var claimed uint64
	for _, g := range vs.groups {
		if !sg.filter.Allows(g.Pair.Stake) {
			continue
		}
		active, err := g.ActiveStake()
		if err != nil {
			return nil, 0, err
		}
		if active == 0 {
			continue
		}
		amount, err := numbers.CalculateProportionalClaim(active, vs.protocolStake, pool)
		if err != nil {
			return nil, 0, err
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
			return nil, 0, err
		}
	}
	if claimed > pool {
		return nil, 0, fmt.Errorf("%w: staker claims %d exceed stakers pool %d", settlements.ErrInvariantViolation, claimed, pool)
	}
	return claims, claimed, nil
}

// feeSplit is the division of a whole-lamport pool between stakers and fee receivers.
type feeSplit struct {
	total       uint64
	distributor uint64
	stakers     uint64
	dao         uint64
	protocol    uint64
}

func (f feeSplit) validate() error {
	sum := f.stakers
	for _, v := range []uint64{f.protocol, f.dao} {
		var err error
		if sum, err = numbers.CheckedAdd(sum, v); err != nil {
			return err
		}
	}
	if sum != f.total {
		return fmt.Errorf("%w: total %d != stakers %d + protocol fee %d + dao fee %d",
			settlements.ErrInvariantViolation, f.total, f.stakers, f.protocol, f.dao)
	}
	return nil
}

// appendFeeClaims adds the protocol and DAO fee claims at their deposit stake
// accounts, checking the running total never exceeds limit.
func (sg *SettlementGenerator) appendFeeClaims(
	claims []settlements.SettlementClaim,
	claimed uint64,
	split feeSplit,
	feeConfig *settlementConfig.FeeConfig,
	protocolStake uint64,
	limit uint64,
) ([]settlements.SettlementClaim, uint64, error) {
	var err error
	if split.protocol > 0 {
		pair := feeConfig.Marinade.Pair()
		accounts := sg.stakeIndex.FeeDepositStakeAccounts(pair)
		var active uint64
		for _, lamports := range accounts {
			if active, err = numbers.CheckedAdd(active, lamports); err != nil {
				return nil, 0, err
			}
		}
		claims = append(claims, settlements.SettlementClaim{
			WithdrawAuthority: pair.Withdraw,
			StakeAuthority:    pair.Stake,
			StakeAccounts:     accounts,
			ActiveStake:       active,
			ClaimAmount:       split.protocol,
		})
		if claimed, err = numbers.CheckedAdd(claimed, split.protocol); err != nil {
			return nil, 0, err
		}
		if claimed > limit {
			return nil, 0, fmt.Errorf("%w: claims %d exceed total %d after protocol fee", settlements.ErrInvariantViolation, claimed, limit)
		}
	}
	if split.dao > 0 {
		pair := feeConfig.Dao.Pair()
		claims = append(claims, settlements.SettlementClaim{
			WithdrawAuthority: pair.Withdraw,
			StakeAuthority:    pair.Stake,
			StakeAccounts:     sg.stakeIndex.FeeDepositStakeAccounts(pair),
			ActiveStake:       protocolStake,
			ClaimAmount:       split.dao,
		})
		if claimed, err = numbers.CheckedAdd(claimed, split.dao); err != nil {
			return nil, 0, err
		}
		if claimed > limit {
			return nil, 0, fmt.Errorf("%w: claims %d exceed total %d after dao fee", settlements.ErrInvariantViolation, claimed, limit)
		}
	}
	return claims, claimed, nil
}

// appendSettlement adds a settlement to list unless it has no claims.
func appendSettlement(
	list []settlements.Settlement,
	reason settlements.Reason,
	meta settlements.SettlementMeta,
	voteAccount solana.PublicKey,
	claims []settlements.SettlementClaim,
	claimsAmount uint64,
	details interface{},
) ([]settlements.Settlement, error) {
	if len(claims) == 0 {
		return list, nil
	}
	var raw json.RawMessage
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s details for %s: %w", reason, voteAccount, err)
		}
		raw = data
	}
	return append(list, settlements.NewSettlement(reason, meta, voteAccount, claims, claimsAmount, raw)), nil
}

// SkippedValidators counts validators left out of generation, keyed by skip reason.
func (sg *SettlementGenerator) SkippedValidators() map[string]int {
	out := make(map[string]int, len(sg.skipped))
	for k, v := range sg.skipped {
		out[k] = v
	}
	return out
}

func (sg *SettlementGenerator) skip(voteAccount solana.PublicKey, reason string, fields ...zap.Field) {
	sg.skipped[reason]++
	fields = append([]zap.Field{zap.String("voteAccount", voteAccount.String()), zap.String("reason", reason)}, fields...)
	sg.logger.Sugar().Warnw("Skipping validator", toInterfaces(fields)...)
}

func toInterfaces(fields []zap.Field) []interface{} {
	out := make([]interface{}, len(fields))
	for i, f := range fields {
		out[i] = f
	}
	return out
}
