package settlements

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
	"github.com/marinade-finance/bonds-settlements/pkg/stakeIndex"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// CompareClaims orders claims by withdraw authority, stake authority and then amount.
func CompareClaims(a, b *SettlementClaim) int {
	if c := a.Pair().Compare(b.Pair()); c != 0 {
		return c
	}
	switch {
	case a.ClaimAmount < b.ClaimAmount:
		return -1
	case a.ClaimAmount > b.ClaimAmount:
		return 1
	}
	return 0
}

// SortClaims puts claims into the canonical order the merkle tree is built from.
// The zero authority pair always lands first.
func SortClaims(claims []SettlementClaim) {
	sort.SliceStable(claims, func(i, j int) bool {
		return CompareClaims(&claims[i], &claims[j]) < 0
	})
}

// SortSettlements orders settlements by reason name and then by vote account.
func SortSettlements(list []Settlement) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Reason.Kind != list[j].Reason.Kind {
			return list[i].Reason.Kind < list[j].Reason.Kind
		}
		return bytes.Compare(list[i].VoteAccount[:], list[j].VoteAccount[:]) < 0
	})
}

// MergeClaims folds claims sharing an authority pair into one. Amounts and
// active stake are summed; stake accounts are unioned with lamports summed per
// account. The result is in canonical order.
func MergeClaims(claims []SettlementClaim) ([]SettlementClaim, error) {
	merged := orderedmap.New[stakeIndex.AuthorityPair, *SettlementClaim]()

	for _, claim := range claims {
		pair := claim.Pair()
		existing, ok := merged.Get(pair)
		if !ok {
			accounts := make(map[solana.PublicKey]uint64, len(claim.StakeAccounts))
			for k, v := range claim.StakeAccounts {
				accounts[k] = v
			}
			merged.Set(pair, &SettlementClaim{
				WithdrawAuthority: claim.WithdrawAuthority,
				StakeAuthority:    claim.StakeAuthority,
				StakeAccounts:     accounts,
				ActiveStake:       claim.ActiveStake,
				ClaimAmount:       claim.ClaimAmount,
			})
			continue
		}

		var err error
		if existing.ClaimAmount, err = numbers.CheckedAdd(existing.ClaimAmount, claim.ClaimAmount); err != nil {
			return nil, fmt.Errorf("claim amount of %s/%s: %w", pair.Withdraw, pair.Stake, err)
		}
		if existing.ActiveStake, err = numbers.CheckedAdd(existing.ActiveStake, claim.ActiveStake); err != nil {
			return nil, fmt.Errorf("active stake of %s/%s: %w", pair.Withdraw, pair.Stake, err)
		}
		for account, lamports := range claim.StakeAccounts {
			if existing.StakeAccounts[account], err = numbers.CheckedAdd(existing.StakeAccounts[account], lamports); err != nil {
				return nil, fmt.Errorf("stake account %s: %w", account, err)
			}
		}
	}

	out := make([]SettlementClaim, 0, merged.Len())
	for p := merged.Oldest(); p != nil; p = p.Next() {
		out = append(out, *p.Value)
	}
	SortClaims(out)
	return out, nil
}

// SumClaims totals claim amounts, failing on u64 overflow.
func SumClaims(claims []SettlementClaim) (uint64, error) {
	var total uint64
	for _, c := range claims {
		var err error
		if total, err = numbers.CheckedAdd(total, c.ClaimAmount); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// NewSettlement sorts the claims and stamps the count. The caller supplies the
// running amount it accounted while generating claims.
func NewSettlement(
	reason Reason,
	meta SettlementMeta,
	voteAccount solana.PublicKey,
	claims []SettlementClaim,
	claimsAmount uint64,
	details json.RawMessage,
) Settlement {
	SortClaims(claims)
	return Settlement{
		Reason:       reason,
		Meta:         meta,
		VoteAccount:  voteAccount,
		ClaimsCount:  uint64(len(claims)),
		ClaimsAmount: claimsAmount,
		Claims:       claims,
		Details:      details,
	}
}

// Validate checks the settlement's count and amount against its claims.
func (s *Settlement) Validate() error {
	if s.ClaimsCount != uint64(len(s.Claims)) {
		return fmt.Errorf("%w: settlement %s/%s claims_count %d != %d claims",
			ErrInvariantViolation, s.Reason, s.VoteAccount, s.ClaimsCount, len(s.Claims))
	}
	sum, err := SumClaims(s.Claims)
	if err != nil {
		return fmt.Errorf("settlement %s/%s: %w", s.Reason, s.VoteAccount, err)
	}
	if sum != s.ClaimsAmount {
		return fmt.Errorf("%w: settlement %s/%s claims_amount %d != sum of claims %d",
			ErrInvariantViolation, s.Reason, s.VoteAccount, s.ClaimsAmount, sum)
	}
	return nil
}
