package settlements

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/pkg/protectedEvents"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	return k
}

func Test_MergeClaims(t *testing.T) {
	t.Run("Test claims of the same pair are summed", func(t *testing.T) {
		claims := []SettlementClaim{
			{WithdrawAuthority: key(1), StakeAuthority: key(2), StakeAccounts: map[solana.PublicKey]uint64{key(10): 100}, ActiveStake: 100, ClaimAmount: 10},
			{WithdrawAuthority: key(3), StakeAuthority: key(4), StakeAccounts: map[solana.PublicKey]uint64{key(11): 7}, ActiveStake: 7, ClaimAmount: 3},
			{WithdrawAuthority: key(1), StakeAuthority: key(2), StakeAccounts: map[solana.PublicKey]uint64{key(10): 50, key(12): 5}, ActiveStake: 55, ClaimAmount: 5},
		}
		merged, err := MergeClaims(claims)
		require.Nil(t, err)
		require.Len(t, merged, 2)

		assert.Equal(t, uint64(15), merged[0].ClaimAmount)
		assert.Equal(t, uint64(155), merged[0].ActiveStake)
		assert.Equal(t, map[solana.PublicKey]uint64{key(10): 150, key(12): 5}, merged[0].StakeAccounts)

		assert.Equal(t, claims[1], merged[1])
	})
	t.Run("Test inputs are not mutated", func(t *testing.T) {
		first := SettlementClaim{WithdrawAuthority: key(1), StakeAuthority: key(2), StakeAccounts: map[solana.PublicKey]uint64{key(10): 1}, ClaimAmount: 1}
		_, err := MergeClaims([]SettlementClaim{first, first})
		require.Nil(t, err)
		assert.Equal(t, uint64(1), first.StakeAccounts[key(10)])
	})
	t.Run("Test overflowing amounts are rejected", func(t *testing.T) {
		claims := []SettlementClaim{
			{WithdrawAuthority: key(1), StakeAuthority: key(2), ClaimAmount: math.MaxUint64},
			{WithdrawAuthority: key(1), StakeAuthority: key(2), ClaimAmount: 1},
		}
		_, err := MergeClaims(claims)
		assert.True(t, errors.Is(err, ErrConversionOverflow))
	})
}

func Test_SortClaims(t *testing.T) {
	t.Run("Test canonical order with the null claim first", func(t *testing.T) {
		claims := []SettlementClaim{
			{WithdrawAuthority: key(2), StakeAuthority: key(1), ClaimAmount: 4},
			{WithdrawAuthority: key(1), StakeAuthority: key(9), ClaimAmount: 1},
			{WithdrawAuthority: key(1), StakeAuthority: key(9), ClaimAmount: 0},
			NullClaim(),
			{WithdrawAuthority: key(1), StakeAuthority: key(3), ClaimAmount: 8},
		}
		SortClaims(claims)
		assert.True(t, claims[0].Pair().IsZero())
		assert.Equal(t, key(3), claims[1].StakeAuthority)
		assert.Equal(t, uint64(0), claims[2].ClaimAmount)
		assert.Equal(t, uint64(1), claims[3].ClaimAmount)
		assert.Equal(t, key(2), claims[4].WithdrawAuthority)
	})
	t.Run("Test order does not depend on input permutation", func(t *testing.T) {
		a := []SettlementClaim{
			{WithdrawAuthority: key(5), StakeAuthority: key(1), ClaimAmount: 1},
			{WithdrawAuthority: key(4), StakeAuthority: key(1), ClaimAmount: 2},
			{WithdrawAuthority: key(6), StakeAuthority: key(0), ClaimAmount: 3},
		}
		b := []SettlementClaim{a[2], a[0], a[1]}
		SortClaims(a)
		SortClaims(b)
		assert.Equal(t, a, b)
	})
}

func Test_Settlement(t *testing.T) {
	t.Run("Test validation of count and amount", func(t *testing.T) {
		claims := []SettlementClaim{
			{WithdrawAuthority: key(2), StakeAuthority: key(1), ClaimAmount: 4},
			{WithdrawAuthority: key(1), StakeAuthority: key(1), ClaimAmount: 6},
		}
		s := NewSettlement(NewReason(ReasonBidding), SettlementMeta{Funder: FunderValidatorBond}, key(7), claims, 10, nil)
		assert.Equal(t, uint64(2), s.ClaimsCount)
		assert.Equal(t, key(1), s.Claims[0].WithdrawAuthority)
		assert.Nil(t, s.Validate())

		s.ClaimsAmount = 11
		assert.True(t, errors.Is(s.Validate(), ErrInvariantViolation))

		s.ClaimsAmount = 10
		s.ClaimsCount = 3
		assert.True(t, errors.Is(s.Validate(), ErrInvariantViolation))
	})
	t.Run("Test settlement json shape", func(t *testing.T) {
		s := NewSettlement(
			NewReason(ReasonBlacklistPenalty),
			SettlementMeta{Funder: FunderMarinade},
			key(7),
			[]SettlementClaim{{WithdrawAuthority: key(1), StakeAuthority: key(2), StakeAccounts: map[solana.PublicKey]uint64{key(3): 9}, ActiveStake: 9, ClaimAmount: 1}},
			1,
			nil,
		)
		data, err := json.Marshal(s)
		require.Nil(t, err)

		var raw map[string]interface{}
		require.Nil(t, json.Unmarshal(data, &raw))
		assert.Equal(t, "BlacklistPenalty", raw["reason"])
		assert.Equal(t, map[string]interface{}{"funder": "Marinade"}, raw["meta"])
		assert.Equal(t, key(7).String(), raw["vote_account"])
		_, hasDetails := raw["details"]
		assert.False(t, hasDetails)
		_, hasBond := raw["bond_account"]
		assert.False(t, hasBond)

		claim := raw["claims"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, map[string]interface{}{key(3).String(): float64(9)}, claim["stake_accounts"])

		var decoded Settlement
		require.Nil(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, s.Claims, decoded.Claims)
		assert.Equal(t, ReasonBlacklistPenalty, decoded.Reason.Kind)
	})
	t.Run("Test protected event reason is externally tagged", func(t *testing.T) {
		reason := NewProtectedEventReason(protectedEvents.ProtectedEvent{Event: &protectedEvents.DowntimeRevenueImpact{
			VoteAccount: key(7),
			ExpectedEpr: decimal.RequireFromString("0.001"),
			ActualEpr:   decimal.RequireFromString("0.0005"),
			EprLossBps:  5000,
			Stake:       100,
		}})
		data, err := json.Marshal(reason)
		require.Nil(t, err)

		var raw map[string]map[string]interface{}
		require.Nil(t, json.Unmarshal(data, &raw))
		_, ok := raw["ProtectedEvent"]["DowntimeRevenueImpact"]
		assert.True(t, ok)

		var decoded Reason
		require.Nil(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, ReasonProtectedEvent, decoded.Kind)
		assert.Equal(t, uint64(5000), decoded.ProtectedEvent.GetEprLossBps())
	})
	t.Run("Test unknown reasons and funders are rejected", func(t *testing.T) {
		var r Reason
		assert.Error(t, json.Unmarshal([]byte(`"Refund"`), &r))

		var m SettlementMeta
		assert.Error(t, json.Unmarshal([]byte(`{"funder":"Somebody"}`), &m))
	})
	t.Run("Test settlements sort by reason then vote account", func(t *testing.T) {
		list := []Settlement{
			{Reason: NewReason(ReasonBlacklistPenalty), VoteAccount: key(1)},
			{Reason: NewReason(ReasonBidding), VoteAccount: key(2)},
			{Reason: NewReason(ReasonBidding), VoteAccount: key(1)},
		}
		SortSettlements(list)
		assert.Equal(t, ReasonBidding, list[0].Reason.Kind)
		assert.Equal(t, key(1), list[0].VoteAccount)
		assert.Equal(t, key(2), list[1].VoteAccount)
		assert.Equal(t, ReasonBlacklistPenalty, list[2].Reason.Kind)
	})
}
