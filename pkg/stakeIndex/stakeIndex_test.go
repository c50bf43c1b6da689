package stakeIndex

import (
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
	"github.com/stretchr/testify/assert"
)

func pk(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	k[31] = 1
	return k
}

func Test_StakeIndex(t *testing.T) {
	validatorA := pk(0xa0)
	validatorB := pk(0xb0)

	collection := &StakeMetaCollection{
		Epoch: 700,
		Slot:  302400000,
		StakeMetas: []StakeMeta{
			{Pubkey: pk(1), Validator: &validatorA, WithdrawAuthority: pk(0x20), StakeAuthority: pk(0x30), ActiveDelegationLamports: 100},
			{Pubkey: pk(2), Validator: &validatorA, WithdrawAuthority: pk(0x10), StakeAuthority: pk(0x30), ActiveDelegationLamports: 50},
			{Pubkey: pk(3), Validator: &validatorA, WithdrawAuthority: pk(0x20), StakeAuthority: pk(0x30), ActiveDelegationLamports: 25},
			{Pubkey: pk(4), Validator: &validatorB, WithdrawAuthority: pk(0x20), StakeAuthority: pk(0x31), ActiveDelegationLamports: 10},
			{Pubkey: pk(5), Validator: nil, WithdrawAuthority: pk(0x40), StakeAuthority: pk(0x40), ActiveDelegationLamports: 7},
		},
	}
	idx := NewStakeIndex(collection)

	t.Run("Test groups are keyed by authority pair and sorted", func(t *testing.T) {
		groups, ok := idx.GroupedStakeMetas(validatorA)
		assert.True(t, ok)
		assert.Len(t, groups, 2)

		assert.Equal(t, pk(0x10), groups[0].Pair.Withdraw)
		active, err := groups[0].ActiveStake()
		assert.Nil(t, err)
		assert.Equal(t, uint64(50), active)

		assert.Equal(t, pk(0x20), groups[1].Pair.Withdraw)
		active, err = groups[1].ActiveStake()
		assert.Nil(t, err)
		assert.Equal(t, uint64(125), active)
		assert.Equal(t, map[solana.PublicKey]uint64{pk(1): 100, pk(3): 25}, groups[1].StakeAccounts())
	})
	t.Run("Test unknown validator has no groups", func(t *testing.T) {
		_, ok := idx.GroupedStakeMetas(pk(0xcc))
		assert.False(t, ok)
	})
	t.Run("Test undelegated stake is not indexed but still found as fee deposit", func(t *testing.T) {
		accounts := idx.FeeDepositStakeAccounts(AuthorityPair{Withdraw: pk(0x40), Stake: pk(0x40)})
		assert.Equal(t, map[solana.PublicKey]uint64{pk(5): 7}, accounts)

		assert.Empty(t, idx.FeeDepositStakeAccounts(AuthorityPair{Withdraw: pk(0x41), Stake: pk(0x41)}))
	})
	t.Run("Test stake to vote account mapping", func(t *testing.T) {
		m := idx.StakeToVoteAccount()
		assert.Len(t, m, 4)
		assert.Equal(t, validatorB, m[pk(4)])
	})
	t.Run("Test active stake overflowing u64 is an error", func(t *testing.T) {
		g := StakeGroup{StakeMetas: []StakeMeta{
			{Pubkey: pk(1), ActiveDelegationLamports: math.MaxUint64},
			{Pubkey: pk(2), ActiveDelegationLamports: 1},
		}}
		_, err := g.ActiveStake()
		assert.ErrorIs(t, err, numbers.ErrConversionOverflow)
	})
	t.Run("Test pair ordering puts the zero pair first", func(t *testing.T) {
		zero := AuthorityPair{}
		assert.True(t, zero.IsZero())
		assert.Equal(t, -1, zero.Compare(AuthorityPair{Withdraw: pk(0), Stake: pk(0)}))
	})
}

func Test_AuthorityFilter(t *testing.T) {
	t.Run("Test nil whitelist allows everything", func(t *testing.T) {
		f := NewAuthorityFilter(nil)
		assert.True(t, f.Allows(pk(9)))
	})
	t.Run("Test whitelist restricts authorities", func(t *testing.T) {
		f := NewAuthorityFilter([]solana.PublicKey{pk(1)})
		assert.True(t, f.Allows(pk(1)))
		assert.False(t, f.Allows(pk(2)))
	})
	t.Run("Test empty whitelist allows nothing", func(t *testing.T) {
		f := NewAuthorityFilter([]solana.PublicKey{})
		assert.False(t, f.Allows(pk(1)))
	})
}
