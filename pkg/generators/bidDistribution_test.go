package generators

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/pkg/rewards"
	"github.com/marinade-finance/bonds-settlements/pkg/samMeta"
	"github.com/marinade-finance/bonds-settlements/pkg/settlementConfig"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_BidDistributionSettlements(t *testing.T) {
	cfg := &settlementConfig.BidDistributionConfig{
		FeeConfig:                 *testFeeConfig(),
		WhitelistStakeAuthorities: []solana.PublicKey{allowedStake},
		Settlements: []settlementConfig.SettlementConfig{
			downtimeConfig(settlements.FunderMarinade, 0, 0),
			{Meta: bondMeta(), Kind: settlementConfig.BlacklistPenaltyConfig{}},
			{Meta: bondMeta(), Kind: settlementConfig.BiddingConfig{}},
		},
	}
	metas := []samMeta.ValidatorSamMeta{{
		VoteAccount:  voteV,
		Epoch:        700,
		EffectiveBid: dec("2"),
		RevShare:     samMeta.RevShare{TotalPmpe: dec("10"), BlacklistPenaltyPmpe: dec("1")},
	}}
	emptyRewards := &rewards.RewardsCollection{Epoch: 700, RewardsByVoteAccount: map[solana.PublicKey]*rewards.VoteAccountRewards{}}

	t.Run("Test every configured kind lands in one sorted collection", func(t *testing.T) {
		sg := newGenerator(t, testStakeIndex(700, 302400000))
		collection, err := sg.GenerateBidDistributionSettlements(cfg, &BidDistributionInput{
			SamMetas:        metas,
			Rewards:         emptyRewards,
			ProtectedEvents: downtimeEvents(5000),
		})
		require.Nil(t, err)
		assert.Equal(t, uint64(700), collection.Epoch)
		assert.Equal(t, uint64(302400000), collection.Slot)
		require.Len(t, collection.Settlements, 3)

		assert.Equal(t, settlements.ReasonBidding, collection.Settlements[0].Reason.Kind)
		assert.Equal(t, uint64(2_000_000), collection.Settlements[0].ClaimsAmount)
		assert.Equal(t, settlements.ReasonBlacklistPenalty, collection.Settlements[1].Reason.Kind)
		assert.Equal(t, uint64(1_000_000), collection.Settlements[1].ClaimsAmount)

		psr := collection.Settlements[2]
		assert.Equal(t, settlements.ReasonProtectedEvent, psr.Reason.Kind)
		assert.Equal(t, settlements.FunderMarinade, psr.Meta.Funder)
		assert.Equal(t, uint64(500_000), psr.ClaimsAmount)
		assert.True(t, psr.Claims[0].WithdrawAuthority.IsZero())
	})
	t.Run("Test sam metas of another epoch are rejected", func(t *testing.T) {
		sg := newGenerator(t, testStakeIndex(701, 302400000))
		_, err := sg.GenerateBidDistributionSettlements(cfg, &BidDistributionInput{SamMetas: metas, Rewards: emptyRewards})
		assert.True(t, errors.Is(err, settlements.ErrEpochMismatch))
	})
	t.Run("Test rewards of another epoch are rejected", func(t *testing.T) {
		sg := newGenerator(t, testStakeIndex(700, 302400000))
		stale := &rewards.RewardsCollection{Epoch: 699}
		_, err := sg.GenerateBidDistributionSettlements(cfg, &BidDistributionInput{SamMetas: metas, Rewards: stale})
		assert.True(t, errors.Is(err, settlements.ErrEpochMismatch))
	})
	t.Run("Test bidding requires rewards", func(t *testing.T) {
		sg := newGenerator(t, testStakeIndex(700, 302400000))
		_, err := sg.GenerateBidDistributionSettlements(cfg, &BidDistributionInput{SamMetas: metas})
		assert.Error(t, err)
	})
	t.Run("Test protected event kinds without events are left out", func(t *testing.T) {
		sg := newGenerator(t, testStakeIndex(700, 302400000))
		collection, err := sg.GenerateBidDistributionSettlements(cfg, &BidDistributionInput{SamMetas: metas, Rewards: emptyRewards})
		require.Nil(t, err)
		assert.Len(t, collection.Settlements, 2)
	})
	t.Run("Test protected events alone need no auction data", func(t *testing.T) {
		psrOnly := &settlementConfig.BidDistributionConfig{
			FeeConfig:   *testFeeConfig(),
			Settlements: []settlementConfig.SettlementConfig{downtimeConfig(settlements.FunderValidatorBond, 0, 0)},
		}
		sg := newGenerator(t, psrIndex())
		collection, err := sg.GenerateBidDistributionSettlements(psrOnly, &BidDistributionInput{ProtectedEvents: downtimeEvents(5000)})
		require.Nil(t, err)
		require.Len(t, collection.Settlements, 1)
		assert.Equal(t, uint64(50), collection.Settlements[0].ClaimsAmount)
	})
}
