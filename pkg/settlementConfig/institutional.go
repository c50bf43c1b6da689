package settlementConfig

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"github.com/marinade-finance/bonds-settlements/pkg/stakeIndex"
)

// InstitutionalDistributionConfig drives institutional payout settlements.
type InstitutionalDistributionConfig struct {
	SettlementMeta            settlements.SettlementMeta `json:"settlement_meta" yaml:"settlement_meta"`
	ValidatorBondsConfig      solana.PublicKey           `json:"validator_bonds_config" yaml:"validator_bonds_config"`
	MarinadeWithdrawAuthority solana.PublicKey           `json:"marinade_withdraw_authority" yaml:"marinade_withdraw_authority"`
	MarinadeStakeAuthority    solana.PublicKey           `json:"marinade_stake_authority" yaml:"marinade_stake_authority"`
	DaoFeeSplitShareBps       uint64                     `json:"dao_fee_split_share_bps" yaml:"dao_fee_split_share_bps"`
	DaoWithdrawAuthority      solana.PublicKey           `json:"dao_withdraw_authority" yaml:"dao_withdraw_authority"`
	DaoStakeAuthority         solana.PublicKey           `json:"dao_stake_authority" yaml:"dao_stake_authority"`
	SnapshotSlot              uint64                     `json:"snapshot_slot" yaml:"snapshot_slot"`
}

// NewInstitutionalDistributionConfig builds a bond-funded institutional config.
func NewInstitutionalDistributionConfig(
	validatorBondsConfig solana.PublicKey,
	marinade AuthorityConfig,
	dao DaoConfig,
	snapshotSlot uint64,
) *InstitutionalDistributionConfig {
	return &InstitutionalDistributionConfig{
		SettlementMeta:            settlements.SettlementMeta{Funder: settlements.FunderValidatorBond},
		ValidatorBondsConfig:      validatorBondsConfig,
		MarinadeWithdrawAuthority: marinade.WithdrawAuthority,
		MarinadeStakeAuthority:    marinade.StakeAuthority,
		DaoFeeSplitShareBps:       dao.FeeSplitShareBps,
		DaoWithdrawAuthority:      dao.WithdrawAuthority,
		DaoStakeAuthority:         dao.StakeAuthority,
		SnapshotSlot:              snapshotSlot,
	}
}

func (c *InstitutionalDistributionConfig) MarinadePair() stakeIndex.AuthorityPair {
	return stakeIndex.AuthorityPair{Withdraw: c.MarinadeWithdrawAuthority, Stake: c.MarinadeStakeAuthority}
}

func (c *InstitutionalDistributionConfig) Validate() error {
	if err := c.SettlementMeta.Funder.Validate(); err != nil {
		return err
	}
	if c.DaoFeeSplitShareBps > numbers.BpsMax {
		return fmt.Errorf("dao_fee_split_share_bps %d exceeds maximum %d", c.DaoFeeSplitShareBps, numbers.BpsMax)
	}
	return nil
}
