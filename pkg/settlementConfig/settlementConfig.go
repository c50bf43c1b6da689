package settlementConfig

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"github.com/marinade-finance/bonds-settlements/pkg/stakeIndex"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type SettlementType string

const (
	TypeBidding                         SettlementType = "Bidding"
	TypeBidTooLowPenalty                SettlementType = "BidTooLowPenalty"
	TypeBlacklistPenalty                SettlementType = "BlacklistPenalty"
	TypeBondRiskFee                     SettlementType = "BondRiskFee"
	TypeDowntimeRevenueImpactSettlement SettlementType = "DowntimeRevenueImpactSettlement"
	TypeCommissionSamIncreaseSettlement SettlementType = "CommissionSamIncreaseSettlement"
)

// Kind holds the type-specific parameters of a settlement config.
type Kind interface {
	Type() SettlementType
	isSettlementKind()
}

type BiddingConfig struct{}

type BidTooLowPenaltyConfig struct{}

type BlacklistPenaltyConfig struct{}

type BondRiskFeeConfig struct{}

// DowntimeRevenueImpactConfig covers DowntimeRevenueImpact protected events.
type DowntimeRevenueImpactConfig struct {
	MinSettlementLamports uint64    `json:"min_settlement_lamports" yaml:"min_settlement_lamports"`
	GraceDowntimeBps      *uint64   `json:"grace_downtime_bps,omitempty" yaml:"grace_downtime_bps,omitempty"`
	CoveredRangeBps       [2]uint64 `json:"covered_range_bps" yaml:"covered_range_bps"`
}

// CommissionSamIncreaseConfig covers CommissionSamIncrease protected events.
// When either actual commission is above ExtraPenaltyThresholdBps the penalty
// markup applies, otherwise the base markup.
type CommissionSamIncreaseConfig struct {
	MinSettlementLamports    uint64    `json:"min_settlement_lamports" yaml:"min_settlement_lamports"`
	GraceIncreaseBps         *uint64   `json:"grace_increase_bps,omitempty" yaml:"grace_increase_bps,omitempty"`
	CoveredRangeBps          [2]uint64 `json:"covered_range_bps" yaml:"covered_range_bps"`
	ExtraPenaltyThresholdBps uint64    `json:"extra_penalty_threshold_bps" yaml:"extra_penalty_threshold_bps"`
	BaseMarkupBps            uint64    `json:"base_markup_bps" yaml:"base_markup_bps"`
	PenaltyMarkupBps         uint64    `json:"penalty_markup_bps" yaml:"penalty_markup_bps"`
}

func (BiddingConfig) Type() SettlementType               { return TypeBidding }
func (BidTooLowPenaltyConfig) Type() SettlementType      { return TypeBidTooLowPenalty }
func (BlacklistPenaltyConfig) Type() SettlementType      { return TypeBlacklistPenalty }
func (BondRiskFeeConfig) Type() SettlementType           { return TypeBondRiskFee }
func (*DowntimeRevenueImpactConfig) Type() SettlementType { return TypeDowntimeRevenueImpactSettlement }
func (*CommissionSamIncreaseConfig) Type() SettlementType { return TypeCommissionSamIncreaseSettlement }

func (BiddingConfig) isSettlementKind()                {}
func (BidTooLowPenaltyConfig) isSettlementKind()       {}
func (BlacklistPenaltyConfig) isSettlementKind()       {}
func (BondRiskFeeConfig) isSettlementKind()            {}
func (*DowntimeRevenueImpactConfig) isSettlementKind() {}
func (*CommissionSamIncreaseConfig) isSettlementKind() {}

// PsrKind is implemented by the protected-event settlement kinds.
type PsrKind interface {
	Kind
	GetMinSettlementLamports() uint64
	GetCoveredRangeBps() [2]uint64
	GraceBps() uint64
}

func (c *DowntimeRevenueImpactConfig) GetMinSettlementLamports() uint64 { return c.MinSettlementLamports }
func (c *DowntimeRevenueImpactConfig) GetCoveredRangeBps() [2]uint64    { return c.CoveredRangeBps }
func (c *DowntimeRevenueImpactConfig) GraceBps() uint64 {
	if c.GraceDowntimeBps == nil {
		return 0
	}
	return *c.GraceDowntimeBps
}

func (c *CommissionSamIncreaseConfig) GetMinSettlementLamports() uint64 { return c.MinSettlementLamports }
func (c *CommissionSamIncreaseConfig) GetCoveredRangeBps() [2]uint64    { return c.CoveredRangeBps }
func (c *CommissionSamIncreaseConfig) GraceBps() uint64 {
	if c.GraceIncreaseBps == nil {
		return 0
	}
	return *c.GraceIncreaseBps
}

// Markup returns the markup fraction applied on top of the base claim per stake.
func (c *CommissionSamIncreaseConfig) Markup(actualInflationCommission decimal.Decimal, actualMevCommission *decimal.Decimal) decimal.Decimal {
	threshold := numbers.BpsToFraction(c.ExtraPenaltyThresholdBps)
	mev := decimal.Zero
	if actualMevCommission != nil {
		mev = *actualMevCommission
	}
	if actualInflationCommission.LessThanOrEqual(threshold) && mev.LessThanOrEqual(threshold) {
		return numbers.BpsToFraction(c.BaseMarkupBps)
	}
	return numbers.BpsToFraction(c.PenaltyMarkupBps)
}

// SettlementConfig is one entry of the settlements list: who funds it and what kind it is.
// It is encoded flat, with the kind named by the "type" field.
type SettlementConfig struct {
	Meta settlements.SettlementMeta
	Kind Kind
}

func (c *SettlementConfig) Type() SettlementType {
	return c.Kind.Type()
}

// Psr returns the protected-event parameters, or nil for auction kinds.
func (c *SettlementConfig) Psr() PsrKind {
	if k, ok := c.Kind.(PsrKind); ok {
		return k
	}
	return nil
}

type settlementConfigHeader struct {
	Meta *settlements.SettlementMeta `json:"meta" yaml:"meta"`
	Type SettlementType              `json:"type" yaml:"type"`
}

func newKind(t SettlementType) (Kind, error) {
	switch t {
	case TypeBidding:
		return BiddingConfig{}, nil
	case TypeBidTooLowPenalty:
		return BidTooLowPenaltyConfig{}, nil
	case TypeBlacklistPenalty:
		return BlacklistPenaltyConfig{}, nil
	case TypeBondRiskFee:
		return BondRiskFeeConfig{}, nil
	case TypeDowntimeRevenueImpactSettlement:
		return &DowntimeRevenueImpactConfig{}, nil
	case TypeCommissionSamIncreaseSettlement:
		return &CommissionSamIncreaseConfig{}, nil
	}
	return nil, fmt.Errorf("unknown settlement type %q", string(t))
}

func (c *SettlementConfig) UnmarshalJSON(data []byte) error {
	var header settlementConfigHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return err
	}
	if header.Meta == nil {
		return fmt.Errorf("settlement config of type %q has no meta", header.Type)
	}
	kind, err := newKind(header.Type)
	if err != nil {
		return err
	}
	if psr, ok := kind.(PsrKind); ok {
		if err := json.Unmarshal(data, psr); err != nil {
			return fmt.Errorf("invalid %s parameters: %w", header.Type, err)
		}
	}
	c.Meta = *header.Meta
	c.Kind = kind
	return nil
}

func (c *SettlementConfig) UnmarshalYAML(value *yaml.Node) error {
	var header settlementConfigHeader
	if err := value.Decode(&header); err != nil {
		return err
	}
	if header.Meta == nil {
		return fmt.Errorf("settlement config of type %q has no meta", header.Type)
	}
	kind, err := newKind(header.Type)
	if err != nil {
		return err
	}
	if psr, ok := kind.(PsrKind); ok {
		if err := value.Decode(psr); err != nil {
			return fmt.Errorf("invalid %s parameters: %w", header.Type, err)
		}
	}
	c.Meta = *header.Meta
	c.Kind = kind
	return nil
}

func (c SettlementConfig) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if c.Psr() != nil {
		data, err := json.Marshal(c.Kind)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, err
		}
	}
	meta, err := json.Marshal(c.Meta)
	if err != nil {
		return nil, err
	}
	fields["meta"] = meta
	fields["type"], _ = json.Marshal(c.Kind.Type())
	return json.Marshal(fields)
}

type AuthorityConfig struct {
	StakeAuthority    solana.PublicKey `json:"stake_authority" yaml:"stake_authority"`
	WithdrawAuthority solana.PublicKey `json:"withdraw_authority" yaml:"withdraw_authority"`
}

func (a AuthorityConfig) Pair() stakeIndex.AuthorityPair {
	return stakeIndex.AuthorityPair{Withdraw: a.WithdrawAuthority, Stake: a.StakeAuthority}
}

type DaoConfig struct {
	FeeSplitShareBps  uint64           `json:"fee_split_share_bps" yaml:"fee_split_share_bps"`
	StakeAuthority    solana.PublicKey `json:"stake_authority" yaml:"stake_authority"`
	WithdrawAuthority solana.PublicKey `json:"withdraw_authority" yaml:"withdraw_authority"`
}

func (d DaoConfig) Pair() stakeIndex.AuthorityPair {
	return stakeIndex.AuthorityPair{Withdraw: d.WithdrawAuthority, Stake: d.StakeAuthority}
}

// FeeConfig is shared by the auction settlement kinds. MarinadeFeeBps is the
// distributor fee; the DAO takes FeeSplitShareBps of that fee.
type FeeConfig struct {
	MarinadeFeeBps uint64          `json:"marinade_fee_bps" yaml:"marinade_fee_bps"`
	Marinade       AuthorityConfig `json:"marinade" yaml:"marinade"`
	Dao            DaoConfig       `json:"dao" yaml:"dao"`
}

func (f *FeeConfig) Validate() error {
	if f.MarinadeFeeBps > numbers.BpsMax {
		return fmt.Errorf("marinade_fee_bps %d exceeds maximum %d", f.MarinadeFeeBps, numbers.BpsMax)
	}
	if f.Dao.FeeSplitShareBps > numbers.BpsMax {
		return fmt.Errorf("dao.fee_split_share_bps %d exceeds maximum %d", f.Dao.FeeSplitShareBps, numbers.BpsMax)
	}
	return nil
}

// BidDistributionConfig is the top-level settlement configuration file.
type BidDistributionConfig struct {
	FeeConfig                 FeeConfig          `json:"fee_config" yaml:"fee_config"`
	WhitelistStakeAuthorities []solana.PublicKey `json:"whitelist_stake_authorities,omitempty" yaml:"whitelist_stake_authorities,omitempty"`
	Settlements               []SettlementConfig `json:"settlements" yaml:"settlements"`
}

func (c *BidDistributionConfig) Validate() error {
	if err := c.FeeConfig.Validate(); err != nil {
		return err
	}
	seen := make(map[SettlementType]settlements.Funder)
	for i, s := range c.Settlements {
		if err := s.Meta.Funder.Validate(); err != nil {
			return fmt.Errorf("settlements[%d]: %w", i, err)
		}
		if psr := s.Psr(); psr != nil {
			r := psr.GetCoveredRangeBps()
			if r[0] > r[1] || r[1] > numbers.BpsMax {
				return fmt.Errorf("settlements[%d]: invalid covered_range_bps [%d, %d]", i, r[0], r[1])
			}
			continue
		}
		if funder, ok := seen[s.Type()]; ok {
			return fmt.Errorf("settlements[%d]: duplicate %s config (already funded by %s)", i, s.Type(), funder)
		}
		seen[s.Type()] = s.Meta.Funder
	}
	return nil
}

// AuthorityFilter admits only whitelisted stake authorities, or all when no whitelist is set.
func (c *BidDistributionConfig) AuthorityFilter() stakeIndex.AuthorityFilter {
	return stakeIndex.NewAuthorityFilter(c.WhitelistStakeAuthorities)
}

func (c *BidDistributionConfig) find(t SettlementType) *SettlementConfig {
	for i := range c.Settlements {
		if c.Settlements[i].Type() == t {
			return &c.Settlements[i]
		}
	}
	return nil
}

func (c *BidDistributionConfig) BiddingConfig() *SettlementConfig {
	return c.find(TypeBidding)
}

func (c *BidDistributionConfig) BidTooLowPenaltyConfig() *SettlementConfig {
	return c.find(TypeBidTooLowPenalty)
}

func (c *BidDistributionConfig) BlacklistPenaltyConfig() *SettlementConfig {
	return c.find(TypeBlacklistPenalty)
}

func (c *BidDistributionConfig) BondRiskFeeConfig() *SettlementConfig {
	return c.find(TypeBondRiskFee)
}

// PsrSettlements returns the protected-event configs in file order.
func (c *BidDistributionConfig) PsrSettlements() []SettlementConfig {
	out := make([]SettlementConfig, 0)
	for _, s := range c.Settlements {
		if s.Psr() != nil {
			out = append(out, s)
		}
	}
	return out
}
