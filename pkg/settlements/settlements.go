package settlements

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/pkg/protectedEvents"
	"github.com/marinade-finance/bonds-settlements/pkg/stakeIndex"
)

type Funder string

const (
	FunderValidatorBond Funder = "ValidatorBond"
	FunderMarinade      Funder = "Marinade"
)

func (f Funder) Validate() error {
	switch f {
	case FunderValidatorBond, FunderMarinade:
		return nil
	}
	return fmt.Errorf("unknown settlement funder %q", string(f))
}

func (f *Funder) UnmarshalText(text []byte) error {
	v := Funder(text)
	if err := v.Validate(); err != nil {
		return err
	}
	*f = v
	return nil
}

type SettlementMeta struct {
	Funder Funder `json:"funder" yaml:"funder"`
}

type ReasonKind string

const (
	ReasonProtectedEvent      ReasonKind = "ProtectedEvent"
	ReasonBidding             ReasonKind = "Bidding"
	ReasonBidTooLowPenalty    ReasonKind = "BidTooLowPenalty"
	ReasonBlacklistPenalty    ReasonKind = "BlacklistPenalty"
	ReasonBondRiskFee         ReasonKind = "BondRiskFee"
	ReasonInstitutionalPayout ReasonKind = "InstitutionalPayout"
)

// Reason says why a settlement exists. Only ReasonProtectedEvent carries a payload.
type Reason struct {
	Kind           ReasonKind
	ProtectedEvent *protectedEvents.ProtectedEvent
}

func NewReason(kind ReasonKind) Reason {
	return Reason{Kind: kind}
}

func NewProtectedEventReason(event protectedEvents.ProtectedEvent) Reason {
	return Reason{Kind: ReasonProtectedEvent, ProtectedEvent: &event}
}

func (r Reason) String() string {
	return string(r.Kind)
}

func (r Reason) MarshalJSON() ([]byte, error) {
	if r.Kind == ReasonProtectedEvent {
		if r.ProtectedEvent == nil {
			return nil, fmt.Errorf("protected event reason without an event")
		}
		return json.Marshal(map[string]*protectedEvents.ProtectedEvent{string(ReasonProtectedEvent): r.ProtectedEvent})
	}
	return json.Marshal(string(r.Kind))
}

func (r *Reason) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var kind string
		if err := json.Unmarshal(data, &kind); err != nil {
			return err
		}
		switch ReasonKind(kind) {
		case ReasonBidding, ReasonBidTooLowPenalty, ReasonBlacklistPenalty, ReasonBondRiskFee, ReasonInstitutionalPayout:
			*r = Reason{Kind: ReasonKind(kind)}
			return nil
		}
		return fmt.Errorf("unknown settlement reason %q", kind)
	}

	var tagged map[string]*protectedEvents.ProtectedEvent
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("invalid settlement reason: %w", err)
	}
	event, ok := tagged[string(ReasonProtectedEvent)]
	if !ok || len(tagged) != 1 || event == nil {
		return fmt.Errorf("settlement reason object must hold a single ProtectedEvent")
	}
	*r = Reason{Kind: ReasonProtectedEvent, ProtectedEvent: event}
	return nil
}

// SettlementClaim is the amount owed to one (withdraw, stake) authority pair.
type SettlementClaim struct {
	WithdrawAuthority solana.PublicKey            `json:"withdraw_authority"`
	StakeAuthority    solana.PublicKey            `json:"stake_authority"`
	StakeAccounts     map[solana.PublicKey]uint64 `json:"stake_accounts"`
	ActiveStake       uint64                      `json:"active_stake"`
	ClaimAmount       uint64                      `json:"claim_amount"`
}

func (c *SettlementClaim) Pair() stakeIndex.AuthorityPair {
	return stakeIndex.AuthorityPair{Withdraw: c.WithdrawAuthority, Stake: c.StakeAuthority}
}

// NullClaim is the zero-amount claim that keeps Marinade-funded roots distinct
// from bond-funded roots over identical claim sets.
func NullClaim() SettlementClaim {
	return SettlementClaim{StakeAccounts: map[solana.PublicKey]uint64{}}
}

type Settlement struct {
	Reason       Reason            `json:"reason"`
	Meta         SettlementMeta    `json:"meta"`
	VoteAccount  solana.PublicKey  `json:"vote_account"`
	BondAccount  *solana.PublicKey `json:"bond_account,omitempty"`
	ClaimsCount  uint64            `json:"claims_count"`
	ClaimsAmount uint64            `json:"claims_amount"`
	Claims       []SettlementClaim `json:"claims"`
	Details      json.RawMessage   `json:"details,omitempty"`
}

type SettlementCollection struct {
	Slot        uint64       `json:"slot"`
	Epoch       uint64       `json:"epoch"`
	Settlements []Settlement `json:"settlements"`
}
