package protectedEvents

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Event is one of the protected-event variants. The set is closed to this package.
type Event interface {
	Kind() string
	GetVoteAccount() solana.PublicKey
	GetExpectedEpr() decimal.Decimal
	GetActualEpr() decimal.Decimal
	GetEprLossBps() uint64
	isProtectedEvent()
}

// DowntimeRevenueImpact is raised when a validator earned fewer vote credits than
// the stake-weighted network average.
type DowntimeRevenueImpact struct {
	VoteAccount     solana.PublicKey `json:"vote_account"`
	ActualCredits   uint64           `json:"actual_credits"`
	ExpectedCredits uint64           `json:"expected_credits"`
	ExpectedEpr     decimal.Decimal  `json:"expected_epr"`
	ActualEpr       decimal.Decimal  `json:"actual_epr"`
	EprLossBps      uint64           `json:"epr_loss_bps"`
	Stake           uint64           `json:"stake"`
}

// CommissionSamIncrease is raised when a validator paid its stakers less than it
// promised to the stake auction.
type CommissionSamIncrease struct {
	VoteAccount                     solana.PublicKey `json:"vote_account"`
	ExpectedInflationCommission     decimal.Decimal  `json:"expected_inflation_commission"`
	ActualInflationCommission       decimal.Decimal  `json:"actual_inflation_commission"`
	PastInflationCommission         decimal.Decimal  `json:"past_inflation_commission"`
	ExpectedMevCommission           *decimal.Decimal `json:"expected_mev_commission"`
	ActualMevCommission             *decimal.Decimal `json:"actual_mev_commission"`
	PastMevCommission               *decimal.Decimal `json:"past_mev_commission"`
	BeforeSamCommissionIncreasePmpe decimal.Decimal  `json:"before_sam_commission_increase_pmpe"`
	ExpectedEpr                     decimal.Decimal  `json:"expected_epr"`
	ActualEpr                       decimal.Decimal  `json:"actual_epr"`
	EprLossBps                      uint64           `json:"epr_loss_bps"`
	Stake                           uint64           `json:"stake"`
}

// CommissionIncrease is a legacy event kept so older collections still parse.
// It never produces claims.
type CommissionIncrease struct {
	VoteAccount        solana.PublicKey `json:"vote_account"`
	PreviousCommission uint8            `json:"previous_commission"`
	CurrentCommission  uint8            `json:"current_commission"`
	ExpectedEpr        decimal.Decimal  `json:"expected_epr"`
	ActualEpr          decimal.Decimal  `json:"actual_epr"`
	EprLossBps         uint64           `json:"epr_loss_bps"`
	Stake              decimal.Decimal  `json:"stake"`
}

// LowCredits is a legacy event kept so older collections still parse.
// It never produces claims.
type LowCredits struct {
	VoteAccount     solana.PublicKey `json:"vote_account"`
	ExpectedCredits uint64           `json:"expected_credits"`
	ActualCredits   uint64           `json:"actual_credits"`
	Commission      uint8            `json:"commission"`
	ExpectedEpr     decimal.Decimal  `json:"expected_epr"`
	ActualEpr       decimal.Decimal  `json:"actual_epr"`
	EprLossBps      uint64           `json:"epr_loss_bps"`
	Stake           decimal.Decimal  `json:"stake"`
}

const (
	KindDowntimeRevenueImpact = "DowntimeRevenueImpact"
	KindCommissionSamIncrease = "CommissionSamIncrease"
	KindCommissionIncrease    = "CommissionIncrease"
	KindLowCredits            = "LowCredits"
)

func (e *DowntimeRevenueImpact) Kind() string                     { return KindDowntimeRevenueImpact }
func (e *DowntimeRevenueImpact) GetVoteAccount() solana.PublicKey { return e.VoteAccount }
func (e *DowntimeRevenueImpact) GetExpectedEpr() decimal.Decimal  { return e.ExpectedEpr }
func (e *DowntimeRevenueImpact) GetActualEpr() decimal.Decimal    { return e.ActualEpr }
func (e *DowntimeRevenueImpact) GetEprLossBps() uint64            { return e.EprLossBps }
func (e *DowntimeRevenueImpact) isProtectedEvent()                {}

func (e *CommissionSamIncrease) Kind() string                     { return KindCommissionSamIncrease }
func (e *CommissionSamIncrease) GetVoteAccount() solana.PublicKey { return e.VoteAccount }
func (e *CommissionSamIncrease) GetExpectedEpr() decimal.Decimal  { return e.ExpectedEpr }
func (e *CommissionSamIncrease) GetActualEpr() decimal.Decimal    { return e.ActualEpr }
func (e *CommissionSamIncrease) GetEprLossBps() uint64            { return e.EprLossBps }
func (e *CommissionSamIncrease) isProtectedEvent()                {}

func (e *CommissionIncrease) Kind() string                     { return KindCommissionIncrease }
func (e *CommissionIncrease) GetVoteAccount() solana.PublicKey { return e.VoteAccount }
func (e *CommissionIncrease) GetExpectedEpr() decimal.Decimal  { return e.ExpectedEpr }
func (e *CommissionIncrease) GetActualEpr() decimal.Decimal    { return e.ActualEpr }
func (e *CommissionIncrease) GetEprLossBps() uint64            { return e.EprLossBps }
func (e *CommissionIncrease) isProtectedEvent()                {}

func (e *LowCredits) Kind() string                     { return KindLowCredits }
func (e *LowCredits) GetVoteAccount() solana.PublicKey { return e.VoteAccount }
func (e *LowCredits) GetExpectedEpr() decimal.Decimal  { return e.ExpectedEpr }
func (e *LowCredits) GetActualEpr() decimal.Decimal    { return e.ActualEpr }
func (e *LowCredits) GetEprLossBps() uint64            { return e.EprLossBps }
func (e *LowCredits) isProtectedEvent()                {}

// ProtectedEvent wraps an Event and serializes it externally tagged by its kind,
// e.g. {"DowntimeRevenueImpact": {...}}.
type ProtectedEvent struct {
	Event
}

func (p ProtectedEvent) MarshalJSON() ([]byte, error) {
	if p.Event == nil {
		return nil, fmt.Errorf("cannot marshal empty protected event")
	}
	return json.Marshal(map[string]Event{p.Kind(): p.Event})
}

func (p *ProtectedEvent) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(data), &tagged); err != nil {
		return fmt.Errorf("protected event must be an object keyed by kind: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("protected event must have exactly one kind, got %d", len(tagged))
	}
	for kind, body := range tagged {
		var event Event
		switch kind {
		case KindDowntimeRevenueImpact:
			event = &DowntimeRevenueImpact{}
		case KindCommissionSamIncrease:
			event = &CommissionSamIncrease{}
		case KindCommissionIncrease:
			event = &CommissionIncrease{}
		case KindLowCredits:
			event = &LowCredits{}
		default:
			return fmt.Errorf("unknown protected event kind %q", kind)
		}
		if err := json.Unmarshal(body, event); err != nil {
			return fmt.Errorf("failed to decode %s event: %w", kind, err)
		}
		p.Event = event
	}
	return nil
}

type ProtectedEventCollection struct {
	Epoch  uint64           `json:"epoch"`
	Slot   uint64           `json:"slot"`
	Events []ProtectedEvent `json:"events"`
}
