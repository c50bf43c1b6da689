package institutionalPayout

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// StakeAccount is a stake account with the stake the payout was computed from.
type StakeAccount struct {
	Address        solana.PublicKey   `json:"address"`
	EffectiveStake numbers.FlexUint64 `json:"effectiveStake"`
}

// PayoutStaker is the amount owed to one institutional staker of a validator.
type PayoutStaker struct {
	VoteAccount        solana.PublicKey   `json:"voteAccount"`
	StakeAccounts      []StakeAccount     `json:"stakeAccounts"`
	Staker             solana.PublicKey   `json:"staker"`
	Withdrawer         solana.PublicKey   `json:"withdrawer"`
	EffectiveStake     numbers.FlexUint64 `json:"effectiveStake"`
	ActiveStake        numbers.FlexUint64 `json:"activeStake"`
	ActivatingStake    numbers.FlexUint64 `json:"activatingStake"`
	DeactivatingStake  numbers.FlexUint64 `json:"deactivatingStake"`
	BalanceLamports    numbers.FlexUint64 `json:"balanceLamports"`
	ShareInstitutional decimal.Decimal    `json:"shareInstitutional"`
	ShareDeactivation  decimal.Decimal    `json:"shareDeactivation"`
	PayoutLamports     numbers.FlexUint64 `json:"payoutLamports"`
}

// PayoutDistributor is the distributor fee charged to a validator.
type PayoutDistributor struct {
	VoteAccount    solana.PublicKey   `json:"voteAccount"`
	PayoutLamports numbers.FlexUint64 `json:"payoutLamports"`
	StakeAccounts  []StakeAccount     `json:"stakeAccounts"`
}

type Config struct {
	StakerAuthorityFilter []solana.PublicKey `json:"stakerAuthorityFilter"`
	PsrPercentile         uint16             `json:"psrPercentile"`
	PsrGraceDowntimeBps   uint32             `json:"psrGraceDowntimeBps"`
	ValidatorMaxFeeBps    int32              `json:"validatorMaxFeeBps"`
	DistributorFeeBps     int32              `json:"distributorFeeBps"`
}

type ValidatorPayoutInfo struct {
	VoteAccount                 solana.PublicKey   `json:"voteAccount"`
	IsInstitutional             bool               `json:"isInstitutional"`
	PayoutType                  string             `json:"payoutType"`
	DistributorFeeLamports      numbers.FlexUint64 `json:"distributorFeeLamports"`
	ValidatorFeeLamports        numbers.FlexUint64 `json:"validatorFeeLamports"`
	DistributeToStakersLamports numbers.FlexUint64 `json:"distributeToStakersLamports"`
	PsrFeeLamports              numbers.FlexUint64 `json:"psrFeeLamports"`
}

// InstitutionalPayout is the payout report of the institutional staking
// calculator. Only the payout lists drive settlements; the rest is carried
// for logging.
type InstitutionalPayout struct {
	Epoch                          uint64                `json:"epoch"`
	Slot                           numbers.FlexUint64    `json:"slot"`
	Config                         *Config               `json:"config,omitempty"`
	InstitutionalStakerAuthorities []solana.PublicKey    `json:"institutionalStakerAuthorities,omitempty"`
	ValidatorMaxFeeBps             int32                 `json:"validatorMaxFeeBps"`
	DistributorFeeBps              int32                 `json:"distributorFeeBps"`
	PayoutStakers                  []PayoutStaker        `json:"payoutStakers"`
	PayoutDistributors             []PayoutDistributor   `json:"payoutDistributors"`
	ValidatorPayoutInfo            []ValidatorPayoutInfo `json:"validatorPayoutInfo,omitempty"`
}

// TotalPayoutLamports sums every staker and distributor payout.
func (p *InstitutionalPayout) TotalPayoutLamports() (uint64, error) {
	var total uint64
	add := func(v uint64) error {
		if total > math.MaxUint64-v {
			return fmt.Errorf("%w: payout total overflows", numbers.ErrConversionOverflow)
		}
		total += v
		return nil
	}
	for _, s := range p.PayoutStakers {
		if err := add(uint64(s.PayoutLamports)); err != nil {
			return 0, err
		}
	}
	for _, d := range p.PayoutDistributors {
		if err := add(uint64(d.PayoutLamports)); err != nil {
			return 0, err
		}
	}
	return total, nil
}

func LoadInstitutionalPayout(path string) (*InstitutionalPayout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read institutional payout %s", path)
	}
	payout := &InstitutionalPayout{}
	if err := json.Unmarshal(data, payout); err != nil {
		return nil, errors.Wrapf(err, "failed to parse institutional payout %s", path)
	}
	return payout, nil
}
