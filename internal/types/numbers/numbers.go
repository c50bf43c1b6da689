package numbers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// ErrConversionOverflow is returned when a decimal amount cannot be represented
// as a whole number of lamports.
var ErrConversionOverflow = errors.New("conversion overflow")

// DivisionPrecision is the number of decimal places kept by Div.
const DivisionPrecision = 28

const (
	BpsMax         = 10_000
	LamportsPerSol = 1_000_000_000
)

var (
	thousand    = decimal.NewFromInt(1000)
	tenThousand = decimal.NewFromInt(BpsMax)
	maxUint64   = decimal.NewFromUint64(math.MaxUint64)
)

// Div divides a by b keeping DivisionPrecision decimal places.
func Div(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, DivisionPrecision)
}

// BpsToFraction converts basis points to a fraction of one
//
// bps / 10000
func BpsToFraction(bps uint64) decimal.Decimal {
	return Div(decimal.NewFromUint64(bps), tenThousand)
}

// PerMille converts a per-mille-per-epoch rate into a plain ratio
//
// pmpe / 1000
func PerMille(pmpe decimal.Decimal) decimal.Decimal {
	return Div(pmpe, thousand)
}

// Bps returns how many basis points value is of max, truncated.
func Bps(value, max uint64) (uint64, error) {
	if max == 0 {
		return 0, fmt.Errorf("cannot calculate bps of %d from zero max", value)
	}
	return BpsDecimal(decimal.NewFromUint64(value), decimal.NewFromUint64(max))
}

// BpsDecimal is Bps over decimal operands.
func BpsDecimal(value, max decimal.Decimal) (uint64, error) {
	if !max.IsPositive() {
		return 0, fmt.Errorf("cannot calculate bps of %s from non-positive max %s", value, max)
	}
	return FloorToLamports(Div(tenThousand.Mul(value), max))
}

// FloorToLamports drops the fractional part of a non-negative amount and returns
// it as an integer. Negative amounts and amounts above MaxUint64 are rejected.
func FloorToLamports(d decimal.Decimal) (uint64, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative amount %s", ErrConversionOverflow, d)
	}
	floored := d.Floor()
	if floored.GreaterThan(maxUint64) {
		return 0, fmt.Errorf("%w: amount %s exceeds u64", ErrConversionOverflow, d)
	}
	return floored.BigInt().Uint64(), nil
}

// SolToLamports converts an amount of SOL into lamports, flooring any dust.
func SolToLamports(sol decimal.Decimal) (uint64, error) {
	return FloorToLamports(sol.Mul(decimal.NewFromInt(LamportsPerSol)))
}

// SaturatingSub returns a-b, or zero when b > a.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// CheckedAdd returns a+b, or ErrConversionOverflow when the sum exceeds u64.
func CheckedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, fmt.Errorf("%w: %d + %d", ErrConversionOverflow, a, b)
	}
	return a + b, nil
}

// SaturatingAdd returns a+b capped at MaxUint64.
func SaturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// FlexUint64 decodes a JSON amount that may be written either as a number or
// as a quoted decimal string.
type FlexUint64 uint64

func (f *FlexUint64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid u64 amount %q: %w", string(data), err)
	}
	*f = FlexUint64(v)
	return nil
}

func (f FlexUint64) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(f), 10)), nil
}
