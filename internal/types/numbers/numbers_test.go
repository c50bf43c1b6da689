package numbers

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func Test_numbers(t *testing.T) {
	t.Run("Test that FloorToLamports truncates fractional lamports", func(t *testing.T) {
		v, err := FloorToLamports(decimal.RequireFromString("49.999999"))
		assert.Nil(t, err)
		assert.Equal(t, uint64(49), v)
	})
	t.Run("Test that FloorToLamports rejects negative amounts", func(t *testing.T) {
		_, err := FloorToLamports(decimal.RequireFromString("-1"))
		assert.True(t, errors.Is(err, ErrConversionOverflow))
	})
	t.Run("Test that FloorToLamports rejects amounts above u64", func(t *testing.T) {
		tooBig := decimal.NewFromUint64(math.MaxUint64).Add(decimal.NewFromInt(1))
		_, err := FloorToLamports(tooBig)
		assert.True(t, errors.Is(err, ErrConversionOverflow))

		v, err := FloorToLamports(decimal.NewFromUint64(math.MaxUint64))
		assert.Nil(t, err)
		assert.Equal(t, uint64(math.MaxUint64), v)
	})
	t.Run("Test bps helpers", func(t *testing.T) {
		assert.True(t, decimal.RequireFromString("0.5").Equal(BpsToFraction(5000)))
		assert.True(t, decimal.RequireFromString("0.001").Equal(PerMille(decimal.NewFromInt(1))))

		bps, err := Bps(25, 100)
		assert.Nil(t, err)
		assert.Equal(t, uint64(2500), bps)

		_, err = Bps(1, 0)
		assert.Error(t, err)

		bps, err = BpsDecimal(decimal.RequireFromString("0.0005"), decimal.RequireFromString("0.001"))
		assert.Nil(t, err)
		assert.Equal(t, uint64(5000), bps)
	})
	t.Run("Test SolToLamports", func(t *testing.T) {
		v, err := SolToLamports(decimal.RequireFromString("1.5"))
		assert.Nil(t, err)
		assert.Equal(t, uint64(1_500_000_000), v)
	})
	t.Run("Test saturating arithmetic", func(t *testing.T) {
		assert.Equal(t, uint64(0), SaturatingSub(1, 2))
		assert.Equal(t, uint64(1), SaturatingSub(3, 2))
		assert.Equal(t, uint64(math.MaxUint64), SaturatingAdd(math.MaxUint64, 1))
	})
	t.Run("Test CheckedAdd fails on overflow", func(t *testing.T) {
		v, err := CheckedAdd(math.MaxUint64-1, 1)
		assert.Nil(t, err)
		assert.Equal(t, uint64(math.MaxUint64), v)

		_, err = CheckedAdd(math.MaxUint64, 1)
		assert.True(t, errors.Is(err, ErrConversionOverflow))
	})
	t.Run("Test FlexUint64 accepts strings and numbers", func(t *testing.T) {
		var values []FlexUint64
		err := json.Unmarshal([]byte(`[12, "34", "18446744073709551615"]`), &values)
		assert.Nil(t, err)
		assert.Equal(t, []FlexUint64{12, 34, math.MaxUint64}, values)

		var bad FlexUint64
		assert.Error(t, json.Unmarshal([]byte(`"1.5"`), &bad))
	})
}

func Test_tokenCalculations(t *testing.T) {
	t.Run("Test proportional claim floors each share", func(t *testing.T) {
		v, err := CalculateProportionalClaim(1, 3, 100)
		assert.Nil(t, err)
		assert.Equal(t, uint64(33), v)

		v, err = CalculateProportionalClaim(2, 3, 100)
		assert.Nil(t, err)
		assert.Equal(t, uint64(66), v)
	})
	t.Run("Test stake share of empty total is zero", func(t *testing.T) {
		assert.True(t, CalculateStakeShare(10, 0).IsZero())
	})
	t.Run("Test distributor and dao fees", func(t *testing.T) {
		fee, err := CalculateDistributorFee(decimal.NewFromInt(1000), 950)
		assert.Nil(t, err)
		assert.Equal(t, uint64(95), fee)

		dao, err := CalculateDaoFee(95, 5000)
		assert.Nil(t, err)
		assert.Equal(t, uint64(47), dao)
	})
}
