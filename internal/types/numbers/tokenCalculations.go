package numbers

import "github.com/shopspring/decimal"

// CalculateStakeShare calculates the portion of total stake held by part
//
// part / total
func CalculateStakeShare(part, total uint64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return Div(decimal.NewFromUint64(part), decimal.NewFromUint64(total))
}

// CalculateProportionalClaim calculates a pair's share of a lamport pool
//
// floor(part / total * pool)
func CalculateProportionalClaim(part, total, pool uint64) (uint64, error) {
	share := CalculateStakeShare(part, total)
	return FloorToLamports(share.Mul(decimal.NewFromUint64(pool)))
}

// CalculateDistributorFee calculates the distributor portion of a pool
//
// floor(pool * fee_bps / 10000)
func CalculateDistributorFee(pool decimal.Decimal, feeBps uint64) (uint64, error) {
	return FloorToLamports(pool.Mul(BpsToFraction(feeBps)))
}

// CalculateDaoFee calculates the DAO cut of the distributor fee
//
// floor(distributor_fee * dao_share_bps / 10000)
func CalculateDaoFee(distributorFee uint64, daoShareBps uint64) (uint64, error) {
	return FloorToLamports(decimal.NewFromUint64(distributorFee).Mul(BpsToFraction(daoShareBps)))
}
