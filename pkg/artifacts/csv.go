package artifacts

import (
	"github.com/gocarina/gocsv"
	"github.com/marinade-finance/bonds-settlements/pkg/merkleTrees"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

// SettlementRow is one line of the settlements report.
type SettlementRow struct {
	Reason          string `csv:"reason"`
	Funder          string `csv:"funder"`
	VoteAccount     string `csv:"vote_account"`
	BondAccount     string `csv:"bond_account"`
	ClaimsCount     uint64 `csv:"claims_count"`
	ClaimsAmount    uint64 `csv:"claims_amount"`
	ClaimsAmountSol string `csv:"claims_amount_sol"`
}

func SettlementRows(collection *settlements.SettlementCollection) []*SettlementRow {
	rows := make([]*SettlementRow, 0, len(collection.Settlements))
	for i := range collection.Settlements {
		s := &collection.Settlements[i]
		row := &SettlementRow{
			Reason:          s.Reason.String(),
			Funder:          string(s.Meta.Funder),
			VoteAccount:     s.VoteAccount.String(),
			ClaimsCount:     s.ClaimsCount,
			ClaimsAmount:    s.ClaimsAmount,
			ClaimsAmountSol: lamportsToSol(s.ClaimsAmount),
		}
		if s.BondAccount != nil {
			row.BondAccount = s.BondAccount.String()
		}
		rows = append(rows, row)
	}
	return rows
}

// MerkleTreeRow is one line of the merkle trees report.
type MerkleTreeRow struct {
	VoteAccount       string `csv:"vote_account"`
	MerkleRoot        string `csv:"merkle_root"`
	MaxTotalClaims    uint64 `csv:"max_total_claims"`
	MaxTotalClaimSum  uint64 `csv:"max_total_claim_sum"`
	SettlementAccount string `csv:"settlement_account"`
}

func MerkleTreeRows(collection *merkleTrees.MerkleTreeCollection) []*MerkleTreeRow {
	rows := make([]*MerkleTreeRow, 0, len(collection.MerkleTrees))
	for i := range collection.MerkleTrees {
		t := &collection.MerkleTrees[i]
		row := &MerkleTreeRow{
			VoteAccount:      t.VoteAccount.String(),
			MaxTotalClaims:   t.MaxTotalClaims,
			MaxTotalClaimSum: t.MaxTotalClaimSum,
		}
		if t.MerkleRoot != nil {
			row.MerkleRoot = base58.Encode(t.MerkleRoot[:])
		}
		if t.SettlementAccount != nil {
			row.SettlementAccount = t.SettlementAccount.String()
		}
		rows = append(rows, row)
	}
	return rows
}

func lamportsToSol(lamports uint64) string {
	return decimal.NewFromUint64(lamports).Shift(-9).String()
}

func marshalCsv(rows interface{}) ([]byte, error) {
	return gocsv.MarshalBytes(rows)
}
