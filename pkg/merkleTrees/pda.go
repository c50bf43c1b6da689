package merkleTrees

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/pkg/merkle"
	"github.com/marinade-finance/bonds-settlements/pkg/settlements"
)

var ValidatorBondsProgramID = solana.MustPublicKeyFromBase58("vBoNdEvzMrSai7is21XgVYik65mqtaKXuSdMBJ1xkW4")

var (
	bondSeed       = []byte("bond_account")
	settlementSeed = []byte("settlement_account")
)

// BondAddress derives the bond account of a validator under a bonds config.
func BondAddress(config, voteAccount solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{bondSeed, config[:], voteAccount[:]}, ValidatorBondsProgramID)
	return addr, err
}

// SettlementAddress derives the settlement account for a bond, merkle root and epoch.
func SettlementAddress(bond solana.PublicKey, root merkle.Hash, epoch uint64) (solana.PublicKey, error) {
	var epochLE [8]byte
	binary.LittleEndian.PutUint64(epochLE[:], epoch)
	addr, _, err := solana.FindProgramAddress([][]byte{settlementSeed, bond[:], root[:], epochLE[:]}, ValidatorBondsProgramID)
	return addr, err
}

// AssignBondAccounts stamps the bond address of each settlement's validator.
func AssignBondAccounts(list []settlements.Settlement, config solana.PublicKey) error {
	if config.IsZero() {
		return nil
	}
	for i := range list {
		bond, err := BondAddress(config, list[i].VoteAccount)
		if err != nil {
			return fmt.Errorf("bond address of %s: %w", list[i].VoteAccount, err)
		}
		list[i].BondAccount = &bond
	}
	return nil
}
