package stakeIndex

import "github.com/gagliardetto/solana-go"

// AuthorityFilter decides whether stake owned by a stake authority counts as
// protocol-controlled stake.
type AuthorityFilter interface {
	Allows(stakeAuthority solana.PublicKey) bool
}

type allowAllFilter struct{}

func (allowAllFilter) Allows(solana.PublicKey) bool { return true }

type whitelistFilter struct {
	allowed map[solana.PublicKey]struct{}
}

func (w *whitelistFilter) Allows(stakeAuthority solana.PublicKey) bool {
	_, ok := w.allowed[stakeAuthority]
	return ok
}

// NewAuthorityFilter returns a filter that admits only the whitelisted stake
// authorities. A nil whitelist admits every authority.
func NewAuthorityFilter(whitelist []solana.PublicKey) AuthorityFilter {
	if whitelist == nil {
		return allowAllFilter{}
	}
	allowed := make(map[solana.PublicKey]struct{}, len(whitelist))
	for _, pk := range whitelist {
		allowed[pk] = struct{}{}
	}
	return &whitelistFilter{allowed: allowed}
}
