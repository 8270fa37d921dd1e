package types

import "math/big"

// Account is the marketplace-side balance and activity record for a single
// party. Escrow creation debits Balance into the vault account; settlements
// credit it back on the provider side. The activity counters feed the trust
// aggregator and are only ever incremented by their owning engines.
type Account struct {
	Balance      *big.Int `json:"balance"`
	Stake        *big.Int `json:"stake"`
	VolumeTraded *big.Int `json:"volumeTraded"`
	Likes        uint64   `json:"likes"`
	DisputesLost uint64   `json:"disputesLost"`
	CreatedAt    int64    `json:"createdAt"`
}

// Clone returns a deep copy so callers can mutate the result without
// affecting the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	if a.Stake != nil {
		clone.Stake = new(big.Int).Set(a.Stake)
	}
	if a.VolumeTraded != nil {
		clone.VolumeTraded = new(big.Int).Set(a.VolumeTraded)
	}
	return &clone
}

// Normalize replaces nil big.Int fields with zero values. Always returns a
// usable account, allocating one when the receiver is nil.
func (a *Account) Normalize() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0), Stake: big.NewInt(0), VolumeTraded: big.NewInt(0)}
	}
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
	if a.Stake == nil {
		a.Stake = big.NewInt(0)
	}
	if a.VolumeTraded == nil {
		a.VolumeTraded = big.NewInt(0)
	}
	return a
}

// System account identifiers. The vault holds funds locked under active
// escrows; the treasury receives platform fees and confiscations.
const (
	VaultAccountID    = "sys:vault"
	TreasuryAccountID = "sys:treasury"
)
