package types

import "math/big"

// Account tracks the settlement-asset position of a single participant in the
// balance ledger. Balance is the total custodied amount; LockedBalance is the
// portion reserved against the participant's current winning bid and is always
// a subset of Balance.
type Account struct {
	Nonce         uint64   `json:"nonce"`
	Balance       *big.Int `json:"balance"`
	LockedBalance *big.Int `json:"lockedBalance"`
}

// Available returns the spendable portion of the account, i.e. the total
// balance minus whatever is locked under an active bid.
func (a *Account) Available() *big.Int {
	if a == nil || a.Balance == nil {
		return big.NewInt(0)
	}
	locked := a.LockedBalance
	if locked == nil {
		locked = big.NewInt(0)
	}
	return new(big.Int).Sub(a.Balance, locked)
}

// Clone returns a deep copy of the account so callers can safely mutate the
// copy without affecting the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	} else {
		clone.Balance = big.NewInt(0)
	}
	if a.LockedBalance != nil {
		clone.LockedBalance = new(big.Int).Set(a.LockedBalance)
	} else {
		clone.LockedBalance = big.NewInt(0)
	}
	return &clone
}

// EnsureAccount normalises a possibly-nil account into one with non-nil
// balance fields.
func EnsureAccount(acc *Account) *Account {
	if acc == nil {
		return &Account{Balance: big.NewInt(0), LockedBalance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	if acc.LockedBalance == nil {
		acc.LockedBalance = big.NewInt(0)
	}
	return acc
}
