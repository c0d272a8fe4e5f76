package auction

import "math/big"

// AssetMover is the external transfer primitive used for collateral custody
// and settlement authorization. Implementations must report failure rather
// than silently no-op.
type AssetMover interface {
	TransferFrom(asset string, from, to [20]byte, amount *big.Int) error
	TransferItem(asset string, from, to [20]byte, itemID uint64) error
	Approve(asset string, owner, spender [20]byte, amount *big.Int) error
}

// VaultFactory creates isolated custody vaults and can later redirect a
// vault's controlling executor. Vaults are referenced by opaque 20-byte
// identities; their internal state never crosses this boundary.
type VaultFactory interface {
	CreateVault() ([20]byte, error)
	SetExecutor(vault [20]byte, executor [20]byte) error
}

// NoteID identifies a minted note inside the external registry.
type NoteID string

// NoteProposal carries the terms handed to the note registry at settlement.
type NoteProposal struct {
	Maturity     uint64
	FaceValue    *big.Int
	Price        *big.Int
	Vault        [20]byte
	PaymentAsset string
	Borrower     [20]byte
}

// NoteRegistry mints the settlement instrument for a winning bid. Purchase
// draws the purchase price previously authorised for the registry's collector
// account.
type NoteRegistry interface {
	FeeEnabled() bool
	Collector() [20]byte
	Propose(p NoteProposal) (NoteID, error)
	Purchase(id NoteID) error
}

// Ledger is the balance-ledger surface the bidding and settlement engines
// coordinate with. Lock and Unlock reserve funds as the winning bid changes;
// Credit and SettleDebit reconcile balances at claim time.
type Ledger interface {
	Available(addr [20]byte) (*big.Int, error)
	Lock(addr [20]byte, amount *big.Int) error
	Unlock(addr [20]byte, amount *big.Int) error
	Credit(addr [20]byte, amount *big.Int) error
	SettleDebit(addr [20]byte, amount *big.Int) error
}
