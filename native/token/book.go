package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var (
	// ErrInsufficientFunds is returned when a holder cannot cover a transfer.
	ErrInsufficientFunds = errors.New("token: insufficient funds")
	// ErrNotOwner is returned when a non-fungible item is moved by someone
	// other than its recorded owner.
	ErrNotOwner = errors.New("token: item not owned by sender")
	// ErrUnknownItem is returned for item ids that were never minted.
	ErrUnknownItem = errors.New("token: unknown item")
	// ErrAllowanceExceeded is returned when a spender draws more than was
	// approved.
	ErrAllowanceExceeded = errors.New("token: allowance exceeded")
	// ErrInvalidAmount is returned for nil, zero or negative amounts.
	ErrInvalidAmount = errors.New("token: amount must be positive")
)

type allowanceKey struct {
	asset   string
	owner   [20]byte
	spender [20]byte
}

// Book is an in-process asset transfer service keeping fungible balances,
// non-fungible ownership and draw allowances per asset symbol. It backs the
// engines in tests and single-node deployments; production setups substitute
// a real transfer collaborator behind the same interface.
type Book struct {
	mu         sync.Mutex
	operator   [20]byte
	balances   map[string]map[[20]byte]*big.Int
	items      map[string]map[uint64][20]byte
	allowances map[allowanceKey]*big.Int
}

// NewBook creates an asset book whose plain Transfer calls move funds out of
// the given operator account (the auction house custody).
func NewBook(operator [20]byte) *Book {
	return &Book{
		operator:   operator,
		balances:   make(map[string]map[[20]byte]*big.Int),
		items:      make(map[string]map[uint64][20]byte),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

func (b *Book) balanceOf(asset string, holder [20]byte) *big.Int {
	holders, ok := b.balances[asset]
	if !ok {
		return big.NewInt(0)
	}
	bal, ok := holders[holder]
	if !ok {
		return big.NewInt(0)
	}
	return bal
}

func (b *Book) setBalance(asset string, holder [20]byte, amount *big.Int) {
	holders, ok := b.balances[asset]
	if !ok {
		holders = make(map[[20]byte]*big.Int)
		b.balances[asset] = holders
	}
	holders[holder] = amount
}

// Mint credits freshly issued units of a fungible asset to the holder.
func (b *Book) Mint(asset string, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setBalance(asset, to, new(big.Int).Add(b.balanceOf(asset, to), amount))
	return nil
}

// MintItem registers a non-fungible item under the given owner.
func (b *Book) MintItem(asset string, owner [20]byte, itemID uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	owners, ok := b.items[asset]
	if !ok {
		owners = make(map[uint64][20]byte)
		b.items[asset] = owners
	}
	if _, exists := owners[itemID]; exists {
		return fmt.Errorf("token: item %d already minted", itemID)
	}
	owners[itemID] = owner
	return nil
}

// BalanceOf reports the fungible holdings of an account.
func (b *Book) BalanceOf(asset string, holder [20]byte) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.balanceOf(asset, holder))
}

// OwnerOf reports the current owner of a non-fungible item.
func (b *Book) OwnerOf(asset string, itemID uint64) ([20]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	owners, ok := b.items[asset]
	if !ok {
		return [20]byte{}, false
	}
	owner, ok := owners[itemID]
	return owner, ok
}

func (b *Book) move(asset string, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromBal := b.balanceOf(asset, from)
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	b.setBalance(asset, from, new(big.Int).Sub(fromBal, amount))
	b.setBalance(asset, to, new(big.Int).Add(b.balanceOf(asset, to), amount))
	return nil
}

// TransferFrom moves a fungible amount between two explicit parties.
func (b *Book) TransferFrom(asset string, from, to [20]byte, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(asset, from, to, amount)
}

// Transfer moves a fungible amount out of the operator account.
func (b *Book) Transfer(asset string, to [20]byte, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(asset, b.operator, to, amount)
}

// TransferItem moves a single non-fungible item between two parties.
func (b *Book) TransferItem(asset string, from, to [20]byte, itemID uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	owners, ok := b.items[asset]
	if !ok {
		return ErrUnknownItem
	}
	owner, ok := owners[itemID]
	if !ok {
		return ErrUnknownItem
	}
	if owner != from {
		return ErrNotOwner
	}
	owners[itemID] = to
	return nil
}

// Approve grants the spender the right to draw up to amount from the owner's
// holdings. A fresh approval replaces any prior allowance.
func (b *Book) Approve(asset string, owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowances[allowanceKey{asset: asset, owner: owner, spender: spender}] = new(big.Int).Set(amount)
	return nil
}

// Allowance reports the remaining amount the spender may draw from the owner.
func (b *Book) Allowance(asset string, owner, spender [20]byte) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := allowanceKey{asset: asset, owner: owner, spender: spender}
	if allowed, ok := b.allowances[key]; ok {
		return new(big.Int).Set(allowed)
	}
	return big.NewInt(0)
}

// Draw consumes the spender's allowance, moving amount from the owner to the
// destination account.
func (b *Book) Draw(asset string, owner, spender, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := allowanceKey{asset: asset, owner: owner, spender: spender}
	allowed, ok := b.allowances[key]
	if !ok || allowed.Cmp(amount) < 0 {
		return ErrAllowanceExceeded
	}
	if err := b.move(asset, owner, to, amount); err != nil {
		return err
	}
	b.allowances[key] = new(big.Int).Sub(allowed, amount)
	return nil
}
