package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"notehouse/core/events"
	"notehouse/core/types"
	"notehouse/observability/metrics"
)

var (
	// ErrInsufficientBalance is returned when an account's available funds do
	// not cover the requested amount.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrTransferFailed is returned when the external asset mover rejects a
	// deposit or withdrawal transfer.
	ErrTransferFailed = errors.New("ledger: transfer failed")
	// ErrArithmeticUnderflow marks an invariant violation: a debit or unlock
	// that would push a balance below zero. It must never occur when callers
	// uphold their preconditions.
	ErrArithmeticUnderflow = errors.New("ledger: arithmetic underflow")
	// ErrInvalidAmount is returned for nil, zero or negative amounts.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")

	errNilState = errors.New("ledger: state not configured")
	errNilMover = errors.New("ledger: asset mover not configured")
)

// State is the narrow persistence surface the ledger needs. Accounts that were
// never written must be returned as zeroed records, not errors.
type State interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// AssetMover is the external fungible-transfer primitive used to move the
// settlement asset in and out of the house custody account. Implementations
// must report failure rather than silently no-op.
type AssetMover interface {
	TransferFrom(asset string, from, to [20]byte, amount *big.Int) error
	Transfer(asset string, to [20]byte, amount *big.Int) error
}

// Engine tracks per-account available and locked funds denominated in the
// settlement asset. Deposit and Withdraw face external callers; Lock, Unlock,
// Credit and SettleDebit are reserved for the bidding and settlement engines.
type Engine struct {
	mu      sync.Mutex
	state   State
	mover   AssetMover
	emitter events.Emitter
	asset   string
	custody [20]byte
}

// NewEngine constructs a ledger engine denominated in the given settlement
// asset, custodying deposits under the supplied account.
func NewEngine(asset string, custody [20]byte) *Engine {
	return &Engine{
		asset:   asset,
		custody: custody,
		emitter: events.NoopEmitter{},
	}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(state State) { e.state = state }

// SetMover wires the engine to the external asset transfer service.
func (e *Engine) SetMover(mover AssetMover) { e.mover = mover }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Asset returns the settlement asset symbol the ledger is denominated in.
func (e *Engine) Asset() string { return e.asset }

// Custody returns the account under which deposited funds are held.
func (e *Engine) Custody() [20]byte { return e.custody }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(ledgerEvent{evt: evt})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.mover == nil {
		return errNilMover
	}
	return nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e *Engine) loadAccount(addr [20]byte) (*types.Account, error) {
	acct, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return types.EnsureAccount(acct), nil
}

// Deposit transfers amount of the settlement asset from the caller into house
// custody and credits the target account's available balance.
func (e *Engine) Deposit(caller, target [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mover.TransferFrom(e.asset, caller, e.custody, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	acct, err := e.loadAccount(target)
	if err != nil {
		return err
	}
	acct.Balance = new(big.Int).Add(acct.Balance, amount)
	if err := e.state.PutAccount(target, acct); err != nil {
		return err
	}
	metrics.House().Deposited()
	e.emit(newDepositedEvent(caller, target, e.asset, amount))
	return nil
}

// Withdraw transfers amount of the settlement asset out of house custody back
// to the caller. Only the available (unlocked) portion can be withdrawn.
func (e *Engine) Withdraw(caller [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, err := e.loadAccount(caller)
	if err != nil {
		return err
	}
	if acct.Available().Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := e.mover.Transfer(e.asset, caller, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	next := new(big.Int).Sub(acct.Balance, amount)
	if next.Sign() < 0 {
		return ErrArithmeticUnderflow
	}
	acct.Balance = next
	if err := e.state.PutAccount(caller, acct); err != nil {
		return err
	}
	metrics.House().Withdrawn()
	e.emit(newWithdrawnEvent(caller, e.asset, amount))
	return nil
}

// Available returns the spendable balance of the given account.
func (e *Engine) Available(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return acct.Available(), nil
}

// Locked returns the amount currently reserved under the account's winning
// bid.
func (e *Engine) Locked(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acct.LockedBalance), nil
}

// Lock reserves amount of the account's available balance against a bid.
func (e *Engine) Lock(addr [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, err := e.loadAccount(addr)
	if err != nil {
		return err
	}
	if acct.Available().Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	acct.LockedBalance = new(big.Int).Add(acct.LockedBalance, amount)
	return e.state.PutAccount(addr, acct)
}

// Unlock releases amount of the account's locked balance back to available.
func (e *Engine) Unlock(addr [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, err := e.loadAccount(addr)
	if err != nil {
		return err
	}
	if acct.LockedBalance.Cmp(amount) < 0 {
		return ErrArithmeticUnderflow
	}
	acct.LockedBalance = new(big.Int).Sub(acct.LockedBalance, amount)
	return e.state.PutAccount(addr, acct)
}

// Credit increases the account's available balance without an external
// transfer. Used by settlement to pay the borrower out of funds already held
// in custody.
func (e *Engine) Credit(addr [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, err := e.loadAccount(addr)
	if err != nil {
		return err
	}
	acct.Balance = new(big.Int).Add(acct.Balance, amount)
	return e.state.PutAccount(addr, acct)
}

// SettleDebit removes amount from both the account's total and locked
// balances. It finalises a winning bid whose funds were locked beforehand, so
// underflow here is an invariant violation rather than a caller error.
func (e *Engine) SettleDebit(addr [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, err := e.loadAccount(addr)
	if err != nil {
		return err
	}
	if acct.Balance.Cmp(amount) < 0 || acct.LockedBalance.Cmp(amount) < 0 {
		return ErrArithmeticUnderflow
	}
	acct.Balance = new(big.Int).Sub(acct.Balance, amount)
	acct.LockedBalance = new(big.Int).Sub(acct.LockedBalance, amount)
	return e.state.PutAccount(addr, acct)
}
