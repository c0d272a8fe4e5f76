package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"notehouse/core/events"
	"notehouse/core/types"
)

const testAsset = "NUSD"

type mockState struct {
	accounts map[[20]byte]*types.Account
}

func newMockState() *mockState {
	return &mockState{accounts: make(map[[20]byte]*types.Account)}
}

func (m *mockState) GetAccount(addr [20]byte) (*types.Account, error) {
	acct, ok := m.accounts[addr]
	if !ok {
		return types.EnsureAccount(nil), nil
	}
	return acct.Clone(), nil
}

func (m *mockState) PutAccount(addr [20]byte, account *types.Account) error {
	m.accounts[addr] = account.Clone()
	return nil
}

type mockMover struct {
	failNext  bool
	transfers []string
}

func (m *mockMover) TransferFrom(asset string, from, to [20]byte, amount *big.Int) error {
	if m.failNext {
		m.failNext = false
		return fmt.Errorf("rejected")
	}
	m.transfers = append(m.transfers, fmt.Sprintf("from:%x->%x:%s", from[0], to[0], amount))
	return nil
}

func (m *mockMover) Transfer(asset string, to [20]byte, amount *big.Int) error {
	if m.failNext {
		m.failNext = false
		return fmt.Errorf("rejected")
	}
	m.transfers = append(m.transfers, fmt.Sprintf("to:%x:%s", to[0], amount))
	return nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestEngine() (*Engine, *mockState, *mockMover) {
	state := newMockState()
	mover := &mockMover{}
	engine := NewEngine(testAsset, testAddr(0xEE))
	engine.SetState(state)
	engine.SetMover(mover)
	return engine, state, mover
}

func TestDepositCreditsTarget(t *testing.T) {
	engine, state, _ := newTestEngine()
	caller := testAddr(0x01)

	if err := engine.Deposit(caller, caller, big.NewInt(500)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	acct := state.accounts[caller]
	if acct.Balance.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected balance 500, got %s", acct.Balance)
	}
	if acct.LockedBalance.Sign() != 0 {
		t.Fatalf("expected zero locked, got %s", acct.LockedBalance)
	}
}

func TestDepositRejectedTransfer(t *testing.T) {
	engine, state, mover := newTestEngine()
	caller := testAddr(0x01)
	mover.failNext = true

	err := engine.Deposit(caller, caller, big.NewInt(500))
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if _, ok := state.accounts[caller]; ok {
		t.Fatalf("expected no account written after failed deposit")
	}
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	engine, _, _ := newTestEngine()
	caller := testAddr(0x01)

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		if err := engine.Deposit(caller, caller, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %v: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestWithdrawRequiresAvailableBalance(t *testing.T) {
	engine, _, _ := newTestEngine()
	caller := testAddr(0x01)

	if err := engine.Deposit(caller, caller, big.NewInt(100)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := engine.Lock(caller, big.NewInt(60)); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if err := engine.Withdraw(caller, big.NewInt(50)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := engine.Withdraw(caller, big.NewInt(40)); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	available, err := engine.Available(caller)
	if err != nil {
		t.Fatalf("available failed: %v", err)
	}
	if available.Sign() != 0 {
		t.Fatalf("expected zero available, got %s", available)
	}
}

func TestWithdrawRejectedTransferLeavesBalance(t *testing.T) {
	engine, state, mover := newTestEngine()
	caller := testAddr(0x01)

	if err := engine.Deposit(caller, caller, big.NewInt(100)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	mover.failNext = true
	if err := engine.Withdraw(caller, big.NewInt(50)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if bal := state.accounts[caller].Balance; bal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected balance unchanged at 100, got %s", bal)
	}
}

func TestLockUnlockMovesBetweenPools(t *testing.T) {
	engine, state, _ := newTestEngine()
	caller := testAddr(0x01)

	if err := engine.Deposit(caller, caller, big.NewInt(100)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := engine.Lock(caller, big.NewInt(100)); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if err := engine.Lock(caller, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := engine.Unlock(caller, big.NewInt(40)); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	acct := state.accounts[caller]
	if acct.LockedBalance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected locked 60, got %s", acct.LockedBalance)
	}
	if acct.Available().Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected available 40, got %s", acct.Available())
	}
}

func TestUnlockUnderflowIsInvariantViolation(t *testing.T) {
	engine, _, _ := newTestEngine()
	caller := testAddr(0x01)

	if err := engine.Unlock(caller, big.NewInt(1)); !errors.Is(err, ErrArithmeticUnderflow) {
		t.Fatalf("expected ErrArithmeticUnderflow, got %v", err)
	}
}

func TestSettleDebitConsumesLockedFunds(t *testing.T) {
	engine, state, _ := newTestEngine()
	caller := testAddr(0x01)

	if err := engine.Deposit(caller, caller, big.NewInt(100)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := engine.Lock(caller, big.NewInt(70)); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if err := engine.SettleDebit(caller, big.NewInt(80)); !errors.Is(err, ErrArithmeticUnderflow) {
		t.Fatalf("expected ErrArithmeticUnderflow, got %v", err)
	}
	if err := engine.SettleDebit(caller, big.NewInt(70)); err != nil {
		t.Fatalf("settle debit failed: %v", err)
	}
	acct := state.accounts[caller]
	if acct.Balance.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("expected balance 30, got %s", acct.Balance)
	}
	if acct.LockedBalance.Sign() != 0 {
		t.Fatalf("expected zero locked, got %s", acct.LockedBalance)
	}
}

func TestDepositWithdrawEmitEvents(t *testing.T) {
	engine, _, _ := newTestEngine()
	emitter := &captureEmitter{}
	engine.SetEmitter(emitter)
	caller := testAddr(0x01)

	if err := engine.Deposit(caller, caller, big.NewInt(10)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := engine.Withdraw(caller, big.NewInt(4)); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if len(emitter.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(emitter.events))
	}
	if emitter.events[0].EventType() != EventTypeDeposited {
		t.Fatalf("expected %s, got %s", EventTypeDeposited, emitter.events[0].EventType())
	}
	if emitter.events[1].EventType() != EventTypeWithdrawn {
		t.Fatalf("expected %s, got %s", EventTypeWithdrawn, emitter.events[1].EventType())
	}
}
