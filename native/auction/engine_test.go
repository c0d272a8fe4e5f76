package auction

import (
	"fmt"
	"math/big"
	"testing"

	"notehouse/core/events"
	"notehouse/core/types"
	"notehouse/native/ledger"
)

const testAsset = "NUSD"

type mockState struct {
	auctions map[uint64]*Auction
	seq      uint64
}

func newMockState() *mockState {
	return &mockState{auctions: make(map[uint64]*Auction)}
}

func (m *mockState) AuctionGet(id uint64) (*Auction, bool, error) {
	a, ok := m.auctions[id]
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

func (m *mockState) AuctionPut(a *Auction) error {
	sanitized, err := SanitizeAuction(a)
	if err != nil {
		return err
	}
	m.auctions[sanitized.ID] = sanitized
	return nil
}

func (m *mockState) AuctionAllocateID() (uint64, error) {
	id := m.seq
	m.seq++
	return id, nil
}

type mockFactory struct {
	counter    byte
	executors  map[[20]byte][20]byte
	failCreate bool
}

func newMockFactory() *mockFactory {
	return &mockFactory{executors: make(map[[20]byte][20]byte)}
}

func (m *mockFactory) CreateVault() ([20]byte, error) {
	if m.failCreate {
		return [20]byte{}, fmt.Errorf("factory down")
	}
	m.counter++
	var addr [20]byte
	addr[0] = 0xAB
	addr[19] = m.counter
	m.executors[addr] = [20]byte{}
	return addr, nil
}

func (m *mockFactory) SetExecutor(vault [20]byte, executor [20]byte) error {
	if _, ok := m.executors[vault]; !ok {
		return fmt.Errorf("unknown vault")
	}
	m.executors[vault] = executor
	return nil
}

type itemMove struct {
	from   [20]byte
	to     [20]byte
	itemID uint64
}

type mockMover struct {
	failTransferFrom bool
	failItemIndex    int // 1-based call index to fail on; 0 = never
	failApprove      bool
	itemCallCount    int
	itemCalls        []itemMove
	approvals        []*big.Int
	transfers        int
}

func (m *mockMover) TransferFrom(asset string, from, to [20]byte, amount *big.Int) error {
	if m.failTransferFrom {
		return fmt.Errorf("rejected")
	}
	m.transfers++
	return nil
}

func (m *mockMover) TransferItem(asset string, from, to [20]byte, itemID uint64) error {
	m.itemCallCount++
	if m.failItemIndex > 0 && m.itemCallCount == m.failItemIndex {
		return fmt.Errorf("rejected item %d", itemID)
	}
	m.itemCalls = append(m.itemCalls, itemMove{from: from, to: to, itemID: itemID})
	return nil
}

func (m *mockMover) Approve(asset string, owner, spender [20]byte, amount *big.Int) error {
	if m.failApprove {
		return fmt.Errorf("approve rejected")
	}
	m.approvals = append(m.approvals, new(big.Int).Set(amount))
	return nil
}

type mockNotes struct {
	feeEnabled  bool
	collector   [20]byte
	proposals   []NoteProposal
	purchased   []NoteID
	failPropose bool
	failBuy     bool
}

func (m *mockNotes) FeeEnabled() bool    { return m.feeEnabled }
func (m *mockNotes) Collector() [20]byte { return m.collector }

func (m *mockNotes) Propose(p NoteProposal) (NoteID, error) {
	if m.failPropose {
		return "", fmt.Errorf("registry down")
	}
	m.proposals = append(m.proposals, p)
	return NoteID(fmt.Sprintf("note-%d", len(m.proposals))), nil
}

func (m *mockNotes) Purchase(id NoteID) error {
	if m.failBuy {
		return fmt.Errorf("purchase rejected")
	}
	m.purchased = append(m.purchased, id)
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

type fixture struct {
	state    *mockState
	factory  *mockFactory
	mover    *mockMover
	notes    *mockNotes
	ledger   *ledger.Engine
	registry *Registry
	engine   *Engine
	emitter  *captureEmitter
	now      int64
}

type okLedgerMover struct{}

func (okLedgerMover) TransferFrom(asset string, from, to [20]byte, amount *big.Int) error { return nil }
func (okLedgerMover) Transfer(asset string, to [20]byte, amount *big.Int) error           { return nil }

type ledgerState struct {
	accounts map[[20]byte]*types.Account
}

func newLedgerState() *ledgerState {
	return &ledgerState{accounts: make(map[[20]byte]*types.Account)}
}

func (s *ledgerState) GetAccount(addr [20]byte) (*types.Account, error) {
	acct, ok := s.accounts[addr]
	if !ok {
		return types.EnsureAccount(nil), nil
	}
	return acct.Clone(), nil
}

func (s *ledgerState) PutAccount(addr [20]byte, account *types.Account) error {
	s.accounts[addr] = account.Clone()
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state:   newMockState(),
		factory: newMockFactory(),
		mover:   &mockMover{},
		notes:   &mockNotes{collector: testAddr(0xCC)},
		emitter: &captureEmitter{},
		now:     10,
	}
	f.ledger = ledger.NewEngine(testAsset, testAddr(0xEE))
	f.ledger.SetState(newLedgerState())
	f.ledger.SetMover(okLedgerMover{})

	f.registry = NewRegistry()
	f.registry.SetState(f.state)
	f.registry.SetVaultFactory(f.factory)
	f.registry.SetMover(f.mover)
	f.registry.SetEmitter(f.emitter)
	f.registry.SetNowFunc(func() int64 { return f.now })

	f.engine = NewEngine(f.registry, testAsset, testAddr(0xEE))
	f.engine.SetLedger(f.ledger)
	f.engine.SetNoteRegistry(f.notes)
	f.engine.SetMover(f.mover)
	f.engine.SetEmitter(f.emitter)
	return f
}

func (f *fixture) fund(t *testing.T, addr [20]byte, amount int64) {
	t.Helper()
	if err := f.ledger.Deposit(addr, addr, big.NewInt(amount)); err != nil {
		t.Fatalf("fund %x: %v", addr[0], err)
	}
}

func defaultTerms() Terms {
	return Terms{
		Borrower:        testAddr(0xB0),
		EndTime:         100,
		MaxFaceValue:    big.NewInt(1000),
		MinBidIncrement: big.NewInt(10),
		Maturity:        12,
		Price:           big.NewInt(200),
	}
}

func (f *fixture) createAuction(t *testing.T) *Auction {
	t.Helper()
	a, err := f.registry.CreateFungible(testAddr(0xB0), "GOLD", big.NewInt(50), defaultTerms())
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	return a
}

func (f *fixture) locked(t *testing.T, addr [20]byte) *big.Int {
	t.Helper()
	locked, err := f.ledger.Locked(addr)
	if err != nil {
		t.Fatalf("locked %x: %v", addr[0], err)
	}
	return locked
}

func (f *fixture) available(t *testing.T, addr [20]byte) *big.Int {
	t.Helper()
	available, err := f.ledger.Available(addr)
	if err != nil {
		t.Fatalf("available %x: %v", addr[0], err)
	}
	return available
}
