package auction

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"notehouse/core/events"
	"notehouse/core/types"
	"notehouse/native/ledger"
	"notehouse/observability/metrics"
)

// DefaultFeeBps is the purchase fee charged on top of the price when the note
// registry reports fees enabled, in basis points.
const DefaultFeeBps = 30

var (
	hundred    = big.NewInt(100)
	ninetyNine = big.NewInt(99)
	bpsDenom   = big.NewInt(10_000)
)

// Engine enforces the descending-bid protocol and settles winning bids. It
// coordinates the registry, the balance ledger and the external note registry
// so the three stay consistent under arbitrary call ordering.
type Engine struct {
	mu       sync.Mutex
	registry *Registry
	ledger   Ledger
	notes    NoteRegistry
	mover    AssetMover
	emitter  events.Emitter
	asset    string
	custody  [20]byte
	feeBps   uint64
}

// NewEngine constructs a bidding/settlement engine over the given registry,
// settling in the supplied asset held under the custody account.
func NewEngine(registry *Registry, asset string, custody [20]byte) *Engine {
	return &Engine{
		registry: registry,
		asset:    asset,
		custody:  custody,
		feeBps:   DefaultFeeBps,
		emitter:  events.NoopEmitter{},
	}
}

// SetLedger wires the engine to the balance ledger.
func (e *Engine) SetLedger(l Ledger) { e.ledger = l }

// SetNoteRegistry wires the engine to the external note registry.
func (e *Engine) SetNoteRegistry(n NoteRegistry) { e.notes = n }

// SetMover wires the engine to the asset transfer service used for the
// settlement authorization step.
func (e *Engine) SetMover(m AssetMover) { e.mover = m }

// SetFeeBps overrides the purchase fee rate. Zero disables the surcharge even
// when the registry reports fees enabled.
func (e *Engine) SetFeeBps(bps uint64) { e.feeBps = bps }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(auctionEvent{evt: evt})
}

func (e *Engine) ready() error {
	if e == nil || e.registry == nil {
		return errNilState
	}
	if e.ledger == nil {
		return fmt.Errorf("auction: ledger not configured")
	}
	if e.notes == nil {
		return fmt.Errorf("auction: note registry not configured")
	}
	return nil
}

// SettlementPrice returns the amount a winning bidder actually pays for the
// auction price: the price itself, plus the fee surcharge when the note
// registry currently reports fees enabled. The flag is read fresh on every
// call, at bid time and again at claim time.
func (e *Engine) SettlementPrice(price *big.Int) *big.Int {
	if price == nil {
		return big.NewInt(0)
	}
	if e == nil || e.notes == nil || !e.notes.FeeEnabled() || e.feeBps == 0 {
		return new(big.Int).Set(price)
	}
	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(e.feeBps))
	fee.Div(fee, bpsDenom)
	return fee.Add(fee, price)
}

// Bid places a descending bid on an open auction. The new amount must be at
// least the minimum increment and at most 99% of the current lowest bid. The
// settlement price moves atomically from the previous bidder's locked balance
// to the caller's: validation happens before any ledger effect, so a bid
// either fully applies or leaves no trace.
func (e *Engine) Bid(caller [20]byte, auctionID uint64, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.registry.MaterializeStatus(auctionID)
	if err != nil {
		return err
	}
	if a.Status != StatusOpen {
		return ErrAuctionNotOpen
	}
	if amount.Cmp(a.MinBidIncrement) < 0 {
		return ErrBidTooSmall
	}
	// lowestBid * 99 >= amount * 100, i.e. the new bid undercuts by >= 1%.
	ceiling := new(big.Int).Mul(a.LowestBid, ninetyNine)
	scaled := new(big.Int).Mul(amount, hundred)
	if ceiling.Cmp(scaled) < 0 {
		return ErrBidNotLowEnough
	}
	purchasePrice := e.SettlementPrice(a.Price)
	rebid := a.HasBidder() && a.LowestBidder == caller
	if !rebid {
		available, err := e.ledger.Available(caller)
		if err != nil {
			return err
		}
		if available.Cmp(purchasePrice) < 0 {
			return ledger.ErrInsufficientBalance
		}
	}
	if a.HasBidder() {
		if err := e.ledger.Unlock(a.LowestBidder, purchasePrice); err != nil {
			return err
		}
	}
	if err := e.ledger.Lock(caller, purchasePrice); err != nil {
		return err
	}
	a.LowestBid = new(big.Int).Set(amount)
	a.LowestBidder = caller
	if err := e.registry.update(a); err != nil {
		return err
	}
	metrics.House().BidPlaced()
	e.emit(newBidEvent(a, caller, amount))
	return nil
}

// Cancel archives an auction that never attracted a bid, handing custody of
// the vault back to the borrower. Allowed while the auction is still open and
// after it expired without a bidder.
func (e *Engine) Cancel(caller [20]byte, auctionID uint64) error {
	if e == nil || e.registry == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.registry.MaterializeStatus(auctionID)
	if err != nil {
		return err
	}
	if a.Status != StatusOpen && a.Status != StatusExpired {
		return ErrAuctionNotCancelable
	}
	if a.HasBidder() {
		return ErrBidderExists
	}
	if e.registry.factory == nil {
		return fmt.Errorf("auction: vault factory not configured")
	}
	if err := e.registry.factory.SetExecutor(a.Vault, a.Borrower); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	a.Status = StatusCanceled
	if err := e.registry.update(a); err != nil {
		return err
	}
	metrics.House().AuctionCanceled()
	e.emit(newCanceledEvent(a, caller))
	return nil
}

// IsInvariantViolation reports whether the error marks a broken internal
// invariant rather than a rejected operation.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ledger.ErrArithmeticUnderflow)
}
