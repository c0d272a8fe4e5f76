package auction

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"notehouse/core/events"
	"notehouse/core/types"
	"notehouse/observability/metrics"
)

// State is the persistence surface owned by the registry. AuctionGet reports
// ok=false for ids that were never allocated; AuctionAllocateID returns the
// next sequential id (starting at 0) and persists the advanced counter.
type State interface {
	AuctionGet(id uint64) (*Auction, bool, error)
	AuctionPut(a *Auction) error
	AuctionAllocateID() (uint64, error)
}

// Registry owns the auction collection: it assigns identifiers, escrows
// collateral into fresh vaults and materialises time-derived status before any
// engine acts on a record.
type Registry struct {
	mu      sync.Mutex
	state   State
	factory VaultFactory
	mover   AssetMover
	emitter events.Emitter
	nowFn   func() int64
}

// NewRegistry constructs an auction registry with a no-op emitter and the
// wall clock as time source.
func NewRegistry() *Registry {
	return &Registry{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the registry to the persistence layer.
func (r *Registry) SetState(state State) { r.state = state }

// SetVaultFactory wires the registry to the external vault factory.
func (r *Registry) SetVaultFactory(factory VaultFactory) { r.factory = factory }

// SetMover wires the registry to the external asset transfer service.
func (r *Registry) SetMover(mover AssetMover) { r.mover = mover }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

func (r *Registry) now() int64 {
	if r == nil || r.nowFn == nil {
		return time.Now().Unix()
	}
	return r.nowFn()
}

func (r *Registry) emit(evt *types.Event) {
	if r == nil || r.emitter == nil || evt == nil {
		return
	}
	r.emitter.Emit(auctionEvent{evt: evt})
}

func (r *Registry) ready() error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if r.factory == nil {
		return fmt.Errorf("auction: vault factory not configured")
	}
	if r.mover == nil {
		return fmt.Errorf("auction: asset mover not configured")
	}
	return nil
}

// Terms bundles the caller-supplied parameters of a new auction.
type Terms struct {
	Borrower        [20]byte
	EndTime         int64
	MaxFaceValue    *big.Int
	MinBidIncrement *big.Int
	Maturity        uint64
	Price           *big.Int
}

func (t Terms) validate() error {
	if t.MaxFaceValue == nil || t.MaxFaceValue.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if t.Price == nil || t.Price.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if t.MinBidIncrement == nil || t.MinBidIncrement.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// CreateFungible opens an auction collateralised by an amount of a fungible
// asset. The collateral is escrowed into a freshly created vault before the
// record is persisted; a rejected transfer aborts the whole operation.
func (r *Registry) CreateFungible(caller [20]byte, collateralAsset string, collateralAmount *big.Int, terms Terms) (*Auction, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if collateralAmount == nil || collateralAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := terms.validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	vault, err := r.factory.CreateVault()
	if err != nil {
		return nil, err
	}
	if err := r.mover.TransferFrom(collateralAsset, caller, vault, collateralAmount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	a, err := r.store(vault, terms)
	if err != nil {
		return nil, err
	}
	metrics.House().AuctionCreated("fungible")
	r.emit(newCreatedEvent(a, caller, collateralKindFungible))
	return a.Clone(), nil
}

// CreateNonFungible opens an auction collateralised by a list of distinct
// token identifiers, transferred individually in the supplied order. When one
// transfer is rejected, the items already escrowed are returned to the caller
// so the operation leaves no partial custody behind.
func (r *Registry) CreateNonFungible(caller [20]byte, collateralAsset string, itemIDs []uint64, terms Terms) (*Auction, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if len(itemIDs) == 0 {
		return nil, ErrInvalidAmount
	}
	if err := terms.validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	vault, err := r.factory.CreateVault()
	if err != nil {
		return nil, err
	}
	for i, item := range itemIDs {
		if err := r.mover.TransferItem(collateralAsset, caller, vault, item); err != nil {
			// Return already-escrowed items; the enclosing operation is
			// all-or-nothing.
			for j := i - 1; j >= 0; j-- {
				r.mover.TransferItem(collateralAsset, vault, caller, itemIDs[j])
			}
			return nil, fmt.Errorf("%w: item %d: %v", ErrTransferFailed, item, err)
		}
	}
	a, err := r.store(vault, terms)
	if err != nil {
		return nil, err
	}
	metrics.House().AuctionCreated("nonfungible")
	r.emit(newCreatedEvent(a, caller, collateralKindNonFungible))
	return a.Clone(), nil
}

func (r *Registry) store(vault [20]byte, terms Terms) (*Auction, error) {
	id, err := r.state.AuctionAllocateID()
	if err != nil {
		return nil, err
	}
	a := &Auction{
		ID:              id,
		EndTime:         terms.EndTime,
		LowestBid:       new(big.Int).Set(terms.MaxFaceValue),
		Maturity:        terms.Maturity,
		Price:           new(big.Int).Set(terms.Price),
		MinBidIncrement: new(big.Int).Set(terms.MinBidIncrement),
		Vault:           vault,
		Borrower:        terms.Borrower,
		Status:          StatusOpen,
		CreatedAt:       r.now(),
	}
	if err := r.state.AuctionPut(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns a copy of the stored auction record. The status field reflects
// what was last materialised, not the current time; use MaterializeStatus
// before acting on it.
func (r *Registry) Get(id uint64) (*Auction, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(id)
}

func (r *Registry) load(id uint64) (*Auction, error) {
	a, ok, err := r.state.AuctionGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidAuctionID
	}
	return a, nil
}

// Snapshot returns the stored auction with its status derived against the
// current clock, without persisting anything.
func (r *Registry) Snapshot(id uint64) (*Auction, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.load(id)
	if err != nil {
		return nil, err
	}
	a.Status = DeriveStatus(a, r.now())
	return a, nil
}

// MaterializeStatus derives the auction's status against the current clock,
// persists it when it changed and returns the now-consistent record. Every
// state-changing operation goes through this first so a stale Open record is
// never acted on after its deadline.
func (r *Registry) MaterializeStatus(id uint64) (*Auction, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.materialize(id)
}

func (r *Registry) materialize(id uint64) (*Auction, error) {
	a, err := r.load(id)
	if err != nil {
		return nil, err
	}
	derived := DeriveStatus(a, r.now())
	if derived != a.Status {
		a.Status = derived
		if err := r.state.AuctionPut(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// update persists a mutated auction record on behalf of the bidding and
// settlement engines.
func (r *Registry) update(a *Auction) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.AuctionPut(a)
}
