package note

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"notehouse/native/auction"
	"notehouse/native/token"
)

var (
	// ErrUnknownNote is returned for note ids that were never proposed.
	ErrUnknownNote = errors.New("note: unknown note")
	// ErrAlreadyPurchased is returned when a note is purchased twice.
	ErrAlreadyPurchased = errors.New("note: already purchased")
)

// Note is a minted settlement instrument: the winning lender's claim against
// the vaulted collateral and the borrower.
type Note struct {
	ID        auction.NoteID
	Maturity  uint64
	FaceValue *big.Int
	Price     *big.Int
	Vault     [20]byte
	Asset     string
	Borrower  [20]byte
	Purchased bool
}

// Registry is an in-process note registry: it mints uuid-identified notes from
// proposals and draws the previously approved purchase price through the
// asset book when a note is purchased. It stands in for the external
// instrument registry in tests and single-node deployments.
type Registry struct {
	mu         sync.Mutex
	book       *token.Book
	collector  [20]byte
	payer      [20]byte
	feeEnabled bool
	feeBps     uint64
	notes      map[auction.NoteID]*Note
}

// NewRegistry creates a registry drawing purchases from the payer account (the
// auction house custody) into the collector account.
func NewRegistry(book *token.Book, collector, payer [20]byte, feeEnabled bool, feeBps uint64) *Registry {
	return &Registry{
		book:       book,
		collector:  collector,
		payer:      payer,
		feeEnabled: feeEnabled,
		feeBps:     feeBps,
		notes:      make(map[auction.NoteID]*Note),
	}
}

// FeeEnabled reports whether purchases carry the fee surcharge.
func (r *Registry) FeeEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.feeEnabled
}

// SetFeeEnabled toggles the fee flag. Exposed so operators (and tests) can
// exercise the documented drift between bid-time and claim-time fee readings.
func (r *Registry) SetFeeEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeEnabled = enabled
}

// Collector returns the account that draws the purchase price.
func (r *Registry) Collector() [20]byte { return r.collector }

// Propose mints a new note from the supplied terms and returns its id.
func (r *Registry) Propose(p auction.NoteProposal) (auction.NoteID, error) {
	if p.FaceValue == nil || p.FaceValue.Sign() <= 0 {
		return "", fmt.Errorf("note: face value must be positive")
	}
	if p.Price == nil || p.Price.Sign() <= 0 {
		return "", fmt.Errorf("note: price must be positive")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := auction.NoteID(uuid.NewString())
	r.notes[id] = &Note{
		ID:        id,
		Maturity:  p.Maturity,
		FaceValue: new(big.Int).Set(p.FaceValue),
		Price:     new(big.Int).Set(p.Price),
		Vault:     p.Vault,
		Asset:     p.PaymentAsset,
		Borrower:  p.Borrower,
	}
	return id, nil
}

// Get returns a copy of the stored note.
func (r *Registry) Get(id auction.NoteID) (*Note, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return nil, false
	}
	clone := *n
	clone.FaceValue = new(big.Int).Set(n.FaceValue)
	clone.Price = new(big.Int).Set(n.Price)
	return &clone, true
}

// Purchase draws the previously authorised purchase price from the payer into
// the collector and marks the note as bought. The face price flows straight
// back to the payer custody, where it backs the borrower's ledger credit; the
// collector retains only the fee portion.
func (r *Registry) Purchase(id auction.NoteID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return ErrUnknownNote
	}
	if n.Purchased {
		return ErrAlreadyPurchased
	}
	price := r.purchasePrice(n.Price)
	if err := r.book.Draw(n.Asset, r.payer, r.collector, r.collector, price); err != nil {
		return err
	}
	if err := r.book.TransferFrom(n.Asset, r.collector, r.payer, n.Price); err != nil {
		return err
	}
	n.Purchased = true
	return nil
}

func (r *Registry) purchasePrice(price *big.Int) *big.Int {
	if !r.feeEnabled || r.feeBps == 0 {
		return new(big.Int).Set(price)
	}
	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(r.feeBps))
	fee.Div(fee, big.NewInt(10_000))
	return fee.Add(fee, price)
}
