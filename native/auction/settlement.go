package auction

import (
	"fmt"

	"notehouse/observability/metrics"
)

// Claim settles a claimable auction in favour of its winning bidder. The note
// registry mints the note, the registry's collector is authorised to draw
// exactly the settlement price, and the ledger reconciles: the claimer's
// locked funds are consumed and the borrower is credited with the face price.
// Any collaborator rejection aborts the operation before ledger or status
// effects become observable.
func (e *Engine) Claim(caller [20]byte, auctionID uint64) (NoteID, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if e.mover == nil {
		return "", fmt.Errorf("auction: asset mover not configured")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.registry.MaterializeStatus(auctionID)
	if err != nil {
		return "", err
	}
	if a.Status != StatusClaimable {
		return "", ErrAuctionNotClaimable
	}
	if !a.HasBidder() || a.LowestBidder != caller {
		return "", ErrInvalidClaimer
	}
	noteID, err := e.notes.Propose(NoteProposal{
		Maturity:     a.Maturity,
		FaceValue:    a.LowestBid,
		Price:        a.Price,
		Vault:        a.Vault,
		PaymentAsset: e.asset,
		Borrower:     a.Borrower,
	})
	if err != nil {
		return "", fmt.Errorf("auction: propose note: %w", err)
	}
	purchasePrice := e.SettlementPrice(a.Price)
	if err := e.mover.Approve(e.asset, e.custody, e.notes.Collector(), purchasePrice); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.notes.Purchase(noteID); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	// The claimer paid the settlement price out of funds locked at bid time;
	// the borrower receives the face price, any fee being the difference
	// retained by the registry.
	if err := e.ledger.SettleDebit(caller, purchasePrice); err != nil {
		return "", err
	}
	if err := e.ledger.Credit(a.Borrower, a.Price); err != nil {
		return "", err
	}
	a.Status = StatusClaimed
	if err := e.registry.update(a); err != nil {
		return "", err
	}
	metrics.House().AuctionClaimed()
	e.emit(newClaimedEvent(a, caller, noteID))
	return noteID, nil
}
