package auction

import (
	"errors"
	"fmt"
	"math/big"
)

// Protocol errors surfaced by the registry, bidding and settlement engines.
var (
	ErrInvalidAuctionID     = errors.New("auction: invalid auction id")
	ErrAuctionNotOpen       = errors.New("auction: auction not open")
	ErrAuctionNotCancelable = errors.New("auction: auction not cancelable")
	ErrAuctionNotClaimable  = errors.New("auction: auction not claimable")
	ErrBidderExists         = errors.New("auction: bidder exists")
	ErrBidTooSmall          = errors.New("auction: bid below minimum increment")
	ErrBidNotLowEnough      = errors.New("auction: bid not low enough")
	ErrInvalidClaimer       = errors.New("auction: caller is not the winning bidder")
	ErrTransferFailed       = errors.New("auction: collateral transfer failed")
	ErrInvalidAmount        = errors.New("auction: amount must be positive")

	errNilState = errors.New("auction: state not configured")
)

// Status represents the lifecycle of a single auction. Only Open, Canceled and
// Claimed are ever persisted directly; Expired and Claimable are derived from
// the deadline and materialised before any state-changing operation acts on
// the record.
type Status uint8

const (
	StatusOpen Status = iota
	StatusExpired
	StatusClaimable
	StatusCanceled
	StatusClaimed
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusExpired, StatusClaimable, StatusCanceled, StatusClaimed:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusExpired:
		return "expired"
	case StatusClaimable:
		return "claimable"
	case StatusCanceled:
		return "canceled"
	case StatusClaimed:
		return "claimed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Auction holds the terms and mutable state of one reverse-bid listing.
// Records are archived in place, never destroyed. LowestBid starts at the
// maximum face value and only ever decreases; a zero LowestBidder means no bid
// has been placed yet.
type Auction struct {
	ID              uint64   `json:"id"`
	EndTime         int64    `json:"endTime"`
	LowestBid       *big.Int `json:"lowestBid"`
	Maturity        uint64   `json:"maturity"`
	Price           *big.Int `json:"price"`
	MinBidIncrement *big.Int `json:"minBidIncrement"`
	Vault           [20]byte `json:"vault"`
	LowestBidder    [20]byte `json:"lowestBidder"`
	Borrower        [20]byte `json:"borrower"`
	Status          Status   `json:"status"`
	CreatedAt       int64    `json:"createdAt"`
}

// HasBidder reports whether any bid has been recorded on the auction.
func (a *Auction) HasBidder() bool {
	return a != nil && a.LowestBidder != ([20]byte{})
}

// Clone returns a deep copy of the auction so callers can safely mutate the
// copy without affecting the stored instance.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	if a.LowestBid != nil {
		clone.LowestBid = new(big.Int).Set(a.LowestBid)
	} else {
		clone.LowestBid = big.NewInt(0)
	}
	if a.Price != nil {
		clone.Price = new(big.Int).Set(a.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	if a.MinBidIncrement != nil {
		clone.MinBidIncrement = new(big.Int).Set(a.MinBidIncrement)
	} else {
		clone.MinBidIncrement = big.NewInt(0)
	}
	return &clone
}

// SanitizeAuction validates and normalises an auction record, returning a
// cloned instance with non-nil amount fields. The original value is not
// mutated.
func SanitizeAuction(a *Auction) (*Auction, error) {
	if a == nil {
		return nil, fmt.Errorf("nil auction")
	}
	clone := a.Clone()
	if clone.LowestBid.Sign() < 0 {
		return nil, fmt.Errorf("auction lowest bid must be non-negative")
	}
	if clone.Price.Sign() < 0 {
		return nil, fmt.Errorf("auction price must be non-negative")
	}
	if clone.MinBidIncrement.Sign() < 0 {
		return nil, fmt.Errorf("auction min bid increment must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid auction status: %d", clone.Status)
	}
	return clone, nil
}

// DeriveStatus computes the effective lifecycle state of an auction at the
// given time without mutating anything. A stored Open record whose deadline
// has passed derives to Claimable when a bid exists and Expired otherwise; all
// other stored states are returned as-is. The function is idempotent.
func DeriveStatus(a *Auction, now int64) Status {
	if a == nil {
		return StatusOpen
	}
	if a.Status == StatusOpen && now >= a.EndTime {
		if a.HasBidder() {
			return StatusClaimable
		}
		return StatusExpired
	}
	return a.Status
}
