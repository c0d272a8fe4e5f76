package auction

import (
	"math/big"
	"strconv"

	"notehouse/core/types"
	"notehouse/crypto"
)

const (
	EventTypeAuctionCreated  = "auction.created"
	EventTypeBidPlaced       = "auction.bid"
	EventTypeAuctionCanceled = "auction.canceled"
	EventTypeAuctionClaimed  = "auction.claimed"

	collateralKindFungible    = "fungible"
	collateralKindNonFungible = "nonfungible"
)

type auctionEvent struct {
	evt *types.Event
}

func (e auctionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e auctionEvent) Event() *types.Event { return e.evt }

func newCreatedEvent(a *Auction, creator [20]byte, kind string) *types.Event {
	attrs := baseAttrs(a, creator)
	attrs["collateral"] = kind
	attrs["endTime"] = strconv.FormatInt(a.EndTime, 10)
	attrs["maxFaceValue"] = formatAmount(a.LowestBid)
	attrs["price"] = formatAmount(a.Price)
	return &types.Event{Type: EventTypeAuctionCreated, Attributes: attrs}
}

func newBidEvent(a *Auction, bidder [20]byte, amount *big.Int) *types.Event {
	attrs := baseAttrs(a, bidder)
	attrs["amount"] = formatAmount(amount)
	return &types.Event{Type: EventTypeBidPlaced, Attributes: attrs}
}

func newCanceledEvent(a *Auction, caller [20]byte) *types.Event {
	return &types.Event{Type: EventTypeAuctionCanceled, Attributes: baseAttrs(a, caller)}
}

func newClaimedEvent(a *Auction, claimer [20]byte, noteID NoteID) *types.Event {
	attrs := baseAttrs(a, claimer)
	attrs["noteId"] = string(noteID)
	attrs["faceValue"] = formatAmount(a.LowestBid)
	return &types.Event{Type: EventTypeAuctionClaimed, Attributes: attrs}
}

func baseAttrs(a *Auction, actor [20]byte) map[string]string {
	attrs := map[string]string{
		"actor": crypto.MustNewAddress(crypto.NotePrefix, actor).String(),
	}
	if a != nil {
		attrs["auctionId"] = strconv.FormatUint(a.ID, 10)
	}
	return attrs
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
