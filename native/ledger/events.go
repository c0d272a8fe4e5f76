package ledger

import (
	"math/big"

	"notehouse/core/types"
	"notehouse/crypto"
)

const (
	EventTypeDeposited = "ledger.deposited"
	EventTypeWithdrawn = "ledger.withdrawn"
)

type ledgerEvent struct {
	evt *types.Event
}

func (e ledgerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ledgerEvent) Event() *types.Event { return e.evt }

func newDepositedEvent(caller, target [20]byte, asset string, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeDeposited,
		Attributes: map[string]string{
			"caller": crypto.MustNewAddress(crypto.NotePrefix, caller).String(),
			"target": crypto.MustNewAddress(crypto.NotePrefix, target).String(),
			"asset":  asset,
			"amount": formatAmount(amount),
		},
	}
}

func newWithdrawnEvent(caller [20]byte, asset string, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeWithdrawn,
		Attributes: map[string]string{
			"caller": crypto.MustNewAddress(crypto.NotePrefix, caller).String(),
			"asset":  asset,
			"amount": formatAmount(amount),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
