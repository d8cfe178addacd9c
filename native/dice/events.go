package dice

import (
	"encoding/hex"
	"strconv"

	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
)

const (
	EventTypeVaultInitialized = "dice.vault_initialized"
	EventTypeVaultWithdrawn   = "dice.vault_withdrawn"
	EventTypeBetPlaced        = "dice.bet_placed"
	EventTypeBetResolved      = "dice.bet_resolved"
	EventTypeBetRefunded      = "dice.bet_refunded"
)

type diceEvent struct {
	evt *types.Event
}

func (e diceEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e diceEvent) Event() *types.Event { return e.evt }

// NewVaultInitializedEvent returns the payload for a freshly funded vault.
func NewVaultInitializedEvent(vault crypto.Address, v *Vault, funded uint64) *types.Event {
	return &types.Event{Type: EventTypeVaultInitialized, Attributes: map[string]string{
		"vault":  vault.String(),
		"house":  v.House.String(),
		"amount": strconv.FormatUint(funded, 10),
	}}
}

// NewVaultWithdrawnEvent returns the payload for a house withdrawal.
func NewVaultWithdrawnEvent(vault crypto.Address, v *Vault, amount uint64) *types.Event {
	return &types.Event{Type: EventTypeVaultWithdrawn, Attributes: map[string]string{
		"vault":    vault.String(),
		"house":    v.House.String(),
		"amount":   strconv.FormatUint(amount, 10),
		"reserved": strconv.FormatUint(v.Reserved, 10),
	}}
}

// NewBetPlacedEvent returns the payload for a newly escrowed bet.
func NewBetPlacedEvent(bet crypto.Address, b *Bet) *types.Event {
	return newBetEvent(EventTypeBetPlaced, bet, b)
}

// NewBetRefundedEvent returns the payload for a bet refunded after timeout.
func NewBetRefundedEvent(bet crypto.Address, b *Bet) *types.Event {
	return newBetEvent(EventTypeBetRefunded, bet, b)
}

// NewBetResolvedEvent returns the payload for a resolved bet. payout is zero
// when the house won.
func NewBetResolvedEvent(bet crypto.Address, b *Bet, outcome uint8, payout uint64) *types.Event {
	evt := newBetEvent(EventTypeBetResolved, bet, b)
	evt.Attributes["outcome"] = strconv.FormatUint(uint64(outcome), 10)
	evt.Attributes["won"] = strconv.FormatBool(payout > 0)
	evt.Attributes["payout"] = strconv.FormatUint(payout, 10)
	return evt
}

func newBetEvent(typ string, bet crypto.Address, b *Bet) *types.Event {
	return &types.Event{Type: typ, Attributes: map[string]string{
		"bet":       bet.String(),
		"player":    b.Player.String(),
		"house":     b.House.String(),
		"seed":      hex.EncodeToString(b.Seed[:]),
		"roll":      strconv.FormatUint(uint64(b.Roll), 10),
		"amount":    strconv.FormatUint(b.Amount, 10),
		"slot":      strconv.FormatUint(b.Slot, 10),
		"createdAt": strconv.FormatInt(b.CreatedAt, 10),
	}}
}
