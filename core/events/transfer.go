package events

import (
	"strconv"

	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
)

const (
	// TypeLamportTransfer is emitted for system program lamport movements.
	TypeLamportTransfer = "system.transfer"
	// TypeTokenTransfer is emitted for token account movements.
	TypeTokenTransfer = "token.transfer"
)

type LamportTransfer struct {
	From   crypto.Address
	To     crypto.Address
	Amount uint64
}

func (LamportTransfer) EventType() string { return TypeLamportTransfer }

func (e LamportTransfer) Event() *types.Event {
	return &types.Event{Type: TypeLamportTransfer, Attributes: map[string]string{
		"from":   e.From.String(),
		"to":     e.To.String(),
		"amount": strconv.FormatUint(e.Amount, 10),
	}}
}

type TokenTransfer struct {
	Mint   crypto.Address
	From   crypto.Address
	To     crypto.Address
	Amount uint64
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return &types.Event{Type: TypeTokenTransfer, Attributes: map[string]string{
		"mint":   e.Mint.String(),
		"from":   e.From.String(),
		"to":     e.To.String(),
		"amount": strconv.FormatUint(e.Amount, 10),
	}}
}
