package events

import (
	"strconv"
	"strings"

	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
)

const (
	// TypeTokenSupply is emitted whenever a token supply changes.
	TypeTokenSupply = "token.supply"

	// SupplyReasonMint identifies mint driven supply increases.
	SupplyReasonMint = "mint"
)

// TokenSupply captures a supply delta for a mint.
type TokenSupply struct {
	Mint   crypto.Address
	Total  uint64
	Delta  uint64
	Reason string
}

func (TokenSupply) EventType() string { return TypeTokenSupply }

// Event renders the structured supply change event for downstream consumers.
func (e TokenSupply) Event() *types.Event {
	attrs := map[string]string{
		"mint":  e.Mint.String(),
		"total": strconv.FormatUint(e.Total, 10),
		"delta": strconv.FormatUint(e.Delta, 10),
	}
	if reason := strings.TrimSpace(e.Reason); reason != "" {
		attrs["reason"] = reason
	}
	return &types.Event{Type: TypeTokenSupply, Attributes: attrs}
}
