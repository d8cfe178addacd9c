package types

import "ledgerprograms/crypto"

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Receipt summarises a committed transaction.
type Receipt struct {
	Digest crypto.Hash `json:"digest"`
	Slot   uint64      `json:"slot"`
	Fee    uint64      `json:"fee"`
	Events []*Event    `json:"events"`
}
