package types

import (
	"bytes"

	"ledgerprograms/crypto"
)

// SystemProgramID owns every account that has not been assigned to a program.
var SystemProgramID = crypto.Address{}

// Account is the ledger's unit of state. Programs keep their records in Data
// and only the owning program may rewrite it.
type Account struct {
	Lamports uint64         `json:"lamports"`
	Owner    crypto.Address `json:"owner"`
	Data     []byte         `json:"data"`
}

// IsEmpty reports whether the account carries no lamports and no data. Empty
// accounts are not persisted.
func (a *Account) IsEmpty() bool {
	return a == nil || (a.Lamports == 0 && len(a.Data) == 0)
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{}
	}
	return &Account{
		Lamports: a.Lamports,
		Owner:    a.Owner,
		Data:     append([]byte(nil), a.Data...),
	}
}

// Equal compares two accounts field by field.
func (a *Account) Equal(other *Account) bool {
	if a == nil || other == nil {
		return a.IsEmpty() && other.IsEmpty()
	}
	return a.Lamports == other.Lamports && a.Owner == other.Owner && bytes.Equal(a.Data, other.Data)
}
