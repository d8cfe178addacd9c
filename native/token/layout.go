package token

import (
	"fmt"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
)

const (
	mintRecord    = "Mint"
	accountRecord = "TokenAccount"

	// MintSize is the encoded size of a mint record.
	MintSize = types.DiscriminatorLength + 32 + 8 + 1 + 1
	// AccountSize is the encoded size of a token account record.
	AccountSize = types.DiscriminatorLength + 32 + 32 + 8 + 1
)

// Mint describes a fungible token.
type Mint struct {
	Authority   crypto.Address
	Supply      uint64
	Decimals    uint8
	Initialized bool
}

func (m *Mint) Encode() []byte {
	return types.NewLayoutWriter(mintRecord, MintSize).
		Address(m.Authority).
		U64(m.Supply).
		U8(m.Decimals).
		Bool(m.Initialized).
		Bytes()
}

func DecodeMint(data []byte) (*Mint, error) {
	r, err := types.NewLayoutReader(mintRecord, data, MintSize)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidAccountData)
	}
	m := &Mint{
		Authority:   r.Address(),
		Supply:      r.U64(),
		Decimals:    r.U8(),
		Initialized: r.Bool(),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidAccountData)
	}
	return m, nil
}

// Account is a holder balance of a single mint.
type Account struct {
	Mint        crypto.Address
	Owner       crypto.Address
	Amount      uint64
	Initialized bool
}

func (a *Account) Encode() []byte {
	return types.NewLayoutWriter(accountRecord, AccountSize).
		Address(a.Mint).
		Address(a.Owner).
		U64(a.Amount).
		Bool(a.Initialized).
		Bytes()
}

func DecodeAccount(data []byte) (*Account, error) {
	r, err := types.NewLayoutReader(accountRecord, data, AccountSize)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidAccountData)
	}
	a := &Account{
		Mint:        r.Address(),
		Owner:       r.Address(),
		Amount:      r.U64(),
		Initialized: r.Bool(),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidAccountData)
	}
	return a, nil
}
