package dice

import (
	"encoding/binary"
	"fmt"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
)

const (
	vaultRecord = "Vault"
	betRecord   = "Bet"

	// VaultSize is the encoded size of a vault record.
	VaultSize = types.DiscriminatorLength + 32 + 8 + 8 + 1
	// BetSize is the encoded size of a bet record.
	BetSize = types.DiscriminatorLength + 32 + 32 + SeedLength + 8 + 8 + 8 + 1 + 1

	// SeedLength is the width of a bet nonce, a little-endian u128.
	SeedLength = 16

	MinRoll = 1
	MaxRoll = 99
)

// Seed is the caller-chosen bet nonce.
type Seed [SeedLength]byte

// SeedFromUint64 encodes v as a little-endian u128.
func SeedFromUint64(v uint64) Seed {
	var s Seed
	binary.LittleEndian.PutUint64(s[:8], v)
	return s
}

// Vault is the house-owned pool that backs open bets. Reserved is the sum of
// the exposure of every open bet and is never withdrawable.
type Vault struct {
	House    crypto.Address
	Reserved uint64
	OpenBets uint64
	Bump     uint8
}

func (v *Vault) Encode() []byte {
	return types.NewLayoutWriter(vaultRecord, VaultSize).
		Address(v.House).
		U64(v.Reserved).
		U64(v.OpenBets).
		U8(v.Bump).
		Bytes()
}

func DecodeVault(data []byte) (*Vault, error) {
	r, err := types.NewLayoutReader(vaultRecord, data, VaultSize)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidAccountData)
	}
	v := &Vault{
		House:    r.Address(),
		Reserved: r.U64(),
		OpenBets: r.U64(),
		Bump:     r.U8(),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidAccountData)
	}
	return v, nil
}

// Bet is a single wager. Its account holds the stake in escrow on top of the
// rent deposit paid by the player.
type Bet struct {
	Player    crypto.Address
	House     crypto.Address
	Seed      Seed
	Slot      uint64
	CreatedAt int64
	Amount    uint64
	Roll      uint8
	Bump      uint8
}

func (b *Bet) Encode() []byte {
	return types.NewLayoutWriter(betRecord, BetSize).
		Address(b.Player).
		Address(b.House).
		Fixed(b.Seed[:], SeedLength).
		U64(b.Slot).
		I64(b.CreatedAt).
		U64(b.Amount).
		U8(b.Roll).
		U8(b.Bump).
		Bytes()
}

func DecodeBet(data []byte) (*Bet, error) {
	r, err := types.NewLayoutReader(betRecord, data, BetSize)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidAccountData)
	}
	b := &Bet{
		Player: r.Address(),
		House:  r.Address(),
	}
	copy(b.Seed[:], r.Fixed(SeedLength))
	b.Slot = r.U64()
	b.CreatedAt = r.I64()
	b.Amount = r.U64()
	b.Roll = r.U8()
	b.Bump = r.U8()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidAccountData)
	}
	return b, nil
}

// CanonicalBytes is the message the house signs to resolve a bet: the record
// without its discriminator.
func CanonicalBytes(data []byte) []byte {
	if len(data) < types.DiscriminatorLength {
		return nil
	}
	return data[types.DiscriminatorLength:]
}
