package dice

import (
	"crypto/sha256"
	"fmt"

	"github.com/holiman/uint256"

	"ledgerprograms/crypto"
)

var (
	u128Mask = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	hundred  = uint256.NewInt(100)
)

// Outcome reduces a house signature to a roll in [0, 100). The digest of the
// signature is split into two little-endian u128 halves whose wrapping sum is
// taken modulo 100. Changing this mapping changes every historical outcome.
func Outcome(sig crypto.Signature) uint8 {
	digest := sha256.Sum256(sig[:])
	lo := leUint128(digest[:16])
	hi := leUint128(digest[16:])
	sum := new(uint256.Int).Add(lo, hi)
	sum.And(sum, u128Mask)
	return uint8(sum.Mod(sum, hundred).Uint64())
}

func leUint128(b []byte) *uint256.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return new(uint256.Int).SetBytes(be)
}

// Payout is what a winning bet returns to the player: floor(amount*100/roll).
func Payout(amount uint64, roll uint8) (uint64, error) {
	if roll < MinRoll || roll > MaxRoll {
		return 0, ErrInvalidRoll
	}
	p := new(uint256.Int).Mul(uint256.NewInt(amount), hundred)
	p.Div(p, uint256.NewInt(uint64(roll)))
	if !p.IsUint64() {
		return 0, fmt.Errorf("payout for %d at roll %d: %w", amount, roll, ErrOverflow)
	}
	return p.Uint64(), nil
}

// Exposure is the part of a winning payout the vault must fund.
func Exposure(amount uint64, roll uint8) (uint64, error) {
	payout, err := Payout(amount, roll)
	if err != nil {
		return 0, err
	}
	return payout - amount, nil
}

// VerifyResolution checks the house signature over the bet record bytes and
// returns the outcome it commits to.
func VerifyResolution(house crypto.Address, betData []byte, sig crypto.Signature) (uint8, error) {
	msg := CanonicalBytes(betData)
	if msg == nil || !crypto.Verify(house, msg, sig) {
		return 0, ErrInvalidSignature
	}
	return Outcome(sig), nil
}

// SignBet produces the house resolution signature for a bet record.
func SignBet(house *crypto.PrivateKey, betData []byte) crypto.Signature {
	return house.Sign(CanonicalBytes(betData))
}
