package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// AddressLength is the size in bytes of every ledger address. Externally owned
// addresses are raw ed25519 public keys; program-derived addresses are
// off-curve digests of the same size.
const AddressLength = 32

// SignatureLength is the size of an ed25519 signature.
const SignatureLength = ed25519.SignatureSize

// Address identifies an account on the ledger.
type Address [AddressLength]byte

// String renders the address in base58.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	decoded, err := DecodeAddress(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// DecodeAddress parses a base58 address string.
func DecodeAddress(addrStr string) (Address, error) {
	raw := base58.Decode(addrStr)
	if len(raw) != AddressLength {
		return Address{}, fmt.Errorf("invalid address %q: decoded to %d bytes", addrStr, len(raw))
	}
	var addr Address
	copy(addr[:], raw)
	return addr, nil
}

// AddressFromBytes copies a 32 byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressLength, len(b))
	}
	var addr Address
	copy(addr[:], b)
	return addr, nil
}

// ProgramIDFromName returns the well-known identifier for a native program.
func ProgramIDFromName(name string) Address {
	return Address(sha256.Sum256([]byte("ledgerprograms/program/" + name)))
}

// Signature is a detached ed25519 signature.
type Signature [SignatureLength]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

// MarshalText implements encoding.TextMarshaler.
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signature) UnmarshalText(text []byte) error {
	raw := base58.Decode(string(text))
	if len(raw) != SignatureLength {
		return fmt.Errorf("invalid signature: decoded to %d bytes", len(raw))
	}
	copy(s[:], raw)
	return nil
}

// Verify checks an ed25519 signature produced by the key behind addr.
// Program-derived addresses have no key and therefore never verify.
func Verify(addr Address, msg []byte, sig Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(addr[:]), msg, sig[:])
}

// --- Key Management ---

type PrivateKey struct {
	ed25519.PrivateKey
}

type PublicKey struct {
	ed25519.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the 32 byte seed of the private key.
func (k *PrivateKey) Bytes() []byte {
	return append([]byte(nil), k.PrivateKey.Seed()...)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{k.PrivateKey.Public().(ed25519.PublicKey)}
}

// Address returns the ledger address controlled by the key.
func (k *PrivateKey) Address() Address {
	return k.PubKey().Address()
}

// Sign produces a detached signature over msg.
func (k *PrivateKey) Sign(msg []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(k.PrivateKey, msg))
	return sig
}

func (k *PublicKey) Address() Address {
	var addr Address
	copy(addr[:], k.PublicKey)
	return addr
}

// PrivateKeyFromBytes rebuilds a key from its 32 byte seed.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != ed25519.SeedSize {
		return nil, fmt.Errorf("private key seed must be %d bytes, got %d", ed25519.SeedSize, len(b))
	}
	return &PrivateKey{ed25519.NewKeyFromSeed(b)}, nil
}

// Hash is a 32 byte digest, used for transaction identifiers.
type Hash [32]byte

func (h Hash) String() string {
	return base58.Encode(h[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	raw := base58.Decode(string(text))
	if len(raw) != len(h) {
		return fmt.Errorf("invalid hash: decoded to %d bytes", len(raw))
	}
	copy(h[:], raw)
	return nil
}
