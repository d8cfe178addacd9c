package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"ledgerprograms/crypto"
)

// AccountMeta names an account an instruction touches and how.
type AccountMeta struct {
	Address    crypto.Address `json:"address"`
	IsSigner   bool           `json:"isSigner"`
	IsWritable bool           `json:"isWritable"`
}

// Writable returns a writable meta.
func Writable(addr crypto.Address, signer bool) AccountMeta {
	return AccountMeta{Address: addr, IsSigner: signer, IsWritable: true}
}

// ReadOnly returns a read-only meta.
func ReadOnly(addr crypto.Address, signer bool) AccountMeta {
	return AccountMeta{Address: addr, IsSigner: signer}
}

// Instruction invokes a single program.
type Instruction struct {
	ProgramID crypto.Address `json:"programId"`
	Accounts  []AccountMeta  `json:"accounts"`
	Data      []byte         `json:"data"`
}

// EncodeInstructionData prefixes the RLP encoding of args with the opcode.
func EncodeInstructionData(op uint8, args interface{}) ([]byte, error) {
	if args == nil {
		return []byte{op}, nil
	}
	encoded, err := rlp.EncodeToBytes(args)
	if err != nil {
		return nil, err
	}
	return append([]byte{op}, encoded...), nil
}

// DecodeInstructionArgs decodes the payload that follows the opcode byte.
func DecodeInstructionArgs(data []byte, out interface{}) error {
	if len(data) < 2 {
		return errors.New("instruction: missing arguments")
	}
	return rlp.DecodeBytes(data[1:], out)
}

// Message is the signed part of a transaction. Nonce only makes otherwise
// identical intents distinct; the host rejects a digest it has already
// committed.
type Message struct {
	FeePayer     crypto.Address `json:"feePayer"`
	Nonce        uint64         `json:"nonce"`
	Instructions []Instruction  `json:"instructions"`
}

// Signers lists the addresses that must sign the message: the fee payer first,
// then every signer meta in order of first appearance.
func (m *Message) Signers() []crypto.Address {
	seen := map[crypto.Address]struct{}{m.FeePayer: {}}
	out := []crypto.Address{m.FeePayer}
	for _, ix := range m.Instructions {
		for _, meta := range ix.Accounts {
			if !meta.IsSigner {
				continue
			}
			if _, ok := seen[meta.Address]; ok {
				continue
			}
			seen[meta.Address] = struct{}{}
			out = append(out, meta.Address)
		}
	}
	return out
}

// Digest returns the blake3 hash of the RLP encoded message.
func (m *Message) Digest() (crypto.Hash, error) {
	encoded, err := rlp.EncodeToBytes(m)
	if err != nil {
		return crypto.Hash{}, err
	}
	return crypto.Hash(blake3.Sum256(encoded)), nil
}

// SignerSignature pairs a signer with its signature over the message digest.
type SignerSignature struct {
	Signer    crypto.Address   `json:"signer"`
	Signature crypto.Signature `json:"signature"`
}

// Transaction is a message plus its signatures.
type Transaction struct {
	Message    Message           `json:"message"`
	Signatures []SignerSignature `json:"signatures"`
}

// NewTransaction builds an unsigned transaction.
func NewTransaction(feePayer crypto.Address, nonce uint64, ixs ...Instruction) *Transaction {
	return &Transaction{Message: Message{FeePayer: feePayer, Nonce: nonce, Instructions: ixs}}
}

// Digest identifies the transaction.
func (tx *Transaction) Digest() (crypto.Hash, error) {
	return tx.Message.Digest()
}

// Sign adds a signature for every key. Keys that are not required signers are
// rejected so the signature count, and therefore the fee, stays predictable.
func (tx *Transaction) Sign(keys ...*crypto.PrivateKey) error {
	digest, err := tx.Digest()
	if err != nil {
		return err
	}
	required := make(map[crypto.Address]struct{})
	for _, signer := range tx.Message.Signers() {
		required[signer] = struct{}{}
	}
	for _, key := range keys {
		addr := key.Address()
		if _, ok := required[addr]; !ok {
			return fmt.Errorf("transaction: %s is not a required signer", addr)
		}
		tx.Signatures = append(tx.Signatures, SignerSignature{Signer: addr, Signature: key.Sign(digest[:])})
	}
	return nil
}

// VerifySignatures checks that every required signer produced a valid
// signature over the digest. It returns the set of verified signers.
func (tx *Transaction) VerifySignatures() (map[crypto.Address]struct{}, error) {
	digest, err := tx.Digest()
	if err != nil {
		return nil, err
	}
	verified := make(map[crypto.Address]struct{}, len(tx.Signatures))
	for _, entry := range tx.Signatures {
		if !crypto.Verify(entry.Signer, digest[:], entry.Signature) {
			return nil, fmt.Errorf("signer %s: %w", entry.Signer, errBadSignature)
		}
		verified[entry.Signer] = struct{}{}
	}
	for _, signer := range tx.Message.Signers() {
		if _, ok := verified[signer]; !ok {
			return nil, fmt.Errorf("signer %s: %w", signer, errMissingSignature)
		}
	}
	return verified, nil
}

var (
	errBadSignature     = NewProgramError("runtime", 4, KindAuthorization, "signature verification failed")
	errMissingSignature = NewProgramError("runtime", 3, KindAuthorization, "missing required signature")
)
