package common

import (
	"fmt"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/events"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
)

// Program is an on-ledger program executed by the host. Execute mutates the
// supplied accounts in place; the host decides whether the result commits.
type Program interface {
	ID() crypto.Address
	Name() string
	Execute(inv *Invocation) error
}

// Delegating is implemented by programs that drive another program's engine
// directly (for example payments moving tokens). The host allows such a
// program to mutate accounts owned by its delegates.
type Delegating interface {
	Delegates() []crypto.Address
}

// DelegateAuditor is implemented by programs listed as delegates. The host
// calls CheckDelegated for every account of theirs another program changed.
type DelegateAuditor interface {
	CheckDelegated(addr crypto.Address, pre, post *types.Account) error
}

// SupplyAuditor is implemented by programs that keep fungible balances in
// account data. The host uses it to check per-mint conservation.
type SupplyAuditor interface {
	// Holding reports the mint position recorded in the account at addr.
	// supply is true when amount is the mint's total supply rather than a
	// holder balance.
	Holding(addr crypto.Address, acct *types.Account) (mint crypto.Address, amount uint64, supply bool, ok bool)
}

// Store is program-private metadata that lives outside accounts.
type Store interface {
	Get(key []byte, out interface{}) (bool, error)
	Put(key []byte, value interface{}) error
}

// AccountInfo is an instruction account as seen by a program.
type AccountInfo struct {
	*types.Account
	Address    crypto.Address
	IsSigner   bool
	IsWritable bool
}

// OwnedBy reports whether the account is owned by program.
func (a *AccountInfo) OwnedBy(program crypto.Address) bool {
	return a.Owner == program
}

// Invocation is a single instruction being executed.
type Invocation struct {
	ProgramID crypto.Address
	Accounts  []*AccountInfo
	Data      []byte
	Clock     types.Clock
	Store     Store
	Emitter   events.Emitter
}

// Account returns the i-th instruction account.
func (inv *Invocation) Account(i int) (*AccountInfo, error) {
	if i < 0 || i >= len(inv.Accounts) {
		return nil, fmt.Errorf("account #%d of %d: %w", i, len(inv.Accounts), coreerrors.ErrNotEnoughAccountKeys)
	}
	return inv.Accounts[i], nil
}

// Remaining returns the accounts after the first n.
func (inv *Invocation) Remaining(n int) []*AccountInfo {
	if n >= len(inv.Accounts) {
		return nil
	}
	return inv.Accounts[n:]
}

// Opcode returns the instruction selector.
func (inv *Invocation) Opcode() (uint8, error) {
	if len(inv.Data) == 0 {
		return 0, fmt.Errorf("empty payload: %w", coreerrors.ErrInvalidInstructionData)
	}
	return inv.Data[0], nil
}

// DecodeArgs decodes the RLP arguments following the opcode.
func (inv *Invocation) DecodeArgs(out interface{}) error {
	if err := types.DecodeInstructionArgs(inv.Data, out); err != nil {
		return fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidInstructionData)
	}
	return nil
}

// Emit forwards evt to the invocation's emitter.
func (inv *Invocation) Emit(evt events.Event) {
	if inv == nil || inv.Emitter == nil || evt == nil {
		return
	}
	inv.Emitter.Emit(evt)
}

// Signers collects the signer set of the invocation.
func (inv *Invocation) Signers() SignerSet {
	set := make(SignerSet, len(inv.Accounts))
	for _, acct := range inv.Accounts {
		if acct.IsSigner {
			set.Add(acct.Address)
		}
	}
	return set
}

// SignerSet is the set of addresses that authorised the current instruction.
// Programs add their own derived addresses after verifying the derivation so
// that engines they call accept the address as an authority.
type SignerSet map[crypto.Address]struct{}

func (s SignerSet) Add(addr crypto.Address) {
	s[addr] = struct{}{}
}

func (s SignerSet) Has(addr crypto.Address) bool {
	_, ok := s[addr]
	return ok
}
