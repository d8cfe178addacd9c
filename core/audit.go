package core

import (
	"bytes"
	"fmt"

	"github.com/holiman/uint256"

	coreerrors "ledgerprograms/core/errors"
	ledgerstate "ledgerprograms/core/state"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	nativecommon "ledgerprograms/native/common"
)

// touchedAccounts holds the accounts of one instruction. Programs mutate the
// post images in place; pre images are untouched clones used by the audit.
type touchedAccounts struct {
	order    []crypto.Address
	pre      map[crypto.Address]*types.Account
	post     map[crypto.Address]*types.Account
	signer   map[crypto.Address]bool
	writable map[crypto.Address]bool
	infos    []*nativecommon.AccountInfo
}

// loadAccounts resolves the instruction metas. An address listed more than
// once shares one account image and the union of its flags. A signer flag is
// only honoured when the transaction carries a verified signature for it.
func loadAccounts(work *ledgerstate.Manager, ix *types.Instruction, signed map[crypto.Address]struct{}) (*touchedAccounts, error) {
	t := &touchedAccounts{
		pre:      make(map[crypto.Address]*types.Account, len(ix.Accounts)),
		post:     make(map[crypto.Address]*types.Account, len(ix.Accounts)),
		signer:   make(map[crypto.Address]bool, len(ix.Accounts)),
		writable: make(map[crypto.Address]bool, len(ix.Accounts)),
	}
	for _, meta := range ix.Accounts {
		if meta.IsSigner {
			if _, ok := signed[meta.Address]; !ok {
				return nil, fmt.Errorf("account %s: %w", meta.Address, coreerrors.ErrMissingRequiredSig)
			}
			t.signer[meta.Address] = true
		}
		if meta.IsWritable {
			t.writable[meta.Address] = true
		}
		if _, ok := t.post[meta.Address]; ok {
			continue
		}
		acct, err := work.Account(meta.Address)
		if err != nil {
			return nil, err
		}
		t.order = append(t.order, meta.Address)
		t.pre[meta.Address] = acct.Clone()
		t.post[meta.Address] = acct
	}
	t.infos = make([]*nativecommon.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		t.infos[i] = &nativecommon.AccountInfo{
			Account:    t.post[meta.Address],
			Address:    meta.Address,
			IsSigner:   t.signer[meta.Address],
			IsWritable: t.writable[meta.Address],
		}
	}
	return t, nil
}

// audit checks that the program only changed what it was allowed to and that
// value was neither created nor destroyed.
func (sp *StateProcessor) audit(program nativecommon.Program, t *touchedAccounts) error {
	trusted := map[crypto.Address]struct{}{program.ID(): {}}
	if d, ok := program.(nativecommon.Delegating); ok {
		for _, id := range d.Delegates() {
			trusted[id] = struct{}{}
		}
	}
	var preTotal, postTotal uint256.Int
	for _, addr := range t.order {
		pre, post := t.pre[addr], t.post[addr]
		preTotal.Add(&preTotal, uint256.NewInt(pre.Lamports))
		postTotal.Add(&postTotal, uint256.NewInt(post.Lamports))
		if pre.Equal(post) {
			continue
		}
		if !t.writable[addr] {
			return fmt.Errorf("account %s: %w", addr, coreerrors.ErrAccountNotWritable)
		}
		_, owned := trusted[pre.Owner]
		fresh := pre.Owner == types.SystemProgramID && len(pre.Data) == 0
		// Unfunded addresses may be created without a signature. A funded
		// wallet must sign to be assigned. Derived addresses have no key, so
		// whatever they hold only counts toward the deposit.
		assignable := pre.IsEmpty() || (fresh && (t.signer[addr] || !crypto.IsOnCurve(addr[:])))
		if (pre.Owner != post.Owner || !bytes.Equal(pre.Data, post.Data)) && !owned && !assignable {
			return fmt.Errorf("account %s owned by %s: %w", addr, pre.Owner, coreerrors.ErrExternalAccountChanged)
		}
		if owned && pre.Owner != program.ID() {
			if err := sp.checkDelegated(addr, pre, post); err != nil {
				return err
			}
		}
		if post.Lamports < pre.Lamports && !owned && !(fresh && t.signer[addr]) {
			return fmt.Errorf("account %s debited without authority: %w", addr, coreerrors.ErrExternalAccountChanged)
		}
		if len(post.Data) > 0 && post.Lamports < types.RentExemptMinimum(len(post.Data)) {
			return fmt.Errorf("account %s holds %d, needs %d: %w", addr, post.Lamports, types.RentExemptMinimum(len(post.Data)), coreerrors.ErrAccountNotRentExempt)
		}
	}
	if !preTotal.Eq(&postTotal) {
		return fmt.Errorf("before %s after %s: %w", preTotal.Dec(), postTotal.Dec(), coreerrors.ErrUnbalancedInstruction)
	}
	return sp.auditTokens(t)
}

// checkDelegated lets the owner of an account vet a change made by a program
// that drives its engine.
func (sp *StateProcessor) checkDelegated(addr crypto.Address, pre, post *types.Account) error {
	auditor, ok := sp.programs[pre.Owner].(nativecommon.DelegateAuditor)
	if !ok {
		return fmt.Errorf("account %s owned by %s: %w", addr, pre.Owner, coreerrors.ErrExternalAccountChanged)
	}
	return auditor.CheckDelegated(addr, pre, post)
}

type mintTally struct {
	preHolders, postHolders uint256.Int
	preSupply, postSupply   uint256.Int
}

// auditTokens checks, per mint, that holder balances moved exactly as much as
// the recorded supply did.
func (sp *StateProcessor) auditTokens(t *touchedAccounts) error {
	if len(sp.auditors) == 0 {
		return nil
	}
	tallies := make(map[crypto.Address]*mintTally)
	tally := func(addr crypto.Address, acct *types.Account, post bool) {
		auditor, ok := sp.auditors[acct.Owner]
		if !ok {
			return
		}
		mint, amount, supply, ok := auditor.Holding(addr, acct)
		if !ok {
			return
		}
		m := tallies[mint]
		if m == nil {
			m = new(mintTally)
			tallies[mint] = m
		}
		v := uint256.NewInt(amount)
		switch {
		case supply && post:
			m.postSupply.Add(&m.postSupply, v)
		case supply:
			m.preSupply.Add(&m.preSupply, v)
		case post:
			m.postHolders.Add(&m.postHolders, v)
		default:
			m.preHolders.Add(&m.preHolders, v)
		}
	}
	for _, addr := range t.order {
		tally(addr, t.pre[addr], false)
		tally(addr, t.post[addr], true)
	}
	for mint, m := range tallies {
		var left, right uint256.Int
		left.Add(&m.postHolders, &m.preSupply)
		right.Add(&m.preHolders, &m.postSupply)
		if !left.Eq(&right) {
			return fmt.Errorf("mint %s: %w", mint, coreerrors.ErrUnbalancedTokens)
		}
	}
	return nil
}
