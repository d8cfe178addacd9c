package genesis

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	"ledgerprograms/native/token"
)

// Writer is the part of the execution host genesis seeds.
type Writer interface {
	PutAccount(addr crypto.Address, acct *types.Account) error
	SetClock(clock types.Clock) error
}

// Apply writes the genesis accounts through w. Accounts are written in
// address order so the resulting root depends only on the document. Mint and
// token records are created rent exempt.
func Apply(spec *Spec, w Writer) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if w == nil {
		return fmt.Errorf("genesis writer must not be nil")
	}
	ts := spec.GenesisTimestamp()
	if ts.IsZero() {
		parsed, err := parseGenesisTime(spec.GenesisTime)
		if err != nil {
			return err
		}
		ts = parsed
	}

	accounts := make(map[crypto.Address]*types.Account)

	// 1) Funded system accounts
	for i, a := range spec.Accounts {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(a.Address))
		if err != nil {
			return fmt.Errorf("accounts[%d]: %w", i, err)
		}
		accounts[addr] = &types.Account{Lamports: a.Lamports, Owner: types.SystemProgramID}
	}

	// 2) Mints and associated holder accounts
	for i, m := range spec.Mints {
		mintAddr, err := crypto.DecodeAddress(strings.TrimSpace(m.Address))
		if err != nil {
			return fmt.Errorf("mints[%d]: %w", i, err)
		}
		authority, err := crypto.DecodeAddress(strings.TrimSpace(m.Authority))
		if err != nil {
			return fmt.Errorf("mints[%d].authority: %w", i, err)
		}
		mint := &token.Mint{Authority: authority, Decimals: m.Decimals, Initialized: true}
		for j, h := range m.Holders {
			owner, err := crypto.DecodeAddress(strings.TrimSpace(h.Owner))
			if err != nil {
				return fmt.Errorf("mints[%d].holders[%d]: %w", i, j, err)
			}
			ata, _, err := token.AssociatedAddress(owner, mintAddr)
			if err != nil {
				return fmt.Errorf("mints[%d].holders[%d]: %w", i, j, err)
			}
			if _, exists := accounts[ata]; exists {
				return fmt.Errorf("mints[%d].holders[%d]: token account %s collides", i, j, ata)
			}
			record := &token.Account{Mint: mintAddr, Owner: owner, Amount: h.Amount, Initialized: true}
			accounts[ata] = programAccount(record.Encode())
			mint.Supply += h.Amount
		}
		accounts[mintAddr] = programAccount(mint.Encode())
	}

	addrs := make([]crypto.Address, 0, len(accounts))
	for addr := range accounts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })
	for _, addr := range addrs {
		if err := w.PutAccount(addr, accounts[addr]); err != nil {
			return fmt.Errorf("persist account %s: %w", addr, err)
		}
	}

	if err := w.SetClock(types.Clock{Slot: spec.Slot, UnixTimestamp: ts.Unix()}); err != nil {
		return fmt.Errorf("set genesis clock: %w", err)
	}
	return nil
}

func programAccount(data []byte) *types.Account {
	return &types.Account{
		Lamports: types.RentExemptMinimum(len(data)),
		Owner:    token.ProgramID,
		Data:     data,
	}
}
