package token

import (
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/events"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	"ledgerprograms/native/common"
)

type ledger map[crypto.Address]*types.Account

func (l ledger) invoke(t *testing.T, ix types.Instruction) ([]*types.Event, error) {
	t.Helper()
	buf := &events.Buffer{}
	inv := &common.Invocation{ProgramID: ix.ProgramID, Data: ix.Data, Emitter: buf}
	for _, meta := range ix.Accounts {
		acct, ok := l[meta.Address]
		if !ok {
			acct = &types.Account{}
			l[meta.Address] = acct
		}
		inv.Accounts = append(inv.Accounts, &common.AccountInfo{
			Account:    acct,
			Address:    meta.Address,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		})
	}
	err := New(nil).Execute(inv)
	return buf.Events(), err
}

func newKey(t *testing.T) crypto.Address {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key.Address()
}

type fixture struct {
	l         ledger
	payer     crypto.Address
	authority crypto.Address
	mint      crypto.Address
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		l:         ledger{},
		payer:     newKey(t),
		authority: newKey(t),
		mint:      newKey(t),
	}
	f.l[f.payer] = &types.Account{Lamports: 1_000_000_000}
	_, err := f.l.invoke(t, NewInitializeMintInstruction(f.payer, f.mint, f.authority, 6))
	require.NoError(t, err)
	return f
}

func (f *fixture) ata(t *testing.T, owner crypto.Address) crypto.Address {
	ix, addr, err := NewCreateAssociatedAccountInstruction(f.payer, owner, f.mint)
	require.NoError(t, err)
	_, err = f.l.invoke(t, ix)
	require.NoError(t, err)
	return addr
}

func (f *fixture) balance(t *testing.T, addr crypto.Address) uint64 {
	tok, err := DecodeAccount(f.l[addr].Data)
	require.NoError(t, err)
	return tok.Amount
}

func TestMintToAndTransfer(t *testing.T) {
	f := newFixture(t)
	alice := newKey(t)
	bob := newKey(t)
	aliceATA := f.ata(t, alice)
	bobATA := f.ata(t, bob)

	evts, err := f.l.invoke(t, NewMintToInstruction(f.authority, f.mint, aliceATA, 500))
	require.NoError(t, err)
	require.Len(t, evts, 1)
	require.Equal(t, events.TypeTokenSupply, evts[0].Type)
	require.Equal(t, "500", evts[0].Attributes["total"])

	evts, err = f.l.invoke(t, NewTransferInstruction(alice, aliceATA, bobATA, 120))
	require.NoError(t, err)
	require.Equal(t, events.TypeTokenTransfer, evts[0].Type)
	require.Equal(t, uint64(380), f.balance(t, aliceATA))
	require.Equal(t, uint64(120), f.balance(t, bobATA))

	mint, err := DecodeMint(f.l[f.mint].Data)
	require.NoError(t, err)
	require.Equal(t, uint64(500), mint.Supply)
	require.Equal(t, uint8(6), mint.Decimals)
}

func TestTransferRequiresOwnerAndBalance(t *testing.T) {
	f := newFixture(t)
	alice := newKey(t)
	mallory := newKey(t)
	aliceATA := f.ata(t, alice)
	malloryATA := f.ata(t, mallory)

	_, err := f.l.invoke(t, NewMintToInstruction(f.authority, f.mint, aliceATA, 10))
	require.NoError(t, err)

	_, err = f.l.invoke(t, NewTransferInstruction(mallory, aliceATA, malloryATA, 5))
	require.ErrorIs(t, err, ErrOwnerMismatch)
	require.Equal(t, types.KindAuthorization, types.KindOf(err))

	_, err = f.l.invoke(t, NewTransferInstruction(alice, aliceATA, malloryATA, 11))
	require.ErrorIs(t, err, ErrInsufficientTokens)
	require.Equal(t, uint64(10), f.balance(t, aliceATA))
}

func TestMintToRequiresAuthority(t *testing.T) {
	f := newFixture(t)
	alice := newKey(t)
	aliceATA := f.ata(t, alice)

	_, err := f.l.invoke(t, NewMintToInstruction(alice, f.mint, aliceATA, 10))
	require.ErrorIs(t, err, ErrNotMintAuthority)
}

func TestTransferRejectsMintMismatch(t *testing.T) {
	f := newFixture(t)
	otherMint := newKey(t)
	_, err := f.l.invoke(t, NewInitializeMintInstruction(f.payer, otherMint, f.authority, 0))
	require.NoError(t, err)

	alice := newKey(t)
	aliceATA := f.ata(t, alice)
	ix, otherATA, err := NewCreateAssociatedAccountInstruction(f.payer, alice, otherMint)
	require.NoError(t, err)
	_, err = f.l.invoke(t, ix)
	require.NoError(t, err)

	_, err = f.l.invoke(t, NewMintToInstruction(f.authority, f.mint, aliceATA, 10))
	require.NoError(t, err)
	_, err = f.l.invoke(t, NewTransferInstruction(alice, aliceATA, otherATA, 1))
	require.ErrorIs(t, err, ErrMintMismatch)
}

func TestAssociatedAccountCollision(t *testing.T) {
	f := newFixture(t)
	alice := newKey(t)
	f.ata(t, alice)

	ix, _, err := NewCreateAssociatedAccountInstruction(f.payer, alice, f.mint)
	require.NoError(t, err)
	_, err = f.l.invoke(t, ix)
	require.ErrorIs(t, err, coreerrors.ErrAccountAlreadyInUse)
}

func TestAssociatedAccountRejectsWrongAddress(t *testing.T) {
	f := newFixture(t)
	alice := newKey(t)
	ix, _, err := NewCreateAssociatedAccountInstruction(f.payer, alice, f.mint)
	require.NoError(t, err)
	ix.Accounts[1].Address = newKey(t)
	_, err = f.l.invoke(t, ix)
	require.ErrorIs(t, err, coreerrors.ErrInvalidSeeds)
}

func TestMintToOverflow(t *testing.T) {
	f := newFixture(t)
	alice := newKey(t)
	aliceATA := f.ata(t, alice)

	_, err := f.l.invoke(t, NewMintToInstruction(f.authority, f.mint, aliceATA, ^uint64(0)))
	require.NoError(t, err)
	_, err = f.l.invoke(t, NewMintToInstruction(f.authority, f.mint, aliceATA, 1))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestHoldingReportsSupplyAndBalances(t *testing.T) {
	f := newFixture(t)
	alice := newKey(t)
	aliceATA := f.ata(t, alice)
	_, err := f.l.invoke(t, NewMintToInstruction(f.authority, f.mint, aliceATA, 42))
	require.NoError(t, err)

	engine := NewEngine()
	mint, amount, supply, ok := engine.Holding(f.mint, f.l[f.mint])
	require.True(t, ok)
	require.True(t, supply)
	require.Equal(t, f.mint, mint)
	require.Equal(t, uint64(42), amount)

	mint, amount, supply, ok = engine.Holding(aliceATA, f.l[aliceATA])
	require.True(t, ok)
	require.False(t, supply)
	require.Equal(t, f.mint, mint)
	require.Equal(t, uint64(42), amount)

	_, _, _, ok = engine.Holding(f.payer, f.l[f.payer])
	require.False(t, ok)
}

func TestCheckDelegatedAllowsOnlyBalanceMoves(t *testing.T) {
	f := newFixture(t)
	holder := newKey(t)
	ata := f.ata(t, holder)
	_, err := f.l.invoke(t, NewMintToInstruction(f.authority, f.mint, ata, 500))
	require.NoError(t, err)
	engine := NewEngine()

	rewrite := func(mutate func(*Account, *types.Account)) *types.Account {
		post := f.l[ata].Clone()
		tok, err := DecodeAccount(post.Data)
		require.NoError(t, err)
		mutate(tok, post)
		post.Data = tok.Encode()
		return post
	}

	moved := rewrite(func(tok *Account, _ *types.Account) { tok.Amount = 100 })
	require.NoError(t, engine.CheckDelegated(ata, f.l[ata], moved))

	cases := map[string]*types.Account{
		"owner":    rewrite(func(tok *Account, _ *types.Account) { tok.Owner = newKey(t) }),
		"mint":     rewrite(func(tok *Account, _ *types.Account) { tok.Mint = newKey(t) }),
		"lamports": rewrite(func(_ *Account, acct *types.Account) { acct.Lamports++ }),
		"assign":   rewrite(func(_ *Account, acct *types.Account) { acct.Owner = types.SystemProgramID }),
	}
	for name, post := range cases {
		require.ErrorIs(t, engine.CheckDelegated(ata, f.l[ata], post), ErrDelegatedChange, name)
	}

	mintPost := f.l[f.mint].Clone()
	mint, err := DecodeMint(mintPost.Data)
	require.NoError(t, err)
	mint.Supply++
	mintPost.Data = mint.Encode()
	require.ErrorIs(t, engine.CheckDelegated(f.mint, f.l[f.mint], mintPost), ErrDelegatedChange)
}
