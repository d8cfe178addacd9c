package system

import (
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/events"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	"ledgerprograms/native/common"
)

func invocationFor(ix types.Instruction, accounts map[crypto.Address]*types.Account) (*common.Invocation, *events.Buffer) {
	buf := &events.Buffer{}
	inv := &common.Invocation{ProgramID: ix.ProgramID, Data: ix.Data, Emitter: buf}
	for _, meta := range ix.Accounts {
		acct, ok := accounts[meta.Address]
		if !ok {
			acct = &types.Account{}
			accounts[meta.Address] = acct
		}
		inv.Accounts = append(inv.Accounts, &common.AccountInfo{
			Account:    acct,
			Address:    meta.Address,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		})
	}
	return inv, buf
}

func TestTransferMovesLamports(t *testing.T) {
	from := crypto.ProgramIDFromName("alice")
	to := crypto.ProgramIDFromName("bob")
	accounts := map[crypto.Address]*types.Account{from: {Lamports: 100}}

	inv, buf := invocationFor(NewTransferInstruction(from, to, 60), accounts)
	require.NoError(t, New().Execute(inv))
	require.Equal(t, uint64(40), accounts[from].Lamports)
	require.Equal(t, uint64(60), accounts[to].Lamports)

	evts := buf.Events()
	require.Len(t, evts, 1)
	require.Equal(t, events.TypeLamportTransfer, evts[0].Type)
	require.Equal(t, "60", evts[0].Attributes["amount"])
}

func TestTransferRejectsUnsignedAndOverdrawn(t *testing.T) {
	from := crypto.ProgramIDFromName("alice")
	to := crypto.ProgramIDFromName("bob")

	ix := NewTransferInstruction(from, to, 10)
	ix.Accounts[0].IsSigner = false
	inv, _ := invocationFor(ix, map[crypto.Address]*types.Account{from: {Lamports: 100}})
	require.ErrorIs(t, New().Execute(inv), coreerrors.ErrMissingRequiredSig)

	inv, _ = invocationFor(NewTransferInstruction(from, to, 101), map[crypto.Address]*types.Account{from: {Lamports: 100}})
	require.ErrorIs(t, New().Execute(inv), coreerrors.ErrInsufficientFunds)
}

func TestTransferRejectsProgramOwnedSource(t *testing.T) {
	from := crypto.ProgramIDFromName("vault")
	to := crypto.ProgramIDFromName("bob")
	accounts := map[crypto.Address]*types.Account{
		from: {Lamports: 100, Owner: crypto.ProgramIDFromName("dice"), Data: []byte{1}},
	}
	inv, _ := invocationFor(NewTransferInstruction(from, to, 10), accounts)
	require.ErrorIs(t, New().Execute(inv), coreerrors.ErrInvalidAccountData)
}
