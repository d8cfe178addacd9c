package token

import (
	"fmt"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/events"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	"ledgerprograms/native/common"
)

const (
	OpInitializeMint uint8 = iota
	OpCreateAssociatedAccount
	OpMintTo
	OpTransfer
)

type InitializeMintArgs struct {
	Decimals uint8
}

type AmountArgs struct {
	Amount uint64
}

// Program exposes the engine as an instruction processor.
type Program struct {
	engine *Engine
}

func New(engine *Engine) *Program {
	if engine == nil {
		engine = NewEngine()
	}
	return &Program{engine: engine}
}

func (*Program) ID() crypto.Address { return ProgramID }
func (*Program) Name() string       { return Name }

// Holding forwards to the engine so the host can audit supply.
func (p *Program) Holding(addr crypto.Address, acct *types.Account) (crypto.Address, uint64, bool, bool) {
	return p.engine.Holding(addr, acct)
}

// CheckDelegated forwards to the engine so programs driving it are held to
// balance moves.
func (p *Program) CheckDelegated(addr crypto.Address, pre, post *types.Account) error {
	return p.engine.CheckDelegated(addr, pre, post)
}

func (p *Program) Execute(inv *common.Invocation) error {
	op, err := inv.Opcode()
	if err != nil {
		return err
	}
	switch op {
	case OpInitializeMint:
		var args InitializeMintArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		payer, mint, authority, err := accounts3(inv)
		if err != nil {
			return err
		}
		return p.engine.InitializeMint(payer, mint, authority.Address, args.Decimals)
	case OpCreateAssociatedAccount:
		payer, ata, owner, err := accounts3(inv)
		if err != nil {
			return err
		}
		mint, err := inv.Account(3)
		if err != nil {
			return err
		}
		return p.engine.CreateAssociatedAccount(payer, ata, owner, mint)
	case OpMintTo:
		var args AmountArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		_, mint, dest, err := accounts3(inv)
		if err != nil {
			return err
		}
		if err := p.engine.MintTo(inv.Signers(), mint, dest, args.Amount); err != nil {
			return err
		}
		supply, _ := DecodeMint(mint.Data)
		inv.Emit(events.TokenSupply{Mint: mint.Address, Total: supply.Supply, Delta: args.Amount, Reason: events.SupplyReasonMint})
		return nil
	case OpTransfer:
		var args AmountArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		_, from, to, err := accounts3(inv)
		if err != nil {
			return err
		}
		if err := p.engine.Transfer(inv.Signers(), from, to, args.Amount); err != nil {
			return err
		}
		src, _ := DecodeAccount(from.Data)
		inv.Emit(events.TokenTransfer{Mint: src.Mint, From: from.Address, To: to.Address, Amount: args.Amount})
		return nil
	default:
		return fmt.Errorf("token opcode %d: %w", op, coreerrors.ErrInvalidInstructionData)
	}
}

func accounts3(inv *common.Invocation) (*common.AccountInfo, *common.AccountInfo, *common.AccountInfo, error) {
	if len(inv.Accounts) < 3 {
		return nil, nil, nil, fmt.Errorf("need 3 accounts, got %d: %w", len(inv.Accounts), coreerrors.ErrNotEnoughAccountKeys)
	}
	return inv.Accounts[0], inv.Accounts[1], inv.Accounts[2], nil
}

// NewInitializeMintInstruction creates a mint at the signer-controlled mint
// address.
func NewInitializeMintInstruction(payer, mint, authority crypto.Address, decimals uint8) types.Instruction {
	data, _ := types.EncodeInstructionData(OpInitializeMint, &InitializeMintArgs{Decimals: decimals})
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(payer, true),
			types.Writable(mint, true),
			types.ReadOnly(authority, false),
		},
		Data: data,
	}
}

// NewCreateAssociatedAccountInstruction creates owner's token account for
// mint and returns its address.
func NewCreateAssociatedAccountInstruction(payer, owner, mint crypto.Address) (types.Instruction, crypto.Address, error) {
	ata, _, err := AssociatedAddress(owner, mint)
	if err != nil {
		return types.Instruction{}, crypto.Address{}, err
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(payer, true),
			types.Writable(ata, false),
			types.ReadOnly(owner, false),
			types.ReadOnly(mint, false),
		},
		Data: []byte{OpCreateAssociatedAccount},
	}, ata, nil
}

func NewMintToInstruction(authority, mint, dest crypto.Address, amount uint64) types.Instruction {
	data, _ := types.EncodeInstructionData(OpMintTo, &AmountArgs{Amount: amount})
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.ReadOnly(authority, true),
			types.Writable(mint, false),
			types.Writable(dest, false),
		},
		Data: data,
	}
}

func NewTransferInstruction(owner, from, to crypto.Address, amount uint64) types.Instruction {
	data, _ := types.EncodeInstructionData(OpTransfer, &AmountArgs{Amount: amount})
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.ReadOnly(owner, true),
			types.Writable(from, false),
			types.Writable(to, false),
		},
		Data: data,
	}
}
