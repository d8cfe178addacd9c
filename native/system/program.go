// Package system implements the program that owns every unassigned account.
// It only moves lamports; account creation for program records happens inside
// the owning programs.
package system

import (
	"fmt"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/events"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	"ledgerprograms/native/common"
)

const Name = "system"

// ProgramID is the zero address.
var ProgramID = types.SystemProgramID

const (
	OpTransfer uint8 = iota
)

type TransferArgs struct {
	Amount uint64
}

type Program struct{}

func New() *Program { return &Program{} }

func (*Program) ID() crypto.Address { return ProgramID }
func (*Program) Name() string       { return Name }

func (p *Program) Execute(inv *common.Invocation) error {
	op, err := inv.Opcode()
	if err != nil {
		return err
	}
	switch op {
	case OpTransfer:
		var args TransferArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		return p.transfer(inv, args.Amount)
	default:
		return fmt.Errorf("system opcode %d: %w", op, coreerrors.ErrInvalidInstructionData)
	}
}

// transfer accounts: [from signer writable, to writable]
func (p *Program) transfer(inv *common.Invocation, amount uint64) error {
	from, err := inv.Account(0)
	if err != nil {
		return err
	}
	to, err := inv.Account(1)
	if err != nil {
		return err
	}
	if err := common.RequireSigner(from, "source"); err != nil {
		return err
	}
	if err := common.RequireWritable(from, "source"); err != nil {
		return err
	}
	if err := common.RequireWritable(to, "destination"); err != nil {
		return err
	}
	if from.Owner != ProgramID || len(from.Data) > 0 {
		return fmt.Errorf("source %s carries program data: %w", from.Address, coreerrors.ErrInvalidAccountData)
	}
	if err := common.MoveLamports(from, to, amount); err != nil {
		return err
	}
	inv.Emit(events.LamportTransfer{From: from.Address, To: to.Address, Amount: amount})
	return nil
}

// NewTransferInstruction moves lamports between two accounts.
func NewTransferInstruction(from, to crypto.Address, amount uint64) types.Instruction {
	data, _ := types.EncodeInstructionData(OpTransfer, &TransferArgs{Amount: amount})
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(from, true),
			types.Writable(to, false),
		},
		Data: data,
	}
}
