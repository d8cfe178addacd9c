package dice

import (
	"fmt"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	"ledgerprograms/native/common"
)

const (
	OpInitialize uint8 = iota
	OpPlaceBet
	OpResolveBet
	OpRefundBet
	OpWithdraw
)

type AmountArgs struct {
	Amount uint64
}

type PlaceBetArgs struct {
	Seed   Seed
	Roll   uint8
	Amount uint64
}

type ResolveBetArgs struct {
	Signature crypto.Signature
	Seed      Seed
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

// Engine returns the underlying state machine.
func (p *Program) Engine() *Engine { return p.engine }

func (p *Program) Execute(inv *common.Invocation) error {
	op, err := inv.Opcode()
	if err != nil {
		return err
	}
	switch op {
	case OpInitialize:
		var args AmountArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		accts, err := requireAccounts(inv, 2)
		if err != nil {
			return err
		}
		return p.engine.Initialize(inv, InitializeAccounts{House: accts[0], Vault: accts[1]}, args.Amount)
	case OpPlaceBet:
		var args PlaceBetArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		accts, err := requireAccounts(inv, 4)
		if err != nil {
			return err
		}
		return p.engine.PlaceBet(inv, PlaceBetAccounts{
			Player: accts[0],
			House:  accts[1],
			Vault:  accts[2],
			Bet:    accts[3],
		}, args.Seed, args.Roll, args.Amount)
	case OpResolveBet:
		var args ResolveBetArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		accts, err := requireAccounts(inv, 4)
		if err != nil {
			return err
		}
		return p.engine.ResolveBet(inv, ResolveAccounts{
			House:  accts[0],
			Player: accts[1],
			Vault:  accts[2],
			Bet:    accts[3],
		}, args.Signature, args.Seed)
	case OpRefundBet:
		accts, err := requireAccounts(inv, 4)
		if err != nil {
			return err
		}
		return p.engine.RefundBet(inv, RefundAccounts{
			Player: accts[0],
			House:  accts[1],
			Vault:  accts[2],
			Bet:    accts[3],
		})
	case OpWithdraw:
		var args AmountArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		accts, err := requireAccounts(inv, 2)
		if err != nil {
			return err
		}
		return p.engine.Withdraw(inv, WithdrawAccounts{House: accts[0], Vault: accts[1]}, args.Amount)
	default:
		return fmt.Errorf("dice opcode %d: %w", op, coreerrors.ErrInvalidInstructionData)
	}
}

func requireAccounts(inv *common.Invocation, n int) ([]*common.AccountInfo, error) {
	if len(inv.Accounts) < n {
		return nil, fmt.Errorf("need %d accounts, got %d: %w", n, len(inv.Accounts), coreerrors.ErrNotEnoughAccountKeys)
	}
	return inv.Accounts[:n], nil
}

// NewInitializeInstruction creates house's vault and deposits amount.
func NewInitializeInstruction(house crypto.Address, amount uint64) (types.Instruction, error) {
	vault, _, err := VaultAddress(house)
	if err != nil {
		return types.Instruction{}, err
	}
	data, err := types.EncodeInstructionData(OpInitialize, &AmountArgs{Amount: amount})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(house, true),
			types.Writable(vault, false),
		},
		Data: data,
	}, nil
}

// NewPlaceBetInstruction escrows amount from player against house at roll.
// It returns the bet address alongside the instruction.
func NewPlaceBetInstruction(player, house crypto.Address, seed Seed, roll uint8, amount uint64) (types.Instruction, crypto.Address, error) {
	vault, _, err := VaultAddress(house)
	if err != nil {
		return types.Instruction{}, crypto.Address{}, err
	}
	bet, _, err := BetAddress(vault, seed)
	if err != nil {
		return types.Instruction{}, crypto.Address{}, err
	}
	data, err := types.EncodeInstructionData(OpPlaceBet, &PlaceBetArgs{Seed: seed, Roll: roll, Amount: amount})
	if err != nil {
		return types.Instruction{}, crypto.Address{}, err
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(player, true),
			types.ReadOnly(house, false),
			types.Writable(vault, false),
			types.Writable(bet, false),
		},
		Data: data,
	}, bet, nil
}

// NewResolveBetInstruction settles player's bet with the house signature over
// the bet record.
func NewResolveBetInstruction(house, player crypto.Address, seed Seed, sig crypto.Signature) (types.Instruction, error) {
	vault, _, err := VaultAddress(house)
	if err != nil {
		return types.Instruction{}, err
	}
	bet, _, err := BetAddress(vault, seed)
	if err != nil {
		return types.Instruction{}, err
	}
	data, err := types.EncodeInstructionData(OpResolveBet, &ResolveBetArgs{Signature: sig, Seed: seed})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(house, true),
			types.Writable(player, false),
			types.Writable(vault, false),
			types.Writable(bet, false),
		},
		Data: data,
	}, nil
}

// NewRefundBetInstruction reclaims an unresolved bet for its player.
func NewRefundBetInstruction(player, house, bet crypto.Address) (types.Instruction, error) {
	vault, _, err := VaultAddress(house)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(player, true),
			types.ReadOnly(house, false),
			types.Writable(vault, false),
			types.Writable(bet, false),
		},
		Data: []byte{OpRefundBet},
	}, nil
}

// NewWithdrawInstruction moves unreserved vault lamports back to house.
func NewWithdrawInstruction(house crypto.Address, amount uint64) (types.Instruction, error) {
	vault, _, err := VaultAddress(house)
	if err != nil {
		return types.Instruction{}, err
	}
	data, err := types.EncodeInstructionData(OpWithdraw, &AmountArgs{Amount: amount})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(house, true),
			types.Writable(vault, false),
		},
		Data: data,
	}, nil
}
