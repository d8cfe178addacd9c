package payments

import (
	"fmt"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	"ledgerprograms/native/common"
	"ledgerprograms/native/token"
)

const (
	OpInitializePlatform uint8 = iota
	OpInitializeMerchant
	OpProcessPayment
	OpCloseMerchant
	OpClaimPlatformFees
	OpUpdateMerchant
	OpSetPaused
)

type InitializePlatformArgs struct {
	FeeRateBps uint16
	MinAmount  uint64
	MaxAmount  uint64
}

type IdentifierArgs struct {
	Identifier string
}

type UpdateMerchantArgs struct {
	Identifier string
	Active     bool
}

type AmountArgs struct {
	Amount uint64
}

type SetPausedArgs struct {
	Paused bool
}

// Program exposes the engine as an instruction processor.
type Program struct {
	engine *Engine
}

func New(engine *Engine) *Program {
	if engine == nil {
		engine = NewEngine(nil)
	}
	return &Program{engine: engine}
}

func (*Program) ID() crypto.Address { return ProgramID }
func (*Program) Name() string       { return Name }

// Delegates lists the programs whose accounts payments may mutate through
// their engines.
func (*Program) Delegates() []crypto.Address {
	return []crypto.Address{token.ProgramID}
}

func (p *Program) Execute(inv *common.Invocation) error {
	op, err := inv.Opcode()
	if err != nil {
		return err
	}
	switch op {
	case OpInitializePlatform:
		var args InitializePlatformArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		accts, err := requireAccounts(inv, 4)
		if err != nil {
			return err
		}
		return p.engine.InitializePlatform(inv, InitializePlatformAccounts{
			Authority: accts[0],
			Config:    accts[1],
			Treasury:  accts[2],
			FeeMint:   accts[3],
		}, args.FeeRateBps, args.MinAmount, args.MaxAmount)
	case OpInitializeMerchant:
		var args IdentifierArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		accts, err := requireAccounts(inv, 4)
		if err != nil {
			return err
		}
		return p.engine.InitializeMerchant(inv, InitializeMerchantAccounts{
			Payer:      accts[0],
			Config:     accts[1],
			Merchant:   accts[2],
			Settlement: accts[3],
		}, args.Identifier)
	case OpProcessPayment:
		var args AmountArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		accts, err := requireAccounts(inv, 7)
		if err != nil {
			return err
		}
		_, err = p.engine.ProcessPayment(inv, ProcessPaymentAccounts{
			Customer:        accts[0],
			Config:          accts[1],
			CustomerLedger:  accts[2],
			Merchant:        accts[3],
			CustomerToken:   accts[4],
			SettlementToken: accts[5],
			Treasury:        accts[6],
			References:      inv.Remaining(7),
		}, args.Amount)
		return err
	case OpCloseMerchant:
		var args IdentifierArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		accts, err := requireAccounts(inv, 2)
		if err != nil {
			return err
		}
		return p.engine.CloseMerchant(inv, CloseMerchantAccounts{Settlement: accts[0], Merchant: accts[1]}, args.Identifier)
	case OpClaimPlatformFees:
		var args AmountArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		accts, err := requireAccounts(inv, 4)
		if err != nil {
			return err
		}
		return p.engine.ClaimPlatformFees(inv, ClaimFeesAccounts{
			Authority:   accts[0],
			Config:      accts[1],
			Treasury:    accts[2],
			Destination: accts[3],
		}, args.Amount)
	case OpUpdateMerchant:
		var args UpdateMerchantArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		accts, err := requireAccounts(inv, 2)
		if err != nil {
			return err
		}
		update := UpdateMerchantAccounts{Settlement: accts[0], Merchant: accts[1]}
		if rest := inv.Remaining(2); len(rest) > 0 {
			update.NewSettlement = rest[0]
		}
		return p.engine.UpdateMerchant(inv, update, args.Identifier, args.Active)
	case OpSetPaused:
		var args SetPausedArgs
		if err := inv.DecodeArgs(&args); err != nil {
			return err
		}
		accts, err := requireAccounts(inv, 2)
		if err != nil {
			return err
		}
		return p.engine.SetPaused(inv, SetPausedAccounts{Authority: accts[0], Config: accts[1]}, args.Paused)
	default:
		return fmt.Errorf("payments opcode %d: %w", op, coreerrors.ErrInvalidInstructionData)
	}
}

func requireAccounts(inv *common.Invocation, n int) ([]*common.AccountInfo, error) {
	if len(inv.Accounts) < n {
		return nil, fmt.Errorf("need %d accounts, got %d: %w", n, len(inv.Accounts), coreerrors.ErrNotEnoughAccountKeys)
	}
	return inv.Accounts[:n], nil
}

func instruction(op uint8, args interface{}, metas ...types.AccountMeta) (types.Instruction, error) {
	data, err := types.EncodeInstructionData(op, args)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{ProgramID: ProgramID, Accounts: metas, Data: data}, nil
}

// NewInitializePlatformInstruction creates the platform config and treasury
// for feeMint.
func NewInitializePlatformInstruction(authority, feeMint crypto.Address, feeRateBps uint16, minAmount, maxAmount uint64) (types.Instruction, error) {
	config, _, err := ConfigAddress()
	if err != nil {
		return types.Instruction{}, err
	}
	treasury, _, err := TreasuryAddress()
	if err != nil {
		return types.Instruction{}, err
	}
	return instruction(OpInitializePlatform,
		&InitializePlatformArgs{FeeRateBps: feeRateBps, MinAmount: minAmount, MaxAmount: maxAmount},
		types.Writable(authority, true),
		types.Writable(config, false),
		types.Writable(treasury, false),
		types.ReadOnly(feeMint, false),
	)
}

// NewInitializeMerchantInstruction registers identifier settling to
// settlement.
func NewInitializeMerchantInstruction(payer, settlement crypto.Address, identifier string) (types.Instruction, error) {
	config, _, err := ConfigAddress()
	if err != nil {
		return types.Instruction{}, err
	}
	merchant, _, err := MerchantAddress(identifier)
	if err != nil {
		return types.Instruction{}, err
	}
	return instruction(OpInitializeMerchant, &IdentifierArgs{Identifier: identifier},
		types.Writable(payer, true),
		types.ReadOnly(config, false),
		types.Writable(merchant, false),
		types.ReadOnly(settlement, false),
	)
}

// PaymentRequest describes a payment as a wallet or payment link sees it.
type PaymentRequest struct {
	Customer        crypto.Address
	Identifier      string
	CustomerToken   crypto.Address
	SettlementToken crypto.Address
	Amount          uint64
	References      []crypto.Address
}

// NewProcessPaymentInstruction pays req.Amount to the merchant registered as
// req.Identifier.
func NewProcessPaymentInstruction(req PaymentRequest) (types.Instruction, error) {
	config, _, err := ConfigAddress()
	if err != nil {
		return types.Instruction{}, err
	}
	treasury, _, err := TreasuryAddress()
	if err != nil {
		return types.Instruction{}, err
	}
	merchant, _, err := MerchantAddress(req.Identifier)
	if err != nil {
		return types.Instruction{}, err
	}
	ledger, _, err := CustomerAddress(req.Customer, merchant)
	if err != nil {
		return types.Instruction{}, err
	}
	metas := []types.AccountMeta{
		types.Writable(req.Customer, true),
		types.ReadOnly(config, false),
		types.Writable(ledger, false),
		types.Writable(merchant, false),
		types.Writable(req.CustomerToken, false),
		types.Writable(req.SettlementToken, false),
		types.Writable(treasury, false),
	}
	for _, ref := range req.References {
		metas = append(metas, types.ReadOnly(ref, false))
	}
	return instruction(OpProcessPayment, &AmountArgs{Amount: req.Amount}, metas...)
}

// NewCloseMerchantInstruction closes identifier, returning its deposit to
// settlement.
func NewCloseMerchantInstruction(settlement crypto.Address, identifier string) (types.Instruction, error) {
	merchant, _, err := MerchantAddress(identifier)
	if err != nil {
		return types.Instruction{}, err
	}
	return instruction(OpCloseMerchant, &IdentifierArgs{Identifier: identifier},
		types.Writable(settlement, true),
		types.Writable(merchant, false),
	)
}

// NewUpdateMerchantInstruction sets the active flag of identifier. A non-nil
// newSettlement rotates the settlement wallet.
func NewUpdateMerchantInstruction(settlement crypto.Address, identifier string, active bool, newSettlement *crypto.Address) (types.Instruction, error) {
	merchant, _, err := MerchantAddress(identifier)
	if err != nil {
		return types.Instruction{}, err
	}
	metas := []types.AccountMeta{
		types.ReadOnly(settlement, true),
		types.Writable(merchant, false),
	}
	if newSettlement != nil {
		metas = append(metas, types.ReadOnly(*newSettlement, false))
	}
	return instruction(OpUpdateMerchant, &UpdateMerchantArgs{Identifier: identifier, Active: active}, metas...)
}

// NewClaimPlatformFeesInstruction moves amount of collected fees to
// destination, a token account of the fee mint.
func NewClaimPlatformFeesInstruction(authority, destination crypto.Address, amount uint64) (types.Instruction, error) {
	config, _, err := ConfigAddress()
	if err != nil {
		return types.Instruction{}, err
	}
	treasury, _, err := TreasuryAddress()
	if err != nil {
		return types.Instruction{}, err
	}
	return instruction(OpClaimPlatformFees, &AmountArgs{Amount: amount},
		types.ReadOnly(authority, true),
		types.ReadOnly(config, false),
		types.Writable(treasury, false),
		types.Writable(destination, false),
	)
}

// NewSetPausedInstruction toggles the platform pause.
func NewSetPausedInstruction(authority crypto.Address, paused bool) (types.Instruction, error) {
	config, _, err := ConfigAddress()
	if err != nil {
		return types.Instruction{}, err
	}
	return instruction(OpSetPaused, &SetPausedArgs{Paused: paused},
		types.ReadOnly(authority, true),
		types.Writable(config, false),
	)
}
