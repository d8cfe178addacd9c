package token

import (
	"fmt"

	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	"ledgerprograms/native/common"
)

const Name = "token"

// ProgramID identifies the token program.
var ProgramID = crypto.ProgramIDFromName(Name)

const associatedSeed = "associated"

// AssociatedAddress derives the canonical token account of owner for mint.
func AssociatedAddress(owner, mint crypto.Address) (crypto.Address, uint8, error) {
	return crypto.FindProgramAddress([][]byte{[]byte(associatedSeed), owner[:], mint[:]}, ProgramID)
}

// Engine holds the token state transitions. Other programs call it directly
// with a signer set that includes the derived authorities they vouch for.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// LoadMint decodes an initialised mint owned by the token program.
func (e *Engine) LoadMint(acct *common.AccountInfo) (*Mint, error) {
	if err := common.RequireOwner(acct, ProgramID, "mint"); err != nil {
		return nil, err
	}
	mint, err := DecodeMint(acct.Data)
	if err != nil {
		return nil, err
	}
	if !mint.Initialized {
		return nil, fmt.Errorf("mint %s: %w", acct.Address, ErrUninitialized)
	}
	return mint, nil
}

// LoadAccount decodes an initialised token account owned by the token program.
func (e *Engine) LoadAccount(acct *common.AccountInfo) (*Account, error) {
	if err := common.RequireOwner(acct, ProgramID, "token account"); err != nil {
		return nil, err
	}
	tok, err := DecodeAccount(acct.Data)
	if err != nil {
		return nil, err
	}
	if !tok.Initialized {
		return nil, fmt.Errorf("token account %s: %w", acct.Address, ErrUninitialized)
	}
	return tok, nil
}

// InitializeMint creates a mint at a fresh signer-controlled address.
func (e *Engine) InitializeMint(payer, mint *common.AccountInfo, authority crypto.Address, decimals uint8) error {
	if err := common.RequireSigner(mint, "mint"); err != nil {
		return err
	}
	record := &Mint{Authority: authority, Decimals: decimals, Initialized: true}
	return common.CreateAccount(payer, mint, ProgramID, record.Encode())
}

// InitializeAccountAt creates a token account for owner at target. The caller
// is responsible for target being an address it controls (a signer or an
// address it derived itself).
func (e *Engine) InitializeAccountAt(payer, target, mint *common.AccountInfo, owner crypto.Address) error {
	if _, err := e.LoadMint(mint); err != nil {
		return err
	}
	record := &Account{Mint: mint.Address, Owner: owner, Initialized: true}
	return common.CreateAccount(payer, target, ProgramID, record.Encode())
}

// CreateAssociatedAccount creates the canonical token account for owner.
func (e *Engine) CreateAssociatedAccount(payer, target, owner, mint *common.AccountInfo) error {
	want, _, err := AssociatedAddress(owner.Address, mint.Address)
	if err != nil {
		return err
	}
	if err := common.RequireAddress(target, want, "associated token account"); err != nil {
		return err
	}
	return e.InitializeAccountAt(payer, target, mint, owner.Address)
}

// MintTo grows supply and dest by amount.
func (e *Engine) MintTo(signers common.SignerSet, mintInfo, dest *common.AccountInfo, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if err := common.RequireWritable(mintInfo, "mint"); err != nil {
		return err
	}
	if err := common.RequireWritable(dest, "destination"); err != nil {
		return err
	}
	mint, err := e.LoadMint(mintInfo)
	if err != nil {
		return err
	}
	if !signers.Has(mint.Authority) {
		return fmt.Errorf("mint %s: %w", mintInfo.Address, ErrNotMintAuthority)
	}
	holder, err := e.LoadAccount(dest)
	if err != nil {
		return err
	}
	if holder.Mint != mintInfo.Address {
		return fmt.Errorf("destination %s: %w", dest.Address, ErrMintMismatch)
	}
	if mint.Supply > ^uint64(0)-amount || holder.Amount > ^uint64(0)-amount {
		return ErrOverflow
	}
	mint.Supply += amount
	holder.Amount += amount
	mintInfo.Data = mint.Encode()
	dest.Data = holder.Encode()
	return nil
}

// Transfer moves amount between two token accounts of the same mint. The
// source owner must be in signers.
func (e *Engine) Transfer(signers common.SignerSet, from, to *common.AccountInfo, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if err := common.RequireWritable(from, "source"); err != nil {
		return err
	}
	if err := common.RequireWritable(to, "destination"); err != nil {
		return err
	}
	src, err := e.LoadAccount(from)
	if err != nil {
		return err
	}
	dst, err := e.LoadAccount(to)
	if err != nil {
		return err
	}
	if src.Mint != dst.Mint {
		return fmt.Errorf("%s -> %s: %w", from.Address, to.Address, ErrMintMismatch)
	}
	if !signers.Has(src.Owner) {
		return fmt.Errorf("source %s: %w", from.Address, ErrOwnerMismatch)
	}
	if src.Amount < amount {
		return fmt.Errorf("source %s holds %d, needs %d: %w", from.Address, src.Amount, amount, ErrInsufficientTokens)
	}
	if from.Address == to.Address {
		return nil
	}
	if dst.Amount > ^uint64(0)-amount {
		return ErrOverflow
	}
	src.Amount -= amount
	dst.Amount += amount
	from.Data = src.Encode()
	to.Data = dst.Encode()
	return nil
}

// Holding implements common.SupplyAuditor. Mints report their supply under
// their own address, token accounts report their balance under their mint.
func (e *Engine) Holding(addr crypto.Address, acct *types.Account) (crypto.Address, uint64, bool, bool) {
	if acct == nil || acct.Owner != ProgramID {
		return crypto.Address{}, 0, false, false
	}
	switch {
	case types.HasDiscriminator(acct.Data, mintRecord):
		mint, err := DecodeMint(acct.Data)
		if err != nil {
			return crypto.Address{}, 0, false, false
		}
		return addr, mint.Supply, true, true
	case types.HasDiscriminator(acct.Data, accountRecord):
		tok, err := DecodeAccount(acct.Data)
		if err != nil {
			return crypto.Address{}, 0, false, false
		}
		return tok.Mint, tok.Amount, false, true
	default:
		return crypto.Address{}, 0, false, false
	}
}

// CheckDelegated implements common.DelegateAuditor. Another program may only
// change the balance of an existing token account; mints, lamports and the
// account's mint and owner stay as they were. Conservation of the balances
// themselves is checked through Holding.
func (e *Engine) CheckDelegated(addr crypto.Address, pre, post *types.Account) error {
	if post.Owner != ProgramID || post.Lamports != pre.Lamports {
		return fmt.Errorf("%s: %w", addr, ErrDelegatedChange)
	}
	before, err := DecodeAccount(pre.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", addr, ErrDelegatedChange)
	}
	after, err := DecodeAccount(post.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", addr, ErrDelegatedChange)
	}
	if before.Mint != after.Mint || before.Owner != after.Owner || before.Initialized != after.Initialized {
		return fmt.Errorf("%s: %w", addr, ErrDelegatedChange)
	}
	return nil
}
