package dice

import (
	"fmt"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	"ledgerprograms/native/common"
)

const Name = "dice"

// ProgramID identifies the dice program.
var ProgramID = crypto.ProgramIDFromName(Name)

// DefaultRefundTimeoutSlots is how long a player must wait before reclaiming
// an unresolved bet.
const DefaultRefundTimeoutSlots uint64 = 1000

const (
	vaultSeed = "vault"
	betSeed   = "bet"
)

// VaultAddress derives the vault of house.
func VaultAddress(house crypto.Address) (crypto.Address, uint8, error) {
	return crypto.FindProgramAddress([][]byte{[]byte(vaultSeed), house[:]}, ProgramID)
}

// BetAddress derives the bet of vault for seed.
func BetAddress(vault crypto.Address, seed Seed) (crypto.Address, uint8, error) {
	return crypto.FindProgramAddress([][]byte{[]byte(betSeed), vault[:], seed[:]}, ProgramID)
}

// Engine implements the vault and bet state machine.
type Engine struct {
	refundTimeout uint64
}

// NewEngine creates an engine with the default refund timeout.
func NewEngine() *Engine {
	return &Engine{refundTimeout: DefaultRefundTimeoutSlots}
}

// SetRefundTimeout overrides the refund timeout in slots. Zero restores the
// default.
func (e *Engine) SetRefundTimeout(slots uint64) {
	if slots == 0 {
		slots = DefaultRefundTimeoutSlots
	}
	e.refundTimeout = slots
}

// RefundTimeout returns the configured refund timeout in slots.
func (e *Engine) RefundTimeout() uint64 { return e.refundTimeout }

func (e *Engine) emit(inv *common.Invocation, evt *types.Event) {
	if evt == nil {
		return
	}
	inv.Emit(diceEvent{evt: evt})
}

func (e *Engine) loadVault(acct *common.AccountInfo, house crypto.Address) (*Vault, error) {
	want, _, err := VaultAddress(house)
	if err != nil {
		return nil, err
	}
	if err := common.RequireAddress(acct, want, "vault"); err != nil {
		return nil, err
	}
	if acct.IsEmpty() {
		return nil, fmt.Errorf("vault %s: %w", acct.Address, ErrVaultNotFound)
	}
	if err := common.RequireOwner(acct, ProgramID, "vault"); err != nil {
		return nil, err
	}
	vault, err := DecodeVault(acct.Data)
	if err != nil {
		return nil, err
	}
	if vault.House != house {
		return nil, fmt.Errorf("vault %s: %w", acct.Address, ErrNotVaultHouse)
	}
	return vault, nil
}

func (e *Engine) loadBet(acct *common.AccountInfo) (*Bet, error) {
	if acct.IsEmpty() {
		return nil, fmt.Errorf("bet %s: %w", acct.Address, ErrBetNotFound)
	}
	if err := common.RequireOwner(acct, ProgramID, "bet"); err != nil {
		return nil, err
	}
	return DecodeBet(acct.Data)
}

// InitializeAccounts are the accounts of initialize.
type InitializeAccounts struct {
	House *common.AccountInfo
	Vault *common.AccountInfo
}

// Initialize creates the house vault and funds it with amount on top of the
// rent deposit.
func (e *Engine) Initialize(inv *common.Invocation, accts InitializeAccounts, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if err := common.RequireSigner(accts.House, "house"); err != nil {
		return err
	}
	addr, bump, err := VaultAddress(accts.House.Address)
	if err != nil {
		return err
	}
	if err := common.RequireAddress(accts.Vault, addr, "vault"); err != nil {
		return err
	}
	if len(accts.Vault.Data) > 0 {
		return fmt.Errorf("vault %s: %w", addr, ErrVaultExists)
	}
	vault := &Vault{House: accts.House.Address, Bump: bump}
	if err := common.CreateAccount(accts.House, accts.Vault, ProgramID, vault.Encode()); err != nil {
		return err
	}
	if err := common.MoveLamports(accts.House, accts.Vault, amount); err != nil {
		return err
	}
	e.emit(inv, NewVaultInitializedEvent(addr, vault, amount))
	return nil
}

// PlaceBetAccounts are the accounts of place_bet.
type PlaceBetAccounts struct {
	Player *common.AccountInfo
	House  *common.AccountInfo
	Vault  *common.AccountInfo
	Bet    *common.AccountInfo
}

// PlaceBet escrows amount in a new bet account derived from the vault and
// seed. The vault must be able to cover the bet's exposure on top of every
// other open bet.
func (e *Engine) PlaceBet(inv *common.Invocation, accts PlaceBetAccounts, seed Seed, roll uint8, amount uint64) error {
	if roll < MinRoll || roll > MaxRoll {
		return fmt.Errorf("roll %d: %w", roll, ErrInvalidRoll)
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	if err := common.RequireSigner(accts.Player, "player"); err != nil {
		return err
	}
	if err := common.RequireWritable(accts.Vault, "vault"); err != nil {
		return err
	}
	vault, err := e.loadVault(accts.Vault, accts.House.Address)
	if err != nil {
		return err
	}
	betAddr, bump, err := BetAddress(accts.Vault.Address, seed)
	if err != nil {
		return err
	}
	if err := common.RequireAddress(accts.Bet, betAddr, "bet"); err != nil {
		return err
	}
	if len(accts.Bet.Data) > 0 {
		return fmt.Errorf("bet %s: %w", betAddr, ErrBetExists)
	}

	exposure, err := Exposure(amount, roll)
	if err != nil {
		return err
	}
	if free := common.FreeLamports(accts.Vault, vault.Reserved); free < exposure {
		return fmt.Errorf("vault free balance %d, exposure %d: %w", free, exposure, ErrInsufficientVault)
	}
	if vault.Reserved > ^uint64(0)-exposure {
		return ErrOverflow
	}

	bet := &Bet{
		Player:    accts.Player.Address,
		House:     accts.House.Address,
		Seed:      seed,
		Slot:      inv.Clock.Slot,
		CreatedAt: inv.Clock.UnixTimestamp,
		Amount:    amount,
		Roll:      roll,
		Bump:      bump,
	}
	if err := common.CreateAccount(accts.Player, accts.Bet, ProgramID, bet.Encode()); err != nil {
		return err
	}
	if err := common.MoveLamports(accts.Player, accts.Bet, amount); err != nil {
		return err
	}
	vault.Reserved += exposure
	vault.OpenBets++
	accts.Vault.Data = vault.Encode()

	e.emit(inv, NewBetPlacedEvent(betAddr, bet))
	return nil
}

// ResolveAccounts are the accounts of resolve_bet.
type ResolveAccounts struct {
	House  *common.AccountInfo
	Player *common.AccountInfo
	Vault  *common.AccountInfo
	Bet    *common.AccountInfo
}

// ResolveBet verifies the house signature over the bet record, settles the
// stake according to the outcome it commits to and closes the bet.
func (e *Engine) ResolveBet(inv *common.Invocation, accts ResolveAccounts, sig crypto.Signature, seed Seed) error {
	if err := common.RequireSigner(accts.House, "house"); err != nil {
		return err
	}
	for _, a := range []*common.AccountInfo{accts.Player, accts.Vault, accts.Bet} {
		if err := common.RequireWritable(a, "settlement account"); err != nil {
			return err
		}
	}
	vault, err := e.loadVault(accts.Vault, accts.House.Address)
	if err != nil {
		return err
	}
	betAddr, _, err := BetAddress(accts.Vault.Address, seed)
	if err != nil {
		return err
	}
	if err := common.RequireAddress(accts.Bet, betAddr, "bet"); err != nil {
		return err
	}
	bet, err := e.loadBet(accts.Bet)
	if err != nil {
		return err
	}
	if bet.House != accts.House.Address {
		return fmt.Errorf("bet %s: %w", betAddr, ErrNotVaultHouse)
	}
	if bet.Player != accts.Player.Address {
		return fmt.Errorf("bet %s: %w", betAddr, ErrPlayerMismatch)
	}
	outcome, err := VerifyResolution(accts.House.Address, accts.Bet.Data, sig)
	if err != nil {
		return fmt.Errorf("bet %s: %w", betAddr, err)
	}
	exposure, err := Exposure(bet.Amount, bet.Roll)
	if err != nil {
		return err
	}
	if vault.Reserved < exposure || vault.OpenBets == 0 {
		return fmt.Errorf("vault %s reservation underflow: %w", accts.Vault.Address, ErrOverflow)
	}

	var payout uint64
	if outcome < bet.Roll {
		payout = bet.Amount + exposure
		if err := common.MoveLamports(accts.Bet, accts.Player, bet.Amount); err != nil {
			return err
		}
		if err := common.MoveLamports(accts.Vault, accts.Player, exposure); err != nil {
			return err
		}
	} else {
		if err := common.MoveLamports(accts.Bet, accts.Vault, bet.Amount); err != nil {
			return err
		}
	}
	vault.Reserved -= exposure
	vault.OpenBets--
	accts.Vault.Data = vault.Encode()
	if err := common.CloseAccount(accts.Bet, accts.Player); err != nil {
		return err
	}

	e.emit(inv, NewBetResolvedEvent(betAddr, bet, outcome, payout))
	return nil
}

// RefundAccounts are the accounts of refund_bet.
type RefundAccounts struct {
	Player *common.AccountInfo
	House  *common.AccountInfo
	Vault  *common.AccountInfo
	Bet    *common.AccountInfo
}

// RefundBet returns the stake and rent deposit of an unresolved bet to its
// player once the refund timeout has elapsed.
func (e *Engine) RefundBet(inv *common.Invocation, accts RefundAccounts) error {
	if err := common.RequireSigner(accts.Player, "player"); err != nil {
		return err
	}
	for _, a := range []*common.AccountInfo{accts.Player, accts.Vault, accts.Bet} {
		if err := common.RequireWritable(a, "refund account"); err != nil {
			return err
		}
	}
	bet, err := e.loadBet(accts.Bet)
	if err != nil {
		return err
	}
	if bet.Player != accts.Player.Address {
		return fmt.Errorf("bet %s: %w", accts.Bet.Address, ErrNotBetPlayer)
	}
	if bet.House != accts.House.Address {
		return fmt.Errorf("bet %s house %s: %w", accts.Bet.Address, bet.House, coreerrors.ErrInvalidSeeds)
	}
	vault, err := e.loadVault(accts.Vault, bet.House)
	if err != nil {
		return err
	}
	want, err := crypto.CreateProgramAddress([][]byte{[]byte(betSeed), accts.Vault.Address[:], bet.Seed[:], {bet.Bump}}, ProgramID)
	if err != nil || want != accts.Bet.Address {
		return fmt.Errorf("bet %s: %w", accts.Bet.Address, coreerrors.ErrInvalidSeeds)
	}
	if inv.Clock.Slot < bet.Slot || inv.Clock.Slot-bet.Slot < e.refundTimeout {
		return fmt.Errorf("bet placed at slot %d, now %d, timeout %d: %w", bet.Slot, inv.Clock.Slot, e.refundTimeout, ErrRefundTooEarly)
	}
	exposure, err := Exposure(bet.Amount, bet.Roll)
	if err != nil {
		return err
	}
	if vault.Reserved < exposure || vault.OpenBets == 0 {
		return fmt.Errorf("vault %s reservation underflow: %w", accts.Vault.Address, ErrOverflow)
	}
	vault.Reserved -= exposure
	vault.OpenBets--
	accts.Vault.Data = vault.Encode()
	if err := common.CloseAccount(accts.Bet, accts.Player); err != nil {
		return err
	}

	e.emit(inv, NewBetRefundedEvent(accts.Bet.Address, bet))
	return nil
}

// WithdrawAccounts are the accounts of withdraw.
type WithdrawAccounts struct {
	House *common.AccountInfo
	Vault *common.AccountInfo
}

// Withdraw returns unreserved vault lamports to the house. Neither the rent
// deposit nor the exposure of open bets can be withdrawn.
func (e *Engine) Withdraw(inv *common.Invocation, accts WithdrawAccounts, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if err := common.RequireSigner(accts.House, "house"); err != nil {
		return err
	}
	if err := common.RequireWritable(accts.Vault, "vault"); err != nil {
		return err
	}
	vault, err := e.loadVault(accts.Vault, accts.House.Address)
	if err != nil {
		return err
	}
	if free := common.FreeLamports(accts.Vault, vault.Reserved); free < amount {
		return fmt.Errorf("free %d, requested %d: %w", free, amount, ErrWithdrawExceedsFree)
	}
	if err := common.MoveLamports(accts.Vault, accts.House, amount); err != nil {
		return err
	}
	e.emit(inv, NewVaultWithdrawnEvent(accts.Vault.Address, vault, amount))
	return nil
}
