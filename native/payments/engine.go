package payments

import (
	"fmt"

	"github.com/holiman/uint256"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	"ledgerprograms/native/common"
	"ledgerprograms/native/token"
)

const Name = "payments"

// ProgramID identifies the payments program.
var ProgramID = crypto.ProgramIDFromName(Name)

const (
	configSeed    = "platform_config"
	treasurySeed  = "treasury"
	merchantSeed  = "merchant"
	customerSeed  = "customer"
	tombstoneSeed = "merchant_tombstone/"
)

// ConfigAddress derives the platform config.
func ConfigAddress() (crypto.Address, uint8, error) {
	return crypto.FindProgramAddress([][]byte{[]byte(configSeed)}, ProgramID)
}

// TreasuryAddress derives the fee treasury token account.
func TreasuryAddress() (crypto.Address, uint8, error) {
	return crypto.FindProgramAddress([][]byte{[]byte(treasurySeed), []byte(configSeed)}, ProgramID)
}

// merchantSeeds splits the identifier into seed-sized chunks. Seeds are
// hashed as one concatenation so the split does not change the address
// space.
func merchantSeeds(identifier string) [][]byte {
	seeds := [][]byte{[]byte(merchantSeed)}
	id := []byte(identifier)
	for len(id) > crypto.MaxSeedLength {
		seeds = append(seeds, id[:crypto.MaxSeedLength])
		id = id[crypto.MaxSeedLength:]
	}
	return append(seeds, id)
}

// MerchantAddress derives the merchant registered under identifier.
func MerchantAddress(identifier string) (crypto.Address, uint8, error) {
	if err := validateIdentifier(identifier); err != nil {
		return crypto.Address{}, 0, err
	}
	return crypto.FindProgramAddress(merchantSeeds(identifier), ProgramID)
}

// CustomerAddress derives the spend ledger of customer at merchant.
func CustomerAddress(customer, merchant crypto.Address) (crypto.Address, uint8, error) {
	return crypto.FindProgramAddress([][]byte{[]byte(customerSeed), customer[:], merchant[:]}, ProgramID)
}

func validateIdentifier(identifier string) error {
	if identifier == "" {
		return ErrEmptyIdentifier
	}
	if len(identifier) > MaxIdentifierLength {
		return fmt.Errorf("identifier is %d bytes: %w", len(identifier), ErrIdentifierTooLong)
	}
	return nil
}

func tombstoneKey(identifier string) []byte {
	return []byte(tombstoneSeed + identifier)
}

// SplitFee returns floor(amount*feeRateBps/10000) and the remainder owed to
// the merchant.
func SplitFee(amount uint64, feeRateBps uint16) (fee, net uint64, err error) {
	if feeRateBps > MaxFeeRateBps {
		return 0, 0, ErrInvalidFeeRate
	}
	f := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(feeRateBps)))
	f.Div(f, uint256.NewInt(MaxFeeRateBps))
	if !f.IsUint64() {
		return 0, 0, ErrOverflow
	}
	fee = f.Uint64()
	return fee, amount - fee, nil
}

// Engine implements the platform, merchant and customer ledgers. Token
// movements are delegated to the token engine with the config address
// vouched for as the treasury authority.
type Engine struct {
	tokens *token.Engine
}

func NewEngine(tokens *token.Engine) *Engine {
	if tokens == nil {
		tokens = token.NewEngine()
	}
	return &Engine{tokens: tokens}
}

func (e *Engine) emit(inv *common.Invocation, evt *types.Event) {
	if evt == nil {
		return
	}
	inv.Emit(paymentsEvent{evt: evt})
}

func (e *Engine) loadConfig(acct *common.AccountInfo) (*PlatformConfig, error) {
	want, _, err := ConfigAddress()
	if err != nil {
		return nil, err
	}
	if err := common.RequireAddress(acct, want, "platform config"); err != nil {
		return nil, err
	}
	if acct.IsEmpty() {
		return nil, ErrPlatformNotFound
	}
	if err := common.RequireOwner(acct, ProgramID, "platform config"); err != nil {
		return nil, err
	}
	return DecodePlatformConfig(acct.Data)
}

func (e *Engine) loadMerchant(acct *common.AccountInfo) (*Merchant, error) {
	if acct.IsEmpty() {
		return nil, fmt.Errorf("merchant %s: %w", acct.Address, ErrMerchantNotFound)
	}
	if err := common.RequireOwner(acct, ProgramID, "merchant"); err != nil {
		return nil, err
	}
	m, err := DecodeMerchant(acct.Data)
	if err != nil {
		return nil, err
	}
	seeds := append(merchantSeeds(m.Identifier), []byte{m.Bump})
	want, err := crypto.CreateProgramAddress(seeds, ProgramID)
	if err != nil || want != acct.Address {
		return nil, fmt.Errorf("merchant %s: %w", acct.Address, coreerrors.ErrInvalidSeeds)
	}
	return m, nil
}

func (e *Engine) loadNamedMerchant(acct *common.AccountInfo, identifier string) (*Merchant, error) {
	want, _, err := MerchantAddress(identifier)
	if err != nil {
		return nil, err
	}
	if err := common.RequireAddress(acct, want, "merchant"); err != nil {
		return nil, err
	}
	return e.loadMerchant(acct)
}

// feeTokenAccount loads a token account of the fee mint owned by owner.
func (e *Engine) feeTokenAccount(acct *common.AccountInfo, cfg *PlatformConfig, owner crypto.Address) (*token.Account, error) {
	tok, err := e.tokens.LoadAccount(acct)
	if err != nil {
		return nil, err
	}
	if tok.Mint != cfg.FeeMint {
		return nil, fmt.Errorf("token account %s: %w", acct.Address, ErrMintMismatch)
	}
	if tok.Owner != owner {
		return nil, fmt.Errorf("token account %s owned by %s, want %s: %w", acct.Address, tok.Owner, owner, ErrTokenOwnerMismatch)
	}
	return tok, nil
}

// InitializePlatformAccounts are the accounts of initialize_platform.
type InitializePlatformAccounts struct {
	Authority *common.AccountInfo
	Config    *common.AccountInfo
	Treasury  *common.AccountInfo
	FeeMint   *common.AccountInfo
}

// InitializePlatform creates the config record and its treasury token
// account. It can only succeed once.
func (e *Engine) InitializePlatform(inv *common.Invocation, accts InitializePlatformAccounts, feeRateBps uint16, minAmount, maxAmount uint64) error {
	if feeRateBps > MaxFeeRateBps {
		return fmt.Errorf("fee rate %d bps: %w", feeRateBps, ErrInvalidFeeRate)
	}
	if maxAmount < minAmount {
		return fmt.Errorf("bounds [%d, %d]: %w", minAmount, maxAmount, ErrInvalidBounds)
	}
	if err := common.RequireSigner(accts.Authority, "authority"); err != nil {
		return err
	}
	configAddr, bump, err := ConfigAddress()
	if err != nil {
		return err
	}
	if err := common.RequireAddress(accts.Config, configAddr, "platform config"); err != nil {
		return err
	}
	treasuryAddr, treasuryBump, err := TreasuryAddress()
	if err != nil {
		return err
	}
	if err := common.RequireAddress(accts.Treasury, treasuryAddr, "treasury"); err != nil {
		return err
	}
	if len(accts.Config.Data) > 0 || len(accts.Treasury.Data) > 0 {
		return ErrPlatformExists
	}
	cfg := &PlatformConfig{
		Authority:    accts.Authority.Address,
		Treasury:     treasuryAddr,
		FeeMint:      accts.FeeMint.Address,
		FeeRateBps:   feeRateBps,
		MinAmount:    minAmount,
		MaxAmount:    maxAmount,
		Bump:         bump,
		TreasuryBump: treasuryBump,
	}
	if err := e.tokens.InitializeAccountAt(accts.Authority, accts.Treasury, accts.FeeMint, configAddr); err != nil {
		return err
	}
	if err := common.CreateAccount(accts.Authority, accts.Config, ProgramID, cfg.Encode()); err != nil {
		return err
	}
	e.emit(inv, NewPlatformInitializedEvent(configAddr, cfg))
	return nil
}

// SetPausedAccounts are the accounts of set_paused.
type SetPausedAccounts struct {
	Authority *common.AccountInfo
	Config    *common.AccountInfo
}

// SetPaused toggles the emergency pause that blocks merchant registration
// and payments.
func (e *Engine) SetPaused(inv *common.Invocation, accts SetPausedAccounts, paused bool) error {
	if err := common.RequireSigner(accts.Authority, "authority"); err != nil {
		return err
	}
	if err := common.RequireWritable(accts.Config, "platform config"); err != nil {
		return err
	}
	cfg, err := e.loadConfig(accts.Config)
	if err != nil {
		return err
	}
	if cfg.Authority != accts.Authority.Address {
		return ErrNotPlatformAuthority
	}
	cfg.Paused = paused
	accts.Config.Data = cfg.Encode()
	e.emit(inv, NewPlatformPausedEvent(accts.Config.Address, paused))
	return nil
}

// InitializeMerchantAccounts are the accounts of initialize_merchant.
type InitializeMerchantAccounts struct {
	Payer      *common.AccountInfo
	Config     *common.AccountInfo
	Merchant   *common.AccountInfo
	Settlement *common.AccountInfo
}

// InitializeMerchant registers identifier with a settlement wallet.
// Identifiers of closed merchants stay retired.
func (e *Engine) InitializeMerchant(inv *common.Invocation, accts InitializeMerchantAccounts, identifier string) error {
	if err := validateIdentifier(identifier); err != nil {
		return err
	}
	if err := common.RequireSigner(accts.Payer, "payer"); err != nil {
		return err
	}
	cfg, err := e.loadConfig(accts.Config)
	if err != nil {
		return err
	}
	if cfg.Paused {
		return ErrPlatformPaused
	}
	addr, bump, err := MerchantAddress(identifier)
	if err != nil {
		return err
	}
	if err := common.RequireAddress(accts.Merchant, addr, "merchant"); err != nil {
		return err
	}
	if len(accts.Merchant.Data) > 0 {
		return fmt.Errorf("merchant %q: %w", identifier, ErrMerchantExists)
	}
	if retired, err := e.retired(inv, identifier); err != nil {
		return err
	} else if retired {
		return fmt.Errorf("merchant %q: %w", identifier, ErrIdentifierRetired)
	}
	merchant := &Merchant{
		Identifier: identifier,
		Settlement: accts.Settlement.Address,
		CreatedAt:  inv.Clock.UnixTimestamp,
		Active:     true,
		Bump:       bump,
	}
	if err := common.CreateAccount(accts.Payer, accts.Merchant, ProgramID, merchant.Encode()); err != nil {
		return err
	}
	e.emit(inv, NewMerchantEvent(EventTypeMerchantInitialized, addr, merchant))
	return nil
}

func (e *Engine) retired(inv *common.Invocation, identifier string) (bool, error) {
	if inv.Store == nil {
		return false, nil
	}
	var slot uint64
	return inv.Store.Get(tombstoneKey(identifier), &slot)
}

// UpdateMerchantAccounts are the accounts of update_merchant. NewSettlement
// is optional.
type UpdateMerchantAccounts struct {
	Settlement    *common.AccountInfo
	Merchant      *common.AccountInfo
	NewSettlement *common.AccountInfo
}

// UpdateMerchant sets the active flag and optionally rotates the settlement
// wallet.
func (e *Engine) UpdateMerchant(inv *common.Invocation, accts UpdateMerchantAccounts, identifier string, active bool) error {
	if err := common.RequireSigner(accts.Settlement, "settlement"); err != nil {
		return err
	}
	if err := common.RequireWritable(accts.Merchant, "merchant"); err != nil {
		return err
	}
	merchant, err := e.loadNamedMerchant(accts.Merchant, identifier)
	if err != nil {
		return err
	}
	if merchant.Settlement != accts.Settlement.Address {
		return fmt.Errorf("merchant %q: %w", identifier, ErrNotSettlementAuthority)
	}
	merchant.Active = active
	if accts.NewSettlement != nil {
		merchant.Settlement = accts.NewSettlement.Address
	}
	accts.Merchant.Data = merchant.Encode()
	e.emit(inv, NewMerchantEvent(EventTypeMerchantUpdated, accts.Merchant.Address, merchant))
	return nil
}

// CloseMerchantAccounts are the accounts of close_merchant.
type CloseMerchantAccounts struct {
	Settlement *common.AccountInfo
	Merchant   *common.AccountInfo
}

// CloseMerchant sweeps every lamport of the merchant account to its
// settlement wallet, removes the record and retires the identifier.
func (e *Engine) CloseMerchant(inv *common.Invocation, accts CloseMerchantAccounts, identifier string) error {
	if err := common.RequireSigner(accts.Settlement, "settlement"); err != nil {
		return err
	}
	if err := common.RequireWritable(accts.Settlement, "settlement"); err != nil {
		return err
	}
	if err := common.RequireWritable(accts.Merchant, "merchant"); err != nil {
		return err
	}
	merchant, err := e.loadNamedMerchant(accts.Merchant, identifier)
	if err != nil {
		return err
	}
	if merchant.Settlement != accts.Settlement.Address {
		return fmt.Errorf("merchant %q: %w", identifier, ErrNotSettlementAuthority)
	}
	if err := common.CloseAccount(accts.Merchant, accts.Settlement); err != nil {
		return err
	}
	if inv.Store != nil {
		if err := inv.Store.Put(tombstoneKey(identifier), inv.Clock.Slot); err != nil {
			return err
		}
	}
	merchant.Active = false
	e.emit(inv, NewMerchantEvent(EventTypeMerchantClosed, accts.Merchant.Address, merchant))
	return nil
}

// ProcessPaymentAccounts are the accounts of process_payment. References are
// opaque marker addresses echoed into the payment event.
type ProcessPaymentAccounts struct {
	Customer        *common.AccountInfo
	Config          *common.AccountInfo
	CustomerLedger  *common.AccountInfo
	Merchant        *common.AccountInfo
	CustomerToken   *common.AccountInfo
	SettlementToken *common.AccountInfo
	Treasury        *common.AccountInfo
	References      []*common.AccountInfo
}

// ProcessPayment moves amount from the customer's token account, splitting
// it between the treasury and the merchant's settlement token account, and
// records it on both ledgers.
func (e *Engine) ProcessPayment(inv *common.Invocation, accts ProcessPaymentAccounts, amount uint64) (*Payment, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	if err := common.RequireSigner(accts.Customer, "customer"); err != nil {
		return nil, err
	}
	for _, a := range []*common.AccountInfo{accts.CustomerLedger, accts.Merchant, accts.CustomerToken, accts.SettlementToken, accts.Treasury} {
		if err := common.RequireWritable(a, "payment account"); err != nil {
			return nil, err
		}
	}
	cfg, err := e.loadConfig(accts.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, ErrPlatformPaused
	}
	if amount < cfg.MinAmount {
		return nil, fmt.Errorf("amount %d < %d: %w", amount, cfg.MinAmount, ErrAmountBelowMinimum)
	}
	if amount > cfg.MaxAmount {
		return nil, fmt.Errorf("amount %d > %d: %w", amount, cfg.MaxAmount, ErrAmountAboveMaximum)
	}
	merchant, err := e.loadMerchant(accts.Merchant)
	if err != nil {
		return nil, err
	}
	if !merchant.Active {
		return nil, fmt.Errorf("merchant %q: %w", merchant.Identifier, ErrMerchantInactive)
	}
	if err := common.RequireAddress(accts.Treasury, cfg.Treasury, "treasury"); err != nil {
		return nil, err
	}
	source, err := e.feeTokenAccount(accts.CustomerToken, cfg, accts.Customer.Address)
	if err != nil {
		return nil, err
	}
	if _, err := e.feeTokenAccount(accts.SettlementToken, cfg, merchant.Settlement); err != nil {
		return nil, err
	}
	if source.Amount < amount {
		return nil, fmt.Errorf("customer holds %d, needs %d: %w", source.Amount, amount, ErrInsufficientFunds)
	}
	fee, net, err := SplitFee(amount, cfg.FeeRateBps)
	if err != nil {
		return nil, err
	}

	ledger, err := e.customerLedger(accts)
	if err != nil {
		return nil, err
	}
	if ledger.TotalSpent > ^uint64(0)-amount || merchant.TotalVolume > ^uint64(0)-amount {
		return nil, ErrOverflow
	}

	signers := inv.Signers()
	if fee > 0 {
		if err := e.tokens.Transfer(signers, accts.CustomerToken, accts.Treasury, fee); err != nil {
			return nil, err
		}
	}
	if net > 0 {
		if err := e.tokens.Transfer(signers, accts.CustomerToken, accts.SettlementToken, net); err != nil {
			return nil, err
		}
	}

	ledger.TotalSpent += amount
	ledger.TxCount++
	ledger.LastPayment = inv.Clock.UnixTimestamp
	merchant.TotalVolume += amount
	merchant.TxCount++
	if len(accts.CustomerLedger.Data) == 0 {
		if err := common.CreateAccount(accts.Customer, accts.CustomerLedger, ProgramID, ledger.Encode()); err != nil {
			return nil, err
		}
	} else {
		accts.CustomerLedger.Data = ledger.Encode()
	}
	accts.Merchant.Data = merchant.Encode()

	payment := &Payment{
		Merchant:   accts.Merchant.Address,
		Identifier: merchant.Identifier,
		Customer:   accts.Customer.Address,
		Settlement: merchant.Settlement,
		Mint:       cfg.FeeMint,
		Amount:     amount,
		Fee:        fee,
		Net:        net,
		Slot:       inv.Clock.Slot,
		Timestamp:  inv.Clock.UnixTimestamp,
	}
	for _, ref := range accts.References {
		payment.References = append(payment.References, ref.Address)
	}
	e.emit(inv, NewPaymentProcessedEvent(payment))
	return payment, nil
}

// customerLedger loads the customer's ledger at the merchant or prepares a
// fresh one when this is the first payment.
func (e *Engine) customerLedger(accts ProcessPaymentAccounts) (*Customer, error) {
	addr, bump, err := CustomerAddress(accts.Customer.Address, accts.Merchant.Address)
	if err != nil {
		return nil, err
	}
	if err := common.RequireAddress(accts.CustomerLedger, addr, "customer ledger"); err != nil {
		return nil, err
	}
	if len(accts.CustomerLedger.Data) == 0 {
		return &Customer{Owner: accts.Customer.Address, Merchant: accts.Merchant.Address, Bump: bump}, nil
	}
	if err := common.RequireOwner(accts.CustomerLedger, ProgramID, "customer ledger"); err != nil {
		return nil, err
	}
	ledger, err := DecodeCustomer(accts.CustomerLedger.Data)
	if err != nil {
		return nil, err
	}
	if ledger.Owner != accts.Customer.Address || ledger.Merchant != accts.Merchant.Address {
		return nil, ErrCustomerMismatch
	}
	return ledger, nil
}

// ClaimFeesAccounts are the accounts of claim_platform_fees.
type ClaimFeesAccounts struct {
	Authority   *common.AccountInfo
	Config      *common.AccountInfo
	Treasury    *common.AccountInfo
	Destination *common.AccountInfo
}

// ClaimPlatformFees moves amount out of the treasury. The config address is
// the treasury's token authority and is vouched for here after its
// derivation has been checked.
func (e *Engine) ClaimPlatformFees(inv *common.Invocation, accts ClaimFeesAccounts, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if err := common.RequireSigner(accts.Authority, "authority"); err != nil {
		return err
	}
	cfg, err := e.loadConfig(accts.Config)
	if err != nil {
		return err
	}
	if cfg.Authority != accts.Authority.Address {
		return ErrNotPlatformAuthority
	}
	if err := common.RequireAddress(accts.Treasury, cfg.Treasury, "treasury"); err != nil {
		return err
	}
	treasury, err := e.feeTokenAccount(accts.Treasury, cfg, accts.Config.Address)
	if err != nil {
		return err
	}
	if amount > treasury.Amount {
		return fmt.Errorf("claim %d of %d: %w", amount, treasury.Amount, ErrClaimExceedsTreasury)
	}
	dest, err := e.tokens.LoadAccount(accts.Destination)
	if err != nil {
		return err
	}
	if dest.Mint != cfg.FeeMint {
		return fmt.Errorf("destination %s: %w", accts.Destination.Address, ErrMintMismatch)
	}

	signers := inv.Signers()
	signers.Add(accts.Config.Address)
	if err := e.tokens.Transfer(signers, accts.Treasury, accts.Destination, amount); err != nil {
		return err
	}
	e.emit(inv, NewFeesClaimedEvent(accts.Config.Address, accts.Treasury.Address, accts.Destination.Address, amount, treasury.Amount-amount))
	return nil
}

