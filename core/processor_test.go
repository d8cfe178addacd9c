package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/events"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	nativecommon "ledgerprograms/native/common"
	"ledgerprograms/native/dice"
	"ledgerprograms/native/payments"
	"ledgerprograms/native/system"
	"ledgerprograms/native/token"
	"ledgerprograms/storage"
	"ledgerprograms/storage/trie"
)

const sol = 1_000_000_000

// rogue misbehaves on request so the audit can be exercised.
type rogue struct{}

const (
	rogueMintLamports uint8 = iota
	rogueDrainForeign
	rogueTouchReadOnly
	rogueStarveRent
	rogueFail
)

var rogueID = crypto.ProgramIDFromName("rogue")

func (rogue) ID() crypto.Address { return rogueID }
func (rogue) Name() string       { return "rogue" }

func (rogue) Execute(inv *nativecommon.Invocation) error {
	op, err := inv.Opcode()
	if err != nil {
		return err
	}
	target, err := inv.Account(0)
	if err != nil {
		return err
	}
	switch op {
	case rogueMintLamports, rogueTouchReadOnly:
		target.Lamports += 1
	case rogueDrainForeign:
		other, err := inv.Account(1)
		if err != nil {
			return err
		}
		target.Lamports -= 10
		other.Lamports += 10
	case rogueStarveRent:
		target.Owner = rogueID
		target.Data = make([]byte, 64)
	case rogueFail:
		target.Lamports = 0
		return errors.New("rogue: refused")
	}
	return nil
}

func rogueInstruction(op uint8, metas ...types.AccountMeta) types.Instruction {
	return types.Instruction{ProgramID: rogueID, Accounts: metas, Data: []byte{op}}
}

type recorder struct {
	mu     sync.Mutex
	events []events.Committed
}

func (r *recorder) Emit(evt events.Event) {
	committed, ok := evt.(events.Committed)
	if !ok {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, committed)
	r.mu.Unlock()
}

type harness struct {
	sp        *StateProcessor
	collector crypto.Address
	nonce     uint64
}

func newHarness(t *testing.T, cfg Config, extra ...nativecommon.Program) *harness {
	t.Helper()
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)
	if cfg.FeeCollector == (crypto.Address{}) {
		collector, err := crypto.GeneratePrivateKey()
		require.NoError(t, err)
		cfg.FeeCollector = collector.Address()
	}
	tokens := token.NewEngine()
	programs := []nativecommon.Program{
		system.New(),
		token.New(tokens),
		dice.New(dice.NewEngine()),
		payments.New(payments.NewEngine(tokens)),
		rogue{},
	}
	sp, err := NewStateProcessor(tr, cfg, append(programs, extra...)...)
	require.NoError(t, err)
	return &harness{sp: sp, collector: cfg.FeeCollector}
}

func (h *harness) fund(t *testing.T, lamports uint64) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, h.sp.PutAccount(key.Address(), &types.Account{Lamports: lamports}))
	return key
}

func (h *harness) lamports(t *testing.T, addr crypto.Address) uint64 {
	t.Helper()
	acct, err := h.sp.Account(addr)
	require.NoError(t, err)
	return acct.Lamports
}

func (h *harness) tx(t *testing.T, payer *crypto.PrivateKey, ixs []types.Instruction, signers ...*crypto.PrivateKey) *types.Transaction {
	t.Helper()
	h.nonce++
	tx := types.NewTransaction(payer.Address(), h.nonce, ixs...)
	require.NoError(t, tx.Sign(append([]*crypto.PrivateKey{payer}, signers...)...))
	return tx
}

func (h *harness) submit(t *testing.T, payer *crypto.PrivateKey, ixs []types.Instruction, signers ...*crypto.PrivateKey) (*types.Receipt, error) {
	t.Helper()
	return h.sp.ApplyTransaction(context.Background(), h.tx(t, payer, ixs, signers...))
}

func TestTransferChargesSignatureFee(t *testing.T) {
	h := newHarness(t, Config{LamportsPerSignature: 5000})
	alice := h.fund(t, sol)
	bob, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	receipt, err := h.submit(t, alice, []types.Instruction{system.NewTransferInstruction(alice.Address(), bob.Address(), 1000)})
	require.NoError(t, err)
	require.Equal(t, uint64(5000), receipt.Fee)

	require.Equal(t, uint64(sol-1000-5000), h.lamports(t, alice.Address()))
	require.Equal(t, uint64(1000), h.lamports(t, bob.Address()))
	require.Equal(t, uint64(5000), h.lamports(t, h.collector))
}

func TestRelayPaysFeeForEverySignature(t *testing.T) {
	h := newHarness(t, Config{LamportsPerSignature: 5000})
	relay := h.fund(t, sol)
	alice := h.fund(t, sol)
	bob, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	_, err = h.submit(t, relay, []types.Instruction{system.NewTransferInstruction(alice.Address(), bob.Address(), 10)}, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(sol-10000), h.lamports(t, relay.Address()))
	require.Equal(t, uint64(sol-10), h.lamports(t, alice.Address()))
}

func TestFailedTransactionLeavesNoTrace(t *testing.T) {
	h := newHarness(t, Config{})
	alice := h.fund(t, sol)
	bob, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	before := h.sp.PendingRoot()

	_, err = h.submit(t, alice, []types.Instruction{
		system.NewTransferInstruction(alice.Address(), bob.Address(), 1000),
		rogueInstruction(rogueFail, types.Writable(alice.Address(), true)),
	})
	require.Error(t, err)
	require.Equal(t, uint64(sol), h.lamports(t, alice.Address()))
	require.Equal(t, uint64(0), h.lamports(t, bob.Address()))
	require.Equal(t, uint64(0), h.lamports(t, h.collector))
	require.Equal(t, before, h.sp.PendingRoot())
}

func TestDuplicateTransactionRejected(t *testing.T) {
	h := newHarness(t, Config{})
	alice := h.fund(t, sol)
	bob, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	tx := h.tx(t, alice, []types.Instruction{system.NewTransferInstruction(alice.Address(), bob.Address(), 1)})
	_, err = h.sp.ApplyTransaction(context.Background(), tx)
	require.NoError(t, err)
	_, err = h.sp.ApplyTransaction(context.Background(), tx)
	require.ErrorIs(t, err, coreerrors.ErrDuplicateTransaction)
	require.Equal(t, uint64(1), h.lamports(t, bob.Address()))
}

func TestRejectsUnsignedAuthority(t *testing.T) {
	h := newHarness(t, Config{})
	relay := h.fund(t, sol)
	alice := h.fund(t, sol)
	bob, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	tx := types.NewTransaction(relay.Address(), 1, system.NewTransferInstruction(alice.Address(), bob.Address(), 1))
	require.NoError(t, tx.Sign(relay))
	_, err = h.sp.ApplyTransaction(context.Background(), tx)
	require.ErrorIs(t, err, coreerrors.ErrMissingRequiredSig)
	require.Equal(t, types.KindAuthorization, types.KindOf(err))
}

func TestRejectsEmptyAndUnknownPrograms(t *testing.T) {
	h := newHarness(t, Config{})
	alice := h.fund(t, sol)

	_, err := h.submit(t, alice, nil)
	require.ErrorIs(t, err, coreerrors.ErrEmptyTransaction)

	_, err = h.submit(t, alice, []types.Instruction{{ProgramID: crypto.ProgramIDFromName("missing"), Data: []byte{0}}})
	require.ErrorIs(t, err, coreerrors.ErrUnknownProgram)
}

func TestAuditCatchesMisbehavingPrograms(t *testing.T) {
	h := newHarness(t, Config{})
	alice := h.fund(t, sol)
	victim := h.fund(t, sol)
	unfunded, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	cases := []struct {
		name string
		ix   types.Instruction
		want error
	}{
		{"mints lamports", rogueInstruction(rogueMintLamports, types.Writable(alice.Address(), true)), coreerrors.ErrUnbalancedInstruction},
		{"drains foreign account", rogueInstruction(rogueDrainForeign, types.Writable(victim.Address(), false), types.Writable(alice.Address(), true)), coreerrors.ErrExternalAccountChanged},
		{"writes read-only account", rogueInstruction(rogueTouchReadOnly, types.ReadOnly(alice.Address(), true)), coreerrors.ErrAccountNotWritable},
		{"leaves record below rent", rogueInstruction(rogueStarveRent, types.Writable(unfunded.Address(), false)), coreerrors.ErrAccountNotRentExempt},
		{"assigns unsigned funded account", rogueInstruction(rogueStarveRent, types.Writable(victim.Address(), false)), coreerrors.ErrExternalAccountChanged},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.submit(t, alice, []types.Instruction{tc.ix})
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Equal(t, uint64(sol), h.lamports(t, victim.Address()))
}

func TestPausedProgramRejected(t *testing.T) {
	h := newHarness(t, Config{Pauses: nativecommon.StaticPauses{system.Name: true}})
	alice := h.fund(t, sol)
	bob, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	_, err = h.submit(t, alice, []types.Instruction{system.NewTransferInstruction(alice.Address(), bob.Address(), 1)})
	require.ErrorIs(t, err, coreerrors.ErrProgramPaused)
}

func TestQuotaLimitsRequestsPerEpoch(t *testing.T) {
	h := newHarness(t, Config{Quotas: map[string]nativecommon.Quota{
		system.Name: {MaxRequestsPerEpoch: 2, EpochSlots: 10},
	}})
	alice := h.fund(t, sol)
	bob, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	transfer := []types.Instruction{system.NewTransferInstruction(alice.Address(), bob.Address(), 1)}

	for i := 0; i < 2; i++ {
		_, err := h.submit(t, alice, transfer)
		require.NoError(t, err)
	}
	_, err = h.submit(t, alice, transfer)
	require.ErrorIs(t, err, coreerrors.ErrQuotaExceeded)

	_, err = h.sp.AdvanceSlot(10, time.Now())
	require.NoError(t, err)
	_, err = h.submit(t, alice, transfer)
	require.NoError(t, err)
}

func TestAdvanceSlotAndCommit(t *testing.T) {
	h := newHarness(t, Config{})
	start := time.Unix(1_700_000_000, 0)
	clock, err := h.sp.AdvanceSlot(5, start)
	require.NoError(t, err)
	require.Equal(t, uint64(5), clock.Slot)

	// A clock that runs backwards keeps the last timestamp.
	clock, err = h.sp.AdvanceSlot(1, start.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, start.Unix(), clock.UnixTimestamp)

	h.fund(t, sol)
	pending := h.sp.PendingRoot()
	root, err := h.sp.Commit(clock.Slot)
	require.NoError(t, err)
	require.Equal(t, pending, root)
	require.Equal(t, root, h.sp.CurrentRoot())
}

func TestDiceRoundPublishesCommittedEvents(t *testing.T) {
	h := newHarness(t, Config{})
	rec := &recorder{}
	h.sp.Subscribe(rec)
	house := h.fund(t, 100*sol)
	player := h.fund(t, 10*sol)

	initIx, err := dice.NewInitializeInstruction(house.Address(), 20*sol)
	require.NoError(t, err)
	_, err = h.submit(t, house, []types.Instruction{initIx})
	require.NoError(t, err)

	seed := dice.SeedFromUint64(7)
	placeIx, bet, err := dice.NewPlaceBetInstruction(player.Address(), house.Address(), seed, 50, sol)
	require.NoError(t, err)
	receipt, err := h.submit(t, player, []types.Instruction{placeIx})
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	require.Equal(t, dice.EventTypeBetPlaced, receipt.Events[0].Type)

	betAcct, err := h.sp.Account(bet)
	require.NoError(t, err)
	sig := dice.SignBet(house, betAcct.Data)
	resolveIx, err := dice.NewResolveBetInstruction(house.Address(), player.Address(), seed, sig)
	require.NoError(t, err)
	_, err = h.submit(t, house, []types.Instruction{resolveIx})
	require.NoError(t, err)

	closed, err := h.sp.Account(bet)
	require.NoError(t, err)
	require.True(t, closed.IsEmpty())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	var typesSeen []string
	for _, evt := range rec.events {
		typesSeen = append(typesSeen, evt.EventType())
		require.NotNil(t, evt.Receipt)
	}
	require.Equal(t, []string{dice.EventTypeVaultInitialized, dice.EventTypeBetPlaced, dice.EventTypeBetResolved}, typesSeen, fmt.Sprint(typesSeen))
}

func (h *harness) tokenBalance(t *testing.T, addr crypto.Address) uint64 {
	t.Helper()
	acct, err := h.sp.Account(addr)
	require.NoError(t, err)
	tok, err := token.DecodeAccount(acct.Data)
	require.NoError(t, err)
	return tok.Amount
}

func (h *harness) tokenSupply(t *testing.T, mint crypto.Address) uint64 {
	t.Helper()
	acct, err := h.sp.Account(mint)
	require.NoError(t, err)
	m, err := token.DecodeMint(acct.Data)
	require.NoError(t, err)
	return m.Supply
}

// mintFixture is a mint held by authority with associated accounts for the
// listed owners.
type mintFixture struct {
	authority *crypto.PrivateKey
	mint      crypto.Address
	accounts  map[crypto.Address]crypto.Address
}

func (h *harness) newMint(t *testing.T, owners ...crypto.Address) *mintFixture {
	t.Helper()
	f := &mintFixture{authority: h.fund(t, 100*sol), accounts: map[crypto.Address]crypto.Address{}}
	mintKey, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	f.mint = mintKey.Address()
	_, err = h.submit(t, f.authority, []types.Instruction{token.NewInitializeMintInstruction(f.authority.Address(), f.mint, f.authority.Address(), 6)}, mintKey)
	require.NoError(t, err)
	for _, owner := range append([]crypto.Address{f.authority.Address()}, owners...) {
		ix, ata, err := token.NewCreateAssociatedAccountInstruction(f.authority.Address(), owner, f.mint)
		require.NoError(t, err)
		_, err = h.submit(t, f.authority, []types.Instruction{ix})
		require.NoError(t, err)
		f.accounts[owner] = ata
	}
	return f
}

func (h *harness) mintTo(t *testing.T, f *mintFixture, owner crypto.Address, amount uint64) {
	t.Helper()
	_, err := h.submit(t, f.authority, []types.Instruction{token.NewMintToInstruction(f.authority.Address(), f.mint, f.accounts[owner], amount)})
	require.NoError(t, err)
}

func TestPaymentsRoundTripConservesTokens(t *testing.T) {
	h := newHarness(t, Config{})
	customer := h.fund(t, 10*sol)
	settlement := h.fund(t, sol)
	f := h.newMint(t, customer.Address(), settlement.Address())
	h.mintTo(t, f, customer.Address(), 1_000_000)
	authority := f.authority

	ix, err := payments.NewInitializePlatformInstruction(authority.Address(), f.mint, 250, 100, 100_000)
	require.NoError(t, err)
	_, err = h.submit(t, authority, []types.Instruction{ix})
	require.NoError(t, err)

	ix, err = payments.NewInitializeMerchantInstruction(settlement.Address(), settlement.Address(), "coffee-shop")
	require.NoError(t, err)
	_, err = h.submit(t, settlement, []types.Instruction{ix})
	require.NoError(t, err)

	marker, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	pay := func(amount uint64) (*types.Receipt, error) {
		ix, err := payments.NewProcessPaymentInstruction(payments.PaymentRequest{
			Customer:        customer.Address(),
			Identifier:      "coffee-shop",
			CustomerToken:   f.accounts[customer.Address()],
			SettlementToken: f.accounts[settlement.Address()],
			Amount:          amount,
			References:      []crypto.Address{marker.Address()},
		})
		require.NoError(t, err)
		return h.submit(t, customer, []types.Instruction{ix})
	}

	// The first payment creates the customer ledger.
	receipt, err := pay(10_000)
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	require.Equal(t, payments.EventTypePaymentProcessed, receipt.Events[0].Type)
	_, err = pay(2_000)
	require.NoError(t, err)

	treasury, _, err := payments.TreasuryAddress()
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000-12_000), h.tokenBalance(t, f.accounts[customer.Address()]))
	require.Equal(t, uint64(9_750+1_950), h.tokenBalance(t, f.accounts[settlement.Address()]))
	require.Equal(t, uint64(250+50), h.tokenBalance(t, treasury))

	merchant, _, err := payments.MerchantAddress("coffee-shop")
	require.NoError(t, err)
	ledgerAddr, _, err := payments.CustomerAddress(customer.Address(), merchant)
	require.NoError(t, err)
	ledgerAcct, err := h.sp.Account(ledgerAddr)
	require.NoError(t, err)
	spent, err := payments.DecodeCustomer(ledgerAcct.Data)
	require.NoError(t, err)
	require.Equal(t, uint64(12_000), spent.TotalSpent)
	require.Equal(t, uint64(2), spent.TxCount)

	ix, err = payments.NewClaimPlatformFeesInstruction(authority.Address(), f.accounts[authority.Address()], 300)
	require.NoError(t, err)
	_, err = h.submit(t, authority, []types.Instruction{ix})
	require.NoError(t, err)
	require.Equal(t, uint64(0), h.tokenBalance(t, treasury))
	require.Equal(t, uint64(300), h.tokenBalance(t, f.accounts[authority.Address()]))

	var held uint64
	for _, ata := range f.accounts {
		held += h.tokenBalance(t, ata)
	}
	held += h.tokenBalance(t, treasury)
	require.Equal(t, h.tokenSupply(t, f.mint), held)
}

func TestDerivedAccountsCreatableAfterStrayDeposit(t *testing.T) {
	h := newHarness(t, Config{})
	griefer := h.fund(t, sol)
	house := h.fund(t, 100*sol)
	f := h.newMint(t)

	vault, _, err := dice.VaultAddress(house.Address())
	require.NoError(t, err)
	config, _, err := payments.ConfigAddress()
	require.NoError(t, err)
	treasury, _, err := payments.TreasuryAddress()
	require.NoError(t, err)
	for _, addr := range []crypto.Address{vault, config, treasury} {
		_, err := h.submit(t, griefer, []types.Instruction{system.NewTransferInstruction(griefer.Address(), addr, 1)})
		require.NoError(t, err)
	}

	initIx, err := dice.NewInitializeInstruction(house.Address(), 20*sol)
	require.NoError(t, err)
	_, err = h.submit(t, house, []types.Instruction{initIx})
	require.NoError(t, err)
	vaultAcct, err := h.sp.Account(vault)
	require.NoError(t, err)
	require.Equal(t, dice.ProgramID, vaultAcct.Owner)
	require.Equal(t, types.RentExemptMinimum(len(vaultAcct.Data))+20*sol, vaultAcct.Lamports)

	platformIx, err := payments.NewInitializePlatformInstruction(f.authority.Address(), f.mint, 250, 100, 100_000)
	require.NoError(t, err)
	_, err = h.submit(t, f.authority, []types.Instruction{platformIx})
	require.NoError(t, err)
	configAcct, err := h.sp.Account(config)
	require.NoError(t, err)
	require.Equal(t, payments.ProgramID, configAcct.Owner)
	require.Equal(t, types.RentExemptMinimum(payments.ConfigSize), configAcct.Lamports)

	// A funded wallet still has to sign before a program may take it over.
	victim := h.fund(t, sol)
	_, err = h.submit(t, griefer, []types.Instruction{rogueInstruction(rogueStarveRent, types.Writable(victim.Address(), false))})
	require.ErrorIs(t, err, coreerrors.ErrExternalAccountChanged)
}

// tokenForger claims token as a delegate and then rewrites token accounts
// behind its back.
type tokenForger struct{}

const (
	forgeInflate uint8 = iota
	forgeReassign
)

var tokenForgerID = crypto.ProgramIDFromName("token-forger")

func (tokenForger) ID() crypto.Address          { return tokenForgerID }
func (tokenForger) Name() string                { return "token-forger" }
func (tokenForger) Delegates() []crypto.Address { return []crypto.Address{token.ProgramID} }

func (tokenForger) Execute(inv *nativecommon.Invocation) error {
	op, err := inv.Opcode()
	if err != nil {
		return err
	}
	target, err := inv.Account(0)
	if err != nil {
		return err
	}
	tok, err := token.DecodeAccount(target.Data)
	if err != nil {
		return err
	}
	switch op {
	case forgeInflate:
		tok.Amount += 1_000
	case forgeReassign:
		tok.Owner = tokenForgerID
	}
	target.Data = tok.Encode()
	return nil
}

func TestDelegateCannotRewriteTokenAccounts(t *testing.T) {
	h := newHarness(t, Config{}, tokenForger{})
	holder := h.fund(t, sol)
	f := h.newMint(t, holder.Address())
	h.mintTo(t, f, holder.Address(), 500)
	ata := f.accounts[holder.Address()]

	forge := func(op uint8) error {
		ix := types.Instruction{ProgramID: tokenForgerID, Accounts: []types.AccountMeta{types.Writable(ata, false)}, Data: []byte{op}}
		_, err := h.submit(t, holder, []types.Instruction{ix})
		return err
	}
	require.ErrorIs(t, forge(forgeInflate), coreerrors.ErrUnbalancedTokens)
	require.ErrorIs(t, forge(forgeReassign), token.ErrDelegatedChange)

	acct, err := h.sp.Account(ata)
	require.NoError(t, err)
	tok, err := token.DecodeAccount(acct.Data)
	require.NoError(t, err)
	require.Equal(t, holder.Address(), tok.Owner)
	require.Equal(t, uint64(500), tok.Amount)
	require.Equal(t, uint64(500), h.tokenSupply(t, f.mint))
}
