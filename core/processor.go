package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/events"
	ledgerstate "ledgerprograms/core/state"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	nativecommon "ledgerprograms/native/common"
	"ledgerprograms/native/system/quotas"
	"ledgerprograms/observability"
	"ledgerprograms/storage/trie"
)

// DefaultLamportsPerSignature is the signature fee charged when none is
// configured.
const DefaultLamportsPerSignature uint64 = 5000

// Config holds the host parameters that are not part of ledger state.
type Config struct {
	FeeCollector         crypto.Address
	LamportsPerSignature uint64
	// Quotas caps per-signer usage of a program, keyed by program name.
	Quotas map[string]nativecommon.Quota
	// Pauses lets operators stop a program without touching its state.
	Pauses nativecommon.PauseView
}

// StateProcessor is the execution host. It applies signed transactions
// against the state trie one at a time; every transaction either commits all
// of its instructions or has no effect.
type StateProcessor struct {
	mu sync.Mutex

	state         *ledgerstate.Manager
	committedRoot common.Hash
	cfg           Config

	programs map[crypto.Address]nativecommon.Program
	auditors map[crypto.Address]nativecommon.SupplyAuditor

	subscribers events.Fanout
	logger      *slog.Logger
	metrics     *observability.LedgerMetrics
	tracer      trace.Tracer
}

// NewStateProcessor wraps tr and registers programs. The state version is
// stamped on a fresh trie and checked on an existing one.
func NewStateProcessor(tr *trie.Trie, cfg Config, programs ...nativecommon.Program) (*StateProcessor, error) {
	if err := ledgerstate.EnsureStateVersion(tr); err != nil {
		return nil, err
	}
	if cfg.LamportsPerSignature == 0 {
		cfg.LamportsPerSignature = DefaultLamportsPerSignature
	}
	sp := &StateProcessor{
		state:         ledgerstate.NewManager(tr),
		committedRoot: tr.Root(),
		cfg:           cfg,
		programs:      make(map[crypto.Address]nativecommon.Program),
		auditors:      make(map[crypto.Address]nativecommon.SupplyAuditor),
		logger:        slog.Default().With("component", "ledger"),
		metrics:       observability.Ledger(),
		tracer:        otel.Tracer("ledgerprograms/core"),
	}
	for _, p := range programs {
		if err := sp.Register(p); err != nil {
			return nil, err
		}
	}
	return sp, nil
}

// Register adds a program. Programs that keep fungible balances in account
// data are also registered as supply auditors.
func (sp *StateProcessor) Register(p nativecommon.Program) error {
	if p == nil {
		return errors.New("core: nil program")
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if _, exists := sp.programs[p.ID()]; exists {
		return fmt.Errorf("core: program %s already registered", p.Name())
	}
	sp.programs[p.ID()] = p
	if auditor, ok := p.(nativecommon.SupplyAuditor); ok {
		sp.auditors[p.ID()] = auditor
	}
	return nil
}

// SetLogger replaces the host logger.
func (sp *StateProcessor) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	sp.mu.Lock()
	sp.logger = logger
	sp.mu.Unlock()
}

// Subscribe delivers every committed event to sub, wrapped in
// events.Committed.
func (sp *StateProcessor) Subscribe(sub events.Emitter) {
	if sub == nil {
		return
	}
	sp.mu.Lock()
	sp.subscribers = append(sp.subscribers, sub)
	sp.mu.Unlock()
}

// Account returns a copy of the account at addr.
func (sp *StateProcessor) Account(addr crypto.Address) (*types.Account, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.state.Account(addr)
}

// PutAccount writes an account directly. Only genesis uses it.
func (sp *StateProcessor) PutAccount(addr crypto.Address, acct *types.Account) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.state.PutAccount(addr, acct)
}

// Clock returns the current ledger clock.
func (sp *StateProcessor) Clock() (types.Clock, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.state.Clock()
}

// SetClock moves the clock to an explicit position.
func (sp *StateProcessor) SetClock(clock types.Clock) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.setClockLocked(clock)
}

// AdvanceSlot moves the clock forward by slots and stamps now. Quota
// counters of epochs that ended are pruned.
func (sp *StateProcessor) AdvanceSlot(slots uint64, now time.Time) (types.Clock, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	current, err := sp.state.Clock()
	if err != nil {
		return types.Clock{}, err
	}
	if current.Slot > ^uint64(0)-slots {
		return types.Clock{}, coreerrors.ErrArithmeticOverflow
	}
	unix := now.Unix()
	if unix < current.UnixTimestamp {
		unix = current.UnixTimestamp
	}
	next := types.Clock{Slot: current.Slot + slots, UnixTimestamp: unix}
	if err := sp.setClockLocked(next); err != nil {
		return types.Clock{}, err
	}
	return next, nil
}

func (sp *StateProcessor) setClockLocked(next types.Clock) error {
	current, err := sp.state.Clock()
	if err != nil {
		return err
	}
	if err := sp.state.SetClock(next); err != nil {
		return err
	}
	store := quotas.NewStore(sp.state)
	for program, q := range sp.cfg.Quotas {
		if !q.Enabled() {
			continue
		}
		// Counters only exist for the epoch the clock was in.
		if ended := q.Epoch(current.Slot); ended < q.Epoch(next.Slot) {
			if err := store.PruneEpoch(program, ended); err != nil {
				return err
			}
		}
	}
	sp.metrics.SetSlot(next.Slot)
	return nil
}

// CurrentRoot returns the last committed state root.
func (sp *StateProcessor) CurrentRoot() common.Hash {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.committedRoot
}

// PendingRoot returns the root including uncommitted transactions.
func (sp *StateProcessor) PendingRoot() common.Hash {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.state.Hash()
}

// Commit persists the trie and returns the resulting state root.
func (sp *StateProcessor) Commit(slot uint64) (common.Hash, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	root, err := sp.state.Commit(slot)
	if err != nil {
		return common.Hash{}, err
	}
	sp.committedRoot = root
	sp.logger.Debug("state committed", slog.Uint64("slot", slot), slog.String("root", root.Hex()))
	return root, nil
}

// ApplyTransaction verifies and executes tx. On success the receipt lists
// the events emitted by its instructions. On failure nothing, including the
// fee, is applied and the transaction may be retried.
func (sp *StateProcessor) ApplyTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, span := sp.tracer.Start(ctx, "ledger.ApplyTransaction")
	defer span.End()
	start := time.Now()

	sp.mu.Lock()
	receipt, err := sp.applyLocked(ctx, tx)
	subscribers := sp.subscribers
	logger := sp.logger
	sp.mu.Unlock()

	if err != nil {
		kind := types.KindOf(err)
		program := "runtime"
		if pe, ok := types.AsProgramError(err); ok {
			program = pe.Program
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())
		sp.metrics.ObserveTransaction(false, program, kind.String(), 0, time.Since(start))
		logger.Info("transaction rejected",
			slog.String("program", program),
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("ledger.digest", receipt.Digest.String()),
		attribute.Int64("ledger.slot", int64(receipt.Slot)),
		attribute.Int("ledger.events", len(receipt.Events)),
	)
	sp.metrics.ObserveTransaction(true, "", "", receipt.Fee, time.Since(start))
	logger.Debug("transaction committed",
		slog.String("digest", receipt.Digest.String()),
		slog.Uint64("slot", receipt.Slot),
		slog.Uint64("fee", receipt.Fee),
		slog.Int("events", len(receipt.Events)))
	for _, evt := range receipt.Events {
		subscribers.Emit(events.Committed{Receipt: receipt, Payload: evt})
	}
	return receipt, nil
}

func (sp *StateProcessor) applyLocked(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil || len(tx.Message.Instructions) == 0 {
		return nil, coreerrors.ErrEmptyTransaction
	}
	signed, err := tx.VerifySignatures()
	if err != nil {
		return nil, err
	}
	digest, err := tx.Digest()
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidInstructionData)
	}
	seen, err := sp.state.Processed(digest)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, fmt.Errorf("%s: %w", digest, coreerrors.ErrDuplicateTransaction)
	}

	work, err := sp.state.Copy()
	if err != nil {
		return nil, err
	}
	clock, err := work.Clock()
	if err != nil {
		return nil, err
	}
	fee, err := sp.chargeFee(work, tx)
	if err != nil {
		return nil, err
	}

	buf := &events.Buffer{}
	for i := range tx.Message.Instructions {
		if err := sp.execute(ctx, work, clock, &tx.Message.Instructions[i], signed, buf); err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	if err := work.MarkProcessed(digest, clock.Slot); err != nil {
		return nil, err
	}
	sp.state = work
	return &types.Receipt{Digest: digest, Slot: clock.Slot, Fee: fee, Events: buf.Events()}, nil
}

// chargeFee moves the signature fee from the fee payer to the collector. The
// fee payer may be a relay that signs nothing else.
func (sp *StateProcessor) chargeFee(work *ledgerstate.Manager, tx *types.Transaction) (uint64, error) {
	count := uint64(len(tx.Signatures))
	if count != 0 && sp.cfg.LamportsPerSignature > ^uint64(0)/count {
		return 0, coreerrors.ErrArithmeticOverflow
	}
	fee := sp.cfg.LamportsPerSignature * count
	if fee == 0 {
		return 0, nil
	}
	payerAddr := tx.Message.FeePayer
	payer, err := work.Account(payerAddr)
	if err != nil {
		return 0, err
	}
	if payer.Owner != types.SystemProgramID || len(payer.Data) > 0 {
		return 0, fmt.Errorf("fee payer %s: %w", payerAddr, coreerrors.ErrInvalidAccountData)
	}
	if payer.Lamports < fee {
		return 0, fmt.Errorf("fee payer %s holds %d, fee %d: %w", payerAddr, payer.Lamports, fee, coreerrors.ErrInsufficientFunds)
	}
	if payerAddr == sp.cfg.FeeCollector {
		return fee, nil
	}
	collector, err := work.Account(sp.cfg.FeeCollector)
	if err != nil {
		return 0, err
	}
	if collector.Lamports > ^uint64(0)-fee {
		return 0, coreerrors.ErrArithmeticOverflow
	}
	payer.Lamports -= fee
	collector.Lamports += fee
	if err := work.PutAccount(payerAddr, payer); err != nil {
		return 0, err
	}
	if err := work.PutAccount(sp.cfg.FeeCollector, collector); err != nil {
		return 0, err
	}
	return fee, nil
}

// execute runs one instruction on work and audits its effect before writing
// the touched accounts back.
func (sp *StateProcessor) execute(ctx context.Context, work *ledgerstate.Manager, clock types.Clock, ix *types.Instruction, signed map[crypto.Address]struct{}, emitter events.Emitter) (err error) {
	program, ok := sp.programs[ix.ProgramID]
	if !ok {
		return fmt.Errorf("%s: %w", ix.ProgramID, coreerrors.ErrUnknownProgram)
	}
	_, span := sp.tracer.Start(ctx, "ledger.Execute", trace.WithAttributes(attribute.String("ledger.program", program.Name())))
	defer span.End()
	var opcode uint8
	if len(ix.Data) > 0 {
		opcode = ix.Data[0]
	}
	defer func() {
		sp.metrics.ObserveInstruction(program.Name(), opcode, err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, types.KindOf(err).String())
		}
	}()

	if err := nativecommon.Guard(sp.cfg.Pauses, program.Name()); err != nil {
		return err
	}

	touched, err := loadAccounts(work, ix, signed)
	if err != nil {
		return err
	}
	inv := &nativecommon.Invocation{
		ProgramID: program.ID(),
		Accounts:  touched.infos,
		Data:      ix.Data,
		Clock:     clock,
		Store:     programStore{state: work, program: program.ID()},
		Emitter:   emitter,
	}
	if err := program.Execute(inv); err != nil {
		return err
	}
	if err := sp.audit(program, touched); err != nil {
		return err
	}
	if err := sp.applyQuota(work, program.Name(), clock, touched); err != nil {
		return err
	}
	for _, addr := range touched.order {
		if err := work.PutAccount(addr, touched.post[addr]); err != nil {
			return err
		}
	}
	return nil
}

func (sp *StateProcessor) applyQuota(work *ledgerstate.Manager, program string, clock types.Clock, touched *touchedAccounts) error {
	q, ok := sp.cfg.Quotas[program]
	if !ok || !q.Enabled() {
		return nil
	}
	store := quotas.NewStore(work)
	epoch := q.Epoch(clock.Slot)
	for _, addr := range touched.order {
		if !touched.signer[addr] {
			continue
		}
		var spent uint64
		if pre, post := touched.pre[addr].Lamports, touched.post[addr].Lamports; post < pre {
			spent = pre - post
		}
		if _, err := nativecommon.Apply(store, program, epoch, addr, q, 1, spent); err != nil {
			if errors.Is(err, nativecommon.ErrQuotaRequestsExceeded) || errors.Is(err, nativecommon.ErrQuotaLamportsExceeded) {
				return fmt.Errorf("%s signer %s: %v: %w", program, addr, err, coreerrors.ErrQuotaExceeded)
			}
			return err
		}
	}
	return nil
}

// programStore scopes program metadata to the program's own namespace.
type programStore struct {
	state   *ledgerstate.Manager
	program crypto.Address
}

func (s programStore) Get(key []byte, out interface{}) (bool, error) {
	return s.state.KVGet(ledgerstate.ProgramKVKey(s.program, key), out)
}

func (s programStore) Put(key []byte, value interface{}) error {
	return s.state.KVPut(ledgerstate.ProgramKVKey(s.program, key), value)
}
