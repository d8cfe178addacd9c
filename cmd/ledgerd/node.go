package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"ledgerprograms/config"
	"ledgerprograms/core"
	"ledgerprograms/core/genesis"
	"ledgerprograms/crypto"
	nativecommon "ledgerprograms/native/common"
	"ledgerprograms/native/dice"
	"ledgerprograms/native/payments"
	"ledgerprograms/native/system"
	"ledgerprograms/native/token"
	"ledgerprograms/storage"
	"ledgerprograms/storage/trie"
)

var headKey = []byte("ledger/head")

// programs builds the native program set served by the node.
func programs(cfg *config.Config) []nativecommon.Program {
	tokens := token.NewEngine()
	diceEngine := dice.NewEngine()
	diceEngine.SetRefundTimeout(cfg.DiceRefundTimeoutSlots)
	return []nativecommon.Program{
		system.New(),
		token.New(tokens),
		dice.New(diceEngine),
		payments.New(payments.NewEngine(tokens)),
	}
}

// programNames lists the programs served by the node for telemetry.
func programNames(cfg *config.Config) []string {
	set := programs(cfg)
	names := make([]string, 0, len(set))
	for _, p := range set {
		names = append(names, p.Name())
	}
	return names
}

// openLedger resumes from the stored head root or, on an empty database,
// seeds genesis and commits it as the first head.
func openLedger(db storage.Database, cfg *config.Config, collector crypto.Address, logger *slog.Logger) (*core.StateProcessor, error) {
	hostCfg := core.Config{
		FeeCollector:         collector,
		LamportsPerSignature: cfg.LamportsPerSignature,
		Quotas:               cfg.Global.QuotaMap(),
		Pauses:               cfg.Global.PauseView(),
	}

	head, err := db.Get(headKey)
	switch {
	case err == nil:
		tr, err := trie.NewTrie(db, head)
		if err != nil {
			return nil, fmt.Errorf("open state at head %x: %w", head, err)
		}
		sp, err := core.NewStateProcessor(tr, hostCfg, programs(cfg)...)
		if err != nil {
			return nil, err
		}
		sp.SetLogger(logger)
		logger.Info("resumed ledger", slog.String("root", common.BytesToHash(head).Hex()))
		return sp, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("read head: %w", err)
	}

	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		return nil, fmt.Errorf("init state trie: %w", err)
	}
	sp, err := core.NewStateProcessor(tr, hostCfg, programs(cfg)...)
	if err != nil {
		return nil, err
	}
	sp.SetLogger(logger)
	if path := strings.TrimSpace(cfg.GenesisFile); path != "" {
		spec, err := genesis.LoadSpec(path)
		if err != nil {
			return nil, err
		}
		if err := genesis.Apply(spec, sp); err != nil {
			return nil, fmt.Errorf("apply genesis: %w", err)
		}
	} else {
		logger.Warn("no genesis file configured; starting from an empty ledger")
	}
	clock, err := sp.Clock()
	if err != nil {
		return nil, err
	}
	if _, err := commitHead(db, sp, clock.Slot); err != nil {
		return nil, err
	}
	logger.Info("genesis committed", slog.String("root", sp.CurrentRoot().Hex()))
	return sp, nil
}

// commitHead persists the trie and records the new root as the head.
func commitHead(db storage.Database, sp *core.StateProcessor, slot uint64) (common.Hash, error) {
	root, err := sp.Commit(slot)
	if err != nil {
		return common.Hash{}, fmt.Errorf("commit slot %d: %w", slot, err)
	}
	if err := db.Put(headKey, root.Bytes()); err != nil {
		return common.Hash{}, fmt.Errorf("store head: %w", err)
	}
	return root, nil
}
