package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgerprograms/config"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	"ledgerprograms/native/system"
	"ledgerprograms/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenLedgerSeedsGenesisAndResumes(t *testing.T) {
	dir := t.TempDir()
	alice, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	collector, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	bob, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	genesisPath := filepath.Join(dir, "genesis.yaml")
	doc := fmt.Sprintf("genesisTime: 2024-01-01T00:00:00Z\naccounts:\n  - address: %s\n    lamports: 1000000000\n", alice.Address())
	require.NoError(t, os.WriteFile(genesisPath, []byte(doc), 0o644))
	cfg := &config.Config{GenesisFile: genesisPath, LamportsPerSignature: 5000, DiceRefundTimeoutSlots: 10}

	dataDir := filepath.Join(dir, "data")
	db, err := storage.NewLevelDB(dataDir)
	require.NoError(t, err)
	sp, err := openLedger(db, cfg, collector.Address(), quietLogger())
	require.NoError(t, err)

	acct, err := sp.Account(alice.Address())
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000_000), acct.Lamports)

	tx := types.NewTransaction(alice.Address(), 1, system.NewTransferInstruction(alice.Address(), bob.Address(), 42))
	require.NoError(t, tx.Sign(alice))
	_, err = sp.ApplyTransaction(context.Background(), tx)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- produceSlots(ctx, db, sp, 5*time.Millisecond, quietLogger()) }()
	require.Eventually(t, func() bool {
		clock, err := sp.Clock()
		return err == nil && clock.Slot >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	root := sp.CurrentRoot()
	db.Close()

	// Reopening resumes from the stored head instead of re-applying genesis.
	db, err = storage.NewLevelDB(dataDir)
	require.NoError(t, err)
	defer db.Close()
	resumed, err := openLedger(db, cfg, collector.Address(), quietLogger())
	require.NoError(t, err)
	require.Equal(t, root, resumed.CurrentRoot())

	acct, err = resumed.Account(bob.Address())
	require.NoError(t, err)
	require.Equal(t, uint64(42), acct.Lamports)
	clock, err := resumed.Clock()
	require.NoError(t, err)
	require.GreaterOrEqual(t, clock.Slot, uint64(2))

	// The processed digest survives the restart.
	_, err = resumed.ApplyTransaction(context.Background(), tx)
	require.Error(t, err)
}

func TestResolveCollectorUsesConfiguredAddress(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	addr, err := resolveCollector(&config.Config{FeeCollector: key.Address().String()})
	require.NoError(t, err)
	require.Equal(t, key.Address(), addr)

	_, err = resolveCollector(&config.Config{FeeCollector: "bogus"})
	require.Error(t, err)
}
