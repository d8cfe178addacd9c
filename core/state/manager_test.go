package state

import (
	"testing"

	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	"ledgerprograms/storage"
	"ledgerprograms/storage/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)

	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	return NewManager(tr)
}

func TestAccountRoundTripAndDeletion(t *testing.T) {
	mgr := newTestManager(t)
	addr := crypto.ProgramIDFromName("vault-holder")
	owner := crypto.ProgramIDFromName("dice")

	acct, err := mgr.Account(addr)
	if err != nil {
		t.Fatalf("load missing account: %v", err)
	}
	if !acct.IsEmpty() || acct.Owner != types.SystemProgramID {
		t.Fatalf("expected empty system account, got %+v", acct)
	}

	stored := &types.Account{Lamports: 42, Owner: owner, Data: []byte{1, 2, 3}}
	if err := mgr.PutAccount(addr, stored); err != nil {
		t.Fatalf("put account: %v", err)
	}
	loaded, err := mgr.Account(addr)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if !loaded.Equal(stored) {
		t.Fatalf("unexpected account: %+v", loaded)
	}
	exists, err := mgr.AccountExists(addr)
	if err != nil || !exists {
		t.Fatalf("expected account to exist: %v", err)
	}

	if err := mgr.PutAccount(addr, &types.Account{Owner: owner}); err != nil {
		t.Fatalf("close account: %v", err)
	}
	exists, err = mgr.AccountExists(addr)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatalf("closed account must be removed")
	}
}

func TestCopyIsolatesUncommittedState(t *testing.T) {
	mgr := newTestManager(t)
	addr := crypto.ProgramIDFromName("payer")
	if err := mgr.PutAccount(addr, &types.Account{Lamports: 10}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cp, err := mgr.Copy()
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if err := cp.PutAccount(addr, &types.Account{Lamports: 3}); err != nil {
		t.Fatalf("mutate copy: %v", err)
	}

	orig, err := mgr.Account(addr)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if orig.Lamports != 10 {
		t.Fatalf("copy mutation leaked into original: %d", orig.Lamports)
	}
}

func TestClockNeverRunsBackwards(t *testing.T) {
	mgr := newTestManager(t)
	if err := mgr.SetClock(types.Clock{Slot: 10, UnixTimestamp: 1700000000}); err != nil {
		t.Fatalf("set clock: %v", err)
	}
	clock, err := mgr.Clock()
	if err != nil {
		t.Fatalf("clock: %v", err)
	}
	if clock.Slot != 10 || clock.UnixTimestamp != 1700000000 {
		t.Fatalf("unexpected clock: %+v", clock)
	}
	if err := mgr.SetClock(types.Clock{Slot: 9}); err == nil {
		t.Fatalf("expected error when rewinding slot")
	}
}

func TestProcessedDigests(t *testing.T) {
	mgr := newTestManager(t)
	digest := crypto.Hash{1, 2, 3}

	seen, err := mgr.Processed(digest)
	if err != nil || seen {
		t.Fatalf("fresh digest reported as processed: %v", err)
	}
	if err := mgr.MarkProcessed(digest, 7); err != nil {
		t.Fatalf("mark: %v", err)
	}
	seen, err = mgr.Processed(digest)
	if err != nil || !seen {
		t.Fatalf("expected digest to be processed: %v", err)
	}
}

func TestKVHelpers(t *testing.T) {
	mgr := newTestManager(t)
	key := ProgramKVKey(crypto.ProgramIDFromName("payments"), []byte("merchant_tombstone/shop"))

	if err := mgr.KVPut(key, uint64(5)); err != nil {
		t.Fatalf("kv put: %v", err)
	}
	var got uint64
	ok, err := mgr.KVGet(key, &got)
	if err != nil || !ok || got != 5 {
		t.Fatalf("kv get: ok=%v got=%d err=%v", ok, got, err)
	}
	if err := mgr.KVDelete(key); err != nil {
		t.Fatalf("kv delete: %v", err)
	}
	ok, err = mgr.KVGet(key, &got)
	if err != nil || ok {
		t.Fatalf("expected key to be gone: %v", err)
	}

	var list []uint64
	if err := mgr.KVGetList([]byte("missing"), &list); err != nil {
		t.Fatalf("kv get list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %v", list)
	}
}

func TestEnsureStateVersionStampsFreshState(t *testing.T) {
	mgr := newTestManager(t)
	if err := EnsureStateVersion(mgr.Trie()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := mgr.SetStateVersion(StateVersion + 1); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := EnsureStateVersion(mgr.Trie()); err == nil {
		t.Fatalf("expected version mismatch")
	}
}
