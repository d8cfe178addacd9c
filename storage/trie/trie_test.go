package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"ledgerprograms/storage"
)

func TestTrieCommitFlushPersistsData(t *testing.T) {
	dir := t.TempDir()

	db1, err := storage.NewLevelDB(dir)
	require.NoError(t, err)

	tr, err := NewTrie(db1, nil)
	require.NoError(t, err)

	key := crypto.Keccak256Hash([]byte("key"))
	value := []byte("value")

	require.NoError(t, tr.Update(key.Bytes(), value))
	root, err := tr.Commit(0)
	require.NoError(t, err)

	db1.Close()

	db2, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	restored, err := NewTrie(db2, root.Bytes())
	require.NoError(t, err)

	got, err := restored.Get(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestTrieCopyIsolatesMutations(t *testing.T) {
	tr, err := NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)

	key := crypto.Keccak256([]byte("account"))
	require.NoError(t, tr.Update(key, []byte{1}))
	before := tr.Hash()

	cp := tr.Copy()
	require.NoError(t, cp.Update(key, []byte{2}))
	require.NoError(t, cp.Delete(crypto.Keccak256([]byte("missing"))))

	got, err := tr.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, got)
	require.Equal(t, before, tr.Hash())
	require.NotEqual(t, before, cp.Hash())
}

func TestTrieCommitAdvancesRoot(t *testing.T) {
	db := storage.NewMemDB()
	tr, err := NewTrie(db, nil)
	require.NoError(t, err)

	key := crypto.Keccak256([]byte("bet"))
	require.NoError(t, tr.Update(key, []byte("open")))
	first, err := tr.Commit(1)
	require.NoError(t, err)
	require.Equal(t, first, tr.Root())

	require.NoError(t, tr.Delete(key))
	require.NotEqual(t, tr.Root(), tr.Hash())
	second, err := tr.Commit(2)
	require.NoError(t, err)
	got, err := tr.Get(key)
	require.NoError(t, err)
	require.Nil(t, got)

	// The earlier slot's state stays readable.
	old, err := NewTrie(db, first.Bytes())
	require.NoError(t, err)
	got, err = old.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("open"), got)
	require.NotEqual(t, first, second)
}

func TestTrieRejectsUnhashedKeys(t *testing.T) {
	tr, err := NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)

	require.ErrorIs(t, tr.Update([]byte("short"), []byte{1}), ErrKeyLength)
	_, err = tr.Get(make([]byte, KeyLength+1))
	require.ErrorIs(t, err, ErrKeyLength)
	require.ErrorIs(t, tr.Delete(nil), ErrKeyLength)

	_, err = NewTrie(storage.NewMemDB(), common.Hash{1}.Bytes())
	require.Error(t, err)
}
