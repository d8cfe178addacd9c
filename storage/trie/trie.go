// Package trie holds the ledger's authenticated state: a go-ethereum
// Merkle-Patricia trie over the node database, committed once per slot.
package trie

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"ledgerprograms/storage"
)

// KeyLength is the size of every trie key. Callers hash their keys with
// keccak256 first so that sibling paths stay balanced.
const KeyLength = common.HashLength

// ErrKeyLength is returned for keys that are not KeyLength bytes long.
var ErrKeyLength = errors.New("trie: key must be a 32-byte hash")

// Trie is the state of one ledger view. The processor works on a Copy per
// transaction and keeps the copy only if the transaction succeeds, so a Trie
// is never shared between goroutines.
type Trie struct {
	trieDB *triedb.Database
	trie   *gethtrie.Trie
	root   common.Hash
}

// NewTrie opens the state committed at root. A nil or empty root opens the
// empty state.
func NewTrie(store storage.Database, root []byte) (*Trie, error) {
	rootHash := gethtypes.EmptyRootHash
	if len(root) > 0 {
		rootHash = common.BytesToHash(root)
	}
	return open(store.TrieDB(), rootHash)
}

func open(db *triedb.Database, root common.Hash) (*Trie, error) {
	underlying, err := gethtrie.New(gethtrie.TrieID(root), db)
	if err != nil {
		return nil, fmt.Errorf("trie: open root %s: %w", root.Hex(), err)
	}
	return &Trie{trieDB: db, trie: underlying, root: root}, nil
}

func checkKey(key []byte) error {
	if len(key) != KeyLength {
		return fmt.Errorf("%w: got %d bytes", ErrKeyLength, len(key))
	}
	return nil
}

// Get returns the value at key, or nil when the key is absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return t.trie.Get(key)
}

// Update stores value at key. An empty value removes the key.
func (t *Trie) Update(key, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return t.trie.Update(key, value)
}

// Delete removes key. Deleting an absent key is not an error.
func (t *Trie) Delete(key []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return t.trie.Delete(key)
}

// Hash is the root including uncommitted changes.
func (t *Trie) Hash() common.Hash {
	return t.trie.Hash()
}

// Root is the last committed root.
func (t *Trie) Root() common.Hash {
	return t.root
}

// Copy returns an independent view over the same node database.
func (t *Trie) Copy() *Trie {
	return &Trie{trieDB: t.trieDB, trie: t.trie.Copy(), root: t.root}
}

// Commit writes the changes made since the last commit as the state of slot
// and returns the new root. The trie stays usable for the next slot.
func (t *Trie) Commit(slot uint64) (common.Hash, error) {
	newRoot, nodes := t.trie.Commit(false)
	if nodes != nil {
		merged := trienode.NewMergedNodeSet()
		if err := merged.Merge(nodes); err != nil {
			return common.Hash{}, err
		}
		if err := t.trieDB.Update(newRoot, t.root, slot, merged, nil); err != nil {
			return common.Hash{}, fmt.Errorf("trie: stage slot %d: %w", slot, err)
		}
		if err := t.trieDB.Commit(newRoot, false); err != nil {
			return common.Hash{}, fmt.Errorf("trie: flush slot %d: %w", slot, err)
		}
	}
	next, err := open(t.trieDB, newRoot)
	if err != nil {
		return common.Hash{}, err
	}
	*t = *next
	return newRoot, nil
}
