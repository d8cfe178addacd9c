package state

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	"ledgerprograms/storage/trie"
)

// Manager reads and writes ledger state: account envelopes keyed by address
// plus auxiliary KV entries for the clock, the processed digest set and
// program-private metadata.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

// storedAccount is the RLP envelope for types.Account.
type storedAccount struct {
	Lamports uint64
	Owner    crypto.Address
	Data     []byte
}

// storedClock mirrors types.Clock with unsigned fields for RLP.
type storedClock struct {
	Slot uint64
	Unix uint64
}

func accountKey(addr crypto.Address) []byte {
	buf := make([]byte, len(accountPrefix)+crypto.AddressLength)
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// Account loads the account at addr. Missing accounts are returned as empty
// system-owned accounts so callers can treat creation uniformly.
func (m *Manager) Account(addr crypto.Address) (*types.Account, error) {
	data, err := m.trie.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return &types.Account{Owner: types.SystemProgramID}, nil
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", addr, err)
	}
	return &types.Account{Lamports: stored.Lamports, Owner: stored.Owner, Data: stored.Data}, nil
}

// AccountExists reports whether addr holds lamports or data.
func (m *Manager) AccountExists(addr crypto.Address) (bool, error) {
	acct, err := m.Account(addr)
	if err != nil {
		return false, err
	}
	return !acct.IsEmpty(), nil
}

// PutAccount stores acct at addr. Empty accounts are deleted, which is how a
// closed account disappears from state.
func (m *Manager) PutAccount(addr crypto.Address, acct *types.Account) error {
	if acct.IsEmpty() {
		return m.trie.Delete(accountKey(addr))
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{
		Lamports: acct.Lamports,
		Owner:    acct.Owner,
		Data:     acct.Data,
	})
	if err != nil {
		return err
	}
	return m.trie.Update(accountKey(addr), encoded)
}

// Clock returns the ledger clock.
func (m *Manager) Clock() (types.Clock, error) {
	var stored storedClock
	if _, err := m.KVGet(clockKeyBytes, &stored); err != nil {
		return types.Clock{}, err
	}
	return types.Clock{Slot: stored.Slot, UnixTimestamp: int64(stored.Unix)}, nil
}

// SetClock stores the ledger clock. Time never runs backwards.
func (m *Manager) SetClock(clock types.Clock) error {
	current, err := m.Clock()
	if err != nil {
		return err
	}
	if clock.Slot < current.Slot {
		return fmt.Errorf("state: slot %d precedes current slot %d", clock.Slot, current.Slot)
	}
	if clock.UnixTimestamp < 0 {
		return fmt.Errorf("state: negative unix timestamp %d", clock.UnixTimestamp)
	}
	return m.KVPut(clockKeyBytes, &storedClock{Slot: clock.Slot, Unix: uint64(clock.UnixTimestamp)})
}

// MarkProcessed records a committed transaction digest at slot.
func (m *Manager) MarkProcessed(digest crypto.Hash, slot uint64) error {
	return m.KVPut(ProcessedDigestKey(digest), slot)
}

// Processed reports whether digest was committed before.
func (m *Manager) Processed(digest crypto.Hash) (bool, error) {
	return m.KVGet(ProcessedDigestKey(digest), nil)
}

// Copy returns a manager over an independent copy of the trie. Mutations on
// the copy are invisible to m until the caller adopts it.
func (m *Manager) Copy() (*Manager, error) {
	return &Manager{trie: m.trie.Copy()}, nil
}

// Trie exposes the backing trie.
func (m *Manager) Trie() *trie.Trie {
	return m.trie
}

// Hash returns the uncommitted state root.
func (m *Manager) Hash() common.Hash {
	return m.trie.Hash()
}

// Commit flushes the trie and returns the new root.
func (m *Manager) Commit(slot uint64) (common.Hash, error) {
	return m.trie.Commit(slot)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is automatically hashed with keccak256 to match the requirements of
// the underlying trie implementation.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	data, err := m.trie.Get(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.trie.Update(hashed, encoded)
}

// KVDelete removes the entry stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.trie.Delete(kvKey(key))
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice to avoid nil
// surprises for callers.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}
