package quotas

import (
	"fmt"

	"ledgerprograms/crypto"
	nativecommon "ledgerprograms/native/common"
)

type counterRecord struct {
	ReqCount     uint32
	LamportsUsed uint64
}

// StoreState is the slice of the state manager the quota store needs.
type StoreState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	KVDelete(key []byte) error
}

// Store keeps per-program, per-signer usage counters for the current epoch in
// ledger state so quota decisions are part of the committed transition.
type Store struct {
	state StoreState
}

func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("quota store not initialised")
	}
	return s.state, nil
}

func (s *Store) Load(program string, epoch uint64, addr crypto.Address) (nativecommon.QuotaNow, bool, error) {
	state, err := s.withState()
	if err != nil {
		return nativecommon.QuotaNow{}, false, err
	}
	var stored counterRecord
	ok, err := state.KVGet(counterKey(program, epoch, addr), &stored)
	if err != nil {
		return nativecommon.QuotaNow{}, false, fmt.Errorf("quota: load counters: %w", err)
	}
	if !ok {
		return nativecommon.QuotaNow{EpochID: epoch}, false, nil
	}
	now := nativecommon.QuotaNow{EpochID: epoch, ReqCount: stored.ReqCount, LamportsUsed: stored.LamportsUsed}
	return now, true, nil
}

func (s *Store) Save(program string, epoch uint64, addr crypto.Address, counters nativecommon.QuotaNow) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	record := counterRecord{ReqCount: counters.ReqCount, LamportsUsed: counters.LamportsUsed}
	if err := state.KVPut(counterKey(program, epoch, addr), record); err != nil {
		return fmt.Errorf("quota: persist counters: %w", err)
	}
	if err := state.KVAppend(epochIndexKey(program, epoch), addr.Bytes()); err != nil {
		return fmt.Errorf("quota: update epoch index: %w", err)
	}
	return nil
}

// PruneEpoch drops every counter recorded for epoch.
func (s *Store) PruneEpoch(program string, epoch uint64) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	indexKey := epochIndexKey(program, epoch)
	var addrs [][]byte
	if err := state.KVGetList(indexKey, &addrs); err != nil {
		return fmt.Errorf("quota: load epoch index: %w", err)
	}
	for _, raw := range addrs {
		addr, err := crypto.AddressFromBytes(raw)
		if err != nil {
			return fmt.Errorf("quota: corrupt epoch index: %w", err)
		}
		if err := state.KVDelete(counterKey(program, epoch, addr)); err != nil {
			return fmt.Errorf("quota: prune counter: %w", err)
		}
	}
	if err := state.KVDelete(indexKey); err != nil {
		return fmt.Errorf("quota: prune index: %w", err)
	}
	return nil
}
