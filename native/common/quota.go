package common

import (
	"errors"
	"math"

	"ledgerprograms/crypto"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaLamportsExceeded = errors.New("quota lamport cap exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for a signer.
type QuotaNow struct {
	ReqCount     uint32
	LamportsUsed uint64
	EpochID      uint64
}

// Quota defines the limits enforced for a program interaction per signer.
// Epochs are measured in slots.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxLamportsPerEpoch uint64
	EpochSlots          uint64
}

// Enabled reports whether any limit is configured.
func (q Quota) Enabled() bool {
	return q.MaxRequestsPerEpoch > 0 || q.MaxLamportsPerEpoch > 0
}

// Epoch maps a slot to the quota epoch.
func (q Quota) Epoch(slot uint64) uint64 {
	if q.EpochSlots == 0 {
		return 0
	}
	return slot / q.EpochSlots
}

// CheckQuota verifies whether the additional request and lamport spend fit
// within the configured quota. The returned QuotaNow reflects the updated
// counters when the quota is not exceeded.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32, addLamports uint64) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.ReqCount > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}

	if addLamports > 0 {
		if next.LamportsUsed > math.MaxUint64-addLamports {
			return prev, ErrQuotaCounterOverflow
		}
		next.LamportsUsed += addLamports
	}
	if q.MaxLamportsPerEpoch > 0 && next.LamportsUsed > q.MaxLamportsPerEpoch {
		return prev, ErrQuotaLamportsExceeded
	}

	return next, nil
}

// QuotaStore persists per-signer counters.
type QuotaStore interface {
	Load(program string, epoch uint64, addr crypto.Address) (QuotaNow, bool, error)
	Save(program string, epoch uint64, addr crypto.Address, counters QuotaNow) error
}

// Apply loads the signer's counters for epoch, checks the additional usage and
// persists the result. Counters are left untouched on denial.
func Apply(store QuotaStore, program string, epoch uint64, addr crypto.Address, q Quota, addReq uint32, addLamports uint64) (QuotaNow, error) {
	prev, _, err := store.Load(program, epoch, addr)
	if err != nil {
		return QuotaNow{}, err
	}
	next, err := CheckQuota(q, epoch, prev, addReq, addLamports)
	if err != nil {
		return prev, err
	}
	if err := store.Save(program, epoch, addr, next); err != nil {
		return prev, err
	}
	return next, nil
}
