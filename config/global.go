package config

import (
	nativecommon "ledgerprograms/native/common"
)

// PauseView converts the pause switches into the host's pause lookup.
func (g Global) PauseView() nativecommon.StaticPauses {
	return nativecommon.StaticPauses{
		"system":   g.Pauses.System,
		"token":    g.Pauses.Token,
		"dice":     g.Pauses.Dice,
		"payments": g.Pauses.Payments,
	}
}

// QuotaMap returns the enabled quotas keyed by program name.
func (g Global) QuotaMap() map[string]nativecommon.Quota {
	out := make(map[string]nativecommon.Quota)
	add := func(name string, q Quota) {
		quota := nativecommon.Quota{
			MaxRequestsPerEpoch: q.MaxRequestsPerEpoch,
			MaxLamportsPerEpoch: q.MaxLamportsPerEpoch,
			EpochSlots:          q.EpochSlots,
		}
		if quota.Enabled() {
			out[name] = quota
		}
	}
	add("system", g.Quotas.System)
	add("token", g.Quotas.Token)
	add("dice", g.Quotas.Dice)
	add("payments", g.Quotas.Payments)
	return out
}
