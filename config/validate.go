package config

import "fmt"

var (
	// MinEpochSlots is the shortest quota epoch accepted.
	MinEpochSlots = uint64(10)
)

// ValidateConfig checks the runtime policy before it is handed to the host.
func ValidateConfig(g Global) error {
	quotas := map[string]Quota{
		"system":   g.Quotas.System,
		"token":    g.Quotas.Token,
		"dice":     g.Quotas.Dice,
		"payments": g.Quotas.Payments,
	}
	for name, q := range quotas {
		if q.MaxRequestsPerEpoch == 0 && q.MaxLamportsPerEpoch == 0 {
			continue
		}
		if q.EpochSlots < MinEpochSlots {
			return fmt.Errorf("quotas.%s: epoch_slots must be at least %d", name, MinEpochSlots)
		}
	}
	return nil
}

// Validate checks the node configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DataDir must be set")
	}
	if c.RPCAddress == "" {
		return fmt.Errorf("RPCAddress must be set")
	}
	if c.SlotMillis == 0 {
		return fmt.Errorf("SlotMillis must be greater than zero")
	}
	if c.RPC.RateLimitPerSecond < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.RateLimitPerSecond > 0 && c.RPC.RateLimitBurst == 0 {
		return fmt.Errorf("rpc: RateLimitBurst must be set when RateLimitPerSecond is")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	return ValidateConfig(c.Global)
}
