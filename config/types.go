package config

// Pauses lets operators stop individual programs without a state change.
type Pauses struct {
	System   bool
	Token    bool
	Dice     bool
	Payments bool
}

// Quota limits what a single signer may do with a program per epoch.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxLamportsPerEpoch uint64
	EpochSlots          uint64 // e.g., 9000
}

// Quotas groups quotas for each program.
type Quotas struct {
	System   Quota
	Token    Quota
	Dice     Quota
	Payments Quota
}

// Global bundles the runtime policy enforced by the execution host.
type Global struct {
	Pauses Pauses
	Quotas Quotas
}

// RPC tunes the HTTP API.
type RPC struct {
	// RateLimitPerSecond is the per-client request rate; zero disables
	// limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
	ReadHeaderTimeout  uint32 // seconds
	MaxBodyBytes       int64
}

// Indexer configures the payment index.
type Indexer struct {
	// DSN is a sqlite path or "file::memory:?cache=shared". Empty disables
	// the index.
	DSN string
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string
	Insecure    bool
	Traces      bool
	Metrics     bool
	SampleRatio float64
	Headers     string // comma separated key=value pairs
}

// Logging configures the structured logger.
type Logging struct {
	Level      string
	Env        string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}
