package genesis

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ledgerprograms/crypto"
)

// Spec describes the initial ledger: funded system accounts and token mints
// with their holders.
type Spec struct {
	GenesisTime string        `yaml:"genesisTime"`
	Slot        uint64        `yaml:"slot"`
	Accounts    []AccountSpec `yaml:"accounts"`
	Mints       []MintSpec    `yaml:"mints"`

	genesisTimestamp time.Time
}

// AccountSpec funds a system-owned account.
type AccountSpec struct {
	Address  string `yaml:"address"`
	Lamports uint64 `yaml:"lamports"`
}

// MintSpec creates a mint at Address. Each holder receives an associated
// token account; the mint's supply is the sum of the holder amounts.
type MintSpec struct {
	Address   string       `yaml:"address"`
	Authority string       `yaml:"authority"`
	Decimals  uint8        `yaml:"decimals"`
	Holders   []HolderSpec `yaml:"holders"`
}

// HolderSpec is an initial token balance.
type HolderSpec struct {
	Owner  string `yaml:"owner"`
	Amount uint64 `yaml:"amount"`
}

// LoadSpec reads and validates a YAML genesis file. Unknown fields are
// rejected.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseSpec decodes and validates a YAML genesis document.
func ParseSpec(raw []byte) (*Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

// GenesisTimestamp is the validated genesis time.
func (s *Spec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

func (s *Spec) validate() error {
	ts, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = ts

	seen := make(map[crypto.Address]string)
	claim := func(addr crypto.Address, what string) error {
		if prev, ok := seen[addr]; ok {
			return fmt.Errorf("%s: address %s already used by %s", what, addr, prev)
		}
		seen[addr] = what
		return nil
	}

	for i, acct := range s.Accounts {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(acct.Address))
		if err != nil {
			return fmt.Errorf("accounts[%d]: %w", i, err)
		}
		if acct.Lamports == 0 {
			return fmt.Errorf("accounts[%d]: lamports must be greater than zero", i)
		}
		if err := claim(addr, fmt.Sprintf("accounts[%d]", i)); err != nil {
			return err
		}
	}

	for i := range s.Mints {
		m := &s.Mints[i]
		addr, err := crypto.DecodeAddress(strings.TrimSpace(m.Address))
		if err != nil {
			return fmt.Errorf("mints[%d]: %w", i, err)
		}
		if err := claim(addr, fmt.Sprintf("mints[%d]", i)); err != nil {
			return err
		}
		if _, err := crypto.DecodeAddress(strings.TrimSpace(m.Authority)); err != nil {
			return fmt.Errorf("mints[%d].authority: %w", i, err)
		}
		if m.Decimals > 18 {
			return fmt.Errorf("mints[%d]: decimals must be 18 or fewer", i)
		}
		var supply uint64
		owners := make(map[crypto.Address]struct{}, len(m.Holders))
		for j, h := range m.Holders {
			owner, err := crypto.DecodeAddress(strings.TrimSpace(h.Owner))
			if err != nil {
				return fmt.Errorf("mints[%d].holders[%d]: %w", i, j, err)
			}
			if _, dup := owners[owner]; dup {
				return fmt.Errorf("mints[%d].holders[%d]: duplicate owner %s", i, j, owner)
			}
			owners[owner] = struct{}{}
			if supply > ^uint64(0)-h.Amount {
				return fmt.Errorf("mints[%d]: supply overflows", i)
			}
			supply += h.Amount
		}
	}
	return nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
