package payments

import (
	"fmt"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
)

const (
	configRecord   = "PlatformConfig"
	merchantRecord = "MerchantAccount"
	customerRecord = "CustomerAccount"

	// MaxIdentifierLength bounds a merchant identifier in bytes.
	MaxIdentifierLength = 64
	// MaxFeeRateBps is a fee of 100%.
	MaxFeeRateBps = 10_000

	// ConfigSize is the encoded size of the platform config record.
	ConfigSize = types.DiscriminatorLength + 32 + 32 + 32 + 2 + 8 + 8 + 1 + 1 + 1
	// MerchantSize is the encoded size of a merchant record.
	MerchantSize = types.DiscriminatorLength + 1 + MaxIdentifierLength + 32 + 8 + 8 + 8 + 1 + 1
	// CustomerSize is the encoded size of a customer ledger record.
	CustomerSize = types.DiscriminatorLength + 32 + 32 + 8 + 8 + 8 + 1
)

// PlatformConfig holds the global payment parameters. Treasury is a token
// account of FeeMint whose token authority is the config address itself.
type PlatformConfig struct {
	Authority    crypto.Address
	Treasury     crypto.Address
	FeeMint      crypto.Address
	FeeRateBps   uint16
	MinAmount    uint64
	MaxAmount    uint64
	Paused       bool
	Bump         uint8
	TreasuryBump uint8
}

func (c *PlatformConfig) Encode() []byte {
	return types.NewLayoutWriter(configRecord, ConfigSize).
		Address(c.Authority).
		Address(c.Treasury).
		Address(c.FeeMint).
		U16(c.FeeRateBps).
		U64(c.MinAmount).
		U64(c.MaxAmount).
		Bool(c.Paused).
		U8(c.Bump).
		U8(c.TreasuryBump).
		Bytes()
}

func DecodePlatformConfig(data []byte) (*PlatformConfig, error) {
	r, err := types.NewLayoutReader(configRecord, data, ConfigSize)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidAccountData)
	}
	c := &PlatformConfig{
		Authority:    r.Address(),
		Treasury:     r.Address(),
		FeeMint:      r.Address(),
		FeeRateBps:   r.U16(),
		MinAmount:    r.U64(),
		MaxAmount:    r.U64(),
		Paused:       r.Bool(),
		Bump:         r.U8(),
		TreasuryBump: r.U8(),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidAccountData)
	}
	return c, nil
}

// Merchant is a registered seller. Settlement is the wallet whose token
// account receives net proceeds and which alone may update or close the
// merchant.
type Merchant struct {
	Identifier  string
	Settlement  crypto.Address
	TotalVolume uint64
	TxCount     uint64
	CreatedAt   int64
	Active      bool
	Bump        uint8
}

func (m *Merchant) Encode() []byte {
	return types.NewLayoutWriter(merchantRecord, MerchantSize).
		U8(uint8(len(m.Identifier))).
		Fixed([]byte(m.Identifier), MaxIdentifierLength).
		Address(m.Settlement).
		U64(m.TotalVolume).
		U64(m.TxCount).
		I64(m.CreatedAt).
		Bool(m.Active).
		U8(m.Bump).
		Bytes()
}

func DecodeMerchant(data []byte) (*Merchant, error) {
	r, err := types.NewLayoutReader(merchantRecord, data, MerchantSize)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidAccountData)
	}
	n := int(r.U8())
	id := r.Fixed(MaxIdentifierLength)
	if n > MaxIdentifierLength {
		return nil, fmt.Errorf("merchant identifier length %d: %w", n, coreerrors.ErrInvalidAccountData)
	}
	m := &Merchant{
		Settlement:  r.Address(),
		TotalVolume: r.U64(),
		TxCount:     r.U64(),
		CreatedAt:   r.I64(),
		Active:      r.Bool(),
		Bump:        r.U8(),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidAccountData)
	}
	m.Identifier = string(id[:n])
	return m, nil
}

// Customer is the spend ledger of one customer at one merchant.
type Customer struct {
	Owner       crypto.Address
	Merchant    crypto.Address
	TotalSpent  uint64
	TxCount     uint64
	LastPayment int64
	Bump        uint8
}

func (c *Customer) Encode() []byte {
	return types.NewLayoutWriter(customerRecord, CustomerSize).
		Address(c.Owner).
		Address(c.Merchant).
		U64(c.TotalSpent).
		U64(c.TxCount).
		I64(c.LastPayment).
		U8(c.Bump).
		Bytes()
}

func DecodeCustomer(data []byte) (*Customer, error) {
	r, err := types.NewLayoutReader(customerRecord, data, CustomerSize)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidAccountData)
	}
	c := &Customer{
		Owner:       r.Address(),
		Merchant:    r.Address(),
		TotalSpent:  r.U64(),
		TxCount:     r.U64(),
		LastPayment: r.I64(),
		Bump:        r.U8(),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrInvalidAccountData)
	}
	return c, nil
}
