package payments

import (
	"strconv"
	"strings"

	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
)

const (
	EventTypePlatformInitialized = "payments.platform_initialized"
	EventTypePlatformPaused      = "payments.platform_paused"
	EventTypeMerchantInitialized = "payments.merchant_initialized"
	EventTypeMerchantUpdated     = "payments.merchant_updated"
	EventTypeMerchantClosed      = "payments.merchant_closed"
	EventTypePaymentProcessed    = "payments.processed"
	EventTypeFeesClaimed         = "payments.fees_claimed"
)

type paymentsEvent struct {
	evt *types.Event
}

func (e paymentsEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e paymentsEvent) Event() *types.Event { return e.evt }

func NewPlatformInitializedEvent(config crypto.Address, c *PlatformConfig) *types.Event {
	return &types.Event{Type: EventTypePlatformInitialized, Attributes: map[string]string{
		"config":     config.String(),
		"authority":  c.Authority.String(),
		"treasury":   c.Treasury.String(),
		"feeMint":    c.FeeMint.String(),
		"feeRateBps": strconv.FormatUint(uint64(c.FeeRateBps), 10),
		"minAmount":  strconv.FormatUint(c.MinAmount, 10),
		"maxAmount":  strconv.FormatUint(c.MaxAmount, 10),
	}}
}

func NewPlatformPausedEvent(config crypto.Address, paused bool) *types.Event {
	return &types.Event{Type: EventTypePlatformPaused, Attributes: map[string]string{
		"config": config.String(),
		"paused": strconv.FormatBool(paused),
	}}
}

func NewMerchantEvent(typ string, addr crypto.Address, m *Merchant) *types.Event {
	return &types.Event{Type: typ, Attributes: map[string]string{
		"merchant":    addr.String(),
		"identifier":  m.Identifier,
		"settlement":  m.Settlement.String(),
		"active":      strconv.FormatBool(m.Active),
		"totalVolume": strconv.FormatUint(m.TotalVolume, 10),
		"txCount":     strconv.FormatUint(m.TxCount, 10),
	}}
}

// Payment is the committed record of a single process_payment.
type Payment struct {
	Merchant   crypto.Address
	Identifier string
	Customer   crypto.Address
	Settlement crypto.Address
	Mint       crypto.Address
	Amount     uint64
	Fee        uint64
	Net        uint64
	Slot       uint64
	Timestamp  int64
	References []crypto.Address
}

// NewPaymentProcessedEvent renders p. References are joined with commas in
// instruction order.
func NewPaymentProcessedEvent(p *Payment) *types.Event {
	refs := make([]string, len(p.References))
	for i, ref := range p.References {
		refs[i] = ref.String()
	}
	return &types.Event{Type: EventTypePaymentProcessed, Attributes: map[string]string{
		"merchant":   p.Merchant.String(),
		"identifier": p.Identifier,
		"customer":   p.Customer.String(),
		"settlement": p.Settlement.String(),
		"mint":       p.Mint.String(),
		"amount":     strconv.FormatUint(p.Amount, 10),
		"fee":        strconv.FormatUint(p.Fee, 10),
		"net":        strconv.FormatUint(p.Net, 10),
		"slot":       strconv.FormatUint(p.Slot, 10),
		"timestamp":  strconv.FormatInt(p.Timestamp, 10),
		"references": strings.Join(refs, ","),
	}}
}

// PaymentFromEvent parses a payments.processed event.
func PaymentFromEvent(evt *types.Event) (*Payment, bool) {
	if evt == nil || evt.Type != EventTypePaymentProcessed {
		return nil, false
	}
	attrs := evt.Attributes
	p := &Payment{Identifier: attrs["identifier"]}
	var err error
	for _, field := range []struct {
		dst *crypto.Address
		key string
	}{
		{&p.Merchant, "merchant"},
		{&p.Customer, "customer"},
		{&p.Settlement, "settlement"},
		{&p.Mint, "mint"},
	} {
		if *field.dst, err = crypto.DecodeAddress(attrs[field.key]); err != nil {
			return nil, false
		}
	}
	for _, field := range []struct {
		dst *uint64
		key string
	}{
		{&p.Amount, "amount"},
		{&p.Fee, "fee"},
		{&p.Net, "net"},
		{&p.Slot, "slot"},
	} {
		if *field.dst, err = strconv.ParseUint(attrs[field.key], 10, 64); err != nil {
			return nil, false
		}
	}
	if p.Timestamp, err = strconv.ParseInt(attrs["timestamp"], 10, 64); err != nil {
		return nil, false
	}
	if raw := attrs["references"]; raw != "" {
		for _, part := range strings.Split(raw, ",") {
			ref, err := crypto.DecodeAddress(part)
			if err != nil {
				return nil, false
			}
			p.References = append(p.References, ref)
		}
	}
	return p, true
}

func NewFeesClaimedEvent(config, treasury, destination crypto.Address, amount, remaining uint64) *types.Event {
	return &types.Event{Type: EventTypeFeesClaimed, Attributes: map[string]string{
		"config":      config.String(),
		"treasury":    treasury.String(),
		"destination": destination.String(),
		"amount":      strconv.FormatUint(amount, 10),
		"remaining":   strconv.FormatUint(remaining, 10),
	}}
}
