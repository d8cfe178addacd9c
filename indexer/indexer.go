// Package indexer keeps a queryable copy of committed payments so that a
// payment link can be checked after the fact by its reference marker.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ledgerprograms/core/events"
	"ledgerprograms/crypto"
	"ledgerprograms/native/payments"
)

var (
	ErrNotFound          = errors.New("indexer: no payment carries the reference")
	ErrAmountMismatch    = errors.New("indexer: payment amount does not match")
	ErrRecipientMismatch = errors.New("indexer: payment recipient does not match")
)

// Open connects to a sqlite database and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %q: %w", dsn, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return db, nil
}

// Indexer records payments.processed events delivered by the host.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New wraps db. The schema must already be migrated.
func New(db *gorm.DB, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{db: db, logger: log.With("component", "indexer")}
}

// Emit implements events.Emitter. Only committed payment events are stored;
// failures are logged because the ledger has already committed.
func (ix *Indexer) Emit(evt events.Event) {
	committed, ok := evt.(events.Committed)
	if !ok || committed.EventType() != payments.EventTypePaymentProcessed {
		return
	}
	p, ok := payments.PaymentFromEvent(committed.Payload)
	if !ok {
		ix.logger.Warn("malformed payment event")
		return
	}
	var digest string
	if committed.Receipt != nil {
		digest = committed.Receipt.Digest.String()
	}
	if err := ix.Record(context.Background(), digest, p); err != nil {
		ix.logger.Error("index payment", slog.String("digest", digest), slog.Any("error", err))
	}
}

// Record stores p together with its references in one database transaction.
func (ix *Indexer) Record(ctx context.Context, digest string, p *payments.Payment) error {
	row := Payment{
		ID:         uuid.New(),
		Digest:     digest,
		Merchant:   p.Merchant.String(),
		Identifier: p.Identifier,
		Customer:   p.Customer.String(),
		Settlement: p.Settlement.String(),
		Mint:       p.Mint.String(),
		Amount:     FormatAmount(p.Amount),
		Fee:        FormatAmount(p.Fee),
		Net:        FormatAmount(p.Net),
		Slot:       p.Slot,
		PaidAt:     time.Unix(p.Timestamp, 0).UTC(),
	}
	for i, ref := range p.References {
		row.References = append(row.References, Reference{
			ID:        uuid.New(),
			PaymentID: row.ID,
			Marker:    ref.String(),
			Position:  i,
		})
	}
	return ix.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
}

// FindByReference returns the payments that carried marker, oldest first.
func (ix *Indexer) FindByReference(ctx context.Context, marker crypto.Address) ([]Payment, error) {
	var ids []uuid.UUID
	if err := ix.db.WithContext(ctx).Model(&Reference{}).
		Where("marker = ?", marker.String()).
		Pluck("payment_id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var out []Payment
	err := ix.db.WithContext(ctx).
		Preload("References", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("id IN ?", ids).
		Order("slot").Order("created_at").
		Find(&out).Error
	return out, err
}

// Validate checks that a payment carrying marker paid exactly amount to the
// settlement identity recipient. It returns the first matching payment.
func (ix *Indexer) Validate(ctx context.Context, marker crypto.Address, amount uint64, recipient crypto.Address) (*Payment, error) {
	found, err := ix.FindByReference(ctx, marker)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	mismatch := ErrRecipientMismatch
	for i := range found {
		p := &found[i]
		if p.Settlement != recipient.String() {
			continue
		}
		if p.Amount != FormatAmount(amount) {
			mismatch = ErrAmountMismatch
			continue
		}
		return p, nil
	}
	return nil, mismatch
}
