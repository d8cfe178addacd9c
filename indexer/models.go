package indexer

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment is a committed payments.processed event. Token amounts are kept as
// decimal strings since sqlite integers are signed 64-bit.
type Payment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Digest     string    `gorm:"size:64;index"`
	Merchant   string    `gorm:"size:64;index"`
	Identifier string    `gorm:"size:64;index"`
	Customer   string    `gorm:"size:64;index"`
	Settlement string    `gorm:"size:64"`
	Mint       string    `gorm:"size:64"`
	Amount     string    `gorm:"size:20;not null"`
	Fee        string    `gorm:"size:20;not null"`
	Net        string    `gorm:"size:20;not null"`
	Slot       uint64    `gorm:"index"`
	PaidAt     time.Time
	References []Reference
	CreatedAt  time.Time
}

// FormatAmount renders a token amount the way Payment stores it.
func FormatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// Reference links a payment to one of the reference markers it carried.
type Reference struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	PaymentID uuid.UUID `gorm:"type:uuid;index"`
	Marker    string    `gorm:"size:64;index"`
	Position  int
}

// AutoMigrate creates or updates the index tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Payment{}, &Reference{})
}
