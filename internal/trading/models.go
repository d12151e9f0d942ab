package trading

import (
	"time"

	"gorm.io/gorm"
)

// IdempotencyRecord maps a caller-supplied idempotency key to the
// resource it created, so repeated submissions return the original
// resource instead of mutating the book twice.
type IdempotencyRecord struct {
	gorm.Model
	IdempotencyKey string    `gorm:"uniqueIndex"`
	ResourceID     string
	ResourceType   string // "order" or "match"
	ExpiresAt      time.Time
}
