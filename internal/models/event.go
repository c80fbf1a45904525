package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Event statuses mirror the ledger's active flag plus the local lifecycle.
const (
	EventStatusActive    = "ACTIVE"
	EventStatusCancelled = "CANCELLED"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID             string    `bun:"id,pk"`
	LedgerEventID  string    `bun:"ledger_event_id,unique,notnull"`
	OrganizerID    string    `bun:"organizer_id,notnull"`
	MetadataHash   string    `bun:"metadata_hash"`
	EventStartTime time.Time `bun:"event_start_time"`
	TicketsTotal   int64     `bun:"tickets_total"`
	TicketsMinted  int64     `bun:"tickets_minted"`

	ResaleEnabled   bool       `bun:"resale_enabled"`
	ResaleMaxPrice  *string    `bun:"resale_max_price,nullzero"`
	ResaleStartTime *time.Time `bun:"resale_start_time,nullzero"`
	ResaleEndTime   *time.Time `bun:"resale_end_time,nullzero"`

	SellerPercentage    int `bun:"seller_percentage"`
	OrganizerPercentage int `bun:"organizer_percentage"`
	PlatformPercentage  int `bun:"platform_percentage"`

	Status       string    `bun:"status,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
	LastSyncedAt time.Time `bun:"last_synced_at"`
}

// HasLedgerID reports whether the event has been confirmed on the ledger, as
// opposed to still carrying a pending placeholder id.
func (e *Event) HasLedgerID() bool {
	return e.LedgerEventID != "" && !strings.HasPrefix(e.LedgerEventID, "pending-")
}
