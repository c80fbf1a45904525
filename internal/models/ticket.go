package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const (
	TicketStatusActive    = "ACTIVE"
	TicketStatusUsed      = "USED"
	TicketStatusCancelled = "CANCELLED"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID             string     `bun:"id,pk"`
	LedgerTicketID string     `bun:"ledger_ticket_id,unique,notnull"`
	EventID        string     `bun:"event_id,notnull"`
	ZoneID         *string    `bun:"zone_id,nullzero"`
	OwnerID        string     `bun:"owner_id,notnull"`
	OriginalBuyerID string    `bun:"original_buyer_id,notnull"`
	Status         string     `bun:"status,notnull"`
	MintedAt       time.Time  `bun:"minted_at"`
	UsedAt         *time.Time `bun:"used_at,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull"`
	LastSyncedAt   time.Time  `bun:"last_synced_at"`
}

// HasLedgerID reports whether the ticket carries a confirmed ledger id rather
// than a speculative placeholder.
func (t *Ticket) HasLedgerID() bool {
	return t.LedgerTicketID != "" && !strings.HasPrefix(t.LedgerTicketID, "pending-")
}
