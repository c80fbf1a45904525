package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ListingStatusActive    = "ACTIVE"
	ListingStatusSold      = "SOLD"
	ListingStatusCancelled = "CANCELLED"
)

type Listing struct {
	bun.BaseModel `bun:"table:marketplace_listings"`

	ID        string     `bun:"id,pk"`
	TicketID  string     `bun:"ticket_id,notnull"`
	EventID   string     `bun:"event_id,notnull"`
	SellerID  string     `bun:"seller_id,notnull"`
	BuyerID   *string    `bun:"buyer_id,nullzero"`
	Price     string     `bun:"price,notnull"`
	Status    string     `bun:"status,notnull"`
	SoldAt    *time.Time `bun:"sold_at,nullzero"`
	CreatedAt time.Time  `bun:"created_at,notnull"`
	UpdatedAt time.Time  `bun:"updated_at,notnull"`
}
