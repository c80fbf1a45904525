package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Zone struct {
	bun.BaseModel `bun:"table:event_zones"`

	ID        string    `bun:"id,pk"`
	EventID   string    `bun:"event_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Price     string    `bun:"price,notnull"`
	Capacity  int64     `bun:"capacity,notnull"`
	Sold      int64     `bun:"sold,notnull,default:0"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Remaining is the unsold seat count; never negative while the capacity
// invariant holds.
func (z *Zone) Remaining() int64 {
	return z.Capacity - z.Sold
}
