package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID            string    `bun:"id,pk"`
	WalletAddress string    `bun:"wallet_address,unique,notnull"`
	Email         string    `bun:"email"`
	FullName      string    `bun:"full_name"`
	Placeholder   bool      `bun:"placeholder,notnull,default:false"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}
