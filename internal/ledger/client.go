package ledger

import (
	"context"
	"encoding/json"
)

// TxReceipt is returned by every ledger write. Response carries the decoded
// program reply when the gateway could decode it, raw JSON otherwise.
type TxReceipt struct {
	TxHash    string          `json:"tx_hash"`
	BlockHash string          `json:"block_hash"`
	Response  json.RawMessage `json:"response,omitempty"`
}

type ResaleConfig struct {
	Enabled         bool   `json:"enabled"`
	MaxPrice        *U256  `json:"max_price,omitempty"`
	ResaleStartTime *int64 `json:"resale_start_time,omitempty"`
	ResaleEndTime   *int64 `json:"resale_end_time,omitempty"`
}

// CommissionConfig splits a resale in basis points; the three shares sum to
// 10000.
type CommissionConfig struct {
	SellerPercentage    int `json:"seller_percentage"`
	OrganizerPercentage int `json:"organizer_percentage"`
	PlatformPercentage  int `json:"platform_percentage"`
}

// EventInfo is the decoded on-ledger event state.
type EventInfo struct {
	EventID        U256   `json:"event_id"`
	Organizer      string `json:"organizer"`
	MetadataHash   string `json:"metadata_hash"`
	EventStartTime uint64 `json:"event_start_time"`
	TicketsTotal   U256   `json:"tickets_total"`
	TicketsMinted  U256   `json:"tickets_minted"`
	Active         bool   `json:"active"`
}

// TicketInfo is the decoded on-ledger ticket state. The owner fields are
// 0x-prefixed actor id hex as the program stores them; decoding them into
// addresses can fail per ticket, which is why they stay strings here.
type TicketInfo struct {
	EventID       U256   `json:"event_id"`
	OriginalBuyer string `json:"original_buyer"`
	CurrentOwner  string `json:"current_owner"`
	Zone          string `json:"zone,omitempty"`
	Used          bool   `json:"used"`
	MintedAt      uint64 `json:"minted_at"`
}

// Client is the ledger program surface the engine consumes. Write operations
// return a transaction receipt; read operations return the decoded state or
// (nil, nil) when the entity does not exist; Subscribe installs a callback on
// the program's notification stream and returns its disposer.
type Client interface {
	CreateEvent(ctx context.Context, organizer ActorID, metadataHash Hash32, eventStartTime uint64, ticketsTotal U256, resale ResaleConfig, commission CommissionConfig) (*TxReceipt, error)
	MintTickets(ctx context.Context, eventID U256, buyer ActorID, amount uint64, zones []string) (*TxReceipt, error)
	MarkTicketUsed(ctx context.Context, ticketID U256) (*TxReceipt, error)
	ListTicket(ctx context.Context, ticketID U256, price U256) (*TxReceipt, error)
	BuyTicket(ctx context.Context, ticketID U256) (*TxReceipt, error)
	CancelListing(ctx context.Context, ticketID U256) (*TxReceipt, error)

	GetEvent(ctx context.Context, eventID U256) (*EventInfo, error)
	GetTicket(ctx context.Context, ticketID U256) (*TicketInfo, error)

	Subscribe(ctx context.Context, kind EventKind, fn func(DomainEvent)) (func(), error)
	Connected(ctx context.Context) bool
}
