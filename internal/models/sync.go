package models

// Job kinds processed by the sync queue. Every kind maps to one reconciler
// handler; payloads are the DTOs below.
const (
	JobSyncEvent       = "sync-event"
	JobSyncTicketBatch = "sync-ticket-batch"
	JobSyncTicket      = "sync-ticket"
	JobSyncTicketUsed  = "sync-ticket-used"
	JobSyncResale      = "sync-resale"
)

// SyncEventDTO carries everything the reconciler needs to upsert one event
// projection. Organizer is the human wallet address, already decoded from the
// on-ledger actor id by the ingestor.
type SyncEventDTO struct {
	EventID        string `json:"eventId"`
	Organizer      string `json:"organizer"`
	MetadataHash   string `json:"metadataHash"`
	EventStartTime uint64 `json:"eventStartTime"`
}

// SyncTicketBatchDTO is enqueued once per TicketsMinted notification; the
// reconciler expands it into per-ticket detail fetches. Buyer is the batch
// buyer wallet address, used as a fallback when a per-ticket owner cannot be
// decoded.
type SyncTicketBatchDTO struct {
	EventID   string   `json:"eventId"`
	TicketIDs []string `json:"ticketIds"`
	Buyer     string   `json:"buyer"`
}

// SyncTicketDTO is the fully resolved per-ticket state as fetched from the
// ledger. Owner fields are wallet addresses.
type SyncTicketDTO struct {
	TicketID      string `json:"ticketId"`
	EventID       string `json:"eventId"`
	OriginalBuyer string `json:"originalBuyer"`
	CurrentOwner  string `json:"currentOwner"`
	Zone          string `json:"zone,omitempty"`
	Used          bool   `json:"used"`
	MintedAt      uint64 `json:"mintedAt"`
}

// SyncTicketUsedDTO marks one ticket as used; the reconciler refetches the
// ticket so the projection reflects ledger truth rather than the raw event.
type SyncTicketUsedDTO struct {
	TicketID string `json:"ticketId"`
	EventID  string `json:"eventId"`
}

// SyncResaleDTO records an ownership transfer through the marketplace.
type SyncResaleDTO struct {
	TicketID string `json:"ticketId"`
	EventID  string `json:"eventId"`
	Seller   string `json:"seller"`
	Buyer    string `json:"buyer"`
	Price    string `json:"price"`
}
