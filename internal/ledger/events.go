package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventKind identifies a domain event emitted by the ledger program.
type EventKind string

const (
	KindEventCreated     EventKind = "EventCreated"
	KindTicketsMinted    EventKind = "TicketsMinted"
	KindTicketResold     EventKind = "TicketResold"
	KindTicketSold       EventKind = "TicketSold"
	KindTicketUsed       EventKind = "TicketUsed"
	KindTicketListed     EventKind = "TicketListed"
	KindListingCancelled EventKind = "ListingCancelled"
)

// AllEventKinds lists every kind the ingestor subscribes to.
var AllEventKinds = []EventKind{
	KindEventCreated,
	KindTicketsMinted,
	KindTicketResold,
	KindTicketSold,
	KindTicketUsed,
	KindTicketListed,
	KindListingCancelled,
}

// DomainEvent is the tagged union of decoded ledger events.
type DomainEvent interface {
	Kind() EventKind
}

type EventCreated struct {
	EventID        U256    `json:"event_id"`
	Organizer      ActorID `json:"organizer"`
	MetadataHash   Hash32  `json:"metadata_hash"`
	EventStartTime uint64  `json:"event_start_time"`
}

func (EventCreated) Kind() EventKind { return KindEventCreated }

type TicketsMinted struct {
	EventID   U256    `json:"event_id"`
	TicketIDs []U256  `json:"ticket_ids"`
	Buyer     ActorID `json:"buyer"`
	Amount    U256    `json:"amount"`
}

func (TicketsMinted) Kind() EventKind { return KindTicketsMinted }

type TicketResold struct {
	TicketID       U256    `json:"ticket_id"`
	EventID        U256    `json:"event_id"`
	Seller         ActorID `json:"seller"`
	Buyer          ActorID `json:"buyer"`
	Price          U256    `json:"price"`
	SellerShare    U256    `json:"seller_share"`
	OrganizerShare U256    `json:"organizer_share"`
	PlatformShare  U256    `json:"platform_share"`
}

func (TicketResold) Kind() EventKind { return KindTicketResold }

// TicketSold carries the same payload as TicketResold but is emitted by the
// marketplace half of the program.
type TicketSold TicketResold

func (TicketSold) Kind() EventKind { return KindTicketSold }

type TicketUsed struct {
	TicketID U256    `json:"ticket_id"`
	EventID  U256    `json:"event_id"`
	Scanner  ActorID `json:"scanner"`
}

func (TicketUsed) Kind() EventKind { return KindTicketUsed }

type TicketListed struct {
	TicketID U256    `json:"ticket_id"`
	EventID  U256    `json:"event_id"`
	Seller   ActorID `json:"seller"`
	Price    U256    `json:"price"`
}

func (TicketListed) Kind() EventKind { return KindTicketListed }

type ListingCancelled struct {
	TicketID U256    `json:"ticket_id"`
	EventID  U256    `json:"event_id"`
	Seller   ActorID `json:"seller"`
}

func (ListingCancelled) Kind() EventKind { return KindListingCancelled }

// Notification is a raw program message as delivered by the gateway stream.
// Source is the emitting program, Destination the broadcast sentinel, and
// Service/Function name the payload encoding.
type Notification struct {
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	Service     string          `json:"service"`
	Function    string          `json:"function"`
	Payload     json.RawMessage `json:"payload"`
}

var (
	// ErrForeignSource marks a notification emitted by a different program.
	ErrForeignSource = errors.New("notification source is not the configured program")
	// ErrNotBroadcast marks a directed message rather than an event broadcast.
	ErrNotBroadcast = errors.New("notification destination is not the broadcast sentinel")
)

// DecodeNotification verifies that the notification originates from programID
// and is a broadcast, then decodes the payload by (service, function) into a
// typed DomainEvent. Unknown or malformed payloads return an error; callers
// log and drop.
func DecodeNotification(n Notification, programID ActorID) (DomainEvent, error) {
	source, err := ParseActorHex(n.Source)
	if err != nil {
		return nil, fmt.Errorf("bad notification source: %w", err)
	}
	if source != programID {
		return nil, ErrForeignSource
	}
	dest, err := ParseActorHex(n.Destination)
	if err != nil {
		return nil, fmt.Errorf("bad notification destination: %w", err)
	}
	if !dest.IsZero() {
		return nil, ErrNotBroadcast
	}

	if n.Service != "Ticket" && n.Service != "Market" {
		return nil, fmt.Errorf("unknown service %q", n.Service)
	}

	decode := func(v DomainEvent) (DomainEvent, error) {
		if err := json.Unmarshal(n.Payload, v); err != nil {
			return nil, fmt.Errorf("decoding %s.%s payload: %w", n.Service, n.Function, err)
		}
		return v, nil
	}

	switch EventKind(n.Function) {
	case KindEventCreated:
		return decode(&EventCreated{})
	case KindTicketsMinted:
		return decode(&TicketsMinted{})
	case KindTicketResold:
		return decode(&TicketResold{})
	case KindTicketSold:
		return decode(&TicketSold{})
	case KindTicketUsed:
		return decode(&TicketUsed{})
	case KindTicketListed:
		return decode(&TicketListed{})
	case KindListingCancelled:
		return decode(&ListingCancelled{})
	default:
		return nil, fmt.Errorf("unknown function %q", n.Function)
	}
}
