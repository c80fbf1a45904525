package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-chainsync/internal/config"
	"ms-chainsync/internal/ledger"
	"ms-chainsync/internal/logger"
	"ms-chainsync/internal/models"
	"ms-chainsync/internal/syncqueue"
)

type DBLayer interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEventByLedgerID(ctx context.Context, ledgerID string) (*models.Event, error)
	FindPendingEventExact(ctx context.Context, organizerID, metadataHash string, startTime time.Time, window time.Duration) (*models.Event, error)
	FindLatestPendingEvent(ctx context.Context, organizerID string, window time.Duration) (*models.Event, error)
	UpdateEvent(ctx context.Context, event *models.Event, columns ...string) error

	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicketByLedgerID(ctx context.Context, ledgerID string) (*models.Ticket, error)
	FindOldestPendingTicket(ctx context.Context, eventID, ownerID string) (*models.Ticket, error)
	UpdateTicket(ctx context.Context, ticket *models.Ticket, columns ...string) error

	GetZoneByName(ctx context.Context, eventID, name string) (*models.Zone, error)

	CreateListing(ctx context.Context, listing *models.Listing) error
	GetActiveListingByTicket(ctx context.Context, ticketID string) (*models.Listing, error)
	GetLatestListingByTicket(ctx context.Context, ticketID string) (*models.Listing, error)
	UpdateListing(ctx context.Context, listing *models.Listing, columns ...string) error

	GetUserByWallet(ctx context.Context, walletAddress string) (*models.User, error)
	FindOrCreateUserByWallet(ctx context.Context, walletAddress string) (*models.User, error)
}

// LedgerReader is the read-only slice of the ledger client the reconciler
// needs for detail fetches.
type LedgerReader interface {
	GetEvent(ctx context.Context, eventID ledger.U256) (*ledger.EventInfo, error)
	GetTicket(ctx context.Context, ticketID ledger.U256) (*ledger.TicketInfo, error)
}

// KafkaPublisher announces projection changes downstream. Publishing is best
// effort; a broker outage never fails a sync job.
type KafkaPublisher interface {
	PublishEventSynced(event *models.Event) error
	PublishTicketSynced(ticket *models.Ticket) error
	PublishTicketResold(ticket *models.Ticket, listing *models.Listing) error
}

// Reconciler owns every projection write. Handlers are idempotent upserts so
// the queue's at-least-once delivery and out-of-order batches converge on
// ledger truth.
type Reconciler struct {
	DB     DBLayer
	Ledger LedgerReader
	Kafka  KafkaPublisher
	Logger *logger.Logger

	cfg    config.SyncConfig
	prefix byte
}

func New(db DBLayer, ledgerReader LedgerReader, kafka KafkaPublisher, log *logger.Logger, cfg config.SyncConfig, addressPrefix int) *Reconciler {
	return &Reconciler{
		DB:     db,
		Ledger: ledgerReader,
		Kafka:  kafka,
		Logger: log,
		cfg:    cfg,
		prefix: byte(addressPrefix),
	}
}

// Registrar is the slice of the queue used for wiring handlers.
type Registrar interface {
	Register(kind string, handler syncqueue.Handler)
}

// Register wires every job kind to its handler.
func (r *Reconciler) Register(q Registrar) {
	q.Register(models.JobSyncEvent, unwrap(r.SyncEvent))
	q.Register(models.JobSyncTicketBatch, unwrap(r.SyncTicketBatch))
	q.Register(models.JobSyncTicket, unwrap(r.SyncTicket))
	q.Register(models.JobSyncTicketUsed, unwrap(r.SyncTicketUsed))
	q.Register(models.JobSyncResale, unwrap(r.SyncResale))
}

// unwrap decodes the job payload into the handler's DTO type.
func unwrap[T any](handler func(ctx context.Context, dto T) error) syncqueue.Handler {
	return func(ctx context.Context, job *syncqueue.Job) error {
		var dto T
		if err := json.Unmarshal(job.Payload, &dto); err != nil {
			return fmt.Errorf("decoding %s payload: %w", job.Kind, err)
		}
		return handler(ctx, dto)
	}
}

// walletAddress decodes a 0x actor id into its human address, falling back
// to the given address when the hex cannot be decoded.
func (r *Reconciler) walletAddress(raw, fallback string) string {
	actor, err := ledger.ParseActorHex(raw)
	if err != nil {
		return fallback
	}
	return actor.Address(r.prefix)
}
