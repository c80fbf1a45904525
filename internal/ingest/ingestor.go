package ingest

import (
	"context"
	"fmt"
	"time"

	"ms-chainsync/internal/config"
	"ms-chainsync/internal/ledger"
	"ms-chainsync/internal/logger"
	"ms-chainsync/internal/models"
)

// Enqueuer is the slice of the sync queue the ingestor needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload interface{}) error
}

// Ingestor subscribes to the ledger program's notification stream and turns
// each event into a durable sync job. It performs no projection writes
// itself; handlers only translate and enqueue, so a crash between delivery
// and enqueue costs at most a redelivery.
type Ingestor struct {
	client ledger.Client
	queue  Enqueuer
	logger *logger.Logger
	cfg    config.LedgerConfig
	prefix byte

	unsubs []func()
}

func New(client ledger.Client, queue Enqueuer, log *logger.Logger, cfg config.LedgerConfig) *Ingestor {
	return &Ingestor{
		client: client,
		queue:  queue,
		logger: log,
		cfg:    cfg,
		prefix: byte(cfg.AddressPrefix),
	}
}

// Start waits for ledger connectivity, then installs one subscription per
// event kind. A ledger that never comes up is logged, not fatal; the stream
// reconnect loop keeps trying in the background.
func (i *Ingestor) Start(ctx context.Context) error {
	i.waitForLedger(ctx)

	for _, kind := range ledger.AllEventKinds {
		kind := kind
		unsub, err := i.client.Subscribe(ctx, kind, func(event ledger.DomainEvent) {
			i.dispatch(ctx, event)
		})
		if err != nil {
			i.Close()
			return fmt.Errorf("subscribing to %s: %w", kind, err)
		}
		i.unsubs = append(i.unsubs, unsub)
		i.logger.LogLedger("SUBSCRIBE", string(kind), "listening")
	}
	return nil
}

// Close tears down every subscription.
func (i *Ingestor) Close() {
	for _, unsub := range i.unsubs {
		unsub()
	}
	i.unsubs = nil
}

func (i *Ingestor) waitForLedger(ctx context.Context) {
	for attempt := 1; attempt <= i.cfg.ConnectAttempts; attempt++ {
		if i.client.Connected(ctx) {
			i.logger.LogLedger("CONNECT", i.cfg.GatewayURL, "ledger gateway reachable")
			return
		}
		i.logger.Warn("LEDGER", fmt.Sprintf("gateway not reachable, attempt %d/%d", attempt, i.cfg.ConnectAttempts))
		select {
		case <-ctx.Done():
			return
		case <-time.After(i.cfg.ConnectDelay):
		}
	}
	i.logger.Warn("LEDGER", "gateway still unreachable, subscribing anyway and relying on stream reconnects")
}

func (i *Ingestor) dispatch(ctx context.Context, event ledger.DomainEvent) {
	switch e := event.(type) {
	case *ledger.EventCreated:
		i.enqueue(ctx, models.JobSyncEvent, models.SyncEventDTO{
			EventID:        e.EventID.String(),
			Organizer:      e.Organizer.Address(i.prefix),
			MetadataHash:   e.MetadataHash.Hex(),
			EventStartTime: e.EventStartTime,
		})

	case *ledger.TicketsMinted:
		ids := make([]string, 0, len(e.TicketIDs))
		for _, id := range e.TicketIDs {
			ids = append(ids, id.String())
		}
		i.enqueue(ctx, models.JobSyncTicketBatch, models.SyncTicketBatchDTO{
			EventID:   e.EventID.String(),
			TicketIDs: ids,
			Buyer:     e.Buyer.Address(i.prefix),
		})

	case *ledger.TicketUsed:
		i.enqueue(ctx, models.JobSyncTicketUsed, models.SyncTicketUsedDTO{
			TicketID: e.TicketID.String(),
			EventID:  e.EventID.String(),
		})

	case *ledger.TicketResold:
		i.enqueueResale(ctx, e.TicketID, e.EventID, e.Seller, e.Buyer, e.Price)

	case *ledger.TicketSold:
		i.enqueueResale(ctx, e.TicketID, e.EventID, e.Seller, e.Buyer, e.Price)

	case *ledger.TicketListed:
		i.logger.LogLedger("LISTED", e.TicketID.String(), fmt.Sprintf("seller %s price %s", e.Seller.Address(i.prefix), e.Price.String()))

	case *ledger.ListingCancelled:
		i.logger.LogLedger("UNLISTED", e.TicketID.String(), "listing cancelled on ledger")

	default:
		i.logger.Warn("LEDGER", fmt.Sprintf("unhandled event kind %s", event.Kind()))
	}
}

func (i *Ingestor) enqueueResale(ctx context.Context, ticketID, eventID ledger.U256, seller, buyer ledger.ActorID, price ledger.U256) {
	i.enqueue(ctx, models.JobSyncResale, models.SyncResaleDTO{
		TicketID: ticketID.String(),
		EventID:  eventID.String(),
		Seller:   seller.Address(i.prefix),
		Buyer:    buyer.Address(i.prefix),
		Price:    price.String(),
	})
}

func (i *Ingestor) enqueue(ctx context.Context, kind string, payload interface{}) {
	if err := i.queue.Enqueue(ctx, kind, payload); err != nil {
		// The notification is lost for this delivery; the ledger remains the
		// source of truth and a later manual resync can repair the gap.
		i.logger.Error("LEDGER", fmt.Sprintf("enqueue %s failed: %v", kind, err))
		return
	}
	i.logger.LogLedger("EVENT", kind, "queued for reconciliation")
}
