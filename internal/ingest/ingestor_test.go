package ingest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-chainsync/internal/config"
	"ms-chainsync/internal/ingest"
	"ms-chainsync/internal/ledger"
	"ms-chainsync/internal/logger"
	"ms-chainsync/internal/models"
)

// fakeLedger records subscriptions and lets the test push events through
// them.
type fakeLedger struct {
	connected bool
	callbacks map[ledger.EventKind]func(ledger.DomainEvent)
	unsubbed  int
}

func newFakeLedger(connected bool) *fakeLedger {
	return &fakeLedger{
		connected: connected,
		callbacks: make(map[ledger.EventKind]func(ledger.DomainEvent)),
	}
}

func (f *fakeLedger) CreateEvent(ctx context.Context, organizer ledger.ActorID, metadataHash ledger.Hash32, eventStartTime uint64, ticketsTotal ledger.U256, resale ledger.ResaleConfig, commission ledger.CommissionConfig) (*ledger.TxReceipt, error) {
	return &ledger.TxReceipt{}, nil
}

func (f *fakeLedger) MintTickets(ctx context.Context, eventID ledger.U256, buyer ledger.ActorID, amount uint64, zones []string) (*ledger.TxReceipt, error) {
	return &ledger.TxReceipt{}, nil
}

func (f *fakeLedger) MarkTicketUsed(ctx context.Context, ticketID ledger.U256) (*ledger.TxReceipt, error) {
	return &ledger.TxReceipt{}, nil
}

func (f *fakeLedger) ListTicket(ctx context.Context, ticketID, price ledger.U256) (*ledger.TxReceipt, error) {
	return &ledger.TxReceipt{}, nil
}

func (f *fakeLedger) BuyTicket(ctx context.Context, ticketID ledger.U256) (*ledger.TxReceipt, error) {
	return &ledger.TxReceipt{}, nil
}

func (f *fakeLedger) CancelListing(ctx context.Context, ticketID ledger.U256) (*ledger.TxReceipt, error) {
	return &ledger.TxReceipt{}, nil
}

func (f *fakeLedger) GetEvent(ctx context.Context, eventID ledger.U256) (*ledger.EventInfo, error) {
	return nil, nil
}

func (f *fakeLedger) GetTicket(ctx context.Context, ticketID ledger.U256) (*ledger.TicketInfo, error) {
	return nil, nil
}

func (f *fakeLedger) Subscribe(ctx context.Context, kind ledger.EventKind, fn func(ledger.DomainEvent)) (func(), error) {
	f.callbacks[kind] = fn
	return func() { f.unsubbed++ }, nil
}

func (f *fakeLedger) Connected(ctx context.Context) bool {
	return f.connected
}

// fakeQueue records every enqueue.
type fakeQueue struct {
	kinds    []string
	payloads []interface{}
}

func (f *fakeQueue) Enqueue(ctx context.Context, kind string, payload interface{}) error {
	f.kinds = append(f.kinds, kind)
	f.payloads = append(f.payloads, payload)
	return nil
}

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		GatewayURL:      "http://localhost:9944",
		AddressPrefix:   42,
		ConnectAttempts: 2,
		ConnectDelay:    time.Millisecond,
	}
}

func TestStartSubscribesToEveryKind(t *testing.T) {
	client := newFakeLedger(true)
	queue := &fakeQueue{}
	ing := ingest.New(client, queue, logger.NewLogger(), testLedgerConfig())

	require.NoError(t, ing.Start(context.Background()))
	defer ing.Close()

	assert.Len(t, client.callbacks, len(ledger.AllEventKinds))
}

func TestStartSurvivesUnreachableLedger(t *testing.T) {
	client := newFakeLedger(false)
	queue := &fakeQueue{}
	ing := ingest.New(client, queue, logger.NewLogger(), testLedgerConfig())

	// Never crashes; subscriptions are still installed and the stream layer
	// keeps reconnecting underneath.
	require.NoError(t, ing.Start(context.Background()))
	ing.Close()

	assert.Equal(t, len(ledger.AllEventKinds), client.unsubbed)
}

func TestEventCreatedEnqueuesSyncEvent(t *testing.T) {
	client := newFakeLedger(true)
	queue := &fakeQueue{}
	ing := ingest.New(client, queue, logger.NewLogger(), testLedgerConfig())

	require.NoError(t, ing.Start(context.Background()))
	defer ing.Close()

	var organizer ledger.ActorID
	organizer[0] = 7
	var hash ledger.Hash32
	hash[0] = 0xaa

	client.callbacks[ledger.KindEventCreated](&ledger.EventCreated{
		EventID:        ledger.NewU256(12),
		Organizer:      organizer,
		MetadataHash:   hash,
		EventStartTime: 1760000000,
	})

	require.Len(t, queue.kinds, 1)
	assert.Equal(t, models.JobSyncEvent, queue.kinds[0])

	dto, ok := queue.payloads[0].(models.SyncEventDTO)
	require.True(t, ok)
	assert.Equal(t, "12", dto.EventID)
	assert.Equal(t, organizer.Address(42), dto.Organizer, "organizer is enqueued as a wallet address")
	assert.Equal(t, hash.Hex(), dto.MetadataHash)
}

func TestTicketsMintedEnqueuesOneBatchJob(t *testing.T) {
	client := newFakeLedger(true)
	queue := &fakeQueue{}
	ing := ingest.New(client, queue, logger.NewLogger(), testLedgerConfig())

	require.NoError(t, ing.Start(context.Background()))
	defer ing.Close()

	var buyer ledger.ActorID
	buyer[1] = 3

	client.callbacks[ledger.KindTicketsMinted](&ledger.TicketsMinted{
		EventID:   ledger.NewU256(5),
		TicketIDs: []ledger.U256{ledger.NewU256(100), ledger.NewU256(101)},
		Buyer:     buyer,
		Amount:    ledger.NewU256(2),
	})

	require.Len(t, queue.kinds, 1, "a whole batch is one job")
	assert.Equal(t, models.JobSyncTicketBatch, queue.kinds[0])

	dto, ok := queue.payloads[0].(models.SyncTicketBatchDTO)
	require.True(t, ok)
	assert.Equal(t, []string{"100", "101"}, dto.TicketIDs)
	assert.Equal(t, buyer.Address(42), dto.Buyer)
}

func TestResaleVariantsEnqueueSameJobKind(t *testing.T) {
	client := newFakeLedger(true)
	queue := &fakeQueue{}
	ing := ingest.New(client, queue, logger.NewLogger(), testLedgerConfig())

	require.NoError(t, ing.Start(context.Background()))
	defer ing.Close()

	var seller, buyer ledger.ActorID
	seller[0] = 1
	buyer[0] = 2

	client.callbacks[ledger.KindTicketResold](&ledger.TicketResold{
		TicketID: ledger.NewU256(9),
		EventID:  ledger.NewU256(5),
		Seller:   seller,
		Buyer:    buyer,
		Price:    ledger.NewU256(5000),
	})
	client.callbacks[ledger.KindTicketSold](&ledger.TicketSold{
		TicketID: ledger.NewU256(10),
		EventID:  ledger.NewU256(5),
		Seller:   seller,
		Buyer:    buyer,
		Price:    ledger.NewU256(6000),
	})

	require.Len(t, queue.kinds, 2)
	assert.Equal(t, models.JobSyncResale, queue.kinds[0])
	assert.Equal(t, models.JobSyncResale, queue.kinds[1])
}

func TestListingEventsAreLogOnly(t *testing.T) {
	client := newFakeLedger(true)
	queue := &fakeQueue{}
	ing := ingest.New(client, queue, logger.NewLogger(), testLedgerConfig())

	require.NoError(t, ing.Start(context.Background()))
	defer ing.Close()

	client.callbacks[ledger.KindTicketListed](&ledger.TicketListed{
		TicketID: ledger.NewU256(1),
		EventID:  ledger.NewU256(2),
		Price:    ledger.NewU256(100),
	})
	client.callbacks[ledger.KindListingCancelled](&ledger.ListingCancelled{
		TicketID: ledger.NewU256(1),
		EventID:  ledger.NewU256(2),
	})

	assert.Empty(t, queue.kinds, "listings project on resale, not on listing chatter")
}
