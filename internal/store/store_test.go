package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-chainsync/internal/models"
	"ms-chainsync/internal/store"
	"ms-chainsync/internal/utils"
)

func setupTestDB(t *testing.T) (*store.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	for _, model := range []interface{}{
		(*models.Event)(nil),
		(*models.Ticket)(nil),
		(*models.Zone)(nil),
		(*models.Listing)(nil),
		(*models.User)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	return store.New(bunDB), bunDB
}

func insertEvent(t *testing.T, db *store.DB, ledgerID string) *models.Event {
	event := &models.Event{
		ID:            uuid.New().String(),
		LedgerEventID: ledgerID,
		OrganizerID:   "org-1",
		MetadataHash:  "0xabc",
		TicketsTotal:  100,
		Status:        models.EventStatusActive,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, db.CreateEvent(context.Background(), event))
	return event
}

func TestGetEventByLedgerID(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	created := insertEvent(t, db, "42")

	event, err := db.GetEventByLedgerID(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, created.ID, event.ID)

	// Absence is nil, not an error.
	event, err = db.GetEventByLedgerID(context.Background(), "999")
	assert.NoError(t, err)
	assert.Nil(t, event)
}

func TestFindPendingEventExactPrefersMetadataMatch(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	start := time.Unix(1760000000, 0)

	other := insertEvent(t, db, utils.PendingEventID())
	other.MetadataHash = "0xother"
	other.EventStartTime = start
	require.NoError(t, db.UpdateEvent(ctx, other, "metadata_hash", "event_start_time"))

	match := insertEvent(t, db, utils.PendingEventID())
	match.MetadataHash = "0xwanted"
	match.EventStartTime = start
	require.NoError(t, db.UpdateEvent(ctx, match, "metadata_hash", "event_start_time"))

	found, err := db.FindPendingEventExact(ctx, "org-1", "0xwanted", start, 30*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, match.ID, found.ID)

	// No exact match falls back to nil; the caller then tries the latest
	// pending row.
	found, err = db.FindPendingEventExact(ctx, "org-1", "0xmissing", start, 30*time.Minute)
	require.NoError(t, err)
	assert.Nil(t, found)

	latest, err := db.FindLatestPendingEvent(ctx, "org-1", 30*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, latest)
}

func TestFindPendingEventScopedToOrganizer(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	start := time.Unix(1760000000, 0)

	mine := insertEvent(t, db, utils.PendingEventID())
	mine.MetadataHash = "0xmine"
	mine.EventStartTime = start
	require.NoError(t, db.UpdateEvent(ctx, mine, "metadata_hash", "event_start_time"))

	// Another organizer's pending row must be invisible to both queries.
	found, err := db.FindPendingEventExact(ctx, "org-2", "0xmine", start, 30*time.Minute)
	require.NoError(t, err)
	assert.Nil(t, found)

	latest, err := db.FindLatestPendingEvent(ctx, "org-2", 30*time.Minute)
	require.NoError(t, err)
	assert.Nil(t, latest)

	latest, err = db.FindLatestPendingEvent(ctx, "org-1", 30*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, mine.ID, latest.ID)
}

func TestFindPendingEventIgnoresStaleRows(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()

	stale := &models.Event{
		ID:            uuid.New().String(),
		LedgerEventID: utils.PendingEventID(),
		OrganizerID:   "org-1",
		Status:        models.EventStatusActive,
		CreatedAt:     time.Now().Add(-time.Hour),
		UpdatedAt:     time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.CreateEvent(ctx, stale))

	found, err := db.FindLatestPendingEvent(ctx, "org-1", 30*time.Minute)
	require.NoError(t, err)
	assert.Nil(t, found, "rows older than the window must not match")
}

func TestFindOldestPendingTicket(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	event := insertEvent(t, db, "7")

	first := &models.Ticket{
		ID:              uuid.New().String(),
		LedgerTicketID:  utils.PendingTicketID("req-1"),
		EventID:         event.ID,
		OwnerID:         "user-1",
		OriginalBuyerID: "user-1",
		Status:          models.TicketStatusActive,
		CreatedAt:       time.Now().Add(-time.Minute),
		UpdatedAt:       time.Now().Add(-time.Minute),
	}
	second := &models.Ticket{
		ID:              uuid.New().String(),
		LedgerTicketID:  utils.PendingTicketID("req-1"),
		EventID:         event.ID,
		OwnerID:         "user-1",
		OriginalBuyerID: "user-1",
		Status:          models.TicketStatusActive,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, db.CreateTicket(ctx, first))
	require.NoError(t, db.CreateTicket(ctx, second))

	found, err := db.FindOldestPendingTicket(ctx, event.ID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID, "promotion order is oldest first")

	// Different owner sees nothing.
	found, err = db.FindOldestPendingTicket(ctx, event.ID, "user-2")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestCreateSpeculativeBatchGuardsCapacity(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	event := insertEvent(t, db, "9")

	zone := &models.Zone{
		ID:        uuid.New().String(),
		EventID:   event.ID,
		Name:      "VIP",
		Price:     "5000",
		Capacity:  2,
		Sold:      0,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, db.CreateZone(ctx, zone))

	makeTickets := func(requestID string, n int) []*models.Ticket {
		tickets := make([]*models.Ticket, 0, n)
		for i := 0; i < n; i++ {
			tickets = append(tickets, &models.Ticket{
				ID:              uuid.New().String(),
				LedgerTicketID:  utils.PendingTicketID(requestID),
				EventID:         event.ID,
				ZoneID:          &zone.ID,
				OwnerID:         "user-1",
				OriginalBuyerID: "user-1",
				Status:          models.TicketStatusActive,
				CreatedAt:       time.Now(),
				UpdatedAt:       time.Now(),
			})
		}
		return tickets
	}

	err := db.CreateSpeculativeBatch(ctx, makeTickets("req-a", 2), map[string]int64{zone.ID: 2})
	require.NoError(t, err)

	updated, err := db.GetZoneByName(ctx, event.ID, "VIP")
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Sold)

	// A third seat would oversell; nothing may be written.
	err = db.CreateSpeculativeBatch(ctx, makeTickets("req-b", 1), map[string]int64{zone.ID: 1})
	assert.ErrorIs(t, err, store.ErrZoneFull)

	updated, err = db.GetZoneByName(ctx, event.ID, "VIP")
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Sold, "failed batch must not move the counter")

	count, err := db.CountRecentPendingTickets(ctx, event.ID, "user-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, count, "the rejected ticket must not exist")
}

func TestRollbackSpeculativeBatch(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	event := insertEvent(t, db, "11")

	zone := &models.Zone{
		ID:        uuid.New().String(),
		EventID:   event.ID,
		Name:      "GA",
		Price:     "1000",
		Capacity:  10,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, db.CreateZone(ctx, zone))

	tickets := []*models.Ticket{
		{
			ID:              uuid.New().String(),
			LedgerTicketID:  utils.PendingTicketID("req-x"),
			EventID:         event.ID,
			ZoneID:          &zone.ID,
			OwnerID:         "user-1",
			OriginalBuyerID: "user-1",
			Status:          models.TicketStatusActive,
			CreatedAt:       time.Now(),
			UpdatedAt:       time.Now(),
		},
		{
			ID:              uuid.New().String(),
			LedgerTicketID:  utils.PendingTicketID("req-x"),
			EventID:         event.ID,
			ZoneID:          &zone.ID,
			OwnerID:         "user-1",
			OriginalBuyerID: "user-1",
			Status:          models.TicketStatusActive,
			CreatedAt:       time.Now(),
			UpdatedAt:       time.Now(),
		},
	}
	require.NoError(t, db.CreateSpeculativeBatch(ctx, tickets, map[string]int64{zone.ID: 2}))

	require.NoError(t, db.RollbackSpeculativeBatch(ctx, "req-x", map[string]int64{zone.ID: 2}))

	restored, err := db.GetZoneByName(ctx, event.ID, "GA")
	require.NoError(t, err)
	assert.Equal(t, int64(0), restored.Sold)

	count, err := db.CountRecentPendingTickets(ctx, event.ID, "user-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestFindOrCreateUserByWallet(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()

	created, err := db.FindOrCreateUserByWallet(ctx, "5Gw3s7q4Qb")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.True(t, created.Placeholder)

	// Second call finds the same row instead of inserting another.
	again, err := db.FindOrCreateUserByWallet(ctx, "5Gw3s7q4Qb")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
}

func TestListingLifecycle(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()

	listing := &models.Listing{
		ID:        uuid.New().String(),
		TicketID:  "ticket-1",
		EventID:   "event-1",
		SellerID:  "user-1",
		Price:     "2500",
		Status:    models.ListingStatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, db.CreateListing(ctx, listing))

	active, err := db.GetActiveListingByTicket(ctx, "ticket-1")
	require.NoError(t, err)
	require.NotNil(t, active)

	buyer := "user-2"
	soldAt := time.Now()
	active.Status = models.ListingStatusSold
	active.BuyerID = &buyer
	active.SoldAt = &soldAt
	require.NoError(t, db.UpdateListing(ctx, active, "status", "buyer_id", "sold_at"))

	latest, err := db.GetLatestListingByTicket(ctx, "ticket-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.ListingStatusSold, latest.Status)

	none, err := db.GetActiveListingByTicket(ctx, "ticket-1")
	require.NoError(t, err)
	assert.Nil(t, none)
}
