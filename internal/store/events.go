package store

import (
	"context"
	"time"

	"ms-chainsync/internal/models"
)

// ---------------- EVENTS ----------------

// CreateEvent → insert new event projection row
func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return err
}

// GetEventByID → fetch one event by its local ID, nil when absent
func (d *DB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if absent, err := noRows(err); absent || err != nil {
		return nil, err
	}
	return &event, nil
}

// GetEventByLedgerID → fetch one event by its on-ledger ID, nil when absent
func (d *DB) GetEventByLedgerID(ctx context.Context, ledgerID string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("ledger_event_id = ?", ledgerID).
		Limit(1).
		Scan(ctx)
	if absent, err := noRows(err); absent || err != nil {
		return nil, err
	}
	return &event, nil
}

// FindPendingEventExact → newest pending event of the organizer inside the
// recency window whose metadata hash and start time both match
func (d *DB) FindPendingEventExact(ctx context.Context, organizerID, metadataHash string, startTime time.Time, window time.Duration) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("ledger_event_id LIKE ?", "pending-%").
		Where("organizer_id = ?", organizerID).
		Where("metadata_hash = ?", metadataHash).
		Where("event_start_time = ?", startTime).
		Where("created_at >= ?", time.Now().Add(-window)).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if absent, err := noRows(err); absent || err != nil {
		return nil, err
	}
	return &event, nil
}

// FindLatestPendingEvent → newest pending event of the organizer inside the
// recency window, regardless of metadata
func (d *DB) FindLatestPendingEvent(ctx context.Context, organizerID string, window time.Duration) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("ledger_event_id LIKE ?", "pending-%").
		Where("organizer_id = ?", organizerID).
		Where("created_at >= ?", time.Now().Add(-window)).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if absent, err := noRows(err); absent || err != nil {
		return nil, err
	}
	return &event, nil
}

// UpdateEvent → persist the given columns of an event row
func (d *DB) UpdateEvent(ctx context.Context, event *models.Event, columns ...string) error {
	event.UpdatedAt = time.Now()
	q := d.Bun.NewUpdate().
		Model(event).
		Where("id = ?", event.ID)
	if len(columns) > 0 {
		columns = append(columns, "updated_at")
		q = q.Column(columns...)
	}
	_, err := q.Exec(ctx)
	return err
}
