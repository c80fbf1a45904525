package store

import (
	"context"

	"ms-chainsync/internal/models"
)

// ---------------- ZONES ----------------

// CreateZone → insert new zone row
func (d *DB) CreateZone(ctx context.Context, zone *models.Zone) error {
	_, err := d.Bun.NewInsert().Model(zone).Exec(ctx)
	return err
}

// GetZoneByName → fetch an event's zone by name, nil when absent
func (d *DB) GetZoneByName(ctx context.Context, eventID, name string) (*models.Zone, error) {
	var zone models.Zone
	err := d.Bun.NewSelect().
		Model(&zone).
		Where("event_id = ?", eventID).
		Where("name = ?", name).
		Limit(1).
		Scan(ctx)
	if absent, err := noRows(err); absent || err != nil {
		return nil, err
	}
	return &zone, nil
}

// ListZones → all zones for an event
func (d *DB) ListZones(ctx context.Context, eventID string) ([]models.Zone, error) {
	var zones []models.Zone
	err := d.Bun.NewSelect().
		Model(&zones).
		Where("event_id = ?", eventID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return zones, nil
}
