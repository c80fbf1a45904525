package store

import (
	"context"
	"time"

	"ms-chainsync/internal/models"
)

// ---------------- MARKETPLACE LISTINGS ----------------

// CreateListing → insert new listing row
func (d *DB) CreateListing(ctx context.Context, listing *models.Listing) error {
	_, err := d.Bun.NewInsert().Model(listing).Exec(ctx)
	return err
}

// GetLatestListingByTicket → newest listing for a ticket, nil when absent
func (d *DB) GetLatestListingByTicket(ctx context.Context, ticketID string) (*models.Listing, error) {
	var listing models.Listing
	err := d.Bun.NewSelect().
		Model(&listing).
		Where("ticket_id = ?", ticketID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if absent, err := noRows(err); absent || err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetActiveListingByTicket → the ticket's ACTIVE listing, nil when absent
func (d *DB) GetActiveListingByTicket(ctx context.Context, ticketID string) (*models.Listing, error) {
	var listing models.Listing
	err := d.Bun.NewSelect().
		Model(&listing).
		Where("ticket_id = ?", ticketID).
		Where("status = ?", models.ListingStatusActive).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if absent, err := noRows(err); absent || err != nil {
		return nil, err
	}
	return &listing, nil
}

// UpdateListing → persist the given columns of a listing row
func (d *DB) UpdateListing(ctx context.Context, listing *models.Listing, columns ...string) error {
	listing.UpdatedAt = time.Now()
	q := d.Bun.NewUpdate().
		Model(listing).
		Where("id = ?", listing.ID)
	if len(columns) > 0 {
		columns = append(columns, "updated_at")
		q = q.Column(columns...)
	}
	_, err := q.Exec(ctx)
	return err
}
