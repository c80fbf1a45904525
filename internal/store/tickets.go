package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	"ms-chainsync/internal/models"
)

// ---------------- TICKETS ----------------

// CreateTicket → insert new ticket projection row
func (d *DB) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	_, err := d.Bun.NewInsert().Model(ticket).Exec(ctx)
	return err
}

// GetTicketByID → fetch one ticket by its local ID, nil when absent
func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if absent, err := noRows(err); absent || err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetTicketByLedgerID → fetch one ticket by its on-ledger ID, nil when absent
func (d *DB) GetTicketByLedgerID(ctx context.Context, ledgerID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ledger_ticket_id = ?", ledgerID).
		Limit(1).
		Scan(ctx)
	if absent, err := noRows(err); absent || err != nil {
		return nil, err
	}
	return &ticket, nil
}

// FindOldestPendingTicket → oldest speculative ticket for an event and owner,
// the next candidate for promotion to a confirmed ledger id
func (d *DB) FindOldestPendingTicket(ctx context.Context, eventID, ownerID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ledger_ticket_id LIKE ?", "pending-%").
		Where("event_id = ?", eventID).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if absent, err := noRows(err); absent || err != nil {
		return nil, err
	}
	return &ticket, nil
}

// CountRecentPendingTickets → speculative tickets created for an event and
// owner since the given instant; the mint conflict guard
func (d *DB) CountRecentPendingTickets(ctx context.Context, eventID, ownerID string, since time.Time) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("ledger_ticket_id LIKE ?", "pending-%").
		Where("event_id = ?", eventID).
		Where("owner_id = ?", ownerID).
		Where("created_at >= ?", since).
		Count(ctx)
}

// UpdateTicket → persist the given columns of a ticket row
func (d *DB) UpdateTicket(ctx context.Context, ticket *models.Ticket, columns ...string) error {
	ticket.UpdatedAt = time.Now()
	q := d.Bun.NewUpdate().
		Model(ticket).
		Where("id = ?", ticket.ID)
	if len(columns) > 0 {
		columns = append(columns, "updated_at")
		q = q.Column(columns...)
	}
	_, err := q.Exec(ctx)
	return err
}

// ---------------- SPECULATIVE BATCHES ----------------

// CreateSpeculativeBatch inserts placeholder tickets and bumps the sold
// counters of their zones in one transaction. The sold increment is guarded
// against capacity in SQL, so two concurrent batches cannot oversell a zone
// within this process's database.
func (d *DB) CreateSpeculativeBatch(ctx context.Context, tickets []*models.Ticket, zoneCounts map[string]int64) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for zoneID, count := range zoneCounts {
			res, err := tx.NewUpdate().
				Model((*models.Zone)(nil)).
				Set("sold = sold + ?", count).
				Set("updated_at = ?", time.Now()).
				Where("id = ?", zoneID).
				Where("sold + ? <= capacity", count).
				Exec(ctx)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return ErrZoneFull
			}
		}
		if len(tickets) > 0 {
			if _, err := tx.NewInsert().Model(&tickets).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// RollbackSpeculativeBatch deletes every placeholder ticket created for a
// mint request and restores the zone sold counters, in one transaction. It
// is the compensating half of CreateSpeculativeBatch.
func (d *DB) RollbackSpeculativeBatch(ctx context.Context, requestID string, zoneCounts map[string]int64) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.Ticket)(nil)).
			Where("ledger_ticket_id LIKE ?", "pending-"+requestID+"-%").
			Exec(ctx); err != nil {
			return err
		}
		for zoneID, count := range zoneCounts {
			if _, err := tx.NewUpdate().
				Model((*models.Zone)(nil)).
				Set("sold = sold - ?", count).
				Set("updated_at = ?", time.Now()).
				Where("id = ?", zoneID).
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
