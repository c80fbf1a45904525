package reconciler

import (
	"context"
	"fmt"
	"time"

	"ms-chainsync/internal/errs"
	"ms-chainsync/internal/ledger"
	"ms-chainsync/internal/models"
	"ms-chainsync/internal/utils"
)

// SyncTicketBatch expands one TicketsMinted notification into per-ticket
// reconciliations, fetching each ticket's current state from the ledger. A
// ticket whose detail fetch fails is projected from the batch buyer alone.
func (r *Reconciler) SyncTicketBatch(ctx context.Context, dto models.SyncTicketBatchDTO) error {
	for _, ticketID := range dto.TicketIDs {
		detail, err := r.fetchTicketDetail(ctx, ticketID, dto)
		if err != nil {
			return err
		}
		if err := r.SyncTicket(ctx, detail); err != nil {
			return err
		}
	}

	r.refreshMintedCounter(ctx, dto.EventID)
	return nil
}

func (r *Reconciler) fetchTicketDetail(ctx context.Context, ticketID string, batch models.SyncTicketBatchDTO) (models.SyncTicketDTO, error) {
	id, err := ledger.ParseU256(ticketID)
	if err != nil {
		return models.SyncTicketDTO{}, errs.Permanent("ticket id %q is not a valid u256", ticketID)
	}

	info, err := r.Ledger.GetTicket(ctx, id)
	if err != nil {
		return models.SyncTicketDTO{}, errs.Transient("fetching ticket %s: %v", ticketID, err)
	}
	if info == nil {
		// The ledger has not materialized the ticket yet; project it from
		// the batch so the buyer still sees their purchase.
		r.Logger.Warn("SYNC", fmt.Sprintf("ticket %s not readable yet, projecting from batch buyer", ticketID))
		return models.SyncTicketDTO{
			TicketID:      ticketID,
			EventID:       batch.EventID,
			OriginalBuyer: batch.Buyer,
			CurrentOwner:  batch.Buyer,
			MintedAt:      uint64(time.Now().Unix()),
		}, nil
	}

	return models.SyncTicketDTO{
		TicketID:      ticketID,
		EventID:       info.EventID.String(),
		OriginalBuyer: r.walletAddress(info.OriginalBuyer, batch.Buyer),
		CurrentOwner:  r.walletAddress(info.CurrentOwner, batch.Buyer),
		Zone:          info.Zone,
		Used:          info.Used,
		MintedAt:      info.MintedAt,
	}, nil
}

// refreshMintedCounter pulls the authoritative tickets_minted figure off the
// ledger so batch retries never double-count. Best effort.
func (r *Reconciler) refreshMintedCounter(ctx context.Context, eventID string) {
	id, err := ledger.ParseU256(eventID)
	if err != nil {
		return
	}
	info, err := r.Ledger.GetEvent(ctx, id)
	if err != nil || info == nil || !info.TicketsMinted.IsUint64() {
		return
	}
	event, err := r.DB.GetEventByLedgerID(ctx, eventID)
	if err != nil || event == nil {
		return
	}
	event.TicketsMinted = int64(info.TicketsMinted.Uint64())
	event.LastSyncedAt = time.Now()
	if err := r.DB.UpdateEvent(ctx, event, "tickets_minted", "last_synced_at"); err != nil {
		r.Logger.Warn("SYNC", fmt.Sprintf("refreshing minted counter for event %s failed: %v", eventID, err))
	}
}

// SyncTicket reconciles one fully resolved ticket state.
//
// Resolution order mirrors events: an existing row with this ledger id is
// refreshed; otherwise the oldest speculative ticket held by the same owner
// for the same event is promoted; otherwise a degraded row is created.
func (r *Reconciler) SyncTicket(ctx context.Context, dto models.SyncTicketDTO) error {
	owner, err := r.DB.FindOrCreateUserByWallet(ctx, dto.CurrentOwner)
	if err != nil {
		return errs.Transient("resolving owner %s: %v", dto.CurrentOwner, err)
	}

	existing, err := r.DB.GetTicketByLedgerID(ctx, dto.TicketID)
	if err != nil {
		return errs.Transient("loading ticket %s: %v", dto.TicketID, err)
	}
	if existing != nil {
		return r.refreshTicket(ctx, existing, dto, owner.ID)
	}

	event, err := r.DB.GetEventByLedgerID(ctx, dto.EventID)
	if err != nil {
		return errs.Transient("loading event %s: %v", dto.EventID, err)
	}
	if event == nil {
		// The event's own sync job may still be in flight; retry after it
		// lands.
		return errs.Transient("event %s not yet projected", dto.EventID)
	}

	pending, err := r.DB.FindOldestPendingTicket(ctx, event.ID, owner.ID)
	if err != nil {
		return errs.Transient("matching pending ticket: %v", err)
	}
	if pending != nil {
		placeholder := pending.LedgerTicketID
		pending.LedgerTicketID = dto.TicketID
		pending.MintedAt = utils.UnixTimeToTime(int64(dto.MintedAt))
		pending.LastSyncedAt = time.Now()
		columns := []string{"ledger_ticket_id", "minted_at", "last_synced_at"}

		if pending.ZoneID == nil && dto.Zone != "" {
			if zone, err := r.DB.GetZoneByName(ctx, event.ID, dto.Zone); err == nil && zone != nil {
				pending.ZoneID = &zone.ID
				columns = append(columns, "zone_id")
			}
		}
		if dto.Used && pending.Status != models.TicketStatusUsed {
			r.markUsed(pending)
			columns = append(columns, "status", "used_at")
		}

		if err := r.DB.UpdateTicket(ctx, pending, columns...); err != nil {
			return errs.Transient("promoting pending ticket %s: %v", placeholder, err)
		}
		r.Logger.LogSync("ticket", dto.TicketID, fmt.Sprintf("promoted speculative row %s", placeholder))
		r.notifyTicketSynced(pending)
		return nil
	}

	originalBuyer, err := r.DB.FindOrCreateUserByWallet(ctx, dto.OriginalBuyer)
	if err != nil {
		return errs.Transient("resolving buyer %s: %v", dto.OriginalBuyer, err)
	}

	ticket := &models.Ticket{
		ID:              utils.GenerateUUID(),
		LedgerTicketID:  dto.TicketID,
		EventID:         event.ID,
		OwnerID:         owner.ID,
		OriginalBuyerID: originalBuyer.ID,
		Status:          models.TicketStatusActive,
		MintedAt:        utils.UnixTimeToTime(int64(dto.MintedAt)),
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
		LastSyncedAt:    time.Now(),
	}
	if dto.Zone != "" {
		if zone, err := r.DB.GetZoneByName(ctx, event.ID, dto.Zone); err == nil && zone != nil {
			ticket.ZoneID = &zone.ID
		}
	}
	if dto.Used {
		r.markUsed(ticket)
	}
	if err := r.DB.CreateTicket(ctx, ticket); err != nil {
		return errs.Transient("creating ticket %s: %v", dto.TicketID, err)
	}
	r.Logger.LogSync("ticket", dto.TicketID, "no local row matched, created from ledger data")
	r.notifyTicketSynced(ticket)
	return nil
}

func (r *Reconciler) refreshTicket(ctx context.Context, ticket *models.Ticket, dto models.SyncTicketDTO, ownerID string) error {
	columns := []string{"last_synced_at"}
	ticket.LastSyncedAt = time.Now()

	if ticket.OwnerID != ownerID {
		ticket.OwnerID = ownerID
		columns = append(columns, "owner_id")
	}
	if dto.Used && ticket.Status != models.TicketStatusUsed {
		r.markUsed(ticket)
		columns = append(columns, "status", "used_at")
	}

	if err := r.DB.UpdateTicket(ctx, ticket, columns...); err != nil {
		return errs.Transient("refreshing ticket %s: %v", dto.TicketID, err)
	}
	r.Logger.LogSync("ticket", dto.TicketID, "already synced, refreshed")
	r.notifyTicketSynced(ticket)
	return nil
}

// markUsed flips a ticket to USED. The used-at instant is first write wins;
// a redelivered notification never moves it.
func (r *Reconciler) markUsed(ticket *models.Ticket) {
	ticket.Status = models.TicketStatusUsed
	if ticket.UsedAt == nil {
		now := time.Now()
		ticket.UsedAt = &now
	}
}

// SyncTicketUsed reconciles a TicketUsed notification. The projection row is
// preferred; a ticket this service has never seen is fetched from the ledger
// and synced whole.
func (r *Reconciler) SyncTicketUsed(ctx context.Context, dto models.SyncTicketUsedDTO) error {
	existing, err := r.DB.GetTicketByLedgerID(ctx, dto.TicketID)
	if err != nil {
		return errs.Transient("loading ticket %s: %v", dto.TicketID, err)
	}
	if existing != nil {
		if existing.Status == models.TicketStatusUsed {
			r.Logger.LogSync("ticket-used", dto.TicketID, "already marked used")
			return nil
		}
		r.markUsed(existing)
		existing.LastSyncedAt = time.Now()
		if err := r.DB.UpdateTicket(ctx, existing, "status", "used_at", "last_synced_at"); err != nil {
			return errs.Transient("marking ticket %s used: %v", dto.TicketID, err)
		}
		r.Logger.LogSync("ticket-used", dto.TicketID, "marked used")
		r.notifyTicketSynced(existing)
		return nil
	}

	id, err := ledger.ParseU256(dto.TicketID)
	if err != nil {
		return errs.Permanent("ticket id %q is not a valid u256", dto.TicketID)
	}
	info, err := r.Ledger.GetTicket(ctx, id)
	if err != nil {
		return errs.Transient("fetching ticket %s: %v", dto.TicketID, err)
	}
	if info == nil {
		return errs.Permanent("ticket %s marked used but unknown to the ledger", dto.TicketID)
	}

	owner := r.walletAddress(info.CurrentOwner, "")
	if owner == "" {
		return errs.Permanent("ticket %s owner %q cannot be decoded", dto.TicketID, info.CurrentOwner)
	}
	return r.SyncTicket(ctx, models.SyncTicketDTO{
		TicketID:      dto.TicketID,
		EventID:       info.EventID.String(),
		OriginalBuyer: r.walletAddress(info.OriginalBuyer, owner),
		CurrentOwner:  owner,
		Zone:          info.Zone,
		Used:          true,
		MintedAt:      info.MintedAt,
	})
}

func (r *Reconciler) notifyTicketSynced(ticket *models.Ticket) {
	if r.Kafka == nil {
		return
	}
	if err := r.Kafka.PublishTicketSynced(ticket); err != nil {
		r.Logger.Warn("SYNC", fmt.Sprintf("publishing ticket %s sync notice failed: %v", ticket.LedgerTicketID, err))
	}
}
