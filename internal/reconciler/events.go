package reconciler

import (
	"context"
	"fmt"
	"time"

	"ms-chainsync/internal/errs"
	"ms-chainsync/internal/models"
	"ms-chainsync/internal/utils"
)

// Default resale commission split in basis points, applied when an event row
// has to be created from ledger data alone.
const (
	DefaultSellerPercentage    = 8500
	DefaultOrganizerPercentage = 1000
	DefaultPlatformPercentage  = 500
)

// SyncEvent reconciles one EventCreated notification with the projection.
//
// Resolution order: an existing row with this ledger id is refreshed; a
// recent pending row of the same organizer is promoted, preferring an exact
// metadata match and keeping its organizer-authored configuration untouched;
// otherwise a degraded row is created from ledger data with default
// commission.
func (r *Reconciler) SyncEvent(ctx context.Context, dto models.SyncEventDTO) error {
	startTime := utils.UnixTimeToTime(int64(dto.EventStartTime))

	existing, err := r.DB.GetEventByLedgerID(ctx, dto.EventID)
	if err != nil {
		return errs.Transient("loading event %s: %v", dto.EventID, err)
	}
	if existing != nil {
		existing.MetadataHash = dto.MetadataHash
		existing.EventStartTime = startTime
		existing.LastSyncedAt = time.Now()
		if err := r.DB.UpdateEvent(ctx, existing, "metadata_hash", "event_start_time", "last_synced_at"); err != nil {
			return errs.Transient("refreshing event %s: %v", dto.EventID, err)
		}
		r.Logger.LogSync("event", dto.EventID, "already synced, refreshed ledger fields")
		r.notifyEventSynced(existing)
		return nil
	}

	organizer, err := r.DB.GetUserByWallet(ctx, dto.Organizer)
	if err != nil {
		return errs.Transient("resolving organizer %s: %v", dto.Organizer, err)
	}
	if organizer == nil {
		// Unknown organizers cannot be guessed at; retrying will not make
		// them appear.
		return errs.Permanent("organizer wallet %s is not registered", dto.Organizer)
	}

	pending, err := r.DB.FindPendingEventExact(ctx, organizer.ID, dto.MetadataHash, startTime, r.cfg.PendingEventWindow)
	if err != nil {
		return errs.Transient("matching pending event: %v", err)
	}
	if pending == nil {
		pending, err = r.DB.FindLatestPendingEvent(ctx, organizer.ID, r.cfg.PendingEventWindow)
		if err != nil {
			return errs.Transient("matching pending event: %v", err)
		}
	}

	if pending != nil {
		placeholder := pending.LedgerEventID
		pending.LedgerEventID = dto.EventID
		pending.MetadataHash = dto.MetadataHash
		pending.EventStartTime = startTime
		pending.TicketsMinted = 0
		pending.LastSyncedAt = time.Now()
		if err := r.DB.UpdateEvent(ctx, pending, "ledger_event_id", "metadata_hash", "event_start_time", "tickets_minted", "last_synced_at"); err != nil {
			return errs.Transient("promoting pending event %s: %v", placeholder, err)
		}
		r.Logger.LogSync("event", dto.EventID, fmt.Sprintf("promoted pending row %s", placeholder))
		r.notifyEventSynced(pending)
		return nil
	}

	// Degraded path: the notification arrived for an event this service
	// never saw being created. Project what the ledger knows and fill the
	// rest with defaults.
	event := &models.Event{
		ID:                  utils.GenerateUUID(),
		LedgerEventID:       dto.EventID,
		OrganizerID:         organizer.ID,
		MetadataHash:        dto.MetadataHash,
		EventStartTime:      startTime,
		SellerPercentage:    DefaultSellerPercentage,
		OrganizerPercentage: DefaultOrganizerPercentage,
		PlatformPercentage:  DefaultPlatformPercentage,
		Status:              models.EventStatusActive,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
		LastSyncedAt:        time.Now(),
	}
	if err := r.DB.CreateEvent(ctx, event); err != nil {
		return errs.Transient("creating event %s: %v", dto.EventID, err)
	}
	r.Logger.LogSync("event", dto.EventID, "no local row matched, created from ledger data")
	r.notifyEventSynced(event)
	return nil
}

func (r *Reconciler) notifyEventSynced(event *models.Event) {
	if r.Kafka == nil {
		return
	}
	if err := r.Kafka.PublishEventSynced(event); err != nil {
		r.Logger.Warn("SYNC", fmt.Sprintf("publishing event %s sync notice failed: %v", event.LedgerEventID, err))
	}
}
