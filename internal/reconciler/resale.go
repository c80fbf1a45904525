package reconciler

import (
	"context"
	"fmt"
	"time"

	"ms-chainsync/internal/errs"
	"ms-chainsync/internal/models"
	"ms-chainsync/internal/utils"
)

// SyncResale reconciles an ownership transfer through the marketplace: the
// ticket moves to the buyer and the listing trail records the sale. A resale
// for a ticket the projection has not seen yet is retried, since its mint
// batch may still be in the queue.
func (r *Reconciler) SyncResale(ctx context.Context, dto models.SyncResaleDTO) error {
	ticket, err := r.DB.GetTicketByLedgerID(ctx, dto.TicketID)
	if err != nil {
		return errs.Transient("loading ticket %s: %v", dto.TicketID, err)
	}
	if ticket == nil {
		return errs.Transient("ticket %s not yet projected", dto.TicketID)
	}

	buyer, err := r.DB.FindOrCreateUserByWallet(ctx, dto.Buyer)
	if err != nil {
		return errs.Transient("resolving buyer %s: %v", dto.Buyer, err)
	}
	seller, err := r.DB.FindOrCreateUserByWallet(ctx, dto.Seller)
	if err != nil {
		return errs.Transient("resolving seller %s: %v", dto.Seller, err)
	}

	if ticket.OwnerID != buyer.ID {
		ticket.OwnerID = buyer.ID
		ticket.LastSyncedAt = time.Now()
		if err := r.DB.UpdateTicket(ctx, ticket, "owner_id", "last_synced_at"); err != nil {
			return errs.Transient("transferring ticket %s: %v", dto.TicketID, err)
		}
		r.Logger.LogSync("resale", dto.TicketID, fmt.Sprintf("owner moved to %s", dto.Buyer))
	}

	listing, err := r.closeListing(ctx, ticket, seller.ID, buyer.ID, dto.Price)
	if err != nil {
		return err
	}

	if r.Kafka != nil && listing != nil {
		if err := r.Kafka.PublishTicketResold(ticket, listing); err != nil {
			r.Logger.Warn("SYNC", fmt.Sprintf("publishing resale of %s failed: %v", dto.TicketID, err))
		}
	}
	return nil
}

// closeListing marks the ticket's active listing sold, or records a
// historical SOLD row when the sale happened without a local listing. A
// listing already sold to the same buyer is left alone so redeliveries do
// not stack rows.
func (r *Reconciler) closeListing(ctx context.Context, ticket *models.Ticket, sellerID, buyerID, price string) (*models.Listing, error) {
	now := time.Now()

	active, err := r.DB.GetActiveListingByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, errs.Transient("loading listing for ticket %s: %v", ticket.LedgerTicketID, err)
	}
	if active != nil {
		active.Status = models.ListingStatusSold
		active.BuyerID = &buyerID
		active.SoldAt = &now
		if err := r.DB.UpdateListing(ctx, active, "status", "buyer_id", "sold_at"); err != nil {
			return nil, errs.Transient("closing listing %s: %v", active.ID, err)
		}
		r.Logger.LogSync("resale", ticket.LedgerTicketID, "active listing marked sold")
		return active, nil
	}

	latest, err := r.DB.GetLatestListingByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, errs.Transient("loading listing trail for ticket %s: %v", ticket.LedgerTicketID, err)
	}
	if latest != nil && latest.Status == models.ListingStatusSold && latest.BuyerID != nil && *latest.BuyerID == buyerID {
		r.Logger.LogSync("resale", ticket.LedgerTicketID, "sale already recorded")
		return latest, nil
	}

	record := &models.Listing{
		ID:        utils.GenerateUUID(),
		TicketID:  ticket.ID,
		EventID:   ticket.EventID,
		SellerID:  sellerID,
		BuyerID:   &buyerID,
		Price:     price,
		Status:    models.ListingStatusSold,
		SoldAt:    &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.DB.CreateListing(ctx, record); err != nil {
		return nil, errs.Transient("recording sale of ticket %s: %v", ticket.LedgerTicketID, err)
	}
	r.Logger.LogSync("resale", ticket.LedgerTicketID, "sale recorded without a local listing")
	return record, nil
}
