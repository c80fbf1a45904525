package mint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-chainsync/internal/config"
	"ms-chainsync/internal/errs"
	"ms-chainsync/internal/ledger"
	"ms-chainsync/internal/logger"
	"ms-chainsync/internal/models"
	"ms-chainsync/internal/store"
	"ms-chainsync/internal/utils"
)

type DBLayer interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByWallet(ctx context.Context, walletAddress string) (*models.User, error)
	GetZoneByName(ctx context.Context, eventID, name string) (*models.Zone, error)
	CountRecentPendingTickets(ctx context.Context, eventID, ownerID string, since time.Time) (int, error)
	CreateSpeculativeBatch(ctx context.Context, tickets []*models.Ticket, zoneCounts map[string]int64) error
	RollbackSpeculativeBatch(ctx context.Context, requestID string, zoneCounts map[string]int64) error
}

// Minter is the ledger write the orchestrator performs.
type Minter interface {
	MintTickets(ctx context.Context, eventID ledger.U256, buyer ledger.ActorID, amount uint64, zones []string) (*ledger.TxReceipt, error)
}

// MintRequest asks for amount tickets of an event. Zones names one zone per
// ticket and may be empty for unzoned events. BuyerAddress mints on behalf of
// another wallet; when empty the tickets go to the requester's own wallet.
type MintRequest struct {
	EventID      string   `json:"event_id"`
	UserID       string   `json:"user_id"`
	BuyerAddress string   `json:"buyer_address,omitempty"`
	Amount       int      `json:"amount"`
	Zones        []string `json:"zones,omitempty"`
}

type Outcome string

const (
	OutcomeCommitted  Outcome = "Committed"
	OutcomeRolledBack Outcome = "RolledBack"
)

// MintReceipt reports what happened to a mint request. A RolledBack outcome
// means the ledger write failed and every speculative row was compensated
// away; the accompanying error carries the cause.
type MintReceipt struct {
	RequestID string   `json:"request_id"`
	Outcome   Outcome  `json:"outcome"`
	TicketIDs []string `json:"ticket_ids,omitempty"`
	TxHash    string   `json:"tx_hash,omitempty"`
	BlockHash string   `json:"block_hash,omitempty"`
}

// Service drives the speculative mint saga: validate, write placeholder
// tickets locally, submit the ledger transaction, and compensate the local
// writes when the ledger rejects it. Confirmed ledger ids arrive later via
// the notification stream and promote the placeholders.
type Service struct {
	DB     DBLayer
	Ledger Minter
	Logger *logger.Logger
	cfg    config.SyncConfig
}

func NewService(db DBLayer, minter Minter, log *logger.Logger, cfg config.SyncConfig) *Service {
	return &Service{DB: db, Ledger: minter, Logger: log, cfg: cfg}
}

func (s *Service) Mint(ctx context.Context, req MintRequest) (*MintReceipt, error) {
	event, buyer, buyerActor, err := s.validateActors(ctx, req)
	if err != nil {
		return nil, err
	}

	zoneCounts, zoneByName, err := s.validateZones(ctx, event, req)
	if err != nil {
		return nil, err
	}

	// One speculative batch per (event, buyer) inside the guard window; a
	// second request while the first is unresolved would double-sell.
	since := time.Now().Add(-s.cfg.MintGuardWindow)
	inFlight, err := s.DB.CountRecentPendingTickets(ctx, event.ID, buyer.ID, since)
	if err != nil {
		return nil, fmt.Errorf("checking in-flight mints: %w", err)
	}
	if inFlight > 0 {
		return nil, errs.Conflict("a mint for this event and buyer is already in flight")
	}

	requestID := utils.GenerateUUID()
	tickets := s.buildSpeculativeTickets(requestID, event, buyer, req, zoneByName)

	if err := s.DB.CreateSpeculativeBatch(ctx, tickets, zoneCounts); err != nil {
		if errors.Is(err, store.ErrZoneFull) {
			return nil, errs.Conflict("zone capacity was taken by a concurrent mint")
		}
		return nil, fmt.Errorf("writing speculative tickets: %w", err)
	}
	s.Logger.LogMint(requestID, fmt.Sprintf("%d speculative tickets written for event %s", len(tickets), event.LedgerEventID))

	eventID, err := ledger.ParseU256(event.LedgerEventID)
	if err != nil {
		// Guarded by HasLedgerID above; a malformed confirmed id is data
		// corruption, compensate and surface it.
		s.compensate(ctx, requestID, zoneCounts)
		return nil, fmt.Errorf("event %s has a malformed ledger id: %w", event.ID, err)
	}

	receipt, err := s.Ledger.MintTickets(ctx, eventID, buyerActor, uint64(req.Amount), req.Zones)
	if err != nil {
		s.compensate(ctx, requestID, zoneCounts)
		s.Logger.Error("MINT", fmt.Sprintf("[%s] ledger rejected mint, rolled back: %v", requestID, err))
		return &MintReceipt{RequestID: requestID, Outcome: OutcomeRolledBack}, errs.Ledger("mintTickets", err)
	}

	localIDs := make([]string, 0, len(tickets))
	for _, t := range tickets {
		localIDs = append(localIDs, t.ID)
	}
	s.Logger.LogMint(requestID, fmt.Sprintf("committed in tx %s", receipt.TxHash))
	return &MintReceipt{
		RequestID: requestID,
		Outcome:   OutcomeCommitted,
		TicketIDs: localIDs,
		TxHash:    receipt.TxHash,
		BlockHash: receipt.BlockHash,
	}, nil
}

func (s *Service) validateActors(ctx context.Context, req MintRequest) (*models.Event, *models.User, ledger.ActorID, error) {
	var zero ledger.ActorID

	if req.Amount < 1 || req.Amount > s.cfg.MintAmountCap {
		return nil, nil, zero, errs.Validation("amount must be between 1 and %d", s.cfg.MintAmountCap)
	}

	event, err := s.DB.GetEventByID(ctx, req.EventID)
	if err != nil {
		return nil, nil, zero, fmt.Errorf("loading event %s: %w", req.EventID, err)
	}
	if event == nil {
		return nil, nil, zero, errs.Validation("event %s does not exist", req.EventID)
	}
	if event.Status != models.EventStatusActive {
		return nil, nil, zero, errs.Validation("event %s is not active", req.EventID)
	}
	if !event.HasLedgerID() {
		return nil, nil, zero, errs.Validation("event %s is not confirmed on the ledger yet", req.EventID)
	}
	if event.TicketsTotal > 0 && event.TicketsMinted+int64(req.Amount) > event.TicketsTotal {
		return nil, nil, zero, errs.Validation("event %s has only %d tickets left", req.EventID, event.TicketsTotal-event.TicketsMinted)
	}

	requester, err := s.DB.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, nil, zero, fmt.Errorf("loading user %s: %w", req.UserID, err)
	}
	if requester == nil {
		return nil, nil, zero, errs.Validation("user %s does not exist", req.UserID)
	}

	// An explicit buyer address mints on behalf of another wallet; it must
	// still map to a local user so the tickets and the conflict guard have an
	// owner row. Absent, the requester's own wallet receives the tickets.
	if req.BuyerAddress != "" {
		actor, _, err := ledger.ParseAddress(req.BuyerAddress)
		if err != nil {
			return nil, nil, zero, errs.Validation("buyer address %s is not a valid wallet address", req.BuyerAddress)
		}
		buyer, err := s.DB.GetUserByWallet(ctx, req.BuyerAddress)
		if err != nil {
			return nil, nil, zero, fmt.Errorf("loading wallet %s: %w", req.BuyerAddress, err)
		}
		if buyer == nil {
			return nil, nil, zero, errs.Validation("no user holds wallet %s", req.BuyerAddress)
		}
		return event, buyer, actor, nil
	}

	actor, _, err := ledger.ParseAddress(requester.WalletAddress)
	if err != nil {
		return nil, nil, zero, errs.Validation("user %s has no valid wallet address", req.UserID)
	}

	return event, requester, actor, nil
}

// validateZones checks every requested zone before any write happens, so a
// sold-out zone rejects the whole request with zero side effects.
func (s *Service) validateZones(ctx context.Context, event *models.Event, req MintRequest) (map[string]int64, map[string]*models.Zone, error) {
	if len(req.Zones) == 0 {
		return map[string]int64{}, map[string]*models.Zone{}, nil
	}
	if len(req.Zones) != req.Amount {
		return nil, nil, errs.Validation("expected %d zone names, got %d", req.Amount, len(req.Zones))
	}

	wanted := map[string]int64{}
	for _, name := range req.Zones {
		wanted[name]++
	}

	zoneCounts := map[string]int64{}
	zoneByName := map[string]*models.Zone{}
	for name, count := range wanted {
		zone, err := s.DB.GetZoneByName(ctx, event.ID, name)
		if err != nil {
			return nil, nil, fmt.Errorf("loading zone %s: %w", name, err)
		}
		if zone == nil {
			return nil, nil, errs.Validation("Zone %s does not exist", name)
		}
		if zone.Sold+count > zone.Capacity {
			return nil, nil, errs.Validation("Zone %s is sold out", name)
		}
		zoneCounts[zone.ID] = count
		zoneByName[name] = zone
	}
	return zoneCounts, zoneByName, nil
}

func (s *Service) buildSpeculativeTickets(requestID string, event *models.Event, buyer *models.User, req MintRequest, zoneByName map[string]*models.Zone) []*models.Ticket {
	now := time.Now()
	tickets := make([]*models.Ticket, 0, req.Amount)
	for i := 0; i < req.Amount; i++ {
		ticket := &models.Ticket{
			ID:              utils.GenerateUUID(),
			LedgerTicketID:  utils.PendingTicketID(requestID),
			EventID:         event.ID,
			OwnerID:         buyer.ID,
			OriginalBuyerID: buyer.ID,
			Status:          models.TicketStatusActive,
			MintedAt:        now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if i < len(req.Zones) {
			if zone := zoneByName[req.Zones[i]]; zone != nil {
				ticket.ZoneID = &zone.ID
			}
		}
		tickets = append(tickets, ticket)
	}
	return tickets
}

func (s *Service) compensate(ctx context.Context, requestID string, zoneCounts map[string]int64) {
	if err := s.DB.RollbackSpeculativeBatch(ctx, requestID, zoneCounts); err != nil {
		// The placeholders expire out of the matching window on their own;
		// the zone counters need operator attention.
		s.Logger.Error("MINT", fmt.Sprintf("[%s] compensation failed, zone counters may be inflated: %v", requestID, err))
	}
}
