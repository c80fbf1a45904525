package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-chainsync/internal/auth"
	"ms-chainsync/internal/errs"
	"ms-chainsync/internal/mint"
	"ms-chainsync/internal/models"
	"ms-chainsync/internal/store"
	"ms-chainsync/internal/syncqueue"
	"ms-chainsync/internal/utils"
)

type Handler struct {
	MintService *mint.Service
	DB          *store.DB
	Queue       *syncqueue.Queue
}

// Register mounts the chain-sync surface on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/chain/events/{eventID}/mint", h.MintTickets)
	r.Get("/api/chain/events/{eventID}/sync", h.GetSyncStatus)
	r.Get("/api/chain/deadletters", h.ListDeadLetters)
}

func (h *Handler) MintTickets(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req mint.MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.EventID = eventID
	if req.UserID == "" {
		req.UserID = auth.UserID(r.Context())
	}
	if req.UserID == "" {
		// No OIDC middleware on this deployment; trust the gateway-verified
		// bearer token.
		if raw, err := auth.ExtractTokenFromRequest(r); err == nil {
			req.UserID, _ = auth.ExtractUserIDFromJWT(raw)
		}
	}

	receipt, err := h.MintService.Mint(r.Context(), req)
	if err != nil {
		switch {
		case errs.IsValidation(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errs.IsConflict(err):
			http.Error(w, err.Error(), http.StatusConflict)
		case errs.IsLedger(err):
			// The local writes were compensated; tell the caller the chain
			// rejected it.
			writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error":   err.Error(),
				"receipt": receipt,
			})
		default:
			http.Error(w, "Could not mint tickets: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	event, err := h.lookupEvent(r.Context(), eventID)
	if err != nil {
		http.Error(w, "Could not load event: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if event == nil {
		http.Error(w, "Event not found", http.StatusNotFound)
		return
	}

	zones, err := h.DB.ListZones(r.Context(), event.ID)
	if err != nil {
		http.Error(w, "Could not load zones: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Sync status retrieved", map[string]interface{}{
		"event_id":        event.ID,
		"ledger_event_id": event.LedgerEventID,
		"confirmed":       event.HasLedgerID(),
		"tickets_total":   event.TicketsTotal,
		"tickets_minted":  event.TicketsMinted,
		"last_synced_at":  event.LastSyncedAt,
		"zones":           zones,
	}))
}

func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	jobs, err := h.Queue.DeadLetters(r.Context(), limit)
	if err != nil {
		http.Error(w, "Could not load dead letters: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Dead letters retrieved", map[string]interface{}{
		"count": len(jobs),
		"jobs":  jobs,
	}))
}

// lookupEvent resolves by local id first, then by ledger id, so callers can
// use whichever they hold.
func (h *Handler) lookupEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := h.DB.GetEventByID(ctx, id)
	if err != nil || event != nil {
		return event, err
	}
	return h.DB.GetEventByLedgerID(ctx, id)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
