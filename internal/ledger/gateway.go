package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ms-chainsync/internal/errs"
	"ms-chainsync/internal/logger"
)

// GatewayClient talks to the ledger gateway sidecar: JSON POSTs for writes and
// reads, a server-sent-event stream per subscription for notifications.
type GatewayClient struct {
	BaseURL   string
	ProgramID ActorID
	Client    *http.Client

	// Stream carries the long-lived notification streams. It has no global
	// timeout: http.Client.Timeout covers the whole exchange including body
	// reads and would sever every stream mid-flight. Only the connect and
	// response-header phases are bounded.
	Stream *http.Client
	Logger *logger.Logger

	// ReconnectDelay paces stream reconnects after a drop.
	ReconnectDelay time.Duration
}

func NewGatewayClient(baseURL string, programID ActorID, client *http.Client, log *logger.Logger) *GatewayClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	streamTransport := client.Transport
	if streamTransport == nil {
		streamTransport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 30 * time.Second,
		}
	}
	return &GatewayClient{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		ProgramID:      programID,
		Client:         client,
		Stream:         &http.Client{Transport: streamTransport},
		Logger:         log,
		ReconnectDelay: 2 * time.Second,
	}
}

// ---------------- WRITES ----------------

func (g *GatewayClient) CreateEvent(ctx context.Context, organizer ActorID, metadataHash Hash32, eventStartTime uint64, ticketsTotal U256, resale ResaleConfig, commission CommissionConfig) (*TxReceipt, error) {
	body := map[string]interface{}{
		"organizer":        organizer.Hex(),
		"metadata_hash":    metadataHash.Hex(),
		"event_start_time": eventStartTime,
		"tickets_total":    ticketsTotal,
		"resale_config":    resale,
		"commission_config": commission,
	}
	return g.submit(ctx, "create-event", body)
}

func (g *GatewayClient) MintTickets(ctx context.Context, eventID U256, buyer ActorID, amount uint64, zones []string) (*TxReceipt, error) {
	if zones == nil {
		zones = []string{}
	}
	body := map[string]interface{}{
		"event_id": eventID,
		"buyer":    buyer.Hex(),
		"amount":   amount,
		"zones":    zones,
	}
	return g.submit(ctx, "mint-tickets", body)
}

func (g *GatewayClient) MarkTicketUsed(ctx context.Context, ticketID U256) (*TxReceipt, error) {
	return g.submit(ctx, "mark-ticket-used", map[string]interface{}{"ticket_id": ticketID})
}

func (g *GatewayClient) ListTicket(ctx context.Context, ticketID U256, price U256) (*TxReceipt, error) {
	return g.submit(ctx, "list-ticket", map[string]interface{}{"ticket_id": ticketID, "price": price})
}

func (g *GatewayClient) BuyTicket(ctx context.Context, ticketID U256) (*TxReceipt, error) {
	return g.submit(ctx, "buy-ticket", map[string]interface{}{"ticket_id": ticketID})
}

func (g *GatewayClient) CancelListing(ctx context.Context, ticketID U256) (*TxReceipt, error) {
	return g.submit(ctx, "cancel-listing", map[string]interface{}{"ticket_id": ticketID})
}

func (g *GatewayClient) submit(ctx context.Context, op string, body interface{}) (*TxReceipt, error) {
	var receipt TxReceipt
	if err := g.post(ctx, "/tx/"+op, body, &receipt); err != nil {
		return nil, errs.Ledger(op, err)
	}
	return &receipt, nil
}

// ---------------- READS ----------------

func (g *GatewayClient) GetEvent(ctx context.Context, eventID U256) (*EventInfo, error) {
	var info EventInfo
	found, err := g.get(ctx, "/state/event/"+eventID.String(), &info)
	if err != nil {
		return nil, errs.Ledger("getEvent", err)
	}
	if !found {
		return nil, nil
	}
	return &info, nil
}

func (g *GatewayClient) GetTicket(ctx context.Context, ticketID U256) (*TicketInfo, error) {
	var info TicketInfo
	found, err := g.get(ctx, "/state/ticket/"+ticketID.String(), &info)
	if err != nil {
		return nil, errs.Ledger("getTicket", err)
	}
	if !found {
		return nil, nil
	}
	return &info, nil
}

// ---------------- SUBSCRIPTIONS ----------------

// Subscribe opens the gateway's notification stream for one event kind and
// invokes fn for every broadcast that decodes to that kind. The callback runs
// on the stream goroutine and must not block. The returned disposer stops the
// stream; the stream also stops when ctx is cancelled.
func (g *GatewayClient) Subscribe(ctx context.Context, kind EventKind, fn func(DomainEvent)) (func(), error) {
	streamCtx, cancel := context.WithCancel(ctx)

	go func() {
		for {
			if streamCtx.Err() != nil {
				return
			}
			if err := g.consumeStream(streamCtx, kind, fn); err != nil && streamCtx.Err() == nil {
				g.Logger.Warn("LEDGER", fmt.Sprintf("notification stream for %s dropped: %v, reconnecting", kind, err))
			}
			select {
			case <-streamCtx.Done():
				return
			case <-time.After(g.ReconnectDelay):
			}
		}
	}()

	return cancel, nil
}

func (g *GatewayClient) consumeStream(ctx context.Context, kind EventKind, fn func(DomainEvent)) error {
	url := fmt.Sprintf("%s/subscribe?kind=%s", g.BaseURL, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := g.Stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var note Notification
		if err := json.Unmarshal([]byte(data), &note); err != nil {
			g.Logger.Warn("LEDGER", fmt.Sprintf("dropping unparseable notification: %v", err))
			continue
		}
		event, err := DecodeNotification(note, g.ProgramID)
		if err != nil {
			// Foreign or directed messages are expected noise on a shared
			// stream; anything else is worth a warning.
			if err != ErrForeignSource && err != ErrNotBroadcast {
				g.Logger.Warn("LEDGER", fmt.Sprintf("dropping undecodable %s.%s notification: %v", note.Service, note.Function, err))
			}
			continue
		}
		if event.Kind() != kind {
			continue
		}
		fn(event)
	}
	return scanner.Err()
}

func (g *GatewayClient) Connected(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ---------------- HTTP HELPERS ----------------

func (g *GatewayClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned status %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *GatewayClient) get(ctx context.Context, path string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+path, nil)
	if err != nil {
		return false, err
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("gateway returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, err
	}
	return true, nil
}
