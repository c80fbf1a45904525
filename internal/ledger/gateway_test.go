package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-chainsync/internal/logger"
)

// The notification stream must outlive the request client's global timeout:
// http.Client.Timeout covers body reads, so sharing that client would cut
// every stream and drop anything emitted during the reconnect gap.
func TestSubscribeOutlivesRequestClientTimeout(t *testing.T) {
	var organizer ActorID
	organizer[3] = 7
	var hash Hash32
	hash[0] = 0xbe

	note := broadcastNotification("EventCreated", map[string]interface{}{
		"event_id":         "7",
		"organizer":        organizer.Hex(),
		"metadata_hash":    hash.Hex(),
		"event_start_time": 1760000000,
	})
	raw, err := json.Marshal(note)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subscribe" {
			http.NotFound(w, r)
			return
		}
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		// Emit well past the request client's timeout.
		time.Sleep(500 * time.Millisecond)
		fmt.Fprintf(w, "data: %s\n\n", raw)
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, testProgramID, &http.Client{Timeout: 300 * time.Millisecond}, logger.NewLogger())
	g.ReconnectDelay = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan DomainEvent, 1)
	unsub, err := g.Subscribe(ctx, KindEventCreated, func(e DomainEvent) {
		select {
		case got <- e:
		default:
		}
	})
	require.NoError(t, err)
	defer unsub()

	select {
	case e := <-got:
		created, ok := e.(*EventCreated)
		require.True(t, ok)
		assert.Equal(t, uint64(7), created.EventID.Uint64())
	case <-time.After(3 * time.Second):
		t.Fatal("no notification received, the stream was cut before the gateway emitted")
	}
}
