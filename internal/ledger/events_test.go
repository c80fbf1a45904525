package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProgramID = func() ActorID {
	var a ActorID
	a[0] = 0xaa
	a[31] = 0x55
	return a
}()

func broadcastNotification(function string, payload interface{}) Notification {
	raw, _ := json.Marshal(payload)
	var zero ActorID
	return Notification{
		Source:      testProgramID.Hex(),
		Destination: zero.Hex(),
		Service:     "Ticket",
		Function:    function,
		Payload:     raw,
	}
}

func TestDecodeEventCreated(t *testing.T) {
	var organizer ActorID
	organizer[5] = 9
	var hash Hash32
	hash[0] = 0xde

	note := broadcastNotification("EventCreated", map[string]interface{}{
		"event_id":         "7",
		"organizer":        organizer.Hex(),
		"metadata_hash":    hash.Hex(),
		"event_start_time": 1760000000,
	})

	event, err := DecodeNotification(note, testProgramID)
	require.NoError(t, err)

	created, ok := event.(*EventCreated)
	require.True(t, ok)
	assert.Equal(t, uint64(7), created.EventID.Uint64())
	assert.Equal(t, organizer, created.Organizer)
	assert.Equal(t, hash, created.MetadataHash)
	assert.Equal(t, uint64(1760000000), created.EventStartTime)
	assert.Equal(t, KindEventCreated, created.Kind())
}

func TestDecodeTicketsMinted(t *testing.T) {
	var buyer ActorID
	buyer[1] = 2

	note := broadcastNotification("TicketsMinted", map[string]interface{}{
		"event_id":   "3",
		"ticket_ids": []string{"100", "101", "102"},
		"buyer":      buyer.Hex(),
		"amount":     "3",
	})

	event, err := DecodeNotification(note, testProgramID)
	require.NoError(t, err)

	minted, ok := event.(*TicketsMinted)
	require.True(t, ok)
	require.Len(t, minted.TicketIDs, 3)
	assert.Equal(t, uint64(100), minted.TicketIDs[0].Uint64())
	assert.Equal(t, buyer, minted.Buyer)
}

func TestDecodeMarketFunctions(t *testing.T) {
	var seller, buyer ActorID
	seller[0] = 1
	buyer[0] = 2

	note := broadcastNotification("TicketSold", map[string]interface{}{
		"ticket_id":       "11",
		"event_id":        "3",
		"seller":          seller.Hex(),
		"buyer":           buyer.Hex(),
		"price":           "5000",
		"seller_share":    "4250",
		"organizer_share": "500",
		"platform_share":  "250",
	})
	note.Service = "Market"

	event, err := DecodeNotification(note, testProgramID)
	require.NoError(t, err)

	sold, ok := event.(*TicketSold)
	require.True(t, ok)
	assert.Equal(t, KindTicketSold, sold.Kind())
	assert.Equal(t, uint64(5000), sold.Price.Uint64())
}

func TestDecodeRejectsForeignSource(t *testing.T) {
	note := broadcastNotification("TicketUsed", map[string]interface{}{
		"ticket_id": "1",
		"event_id":  "1",
		"scanner":   testProgramID.Hex(),
	})

	var other ActorID
	other[0] = 0xff
	note.Source = other.Hex()

	_, err := DecodeNotification(note, testProgramID)
	assert.ErrorIs(t, err, ErrForeignSource)
}

func TestDecodeRejectsDirectedMessage(t *testing.T) {
	note := broadcastNotification("TicketUsed", map[string]interface{}{
		"ticket_id": "1",
		"event_id":  "1",
		"scanner":   testProgramID.Hex(),
	})
	note.Destination = testProgramID.Hex()

	_, err := DecodeNotification(note, testProgramID)
	assert.ErrorIs(t, err, ErrNotBroadcast)
}

func TestDecodeRejectsUnknownServiceAndFunction(t *testing.T) {
	note := broadcastNotification("EventCreated", map[string]interface{}{})
	note.Service = "Oracle"
	_, err := DecodeNotification(note, testProgramID)
	assert.Error(t, err)

	note = broadcastNotification("SomethingElse", map[string]interface{}{})
	_, err = DecodeNotification(note, testProgramID)
	assert.Error(t, err)
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	var zero ActorID
	note := Notification{
		Source:      testProgramID.Hex(),
		Destination: zero.Hex(),
		Service:     "Ticket",
		Function:    "EventCreated",
		Payload:     json.RawMessage(`{"event_id": "minus one"}`),
	}

	_, err := DecodeNotification(note, testProgramID)
	assert.Error(t, err)
}
