package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// PendingEventID builds a placeholder ledger id for an event row created
// before its on-ledger id is known: pending-<timestamp>-<random>.
func PendingEventID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("pending-%d-%06d", timestamp, randomNum.Int64())
}

// PendingTicketID builds a placeholder ledger id for a speculative ticket,
// keyed by the mint request so a whole batch can be found and rolled back
// together: pending-<requestID>-<random>.
func PendingTicketID(requestID string) string {
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("pending-%s-%06d", requestID, randomNum.Int64())
}

// IsPendingID reports whether a ledger id is a local placeholder.
func IsPendingID(id string) bool {
	return strings.HasPrefix(id, "pending-")
}

// GenerateUUID creates a random UUID v4
func GenerateUUID() string {
	uuid := make([]byte, 16)
	_, err := rand.Read(uuid)
	if err != nil {
		// Fallback to a timestamp-based id if random generation fails
		timestamp := time.Now().UnixNano()
		return fmt.Sprintf("id-%d", timestamp)
	}

	// Set version to 4 (random)
	uuid[6] = (uuid[6] & 0x0F) | 0x40
	// Set variant to RFC4122
	uuid[8] = (uuid[8] & 0x3F) | 0x80

	return fmt.Sprintf("%x-%x-%x-%x-%x",
		uuid[0:4], uuid[4:6], uuid[6:8], uuid[8:10], uuid[10:])
}
