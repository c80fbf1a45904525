package ledger

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// ActorID is the ledger-native 32-byte actor identity. Its human form is the
// network-prefixed base58 address produced by Address, which is what the
// projection stores as a wallet address.
type ActorID [32]byte

// Hash32 is a 32-byte content hash (event metadata). Hex on the wire.
type Hash32 [32]byte

var ss58Prefix = []byte("SS58PRE")

func (a ActorID) IsZero() bool {
	return a == ActorID{}
}

func (a ActorID) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// ParseActorHex parses a 0x-prefixed 64-nibble hex string.
func ParseActorHex(s string) (ActorID, error) {
	var a ActorID
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") {
		return a, fmt.Errorf("actor id %q is not 0x-prefixed", s)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return a, fmt.Errorf("actor id %q is not valid hex: %w", s, err)
	}
	if len(raw) != len(a) {
		return a, fmt.Errorf("actor id %q has %d bytes, want %d", s, len(raw), len(a))
	}
	copy(a[:], raw)
	return a, nil
}

// Address renders the actor id in the human address encoding for the given
// network prefix: base58(prefix || id || checksum[0:2]) where the checksum is
// blake2b-512 over "SS58PRE" || prefix || id.
func (a ActorID) Address(prefix byte) string {
	payload := make([]byte, 0, 1+len(a)+2)
	payload = append(payload, prefix)
	payload = append(payload, a[:]...)
	sum := addressChecksum(payload)
	payload = append(payload, sum[:2]...)
	return base58.Encode(payload)
}

// ParseAddress decodes a human address back into the actor id and the network
// prefix it was encoded with, verifying the checksum.
func ParseAddress(s string) (ActorID, byte, error) {
	var a ActorID
	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return a, 0, fmt.Errorf("address %q is not valid base58: %w", s, err)
	}
	if len(raw) != 1+len(a)+2 {
		return a, 0, fmt.Errorf("address %q has unexpected length %d", s, len(raw))
	}
	body, sum := raw[:1+len(a)], raw[1+len(a):]
	want := addressChecksum(body)
	if !bytes.Equal(sum, want[:2]) {
		return a, 0, fmt.Errorf("address %q has a bad checksum", s)
	}
	copy(a[:], body[1:])
	return a, body[0], nil
}

func addressChecksum(body []byte) [64]byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Prefix)
	h.Write(body)
	var sum [64]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func (a ActorID) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *ActorID) UnmarshalText(b []byte) error {
	parsed, err := ParseActorHex(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (h Hash32) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func ParseHash32(s string) (Hash32, error) {
	var h Hash32
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") {
		return h, fmt.Errorf("hash %q is not 0x-prefixed", s)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return h, fmt.Errorf("hash %q is not valid hex: %w", s, err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("hash %q has %d bytes, want %d", s, len(raw), len(h))
	}
	copy(h[:], raw)
	return h, nil
}

func (h Hash32) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

func (h *Hash32) UnmarshalText(b []byte) error {
	parsed, err := ParseHash32(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
