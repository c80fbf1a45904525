package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActorHexRoundTrip(t *testing.T) {
	var a ActorID
	for i := range a {
		a[i] = byte(i)
	}

	parsed, err := ParseActorHex(a.Hex())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
}

func TestParseActorHexRejectsBadInput(t *testing.T) {
	_, err := ParseActorHex("deadbeef")
	assert.Error(t, err, "missing 0x prefix should fail")

	_, err = ParseActorHex("0xzz")
	assert.Error(t, err, "non-hex should fail")

	_, err = ParseActorHex("0xdeadbeef")
	assert.Error(t, err, "short ids should fail")
}

func TestAddressRoundTrip(t *testing.T) {
	var a ActorID
	for i := range a {
		a[i] = byte(255 - i)
	}

	addr := a.Address(42)
	require.NotEmpty(t, addr)

	parsed, prefix, err := ParseAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
	assert.Equal(t, byte(42), prefix)
}

func TestAddressDiffersByPrefix(t *testing.T) {
	var a ActorID
	a[0] = 1

	assert.NotEqual(t, a.Address(42), a.Address(0))
}

func TestParseAddressRejectsCorruptChecksum(t *testing.T) {
	var a ActorID
	a[31] = 7
	addr := a.Address(42)

	// Flip one character; base58 has no '0' so swapping a known character
	// keeps the string decodable while breaking the checksum.
	corrupted := []byte(addr)
	if corrupted[3] == '1' {
		corrupted[3] = '2'
	} else {
		corrupted[3] = '1'
	}

	_, _, err := ParseAddress(string(corrupted))
	assert.Error(t, err)
}

func TestParseAddressRejectsWrongLength(t *testing.T) {
	_, _, err := ParseAddress("3yQ")
	assert.Error(t, err)
}

func TestZeroActorIsBroadcastSentinel(t *testing.T) {
	var zero ActorID
	assert.True(t, zero.IsZero())

	zero[0] = 1
	assert.False(t, zero.IsZero())
}

func TestHash32RoundTrip(t *testing.T) {
	var h Hash32
	for i := range h {
		h[i] = byte(i * 3)
	}

	parsed, err := ParseHash32(h.Hex())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = ParseHash32("0xbeef")
	assert.Error(t, err)
}
