package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseU256(t *testing.T) {
	u, err := ParseU256("12345")
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), u.Uint64())

	u, err = ParseU256("0xff")
	require.NoError(t, err)
	assert.Equal(t, uint64(255), u.Uint64())

	// A value past the float53 boundary must survive exactly.
	big, err := ParseU256("18446744073709551616")
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551616", big.String())
	assert.False(t, big.IsUint64())
}

func TestParseU256Rejects(t *testing.T) {
	_, err := ParseU256("")
	assert.Error(t, err)

	_, err = ParseU256("-5")
	assert.Error(t, err)

	_, err = ParseU256("not a number")
	assert.Error(t, err)

	// 2^256 overflows.
	_, err = ParseU256("115792089237316195423570985008687907853269984665640564039457584007913129639936")
	assert.Error(t, err)
}

func TestU256JSONIsDecimalString(t *testing.T) {
	u := NewU256(9007199254740993) // 2^53 + 1, unrepresentable as float64

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	assert.Equal(t, `"9007199254740993"`, string(raw))

	var back U256
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Zero(t, u.Cmp(back))
}

func TestU256UnmarshalAcceptsBareNumber(t *testing.T) {
	var u U256
	require.NoError(t, json.Unmarshal([]byte(`42`), &u))
	assert.Equal(t, uint64(42), u.Uint64())
}

func TestU256Zero(t *testing.T) {
	var u U256
	assert.True(t, u.IsZero())
	assert.Equal(t, "0", u.String())
	assert.False(t, NewU256(1).IsZero())
}
