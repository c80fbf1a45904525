package ledger

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// U256 is an unsigned 256-bit integer as emitted by the ledger for amounts,
// event ids and ticket ids. It serializes to a decimal string so that values
// above 2^53 survive JSON round-trips; it is never represented as a float.
type U256 struct {
	v big.Int
}

var maxU256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func NewU256(v uint64) U256 {
	var u U256
	u.v.SetUint64(v)
	return u
}

// ParseU256 accepts a decimal string or a 0x-prefixed hex string.
func ParseU256(s string) (U256, error) {
	var u U256
	s = strings.TrimSpace(s)
	if s == "" {
		return u, fmt.Errorf("empty u256 value")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	if _, ok := u.v.SetString(s, base); !ok {
		return U256{}, fmt.Errorf("invalid u256 value %q", s)
	}
	if u.v.Sign() < 0 {
		return U256{}, fmt.Errorf("u256 value %q is negative", s)
	}
	if u.v.Cmp(maxU256) > 0 {
		return U256{}, fmt.Errorf("u256 value %q overflows 256 bits", s)
	}
	return u, nil
}

func (u U256) String() string {
	return u.v.String()
}

func (u U256) Uint64() uint64 {
	return u.v.Uint64()
}

func (u U256) IsUint64() bool {
	return u.v.IsUint64()
}

func (u U256) Cmp(o U256) int {
	return u.v.Cmp(&o.v)
}

func (u U256) IsZero() bool {
	return u.v.Sign() == 0
}

func (u U256) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.v.String())
}

// UnmarshalJSON accepts both a JSON string and a bare JSON number; the
// gateway emits strings but older payloads carried small numbers inline.
func (u *U256) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	parsed, err := ParseU256(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

func (u U256) MarshalText() ([]byte, error) {
	return []byte(u.v.String()), nil
}

func (u *U256) UnmarshalText(b []byte) error {
	parsed, err := ParseU256(string(b))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
