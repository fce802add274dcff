package layout

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// UniversalAddress is a chain-agnostic 32-byte account identifier. Shorter
// native addresses are left-padded with zeros.
type UniversalAddress [32]byte

// ZeroAddress is used as a placeholder recipient while quoting.
var ZeroAddress UniversalAddress

// UniversalAddressFromBytes left-pads b to 32 bytes.
func UniversalAddressFromBytes(b []byte) (UniversalAddress, error) {
	var out UniversalAddress
	if len(b) > len(out) {
		return out, fmt.Errorf("%w: address of %d bytes", ErrValueOutOfRange, len(b))
	}
	copy(out[len(out)-len(b):], b)
	return out, nil
}

func (a UniversalAddress) IsZero() bool { return a == ZeroAddress }

func (a UniversalAddress) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a UniversalAddress) String() string { return a.Hex() }

func (a UniversalAddress) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

func (a *UniversalAddress) UnmarshalText(text []byte) error {
	b, err := DecodeHex(string(text))
	if err != nil {
		return err
	}
	parsed, err := UniversalAddressFromBytes(b)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// EncodeHex renders b with a 0x prefix, the form the executor API expects.
func EncodeHex(b []byte) string { return "0x" + hex.EncodeToString(b) }

// DecodeHex accepts input with or without a 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, &DecodeError{Field: "hex", Reason: err.Error()}
	}
	return b, nil
}
