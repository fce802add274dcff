package layout

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode is wrapped by every error returned while parsing a wire payload.
	ErrDecode = errors.New("layout: decode error")
	// ErrValueOutOfRange is returned when a value does not fit its field width.
	ErrValueOutOfRange = errors.New("layout: value out of range")
)

const (
	errShortBuffer   = "need %d bytes for %s, have %d"
	errTrailingBytes = "%d trailing bytes after %s"
	errUnknownTag    = "unknown %s discriminant %s"
)

// DecodeError describes where a payload failed to parse.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("layout: decode: %s", e.Reason)
	}
	return fmt.Sprintf("layout: decode %s: %s", e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error { return ErrDecode }

func decodeErrorf(field, format string, args ...interface{}) error {
	return &DecodeError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func rangeErrorf(field string, bits int) error {
	return fmt.Errorf("%w: %s exceeds %d bits", ErrValueOutOfRange, field, bits)
}
