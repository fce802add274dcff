package layout

import (
	"encoding/binary"
	"math/big"
)

// reader walks a payload front to back. All integers are big-endian.
type reader struct {
	buf []byte
	off int
}

func newReader(b []byte) *reader { return &reader{buf: b} }

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) take(n int, field string) ([]byte, error) {
	if r.remaining() < n {
		return nil, decodeErrorf(field, errShortBuffer, n, field, r.remaining())
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *reader) uint8(field string) (uint8, error) {
	b, err := r.take(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) uint16(field string) (uint16, error) {
	b, err := r.take(2, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) uint32(field string) (uint32, error) {
	b, err := r.take(4, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) uint64(field string) (uint64, error) {
	b, err := r.take(8, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// bigUint reads an unsigned integer of size bytes.
func (r *reader) bigUint(size int, field string) (*big.Int, error) {
	b, err := r.take(size, field)
	if err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(b)
	if v.Sign() == 0 {
		// canonical zero so decoded values compare equal to big.NewInt(0)
		return new(big.Int), nil
	}
	return v, nil
}

func (r *reader) bytes20(field string) ([20]byte, error) {
	var out [20]byte
	b, err := r.take(20, field)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func (r *reader) bytes32(field string) ([32]byte, error) {
	var out [32]byte
	b, err := r.take(32, field)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// rest consumes whatever is left of the buffer.
func (r *reader) rest() []byte {
	if r.remaining() == 0 {
		return nil
	}
	out := make([]byte, r.remaining())
	copy(out, r.buf[r.off:])
	r.off = len(r.buf)
	return out
}

func (r *reader) finish(what string) error {
	if n := r.remaining(); n != 0 {
		return decodeErrorf(what, errTrailingBytes, n, what)
	}
	return nil
}
