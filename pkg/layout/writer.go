package layout

import (
	"encoding/binary"
	"math/big"
)

type writer struct {
	buf []byte
}

func newWriter(sizeHint int) *writer { return &writer{buf: make([]byte, 0, sizeHint)} }

func (w *writer) bytes() []byte { return w.buf }

func (w *writer) uint8(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) uint16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }

func (w *writer) uint32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }

func (w *writer) uint64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }

// bigUint writes v left-padded to size bytes. Nil is written as zero.
func (w *writer) bigUint(v *big.Int, size int, field string) error {
	if v == nil {
		w.buf = append(w.buf, make([]byte, size)...)
		return nil
	}
	if v.Sign() < 0 || v.BitLen() > size*8 {
		return rangeErrorf(field, size*8)
	}
	out := make([]byte, size)
	v.FillBytes(out)
	w.buf = append(w.buf, out...)
	return nil
}

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }
