package layout

import (
	"fmt"
	"math"
	"time"
)

const (
	// QuotePrefixEQ01 is the only quote variant currently issued ("EQ01").
	QuotePrefixEQ01 uint32 = 0x45513031

	// SignedQuoteDecimals is the fixed resolution of every monetary quote field.
	SignedQuoteDecimals = 10

	SignatureSize = 65

	quoteBodySize = 20 + 32 + 2 + 2 + 8*5
	// QuoteSize is the serialized length of a Quote including its prefix.
	QuoteSize = 4 + quoteBodySize
	// SignedQuoteSize is QuoteSize plus the signature.
	SignedQuoteSize = QuoteSize + SignatureSize
)

// Quote is the price data an executor commits to for one relay.
type Quote struct {
	QuoterAddress [20]byte
	PayeeAddress  UniversalAddress
	SrcChain      uint16
	DstChain      uint16
	// ExpiryTime is carried as whole unix seconds and always decodes in UTC.
	ExpiryTime    time.Time
	BaseFee       uint64
	DstGasPrice   uint64
	SrcPrice      uint64
	DstPrice      uint64
}

func (q Quote) encode(w *writer) error {
	unix := q.ExpiryTime.Unix()
	if unix < 0 {
		return rangeErrorf("expiryTime", 64)
	}
	w.uint32(QuotePrefixEQ01)
	w.raw(q.QuoterAddress[:])
	w.raw(q.PayeeAddress[:])
	w.uint16(q.SrcChain)
	w.uint16(q.DstChain)
	w.uint64(uint64(unix))
	w.uint64(q.BaseFee)
	w.uint64(q.DstGasPrice)
	w.uint64(q.SrcPrice)
	w.uint64(q.DstPrice)
	return nil
}

func (q *Quote) decode(r *reader) error {
	prefix, err := r.uint32("quote.prefix")
	if err != nil {
		return err
	}
	if prefix != QuotePrefixEQ01 {
		return decodeErrorf("quote.prefix", errUnknownTag, "quote", fmt.Sprintf("0x%08x", prefix))
	}
	if q.QuoterAddress, err = r.bytes20("quoterAddress"); err != nil {
		return err
	}
	if q.PayeeAddress, err = r.bytes32("payeeAddress"); err != nil {
		return err
	}
	if q.SrcChain, err = r.uint16("srcChain"); err != nil {
		return err
	}
	if q.DstChain, err = r.uint16("dstChain"); err != nil {
		return err
	}
	expiry, err := r.uint64("expiryTime")
	if err != nil {
		return err
	}
	if expiry > math.MaxInt64 {
		return decodeErrorf("expiryTime", "%d overflows a unix timestamp", expiry)
	}
	q.ExpiryTime = time.Unix(int64(expiry), 0).UTC()
	for _, f := range []struct {
		dst  *uint64
		name string
	}{
		{&q.BaseFee, "baseFee"},
		{&q.DstGasPrice, "dstGasPrice"},
		{&q.SrcPrice, "srcPrice"},
		{&q.DstPrice, "dstPrice"},
	} {
		if *f.dst, err = r.uint64(f.name); err != nil {
			return err
		}
	}
	return nil
}

func (q Quote) MarshalBinary() ([]byte, error) {
	w := newWriter(QuoteSize)
	if err := q.encode(w); err != nil {
		return nil, err
	}
	return w.bytes(), nil
}

func (q *Quote) UnmarshalBinary(data []byte) error {
	r := newReader(data)
	if err := q.decode(r); err != nil {
		return err
	}
	return r.finish("quote")
}

// SignedQuote is a Quote followed by the quoter's 65-byte signature. The
// signature is carried opaquely.
type SignedQuote struct {
	Quote     Quote
	Signature [SignatureSize]byte
}

func (sq SignedQuote) MarshalBinary() ([]byte, error) {
	w := newWriter(SignedQuoteSize)
	if err := sq.Quote.encode(w); err != nil {
		return nil, err
	}
	w.raw(sq.Signature[:])
	return w.bytes(), nil
}

func (sq *SignedQuote) UnmarshalBinary(data []byte) error {
	r := newReader(data)
	if err := sq.Quote.decode(r); err != nil {
		return err
	}
	sig, err := r.take(SignatureSize, "signature")
	if err != nil {
		return err
	}
	copy(sq.Signature[:], sig)
	return r.finish("signedQuote")
}

// DecodeSignedQuote parses a serialized signed quote.
func DecodeSignedQuote(data []byte) (*SignedQuote, error) {
	sq := new(SignedQuote)
	if err := sq.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return sq, nil
}
