package layout

import (
	"encoding/binary"
	"fmt"
)

// RequestPrefix is the four-character code identifying a request kind. The
// executor capabilities endpoint advertises supported kinds by these codes.
type RequestPrefix string

const (
	RequestPrefixMM     RequestPrefix = "ERM1"
	RequestPrefixVAAv1  RequestPrefix = "ERV1"
	RequestPrefixNTTv1  RequestPrefix = "ERN1"
	RequestPrefixCCTPv1 RequestPrefix = "ERC1"
	RequestPrefixCCTPv2 RequestPrefix = "ERC2"
)

const cctpV2AutoDiscriminant uint8 = 0x01

// Tag returns the big-endian integer form of the prefix.
func (p RequestPrefix) Tag() uint32 {
	if len(p) != 4 {
		return 0
	}
	return binary.BigEndian.Uint32([]byte(p))
}

// Request describes which on-chain event an executor should relay.
type Request interface {
	Prefix() RequestPrefix
	encodeBody(w *writer)
}

type VAAv1Request struct {
	Chain    uint16
	Address  UniversalAddress
	Sequence uint64
}

func (VAAv1Request) Prefix() RequestPrefix { return RequestPrefixVAAv1 }

func (r VAAv1Request) encodeBody(w *writer) {
	w.uint16(r.Chain)
	w.raw(r.Address[:])
	w.uint64(r.Sequence)
}

type NTTv1Request struct {
	SrcChain   uint16
	SrcManager UniversalAddress
	MessageID  [32]byte
}

func (NTTv1Request) Prefix() RequestPrefix { return RequestPrefixNTTv1 }

func (r NTTv1Request) encodeBody(w *writer) {
	w.uint16(r.SrcChain)
	w.raw(r.SrcManager[:])
	w.raw(r.MessageID[:])
}

type CCTPv1Request struct {
	SourceDomain uint32
	Nonce        uint64
}

func (CCTPv1Request) Prefix() RequestPrefix { return RequestPrefixCCTPv1 }

func (r CCTPv1Request) encodeBody(w *writer) {
	w.uint32(r.SourceDomain)
	w.uint64(r.Nonce)
}

// CCTPv2Request has a single "auto" variant: the executor discovers the burn
// from the source transaction itself.
type CCTPv2Request struct{}

func (CCTPv2Request) Prefix() RequestPrefix { return RequestPrefixCCTPv2 }

func (CCTPv2Request) encodeBody(w *writer) { w.uint8(cctpV2AutoDiscriminant) }

// MarshalRequest writes the 4-byte prefix followed by the variant body.
func MarshalRequest(req Request) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrValueOutOfRange)
	}
	w := newWriter(4 + 72)
	w.uint32(req.Prefix().Tag())
	req.encodeBody(w)
	return w.bytes(), nil
}

// UnmarshalRequest parses a prefixed request.
func UnmarshalRequest(data []byte) (Request, error) {
	r := newReader(data)
	tag, err := r.take(4, "request.prefix")
	if err != nil {
		return nil, err
	}

	var req Request
	switch RequestPrefix(tag) {
	case RequestPrefixVAAv1:
		var v VAAv1Request
		if v.Chain, err = r.uint16("chain"); err != nil {
			return nil, err
		}
		if v.Address, err = r.bytes32("address"); err != nil {
			return nil, err
		}
		if v.Sequence, err = r.uint64("sequence"); err != nil {
			return nil, err
		}
		req = v
	case RequestPrefixNTTv1:
		var v NTTv1Request
		if v.SrcChain, err = r.uint16("srcChain"); err != nil {
			return nil, err
		}
		if v.SrcManager, err = r.bytes32("srcManager"); err != nil {
			return nil, err
		}
		if v.MessageID, err = r.bytes32("messageId"); err != nil {
			return nil, err
		}
		req = v
	case RequestPrefixCCTPv1:
		var v CCTPv1Request
		if v.SourceDomain, err = r.uint32("sourceDomain"); err != nil {
			return nil, err
		}
		if v.Nonce, err = r.uint64("nonce"); err != nil {
			return nil, err
		}
		req = v
	case RequestPrefixCCTPv2:
		d, err := r.uint8("cctpV2Request")
		if err != nil {
			return nil, err
		}
		if d != cctpV2AutoDiscriminant {
			return nil, decodeErrorf("cctpV2Request", errUnknownTag, "cctp v2 request", fmt.Sprintf("0x%02x", d))
		}
		req = CCTPv2Request{}
	default:
		return nil, decodeErrorf("request.prefix", errUnknownTag, "request", fmt.Sprintf("%q", tag))
	}
	if err := r.finish("request"); err != nil {
		return nil, err
	}
	return req, nil
}
