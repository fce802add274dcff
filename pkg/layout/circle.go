package layout

import (
	"encoding/json"
	"math/big"
)

const u256Size = 32

// CircleV2Message is the CCTP v2 message envelope signed by Circle's
// attestation service.
type CircleV2Message struct {
	Version                   uint32
	SourceDomain              uint32
	DestinationDomain         uint32
	Nonce                     [32]byte
	Sender                    UniversalAddress
	Recipient                 UniversalAddress
	DestinationCaller         UniversalAddress
	MinFinalityThreshold      uint32
	FinalityThresholdExecuted uint32
	MessageBody               CircleBurnMessageV2
}

// CircleBurnMessageV2 is the TokenMessenger payload carried in a v2 message.
type CircleBurnMessageV2 struct {
	Version         uint32
	BurnToken       UniversalAddress
	MintRecipient   UniversalAddress
	Amount          *big.Int
	MessageSender   UniversalAddress
	MaxFee          *big.Int
	FeeExecuted     *big.Int
	ExpirationBlock *big.Int
	// HookData runs to the end of the message. Empty hook data decodes as nil.
	HookData        []byte
}

func (b CircleBurnMessageV2) encode(w *writer) error {
	w.uint32(b.Version)
	w.raw(b.BurnToken[:])
	w.raw(b.MintRecipient[:])
	if err := w.bigUint(b.Amount, u256Size, "amount"); err != nil {
		return err
	}
	w.raw(b.MessageSender[:])
	if err := w.bigUint(b.MaxFee, u256Size, "maxFee"); err != nil {
		return err
	}
	if err := w.bigUint(b.FeeExecuted, u256Size, "feeExecuted"); err != nil {
		return err
	}
	if err := w.bigUint(b.ExpirationBlock, u256Size, "expirationBlock"); err != nil {
		return err
	}
	w.raw(b.HookData)
	return nil
}

func (b *CircleBurnMessageV2) decode(r *reader) (err error) {
	if b.Version, err = r.uint32("burnMessage.version"); err != nil {
		return err
	}
	if b.BurnToken, err = r.bytes32("burnToken"); err != nil {
		return err
	}
	if b.MintRecipient, err = r.bytes32("mintRecipient"); err != nil {
		return err
	}
	if b.Amount, err = r.bigUint(u256Size, "amount"); err != nil {
		return err
	}
	if b.MessageSender, err = r.bytes32("messageSender"); err != nil {
		return err
	}
	if b.MaxFee, err = r.bigUint(u256Size, "maxFee"); err != nil {
		return err
	}
	if b.FeeExecuted, err = r.bigUint(u256Size, "feeExecuted"); err != nil {
		return err
	}
	if b.ExpirationBlock, err = r.bigUint(u256Size, "expirationBlock"); err != nil {
		return err
	}
	b.HookData = r.rest()
	return nil
}

func (m CircleV2Message) MarshalBinary() ([]byte, error) {
	w := newWriter(148 + 228 + len(m.MessageBody.HookData))
	w.uint32(m.Version)
	w.uint32(m.SourceDomain)
	w.uint32(m.DestinationDomain)
	w.raw(m.Nonce[:])
	w.raw(m.Sender[:])
	w.raw(m.Recipient[:])
	w.raw(m.DestinationCaller[:])
	w.uint32(m.MinFinalityThreshold)
	w.uint32(m.FinalityThresholdExecuted)
	if err := m.MessageBody.encode(w); err != nil {
		return nil, err
	}
	return w.bytes(), nil
}

func (m *CircleV2Message) UnmarshalBinary(data []byte) (err error) {
	r := newReader(data)
	if m.Version, err = r.uint32("version"); err != nil {
		return err
	}
	if m.SourceDomain, err = r.uint32("sourceDomain"); err != nil {
		return err
	}
	if m.DestinationDomain, err = r.uint32("destinationDomain"); err != nil {
		return err
	}
	if m.Nonce, err = r.bytes32("nonce"); err != nil {
		return err
	}
	if m.Sender, err = r.bytes32("sender"); err != nil {
		return err
	}
	if m.Recipient, err = r.bytes32("recipient"); err != nil {
		return err
	}
	if m.DestinationCaller, err = r.bytes32("destinationCaller"); err != nil {
		return err
	}
	if m.MinFinalityThreshold, err = r.uint32("minFinalityThreshold"); err != nil {
		return err
	}
	if m.FinalityThresholdExecuted, err = r.uint32("finalityThresholdExecuted"); err != nil {
		return err
	}
	return m.MessageBody.decode(r)
}

// DecodeCircleV2Message parses a raw v2 message.
func DecodeCircleV2Message(data []byte) (*CircleV2Message, error) {
	m := new(CircleV2Message)
	if err := m.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return m, nil
}

// NonceHex is the form Circle's reattest endpoint takes.
func (m CircleV2Message) NonceHex() string { return EncodeHex(m.Nonce[:]) }

// Expired reports whether the attestation for m can no longer be used at
// currentBlock. A zero expiration block never expires.
func (m CircleV2Message) Expired(currentBlock uint64) bool {
	exp := m.MessageBody.ExpirationBlock
	if exp == nil || exp.Sign() == 0 {
		return false
	}
	return new(big.Int).SetUint64(currentBlock).Cmp(exp) > 0
}

// MarshalJSON stores the message in its wire form so persisted receipts stay
// byte-exact.
func (m CircleV2Message) MarshalJSON() ([]byte, error) {
	b, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return json.Marshal(EncodeHex(b))
}

func (m *CircleV2Message) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := DecodeHex(s)
	if err != nil {
		return err
	}
	return m.UnmarshalBinary(b)
}
