package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(b byte) (out [32]byte) {
	for i := range out {
		out[i] = b
	}
	return out
}

func TestRelayInstructions(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := RelayInstructions{
			GasInstruction{GasLimit: big.NewInt(250_000), MsgValue: big.NewInt(2_039_280)},
			GasDropOffInstruction{DropOff: big.NewInt(1_000_000), Recipient: filled(0xab)},
		}
		encoded, err := in.MarshalBinary()
		require.NoError(t, err)
		assert.Len(t, encoded, 33+49)
		assert.Equal(t, byte(1), encoded[0])
		assert.Equal(t, byte(2), encoded[33])

		out, err := DecodeRelayInstructions(encoded)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("max u128 fits", func(t *testing.T) {
		max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
		in := RelayInstructions{GasInstruction{GasLimit: max, MsgValue: big.NewInt(0)}}
		encoded, err := in.MarshalBinary()
		require.NoError(t, err)
		out, err := DecodeRelayInstructions(encoded)
		require.NoError(t, err)
		assert.Equal(t, 0, max.Cmp(out[0].(GasInstruction).GasLimit))
	})

	t.Run("rejects values wider than u128", func(t *testing.T) {
		tooBig := new(big.Int).Lsh(big.NewInt(1), 128)
		_, err := RelayInstructions{GasInstruction{GasLimit: tooBig}}.MarshalBinary()
		assert.ErrorIs(t, err, ErrValueOutOfRange)

		_, err = RelayInstructions{GasDropOffInstruction{DropOff: big.NewInt(-1)}}.MarshalBinary()
		assert.ErrorIs(t, err, ErrValueOutOfRange)
	})

	t.Run("rejects unknown discriminant", func(t *testing.T) {
		_, err := DecodeRelayInstructions([]byte{0x03, 0x00})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDecode)
		var de *DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "relayInstruction.type", de.Field)
	})

	t.Run("rejects truncated payload", func(t *testing.T) {
		encoded, err := RelayInstructions{GasInstruction{GasLimit: big.NewInt(1), MsgValue: big.NewInt(1)}}.MarshalBinary()
		require.NoError(t, err)
		_, err = DecodeRelayInstructions(encoded[:20])
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("empty payload decodes to empty list", func(t *testing.T) {
		out, err := DecodeRelayInstructions(nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("totals", func(t *testing.T) {
		gas, value := RelayInstructions{
			GasInstruction{GasLimit: big.NewInt(200_000), MsgValue: big.NewInt(5)},
			GasDropOffInstruction{DropOff: big.NewInt(10)},
		}.TotalGasLimitAndMsgValue()
		assert.Equal(t, int64(200_000), gas.Int64())
		assert.Equal(t, int64(15), value.Int64())
	})
}

func sampleSignedQuote() SignedQuote {
	sq := SignedQuote{
		Quote: Quote{
			PayeeAddress: filled(0x22),
			SrcChain:     10002,
			DstChain:     1,
			ExpiryTime:   time.Unix(1_750_000_000, 0).UTC(),
			BaseFee:      1_000_000,
			DstGasPrice:  5_000,
			SrcPrice:     35_000_000_000_000,
			DstPrice:     1_500_000_000_000,
		},
	}
	for i := range sq.Quote.QuoterAddress {
		sq.Quote.QuoterAddress[i] = 0x11
	}
	for i := range sq.Signature {
		sq.Signature[i] = byte(i)
	}
	return sq
}

func TestDropOffRecipients(t *testing.T) {
	ri := RelayInstructions{
		GasInstruction{GasLimit: big.NewInt(1), MsgValue: big.NewInt(0)},
		GasDropOffInstruction{DropOff: big.NewInt(5), Recipient: filled(0x01)},
		GasDropOffInstruction{DropOff: big.NewInt(7), Recipient: filled(0x02)},
	}
	assert.Equal(t, []UniversalAddress{filled(0x01), filled(0x02)}, ri.DropOffRecipients())
	assert.Empty(t, RelayInstructions{GasInstruction{GasLimit: big.NewInt(1)}}.DropOffRecipients())
	assert.Empty(t, RelayInstructions(nil).DropOffRecipients())
}

func TestSignedQuote(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := sampleSignedQuote()
		encoded, err := in.MarshalBinary()
		require.NoError(t, err)
		require.Len(t, encoded, SignedQuoteSize)
		assert.Equal(t, []byte("EQ01"), encoded[:4])

		out, err := DecodeSignedQuote(encoded)
		require.NoError(t, err)
		assert.Equal(t, in, *out)
	})

	t.Run("unsigned quote round trip", func(t *testing.T) {
		in := sampleSignedQuote().Quote
		encoded, err := in.MarshalBinary()
		require.NoError(t, err)
		require.Len(t, encoded, QuoteSize)
		var out Quote
		require.NoError(t, out.UnmarshalBinary(encoded))
		assert.Equal(t, in, out)
	})

	t.Run("rejects unknown prefix", func(t *testing.T) {
		encoded, err := sampleSignedQuote().MarshalBinary()
		require.NoError(t, err)
		copy(encoded, "EQ02")
		_, err = DecodeSignedQuote(encoded)
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("rejects trailing bytes", func(t *testing.T) {
		encoded, err := sampleSignedQuote().MarshalBinary()
		require.NoError(t, err)
		_, err = DecodeSignedQuote(append(encoded, 0x00))
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("expiry decodes as whole utc seconds", func(t *testing.T) {
		in := sampleSignedQuote().Quote
		in.ExpiryTime = time.Date(2026, 3, 1, 12, 0, 0, 750_000_000, time.FixedZone("CET", 3600))
		encoded, err := in.MarshalBinary()
		require.NoError(t, err)

		var out Quote
		require.NoError(t, out.UnmarshalBinary(encoded))
		assert.Equal(t, time.UTC, out.ExpiryTime.Location())
		assert.True(t, in.ExpiryTime.Truncate(time.Second).Equal(out.ExpiryTime))
		assert.Zero(t, out.ExpiryTime.Nanosecond())
	})

	t.Run("rejects pre-epoch expiry", func(t *testing.T) {
		q := sampleSignedQuote()
		q.Quote.ExpiryTime = time.Unix(-1, 0)
		_, err := q.MarshalBinary()
		assert.ErrorIs(t, err, ErrValueOutOfRange)
	})
}

func TestRequest(t *testing.T) {
	cases := []Request{
		VAAv1Request{Chain: 2, Address: filled(0x01), Sequence: 42},
		NTTv1Request{SrcChain: 1, SrcManager: filled(0x02), MessageID: filled(0x03)},
		CCTPv1Request{SourceDomain: 6, Nonce: 123456},
		CCTPv2Request{},
	}
	for _, in := range cases {
		t.Run(string(in.Prefix()), func(t *testing.T) {
			encoded, err := MarshalRequest(in)
			require.NoError(t, err)
			assert.Equal(t, []byte(in.Prefix()), encoded[:4])
			out, err := UnmarshalRequest(encoded)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}

	t.Run("cctp v1 layout", func(t *testing.T) {
		encoded, err := MarshalRequest(CCTPv1Request{SourceDomain: 1, Nonce: 2})
		require.NoError(t, err)
		assert.Equal(t, []byte{'E', 'R', 'C', '1', 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 2}, encoded)
	})

	t.Run("rejects unknown prefix", func(t *testing.T) {
		_, err := UnmarshalRequest([]byte("ERX1"))
		assert.ErrorIs(t, err, ErrDecode)
	})
}

func sampleMessage() CircleV2Message {
	return CircleV2Message{
		Version:                   1,
		SourceDomain:              0,
		DestinationDomain:         6,
		Nonce:                     filled(0x99),
		Sender:                    filled(0x01),
		Recipient:                 filled(0x02),
		DestinationCaller:         ZeroAddress,
		MinFinalityThreshold:      1000,
		FinalityThresholdExecuted: 1000,
		MessageBody: CircleBurnMessageV2{
			Version:         1,
			BurnToken:       filled(0x03),
			MintRecipient:   filled(0x04),
			Amount:          big.NewInt(1_000_000),
			MessageSender:   filled(0x05),
			MaxFee:          big.NewInt(100),
			FeeExecuted:     big.NewInt(0),
			ExpirationBlock: big.NewInt(8_000_000),
			HookData:        []byte{0xde, 0xad},
		},
	}
}

func TestCircleV2Message(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := sampleMessage()
		encoded, err := in.MarshalBinary()
		require.NoError(t, err)
		assert.Len(t, encoded, 148+228+2)

		out, err := DecodeCircleV2Message(encoded)
		require.NoError(t, err)
		assert.Equal(t, in, *out)
	})

	t.Run("empty hook data", func(t *testing.T) {
		in := sampleMessage()
		in.MessageBody.HookData = nil
		encoded, err := in.MarshalBinary()
		require.NoError(t, err)
		out, err := DecodeCircleV2Message(encoded)
		require.NoError(t, err)
		assert.Equal(t, in, *out)
	})

	t.Run("zero-length hook data decodes as nil", func(t *testing.T) {
		withEmpty := sampleMessage()
		withEmpty.MessageBody.HookData = []byte{}
		withNil := sampleMessage()
		withNil.MessageBody.HookData = nil

		a, err := withEmpty.MarshalBinary()
		require.NoError(t, err)
		b, err := withNil.MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, a, b)

		out, err := DecodeCircleV2Message(a)
		require.NoError(t, err)
		assert.Nil(t, out.MessageBody.HookData)
	})

	t.Run("json keeps wire bytes", func(t *testing.T) {
		in := sampleMessage()
		raw, err := json.Marshal(in)
		require.NoError(t, err)
		var out CircleV2Message
		require.NoError(t, json.Unmarshal(raw, &out))

		a, _ := in.MarshalBinary()
		b, _ := out.MarshalBinary()
		assert.True(t, bytes.Equal(a, b))
	})

	t.Run("expiry", func(t *testing.T) {
		m := sampleMessage()
		assert.False(t, m.Expired(8_000_000))
		assert.True(t, m.Expired(8_000_001))
		m.MessageBody.ExpirationBlock = big.NewInt(0)
		assert.False(t, m.Expired(1<<62))
	})

	t.Run("rejects truncated body", func(t *testing.T) {
		encoded, err := sampleMessage().MarshalBinary()
		require.NoError(t, err)
		_, err = DecodeCircleV2Message(encoded[:200])
		assert.ErrorIs(t, err, ErrDecode)
	})
}

func TestUniversalAddress(t *testing.T) {
	a, err := UniversalAddressFromBytes([]byte{0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), a[30])
	assert.Equal(t, byte(0x02), a[31])
	assert.False(t, a.IsZero())

	text, err := a.MarshalText()
	require.NoError(t, err)
	var back UniversalAddress
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, a, back)

	_, err = UniversalAddressFromBytes(make([]byte, 33))
	assert.ErrorIs(t, err, ErrValueOutOfRange)
}
