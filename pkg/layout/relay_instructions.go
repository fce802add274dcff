package layout

import (
	"fmt"
	"math/big"
)

// InstructionType is the one-byte discriminant in front of every relay
// instruction.
type InstructionType uint8

const (
	GasInstructionType        InstructionType = 1
	GasDropOffInstructionType InstructionType = 2
)

const u128Size = 16

func (t InstructionType) String() string {
	switch t {
	case GasInstructionType:
		return "GasInstruction"
	case GasDropOffInstructionType:
		return "GasDropOffInstruction"
	default:
		return fmt.Sprintf("InstructionType(%d)", uint8(t))
	}
}

// RelayInstruction is one directive to the executor. Implementations are
// GasInstruction and GasDropOffInstruction.
type RelayInstruction interface {
	Type() InstructionType
	encode(w *writer) error
}

// GasInstruction asks the executor to provide gas and message value on the
// destination call.
type GasInstruction struct {
	GasLimit *big.Int
	MsgValue *big.Int
}

func (GasInstruction) Type() InstructionType { return GasInstructionType }

func (g GasInstruction) encode(w *writer) error {
	w.uint8(uint8(GasInstructionType))
	if err := w.bigUint(g.GasLimit, u128Size, "gasLimit"); err != nil {
		return err
	}
	return w.bigUint(g.MsgValue, u128Size, "msgValue")
}

// GasDropOffInstruction asks the executor to send native gas to Recipient.
type GasDropOffInstruction struct {
	DropOff   *big.Int
	Recipient UniversalAddress
}

func (GasDropOffInstruction) Type() InstructionType { return GasDropOffInstructionType }

func (d GasDropOffInstruction) encode(w *writer) error {
	w.uint8(uint8(GasDropOffInstructionType))
	if err := w.bigUint(d.DropOff, u128Size, "dropOff"); err != nil {
		return err
	}
	w.raw(d.Recipient[:])
	return nil
}

// RelayInstructions is an ordered list of instructions. On the wire the
// records are concatenated and read until the payload is exhausted.
type RelayInstructions []RelayInstruction

func (ri RelayInstructions) MarshalBinary() ([]byte, error) {
	w := newWriter(len(ri) * (1 + 2*u128Size))
	for i, inst := range ri {
		if inst == nil {
			return nil, fmt.Errorf("%w: nil instruction at %d", ErrValueOutOfRange, i)
		}
		if err := inst.encode(w); err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	return w.bytes(), nil
}

func (ri *RelayInstructions) UnmarshalBinary(data []byte) error {
	r := newReader(data)
	out := RelayInstructions{}
	for r.remaining() > 0 {
		tag, err := r.uint8("relayInstruction.type")
		if err != nil {
			return err
		}
		switch InstructionType(tag) {
		case GasInstructionType:
			gasLimit, err := r.bigUint(u128Size, "gasLimit")
			if err != nil {
				return err
			}
			msgValue, err := r.bigUint(u128Size, "msgValue")
			if err != nil {
				return err
			}
			out = append(out, GasInstruction{GasLimit: gasLimit, MsgValue: msgValue})
		case GasDropOffInstructionType:
			dropOff, err := r.bigUint(u128Size, "dropOff")
			if err != nil {
				return err
			}
			recipient, err := r.bytes32("recipient")
			if err != nil {
				return err
			}
			out = append(out, GasDropOffInstruction{DropOff: dropOff, Recipient: recipient})
		default:
			return decodeErrorf("relayInstruction.type", errUnknownTag, "relay instruction", fmt.Sprintf("%d", tag))
		}
	}
	*ri = out
	return nil
}

// DecodeRelayInstructions parses a serialized instruction list.
func DecodeRelayInstructions(data []byte) (RelayInstructions, error) {
	var ri RelayInstructions
	if err := ri.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return ri, nil
}

// TotalGasLimitAndMsgValue sums gas limits and the native value the executor
// has to provide, with drop-offs counted towards the message value.
func (ri RelayInstructions) TotalGasLimitAndMsgValue() (gasLimit, msgValue *big.Int) {
	gasLimit, msgValue = new(big.Int), new(big.Int)
	for _, inst := range ri {
		switch v := inst.(type) {
		case GasInstruction:
			if v.GasLimit != nil {
				gasLimit.Add(gasLimit, v.GasLimit)
			}
			if v.MsgValue != nil {
				msgValue.Add(msgValue, v.MsgValue)
			}
		case GasDropOffInstruction:
			if v.DropOff != nil {
				msgValue.Add(msgValue, v.DropOff)
			}
		}
	}
	return gasLimit, msgValue
}

// DropOffRecipients lists the recipients of every drop-off instruction.
func (ri RelayInstructions) DropOffRecipients() []UniversalAddress {
	var out []UniversalAddress
	for _, inst := range ri {
		if d, ok := inst.(GasDropOffInstruction); ok {
			out = append(out, d.Recipient)
		}
	}
	return out
}
