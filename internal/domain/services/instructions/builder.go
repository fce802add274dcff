// Package instructions assembles the relay instructions attached to a quote.
package instructions

import (
	"math"
	"math/big"

	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/pkg/layout"
)

// Params describes what the executor must provide on the destination chain.
type Params struct {
	GasLimit *big.Int
	MsgValue *big.Int
	DropOff  *big.Int
	// Recipient receives the drop-off. Zero while the recipient is unknown.
	Recipient layout.UniversalAddress
	// AccountMissing forces a drop-off instruction so the executor creates the
	// recipient's token account.
	AccountMissing bool
}

// ValidateNativeGas checks the requested drop-off fraction.
func ValidateNativeGas(nativeGas float64) error {
	if math.IsNaN(nativeGas) || nativeGas < 0 || nativeGas > 1 {
		return domainerrors.ValidationError("nativeGas", "Invalid native gas percentage")
	}
	return nil
}

// DropOff converts a fraction of the destination's drop-off limit to an
// amount. The fraction is rounded to whole percent first.
func DropOff(nativeGas float64, limit *big.Int) (*big.Int, error) {
	if err := ValidateNativeGas(nativeGas); err != nil {
		return nil, err
	}
	if nativeGas == 0 || limit == nil || limit.Sign() <= 0 {
		return new(big.Int), nil
	}
	percent := big.NewInt(int64(math.Round(nativeGas * 100)))
	out := new(big.Int).Mul(percent, limit)
	return out.Quo(out, big.NewInt(100)), nil
}

// Build returns the gas instruction followed by at most one drop-off
// instruction.
func Build(p Params) layout.RelayInstructions {
	out := layout.RelayInstructions{
		layout.GasInstruction{
			GasLimit: orZero(p.GasLimit),
			MsgValue: orZero(p.MsgValue),
		},
	}
	dropOff := orZero(p.DropOff)
	if dropOff.Sign() > 0 || p.AccountMissing {
		out = append(out, layout.GasDropOffInstruction{
			DropOff:   dropOff,
			Recipient: p.Recipient,
		})
	}
	return out
}

// Encode builds and serializes the instructions.
func Encode(p Params) ([]byte, error) {
	b, err := Build(p).MarshalBinary()
	if err != nil {
		return nil, domainerrors.ValidationError("relayInstructions", err.Error())
	}
	return b, nil
}

// VerifyRecipient checks that every drop-off in encoded goes to recipient.
// Quotes made before the recipient was known carry a zero placeholder that
// must not reach the chain.
func VerifyRecipient(encoded []byte, recipient layout.UniversalAddress) error {
	ri, err := layout.DecodeRelayInstructions(encoded)
	if err != nil {
		return domainerrors.DecodeError("relay instructions", err)
	}
	for _, r := range ri.DropOffRecipients() {
		if r != recipient {
			return domainerrors.ValidationError("recipient", "Gas drop-off recipient does not match")
		}
	}
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
