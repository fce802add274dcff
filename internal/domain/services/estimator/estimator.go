// Package estimator reproduces the executor's pricing of a signed quote, so a
// client can sanity-check the cost the executor asks for.
package estimator

import (
	"math/big"

	"github.com/rail-service/cctp_executor/pkg/layout"
)

// Resolution is the decimal precision intermediate values are held at.
const Resolution = 18

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Normalize rescales x from `from` decimals to `to` decimals. Scaling down
// truncates.
func Normalize(x *big.Int, from, to int) *big.Int {
	switch {
	case to > from:
		return new(big.Int).Mul(x, pow10(to-from))
	case from > to:
		return new(big.Int).Quo(x, pow10(from-to))
	default:
		return new(big.Int).Set(x)
	}
}

// mul multiplies two fixed-point values held at `decimals`.
func mul(a, b *big.Int, decimals int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, pow10(decimals))
}

// div divides two fixed-point values held at `decimals`.
func div(a, b *big.Int, decimals int) *big.Int {
	if b.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(a, pow10(decimals))
	return out.Quo(out, b)
}

// Params carries the decimals needed to price a quote.
type Params struct {
	GasLimit            *big.Int
	MsgValue            *big.Int
	DstGasPriceDecimals int
	SrcTokenDecimals    int
	DstNativeDecimals   int
}

// EstimateQuote returns the cost, in source-chain native base units, of
// relaying with the given gas limit and message value under quote. It is the
// sum of the base fee, the destination gas converted to source value, and the
// message value converted the same way.
func EstimateQuote(quote layout.Quote, p Params) *big.Int {
	gasLimit := p.GasLimit
	if gasLimit == nil {
		gasLimit = new(big.Int)
	}
	msgValue := p.MsgValue
	if msgValue == nil {
		msgValue = new(big.Int)
	}

	baseFee := Normalize(new(big.Int).SetUint64(quote.BaseFee), layout.SignedQuoteDecimals, p.SrcTokenDecimals)

	srcPrice := Normalize(new(big.Int).SetUint64(quote.SrcPrice), layout.SignedQuoteDecimals, Resolution)
	dstPrice := Normalize(new(big.Int).SetUint64(quote.DstPrice), layout.SignedQuoteDecimals, Resolution)
	conversion := div(dstPrice, srcPrice, Resolution)

	gasCost := new(big.Int).Mul(gasLimit, new(big.Int).SetUint64(quote.DstGasPrice))
	gasCost = Normalize(gasCost, p.DstGasPriceDecimals, Resolution)
	gasInSrc := Normalize(mul(gasCost, conversion, Resolution), Resolution, p.SrcTokenDecimals)

	value := Normalize(msgValue, p.DstNativeDecimals, Resolution)
	valueInSrc := Normalize(mul(value, conversion, Resolution), Resolution, p.SrcTokenDecimals)

	total := new(big.Int).Add(baseFee, gasInSrc)
	return total.Add(total, valueInSrc)
}
