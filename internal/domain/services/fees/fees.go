// Package fees computes referrer fees on USDC transfers.
//
// Rates are expressed in tenths of basis points (dBps): 10 dBps is one basis
// point, 0.01% of the transferred amount.
package fees

import (
	"fmt"
	"math/big"

	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
)

const (
	// MaxDbps is the largest rate that fits the on-chain u16 field.
	MaxDbps = 65535

	dbpsDenominator = 100_000
	// thresholdDecimals converts whole-token thresholds to base units.
	thresholdDecimals = 6
)

var (
	bigDenominator = big.NewInt(dbpsDenominator)
	thresholdScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(thresholdDecimals), nil)
)

// Result is the outcome of a referrer fee calculation.
type Result struct {
	Fee       *big.Int
	Remaining *big.Int
	// EffectiveDbps equals the requested rate unless a threshold capped the fee.
	EffectiveDbps uint16
}

// ValidateDbps checks that rate fits the on-chain field.
func ValidateDbps(rate int64) error {
	if rate < 0 || rate > MaxDbps {
		return domainerrors.ValidationError("referrerFeeDbps",
			fmt.Sprintf("referrer fee rate %d dBps is outside [0, %d]", rate, MaxDbps))
	}
	return nil
}

// CalculateReferrerFee splits amount into the referrer fee and what is left
// to transfer. When threshold is non-nil, the fee is charged on at most
// threshold whole tokens, so the absolute fee stops growing past it while the
// effective rate keeps falling.
func CalculateReferrerFee(amount *big.Int, rate int64, threshold *big.Int) (Result, error) {
	if err := ValidateDbps(rate); err != nil {
		return Result{}, err
	}
	if amount == nil || amount.Sign() < 0 {
		return Result{}, domainerrors.ValidationError("amount", "amount must be non-negative")
	}
	if threshold != nil && threshold.Sign() < 0 {
		return Result{}, domainerrors.ValidationError("referrerFeeThreshold", "referrer fee threshold must be non-negative")
	}

	if rate == 0 {
		return Result{Fee: new(big.Int), Remaining: new(big.Int).Set(amount)}, nil
	}
	if amount.Sign() == 0 {
		return Result{Fee: new(big.Int), Remaining: new(big.Int), EffectiveDbps: uint16(rate)}, nil
	}

	bigRate := big.NewInt(rate)
	effective := uint16(rate)
	base := amount

	if threshold != nil {
		thresholdBase := new(big.Int).Mul(threshold, thresholdScale)
		if thresholdBase.Cmp(amount) < 0 {
			base = thresholdBase
		}
	}

	fee := new(big.Int).Mul(base, bigRate)
	fee.Quo(fee, bigDenominator)

	if threshold != nil {
		eff := new(big.Int).Mul(fee, bigDenominator)
		eff.Quo(eff, amount)
		effective = uint16(eff.Uint64())
	}

	return Result{
		Fee:           fee,
		Remaining:     new(big.Int).Sub(amount, fee),
		EffectiveDbps: effective,
	}, nil
}
