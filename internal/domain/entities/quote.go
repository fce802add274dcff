package entities

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rail-service/cctp_executor/pkg/layout"
)

// RelayStatus is the executor's view of a relay request.
type RelayStatus string

const (
	RelayStatusPending     RelayStatus = "pending"
	RelayStatusFailed      RelayStatus = "failed"
	RelayStatusUnsupported RelayStatus = "unsupported"
	RelayStatusSubmitted   RelayStatus = "submitted"
	RelayStatusUnderpaid   RelayStatus = "underpaid"
	RelayStatusAborted     RelayStatus = "aborted"
)

// IsFailure reports whether the executor has given up on the relay.
func (s RelayStatus) IsFailure() bool {
	switch s {
	case RelayStatusFailed, RelayStatusUnderpaid, RelayStatusUnsupported, RelayStatusAborted:
		return true
	}
	return false
}

// Capabilities is what an executor supports on one destination chain.
type Capabilities struct {
	RequestPrefixes []layout.RequestPrefix
	GasDropOffLimit *big.Int
	MaxGasLimit     *big.Int
	// MaxMsgValue is inclusive of GasDropOffLimit.
	MaxMsgValue *big.Int
}

// Supports reports whether prefix is advertised.
func (c Capabilities) Supports(prefix layout.RequestPrefix) bool {
	for _, p := range c.RequestPrefixes {
		if p == prefix {
			return true
		}
	}
	return false
}

// TransferRequest is the input to quoting.
type TransferRequest struct {
	Protocol    Protocol
	Source      Chain
	Destination Chain
	// Amount is in USDC base units.
	Amount *big.Int
	// NativeGas is the fraction of the destination drop-off limit to request, in [0,1].
	NativeGas float64
	// Recipient may be nil while the user has not chosen one yet.
	Recipient *ChainAddress
}

// QuoteDetails is everything a ChainExecutor needs to build the source transfer.
type QuoteDetails struct {
	SignedQuote       HexBytes     `json:"signedQuote"`
	RelayInstructions HexBytes     `json:"relayInstructions"`
	EstimatedCost     *big.Int     `json:"estimatedCost"`
	Referrer          ChainAddress `json:"referrer"`
	ReferrerFee       *big.Int     `json:"referrerFee"`
	RemainingAmount   *big.Int     `json:"remainingAmount"`
	ReferrerFeeDbps   uint16       `json:"referrerFeeDbps"`
	// EffectiveReferrerFeeDbps is lower than ReferrerFeeDbps once a fee
	// threshold caps the absolute fee.
	EffectiveReferrerFeeDbps uint16    `json:"effectiveReferrerFeeDbps"`
	ExpiryTime               time.Time `json:"expiryTime"`
	GasDropOff               *big.Int  `json:"gasDropOff"`

	// CCTP v2 only.
	FastTransferMaxFee   *big.Int `json:"fastTransferMaxFee,omitempty"`
	MinFinalityThreshold uint32   `json:"minFinalityThreshold,omitempty"`
}

// TokenAmount is an amount in base units together with its display form.
type TokenAmount struct {
	Symbol   string          `json:"symbol"`
	Amount   decimal.Decimal `json:"amount"`
	Units    *big.Int        `json:"units"`
	Decimals int             `json:"decimals"`
}

// NewTokenAmount scales units down by decimals for display.
func NewTokenAmount(symbol string, units *big.Int, decimals int) TokenAmount {
	if units == nil {
		units = new(big.Int)
	}
	return TokenAmount{
		Symbol:   symbol,
		Amount:   decimal.NewFromBigInt(units, int32(-decimals)),
		Units:    new(big.Int).Set(units),
		Decimals: decimals,
	}
}

// QuoteResult is a priced transfer as presented to a user.
type QuoteResult struct {
	Route       string        `json:"route"`
	SourceToken TokenAmount   `json:"sourceToken"`
	DestToken   TokenAmount   `json:"destinationToken"`
	RelayFee    TokenAmount   `json:"relayFee"`
	ReferrerFee TokenAmount   `json:"referrerFee"`
	NativeGas   *TokenAmount  `json:"destinationNativeGas,omitempty"`
	ETA         time.Duration `json:"eta"`
	Expires     time.Time     `json:"expires"`
	// ClientEstimate is the locally computed cost for comparison with the
	// executor's EstimatedCost.
	ClientEstimate *big.Int     `json:"clientEstimate,omitempty"`
	Details        QuoteDetails `json:"details"`
}
