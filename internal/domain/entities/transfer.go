package entities

import (
	"fmt"
	"math/big"
	"time"

	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/pkg/layout"
)

// Protocol is the CCTP generation a transfer was made with.
type Protocol string

const (
	ProtocolCCTPv1 Protocol = "CCTPv1"
	ProtocolCCTPv2 Protocol = "CCTPv2"
)

// RequestPrefix is the capability code the executor must advertise.
func (p Protocol) RequestPrefix() layout.RequestPrefix {
	if p == ProtocolCCTPv2 {
		return layout.RequestPrefixCCTPv2
	}
	return layout.RequestPrefixCCTPv1
}

// TransferState is the lifecycle position of a transfer.
type TransferState string

const (
	TransferStateSourceInitiated      TransferState = "SourceInitiated"
	TransferStateSourceFinalized      TransferState = "SourceFinalized"
	TransferStateAttested             TransferState = "Attested"
	TransferStateDestinationInitiated TransferState = "DestinationInitiated"
	TransferStateDestinationFinalized TransferState = "DestinationFinalized"
	TransferStateFailed               TransferState = "Failed"
)

// TransactionID identifies a broadcast transaction.
type TransactionID struct {
	Chain Chain  `json:"chain"`
	TxID  string `json:"txid"`
}

func (t TransactionID) String() string {
	return fmt.Sprintf("%s:%s", t.Chain, t.TxID)
}

// Attestation is the proof a transfer can be completed on the destination.
// For CCTP v1 relays it only carries the relay id.
type Attestation struct {
	ID          string                  `json:"id"`
	Message     *layout.CircleV2Message `json:"message,omitempty"`
	Attestation HexBytes                `json:"attestation,omitempty"`
}

// TransferReceipt tracks one transfer from source broadcast to completion.
type TransferReceipt struct {
	Protocol       Protocol                       `json:"protocol"`
	From           Chain                          `json:"from"`
	To             Chain                          `json:"to"`
	State          TransferState                  `json:"state"`
	OriginTxs      []TransactionID                `json:"originTxs"`
	DestinationTxs []TransactionID                `json:"destinationTxs,omitempty"`
	Attestation    *Attestation                   `json:"attestation,omitempty"`
	Error          *domainerrors.RelayFailedError `json:"error,omitempty"`
	UpdatedAt      time.Time                      `json:"updatedAt"`
}

// LastOriginTx is the transaction the executor indexes the relay under.
func (r TransferReceipt) LastOriginTx() (TransactionID, bool) {
	if len(r.OriginTxs) == 0 {
		return TransactionID{}, false
	}
	return r.OriginTxs[len(r.OriginTxs)-1], true
}

// IsTerminal reports whether tracking can stop. A CCTP v1 failure is final;
// a CCTP v2 failure can still be reconciled against the destination chain.
func (r TransferReceipt) IsTerminal() bool {
	switch r.State {
	case TransferStateDestinationFinalized:
		return true
	case TransferStateFailed:
		return r.Protocol != ProtocolCCTPv2
	default:
		return false
	}
}

// HasAttestation reports whether a Circle message and signature are attached.
func (r TransferReceipt) HasAttestation() bool {
	return r.Attestation != nil && r.Attestation.Message != nil && len(r.Attestation.Attestation) > 0
}

// Clone returns a copy whose slices and attestation can be mutated freely.
func (r TransferReceipt) Clone() TransferReceipt {
	out := r
	out.OriginTxs = append([]TransactionID(nil), r.OriginTxs...)
	if r.DestinationTxs != nil {
		out.DestinationTxs = append([]TransactionID(nil), r.DestinationTxs...)
	}
	if r.Attestation != nil {
		att := *r.Attestation
		out.Attestation = &att
	}
	if r.Error != nil {
		e := *r.Error
		out.Error = &e
	}
	return out
}

// UnsignedTransaction is a transaction ready for a Signer.
type UnsignedTransaction struct {
	Chain       Chain    `json:"chain"`
	Description string   `json:"description"`
	From        string   `json:"from,omitempty"`
	To          string   `json:"to,omitempty"`
	Data        HexBytes `json:"data"`
	Value       *big.Int `json:"value,omitempty"`
	ChainID     *big.Int `json:"chainId,omitempty"`
	// Parallelizable transactions may be broadcast without waiting for the
	// previous one to land.
	Parallelizable bool `json:"parallelizable"`
}

// HexBytes marshals as a 0x-prefixed hex string.
type HexBytes []byte

func (h HexBytes) MarshalText() ([]byte, error) { return []byte(layout.EncodeHex(h)), nil }

func (h *HexBytes) UnmarshalText(text []byte) error {
	b, err := layout.DecodeHex(string(text))
	if err != nil {
		return err
	}
	*h = b
	return nil
}

func (h HexBytes) String() string { return layout.EncodeHex(h) }
