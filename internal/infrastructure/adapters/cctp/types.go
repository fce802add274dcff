package cctp

import "github.com/shopspring/decimal"

// MessagesResponse represents the response from the v2 messages API
type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

// Message represents a single CCTP message with its attestation
type Message struct {
	Message     string `json:"message"`
	EventNonce  string `json:"eventNonce"`
	Attestation string `json:"attestation"`
	CCTPVersion int    `json:"cctpVersion"`
	Status      string `json:"status"`
}

// Ready reports whether Circle has signed the message.
func (m Message) Ready() bool {
	return m.Status == MessageStatusComplete && m.Attestation != "" && m.Attestation != AttestationPending
}

// ReattestResponse is returned when a new attestation is requested for an
// expired fast-transfer message
type ReattestResponse struct {
	Message string `json:"message"`
	Nonce   string `json:"nonce"`
	Error   string `json:"error,omitempty"`
}

// BurnFee is the minimum fee Circle charges for a finality threshold
type BurnFee struct {
	FinalityThreshold uint32          `json:"finalityThreshold"`
	MinimumFee        decimal.Decimal `json:"minimumFee"` // in basis points
}
