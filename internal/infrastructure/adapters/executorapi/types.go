package executorapi

import "time"

// QuoteRequest is the body of POST /v0/quote
type QuoteRequest struct {
	SrcChain          uint16 `json:"srcChain"`
	DstChain          uint16 `json:"dstChain"`
	RelayInstructions string `json:"relayInstructions"`
}

// QuoteResponse carries the signed quote and, when the executor could price
// the instructions, the cost in source native base units
type QuoteResponse struct {
	SignedQuote   string `json:"signedQuote"`
	EstimatedCost string `json:"estimatedCost,omitempty"`
}

// Capabilities is one chain's entry in GET /v0/capabilities
type Capabilities struct {
	RequestPrefixes []string `json:"requestPrefixes"`
	GasDropOffLimit string   `json:"gasDropOffLimit"`
	MaxGasLimit     string   `json:"maxGasLimit"`
	MaxMsgValue     string   `json:"maxMsgValue"`
}

// CapabilitiesResponse is keyed by numeric chain id rendered as a string
type CapabilitiesResponse map[string]Capabilities

// StatusRequest is the body of POST /v0/status/tx
type StatusRequest struct {
	TxHash  string `json:"txHash"`
	ChainID uint16 `json:"chainId"`
}

// RequestForExecution is the on-chain request the executor indexed
type RequestForExecution struct {
	QuoterAddress          string    `json:"quoterAddress"`
	AmtPaid                string    `json:"amtPaid"`
	DstChain               uint16    `json:"dstChain"`
	DstAddr                string    `json:"dstAddr"`
	RefundAddr             string    `json:"refundAddr"`
	SignedQuoteBytes       string    `json:"signedQuoteBytes"`
	RequestBytes           string    `json:"requestBytes"`
	RelayInstructionsBytes string    `json:"relayInstructionsBytes"`
	Timestamp              time.Time `json:"timestamp"`
}

// TxInfo is a transaction the executor sent for the relay
type TxInfo struct {
	TxHash      string     `json:"txHash"`
	ChainID     uint16     `json:"chainId"`
	BlockNumber string     `json:"blockNumber"`
	BlockTime   *time.Time `json:"blockTime"`
	Cost        string     `json:"cost"`
}

// StatusResponse is one relay known for a source transaction
type StatusResponse struct {
	ID                  string              `json:"id"`
	TxHash              string              `json:"txHash"`
	ChainID             uint16              `json:"chainId"`
	Status              string              `json:"status"`
	EstimatedCost       string              `json:"estimatedCost"`
	RequestForExecution RequestForExecution `json:"requestForExecution"`
	Txs                 []TxInfo            `json:"txs,omitempty"`
	IndexedAt           time.Time           `json:"indexed_at"`
}
