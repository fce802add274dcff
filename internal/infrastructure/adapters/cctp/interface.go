package cctp

import "context"

// CCTPClient defines the interface for CCTP Iris API operations
type CCTPClient interface {
	// GetMessages fetches messages and attestations for a burn transaction
	GetMessages(ctx context.Context, sourceDomain uint32, txHash string) (*MessagesResponse, error)

	// Reattest requests a new attestation for an expired message
	Reattest(ctx context.Context, nonce string) (*ReattestResponse, error)

	// GetBurnFees retrieves minimum fees per finality threshold
	GetBurnFees(ctx context.Context, sourceDomain, destDomain uint32) ([]BurnFee, error)
}

// Ensure Client implements CCTPClient interface
var _ CCTPClient = (*Client)(nil)
