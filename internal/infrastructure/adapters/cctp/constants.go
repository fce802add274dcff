package cctp

const (
	// API Hosts
	IrisMainnetURL = "https://iris-api.circle.com"
	IrisSandboxURL = "https://iris-api-sandbox.circle.com"

	// Rate limiting
	MaxRequestsPerSecond = 35

	// Message statuses
	MessageStatusPendingConfirmations = "pending_confirmations"
	MessageStatusComplete             = "complete"

	// AttestationPending is returned in place of a signature until Circle has
	// attested the burn.
	AttestationPending = "PENDING"
)
