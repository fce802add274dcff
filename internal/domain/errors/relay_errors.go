package errors

import (
	"errors"
	"fmt"

	"github.com/rail-service/cctp_executor/pkg/layout"
)

// Relay-specific errors
var (
	// ErrConfiguration indicates a missing contract, gas limit or referrer mapping
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation indicates a transfer parameter is out of range
	ErrValidation = fmt.Errorf("validation error: %w", ErrInvalidInput)

	// ErrCapability indicates a chain does not advertise a request kind
	ErrCapability = errors.New("capability not supported")

	// ErrQuote indicates the quoting endpoint failed or returned an unusable quote
	ErrQuote = errors.New("quote error")

	// ErrDecode indicates a malformed binary payload
	ErrDecode = layout.ErrDecode

	// ErrRelayFailed is matched by every RelayFailedError
	ErrRelayFailed = errors.New("relay failed")

	// ErrAttestation indicates a missing or unusable attestation
	ErrAttestation = errors.New("attestation error")

	// ErrAttestationPending indicates Circle has not signed the burn yet
	ErrAttestationPending = errors.New("attestation pending")

	// ErrMissingAttestation is an invariant violation: a receipt in a state
	// that requires an attestation has none.
	ErrMissingAttestation = errors.New("receipt is missing its attestation")

	// ErrUnsupportedOperation is returned by executors that cannot build a
	// given transaction kind.
	ErrUnsupportedOperation = errors.New("operation not supported")
)

// RelayFailedError carries the status the executor reported for a relay that
// will not complete on its own.
type RelayFailedError struct {
	Status string `json:"status"`
}

func (e *RelayFailedError) Error() string {
	return fmt.Sprintf("relay failed with status: %s", e.Status)
}

// Is makes errors.Is(err, ErrRelayFailed) true for any status.
func (e *RelayFailedError) Is(target error) bool {
	return target == ErrRelayFailed
}

// ConfigurationError creates a configuration error
func ConfigurationError(message string) *DomainError {
	return &DomainError{
		Err:     ErrConfiguration,
		Code:    "CONFIGURATION_ERROR",
		Message: message,
	}
}

// CapabilityError creates an error for a chain lacking a request prefix
func CapabilityError(chain, prefix string) *DomainError {
	return &DomainError{
		Err:     ErrCapability,
		Code:    "CAPABILITY_NOT_SUPPORTED",
		Message: fmt.Sprintf("%s does not support %s relays", chain, prefix),
		Details: map[string]interface{}{
			"chain":  chain,
			"prefix": prefix,
		},
	}
}

// QuoteError creates a quote error. Upstream failures are retryable.
func QuoteError(message string, cause error) *DomainError {
	de := &DomainError{
		Err:       ErrQuote,
		Code:      "QUOTE_ERROR",
		Message:   message,
		Retryable: cause != nil,
	}
	if cause != nil {
		de.Details = map[string]interface{}{
			"cause": cause.Error(),
		}
	}
	return de
}

// DecodeError wraps a codec failure for the named payload.
func DecodeError(payload string, cause error) *DomainError {
	return &DomainError{
		Err:     fmt.Errorf("%s: %w: %w", payload, ErrDecode, cause),
		Code:    "DECODE_ERROR",
		Message: fmt.Sprintf("failed to decode %s", payload),
		Details: map[string]interface{}{
			"cause": cause.Error(),
		},
	}
}

// AttestationError creates an attestation error
func AttestationError(message string) *DomainError {
	return &DomainError{
		Err:     ErrAttestation,
		Code:    "ATTESTATION_ERROR",
		Message: message,
	}
}

// IsRelayFailed checks if an error is a relay failure
func IsRelayFailed(err error) bool {
	return errors.Is(err, ErrRelayFailed)
}
