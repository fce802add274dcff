package cctp

import (
	"fmt"
	"strings"
)

// ErrorResponse represents a CCTP API error response
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
	ErrorText  string `json:"error"`
}

func (e *ErrorResponse) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.ErrorText
	}
	return fmt.Sprintf("CCTP API error [%d]: %s (code: %d)", e.StatusCode, msg, e.Code)
}

func (e *ErrorResponse) IsNotFound() bool {
	return e.StatusCode == 404
}

func (e *ErrorResponse) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsAlreadyFinalized reports a reattest request for a message that was
// attested at the finalized threshold and cannot expire.
func (e *ErrorResponse) IsAlreadyFinalized() bool {
	text := strings.ToLower(e.Message + " " + e.ErrorText)
	return strings.Contains(text, "finalized") || strings.Contains(text, "finality")
}

// ErrNoMessages indicates no messages found for the transaction
var ErrNoMessages = fmt.Errorf("no messages found for transaction")
