package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
)

// Error codes as constants for consistent error responses across handlers
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidChain       = "INVALID_CHAIN"
	ErrCodeInvalidAmount      = "INVALID_AMOUNT"
	ErrCodeInvalidRoute       = "INVALID_ROUTE"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeTransferNotFound   = "TRANSFER_NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeUpstreamError      = "UPSTREAM_ERROR"
	ErrCodeUpstreamTimeout    = "UPSTREAM_TIMEOUT"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Error messages as constants for consistency
const (
	MsgInvalidRequest     = "Invalid request payload"
	MsgInternalError      = "Internal server error"
	MsgServiceUnavailable = "Service temporarily unavailable"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Retryable bool                   `json:"retryable,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// SendBadRequest sends a 400 Bad Request error
func SendBadRequest(c *gin.Context, code, message string, details ...map[string]interface{}) {
	var det map[string]interface{}
	if len(details) > 0 {
		det = details[0]
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:      code,
		Message:   message,
		Details:   det,
		RequestID: c.GetString("request_id"),
	})
}

// statusFor maps a domain error category to an HTTP status and fallback code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domainerrors.ErrAttestationPending):
		return http.StatusNotFound, ErrCodeTransferNotFound
	case errors.Is(err, domainerrors.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, domainerrors.ErrInvalidInput):
		return http.StatusBadRequest, ErrCodeInvalidRequest
	case errors.Is(err, domainerrors.ErrCapability), errors.Is(err, domainerrors.ErrConfiguration):
		return http.StatusUnprocessableEntity, ErrCodeInvalidRoute
	case errors.Is(err, domainerrors.ErrQuote),
		errors.Is(err, domainerrors.ErrDecode),
		errors.Is(err, domainerrors.ErrAttestation):
		return http.StatusBadGateway, ErrCodeUpstreamError
	case errors.Is(err, domainerrors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeUpstreamTimeout
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// SendError writes err as an ErrorResponse. Internal errors are logged and
// their message withheld.
func SendError(c *gin.Context, logger *zap.Logger, err error) {
	status, code := statusFor(err)

	resp := ErrorResponse{
		Code:      code,
		Message:   err.Error(),
		RequestID: c.GetString("request_id"),
	}
	var de *domainerrors.DomainError
	if errors.As(err, &de) {
		if de.Code != "" {
			resp.Code = de.Code
		}
		resp.Details = de.Details
		resp.Retryable = de.IsRetryable()
	}
	if errors.Is(err, domainerrors.ErrAttestationPending) {
		resp.Retryable = true
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("request_id", resp.RequestID),
			zap.Int("status", status),
			zap.Error(err))
		if status == http.StatusInternalServerError {
			resp.Code = ErrCodeInternalError
			resp.Message = MsgInternalError
			resp.Details = nil
		}
	}
	c.JSON(status, resp)
}
