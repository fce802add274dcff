package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/internal/domain/services/route"
)

// Routes is the quoting and resuming surface of the configured routes
type Routes interface {
	Kinds() []route.Kind
	Quote(ctx context.Context, kind route.Kind, req entities.TransferRequest) (*entities.QuoteResult, error)
	Resume(ctx context.Context, protocol entities.Protocol, tx entities.TransactionID) (entities.TransferReceipt, error)
}

// ReceiptStore persists receipts for the background watcher
type ReceiptStore interface {
	Get(ctx context.Context, tx entities.TransactionID) (*entities.TransferReceipt, error)
	Save(ctx context.Context, receipt entities.TransferReceipt) error
}

// QuoteRequest is the body of POST /quotes
type QuoteRequest struct {
	Route       string `json:"route" binding:"required"`
	Source      string `json:"source" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	// Amount is in whole USDC, e.g. "12.5".
	Amount    string                 `json:"amount" binding:"required"`
	NativeGas float64                `json:"nativeGas" binding:"min=0,max=1"`
	Recipient *entities.ChainAddress `json:"recipient,omitempty"`
}

// TransferHandlers serves quotes and transfer receipts
type TransferHandlers struct {
	routes  Routes
	store   ReceiptStore
	network entities.Network
	logger  *zap.Logger
}

func NewTransferHandlers(routes Routes, store ReceiptStore, network entities.Network, logger *zap.Logger) *TransferHandlers {
	return &TransferHandlers{
		routes:  routes,
		store:   store,
		network: network,
		logger:  logger,
	}
}

// ListRoutes returns the configured route kinds and supported chains
// @Summary List routes
// @Tags transfers
// @Produce json
// @Router /api/v1/routes [get]
func (h *TransferHandlers) ListRoutes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"network": h.network,
		"routes":  h.routes.Kinds(),
		"chains":  entities.SupportedChains(h.network),
	})
}

// Quote prices a transfer
// @Summary Quote a transfer
// @Tags transfers
// @Accept json
// @Produce json
// @Param request body QuoteRequest true "Transfer to price"
// @Success 200 {object} entities.QuoteResult
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/quotes [post]
func (h *TransferHandlers) Quote(c *gin.Context) {
	var body QuoteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, MsgInvalidRequest, map[string]interface{}{"error": err.Error()})
		return
	}

	kind, err := route.ParseKind(body.Route)
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidRoute, err.Error())
		return
	}
	req, err := body.toTransferRequest()
	if err != nil {
		SendError(c, h.logger, err)
		return
	}

	quote, err := h.routes.Quote(c.Request.Context(), kind, req)
	if err != nil {
		SendError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (b QuoteRequest) toTransferRequest() (entities.TransferRequest, error) {
	src, err := entities.ParseChain(b.Source)
	if err != nil {
		return entities.TransferRequest{}, domainerrors.ValidationError("source", err.Error())
	}
	dst, err := entities.ParseChain(b.Destination)
	if err != nil {
		return entities.TransferRequest{}, domainerrors.ValidationError("destination", err.Error())
	}
	amount, err := ParseUSDC(b.Amount)
	if err != nil {
		return entities.TransferRequest{}, err
	}

	req := entities.TransferRequest{
		Source:      src,
		Destination: dst,
		Amount:      amount.BigInt(),
		NativeGas:   b.NativeGas,
	}
	if b.Recipient != nil {
		chain, err := entities.ParseChain(string(b.Recipient.Chain))
		if err != nil {
			return entities.TransferRequest{}, domainerrors.ValidationError("recipient", err.Error())
		}
		req.Recipient = &entities.ChainAddress{Chain: chain, Address: b.Recipient.Address}
	}
	return req, nil
}

// ParseUSDC converts a whole-USDC string into base units. More precision
// than USDC carries is rejected rather than rounded.
func ParseUSDC(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, domainerrors.ValidationError("amount", fmt.Sprintf("invalid amount %q", s))
	}
	if !amount.IsPositive() {
		return decimal.Zero, domainerrors.ValidationError("amount", "amount must be positive")
	}
	units := amount.Shift(entities.USDCDecimals)
	if !units.IsInteger() {
		return decimal.Zero, domainerrors.ValidationError("amount", fmt.Sprintf("amount has more than %d decimals", entities.USDCDecimals))
	}
	return units, nil
}

// GetTransfer returns the stored receipt for a source transaction, or
// rebuilds it from chain and relay state when none is stored.
// @Summary Get a transfer
// @Tags transfers
// @Produce json
// @Param chain path string true "Source chain"
// @Param txid path string true "Source transaction"
// @Param protocol query string false "CCTPv1 or CCTPv2"
// @Success 200 {object} entities.TransferReceipt
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/transfers/{chain}/{txid} [get]
func (h *TransferHandlers) GetTransfer(c *gin.Context) {
	tx, err := parseTransactionID(c.Param("chain"), c.Param("txid"))
	if err != nil {
		SendError(c, h.logger, err)
		return
	}

	stored, err := h.store.Get(c.Request.Context(), tx)
	if err == nil {
		c.JSON(http.StatusOK, stored)
		return
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		SendError(c, h.logger, err)
		return
	}

	protocol, err := parseProtocol(c.Query("protocol"))
	if err != nil {
		SendError(c, h.logger, err)
		return
	}
	receipt, err := h.resume(c.Request.Context(), protocol, tx)
	if err != nil {
		SendError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// TrackTransfer registers a source transaction with the background watcher
// @Summary Track a transfer
// @Tags transfers
// @Produce json
// @Param chain path string true "Source chain"
// @Param txid path string true "Source transaction"
// @Param protocol query string false "CCTPv1 or CCTPv2"
// @Success 202 {object} entities.TransferReceipt
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/transfers/{chain}/{txid}/track [post]
func (h *TransferHandlers) TrackTransfer(c *gin.Context) {
	tx, err := parseTransactionID(c.Param("chain"), c.Param("txid"))
	if err != nil {
		SendError(c, h.logger, err)
		return
	}
	protocol, err := parseProtocol(c.Query("protocol"))
	if err != nil {
		SendError(c, h.logger, err)
		return
	}

	receipt, err := h.resume(c.Request.Context(), protocol, tx)
	if err != nil {
		SendError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, receipt)
}

func (h *TransferHandlers) resume(ctx context.Context, protocol entities.Protocol, tx entities.TransactionID) (entities.TransferReceipt, error) {
	receipt, err := h.routes.Resume(ctx, protocol, tx)
	if err != nil {
		return receipt, err
	}
	if err := h.store.Save(ctx, receipt); err != nil {
		// the receipt is still valid, the watcher just won't pick it up
		h.logger.Error("Failed to persist resumed receipt", zap.Stringer("tx", tx), zap.Error(err))
		return receipt, nil
	}
	h.logger.Info("Transfer resumed",
		zap.Stringer("tx", tx),
		zap.String("protocol", string(protocol)),
		zap.String("state", string(receipt.State)))
	return receipt, nil
}

func parseTransactionID(chain, txID string) (entities.TransactionID, error) {
	c, err := entities.ParseChain(chain)
	if err != nil {
		return entities.TransactionID{}, domainerrors.ValidationError("chain", err.Error())
	}
	txID = strings.TrimSpace(txID)
	if txID == "" {
		return entities.TransactionID{}, domainerrors.ValidationError("txid", "transaction id is required")
	}
	return entities.TransactionID{Chain: c, TxID: txID}, nil
}

// parseProtocol defaults to CCTPv2.
func parseProtocol(s string) (entities.Protocol, error) {
	switch {
	case s == "", strings.EqualFold(s, string(entities.ProtocolCCTPv2)):
		return entities.ProtocolCCTPv2, nil
	case strings.EqualFold(s, string(entities.ProtocolCCTPv1)):
		return entities.ProtocolCCTPv1, nil
	default:
		return "", domainerrors.ValidationError("protocol", fmt.Sprintf("unknown protocol %q", s))
	}
}
