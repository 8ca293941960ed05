package handler

import (
	"wallet-ledger-service/internal/adapter/http/dto"
	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/apperror"
	"wallet-ledger-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet and ledger endpoints. All routes operate on
// the authenticated user's own wallet, taken from the token claims.
type WalletHandler struct {
	ledgerSvc ports.LedgerService
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService, walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{
		ledgerSvc: ledgerSvc,
		walletSvc: walletSvc,
	}
}

// GetWallet handles GET /api/v1/wallets/me.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	_, walletID, ok := authIDs(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	overview, err := h.walletSvc.Overview(c.Request.Context(), walletID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletResponse{
		WalletID:           overview.WalletID.String(),
		Balance:            overview.Balance,
		RecentTransactions: dto.ToTransactionResponses(overview.RecentTransactions),
	})
}

// Deposit handles POST /api/v1/wallets/me/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	_, walletID, ok := authIDs(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	txn, created, err := h.ledgerSvc.Deposit(c.Request.Context(), walletID, req.Amount, req.Reference, domain.Metadata(req.Metadata))
	if err != nil {
		response.Error(c, err)
		return
	}

	respondMovement(c, dto.ToTransactionResponse(txn), created)
}

// Withdraw handles POST /api/v1/wallets/me/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	_, walletID, ok := authIDs(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	txn, created, err := h.ledgerSvc.Withdraw(c.Request.Context(), walletID, req.Amount, req.Reference, domain.Metadata(req.Metadata))
	if err != nil {
		response.Error(c, err)
		return
	}

	respondMovement(c, dto.ToTransactionResponse(txn), created)
}

// Transfer handles POST /api/v1/wallets/me/transfer. The recipient is
// addressed by user ID and resolved to their wallet.
func (h *WalletHandler) Transfer(c *gin.Context) {
	_, walletID, ok := authIDs(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	toUserID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		response.Error(c, apperror.Validation("to_user_id must be a valid UUID"))
		return
	}

	toWallet, err := h.walletSvc.GetByUserID(c.Request.Context(), toUserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	pair, created, err := h.ledgerSvc.Transfer(c.Request.Context(), walletID, toWallet.ID, req.Amount, req.Reference, domain.Metadata(req.Metadata))
	if err != nil {
		response.Error(c, err)
		return
	}

	respondMovement(c, dto.TransferResponse{
		Out: dto.ToTransactionResponse(pair.Out),
		In:  dto.ToTransactionResponse(pair.In),
	}, created)
}

// ListTransactions handles GET /api/v1/wallets/me/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	_, walletID, ok := authIDs(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransactionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	items, total, err := h.walletSvc.ListTransactions(c.Request.Context(), walletID, req.Limit, req.Offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.TransactionListResponse{
		Count:   total,
		Limit:   req.Limit,
		Offset:  req.Offset,
		Results: dto.ToTransactionResponses(items),
	})
}

// respondMovement returns 201 for a newly created ledger entry and 200 when
// an idempotent replay returned the original.
func respondMovement(c *gin.Context, data any, created bool) {
	if created {
		response.Created(c, data)
		return
	}
	response.OK(c, data)
}
