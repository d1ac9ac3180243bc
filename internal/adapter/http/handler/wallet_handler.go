package handler

import (
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler exposes the ledger over HTTP. Arguments travel as query
// strings and are handed to the ledger as received.
type WalletHandler struct {
	ledger ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// List handles GET /api/v1/wallets?token=.
func (h *WalletHandler) List(c *gin.Context) {
	var q dto.WalletQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.InvalidArgument(err.Error()))
		return
	}

	wallets, err := h.ledger.ListWallets(c.Request.Context(), q.Token)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WalletSummary, 0, len(wallets))
	for _, w := range wallets {
		items = append(items, dto.WalletSummary{Name: w.Name, Balance: w.Balance.String()})
	}
	response.OK(c, dto.WalletListResponse{Wallets: items})
}

// Create handles POST /api/v1/wallets/:name?pwd=.
func (h *WalletHandler) Create(c *gin.Context) {
	uri, q, ok := bindWallet(c)
	if !ok {
		return
	}

	wallet, err := h.ledger.CreateWallet(c.Request.Context(), ports.CreateWalletRequest{
		Name:     uri.Name,
		Password: q.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.WalletCreatedResponse{Wallet: wallet.Name, Created: true})
}

// Balance handles GET /api/v1/wallets/:name/balance?pwd=.
func (h *WalletHandler) Balance(c *gin.Context) {
	uri, q, ok := bindWallet(c)
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), ports.AccessRequest{
		Name:     uri.Name,
		Password: q.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Wallet: uri.Name, Balance: balance.String()})
}

// History handles GET /api/v1/wallets/:name/history?pwd=.
func (h *WalletHandler) History(c *gin.Context) {
	uri, q, ok := bindWallet(c)
	if !ok {
		return
	}

	ops, err := h.ledger.GetHistory(c.Request.Context(), ports.AccessRequest{
		Name:     uri.Name,
		Password: q.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.HistoryResponse{Wallet: uri.Name, History: toOperationResponses(ops)})
}

// HistoryPage handles GET /api/v1/wallets/:name/history/page/:page?pwd=.
func (h *WalletHandler) HistoryPage(c *gin.Context) {
	var uri dto.HistoryPageURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.InvalidArgument("Page should be a number"))
		return
	}
	var q dto.WalletQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.InvalidArgument(err.Error()))
		return
	}

	page, err := h.ledger.GetHistoryPage(c.Request.Context(), ports.HistoryPageRequest{
		AccessRequest: ports.AccessRequest{Name: uri.Name, Password: q.Password},
		Page:          uri.Page,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.HistoryPageResponse{
		Wallet:     uri.Name,
		Page:       page.Page,
		TotalPages: page.TotalPages,
		History:    toOperationResponses(page.Items),
	})
}

// Deposit handles POST|PUT /api/v1/wallets/:name/deposit?sum=&token=.
func (h *WalletHandler) Deposit(c *gin.Context) {
	uri, q, ok := bindWallet(c)
	if !ok {
		return
	}
	opID, ok := bindOperationID(c)
	if !ok {
		return
	}

	balance, err := h.ledger.Deposit(c.Request.Context(), ports.DepositRequest{
		Name:        uri.Name,
		Sum:         q.Sum,
		Token:       q.Token,
		OperationID: opID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.DepositResponse{Wallet: uri.Name, NewBalance: balance.String()})
}

// Pay handles POST|PUT /api/v1/wallets/:name/pay?to=&sum=&pwd=.
func (h *WalletHandler) Pay(c *gin.Context) {
	uri, q, ok := bindWallet(c)
	if !ok {
		return
	}
	opID, ok := bindOperationID(c)
	if !ok {
		return
	}

	balance, err := h.ledger.Transfer(c.Request.Context(), ports.TransferRequest{
		From:        uri.Name,
		To:          q.To,
		Sum:         q.Sum,
		Password:    q.Password,
		OperationID: opID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Wallet: uri.Name, Balance: balance.String()})
}

func bindWallet(c *gin.Context) (dto.WalletURI, dto.WalletQuery, bool) {
	var (
		uri dto.WalletURI
		q   dto.WalletQuery
	)
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.InvalidArgument(err.Error()))
		return uri, q, false
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.InvalidArgument(err.Error()))
		return uri, q, false
	}
	return uri, q, true
}

func bindOperationID(c *gin.Context) (string, bool) {
	var h dto.OperationHeader
	if err := c.ShouldBindHeader(&h); err != nil {
		response.Error(c, apperror.InvalidArgument("Idempotency-Key should be at most 64 letters, digits or _.:-"))
		return "", false
	}
	return h.IdempotencyKey, true
}

func toOperationResponses(ops []domain.Operation) []dto.OperationResponse {
	out := make([]dto.OperationResponse, 0, len(ops))
	for _, op := range ops {
		item := dto.OperationResponse{
			ID:      op.ID.String(),
			OpType:  string(op.Type),
			Time:    op.Time.UTC().Format(time.RFC3339Nano),
			SentTo:  op.SentTo,
			GetFrom: op.GetFrom,
		}
		if op.Amount != nil {
			amount := op.Amount.String()
			item.Amount = &amount
		}
		out = append(out, item)
	}
	return out
}
