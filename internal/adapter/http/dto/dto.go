// Package dto holds the request bindings and response bodies of the HTTP API.
package dto

// WalletURI binds the wallet name path segment.
type WalletURI struct {
	Name string `uri:"name" binding:"required"`
}

// HistoryPageURI binds /wallets/:name/history/page/:page. Range checks on
// the page number belong to the ledger, which answers NotFound.
type HistoryPageURI struct {
	Name string `uri:"name" binding:"required"`
	Page int    `uri:"page"`
}

// WalletQuery carries the query arguments. A nil pointer means the client
// did not send the argument, which the ledger reports differently from an
// empty value.
type WalletQuery struct {
	Password *string `form:"pwd"`
	Sum      *string `form:"sum"`
	To       *string `form:"to"`
	Token    *string `form:"token"`
}

// OperationHeader binds the optional idempotency key of deposit and pay.
type OperationHeader struct {
	IdempotencyKey string `header:"Idempotency-Key" binding:"omitempty,max=64,operation_id"`
}

// WalletCreatedResponse is the response body for wallet creation.
type WalletCreatedResponse struct {
	Wallet  string `json:"wallet"`
	Created bool   `json:"created"`
}

// BalanceResponse is returned by balance reads and transfers.
type BalanceResponse struct {
	Wallet  string `json:"wallet"`
	Balance string `json:"balance"`
}

// DepositResponse is the response body for deposits.
type DepositResponse struct {
	Wallet     string `json:"wallet"`
	NewBalance string `json:"new_balance"`
}

// OperationResponse is one history entry. Amount is signed from the
// requesting wallet's point of view and null for creations.
type OperationResponse struct {
	ID      string  `json:"id"`
	OpType  string  `json:"optype"`
	Time    string  `json:"time"`
	Amount  *string `json:"amount"`
	SentTo  string  `json:"sent_to"`
	GetFrom *string `json:"get_from"`
}

// HistoryResponse is the full history of a wallet.
type HistoryResponse struct {
	Wallet  string              `json:"wallet"`
	History []OperationResponse `json:"history"`
}

// HistoryPageResponse is one page of a wallet's history.
type HistoryPageResponse struct {
	Wallet     string              `json:"wallet"`
	Page       int                 `json:"page"`
	TotalPages int                 `json:"total_pages"`
	History    []OperationResponse `json:"history"`
}

// WalletSummary is a wallet as listed to the administrator.
type WalletSummary struct {
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

// WalletListResponse is the response body for wallet listing.
type WalletListResponse struct {
	Wallets []WalletSummary `json:"wallets"`
}
