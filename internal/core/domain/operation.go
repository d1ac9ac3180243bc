package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// OperationType is the kind of balance-affecting event.
type OperationType string

const (
	OperationCreation    OperationType = "creation"
	OperationDeposit     OperationType = "deposit"
	OperationTransaction OperationType = "transaction"
)

// Operation is an immutable entry of the operation log.
//
// SentTo is always set (for a creation it is the new wallet itself).
// GetFrom is set only for transactions. Amount is nil only for creations and
// is stored unsigned; the sender's view is produced by ViewWithSign.
type Operation struct {
	ID      uuid.UUID     `json:"id"`
	Seq     int64         `json:"-"` // insertion order, breaks ties on Time
	Type    OperationType `json:"optype"`
	Time    time.Time     `json:"time"`
	Amount  *Money        `json:"amount"`
	SentTo  string        `json:"sent_to"`
	GetFrom *string       `json:"get_from"`
}

// ErrMalformedOperation is returned by Validate.
var ErrMalformedOperation = errors.New("malformed operation")

// NewCreation records the birth of a wallet.
func NewCreation(wallet string, at time.Time) Operation {
	return Operation{
		ID:     uuid.New(),
		Type:   OperationCreation,
		Time:   at,
		SentTo: wallet,
	}
}

// NewDeposit records money added to wallet from outside the ledger.
func NewDeposit(wallet string, amount Money, at time.Time) Operation {
	return Operation{
		ID:     uuid.New(),
		Type:   OperationDeposit,
		Time:   at,
		Amount: &amount,
		SentTo: wallet,
	}
}

// NewTransfer records money moved between two wallets.
func NewTransfer(from, to string, amount Money, at time.Time) Operation {
	return Operation{
		ID:      uuid.New(),
		Type:    OperationTransaction,
		Time:    at,
		Amount:  &amount,
		SentTo:  to,
		GetFrom: &from,
	}
}

// Involves reports whether wallet is the sender or the recipient.
func (o Operation) Involves(wallet string) bool {
	return o.SentTo == wallet || (o.GetFrom != nil && *o.GetFrom == wallet)
}

// Validate checks the shape every stored operation must have.
func (o Operation) Validate() error {
	if o.SentTo == "" {
		return ErrMalformedOperation
	}
	switch o.Type {
	case OperationCreation:
		if o.Amount != nil || o.GetFrom != nil {
			return ErrMalformedOperation
		}
	case OperationDeposit:
		if o.Amount == nil || *o.Amount < MinimumAmount || o.GetFrom != nil {
			return ErrMalformedOperation
		}
	case OperationTransaction:
		if o.Amount == nil || *o.Amount < MinimumAmount || o.GetFrom == nil || *o.GetFrom == "" {
			return ErrMalformedOperation
		}
	default:
		return ErrMalformedOperation
	}
	return nil
}

// ViewWithSign returns the history as seen by wallet: a transaction it sent
// shows a negative amount, everything else is shown as stored. The input is
// not modified.
func ViewWithSign(ops []Operation, wallet string) []Operation {
	out := make([]Operation, len(ops))
	for i, op := range ops {
		if op.Type == OperationTransaction && op.GetFrom != nil && *op.GetFrom == wallet && op.Amount != nil {
			neg := op.Amount.Neg()
			op.Amount = &neg
		}
		out[i] = op
	}
	return out
}
