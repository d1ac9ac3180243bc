package domain

import "errors"

var (
	// ErrContention marks a storage failure caused by a concurrent transaction
	// (serialization failure, deadlock, lock timeout). The operation may be retried.
	ErrContention = errors.New("concurrent update conflict")
	// ErrDuplicateKey marks a unique constraint violation.
	ErrDuplicateKey = errors.New("duplicate key")
)
