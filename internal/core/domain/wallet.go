package domain

import "time"

// Wallet is a named account. Its balance only changes through deposits and
// transfers, and it is never deleted.
type Wallet struct {
	Name           string    `json:"name"`
	Balance        Money     `json:"balance"`
	CredentialHash string    `json:"-"` // Argon2id encoded hash, never exposed
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Credit returns a copy of the wallet with amount added to its balance.
func (w Wallet) Credit(amount Money) Wallet {
	w.Balance += amount
	return w
}

// Debit returns a copy of the wallet with amount taken from its balance.
func (w Wallet) Debit(amount Money) Wallet {
	w.Balance -= amount
	return w
}
