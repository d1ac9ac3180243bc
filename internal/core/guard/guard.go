// Package guard holds the preconditions every ledger operation must pass
// before it may touch a balance.
//
// A Guard is a pure predicate over a State snapshot. Pipelines are ordered
// slices of guards; Run stops at the first failure and returns it as an
// *apperror.AppError, so the caller can surface it verbatim.
package guard

import (
	"crypto/subtle"
	"fmt"
	"regexp"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
)

// Argument names as clients send them.
const (
	ArgSum      = "sum"
	ArgTo       = "to"
	ArgPassword = "pwd"
	ArgToken    = "token"
)

var (
	walletNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{3,13}$`)
	passwordRe   = regexp.MustCompile(`^[A-Za-z0-9!@#$%^&*_+=.?-]{6,14}$`)
)

// Args are the raw request arguments. A nil pointer means the argument was
// not supplied at all, which is different from an empty value.
type Args struct {
	Name     string
	To       *string
	Sum      *string
	Password *string
	Token    *string
}

// Get returns the named argument.
func (a Args) Get(name string) *string {
	switch name {
	case ArgSum:
		return a.Sum
	case ArgTo:
		return a.To
	case ArgPassword:
		return a.Password
	case ArgToken:
		return a.Token
	}
	return nil
}

// State is the snapshot guards evaluate. Wallets holds the rows read for the
// current operation (under lock when the operation mutates them); a name
// missing from the map does not exist.
type State struct {
	Wallets    map[string]domain.Wallet
	Args       Args
	AdminToken string
	Hasher     ports.CredentialHasher
}

// Amount parses the sum argument, truncated to cents.
func (s State) Amount() (domain.Money, error) {
	if s.Args.Sum == nil {
		return 0, domain.ErrNotNumeric
	}
	return domain.ParseMoney(*s.Args.Sum)
}

// Recipient returns the transfer target, or "" when absent.
func (s State) Recipient() string {
	if s.Args.To == nil {
		return ""
	}
	return *s.Args.To
}

// Guard fails with a non-nil error when its precondition does not hold.
type Guard func(s State) error

// Run evaluates guards in order and returns the first failure.
func Run(s State, guards ...Guard) error {
	for _, g := range guards {
		if err := g(s); err != nil {
			return err
		}
	}
	return nil
}

// WalletExists fails with NotFound when name has no wallet.
func WalletExists(name string) Guard {
	return func(s State) error {
		if _, ok := s.Wallets[name]; !ok {
			return apperror.ErrWalletNotFound(name)
		}
		return nil
	}
}

// RecipientExists is WalletExists for the "to" argument.
func RecipientExists() Guard {
	return func(s State) error {
		return WalletExists(s.Recipient())(s)
	}
}

// WalletNotExists fails with Conflict when name is taken.
func WalletNotExists(name string) Guard {
	return func(s State) error {
		if _, ok := s.Wallets[name]; ok {
			return apperror.ErrWalletExists(name)
		}
		return nil
	}
}

// ValidWalletName checks length, alphabet and the leading character.
func ValidWalletName(name string) Guard {
	return func(State) error {
		if !walletNameRe.MatchString(name) {
			return apperror.InvalidArgument(
				"Wallet name should be 4-14 letters, digits, '_' or '-' and must not start with '_' or '-'")
		}
		return nil
	}
}

// ValidPassword checks the secret supplied for a new wallet.
func ValidPassword() Guard {
	return func(s State) error {
		if s.Args.Password == nil || !passwordRe.MatchString(*s.Args.Password) {
			return apperror.InvalidArgument(
				"Password should be 6-14 letters, digits or any of !@#$%^&*_-+=.?")
		}
		return nil
	}
}

// ArgPresent fails when the argument was not supplied. Missing gating
// arguments (token, password) are Unauthorized, the rest InvalidArgument.
func ArgPresent(name string) Guard {
	return func(s State) error {
		if s.Args.Get(name) != nil {
			return nil
		}
		switch name {
		case ArgToken:
			return apperror.Unauthorized("Token is required")
		case ArgPassword:
			return apperror.Unauthorized("Password is required")
		}
		return apperror.InvalidArgument(fmt.Sprintf("No value specified for %s", name))
	}
}

// Numeric fails when the sum is not a decimal number.
func Numeric() Guard {
	return func(s State) error {
		if _, err := s.Amount(); err != nil {
			return apperror.InvalidArgument("Sum should be a decimal number")
		}
		return nil
	}
}

// NonNegative fails when the truncated sum is below zero.
func NonNegative() Guard {
	return func(s State) error {
		amount, err := s.Amount()
		if err != nil {
			return Numeric()(s)
		}
		if amount.IsNegative() {
			return apperror.InvalidArgument("Negative argument is not allowed")
		}
		return nil
	}
}

// MinimumAmount fails when the truncated sum is below 0.01.
func MinimumAmount() Guard {
	return func(s State) error {
		amount, err := s.Amount()
		if err != nil {
			return Numeric()(s)
		}
		if amount < domain.MinimumAmount {
			return apperror.InvalidArgument("Operation sum should be more or equal 0.01")
		}
		return nil
	}
}

// SufficientBalance fails with Conflict when debiting the sum would take
// from below zero.
func SufficientBalance(from string) Guard {
	return func(s State) error {
		amount, err := s.Amount()
		if err != nil {
			return Numeric()(s)
		}
		w, ok := s.Wallets[from]
		if !ok {
			return apperror.ErrWalletNotFound(from)
		}
		if w.Balance-amount < 0 {
			return apperror.ErrInsufficientFunds(from)
		}
		return nil
	}
}

// DistinctWallets rejects a transfer whose source and target are the same.
func DistinctWallets(from string) Guard {
	return func(s State) error {
		if s.Recipient() == from {
			return apperror.InvalidArgument("Cannot transfer money to the same wallet")
		}
		return nil
	}
}

// TokenCorrect compares the token with the configured administrative token.
// An empty configured token disables every token-gated operation.
func TokenCorrect() Guard {
	return func(s State) error {
		if s.Args.Token == nil || s.AdminToken == "" {
			return apperror.ErrInvalidToken()
		}
		if subtle.ConstantTimeCompare([]byte(*s.Args.Token), []byte(s.AdminToken)) != 1 {
			return apperror.ErrInvalidToken()
		}
		return nil
	}
}

// CredentialCorrect verifies the password against the wallet's stored hash.
func CredentialCorrect(name string) Guard {
	return func(s State) error {
		w, ok := s.Wallets[name]
		if !ok {
			return apperror.ErrWalletNotFound(name)
		}
		if s.Args.Password == nil {
			return apperror.ErrInvalidCredentials()
		}
		match, err := s.Hasher.Verify(*s.Args.Password, w.CredentialHash)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("verifying credential: %w", err))
		}
		if !match {
			return apperror.ErrInvalidCredentials()
		}
		return nil
	}
}
