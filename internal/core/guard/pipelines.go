package guard

// The fixed guard order of every ledger operation. Existence is always
// checked before argument presence.

// Admin gates operations reserved to the administrative token.
func Admin() []Guard {
	return []Guard{ArgPresent(ArgToken), TokenCorrect()}
}

// Access gates reads and writes made by the wallet owner.
func Access(name string) []Guard {
	return append(Read(name), ArgPresent(ArgPassword), CredentialCorrect(name))
}

// CreateWallet is evaluated before a wallet is inserted.
func CreateWallet(name string) []Guard {
	return []Guard{WalletNotExists(name), ValidWalletName(name), ValidPassword()}
}

// Deposit is evaluated under the wallet's row lock.
func Deposit(name string) []Guard {
	return []Guard{
		WalletExists(name),
		ArgPresent(ArgSum),
		Numeric(),
		NonNegative(),
		MinimumAmount(),
	}
}

// Transfer is evaluated under both wallets' row locks.
func Transfer(from string) []Guard {
	return []Guard{
		WalletExists(from),
		ArgPresent(ArgTo),
		RecipientExists(),
		DistinctWallets(from),
		ArgPresent(ArgSum),
		Numeric(),
		SufficientBalance(from),
		NonNegative(),
		MinimumAmount(),
	}
}

// Read is evaluated before balance and history queries.
func Read(name string) []Guard {
	return []Guard{WalletExists(name)}
}
