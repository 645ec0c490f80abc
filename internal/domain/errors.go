package domain

import "errors"

// Error kinds surfaced by the core. Handlers map these to HTTP status
// codes; everything else is a 500.
var (
	// ErrInvalidQuantity rejects non-positive trade quantities before any mutation.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrInvalidPrice rejects non-positive fill prices before any mutation.
	ErrInvalidPrice = errors.New("price must be positive")

	// ErrInvalidSymbol rejects empty or malformed symbols.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrInsufficientHoldings rejects a sell that would drive a position
	// quantity negative. The ledger is left untouched.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrPriceUnavailable means the external source failed and no cached
	// quote exists for the symbol.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrRateLimited means the quote source rejected the call due to rate limits.
	ErrRateLimited = errors.New("quote source rate limited")

	// ErrUserExists means the username is already registered.
	ErrUserExists = errors.New("username already exists")

	// ErrInvalidCredentials covers unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrWeakPassword rejects passwords failing the complexity rules.
	ErrWeakPassword = errors.New("password does not meet complexity requirements")

	// ErrNotFound is returned when a user or portfolio does not exist.
	ErrNotFound = errors.New("not found")
)
