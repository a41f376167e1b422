package progression

import (
	"errors"

	"github.com/razvivashka/bot/razvivashka/database"
)

// The engine's error taxonomy. Everything here except persistence failures
// (repositories.PersistenceError) is an expected, recoverable outcome that
// the presentation layer handles explicitly.
var (
	// ErrNotFound: unknown user or content item; the caller should re-fetch
	// its state.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientCatalog: the category holds fewer items than its daily
	// quota. The engine degrades to an empty assignment.
	ErrInsufficientCatalog = errors.New("not enough catalog items for the daily quota")
	// ErrInsufficientBalance: a spend was rejected; no state changed.
	ErrInsufficientBalance = errors.New("insufficient token balance")
	// ErrAccessDenied: the entitlement gate refused the category.
	ErrAccessDenied = errors.New("access denied")
	// Boundary results for sequential categories; no wraparound.
	ErrNoNextItem     = errors.New("no next item in sequence")
	ErrNoPreviousItem = errors.New("no previous item in sequence")

	// ErrConcurrencyConflict surfaces only after the transaction retry
	// budget is exhausted.
	ErrConcurrencyConflict = database.ErrConcurrencyConflict
)
