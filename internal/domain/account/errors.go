package account

import "errors"

var (
	// ErrNoEligibleAccounts is returned when every account on file is
	// filtered out (wrong institution, hidden, Bill Pay, or excluded from
	// aggregate totals).
	ErrNoEligibleAccounts = errors.New("no_eligible_accounts")

	// ErrAccountNotFound is returned when a selected account identifier
	// does not match any account in the canonical list.
	ErrAccountNotFound = errors.New("account_not_found")
)
