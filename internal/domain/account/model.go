package account

import (
	"github.com/shopspring/decimal"
)

// Institution identifies the financial institution an account belongs to.
type Institution struct {
	ID string `json:"id"`
}

// RawAccount is an account record as returned by the banking backend.
// The backend owns this shape; we only read it.
type RawAccount struct {
	ID                           string           `json:"id"`
	Name                         string           `json:"name"`
	AccountType                  string           `json:"accountType"`
	AccountSubType               string           `json:"accountSubType,omitempty"`
	Institution                  Institution      `json:"institution"`
	Hidden                       bool             `json:"hidden"`
	ContributesToAggregateTotals bool             `json:"contributesToAggregateTotals"`
	SortIndex                    *int64           `json:"sortIndex"`
	Balance                      decimal.Decimal  `json:"balance"`
	AvailableBalance             *decimal.Decimal `json:"availableBalance,omitempty"`
}

// CanonicalAccount is the normalized, display-ready projection of an
// eligible account. Type carries the backend's sub-type when one is
// present, the plain account type otherwise.
type CanonicalAccount struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Balance          decimal.Decimal  `json:"balance"`
	AvailableBalance *decimal.Decimal `json:"availableBalance,omitempty"`
	Type             string           `json:"type"`
}

// ListAccountsResponse is the envelope the backend wraps account listings in.
type ListAccountsResponse struct {
	Accounts []RawAccount `json:"accounts"`
}
