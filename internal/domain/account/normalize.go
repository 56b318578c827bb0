package account

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// billPayType is never listed to the user; Bill Pay entries are payees,
// not balances.
const billPayType = "Bill Pay"

// collator performs locale-aware, case-insensitive name comparison.
// collate.Collator keeps internal buffers, so access is serialized.
var (
	collatorMu sync.Mutex
	collator   = collate.New(language.AmericanEnglish, collate.IgnoreCase)
)

// Normalize filters raw backend accounts down to the eligible set for the
// given institution, orders them deterministically, and projects each into
// its canonical form. An empty eligible set is reported as
// ErrNoEligibleAccounts rather than returned silently.
func Normalize(raw []RawAccount, institutionID string) ([]CanonicalAccount, error) {
	eligible := make([]RawAccount, 0, len(raw))
	for _, acct := range raw {
		if Eligible(acct, institutionID) {
			eligible = append(eligible, acct)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleAccounts
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return Compare(eligible[i], eligible[j]) < 0
	})

	canonical := make([]CanonicalAccount, 0, len(eligible))
	for _, acct := range eligible {
		canonical = append(canonical, project(acct))
	}
	return canonical, nil
}

// Eligible reports whether an account may be shown to the user. All four
// clauses must hold: not a Bill Pay entry, issued by our institution, not
// hidden, and counted toward aggregate totals.
func Eligible(acct RawAccount, institutionID string) bool {
	return acct.AccountType != billPayType &&
		acct.Institution.ID == institutionID &&
		!acct.Hidden &&
		acct.ContributesToAggregateTotals
}

// Compare defines the total order of the canonical account list. Keys are
// applied in sequence: identity short-circuit, sortIndex (nil last),
// account-type rank, case-insensitive name, then id as the final
// tie-break. Unique ids make the order strict.
func Compare(a, b RawAccount) int {
	if a.ID != "" && a.ID == b.ID {
		return 0
	}
	if c := compareSortIndexes(a.SortIndex, b.SortIndex); c != 0 {
		return c
	}
	if c := typeRank(a.AccountType) - typeRank(b.AccountType); c != 0 {
		return c
	}
	if c := compareNames(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// compareSortIndexes orders user-assigned sort indexes ascending, with
// unassigned (nil) indexes after every assigned one.
func compareSortIndexes(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}

// typeRank places deposit accounts first, lines of credit second, and
// everything else last.
func typeRank(accountType string) int {
	switch strings.ToLower(accountType) {
	case "deposit":
		return 0
	case "line of credit":
		return 1
	default:
		return 2
	}
}

func compareNames(a, b string) int {
	collatorMu.Lock()
	defer collatorMu.Unlock()
	return collator.CompareString(a, b)
}

func project(acct RawAccount) CanonicalAccount {
	accountType := acct.AccountType
	if acct.AccountSubType != "" {
		accountType = acct.AccountSubType
	}
	return CanonicalAccount{
		ID:               acct.ID,
		Name:             acct.Name,
		Balance:          acct.Balance,
		AvailableBalance: acct.AvailableBalance,
		Type:             accountType,
	}
}
