package account

import (
	"regexp"
	"strings"
)

// typeKeyPrefix prefixes the speech-recognition type entry key derived
// from an account id. Hyphens are not valid in type entry names, so ids
// are stored with underscores and restored on lookup.
const typeKeyPrefix = "ACCOUNT_"

var (
	repeatedWhitespace = regexp.MustCompile(`\s+`)
	paddedZeros        = regexp.MustCompile(`\s0+`)
	paddedZeroDigits   = regexp.MustCompile(`\s0+(\d)`)
)

// TypeKey derives the recognition type entry name for a canonical account.
func TypeKey(acct CanonicalAccount) string {
	return typeKeyPrefix + strings.ReplaceAll(acct.ID, "-", "_")
}

// IDFromTypeKey recovers the account id from a recognition type entry
// name produced by TypeKey. The second return is false when the value does
// not carry the expected prefix.
func IDFromTypeKey(key string) (string, bool) {
	if len(key) <= len(typeKeyPrefix) || !strings.EqualFold(key[:len(typeKeyPrefix)], typeKeyPrefix) {
		return "", false
	}
	return strings.ReplaceAll(key[len(typeKeyPrefix):], "_", "-"), true
}

// DisplayName collapses the irregular runs of whitespace that backend
// account names tend to carry.
func DisplayName(acct CanonicalAccount) string {
	return repeatedWhitespace.ReplaceAllString(acct.Name, " ")
}

// RecognitionSynonyms returns the phrases a spoken account selection may
// match, in stable order and without duplicates. Besides the type key and
// the cleaned display name, two leading-zero rewrites are included since
// users do not speak the zero padding in numbered account names ("Savings
// 0042" is said as "Savings 42" or "Savings 0 42").
func RecognitionSynonyms(acct CanonicalAccount) []string {
	name := DisplayName(acct)
	candidates := []string{
		TypeKey(acct),
		name,
		paddedZeros.ReplaceAllString(name, " 0"),
		paddedZeroDigits.ReplaceAllString(name, " $1"),
	}

	seen := make(map[string]struct{}, len(candidates))
	synonyms := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		synonyms = append(synonyms, candidate)
	}
	return synonyms
}

// FindByID returns the canonical account with the given id, or
// ErrAccountNotFound when no account matches.
func FindByID(accounts []CanonicalAccount, id string) (CanonicalAccount, error) {
	for _, acct := range accounts {
		if acct.ID == id {
			return acct, nil
		}
	}
	return CanonicalAccount{}, ErrAccountNotFound
}
