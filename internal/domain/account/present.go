package account

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// usd renders amounts with en-US grouping and decimal conventions.
var usd = message.NewPrinter(language.AmericanEnglish)

// PresentedBalance is the balance value chosen for speech, with the label
// fragment that introduces it ("an available" / "a current").
type PresentedBalance struct {
	Label  string
	Amount decimal.Decimal
}

// PresentBalance picks the balance to speak for an account: the available
// balance when the backend supplied one, the current balance otherwise.
func PresentBalance(acct CanonicalAccount) PresentedBalance {
	if acct.AvailableBalance != nil {
		return PresentedBalance{Label: "an available", Amount: *acct.AvailableBalance}
	}
	return PresentedBalance{Label: "a current", Amount: acct.Balance}
}

// FormatUSD formats an amount as US dollars with grouping, e.g. "$1,234.50".
func FormatUSD(amount decimal.Decimal) string {
	value, _ := amount.Round(2).Float64()
	return usd.Sprintf("$%.2f", value)
}

// Formatted returns the spoken form of the presented balance.
func (p PresentedBalance) Formatted() string {
	return FormatUSD(p.Amount)
}
