package budgetopt

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// currencyPrinter renders whole-dollar budgets for audit-log lines. The
// wire format stays micro-currency integers (§6); this is display-only.
var currencyPrinter = message.NewPrinter(language.AmericanEnglish)

// formatUSD renders amount as a localized currency string, e.g. "$95.00".
func formatUSD(amount float64) string {
	return currencyPrinter.Sprintf("%v", currency.Symbol(currency.USD.Amount(amount)))
}
