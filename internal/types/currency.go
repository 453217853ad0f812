package types

// currencySymbols maps lowercase ISO 4217 codes to display symbols for the
// currencies the catalog can be configured to bill in.
var currencySymbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"aud": "AU$",
	"cad": "CA$",
	"chf": "CHF",
	"sgd": "S$",
	"jpy": "¥",
	"inr": "₹",
	"brl": "R$",
}

// GetCurrencySymbol returns the display symbol for a currency code, or the
// code itself when no symbol is registered.
func GetCurrencySymbol(code string) string {
	if symbol, ok := currencySymbols[code]; ok {
		return symbol
	}
	return code
}
