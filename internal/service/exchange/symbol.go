package exchange

import "strings"

// quoteCurrencies are checked in order when an exchange symbol has no separator.
var quoteCurrencies = []string{"USDT", "USDC"}

func splitPair(pair string) (base, quote string, ok bool) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(pair)), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// joinSymbol renders a canonical pair with the exchange separator. Malformed pairs are
// passed through with the slash removed so a bad subscription never panics.
func joinSymbol(pair, separator string, lower bool) string {
	base, quote, ok := splitPair(pair)
	symbol := base + separator + quote
	if !ok {
		symbol = strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(pair)), "/", separator)
	}
	if lower {
		return strings.ToLower(symbol)
	}
	return symbol
}

// parseSymbol converts an exchange symbol into "BASE/QUOTE". Without a separator the quote
// currency is detected from the known suffixes.
func parseSymbol(symbol, separator string) (string, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return "", false
	}

	if separator != "" {
		base, quote, found := strings.Cut(normalized, separator)
		if !found || base == "" || quote == "" {
			return "", false
		}
		return base + "/" + quote, true
	}

	for _, quote := range quoteCurrencies {
		base, found := strings.CutSuffix(normalized, quote)
		if found && base != "" {
			return base + "/" + quote, true
		}
	}

	return "", false
}
