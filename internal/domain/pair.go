// Package domain defines core data structures used throughout the trading bot.
package domain

import (
	"fmt"
	"strings"
)

// quoteAssets are tried longest first when splitting a concatenated symbol.
var quoteAssets = []string{"USDT", "USDC", "BUSD", "FDUSD", "USD"}

// Pair cryptocurrency trading pair.
type Pair struct {
	// From base currency symbol.
	From string
	// To quote currency symbol.
	To string
}

// ParsePair splits "BTCUSDT" or "BTC_USDT" into base and quote.
func ParsePair(symbol string) (Pair, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Pair{}, NewValidationError("symbol", "must not be empty")
	}

	if from, to, ok := strings.Cut(symbol, "_"); ok {
		if from == "" || to == "" {
			return Pair{}, NewValidationError("symbol", fmt.Sprintf("%q is not BASE_QUOTE", symbol))
		}
		return Pair{From: from, To: to}, nil
	}

	for _, quote := range quoteAssets {
		if base, ok := strings.CutSuffix(symbol, quote); ok && base != "" {
			return Pair{From: base, To: quote}, nil
		}
	}

	return Pair{}, NewValidationError("symbol", fmt.Sprintf("unknown quote asset in %q", symbol))
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}
