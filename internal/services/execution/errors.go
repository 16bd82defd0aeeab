package execution

import "github.com/pkg/errors"

var (
	// ErrNoMarketData means the snapshot could not be built; the cycle was skipped.
	ErrNoMarketData = errors.New("market data unavailable")
	// ErrPositionUnknown means the exchange position could not be read; the cycle was skipped.
	ErrPositionUnknown = errors.New("position unknown")
	// ErrInconsistentState means an order sequence stopped part way. The next cycle
	// reconciles from the exchange; no compensating order is sent.
	ErrInconsistentState = errors.New("inconsistent position state")
)
