// Package advisor asks an LLM for a trading signal on the current market snapshot.
package advisor

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/asterbot/internal/clients"
	"github.com/vadiminshakov/asterbot/internal/domain"
	"go.uber.org/zap"
)

const (
	// HistorySize is how many parsed signals are kept.
	HistorySize = 30

	// FallbackReason is the reason attached to the conservative default signal.
	FallbackReason = "analysis failed"
)

var (
	fallbackStopFactor = decimal.RequireFromString("0.98")
	fallbackTakeFactor = decimal.RequireFromString("1.02")
)

// ErrNoJSON is returned when the reply contains no JSON object.
var ErrNoJSON = errors.New("no JSON object in LLM reply")

// Advisor produces one Signal per cycle. It never returns an error: any failure yields
// the conservative HOLD/LOW fallback.
type Advisor struct {
	llm     clients.LLMClient
	prompts *PromptBuilder
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	history []domain.Signal
}

// New creates an advisor.
func New(logger *zap.Logger, llm clients.LLMClient, prompts *PromptBuilder) *Advisor {
	return &Advisor{
		llm:     llm,
		prompts: prompts,
		logger:  logger,
		now:     time.Now,
		history: make([]domain.Signal, 0, HistorySize),
	}
}

// rawSignal is the JSON shape the model is asked to produce.
type rawSignal struct {
	Signal     string              `json:"signal"`
	Reason     string              `json:"reason"`
	StopLoss   decimal.NullDecimal `json:"stop_loss"`
	TakeProfit decimal.NullDecimal `json:"take_profit"`
	Confidence string              `json:"confidence"`
}

// Advise returns the signal for snapshot.
func (a *Advisor) Advise(ctx context.Context, snapshot *domain.MarketSnapshot) domain.Signal {
	price := snapshot.Price()

	reply, err := a.llm.Chat(ctx, a.prompts.SystemPrompt(), a.prompts.BuildUserPrompt(snapshot))
	if err != nil {
		a.logger.Error("failed to get AI response", zap.Error(err))
		return a.fallback(price)
	}

	signal, err := parseSignal(reply, price)
	if err != nil {
		a.logger.Error("failed to parse AI signal", zap.Error(err), zap.String("response", reply))
		return a.fallback(price)
	}
	signal.Timestamp = snapshot.Timestamp
	if signal.Timestamp.IsZero() {
		signal.Timestamp = a.now()
	}

	a.remember(signal)

	a.logger.Info("AI signal",
		zap.String("signal", string(signal.Direction)),
		zap.String("confidence", string(signal.Confidence)),
		zap.String("reason", signal.Reason),
		zap.String("stop_loss", signal.StopLoss.String()),
		zap.String("take_profit", signal.TakeProfit.String()),
	)

	return signal
}

// History returns a copy of the retained signals, oldest first.
func (a *Advisor) History() []domain.Signal {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]domain.Signal, len(a.history))
	copy(out, a.history)

	return out
}

func (a *Advisor) remember(signal domain.Signal) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.history) == HistorySize {
		copy(a.history, a.history[1:])
		a.history = a.history[:HistorySize-1]
	}
	a.history = append(a.history, signal)
}

func (a *Advisor) fallback(price decimal.Decimal) domain.Signal {
	return Fallback(price, a.now())
}

// Fallback is the conservative signal used whenever analysis fails.
func Fallback(price decimal.Decimal, at time.Time) domain.Signal {
	return domain.Signal{
		Direction:  domain.DirectionHold,
		Confidence: domain.ConfidenceLow,
		Reason:     FallbackReason,
		StopLoss:   price.Mul(fallbackStopFactor),
		TakeProfit: price.Mul(fallbackTakeFactor),
		Timestamp:  at,
		Fallback:   true,
	}
}

// parseSignal decodes the substring from the first '{' to the last '}'.
// Missing stop loss or take profit default to -2% / +2% of price.
func parseSignal(reply string, price decimal.Decimal) (domain.Signal, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return domain.Signal{}, ErrNoJSON
	}

	var raw rawSignal
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return domain.Signal{}, errors.Wrap(err, "failed to unmarshal signal")
	}

	direction, ok := domain.ParseDirection(raw.Signal)
	if !ok {
		return domain.Signal{}, errors.Errorf("invalid signal: %q", raw.Signal)
	}
	confidence, ok := domain.ParseConfidence(raw.Confidence)
	if !ok {
		return domain.Signal{}, errors.Errorf("invalid confidence: %q", raw.Confidence)
	}

	signal := domain.Signal{
		Direction:  direction,
		Confidence: confidence,
		Reason:     raw.Reason,
		StopLoss:   price.Mul(fallbackStopFactor),
		TakeProfit: price.Mul(fallbackTakeFactor),
	}
	if raw.StopLoss.Valid {
		signal.StopLoss = raw.StopLoss.Decimal
	}
	if raw.TakeProfit.Valid {
		signal.TakeProfit = raw.TakeProfit.Decimal
	}

	return signal, nil
}
