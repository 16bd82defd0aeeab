package advisor

import (
	"fmt"
	"strings"

	"github.com/vadiminshakov/asterbot/internal/domain"
)

const recentCandles = 10

// systemPromptTemplate is formatted with the trading mode.
const systemPromptTemplate = `You are a professional %s perpetual futures trader. Trading mode: %s.

Respond with ONLY a JSON object, no markdown and no extra text:
{
  "signal": "BUY|SELL|HOLD",
  "reason": "short analysis",
  "stop_loss": <price>,
  "take_profit": <price>,
  "confidence": "HIGH|MEDIUM|LOW"
}

BUY opens or keeps a long position, SELL opens or keeps a short position, HOLD changes nothing.
When in doubt, answer HOLD.`

// PromptBuilder renders a market snapshot into the LLM prompts.
type PromptBuilder struct {
	symbol        string
	mode          domain.TradingMode
	minConfidence domain.Confidence
}

// NewPromptBuilder creates a new PromptBuilder instance
func NewPromptBuilder(symbol string, mode domain.TradingMode, minConfidence domain.Confidence) *PromptBuilder {
	return &PromptBuilder{
		symbol:        symbol,
		mode:          mode,
		minConfidence: minConfidence,
	}
}

// SystemPrompt returns the system message.
func (pb *PromptBuilder) SystemPrompt() string {
	return fmt.Sprintf(systemPromptTemplate, pb.symbol, pb.mode)
}

// BuildUserPrompt constructs the user message from the snapshot.
func (pb *PromptBuilder) BuildUserPrompt(snapshot *domain.MarketSnapshot) string {
	var sb strings.Builder
	ind := snapshot.Indicators

	sb.WriteString(fmt.Sprintf("# Market Analysis for %s (%s candles)\n\n", pb.symbol, snapshot.Interval))

	sb.WriteString(fmt.Sprintf("**Current Price:** $%s\n", snapshot.LatestPrice.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("**Price Change:** %+.2f%%\n", snapshot.PctChange.InexactFloat64()))
	sb.WriteString(fmt.Sprintf("**RSI:** %.1f\n", ind.RSI14))
	sb.WriteString(fmt.Sprintf("**MACD:** %.4f\n", ind.MACD))
	sb.WriteString(fmt.Sprintf("**Signal Line:** %.4f\n", ind.MACDSignal))
	sb.WriteString(fmt.Sprintf("**MACD Histogram:** %.4f\n\n", ind.MACDHistogram))

	sb.WriteString("## Trend\n\n")
	sb.WriteString(fmt.Sprintf("SMA5 %.2f | SMA20 %.2f | SMA50 %.2f\n", ind.SMA5, ind.SMA20, ind.SMA50))
	sb.WriteString(fmt.Sprintf("Bollinger %.2f / %.2f / %.2f | ATR14 %.2f\n\n", ind.BBUpper, ind.BBMiddle, ind.BBLower, ind.ATR14))

	sb.WriteString(pb.formatRecentCandles(snapshot))

	sb.WriteString("## Instructions\n\n")
	sb.WriteString(fmt.Sprintf("Trading mode: %s\n", pb.mode))
	sb.WriteString(fmt.Sprintf("Minimum confidence required to trade: %s\n", pb.minConfidence))
	sb.WriteString("Give a clear trading signal in the JSON format described above.\n")

	return sb.String()
}

func (pb *PromptBuilder) formatRecentCandles(snapshot *domain.MarketSnapshot) string {
	candles := snapshot.RecentCandles(recentCandles)
	if len(candles) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Recent Candles\n\n")
	sb.WriteString("```\n")
	sb.WriteString("Time  | Open       | High       | Low        | Close      | Volume\n")
	for _, k := range candles {
		sb.WriteString(fmt.Sprintf("%-5s | %10.2f | %10.2f | %10.2f | %10.2f | %10.2f\n",
			k.OpenTime.UTC().Format("15:04"),
			k.Open.InexactFloat64(),
			k.High.InexactFloat64(),
			k.Low.InexactFloat64(),
			k.Close.InexactFloat64(),
			k.Volume.InexactFloat64(),
		))
	}
	sb.WriteString("```\n\n")

	return sb.String()
}
