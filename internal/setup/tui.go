package setup

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/asterbot/config"
	"github.com/vadiminshakov/asterbot/internal/services/risk"
	"gopkg.in/yaml.v3"
)

// DefaultOutput is where RunTUI writes the generated config.
const DefaultOutput = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	danger    = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F5F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)

	warnStyle = lipgloss.NewStyle().
			Foreground(danger).
			Bold(true).
			Border(lipgloss.NormalBorder()).
			BorderForeground(danger).
			Padding(1)
)

func screen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("ASTERBOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) error {
	defaults := config.Default()

	var (
		symbol          = defaults.Symbol
		positionSizeStr = defaults.PositionSize.String()
		leverageStr     = strconv.Itoa(defaults.Leverage)
		intervalStr     = defaults.CycleInterval.String()
		minConfidence   = string(defaults.MinConfidence)
		maxLossStr      = defaults.MaxDailyLoss.String()
		source          = defaults.MarketDataSource
		storage         = defaults.StorageBackend
		apiURL          = defaults.LLMAPIURL
		model           = defaults.Model
	)

	var (
		apiKey         string
		tradingEnabled bool
		confirm        bool
	)

	screen("STEP 1: MARKET")
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Symbol").
				Description("Perpetual contract, e.g. BTCUSDT").
				Value(&symbol).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("symbol cannot be empty")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Market data source").
				Options(
					huh.NewOption("Aster", config.SourceAster),
					huh.NewOption("Binance futures", config.SourceBinance),
					huh.NewOption("Bybit linear", config.SourceBybit),
					huh.NewOption("Hyperliquid", config.SourceHyperliquid),
				).
				Value(&source),
			huh.NewInput().
				Title("Cycle interval").
				Description("Duration string (e.g. 5m, 15m)").
				Value(&intervalStr).
				Validate(func(s string) error {
					d, err := time.ParseDuration(s)
					if err == nil && d <= 0 {
						return fmt.Errorf("must be positive")
					}
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 2: RISK")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Position size").
				Description("Contract quantity per open order").
				Value(&positionSizeStr).
				Validate(validatePositive),
			huh.NewInput().
				Title("Leverage").
				Value(&leverageStr).
				Validate(validateLeverage),
			huh.NewSelect[string]().
				Title("Minimum confidence").
				Options(
					huh.NewOption("Low", "LOW"),
					huh.NewOption("Medium", "MEDIUM"),
					huh.NewOption("High", "HIGH"),
				).
				Value(&minConfidence),
			huh.NewInput().
				Title("Max daily loss (USDT)").
				Value(&maxLossStr).
				Validate(validatePositive),
			huh.NewConfirm().
				Title("Enable real trading?").
				Description("When off, signals are recorded but no orders are sent").
				Value(&tradingEnabled),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 3: AI")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("LLM API URL").
				Value(&apiURL),
			huh.NewInput().
				Title("LLM API Key").
				Description("Leave empty to read DEEPSEEK_API_KEY from the environment").
				Value(&apiKey).
				EchoMode(huh.EchoModePassword),
			huh.NewInput().
				Title("Model Name").
				Value(&model),
			huh.NewSelect[string]().
				Title("Record storage").
				Options(
					huh.NewOption("Write-ahead log", config.StorageWAL),
					huh.NewOption("SQLite", config.StorageSQLite),
				).
				Value(&storage),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Symbol: %s\nSource: %s\nInterval: %s\nSize: %s x%s\nMin confidence: %s\nMax daily loss: %s\nReal trading: %t\n",
		symbol, source, intervalStr, positionSizeStr, leverageStr, minConfidence, maxLossStr, tradingEnabled,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	interval, _ := time.ParseDuration(intervalStr)

	cfgTmp := config.ConfigTmp{
		Exchange:          config.ExchangeAster,
		Symbol:            symbol,
		TradingEnabledStr: strconv.FormatBool(tradingEnabled),
		PositionSize:      positionSizeStr,
		LeverageStr:       leverageStr,
		MinConfidence:     minConfidence,
		MaxDailyLoss:      maxLossStr,
		CycleInterval:     interval,
		MarketDataSource:  source,
		LLMAPIURL:         apiURL,
		LLMAPIKey:         apiKey,
		Model:             model,
		StorageBackend:    storage,
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if path == "" {
		path = DefaultOutput
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting bot...", path)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

// ConfirmProduction shows the risk status and asks the operator to confirm real trading.
func ConfirmProduction(status risk.Status, symbol string) (bool, error) {
	fmt.Println(warnStyle.Render(fmt.Sprintf(
		"PRODUCTION MODE\n\nExchange: %s\nSymbol: %s\nMax daily loss: %s USDT\nMax positions: %d\n\nReal orders will be sent with real funds.",
		status.Exchange, symbol, status.MaxDailyLoss, status.MaxPositionCount,
	)))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Start with --yes to skip this prompt.\n"))

	var confirm bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Start production trading?").
				Affirmative("Yes, trade").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()

	return confirm, err
}

func validatePositive(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func validateLeverage(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if n < 1 || n > 125 {
		return fmt.Errorf("must be between 1 and 125")
	}
	return nil
}
