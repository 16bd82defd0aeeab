package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/asterbot/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	ExchangeAster = "ASTER"

	StorageWAL    = "wal"
	StorageSQLite = "sqlite"

	SourceAster       = "aster"
	SourceBinance     = "binance"
	SourceBybit       = "bybit"
	SourceHyperliquid = "hyperliquid"
)

// Config is the validated runtime configuration.
type Config struct {
	Exchange             string
	Symbol               string
	TradingEnabled       bool
	ProductionMode       bool
	PositionSize         decimal.Decimal
	Leverage             int
	MinConfidence        domain.Confidence
	MaxDailyLoss         decimal.Decimal
	MaxPositionCount     int
	EmergencyStopEnabled bool
	CycleInterval        time.Duration
	FlipPause            time.Duration
	KlineInterval        string
	KlineLimit           int
	MarketDataSource     string
	AsterBaseURL         string
	LLMAPIURL            string
	LLMAPIKey            string
	Model                string
	StorageBackend       string
	WALDir               string
	DatabasePath         string
	StateDir             string
	LogLevel             string
	MetricsAddr          string
	WebAddr              string
	WebhookURL           string
}

// ConfigTmp is the YAML layout. Decimals and booleans are strings so that an absent
// key keeps the default.
type ConfigTmp struct {
	Exchange                string        `yaml:"exchange,omitempty"`
	Symbol                  string        `yaml:"symbol,omitempty"`
	TradingEnabledStr       string        `yaml:"trading_enabled,omitempty"`
	ProductionModeStr       string        `yaml:"production_mode,omitempty"`
	PositionSize            string        `yaml:"position_size,omitempty"`
	LeverageStr             string        `yaml:"leverage,omitempty"`
	MinConfidence           string        `yaml:"min_confidence,omitempty"`
	MaxDailyLoss            string        `yaml:"max_daily_loss,omitempty"`
	MaxPositionCountStr     string        `yaml:"max_position_count,omitempty"`
	EmergencyStopEnabledStr string        `yaml:"emergency_stop_enabled,omitempty"`
	CycleInterval           time.Duration `yaml:"cycle_interval,omitempty"`
	FlipPause               time.Duration `yaml:"flip_pause,omitempty"`
	KlineInterval           string        `yaml:"kline_interval,omitempty"`
	KlineLimitStr           string        `yaml:"kline_limit,omitempty"`
	MarketDataSource        string        `yaml:"market_data_source,omitempty"`
	AsterBaseURL            string        `yaml:"aster_base_url,omitempty"`
	LLMAPIURL               string        `yaml:"llm_api_url,omitempty"`
	LLMAPIKey               string        `yaml:"llm_api_key,omitempty"`
	Model                   string        `yaml:"model,omitempty"`
	StorageBackend          string        `yaml:"storage_backend,omitempty"`
	WALDir                  string        `yaml:"wal_dir,omitempty"`
	DatabasePath            string        `yaml:"database_path,omitempty"`
	StateDir                string        `yaml:"state_dir,omitempty"`
	LogLevel                string        `yaml:"log_level,omitempty"`
	MetricsAddr             string        `yaml:"metrics_addr,omitempty"`
	WebAddr                 string        `yaml:"web_addr,omitempty"`
	WebhookURL              string        `yaml:"webhook_url,omitempty"`
}

// Default returns the configuration used when neither the file nor the environment set a value.
func Default() Config {
	return Config{
		Exchange:             ExchangeAster,
		Symbol:               "BTCUSDT",
		PositionSize:         decimal.RequireFromString("0.01"),
		Leverage:             5,
		MinConfidence:        domain.ConfidenceMedium,
		MaxDailyLoss:         decimal.NewFromInt(100),
		MaxPositionCount:     1,
		EmergencyStopEnabled: true,
		CycleInterval:        15 * time.Minute,
		FlipPause:            time.Second,
		KlineInterval:        "15m",
		KlineLimit:           96,
		MarketDataSource:     SourceAster,
		AsterBaseURL:         "https://fapi.asterdex.com",
		LLMAPIURL:            "https://api.deepseek.com/chat/completions",
		Model:                "deepseek-chat",
		StorageBackend:       StorageWAL,
		WALDir:               "./wal/records",
		DatabasePath:         "./data/trading_bot.db",
		StateDir:             "./data",
		LogLevel:             "info",
	}
}

// Mode derives the trading mode from the production and trading switches.
func (c Config) Mode() domain.TradingMode {
	return domain.ResolveTradingMode(c.ProductionMode, c.TradingEnabled)
}

// Load reads .env (when present), the YAML file at path (when set) and the environment,
// in that order of increasing precedence, and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "failed to load .env")
	}

	conf := Default()

	if path != "" {
		tmp, err := readYaml(path)
		if err != nil {
			return Config{}, err
		}
		if err := conf.apply(tmp); err != nil {
			return Config{}, err
		}
	}

	if err := conf.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := conf.Validate(); err != nil {
		return Config{}, err
	}

	return conf, nil
}

func readYaml(path string) (ConfigTmp, error) {
	var tmp ConfigTmp

	f, err := os.ReadFile(path)
	if err != nil {
		return tmp, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return tmp, errors.Wrapf(err, "failed to parse config %s", path)
	}

	return tmp, nil
}

// Validate checks the configuration and returns a *domain.ConfigurationError on the first problem.
func (c Config) Validate() error {
	if c.Exchange != ExchangeAster {
		return domain.NewConfigurationError("exchange", fmt.Sprintf("unsupported exchange %q, only %s is supported", c.Exchange, ExchangeAster))
	}
	if strings.TrimSpace(c.Symbol) == "" {
		return domain.NewConfigurationError("symbol", "must not be empty")
	}
	if c.ProductionMode && !c.TradingEnabled {
		return domain.NewConfigurationError("production_mode", "requires trading_enabled")
	}
	if !c.PositionSize.IsPositive() {
		return domain.NewConfigurationError("position_size", "must be greater than zero")
	}
	if c.Leverage < 1 {
		return domain.NewConfigurationError("leverage", "must be at least 1")
	}
	if c.MinConfidence.Rank() == 0 {
		return domain.NewConfigurationError("min_confidence", "must be LOW, MEDIUM or HIGH")
	}
	if c.MaxDailyLoss.IsNegative() {
		return domain.NewConfigurationError("max_daily_loss", "must not be negative")
	}
	if c.MaxPositionCount < 0 {
		return domain.NewConfigurationError("max_position_count", "must not be negative")
	}
	if c.CycleInterval <= 0 {
		return domain.NewConfigurationError("cycle_interval", "must be positive")
	}
	if c.KlineLimit < 2 {
		return domain.NewConfigurationError("kline_limit", "must be at least 2")
	}

	switch c.StorageBackend {
	case StorageWAL, StorageSQLite:
	default:
		return domain.NewConfigurationError("storage_backend", fmt.Sprintf("unknown backend %q", c.StorageBackend))
	}

	switch c.MarketDataSource {
	case SourceAster, SourceBinance, SourceBybit, SourceHyperliquid:
	default:
		return domain.NewConfigurationError("market_data_source", fmt.Sprintf("unknown source %q", c.MarketDataSource))
	}

	return nil
}

// LoadCredentials reads the Aster account credentials from the environment.
func LoadCredentials() (domain.Credentials, error) {
	return loadCredentials(os.LookupEnv)
}

func loadCredentials(lookup func(string) (string, bool)) (domain.Credentials, error) {
	get := func(key string) (string, error) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", domain.NewConfigurationError(key, "environment variable is not set")
		}
		return strings.TrimSpace(v), nil
	}

	var (
		creds domain.Credentials
		err   error
	)
	if creds.AccountAddress, err = get("ASTER_USER_ADDRESS"); err != nil {
		return domain.Credentials{}, err
	}
	if creds.SignerAddress, err = get("ASTER_SIGNER_ADDRESS"); err != nil {
		return domain.Credentials{}, err
	}
	if creds.PrivateKey, err = get("ASTER_PRIVATE_KEY"); err != nil {
		return domain.Credentials{}, err
	}

	return creds, nil
}

func (c *Config) apply(t ConfigTmp) error {
	setString(&c.Exchange, strings.ToUpper(t.Exchange))
	setString(&c.Symbol, strings.ToUpper(t.Symbol))
	setString(&c.KlineInterval, t.KlineInterval)
	setString(&c.MarketDataSource, strings.ToLower(t.MarketDataSource))
	setString(&c.AsterBaseURL, t.AsterBaseURL)
	setString(&c.LLMAPIURL, t.LLMAPIURL)
	setString(&c.LLMAPIKey, t.LLMAPIKey)
	setString(&c.Model, t.Model)
	setString(&c.StorageBackend, strings.ToLower(t.StorageBackend))
	setString(&c.WALDir, t.WALDir)
	setString(&c.DatabasePath, t.DatabasePath)
	setString(&c.StateDir, t.StateDir)
	setString(&c.LogLevel, t.LogLevel)
	setString(&c.MetricsAddr, t.MetricsAddr)
	setString(&c.WebAddr, t.WebAddr)
	setString(&c.WebhookURL, t.WebhookURL)

	if t.CycleInterval != 0 {
		c.CycleInterval = t.CycleInterval
	}
	if t.FlipPause != 0 {
		c.FlipPause = t.FlipPause
	}

	parsers := []struct {
		key   string
		value string
		parse func(string) error
	}{
		{"trading_enabled", t.TradingEnabledStr, boolInto(&c.TradingEnabled)},
		{"production_mode", t.ProductionModeStr, boolInto(&c.ProductionMode)},
		{"emergency_stop_enabled", t.EmergencyStopEnabledStr, boolInto(&c.EmergencyStopEnabled)},
		{"position_size", t.PositionSize, decimalInto(&c.PositionSize)},
		{"max_daily_loss", t.MaxDailyLoss, decimalInto(&c.MaxDailyLoss)},
		{"leverage", t.LeverageStr, intInto(&c.Leverage)},
		{"max_position_count", t.MaxPositionCountStr, intInto(&c.MaxPositionCount)},
		{"kline_limit", t.KlineLimitStr, intInto(&c.KlineLimit)},
		{"min_confidence", t.MinConfidence, confidenceInto(&c.MinConfidence)},
	}

	for _, p := range parsers {
		if p.value == "" {
			continue
		}
		if err := p.parse(p.value); err != nil {
			return fmt.Errorf("incorrect '%s' param in yaml config: %w", p.key, err)
		}
	}

	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		env    string
		target *string
		norm   func(string) string
	}{
		{"TRADING_EXCHANGE", &c.Exchange, strings.ToUpper},
		{"TRADING_SYMBOL", &c.Symbol, strings.ToUpper},
		{"ASTER_BASE_URL", &c.AsterBaseURL, nil},
		{"LLM_API_URL", &c.LLMAPIURL, nil},
		{"DEEPSEEK_API_KEY", &c.LLMAPIKey, nil},
		{"LLM_API_KEY", &c.LLMAPIKey, nil},
		{"LLM_MODEL", &c.Model, nil},
		{"MARKET_DATA_SOURCE", &c.MarketDataSource, strings.ToLower},
		{"STORAGE_BACKEND", &c.StorageBackend, strings.ToLower},
		{"DATABASE_PATH", &c.DatabasePath, nil},
		{"LOG_LEVEL", &c.LogLevel, nil},
		{"METRICS_ADDR", &c.MetricsAddr, nil},
		{"WEB_ADDR", &c.WebAddr, nil},
		{"DASHBOARD_WEBHOOK_URL", &c.WebhookURL, nil},
	}
	for _, s := range strs {
		v, ok := lookup(s.env)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		v = strings.TrimSpace(v)
		if s.norm != nil {
			v = s.norm(v)
		}
		*s.target = v
	}

	parsers := []struct {
		env   string
		parse func(string) error
	}{
		{"TRADING_ENABLED", boolInto(&c.TradingEnabled)},
		{"PRODUCTION_MODE", boolInto(&c.ProductionMode)},
		{"ENABLE_EMERGENCY_STOP", boolInto(&c.EmergencyStopEnabled)},
		{"MAX_DAILY_LOSS", decimalInto(&c.MaxDailyLoss)},
		{"MAX_POSITION_SIZE", decimalInto(&c.PositionSize)},
		{"MAX_POSITION_COUNT", intInto(&c.MaxPositionCount)},
		{"LEVERAGE", intInto(&c.Leverage)},
		{"MIN_CONFIDENCE_LEVEL", confidenceInto(&c.MinConfidence)},
		{"CYCLE_INTERVAL", durationInto(&c.CycleInterval)},
	}
	for _, p := range parsers {
		v, ok := lookup(p.env)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := p.parse(strings.TrimSpace(v)); err != nil {
			return domain.NewConfigurationError(p.env, err.Error())
		}
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func boolInto(dst *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(strings.ToLower(s))
		if err != nil {
			return errors.Errorf("must be true or false, got %q", s)
		}
		*dst = v
		return nil
	}
}

func decimalInto(dst *decimal.Decimal) func(string) error {
	return func(s string) error {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return errors.Errorf("must be a decimal, got %q", s)
		}
		*dst = v
		return nil
	}
}

func intInto(dst *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return errors.Errorf("must be an integer, got %q", s)
		}
		*dst = v
		return nil
	}
}

func confidenceInto(dst *domain.Confidence) func(string) error {
	return func(s string) error {
		v, ok := domain.ParseConfidence(s)
		if !ok {
			return errors.Errorf("must be LOW, MEDIUM or HIGH, got %q", s)
		}
		*dst = v
		return nil
	}
}

func durationInto(dst *time.Duration) func(string) error {
	return func(s string) error {
		v, err := time.ParseDuration(s)
		if err != nil {
			return errors.Errorf("must be a duration, got %q", s)
		}
		*dst = v
		return nil
	}
}
