// Package config loads the trader configuration from YAML, a .env file and the environment.
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
	"github.com/vadiminshakov/levtrader/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	SourceAlpaca  = "alpaca"
	SourceYahoo   = "yahoo"
	SourceBinance = "binance"

	BrokerAlpaca   = "alpaca"
	BrokerSimulate = "simulate"
)

const (
	defaultPollInterval = 30 * time.Minute
	defaultHistoryDays  = 60
	defaultDataDir      = "./data"
	defaultDashboard    = ":8080"
)

// Config is the typed configuration of the whole program.
type Config struct {
	TraderID string
	// SymbolA is the traded instrument, SymbolB the volatility gauge.
	SymbolA string
	SymbolB string
	Source  string
	Broker  string
	// Symbols maps logical symbols to tickers, per quote source.
	Symbols           map[string]map[string]string
	Params            domain.StrategyParams
	PollPriceInterval time.Duration
	HistoryDays       int
	DataDir           string
	SimulateCash      decimal.Decimal
	LogLevel          string
	Dashboard         Dashboard
	Backtest          Backtest
	Alpaca            AlpacaCredentials
	Binance           BinanceCredentials
}

// Dashboard configures the status API.
type Dashboard struct {
	Addr string
	// Domain enables automatic TLS certificates when set.
	Domain         string
	CertCache      string
	AllowedOrigins []string
}

// Backtest configures the offline simulation.
type Backtest struct {
	CSVA        string
	CSVB        string
	InitialFund decimal.Decimal
	JournalPath string
}

type AlpacaCredentials struct {
	APIKey    string
	SecretKey string
	BaseURL   string
	Feed      string
}

type BinanceCredentials struct {
	APIKey    string
	SecretKey string
}

// ConfigTmp mirrors the YAML file; numbers stay strings until parsed with defaults.
type ConfigTmp struct {
	TraderID          string                       `yaml:"trader_id"`
	SymbolA           string                       `yaml:"symbol_a"`
	SymbolB           string                       `yaml:"symbol_b"`
	Source            string                       `yaml:"source"`
	Broker            string                       `yaml:"broker"`
	Symbols           map[string]map[string]string `yaml:"symbols,omitempty"`
	PollPriceInterval time.Duration                `yaml:"poll_price_interval"`
	HistoryDaysStr    string                       `yaml:"history_days,omitempty"`
	DataDir           string                       `yaml:"data_dir"`
	SimulateCashStr   string                       `yaml:"simulate_cash,omitempty"`
	LogLevel          string                       `yaml:"log_level,omitempty"`
	Strategy          StrategyTmp                  `yaml:"strategy"`
	Dashboard         DashboardTmp                 `yaml:"dashboard"`
	Backtest          BacktestTmp                  `yaml:"backtest"`
	AlpacaFeed        string                       `yaml:"alpaca_feed,omitempty"`
}

type StrategyTmp struct {
	Window               string `yaml:"window,omitempty"`
	SellMultiplier       string `yaml:"sell_multiplier,omitempty"`
	LowMultiplier        string `yaml:"low_multiplier,omitempty"`
	HighMultiplier       string `yaml:"high_multiplier,omitempty"`
	VolatilityMultiplier string `yaml:"volatility_multiplier,omitempty"`
	BankSkim             string `yaml:"bank_skim,omitempty"`
	PositionFraction     string `yaml:"position_fraction,omitempty"`
	ConditionalLag       string `yaml:"conditional_lag,omitempty"`
	CooldownDays         string `yaml:"cooldown_days,omitempty"`
}

type DashboardTmp struct {
	Addr           string   `yaml:"addr,omitempty"`
	Domain         string   `yaml:"domain,omitempty"`
	CertCache      string   `yaml:"cert_cache,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

type BacktestTmp struct {
	CSVA        string `yaml:"csv_a,omitempty"`
	CSVB        string `yaml:"csv_b,omitempty"`
	InitialFund string `yaml:"initial_fund,omitempty"`
	Journal     string `yaml:"journal,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		TraderID:          domain.DefaultTraderID,
		SymbolA:           "TECL",
		SymbolB:           "VIX",
		Source:            SourceYahoo,
		Broker:            BrokerSimulate,
		Symbols:           map[string]map[string]string{},
		Params:            domain.DefaultStrategyParams(),
		PollPriceInterval: defaultPollInterval,
		HistoryDays:       defaultHistoryDays,
		DataDir:           defaultDataDir,
		SimulateCash:      decimal.NewFromInt(10000),
		LogLevel:          "info",
		Dashboard: Dashboard{
			Addr:           defaultDashboard,
			AllowedOrigins: []string{"*"},
		},
		Backtest: Backtest{
			InitialFund: decimal.NewFromInt(10000),
		},
		Alpaca: AlpacaCredentials{Feed: "iex"},
	}
}

// Load reads the YAML file at path (optional), then .env and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "load .env")
	}

	conf := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if conf, err = Parse(raw); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := conf.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	return conf, conf.Validate()
}

// Parse builds a Config from YAML, filling defaults for absent fields.
func Parse(raw []byte) (Config, error) {
	var tmp ConfigTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, errors.Wrap(err, "decode yaml")
	}

	conf := Default()
	setString(&conf.TraderID, tmp.TraderID)
	setString(&conf.SymbolA, strings.ToUpper(tmp.SymbolA))
	setString(&conf.SymbolB, strings.ToUpper(tmp.SymbolB))
	setString(&conf.Source, strings.ToLower(tmp.Source))
	setString(&conf.Broker, strings.ToLower(tmp.Broker))
	setString(&conf.DataDir, tmp.DataDir)
	setString(&conf.LogLevel, tmp.LogLevel)
	setString(&conf.Alpaca.Feed, tmp.AlpacaFeed)
	if tmp.Symbols != nil {
		conf.Symbols = tmp.Symbols
	}
	if tmp.PollPriceInterval > 0 {
		conf.PollPriceInterval = tmp.PollPriceInterval
	}

	var err error
	if conf.HistoryDays, err = parseInt("history_days", tmp.HistoryDaysStr, conf.HistoryDays); err != nil {
		return Config{}, err
	}
	if conf.SimulateCash, err = parseDecimal("simulate_cash", tmp.SimulateCashStr, conf.SimulateCash); err != nil {
		return Config{}, err
	}
	if conf.Params, err = tmp.Strategy.params(conf.Params); err != nil {
		return Config{}, err
	}

	setString(&conf.Dashboard.Addr, tmp.Dashboard.Addr)
	setString(&conf.Dashboard.Domain, tmp.Dashboard.Domain)
	setString(&conf.Dashboard.CertCache, tmp.Dashboard.CertCache)
	if len(tmp.Dashboard.AllowedOrigins) > 0 {
		conf.Dashboard.AllowedOrigins = tmp.Dashboard.AllowedOrigins
	}

	setString(&conf.Backtest.CSVA, tmp.Backtest.CSVA)
	setString(&conf.Backtest.CSVB, tmp.Backtest.CSVB)
	setString(&conf.Backtest.JournalPath, tmp.Backtest.Journal)
	if conf.Backtest.InitialFund, err = parseDecimal("backtest.initial_fund", tmp.Backtest.InitialFund, conf.Backtest.InitialFund); err != nil {
		return Config{}, err
	}

	return conf, nil
}

func (s StrategyTmp) params(p domain.StrategyParams) (domain.StrategyParams, error) {
	var err error
	if p.Window, err = parseInt("strategy.window", s.Window, p.Window); err != nil {
		return p, err
	}
	if p.ConditionalLag, err = parseInt("strategy.conditional_lag", s.ConditionalLag, p.ConditionalLag); err != nil {
		return p, err
	}
	if p.CooldownDays, err = parseInt("strategy.cooldown_days", s.CooldownDays, p.CooldownDays); err != nil {
		return p, err
	}

	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"strategy.sell_multiplier", s.SellMultiplier, &p.SellMultiplier},
		{"strategy.low_multiplier", s.LowMultiplier, &p.LowMultiplier},
		{"strategy.high_multiplier", s.HighMultiplier, &p.HighMultiplier},
		{"strategy.volatility_multiplier", s.VolatilityMultiplier, &p.VolatilityMultiplier},
		{"strategy.bank_skim", s.BankSkim, &p.BankSkim},
		{"strategy.position_fraction", s.PositionFraction, &p.PositionFraction},
	} {
		if *f.dst, err = parseDecimal(f.name, f.raw, *f.dst); err != nil {
			return p, err
		}
	}

	return p, nil
}

// applyEnv overlays secrets and the env-level overrides.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	setString(&c.Alpaca.APIKey, get("ALPACA_API_KEY"))
	setString(&c.Alpaca.SecretKey, get("ALPACA_SECRET_KEY"))
	setString(&c.Alpaca.BaseURL, get("ALPACA_BASE_URL"))
	setString(&c.Binance.APIKey, get("BINANCE_API_KEY"))
	setString(&c.Binance.SecretKey, get("BINANCE_API_SECRET"))
	setString(&c.LogLevel, get("LOG_LEVEL"))

	fraction, err := parseDecimal("POSITION_SIZE_LIMIT", get("POSITION_SIZE_LIMIT"), c.Params.PositionFraction)
	if err != nil {
		return err
	}
	c.Params.PositionFraction = fraction

	return nil
}

// Validate rejects configurations the trader cannot run with.
func (c Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return errors.Wrap(err, "strategy")
	}
	if c.SymbolA == "" || c.SymbolB == "" {
		return errors.New("symbol_a and symbol_b are required")
	}
	if c.SymbolA == c.SymbolB {
		return fmt.Errorf("symbol_a and symbol_b must differ, both are %s", c.SymbolA)
	}

	switch c.Source {
	case SourceAlpaca, SourceYahoo, SourceBinance:
	default:
		return fmt.Errorf("unsupported quote source: %s", c.Source)
	}

	switch c.Broker {
	case BrokerAlpaca, BrokerSimulate:
	default:
		return fmt.Errorf("unsupported broker: %s", c.Broker)
	}

	if c.PollPriceInterval <= 0 {
		return errors.New("poll_price_interval must be positive")
	}
	if c.HistoryDays < c.Params.Window {
		return fmt.Errorf("history_days (%d) must cover the indicator window (%d)", c.HistoryDays, c.Params.Window)
	}
	if !c.Backtest.InitialFund.IsPositive() {
		return errors.New("backtest.initial_fund must be positive")
	}
	if c.Broker == BrokerSimulate && !c.SimulateCash.IsPositive() {
		return errors.New("simulate_cash must be positive")
	}

	return nil
}

// RequireAlpaca reports missing brokerage credentials.
func (c Config) RequireAlpaca() error {
	if c.Alpaca.APIKey == "" || c.Alpaca.SecretKey == "" {
		return errors.New("ALPACA_API_KEY and ALPACA_SECRET_KEY must be set")
	}
	return nil
}

// SourceSymbols returns the ticker overrides of the configured source.
func (c Config) SourceSymbols(source string) map[string]string {
	return c.Symbols[source]
}

// Marshal renders c as YAML in the file format Parse reads.
func (c Config) Marshal() ([]byte, error) {
	p := c.Params
	tmp := ConfigTmp{
		TraderID:          c.TraderID,
		SymbolA:           c.SymbolA,
		SymbolB:           c.SymbolB,
		Source:            c.Source,
		Broker:            c.Broker,
		Symbols:           c.Symbols,
		PollPriceInterval: c.PollPriceInterval,
		HistoryDaysStr:    strconv.Itoa(c.HistoryDays),
		DataDir:           c.DataDir,
		SimulateCashStr:   c.SimulateCash.String(),
		LogLevel:          c.LogLevel,
		AlpacaFeed:        c.Alpaca.Feed,
		Strategy: StrategyTmp{
			Window:               strconv.Itoa(p.Window),
			SellMultiplier:       p.SellMultiplier.String(),
			LowMultiplier:        p.LowMultiplier.String(),
			HighMultiplier:       p.HighMultiplier.String(),
			VolatilityMultiplier: p.VolatilityMultiplier.String(),
			BankSkim:             p.BankSkim.String(),
			PositionFraction:     p.PositionFraction.String(),
			ConditionalLag:       strconv.Itoa(p.ConditionalLag),
			CooldownDays:         strconv.Itoa(p.CooldownDays),
		},
		Dashboard: DashboardTmp{
			Addr:           c.Dashboard.Addr,
			Domain:         c.Dashboard.Domain,
			CertCache:      c.Dashboard.CertCache,
			AllowedOrigins: c.Dashboard.AllowedOrigins,
		},
		Backtest: BacktestTmp{
			CSVA:        c.Backtest.CSVA,
			CSVB:        c.Backtest.CSVB,
			InitialFund: c.Backtest.InitialFund.String(),
			Journal:     c.Backtest.JournalPath,
		},
	}

	out, err := yaml.Marshal(tmp)
	return out, errors.Wrap(err, "encode yaml")
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func parseInt(name, raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("incorrect '%s' param (must be an integer), error: %w", name, err)
	}
	return v, nil
}

func parseDecimal(name, raw string, def decimal.Decimal) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("incorrect '%s' param (must be a decimal), error: %w", name, err)
	}
	return v, nil
}
