// Package setup is the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/config"
)

const DefaultPath = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

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
)

// Answers are the raw wizard inputs.
type Answers struct {
	SymbolA          string
	SymbolB          string
	Source           string
	Broker           string
	SimulateCash     string
	PollInterval     string
	Window           string
	SellMultiplier   string
	PositionFraction string
	DashboardAddr    string
}

// DefaultAnswers pre-fills the wizard from the default configuration.
func DefaultAnswers() Answers {
	d := config.Default()
	return Answers{
		SymbolA:          d.SymbolA,
		SymbolB:          d.SymbolB,
		Source:           d.Source,
		Broker:           d.Broker,
		SimulateCash:     d.SimulateCash.String(),
		PollInterval:     d.PollPriceInterval.String(),
		Window:           strconv.Itoa(d.Params.Window),
		SellMultiplier:   d.Params.SellMultiplier.String(),
		PositionFraction: d.Params.PositionFraction.String(),
		DashboardAddr:    d.Dashboard.Addr,
	}
}

// Build turns the answers into a validated configuration.
func (a Answers) Build() (config.Config, error) {
	conf := config.Default()
	conf.SymbolA = strings.ToUpper(strings.TrimSpace(a.SymbolA))
	conf.SymbolB = strings.ToUpper(strings.TrimSpace(a.SymbolB))
	conf.Source = a.Source
	conf.Broker = a.Broker
	conf.Dashboard.Addr = strings.TrimSpace(a.DashboardAddr)

	var err error
	if conf.PollPriceInterval, err = time.ParseDuration(a.PollInterval); err != nil {
		return config.Config{}, errors.Wrap(err, "poll interval")
	}
	if conf.Params.Window, err = strconv.Atoi(strings.TrimSpace(a.Window)); err != nil {
		return config.Config{}, errors.Wrap(err, "window")
	}
	if conf.Params.SellMultiplier, err = decimal.NewFromString(a.SellMultiplier); err != nil {
		return config.Config{}, errors.Wrap(err, "sell multiplier")
	}
	if conf.Params.PositionFraction, err = decimal.NewFromString(a.PositionFraction); err != nil {
		return config.Config{}, errors.Wrap(err, "position fraction")
	}
	if a.Broker == config.BrokerSimulate {
		if conf.SimulateCash, err = decimal.NewFromString(a.SimulateCash); err != nil {
			return config.Config{}, errors.Wrap(err, "simulated cash")
		}
	}
	if conf.HistoryDays < 2*conf.Params.Window {
		conf.HistoryDays = 2 * conf.Params.Window
	}

	return conf, conf.Validate()
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) (string, error) {
	if path == "" {
		path = DefaultPath
	}
	a := DefaultAnswers()
	var confirm bool

	step := func(title string) {
		fmt.Print("\033[H\033[2J") // Clear screen
		fmt.Println(headerStyle.Render("LEVTRADER CONFIG WIZARD"))
		fmt.Println(stepStyle.Render(title))
	}

	step("STEP 1: INSTRUMENTS")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Buy the leveraged ETF on dips, watch the volatility index.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Traded instrument").
				Description("Leveraged ETF ticker (e.g. TECL)").
				Value(&a.SymbolA).
				Validate(validateSymbol),
			huh.NewInput().
				Title("Volatility gauge").
				Description("Index used for the conditional buy (e.g. VIX)").
				Value(&a.SymbolB).
				Validate(validateSymbol),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 2: DATA AND BROKER")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Quote source").
				Options(
					huh.NewOption("Yahoo Finance (free)", config.SourceYahoo),
					huh.NewOption("Alpaca market data", config.SourceAlpaca),
					huh.NewOption("Binance public data", config.SourceBinance),
				).
				Value(&a.Source),
			huh.NewSelect[string]().
				Title("Broker").
				Options(
					huh.NewOption("Simulation", config.BrokerSimulate),
					huh.NewOption("Alpaca", config.BrokerAlpaca),
				).
				Value(&a.Broker),
		),
	).Run()
	if err != nil {
		return "", err
	}

	if a.Broker == config.BrokerSimulate {
		step("STEP 3: PAPER ACCOUNT")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Starting cash").
					Value(&a.SimulateCash).
					Validate(validatePositiveDecimal),
			),
		).Run()
		if err != nil {
			return "", err
		}
	}

	step("STEP 4: STRATEGY")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Poll interval").
				Description("Duration string (e.g. 15m, 30m)").
				Value(&a.PollInterval).
				Validate(validateDuration),
			huh.NewInput().
				Title("Moving average window").
				Description("Trading days (30 canonical, 45 for the older variant)").
				Value(&a.Window).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Sell multiplier").
				Description("Take profit over the purchase price (e.g. 1.058)").
				Value(&a.SellMultiplier).
				Validate(validatePositiveDecimal),
			huh.NewInput().
				Title("Position fraction").
				Description("Share of buying power per buy, in (0, 1]").
				Value(&a.PositionFraction).
				Validate(validateFraction),
			huh.NewInput().
				Title("Dashboard address").
				Value(&a.DashboardAddr),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Instruments: %s / %s\nSource: %s\nBroker: %s\nInterval: %s\nWindow: %s\nSell at: x%s\n",
		a.SymbolA, a.SymbolB, a.Source, a.Broker, a.PollInterval, a.Window, a.SellMultiplier,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	if err := Save(a, path); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	return path, nil
}

// Save validates the answers and writes them as YAML.
func Save(a Answers, path string) error {
	conf, err := a.Build()
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	data, err := conf.Marshal()
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func validateSymbol(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if strings.ContainsAny(s, " \t/") {
		return fmt.Errorf("symbol must be a single ticker")
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1")
	}
	return nil
}

func validatePositiveDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateFraction(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("must be in (0, 1]")
	}
	return nil
}
