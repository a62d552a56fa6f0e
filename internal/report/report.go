// Package report renders backtest and daily account summaries for the terminal.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/internal/services/backtest"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().Width(26)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}).
			Padding(0, 1)

	gainStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"})
	lossStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type section struct {
	title string
	lines [][2]string
}

func (s *section) add(label, value string) {
	s.lines = append(s.lines, [2]string{label, value})
}

func (s section) render() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(s.title))
	b.WriteString("\n")
	for _, l := range s.lines {
		b.WriteString(labelStyle.Render(l[0]))
		b.WriteString(l[1])
		b.WriteString("\n")
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func percent(v float64) string {
	s := fmt.Sprintf("%.2f%%", v)
	if v < 0 {
		return lossStyle.Render(s)
	}
	return gainStyle.Render(s)
}

// Backtest renders the summary of a backtest run and, when trades is true, its trade list.
func Backtest(symbolA, symbolB string, res *backtest.Result, trades bool) string {
	s := section{title: fmt.Sprintf("Backtest %s / %s", symbolA, symbolB)}
	s.add("Period", fmt.Sprintf("%s to %s (%d rows)", res.Start.Format(domain.DateLayout), res.End.Format(domain.DateLayout), res.Rows))
	s.add("Total trades", fmt.Sprintf("%d", len(res.Trades)))
	s.add("Initial fund", money(res.InitialFund))
	s.add("Final fund", money(res.FinalFund))
	s.add("Bank", money(res.FinalBank))
	s.add("Combined total", money(res.Total))
	s.add("Total return", percent(res.TotalReturn))
	s.add("Annualized (fund)", percent(res.AnnualizedReturn))
	s.add("Annualized (fund + bank)", percent(res.TotalAnnualizedReturn))
	if res.FinalState.InPosition() {
		s.add("Open position", fmt.Sprintf("bought %s at %s", res.FinalState.PurchaseDate.Format(domain.DateLayout), res.FinalState.PurchasePrice.String()))
	}

	bh := section{title: "Buy and hold"}
	bh.add("Shares", res.BuyAndHold.Shares.StringFixed(4))
	bh.add("Value", money(res.BuyAndHold.Value))
	bh.add("Return", percent(res.BuyAndHoldReturn))
	bh.add("Annualized", percent(res.BuyAndHoldAnnualized))
	bh.add("Outperformance", fmt.Sprintf("%s (%s)", money(res.Outperformance()), percent(res.OutperformancePercent())))

	out := lipgloss.JoinVertical(lipgloss.Left, s.render(), bh.render())
	if trades && len(res.Trades) > 0 {
		out = lipgloss.JoinVertical(lipgloss.Left, out, Trades(res.Trades))
	}
	return out
}

// Trades renders one line per trade event.
func Trades(trades []domain.TradeEvent) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Trades"))
	b.WriteString("\n")
	for _, t := range trades {
		line := fmt.Sprintf("%s  %-16s %10s  fund %s", t.Date.Format(domain.DateLayout), t.Action.String(), t.Price.StringFixed(2), money(t.Fund))
		if t.Bank.Valid {
			line += "  bank " + money(t.Bank.Decimal)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// Daily renders the live account report.
func Daily(symbol string, r domain.DailyReport) string {
	s := section{title: "Daily report " + r.Date.Format(domain.DateLayout)}
	s.add("Portfolio value", money(r.PortfolioValue))
	s.add("Cash", money(r.Cash))
	s.add("Buying power", money(r.BuyingPower))
	if r.InitialCapital.Valid {
		s.add("Initial capital", money(r.InitialCapital.Decimal))
		s.add("Total return", percent(r.TotalReturn))
	}
	if r.HasAnnualized {
		s.add("Annualized return", percent(r.AnnualizedReturn))
	}

	if r.Position.InPosition() {
		s.add("Position", fmt.Sprintf("%s %s shares at %s since %s", symbol, r.Position.Quantity.String(), r.Position.PurchasePrice.StringFixed(2), r.Position.PurchaseDate.Format(domain.DateLayout)))
		if r.MarketPrice.Valid {
			s.add("Market price", r.MarketPrice.Decimal.StringFixed(2))
		}
		if r.UnrealizedPL.Valid {
			s.add("Unrealized P/L", money(r.UnrealizedPL.Decimal))
		}
	} else {
		s.add("Position", "flat")
	}

	return s.render()
}

// State renders a persisted trader state snapshot.
func State(st domain.TraderState) string {
	s := section{title: "Trader " + st.TraderID}
	s.add("In position", fmt.Sprintf("%t", st.InPosition))
	if st.InPosition {
		s.add("Purchase price", st.PurchasePrice.String())
		s.add("Purchase date", st.PurchaseDate.Format(domain.DateLayout))
		s.add("Position size", st.PositionSize.String())
	}
	if !st.LastSellDate.IsZero() {
		s.add("Last sell date", st.LastSellDate.Format(domain.DateLayout))
	}
	if st.InitialCapital.Valid {
		s.add("Initial capital", money(st.InitialCapital.Decimal))
	}
	if !st.InceptionDate.IsZero() {
		s.add("Inception", st.InceptionDate.Format(domain.DateLayout))
	}
	s.add("Last updated", st.LastUpdated.Format("2006-01-02 15:04:05 MST"))
	return s.render()
}
