package notify

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"optionscan/internal/leaderboard"
	"optionscan/internal/models"
	"optionscan/internal/scoring"
)

// FormatOpportunityAlert renders the dispatch alert. The score section
// appears only when the opportunity carries one.
func FormatOpportunityAlert(opp *models.Opportunity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 <b>%s ALERT</b> 🚨\n\n", strings.ToUpper(opp.AlertType))
	fmt.Fprintf(&b, "<b>%s %s $%s %s</b>\n\n",
		opp.Symbol,
		strings.ToUpper(opp.OptionType),
		opp.Strike.String(),
		opp.Expiration.Format("2006-01-02"),
	)
	fmt.Fprintf(&b, "💰 Price: $%s\n", opp.EntryPrice.StringFixed(2))
	fmt.Fprintf(&b, "📊 Volume: %s\n", groupInt(opp.Volume))
	fmt.Fprintf(&b, "💵 Notional Value: $%s\n", groupMoney(opp.NotionalValue))

	if opp.SuccessProbability != nil {
		probability := *opp.SuccessProbability
		confidence := ""
		reasoning := ""
		if len(opp.ScoreDetail) > 0 {
			var detail scoring.Result
			if err := json.Unmarshal(opp.ScoreDetail, &detail); err == nil {
				confidence = detail.Confidence
				reasoning = detail.Reasoning
			}
		}
		fmt.Fprintf(&b, "\n<b>SCORE ANALYSIS</b> %s\n", probabilityEmoji(probability))
		fmt.Fprintf(&b, "Success Probability: <b>%.1f%%</b> (%s)\n", probability, strings.ToUpper(confidence))
		if reasoning != "" {
			fmt.Fprintf(&b, "%s\n", reasoning)
		}
	}

	fmt.Fprintf(&b, "\n⏰ Alert Time: %s", opp.DetectedAt.Format("2006-01-02 15:04:05"))
	return b.String()
}

func FormatProfitTarget(opp *models.Opportunity, target float64, profitPct, exitPrice decimal.Decimal) string {
	var b strings.Builder
	b.WriteString("🎯 <b>PROFIT TARGET REACHED</b> 🎯\n\n")
	fmt.Fprintf(&b, "Option: %s\n", contractLine(opp))
	fmt.Fprintf(&b, "Target: %s%%\n", strconv.FormatFloat(target, 'f', -1, 64))
	fmt.Fprintf(&b, "Actual Profit: %s%%\n", profitPct.StringFixed(2))
	fmt.Fprintf(&b, "Entry: $%s\n", opp.EntryPrice.StringFixed(2))
	fmt.Fprintf(&b, "Exit: $%s", exitPrice.StringFixed(2))
	return b.String()
}

func FormatStopLoss(opp *models.Opportunity, profitPct, exitPrice decimal.Decimal) string {
	var b strings.Builder
	b.WriteString("🛑 <b>STOP LOSS TRIGGERED</b> 🛑\n\n")
	fmt.Fprintf(&b, "Option: %s\n", contractLine(opp))
	fmt.Fprintf(&b, "Loss: %s%%\n", profitPct.StringFixed(2))
	fmt.Fprintf(&b, "Entry: $%s\n", opp.EntryPrice.StringFixed(2))
	fmt.Fprintf(&b, "Exit: $%s", exitPrice.StringFixed(2))
	return b.String()
}

// Position is one open opportunity's live standing, as fed into the
// periodic performance report.
type Position struct {
	AlertType string
	ProfitPct decimal.Decimal
}

func FormatPerformanceReport(positions []Position) string {
	if len(positions) == 0 {
		return "📊 <b>PERFORMANCE REPORT</b>\n\nNo open opportunities at this time."
	}

	byType := make(map[string][]Position)
	for _, pos := range positions {
		byType[pos.AlertType] = append(byType[pos.AlertType], pos)
	}
	alertTypes := make([]string, 0, len(byType))
	for alertType := range byType {
		alertTypes = append(alertTypes, alertType)
	}
	sort.Strings(alertTypes)

	var b strings.Builder
	b.WriteString("📊 <b>CURRENT OPPORTUNITIES REPORT</b>\n\n")
	for _, alertType := range alertTypes {
		group := byType[alertType]
		avg, max := profitStats(group)
		fmt.Fprintf(&b, "<b>%s (%d)</b>\n", strings.ToUpper(alertType), len(group))
		fmt.Fprintf(&b, "Average Profit: %s%%\n", avg.StringFixed(2))
		fmt.Fprintf(&b, "Max Profit: %s%%\n\n", max.StringFixed(2))
	}
	overallAvg, _ := profitStats(positions)
	fmt.Fprintf(&b, "<b>OVERALL (%d opportunities)</b>\n", len(positions))
	fmt.Fprintf(&b, "Average Profit: %s%%\n", overallAvg.StringFixed(2))
	return b.String()
}

func FormatLeaderboard(board leaderboard.Board) string {
	var b strings.Builder
	b.WriteString("📈 <b>PERFORMANCE LEADERBOARD</b> 📈\n\n")
	fmt.Fprintf(&b, "Total Opportunities: %d\n\n", board.Summary.TotalOpportunities)

	b.WriteString("<b>Average Profit by Time Window:</b>\n")
	for _, stats := range board.Summary.Horizons {
		fmt.Fprintf(&b, "  %s: %s%%\n", stats.Label, stats.AvgReturnPct.StringFixed(2))
	}

	b.WriteString("\n<b>Top Performers:</b>\n")
	top := board.Top
	if len(top) > 5 {
		top = top[:5]
	}
	for _, entry := range top {
		ret := "n/a"
		if entry.RankReturn != nil {
			ret = entry.RankReturn.StringFixed(2) + "%"
		}
		fmt.Fprintf(&b, "%d. %s %s $%s - %s\n",
			entry.Rank,
			entry.Symbol,
			strings.ToUpper(entry.OptionType),
			entry.Strike.String(),
			ret,
		)
	}
	return b.String()
}

func probabilityEmoji(probability float64) string {
	switch {
	case probability >= 70:
		return "🔥"
	case probability >= 60:
		return "✅"
	case probability >= 40:
		return "⚠️"
	default:
		return "❌"
	}
}

func contractLine(opp *models.Opportunity) string {
	return fmt.Sprintf("%s %s %s %s",
		opp.Symbol,
		opp.OptionType,
		opp.Strike.String(),
		opp.Expiration.Format("2006-01-02"),
	)
}

func profitStats(positions []Position) (avg, max decimal.Decimal) {
	if len(positions) == 0 {
		return decimal.Zero, decimal.Zero
	}
	sum := decimal.Zero
	max = positions[0].ProfitPct
	for _, pos := range positions {
		sum = sum.Add(pos.ProfitPct)
		if pos.ProfitPct.GreaterThan(max) {
			max = pos.ProfitPct
		}
	}
	return sum.Div(decimal.NewFromInt(int64(len(positions)))), max
}

func groupInt(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	s = groupDigits(s)
	if neg {
		return "-" + s
	}
	return s
}

func groupMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	s = groupDigits(whole) + "." + frac
	if neg {
		return "-" + s
	}
	return s
}

func groupDigits(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
