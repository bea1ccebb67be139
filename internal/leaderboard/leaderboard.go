package leaderboard

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"optionscan/internal/backtest"
	"optionscan/internal/repository"
)

const groupTopN = 5

var (
	ten        = decimal.NewFromInt(10)
	twentyFive = decimal.NewFromInt(25)
	fifty      = decimal.NewFromInt(50)
	hundred    = decimal.NewFromInt(100)
)

type Options struct {
	// Horizons controls which labels appear in the summary, in order.
	Horizons []string
	// RankBy is the horizon label used for ordering and buckets.
	RankBy string
	TopN   int
}

type HorizonStats struct {
	Label        string          `json:"label"`
	Count        int             `json:"count"`
	AvgReturnPct decimal.Decimal `json:"avg_return_pct"`
	WinRatePct   decimal.Decimal `json:"win_rate_pct"`
}

type Buckets struct {
	Positive int `json:"gt_0"`
	Over10   int `json:"gt_10"`
	Over25   int `json:"gt_25"`
	Over50   int `json:"gt_50"`
}

type Summary struct {
	TotalOpportunities int             `json:"total_opportunities"`
	TotalNotional      decimal.Decimal `json:"total_notional"`
	RankBy             string          `json:"rank_by"`
	ByAlertType        map[string]int  `json:"by_alert_type"`
	ByStrategy         map[string]int  `json:"by_strategy"`
	Horizons           []HorizonStats  `json:"horizons"`
	Buckets            Buckets         `json:"profit_buckets"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

type Entry struct {
	Rank          int                        `json:"rank"`
	OpportunityID uint64                     `json:"opportunity_id"`
	Symbol        string                     `json:"symbol"`
	OptionType    string                     `json:"option_type"`
	Strike        decimal.Decimal            `json:"strike"`
	Expiration    time.Time                  `json:"expiration"`
	AlertType     string                     `json:"alert_type"`
	Strategy      string                     `json:"strategy"`
	DetectedAt    time.Time                  `json:"detected_at"`
	Returns       map[string]decimal.Decimal `json:"returns"`
	RankReturn    *decimal.Decimal           `json:"rank_return,omitempty"`
}

type Board struct {
	Summary     Summary            `json:"summary"`
	Top         []Entry            `json:"top"`
	ByAlertType map[string][]Entry `json:"by_alert_type"`
	ByStrategy  map[string][]Entry `json:"by_strategy"`
}

// Build reduces evaluated opportunities into a leaderboard. It is a
// pure function of its input: averages and win rates consider only the
// horizons actually present on each result, entries missing the ranking
// horizon sort after every entry that has it, and ties go to the
// earlier detection. Empty input yields a zeroed board, not an error.
func Build(rows []repository.EvaluatedOpportunity, opts Options) Board {
	horizons := opts.Horizons
	if len(horizons) == 0 {
		horizons = []string{"1m", "5m", "10m", "15m", "20m", "30m", "1h"}
	}
	rankBy := opts.RankBy
	if rankBy == "" {
		rankBy = "1h"
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = 10
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		returns := backtest.DecodeHorizons(row.Result.Horizons)
		entry := Entry{
			OpportunityID: row.Opportunity.ID,
			Symbol:        row.Opportunity.Symbol,
			OptionType:    row.Opportunity.OptionType,
			Strike:        row.Opportunity.Strike,
			Expiration:    row.Opportunity.Expiration,
			AlertType:     row.Opportunity.AlertType,
			Strategy:      row.Opportunity.Strategy,
			DetectedAt:    row.Opportunity.DetectedAt,
			Returns:       returns,
		}
		if ret, ok := returns[rankBy]; ok {
			entry.RankReturn = &ret
		}
		entries = append(entries, entry)
	}

	board := Board{
		Summary: Summary{
			TotalOpportunities: len(entries),
			RankBy:             rankBy,
			ByAlertType:        make(map[string]int),
			ByStrategy:         make(map[string]int),
			GeneratedAt:        time.Now().UTC(),
		},
		ByAlertType: make(map[string][]Entry),
		ByStrategy:  make(map[string][]Entry),
	}

	for _, label := range horizons {
		board.Summary.Horizons = append(board.Summary.Horizons, horizonStats(entries, label))
	}
	for i, entry := range entries {
		board.Summary.TotalNotional = board.Summary.TotalNotional.Add(rows[i].Opportunity.NotionalValue)
		board.Summary.ByAlertType[entry.AlertType]++
		board.Summary.ByStrategy[entry.Strategy]++
		if entry.RankReturn != nil {
			bucket(&board.Summary.Buckets, *entry.RankReturn)
		}
	}

	board.Top = rank(entries, topN)
	for alertType := range board.Summary.ByAlertType {
		board.ByAlertType[alertType] = rank(filter(entries, func(e Entry) bool { return e.AlertType == alertType }), groupTopN)
	}
	for strategy := range board.Summary.ByStrategy {
		board.ByStrategy[strategy] = rank(filter(entries, func(e Entry) bool { return e.Strategy == strategy }), groupTopN)
	}
	return board
}

func horizonStats(entries []Entry, label string) HorizonStats {
	stats := HorizonStats{Label: label}
	sum := decimal.Zero
	wins := 0
	for _, entry := range entries {
		ret, ok := entry.Returns[label]
		if !ok {
			continue
		}
		stats.Count++
		sum = sum.Add(ret)
		if ret.GreaterThan(decimal.Zero) {
			wins++
		}
	}
	if stats.Count > 0 {
		count := decimal.NewFromInt(int64(stats.Count))
		stats.AvgReturnPct = sum.Div(count).Round(4)
		stats.WinRatePct = decimal.NewFromInt(int64(wins)).Mul(hundred).Div(count).Round(2)
	}
	return stats
}

func bucket(b *Buckets, ret decimal.Decimal) {
	if ret.GreaterThan(decimal.Zero) {
		b.Positive++
	}
	if ret.GreaterThan(ten) {
		b.Over10++
	}
	if ret.GreaterThan(twentyFive) {
		b.Over25++
	}
	if ret.GreaterThan(fifty) {
		b.Over50++
	}
}

func rank(entries []Entry, topN int) []Entry {
	ranked := make([]Entry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].RankReturn, ranked[j].RankReturn
		switch {
		case a != nil && b != nil:
			if !a.Equal(*b) {
				return a.GreaterThan(*b)
			}
			return ranked[i].DetectedAt.Before(ranked[j].DetectedAt)
		case a != nil:
			return true
		case b != nil:
			return false
		default:
			return ranked[i].DetectedAt.Before(ranked[j].DetectedAt)
		}
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func filter(entries []Entry, keep func(Entry) bool) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if keep(entry) {
			out = append(out, entry)
		}
	}
	return out
}
