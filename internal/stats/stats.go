// Package stats contains sales analytics and their text rendering.
package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/verte-zerg/bookdesk/internal/model"
)

// DefaultTopN is the length of the rankings.
const DefaultTopN = 5

const dateKeyLayout = "2006-01-02"

// RankWindow selects which sales feed the rankings.
type RankWindow string

// Rank windows.
const (
	RankAll   RankWindow = "all"
	RankMonth RankWindow = "month"
	RankToday RankWindow = "today"
)

// ParseRankWindow validates a rank window name.
func ParseRankWindow(value string) (RankWindow, error) {
	switch w := RankWindow(strings.ToLower(strings.TrimSpace(value))); w {
	case RankAll, RankMonth, RankToday:
		return w, nil
	case "":
		return RankAll, nil
	default:
		return "", fmt.Errorf("unknown rank window %q (want all, month or today)", value)
	}
}

// Options parameterizes Summarize.
type Options struct {
	TopN       int
	RankWindow RankWindow
}

// DefaultOptions returns the top-5 all-time configuration.
func DefaultOptions() Options {
	return Options{TopN: DefaultTopN, RankWindow: RankAll}
}

func (o Options) normalized() Options {
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.RankWindow == "" {
		o.RankWindow = RankAll
	}
	return o
}

// Summarize derives the dashboard metrics from one sales snapshot. Calendar
// boundaries are taken in now's location. Ranking ties keep input order.
func Summarize(sales []model.Sale, now time.Time, opts Options) model.Summary {
	opts = opts.normalized()
	loc := now.Location()
	ty, tm, td := now.Date()

	summary := model.Summary{
		Today:      model.DailySummary{Revenue: decimal.Zero},
		Month:      model.MonthlySummary{Revenue: decimal.Zero},
		TopBooks:   []model.RankedEntry{},
		TopSellers: []model.RankedEntry{},
		ByDate:     []model.DateBucket{},
	}
	books := newRanker()
	sellers := newRanker()
	perDay := map[string]decimal.Decimal{}

	for _, sale := range sales {
		var isToday, isMonth bool
		if !sale.Date.IsZero() {
			local := sale.Date.In(loc)
			y, m, d := local.Date()
			isMonth = y == ty && m == tm
			isToday = isMonth && d == td

			key := local.Format(dateKeyLayout)
			perDay[key] = perDay[key].Add(sale.Total)
		}
		if isToday {
			summary.Today.Count++
			summary.Today.Revenue = summary.Today.Revenue.Add(sale.Total)
		}
		if isMonth {
			summary.Month.Revenue = summary.Month.Revenue.Add(sale.Total)
		}
		if inWindow(opts.RankWindow, isToday, isMonth) {
			books.add(sale.Book.ID, sale.Book.Title, decimal.NewFromInt(int64(sale.Quantity)))
			sellers.add(sale.User.ID, sale.User.Name, sale.Total)
		}
	}

	summary.TopBooks = books.top(opts.TopN)
	summary.TopSellers = sellers.top(opts.TopN)
	summary.ByDate = positiveBuckets(perDay)
	return summary
}

func inWindow(w RankWindow, isToday, isMonth bool) bool {
	switch w {
	case RankToday:
		return isToday
	case RankMonth:
		return isMonth
	default:
		return true
	}
}

// BestSeller returns the label of the first ranked book, or "" when there is none.
func BestSeller(summary model.Summary) string {
	if len(summary.TopBooks) == 0 {
		return ""
	}
	return summary.TopBooks[0].Label
}

// Sparkline renders a single-line sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := seriesMinMaxSingle(values)
	if maxVal-minVal < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(pos*float64(len(sparkChars)-1) + 0.5)
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteRune(sparkChars[idx])
	}
	return b.String()
}

var sparkChars = []rune("▁▂▃▄▅▆▇█")

// BucketValues returns the totals of buckets as floats for plotting.
func BucketValues(buckets []model.DateBucket) []float64 {
	out := make([]float64, len(buckets))
	for i, b := range buckets {
		out[i] = b.Total.InexactFloat64()
	}
	return out
}
