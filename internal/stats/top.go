package stats

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/verte-zerg/bookdesk/internal/model"
)

// ranker accumulates a metric per key, remembering first-seen order and label.
type ranker struct {
	index   map[string]int
	entries []model.RankedEntry
}

func newRanker() *ranker {
	return &ranker{index: map[string]int{}}
}

func (r *ranker) add(key, label string, metric decimal.Decimal) {
	if i, ok := r.index[key]; ok {
		r.entries[i].Metric = r.entries[i].Metric.Add(metric)
		return
	}
	r.index[key] = len(r.entries)
	r.entries = append(r.entries, model.RankedEntry{Key: key, Label: label, Metric: metric})
}

// top returns up to n entries by descending metric. Ties keep first-seen order.
func (r *ranker) top(n int) []model.RankedEntry {
	items := make([]model.RankedEntry, len(r.entries))
	copy(items, r.entries)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Metric.GreaterThan(items[j].Metric)
	})
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}

// positiveBuckets returns the strictly positive per-day totals in ascending date order.
func positiveBuckets(perDay map[string]decimal.Decimal) []model.DateBucket {
	out := make([]model.DateBucket, 0, len(perDay))
	for date, total := range perDay {
		if !total.IsPositive() {
			continue
		}
		out = append(out, model.DateBucket{Date: date, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
