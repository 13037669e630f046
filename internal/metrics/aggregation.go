// Package metrics derives financial figures from historical records.
//
// Every function in this package is pure: inputs are snapshots supplied by
// the caller and nothing is read from or written to a store. Money stays in
// decimal.Decimal; statistics (slopes, percentages, ratios) are float64.
// Empty input always yields a defined zero value, never a panic.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"finanse/internal/core"

	"github.com/shopspring/decimal"
)

// OrderedSums holds per-key totals with keys in first-seen order.
type OrderedSums[K comparable] struct {
	Keys []K
	Sums map[K]decimal.Decimal
}

// Get returns the total for k, zero when k never appeared.
func (o OrderedSums[K]) Get(k K) decimal.Decimal {
	return o.Sums[k]
}

func (o OrderedSums[K]) Len() int {
	return len(o.Keys)
}

// Total is the sum over every key.
func (o OrderedSums[K]) Total() decimal.Decimal {
	total := decimal.Zero
	for _, k := range o.Keys {
		total = total.Add(o.Sums[k])
	}
	return total
}

// SumByKey sums AmountBase per key in a single pass. Keys keep the order in
// which they first appear; no record is filtered out.
func SumByKey[K comparable](records []core.Record, key func(core.Record) K) OrderedSums[K] {
	out := OrderedSums[K]{Sums: make(map[K]decimal.Decimal)}
	for _, r := range records {
		k := key(r)
		sum, seen := out.Sums[k]
		if !seen {
			out.Keys = append(out.Keys, k)
		}
		out.Sums[k] = sum.Add(r.AmountBase)
	}
	return out
}

// Dimension enumerates the supported grouping keys.
type Dimension int

const (
	ByCategory Dimension = iota
	BySubcategory
	ByCurrency
	ByMonth
	ByKind
)

var dimensionNames = map[Dimension]string{
	ByCategory:    "category",
	BySubcategory: "subcategory",
	ByCurrency:    "currency",
	ByMonth:       "month",
	ByKind:        "kind",
}

func (d Dimension) String() string {
	if name, ok := dimensionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("dimension(%d)", int(d))
}

// ParseDimension maps a name such as "category" to its Dimension.
func ParseDimension(s string) (Dimension, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d, name := range dimensionNames {
		if name == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown grouping dimension %q", s)
}

// Key extracts the grouping key of r for this dimension.
func (d Dimension) Key(r core.Record) string {
	switch d {
	case ByCategory:
		return r.Category
	case BySubcategory:
		return r.Subcategory
	case ByCurrency:
		return r.Currency
	case ByMonth:
		return r.Date.Period().String()
	case ByKind:
		return string(r.Kind)
	}
	return ""
}

// GroupBy sums records along a dimension.
func GroupBy(records []core.Record, d Dimension) OrderedSums[string] {
	return SumByKey(records, d.Key)
}

// Change compares a value with a baseline. When the baseline is zero or
// missing HasBaseline is false and Percent is 0; callers must check the
// flag before presenting Percent as "no change".
type Change struct {
	Delta       decimal.Decimal `json:"delta"`
	Percent     float64         `json:"percent"`
	HasBaseline bool            `json:"has_baseline"`
}

// PercentChange computes (current-previous)/previous*100. The divisor
// keeps its sign, so with a negative previous value (a deficit month) the
// percent has the opposite sign of Delta; read Delta for the direction.
func PercentChange(current, previous decimal.Decimal) Change {
	c := Change{Delta: current.Sub(previous)}
	if previous.IsZero() {
		return c
	}
	c.HasBaseline = true
	c.Percent = c.Delta.Div(previous).Mul(decimal.NewFromInt(100)).InexactFloat64()
	return c
}

// Mean is the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// MeanDecimal is the arithmetic mean of decimals, zero for an empty slice.
func MeanDecimal(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, values...).Div(decimal.NewFromInt(int64(len(values))))
}

// Share is one key's portion of a total.
type Share struct {
	Key     string          `json:"key"`
	Amount  decimal.Decimal `json:"amount"`
	Percent float64         `json:"percent"`
}

// Shares expresses each key as a percentage of the grand total, in key order.
func Shares(sums OrderedSums[string]) []Share {
	total := sums.Total()
	out := make([]Share, 0, sums.Len())
	for _, k := range sums.Keys {
		s := Share{Key: k, Amount: sums.Sums[k]}
		if !total.IsZero() {
			s.Percent = s.Amount.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		out = append(out, s)
	}
	return out
}

// MonthlySummaries folds income and expense records into one summary per
// month, sorted ascending. Expense magnitudes are used whatever their sign.
func MonthlySummaries(records []core.Record) []core.MonthSummary {
	byPeriod := map[core.Period]*core.MonthSummary{}
	for _, r := range records {
		if r.Kind != core.KindIncome && r.Kind != core.KindExpense {
			continue
		}
		p := r.Date.Period()
		s, ok := byPeriod[p]
		if !ok {
			s = &core.MonthSummary{Period: p}
			byPeriod[p] = s
		}
		if r.Kind == core.KindIncome {
			s.Income = s.Income.Add(r.AmountBase)
		} else {
			s.Expenses = s.Expenses.Add(r.AmountBase.Abs())
		}
	}
	out := make([]core.MonthSummary, 0, len(byPeriod))
	for _, s := range byPeriod {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out
}

// CategoryTotals is the per-category spending of one period.
type CategoryTotals struct {
	Period core.Period
	Totals map[string]float64
}

// CategoryTotalsByPeriod groups records of the given kind per month and
// category, sorted ascending by month.
func CategoryTotalsByPeriod(records []core.Record, kind core.RecordKind) []CategoryTotals {
	byPeriod := map[core.Period]map[string]float64{}
	for _, r := range records {
		if r.Kind != kind {
			continue
		}
		p := r.Date.Period()
		if byPeriod[p] == nil {
			byPeriod[p] = map[string]float64{}
		}
		byPeriod[p][r.Category] += r.AmountBase.Abs().InexactFloat64()
	}
	out := make([]CategoryTotals, 0, len(byPeriod))
	for p, totals := range byPeriod {
		out = append(out, CategoryTotals{Period: p, Totals: totals})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out
}

// AverageByCategory averages each category over all given periods; a
// period without the category counts as zero.
func AverageByCategory(periods []CategoryTotals) map[string]float64 {
	out := map[string]float64{}
	if len(periods) == 0 {
		return out
	}
	for _, p := range periods {
		for cat, v := range p.Totals {
			out[cat] += v
		}
	}
	for cat := range out {
		out[cat] /= float64(len(periods))
	}
	return out
}
