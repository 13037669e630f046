package metrics

import (
	"math"
	"sort"

	"finanse/internal/core"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// stableBand is the fraction of the mean a slope must exceed to count as a
// direction.
const stableBand = 0.01

type TrendResult struct {
	Slope                  float64   `json:"slope"`
	Direction              Direction `json:"direction"`
	PercentChangePerPeriod float64   `json:"percent_change_per_period"`
	BaselineAverage        float64   `json:"baseline_average"`
}

// LinearTrend fits an ordinary least-squares line over the indices
// 0..n-1 of values. Spacing is assumed even; calendar gaps are ignored.
// Fewer than two points yield a zero slope and DirectionStable.
func LinearTrend(values []float64) TrendResult {
	n := len(values)
	res := TrendResult{Direction: DirectionStable, BaselineAverage: Mean(values)}
	if n < 2 {
		return res
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	nf := float64(n)
	denom := nf*sumX2 - sumX*sumX
	if denom == 0 {
		return res
	}
	res.Slope = (nf*sumXY - sumX*sumY) / denom

	// The band is taken on |mean| so a negative baseline (net debt) does not
	// invert the comparison.
	band := stableBand * math.Abs(res.BaselineAverage)
	switch {
	case res.Slope > band:
		res.Direction = DirectionUp
	case res.Slope < -band:
		res.Direction = DirectionDown
	}
	if res.BaselineAverage != 0 {
		res.PercentChangePerPeriod = res.Slope / math.Abs(res.BaselineAverage) * 100
	}
	return res
}

// MonthComparison diffs a month against the previous one. When HasPrevious
// is false every Change is zero and must not be read as "no change".
type MonthComparison struct {
	Income      Change `json:"income"`
	Expenses    Change `json:"expenses"`
	Balance     Change `json:"balance"`
	HasPrevious bool   `json:"has_previous"`
}

func CompareMonths(current core.MonthSummary, previous *core.MonthSummary) MonthComparison {
	if previous == nil {
		return MonthComparison{}
	}
	return MonthComparison{
		Income:      PercentChange(current.Income, previous.Income),
		Expenses:    PercentChange(current.Expenses, previous.Expenses),
		Balance:     PercentChange(current.Balance(), previous.Balance()),
		HasPrevious: true,
	}
}

type AverageDiff struct {
	Change
	IsAbove bool `json:"is_above"`
}

type AverageComparison struct {
	Income   AverageDiff `json:"income"`
	Expenses AverageDiff `json:"expenses"`
	Balance  AverageDiff `json:"balance"`
}

// CompareWithAverage diffs a month against average figures.
func CompareWithAverage(current, averages core.MonthSummary) AverageComparison {
	diff := func(cur, avg decimal.Decimal) AverageDiff {
		c := PercentChange(cur, avg)
		return AverageDiff{Change: c, IsAbove: c.Delta.IsPositive()}
	}
	return AverageComparison{
		Income:   diff(current.Income, averages.Income),
		Expenses: diff(current.Expenses, averages.Expenses),
		Balance:  diff(current.Balance(), averages.Balance()),
	}
}

// AverageSummary averages income and expenses over the given months.
func AverageSummary(months []core.MonthSummary) core.MonthSummary {
	if len(months) == 0 {
		return core.MonthSummary{}
	}
	var income, expenses decimal.Decimal
	for _, m := range months {
		income = income.Add(m.Income)
		expenses = expenses.Add(m.Expenses)
	}
	n := decimal.NewFromInt(int64(len(months)))
	return core.MonthSummary{Income: income.Div(n), Expenses: expenses.Div(n)}
}

// SeasonalPoint is a value observed in a calendar month (1-12).
type SeasonalPoint struct {
	Month int
	Value float64
}

type SeasonalEntry struct {
	AverageValue                      float64 `json:"average_value"`
	VarianceFromOverallAveragePercent float64 `json:"variance_percent"`
	Samples                           int     `json:"samples"`
}

// SeasonalityTable maps a calendar month to its seasonal profile.
type SeasonalityTable map[int]SeasonalEntry

// Seasonality averages values per calendar month and compares each month
// with the mean of all points. The overall mean weights every point
// equally, so months with more samples pull it harder. Points outside
// months 1-12 are ignored.
func Seasonality(points []SeasonalPoint) SeasonalityTable {
	table := SeasonalityTable{}
	sums := map[int]float64{}
	counts := map[int]int{}
	var total float64
	var n int
	for _, p := range points {
		if p.Month < 1 || p.Month > 12 {
			continue
		}
		sums[p.Month] += p.Value
		counts[p.Month]++
		total += p.Value
		n++
	}
	if n == 0 {
		return table
	}
	overall := total / float64(n)
	for month, count := range counts {
		avg := sums[month] / float64(count)
		e := SeasonalEntry{AverageValue: avg, Samples: count}
		if overall != 0 {
			e.VarianceFromOverallAveragePercent = (avg - overall) / math.Abs(overall) * 100
		}
		table[month] = e
	}
	return table
}

// ExpensePoints turns monthly summaries into seasonal expense points.
func ExpensePoints(months []core.MonthSummary) []SeasonalPoint {
	out := make([]SeasonalPoint, 0, len(months))
	for _, m := range months {
		out = append(out, SeasonalPoint{Month: m.Period.Month, Value: m.Expenses.InexactFloat64()})
	}
	return out
}

const (
	driftWindow     = 3
	driftMinPercent = 5.0
)

type Drift struct {
	Category      string  `json:"category"`
	RecentAvg     float64 `json:"recent_avg"`
	PriorAvg      float64 `json:"prior_avg"`
	PercentChange float64 `json:"percent_change"`
}

// CategoryDrift compares the average of the last three periods with the
// three before them, per category. periods must be in ascending order.
// Categories with no prior spend or a change of at most 5% are dropped.
// With fewer than four periods the prior window is shorter; with one or
// none there is nothing to compare.
func CategoryDrift(periods []CategoryTotals) []Drift {
	if len(periods) < 2 {
		return nil
	}
	split := len(periods) - driftWindow
	if split < 1 {
		split = 1
	}
	recent := periods[split:]
	priorStart := split - driftWindow
	if priorStart < 0 {
		priorStart = 0
	}
	prior := periods[priorStart:split]

	recentAvg := AverageByCategory(recent)
	priorAvg := AverageByCategory(prior)

	var out []Drift
	for cat, pAvg := range priorAvg {
		if pAvg <= 0 {
			continue
		}
		rAvg := recentAvg[cat]
		pct := (rAvg - pAvg) / pAvg * 100
		if math.Abs(pct) <= driftMinPercent {
			continue
		}
		out = append(out, Drift{Category: cat, RecentAvg: rAvg, PriorAvg: pAvg, PercentChange: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].PercentChange), math.Abs(out[j].PercentChange)
		if ai != aj {
			return ai > aj
		}
		return out[i].Category < out[j].Category
	})
	return out
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DefaultAnomalyThreshold flags categories 15% above their average.
const DefaultAnomalyThreshold = 0.15

type Anomaly struct {
	Category  string   `json:"category"`
	Current   float64  `json:"current"`
	Average   float64  `json:"average"`
	Deviation float64  `json:"deviation"`
	Severity  Severity `json:"severity"`
}

// FindAnomalies reports categories whose current spend exceeds their
// historical average by more than threshold (a ratio, 0.15 = 15%). A
// non-positive threshold means DefaultAnomalyThreshold. Categories without
// a positive average are skipped. Results are sorted by deviation, largest
// first, then by category name.
func FindAnomalies(current, averages map[string]float64, threshold float64) []Anomaly {
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}
	var out []Anomaly
	for cat, cur := range current {
		avg := averages[cat]
		if avg <= 0 {
			continue
		}
		dev := (cur - avg) / avg
		if dev <= threshold {
			continue
		}
		out = append(out, Anomaly{
			Category:  cat,
			Current:   cur,
			Average:   avg,
			Deviation: dev,
			Severity:  severityOf(dev),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Deviation != out[j].Deviation {
			return out[i].Deviation > out[j].Deviation
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func severityOf(dev float64) Severity {
	switch {
	case dev > 0.5:
		return SeverityHigh
	case dev > 0.25:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

type PeriodValue struct {
	Period core.Period     `json:"period"`
	Value  decimal.Decimal `json:"value"`
}

// NetWorthSeries values each month by its latest asset snapshot: the
// records dated on the last snapshot day of the month are summed, with
// liability categories subtracted. Earlier snapshots in the same month are
// superseded, not added. Months are in ascending order.
func NetWorthSeries(records []core.Record, cats core.CategorySet) []PeriodValue {
	latest := map[core.Period]core.Date{}
	for _, r := range records {
		if r.Kind != core.KindAsset {
			continue
		}
		p := r.Date.Period()
		if d, ok := latest[p]; !ok || r.Date.After(d.Time) {
			latest[p] = r.Date
		}
	}

	byPeriod := make(map[core.Period]decimal.Decimal, len(latest))
	for _, r := range records {
		if r.Kind != core.KindAsset {
			continue
		}
		p := r.Date.Period()
		if !r.Date.Equal(latest[p].Time) {
			continue
		}
		byPeriod[p] = byPeriod[p].Add(cats.SignedValue(r.Category, r.AmountBase))
	}
	out := make([]PeriodValue, 0, len(byPeriod))
	for p, v := range byPeriod {
		out = append(out, PeriodValue{Period: p, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out
}

// Floats extracts the values of a series for LinearTrend.
func Floats(series []PeriodValue) []float64 {
	out := make([]float64, len(series))
	for i, pv := range series {
		out[i] = pv.Value.InexactFloat64()
	}
	return out
}

// SavingsRate is the share of income not spent, in percent. ok is false
// when there is no positive income to measure against.
func SavingsRate(income, expenses decimal.Decimal) (rate float64, ok bool) {
	if !income.IsPositive() {
		return 0, false
	}
	return income.Sub(expenses).Div(income).Mul(decimal.NewFromInt(100)).InexactFloat64(), true
}
