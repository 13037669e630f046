// Package milestones detects when net-worth or category targets are reached
// and estimates how long the pending ones will take.
package milestones

import (
	"sort"
	"strings"

	"finanse/internal/core"
	"finanse/internal/metrics"

	"github.com/shopspring/decimal"
)

// DefaultGrowthRatePercent is the monthly growth assumed when the history
// is too short to measure one. Estimates using it are LowConfidence.
const DefaultGrowthRatePercent = 2.0

// minGrowthSamples is the number of usable period-over-period changes
// needed before a measured rate replaces the default.
const minGrowthSamples = 2

// Values holds the latest aggregate for every milestone scope.
type Values struct {
	NetWorth   decimal.Decimal
	ByCategory map[string]decimal.Decimal // keyed by lower-cased category
}

// For returns the value a milestone scope is compared against.
func (v Values) For(scope string) (decimal.Decimal, bool) {
	if isAll(scope) {
		return v.NetWorth, true
	}
	val, ok := v.ByCategory[scopeKey(scope)]
	return val, ok
}

// ValuesFromRecords aggregates current-state records (one per asset) into
// scope values. Liabilities are subtracted from net worth; per category the
// stored magnitude is kept.
func ValuesFromRecords(records []core.Record, cats core.CategorySet) Values {
	v := Values{ByCategory: map[string]decimal.Decimal{}}
	for _, r := range records {
		v.NetWorth = v.NetWorth.Add(cats.SignedValue(r.Category, r.AmountBase))
		k := scopeKey(r.Category)
		v.ByCategory[k] = v.ByCategory[k].Add(r.AmountBase)
	}
	return v
}

// Transition records a milestone moving to achieved.
type Transition struct {
	MilestoneID  string          `json:"milestone_id"`
	Category     string          `json:"category"`
	Target       decimal.Decimal `json:"target"`
	Current      decimal.Decimal `json:"current"`
	AchievedDate core.Date       `json:"achieved_date"`
	// Backfilled is false when the history never crossed the target and
	// the achievement carries no date.
	Backfilled bool `json:"backfilled"`
}

type Tracker struct {
	Categories core.CategorySet
}

func NewTracker(cats core.CategorySet) Tracker {
	return Tracker{Categories: cats}
}

// Evaluate achieves every pending milestone whose scope value meets its
// target, in place, and returns the transitions made. The achievement date
// is the first date in series where the running total meets the target.
// Already achieved milestones are never touched.
func (t Tracker) Evaluate(ms []core.Milestone, current Values, series []core.Record) []Transition {
	var out []Transition
	for i := range ms {
		m := &ms[i]
		if m.IsAchieved() {
			continue
		}
		val, ok := current.For(m.Category)
		if !ok || val.LessThan(m.TargetValue) {
			continue
		}
		date, found := FindAchievementDate(m.TargetValue, series, m.Category, t.Categories)
		if !m.Achieve(date) {
			continue
		}
		out = append(out, Transition{
			MilestoneID:  m.ID,
			Category:     m.Category,
			Target:       m.TargetValue,
			Current:      val,
			AchievedDate: date,
			Backfilled:   found,
		})
	}
	return out
}

// FindAchievementDate scans series in ascending date order and returns the
// first date at which the running total of all entries up to and
// including that date meets target. For the "all" scope liability
// categories subtract their magnitude. ok is false when the total never
// gets there.
func FindAchievementDate(target decimal.Decimal, series []core.Record, scope string, cats core.CategorySet) (core.Date, bool) {
	scoped := filterScope(series, scope)
	if !isAll(scope) {
		cats = core.CategorySet{}
	}
	sort.SliceStable(scoped, func(i, j int) bool { return scoped[i].Date.Before(scoped[j].Date.Time) })

	total := decimal.Zero
	for i, r := range scoped {
		total = total.Add(cats.SignedValue(r.Category, r.AmountBase))
		if i+1 < len(scoped) && scoped[i+1].Date.Equal(r.Date.Time) {
			continue
		}
		if total.GreaterThanOrEqual(target) {
			return r.Date, true
		}
	}
	return core.Date{}, false
}

// ScopeSeries returns one value per month for a scope: the net worth for
// "all", the category total otherwise.
func ScopeSeries(series []core.Record, scope string, cats core.CategorySet) []float64 {
	if !isAll(scope) {
		cats = core.CategorySet{}
	}
	return metrics.Floats(metrics.NetWorthSeries(filterScope(series, scope), cats))
}

type GrowthEstimate struct {
	RatePercent   float64 `json:"rate_percent"`
	Samples       int     `json:"samples"`
	LowConfidence bool    `json:"low_confidence"`
}

// EstimateGrowthRate averages the period-over-period percent changes of
// values, skipping changes from a non-positive prior value. With fewer
// than two usable changes it returns DefaultGrowthRatePercent flagged as
// LowConfidence.
func EstimateGrowthRate(values []float64) GrowthEstimate {
	var changes []float64
	for i := 1; i < len(values); i++ {
		prior := values[i-1]
		if prior <= 0 {
			continue
		}
		changes = append(changes, (values[i]-prior)/prior*100)
	}
	if len(changes) < minGrowthSamples {
		return GrowthEstimate{RatePercent: DefaultGrowthRatePercent, Samples: len(changes), LowConfidence: true}
	}
	return GrowthEstimate{RatePercent: metrics.Mean(changes), Samples: len(changes)}
}

type MilestoneProgress struct {
	MilestoneID   string          `json:"milestone_id"`
	Category      string          `json:"category"`
	Target        decimal.Decimal `json:"target"`
	Current       decimal.Decimal `json:"current"`
	Remaining     decimal.Decimal `json:"remaining"`
	Percent       float64         `json:"percent"`
	Achieved      bool            `json:"achieved"`
	AchievedDate  core.Date       `json:"achieved_date"`
	MonthsLeft    int             `json:"months_left"`
	HasProjection bool            `json:"has_projection"`
	RatePercent   float64         `json:"rate_percent"`
	LowConfidence bool            `json:"low_confidence"`
}

// Progress measures a milestone against the current scope value and
// projects the months left at the estimated growth rate.
func Progress(m core.Milestone, current decimal.Decimal, est GrowthEstimate) MilestoneProgress {
	p := MilestoneProgress{
		MilestoneID:   m.ID,
		Category:      m.Category,
		Target:        m.TargetValue,
		Current:       current,
		Achieved:      m.IsAchieved(),
		AchievedDate:  m.AchievedDate,
		RatePercent:   est.RatePercent,
		LowConfidence: est.LowConfidence,
	}
	if m.TargetValue.IsPositive() {
		p.Percent = current.Div(m.TargetValue).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	if remaining := m.TargetValue.Sub(current); remaining.IsPositive() {
		p.Remaining = remaining
	}
	if !p.Achieved {
		p.MonthsLeft, p.HasProjection = metrics.MonthsToTarget(current.InexactFloat64(), m.TargetValue.InexactFloat64(), est.RatePercent)
	}
	return p
}

func filterScope(series []core.Record, scope string) []core.Record {
	out := make([]core.Record, 0, len(series))
	all := isAll(scope)
	key := scopeKey(scope)
	for _, r := range series {
		if r.Kind != core.KindAsset {
			continue
		}
		if all || scopeKey(r.Category) == key {
			out = append(out, r)
		}
	}
	return out
}

func isAll(scope string) bool {
	return scopeKey(scope) == core.ScopeAll
}

func scopeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
