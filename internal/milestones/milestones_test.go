package milestones

import (
	"testing"
	"time"

	"finanse/internal/core"

	"github.com/shopspring/decimal"
)

func snap(y, m, d int, cat string, amount int64) core.Record {
	return core.Record{
		Date:       core.NewDate(y, m, d),
		Kind:       core.KindAsset,
		Category:   cat,
		Amount:     decimal.NewFromInt(amount),
		Currency:   "PLN",
		AmountBase: decimal.NewFromInt(amount),
	}
}

func mustMilestone(t *testing.T, id string, target int64, scope string) core.Milestone {
	t.Helper()
	m, err := core.NewMilestone(id, decimal.NewFromInt(target), scope, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewMilestone: %v", err)
	}
	return m
}

func TestFindAchievementDate(t *testing.T) {
	cats := core.DefaultCategories()
	series := []core.Record{
		snap(2024, 3, 1, "ETF", 400),
		snap(2024, 1, 1, "ETF", 500),
		snap(2024, 2, 1, "Długi", 200),
		snap(2024, 3, 1, "Długi", 100),
		{Date: core.NewDate(2024, 2, 1), Kind: core.KindIncome, Category: "ETF", AmountBase: decimal.NewFromInt(10000)},
	}

	tests := []struct {
		name   string
		target int64
		scope  string
		want   core.Date
		ok     bool
	}{
		// all: 500, 300, 600 (both March entries counted before checking)
		{"net worth first month", 500, core.ScopeAll, core.NewDate(2024, 1, 1), true},
		{"net worth after debt", 600, core.ScopeAll, core.NewDate(2024, 3, 1), true},
		{"net worth never", 601, core.ScopeAll, core.Date{}, false},
		{"category ignores others", 900, "etf", core.NewDate(2024, 3, 1), true},
		{"liability category by magnitude", 300, "Długi", core.NewDate(2024, 3, 1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindAchievementDate(decimal.NewFromInt(tt.target), series, tt.scope, cats)
			if ok != tt.ok || !got.Equal(tt.want.Time) {
				t.Errorf("got %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTrackerEvaluate(t *testing.T) {
	cats := core.DefaultCategories()
	series := []core.Record{
		snap(2024, 1, 1, "ETF", 1000),
		snap(2024, 2, 1, "ETF", 1000),
	}
	current := ValuesFromRecords([]core.Record{
		snap(2024, 6, 1, "ETF", 5000),
		snap(2024, 6, 1, "Długi", 1000),
	}, cats)
	if !current.NetWorth.Equal(decimal.NewFromInt(4000)) {
		t.Fatalf("net worth = %s", current.NetWorth)
	}

	done := mustMilestone(t, "done", 10, core.ScopeAll)
	done.Achieve(core.NewDate(2020, 1, 1))
	ms := []core.Milestone{
		mustMilestone(t, "reached", 2000, core.ScopeAll),
		mustMilestone(t, "gap", 3000, "ETF"),
		mustMilestone(t, "pending", 10000, core.ScopeAll),
		mustMilestone(t, "unknown", 1, "Kryptowaluty"),
		done,
	}

	got := NewTracker(cats).Evaluate(ms, current, series)
	if len(got) != 2 {
		t.Fatalf("transitions = %+v", got)
	}
	if got[0].MilestoneID != "reached" || !got[0].Backfilled || !got[0].AchievedDate.Equal(core.NewDate(2024, 2, 1).Time) {
		t.Errorf("reached = %+v", got[0])
	}
	if got[1].MilestoneID != "gap" || got[1].Backfilled || !got[1].AchievedDate.IsEmpty() {
		t.Errorf("gap = %+v", got[1])
	}
	if !ms[0].IsAchieved() || !ms[1].IsAchieved() || ms[2].IsAchieved() || ms[3].IsAchieved() {
		t.Errorf("statuses = %+v", ms)
	}
	if !ms[4].AchievedDate.Equal(core.NewDate(2020, 1, 1).Time) {
		t.Errorf("achieved milestone was touched: %+v", ms[4])
	}

	if again := NewTracker(cats).Evaluate(ms, current, series); len(again) != 0 {
		t.Errorf("second evaluation should be a no-op, got %+v", again)
	}
}

func TestEstimateGrowthRate(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		rate    float64
		samples int
		low     bool
	}{
		{"measured", []float64{100, 110, 121}, 10, 2, false},
		{"skips non-positive prior", []float64{0, 100, 110, 121}, 10, 2, false},
		{"too short", []float64{100, 150}, DefaultGrowthRatePercent, 1, true},
		{"empty", nil, DefaultGrowthRatePercent, 0, true},
		{"only negatives", []float64{-5, -3, -1}, DefaultGrowthRatePercent, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateGrowthRate(tt.values)
			if got.LowConfidence != tt.low || got.Samples != tt.samples {
				t.Fatalf("got %+v", got)
			}
			if d := got.RatePercent - tt.rate; d > 1e-9 || d < -1e-9 {
				t.Fatalf("rate = %v, want %v", got.RatePercent, tt.rate)
			}
		})
	}
}

func TestScopeSeries(t *testing.T) {
	series := []core.Record{
		snap(2024, 1, 1, "ETF", 100),
		snap(2024, 1, 1, "Długi", 40),
		snap(2024, 2, 1, "ETF", 120),
	}
	all := ScopeSeries(series, "all", core.DefaultCategories())
	if len(all) != 2 || all[0] != 60 || all[1] != 120 {
		t.Fatalf("all = %v", all)
	}
	debt := ScopeSeries(series, "Długi", core.DefaultCategories())
	if len(debt) != 1 || debt[0] != 40 {
		t.Fatalf("debt = %v", debt)
	}
}

func TestScopeSeriesWithWeeklySnapshots(t *testing.T) {
	var series []core.Record
	for _, d := range []int{7, 14, 21, 28} {
		series = append(series, snap(2024, 1, d, "Konta", 1000))
	}
	for _, d := range []int{4, 11} {
		series = append(series, snap(2024, 2, d, "Konta", 1100))
	}

	for _, scope := range []string{core.ScopeAll, "Konta"} {
		got := ScopeSeries(series, scope, core.DefaultCategories())
		if len(got) != 2 || got[0] != 1000 || got[1] != 1100 {
			t.Fatalf("%s series = %v", scope, got)
		}
		if est := EstimateGrowthRate(got); est.Samples != 1 || !est.LowConfidence {
			t.Fatalf("%s estimate = %+v", scope, est)
		}
	}
}

func TestProgress(t *testing.T) {
	m := mustMilestone(t, "m", 2000, core.ScopeAll)
	p := Progress(m, decimal.NewFromInt(1000), GrowthEstimate{RatePercent: 10})
	if !p.HasProjection || p.MonthsLeft != 8 || p.LowConfidence {
		t.Fatalf("progress = %+v", p)
	}
	if p.Percent != 50 || !p.Remaining.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("progress = %+v", p)
	}

	low := Progress(m, decimal.NewFromInt(1000), EstimateGrowthRate(nil))
	if !low.LowConfidence || !low.HasProjection {
		t.Fatalf("fallback projection should be flagged, got %+v", low)
	}

	m.Achieve(core.NewDate(2024, 5, 1))
	done := Progress(m, decimal.NewFromInt(2500), GrowthEstimate{RatePercent: 10})
	if done.HasProjection || !done.Remaining.IsZero() || !done.Achieved {
		t.Fatalf("achieved progress = %+v", done)
	}
}
