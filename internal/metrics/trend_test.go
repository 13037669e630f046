package metrics

import (
	"testing"

	"finanse/internal/core"

	"github.com/shopspring/decimal"
)

func TestLinearTrend(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		slope     float64
		direction Direction
		pct       float64
	}{
		{"rising", []float64{1000, 1100, 1200, 1300}, 100, DirectionUp, 100.0 / 1150 * 100},
		{"falling", []float64{400, 300, 200, 100}, -100, DirectionDown, -40},
		{"flat", []float64{500, 500, 500, 500, 500}, 0, DirectionStable, 0},
		{"all zero", []float64{0, 0, 0}, 0, DirectionStable, 0},
		{"inside band", []float64{1000, 1005, 1000, 1005}, 1, DirectionStable, 1.0 / 1002.5 * 100},
		{"single point", []float64{42}, 0, DirectionStable, 0},
		{"empty", nil, 0, DirectionStable, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LinearTrend(tt.values)
			if !approx(got.Slope, tt.slope, 1e-9) {
				t.Errorf("Slope = %v, want %v", got.Slope, tt.slope)
			}
			if got.Direction != tt.direction {
				t.Errorf("Direction = %v, want %v", got.Direction, tt.direction)
			}
			if !approx(got.PercentChangePerPeriod, tt.pct, 1e-9) {
				t.Errorf("PercentChangePerPeriod = %v, want %v", got.PercentChangePerPeriod, tt.pct)
			}
		})
	}
}

func TestLinearTrendFlatSeriesIsStable(t *testing.T) {
	for _, v := range []float64{-250, 0.01, 3, 1e6} {
		for n := 2; n <= 24; n++ {
			values := make([]float64, n)
			for i := range values {
				values[i] = v
			}
			got := LinearTrend(values)
			if got.Direction != DirectionStable || !approx(got.Slope, 0, 1e-6) {
				t.Fatalf("flat %v x%d: %+v", v, n, got)
			}
		}
	}
}

func TestLinearTrendNegativeBaseline(t *testing.T) {
	got := LinearTrend([]float64{-1000, -900, -800})
	if got.Direction != DirectionUp {
		t.Fatalf("paying down debt should trend up, got %+v", got)
	}
}

func month(y, m int, income, expenses int64) core.MonthSummary {
	return core.MonthSummary{
		Period:   core.Period{Year: y, Month: m},
		Income:   decimal.NewFromInt(income),
		Expenses: decimal.NewFromInt(expenses),
	}
}

func TestCompareMonths(t *testing.T) {
	cur := month(2025, 2, 6000, 4000)

	none := CompareMonths(cur, nil)
	if none.HasPrevious || none.Income.Percent != 0 || none.Expenses.HasBaseline {
		t.Fatalf("no previous: %+v", none)
	}

	prev := month(2025, 1, 5000, 4000)
	got := CompareMonths(cur, &prev)
	if !got.HasPrevious {
		t.Fatal("HasPrevious should be set")
	}
	if !approx(got.Income.Percent, 20, 1e-9) {
		t.Errorf("income percent = %v", got.Income.Percent)
	}
	if got.Expenses.Percent != 0 || !got.Expenses.HasBaseline {
		t.Errorf("expenses = %+v", got.Expenses)
	}
	if !got.Balance.Delta.Equal(decimal.NewFromInt(1000)) || !approx(got.Balance.Percent, 100, 1e-9) {
		t.Errorf("balance = %+v", got.Balance)
	}

	// from a -1000 deficit to a 2000 surplus: the divisor keeps its sign
	deficit := month(2025, 1, 3000, 4000)
	got = CompareMonths(month(2025, 2, 6000, 4000), &deficit)
	if !got.Balance.Delta.Equal(decimal.NewFromInt(3000)) || !approx(got.Balance.Percent, -300, 1e-9) {
		t.Errorf("balance after deficit = %+v", got.Balance)
	}
}

func TestCompareWithAverage(t *testing.T) {
	avg := AverageSummary([]core.MonthSummary{month(2025, 1, 5000, 3000), month(2025, 2, 5000, 5000)})
	got := CompareWithAverage(month(2025, 3, 4000, 4500), avg)
	if got.Income.IsAbove || !got.Expenses.IsAbove {
		t.Fatalf("unexpected IsAbove flags: %+v", got)
	}
	if !approx(got.Expenses.Percent, 12.5, 1e-9) {
		t.Errorf("expenses percent = %v", got.Expenses.Percent)
	}
}

func TestSeasonalityUsesMeanOfAllPoints(t *testing.T) {
	// January has three samples, July one: mean of all points is 150,
	// while the mean of the monthly averages would be 200.
	points := []SeasonalPoint{
		{Month: 1, Value: 100}, {Month: 1, Value: 100}, {Month: 1, Value: 100},
		{Month: 7, Value: 300},
		{Month: 13, Value: 1e9},
	}
	table := Seasonality(points)
	if len(table) != 2 {
		t.Fatalf("table = %+v", table)
	}
	jan := table[1]
	if jan.Samples != 3 || jan.AverageValue != 100 || !approx(jan.VarianceFromOverallAveragePercent, -100.0/3, 1e-9) {
		t.Errorf("jan = %+v", jan)
	}
	if jul := table[7]; !approx(jul.VarianceFromOverallAveragePercent, 100, 1e-9) {
		t.Errorf("jul = %+v", jul)
	}
	if len(Seasonality(nil)) != 0 {
		t.Error("empty input should give empty table")
	}
}

func TestCategoryDrift(t *testing.T) {
	periods := make([]CategoryTotals, 0, 6)
	for i := 0; i < 3; i++ {
		periods = append(periods, CategoryTotals{Totals: map[string]float64{"Food": 100, "Rent": 2000, "Fun": 50}})
	}
	for i := 0; i < 3; i++ {
		periods = append(periods, CategoryTotals{Totals: map[string]float64{"Food": 150, "Rent": 2040, "Gym": 80, "Fun": 20}})
	}
	got := CategoryDrift(periods)
	if len(got) != 2 {
		t.Fatalf("drift = %+v", got)
	}
	if got[0].Category != "Fun" || !approx(got[0].PercentChange, -60, 1e-9) {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Category != "Food" || !approx(got[1].PercentChange, 50, 1e-9) {
		t.Errorf("second = %+v", got[1])
	}
	if CategoryDrift(periods[:1]) != nil {
		t.Error("one period cannot drift")
	}
}

func TestFindAnomalies(t *testing.T) {
	current := map[string]float64{"Food": 160, "Fun": 130, "Rent": 2000, "Car": 110, "New": 500}
	averages := map[string]float64{"Food": 100, "Fun": 100, "Rent": 2000, "Car": 90}
	got := FindAnomalies(current, averages, 0)
	if len(got) != 3 {
		t.Fatalf("anomalies = %+v", got)
	}
	want := []struct {
		cat string
		sev Severity
	}{{"Food", SeverityHigh}, {"Fun", SeverityMedium}, {"Car", SeverityLow}}
	for i, w := range want {
		if got[i].Category != w.cat || got[i].Severity != w.sev {
			t.Errorf("anomaly %d = %+v, want %s/%s", i, got[i], w.cat, w.sev)
		}
	}
	if got := FindAnomalies(current, averages, 0.5); len(got) != 1 {
		t.Errorf("threshold 0.5 gave %+v", got)
	}
}

func TestNetWorthSeriesSubtractsLiabilities(t *testing.T) {
	records := []core.Record{
		rec(2025, 2, core.KindAsset, "ETF", 1200),
		rec(2025, 1, core.KindAsset, "ETF", 1000),
		rec(2025, 1, core.KindAsset, "Długi", 300),
		rec(2025, 1, core.KindIncome, "Salary", 5000),
	}
	got := NetWorthSeries(records, core.DefaultCategories())
	if len(got) != 2 {
		t.Fatalf("series = %+v", got)
	}
	if !got[0].Value.Equal(decimal.NewFromInt(700)) || !got[1].Value.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("series = %+v", got)
	}
	if f := Floats(got); f[0] != 700 || f[1] != 1200 {
		t.Fatalf("Floats = %v", f)
	}
}

func TestNetWorthSeriesUsesLatestSnapshotPerMonth(t *testing.T) {
	at := func(m, d int, cat string, amount int64) core.Record {
		r := rec(2025, m, core.KindAsset, cat, amount)
		r.Date = core.NewDate(2025, m, d)
		return r
	}
	tests := []struct {
		name    string
		records []core.Record
		want    []int64
	}{
		{
			name: "weekly flat holding",
			records: []core.Record{
				at(1, 6, "Konta", 10000), at(1, 13, "Konta", 10000), at(1, 20, "Konta", 10000), at(1, 27, "Konta", 10000),
				at(2, 3, "Konta", 10000), at(2, 10, "Konta", 10000),
			},
			want: []int64{10000, 10000},
		},
		{
			name: "latest day wins regardless of order",
			records: []core.Record{
				at(3, 31, "ETF", 1500), at(3, 31, "Długi", 200),
				at(3, 1, "ETF", 900), at(3, 15, "ETF", 1200),
			},
			want: []int64{1300},
		},
		{
			name: "category missing from the last snapshot is dropped",
			records: []core.Record{
				at(4, 1, "ETF", 1000), at(4, 1, "Lokaty", 500),
				at(4, 30, "ETF", 1100),
			},
			want: []int64{1100},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NetWorthSeries(tt.records, core.DefaultCategories())
			if len(got) != len(tt.want) {
				t.Fatalf("series = %+v", got)
			}
			for i, w := range tt.want {
				if !got[i].Value.Equal(decimal.NewFromInt(w)) {
					t.Errorf("%s = %s, want %d", got[i].Period, got[i].Value, w)
				}
			}
		})
	}

	weekly := tests[0].records
	if trend := LinearTrend(Floats(NetWorthSeries(weekly, core.DefaultCategories()))); trend.Direction != DirectionStable || trend.Slope != 0 {
		t.Errorf("flat holding trend = %+v", trend)
	}
}

func TestSavingsRate(t *testing.T) {
	rate, ok := SavingsRate(decimal.NewFromInt(5000), decimal.NewFromInt(4000))
	if !ok || !approx(rate, 20, 1e-9) {
		t.Fatalf("rate = %v, %v", rate, ok)
	}
	if _, ok := SavingsRate(decimal.Zero, decimal.NewFromInt(10)); ok {
		t.Fatal("zero income should not produce a rate")
	}
}
