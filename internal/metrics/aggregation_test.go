package metrics

import (
	"testing"

	"finanse/internal/core"

	"github.com/shopspring/decimal"
)

func rec(y, m int, kind core.RecordKind, cat string, amount int64) core.Record {
	return core.Record{
		Date:       core.NewDate(y, m, 1),
		Kind:       kind,
		Category:   cat,
		Amount:     decimal.NewFromInt(amount),
		Currency:   "PLN",
		AmountBase: decimal.NewFromInt(amount),
	}
}

func TestSumByKeyKeepsFirstSeenOrder(t *testing.T) {
	records := []core.Record{
		rec(2025, 1, core.KindExpense, "Food", 10),
		rec(2025, 1, core.KindExpense, "Rent", 100),
		rec(2025, 2, core.KindExpense, "Food", 5),
		rec(2025, 2, core.KindExpense, "Car", 7),
	}
	got := GroupBy(records, ByCategory)
	want := []string{"Food", "Rent", "Car"}
	if len(got.Keys) != len(want) {
		t.Fatalf("keys = %v", got.Keys)
	}
	for i, k := range want {
		if got.Keys[i] != k {
			t.Fatalf("keys = %v, want %v", got.Keys, want)
		}
	}
	if !got.Get("Food").Equal(decimal.NewFromInt(15)) {
		t.Errorf("Food = %s", got.Get("Food"))
	}
	if !got.Total().Equal(decimal.NewFromInt(122)) {
		t.Errorf("Total = %s", got.Total())
	}
	if !got.Get("missing").IsZero() {
		t.Error("missing key should be zero")
	}
}

func TestGroupByMonth(t *testing.T) {
	records := []core.Record{
		rec(2025, 3, core.KindIncome, "Salary", 1),
		rec(2025, 1, core.KindIncome, "Salary", 2),
		rec(2025, 3, core.KindIncome, "Bonus", 3),
	}
	got := GroupBy(records, ByMonth)
	if got.Keys[0] != "2025-03" || got.Keys[1] != "2025-01" {
		t.Fatalf("grouping must not sort, got %v", got.Keys)
	}
	if !got.Get("2025-03").Equal(decimal.NewFromInt(4)) {
		t.Errorf("2025-03 = %s", got.Get("2025-03"))
	}
}

func TestParseDimension(t *testing.T) {
	d, err := ParseDimension(" Currency ")
	if err != nil || d != ByCurrency {
		t.Fatalf("ParseDimension = %v, %v", d, err)
	}
	if _, err := ParseDimension("colour"); err == nil {
		t.Fatal("expected error for unknown dimension")
	}
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name        string
		cur, prev   int64
		wantPercent float64
		wantBase    bool
	}{
		{"increase", 110, 100, 10, true},
		{"decrease", 50, 100, -50, true},
		{"no baseline", 100, 0, 0, false},
		{"both zero", 0, 0, 0, false},
		{"deficit shrinks", -50, -100, -50, true},
		{"deficit to surplus", 100, -200, -150, true},
		{"surplus to deficit", -100, 200, -150, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentChange(decimal.NewFromInt(tt.cur), decimal.NewFromInt(tt.prev))
			if got.HasBaseline != tt.wantBase {
				t.Errorf("HasBaseline = %v, want %v", got.HasBaseline, tt.wantBase)
			}
			if !approx(got.Percent, tt.wantPercent, 1e-9) {
				t.Errorf("Percent = %v, want %v", got.Percent, tt.wantPercent)
			}
			if !got.Delta.Equal(decimal.NewFromInt(tt.cur - tt.prev)) {
				t.Errorf("Delta = %s", got.Delta)
			}
		})
	}
}

func TestSharesAndMean(t *testing.T) {
	sums := GroupBy([]core.Record{
		rec(2025, 1, core.KindAsset, "ETF", 75),
		rec(2025, 1, core.KindAsset, "Cash", 25),
	}, ByCategory)
	shares := Shares(sums)
	if len(shares) != 2 || !approx(shares[0].Percent, 75, 1e-9) || !approx(shares[1].Percent, 25, 1e-9) {
		t.Fatalf("Shares = %+v", shares)
	}
	if got := Shares(OrderedSums[string]{}); len(got) != 0 {
		t.Fatalf("empty sums gave %v", got)
	}
	if Mean(nil) != 0 || Mean([]float64{1, 2, 3}) != 2 {
		t.Fatal("Mean mismatch")
	}
	if !MeanDecimal(nil).IsZero() {
		t.Fatal("MeanDecimal(nil) should be zero")
	}
}

func TestMonthlySummaries(t *testing.T) {
	records := []core.Record{
		rec(2025, 2, core.KindIncome, "Salary", 5000),
		rec(2025, 1, core.KindExpense, "Food", 800),
		rec(2025, 1, core.KindIncome, "Salary", 5000),
		rec(2025, 1, core.KindExpense, "Rent", -2000),
		rec(2025, 1, core.KindAsset, "ETF", 99999),
	}
	got := MonthlySummaries(records)
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	jan := got[0]
	if jan.Period != (core.Period{Year: 2025, Month: 1}) {
		t.Fatalf("first period = %v", jan.Period)
	}
	if !jan.Expenses.Equal(decimal.NewFromInt(2800)) || !jan.Balance().Equal(decimal.NewFromInt(2200)) {
		t.Errorf("jan = %+v", jan)
	}
}

func TestAverageByCategoryCountsMissingAsZero(t *testing.T) {
	avg := AverageByCategory([]CategoryTotals{
		{Totals: map[string]float64{"Food": 100, "Fun": 40}},
		{Totals: map[string]float64{"Food": 200}},
	})
	if avg["Food"] != 150 || avg["Fun"] != 20 {
		t.Fatalf("avg = %v", avg)
	}
}

func approx(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}
