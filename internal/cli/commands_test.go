package cli

import (
	"bytes"
	"context"
	"flag"
	"strings"
	"testing"
	"time"

	"finanse/internal/core"
	"finanse/internal/currency"
	"finanse/internal/services"
	"finanse/internal/sheets/memory"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

func newTestApp(t *testing.T) (*App, *memory.Store, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	store := memory.New(core.DefaultCategories())

	for _, a := range []core.Asset{
		{ID: "a1", Name: "VWCE.DE - Vanguard FTSE All-World", Category: "ETF", Amount: decimal.NewFromInt(1000), Currency: "PLN", Account: core.AccountIKE},
		{ID: "a2", Name: "Vanguard FTSE All-World", Category: "ETF", Amount: decimal.NewFromInt(500), Currency: "PLN", Account: core.AccountIKE},
		{ID: "k1", Name: "mBank", Category: "Konta", Amount: decimal.NewFromInt(20000), Currency: "PLN"},
	} {
		if _, err := store.AppendAsset(ctx, a); err != nil {
			t.Fatalf("AppendAsset: %v", err)
		}
	}
	income := decimal.NewFromInt(8000)
	expense := decimal.NewFromInt(3000)
	err := store.AppendRecords(ctx, []core.Record{
		{Date: core.NewDate(2024, 3, 10), Kind: core.KindIncome, Category: "Pensja", Amount: income, Currency: "PLN", AmountBase: income},
		{Date: core.NewDate(2024, 3, 12), Kind: core.KindExpense, Category: "Jedzenie", Amount: expense, Currency: "PLN", AmountBase: expense},
	})
	if err != nil {
		t.Fatalf("AppendRecords: %v", err)
	}

	rates, err := currency.NewStaticRates("PLN", nil)
	if err != nil {
		t.Fatalf("NewStaticRates: %v", err)
	}
	report, err := services.NewReportService(store, services.ReportOptions{
		Converter: rates,
		Now:       func() time.Time { return time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewReportService: %v", err)
	}

	var out bytes.Buffer
	app := &App{
		Report:     report,
		Merge:      services.NewMergeService(store, nil),
		Milestones: services.NewMilestoneService(store),
		Out:        &out,
		Err:        &out,
		Plain:      true,
	}
	return app, store, &out
}

func run(t *testing.T, app *App, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet("finanse-cli", flag.ContinueOnError)
	cmdr := subcommands.NewCommander(fs, "finanse-cli")
	Register(cmdr, app)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return cmdr.Execute(context.Background())
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     subcommands.ExitStatus
		contains []string
	}{
		{"report", []string{"report"}, subcommands.ExitSuccess, []string{"# Report 2024-03", "## Allocation", "ETF", "## Possible duplicates"}},
		{"report earlier month", []string{"report", "-p", "2024-02"}, subcommands.ExitSuccess, []string{"# Report 2024-02"}},
		{"report json", []string{"report", "-json"}, subcommands.ExitSuccess, []string{`"period": "2024-03"`, `"base_currency": "PLN"`}},
		{"report bad period", []string{"report", "-p", "2024-13"}, subcommands.ExitUsageError, nil},
		{"limits", []string{"limits", "-y", "2024"}, subcommands.ExitSuccess, []string{"# Retirement limits 2024", "IKE", "IKZE"}},
		{"duplicates", []string{"duplicates"}, subcommands.ExitSuccess, []string{"# Duplicate assets", "a1", "a2"}},
		{"merge dry run", []string{"merge", "-n", "a1", "a2"}, subcommands.ExitSuccess, []string{"Primary: `a1`"}},
		{"merge needs two ids", []string{"merge", "a1"}, subcommands.ExitUsageError, nil},
		{"merge unknown id", []string{"merge", "a1", "zz"}, subcommands.ExitFailure, []string{"Error:"}},
		{"milestones empty", []string{"milestones"}, subcommands.ExitSuccess, []string{"_none_"}},
		{"milestone bad target", []string{"milestone-add", "-target", "abc"}, subcommands.ExitUsageError, nil},
		{"milestone unknown category", []string{"milestone-add", "-target", "1000", "-c", "Yachts"}, subcommands.ExitFailure, []string{"Error:"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _, out := newTestApp(t)
			if got := run(t, app, tt.args...); got != tt.want {
				t.Fatalf("exit = %v, want %v; output:\n%s", got, tt.want, out)
			}
			for _, s := range tt.contains {
				if !strings.Contains(out.String(), s) {
					t.Errorf("output missing %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestMergeCommandAppliesPlan(t *testing.T) {
	app, store, out := newTestApp(t)
	if got := run(t, app, "merge", "-name", "VWCE", "a1", "a2"); got != subcommands.ExitSuccess {
		t.Fatalf("exit = %v; output:\n%s", got, out)
	}
	merged, err := store.GetAsset(context.Background(), "a1")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if merged.Name != "VWCE" || !merged.Amount.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("merged = %+v", merged)
	}
	if _, err := store.GetAsset(context.Background(), "a2"); err == nil {
		t.Fatal("a2 should be deleted")
	}
	if !strings.Contains(out.String(), "Deleted: a2") {
		t.Errorf("output:\n%s", out)
	}
}

func TestMilestoneCommands(t *testing.T) {
	app, store, out := newTestApp(t)
	if got := run(t, app, "milestone-add", "-target", "50000", "-c", "konta"); got != subcommands.ExitSuccess {
		t.Fatalf("add exit = %v; output:\n%s", got, out)
	}
	ms, _ := store.ListMilestones(context.Background())
	if len(ms) != 1 || ms[0].Category != "Konta" {
		t.Fatalf("milestones = %+v", ms)
	}

	out.Reset()
	if got := run(t, app, "milestones"); got != subcommands.ExitSuccess || !strings.Contains(out.String(), ms[0].ID) {
		t.Fatalf("list exit = %v; output:\n%s", got, out)
	}

	if got := run(t, app, "milestone-delete", ms[0].ID); got != subcommands.ExitSuccess {
		t.Fatalf("delete exit = %v; output:\n%s", got, out)
	}
	if ms, _ := store.ListMilestones(context.Background()); len(ms) != 0 {
		t.Fatalf("milestones after delete = %+v", ms)
	}
	if got := run(t, app, "milestone-delete"); got != subcommands.ExitUsageError {
		t.Fatalf("delete without id exit = %v", got)
	}
}
