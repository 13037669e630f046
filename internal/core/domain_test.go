package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestPeriodArithmetic(t *testing.T) {
	p := Period{Year: 2024, Month: 12}
	if got := p.Next(); got != (Period{Year: 2025, Month: 1}) {
		t.Fatalf("Next() = %v", got)
	}
	if got := (Period{Year: 2025, Month: 1}).Prev(); got != p {
		t.Fatalf("Prev() = %v", got)
	}
	if !p.Before(p.Next()) {
		t.Fatal("expected Before to hold across year boundary")
	}
	if p.String() != "2024-12" {
		t.Fatalf("String() = %q", p.String())
	}
	parsed, err := ParsePeriod("2024-12")
	if err != nil || parsed != p {
		t.Fatalf("ParsePeriod = %v, %v", parsed, err)
	}
}

func TestParseAccount(t *testing.T) {
	tests := []struct {
		in      string
		want    RetirementAccount
		wantErr bool
	}{
		{"", AccountNone, false},
		{" ike ", AccountIKE, false},
		{"IKZE", AccountIKZE, false},
		{"none", AccountNone, false},
		{"PPK", AccountNone, true},
	}
	for _, tt := range tests {
		got, err := ParseAccount(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseAccount(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseAccount(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAssetValidate(t *testing.T) {
	good := Asset{ID: "1", Name: "VWCE", Category: "ETF", Amount: decimal.NewFromInt(10), Currency: "PLN"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		name  string
		asset Asset
		want  error
	}{
		{"empty name", Asset{Category: "ETF", Currency: "PLN"}, ErrEmptyName},
		{"empty category", Asset{Name: "x", Currency: "PLN"}, ErrEmptyCategory},
		{"negative", Asset{Name: "x", Category: "ETF", Currency: "PLN", Amount: decimal.NewFromInt(-1)}, ErrNegativeAmount},
		{"currency", Asset{Name: "x", Category: "ETF", Currency: "XYZ"}, ErrInvalidCurrency},
		{"account", Asset{Name: "x", Category: "ETF", Currency: "PLN", Account: "PPK"}, ErrInvalidAccount},
	}
	for _, tt := range bads {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.asset.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMilestoneAchieveIsOneWay(t *testing.T) {
	m, err := NewMilestone("m1", decimal.NewFromInt(100000), ScopeAll, time.Now())
	if err != nil {
		t.Fatalf("NewMilestone: %v", err)
	}
	if m.IsAchieved() {
		t.Fatal("new milestone must be pending")
	}
	first := NewDate(2024, 3, 1)
	if !m.Achieve(first) {
		t.Fatal("first Achieve should transition")
	}
	if m.Achieve(NewDate(2025, 1, 1)) {
		t.Fatal("second Achieve must be a no-op")
	}
	if !m.AchievedDate.Equal(first.Time) {
		t.Fatalf("achieved date overwritten: %v", m.AchievedDate)
	}

	if _, err := NewMilestone("m2", decimal.Zero, "ETF", time.Now()); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestMilestoneAchieveWithoutDate(t *testing.T) {
	m, _ := NewMilestone("m1", decimal.NewFromInt(10), "ETF", time.Now())
	if !m.Achieve(Date{}) {
		t.Fatal("expected transition")
	}
	if !m.IsAchieved() || !m.AchievedDate.IsEmpty() {
		t.Fatalf("unexpected state %+v", m)
	}
}

func TestMergePlanDeleteIDs(t *testing.T) {
	p := MergePlan{PrimaryAssetID: "b", MergedAssetIDs: []string{"a", "b", "c"}}
	got := p.DeleteIDs()
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("DeleteIDs() = %v", got)
	}
}

func TestCategorySetSignedValue(t *testing.T) {
	cs := DefaultCategories()
	debt := cs.SignedValue("długi", decimal.NewFromInt(500))
	if !debt.Equal(decimal.NewFromInt(-500)) {
		t.Fatalf("liability should subtract, got %s", debt)
	}
	debt = cs.SignedValue("Długi", decimal.NewFromInt(-500))
	if !debt.Equal(decimal.NewFromInt(-500)) {
		t.Fatalf("liability stored negative should still subtract magnitude, got %s", debt)
	}
	if v := cs.SignedValue("ETF", decimal.NewFromInt(5)); !v.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("asset should keep sign, got %s", v)
	}
	if v := cs.SignedValue("Unknown", decimal.NewFromInt(5)); !v.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unknown category counts as asset, got %s", v)
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	var err error = &MergeValidationError{Field: "currency", Reason: "mixed", Values: []string{"PLN", "USD"}}
	if !errors.Is(err, ErrMergeValidation) {
		t.Fatal("MergeValidationError should match ErrMergeValidation")
	}
	cause := errors.New("boom")
	err = &PartialFailureError{PrimaryAssetID: "p", Remaining: []string{"x"}, Cause: cause}
	if !errors.Is(err, ErrPartialMerge) || !errors.Is(err, cause) {
		t.Fatal("PartialFailureError should match sentinel and unwrap cause")
	}
	var pf *PartialFailureError
	if !errors.As(err, &pf) || pf.Remaining[0] != "x" {
		t.Fatal("errors.As should extract remaining ids")
	}
}
