package currency

import (
	"errors"
	"testing"

	"finanse/internal/core"

	"github.com/shopspring/decimal"
)

func TestStaticRatesToBase(t *testing.T) {
	rates, err := ParseRates("pln", "USD=3.9512, eur=4,30")
	if err != nil {
		t.Fatalf("ParseRates: %v", err)
	}
	if rates.Base() != "PLN" {
		t.Fatalf("Base = %q", rates.Base())
	}

	tests := []struct {
		amount, code, want string
	}{
		{"100", "USD", "395.12"},
		{"10.005", "pln", "10.01"},
		{"2", "EUR", "8.6"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := rates.ToBase(decimal.RequireFromString(tt.amount), tt.code)
			if err != nil {
				t.Fatalf("ToBase: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ToBase(%s %s) = %s, want %s", tt.amount, tt.code, got, tt.want)
			}
		})
	}

	if _, err := rates.ToBase(decimal.NewFromInt(1), "CHF"); !errors.Is(err, ErrUnknownCurrency) {
		t.Fatalf("expected ErrUnknownCurrency, got %v", err)
	}
}

func TestNewStaticRatesValidation(t *testing.T) {
	if _, err := NewStaticRates("XXQ", nil); !errors.Is(err, core.ErrInvalidCurrency) {
		t.Fatalf("bad base: %v", err)
	}
	if _, err := NewStaticRates("PLN", map[string]decimal.Decimal{"ZZZ": decimal.NewFromInt(1)}); err == nil {
		t.Fatal("unknown code should fail")
	}
	if _, err := NewStaticRates("PLN", map[string]decimal.Decimal{"USD": decimal.Zero}); err == nil {
		t.Fatal("zero rate should fail")
	}
	if _, err := ParseRates("PLN", "USD"); err == nil {
		t.Fatal("missing '=' should fail")
	}
}

func TestFillBaseAndAssetRecords(t *testing.T) {
	rates, _ := NewStaticRates("PLN", map[string]decimal.Decimal{"USD": decimal.NewFromInt(4)})

	records, err := FillBase([]core.Record{
		{Date: core.NewDate(2025, 1, 1), Kind: core.KindIncome, Category: "Salary", Amount: decimal.NewFromInt(100), Currency: "USD"},
	}, rates)
	if err != nil || !records[0].AmountBase.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("FillBase = %+v, %v", records, err)
	}

	assets := []core.Asset{
		{ID: "a", Name: "Cash", Category: "Gotówka", Amount: decimal.NewFromInt(10), Currency: "usd"},
	}
	snaps, err := AssetRecords(assets, core.NewDate(2025, 2, 1), rates)
	if err != nil {
		t.Fatalf("AssetRecords: %v", err)
	}
	if snaps[0].Kind != core.KindAsset || snaps[0].Currency != "USD" || !snaps[0].AmountBase.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("snapshot = %+v", snaps[0])
	}

	assets[0].Currency = "CHF"
	if _, err := AssetRecords(assets, core.NewDate(2025, 2, 1), rates); !errors.Is(err, ErrUnknownCurrency) {
		t.Fatalf("expected ErrUnknownCurrency, got %v", err)
	}
}
