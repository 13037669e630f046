// Package currency converts amounts into the base currency. Conversion is
// a pure lookup against a rate table supplied at startup.
package currency

import (
	"errors"
	"fmt"
	"strings"

	"finanse/internal/core"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var ErrUnknownCurrency = errors.New("no exchange rate for currency")

// Converter turns an amount in some currency into the base currency.
type Converter interface {
	Base() string
	ToBase(amount decimal.Decimal, code string) (decimal.Decimal, error)
}

// StaticRates converts with a fixed table of base-currency-per-unit rates.
type StaticRates struct {
	base     string
	fraction int32
	rates    map[string]decimal.Decimal
}

// NewStaticRates validates base and every rate code as ISO currencies.
// The base currency always converts at 1.
func NewStaticRates(base string, rates map[string]decimal.Decimal) (*StaticRates, error) {
	base = core.NormalizeCurrency(base)
	cur := money.GetCurrency(base)
	if cur == nil {
		return nil, fmt.Errorf("%w: base %q", core.ErrInvalidCurrency, base)
	}
	s := &StaticRates{
		base:     base,
		fraction: int32(cur.Fraction),
		rates:    map[string]decimal.Decimal{base: decimal.NewFromInt(1)},
	}
	for code, rate := range rates {
		code = core.NormalizeCurrency(code)
		if !core.ValidCurrency(code) {
			return nil, fmt.Errorf("%w: %q", core.ErrInvalidCurrency, code)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive", code)
		}
		if code == base {
			continue
		}
		s.rates[code] = rate
	}
	return s, nil
}

// ParseRates reads "USD=3.95,EUR=4.31" into a StaticRates table.
func ParseRates(base, list string) (*StaticRates, error) {
	rates := map[string]decimal.Decimal{}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		code, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("rate %q: expected CODE=RATE", entry)
		}
		rate, err := core.ParseAmount(value)
		if err != nil {
			return nil, fmt.Errorf("rate %q: %w", entry, err)
		}
		rates[code] = rate
	}
	return NewStaticRates(base, rates)
}

func (s *StaticRates) Base() string {
	return s.base
}

// ToBase converts and rounds to the base currency's minor unit.
func (s *StaticRates) ToBase(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	rate, ok := s.rates[core.NormalizeCurrency(code)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return amount.Mul(rate).Round(s.fraction), nil
}

// Codes lists the currencies the table can convert, base first.
func (s *StaticRates) Codes() []string {
	out := []string{s.base}
	for code := range s.rates {
		if code != s.base {
			out = append(out, code)
		}
	}
	return out
}

// FillBase returns a copy of records with AmountBase computed from Amount
// and Currency.
func FillBase(records []core.Record, conv Converter) ([]core.Record, error) {
	out := make([]core.Record, len(records))
	for i, r := range records {
		base, err := conv.ToBase(r.Amount, r.Currency)
		if err != nil {
			return nil, fmt.Errorf("record %s %s: %w", r.Date, r.Category, err)
		}
		r.AmountBase = base
		out[i] = r
	}
	return out, nil
}

// AssetRecords turns the current assets into dated asset snapshot records.
func AssetRecords(assets []core.Asset, on core.Date, conv Converter) ([]core.Record, error) {
	out := make([]core.Record, 0, len(assets))
	for _, a := range assets {
		base, err := conv.ToBase(a.Amount, a.Currency)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", a.ID, err)
		}
		out = append(out, core.Record{
			Date:        on,
			Kind:        core.KindAsset,
			Category:    a.Category,
			Subcategory: a.Subcategory,
			Amount:      a.Amount,
			Currency:    core.NormalizeCurrency(a.Currency),
			AmountBase:  base,
		})
	}
	return out, nil
}
