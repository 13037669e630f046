package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Polarity tells whether a category adds to or subtracts from net worth.
type Polarity int

const (
	PolarityAsset Polarity = iota
	PolarityLiability
)

// CategorySet carries the polarity of each known category. Categories not
// in the set count as assets.
type CategorySet struct {
	polarity map[string]Polarity
	order    []string
}

// DefaultCategories returns the stock category list of the tracker.
func DefaultCategories() CategorySet {
	cs := NewCategorySet()
	for _, name := range []string{"Gotówka", "Konta", "Lokaty", "Obligacje", "Akcje", "ETF", "Kryptowaluty", "Nieruchomości", "Emerytalne"} {
		cs.Add(name, PolarityAsset)
	}
	cs.Add("Długi", PolarityLiability)
	return cs
}

func NewCategorySet() CategorySet {
	return CategorySet{polarity: map[string]Polarity{}}
}

// Add registers a category; re-adding updates its polarity in place.
func (c *CategorySet) Add(name string, p Polarity) {
	if c.polarity == nil {
		c.polarity = map[string]Polarity{}
	}
	key := categoryKey(name)
	if key == "" {
		return
	}
	if _, ok := c.polarity[key]; !ok {
		c.order = append(c.order, strings.TrimSpace(name))
	}
	c.polarity[key] = p
}

func (c CategorySet) Polarity(name string) Polarity {
	return c.polarity[categoryKey(name)]
}

func (c CategorySet) IsLiability(name string) bool {
	return c.Polarity(name) == PolarityLiability
}

// Names returns categories in registration order.
func (c CategorySet) Names() []string {
	return append([]string(nil), c.order...)
}

// SignedValue returns the contribution of amount to net worth: liabilities
// subtract their magnitude whatever sign the sheet stored.
func (c CategorySet) SignedValue(category string, amount decimal.Decimal) decimal.Decimal {
	if c.IsLiability(category) {
		return amount.Abs().Neg()
	}
	return amount
}

func categoryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
