// Package retirement tracks contributions into tax-advantaged accounts
// (IKE, IKZE, OIPE) against their annual caps.
package retirement

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"finanse/internal/core"

	"github.com/shopspring/decimal"
)

// ErrNoLimit is returned when no cap is known for an account and year.
var ErrNoLimit = errors.New("no contribution limit")

// LimitContext is a year -> account -> annual cap table. The zero value
// holds no limits. Values are immutable: WithLimit returns a copy.
type LimitContext struct {
	limits map[int]map[core.RetirementAccount]decimal.Decimal
}

// DefaultLimits returns the statutory IKE and IKZE caps for 2023-2025.
func DefaultLimits() LimitContext {
	var c LimitContext
	for _, l := range []struct {
		year    int
		account core.RetirementAccount
		amount  string
	}{
		{2023, core.AccountIKE, "20805"},
		{2023, core.AccountIKZE, "8322"},
		{2024, core.AccountIKE, "23472"},
		{2024, core.AccountIKZE, "9388.80"},
		{2025, core.AccountIKE, "26019"},
		{2025, core.AccountIKZE, "10407.60"},
	} {
		c = c.WithLimit(l.year, l.account, decimal.RequireFromString(l.amount))
	}
	return c
}

// WithLimit returns a copy of c with the cap for account in year set.
func (c LimitContext) WithLimit(year int, account core.RetirementAccount, limit decimal.Decimal) LimitContext {
	next := LimitContext{limits: make(map[int]map[core.RetirementAccount]decimal.Decimal, len(c.limits)+1)}
	for y, accounts := range c.limits {
		m := make(map[core.RetirementAccount]decimal.Decimal, len(accounts))
		for a, v := range accounts {
			m[a] = v
		}
		next.limits[y] = m
	}
	if next.limits[year] == nil {
		next.limits[year] = map[core.RetirementAccount]decimal.Decimal{}
	}
	next.limits[year][account] = limit
	return next
}

// WithOverrides applies a comma separated list of YEAR:ACCOUNT=AMOUNT
// entries, e.g. "2026:IKE=28260,2026:IKZE=11304".
func (c LimitContext) WithOverrides(list string) (LimitContext, error) {
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		yearAcct, amount, ok := strings.Cut(entry, "=")
		if !ok {
			return c, fmt.Errorf("limit override %q: missing '='", entry)
		}
		yearStr, acctStr, ok := strings.Cut(yearAcct, ":")
		if !ok {
			return c, fmt.Errorf("limit override %q: missing ':'", entry)
		}
		year, err := strconv.Atoi(strings.TrimSpace(yearStr))
		if err != nil {
			return c, fmt.Errorf("limit override %q: invalid year: %w", entry, err)
		}
		acct, err := core.ParseAccount(acctStr)
		if err != nil || acct == core.AccountNone {
			return c, fmt.Errorf("limit override %q: invalid account", entry)
		}
		limit, err := core.ParseAmount(amount)
		if err != nil || !limit.IsPositive() {
			return c, fmt.Errorf("limit override %q: invalid amount", entry)
		}
		c = c.WithLimit(year, acct, limit)
	}
	return c, nil
}

func (c LimitContext) Limit(year int, account core.RetirementAccount) (decimal.Decimal, bool) {
	v, ok := c.limits[year][account]
	return v, ok
}

// Accounts lists the accounts with a cap in year, sorted by name.
func (c LimitContext) Accounts(year int) []core.RetirementAccount {
	out := make([]core.RetirementAccount, 0, len(c.limits[year]))
	for a := range c.limits[year] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Years lists the years with at least one cap, ascending.
func (c LimitContext) Years() []int {
	out := make([]int, 0, len(c.limits))
	for y := range c.limits {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

type LimitUsage struct {
	Account     core.RetirementAccount `json:"account"`
	Year        int                    `json:"year"`
	Limit       decimal.Decimal        `json:"limit"`
	Contributed decimal.Decimal        `json:"contributed"`
	Remaining   decimal.Decimal        `json:"remaining"`
	UsedPercent float64                `json:"used_percent"`
	Exceeded    bool                   `json:"exceeded"`
	Excess      decimal.Decimal        `json:"excess"`
}

// Usage sums the contributions made into account during year and compares
// them with the cap. Remaining never goes below zero; anything above the
// cap is reported as Excess.
func Usage(ctx LimitContext, account core.RetirementAccount, year int, contributions []core.Contribution) (LimitUsage, error) {
	limit, ok := ctx.Limit(year, account)
	if !ok {
		return LimitUsage{}, fmt.Errorf("%w for %s in %d", ErrNoLimit, account, year)
	}
	u := LimitUsage{Account: account, Year: year, Limit: limit}
	for _, c := range contributions {
		if c.Account == account && c.Date.Year() == year {
			u.Contributed = u.Contributed.Add(c.Amount)
		}
	}
	if diff := limit.Sub(u.Contributed); diff.IsPositive() {
		u.Remaining = diff
	} else if diff.IsNegative() {
		u.Exceeded = true
		u.Excess = diff.Neg()
	}
	if limit.IsPositive() {
		u.UsedPercent = u.Contributed.Div(limit).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return u, nil
}

// Summary reports usage for every account with a cap in year.
func Summary(ctx LimitContext, year int, contributions []core.Contribution) []LimitUsage {
	accounts := ctx.Accounts(year)
	out := make([]LimitUsage, 0, len(accounts))
	for _, a := range accounts {
		u, err := Usage(ctx, a, year, contributions)
		if err != nil {
			continue
		}
		out = append(out, u)
	}
	return out
}
