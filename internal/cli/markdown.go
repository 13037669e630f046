package cli

import (
	"fmt"
	"strings"

	"finanse/internal/core"
	"finanse/internal/duplicates"
	"finanse/internal/metrics"
	"finanse/internal/retirement"
	"finanse/internal/services"

	"github.com/shopspring/decimal"
)

type table struct {
	header []string
	rows   [][]string
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t table) write(b *strings.Builder) {
	if len(t.rows) == 0 {
		b.WriteString("_none_\n\n")
		return
	}
	b.WriteString("| " + strings.Join(t.header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(t.header)) + "\n")
	for _, r := range t.rows {
		b.WriteString("| " + strings.Join(r, " | ") + " |\n")
	}
	b.WriteString("\n")
}

func signedPercent(p float64) string {
	return fmt.Sprintf("%+.1f%%", p)
}

func change(c metrics.Change, cur string) string {
	if !c.HasBaseline {
		return core.FormatAmount(c.Delta, cur) + " (n/a)"
	}
	return fmt.Sprintf("%s (%s)", core.FormatAmount(c.Delta, cur), signedPercent(c.Percent))
}

// DashboardMarkdown renders a dashboard as a markdown document.
func DashboardMarkdown(d *services.Dashboard) string {
	var b strings.Builder
	cur := d.BaseCurrency
	money := func(v decimal.Decimal) string { return core.FormatAmount(v, cur) }

	fmt.Fprintf(&b, "# Report %s\n\n", d.Period)
	fmt.Fprintf(&b, "**Net worth:** %s  \n", money(d.NetWorth))
	fmt.Fprintf(&b, "**Trend:** %s (%s per month)\n\n", d.NetWorthTrend.Direction, signedPercent(d.NetWorthTrend.PercentChangePerPeriod))

	b.WriteString("## Month\n\n")
	month := table{header: []string{"", "Amount", "vs previous", "vs average"}}
	if !d.VsPrevious.HasPrevious {
		month.header[2] = "vs previous (none)"
	}
	month.add("Income", money(d.Month.Income), change(d.VsPrevious.Income, cur), change(d.VsAverage.Income.Change, cur))
	month.add("Expenses", money(d.Month.Expenses), change(d.VsPrevious.Expenses, cur), change(d.VsAverage.Expenses.Change, cur))
	month.add("Balance", money(d.Month.Balance()), change(d.VsPrevious.Balance, cur), change(d.VsAverage.Balance.Change, cur))
	month.write(&b)
	if d.SavingsRate != nil {
		fmt.Fprintf(&b, "Savings rate: %.1f%%\n\n", *d.SavingsRate)
	}

	b.WriteString("## Allocation\n\n")
	alloc := table{header: []string{"Category", "Value", "Share"}}
	for _, s := range d.Allocation {
		alloc.add(s.Key, money(s.Amount), fmt.Sprintf("%.1f%%", s.Percent))
	}
	alloc.write(&b)

	b.WriteString("## Anomalies\n\n")
	anom := table{header: []string{"Category", "Current", "Average", "Deviation", "Severity"}}
	for _, a := range d.Anomalies {
		anom.add(a.Category, fmt.Sprintf("%.2f", a.Current), fmt.Sprintf("%.2f", a.Average), signedPercent(a.Deviation*100), string(a.Severity))
	}
	anom.write(&b)

	if len(d.Drift) > 0 {
		b.WriteString("## Category drift\n\n")
		drift := table{header: []string{"Category", "Recent avg", "Prior avg", "Change"}}
		for _, dr := range d.Drift {
			drift.add(dr.Category, fmt.Sprintf("%.2f", dr.RecentAvg), fmt.Sprintf("%.2f", dr.PriorAvg), signedPercent(dr.PercentChange))
		}
		drift.write(&b)
	}

	b.WriteString("## Projections\n\n")
	proj := table{header: []string{"", "Income", "Expenses", "Balance"}}
	proj.add("Next month", money(d.NextMonth.Income), money(d.NextMonth.Expenses), money(d.NextMonth.Balance))
	if d.Yearly != nil {
		proj.add(fmt.Sprintf("Year %d", d.Period.Year), money(d.Yearly.Projected.Income), money(d.Yearly.Projected.Expenses), money(d.Yearly.Projected.Balance))
	}
	proj.write(&b)

	ef := d.EmergencyFund
	fmt.Fprintf(&b, "Emergency fund: %.1f%% of %s (%.1f of %d months)\n\n", ef.ProgressPercent, money(ef.Target), ef.MonthsCovered, ef.TargetMonths)

	b.WriteString("## Milestones\n\n")
	ms := table{header: []string{"Scope", "Target", "Current", "Progress", "ETA"}}
	for _, m := range d.Milestones {
		eta := "-"
		switch {
		case m.Achieved && !m.AchievedDate.IsEmpty():
			eta = "achieved " + m.AchievedDate.String()
		case m.Achieved:
			eta = "achieved"
		case m.HasProjection:
			eta = fmt.Sprintf("%d months", m.MonthsLeft)
			if m.LowConfidence {
				eta += " (est.)"
			}
		}
		ms.add(m.Category, money(m.Target), money(m.Current), fmt.Sprintf("%.1f%%", m.Percent), eta)
	}
	ms.write(&b)

	b.WriteString("## Retirement limits\n\n")
	writeLimits(&b, d.Limits, cur)

	if len(d.Duplicates) > 0 {
		b.WriteString("## Possible duplicates\n\n")
		writeGroups(&b, d.Duplicates)
	}
	return b.String()
}

// LimitsMarkdown renders retirement cap usage for one year.
func LimitsMarkdown(year int, usage []retirement.LimitUsage, cur string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Retirement limits %d\n\n", year)
	writeLimits(&b, usage, cur)
	return b.String()
}

func writeLimits(b *strings.Builder, usage []retirement.LimitUsage, cur string) {
	t := table{header: []string{"Account", "Limit", "Contributed", "Remaining", "Used"}}
	for _, u := range usage {
		used := fmt.Sprintf("%.1f%%", u.UsedPercent)
		if u.Exceeded {
			used += " exceeded by " + core.FormatAmount(u.Excess, cur)
		}
		t.add(u.Account.String(), core.FormatAmount(u.Limit, cur), core.FormatAmount(u.Contributed, cur), core.FormatAmount(u.Remaining, cur), used)
	}
	t.write(b)
}

// DuplicatesMarkdown renders duplicate groups with their asset ids.
func DuplicatesMarkdown(groups []duplicates.Group) string {
	var b strings.Builder
	b.WriteString("# Duplicate assets\n\n")
	writeGroups(&b, groups)
	return b.String()
}

func writeGroups(b *strings.Builder, groups []duplicates.Group) {
	if len(groups) == 0 {
		b.WriteString("_none_\n\n")
		return
	}
	for _, g := range groups {
		p := g.Primary()
		fmt.Fprintf(b, "### %s\n\n", p.Name)
		fmt.Fprintf(b, "Total: %s\n\n", core.FormatAmount(g.TotalValue, p.Currency))
		t := table{header: []string{"ID", "Name", "Amount", "Account"}}
		for _, a := range g.Assets {
			t.add(a.ID, a.Name, core.FormatAmount(a.Amount, a.Currency), a.Account.String())
		}
		t.write(b)
	}
}

// MergeMarkdown renders the outcome of a merge request.
func MergeMarkdown(res services.MergeResult) string {
	var b strings.Builder
	p := res.Plan
	b.WriteString("# Merge\n\n")
	if res.Queued {
		fmt.Fprintf(&b, "Queued as message `%s`.\n\n", res.MessageID)
	}
	fmt.Fprintf(&b, "- Primary: `%s` %s\n", p.PrimaryAssetID, p.ResultingName)
	fmt.Fprintf(&b, "- Amount: %s\n", core.FormatAmount(p.ResultingAmount, p.ResultingCurrency))
	if len(res.Deleted) > 0 {
		fmt.Fprintf(&b, "- Deleted: %s\n", strings.Join(res.Deleted, ", "))
	}
	return b.String()
}

// MilestonesMarkdown lists stored milestones.
func MilestonesMarkdown(ms []core.Milestone) string {
	var b strings.Builder
	b.WriteString("# Milestones\n\n")
	t := table{header: []string{"ID", "Scope", "Target", "Status", "Achieved"}}
	for _, m := range ms {
		achieved := "-"
		if !m.AchievedDate.IsEmpty() {
			achieved = m.AchievedDate.String()
		}
		t.add(m.ID, m.Category, m.TargetValue.String(), string(m.Status), achieved)
	}
	t.write(&b)
	return b.String()
}
