package metrics

import (
	"math"
	"time"

	"finanse/internal/core"

	"github.com/shopspring/decimal"
)

// MonthsToTarget returns how many months of compound growth at
// ratePercent per month take current to target. ok is false when the
// target is already met (this is not "zero months"), when the rate is not
// positive, or when current is not positive.
func MonthsToTarget(current, target, ratePercent float64) (months int, ok bool) {
	if current >= target || ratePercent <= 0 || current <= 0 {
		return 0, false
	}
	growth := 1 + ratePercent/100
	months = int(math.Ceil(math.Log(target/current) / math.Log(growth)))
	if months < 1 {
		months = 1
	}
	// Nudge past rounding in the logarithms so the result is the smallest m
	// with current*growth^m >= target.
	for current*math.Pow(growth, float64(months)) < target {
		months++
	}
	for months > 1 && current*math.Pow(growth, float64(months-1)) >= target {
		months--
	}
	return months, true
}

const projectionWindow = 3

type Projection struct {
	Income         decimal.Decimal `json:"income"`
	Expenses       decimal.Decimal `json:"expenses"`
	Balance        decimal.Decimal `json:"balance"`
	SeasonalFactor float64         `json:"seasonal_factor"`
	Basis          int             `json:"basis"` // months averaged
}

// ProjectNextPeriod projects the upcoming month from the mean of the last
// three entries of recent. When table has an entry for upcoming, expenses
// are scaled by 1 + variance/100. A nil table means no seasonal scaling.
func ProjectNextPeriod(recent []core.MonthSummary, table SeasonalityTable, upcoming time.Month) Projection {
	if len(recent) > projectionWindow {
		recent = recent[len(recent)-projectionWindow:]
	}
	p := Projection{SeasonalFactor: 1, Basis: len(recent)}
	if len(recent) == 0 {
		return p
	}
	avg := AverageSummary(recent)
	p.Income = avg.Income
	p.Expenses = avg.Expenses
	if e, ok := table[int(upcoming)]; ok {
		p.SeasonalFactor = 1 + e.VarianceFromOverallAveragePercent/100
		p.Expenses = p.Expenses.Mul(decimal.NewFromFloat(p.SeasonalFactor))
	}
	p.Balance = p.Income.Sub(p.Expenses)
	return p
}

type Totals struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Balance  decimal.Decimal `json:"balance"`
}

type YearlyProjection struct {
	YTD             Totals `json:"ytd"`
	Projected       Totals `json:"projected"`
	Averages        Totals `json:"averages"`
	MonthsElapsed   int    `json:"months_elapsed"`
	MonthsRemaining int    `json:"months_remaining"`
}

// ProjectYearly extrapolates year-to-date months to a full year. ok is
// false when there is no month to extrapolate from.
func ProjectYearly(ytd []core.MonthSummary) (YearlyProjection, bool) {
	n := len(ytd)
	if n == 0 {
		return YearlyProjection{}, false
	}
	var yp YearlyProjection
	for _, m := range ytd {
		yp.YTD.Income = yp.YTD.Income.Add(m.Income)
		yp.YTD.Expenses = yp.YTD.Expenses.Add(m.Expenses)
	}
	yp.YTD.Balance = yp.YTD.Income.Sub(yp.YTD.Expenses)

	avg := AverageSummary(ytd)
	yp.Averages = Totals{Income: avg.Income, Expenses: avg.Expenses, Balance: avg.Balance()}

	yp.MonthsElapsed = n
	yp.MonthsRemaining = max(0, 12-n)
	rem := decimal.NewFromInt(int64(yp.MonthsRemaining))
	yp.Projected.Income = yp.YTD.Income.Add(avg.Income.Mul(rem))
	yp.Projected.Expenses = yp.YTD.Expenses.Add(avg.Expenses.Mul(rem))
	yp.Projected.Balance = yp.Projected.Income.Sub(yp.Projected.Expenses)
	return yp, true
}

// DefaultEmergencyMonths is the emergency fund size in months of expenses.
const DefaultEmergencyMonths = 6

type EmergencyFund struct {
	Target          decimal.Decimal `json:"target"`
	TargetMonths    int             `json:"target_months"`
	ProgressPercent float64         `json:"progress_percent"`
	IsComplete      bool            `json:"is_complete"`
	MonthsCovered   float64         `json:"months_covered"`
}

// EmergencyFundStatus sizes the emergency fund as targetMonths of average
// expenses and measures savings against it. targetMonths <= 0 means
// DefaultEmergencyMonths. Without expenses there is no target and the fund
// is never complete.
func EmergencyFundStatus(avgMonthlyExpenses, savings decimal.Decimal, targetMonths int) EmergencyFund {
	if targetMonths <= 0 {
		targetMonths = DefaultEmergencyMonths
	}
	ef := EmergencyFund{TargetMonths: targetMonths}
	if !avgMonthlyExpenses.IsPositive() {
		return ef
	}
	ef.Target = avgMonthlyExpenses.Mul(decimal.NewFromInt(int64(targetMonths)))
	ef.ProgressPercent = savings.Div(ef.Target).Mul(decimal.NewFromInt(100)).InexactFloat64()
	ef.IsComplete = savings.GreaterThanOrEqual(ef.Target)
	ef.MonthsCovered = savings.Div(avgMonthlyExpenses).InexactFloat64()
	return ef
}
