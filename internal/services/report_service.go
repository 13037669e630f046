package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finanse/internal/cache"
	"finanse/internal/core"
	"finanse/internal/currency"
	"finanse/internal/duplicates"
	"finanse/internal/metrics"
	"finanse/internal/milestones"
	"finanse/internal/retirement"
	"finanse/internal/sheets"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ReportStore is every port a dashboard reads from.
type ReportStore interface {
	sheets.CategoryReader
	sheets.RecordSource
	sheets.AssetSource
	sheets.MilestoneStore
	sheets.ContributionSource
}

// averageWindow is how many months before the reported one feed averages.
const averageWindow = 12

// DefaultLiquidCategories hold the savings counted towards the emergency
// fund.
var DefaultLiquidCategories = []string{"Gotówka", "Konta", "Lokaty"}

type ReportOptions struct {
	Converter        currency.Converter
	Limits           retirement.LimitContext
	EmergencyMonths  int
	AnomalyThreshold float64
	LiquidCategories []string
	CacheTTL         time.Duration
	CacheSize        int
	Now              func() time.Time
}

// Dashboard is the full set of metrics for one month.
type Dashboard struct {
	Period       core.Period `json:"period"`
	BaseCurrency string      `json:"base_currency"`
	GeneratedAt  time.Time   `json:"generated_at"`

	NetWorth       decimal.Decimal           `json:"net_worth"`
	NetWorthSeries []metrics.PeriodValue     `json:"net_worth_series"`
	NetWorthTrend  metrics.TrendResult       `json:"net_worth_trend"`
	Allocation     []metrics.Share           `json:"allocation"`
	Month          core.MonthSummary         `json:"month"`
	VsPrevious     metrics.MonthComparison   `json:"vs_previous"`
	VsAverage      metrics.AverageComparison `json:"vs_average"`
	SavingsRate    *float64                  `json:"savings_rate,omitempty"`

	Seasonality metrics.SeasonalityTable `json:"seasonality"`
	Drift       []metrics.Drift          `json:"drift"`
	Anomalies   []metrics.Anomaly        `json:"anomalies"`

	NextMonth     metrics.Projection        `json:"next_month"`
	Yearly        *metrics.YearlyProjection `json:"yearly,omitempty"`
	EmergencyFund metrics.EmergencyFund     `json:"emergency_fund"`

	Milestones []milestones.MilestoneProgress `json:"milestones"`
	Achieved   []milestones.Transition        `json:"achieved,omitempty"`
	Duplicates []duplicates.Group             `json:"duplicates"`
	Limits     []retirement.LimitUsage        `json:"limits"`
}

// ReportService builds dashboards from the store. Dashboards are cached per
// month until Invalidate is called or the TTL passes.
type ReportService struct {
	store ReportStore
	opts  ReportOptions
	cache *cache.LRUCache[*Dashboard]
}

func NewReportService(store ReportStore, opts ReportOptions) (*ReportService, error) {
	if store == nil {
		return nil, fmt.Errorf("report service needs a store")
	}
	if opts.Converter == nil {
		return nil, fmt.Errorf("report service needs a currency converter")
	}
	if len(opts.Limits.Years()) == 0 {
		opts.Limits = retirement.DefaultLimits()
	}
	if opts.EmergencyMonths <= 0 {
		opts.EmergencyMonths = metrics.DefaultEmergencyMonths
	}
	if opts.AnomalyThreshold <= 0 {
		opts.AnomalyThreshold = metrics.DefaultAnomalyThreshold
	}
	if len(opts.LiquidCategories) == 0 {
		opts.LiquidCategories = DefaultLiquidCategories
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 24
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ReportService{
		store: store,
		opts:  opts,
		cache: cache.NewLRUCache[*Dashboard](opts.CacheSize, opts.CacheTTL),
	}, nil
}

// Cache exposes the dashboard cache for registration with a cache.Manager.
func (s *ReportService) Cache() *cache.LRUCache[*Dashboard] {
	return s.cache
}

// Invalidate drops every cached dashboard.
func (s *ReportService) Invalidate() {
	s.cache.Purge()
}

func (s *ReportService) BaseCurrency() string {
	return s.opts.Converter.Base()
}

// CurrentPeriod is the month containing now.
func (s *ReportService) CurrentPeriod() core.Period {
	return core.PeriodOf(s.opts.Now())
}

type snapshot struct {
	cats          core.CategorySet
	records       []core.Record
	assets        []core.Asset
	milestones    []core.Milestone
	contributions []core.Contribution
}

func (s *ReportService) load(ctx context.Context, period core.Period) (*snapshot, error) {
	var snap snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cats, err := s.store.Categories(ctx)
		if err != nil {
			return fmt.Errorf("get categories: %w", err)
		}
		snap.cats = cats
		return nil
	})
	g.Go(func() error {
		records, err := s.store.GetSeries(ctx, sheets.SeriesFilter{To: period})
		if err != nil {
			return fmt.Errorf("get history: %w", err)
		}
		snap.records = records
		return nil
	})
	g.Go(func() error {
		assets, err := s.store.GetAssets(ctx)
		if err != nil {
			return fmt.Errorf("get assets: %w", err)
		}
		snap.assets = assets
		return nil
	})
	g.Go(func() error {
		ms, err := s.store.ListMilestones(ctx)
		if err != nil {
			return fmt.Errorf("list milestones: %w", err)
		}
		snap.milestones = ms
		return nil
	})
	g.Go(func() error {
		contribs, err := s.store.ListContributions(ctx, period.Year)
		if err != nil {
			return fmt.Errorf("list contributions: %w", err)
		}
		snap.contributions = contribs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Dashboard returns the metrics for period, from cache when possible.
// Pending milestones reached by the current assets are achieved and saved
// as a side effect.
func (s *ReportService) Dashboard(ctx context.Context, period core.Period) (*Dashboard, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	key := period.String()
	if d, ok := s.cache.Get(key); ok {
		slog.DebugContext(ctx, "Dashboard served from cache", "period", key)
		return d, nil
	}

	start := time.Now()
	snap, err := s.load(ctx, period)
	if err != nil {
		return nil, err
	}
	d, err := s.build(period, snap)
	if err != nil {
		return nil, err
	}
	for _, tr := range d.Achieved {
		for _, m := range snap.milestones {
			if m.ID != tr.MilestoneID {
				continue
			}
			if err := s.store.SaveMilestone(ctx, m); err != nil {
				return nil, fmt.Errorf("save achieved milestone %s: %w", m.ID, err)
			}
			slog.InfoContext(ctx, "Milestone achieved",
				"milestone_id", m.ID,
				"category", m.Category,
				"target", m.TargetValue.String(),
				"achieved_date", m.AchievedDate.String(),
				"backfilled", tr.Backfilled)
		}
	}

	s.cache.Set(key, d)
	slog.InfoContext(ctx, "Dashboard built",
		"period", key,
		"records", len(snap.records),
		"assets", len(snap.assets),
		"duration", time.Since(start))
	return d, nil
}

func (s *ReportService) build(period core.Period, snap *snapshot) (*Dashboard, error) {
	d := &Dashboard{
		Period:       period,
		BaseCurrency: s.opts.Converter.Base(),
		GeneratedAt:  s.opts.Now(),
	}

	today := core.NewDate(d.GeneratedAt.Year(), int(d.GeneratedAt.Month()), d.GeneratedAt.Day())
	current, err := currency.AssetRecords(snap.assets, today, s.opts.Converter)
	if err != nil {
		return nil, fmt.Errorf("convert assets: %w", err)
	}
	values := milestones.ValuesFromRecords(current, snap.cats)
	d.NetWorth = values.NetWorth
	d.Allocation = metrics.Shares(metrics.GroupBy(current, metrics.ByCategory))

	var assetHistory []core.Record
	for _, r := range snap.records {
		if r.Kind == core.KindAsset {
			assetHistory = append(assetHistory, r)
		}
	}
	d.NetWorthSeries = metrics.NetWorthSeries(assetHistory, snap.cats)
	d.NetWorthTrend = metrics.LinearTrend(metrics.Floats(d.NetWorthSeries))

	months := metrics.MonthlySummaries(snap.records)
	var (
		before []core.MonthSummary
		ytd    []core.MonthSummary
	)
	d.Month = core.MonthSummary{Period: period}
	for _, m := range months {
		switch {
		case m.Period == period:
			d.Month = m
		case m.Period.Before(period):
			before = append(before, m)
		}
		if m.Period.Year == period.Year && !period.Before(m.Period) {
			ytd = append(ytd, m)
		}
	}
	var prev *core.MonthSummary
	if n := len(before); n > 0 && before[n-1].Period == period.Prev() {
		prev = &before[n-1]
	}
	d.VsPrevious = metrics.CompareMonths(d.Month, prev)

	window := lastMonths(before, averageWindow)
	d.VsAverage = metrics.CompareWithAverage(d.Month, metrics.AverageSummary(window))
	if rate, ok := metrics.SavingsRate(d.Month.Income, d.Month.Expenses); ok {
		d.SavingsRate = &rate
	}

	d.Seasonality = metrics.Seasonality(metrics.ExpensePoints(months))
	totals := metrics.CategoryTotalsByPeriod(snap.records, core.KindExpense)
	d.Drift = metrics.CategoryDrift(totals)
	d.Anomalies = anomalies(totals, period, s.opts.AnomalyThreshold)

	upToNow := before
	if d.Month.Income.IsPositive() || d.Month.Expenses.IsPositive() {
		upToNow = append(append([]core.MonthSummary{}, before...), d.Month)
	}
	d.NextMonth = metrics.ProjectNextPeriod(upToNow, d.Seasonality, time.Month(period.Next().Month))
	if yp, ok := metrics.ProjectYearly(ytd); ok {
		d.Yearly = &yp
	}
	avgExpenses := metrics.AverageSummary(lastMonths(upToNow, averageWindow)).Expenses
	d.EmergencyFund = metrics.EmergencyFundStatus(avgExpenses, liquidSavings(current, s.opts.LiquidCategories), s.opts.EmergencyMonths)

	tracker := milestones.NewTracker(snap.cats)
	d.Achieved = tracker.Evaluate(snap.milestones, values, assetHistory)
	for _, m := range snap.milestones {
		val, _ := values.For(m.Category)
		est := milestones.EstimateGrowthRate(milestones.ScopeSeries(assetHistory, m.Category, snap.cats))
		d.Milestones = append(d.Milestones, milestones.Progress(m, val, est))
	}

	d.Duplicates = duplicates.DetectGroups(snap.assets)
	d.Limits = retirement.Summary(s.opts.Limits, period.Year, snap.contributions)
	return d, nil
}

// Limits reports retirement cap usage for year without building a whole
// dashboard.
func (s *ReportService) Limits(ctx context.Context, year int) ([]retirement.LimitUsage, error) {
	contribs, err := s.store.ListContributions(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	return retirement.Summary(s.opts.Limits, year, contribs), nil
}

func lastMonths(months []core.MonthSummary, n int) []core.MonthSummary {
	if len(months) > n {
		return months[len(months)-n:]
	}
	return months
}

// anomalies compares the spending of period with the average of up to
// averageWindow earlier months.
func anomalies(totals []metrics.CategoryTotals, period core.Period, threshold float64) []metrics.Anomaly {
	var (
		current map[string]float64
		earlier []metrics.CategoryTotals
	)
	for _, t := range totals {
		switch {
		case t.Period == period:
			current = t.Totals
		case t.Period.Before(period):
			earlier = append(earlier, t)
		}
	}
	if current == nil || len(earlier) == 0 {
		return nil
	}
	if len(earlier) > averageWindow {
		earlier = earlier[len(earlier)-averageWindow:]
	}
	return metrics.FindAnomalies(current, metrics.AverageByCategory(earlier), threshold)
}

func liquidSavings(current []core.Record, liquid []string) decimal.Decimal {
	total := decimal.Zero
	for _, r := range current {
		for _, name := range liquid {
			if strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(r.Category)) {
				total = total.Add(r.AmountBase)
				break
			}
		}
	}
	return total
}
