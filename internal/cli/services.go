package cli

import (
	"fmt"

	"finanse/internal/backend"
	"finanse/internal/config"
	"finanse/internal/services"
)

// NewServices builds the report, merge and milestone services over an
// opened backend. Writes through the merge and milestone services purge
// cached dashboards.
func NewServices(cfg *config.Config, res *backend.BackendResult) (*App, error) {
	rates, err := cfg.Rates()
	if err != nil {
		return nil, fmt.Errorf("exchange rates: %w", err)
	}
	limits, err := cfg.Limits()
	if err != nil {
		return nil, fmt.Errorf("retirement limits: %w", err)
	}

	report, err := services.NewReportService(res.Backend, services.ReportOptions{
		Converter:        rates,
		Limits:           limits,
		EmergencyMonths:  cfg.EmergencyFundMonths,
		AnomalyThreshold: cfg.AnomalyThreshold,
		CacheTTL:         cfg.ReportCacheTTL,
	})
	if err != nil {
		return nil, err
	}

	var publisher services.MergePublisher
	if res.Publisher != nil {
		publisher = res.Publisher
	}
	merge := services.NewMergeService(res.Backend, publisher)
	merge.OnChange(report.Invalidate)

	milestones := services.NewMilestoneService(res.Backend)
	milestones.OnChange(report.Invalidate)

	return &App{
		Report:     report,
		Merge:      merge,
		Milestones: milestones,
	}, nil
}
