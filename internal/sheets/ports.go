package sheets

import (
	"context"
	"strings"

	"finanse/internal/core"
)

// SeriesFilter narrows a history read. Zero fields match everything; From
// and To are inclusive months.
type SeriesFilter struct {
	Kind     core.RecordKind
	Category string
	From     core.Period
	To       core.Period
}

// Matches reports whether r passes the filter.
func (f SeriesFilter) Matches(r core.Record) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Category != "" && !equalFold(f.Category, r.Category) {
		return false
	}
	p := r.Date.Period()
	if f.From != (core.Period{}) && p.Before(f.From) {
		return false
	}
	if f.To != (core.Period{}) && f.To.Before(p) {
		return false
	}
	return true
}

// Ports for outbound adapters.
type (
	// RecordSource returns history records sorted ascending by date.
	RecordSource interface {
		GetSeries(ctx context.Context, f SeriesFilter) ([]core.Record, error)
	}

	RecordWriter interface {
		AppendRecords(ctx context.Context, records []core.Record) error
	}

	// AssetSource lists the current assets in storage order.
	AssetSource interface {
		GetAssets(ctx context.Context) ([]core.Asset, error)
	}

	// AssetReader reads one asset as currently stored. Missing ids return
	// core.ErrAssetNotFound.
	AssetReader interface {
		GetAsset(ctx context.Context, id string) (core.Asset, error)
	}

	AssetWriter interface {
		AppendAsset(ctx context.Context, a core.Asset) (id string, err error)
		UpdateAsset(ctx context.Context, a core.Asset) error
		DeleteAsset(ctx context.Context, id string) error
	}

	MilestoneStore interface {
		ListMilestones(ctx context.Context) ([]core.Milestone, error)
		// SaveMilestone inserts or replaces by ID.
		SaveMilestone(ctx context.Context, m core.Milestone) error
		DeleteMilestone(ctx context.Context, id string) error
	}

	ContributionSource interface {
		// ListContributions returns contributions made in year; year 0
		// returns all of them.
		ListContributions(ctx context.Context, year int) ([]core.Contribution, error)
	}

	// CategoryReader returns the category list with its polarity.
	CategoryReader interface {
		Categories(ctx context.Context) (core.CategorySet, error)
	}
)

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
