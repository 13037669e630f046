package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finanse/internal/core"
	"finanse/internal/currency"
	"finanse/internal/sheets"
)

// SnapshotStore is what the snapshot processor reads and appends to.
type SnapshotStore interface {
	sheets.AssetSource
	sheets.RecordSource
	sheets.RecordWriter
}

// SnapshotProcessorConfig holds configuration for the snapshot processor
type SnapshotProcessorConfig struct {
	// Schedule is how often snapshots are taken (default: monthly)
	Schedule Schedule

	// AnchorDay is the day of month for monthly and quarterly snapshots (default: 1)
	AnchorDay int

	// PollInterval is how often to check whether a snapshot is due (default: 1h)
	PollInterval time.Duration
}

// DefaultSnapshotProcessorConfig returns sensible defaults
func DefaultSnapshotProcessorConfig() SnapshotProcessorConfig {
	return SnapshotProcessorConfig{
		Schedule:     ScheduleMonthly,
		AnchorDay:    1,
		PollInterval: time.Hour,
	}
}

// SnapshotProcessor copies the current assets into the history as dated
// asset records whenever its schedule says a snapshot is due. The date of
// the newest asset record is the last snapshot, so restarts never produce
// a second snapshot in the same schedule window.
type SnapshotProcessor struct {
	store    SnapshotStore
	conv     currency.Converter
	checker  DueChecker
	config   SnapshotProcessorConfig
	now      func() time.Time
	onChange func()

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSnapshotProcessor fails when the configured schedule is unknown.
func NewSnapshotProcessor(store SnapshotStore, conv currency.Converter, config SnapshotProcessorConfig) (*SnapshotProcessor, error) {
	if store == nil || conv == nil {
		return nil, fmt.Errorf("snapshot processor needs a store and a converter")
	}
	checker, err := GetDueChecker(config.Schedule)
	if err != nil {
		return nil, err
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSnapshotProcessorConfig().PollInterval
	}
	return &SnapshotProcessor{
		store:   store,
		conv:    conv,
		checker: checker,
		config:  config,
		now:     time.Now,
	}, nil
}

// OnChange registers a callback run after a snapshot was appended.
func (p *SnapshotProcessor) OnChange(fn func()) {
	p.onChange = fn
}

// LastSnapshot returns the date of the newest asset record, zero when the
// history holds none.
func (p *SnapshotProcessor) LastSnapshot(ctx context.Context) (time.Time, error) {
	records, err := p.store.GetSeries(ctx, sheets.SeriesFilter{Kind: core.KindAsset})
	if err != nil {
		return time.Time{}, fmt.Errorf("get asset history: %w", err)
	}
	if len(records) == 0 {
		return time.Time{}, nil
	}
	return records[len(records)-1].Date.Time, nil
}

// ProcessDue takes a snapshot if one is due at now and returns the number
// of records appended.
func (p *SnapshotProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	last, err := p.LastSnapshot(ctx)
	if err != nil {
		return 0, err
	}
	if !p.checker.IsDue(last, now, p.config.AnchorDay) {
		slog.DebugContext(ctx, "Snapshot not due",
			"schedule", p.config.Schedule,
			"last_snapshot", last.Format("2006-01-02"))
		return 0, nil
	}
	return p.Snapshot(ctx, core.NewDate(now.Year(), int(now.Month()), now.Day()))
}

// Snapshot appends one asset record per current asset dated on.
func (p *SnapshotProcessor) Snapshot(ctx context.Context, on core.Date) (int, error) {
	assets, err := p.store.GetAssets(ctx)
	if err != nil {
		return 0, fmt.Errorf("get assets: %w", err)
	}
	if len(assets) == 0 {
		slog.InfoContext(ctx, "No assets to snapshot", "date", on.String())
		return 0, nil
	}

	records, err := currency.AssetRecords(assets, on, p.conv)
	if err != nil {
		return 0, fmt.Errorf("convert assets: %w", err)
	}
	if err := p.store.AppendRecords(ctx, records); err != nil {
		return 0, fmt.Errorf("append snapshot: %w", err)
	}
	if p.onChange != nil {
		p.onChange()
	}

	slog.InfoContext(ctx, "Asset snapshot recorded",
		"date", on.String(),
		"records", len(records),
		"schedule", p.config.Schedule)
	return len(records), nil
}

// Start begins the processing loop. Returns an error if already running.
func (p *SnapshotProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("snapshot processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Snapshot processor started",
		"schedule", p.config.Schedule,
		"anchor_day", p.config.AnchorDay,
		"poll_interval", p.config.PollInterval)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SnapshotProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Snapshot processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Snapshot processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SnapshotProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SnapshotProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Check immediately on startup
	p.tick(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *SnapshotProcessor) tick(ctx context.Context) {
	if _, err := p.ProcessDue(ctx, p.now()); err != nil {
		slog.ErrorContext(ctx, "Snapshot processing failed", "error", err)
	}
}
