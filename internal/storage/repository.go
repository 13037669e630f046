package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finanse/internal/core"
	"finanse/internal/sheets"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const (
	polarityAsset     = "asset"
	polarityLiability = "liability"
)

// SQLiteRepository stores every sheet in a local SQLite database.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var (
	_ sheets.RecordSource       = (*SQLiteRepository)(nil)
	_ sheets.RecordWriter       = (*SQLiteRepository)(nil)
	_ sheets.AssetSource        = (*SQLiteRepository)(nil)
	_ sheets.AssetReader        = (*SQLiteRepository)(nil)
	_ sheets.AssetWriter        = (*SQLiteRepository)(nil)
	_ sheets.MilestoneStore     = (*SQLiteRepository)(nil)
	_ sheets.ContributionSource = (*SQLiteRepository)(nil)
	_ sheets.CategoryReader     = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Categories implements sheets.CategoryReader.
func (r *SQLiteRepository) Categories(ctx context.Context) (core.CategorySet, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return core.CategorySet{}, fmt.Errorf("list categories: %w", err)
	}
	if len(rows) == 0 {
		return core.DefaultCategories(), nil
	}
	cats := core.NewCategorySet()
	for _, c := range rows {
		p := core.PolarityAsset
		if c.Polarity == polarityLiability {
			p = core.PolarityLiability
		}
		cats.Add(c.Name, p)
	}
	return cats, nil
}

// SaveCategory adds a category or changes its polarity.
func (r *SQLiteRepository) SaveCategory(ctx context.Context, name string, p core.Polarity) error {
	pol := polarityAsset
	if p == core.PolarityLiability {
		pol = polarityLiability
	}
	if err := r.queries.UpsertCategory(ctx, Category{Name: name, Polarity: pol}); err != nil {
		return fmt.Errorf("save category %s: %w", name, err)
	}
	return nil
}

// GetSeries implements sheets.RecordSource. Kind and period bounds are
// pushed into SQL; the category match is Unicode case-insensitive and
// happens here.
func (r *SQLiteRepository) GetSeries(ctx context.Context, f sheets.SeriesFilter) ([]core.Record, error) {
	arg := ListRecordsParams{Kind: string(f.Kind)}
	if f.From != (core.Period{}) {
		arg.FromDate = f.From.Start().String()
	}
	if f.To != (core.Period{}) {
		arg.ToDate = f.To.Next().Start().String()
	}
	rows, err := r.queries.ListRecords(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	out := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable record", "id", row.ID, "error", err)
			continue
		}
		if f.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AppendRecords implements sheets.RecordWriter. The batch is written in a
// single transaction.
func (r *SQLiteRepository) AppendRecords(ctx context.Context, records []core.Record) error {
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, rec := range records {
		if err := q.InsertRecord(ctx, Record{
			Date:        rec.Date.String(),
			Kind:        string(rec.Kind),
			Category:    rec.Category,
			Subcategory: rec.Subcategory,
			Amount:      rec.Amount.String(),
			Currency:    core.NormalizeCurrency(rec.Currency),
			AmountBase:  rec.AmountBase.String(),
		}); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit records: %w", err)
	}
	slog.InfoContext(ctx, "Records saved to SQLite", "count", len(records))
	return nil
}

// GetAssets implements sheets.AssetSource.
func (r *SQLiteRepository) GetAssets(ctx context.Context) ([]core.Asset, error) {
	rows, err := r.queries.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	out := make([]core.Asset, 0, len(rows))
	for _, row := range rows {
		a, err := assetFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", row.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// GetAsset implements sheets.AssetReader.
func (r *SQLiteRepository) GetAsset(ctx context.Context, id string) (core.Asset, error) {
	row, err := r.queries.GetAsset(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Asset{}, fmt.Errorf("%w: %s", core.ErrAssetNotFound, id)
	}
	if err != nil {
		return core.Asset{}, fmt.Errorf("get asset %s: %w", id, err)
	}
	return assetFromRow(row)
}

// AppendAsset implements sheets.AssetWriter, assigning a uuid when the
// asset has no id yet.
func (r *SQLiteRepository) AppendAsset(ctx context.Context, a core.Asset) (string, error) {
	if err := a.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := r.queries.InsertAsset(ctx, assetToRow(a)); err != nil {
		return "", fmt.Errorf("insert asset: %w", err)
	}
	slog.InfoContext(ctx, "Asset saved to SQLite",
		"id", a.ID,
		"name", a.Name,
		"category", a.Category,
		"amount", a.Amount.String(),
		"currency", a.Currency)
	return a.ID, nil
}

func (r *SQLiteRepository) UpdateAsset(ctx context.Context, a core.Asset) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	n, err := r.queries.UpdateAsset(ctx, assetToRow(a))
	if err != nil {
		return fmt.Errorf("update asset %s: %w", a.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrAssetNotFound, a.ID)
	}
	return nil
}

func (r *SQLiteRepository) DeleteAsset(ctx context.Context, id string) error {
	n, err := r.queries.DeleteAsset(ctx, id)
	if err != nil {
		return fmt.Errorf("delete asset %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrAssetNotFound, id)
	}
	slog.InfoContext(ctx, "Asset deleted from SQLite", "id", id)
	return nil
}

// ListMilestones implements sheets.MilestoneStore.
func (r *SQLiteRepository) ListMilestones(ctx context.Context) ([]core.Milestone, error) {
	rows, err := r.queries.ListMilestones(ctx)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	out := make([]core.Milestone, 0, len(rows))
	for _, row := range rows {
		m, err := milestoneFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("milestone %s: %w", row.ID, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *SQLiteRepository) SaveMilestone(ctx context.Context, m core.Milestone) error {
	if err := m.Validate(); err != nil {
		return err
	}
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	err := r.queries.UpsertMilestone(ctx, Milestone{
		ID:           m.ID,
		TargetValue:  m.TargetValue.String(),
		Category:     m.Category,
		Status:       string(m.Status),
		AchievedDate: m.AchievedDate.String(),
		CreatedAt:    created.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("save milestone %s: %w", m.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteMilestone(ctx context.Context, id string) error {
	n, err := r.queries.DeleteMilestone(ctx, id)
	if err != nil {
		return fmt.Errorf("delete milestone %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrMilestoneNotFound, id)
	}
	return nil
}

// ListContributions implements sheets.ContributionSource.
func (r *SQLiteRepository) ListContributions(ctx context.Context, year int) ([]core.Contribution, error) {
	y := ""
	if year != 0 {
		y = fmt.Sprintf("%04d", year)
	}
	rows, err := r.queries.ListContributions(ctx, y)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	out := make([]core.Contribution, 0, len(rows))
	for _, row := range rows {
		date, err := core.ParseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("contribution %d: %w", row.ID, err)
		}
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("contribution %d: %w", row.ID, err)
		}
		out = append(out, core.Contribution{Date: date, Account: core.RetirementAccount(row.Account), Amount: amount})
	}
	return out, nil
}

func (r *SQLiteRepository) AddContribution(ctx context.Context, c core.Contribution) error {
	if err := c.Validate(); err != nil {
		return err
	}
	err := r.queries.InsertContribution(ctx, Contribution{
		Date:    c.Date.String(),
		Account: string(c.Account),
		Amount:  c.Amount.String(),
	})
	if err != nil {
		return fmt.Errorf("insert contribution: %w", err)
	}
	return nil
}

func recordFromRow(row Record) (core.Record, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Record{}, err
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Record{}, err
	}
	base, err := decimal.NewFromString(row.AmountBase)
	if err != nil {
		return core.Record{}, err
	}
	return core.Record{
		Date:        date,
		Kind:        core.RecordKind(row.Kind),
		Category:    row.Category,
		Subcategory: row.Subcategory,
		Amount:      amount,
		Currency:    row.Currency,
		AmountBase:  base,
	}, nil
}

func assetToRow(a core.Asset) Asset {
	return Asset{
		ID:          a.ID,
		Name:        a.Name,
		Category:    a.Category,
		Subcategory: a.Subcategory,
		Amount:      a.Amount.String(),
		Currency:    core.NormalizeCurrency(a.Currency),
		Account:     string(a.Account),
		Notes:       a.Notes,
	}
}

func assetFromRow(row Asset) (core.Asset, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Asset{}, err
	}
	return core.Asset{
		ID:          row.ID,
		Name:        row.Name,
		Category:    row.Category,
		Subcategory: row.Subcategory,
		Amount:      amount,
		Currency:    row.Currency,
		Account:     core.RetirementAccount(row.Account),
		Notes:       row.Notes,
	}, nil
}

func milestoneFromRow(row Milestone) (core.Milestone, error) {
	target, err := decimal.NewFromString(row.TargetValue)
	if err != nil {
		return core.Milestone{}, err
	}
	m := core.Milestone{
		ID:          row.ID,
		TargetValue: target,
		Category:    row.Category,
		Status:      core.MilestoneStatus(row.Status),
	}
	if row.AchievedDate != "" {
		if m.AchievedDate, err = core.ParseDate(row.AchievedDate); err != nil {
			return core.Milestone{}, err
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
		m.CreatedAt = t.UTC()
	}
	return m, nil
}

