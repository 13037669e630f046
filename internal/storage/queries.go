package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Rows as stored. Amounts are decimal strings and dates are YYYY-MM-DD so
// lexical order is chronological order.
type (
	Category struct {
		Name     string
		Polarity string
	}

	Record struct {
		ID          int64
		Date        string
		Kind        string
		Category    string
		Subcategory string
		Amount      string
		Currency    string
		AmountBase  string
	}

	Asset struct {
		ID          string
		Name        string
		Category    string
		Subcategory string
		Amount      string
		Currency    string
		Account     string
		Notes       string
	}

	Milestone struct {
		ID           string
		TargetValue  string
		Category     string
		Status       string
		AchievedDate string
		CreatedAt    string // RFC 3339
	}

	Contribution struct {
		ID      int64
		Date    string
		Account string
		Amount  string
	}
)

const listCategories = `SELECT name, polarity FROM categories ORDER BY rowid`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.Name, &i.Polarity); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertCategory = `INSERT INTO categories (name, polarity) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET polarity = excluded.polarity`

func (q *Queries) UpsertCategory(ctx context.Context, arg Category) error {
	_, err := q.db.ExecContext(ctx, upsertCategory, arg.Name, arg.Polarity)
	return err
}

const insertRecord = `INSERT INTO records (date, kind, category, subcategory, amount, currency, amount_base)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertRecord(ctx context.Context, arg Record) error {
	_, err := q.db.ExecContext(ctx, insertRecord,
		arg.Date, arg.Kind, arg.Category, arg.Subcategory, arg.Amount, arg.Currency, arg.AmountBase)
	return err
}

type ListRecordsParams struct {
	Kind     string
	FromDate string
	ToDate   string // exclusive
}

const listRecords = `SELECT id, date, kind, category, subcategory, amount, currency, amount_base
FROM records
WHERE (?1 = '' OR kind = ?1)
  AND (?2 = '' OR date >= ?2)
  AND (?3 = '' OR date < ?3)
ORDER BY date, id`

func (q *Queries) ListRecords(ctx context.Context, arg ListRecordsParams) ([]Record, error) {
	rows, err := q.db.QueryContext(ctx, listRecords, arg.Kind, arg.FromDate, arg.ToDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Record
	for rows.Next() {
		var i Record
		if err := rows.Scan(&i.ID, &i.Date, &i.Kind, &i.Category, &i.Subcategory, &i.Amount, &i.Currency, &i.AmountBase); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const assetColumns = `id, name, category, subcategory, amount, currency, account, notes`

func scanAsset(row interface{ Scan(...any) error }) (Asset, error) {
	var i Asset
	err := row.Scan(&i.ID, &i.Name, &i.Category, &i.Subcategory, &i.Amount, &i.Currency, &i.Account, &i.Notes)
	return i, err
}

const listAssets = `SELECT ` + assetColumns + ` FROM assets ORDER BY position`

func (q *Queries) ListAssets(ctx context.Context) ([]Asset, error) {
	rows, err := q.db.QueryContext(ctx, listAssets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Asset
	for rows.Next() {
		i, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getAsset = `SELECT ` + assetColumns + ` FROM assets WHERE id = ?`

func (q *Queries) GetAsset(ctx context.Context, id string) (Asset, error) {
	return scanAsset(q.db.QueryRowContext(ctx, getAsset, id))
}

const insertAsset = `INSERT INTO assets (id, name, category, subcategory, amount, currency, account, notes, position)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM assets))`

func (q *Queries) InsertAsset(ctx context.Context, arg Asset) error {
	_, err := q.db.ExecContext(ctx, insertAsset,
		arg.ID, arg.Name, arg.Category, arg.Subcategory, arg.Amount, arg.Currency, arg.Account, arg.Notes)
	return err
}

const updateAsset = `UPDATE assets
SET name = ?, category = ?, subcategory = ?, amount = ?, currency = ?, account = ?, notes = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

func (q *Queries) UpdateAsset(ctx context.Context, arg Asset) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateAsset,
		arg.Name, arg.Category, arg.Subcategory, arg.Amount, arg.Currency, arg.Account, arg.Notes, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteAsset = `DELETE FROM assets WHERE id = ?`

func (q *Queries) DeleteAsset(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAsset, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listMilestones = `SELECT id, target_value, category, status, achieved_date, created_at
FROM milestones ORDER BY created_at, id`

func (q *Queries) ListMilestones(ctx context.Context) ([]Milestone, error) {
	rows, err := q.db.QueryContext(ctx, listMilestones)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Milestone
	for rows.Next() {
		var i Milestone
		if err := rows.Scan(&i.ID, &i.TargetValue, &i.Category, &i.Status, &i.AchievedDate, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertMilestone = `INSERT INTO milestones (id, target_value, category, status, achieved_date, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    target_value = excluded.target_value,
    category = excluded.category,
    status = excluded.status,
    achieved_date = excluded.achieved_date`

func (q *Queries) UpsertMilestone(ctx context.Context, arg Milestone) error {
	_, err := q.db.ExecContext(ctx, upsertMilestone,
		arg.ID, arg.TargetValue, arg.Category, arg.Status, arg.AchievedDate, arg.CreatedAt)
	return err
}

const deleteMilestone = `DELETE FROM milestones WHERE id = ?`

func (q *Queries) DeleteMilestone(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteMilestone, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertContribution = `INSERT INTO contributions (date, account, amount) VALUES (?, ?, ?)`

func (q *Queries) InsertContribution(ctx context.Context, arg Contribution) error {
	_, err := q.db.ExecContext(ctx, insertContribution, arg.Date, arg.Account, arg.Amount)
	return err
}

const listContributions = `SELECT id, date, account, amount
FROM contributions
WHERE (?1 = '' OR substr(date, 1, 4) = ?1)
ORDER BY date, id`

// ListContributions filters by a four-digit year; an empty year lists all.
func (q *Queries) ListContributions(ctx context.Context, year string) ([]Contribution, error) {
	rows, err := q.db.QueryContext(ctx, listContributions, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Contribution
	for rows.Next() {
		var i Contribution
		if err := rows.Scan(&i.ID, &i.Date, &i.Account, &i.Amount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
