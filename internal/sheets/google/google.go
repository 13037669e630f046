package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"finanse/internal/core"
	ports "finanse/internal/sheets"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Options names the spreadsheet and its tabs.
type Options struct {
	SpreadsheetID     string
	AssetsSheet       string
	HistorySheet      string
	MilestonesSheet   string
	ContributionSheet string
	CategoriesSheet   string
}

func (o *Options) setDefaults() {
	if o.AssetsSheet == "" {
		o.AssetsSheet = "Aktywa"
	}
	if o.HistorySheet == "" {
		o.HistorySheet = "Historia"
	}
	if o.MilestonesSheet == "" {
		o.MilestonesSheet = "Kamienie milowe"
	}
	if o.ContributionSheet == "" {
		o.ContributionSheet = "Wpłaty emerytalne"
	}
	if o.CategoriesSheet == "" {
		o.CategoriesSheet = "Kategorie"
	}
}

type Client struct {
	svc  *gsheet.Service
	opts Options

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// Ensure interface conformance
var (
	_ ports.RecordSource       = (*Client)(nil)
	_ ports.RecordWriter       = (*Client)(nil)
	_ ports.AssetSource        = (*Client)(nil)
	_ ports.AssetReader        = (*Client)(nil)
	_ ports.AssetWriter        = (*Client)(nil)
	_ ports.MilestoneStore     = (*Client)(nil)
	_ ports.ContributionSource = (*Client)(nil)
	_ ports.CategoryReader     = (*Client)(nil)
)

// New creates a Sheets client authenticated with a user token or a service
// account (see newSheetsService).
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	opts.setDefaults()
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, opts: opts, sheetIDs: map[string]int64{}}, nil
}

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional sheet names: GOOGLE_ASSETS_SHEET_NAME, GOOGLE_HISTORY_SHEET_NAME,
// GOOGLE_MILESTONES_SHEET_NAME, GOOGLE_CONTRIBUTIONS_SHEET_NAME,
// GOOGLE_CATEGORIES_SHEET_NAME.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Options{
		SpreadsheetID:     strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		AssetsSheet:       strings.TrimSpace(os.Getenv("GOOGLE_ASSETS_SHEET_NAME")),
		HistorySheet:      strings.TrimSpace(os.Getenv("GOOGLE_HISTORY_SHEET_NAME")),
		MilestonesSheet:   strings.TrimSpace(os.Getenv("GOOGLE_MILESTONES_SHEET_NAME")),
		ContributionSheet: strings.TrimSpace(os.Getenv("GOOGLE_CONTRIBUTIONS_SHEET_NAME")),
		CategoriesSheet:   strings.TrimSpace(os.Getenv("GOOGLE_CATEGORIES_SHEET_NAME")),
	})
}

// newSheetsService initializes a Sheets Service. A user token from
// oauth-init wins; otherwise Service Account credentials are read from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	ts, ok, err := userTokenSource(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		slog.InfoContext(ctx, "Using OAuth user credentials", "token_file", TokenFile())
		return gsheet.NewService(ctx, goption.WithTokenSource(ts))
	}

	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) read(ctx context.Context, sheet, cols string) ([][]interface{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := a1(sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.opts.SpreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) appendRows(ctx context.Context, sheet string, rows [][]any) error {
	rng := a1(sheet, "A1")
	_, err := c.svc.Spreadsheets.Values.Append(c.opts.SpreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	return nil
}

func (c *Client) updateRow(ctx context.Context, sheet string, rowNum int, row []any) error {
	rng := a1(sheet, fmt.Sprintf("A%d:%s%d", rowNum, columnLetter(len(row)-1), rowNum))
	_, err := c.svc.Spreadsheets.Values.Update(c.opts.SpreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// deleteRow removes a 1-based row from sheet.
func (c *Client) deleteRow(ctx context.Context, sheet string, rowNum int) error {
	sheetID, err := c.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(rowNum - 1),
			EndIndex:   int64(rowNum),
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.opts.SpreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d of %s: %w", rowNum, sheet, err)
	}
	return nil
}

func (c *Client) sheetID(ctx context.Context, sheet string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[sheet]
	c.mu.Unlock()
	if ok {
		return id, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.opts.SpreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			c.sheetIDs[s.Properties.Title] = s.Properties.SheetId
		}
	}
	id, ok = c.sheetIDs[sheet]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found", sheet)
	}
	return id, nil
}

// findRow re-reads sheet and returns the 1-based row holding id, or 0.
func (c *Client) findRow(ctx context.Context, sheet string, cols []column, id string) (int, error) {
	values, err := c.read(ctx, sheet, "A:Z")
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	l, err := detectLayout(sheet, toStrings(values[0]), cols)
	if err != nil {
		return 0, err
	}
	for i := 1; i < len(values); i++ {
		if strings.TrimSpace(l.get(toStrings(values[i]), "id")) == id {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (c *Client) GetAssets(ctx context.Context) ([]core.Asset, error) {
	values, err := c.read(ctx, c.opts.AssetsSheet, "A:Z")
	if err != nil {
		return nil, err
	}
	assets, _, err := parseAssets(values)
	return assets, err
}

// GetAsset reads the asset as currently stored.
func (c *Client) GetAsset(ctx context.Context, id string) (core.Asset, error) {
	assets, err := c.GetAssets(ctx)
	if err != nil {
		return core.Asset{}, err
	}
	for _, a := range assets {
		if a.ID == id {
			return a, nil
		}
	}
	return core.Asset{}, fmt.Errorf("%w: %s", core.ErrAssetNotFound, id)
}

func (c *Client) assetLayout(ctx context.Context) (layout, error) {
	values, err := c.read(ctx, c.opts.AssetsSheet, "1:1")
	if err != nil {
		return layout{}, err
	}
	if len(values) == 0 {
		l, header := canonicalLayout(assetColumns)
		if err := c.appendRows(ctx, c.opts.AssetsSheet, [][]any{header}); err != nil {
			return layout{}, err
		}
		return l, nil
	}
	return detectLayout("assets", toStrings(values[0]), assetColumns)
}

func (c *Client) AppendAsset(ctx context.Context, a core.Asset) (string, error) {
	if err := a.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	l, err := c.assetLayout(ctx)
	if err != nil {
		return "", err
	}
	if err := c.appendRows(ctx, c.opts.AssetsSheet, [][]any{l.row(assetValues(a))}); err != nil {
		return "", err
	}
	return a.ID, nil
}

// UpdateAsset rewrites the row currently holding a.ID.
func (c *Client) UpdateAsset(ctx context.Context, a core.Asset) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	l, err := c.assetLayout(ctx)
	if err != nil {
		return err
	}
	row, err := c.findRow(ctx, c.opts.AssetsSheet, assetColumns, a.ID)
	if err != nil {
		return err
	}
	if row == 0 {
		return fmt.Errorf("%w: %s", core.ErrAssetNotFound, a.ID)
	}
	return c.updateRow(ctx, c.opts.AssetsSheet, row, l.row(assetValues(a)))
}

// DeleteAsset locates the row right before deleting it, since earlier
// deletions shift rows up.
func (c *Client) DeleteAsset(ctx context.Context, id string) error {
	row, err := c.findRow(ctx, c.opts.AssetsSheet, assetColumns, id)
	if err != nil {
		return err
	}
	if row == 0 {
		return fmt.Errorf("%w: %s", core.ErrAssetNotFound, id)
	}
	return c.deleteRow(ctx, c.opts.AssetsSheet, row)
}

func (c *Client) GetSeries(ctx context.Context, f ports.SeriesFilter) ([]core.Record, error) {
	values, err := c.read(ctx, c.opts.HistorySheet, "A:Z")
	if err != nil {
		return nil, err
	}
	records, err := parseRecords(values)
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, r := range records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (c *Client) AppendRecords(ctx context.Context, records []core.Record) error {
	if len(records) == 0 {
		return nil
	}
	values, err := c.read(ctx, c.opts.HistorySheet, "1:1")
	if err != nil {
		return err
	}
	var l layout
	var rows [][]any
	if len(values) == 0 {
		var header []any
		l, header = canonicalLayout(recordColumns)
		rows = append(rows, header)
	} else if l, err = detectLayout("history", toStrings(values[0]), recordColumns); err != nil {
		return err
	}
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		rows = append(rows, l.row(recordValues(r)))
	}
	return c.appendRows(ctx, c.opts.HistorySheet, rows)
}

func (c *Client) ListMilestones(ctx context.Context) ([]core.Milestone, error) {
	values, err := c.read(ctx, c.opts.MilestonesSheet, "A:Z")
	if err != nil {
		return nil, err
	}
	ms, _, err := parseMilestones(values)
	return ms, err
}

// SaveMilestone updates the row holding m.ID or appends a new one.
func (c *Client) SaveMilestone(ctx context.Context, m core.Milestone) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	values, err := c.read(ctx, c.opts.MilestonesSheet, "A:Z")
	if err != nil {
		return err
	}
	if len(values) == 0 {
		l, header := canonicalLayout(milestoneColumns)
		return c.appendRows(ctx, c.opts.MilestonesSheet, [][]any{header, l.row(milestoneValues(m))})
	}
	l, err := detectLayout("milestones", toStrings(values[0]), milestoneColumns)
	if err != nil {
		return err
	}
	for i := 1; i < len(values); i++ {
		if strings.TrimSpace(l.get(toStrings(values[i]), "id")) == m.ID {
			return c.updateRow(ctx, c.opts.MilestonesSheet, i+1, l.row(milestoneValues(m)))
		}
	}
	return c.appendRows(ctx, c.opts.MilestonesSheet, [][]any{l.row(milestoneValues(m))})
}

func (c *Client) DeleteMilestone(ctx context.Context, id string) error {
	row, err := c.findRow(ctx, c.opts.MilestonesSheet, milestoneColumns, id)
	if err != nil {
		return err
	}
	if row == 0 {
		return fmt.Errorf("%w: %s", core.ErrMilestoneNotFound, id)
	}
	return c.deleteRow(ctx, c.opts.MilestonesSheet, row)
}

func (c *Client) ListContributions(ctx context.Context, year int) ([]core.Contribution, error) {
	values, err := c.read(ctx, c.opts.ContributionSheet, "A:Z")
	if err != nil {
		return nil, err
	}
	all, err := parseContributions(values)
	if err != nil {
		return nil, err
	}
	if year == 0 {
		return all, nil
	}
	var out []core.Contribution
	for _, ct := range all {
		if ct.Date.Year() == year {
			out = append(out, ct)
		}
	}
	return out, nil
}

// Categories reads the category sheet, falling back to the defaults when
// the sheet is empty.
func (c *Client) Categories(ctx context.Context) (core.CategorySet, error) {
	values, err := c.read(ctx, c.opts.CategoriesSheet, "A:B")
	if err != nil {
		return core.CategorySet{}, err
	}
	return parseCategories(values)
}

// a1 quotes a sheet name for A1 notation.
func a1(sheet, rng string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), rng)
}
