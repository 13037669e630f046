package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindAsset   RecordKind = "asset"
	KindIncome  RecordKind = "income"
	KindExpense RecordKind = "expense"
)

const (
	AccountNone RetirementAccount = ""
	AccountIKE  RetirementAccount = "IKE"
	AccountIKZE RetirementAccount = "IKZE"
	AccountOIPE RetirementAccount = "OIPE"
)

const (
	MilestonePending  MilestoneStatus = "pending"
	MilestoneAchieved MilestoneStatus = "achieved"
)

// ScopeAll is the milestone scope meaning net worth across every category.
const ScopeAll = "all"

type (
	RecordKind        string
	RetirementAccount string
	MilestoneStatus   string

	Date struct {
		time.Time
	}

	// Period is a calendar month.
	Period struct {
		Year  int
		Month int // 1-12
	}

	// Record is a single dated value from the history sheet. Metrics only
	// ever read records.
	Record struct {
		Date        Date            `json:"date"`
		Kind        RecordKind      `json:"kind"`
		Category    string          `json:"category"`
		Subcategory string          `json:"subcategory,omitempty"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currency"`
		AmountBase  decimal.Decimal `json:"amount_base"` // Amount converted to the base currency
	}

	Asset struct {
		ID          string            `json:"id"`
		Name        string            `json:"name"`
		Category    string            `json:"category"`
		Subcategory string            `json:"subcategory,omitempty"`
		Amount      decimal.Decimal   `json:"amount"`
		Currency    string            `json:"currency"`
		Account     RetirementAccount `json:"account,omitempty"`
		Notes       string            `json:"notes,omitempty"`
	}

	// MergePlan describes how a set of duplicate assets collapses into the
	// primary one. The persistence layer applies it; nothing here mutates.
	MergePlan struct {
		PrimaryAssetID string   `json:"primary_asset_id"`
		MergedAssetIDs []string `json:"merged_asset_ids"`
		// PrimaryAmount is the primary's own amount when the plan was
		// built. A primary holding anything else has already been merged
		// into or edited, and the plan is stale.
		PrimaryAmount     decimal.Decimal   `json:"primary_amount"`
		ResultingAmount   decimal.Decimal   `json:"resulting_amount"`
		ResultingCurrency string            `json:"resulting_currency"`
		ResultingAccount  RetirementAccount `json:"resulting_account"`
		ResultingName     string            `json:"resulting_name"`
		ResultingNotes    string            `json:"resulting_notes"`
	}

	Milestone struct {
		ID          string          `json:"id"`
		TargetValue decimal.Decimal `json:"target_value"`
		Category    string          `json:"category"` // category name or ScopeAll
		Status      MilestoneStatus `json:"status"`
		// AchievedDate is the first historical date the target was met. It
		// stays zero when the history has gaps and no date could be found.
		AchievedDate Date      `json:"achieved_date"`
		CreatedAt    time.Time `json:"created_at"`
	}

	MonthSummary struct {
		Period   Period          `json:"period"`
		Income   decimal.Decimal `json:"income"`
		Expenses decimal.Decimal `json:"expenses"`
	}

	// Contribution is a payment into a retirement wrapper.
	Contribution struct {
		Date    Date              `json:"date"`
		Account RetirementAccount `json:"account"`
		Amount  decimal.Decimal   `json:"amount"`
	}
)

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNegativeAmount  = errors.New("amount cannot be negative")
	ErrEmptyName       = errors.New("empty name")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidCurrency = errors.New("invalid currency")
	ErrInvalidAccount  = errors.New("invalid retirement account")
	ErrInvalidTarget   = errors.New("milestone target must be positive")
	ErrInvalidKind     = errors.New("invalid record kind")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Period returns the calendar month the date falls in.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: int(d.Month())}
}

// String formats the date as YYYY-MM-DD, or "" when empty.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// MarshalJSON writes the date as "YYYY-MM-DD", or null when empty.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDate accepts YYYY-MM-DD and YYYY-MM (first day of month).
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01", "02.01.2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t.UTC()}, nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q", s)
	}
	return PeriodOf(t), nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (p Period) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

func (p *Period) UnmarshalJSON(b []byte) error {
	parsed, err := ParsePeriod(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Index is a monotonically increasing month counter, handy for ordering.
func (p Period) Index() int {
	return p.Year*12 + p.Month - 1
}

func (p Period) Before(o Period) bool {
	return p.Index() < o.Index()
}

func (p Period) Next() Period {
	return p.add(1)
}

func (p Period) Prev() Period {
	return p.add(-1)
}

func (p Period) add(n int) Period {
	idx := p.Index() + n
	return Period{Year: idx / 12, Month: idx%12 + 1}
}

// Start returns the first day of the month.
func (p Period) Start() Date {
	return NewDate(p.Year, p.Month, 1)
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func (k RecordKind) IsValid() bool {
	switch k {
	case KindAsset, KindIncome, KindExpense:
		return true
	}
	return false
}

// ParseAccount normalizes a retirement account tag. Empty input and
// "none"/"-" map to AccountNone.
func ParseAccount(s string) (RetirementAccount, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch v {
	case "", "NONE", "-", "BRAK":
		return AccountNone, nil
	case string(AccountIKE), string(AccountIKZE), string(AccountOIPE):
		return RetirementAccount(v), nil
	}
	return AccountNone, fmt.Errorf("%w: %q", ErrInvalidAccount, s)
}

func (a RetirementAccount) String() string {
	if a == AccountNone {
		return "none"
	}
	return string(a)
}

func (r Record) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if !r.Kind.IsValid() {
		return ErrInvalidKind
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if !ValidCurrency(r.Currency) {
		return ErrInvalidCurrency
	}
	return nil
}

func (a Asset) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if strings.TrimSpace(a.Category) == "" {
		return ErrEmptyCategory
	}
	if a.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if !ValidCurrency(a.Currency) {
		return ErrInvalidCurrency
	}
	if _, err := ParseAccount(string(a.Account)); err != nil {
		return err
	}
	return nil
}

// NewMilestone creates a pending milestone. The target is fixed for the
// lifetime of the milestone; edits are delete and recreate.
func NewMilestone(id string, target decimal.Decimal, category string, now time.Time) (Milestone, error) {
	if !target.IsPositive() {
		return Milestone{}, ErrInvalidTarget
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return Milestone{}, ErrEmptyCategory
	}
	return Milestone{
		ID:          id,
		TargetValue: target,
		Category:    category,
		Status:      MilestonePending,
		CreatedAt:   now.UTC(),
	}, nil
}

func (m Milestone) IsAchieved() bool {
	return m.Status == MilestoneAchieved
}

// Achieve moves the milestone to achieved. It returns false when the
// milestone was already achieved; the first date recorded is never
// replaced or cleared. A zero date records achievement without a
// historical date.
func (m *Milestone) Achieve(on Date) bool {
	if m.IsAchieved() {
		return false
	}
	m.Status = MilestoneAchieved
	m.AchievedDate = on
	return true
}

func (m Milestone) Validate() error {
	if !m.TargetValue.IsPositive() {
		return ErrInvalidTarget
	}
	if strings.TrimSpace(m.Category) == "" {
		return ErrEmptyCategory
	}
	switch m.Status {
	case MilestonePending, MilestoneAchieved:
	default:
		return fmt.Errorf("invalid milestone status %q", m.Status)
	}
	return nil
}

// DeleteIDs returns the merged ids other than the primary.
func (p MergePlan) DeleteIDs() []string {
	out := make([]string, 0, len(p.MergedAssetIDs))
	for _, id := range p.MergedAssetIDs {
		if id != p.PrimaryAssetID {
			out = append(out, id)
		}
	}
	return out
}

func (s MonthSummary) Balance() decimal.Decimal {
	return s.Income.Sub(s.Expenses)
}

func (c Contribution) Validate() error {
	if err := c.Date.Validate(); err != nil {
		return err
	}
	if c.Account == AccountNone {
		return ErrInvalidAccount
	}
	if !c.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
