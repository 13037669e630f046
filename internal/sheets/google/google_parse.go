package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"finanse/internal/core"
)

// column describes one header the parser looks for. The first alias is
// the canonical header written into new sheets.
type column struct {
	key      string
	aliases  []string
	required bool
}

var (
	assetColumns = []column{
		{"id", []string{"ID"}, true},
		{"name", []string{"Nazwa", "Name"}, true},
		{"category", []string{"Kategoria", "Category"}, true},
		{"subcategory", []string{"Podkategoria", "Subcategory"}, false},
		{"amount", []string{"Kwota", "Wartość", "Amount"}, true},
		{"currency", []string{"Waluta", "Currency"}, true},
		{"account", []string{"Konto", "Account"}, false},
		{"notes", []string{"Notatki", "Notes"}, false},
	}
	recordColumns = []column{
		{"date", []string{"Data", "Date"}, true},
		{"kind", []string{"Typ", "Kind"}, false},
		{"category", []string{"Kategoria", "Category"}, true},
		{"subcategory", []string{"Podkategoria", "Subcategory"}, false},
		{"amount", []string{"Kwota", "Amount"}, true},
		{"currency", []string{"Waluta", "Currency"}, true},
		{"base", []string{"Kwota PLN", "Amount base"}, false},
	}
	milestoneColumns = []column{
		{"id", []string{"ID"}, true},
		{"target", []string{"Cel", "Target"}, true},
		{"category", []string{"Kategoria", "Category"}, true},
		{"status", []string{"Status"}, false},
		{"achieved", []string{"Osiągnięto", "Achieved"}, false},
		{"created", []string{"Utworzono", "Created"}, false},
	}
	contributionColumns = []column{
		{"date", []string{"Data", "Date"}, true},
		{"account", []string{"Konto", "Account"}, true},
		{"amount", []string{"Kwota", "Amount"}, true},
	}
	categoryColumns = []column{
		{"name", []string{"Kategoria", "Category"}, true},
		{"polarity", []string{"Typ", "Polarity"}, false},
	}
)

// layout maps a column key to its index in the sheet.
type layout struct {
	idx   map[string]int
	width int
}

func detectLayout(sheet string, headers []string, cols []column) (layout, error) {
	l := layout{idx: map[string]int{}, width: len(headers)}
	var missing []string
	for _, c := range cols {
		i := -1
		for _, alias := range c.aliases {
			if i = indexOf(headers, alias); i >= 0 {
				break
			}
		}
		if i < 0 {
			if c.required {
				missing = append(missing, c.aliases[0])
			}
			continue
		}
		l.idx[c.key] = i
	}
	if len(missing) > 0 {
		return layout{}, fmt.Errorf("unexpected %s header: missing %s; got headers=%v", sheet, strings.Join(missing, ","), headers)
	}
	return l, nil
}

// canonicalLayout is the layout of a sheet created from scratch.
func canonicalLayout(cols []column) (layout, []any) {
	l := layout{idx: map[string]int{}, width: len(cols)}
	header := make([]any, len(cols))
	for i, c := range cols {
		l.idx[c.key] = i
		header[i] = c.aliases[0]
	}
	return l, header
}

func (l layout) get(row []string, key string) string {
	i, ok := l.idx[key]
	if !ok {
		return ""
	}
	return safeGet(row, i)
}

// row builds a sheet row with values placed at their columns.
func (l layout) row(values map[string]any) []any {
	out := make([]any, l.width)
	for i := range out {
		out[i] = ""
	}
	for k, v := range values {
		if i, ok := l.idx[k]; ok {
			out[i] = v
		}
	}
	return out
}

func parseAssets(values [][]interface{}) ([]core.Asset, layout, error) {
	if len(values) == 0 {
		l, _ := canonicalLayout(assetColumns)
		return nil, l, nil
	}
	l, err := detectLayout("assets", toStrings(values[0]), assetColumns)
	if err != nil {
		return nil, layout{}, err
	}
	var out []core.Asset
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		a, ok := parseAssetRow(l, row)
		if !ok {
			continue
		}
		out = append(out, a)
	}
	return out, l, nil
}

// parseAssetRow reads one row; rows without an id or a parsable amount are
// skipped.
func parseAssetRow(l layout, row []string) (core.Asset, bool) {
	id := strings.TrimSpace(l.get(row, "id"))
	if id == "" {
		return core.Asset{}, false
	}
	amount, err := core.ParseAmount(l.get(row, "amount"))
	if err != nil {
		return core.Asset{}, false
	}
	acct, err := core.ParseAccount(l.get(row, "account"))
	if err != nil {
		acct = core.RetirementAccount(strings.ToUpper(strings.TrimSpace(l.get(row, "account"))))
	}
	return core.Asset{
		ID:          id,
		Name:        strings.TrimSpace(l.get(row, "name")),
		Category:    strings.TrimSpace(l.get(row, "category")),
		Subcategory: strings.TrimSpace(l.get(row, "subcategory")),
		Amount:      amount,
		Currency:    core.NormalizeCurrency(l.get(row, "currency")),
		Account:     acct,
		Notes:       strings.TrimSpace(l.get(row, "notes")),
	}, true
}

func assetValues(a core.Asset) map[string]any {
	return map[string]any{
		"id":          a.ID,
		"name":        a.Name,
		"category":    a.Category,
		"subcategory": a.Subcategory,
		"amount":      a.Amount.InexactFloat64(),
		"currency":    core.NormalizeCurrency(a.Currency),
		"account":     string(a.Account),
		"notes":       a.Notes,
	}
}

// parseRecords reads the history sheet. A missing kind column means every
// row is an asset snapshot; a missing base column means amounts are
// already in the base currency.
func parseRecords(values [][]interface{}) ([]core.Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	l, err := detectLayout("history", toStrings(values[0]), recordColumns)
	if err != nil {
		return nil, err
	}
	var out []core.Record
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		date, err := core.ParseDate(l.get(row, "date"))
		if err != nil {
			continue
		}
		amount, err := core.ParseAmount(l.get(row, "amount"))
		if err != nil {
			continue
		}
		kind := core.RecordKind(strings.ToLower(strings.TrimSpace(l.get(row, "kind"))))
		if kind == "" {
			kind = core.KindAsset
		}
		if !kind.IsValid() {
			continue
		}
		base := amount
		if s := l.get(row, "base"); strings.TrimSpace(s) != "" {
			if b, err := core.ParseAmount(s); err == nil {
				base = b
			}
		}
		out = append(out, core.Record{
			Date:        date,
			Kind:        kind,
			Category:    strings.TrimSpace(l.get(row, "category")),
			Subcategory: strings.TrimSpace(l.get(row, "subcategory")),
			Amount:      amount,
			Currency:    core.NormalizeCurrency(l.get(row, "currency")),
			AmountBase:  base,
		})
	}
	return out, nil
}

func recordValues(r core.Record) map[string]any {
	return map[string]any{
		"date":        r.Date.String(),
		"kind":        string(r.Kind),
		"category":    r.Category,
		"subcategory": r.Subcategory,
		"amount":      r.Amount.InexactFloat64(),
		"currency":    core.NormalizeCurrency(r.Currency),
		"base":        r.AmountBase.InexactFloat64(),
	}
}

func parseMilestones(values [][]interface{}) ([]core.Milestone, layout, error) {
	if len(values) == 0 {
		l, _ := canonicalLayout(milestoneColumns)
		return nil, l, nil
	}
	l, err := detectLayout("milestones", toStrings(values[0]), milestoneColumns)
	if err != nil {
		return nil, layout{}, err
	}
	var out []core.Milestone
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		id := strings.TrimSpace(l.get(row, "id"))
		target, err := core.ParseAmount(l.get(row, "target"))
		if id == "" || err != nil {
			continue
		}
		m := core.Milestone{
			ID:          id,
			TargetValue: target,
			Category:    strings.TrimSpace(l.get(row, "category")),
			Status:      core.MilestonePending,
		}
		if d, err := core.ParseDate(l.get(row, "achieved")); err == nil {
			m.AchievedDate = d
			m.Status = core.MilestoneAchieved
		}
		if strings.EqualFold(strings.TrimSpace(l.get(row, "status")), string(core.MilestoneAchieved)) {
			m.Status = core.MilestoneAchieved
		}
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(l.get(row, "created"))); err == nil {
			m.CreatedAt = t.UTC()
		}
		out = append(out, m)
	}
	return out, l, nil
}

func milestoneValues(m core.Milestone) map[string]any {
	created := ""
	if !m.CreatedAt.IsZero() {
		created = m.CreatedAt.UTC().Format(time.RFC3339)
	}
	return map[string]any{
		"id":       m.ID,
		"target":   m.TargetValue.InexactFloat64(),
		"category": m.Category,
		"status":   string(m.Status),
		"achieved": m.AchievedDate.String(),
		"created":  created,
	}
}

func parseContributions(values [][]interface{}) ([]core.Contribution, error) {
	if len(values) == 0 {
		return nil, nil
	}
	l, err := detectLayout("contributions", toStrings(values[0]), contributionColumns)
	if err != nil {
		return nil, err
	}
	var out []core.Contribution
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		date, err := core.ParseDate(l.get(row, "date"))
		if err != nil {
			continue
		}
		acct, err := core.ParseAccount(l.get(row, "account"))
		if err != nil || acct == core.AccountNone {
			continue
		}
		amount, err := core.ParseAmount(l.get(row, "amount"))
		if err != nil {
			continue
		}
		out = append(out, core.Contribution{Date: date, Account: acct, Amount: amount})
	}
	return out, nil
}

// parseCategories reads the category sheet; a polarity cell containing
// "dług", "debt" or "liability" marks a liability.
func parseCategories(values [][]interface{}) (core.CategorySet, error) {
	if len(values) < 2 {
		return core.DefaultCategories(), nil
	}
	l, err := detectLayout("categories", toStrings(values[0]), categoryColumns)
	if err != nil {
		return core.CategorySet{}, err
	}
	cats := core.NewCategorySet()
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		name := strings.TrimSpace(l.get(row, "name"))
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		p := core.PolarityAsset
		pol := strings.ToLower(l.get(row, "polarity"))
		for _, marker := range []string{"dług", "debt", "liability", "pasyw"} {
			if strings.Contains(pol, marker) {
				p = core.PolarityLiability
			}
		}
		cats.Add(name, p)
	}
	return cats, nil
}

// toStrings renders cells as trimmed strings. Numbers keep full precision
// without exponent notation.
func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// columnLetter converts a zero-based index to A1 notation (0 -> A, 26 -> AA).
func columnLetter(i int) string {
	s := ""
	for i >= 0 {
		s = string(rune('A'+i%26)) + s
		i = i/26 - 1
	}
	return s
}
