// Package duplicates finds asset rows that describe the same holding and
// turns a user's selection of them into a merge plan. Nothing here touches
// a store; applying a plan is the job of the merge service.
package duplicates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"finanse/internal/core"

	"github.com/shopspring/decimal"
)

var (
	// "VWCE.DE - Vanguard All-World": a ticker token, then a dash with
	// whitespace on at least one side so hyphenated words are left alone.
	tickerPrefix = regexp.MustCompile(`^[\p{L}\p{N}.]+(?:\s+-\s*|\s*-\s+)`)
	dashVariants = strings.NewReplacer("‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-", "―", "-", "−", "-")
	nonWord      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	spaces       = regexp.MustCompile(`\s+`)
)

// NormalizeName reduces an asset name to its comparable form. The result
// contains only lower-case letters, digits and single spaces, which makes
// the function idempotent.
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = dashVariants.Replace(s)
	s = strings.TrimSpace(spaces.ReplaceAllString(s, " "))
	if stripped := tickerPrefix.ReplaceAllString(s, ""); strings.TrimSpace(stripped) != "" {
		s = stripped
	}
	s = nonWord.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// NormalizeKey builds the grouping key category|name|currency|account.
func NormalizeKey(a core.Asset) string {
	return strings.Join([]string{
		normalizeField(a.Category),
		NormalizeName(a.Name),
		normalizeField(a.Currency),
		normalizeAccount(a.Account),
	}, "|")
}

func normalizeField(s string) string {
	return strings.ToLower(strings.TrimSpace(spaces.ReplaceAllString(s, " ")))
}

func normalizeAccount(a core.RetirementAccount) string {
	acct, err := core.ParseAccount(string(a))
	if err != nil {
		return normalizeField(string(a))
	}
	return strings.ToLower(string(acct))
}

// Group is a set of assets believed to be the same holding. The first
// asset is the suggested primary.
type Group struct {
	Key        string          `json:"key"`
	Assets     []core.Asset    `json:"assets"`
	TotalValue decimal.Decimal `json:"total_value"`
}

func (g Group) Primary() core.Asset {
	return g.Assets[0]
}

// DetectGroups returns every key shared by more than one asset. Groups are
// ordered by their first member and members keep their input order.
func DetectGroups(assets []core.Asset) []Group {
	index := map[string]int{}
	var all []Group
	for _, a := range assets {
		key := NormalizeKey(a)
		i, ok := index[key]
		if !ok {
			i = len(all)
			index[key] = i
			all = append(all, Group{Key: key})
		}
		all[i].Assets = append(all[i].Assets, a)
		all[i].TotalValue = all[i].TotalValue.Add(a.Amount)
	}
	var out []Group
	for _, g := range all {
		if len(g.Assets) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// ValidateMergeCandidates checks that selected can be merged: at least two
// distinct assets sharing one currency and one retirement account tag.
// Failures are *core.MergeValidationError naming the offending field.
func ValidateMergeCandidates(selected []core.Asset) error {
	seen := map[string]bool{}
	for _, a := range selected {
		if seen[a.ID] {
			return &core.MergeValidationError{Field: "count", Reason: "asset selected more than once", Values: []string{a.ID}}
		}
		seen[a.ID] = true
	}
	if len(selected) < 2 {
		return &core.MergeValidationError{
			Field:  "count",
			Reason: "at least two assets are required",
			Values: []string{strconv.Itoa(len(selected))},
		}
	}
	if cur := distinct(selected, func(a core.Asset) string { return core.NormalizeCurrency(a.Currency) }); len(cur) > 1 {
		return &core.MergeValidationError{Field: "currency", Reason: "assets use different currencies", Values: cur}
	}
	if acct := distinct(selected, func(a core.Asset) string { return normalizeAccount(a.Account) }); len(acct) > 1 {
		for i, v := range acct {
			if v == "" {
				acct[i] = core.AccountNone.String()
			}
		}
		return &core.MergeValidationError{Field: "account", Reason: "assets belong to different retirement accounts", Values: acct}
	}
	return nil
}

// BuildMergePlan validates selected and folds it into primaryID. The
// resulting amount is the plain sum of the selected amounts; currencies are
// already known to match.
func BuildMergePlan(selected []core.Asset, primaryID string) (core.MergePlan, error) {
	if err := ValidateMergeCandidates(selected); err != nil {
		return core.MergePlan{}, err
	}
	primary := -1
	for i, a := range selected {
		if a.ID == primaryID {
			primary = i
			break
		}
	}
	if primary < 0 {
		return core.MergePlan{}, &core.MergeValidationError{
			Field:  "primary",
			Reason: fmt.Sprintf("primary asset %q is not part of the selection", primaryID),
			Values: []string{primaryID},
		}
	}

	p := selected[primary]
	plan := core.MergePlan{
		PrimaryAssetID:    p.ID,
		MergedAssetIDs:    make([]string, 0, len(selected)),
		PrimaryAmount:     p.Amount,
		ResultingAmount:   decimal.Zero,
		ResultingCurrency: core.NormalizeCurrency(p.Currency),
		ResultingAccount:  p.Account,
		ResultingName:     p.Name,
		ResultingNotes:    p.Notes,
	}
	for _, a := range selected {
		plan.MergedAssetIDs = append(plan.MergedAssetIDs, a.ID)
		plan.ResultingAmount = plan.ResultingAmount.Add(a.Amount)
	}
	return plan, nil
}

// Select picks assets by id, keeping the order of ids. Unknown ids are
// reported as core.ErrAssetNotFound.
func Select(assets []core.Asset, ids []string) ([]core.Asset, error) {
	byID := make(map[string]core.Asset, len(assets))
	for _, a := range assets {
		byID[a.ID] = a
	}
	out := make([]core.Asset, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrAssetNotFound, id)
		}
		out = append(out, a)
	}
	return out, nil
}

func distinct(assets []core.Asset, key func(core.Asset) string) []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range assets {
		k := key(a)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
