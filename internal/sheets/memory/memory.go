package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"finanse/internal/core"
	"finanse/internal/sheets"

	"github.com/google/uuid"
)

// Store keeps every sheet in process memory. It is the backend for local
// runs and the fake used by service tests.
type Store struct {
	mu            sync.Mutex
	cats          core.CategorySet
	records       []core.Record
	assets        []core.Asset
	milestones    []core.Milestone
	contributions []core.Contribution

	// deleteErrs makes DeleteAsset fail for the given ids.
	deleteErrs map[string]error
}

var (
	_ sheets.RecordSource       = (*Store)(nil)
	_ sheets.RecordWriter       = (*Store)(nil)
	_ sheets.AssetSource        = (*Store)(nil)
	_ sheets.AssetReader        = (*Store)(nil)
	_ sheets.AssetWriter        = (*Store)(nil)
	_ sheets.MilestoneStore     = (*Store)(nil)
	_ sheets.ContributionSource = (*Store)(nil)
	_ sheets.CategoryReader     = (*Store)(nil)
)

func New(cats core.CategorySet) *Store {
	return &Store{cats: cats, deleteErrs: map[string]error{}}
}

// NewFromFiles seeds categories from base/seed_categories.txt. A line is a
// category name, optionally followed by ";liability".
func NewFromFiles(base string) *Store {
	lines := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(lines) == 0 {
		return New(core.DefaultCategories())
	}
	cats := core.NewCategorySet()
	for _, line := range lines {
		name, kind, _ := strings.Cut(line, ";")
		p := core.PolarityAsset
		if strings.EqualFold(strings.TrimSpace(kind), "liability") {
			p = core.PolarityLiability
		}
		cats.Add(name, p)
	}
	return New(cats)
}

func (s *Store) Categories(_ context.Context) (core.CategorySet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cats, nil
}

// GetSeries returns matching records ordered by date; records sharing a
// date keep insertion order.
func (s *Store) GetSeries(_ context.Context, f sheets.SeriesFilter) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Record, 0, len(s.records))
	for _, r := range s.records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) AppendRecords(_ context.Context, records []core.Record) error {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *Store) GetAssets(_ context.Context) ([]core.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Asset(nil), s.assets...), nil
}

func (s *Store) GetAsset(_ context.Context, id string) (core.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.assetIndex(id)
	if i < 0 {
		return core.Asset{}, fmt.Errorf("%w: %s", core.ErrAssetNotFound, id)
	}
	return s.assets[i], nil
}

// AppendAsset stores a new asset, assigning a uuid when ID is empty.
func (s *Store) AppendAsset(_ context.Context, a core.Asset) (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if s.assetIndex(a.ID) >= 0 {
		return "", fmt.Errorf("asset %s already exists", a.ID)
	}
	s.assets = append(s.assets, a)
	return a.ID, nil
}

func (s *Store) UpdateAsset(_ context.Context, a core.Asset) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.assetIndex(a.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", core.ErrAssetNotFound, a.ID)
	}
	s.assets[i] = a
	return nil
}

func (s *Store) DeleteAsset(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.deleteErrs[id]; ok {
		return err
	}
	i := s.assetIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", core.ErrAssetNotFound, id)
	}
	s.assets = append(s.assets[:i], s.assets[i+1:]...)
	return nil
}

// FailDelete makes DeleteAsset(id) return err until ClearFailures.
func (s *Store) FailDelete(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErrs[id] = err
}

func (s *Store) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErrs = map[string]error{}
}

func (s *Store) ListMilestones(_ context.Context) ([]core.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Milestone(nil), s.milestones...), nil
}

func (s *Store) SaveMilestone(_ context.Context, m core.Milestone) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.milestones {
		if s.milestones[i].ID == m.ID {
			s.milestones[i] = m
			return nil
		}
	}
	s.milestones = append(s.milestones, m)
	return nil
}

func (s *Store) DeleteMilestone(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.milestones {
		if s.milestones[i].ID == id {
			s.milestones = append(s.milestones[:i], s.milestones[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", core.ErrMilestoneNotFound, id)
}

func (s *Store) ListContributions(_ context.Context, year int) ([]core.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Contribution
	for _, c := range s.contributions {
		if year == 0 || c.Date.Year() == year {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) AddContribution(_ context.Context, c core.Contribution) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contributions = append(s.contributions, c)
	return nil
}

func (s *Store) assetIndex(id string) int {
	for i := range s.assets {
		if s.assets[i].ID == id {
			return i
		}
	}
	return -1
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
