package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finanse/internal/core"
	"finanse/internal/sheets"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MilestoneRepository stores milestones and knows the category list they
// are scoped to.
type MilestoneRepository interface {
	sheets.MilestoneStore
	sheets.CategoryReader
}

// MilestoneService creates and removes milestones. Achievement is decided
// by the report service.
type MilestoneService struct {
	store    MilestoneRepository
	now      func() time.Time
	onChange func()
}

func NewMilestoneService(store MilestoneRepository) *MilestoneService {
	return &MilestoneService{
		store: store,
		now:   time.Now,
	}
}

// OnChange registers a callback run after the milestone list changed.
func (s *MilestoneService) OnChange(fn func()) {
	s.onChange = fn
}

// Create saves a pending milestone for a known category or for "all".
func (s *MilestoneService) Create(ctx context.Context, target decimal.Decimal, category string) (core.Milestone, error) {
	scope, err := s.resolveScope(ctx, category)
	if err != nil {
		return core.Milestone{}, err
	}
	m, err := core.NewMilestone(uuid.NewString(), target, scope, s.now())
	if err != nil {
		return core.Milestone{}, err
	}
	if err := s.store.SaveMilestone(ctx, m); err != nil {
		return core.Milestone{}, fmt.Errorf("save milestone: %w", err)
	}
	s.changed()

	slog.InfoContext(ctx, "Milestone created",
		"milestone_id", m.ID,
		"category", m.Category,
		"target", m.TargetValue.String())
	return m, nil
}

// List returns every milestone in creation order.
func (s *MilestoneService) List(ctx context.Context) ([]core.Milestone, error) {
	ms, err := s.store.ListMilestones(ctx)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return ms, nil
}

func (s *MilestoneService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteMilestone(ctx, id); err != nil {
		return fmt.Errorf("delete milestone %s: %w", id, err)
	}
	s.changed()
	slog.InfoContext(ctx, "Milestone deleted", "milestone_id", id)
	return nil
}

// resolveScope returns the stored spelling of category, or core.ScopeAll.
func (s *MilestoneService) resolveScope(ctx context.Context, category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", core.ErrEmptyCategory
	}
	if strings.EqualFold(category, core.ScopeAll) {
		return core.ScopeAll, nil
	}
	cats, err := s.store.Categories(ctx)
	if err != nil {
		return "", fmt.Errorf("get categories: %w", err)
	}
	for _, name := range cats.Names() {
		if strings.EqualFold(name, category) {
			return name, nil
		}
	}
	return "", &core.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", category)}
}

func (s *MilestoneService) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
