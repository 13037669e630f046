package services

import (
	"context"
	"errors"
	"testing"

	"finanse/internal/core"
	"finanse/internal/sheets/memory"

	"github.com/shopspring/decimal"
)

func TestMilestoneService_Create(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.DefaultCategories())
	svc := NewMilestoneService(store)
	changes := 0
	svc.OnChange(func() { changes++ })

	tests := []struct {
		name      string
		target    string
		category  string
		wantScope string
		wantErr   error
	}{
		{"known category keeps stored spelling", "5000", "długi", "Długi", nil},
		{"net worth scope", "100000", " ALL ", core.ScopeAll, nil},
		{"unknown category", "100", "Yachts", "", nil},
		{"empty category", "100", "  ", "", core.ErrEmptyCategory},
		{"non-positive target", "0", "ETF", "", core.ErrInvalidTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := svc.Create(ctx, decimal.RequireFromString(tt.target), tt.category)
			if tt.wantScope == "" {
				if err == nil {
					t.Fatalf("Create() = %+v, want error", m)
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if m.Category != tt.wantScope || m.Status != core.MilestonePending || m.ID == "" {
				t.Errorf("Create() = %+v", m)
			}
		})
	}

	ms, err := svc.List(ctx)
	if err != nil || len(ms) != 2 {
		t.Fatalf("List = %+v, %v", ms, err)
	}
	if changes != 2 {
		t.Errorf("OnChange called %d times, want 2", changes)
	}
}

func TestMilestoneService_Delete(t *testing.T) {
	ctx := context.Background()
	svc := NewMilestoneService(memory.New(core.DefaultCategories()))

	m, err := svc.Create(ctx, decimal.NewFromInt(1000), "ETF")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, m.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, m.ID); !errors.Is(err, core.ErrMilestoneNotFound) {
		t.Fatalf("second Delete error = %v, want ErrMilestoneNotFound", err)
	}
}
