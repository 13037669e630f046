package services

import (
	"context"
	"errors"
	"testing"

	"finanse/internal/amqp"
	"finanse/internal/core"
	"finanse/internal/sheets/memory"

	"github.com/shopspring/decimal"
)

func seedAssets(t *testing.T, s *memory.Store, assets ...core.Asset) {
	t.Helper()
	for _, a := range assets {
		if _, err := s.AppendAsset(context.Background(), a); err != nil {
			t.Fatalf("seed %s: %v", a.ID, err)
		}
	}
}

func asset(id, name, amount string) core.Asset {
	return core.Asset{ID: id, Name: name, Category: "ETF", Amount: decimal.RequireFromString(amount), Currency: "PLN", Account: core.AccountIKE}
}

type fakePublisher struct {
	msgs []*amqp.MergeMessage
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg *amqp.MergeMessage) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestMergeService_PlanAndApply(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.DefaultCategories())
	seedAssets(t, store,
		asset("a1", "VWCE.DE - Vanguard FTSE All-World", "1000"),
		asset("a2", "Vanguard FTSE All-World", "250.50"),
		asset("x", "Gold", "5"),
		asset("a3", "Vanguard  FTSE All—World", "100"),
	)
	svc := NewMergeService(store, nil)
	changes := 0
	svc.OnChange(func() { changes++ })

	groups, err := svc.Groups(ctx)
	if err != nil || len(groups) != 1 || len(groups[0].Assets) != 3 {
		t.Fatalf("Groups = %+v, %v", groups, err)
	}

	plan, err := svc.Plan(ctx, []string{"a1", "a2", "a3"}, "")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.PrimaryAssetID != "a1" || !plan.ResultingAmount.Equal(decimal.RequireFromString("1350.5")) {
		t.Fatalf("plan = %+v", plan)
	}

	res, err := svc.Submit(ctx, plan)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Queued || len(res.Deleted) != 2 {
		t.Fatalf("result = %+v", res)
	}

	assets, _ := store.GetAssets(ctx)
	if len(assets) != 2 {
		t.Fatalf("assets after merge = %+v", assets)
	}
	primary, _ := store.GetAsset(ctx, "a1")
	if !primary.Amount.Equal(decimal.RequireFromString("1350.5")) || primary.Name != "VWCE.DE - Vanguard FTSE All-World" {
		t.Fatalf("primary = %+v", primary)
	}
	if changes == 0 {
		t.Error("OnChange callback not called")
	}
}

func TestMergeService_ApplyUsesFreshAmounts(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.DefaultCategories())
	seedAssets(t, store, asset("a1", "Fund", "100"), asset("a2", "Fund", "50"))
	svc := NewMergeService(store, nil)

	plan, _ := svc.Plan(ctx, []string{"a1", "a2"}, "a1")
	changed := asset("a2", "Fund", "70")
	if err := store.UpdateAsset(ctx, changed); err != nil {
		t.Fatalf("UpdateAsset: %v", err)
	}

	res, err := svc.Apply(ctx, plan)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Plan.ResultingAmount.Equal(decimal.NewFromInt(170)) {
		t.Fatalf("resulting amount = %s, want 170", res.Plan.ResultingAmount)
	}
	got, _ := store.GetAsset(ctx, "a1")
	if !got.Amount.Equal(decimal.NewFromInt(170)) {
		t.Fatalf("primary amount = %s", got.Amount)
	}
}

func TestMergeService_ApplyStalePlan(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.DefaultCategories())
	seedAssets(t, store, asset("a1", "Fund", "100"), asset("a2", "Fund", "50"))
	svc := NewMergeService(store, nil)

	plan, _ := svc.Plan(ctx, []string{"a1", "a2"}, "a1")
	if err := store.DeleteAsset(ctx, "a2"); err != nil {
		t.Fatalf("DeleteAsset: %v", err)
	}

	_, err := svc.Apply(ctx, plan)
	if !errors.Is(err, core.ErrStalePlan) {
		t.Fatalf("expected ErrStalePlan, got %v", err)
	}
	got, _ := store.GetAsset(ctx, "a1")
	if !got.Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("primary must stay untouched, got %s", got.Amount)
	}
}

func TestMergeService_ApplyRevalidates(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.DefaultCategories())
	seedAssets(t, store, asset("a1", "Fund", "100"), asset("a2", "Fund", "50"))
	svc := NewMergeService(store, nil)

	plan, _ := svc.Plan(ctx, []string{"a1", "a2"}, "a1")
	moved := asset("a2", "Fund", "50")
	moved.Account = core.AccountIKZE
	_ = store.UpdateAsset(ctx, moved)

	_, err := svc.Apply(ctx, plan)
	var verr *core.MergeValidationError
	if !errors.As(err, &verr) || verr.Field != "account" {
		t.Fatalf("expected account validation error, got %v", err)
	}
}

func TestMergeService_PartialFailureAndRetry(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.DefaultCategories())
	seedAssets(t, store, asset("a1", "Fund", "100"), asset("a2", "Fund", "50"), asset("a3", "Fund", "25"))
	svc := NewMergeService(store, nil)

	plan, _ := svc.Plan(ctx, []string{"a1", "a2", "a3"}, "a1")
	store.FailDelete("a3", errors.New("quota exceeded"))

	res, err := svc.Apply(ctx, plan)
	var perr *core.PartialFailureError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PartialFailureError, got %v", err)
	}
	if !errors.Is(err, core.ErrPartialMerge) {
		t.Error("errors.Is(err, ErrPartialMerge) should hold")
	}
	if len(perr.Remaining) != 1 || perr.Remaining[0] != "a3" || len(perr.Deleted) != 1 {
		t.Fatalf("partial failure = %+v", perr)
	}
	if len(res.Deleted) != 1 {
		t.Fatalf("result = %+v", res)
	}
	primary, _ := store.GetAsset(ctx, "a1")
	if !primary.Amount.Equal(decimal.NewFromInt(175)) {
		t.Fatalf("primary should already hold the merged amount, got %s", primary.Amount)
	}

	store.ClearFailures()
	deleted, err := svc.RetryDeletions(ctx, perr.PrimaryAssetID, perr.Remaining)
	if err != nil || len(deleted) != 1 {
		t.Fatalf("RetryDeletions = %v, %v", deleted, err)
	}
	primary, _ = store.GetAsset(ctx, "a1")
	if !primary.Amount.Equal(decimal.NewFromInt(175)) {
		t.Fatalf("retry must not change the amount, got %s", primary.Amount)
	}
	assets, _ := store.GetAssets(ctx)
	if len(assets) != 1 {
		t.Fatalf("assets = %+v", assets)
	}

	// already deleted ids are fine
	if _, err := svc.RetryDeletions(ctx, "a1", []string{"a3"}); err != nil {
		t.Fatalf("repeat retry: %v", err)
	}
}

func TestMergeService_ApplyTwiceIsStale(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, svc *MergeService, store *memory.Store, plan core.MergePlan)
	}{
		{
			name: "after partial failure",
			setup: func(t *testing.T, svc *MergeService, store *memory.Store, plan core.MergePlan) {
				store.FailDelete("a2", errors.New("quota exceeded"))
				if _, err := svc.Apply(context.Background(), plan); !errors.Is(err, core.ErrPartialMerge) {
					t.Fatalf("first Apply = %v, want partial failure", err)
				}
				store.ClearFailures()
			},
		},
		{
			name: "primary edited after planning",
			setup: func(t *testing.T, _ *MergeService, store *memory.Store, _ core.MergePlan) {
				if err := store.UpdateAsset(context.Background(), asset("a1", "Fund", "650")); err != nil {
					t.Fatalf("UpdateAsset: %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.New(core.DefaultCategories())
			seedAssets(t, store, asset("a1", "Fund", "500"), asset("a2", "Fund", "300"))
			svc := NewMergeService(store, nil)

			plan, err := svc.Plan(ctx, []string{"a1", "a2"}, "a1")
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}
			if !plan.PrimaryAmount.Equal(decimal.NewFromInt(500)) {
				t.Fatalf("PrimaryAmount = %s, want 500", plan.PrimaryAmount)
			}
			tt.setup(t, svc, store, plan)
			before, _ := store.GetAsset(ctx, "a1")

			if _, err := svc.Apply(ctx, plan); !errors.Is(err, core.ErrStalePlan) {
				t.Fatalf("Apply = %v, want ErrStalePlan", err)
			}
			after, _ := store.GetAsset(ctx, "a1")
			if !after.Amount.Equal(before.Amount) {
				t.Fatalf("primary amount = %s, want unchanged %s", after.Amount, before.Amount)
			}
			if _, err := store.GetAsset(ctx, "a2"); err != nil {
				t.Fatalf("stale plan must not delete duplicates: %v", err)
			}
		})
	}
}

func TestMergeService_RetryRefusesPrimary(t *testing.T) {
	svc := NewMergeService(memory.New(core.DefaultCategories()), nil)
	_, err := svc.RetryDeletions(context.Background(), "a1", []string{"a2", "a1"})
	if !errors.Is(err, core.ErrMergeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMergeService_PlanErrors(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.DefaultCategories())
	usd := asset("u", "Fund", "1")
	usd.Currency = "USD"
	seedAssets(t, store, asset("a1", "Fund", "100"), usd)
	svc := NewMergeService(store, nil)

	tests := []struct {
		name    string
		ids     []string
		primary string
		target  error
	}{
		{"unknown id", []string{"a1", "nope"}, "a1", core.ErrAssetNotFound},
		{"single asset", []string{"a1"}, "a1", core.ErrMergeValidation},
		{"mixed currency", []string{"a1", "u"}, "a1", core.ErrMergeValidation},
		{"primary outside selection", []string{"a1", "u"}, "zzz", core.ErrMergeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Plan(ctx, tt.ids, tt.primary)
			if !errors.Is(err, tt.target) {
				t.Fatalf("Plan() error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestMergeService_SubmitQueues(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.DefaultCategories())
	seedAssets(t, store, asset("a1", "Fund", "100"), asset("a2", "Fund", "50"))
	pub := &fakePublisher{}
	svc := NewMergeService(store, pub)

	plan, _ := svc.Plan(ctx, []string{"a1", "a2"}, "a1")
	res, err := svc.Submit(ctx, plan)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Queued || res.MessageID == "" || len(pub.msgs) != 1 || pub.msgs[0].Type != amqp.TypeMerge {
		t.Fatalf("result = %+v, msgs = %+v", res, pub.msgs)
	}
	if assets, _ := store.GetAssets(ctx); len(assets) != 2 {
		t.Fatal("queued merge must not touch the store")
	}

	pub.err = errors.New("broker down")
	if _, err := svc.Submit(ctx, plan); err == nil {
		t.Fatal("publish failure should be returned")
	}
}
