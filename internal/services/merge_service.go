package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finanse/internal/amqp"
	"finanse/internal/core"
	"finanse/internal/duplicates"
	"finanse/internal/sheets"
)

// MergeStore is the slice of storage a merge touches.
type MergeStore interface {
	sheets.AssetSource
	sheets.AssetReader
	sheets.AssetWriter
}

// MergePublisher hands merges to the worker; *amqp.Client implements it.
type MergePublisher interface {
	Publish(ctx context.Context, msg *amqp.MergeMessage) error
}

// MergeResult is the outcome of a merge request.
type MergeResult struct {
	Plan      core.MergePlan `json:"plan"`
	Deleted   []string       `json:"deleted,omitempty"`
	Queued    bool           `json:"queued"`
	MessageID string         `json:"message_id,omitempty"`
}

// MergeService plans and applies duplicate merges. With a publisher the
// application is deferred to the merge worker.
type MergeService struct {
	store     MergeStore
	publisher MergePublisher
	onChange  func()
}

func NewMergeService(store MergeStore, publisher MergePublisher) *MergeService {
	return &MergeService{store: store, publisher: publisher}
}

// OnChange registers a callback run after the asset list changed.
func (s *MergeService) OnChange(fn func()) {
	s.onChange = fn
}

// Groups returns the current duplicate groups.
func (s *MergeService) Groups(ctx context.Context) ([]duplicates.Group, error) {
	assets, err := s.store.GetAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("get assets: %w", err)
	}
	return duplicates.DetectGroups(assets), nil
}

// Plan builds a merge plan for ids as currently stored. An empty primaryID
// picks the first id.
func (s *MergeService) Plan(ctx context.Context, ids []string, primaryID string) (core.MergePlan, error) {
	if primaryID == "" && len(ids) > 0 {
		primaryID = ids[0]
	}
	assets, err := s.store.GetAssets(ctx)
	if err != nil {
		return core.MergePlan{}, fmt.Errorf("get assets: %w", err)
	}
	selected, err := duplicates.Select(assets, ids)
	if err != nil {
		return core.MergePlan{}, err
	}
	return duplicates.BuildMergePlan(selected, primaryID)
}

// Submit applies plan now, or queues it when a publisher is configured.
func (s *MergeService) Submit(ctx context.Context, plan core.MergePlan) (MergeResult, error) {
	if s.publisher == nil {
		return s.Apply(ctx, plan)
	}
	msg := amqp.NewMergeMessage(plan)
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return MergeResult{}, fmt.Errorf("queue merge: %w", err)
	}
	return MergeResult{Plan: plan, Queued: true, MessageID: msg.ID}, nil
}

// Apply folds the plan's duplicates into its primary asset.
//
// Every asset is re-read right before mutating and the plan is rebuilt
// from that state, so duplicate amounts changed since planning are
// honoured and an asset deleted in the meantime fails with
// core.ErrStalePlan. The primary must still hold plan.PrimaryAmount;
// otherwise the plan was already applied (or the primary edited) and
// Apply fails with core.ErrStalePlan instead of adding the duplicates a
// second time. The primary is updated first; duplicates are deleted
// afterwards. When some deletions fail the error is a
// *core.PartialFailureError whose Remaining ids must be passed to
// RetryDeletions.
func (s *MergeService) Apply(ctx context.Context, plan core.MergePlan) (MergeResult, error) {
	fresh := make([]core.Asset, 0, len(plan.MergedAssetIDs))
	for _, id := range plan.MergedAssetIDs {
		a, err := s.store.GetAsset(ctx, id)
		if errors.Is(err, core.ErrAssetNotFound) {
			return MergeResult{}, fmt.Errorf("%w: asset %s no longer exists", core.ErrStalePlan, id)
		}
		if err != nil {
			return MergeResult{}, fmt.Errorf("get asset %s: %w", id, err)
		}
		if id == plan.PrimaryAssetID && !a.Amount.Equal(plan.PrimaryAmount) {
			return MergeResult{}, fmt.Errorf("%w: primary %s holds %s, planned with %s",
				core.ErrStalePlan, id, a.Amount, plan.PrimaryAmount)
		}
		fresh = append(fresh, a)
	}

	current, err := duplicates.BuildMergePlan(fresh, plan.PrimaryAssetID)
	if err != nil {
		return MergeResult{}, err
	}
	if !current.ResultingAmount.Equal(plan.ResultingAmount) {
		slog.WarnContext(ctx, "Merge amount changed since planning",
			"primary_id", plan.PrimaryAssetID,
			"planned", plan.ResultingAmount.String(),
			"current", current.ResultingAmount.String())
	}
	if plan.ResultingName != "" {
		current.ResultingName = plan.ResultingName
	}
	if plan.ResultingNotes != "" {
		current.ResultingNotes = plan.ResultingNotes
	}

	var primary core.Asset
	for _, a := range fresh {
		if a.ID == current.PrimaryAssetID {
			primary = a
			break
		}
	}
	primary.Amount = current.ResultingAmount
	primary.Name = current.ResultingName
	primary.Notes = current.ResultingNotes
	if err := s.store.UpdateAsset(ctx, primary); err != nil {
		return MergeResult{}, fmt.Errorf("update primary %s: %w", primary.ID, err)
	}
	s.changed()

	slog.InfoContext(ctx, "Merged primary asset updated",
		"primary_id", primary.ID,
		"amount", primary.Amount.String(),
		"currency", primary.Currency,
		"merged", len(current.MergedAssetIDs))

	deleted, err := s.deleteAll(ctx, current.PrimaryAssetID, current.DeleteIDs())
	return MergeResult{Plan: current, Deleted: deleted}, err
}

// RetryDeletions deletes only the given duplicates of an already applied
// merge. Ids that are already gone count as deleted. Amounts are never
// touched again.
func (s *MergeService) RetryDeletions(ctx context.Context, primaryID string, remaining []string) ([]string, error) {
	for _, id := range remaining {
		if id == primaryID {
			return nil, &core.MergeValidationError{
				Field:  "primary",
				Reason: "the primary asset cannot be deleted",
				Values: []string{id},
			}
		}
	}
	return s.deleteAll(ctx, primaryID, remaining)
}

func (s *MergeService) deleteAll(ctx context.Context, primaryID string, ids []string) ([]string, error) {
	var (
		deleted   []string
		remaining []string
		errs      []error
	)
	for _, id := range ids {
		err := s.store.DeleteAsset(ctx, id)
		if err == nil || errors.Is(err, core.ErrAssetNotFound) {
			deleted = append(deleted, id)
			continue
		}
		slog.ErrorContext(ctx, "Failed to delete merged duplicate",
			"primary_id", primaryID,
			"asset_id", id,
			"error", err)
		remaining = append(remaining, id)
		errs = append(errs, fmt.Errorf("delete %s: %w", id, err))
	}
	if len(deleted) > 0 {
		s.changed()
	}
	if len(remaining) > 0 {
		return deleted, &core.PartialFailureError{
			PrimaryAssetID: primaryID,
			Deleted:        deleted,
			Remaining:      remaining,
			Cause:          errors.Join(errs...),
		}
	}
	return deleted, nil
}

func (s *MergeService) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
