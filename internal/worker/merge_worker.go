package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finanse/internal/amqp"
	"finanse/internal/core"
	"finanse/internal/services"
)

// DefaultMaxAttempts bounds how often deletions of one merge are retried.
const DefaultMaxAttempts = 5

// Merger applies merges; *services.MergeService implements it.
type Merger interface {
	Apply(ctx context.Context, plan core.MergePlan) (services.MergeResult, error)
	RetryDeletions(ctx context.Context, primaryID string, remaining []string) ([]string, error)
}

// MergeWorker handles merge messages from AMQP.
//
// A returned error requeues the delivery, so only failures that happen
// before the primary asset is updated are returned. Once the primary holds
// the merged amount, leftover duplicates travel on as retry messages that
// only delete.
type MergeWorker struct {
	merger      Merger
	publisher   services.MergePublisher
	maxAttempts int
}

func NewMergeWorker(merger Merger, publisher services.MergePublisher, maxAttempts int) *MergeWorker {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &MergeWorker{
		merger:      merger,
		publisher:   publisher,
		maxAttempts: maxAttempts,
	}
}

// HandleMessage is the handler passed to amqp.Client.Consume.
func (w *MergeWorker) HandleMessage(ctx context.Context, msg *amqp.MergeMessage) error {
	switch msg.Type {
	case amqp.TypeMerge:
		return w.handleMerge(ctx, msg)
	case amqp.TypeRetryDeletions:
		return w.handleRetry(ctx, msg)
	default:
		slog.WarnContext(ctx, "Dropping message of unknown type", "id", msg.ID, "type", msg.Type)
		return nil
	}
}

func (w *MergeWorker) handleMerge(ctx context.Context, msg *amqp.MergeMessage) error {
	res, err := w.merger.Apply(ctx, *msg.Plan)
	var perr *core.PartialFailureError
	switch {
	case err == nil:
		slog.InfoContext(ctx, "Merge applied",
			"id", msg.ID,
			"primary_id", res.Plan.PrimaryAssetID,
			"deleted", len(res.Deleted))
		return nil
	case errors.As(err, &perr):
		w.scheduleRetry(ctx, msg, perr)
		return nil
	case isPermanent(err):
		slog.WarnContext(ctx, "Dropping merge that can no longer be applied",
			"id", msg.ID,
			"primary_id", msg.PrimaryID,
			"error", err)
		return nil
	default:
		return fmt.Errorf("apply merge: %w", err)
	}
}

func (w *MergeWorker) handleRetry(ctx context.Context, msg *amqp.MergeMessage) error {
	deleted, err := w.merger.RetryDeletions(ctx, msg.PrimaryID, msg.Remaining)
	var perr *core.PartialFailureError
	switch {
	case err == nil:
		slog.InfoContext(ctx, "Merge deletions completed",
			"id", msg.ID,
			"primary_id", msg.PrimaryID,
			"deleted", len(deleted),
			"attempt", msg.Attempt)
		return nil
	case errors.As(err, &perr):
		w.scheduleRetry(ctx, msg, perr)
		return nil
	default:
		slog.ErrorContext(ctx, "Dropping retry message",
			"id", msg.ID,
			"primary_id", msg.PrimaryID,
			"remaining", msg.Remaining,
			"error", err)
		return nil
	}
}

// scheduleRetry publishes the deletions still missing as a new message.
// Messages are never requeued here: a requeued merge would add the
// duplicates to the primary a second time.
func (w *MergeWorker) scheduleRetry(ctx context.Context, msg *amqp.MergeMessage, perr *core.PartialFailureError) {
	attempt := msg.Attempt + 1
	if attempt > w.maxAttempts {
		slog.ErrorContext(ctx, "Giving up on merge deletions",
			"id", msg.ID,
			"primary_id", perr.PrimaryAssetID,
			"remaining", perr.Remaining,
			"attempts", msg.Attempt,
			"error", perr.Cause)
		return
	}
	if w.publisher == nil {
		slog.ErrorContext(ctx, "Merge partially applied and no publisher for retries",
			"primary_id", perr.PrimaryAssetID,
			"remaining", perr.Remaining)
		return
	}

	retry := amqp.NewRetryMessage(perr.PrimaryAssetID, perr.Remaining, attempt)
	if err := w.publisher.Publish(ctx, retry); err != nil {
		slog.ErrorContext(ctx, "Failed to publish retry message",
			"primary_id", perr.PrimaryAssetID,
			"remaining", perr.Remaining,
			"error", err)
		return
	}
	slog.WarnContext(ctx, "Merge partially applied, deletions rescheduled",
		"id", msg.ID,
		"retry_id", retry.ID,
		"primary_id", perr.PrimaryAssetID,
		"remaining", len(perr.Remaining),
		"attempt", attempt)
}

func isPermanent(err error) bool {
	return errors.Is(err, core.ErrStalePlan) ||
		errors.Is(err, core.ErrMergeValidation) ||
		errors.Is(err, core.ErrAssetNotFound)
}
