package worker

import (
	"context"
	"errors"
	"testing"

	"finanse/internal/amqp"
	"finanse/internal/core"
	"finanse/internal/services"
)

type fakeMerger struct {
	applyErr  error
	retryErr  error
	applied   int
	retried   [][]string
	primaries []string
}

func (m *fakeMerger) Apply(_ context.Context, plan core.MergePlan) (services.MergeResult, error) {
	m.applied++
	return services.MergeResult{Plan: plan, Deleted: plan.DeleteIDs()}, m.applyErr
}

func (m *fakeMerger) RetryDeletions(_ context.Context, primaryID string, remaining []string) ([]string, error) {
	m.primaries = append(m.primaries, primaryID)
	m.retried = append(m.retried, remaining)
	return remaining, m.retryErr
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

func partial(remaining ...string) error {
	return &core.PartialFailureError{
		PrimaryAssetID: "a1",
		Remaining:      remaining,
		Cause:          errors.New("quota exceeded"),
	}
}

func mergeMsg() *amqp.MergeMessage {
	return amqp.NewMergeMessage(core.MergePlan{PrimaryAssetID: "a1", MergedAssetIDs: []string{"a1", "a2", "a3"}})
}

func TestMergeWorker_HandleMerge(t *testing.T) {
	tests := []struct {
		name        string
		applyErr    error
		wantErr     bool
		wantRetries int
	}{
		{"success", nil, false, 0},
		{"partial failure schedules retry", partial("a3"), false, 1},
		{"stale plan is dropped", core.ErrStalePlan, false, 0},
		{"validation error is dropped", &core.MergeValidationError{Field: "currency", Reason: "mixed"}, false, 0},
		{"store outage requeues", errors.New("connection refused"), true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merger := &fakeMerger{applyErr: tt.applyErr}
			pub := &fakePublisher{}
			w := NewMergeWorker(merger, pub, 3)

			err := w.HandleMessage(context.Background(), mergeMsg())
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if merger.applied != 1 {
				t.Errorf("Apply called %d times", merger.applied)
			}
			if len(pub.msgs) != tt.wantRetries {
				t.Fatalf("published %d retries, want %d", len(pub.msgs), tt.wantRetries)
			}
			if tt.wantRetries > 0 {
				retry := pub.msgs[0]
				if retry.Type != amqp.TypeRetryDeletions || retry.Attempt != 1 || retry.PrimaryID != "a1" {
					t.Errorf("retry = %+v", retry)
				}
				if len(retry.Remaining) != 1 || retry.Remaining[0] != "a3" {
					t.Errorf("retry remaining = %v", retry.Remaining)
				}
			}
		})
	}
}

func TestMergeWorker_HandleRetry(t *testing.T) {
	t.Run("success deletes only remaining", func(t *testing.T) {
		merger := &fakeMerger{}
		w := NewMergeWorker(merger, &fakePublisher{}, 3)
		msg := amqp.NewRetryMessage("a1", []string{"a3"}, 1)

		if err := w.HandleMessage(context.Background(), msg); err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
		if merger.applied != 0 {
			t.Error("retry must never re-apply the merge")
		}
		if len(merger.retried) != 1 || merger.retried[0][0] != "a3" || merger.primaries[0] != "a1" {
			t.Errorf("retried = %v for %v", merger.retried, merger.primaries)
		}
	})

	t.Run("failure increments attempt", func(t *testing.T) {
		pub := &fakePublisher{}
		w := NewMergeWorker(&fakeMerger{retryErr: partial("a3")}, pub, 3)

		if err := w.HandleMessage(context.Background(), amqp.NewRetryMessage("a1", []string{"a3"}, 2)); err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
		if len(pub.msgs) != 1 || pub.msgs[0].Attempt != 3 {
			t.Fatalf("published = %+v", pub.msgs)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		pub := &fakePublisher{}
		w := NewMergeWorker(&fakeMerger{retryErr: partial("a3")}, pub, 3)

		if err := w.HandleMessage(context.Background(), amqp.NewRetryMessage("a1", []string{"a3"}, 3)); err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
		if len(pub.msgs) != 0 {
			t.Fatalf("no retry expected past max attempts, got %+v", pub.msgs)
		}
	})

	t.Run("publish failure is not requeued", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("broker down")}
		w := NewMergeWorker(&fakeMerger{retryErr: partial("a3")}, pub, 3)

		if err := w.HandleMessage(context.Background(), amqp.NewRetryMessage("a1", []string{"a3"}, 1)); err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
	})
}

func TestNewMergeWorker_DefaultAttempts(t *testing.T) {
	w := NewMergeWorker(&fakeMerger{}, nil, 0)
	if w.maxAttempts != DefaultMaxAttempts {
		t.Errorf("maxAttempts = %d, want %d", w.maxAttempts, DefaultMaxAttempts)
	}
}
