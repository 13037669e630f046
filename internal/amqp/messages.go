package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"finanse/internal/core"

	"github.com/google/uuid"
)

// MessageType tells the worker which step of a merge to run.
type MessageType string

const (
	// TypeMerge applies a whole merge plan.
	TypeMerge MessageType = "merge"
	// TypeRetryDeletions only deletes the listed duplicates of a merge whose
	// primary was already updated.
	TypeRetryDeletions MessageType = "retry_deletions"
)

// MergeMessage carries a merge request between the API and the worker.
// The worker re-reads every asset before mutating, so the plan is a
// request, not a source of truth.
type MergeMessage struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Plan      *core.MergePlan `json:"plan,omitempty"`
	PrimaryID string          `json:"primary_id,omitempty"`
	Remaining []string        `json:"remaining,omitempty"`
	Attempt   int             `json:"attempt"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMergeMessage wraps a plan for asynchronous application.
func NewMergeMessage(plan core.MergePlan) *MergeMessage {
	return &MergeMessage{
		ID:        uuid.NewString(),
		Type:      TypeMerge,
		Plan:      &plan,
		PrimaryID: plan.PrimaryAssetID,
		Timestamp: time.Now(),
	}
}

// NewRetryMessage asks the worker to delete only the remaining duplicates
// of a partially applied merge.
func NewRetryMessage(primaryID string, remaining []string, attempt int) *MergeMessage {
	return &MergeMessage{
		ID:        uuid.NewString(),
		Type:      TypeRetryDeletions,
		PrimaryID: primaryID,
		Remaining: append([]string(nil), remaining...),
		Attempt:   attempt,
		Timestamp: time.Now(),
	}
}

// Validate rejects messages the worker could not act on.
func (m *MergeMessage) Validate() error {
	switch m.Type {
	case TypeMerge:
		if m.Plan == nil {
			return errors.New("merge message without plan")
		}
	case TypeRetryDeletions:
		if len(m.Remaining) == 0 {
			return errors.New("retry message without remaining ids")
		}
	default:
		return errors.New("unknown message type " + string(m.Type))
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *MergeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MergeMessageFromJSON decodes and validates a message.
func MergeMessageFromJSON(data []byte) (*MergeMessage, error) {
	var msg MergeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
