package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMergeValidation matches every *MergeValidationError via errors.Is.
	ErrMergeValidation = errors.New("merge validation failed")
	// ErrPartialMerge matches every *PartialFailureError via errors.Is.
	ErrPartialMerge = errors.New("merge partially applied")

	ErrAssetNotFound     = errors.New("asset not found")
	ErrMilestoneNotFound = errors.New("milestone not found")
	// ErrStalePlan means the store no longer matches the plan's assumptions.
	ErrStalePlan = errors.New("merge plan is stale")
)

// ValidationError reports malformed input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MergeValidationError names the field that makes a merge selection invalid.
type MergeValidationError struct {
	Field  string // "count", "currency", "account" or "primary"
	Reason string
	Values []string
}

func (e *MergeValidationError) Error() string {
	if len(e.Values) > 0 {
		return fmt.Sprintf("merge validation failed on %s: %s (%s)", e.Field, e.Reason, strings.Join(e.Values, ", "))
	}
	return fmt.Sprintf("merge validation failed on %s: %s", e.Field, e.Reason)
}

func (e *MergeValidationError) Is(target error) bool {
	return target == ErrMergeValidation
}

// PartialFailureError is returned when the primary asset was updated but
// some of the duplicates could not be deleted. Retrying must only delete
// Remaining; re-running the whole merge would count the primary twice.
type PartialFailureError struct {
	PrimaryAssetID string
	Deleted        []string
	Remaining      []string
	Cause          error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("merge into %s partially applied: %d deleted, %d remaining (%s): %v",
		e.PrimaryAssetID, len(e.Deleted), len(e.Remaining), strings.Join(e.Remaining, ", "), e.Cause)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Cause
}

func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialMerge
}
