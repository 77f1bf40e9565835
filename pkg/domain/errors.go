package domain

import (
	"errors"
	"fmt"

	"metacore/pkg/rangeset"
)

// InvalidRangeError reports a malformed range token during decode.
type InvalidRangeError = rangeset.InvalidRangeError

// SampleIndexOutOfBoundsError reports an index outside [1, SampleCount].
type SampleIndexOutOfBoundsError struct {
	Index       int
	SampleCount int
}

func (e *SampleIndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("sample index %d out of bounds [1, %d]", e.Index, e.SampleCount)
}

// ModifierConflictError reports persisted modifiers that break the one value
// per sample invariant. It indicates corrupted state and is never repaired
// silently.
type ModifierConflictError struct {
	Column     string
	Value      string
	OtherValue string
	Sample     int
	Reason     string
}

func (e *ModifierConflictError) Error() string {
	if e.Sample > 0 {
		return fmt.Sprintf("column %s: sample %d claimed by modifiers %q and %q", e.Column, e.Sample, e.Value, e.OtherValue)
	}
	return fmt.Sprintf("column %s: modifier %q %s", e.Column, e.Value, e.Reason)
}

// PoolCompositionError reports a pool whose membership references a sample
// absent from the table or breaks the disjoint membership invariant.
type PoolCompositionError struct {
	Pool        string
	Sample      int
	SampleCount int
	Reason      string
}

func (e *PoolCompositionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("pool %s: sample %d %s", e.Pool, e.Sample, e.Reason)
	}
	return fmt.Sprintf("pool %s: sample %d not in table of %d samples", e.Pool, e.Sample, e.SampleCount)
}

// ErrNotFound is returned when a referenced record is absent.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrForbidden is returned when the acting user lacks the required capability.
var ErrForbidden = errors.New("forbidden")
