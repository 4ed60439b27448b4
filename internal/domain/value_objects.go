package domain

import (
	"fmt"
	"strings"
	"time"
)

// Title is a validated title value object (1-255 characters).
type Title struct {
	value string
}

// NewTitle creates a new Title, validating the input.
func NewTitle(s string) (Title, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return Title{}, ErrTitleRequired
	}

	if len(s) > 255 {
		return Title{}, ErrTitleTooLong
	}

	return Title{value: s}, nil
}

// String returns the title value.
func (t Title) String() string {
	return t.value
}

// legacyStatuses maps spellings found in older clients to canonical statuses.
var legacyStatuses = map[string]TaskStatus{
	"inprocess":   TaskStatusInProgress,
	"inprogress":  TaskStatusInProgress,
	"in_progress": TaskStatusInProgress,
	"cancelled":   TaskStatusCanceled,
}

// NewTaskStatus validates and creates a TaskStatus.
// Legacy spellings are normalized to the canonical value.
func NewTaskStatus(s string) (TaskStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))

	if status, ok := legacyStatuses[normalized]; ok {
		return status, nil
	}

	status := TaskStatus(normalized)
	switch status {
	case TaskStatusOngoing, TaskStatusInProgress, TaskStatusCanceled, TaskStatusCompleted:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidTaskStatus, s)
	}
}

// Priority input bounds.
const (
	MinValueImpact     = 1
	MaxValueImpact     = 100
	DefaultValueImpact = 50

	MinDifficulty     = 1
	MaxDifficulty     = 10
	DefaultDifficulty = 5
)

// ClampValueImpact forces v into [MinValueImpact, MaxValueImpact].
func ClampValueImpact(v int) int {
	return max(MinValueImpact, min(v, MaxValueImpact))
}

// ClampDifficulty forces v into [MinDifficulty, MaxDifficulty].
func ClampDifficulty(v int) int {
	return max(MinDifficulty, min(v, MaxDifficulty))
}

// StoragePrecision is the resolution at which timestamps are persisted.
const StoragePrecision = time.Microsecond

// NormalizeDeadline converts a deadline to its stored form: UTC at storage precision.
func NormalizeDeadline(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	normalized := t.UTC().Truncate(StoragePrecision)
	return &normalized
}
