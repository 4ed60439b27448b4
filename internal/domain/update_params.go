package domain

import (
	"fmt"
	"slices"
	"time"
)

// Task field names accepted in update masks.
const (
	FieldTitle         = "title"
	FieldStatus        = "status"
	FieldDeadline      = "deadline"
	FieldValueImpact   = "value_impact"
	FieldDifficulty    = "difficulty"
	FieldIsDeleted     = "is_deleted"
	FieldPriorityScore = "priority_score"
)

// scoreInputFields are the fields whose change requires a new priority score.
var scoreInputFields = []string{
	FieldDeadline,
	FieldValueImpact,
	FieldDifficulty,
}

// UpdateTaskParams describes a partial task update.
// Only fields named in UpdateMask are written.
type UpdateTaskParams struct {
	TaskID     string
	UserID     string
	UpdateMask []string
	Etag       *string // optional, must match the current version when set

	Title       *string
	Status      *TaskStatus
	Deadline    *time.Time // nil clears the deadline
	ValueImpact *int       // nil resets to DefaultValueImpact
	Difficulty  *int       // nil resets to DefaultDifficulty
	IsDeleted   *bool

	// PriorityScore is filled in by the service, never by clients.
	PriorityScore *int
}

// Valid client-settable fields for UpdateTaskParams.
var updateTaskValidFields = map[string]struct{}{
	FieldTitle:       {},
	FieldStatus:      {},
	FieldDeadline:    {},
	FieldValueImpact: {},
	FieldDifficulty:  {},
	FieldIsDeleted:   {},
}

// Validate checks that UpdateMask contains only known, client-settable fields
// and that required fields have non-nil values when included in the mask.
func (p UpdateTaskParams) Validate() error {
	if len(p.UpdateMask) == 0 {
		return ErrEmptyUpdateMask
	}

	maskSet := make(map[string]bool, len(p.UpdateMask))

	for _, field := range p.UpdateMask {
		if _, ok := updateTaskValidFields[field]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		maskSet[field] = true
	}

	if maskSet[FieldTitle] && p.Title == nil {
		return ErrTitleRequired
	}
	if maskSet[FieldStatus] && p.Status == nil {
		return ErrStatusRequired
	}
	if maskSet[FieldIsDeleted] && p.IsDeleted == nil {
		return fmt.Errorf("%w: %s", ErrFieldRequired, FieldIsDeleted)
	}

	return nil
}

// Has reports whether field is in the update mask.
func (p UpdateTaskParams) Has(field string) bool {
	return slices.Contains(p.UpdateMask, field)
}

// TouchesScore reports whether the update changes any priority input.
func (p UpdateTaskParams) TouchesScore() bool {
	return slices.ContainsFunc(scoreInputFields, p.Has)
}

// ApplyTo returns a copy of t with the masked fields overwritten.
// Numbers are clamped and nil values fall back to defaults.
func (p UpdateTaskParams) ApplyTo(t Task) Task {
	out := t.Clone()
	if p.Has(FieldTitle) && p.Title != nil {
		out.Title = *p.Title
	}
	if p.Has(FieldStatus) && p.Status != nil {
		out.Status = *p.Status
	}
	if p.Has(FieldDeadline) {
		out.Deadline = NormalizeDeadline(p.Deadline)
	}
	if p.Has(FieldValueImpact) {
		out.ValueImpact = DefaultValueImpact
		if p.ValueImpact != nil {
			out.ValueImpact = ClampValueImpact(*p.ValueImpact)
		}
	}
	if p.Has(FieldDifficulty) {
		out.Difficulty = DefaultDifficulty
		if p.Difficulty != nil {
			out.Difficulty = ClampDifficulty(*p.Difficulty)
		}
	}
	if p.Has(FieldIsDeleted) && p.IsDeleted != nil {
		out.IsDeleted = *p.IsDeleted
	}
	if p.Has(FieldPriorityScore) && p.PriorityScore != nil {
		out.PriorityScore = *p.PriorityScore
	}
	return out
}
