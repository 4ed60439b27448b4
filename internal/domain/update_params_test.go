package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/rezkam/taskflow/internal/ptr"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// UpdateTaskParams.Validate() Tests
// =============================================================================

func TestUpdateTaskParams_Validate_UnknownField(t *testing.T) {
	tests := []struct {
		name    string
		mask    []string
		wantErr bool
	}{
		{name: "valid field title", mask: []string{"title"}},
		{name: "valid field deadline", mask: []string{"deadline"}},
		{
			name: "valid multiple fields",
			mask: []string{"title", "status", "deadline", "value_impact", "difficulty", "is_deleted"},
		},
		{name: "unknown field typo", mask: []string{"titel"}, wantErr: true},
		{name: "priority score is not client settable", mask: []string{"priority_score"}, wantErr: true},
		{name: "unknown field mixed with valid", mask: []string{"title", "tags"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := UpdateTaskParams{
				TaskID:     "task-1",
				UserID:     "user-1",
				UpdateMask: tt.mask,
				Title:      ptr.To("Valid Title"),
				Status:     ptr.To(TaskStatusOngoing),
				IsDeleted:  ptr.To(false),
			}

			err := params.Validate()

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownField)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpdateTaskParams_Validate_RequiredFieldNil(t *testing.T) {
	tests := []struct {
		name    string
		mask    []string
		wantErr error
	}{
		{name: "title in mask with nil value", mask: []string{"title"}, wantErr: ErrTitleRequired},
		{name: "status in mask with nil value", mask: []string{"status"}, wantErr: ErrStatusRequired},
		{name: "is_deleted in mask with nil value", mask: []string{"is_deleted"}, wantErr: ErrFieldRequired},
		{name: "nil deadline clears", mask: []string{"deadline"}},
		{name: "nil value impact resets", mask: []string{"value_impact"}},
		{name: "nil difficulty resets", mask: []string{"difficulty"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := UpdateTaskParams{TaskID: "task-1", UpdateMask: tt.mask}.Validate()

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpdateTaskParams_Validate_EmptyMask(t *testing.T) {
	err := UpdateTaskParams{TaskID: "task-1"}.Validate()
	assert.ErrorIs(t, err, ErrEmptyUpdateMask)
}

func TestUpdateTaskParams_TouchesScore(t *testing.T) {
	assert.False(t, UpdateTaskParams{UpdateMask: []string{"title", "status"}}.TouchesScore())
	assert.True(t, UpdateTaskParams{UpdateMask: []string{"title", "deadline"}}.TouchesScore())
	assert.True(t, UpdateTaskParams{UpdateMask: []string{"value_impact"}}.TouchesScore())
	assert.True(t, UpdateTaskParams{UpdateMask: []string{"difficulty"}}.TouchesScore())
}

func TestUpdateTaskParams_ApplyTo(t *testing.T) {
	deadline := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	base := Task{
		ID:          "task-1",
		Title:       "old",
		Status:      TaskStatusOngoing,
		Deadline:    &deadline,
		ValueImpact: 10,
		Difficulty:  2,
	}

	t.Run("only masked fields change", func(t *testing.T) {
		out := UpdateTaskParams{
			UpdateMask:  []string{"title"},
			Title:       ptr.To("new"),
			ValueImpact: ptr.To(99),
		}.ApplyTo(base)

		assert.Equal(t, "new", out.Title)
		assert.Equal(t, 10, out.ValueImpact)
		assert.Equal(t, "old", base.Title)
	})

	t.Run("numbers clamp and nil resets to default", func(t *testing.T) {
		out := UpdateTaskParams{
			UpdateMask:  []string{"value_impact", "difficulty"},
			ValueImpact: ptr.To(1000),
		}.ApplyTo(base)

		assert.Equal(t, MaxValueImpact, out.ValueImpact)
		assert.Equal(t, DefaultDifficulty, out.Difficulty)
	})

	t.Run("nil deadline clears", func(t *testing.T) {
		out := UpdateTaskParams{UpdateMask: []string{"deadline"}}.ApplyTo(base)

		assert.Nil(t, out.Deadline)
		assert.NotNil(t, base.Deadline)
	})
}
