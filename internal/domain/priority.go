package domain

import (
	"math"
	"time"

	"github.com/rezkam/taskflow/internal/ptr"
)

// Score weights. Deadline urgency and value dominate; difficulty is inverted.
const (
	deadlineWeight   = 0.4
	valueWeight      = 0.4
	difficultyWeight = 0.2

	// DeadlineHorizonDays is how far out a deadline stops adding urgency.
	// A missing deadline is treated as this far away.
	DeadlineHorizonDays = 365

	MinPriorityScore = 0
	MaxPriorityScore = 100
)

// ScoreInput holds the task attributes that feed the priority score.
// Nil fields fall back to their defaults.
type ScoreInput struct {
	ValueImpact *int
	Difficulty  *int
	Deadline    *time.Time
}

// ComputeScore returns the priority score in [0,100] for the input at now.
// Out-of-range numbers are clamped, never rejected.
func ComputeScore(in ScoreInput, now time.Time) int {
	value := ClampValueImpact(ptr.Deref(in.ValueImpact, DefaultValueImpact))
	difficulty := ClampDifficulty(ptr.Deref(in.Difficulty, DefaultDifficulty))

	days := float64(DeadlineHorizonDays)
	if in.Deadline != nil {
		days = in.Deadline.Sub(now).Hours() / 24
		days = max(0, min(days, DeadlineHorizonDays))
	}

	deadlineScore := 100 - min(100, days/DeadlineHorizonDays*100)
	valueScore := float64(value)
	difficultyScore := float64(difficulty) / MaxDifficulty * 100

	score := math.Round(deadlineScore*deadlineWeight +
		valueScore*valueWeight +
		(100-difficultyScore)*difficultyWeight)

	return max(MinPriorityScore, min(int(score), MaxPriorityScore))
}
