package models

import "time"

// ReviewResult is the outcome class of the most recent review of an item.
type ReviewResult string

const (
	// ResultNew marks a record that has never been reviewed.
	ResultNew ReviewResult = "new"
	// ResultCorrect marks a record whose last review was answered correctly.
	ResultCorrect ReviewResult = "correct"
	// ResultIncorrect marks a record whose last review was answered incorrectly.
	ResultIncorrect ReviewResult = "incorrect"
)

// ProgressRecord tracks one learner's memory state for one vocab item.
// Created lazily on first exposure and never deleted. Intervals are kept
// in whole minutes so repeated growth never accumulates floating error.
type ProgressRecord struct {
	ID              int64        `json:"id" db:"id"`
	LearnerID       int64        `json:"learner_id" db:"learner_id"`
	ItemID          string       `json:"item_id" db:"item_id"`
	Repetitions     int          `json:"repetitions" db:"repetitions"`           // consecutive correct reviews, reset on a miss
	EaseFactor      float64      `json:"ease_factor" db:"ease_factor"`           // bounded recall-reliability multiplier
	IntervalMinutes int          `json:"interval_minutes" db:"interval_minutes"` // current review interval
	DueAt           time.Time    `json:"due_at" db:"due_at"`
	LastResult      ReviewResult `json:"last_result" db:"last_result"`
	// Version increments on every save; a save carrying a stale version
	// is rejected instead of overwriting a newer write.
	Version   int64     `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Interval returns the current review interval as a duration.
func (p *ProgressRecord) Interval() time.Duration {
	return time.Duration(p.IntervalMinutes) * time.Minute
}

// Due reports whether the record is eligible for review at the given time.
func (p *ProgressRecord) Due(asOf time.Time) bool {
	return !p.DueAt.After(asOf)
}
