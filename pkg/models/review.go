package models

import "time"

// ReviewOutcome is the classified result of one answered prompt.
// It is consumed once by the scheduling engine and not persisted;
// only its effect on the progress record is.
type ReviewOutcome struct {
	ItemID          string        `json:"item_id"`
	Correct         bool          `json:"correct"`
	ResponseLatency time.Duration `json:"response_latency,omitempty"`
}

// Prompt is one question presented to the learner during a session.
// PrevItem and PrevCorrect carry the verdict of the answer that led
// here, so the transport can show feedback alongside the next question.
type Prompt struct {
	Item           VocabItem  `json:"item"`
	RemainingCount int        `json:"remaining_count"` // items left in the session including this one
	PrevItem       *VocabItem `json:"prev_item,omitempty"`
	PrevCorrect    *bool      `json:"prev_correct,omitempty"`
}

// SessionSummary is emitted when a session completes or is cancelled.
type SessionSummary struct {
	SessionID     string `json:"session_id"`
	LearnerID     int64  `json:"learner_id"`
	TotalReviewed int    `json:"total_reviewed"`
	TotalCorrect  int    `json:"total_correct"`
	Cancelled     bool   `json:"cancelled"`
}
