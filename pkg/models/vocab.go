package models

// VocabItem represents a single learnable entry of a vocab set.
// Items are immutable once loaded; progress records reference them by ID.
type VocabItem struct {
	ID          string `json:"id" db:"id"`                     // "<set>#<ordinal>", stable per source file
	VocabSetID  string `json:"vocab_set_id" db:"vocab_set_id"` // file name without extension
	ForeignWord string `json:"foreign_word" db:"foreign_word"` // single token, first column
	Translation string `json:"translation" db:"translation"`   // one or more tokens, may list synonyms separated by commas
	Annotation  string `json:"annotation" db:"annotation"`     // pronunciation or any other hint (optional third column)
}

// VocabSet is an ordered collection of items loaded from one source file.
type VocabSet struct {
	ID    string      `json:"id"`
	Items []VocabItem `json:"items"`
	// PrivateUserIDs limits visibility of the set to the listed learners.
	// Nil means the set is visible to everyone.
	PrivateUserIDs map[int64]bool `json:"private_user_ids,omitempty"`
}

// VisibleTo reports whether the set may be offered to the given learner.
func (v *VocabSet) VisibleTo(learnerID int64) bool {
	if v.PrivateUserIDs == nil {
		return true
	}
	return v.PrivateUserIDs[learnerID]
}
