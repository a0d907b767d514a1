package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/vocabbot/pkg/models"
)

// Sentinel errors for progress persistence.
var (
	// ErrNotFound means no record exists for the requested key.
	ErrNotFound = errors.New("database: record not found")
	// ErrStaleWrite means a save lost the race against a concurrent
	// writer; the caller should re-fetch and retry once.
	ErrStaleWrite = errors.New("database: stale write rejected")
)

// ProgressRepository handles persistence of per-(learner, item) progress
// records. Saves are guarded by a version column: a write carrying an
// outdated version is rejected instead of overwriting a newer state.
type ProgressRepository struct{}

// NewProgressRepository creates a new repository instance
func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{}
}

// Get returns the record for a learner and item, or ErrNotFound.
func (r *ProgressRepository) Get(learnerID int64, itemID string) (*models.ProgressRecord, error) {
	var rec models.ProgressRecord
	err := DB.Get(&rec,
		"SELECT * FROM progress WHERE learner_id = $1 AND item_id = $2",
		learnerID, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: learner %d item %q", ErrNotFound, learnerID, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return &rec, nil
}

// GetOrCreate returns the stored record for fresh's (learner, item) key,
// inserting fresh as the initial state when none exists yet.
func (r *ProgressRepository) GetOrCreate(fresh models.ProgressRecord) (*models.ProgressRecord, error) {
	rec, err := r.Get(fresh.LearnerID, fresh.ItemID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	_, err = DB.Exec(`
		INSERT INTO progress (
			learner_id, item_id, repetitions, ease_factor,
			interval_minutes, due_at, last_result, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 1)`,
		fresh.LearnerID,
		fresh.ItemID,
		fresh.Repetitions,
		fresh.EaseFactor,
		fresh.IntervalMinutes,
		fresh.DueAt.UTC(),
		fresh.LastResult,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress: %w", err)
	}
	return r.Get(fresh.LearnerID, fresh.ItemID)
}

// Save persists an updated record. The update only applies when the
// stored version still matches rec.Version; otherwise ErrStaleWrite is
// returned and the record is left untouched. On success rec.Version is
// advanced to the stored value.
func (r *ProgressRepository) Save(rec *models.ProgressRecord) error {
	result, err := DB.Exec(`
		UPDATE progress SET
			repetitions = $1,
			ease_factor = $2,
			interval_minutes = $3,
			due_at = $4,
			last_result = $5,
			version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE learner_id = $6 AND item_id = $7 AND version = $8`,
		rec.Repetitions,
		rec.EaseFactor,
		rec.IntervalMinutes,
		rec.DueAt.UTC(),
		rec.LastResult,
		rec.LearnerID,
		rec.ItemID,
		rec.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check save result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: learner %d item %q version %d",
			ErrStaleWrite, rec.LearnerID, rec.ItemID, rec.Version)
	}
	rec.Version++
	return nil
}

// DueItems returns every record of the learner whose due time has
// passed as of the given instant. Never-reviewed records are created
// immediately due, so they are included by the same comparison.
// Ordering is unspecified; selection policy belongs to the engine.
func (r *ProgressRepository) DueItems(learnerID int64, asOf time.Time) ([]models.ProgressRecord, error) {
	var records []models.ProgressRecord
	err := DB.Select(&records,
		"SELECT * FROM progress WHERE learner_id = $1 AND due_at <= $2",
		learnerID, asOf.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get due items: %w", err)
	}
	return records, nil
}

// ForSet returns all records of a learner belonging to one vocab set.
// Item ids are prefixed with the set id, so a prefix match suffices.
func (r *ProgressRepository) ForSet(learnerID int64, setID string) ([]models.ProgressRecord, error) {
	var records []models.ProgressRecord
	err := DB.Select(&records,
		"SELECT * FROM progress WHERE learner_id = $1 AND item_id LIKE $2",
		learnerID, setID+"#%")
	if err != nil {
		return nil, fmt.Errorf("failed to get set progress: %w", err)
	}
	return records, nil
}

// SetStatistics summarizes a learner's standing within one vocab set.
type SetStatistics struct {
	Total     int `db:"total"`
	New       int `db:"new_count"`
	Correct   int `db:"correct_count"`
	Incorrect int `db:"incorrect_count"`
}

// Statistics returns per-result counts for a learner and set.
func (r *ProgressRepository) Statistics(learnerID int64, setID string) (*SetStatistics, error) {
	var stats SetStatistics
	err := DB.Get(&stats, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN last_result = 'new' THEN 1 ELSE 0 END), 0) AS new_count,
			COALESCE(SUM(CASE WHEN last_result = 'correct' THEN 1 ELSE 0 END), 0) AS correct_count,
			COALESCE(SUM(CASE WHEN last_result = 'incorrect' THEN 1 ELSE 0 END), 0) AS incorrect_count
		FROM progress WHERE learner_id = $1 AND item_id LIKE $2`,
		learnerID, setID+"#%")
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	return &stats, nil
}
