// Package scheduling implements the spaced-repetition decision logic:
// how a progress record changes after a review, and which due item a
// session should present next. The engine is a pure function of its
// inputs; callers supply the current time, so tests need no live clock.
package scheduling

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/example/vocabbot/pkg/models"
)

// ErrUnknownItem means a progress record references an item missing from
// the vocab catalog. The stores are independently owned, so this is an
// integrity violation, not a normal miss.
var ErrUnknownItem = errors.New("scheduling: unknown item")

// Config holds the tunable parameters of the update rule.
// Zero values produce the defaults documented per field.
type Config struct {
	BaseInterval  time.Duration `json:"base_interval"`  // zero → 10m; interval after a miss or the first success step
	GrowthFactor  float64       `json:"growth_factor"`  // zero → 2.0; interval multiplier per consecutive success
	MaxInterval   time.Duration `json:"max_interval"`   // zero → 60 days; growth cap
	MinEase       float64       `json:"min_ease"`       // zero → 1.3
	MaxEase       float64       `json:"max_ease"`       // zero → 3.0
	EaseIncrement float64       `json:"ease_increment"` // zero → 0.1; ease gain on success
	EaseDecrement float64       `json:"ease_decrement"` // zero → 0.2; ease loss on a miss
	StartEase     float64       `json:"start_ease"`     // zero → 2.5; ease of a fresh record
}

// DefaultConfig returns the default parameter set.
func DefaultConfig() Config {
	return Config{
		BaseInterval:  10 * time.Minute,
		GrowthFactor:  2.0,
		MaxInterval:   60 * 24 * time.Hour,
		MinEase:       1.3,
		MaxEase:       3.0,
		EaseIncrement: 0.1,
		EaseDecrement: 0.2,
		StartEase:     2.5,
	}
}

// Catalog is the view of the vocab store the engine needs for its
// integrity check.
type Catalog interface {
	Has(itemID string) bool
}

// Engine applies review outcomes to progress records and selects the
// next due item. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg     Config
	catalog Catalog
}

// NewEngine creates an engine from the given config, filling zero-value
// fields with defaults. Invalid values return an error.
func NewEngine(cfg Config, catalog Catalog) (*Engine, error) {
	def := DefaultConfig()
	if cfg.BaseInterval == 0 {
		cfg.BaseInterval = def.BaseInterval
	}
	if cfg.GrowthFactor == 0 {
		cfg.GrowthFactor = def.GrowthFactor
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.MinEase == 0 {
		cfg.MinEase = def.MinEase
	}
	if cfg.MaxEase == 0 {
		cfg.MaxEase = def.MaxEase
	}
	if cfg.EaseIncrement == 0 {
		cfg.EaseIncrement = def.EaseIncrement
	}
	if cfg.EaseDecrement == 0 {
		cfg.EaseDecrement = def.EaseDecrement
	}
	if cfg.StartEase == 0 {
		cfg.StartEase = def.StartEase
	}

	if cfg.BaseInterval < time.Minute {
		return nil, fmt.Errorf("scheduling: base interval %v must be at least one minute", cfg.BaseInterval)
	}
	if cfg.GrowthFactor < 1 {
		return nil, fmt.Errorf("scheduling: growth factor %v must be >= 1", cfg.GrowthFactor)
	}
	if cfg.MaxInterval < cfg.BaseInterval {
		return nil, fmt.Errorf("scheduling: max interval %v below base interval %v", cfg.MaxInterval, cfg.BaseInterval)
	}
	if cfg.MinEase > cfg.MaxEase {
		return nil, fmt.Errorf("scheduling: min ease %v above max ease %v", cfg.MinEase, cfg.MaxEase)
	}
	if cfg.EaseIncrement < 0 || cfg.EaseDecrement < 0 {
		return nil, fmt.Errorf("scheduling: ease steps must be non-negative")
	}
	return &Engine{cfg: cfg, catalog: catalog}, nil
}

// Config returns the effective parameter set.
func (e *Engine) Config() Config {
	return e.cfg
}

// NewRecord returns the initial progress state for an item the learner
// has never seen: immediately due, no repetitions.
func (e *Engine) NewRecord(learnerID int64, itemID string, now time.Time) models.ProgressRecord {
	return models.ProgressRecord{
		LearnerID:       learnerID,
		ItemID:          itemID,
		Repetitions:     0,
		EaseFactor:      e.cfg.StartEase,
		IntervalMinutes: 0,
		DueAt:           now,
		LastResult:      models.ResultNew,
	}
}

// ApplyOutcome computes the record's next memory state from one review
// outcome. The input record is not modified. A correct answer grows the
// interval geometrically; a miss resets the record to the base interval.
func (e *Engine) ApplyOutcome(record models.ProgressRecord, outcome models.ReviewOutcome, now time.Time) (models.ProgressRecord, error) {
	if record.ItemID != outcome.ItemID {
		return record, fmt.Errorf("scheduling: outcome for item %q applied to record of item %q", outcome.ItemID, record.ItemID)
	}
	if e.catalog != nil && !e.catalog.Has(record.ItemID) {
		return record, fmt.Errorf("%w: %q", ErrUnknownItem, record.ItemID)
	}

	next := record
	if outcome.Correct {
		next.Repetitions = record.Repetitions + 1
		next.IntervalMinutes = e.growInterval(next.Repetitions)
		next.EaseFactor = clamp(record.EaseFactor+e.cfg.EaseIncrement, e.cfg.MinEase, e.cfg.MaxEase)
		next.LastResult = models.ResultCorrect
	} else {
		next.Repetitions = 0
		next.IntervalMinutes = int(e.cfg.BaseInterval / time.Minute)
		next.EaseFactor = clamp(record.EaseFactor-e.cfg.EaseDecrement, e.cfg.MinEase, e.cfg.MaxEase)
		next.LastResult = models.ResultIncorrect
	}
	next.DueAt = now.Add(time.Duration(next.IntervalMinutes) * time.Minute)
	return next, nil
}

// growInterval returns base * growth^repetitions in whole minutes,
// clamped to the configured maximum.
func (e *Engine) growInterval(repetitions int) int {
	baseMin := float64(e.cfg.BaseInterval / time.Minute)
	maxMin := float64(e.cfg.MaxInterval / time.Minute)
	grown := baseMin * math.Pow(e.cfg.GrowthFactor, float64(repetitions))
	if grown > maxMin || math.IsInf(grown, 1) {
		grown = maxMin
	}
	return int(math.Round(grown))
}

// SelectNext picks the item to present from the due set: failed items
// first, then unseen ones, then due successes; within a tier the most
// overdue wins, and equal due times fall back to item id order so the
// choice is deterministic. The second return is false when the set is
// empty, which ends the session.
func SelectNext(dueSet []models.ProgressRecord) (string, bool) {
	if len(dueSet) == 0 {
		return "", false
	}
	best := dueSet[0]
	for _, r := range dueSet[1:] {
		if moreUrgent(r, best) {
			best = r
		}
	}
	return best.ItemID, true
}

// Order returns the due set sorted by the same urgency rule SelectNext
// uses, most urgent first. The input is not modified. Sessions use it to
// cap their snapshot at the most urgent items.
func Order(dueSet []models.ProgressRecord) []models.ProgressRecord {
	ordered := make([]models.ProgressRecord, len(dueSet))
	copy(ordered, dueSet)
	sort.SliceStable(ordered, func(i, j int) bool {
		return moreUrgent(ordered[i], ordered[j])
	})
	return ordered
}

func moreUrgent(a, b models.ProgressRecord) bool {
	ta, tb := tier(a.LastResult), tier(b.LastResult)
	if ta != tb {
		return ta < tb
	}
	if !a.DueAt.Equal(b.DueAt) {
		return a.DueAt.Before(b.DueAt)
	}
	return a.ItemID < b.ItemID
}

func tier(result models.ReviewResult) int {
	switch result {
	case models.ResultIncorrect:
		return 0
	case models.ResultNew:
		return 1
	default:
		return 2
	}
}

// NextDue returns the earliest due time among the records. Used to tell
// a learner how long to wait when nothing is reviewable yet.
func NextDue(records []models.ProgressRecord) (time.Time, bool) {
	if len(records) == 0 {
		return time.Time{}, false
	}
	earliest := records[0].DueAt
	for _, r := range records[1:] {
		if r.DueAt.Before(earliest) {
			earliest = r.DueAt
		}
	}
	return earliest, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
