// Package session owns the interactive review flow: one controller per
// learner walks a snapshot of due items, classifies answers, feeds
// outcomes to the scheduling engine, and persists each result as it
// happens so cancellation loses nothing.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/vocabbot/internal/database"
	"github.com/example/vocabbot/internal/scheduling"
	"github.com/example/vocabbot/pkg/models"
	"github.com/google/uuid"
)

// Sentinel errors for session control.
var (
	// ErrNotAwaitingAnswer means an answer arrived while no prompt was
	// outstanding, or the session already ended.
	ErrNotAwaitingAnswer = errors.New("session: not awaiting an answer")
	// ErrAlreadyStarted means Start was called twice on one controller.
	ErrAlreadyStarted = errors.New("session: already started")
)

// ProgressStore is the persistence contract the controller needs.
// *database.ProgressRepository satisfies it.
type ProgressStore interface {
	GetOrCreate(fresh models.ProgressRecord) (*models.ProgressRecord, error)
	Get(learnerID int64, itemID string) (*models.ProgressRecord, error)
	Save(rec *models.ProgressRecord) error
	DueItems(learnerID int64, asOf time.Time) ([]models.ProgressRecord, error)
}

// Catalog is the vocab lookup the controller needs. *vocab.Store
// satisfies it.
type Catalog interface {
	Get(setID string) ([]models.VocabItem, error)
	Item(itemID string) (models.VocabItem, error)
}

// State of the session state machine.
type State int

const (
	// Idle: created, not started.
	Idle State = iota
	// Active: between answers, picking the next item.
	Active
	// AwaitingAnswer: one prompt is outstanding.
	AwaitingAnswer
	// Completed: terminal; a new session needs a fresh controller.
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case AwaitingAnswer:
		return "awaiting_answer"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Controller runs one review session for one learner. All methods are
// safe for concurrent use; the internal lock serializes answers so at
// most one outcome is applied at a time.
type Controller struct {
	mu sync.Mutex

	id        string
	learnerID int64
	setID     string
	engine    *scheduling.Engine
	store     ProgressStore
	catalog   Catalog
	now       func() time.Time

	state       State
	queue       []models.ProgressRecord // remaining snapshot, set at start
	current     *models.ProgressRecord
	promptedAt  time.Time
	reviewed    int
	correct     int
	cancelled   bool
	prevItem    *models.VocabItem // verdict of the last answered prompt
	prevCorrect *bool
}

// NewController creates an idle session controller. The now function is
// the session's clock; pass nil for wall time.
func NewController(learnerID int64, setID string, engine *scheduling.Engine, store ProgressStore, catalog Catalog, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{
		id:        uuid.NewString(),
		learnerID: learnerID,
		setID:     setID,
		engine:    engine,
		store:     store,
		catalog:   catalog,
		now:       now,
		state:     Idle,
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// LearnerID returns the owning learner.
func (c *Controller) LearnerID() int64 { return c.learnerID }

// State returns the current FSM state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start snapshots the learner's due items for the set and presents the
// first prompt. Unseen items get their progress record created here, so
// they count as immediately due. maxItems caps the snapshot (0 means no
// cap). A nil prompt with nil error means nothing is due; the session
// completes immediately.
func (c *Controller) Start(maxItems int) (*models.Prompt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return nil, fmt.Errorf("%w: session %s is %s", ErrAlreadyStarted, c.id, c.state)
	}
	now := c.now()

	items, err := c.catalog.Get(c.setID)
	if err != nil {
		return nil, err
	}
	// First exposure creates the record; existing records are returned
	// as stored.
	for _, item := range items {
		if _, err := c.store.GetOrCreate(c.engine.NewRecord(c.learnerID, item.ID, now)); err != nil {
			return nil, err
		}
	}

	due, err := c.store.DueItems(c.learnerID, now)
	if err != nil {
		return nil, err
	}
	snapshot := make([]models.ProgressRecord, 0, len(due))
	prefix := c.setID + "#"
	for _, rec := range due {
		if strings.HasPrefix(rec.ItemID, prefix) {
			snapshot = append(snapshot, rec)
		}
	}
	snapshot = scheduling.Order(snapshot)
	if maxItems > 0 && len(snapshot) > maxItems {
		snapshot = snapshot[:maxItems]
	}

	c.queue = snapshot
	c.state = Active
	return c.advanceLocked()
}

// Answer classifies the learner's raw text against the outstanding
// item's translation and submits the resulting outcome.
func (c *Controller) Answer(text string) (*models.Prompt, *models.SessionSummary, error) {
	c.mu.Lock()
	if c.state != AwaitingAnswer || c.current == nil {
		c.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: session %s is %s", ErrNotAwaitingAnswer, c.id, c.state)
	}
	itemID := c.current.ItemID
	c.mu.Unlock()

	item, err := c.catalog.Item(itemID)
	if err != nil {
		return nil, nil, err
	}
	return c.Submit(models.ReviewOutcome{
		ItemID:  itemID,
		Correct: Classify(text, item.Translation),
	})
}

// Submit applies one classified outcome to the outstanding item,
// persists the updated record, and moves to the next prompt. When the
// queue is exhausted it returns the terminal summary instead.
func (c *Controller) Submit(outcome models.ReviewOutcome) (*models.Prompt, *models.SessionSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != AwaitingAnswer || c.current == nil {
		return nil, nil, fmt.Errorf("%w: session %s is %s", ErrNotAwaitingAnswer, c.id, c.state)
	}
	if outcome.ItemID != c.current.ItemID {
		return nil, nil, fmt.Errorf("session: outcome for %q but prompt is %q", outcome.ItemID, c.current.ItemID)
	}
	now := c.now()
	if outcome.ResponseLatency == 0 && !c.promptedAt.IsZero() {
		outcome.ResponseLatency = now.Sub(c.promptedAt)
	}

	if err := c.applyAndSave(*c.current, outcome, now); err != nil {
		if errors.Is(err, scheduling.ErrUnknownItem) {
			// Integrity violation between the stores; the session
			// cannot continue.
			c.state = Completed
		}
		return nil, nil, err
	}

	c.reviewed++
	if outcome.Correct {
		c.correct++
	}
	if item, err := c.catalog.Item(outcome.ItemID); err == nil {
		correct := outcome.Correct
		c.prevItem = &item
		c.prevCorrect = &correct
	}

	// The answered item leaves the snapshot whether right or wrong; a
	// missed item comes back in a later session at the base interval.
	rest := c.queue[:0]
	for _, rec := range c.queue {
		if rec.ItemID != outcome.ItemID {
			rest = append(rest, rec)
		}
	}
	c.queue = rest
	c.current = nil
	c.state = Active

	prompt, err := c.advanceLocked()
	if err != nil {
		return nil, nil, err
	}
	if prompt == nil {
		summary := c.summaryLocked()
		return nil, &summary, nil
	}
	return prompt, nil, nil
}

// Cancel ends the session immediately. Progress persisted per answer is
// kept. Safe to call in any state; it is idempotent.
func (c *Controller) Cancel() models.SessionSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Completed {
		c.cancelled = true
		c.state = Completed
		c.current = nil
		c.queue = nil
	}
	return c.summaryLocked()
}

// Summary returns the session totals so far.
func (c *Controller) Summary() models.SessionSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summaryLocked()
}

// applyAndSave runs the engine update and persists it, retrying once
// after re-fetching when a concurrent writer won the version race.
func (c *Controller) applyAndSave(rec models.ProgressRecord, outcome models.ReviewOutcome, now time.Time) error {
	next, err := c.engine.ApplyOutcome(rec, outcome, now)
	if err != nil {
		return err
	}
	saveErr := c.store.Save(&next)
	if saveErr == nil {
		return nil
	}
	if !errors.Is(saveErr, database.ErrStaleWrite) {
		return saveErr
	}

	fresh, err := c.store.Get(rec.LearnerID, rec.ItemID)
	if err != nil {
		return err
	}
	next, err = c.engine.ApplyOutcome(*fresh, outcome, now)
	if err != nil {
		return err
	}
	return c.store.Save(&next)
}

// advanceLocked selects the next item and builds its prompt, or
// completes the session when the queue is empty. Caller holds the lock.
func (c *Controller) advanceLocked() (*models.Prompt, error) {
	itemID, ok := scheduling.SelectNext(c.queue)
	if !ok {
		c.state = Completed
		return nil, nil
	}
	for i := range c.queue {
		if c.queue[i].ItemID == itemID {
			c.current = &c.queue[i]
			break
		}
	}
	item, err := c.catalog.Item(itemID)
	if err != nil {
		c.state = Completed
		return nil, fmt.Errorf("%w: %v", scheduling.ErrUnknownItem, err)
	}
	c.promptedAt = c.now()
	c.state = AwaitingAnswer
	return &models.Prompt{
		Item:           item,
		RemainingCount: len(c.queue),
		PrevItem:       c.prevItem,
		PrevCorrect:    c.prevCorrect,
	}, nil
}

func (c *Controller) summaryLocked() models.SessionSummary {
	return models.SessionSummary{
		SessionID:     c.id,
		LearnerID:     c.learnerID,
		TotalReviewed: c.reviewed,
		TotalCorrect:  c.correct,
		Cancelled:     c.cancelled,
	}
}

// Classify reports whether an answer matches the translation. The
// translation may list comma-separated synonyms; matching any of them,
// ignoring case and surrounding space, counts as correct.
func Classify(answer, translation string) bool {
	got := normalize(answer)
	if got == "" {
		return false
	}
	for _, synonym := range strings.Split(translation, ",") {
		if got == normalize(synonym) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
