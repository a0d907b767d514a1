package session

import (
	"errors"
	"sync"
	"time"

	"github.com/example/vocabbot/internal/scheduling"
	"github.com/example/vocabbot/pkg/models"
)

// ErrSessionActive means the learner already has a running session.
var ErrSessionActive = errors.New("session: learner already has an active session")

// Manager is the keyed store of live sessions, one per learner.
// Learners proceed independently; the map lock is held only for
// bookkeeping, never across storage calls.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Controller

	engine      *scheduling.Engine
	store       ProgressStore
	catalog     Catalog
	sessionSize int
	now         func() time.Time
}

// NewManager creates a session manager. sessionSize caps how many due
// items one session takes (0 means unlimited). Pass nil for now to use
// wall time.
func NewManager(engine *scheduling.Engine, store ProgressStore, catalog Catalog, sessionSize int, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		sessions:    make(map[int64]*Controller),
		engine:      engine,
		store:       store,
		catalog:     catalog,
		sessionSize: sessionSize,
		now:         now,
	}
}

// Start begins a session for the learner on the given set. A nil prompt
// with nil error means nothing is due right now. An unfinished existing
// session is rejected with ErrSessionActive.
func (m *Manager) Start(learnerID int64, setID string) (*Controller, *models.Prompt, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[learnerID]; ok && existing.State() != Completed {
		m.mu.Unlock()
		return nil, nil, ErrSessionActive
	}
	ctrl := NewController(learnerID, setID, m.engine, m.store, m.catalog, m.now)
	m.sessions[learnerID] = ctrl
	m.mu.Unlock()

	prompt, err := ctrl.Start(m.sessionSize)
	if err != nil || prompt == nil {
		m.release(learnerID, ctrl)
		return nil, nil, err
	}
	return ctrl, prompt, nil
}

// Get returns the learner's live session, if any.
func (m *Manager) Get(learnerID int64) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctrl, ok := m.sessions[learnerID]
	return ctrl, ok
}

// Answer routes a raw text answer to the learner's session. A returned
// summary means the session just completed.
func (m *Manager) Answer(learnerID int64, text string) (*models.Prompt, *models.SessionSummary, error) {
	ctrl, ok := m.Get(learnerID)
	if !ok {
		return nil, nil, ErrNotAwaitingAnswer
	}
	prompt, summary, err := ctrl.Answer(text)
	if summary != nil || (err != nil && ctrl.State() == Completed) {
		m.release(learnerID, ctrl)
	}
	return prompt, summary, err
}

// Cancel ends the learner's session, if one exists, and returns its
// summary.
func (m *Manager) Cancel(learnerID int64) (*models.SessionSummary, bool) {
	ctrl, ok := m.Get(learnerID)
	if !ok {
		return nil, false
	}
	summary := ctrl.Cancel()
	m.release(learnerID, ctrl)
	return &summary, true
}

// release drops the session only if it is still the registered one.
func (m *Manager) release(learnerID int64, ctrl *Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[learnerID] == ctrl {
		delete(m.sessions, learnerID)
	}
}
