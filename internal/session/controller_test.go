package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/vocabbot/internal/database"
	"github.com/example/vocabbot/internal/scheduling"
	"github.com/example/vocabbot/internal/vocab"
	"github.com/example/vocabbot/pkg/models"
)

var sessNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return sessNow }

// memStore is an in-memory ProgressStore with the same versioned save
// semantics as the database repository.
type memStore struct {
	mu            sync.Mutex
	records       map[string]models.ProgressRecord
	staleNextSave int // number of upcoming saves to reject as stale
	saves         int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]models.ProgressRecord)}
}

func key(learnerID int64, itemID string) string {
	return fmt.Sprintf("%d|%s", learnerID, itemID)
}

func (s *memStore) seed(rec models.ProgressRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Version == 0 {
		rec.Version = 1
	}
	s.records[key(rec.LearnerID, rec.ItemID)] = rec
}

func (s *memStore) GetOrCreate(fresh models.ProgressRecord) (*models.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key(fresh.LearnerID, fresh.ItemID)]; ok {
		out := rec
		return &out, nil
	}
	fresh.Version = 1
	s.records[key(fresh.LearnerID, fresh.ItemID)] = fresh
	out := fresh
	return &out, nil
}

func (s *memStore) Get(learnerID int64, itemID string) (*models.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key(learnerID, itemID)]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := rec
	return &out, nil
}

func (s *memStore) Save(rec *models.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.staleNextSave > 0 {
		s.staleNextSave--
		return database.ErrStaleWrite
	}
	stored, ok := s.records[key(rec.LearnerID, rec.ItemID)]
	if !ok || stored.Version != rec.Version {
		return database.ErrStaleWrite
	}
	rec.Version++
	s.records[key(rec.LearnerID, rec.ItemID)] = *rec
	return nil
}

func (s *memStore) DueItems(learnerID int64, asOf time.Time) ([]models.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []models.ProgressRecord
	for _, rec := range s.records {
		if rec.LearnerID == learnerID && rec.Due(asOf) {
			due = append(due, rec)
		}
	}
	return due, nil
}

func firstSynonym(translation string) string {
	return strings.Split(translation, ",")[0]
}

func testCatalog(t *testing.T) *vocab.Store {
	t.Helper()
	store := vocab.NewStore()
	store.Add(&models.VocabSet{
		ID: "sp",
		Items: []models.VocabItem{
			{ID: "sp#0000", VocabSetID: "sp", ForeignWord: "hola", Translation: "hello,hi"},
			{ID: "sp#0001", VocabSetID: "sp", ForeignWord: "gato", Translation: "cat"},
			{ID: "sp#0002", VocabSetID: "sp", ForeignWord: "perro", Translation: "dog"},
		},
	})
	return store
}

func testEngine(t *testing.T, catalog scheduling.Catalog) *scheduling.Engine {
	t.Helper()
	e, err := scheduling.NewEngine(scheduling.Config{}, catalog)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestSessionFullRun(t *testing.T) {
	catalog := testCatalog(t)
	store := newMemStore()
	ctrl := NewController(7, "sp", testEngine(t, catalog), store, catalog, fixedNow)

	if got := ctrl.State(); got != Idle {
		t.Fatalf("State = %v, want Idle", got)
	}

	prompt, err := ctrl.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if prompt == nil {
		t.Fatal("Start returned no prompt for a fresh learner")
	}
	if prompt.RemainingCount != 3 {
		t.Errorf("RemainingCount = %d, want 3", prompt.RemainingCount)
	}
	if got := ctrl.State(); got != AwaitingAnswer {
		t.Fatalf("State = %v, want AwaitingAnswer", got)
	}

	// Finite due set: the session must finish within three answers.
	answers := map[string]string{"hola": "hello", "gato": "wrong", "perro": "dog"}
	var summary *models.SessionSummary
	for i := 0; i < 3; i++ {
		next, done, err := ctrl.Answer(answers[prompt.Item.ForeignWord])
		if err != nil {
			t.Fatalf("Answer #%d: %v", i+1, err)
		}
		if done != nil {
			summary = done
			break
		}
		prompt = next
	}
	if summary == nil {
		t.Fatal("session did not complete within 3 answers")
	}
	if summary.TotalReviewed != 3 || summary.TotalCorrect != 2 {
		t.Errorf("summary = %+v, want 3 reviewed, 2 correct", summary)
	}
	if summary.Cancelled {
		t.Error("summary should not be marked cancelled")
	}
	if got := ctrl.State(); got != Completed {
		t.Errorf("State = %v, want Completed", got)
	}

	// Each answer persisted exactly once.
	if store.saves != 3 {
		t.Errorf("saves = %d, want 3", store.saves)
	}

	// The missed word was reset, the others advanced.
	missed, _ := store.Get(7, "sp#0001")
	if missed.Repetitions != 0 || missed.LastResult != models.ResultIncorrect {
		t.Errorf("missed record = %+v, want reset incorrect", missed)
	}
	hit, _ := store.Get(7, "sp#0000")
	if hit.Repetitions != 1 || hit.LastResult != models.ResultCorrect {
		t.Errorf("hit record = %+v, want 1 repetition correct", hit)
	}
}

func TestSessionSelectionOrder(t *testing.T) {
	catalog := testCatalog(t)
	store := newMemStore()
	overdue := sessNow.Add(-time.Hour)

	// sp#0002 failed recently, sp#0001 never seen, sp#0000 due success.
	// Tier order must win over item id order.
	store.seed(models.ProgressRecord{LearnerID: 7, ItemID: "sp#0002", EaseFactor: 2.5, DueAt: overdue, LastResult: models.ResultIncorrect})
	store.seed(models.ProgressRecord{LearnerID: 7, ItemID: "sp#0001", EaseFactor: 2.5, DueAt: sessNow, LastResult: models.ResultNew})
	store.seed(models.ProgressRecord{LearnerID: 7, ItemID: "sp#0000", EaseFactor: 2.5, DueAt: overdue, LastResult: models.ResultCorrect, Repetitions: 2})

	ctrl := NewController(7, "sp", testEngine(t, catalog), store, catalog, fixedNow)
	prompt, err := ctrl.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var order []string
	for prompt != nil {
		order = append(order, prompt.Item.ID)
		next, _, err := ctrl.Answer("whatever")
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		prompt = next
	}
	want := []string{"sp#0002", "sp#0001", "sp#0000"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSessionNothingDue(t *testing.T) {
	catalog := testCatalog(t)
	store := newMemStore()
	// Everything scheduled for the future.
	for _, id := range []string{"sp#0000", "sp#0001", "sp#0002"} {
		store.seed(models.ProgressRecord{
			LearnerID: 7, ItemID: id, EaseFactor: 2.5,
			DueAt: sessNow.Add(time.Hour), LastResult: models.ResultCorrect,
		})
	}

	ctrl := NewController(7, "sp", testEngine(t, catalog), store, catalog, fixedNow)
	prompt, err := ctrl.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if prompt != nil {
		t.Errorf("prompt = %+v, want nil when nothing is due", prompt)
	}
	if got := ctrl.State(); got != Completed {
		t.Errorf("State = %v, want Completed", got)
	}
}

func TestSessionCancel(t *testing.T) {
	catalog := testCatalog(t)
	store := newMemStore()
	ctrl := NewController(7, "sp", testEngine(t, catalog), store, catalog, fixedNow)

	prompt, err := ctrl.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := ctrl.Answer(firstSynonym(prompt.Item.Translation)); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	summary := ctrl.Cancel()
	if !summary.Cancelled {
		t.Error("summary.Cancelled = false, want true")
	}
	if summary.TotalReviewed != 1 || summary.TotalCorrect != 1 {
		t.Errorf("summary = %+v, want 1 reviewed, 1 correct", summary)
	}
	// The answered item's progress survived cancellation.
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
	// Answers after cancel are rejected.
	if _, _, err := ctrl.Answer("hello"); !errors.Is(err, ErrNotAwaitingAnswer) {
		t.Errorf("Answer after cancel error = %v, want ErrNotAwaitingAnswer", err)
	}
	// Cancel is idempotent.
	if again := ctrl.Cancel(); again.TotalReviewed != 1 {
		t.Errorf("second Cancel summary = %+v", again)
	}
}

func TestSessionStaleWriteRetry(t *testing.T) {
	catalog := testCatalog(t)
	store := newMemStore()
	ctrl := NewController(7, "sp", testEngine(t, catalog), store, catalog, fixedNow)

	prompt, err := ctrl.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// First save loses the version race; the controller must re-fetch
	// and retry once.
	store.staleNextSave = 1
	next, _, err := ctrl.Answer(firstSynonym(prompt.Item.Translation))
	if err != nil {
		t.Fatalf("Answer with stale first save: %v", err)
	}
	if next == nil {
		t.Fatal("expected a next prompt")
	}
	if store.saves != 2 {
		t.Errorf("saves = %d, want 2 (stale + retry)", store.saves)
	}
}

func TestSessionStartTwice(t *testing.T) {
	catalog := testCatalog(t)
	ctrl := NewController(7, "sp", testEngine(t, catalog), newMemStore(), catalog, fixedNow)
	if _, err := ctrl.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := ctrl.Start(0); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start error = %v, want ErrAlreadyStarted", err)
	}
}

func TestSessionSizeCap(t *testing.T) {
	catalog := testCatalog(t)
	ctrl := NewController(7, "sp", testEngine(t, catalog), newMemStore(), catalog, fixedNow)
	prompt, err := ctrl.Start(2)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if prompt.RemainingCount != 2 {
		t.Errorf("RemainingCount = %d, want capped at 2", prompt.RemainingCount)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		answer      string
		translation string
		want        bool
	}{
		{"hello", "hello", true},
		{"  Hello ", "hello", true},
		{"hi", "hello,hi", true},
		{"HI", "hello, hi", true},
		{"so long", "goodbye,so long", true},
		{"hullo", "hello", false},
		{"", "hello", false},
		{"hello there", "hello", false},
	}
	for _, tt := range tests {
		if got := Classify(tt.answer, tt.translation); got != tt.want {
			t.Errorf("Classify(%q, %q) = %v, want %v", tt.answer, tt.translation, got, tt.want)
		}
	}
}

func TestManager(t *testing.T) {
	catalog := testCatalog(t)
	store := newMemStore()
	mgr := NewManager(testEngine(t, catalog), store, catalog, 20, fixedNow)

	_, prompt, err := mgr.Start(7, "sp")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if prompt == nil {
		t.Fatal("expected a prompt")
	}

	// A second session for the same learner is rejected; another
	// learner proceeds independently.
	if _, _, err := mgr.Start(7, "sp"); !errors.Is(err, ErrSessionActive) {
		t.Errorf("concurrent Start error = %v, want ErrSessionActive", err)
	}
	if _, other, err := mgr.Start(8, "sp"); err != nil || other == nil {
		t.Errorf("Start for learner 8: prompt=%v err=%v", other, err)
	}

	// Run learner 7 to completion through the manager.
	for prompt != nil {
		next, summary, err := mgr.Answer(7, firstSynonym(prompt.Item.Translation))
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if summary != nil {
			if summary.TotalReviewed != 3 || summary.TotalCorrect != 3 {
				t.Errorf("summary = %+v, want 3/3", summary)
			}
			break
		}
		prompt = next
	}

	// Completed sessions are released; a new one may start.
	if _, ok := mgr.Get(7); ok {
		t.Error("completed session still registered")
	}

	// Cancel for learner 8.
	if summary, ok := mgr.Cancel(8); !ok || !summary.Cancelled {
		t.Errorf("Cancel(8) = %+v, %v", summary, ok)
	}
	if _, ok := mgr.Get(8); ok {
		t.Error("cancelled session still registered")
	}

	if _, _, err := mgr.Answer(9, "hello"); !errors.Is(err, ErrNotAwaitingAnswer) {
		t.Errorf("Answer without session error = %v, want ErrNotAwaitingAnswer", err)
	}
}
