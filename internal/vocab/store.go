package vocab

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/example/vocabbot/pkg/models"
)

// Sentinel errors for vocab lookups and loading.
// Use errors.Is to check: errors.Is(err, vocab.ErrNotFound)
var (
	// ErrMalformedEntry means a source row violates the column contract.
	ErrMalformedEntry = errors.New("vocab: malformed entry")
	// ErrNotFound means the requested set or item does not exist.
	ErrNotFound = errors.New("vocab: not found")
)

// Control rows recognized in source files. Any other row whose first
// column starts with "__" is skipped.
const privateUserIDsRow = "__private_user_ids__"

// maxSynonyms caps how many comma-separated translations are kept.
const maxSynonyms = 3

// Store is the read-only catalog of vocab sets. Safe for concurrent
// use after LoadDir returns.
type Store struct {
	sets  map[string]*models.VocabSet
	items map[string]models.VocabItem // item id -> item, across all sets
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		sets:  make(map[string]*models.VocabSet),
		items: make(map[string]models.VocabItem),
	}
}

// LoadDir loads every .csv and .xlsx file in dir as a vocab set named
// after the file. A malformed file aborts loading that file only; the
// error reports which one.
func (s *Store) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read vocab directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}
		setID := strings.TrimSuffix(name, filepath.Ext(name))
		path := filepath.Join(dir, name)

		var set *models.VocabSet
		if ext == ".csv" {
			set, err = LoadCSV(setID, path)
		} else {
			set, err = LoadExcel(setID, path)
		}
		if err != nil {
			return fmt.Errorf("vocab set %q: %w", setID, err)
		}
		s.add(set)
	}
	if len(s.sets) == 0 {
		return fmt.Errorf("no vocab sets found in %s", dir)
	}
	return nil
}

// Add registers a loaded set. Exposed for tests and programmatic setup.
func (s *Store) Add(set *models.VocabSet) {
	s.add(set)
}

func (s *Store) add(set *models.VocabSet) {
	s.sets[set.ID] = set
	for _, item := range set.Items {
		s.items[item.ID] = item
	}
}

// Get returns the ordered items of a set.
func (s *Store) Get(setID string) ([]models.VocabItem, error) {
	set, ok := s.sets[setID]
	if !ok {
		return nil, fmt.Errorf("%w: vocab set %q", ErrNotFound, setID)
	}
	return set.Items, nil
}

// Item returns a single item by its id.
func (s *Store) Item(itemID string) (models.VocabItem, error) {
	item, ok := s.items[itemID]
	if !ok {
		return models.VocabItem{}, fmt.Errorf("%w: item %q", ErrNotFound, itemID)
	}
	return item, nil
}

// Has reports whether an item id exists in the catalog.
func (s *Store) Has(itemID string) bool {
	_, ok := s.items[itemID]
	return ok
}

// SetIDs returns the ids of all sets visible to the given learner, sorted.
func (s *Store) SetIDs(learnerID int64) []string {
	ids := make([]string, 0, len(s.sets))
	for id, set := range s.sets {
		if set.VisibleTo(learnerID) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// LoadCSV reads one vocab set from a CSV file. Each row carries the
// foreign word, the translation, and an optional annotation.
func LoadCSV(setID, path string) (*models.VocabSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocab file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // column count is validated per row
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse vocab file: %w", err)
	}
	return buildSet(setID, rows)
}

// buildSet validates raw rows and assembles a set. Shared by the CSV
// and Excel loaders so both enforce the same contract.
func buildSet(setID string, rows [][]string) (*models.VocabSet, error) {
	set := &models.VocabSet{ID: setID}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		first := row[0]
		if first == privateUserIDsRow {
			ids, err := parsePrivateUserIDs(row)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedEntry, i+1, err)
			}
			set.PrivateUserIDs = ids
			continue
		}
		if strings.HasPrefix(first, "__") {
			continue
		}
		item, err := parseItem(setID, len(set.Items), row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		set.Items = append(set.Items, item)
	}
	return set, nil
}

func parseItem(setID string, ordinal int, row []string) (models.VocabItem, error) {
	if len(row) < 2 || len(row) > 3 {
		return models.VocabItem{}, fmt.Errorf("%w: expected 2 or 3 columns, got %d", ErrMalformedEntry, len(row))
	}
	foreign := row[0]
	if foreign == "" {
		return models.VocabItem{}, fmt.Errorf("%w: empty foreign word", ErrMalformedEntry)
	}
	if strings.ContainsAny(foreign, " \t") {
		return models.VocabItem{}, fmt.Errorf("%w: foreign word %q must be a single token", ErrMalformedEntry, foreign)
	}

	translation := strings.TrimSpace(row[1])
	if strings.Contains(translation, ",") {
		synonyms := strings.Split(translation, ",")
		for j := range synonyms {
			synonyms[j] = strings.TrimSpace(synonyms[j])
		}
		if len(synonyms) > maxSynonyms {
			synonyms = synonyms[:maxSynonyms]
		}
		translation = strings.Join(synonyms, ",")
	}

	item := models.VocabItem{
		ID:          fmt.Sprintf("%s#%04d", setID, ordinal),
		VocabSetID:  setID,
		ForeignWord: foreign,
		Translation: translation,
	}
	if len(row) == 3 {
		item.Annotation = row[2]
	}
	return item, nil
}

func parsePrivateUserIDs(row []string) (map[int64]bool, error) {
	if len(row) < 2 {
		return nil, fmt.Errorf("missing user id list")
	}
	ids := make(map[int64]bool)
	for _, part := range strings.Split(row[1], ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad user id %q", part)
		}
		ids[id] = true
	}
	return ids, nil
}
