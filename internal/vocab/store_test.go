package vocab

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeVocabFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := writeVocabFile(t, dir, "spanish.csv",
		"hola,hello\n"+
			"adios,\"goodbye, bye, farewell, so long\",informal\n"+
			"__comment__,ignored\n"+
			"gato,cat\n")

	set, err := LoadCSV("spanish", path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(set.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(set.Items))
	}
	if got := set.Items[0].ID; got != "spanish#0000" {
		t.Errorf("Items[0].ID = %q, want spanish#0000", got)
	}
	if got := set.Items[0].ForeignWord; got != "hola" {
		t.Errorf("ForeignWord = %q, want hola", got)
	}
	// Synonyms trimmed to three.
	if got := set.Items[1].Translation; got != "goodbye,bye,farewell" {
		t.Errorf("Translation = %q, want goodbye,bye,farewell", got)
	}
	if got := set.Items[1].Annotation; got != "informal" {
		t.Errorf("Annotation = %q, want informal", got)
	}
	if set.Items[2].Annotation != "" {
		t.Errorf("Annotation = %q, want empty", set.Items[2].Annotation)
	}
}

func TestLoadCSVMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"one column", "hola\n"},
		{"four columns", "hola,hello,x,y\n"},
		{"empty foreign word", ",hello\n"},
		{"foreign word with whitespace", "hola mundo,hello\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeVocabFile(t, dir, "bad.csv", tt.content)
			_, err := LoadCSV("bad", path)
			if !errors.Is(err, ErrMalformedEntry) {
				t.Errorf("LoadCSV error = %v, want ErrMalformedEntry", err)
			}
		})
	}
}

func TestLoadCSVPrivateUserIDs(t *testing.T) {
	dir := t.TempDir()
	path := writeVocabFile(t, dir, "private.csv",
		"__private_user_ids__,\"10, 20\"\n"+
			"hola,hello\n")

	set, err := LoadCSV("private", path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if !set.VisibleTo(10) || !set.VisibleTo(20) {
		t.Error("set should be visible to listed learners")
	}
	if set.VisibleTo(30) {
		t.Error("set should not be visible to learner 30")
	}
}

func TestStoreLookups(t *testing.T) {
	dir := t.TempDir()
	writeVocabFile(t, dir, "spanish.csv", "hola,hello\ngato,cat\n")
	writeVocabFile(t, dir, "french.csv", "chat,cat\n")
	writeVocabFile(t, dir, "notes.txt", "not a vocab file")

	s := NewStore()
	if err := s.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	items, err := s.Get("spanish")
	if err != nil {
		t.Fatalf("Get(spanish): %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(items))
	}

	if _, err := s.Get("german"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(german) error = %v, want ErrNotFound", err)
	}

	item, err := s.Item("french#0000")
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if item.ForeignWord != "chat" {
		t.Errorf("ForeignWord = %q, want chat", item.ForeignWord)
	}
	if _, err := s.Item("french#0099"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Item error = %v, want ErrNotFound", err)
	}
	if !s.Has("spanish#0001") {
		t.Error("Has(spanish#0001) = false, want true")
	}

	got := s.SetIDs(1)
	want := []string{"french", "spanish"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("SetIDs = %v, want %v", got, want)
	}
}

func TestLoadDirEmpty(t *testing.T) {
	s := NewStore()
	if err := s.LoadDir(t.TempDir()); err == nil {
		t.Error("LoadDir on empty dir should fail")
	}
}
