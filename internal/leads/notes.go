package leads

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
)

// NotesStore holds free-text operator notes per lead, keyed by lead id,
// in a single JSON document. Notes are operator-asserted context, kept
// separate from customer-asserted lead fields so the context assembler
// can label their provenance.
type NotesStore struct {
	mu   sync.Mutex
	path string
}

// NewNotesStore creates a notes store backed by the JSON file at path.
func NewNotesStore(path string) *NotesStore {
	return &NotesStore{path: path}
}

func (s *NotesStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("leads: failed to read notes %s: %w", s.path, err)
	}
	notes := map[string]string{}
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("leads: failed to decode notes %s: %w", s.path, err)
	}
	return notes, nil
}

// Get returns the notes for a lead, or "" when none exist.
func (s *NotesStore) Get(leadID int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := s.load()
	if err != nil {
		return "", err
	}
	return notes[strconv.Itoa(leadID)], nil
}

// Set replaces the notes for a lead.
func (s *NotesStore) Set(leadID int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := s.load()
	if err != nil {
		return err
	}
	notes[strconv.Itoa(leadID)] = text

	data, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return fmt.Errorf("leads: failed to encode notes: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("leads: failed to write notes %s: %w", s.path, err)
	}
	return nil
}
