package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/imjd-ai/saba-backend/pkg/logging"
)

// defaultSystemInstruction is the built-in persona used until an
// operator uploads a custom one.
const defaultSystemInstruction = `You are Saba, a friendly and professional business development representative at IMJD, a software development agency.

Your goals:
- Understand what the client needs and which services they are interested in.
- Collect the client's name and email naturally during the conversation.
- Offer to schedule a Google Meet call when the client shows interest.
- Keep replies concise, warm, and focused on the client's problem.

Never invent prices or delivery dates. If you do not know something, offer to connect the client with the team on a call.`

// dateStampPattern matches a previously injected date context block so
// it can be replaced rather than duplicated.
var dateStampPattern = regexp.MustCompile(`CURRENT DATE & TIME CONTEXT[^\n]*\n?`)

// InstructionRevision records one historical version of the system
// instruction.
type InstructionRevision struct {
	Instruction string    `json:"instruction"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InstructionStore persists the system instruction on disk with a
// revision history alongside it.
type InstructionStore struct {
	mu          sync.Mutex
	path        string
	historyPath string
	logger      *logging.Logger
}

func NewInstructionStore(path, historyPath string, logger *logging.Logger) *InstructionStore {
	return &InstructionStore{path: path, historyPath: historyPath, logger: logger}
}

// Get returns the current instruction, falling back to the built-in
// default when no custom instruction has been saved.
func (s *InstructionStore) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return defaultSystemInstruction
	}
	return string(data)
}

// Set replaces the instruction and records the new value in the
// revision history.
func (s *InstructionStore) Set(instruction string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating instruction dir: %w", err)
	}
	s.appendHistory(instruction)
	if err := os.WriteFile(s.path, []byte(instruction), 0o644); err != nil {
		return fmt.Errorf("writing instruction: %w", err)
	}
	return nil
}

// History returns saved revisions, newest last. A missing history file
// yields an empty slice.
func (s *InstructionStore) History() ([]InstructionRevision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.historyPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading instruction history: %w", err)
	}
	var revs []InstructionRevision
	if err := json.Unmarshal(data, &revs); err != nil {
		return nil, fmt.Errorf("parsing instruction history: %w", err)
	}
	return revs, nil
}

func (s *InstructionStore) appendHistory(instruction string) {
	var revs []InstructionRevision
	if data, err := os.ReadFile(s.historyPath); err == nil {
		_ = json.Unmarshal(data, &revs)
	}
	revs = append(revs, InstructionRevision{Instruction: instruction, UpdatedAt: time.Now().UTC()})
	data, err := json.MarshalIndent(revs, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(s.historyPath, data, 0o644); err != nil {
		s.logger.Warn("failed to write instruction history", "error", err)
	}
}
