// Package transcript owns the durable plain-text conversation logs.
// A transcript is the canonical record of a dialogue: sessions are
// bounded and expire, transcripts do not. They are later mined for
// identity signals (email addresses, names) by the lead resolver.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/imjd-ai/saba-backend/internal/session"
	"github.com/imjd-ai/saba-backend/pkg/logging"
)

const filePrefix = "conversation_"

// timestampLayout is embedded in transcript filenames.
const timestampLayout = "2006-01-02_15-04-05"

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// Store writes and reads transcript files under a single directory.
type Store struct {
	dir    string
	logger *logging.Logger
}

// NewStore creates a transcript store rooted at dir, creating it if needed.
func NewStore(dir string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transcript: failed to create dir %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the directory transcripts are stored in.
func (s *Store) Dir() string {
	return s.dir
}

// Filename builds a new transcript filename for a session key.
func Filename(clientID string, now time.Time) string {
	return fmt.Sprintf("%s%s_%s.txt", filePrefix, NormalizeSessionKey(clientID), now.Format(timestampLayout))
}

// NormalizeSessionKey maps a channel session key to its filename-safe form.
func NormalizeSessionKey(clientID string) string {
	return strings.ReplaceAll(clientID, "@", "_")
}

// Save rewrites the named transcript with the full conversation history,
// one line per turn part, prefixed by role.
func (s *Store) Save(filename string, history []session.Turn) error {
	var b strings.Builder
	for _, turn := range history {
		for _, part := range turn.Parts {
			b.WriteString(turn.Role)
			b.WriteString(": ")
			b.WriteString(part)
			b.WriteString("\n")
		}
	}

	path := filepath.Join(s.dir, filepath.Base(filename))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("transcript: failed to write %s: %w", filename, err)
	}
	return nil
}

// Read returns the raw contents of a transcript.
func (s *Store) Read(filename string) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(filename))
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("transcript: failed to read %s: %w", filename, err)
	}
	return string(data), nil
}

// Exists reports whether the named transcript is on disk.
func (s *Store) Exists(filename string) bool {
	_, err := os.Stat(filepath.Join(s.dir, filepath.Base(filename)))
	return err == nil
}

// FindForSession returns the most recent transcript file whose name embeds
// the normalized session key, or "" when none exists.
func (s *Store) FindForSession(clientID string) string {
	matches := s.findAll(clientID)
	if len(matches) == 0 {
		return ""
	}
	// Filenames sort chronologically thanks to the timestamp suffix.
	sort.Strings(matches)
	return matches[len(matches)-1]
}

// FindForSessionToday restricts FindForSession to files created today,
// so a returning customer continues the same day's log instead of
// spawning a new file per message.
func (s *Store) FindForSessionToday(clientID string, now time.Time) string {
	today := now.Format("2006-01-02")
	var matches []string
	for _, name := range s.findAll(clientID) {
		if strings.Contains(name, today) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[len(matches)-1]
}

func (s *Store) findAll(clientID string) []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("failed to scan transcript dir", "dir", s.dir, "error", err)
		return nil
	}

	key := NormalizeSessionKey(clientID)
	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".txt") {
			continue
		}
		if strings.Contains(name, key) {
			matches = append(matches, name)
		}
	}
	return matches
}

// ExtractEmails returns every email address in content, lowercased, with
// the excluded address (the operator's own) filtered out.
func ExtractEmails(content, exclude string) []string {
	exclude = strings.ToLower(exclude)
	var out []string
	for _, m := range emailPattern.FindAllString(content, -1) {
		addr := strings.ToLower(m)
		if exclude != "" && addr == exclude {
			continue
		}
		out = append(out, addr)
	}
	return out
}

// CountUserMessages counts user-authored lines in a transcript.
func CountUserMessages(content string) int {
	n := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, session.RoleUser+":") {
			n++
		}
	}
	return n
}

// Excerpt summarizes a transcript for lead-context lookups: the last few
// user and model lines plus the total user message count.
type Excerpt struct {
	File               string   `json:"file"`
	LastUserMessages   []string `json:"last_user_messages"`
	LastModelResponses []string `json:"last_model_responses"`
	TotalUserMessages  int      `json:"total_user_messages"`
	FileTimestamp      string   `json:"file_timestamp"`
}

// ExcerptOf extracts the most recent exchanges from a transcript file.
func (s *Store) ExcerptOf(filename string, recent int) (Excerpt, error) {
	content, err := s.Read(filename)
	if err != nil {
		return Excerpt{}, err
	}

	var userLines, modelLines []string
	for _, line := range strings.Split(content, "\n") {
		if text, ok := strings.CutPrefix(line, session.RoleUser+":"); ok {
			userLines = append(userLines, strings.TrimSpace(text))
		} else if text, ok := strings.CutPrefix(line, session.RoleModel+":"); ok {
			modelLines = append(modelLines, strings.TrimSpace(text))
		}
	}

	return Excerpt{
		File:               filename,
		LastUserMessages:   lastN(userLines, recent),
		LastModelResponses: lastN(modelLines, recent),
		TotalUserMessages:  len(userLines),
		FileTimestamp:      fileTimestamp(filename),
	}, nil
}

func lastN(lines []string, n int) []string {
	if n <= 0 || len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

func fileTimestamp(filename string) string {
	base := strings.TrimSuffix(filename, ".txt")
	idx := strings.LastIndex(base, "_")
	if idx < 0 {
		return "unknown"
	}
	// The timestamp spans the final two underscore-separated fields
	// (date_time), so step back once more.
	prev := strings.LastIndex(base[:idx], "_")
	if prev < 0 {
		return base[idx+1:]
	}
	return base[prev+1:]
}
