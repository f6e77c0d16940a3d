// Package session holds the ephemeral per-conversation state in Redis.
// Sessions expire after an inactivity TTL; the durable record of a
// conversation is the transcript file, not the session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTTL is the inactivity window after which a session expires.
const DefaultTTL = 24 * time.Hour

// DefaultMaxTurnPairs bounds how many user/model turn pairs are kept in a session.
const DefaultMaxTurnPairs = 10

// Roles used in conversation history. "model" is the assistant role on the
// Gemini wire format and in transcript files.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is a single entry in a conversation history.
type Turn struct {
	Role  string   `json:"role"`
	Parts []string `json:"parts"`
}

// Text returns the concatenated text of all parts.
func (t Turn) Text() string {
	switch len(t.Parts) {
	case 0:
		return ""
	case 1:
		return t.Parts[0]
	}
	out := t.Parts[0]
	for _, p := range t.Parts[1:] {
		out += "\n" + p
	}
	return out
}

// Session is the working state for one active conversation.
type Session struct {
	ConversationHistory []Turn `json:"conversation_history"`
	ClientName          string `json:"client_name,omitempty"`
}

// Append adds a turn to the history.
func (s *Session) Append(role, text string) {
	s.ConversationHistory = append(s.ConversationHistory, Turn{Role: role, Parts: []string{text}})
}

// Truncate keeps only the most recent 2*maxPairs turns.
func (s *Session) Truncate(maxPairs int) {
	if maxPairs <= 0 {
		maxPairs = DefaultMaxTurnPairs
	}
	limit := maxPairs * 2
	if len(s.ConversationHistory) > limit {
		s.ConversationHistory = s.ConversationHistory[len(s.ConversationHistory)-limit:]
	}
}

// ErrNotFound is returned when no session exists for a key.
var ErrNotFound = errors.New("session: not found")

// Store reads and writes sessions in Redis. Writes are not mutually
// exclusive: two concurrent requests for the same key race and the last
// writer wins. Accepted for the expected per-customer concurrency.
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewStore creates a session store. A zero ttl means DefaultTTL.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if rdb == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis:  rdb,
		ttl:    ttl,
		tracer: otel.Tracer("saba.internal.session"),
	}
}

func sessionKey(clientID string) string {
	return fmt.Sprintf("chat_session:%s", clientID)
}

func scratchKey(clientID string) string {
	return fmt.Sprintf("client_info:%s", clientID)
}

// Get loads the session for clientID. Returns ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, clientID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(clientID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load %s: %w", clientID, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode %s: %w", clientID, err)
	}
	return &sess, nil
}

// Put stores the session and resets its TTL.
func (s *Store) Put(ctx context.Context, clientID string, sess *Session) error {
	ctx, span := s.tracer.Start(ctx, "session.put")
	defer span.End()

	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal %s: %w", clientID, err)
	}
	if err := s.redis.Set(ctx, sessionKey(clientID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist %s: %w", clientID, err)
	}
	return nil
}

// Delete removes the session and any cached per-customer scratch data.
// Leads and transcripts are untouched.
func (s *Store) Delete(ctx context.Context, clientID string) error {
	ctx, span := s.tracer.Start(ctx, "session.delete")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(clientID), scratchKey(clientID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to delete %s: %w", clientID, err)
	}
	return nil
}
