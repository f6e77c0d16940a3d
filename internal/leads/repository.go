package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/imjd-ai/saba-backend/internal/transcript"
	"github.com/imjd-ai/saba-backend/pkg/logging"
)

// Repository defines the interface for lead storage and identity resolution.
type Repository interface {
	// Resolve matches partial contact signals to a lead. Returns
	// ErrNotFound when nothing matches; no side effects on that path.
	Resolve(ctx context.Context, phone, email, sessionKey string) (*Lead, error)

	// GetOrCreate resolves first; on a miss it allocates the next id,
	// persists, and reports created=true.
	GetOrCreate(ctx context.Context, phone, email, sessionKey, name string) (*Lead, bool, error)

	// Update merges the present fields into an existing lead and
	// refreshes its last-interaction timestamp.
	Update(ctx context.Context, id int, fields Fields) (*Lead, error)

	ByID(ctx context.Context, id int) (*Lead, error)
	All(ctx context.Context) ([]Lead, error)

	// LinkTranscript appends a transcript back-reference (deduplicated)
	// and adds userMessages to the lead's running total.
	LinkTranscript(ctx context.Context, id int, filename string, userMessages int) error
}

// FileRepository stores the whole lead collection in one JSON document,
// loaded into memory and rewritten wholesale on each mutation. A process
// mutex makes the single-writer discipline explicit; concurrent processes
// sharing the file still race (documented limitation).
type FileRepository struct {
	mu          sync.Mutex
	path        string
	leads       []Lead
	transcripts *transcript.Store
	operator    string
	logger      *logging.Logger
	now         func() time.Time
}

// NewFileRepository loads (or initializes) the lead collection at path.
// transcripts and operatorEmail feed the identity resolver's orphaned
// transcript recovery.
func NewFileRepository(path string, transcripts *transcript.Store, operatorEmail string, logger *logging.Logger) (*FileRepository, error) {
	if logger == nil {
		logger = logging.Default()
	}
	r := &FileRepository{
		path:        path,
		transcripts: transcripts,
		operator:    operatorEmail,
		logger:      logger,
		now:         time.Now,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("leads: failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &r.leads); err != nil {
		return nil, fmt.Errorf("leads: failed to decode %s: %w", path, err)
	}
	return r, nil
}

// save rewrites the whole collection. Callers hold the mutex. A write
// failure is returned but the in-memory mutation stands: the update is
// at risk of being lost on restart, not rolled back.
func (r *FileRepository) save() error {
	data, err := json.MarshalIndent(r.leads, "", "  ")
	if err != nil {
		return fmt.Errorf("leads: failed to encode collection: %w", err)
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("leads: failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("leads: failed to write %s: %w", r.path, err)
	}
	return nil
}

func (r *FileRepository) nextID() int {
	max := 0
	for i := range r.leads {
		if r.leads[i].ID > max {
			max = r.leads[i].ID
		}
	}
	return max + 1
}

func (r *FileRepository) byIDLocked(id int) *Lead {
	for i := range r.leads {
		if r.leads[i].ID == id {
			return &r.leads[i]
		}
	}
	return nil
}

func copyOf(l *Lead) *Lead {
	cp := *l
	cp.ConversationFiles = append([]string(nil), l.ConversationFiles...)
	return &cp
}

// GetOrCreate implements Repository.
func (r *FileRepository) GetOrCreate(ctx context.Context, phone, email, sessionKey, name string) (*Lead, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lead := r.resolveLocked(phone, email, sessionKey); lead != nil {
		return copyOf(lead), false, nil
	}
	if phone == "" && email == "" && sessionKey == "" {
		return nil, false, ErrMissingContact
	}

	lead := Lead{
		ID:                r.nextID(),
		Name:              name,
		Phone:             phone,
		Email:             email,
		ChatSummary:       "Conversation in progress",
		ConversationFiles: []string{},
	}
	lead.Touch(r.now())
	r.leads = append(r.leads, lead)

	if err := r.save(); err != nil {
		r.logger.Error("failed to persist new lead", "id", lead.ID, "error", err)
		return copyOf(&lead), true, err
	}
	r.logger.Info("lead created", "id", lead.ID, "phone", phone, "email", email)
	return copyOf(&lead), true, nil
}

// Update implements Repository.
func (r *FileRepository) Update(ctx context.Context, id int, fields Fields) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead := r.byIDLocked(id)
	if lead == nil {
		return nil, ErrNotFound
	}
	lead.merge(fields)
	lead.Touch(r.now())

	if err := r.save(); err != nil {
		r.logger.Error("failed to persist lead update", "id", id, "error", err)
		return copyOf(lead), err
	}
	return copyOf(lead), nil
}

// ByID implements Repository.
func (r *FileRepository) ByID(ctx context.Context, id int) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead := r.byIDLocked(id)
	if lead == nil {
		return nil, ErrNotFound
	}
	return copyOf(lead), nil
}

// All implements Repository.
func (r *FileRepository) All(ctx context.Context) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Lead, 0, len(r.leads))
	for i := range r.leads {
		out = append(out, *copyOf(&r.leads[i]))
	}
	return out, nil
}

// LinkTranscript implements Repository.
func (r *FileRepository) LinkTranscript(ctx context.Context, id int, filename string, userMessages int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead := r.byIDLocked(id)
	if lead == nil {
		return ErrNotFound
	}
	if !lead.HasTranscript(filename) {
		lead.ConversationFiles = append(lead.ConversationFiles, filename)
	}
	if userMessages > 0 {
		lead.TotalMessages += userMessages
	}
	lead.Touch(r.now())
	return r.save()
}
