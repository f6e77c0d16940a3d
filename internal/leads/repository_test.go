package leads

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imjd-ai/saba-backend/internal/session"
	"github.com/imjd-ai/saba-backend/internal/transcript"
	"github.com/imjd-ai/saba-backend/pkg/logging"
)

const operatorEmail = "ops@imjd.ai"

func newTestRepo(t *testing.T) (*FileRepository, *transcript.Store) {
	t.Helper()
	dir := t.TempDir()
	transcripts, err := transcript.NewStore(dir, logging.New("error"))
	require.NoError(t, err)
	repo, err := NewFileRepository(filepath.Join(dir, "leads_minimal.json"), transcripts, operatorEmail, logging.New("error"))
	require.NoError(t, err)
	return repo, transcripts
}

func TestGetOrCreateAssignsMonotonicIDs(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	first, created, err := repo.GetOrCreate(ctx, "+92 300 1234567", "", "", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "Conversation in progress", first.ChatSummary)

	second, created, err := repo.GetOrCreate(ctx, "", "other@x.com", "", "Sana")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, second.ID)
	assert.Equal(t, "Sana", second.Name)
}

func TestGetOrCreateIsIdempotentForSameSignals(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	first, created, err := repo.GetOrCreate(ctx, "+92 300 1234567", "", "", "")
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := repo.GetOrCreate(ctx, "+92 300 1234567", "", "", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
}

func TestGetOrCreateRequiresASignal(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, _, err := repo.GetOrCreate(context.Background(), "", "", "", "Ali")
	assert.ErrorIs(t, err, ErrMissingContact)
}

func TestGetOrCreateConcurrentSameSignal(t *testing.T) {
	// Regression for the single-writer contract: the repository mutex
	// must prevent two concurrent creates for the same brand-new phone.
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	type result struct {
		id      int
		created bool
		err     error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			lead, created, err := repo.GetOrCreate(ctx, "+92 300 9998877", "", "", "")
			if err != nil {
				results <- result{err: err}
				return
			}
			results <- result{id: lead.ID, created: created}
		}()
	}

	a, b := <-results, <-results
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Equal(t, a.id, b.id)
	assert.NotEqual(t, a.created, b.created, "exactly one call should create")
}

func TestUpdateMergesOnlyPresentFields(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	lead, _, err := repo.GetOrCreate(ctx, "+92 300 1234567", "", "", "Ali")
	require.NoError(t, err)

	updated, err := repo.Update(ctx, lead.ID, Fields{
		Email:       String("ali@x.com"),
		ChatSummary: String("Asked about pricing"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ali", updated.Name, "absent fields must be untouched")
	assert.Equal(t, "ali@x.com", updated.Email)
	assert.Equal(t, "Asked about pricing", updated.ChatSummary)
	assert.NotEmpty(t, updated.LastInteraction)
}

func TestUpdateUnknownLead(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Update(context.Background(), 99, Fields{Name: String("Ghost")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRefreshesLastInteraction(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	lead, _, err := repo.GetOrCreate(ctx, "+92 300 1234567", "", "", "")
	require.NoError(t, err)

	frozen := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return frozen }

	updated, err := repo.Update(ctx, lead.ID, Fields{})
	require.NoError(t, err)
	assert.Equal(t, frozen.Format(time.RFC3339), updated.LastInteraction)
}

func TestPersistenceSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leads_minimal.json")
	transcripts, err := transcript.NewStore(dir, logging.New("error"))
	require.NoError(t, err)

	repo, err := NewFileRepository(path, transcripts, operatorEmail, logging.New("error"))
	require.NoError(t, err)
	lead, _, err := repo.GetOrCreate(context.Background(), "+92 300 1234567", "ali@x.com", "", "Ali")
	require.NoError(t, err)

	reloaded, err := NewFileRepository(path, transcripts, operatorEmail, logging.New("error"))
	require.NoError(t, err)
	got, err := reloaded.ByID(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ali", got.Name)
	assert.Equal(t, "ali@x.com", got.Email)
}

func TestPersistedDocumentShape(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leads_minimal.json")
	transcripts, err := transcript.NewStore(dir, logging.New("error"))
	require.NoError(t, err)
	repo, err := NewFileRepository(path, transcripts, operatorEmail, logging.New("error"))
	require.NoError(t, err)

	_, _, err = repo.GetOrCreate(context.Background(), "+92 300 1234567", "", "", "")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc []map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc, 1)
	assert.Contains(t, doc[0], "chat_summary")
	assert.Contains(t, doc[0], "conversation_files")
	assert.Contains(t, doc[0], "last_interaction")
}

func TestLinkTranscriptDeduplicatesAndCounts(t *testing.T) {
	repo, transcripts := newTestRepo(t)
	ctx := context.Background()

	lead, _, err := repo.GetOrCreate(ctx, "+92 300 1234567", "", "", "")
	require.NoError(t, err)

	name := transcript.Filename("client-1", time.Now())
	require.NoError(t, transcripts.Save(name, []session.Turn{
		{Role: session.RoleUser, Parts: []string{"hello"}},
		{Role: session.RoleModel, Parts: []string{"hi"}},
		{Role: session.RoleUser, Parts: []string{"bye"}},
	}))

	require.NoError(t, repo.LinkTranscript(ctx, lead.ID, name, 2))
	require.NoError(t, repo.LinkTranscript(ctx, lead.ID, name, 0))

	got, err := repo.ByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{name}, got.ConversationFiles)
	assert.Equal(t, 2, got.TotalMessages)
}
