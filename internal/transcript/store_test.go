package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imjd-ai/saba-backend/internal/session"
	"github.com/imjd-ai/saba-backend/pkg/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), logging.New("error"))
	require.NoError(t, err)
	return store
}

func sampleHistory() []session.Turn {
	return []session.Turn{
		{Role: session.RoleUser, Parts: []string{"hello, my email is ali@x.com"}},
		{Role: session.RoleModel, Parts: []string{"Hi! How can I help?"}},
		{Role: session.RoleUser, Parts: []string{"tell me about pricing"}},
	}
}

func TestFilenameEmbedsNormalizedKey(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC)
	name := Filename("923001234567@c.us", now)
	assert.Equal(t, "conversation_923001234567_c.us_2026-08-28_14-30-00.txt", name)
}

func TestSaveAndRead(t *testing.T) {
	store := newTestStore(t)
	name := Filename("client-1", time.Now())

	require.NoError(t, store.Save(name, sampleHistory()))

	content, err := store.Read(name)
	require.NoError(t, err)
	assert.Contains(t, content, "user: hello, my email is ali@x.com")
	assert.Contains(t, content, "model: Hi! How can I help?")
	assert.Equal(t, 2, CountUserMessages(content))
}

func TestSaveRewritesWholeFile(t *testing.T) {
	store := newTestStore(t)
	name := Filename("client-1", time.Now())

	require.NoError(t, store.Save(name, sampleHistory()[:1]))
	require.NoError(t, store.Save(name, sampleHistory()))

	content, err := store.Read(name)
	require.NoError(t, err)
	assert.Equal(t, 2, CountUserMessages(content))
}

func TestFindForSessionReturnsMostRecent(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	older := Filename("client-1", base)
	newer := Filename("client-1", base.Add(2*time.Hour))
	require.NoError(t, store.Save(older, nil))
	require.NoError(t, store.Save(newer, nil))
	require.NoError(t, store.Save(Filename("client-2", base), nil))

	assert.Equal(t, newer, store.FindForSession("client-1"))
	assert.Equal(t, "", store.FindForSession("client-3"))
}

func TestFindForSessionNormalizesKey(t *testing.T) {
	store := newTestStore(t)
	name := Filename("923001234567@c.us", time.Now())
	require.NoError(t, store.Save(name, nil))

	assert.Equal(t, name, store.FindForSession("923001234567@c.us"))
}

func TestFindForSessionToday(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC)

	yesterday := Filename("client-1", now.AddDate(0, 0, -1))
	today := Filename("client-1", now.Add(-time.Hour))
	require.NoError(t, store.Save(yesterday, nil))
	require.NoError(t, store.Save(today, nil))

	assert.Equal(t, today, store.FindForSessionToday("client-1", now))
	assert.Equal(t, "", store.FindForSessionToday("client-2", now))
}

func TestExtractEmails(t *testing.T) {
	content := "user: reach me at Ali@X.com or backup@y.org\nmodel: noted, ops@imjd.ai will join"

	emails := ExtractEmails(content, "ops@imjd.ai")

	assert.Equal(t, []string{"ali@x.com", "backup@y.org"}, emails)
}

func TestExtractEmailsExclusionIsCaseInsensitive(t *testing.T) {
	emails := ExtractEmails("contact OPS@IMJD.AI please", "ops@imjd.ai")
	assert.Empty(t, emails)
}

func TestExcerptOf(t *testing.T) {
	store := newTestStore(t)
	name := Filename("client-1", time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC))

	var history []session.Turn
	for i := 0; i < 5; i++ {
		history = append(history,
			session.Turn{Role: session.RoleUser, Parts: []string{"question"}},
			session.Turn{Role: session.RoleModel, Parts: []string{"answer"}},
		)
	}
	require.NoError(t, store.Save(name, history))

	excerpt, err := store.ExcerptOf(name, 3)
	require.NoError(t, err)
	assert.Len(t, excerpt.LastUserMessages, 3)
	assert.Len(t, excerpt.LastModelResponses, 3)
	assert.Equal(t, 5, excerpt.TotalUserMessages)
	assert.Equal(t, "2026-08-28_14-30-00", excerpt.FileTimestamp)
}
