package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imjd-ai/saba-backend/internal/leads"
	"github.com/imjd-ai/saba-backend/internal/session"
	"github.com/imjd-ai/saba-backend/internal/transcript"
	"github.com/imjd-ai/saba-backend/pkg/logging"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	transcripts, err := transcript.NewStore(t.TempDir(), logging.New("error"))
	require.NoError(t, err)
	return NewDetector(newFrozenExtractor(), NewInfoExtractor(testOperatorEmail), transcripts, testOperatorEmail)
}

func TestDetectNoMeetingTalk(t *testing.T) {
	d := newTestDetector(t)

	intent := d.Detect("c1", "how much does a website cost", "", nil, &session.Session{})

	assert.Equal(t, StateNone, intent.State)
}

func TestDetectMeetingWithoutEmail(t *testing.T) {
	d := newTestDetector(t)

	intent := d.Detect("c1", "can we schedule a meeting", "", nil, &session.Session{})

	assert.Equal(t, StateNone, intent.State, "no candidate email means nothing to book against")
}

func TestDetectMeetingWithEmailButNoName(t *testing.T) {
	d := newTestDetector(t)

	intent := d.Detect("c1", "can we schedule a meeting, my email is sana@x.com", "", nil, &session.Session{})

	assert.Equal(t, StateNeedsInfo, intent.State)
	assert.Equal(t, "sana@x.com", intent.Email)
	assert.Equal(t, []string{"name"}, intent.Missing)
	assert.Contains(t, intent.Message, "Please provide: name")
}

func TestDetectMeetingWithFullIdentity(t *testing.T) {
	d := newTestDetector(t)

	intent := d.Detect("c1", "My name is Ali, my email is ali@x.com, let's meet tomorrow at 5pm", "", nil, &session.Session{})

	assert.Equal(t, StateNeedsConfirmation, intent.State)
	assert.Equal(t, "Ali", intent.Name)
	assert.Equal(t, "ali@x.com", intent.Email)
	assert.Equal(t, "2026-08-29", intent.Window.Date)
	assert.Equal(t, "17:00", intent.Window.Time)
	assert.Contains(t, intent.Message, "Name: Ali")
	assert.Contains(t, intent.Message, "Email: ali@x.com")
	assert.Contains(t, intent.Message, "Is everything correct?")
}

func TestDetectMeetingProposedByAssistant(t *testing.T) {
	d := newTestDetector(t)
	sess := &session.Session{ClientName: "Ali"}

	intent := d.Detect("c1", "tomorrow at 5pm works for me, my email is ali@x.com",
		"Great! Shall I schedule a meeting for us?", nil, sess)

	assert.Equal(t, StateNeedsConfirmation, intent.State)
	assert.Equal(t, "ali@x.com", intent.Email)
	assert.Equal(t, "2026-08-29", intent.Window.Date)
}

func TestDetectBareConfirmationBooks(t *testing.T) {
	d := newTestDetector(t)
	lead := &leads.Lead{ID: 1, Name: "Ali", Email: "ali@x.com"}

	intent := d.Detect("c1", "yes, confirm", "", lead, &session.Session{})

	assert.Equal(t, StateConfirmed, intent.State)
	assert.Equal(t, "Ali", intent.Name)
	assert.Equal(t, "ali@x.com", intent.Email)
}

func TestDetectConfirmationWithMeetingWordsBooks(t *testing.T) {
	d := newTestDetector(t)
	lead := &leads.Lead{ID: 1, Name: "Ali", Email: "ali@x.com"}

	intent := d.Detect("c1", "yes, go ahead and schedule the meeting", "", lead, &session.Session{})

	assert.Equal(t, StateConfirmed, intent.State)
	assert.Equal(t, "ali@x.com", intent.Email)
}

func TestDetectNamePrecedence(t *testing.T) {
	d := newTestDetector(t)
	lead := &leads.Lead{ID: 1, Name: "Lead Name", Email: "ali@x.com"}
	sess := &session.Session{ClientName: "Session Name"}

	fromLead := d.Detect("c1", "book a meeting", "", lead, sess)
	assert.Equal(t, "Lead Name", fromLead.Name)

	fromSession := d.Detect("c1", "book a meeting, email ali@x.com", "", nil, sess)
	assert.Equal(t, "Session Name", fromSession.Name)
}

func TestDetectEmailFromTranscript(t *testing.T) {
	transcripts, err := transcript.NewStore(t.TempDir(), logging.New("error"))
	require.NoError(t, err)
	history := []session.Turn{
		{Role: session.RoleUser, Parts: []string{"my email is client@example.com"}},
		{Role: session.RoleModel, Parts: []string{"Thanks! Noted."}},
	}
	require.NoError(t, transcripts.Save(transcript.Filename("c1", time.Now()), history))
	d := NewDetector(newFrozenExtractor(), NewInfoExtractor(testOperatorEmail), transcripts, testOperatorEmail)

	intent := d.Detect("c1", "let's schedule a meeting", "", nil, &session.Session{ClientName: "Ali"})

	assert.Equal(t, StateNeedsConfirmation, intent.State)
	assert.Equal(t, "client@example.com", intent.Email)
}
