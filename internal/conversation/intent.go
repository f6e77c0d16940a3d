package conversation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/imjd-ai/saba-backend/internal/leads"
	"github.com/imjd-ai/saba-backend/internal/session"
	"github.com/imjd-ai/saba-backend/internal/transcript"
)

// BookingState classifies where a conversation stands in the meeting
// confirmation flow. Each turn is classified independently; the state
// is derived from the message and accumulated lead data, not stored.
type BookingState string

const (
	StateNone              BookingState = "none"
	StateNeedsInfo         BookingState = "needs_info"
	StateNeedsConfirmation BookingState = "needs_confirmation"
	StateConfirmed         BookingState = "confirmed"
)

var meetingKeywords = []string{
	"meeting", "schedule", "google meet", "meet link", "appointment",
	"call", "discussion", "consultation", "demo", "presentation",
}

var confirmationKeywords = []string{
	"yes", "confirm", "proceed", "go ahead", "schedule it", "book it",
	"correct", "right", "that's right", "exactly", "perfect",
}

// meetWordPattern catches the bare verb ("let's meet tomorrow")
// without firing on unrelated words that merely contain it.
var meetWordPattern = regexp.MustCompile(`\bmeet\b`)

func containsMeetingKeyword(lower string) bool {
	if meetWordPattern.MatchString(lower) {
		return true
	}
	for _, kw := range meetingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func containsConfirmation(lower string) bool {
	for _, kw := range confirmationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Intent is the outcome of classifying one user turn.
type Intent struct {
	State BookingState
	// Name and Email are the best-known client identity at this turn,
	// pulled from the message, the lead, the session, or a transcript.
	Name  string
	Email string
	// Missing lists the identity fields still needed when State is
	// needs_info.
	Missing []string
	// Window is populated when State is needs_confirmation or confirmed.
	Window Window
	// Message is the block appended to the model's reply when State is
	// needs_info or needs_confirmation.
	Message string
}

// Detector classifies user turns against the booking flow.
type Detector struct {
	times       *TimeExtractor
	info        *InfoExtractor
	transcripts *transcript.Store
	operator    string
}

func NewDetector(times *TimeExtractor, info *InfoExtractor, transcripts *transcript.Store, operatorEmail string) *Detector {
	return &Detector{times: times, info: info, transcripts: transcripts, operator: strings.ToLower(operatorEmail)}
}

// Detect classifies the user's message. lead may be nil for a client
// that has not resolved to a lead yet; sess carries the accumulated
// client name and history for the session.
func (d *Detector) Detect(clientID, userText, assistantText string, lead *leads.Lead, sess *session.Session) Intent {
	lowerUser := strings.ToLower(userText)
	confirms := containsConfirmation(lowerUser)

	// Meeting relevance comes from either side of the exchange, so a
	// meeting the model proposes still triggers the flow. A bare
	// confirmation counts too, since the proposal may sit several
	// turns back.
	relevant := containsMeetingKeyword(lowerUser) ||
		containsMeetingKeyword(strings.ToLower(assistantText)) ||
		confirms
	if !relevant {
		return Intent{State: StateNone}
	}

	// Without a candidate email there is nothing to book against; the
	// turn stays a plain conversation rather than an info request.
	email := d.resolveEmail(clientID, userText, lead)
	if email == "" {
		return Intent{State: StateNone}
	}

	name := d.resolveName(userText, lead, sess)
	if name == "" {
		return Intent{
			State:   StateNeedsInfo,
			Email:   email,
			Missing: []string{"name"},
			Message: "I need to collect some information before scheduling your meeting. Please provide: name",
		}
	}

	win := d.times.Extract(userText, assistantText)

	if confirms {
		return Intent{State: StateConfirmed, Name: name, Email: email, Window: win}
	}
	return Intent{
		State:   StateNeedsConfirmation,
		Name:    name,
		Email:   email,
		Window:  win,
		Message: confirmationPrompt(name, email, win),
	}
}

func confirmationPrompt(name, email string, win Window) string {
	return fmt.Sprintf(
		"Before I schedule your meeting, let me confirm your details:\n\n"+
			"Name: %s\nEmail: %s\nMeeting: %s at %s (%s)\n\n"+
			"Is everything correct? Reply 'yes' to confirm and I'll send you the Google Meet link.",
		name, email, win.Date, win.Time, BusinessTimezoneName)
}

func (d *Detector) resolveName(userText string, lead *leads.Lead, sess *session.Session) string {
	if lead != nil && lead.Name != "" {
		return lead.Name
	}
	if sess != nil && sess.ClientName != "" {
		return sess.ClientName
	}
	return d.info.extractName(userText)
}

// resolveEmail tries the lead record, then the message itself, then
// the most recent transcript for this session.
func (d *Detector) resolveEmail(clientID, userText string, lead *leads.Lead) string {
	if lead != nil && lead.Email != "" {
		return strings.ToLower(lead.Email)
	}
	if addr := d.info.extractEmail(userText); addr != "" {
		return addr
	}
	if d.transcripts == nil {
		return ""
	}
	file := d.transcripts.FindForSession(clientID)
	if file == "" {
		return ""
	}
	content, err := d.transcripts.Read(file)
	if err != nil {
		return ""
	}
	if emails := transcript.ExtractEmails(content, d.operator); len(emails) > 0 {
		return emails[0]
	}
	return ""
}
