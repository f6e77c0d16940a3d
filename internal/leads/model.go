package leads

import (
	"strings"
	"time"
)

// Lead is the durable customer record. IDs are integers assigned
// monotonically (max existing + 1) and never reused.
type Lead struct {
	ID              int      `json:"id"`
	Name            string   `json:"name"`
	Phone           string   `json:"phone"`
	Email           string   `json:"email"`
	ChatSummary     string   `json:"chat_summary"`
	MeetLink        string   `json:"meet_link"`
	MeetingDate     string   `json:"meeting_date"`
	MeetingTime     string   `json:"meeting_time"`
	MeetingTimezone string   `json:"meeting_timezone"`
	// ConversationFiles are back-references to transcript logs; the
	// transcript store owns the files themselves.
	ConversationFiles []string `json:"conversation_files"`
	LastInteraction   string   `json:"last_interaction"`
	TotalMessages     int      `json:"total_messages"`
}

// HasMeeting reports whether a booking has been recorded for this lead.
func (l *Lead) HasMeeting() bool {
	return l.MeetLink != ""
}

// HasTranscript reports whether filename is already linked to this lead.
func (l *Lead) HasTranscript(filename string) bool {
	for _, f := range l.ConversationFiles {
		if f == filename {
			return true
		}
	}
	return false
}

// Touch refreshes the last-interaction timestamp.
func (l *Lead) Touch(now time.Time) {
	l.LastInteraction = now.Format(time.RFC3339)
}

// Fields is a partial update: only non-nil members are merged into a lead.
type Fields struct {
	Name            *string
	Phone           *string
	Email           *string
	ChatSummary     *string
	MeetLink        *string
	MeetingDate     *string
	MeetingTime     *string
	MeetingTimezone *string
	TotalMessages   *int
}

// String returns a pointer for optional string fields.
func String(s string) *string { return &s }

// Int returns a pointer for optional int fields.
func Int(n int) *int { return &n }

func (l *Lead) merge(f Fields) {
	if f.Name != nil {
		l.Name = *f.Name
	}
	if f.Phone != nil {
		l.Phone = *f.Phone
	}
	if f.Email != nil {
		l.Email = *f.Email
	}
	if f.ChatSummary != nil {
		l.ChatSummary = *f.ChatSummary
	}
	if f.MeetLink != nil {
		l.MeetLink = *f.MeetLink
	}
	if f.MeetingDate != nil {
		l.MeetingDate = *f.MeetingDate
	}
	if f.MeetingTime != nil {
		l.MeetingTime = *f.MeetingTime
	}
	if f.MeetingTimezone != nil {
		l.MeetingTimezone = *f.MeetingTimezone
	}
	if f.TotalMessages != nil {
		l.TotalMessages = *f.TotalMessages
	}
}

// NormalizePhone strips everything but digits from a phone number.
// Matching uses this form; storage keeps the first-seen textual form.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// phonesMatch compares two normalized numbers, treating a match on the
// last 10 digits as equality to absorb inconsistent country-code prefixes.
func phonesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if len(b) >= 10 && strings.HasSuffix(a, b[len(b)-10:]) {
		return true
	}
	if len(a) >= 10 && strings.HasSuffix(b, a[len(a)-10:]) {
		return true
	}
	return false
}
