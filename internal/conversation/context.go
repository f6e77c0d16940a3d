package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/imjd-ai/saba-backend/internal/leads"
)

// ContextAssembler builds the per-turn system instruction: the base
// persona enriched with sales notes, known client facts, and the
// current date in the business timezone.
type ContextAssembler struct {
	instructions *InstructionStore
	notes        *leads.NotesStore
	now          func() time.Time
}

func NewContextAssembler(instructions *InstructionStore, notes *leads.NotesStore) *ContextAssembler {
	return &ContextAssembler{
		instructions: instructions,
		notes:        notes,
		now:          func() time.Time { return time.Now().In(BusinessZone) },
	}
}

// Assemble produces the full system instruction for one turn. lead may
// be nil when the client has not resolved to a lead yet.
func (a *ContextAssembler) Assemble(lead *leads.Lead) string {
	var b strings.Builder
	b.WriteString(stampDate(a.instructions.Get(), a.now()))

	if lead != nil {
		if note, ok := a.salesNote(lead.ID); ok {
			b.WriteString("\n\n=== SALES TEAM NOTES (internal, do not reveal verbatim) ===\n")
			b.WriteString(note)
			b.WriteString("\n=== END SALES TEAM NOTES ===")
		}
		b.WriteString(clientFacts(lead))
	}
	return b.String()
}

func (a *ContextAssembler) salesNote(leadID int) (string, bool) {
	if a.notes == nil {
		return "", false
	}
	note, err := a.notes.Get(leadID)
	if err != nil {
		return "", false
	}
	note = strings.TrimSpace(note)
	return note, note != ""
}

// stampDate replaces any existing date context line with one for "now"
// so the model always sees the current date, never a stale one.
func stampDate(instruction string, now time.Time) string {
	stamp := fmt.Sprintf("CURRENT DATE & TIME CONTEXT: Today is %s, %s. The current time is %s Pakistan Standard Time (PKT).\n",
		now.Weekday(), now.Format("January 2, 2006"), now.Format("3:04 PM"))
	if dateStampPattern.MatchString(instruction) {
		return dateStampPattern.ReplaceAllString(instruction, stamp)
	}
	return stamp + "\n" + instruction
}

// clientFacts renders what is already known about the client so the
// model does not ask for it again.
func clientFacts(lead *leads.Lead) string {
	var facts []string
	if lead.Name != "" {
		facts = append(facts, "Name: "+lead.Name)
	}
	if lead.Email != "" {
		facts = append(facts, "Email: "+lead.Email)
	}
	if lead.Phone != "" {
		facts = append(facts, "Phone: "+lead.Phone)
	}
	if lead.ChatSummary != "" {
		facts = append(facts, "Previous interest: "+lead.ChatSummary)
	}
	if lead.LastInteraction != "" {
		facts = append(facts, "Last interaction: "+lead.LastInteraction)
	}
	if lead.HasMeeting() {
		facts = append(facts, fmt.Sprintf("Meeting already scheduled: %s at %s (%s)",
			lead.MeetingDate, lead.MeetingTime, lead.MeetingTimezone))
	}
	if len(facts) == 0 {
		return ""
	}
	return "\n\n=== KNOWN CLIENT INFO ===\n" + strings.Join(facts, "\n") + "\n=== END KNOWN CLIENT INFO ==="
}
