package leads

import (
	"context"
	"strings"

	"github.com/imjd-ai/saba-backend/internal/transcript"
)

// Resolve matches a lead from partial signals. First match wins, in order:
//
//  1. phone, digits-only, exact or last-10-digit suffix match
//  2. email, case-insensitive exact match
//  3. a linked transcript filename containing the session key
//  4. an orphaned transcript on disk for the session key containing a
//     customer email that matches a lead; the transcript is attached to
//     that lead as a side effect
//
// Returns ErrNotFound when nothing matches; that path has no side effects.
func (r *FileRepository) Resolve(ctx context.Context, phone, email, sessionKey string) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lead := r.resolveLocked(phone, email, sessionKey); lead != nil {
		return copyOf(lead), nil
	}
	return nil, ErrNotFound
}

func (r *FileRepository) resolveLocked(phone, email, sessionKey string) *Lead {
	if phone != "" {
		inputDigits := NormalizePhone(phone)
		for i := range r.leads {
			if phonesMatch(NormalizePhone(r.leads[i].Phone), inputDigits) {
				return &r.leads[i]
			}
		}
	}

	if email != "" {
		if lead := r.byEmailLocked(email); lead != nil {
			return lead
		}
	}

	if sessionKey == "" {
		return nil
	}

	for i := range r.leads {
		for _, file := range r.leads[i].ConversationFiles {
			if strings.Contains(file, sessionKey) {
				return &r.leads[i]
			}
		}
	}

	return r.recoverOrphanedTranscript(sessionKey)
}

func (r *FileRepository) byEmailLocked(email string) *Lead {
	for i := range r.leads {
		if r.leads[i].Email != "" && strings.EqualFold(r.leads[i].Email, email) {
			return &r.leads[i]
		}
	}
	return nil
}

// recoverOrphanedTranscript scans the filesystem for a transcript whose
// name embeds the session key but which no lead references, mines it for
// a customer email, and links it to the lead that email belongs to.
func (r *FileRepository) recoverOrphanedTranscript(sessionKey string) *Lead {
	if r.transcripts == nil {
		return nil
	}
	filename := r.transcripts.FindForSession(sessionKey)
	if filename == "" {
		return nil
	}

	content, err := r.transcripts.Read(filename)
	if err != nil {
		r.logger.Error("failed to read orphaned transcript", "file", filename, "error", err)
		return nil
	}
	emails := transcript.ExtractEmails(content, r.operator)
	if len(emails) == 0 {
		return nil
	}

	lead := r.byEmailLocked(emails[0])
	if lead == nil {
		return nil
	}

	if !lead.HasTranscript(filename) {
		lead.ConversationFiles = append(lead.ConversationFiles, filename)
		if err := r.save(); err != nil {
			r.logger.Error("failed to persist transcript link", "id", lead.ID, "file", filename, "error", err)
		}
	}
	r.logger.Info("linked orphaned transcript to lead", "id", lead.ID, "file", filename, "email", emails[0])
	return lead
}
