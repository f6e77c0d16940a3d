package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imjd-ai/saba-backend/internal/leads"
	"github.com/imjd-ai/saba-backend/internal/observability/metrics"
	"github.com/imjd-ai/saba-backend/pkg/logging"
)

// Scheduler books meetings by walking a credential chain: each
// strategy is tried in order, and a permission-denied failure moves to
// the next one. Any other failure stops the chain.
type Scheduler struct {
	strategies    []Strategy
	repo          leads.Repository
	audit         *AuditLog
	operatorEmail string
	logger        *logging.Logger
	metrics       *metrics.ConversationMetrics
}

func NewScheduler(strategies []Strategy, repo leads.Repository, audit *AuditLog, operatorEmail string, logger *logging.Logger, m *metrics.ConversationMetrics) *Scheduler {
	if len(strategies) == 0 {
		panic("booking: scheduler requires at least one strategy")
	}
	return &Scheduler{
		strategies:    strategies,
		repo:          repo,
		audit:         audit,
		operatorEmail: strings.ToLower(operatorEmail),
		logger:        logger,
		metrics:       m,
	}
}

// Schedule creates the event, falling through the credential chain on
// permission errors. When every strategy fails, the first error is
// returned since it describes the primary credential.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (*Event, string, error) {
	req.Attendees = s.withOperator(req.Attendees)
	if req.Timezone == "" {
		req.Timezone = CalendarTimezone
	}

	var firstErr error
	for i, strat := range s.strategies {
		event, err := strat.CreateEvent(ctx, req)
		if err == nil {
			s.metrics.ObserveBooking(strat.Name(), "success")
			s.logger.Info("meeting booked",
				"strategy", strat.Name(),
				"event_id", event.ID,
				"attendees", len(req.Attendees))
			return event, strat.Name(), nil
		}
		s.metrics.ObserveBooking(strat.Name(), "error")
		if firstErr == nil {
			firstErr = err
		}
		if i < len(s.strategies)-1 && IsPermissionDenied(err) {
			s.logger.Warn("booking strategy denied, falling back",
				"strategy", strat.Name(), "error", err)
			continue
		}
		break
	}
	return nil, "", firstErr
}

// BookForLead books a meeting for a known lead, records the result on
// the lead, and writes an audit entry.
func (s *Scheduler) BookForLead(ctx context.Context, lead *leads.Lead, start, end time.Time) (string, error) {
	req := Request{
		Summary:     fmt.Sprintf("IMJD Consultation - %s", displayName(lead)),
		Description: fmt.Sprintf("Google Meet consultation with %s.\n\nContext: %s", displayName(lead), lead.ChatSummary),
		Start:       start,
		End:         end,
		Attendees:   []string{lead.Email},
	}
	event, strategyName, err := s.Schedule(ctx, req)
	if err != nil {
		s.auditRecord(lead, req, "", "failed: "+err.Error())
		return "", err
	}

	_, updateErr := s.repo.Update(ctx, lead.ID, leads.Fields{
		MeetLink:        &event.MeetLink,
		MeetingDate:     ptr(start.Format("2006-01-02")),
		MeetingTime:     ptr(start.Format("15:04")),
		MeetingTimezone: ptr(displayTimezone),
	})
	if updateErr != nil {
		s.logger.Error("failed to record meeting on lead", "lead_id", lead.ID, "error", updateErr)
	}
	s.auditRecord(lead, req, event.MeetLink, strategyName)
	return event.MeetLink, nil
}

func (s *Scheduler) auditRecord(lead *leads.Lead, req Request, meetLink, outcome string) {
	if s.audit == nil {
		return
	}
	s.audit.Append(Record{
		LeadID:    lead.ID,
		Name:      lead.Name,
		Email:     lead.Email,
		Start:     req.Start,
		End:       req.End,
		Attendees: req.Attendees,
		MeetLink:  meetLink,
		Outcome:   outcome,
	})
}

// withOperator appends the operator email unless already present,
// comparing case-insensitively.
func (s *Scheduler) withOperator(attendees []string) []string {
	out := make([]string, 0, len(attendees)+1)
	seen := map[string]bool{}
	for _, addr := range attendees {
		key := strings.ToLower(strings.TrimSpace(addr))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, addr)
	}
	if s.operatorEmail != "" && !seen[s.operatorEmail] {
		out = append(out, s.operatorEmail)
	}
	return out
}

func displayName(lead *leads.Lead) string {
	if lead.Name != "" {
		return lead.Name
	}
	return lead.Email
}

func ptr(s string) *string { return &s }
