package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/imjd-ai/saba-backend/internal/leads"
	"github.com/imjd-ai/saba-backend/internal/observability/metrics"
	"github.com/imjd-ai/saba-backend/internal/session"
	"github.com/imjd-ai/saba-backend/internal/transcript"
	"github.com/imjd-ai/saba-backend/pkg/logging"
)

// sessionKeyPhonePattern pulls the phone number out of messaging-style
// session keys like "923001234567@c.us".
var sessionKeyPhonePattern = regexp.MustCompile(`(\d{10,15})@`)

// MeetingScheduler books a confirmed meeting for a lead and returns
// the Google Meet link.
type MeetingScheduler interface {
	BookForLead(ctx context.Context, lead *leads.Lead, start, end time.Time) (string, error)
}

const clientGreetingFormat = "Hi! I'm Saba from IMJD. Your client ID is %s. Please use this for future reference. How can I help you today?"

// TurnRequest is one inbound user turn. Phone and Email are optional
// contact hints supplied by the channel adapter.
type TurnRequest struct {
	ClientID string
	Content  string
	Phone    string
	Email    string
}

// Reply is the outcome of one conversational turn.
type Reply struct {
	ClientID    string       `json:"client_id"`
	Text        string       `json:"response"`
	IsNewClient bool         `json:"is_new_client,omitempty"`
	Booking     BookingState `json:"booking_state,omitempty"`
	MeetLink    string       `json:"meet_link,omitempty"`
}

// Service runs the conversational loop: session handling, lead
// resolution, model completion, booking detection, and best-effort
// persistence after the reply is decided.
type Service struct {
	llm          LLMClient
	sessions     *session.Store
	repo         leads.Repository
	transcripts  *transcript.Store
	assembler    *ContextAssembler
	detector     *Detector
	extractor    *InfoExtractor
	scheduler    MeetingScheduler
	maxTurnPairs int
	logger       *logging.Logger
	metrics      *metrics.ConversationMetrics
	now          func() time.Time
}

type ServiceConfig struct {
	LLM          LLMClient
	Sessions     *session.Store
	Repo         leads.Repository
	Transcripts  *transcript.Store
	Assembler    *ContextAssembler
	Detector     *Detector
	Extractor    *InfoExtractor
	Scheduler    MeetingScheduler
	MaxTurnPairs int
	Logger       *logging.Logger
	Metrics      *metrics.ConversationMetrics
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.MaxTurnPairs <= 0 {
		cfg.MaxTurnPairs = session.DefaultMaxTurnPairs
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Service{
		llm:          cfg.LLM,
		sessions:     cfg.Sessions,
		repo:         cfg.Repo,
		transcripts:  cfg.Transcripts,
		assembler:    cfg.Assembler,
		detector:     cfg.Detector,
		extractor:    cfg.Extractor,
		scheduler:    cfg.Scheduler,
		maxTurnPairs: cfg.MaxTurnPairs,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		now:          func() time.Time { return time.Now().In(BusinessZone) },
	}
}

// Process handles one user turn. An empty client id starts a fresh
// conversation with a generated id and a greeting, without calling the
// model; a turn that creates a brand-new lead on an empty session gets
// the same greeting carrying the lead's id.
func (s *Service) Process(ctx context.Context, turn TurnRequest) (Reply, error) {
	started := time.Now()
	if turn.ClientID == "" {
		return s.greetNewClient(ctx)
	}
	clientID := turn.ClientID
	content := turn.Content

	sess, err := s.sessions.Get(ctx, clientID)
	if errors.Is(err, session.ErrNotFound) {
		sess = &session.Session{}
	} else if err != nil {
		s.metrics.ObserveMessage("error")
		return Reply{}, fmt.Errorf("loading session: %w", err)
	}

	lead, created := s.resolveOrCreateLead(ctx, turn)
	if created && len(sess.ConversationHistory) == 0 {
		return s.greetNewLead(ctx, turn, lead, sess)
	}

	system := s.assembler.Assemble(lead)
	sess.Append(session.RoleUser, content)

	resp, err := s.llm.Complete(ctx, LLMRequest{System: system, History: sess.ConversationHistory})
	if err != nil {
		s.metrics.ObserveMessage("error")
		return Reply{}, fmt.Errorf("completing turn: %w", err)
	}
	reply := Reply{ClientID: clientID, Text: resp.Text}

	// Booking outcomes are appended to the model's reply, never in
	// place of it; a booking failure leaves the reply untouched.
	intent := s.detector.Detect(clientID, content, resp.Text, lead, sess)
	switch intent.State {
	case StateNeedsConfirmation:
		reply.Text += "\n\n" + intent.Message
		reply.Booking = StateNeedsConfirmation
	case StateNeedsInfo:
		reply.Text += "\n\n" + intent.Message
		reply.Booking = StateNeedsInfo
	case StateConfirmed:
		reply = s.bookConfirmed(ctx, clientID, intent, lead, reply)
	}

	sess.Append(session.RoleModel, reply.Text)
	sess.Truncate(s.maxTurnPairs)
	if err := s.sessions.Put(ctx, clientID, sess); err != nil {
		s.logger.Error("failed to persist session", "client_id", clientID, "error", err)
	}

	s.postProcess(ctx, clientID, content, lead, sess)

	s.metrics.ObserveMessage("success")
	s.metrics.ObserveCompletionLatency(time.Since(started).Seconds())
	return reply, nil
}

func (s *Service) greetNewClient(ctx context.Context) (Reply, error) {
	clientID := uuid.NewString()
	greeting := fmt.Sprintf(clientGreetingFormat, clientID)

	sess := &session.Session{}
	sess.Append(session.RoleModel, greeting)
	if err := s.sessions.Put(ctx, clientID, sess); err != nil {
		return Reply{}, fmt.Errorf("persisting new session: %w", err)
	}
	s.metrics.ObserveMessage("success")
	return Reply{ClientID: clientID, Text: greeting, IsNewClient: true}, nil
}

// greetNewLead answers the first message of a freshly created lead
// with the fixed greeting carrying the lead's id, skipping the model.
func (s *Service) greetNewLead(ctx context.Context, turn TurnRequest, lead *leads.Lead, sess *session.Session) (Reply, error) {
	greeting := fmt.Sprintf(clientGreetingFormat, strconv.Itoa(lead.ID))
	sess.Append(session.RoleUser, turn.Content)
	sess.Append(session.RoleModel, greeting)
	if err := s.sessions.Put(ctx, turn.ClientID, sess); err != nil {
		s.logger.Error("failed to persist session", "client_id", turn.ClientID, "error", err)
	}
	s.postProcess(ctx, turn.ClientID, turn.Content, lead, sess)
	s.metrics.ObserveMessage("success")
	return Reply{ClientID: turn.ClientID, Text: greeting, IsNewClient: true}, nil
}

// resolveOrCreateLead matches the turn to a lead. A contact signal
// (supplied phone/email or a phone-shaped session key) creates the
// lead on a miss; without one the miss is a normal state for early
// conversation turns.
func (s *Service) resolveOrCreateLead(ctx context.Context, turn TurnRequest) (*leads.Lead, bool) {
	phone := turn.Phone
	if phone == "" {
		phone = phoneFromSessionKey(turn.ClientID)
	}
	if phone == "" && turn.Email == "" {
		lead, err := s.repo.Resolve(ctx, "", "", turn.ClientID)
		if errors.Is(err, leads.ErrNotFound) {
			return nil, false
		}
		if err != nil {
			s.logger.Warn("lead resolution failed", "client_id", turn.ClientID, "error", err)
			return nil, false
		}
		return lead, false
	}
	lead, created, err := s.repo.GetOrCreate(ctx, phone, turn.Email, turn.ClientID, "")
	if err != nil {
		s.logger.Warn("lead lookup failed", "client_id", turn.ClientID, "error", err)
		return nil, false
	}
	if created {
		s.metrics.ObserveLeadCreated()
	}
	return lead, created
}

func (s *Service) bookConfirmed(ctx context.Context, clientID string, intent Intent, lead *leads.Lead, reply Reply) Reply {
	if lead == nil {
		var created bool
		var err error
		lead, created, err = s.repo.GetOrCreate(ctx, phoneFromSessionKey(clientID), intent.Email, clientID, intent.Name)
		if err != nil {
			s.logger.Error("failed to materialize lead for booking", "client_id", clientID, "error", err)
			reply.Booking = StateNeedsInfo
			return reply
		}
		if created {
			s.metrics.ObserveLeadCreated()
		}
	}
	if lead.Email == "" {
		if _, err := s.repo.Update(ctx, lead.ID, leads.Fields{Email: leads.String(intent.Email), Name: nonEmpty(intent.Name)}); err != nil {
			s.logger.Warn("failed to record booking contact", "lead_id", lead.ID, "error", err)
		}
		lead.Email = intent.Email
		if lead.Name == "" {
			lead.Name = intent.Name
		}
	}

	var link string
	err := errors.New("no booking backend configured")
	if s.scheduler != nil {
		link, err = s.scheduler.BookForLead(ctx, lead, intent.Window.Start, intent.Window.End)
	}
	if err != nil {
		// Booking must never break the conversation; the model's
		// reply goes out unmodified.
		s.logger.Error("booking failed", "lead_id", lead.ID, "error", err)
		reply.Booking = StateConfirmed
		return reply
	}
	reply.Text += fmt.Sprintf(
		"\n\nYour meeting is booked for %s at %s (%s). Here is your Google Meet link: %s\nA calendar invite has been sent to %s. See you then!",
		intent.Window.Date, intent.Window.Time, BusinessTimezoneName, link, lead.Email)
	reply.Booking = StateConfirmed
	reply.MeetLink = link
	return reply
}

// postProcess mines the turn for contact details and persists lead and
// transcript state. Every failure here is logged and dropped so the
// reply already decided is never blocked.
func (s *Service) postProcess(ctx context.Context, clientID, content string, lead *leads.Lead, sess *session.Session) {
	info := s.extractor.Extract(content)

	if lead == nil && (info.Phone != "" || info.Email != "" || phoneFromSessionKey(clientID) != "") {
		phone := info.Phone
		if phone == "" {
			phone = phoneFromSessionKey(clientID)
		}
		created := false
		var err error
		lead, created, err = s.repo.GetOrCreate(ctx, phone, info.Email, clientID, info.Name)
		if err != nil {
			s.logger.Warn("failed to create lead from turn", "client_id", clientID, "error", err)
			lead = nil
		} else if created {
			s.metrics.ObserveLeadCreated()
		}
	}

	if info.Name != "" && sess.ClientName == "" {
		sess.ClientName = info.Name
		if err := s.sessions.Put(ctx, clientID, sess); err != nil {
			s.logger.Warn("failed to persist client name", "client_id", clientID, "error", err)
		}
	}

	if lead != nil {
		fields := leads.Fields{
			Name:        nonEmpty(info.Name),
			Email:       nonEmpty(info.Email),
			Phone:       nonEmpty(info.Phone),
			ChatSummary: nonEmpty(info.Summary),
		}
		if _, err := s.repo.Update(ctx, lead.ID, fields); err != nil {
			s.logger.Warn("failed to update lead", "lead_id", lead.ID, "error", err)
		}
	}

	filename := s.transcripts.FindForSessionToday(clientID, s.now())
	if filename == "" {
		filename = transcript.Filename(clientID, s.now())
	}
	if err := s.transcripts.Save(filename, sess.ConversationHistory); err != nil {
		s.logger.Warn("failed to save transcript", "file", filename, "error", err)
		return
	}
	if lead != nil {
		if err := s.repo.LinkTranscript(ctx, lead.ID, filename, 1); err != nil {
			s.logger.Warn("failed to link transcript", "lead_id", lead.ID, "error", err)
		}
	}
}

// Reset archives the session transcript and clears the session.
func (s *Service) Reset(ctx context.Context, clientID string) error {
	sess, err := s.sessions.Get(ctx, clientID)
	if err == nil && len(sess.ConversationHistory) > 0 {
		filename := transcript.Filename(clientID, s.now())
		if err := s.transcripts.Save(filename, sess.ConversationHistory); err != nil {
			s.logger.Warn("failed to archive transcript on reset", "client_id", clientID, "error", err)
		}
	} else if err != nil && !errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("loading session: %w", err)
	}
	return s.sessions.Delete(ctx, clientID)
}

func phoneFromSessionKey(clientID string) string {
	m := sessionKeyPhonePattern.FindStringSubmatch(clientID)
	if m == nil {
		return ""
	}
	return m[1]
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
