package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/imjd-ai/saba-backend/internal/booking"
	"github.com/imjd-ai/saba-backend/internal/conversation"
	httpmiddleware "github.com/imjd-ai/saba-backend/internal/http/middleware"
	"github.com/imjd-ai/saba-backend/internal/leads"
	"github.com/imjd-ai/saba-backend/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	LeadsHandler        *leads.Handler
	BookingHandler      *booking.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string

	// ChatRateLimit throttles the conversational endpoint per IP, in
	// requests per second. Zero disables rate limiting.
	ChatRateLimit float64
	ChatRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Saba backend is running"))
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Conversational endpoints.
	if cfg.ConversationHandler != nil {
		r.Group(func(chat chi.Router) {
			if cfg.ChatRateLimit > 0 {
				chat.Use(httpmiddleware.RateLimit(cfg.ChatRateLimit, cfg.ChatRateBurst))
			}
			chat.Post("/gemini/train", cfg.ConversationHandler.Train)
			chat.Post("/gemini/reset", cfg.ConversationHandler.Reset)
		})
		r.Get("/system-instruction", cfg.ConversationHandler.GetInstruction)
		r.Post("/system-instruction", cfg.ConversationHandler.SetInstruction)
		r.Get("/system-instruction/history", cfg.ConversationHandler.InstructionHistory)
	}

	// Lead management endpoints.
	if cfg.LeadsHandler != nil {
		r.Get("/leads-minimal", cfg.LeadsHandler.ListLeads)
		r.Post("/lead-context", cfg.LeadsHandler.LeadContext)
		r.Get("/conversation-history/{leadID}", cfg.LeadsHandler.ConversationHistory)
		r.Post("/link-conversation", cfg.LeadsHandler.LinkConversation)
		r.Route("/notes/{leadID}", func(notes chi.Router) {
			notes.Get("/", cfg.LeadsHandler.GetNotes)
			notes.Post("/", cfg.LeadsHandler.SetNotes)
		})
	}

	// Direct booking endpoints.
	if cfg.BookingHandler != nil {
		r.Post("/saba/book-meeting", cfg.BookingHandler.BookMeeting)
		r.Post("/saba/book-meeting-oauth", cfg.BookingHandler.BookMeetingOAuth)
	}

	return r
}
