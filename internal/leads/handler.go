package leads

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/imjd-ai/saba-backend/internal/transcript"
	"github.com/imjd-ai/saba-backend/pkg/logging"
)

// excerptLines is how many recent user/model lines a context lookup returns
// per linked transcript.
const excerptLines = 3

// Handler handles HTTP requests for leads
type Handler struct {
	repo        Repository
	notes       *NotesStore
	transcripts *transcript.Store
	logger      *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(repo Repository, notes *NotesStore, transcripts *transcript.Store, logger *logging.Logger) *Handler {
	return &Handler{
		repo:        repo,
		notes:       notes,
		transcripts: transcripts,
		logger:      logger,
	}
}

// ListLeads handles GET /leads-minimal requests
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.All(r.Context())
	if err != nil {
		h.logger.Error("failed to list leads", "error", err)
		http.Error(w, "failed to list leads", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"leads": all})
}

type leadContextRequest struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// leadContextView is the lightweight lead payload returned to the agent
// frontend and to completion-prompt builders.
type leadContextView struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	ChatSummary     string `json:"chat_summary"`
	LastInteraction string `json:"last_interaction"`
	TotalMessages   int    `json:"total_messages"`
	HasMeeting      bool   `json:"has_meeting"`
	AgentNotes      string `json:"agent_notes"`
}

// LeadContext handles POST /lead-context requests: lookup by phone or
// email, returning the lead plus recent transcript excerpts.
func (h *Handler) LeadContext(w http.ResponseWriter, r *http.Request) {
	var req leadContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Phone == "" && req.Email == "" {
		http.Error(w, "Phone or email required", http.StatusBadRequest)
		return
	}

	lead, err := h.repo.Resolve(r.Context(), req.Phone, req.Email, "")
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{
			"lead_found": false,
			"message":    "No previous conversation found",
		})
		return
	}
	if err != nil {
		h.logger.Error("lead context lookup failed", "error", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	notes, err := h.notes.Get(lead.ID)
	if err != nil {
		h.logger.Error("failed to load agent notes", "id", lead.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lead_found": true,
		"lead": leadContextView{
			ID:              lead.ID,
			Name:            lead.Name,
			Phone:           lead.Phone,
			Email:           lead.Email,
			ChatSummary:     lead.ChatSummary,
			LastInteraction: lead.LastInteraction,
			TotalMessages:   lead.TotalMessages,
			HasMeeting:      lead.HasMeeting(),
			AgentNotes:      notes,
		},
		"recent_conversations": h.excerpts(lead),
	})
}

// ConversationHistory handles GET /conversation-history/{leadID} requests
func (h *Handler) ConversationHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "leadID"))
	if err != nil {
		http.Error(w, "invalid lead id", http.StatusBadRequest)
		return
	}

	lead, err := h.repo.ByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversation_history": h.excerpts(lead)})
}

func (h *Handler) excerpts(lead *Lead) []transcript.Excerpt {
	excerpts := make([]transcript.Excerpt, 0, len(lead.ConversationFiles))
	for _, file := range lead.ConversationFiles {
		ex, err := h.transcripts.ExcerptOf(file, excerptLines)
		if err != nil {
			h.logger.Warn("skipping unreadable transcript", "file", file, "error", err)
			continue
		}
		excerpts = append(excerpts, ex)
	}
	return excerpts
}

type linkConversationRequest struct {
	ConversationFile string `json:"conversation_file"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	Name             string `json:"name"`
}

// LinkConversation handles POST /link-conversation requests: it attaches
// a transcript file to the matching lead, creating the lead when needed.
func (h *Handler) LinkConversation(w http.ResponseWriter, r *http.Request) {
	var req linkConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ConversationFile == "" {
		http.Error(w, "conversation_file required", http.StatusBadRequest)
		return
	}
	if req.Phone == "" && req.Email == "" {
		http.Error(w, "phone or email required", http.StatusBadRequest)
		return
	}

	lead, created, err := h.repo.GetOrCreate(r.Context(), req.Phone, req.Email, "", req.Name)
	if err != nil {
		h.logger.Error("failed to link conversation", "file", req.ConversationFile, "error", err)
		http.Error(w, "failed to link conversation", http.StatusInternalServerError)
		return
	}

	userMessages := 0
	if content, err := h.transcripts.Read(req.ConversationFile); err == nil {
		userMessages = transcript.CountUserMessages(content)
	}
	if err := h.repo.LinkTranscript(r.Context(), lead.ID, req.ConversationFile, userMessages); err != nil {
		h.logger.Error("failed to attach transcript", "id", lead.ID, "error", err)
	}

	h.logger.Info("conversation linked to lead", "id", lead.ID, "file", req.ConversationFile, "created", created)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Conversation linked to lead"})
}

// GetNotes handles GET /notes/{leadID} requests
func (h *Handler) GetNotes(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "leadID"))
	if err != nil {
		http.Error(w, "invalid lead id", http.StatusBadRequest)
		return
	}

	notes, err := h.notes.Get(id)
	if err != nil {
		h.logger.Error("failed to load notes", "id", id, "error", err)
		http.Error(w, "failed to load notes", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

type setNotesRequest struct {
	Notes string `json:"notes"`
}

// SetNotes handles POST /notes/{leadID} requests
func (h *Handler) SetNotes(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "leadID"))
	if err != nil {
		http.Error(w, "invalid lead id", http.StatusBadRequest)
		return
	}

	var req setNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.notes.Set(id, req.Notes); err != nil {
		h.logger.Error("failed to save notes", "id", id, "error", err)
		http.Error(w, "failed to save notes", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
