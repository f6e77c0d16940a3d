package conversation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/imjd-ai/saba-backend/pkg/logging"
)

// Handler exposes the conversational endpoints.
type Handler struct {
	service        *Service
	instructions   *InstructionStore
	maxInputLength int
	logger         *logging.Logger
}

func NewHandler(service *Service, instructions *InstructionStore, maxInputLength int, logger *logging.Logger) *Handler {
	return &Handler{service: service, instructions: instructions, maxInputLength: maxInputLength, logger: logger}
}

type trainRequest struct {
	ClientID string `json:"client_id"`
	Content  string `json:"content"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

// Train handles POST /gemini/train, the main conversational turn.
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" && req.ClientID != "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(content) > h.maxInputLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("content exceeds maximum length of %d characters", h.maxInputLength))
		return
	}

	reply, err := h.service.Process(r.Context(), TurnRequest{
		ClientID: strings.TrimSpace(req.ClientID),
		Content:  content,
		Phone:    strings.TrimSpace(req.Phone),
		Email:    strings.TrimSpace(req.Email),
	})
	if err != nil {
		h.logger.Error("turn failed", "client_id", req.ClientID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type resetRequest struct {
	ClientID string `json:"client_id"`
}

// Reset handles POST /gemini/reset, archiving and clearing a session.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ClientID) == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	if err := h.service.Reset(r.Context(), req.ClientID); err != nil {
		h.logger.Error("reset failed", "client_id", req.ClientID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "client_id": req.ClientID})
}

// GetInstruction handles GET /system-instruction.
func (h *Handler) GetInstruction(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"instruction": h.instructions.Get()})
}

type instructionRequest struct {
	Instruction string `json:"instruction"`
}

// SetInstruction handles POST /system-instruction.
func (h *Handler) SetInstruction(w http.ResponseWriter, r *http.Request) {
	var req instructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		writeError(w, http.StatusBadRequest, "instruction is required")
		return
	}
	if err := h.instructions.Set(req.Instruction); err != nil {
		h.logger.Error("failed to save instruction", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save instruction")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// InstructionHistory handles GET /system-instruction/history.
func (h *Handler) InstructionHistory(w http.ResponseWriter, r *http.Request) {
	revs, err := h.instructions.History()
	if err != nil {
		h.logger.Error("failed to read instruction history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read instruction history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": revs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
