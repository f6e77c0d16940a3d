package booking

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/imjd-ai/saba-backend/pkg/logging"
)

// Handler exposes the direct booking endpoints used by operators and
// integrations, bypassing the conversational flow.
type Handler struct {
	chain     *Scheduler
	delegated *Scheduler
	logger    *logging.Logger
	now       func() time.Time
}

// NewHandler wires the booking endpoints. chain walks the full
// credential chain; delegated uses only the OAuth credential and may
// be nil when no token is configured.
func NewHandler(chain, delegated *Scheduler, logger *logging.Logger) *Handler {
	return &Handler{chain: chain, delegated: delegated, logger: logger, now: time.Now}
}

type bookRequest struct {
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Attendees   []string `json:"attendees"`
}

// BookMeeting handles POST /saba/book-meeting.
func (h *Handler) BookMeeting(w http.ResponseWriter, r *http.Request) {
	h.book(w, r, h.chain)
}

// BookMeetingOAuth handles POST /saba/book-meeting-oauth, forcing the
// delegated credential so attendees always receive invites.
func (h *Handler) BookMeetingOAuth(w http.ResponseWriter, r *http.Request) {
	if h.delegated == nil {
		writeError(w, http.StatusServiceUnavailable, "OAuth booking is not configured")
		return
	}
	h.book(w, r, h.delegated)
}

func (h *Handler) book(w http.ResponseWriter, r *http.Request, scheduler *Scheduler) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	start, end, errMsg := h.validate(req)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	event, strategyName, err := scheduler.Schedule(r.Context(), Request{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       start,
		End:         end,
		Attendees:   req.Attendees,
	})
	if err != nil {
		h.logger.Error("direct booking failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to create meeting: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"event_id":  event.ID,
		"meet_link": event.MeetLink,
		"html_link": event.HTMLLink,
		"strategy":  strategyName,
	})
}

func (h *Handler) validate(req bookRequest) (time.Time, time.Time, string) {
	if req.Summary == "" {
		return time.Time{}, time.Time{}, "summary is required"
	}
	if len(req.Attendees) == 0 {
		return time.Time{}, time.Time{}, "at least one attendee is required"
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, "start_time must be RFC 3339"
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, "end_time must be RFC 3339"
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, "end_time must be after start_time"
	}
	if start.Before(h.now()) {
		return time.Time{}, time.Time{}, "start_time must be in the future"
	}
	return start, end, ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
