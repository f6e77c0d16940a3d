package booking

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imjd-ai/saba-backend/pkg/logging"
)

func newBookingHandler(t *testing.T, strategies ...Strategy) (*Handler, *fakeStrategy) {
	t.Helper()
	primary := &fakeStrategy{name: "primary", event: &Event{ID: "ev1", MeetLink: "https://meet.google.com/abc", HTMLLink: "https://calendar.google.com/ev1"}}
	if len(strategies) == 0 {
		strategies = []Strategy{primary}
	}
	chain := newScheduler(t, newTestRepo(t), strategies...)
	h := NewHandler(chain, nil, logging.New("error"))
	h.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }
	return h, primary
}

func postBooking(t *testing.T, h http.HandlerFunc, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/saba/book-meeting", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func validBody() map[string]any {
	return map[string]any{
		"summary":     "IMJD Consultation",
		"description": "Project discussion",
		"start_time":  "2026-08-29T17:00:00+05:00",
		"end_time":    "2026-08-29T18:00:00+05:00",
		"attendees":   []string{"ali@example.com"},
	}
}

func TestBookMeetingSuccess(t *testing.T) {
	h, primary := newBookingHandler(t)

	rec := postBooking(t, h.BookMeeting, validBody())

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "https://meet.google.com/abc", resp["meet_link"])
	assert.Equal(t, "primary", resp["strategy"])
	assert.Contains(t, primary.lastReq.Attendees, "ops@imjd.ai")
}

func TestBookMeetingValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		want   string
	}{
		{"missing summary", func(b map[string]any) { b["summary"] = "" }, "summary is required"},
		{"no attendees", func(b map[string]any) { b["attendees"] = []string{} }, "at least one attendee"},
		{"bad start", func(b map[string]any) { b["start_time"] = "tomorrow 5pm" }, "start_time must be RFC 3339"},
		{"bad end", func(b map[string]any) { b["end_time"] = "later" }, "end_time must be RFC 3339"},
		{"end before start", func(b map[string]any) {
			b["end_time"] = "2026-08-29T16:00:00+05:00"
		}, "end_time must be after start_time"},
		{"start in past", func(b map[string]any) {
			b["start_time"] = "2026-08-27T17:00:00+05:00"
			b["end_time"] = "2026-08-27T18:00:00+05:00"
		}, "start_time must be in the future"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newBookingHandler(t)
			body := validBody()
			tt.mutate(body)

			rec := postBooking(t, h.BookMeeting, body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestBookMeetingInvalidJSON(t *testing.T) {
	h, _ := newBookingHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/saba/book-meeting", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.BookMeeting(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookMeetingSchedulerFailure(t *testing.T) {
	failing := &fakeStrategy{name: "primary", err: assert.AnError}
	h, _ := newBookingHandler(t, failing)

	rec := postBooking(t, h.BookMeeting, validBody())

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to create meeting")
}

func TestBookMeetingOAuthUnconfigured(t *testing.T) {
	h, _ := newBookingHandler(t)

	rec := postBooking(t, h.BookMeetingOAuth, validBody())

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBookMeetingOAuthUsesDelegatedOnly(t *testing.T) {
	delegated := &fakeStrategy{name: "oauth_delegated", event: &Event{ID: "ev9", MeetLink: "https://meet.google.com/oauth"}}
	chainStrategy := &fakeStrategy{name: "primary", event: &Event{ID: "ev1"}}
	chain := newScheduler(t, newTestRepo(t), chainStrategy)
	h := NewHandler(chain, newScheduler(t, newTestRepo(t), delegated), logging.New("error"))
	h.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }

	rec := postBooking(t, h.BookMeetingOAuth, validBody())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, delegated.calls)
	assert.Equal(t, 0, chainStrategy.calls)
	assert.Contains(t, rec.Body.String(), "oauth_delegated")
}
