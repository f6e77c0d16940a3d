// Package booking creates Google Calendar events with Meet links,
// walking a chain of credentials so attendee invites still go out when
// the primary credential is not allowed to send them.
package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
)

// CalendarTimezone is the IANA identifier sent with event times; the
// Calendar API rejects abbreviations like "PKT". Lead records and chat
// replies use the PKT label instead.
const CalendarTimezone = "Asia/Karachi"

// displayTimezone labels meeting times in lead records.
const displayTimezone = "PKT"

// Request describes one calendar event to create.
type Request struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	// Attendees are client-side emails. The operator is added and
	// deduplicated by the scheduler, not the caller.
	Attendees []string
	// Timezone is an IANA identifier; empty means CalendarTimezone.
	Timezone string
}

// Event is the booked calendar event.
type Event struct {
	ID       string
	MeetLink string
	HTMLLink string
}

// Strategy creates calendar events under one credential model.
type Strategy interface {
	Name() string
	CreateEvent(ctx context.Context, req Request) (*Event, error)
}

// IsPermissionDenied reports whether err is the class of failure that
// warrants falling back to the next credential: a 403 from the
// Calendar API, or the specific attendee-invite restriction message.
func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 403 {
		return true
	}
	return strings.Contains(err.Error(), "Service accounts cannot invite attendees")
}
