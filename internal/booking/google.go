package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ServiceAccountStrategy books events with a service-account key. It
// always sends attendees; on consumer calendars the API rejects that
// with a 403, which the scheduler treats as a cue to fall back.
type ServiceAccountStrategy struct {
	credentialsFile string
	calendarID      string
}

func NewServiceAccountStrategy(credentialsFile, calendarID string) *ServiceAccountStrategy {
	return &ServiceAccountStrategy{credentialsFile: credentialsFile, calendarID: calendarID}
}

func (s *ServiceAccountStrategy) Name() string { return "service_account" }

func (s *ServiceAccountStrategy) CreateEvent(ctx context.Context, req Request) (*Event, error) {
	svc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(s.credentialsFile),
		option.WithScopes(calendar.CalendarScope))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return insertEvent(ctx, svc, s.calendarID, req)
}

// DelegatedStrategy books events with a stored OAuth token belonging
// to a real user, which can invite attendees where service accounts
// cannot.
type DelegatedStrategy struct {
	tokenFile  string
	calendarID string
}

func NewDelegatedStrategy(tokenFile, calendarID string) *DelegatedStrategy {
	return &DelegatedStrategy{tokenFile: tokenFile, calendarID: calendarID}
}

func (s *DelegatedStrategy) Name() string { return "oauth_delegated" }

func (s *DelegatedStrategy) CreateEvent(ctx context.Context, req Request) (*Event, error) {
	tok, err := loadToken(s.tokenFile)
	if err != nil {
		return nil, err
	}
	svc, err := calendar.NewService(ctx,
		option.WithTokenSource(oauth2.StaticTokenSource(tok)))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return insertEvent(ctx, svc, s.calendarID, req)
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading oauth token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parsing oauth token: %w", err)
	}
	return &tok, nil
}

func insertEvent(ctx context.Context, svc *calendar.Service, calendarID string, req Request) (*Event, error) {
	event := &calendar.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       &calendar.EventDateTime{DateTime: req.Start.Format("2006-01-02T15:04:05-07:00"), TimeZone: req.Timezone},
		End:         &calendar.EventDateTime{DateTime: req.End.Format("2006-01-02T15:04:05-07:00"), TimeZone: req.Timezone},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             uuid.NewString(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}
	for _, addr := range req.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: addr})
	}

	created, err := svc.Events.Insert(calendarID, event).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("inserting calendar event: %w", err)
	}
	return &Event{ID: created.Id, MeetLink: meetLink(created), HTMLLink: created.HtmlLink}, nil
}

func meetLink(event *calendar.Event) string {
	if event.HangoutLink != "" {
		return event.HangoutLink
	}
	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				return ep.Uri
			}
		}
	}
	return event.HtmlLink
}
