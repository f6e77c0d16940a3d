package conversation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// BusinessZone is the fixed offset all meeting times are rendered in,
// regardless of the server's local timezone.
var BusinessZone = time.FixedZone("PKT", 5*3600)

// BusinessTimezoneName labels BusinessZone in prompts and lead records.
const BusinessTimezoneName = "PKT"

// meetingDuration is the fixed length of every booked meeting.
const meetingDuration = time.Hour

// Window is a concrete meeting slot resolved from free text.
type Window struct {
	Start time.Time
	End   time.Time
	// Date and Time are the human-readable forms stored on the lead.
	Date string // 2006-01-02
	Time string // 15:04
}

// timeRule matches a clock time mention. Rules are tried in order and
// the first match wins.
type timeRule struct {
	re *regexp.Regexp
	// hasMinutes marks rules whose second capture group is minutes.
	hasMinutes bool
	// assumePM marks colloquial rules with no explicit am/pm marker.
	assumePM bool
}

// dateRule resolves a date mention relative to "now".
type dateRule struct {
	re      *regexp.Regexp
	resolve func(m []string, now time.Time) time.Time
}

var timeRules = []timeRule{
	{re: regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(am|pm)`), hasMinutes: true},
	{re: regexp.MustCompile(`(?i)(\d{1,2})\s*(am|pm)`)},
	// Transliterated colloquial forms; both imply an evening time.
	{re: regexp.MustCompile(`(?i)shaam\s*(\d{1,2})`), assumePM: true},
	{re: regexp.MustCompile(`(?i)(\d{1,2})\s*baje`), assumePM: true},
}

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday, "sunday": time.Sunday,
}

const monthAlternation = `january|february|march|april|may|june|july|august|september|october|november|december`

var dateRules = []dateRule{
	{
		re: regexp.MustCompile(`(?i)(\d{1,2})(?:st|nd|rd|th)?\s*(` + monthAlternation + `)`),
		resolve: func(m []string, now time.Time) time.Time {
			day, _ := strconv.Atoi(m[1])
			return dateFor(now, monthNames[strings.ToLower(m[2])], day)
		},
	},
	{
		re: regexp.MustCompile(`(?i)(` + monthAlternation + `)\s*(\d{1,2})(?:st|nd|rd|th)?`),
		resolve: func(m []string, now time.Time) time.Time {
			day, _ := strconv.Atoi(m[2])
			return dateFor(now, monthNames[strings.ToLower(m[1])], day)
		},
	},
	{
		re: regexp.MustCompile(`(?i)\btoday\b`),
		resolve: func(m []string, now time.Time) time.Time {
			return midnight(now)
		},
	},
	{
		re: regexp.MustCompile(`(?i)\btomorrow\b`),
		resolve: func(m []string, now time.Time) time.Time {
			return midnight(now.AddDate(0, 0, 1))
		},
	},
	{
		re: regexp.MustCompile(`(?i)next\s*(week|monday|tuesday|wednesday|thursday|friday|saturday|sunday)`),
		resolve: func(m []string, now time.Time) time.Time {
			word := strings.ToLower(m[1])
			if word == "week" {
				return midnight(now.AddDate(0, 0, 7))
			}
			return midnight(nextWeekday(now, weekdayNames[word]))
		},
	},
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dateFor(now time.Time, month time.Month, day int) time.Time {
	return time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location())
}

// nextWeekday returns the next strictly-future occurrence of w.
func nextWeekday(now time.Time, w time.Weekday) time.Time {
	days := (int(w) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return now.AddDate(0, 0, days)
}

// TimeExtractor turns free text into a concrete meeting window in the
// business timezone. It never fails: missing pieces fall back to
// deterministic defaults (17:00, tomorrow).
type TimeExtractor struct {
	now func() time.Time
}

// NewTimeExtractor creates an extractor using the wall clock.
func NewTimeExtractor() *TimeExtractor {
	return &TimeExtractor{now: func() time.Time { return time.Now().In(BusinessZone) }}
}

// Extract scans the user and assistant text for a meeting time and date.
func (e *TimeExtractor) Extract(userText, assistantText string) Window {
	combined := strings.ToLower(userText + " " + assistantText)
	now := e.now().In(BusinessZone)

	hour, minute := 17, 0 // default 5 PM
	matched := false
	for _, rule := range timeRules {
		m := rule.re.FindStringSubmatch(combined)
		if m == nil {
			continue
		}
		hour, _ = strconv.Atoi(m[1])
		minute = 0
		isPM := rule.assumePM
		if rule.hasMinutes {
			minute, _ = strconv.Atoi(m[2])
			isPM = strings.EqualFold(m[3], "pm")
		} else if !rule.assumePM {
			isPM = strings.EqualFold(m[2], "pm")
		}
		hour = normalizeHour(hour, isPM)
		matched = true
		break
	}
	if !matched {
		hour = 17
	}

	date := midnight(now.AddDate(0, 0, 1)) // default tomorrow
	for _, rule := range dateRules {
		m := rule.re.FindStringSubmatch(combined)
		if m == nil {
			continue
		}
		date = rule.resolve(m, now)
		break
	}

	start := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, BusinessZone)
	return Window{
		Start: start,
		End:   start.Add(meetingDuration),
		Date:  start.Format("2006-01-02"),
		Time:  fmt.Sprintf("%02d:%02d", hour, minute),
	}
}

// normalizeHour applies the 12-hour clock rules: 12 AM is midnight,
// PM adds 12 unless the hour is already on the 24-hour side.
func normalizeHour(hour int, isPM bool) int {
	if isPM && hour < 12 {
		return hour + 12
	}
	if !isPM && hour == 12 {
		return 0
	}
	return hour
}
