// iCalendar feed fetching and VEVENT parsing
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/shared"
)

const maxFeedBytes = 10 << 20

// CalendarService downloads and parses iCalendar feeds.
type CalendarService struct {
	httpClient *http.Client
	location   *time.Location
}

// NewCalendarService creates a feed client. Floating times are read in loc (UTC when nil).
func NewCalendarService(client *http.Client, loc *time.Location) *CalendarService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarService{httpClient: client, location: loc}
}

// FeedURL rewrites webcal:// subscriptions to https://.
func FeedURL(raw string) string {
	if rest, ok := strings.CutPrefix(raw, "webcal://"); ok {
		return "https://" + rest
	}
	return raw
}

// Fetch downloads a feed and returns its events.
func (c *CalendarService) Fetch(ctx context.Context, feedURL string) ([]*models.SyncedEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, FeedURL(feedURL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError("calendar", resp)
	}

	events, err := ParseICS(io.LimitReader(resp.Body, maxFeedBytes), c.location)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return events, nil
}

// ParseICS reads VEVENT components from an iCalendar stream.
//
// Events without UID or DTSTART are skipped. Recurrence rules are not expanded.
func ParseICS(r io.Reader, loc *time.Location) ([]*models.SyncedEvent, error) {
	if loc == nil {
		loc = time.UTC
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty calendar feed", shared.ErrInvalidInput)
	}

	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	var events []*models.SyncedEvent
	for _, ev := range cal.Events() {
		uid := ev.Id()
		start := ev.GetProperty(ics.ComponentPropertyDtStart)
		if uid == "" || start == nil {
			continue
		}

		event := &models.SyncedEvent{
			UID:         uid,
			Title:       textValue(ev, ics.ComponentPropertySummary),
			Description: textValue(ev, ics.ComponentPropertyDescription),
			Location:    textValue(ev, ics.ComponentPropertyLocation),
		}
		if event.StartsAt, event.AllDay, err = parseICSTime(start, loc); err != nil {
			return nil, fmt.Errorf("event %q: %w", uid, err)
		}
		if end := ev.GetProperty(ics.ComponentPropertyDtEnd); end != nil {
			t, _, err := parseICSTime(end, loc)
			if err != nil {
				return nil, fmt.Errorf("event %q: %w", uid, err)
			}
			event.EndsAt = &t
		}
		events = append(events, event)
	}
	return events, nil
}

func textValue(ev *ics.VEvent, prop ics.ComponentProperty) string {
	if p := ev.GetProperty(prop); p != nil {
		return ics.FromText(p.Value)
	}
	return ""
}

// param returns the first value of a property parameter, matching the name case-insensitively.
func param(prop *ics.IANAProperty, name ics.Parameter) string {
	for k, v := range prop.ICalParameters {
		if strings.EqualFold(k, string(name)) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func parseICSTime(prop *ics.IANAProperty, loc *time.Location) (time.Time, bool, error) {
	value := strings.TrimSpace(prop.Value)

	if strings.EqualFold(param(prop, ics.ParameterValue), "DATE") || len(value) == 8 {
		t, err := time.ParseInLocation("20060102", value, loc)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid date %q: %w", value, err)
		}
		return t, true, nil
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse("20060102T150405Z", value)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid time %q: %w", value, err)
		}
		return t, false, nil
	}

	if tzid := param(prop, ics.ParameterTzid); tzid != "" {
		if tz, err := time.LoadLocation(tzid); err == nil {
			loc = tz
		}
	}
	t, err := time.ParseInLocation("20060102T150405", value, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid time %q: %w", value, err)
	}
	return t, false, nil
}
