package google

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"calassist/internal/models"

	"google.golang.org/api/calendar/v3"
)

const dateLayout = "2006-01-02"

// ToEvent converts a raw calendar event into the internal Event model.
// Date-only values are read as midnight in loc and mark the event as all-day.
// It fails with models.ErrMalformedEvent when the event has no usable start.
func ToEvent(item *calendar.Event, loc *time.Location) (*models.Event, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: nil event", models.ErrMalformedEvent)
	}

	start, allDay, ok, err := parseEventTime(item.Start, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: event %s: start: %v", models.ErrMalformedEvent, item.Id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: event %s has no start", models.ErrMalformedEvent, item.Id)
	}

	end, _, ok, err := parseEventTime(item.End, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: event %s: end: %v", models.ErrMalformedEvent, item.Id, err)
	}
	if !ok {
		end = start
	}

	title := item.Summary
	if title == "" {
		title = models.DefaultTitle
	}

	event := &models.Event{
		ID:                      item.Id,
		Title:                   title,
		Description:             item.Description,
		Location:                item.Location,
		Start:                   start,
		End:                     end,
		AllDay:                  allDay,
		Attendees:               toAttendees(item.Attendees),
		GuestsCanSeeOtherGuests: item.GuestsCanSeeOtherGuests != nil && *item.GuestsCanSeeOtherGuests,
		GuestsCanModify:         item.GuestsCanModify,
		GuestsCanInviteOthers:   item.GuestsCanInviteOthers != nil && *item.GuestsCanInviteOthers,
	}
	if item.Organizer != nil {
		event.Organizer = &models.Organizer{
			Email:       item.Organizer.Email,
			DisplayName: item.Organizer.DisplayName,
			Self:        item.Organizer.Self,
		}
	}
	return event, nil
}

// ToEvents converts a batch. With models.MalformedAbort the first malformed event fails the
// whole batch; otherwise malformed events are logged and skipped.
func ToEvents(items []*calendar.Event, loc *time.Location, policy models.MalformedPolicy, logger *slog.Logger) ([]*models.Event, error) {
	events := make([]*models.Event, 0, len(items))
	for _, item := range items {
		event, err := ToEvent(item, loc)
		if err != nil {
			if policy == models.MalformedAbort {
				return nil, err
			}
			logger.Warn("Skipping malformed event", "error", err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// parseEventTime prefers the date-time field and falls back to the date field.
func parseEventTime(t *calendar.EventDateTime, loc *time.Location) (value time.Time, allDay, ok bool, err error) {
	if t == nil {
		return time.Time{}, false, false, nil
	}
	if t.DateTime != "" {
		value, err = time.Parse(time.RFC3339, t.DateTime)
		return value, false, err == nil, err
	}
	if t.Date != "" {
		value, err = time.ParseInLocation(dateLayout, t.Date, loc)
		return value, true, err == nil, err
	}
	return time.Time{}, false, false, nil
}

func toAttendees(raw []*calendar.EventAttendee) []models.Attendee {
	attendees := make([]models.Attendee, 0, len(raw))
	for _, a := range raw {
		if a == nil {
			continue
		}
		displayName := a.DisplayName
		if displayName == "" {
			displayName, _, _ = strings.Cut(a.Email, "@")
		}
		status := a.ResponseStatus
		if status == "" {
			status = models.ResponseNeedsAction
		}
		attendees = append(attendees, models.Attendee{
			Email:          a.Email,
			DisplayName:    displayName,
			ResponseStatus: status,
			Self:           a.Self,
			Organizer:      a.Organizer,
			Optional:       a.Optional,
		})
	}
	return attendees
}
