package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTitle is used for events whose source has no summary.
const DefaultTitle = "No Title"

// ResponseNeedsAction is the response status of an attendee who has not answered yet.
const ResponseNeedsAction = "needsAction"

const dateLayout = "2006-01-02"

// ErrMalformedEvent is returned when a raw event has no usable start.
var ErrMalformedEvent = errors.New("malformed event")

// MalformedPolicy decides what a batch conversion does with a malformed event.
type MalformedPolicy string

const (
	// MalformedSkip logs and drops the event.
	MalformedSkip MalformedPolicy = "skip"
	// MalformedAbort fails the whole batch.
	MalformedAbort MalformedPolicy = "abort"
)

// ParseMalformedPolicy reads a policy name, case-insensitively.
func ParseMalformedPolicy(name string) (MalformedPolicy, error) {
	switch p := MalformedPolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case MalformedSkip, MalformedAbort:
		return p, nil
	default:
		return "", fmt.Errorf("unknown malformed event policy '%s': want %s or %s", name, MalformedSkip, MalformedAbort)
	}
}

// Event represents a normalized calendar event.
// This is an internal representation, independent of any specific calendar provider.
type Event struct {
	ID          string     // Unique identifier for the event (e.g., from the source calendar)
	Title       string     // Summary or title of the event, DefaultTitle when absent
	Description string     // Detailed description of the event
	Location    string     // Location of the event
	Start       time.Time  // Start of the event; midnight in the primary zone for all-day events
	End         time.Time  // End of the event
	AllDay      bool       // True when the source only carries dates
	Attendees   []Attendee // Attendees in source order, not deduplicated
	Organizer   *Organizer // Organizer as reported by the source, if any

	GuestsCanSeeOtherGuests bool
	GuestsCanModify         bool
	GuestsCanInviteOthers   bool
}

// Attendee is one participation record on an event.
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName"`
	ResponseStatus string `json:"responseStatus"`
	Self           bool   `json:"self"`
	Organizer      bool   `json:"organizer"`
	Optional       bool   `json:"optional"`
}

// Organizer identifies who owns an event.
type Organizer struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Self        bool   `json:"self,omitempty"`
}

// Participants returns the attendees that are not the authenticated user.
// Every aggregate over attendees goes through this method.
func (e *Event) Participants() []Attendee {
	out := make([]Attendee, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		if a.Self {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Duration returns end minus start. It is negative when the source has end before start.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// StartValue renders the start the way the source did: a date for all-day events.
func (e *Event) StartValue() string {
	return formatEventTime(e.Start, e.AllDay)
}

// EndValue renders the end the way the source did: a date for all-day events.
func (e *Event) EndValue() string {
	return formatEventTime(e.End, e.AllDay)
}

func formatEventTime(t time.Time, allDay bool) string {
	if allDay {
		return t.Format(dateLayout)
	}
	return t.Format(time.RFC3339)
}

type eventJSON struct {
	ID                      string     `json:"id"`
	Title                   string     `json:"title"`
	Start                   string     `json:"start"`
	End                     string     `json:"end"`
	AllDay                  bool       `json:"allDay"`
	Description             string     `json:"description"`
	Location                string     `json:"location"`
	Attendees               []Attendee `json:"attendees"`
	Organizer               *Organizer `json:"organizer"`
	GuestsCanSeeOtherGuests bool       `json:"guestsCanSeeOtherGuests"`
	GuestsCanModify         bool       `json:"guestsCanModify"`
	GuestsCanInviteOthers   bool       `json:"guestsCanInviteOthers"`
}

// MarshalJSON writes dates for all-day events and RFC 3339 instants otherwise.
func (e Event) MarshalJSON() ([]byte, error) {
	attendees := e.Attendees
	if attendees == nil {
		attendees = []Attendee{}
	}
	return json.Marshal(eventJSON{
		ID:                      e.ID,
		Title:                   e.Title,
		Start:                   e.StartValue(),
		End:                     e.EndValue(),
		AllDay:                  e.AllDay,
		Description:             e.Description,
		Location:                e.Location,
		Attendees:               attendees,
		Organizer:               e.Organizer,
		GuestsCanSeeOtherGuests: e.GuestsCanSeeOtherGuests,
		GuestsCanModify:         e.GuestsCanModify,
		GuestsCanInviteOthers:   e.GuestsCanInviteOthers,
	})
}

// EventAttendees is the per-event attendee view.
type EventAttendees struct {
	EventTitle      string     `json:"eventTitle"`
	Attendees       []Attendee `json:"attendees"`
	Organizer       *Organizer `json:"organizer"`
	CanSeeAttendees bool       `json:"canSeeAttendees"`
}
