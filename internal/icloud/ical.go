package icloud

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"google.golang.org/api/calendar/v3"
)

const (
	dateLayout        = "2006-01-02"
	instanceLayout    = "20060102T150405Z"
	instanceDayLayout = "20060102"
)

var partStatToResponse = map[string]string{
	"ACCEPTED":     "accepted",
	"DECLINED":     "declined",
	"TENTATIVE":    "tentative",
	"NEEDS-ACTION": "needsAction",
}

// fromICal converts the VEVENTs of one calendar object into raw Google-shaped events.
// Recurring masters are expanded to the instances that start inside [from, to];
// instances overridden by a RECURRENCE-ID component are replaced by the override.
func fromICal(cal *ical.Calendar, selfEmail string, loc *time.Location, from, to time.Time) ([]*calendar.Event, error) {
	var (
		masters   []ical.Event
		overrides []ical.Event
	)
	for _, ev := range cal.Events() {
		if ev.Props.Get(ical.PropRecurrenceID) != nil {
			overrides = append(overrides, ev)
		} else {
			masters = append(masters, ev)
		}
	}

	overridden := make(map[string]bool, len(overrides))
	var items []*calendar.Event
	for _, ev := range overrides {
		recurrenceID, err := ev.Props.Get(ical.PropRecurrenceID).DateTime(loc)
		if err != nil {
			return nil, fmt.Errorf("invalid RECURRENCE-ID: %w", err)
		}
		uid, _ := ev.Props.Text(ical.PropUID)
		overridden[instanceKey(uid, recurrenceID)] = true

		item, err := convertEvent(ev, selfEmail, loc)
		if err != nil {
			return nil, err
		}
		if !overlaps(item, from, to, loc) {
			continue
		}
		item.Id = instanceID(uid, recurrenceID, item.Start.Date != "")
		items = append(items, item)
	}

	for _, ev := range masters {
		item, err := convertEvent(ev, selfEmail, loc)
		if err != nil {
			return nil, err
		}

		set, err := ev.RecurrenceSet(loc)
		if err != nil {
			return nil, fmt.Errorf("invalid recurrence rule in %s: %w", item.Id, err)
		}
		if set == nil {
			items = append(items, item)
			continue
		}

		start, _ := ev.DateTimeStart(loc)
		end, _ := ev.DateTimeEnd(loc)
		length := end.Sub(start)
		allDay := item.Start.Date != ""

		for _, occurrence := range set.Between(from, to, true) {
			if overridden[instanceKey(item.Id, occurrence)] {
				continue
			}
			instance := *item
			instance.Id = instanceID(item.Id, occurrence, allDay)
			instance.Start = eventDateTime(occurrence, allDay)
			instance.End = eventDateTime(occurrence.Add(length), allDay)
			items = append(items, &instance)
		}
	}
	return items, nil
}

func convertEvent(ev ical.Event, selfEmail string, loc *time.Location) (*calendar.Event, error) {
	uid, _ := ev.Props.Text(ical.PropUID)

	startProp := ev.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		// Left for the normalizer to reject as malformed.
		return &calendar.Event{Id: uid, ICalUID: uid}, nil
	}
	allDay := startProp.ValueType() == ical.ValueDate

	start, err := ev.DateTimeStart(loc)
	if err != nil {
		return nil, fmt.Errorf("invalid DTSTART in %s: %w", uid, err)
	}
	end, err := ev.DateTimeEnd(loc)
	if err != nil {
		return nil, fmt.Errorf("invalid DTEND in %s: %w", uid, err)
	}

	summary, _ := ev.Props.Text(ical.PropSummary)
	description, _ := ev.Props.Text(ical.PropDescription)
	location, _ := ev.Props.Text(ical.PropLocation)

	item := &calendar.Event{
		Id:          uid,
		ICalUID:     uid,
		Summary:     summary,
		Description: description,
		Location:    location,
		Start:       eventDateTime(start, allDay),
		End:         eventDateTime(end, allDay),
	}

	var organizerEmail string
	if prop := ev.Props.Get(ical.PropOrganizer); prop != nil {
		organizerEmail = mailAddress(prop.Value)
		item.Organizer = &calendar.EventOrganizer{
			Email:       organizerEmail,
			DisplayName: prop.Params.Get(ical.ParamCommonName),
			Self:        isSelf(organizerEmail, selfEmail),
		}
	}

	for _, prop := range ev.Props.Values(ical.PropAttendee) {
		email := mailAddress(prop.Value)
		role := strings.ToUpper(prop.Params.Get(ical.ParamRole))
		item.Attendees = append(item.Attendees, &calendar.EventAttendee{
			Email:          email,
			DisplayName:    prop.Params.Get(ical.ParamCommonName),
			ResponseStatus: partStatToResponse[strings.ToUpper(prop.Params.Get(ical.ParamParticipationStatus))],
			Self:           isSelf(email, selfEmail),
			Organizer:      organizerEmail != "" && strings.EqualFold(email, organizerEmail),
			Optional:       role == "OPT-PARTICIPANT" || role == "NON-PARTICIPANT",
		})
	}
	return item, nil
}

func eventDateTime(t time.Time, allDay bool) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: t.Format(dateLayout)}
	}
	return &calendar.EventDateTime{DateTime: t.Format(time.RFC3339)}
}

// overlaps reports whether an override instance intersects the queried window.
func overlaps(item *calendar.Event, from, to time.Time, loc *time.Location) bool {
	start, okStart := parseRaw(item.Start, loc)
	end, okEnd := parseRaw(item.End, loc)
	if !okStart {
		return true
	}
	if !okEnd {
		end = start
	}
	return start.Before(to) && !end.Before(from)
}

func parseRaw(t *calendar.EventDateTime, loc *time.Location) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	if t.DateTime != "" {
		v, err := time.Parse(time.RFC3339, t.DateTime)
		return v, err == nil
	}
	v, err := time.ParseInLocation(dateLayout, t.Date, loc)
	return v, err == nil
}

func instanceKey(uid string, at time.Time) string {
	return uid + "@" + at.UTC().Format(instanceLayout)
}

func instanceID(uid string, at time.Time, allDay bool) string {
	if allDay {
		return uid + "_" + at.Format(instanceDayLayout)
	}
	return uid + "_" + at.UTC().Format(instanceLayout)
}

func mailAddress(value string) string {
	if len(value) >= len("mailto:") && strings.EqualFold(value[:len("mailto:")], "mailto:") {
		return value[len("mailto:"):]
	}
	return value
}

func isSelf(email, selfEmail string) bool {
	return selfEmail != "" && strings.EqualFold(email, selfEmail)
}
