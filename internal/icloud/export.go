package icloud

import (
	"fmt"
	"io"
	"time"

	"calassist/internal/models"

	"github.com/emersion/go-ical"
)

const productID = "-//calassist//EN"

var responseToPartStat = map[string]string{
	"accepted":    "ACCEPTED",
	"declined":    "DECLINED",
	"tentative":   "TENTATIVE",
	"needsAction": "NEEDS-ACTION",
}

// WriteICS encodes normalized events as an iCalendar stream.
func WriteICS(w io.Writer, events []*models.Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	for _, event := range events {
		cal.Children = append(cal.Children, toICal(event, stamp))
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode events to iCal format: %w", err)
	}
	return nil
}

// toICal converts an internal Event model to an ical.Component (VEvent).
func toICal(event *models.Event, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, event.ID)
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	if event.AllDay {
		ve.Props.SetDate(ical.PropDateTimeStart, event.Start)
		ve.Props.SetDate(ical.PropDateTimeEnd, event.End)
	} else {
		ve.Props.SetDateTime(ical.PropDateTimeStart, event.Start)
		ve.Props.SetDateTime(ical.PropDateTimeEnd, event.End)
	}

	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}
	if event.Organizer != nil && event.Organizer.Email != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.Value = "mailto:" + event.Organizer.Email
		if event.Organizer.DisplayName != "" {
			p.Params.Set(ical.ParamCommonName, event.Organizer.DisplayName)
		}
		ve.Props.Add(p)
	}
	for _, attendee := range event.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + attendee.Email
		if attendee.DisplayName != "" {
			p.Params.Set(ical.ParamCommonName, attendee.DisplayName)
		}
		if status, ok := responseToPartStat[attendee.ResponseStatus]; ok {
			p.Params.Set(ical.ParamParticipationStatus, status)
		}
		if attendee.Optional {
			p.Params.Set(ical.ParamRole, "OPT-PARTICIPANT")
		}
		ve.Props.Add(p)
	}
	return ve
}
