package insights

import (
	"strings"
	"time"

	"calassist/internal/models"
)

// dayLabelLayout renders days as month/day/year without padding.
const dayLabelLayout = "1/2/2006"

// StatsCalculator computes meeting statistics. Day labels use Location.
type StatsCalculator struct {
	Location *time.Location
}

// NewStatsCalculator returns a calculator labelling days in loc (UTC when nil).
func NewStatsCalculator(loc *time.Location) *StatsCalculator {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsCalculator{Location: loc}
}

// Compute walks the events once. All-day events are ignored.
//
// Durations are not validated: an event ending before it starts contributes a
// negative duration to the totals and may become the shortest meeting.
func (s *StatsCalculator) Compute(events []*models.Event) models.MeetingStatistics {
	stats := models.MeetingStatistics{MeetingsByDay: map[string]int{}}
	unique := make(map[string]struct{})

	for _, event := range events {
		if event.AllDay {
			continue
		}

		duration := event.Duration().Hours()
		participants := event.Participants()

		stats.TotalMeetings++
		stats.TotalHours += duration
		stats.TotalAttendees += len(participants)
		for _, a := range participants {
			unique[strings.ToLower(a.Email)] = struct{}{}
		}

		stats.MeetingsByDay[event.Start.In(s.Location).Format(dayLabelLayout)]++

		if stats.LongestMeeting == nil || duration > stats.LongestMeeting.Duration {
			stats.LongestMeeting = summarize(event, duration, len(participants))
		}
		if stats.ShortestMeeting == nil || duration < stats.ShortestMeeting.Duration {
			stats.ShortestMeeting = summarize(event, duration, len(participants))
		}
	}

	if stats.TotalMeetings > 0 {
		stats.AverageMeetingLength = stats.TotalHours / float64(stats.TotalMeetings)
		stats.AverageAttendeesPerMeeting = float64(stats.TotalAttendees) / float64(stats.TotalMeetings)
	}
	stats.UniqueAttendees = len(unique)

	return stats
}

func summarize(event *models.Event, duration float64, attendees int) *models.MeetingSummary {
	return &models.MeetingSummary{Title: event.Title, Duration: duration, Attendees: attendees}
}
