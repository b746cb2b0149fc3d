package insights

import (
	"context"
	"testing"
	"time"

	"calassist/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monday is 2025-03-03 09:00 UTC.
var monday = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func attendee(email, name string) models.Attendee {
	return models.Attendee{Email: email, DisplayName: name, ResponseStatus: models.ResponseNeedsAction}
}

func self(email string) models.Attendee {
	a := attendee(email, "me")
	a.Self = true
	return a
}

func timed(id, title string, start time.Time, length time.Duration, attendees ...models.Attendee) *models.Event {
	return &models.Event{
		ID:        id,
		Title:     title,
		Start:     start,
		End:       start.Add(length),
		Attendees: attendees,
	}
}

func allDay(id, title string, day time.Time, attendees ...models.Attendee) *models.Event {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return &models.Event{
		ID:        id,
		Title:     title,
		Start:     start,
		End:       start.AddDate(0, 0, 1),
		AllDay:    true,
		Attendees: attendees,
	}
}

func TestEmptyInput(t *testing.T) {
	stats := NewStatsCalculator(time.UTC).Compute(nil)
	assert.Equal(t, models.MeetingStatistics{MeetingsByDay: map[string]int{}}, stats)
	assert.Nil(t, stats.LongestMeeting)
	assert.Nil(t, stats.ShortestMeeting)

	profiles := Aggregate(nil)
	assert.NotNil(t, profiles)
	assert.Empty(t, profiles)

	categorized := NewCategorizer(nil).Categorize([]*models.Event{})
	assert.Empty(t, categorized.Internal)
	assert.Empty(t, categorized.External)
	assert.NotNil(t, categorized.Recurring)
}

func TestSingleMeetingExcludesSelf(t *testing.T) {
	events := []*models.Event{
		timed("e1", "1:1", monday, time.Hour, attendee("a@x.com", "a"), self("me@x.com")),
	}

	stats := NewStatsCalculator(time.UTC).Compute(events)
	assert.Equal(t, 1, stats.TotalMeetings)
	assert.InDelta(t, 1.0, stats.TotalHours, 1e-9)
	assert.Equal(t, 1, stats.UniqueAttendees)
	assert.Equal(t, 1, stats.TotalAttendees)
	assert.InDelta(t, 1.0, stats.AverageAttendeesPerMeeting, 1e-9)
	assert.Equal(t, map[string]int{"3/3/2025": 1}, stats.MeetingsByDay)
	require.NotNil(t, stats.LongestMeeting)
	assert.Equal(t, models.MeetingSummary{Title: "1:1", Duration: 1, Attendees: 1}, *stats.LongestMeeting)

	profiles := Aggregate(events)
	require.Len(t, profiles, 1)
	assert.Equal(t, "a@x.com", profiles[0].Email)
	assert.Equal(t, []models.MeetingRef{{
		EventID: "e1",
		Title:   "1:1",
		Start:   "2025-03-03T09:00:00Z",
		End:     "2025-03-03T10:00:00Z",
	}}, profiles[0].Meetings)
}

func TestAggregateMergesEmailCase(t *testing.T) {
	events := []*models.Event{
		timed("e1", "Kickoff", monday, time.Hour, attendee("Bob@X.com", "Bob")),
		timed("e2", "Follow-up", monday.Add(24*time.Hour), time.Hour, attendee("bob@x.com", "bob lowercase")),
	}

	profiles := Aggregate(events)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Bob@X.com", profiles[0].Email)
	assert.Equal(t, "Bob", profiles[0].DisplayName)
	require.Len(t, profiles[0].Meetings, 2)
	assert.Equal(t, "e1", profiles[0].Meetings[0].EventID)
	assert.Equal(t, "e2", profiles[0].Meetings[1].EventID)

	stats := NewStatsCalculator(time.UTC).Compute(events)
	assert.Equal(t, 2, stats.TotalAttendees)
	assert.Equal(t, 1, stats.UniqueAttendees)
}

func TestAggregateCountsRepeatedOccurrences(t *testing.T) {
	events := []*models.Event{
		timed("e1", "Sync", monday, time.Hour, attendee("a@x.com", "A"), attendee("A@x.com", "A again")),
	}

	profiles := Aggregate(events)
	require.Len(t, profiles, 1)
	assert.Len(t, profiles[0].Meetings, 2)
}

func TestAggregateSortsByDisplayName(t *testing.T) {
	events := []*models.Event{
		timed("e1", "Mixed", monday, time.Hour,
			attendee("frank@x.com", "Frank"),
			attendee("emile@x.com", "Émile"),
			attendee("bob@x.com", "Bob"),
			attendee("sam1@x.com", "Sam"),
			attendee("alice@x.com", "alice"),
			attendee("eddie@x.com", "Eddie"),
			attendee("sam2@x.com", "Sam"),
		),
	}

	profiles := Aggregate(events)
	var emails []string
	for _, p := range profiles {
		emails = append(emails, p.Email)
	}
	assert.Equal(t, []string{
		"alice@x.com",
		"bob@x.com",
		"eddie@x.com",
		"emile@x.com",
		"frank@x.com",
		"sam1@x.com",
		"sam2@x.com",
	}, emails)
}

func TestAllDayEventsExcludedFromStats(t *testing.T) {
	events := []*models.Event{
		allDay("holiday", "Holiday", monday, attendee("team@x.com", "team")),
		timed("e1", "Planning", monday, 2*time.Hour, attendee("a@x.com", "a")),
	}

	stats := NewStatsCalculator(time.UTC).Compute(events)
	assert.Equal(t, 1, stats.TotalMeetings)
	assert.InDelta(t, 2.0, stats.TotalHours, 1e-9)
	assert.Equal(t, 1, stats.TotalAttendees)
	assert.Equal(t, 1, stats.UniqueAttendees)

	// Attendee views still cover all-day events.
	assert.Len(t, Aggregate(events), 2)
}

func TestNegativeDurationIsKept(t *testing.T) {
	events := []*models.Event{
		timed("ok", "Normal", monday, time.Hour),
		timed("inverted", "Inverted", monday.Add(3*time.Hour), -30*time.Minute),
	}

	stats := NewStatsCalculator(time.UTC).Compute(events)
	assert.InDelta(t, 0.5, stats.TotalHours, 1e-9)
	require.NotNil(t, stats.ShortestMeeting)
	assert.Equal(t, "Inverted", stats.ShortestMeeting.Title)
	assert.InDelta(t, -0.5, stats.ShortestMeeting.Duration, 1e-9)
	assert.Equal(t, "Normal", stats.LongestMeeting.Title)
}

func TestExtremesKeepFirstOnTies(t *testing.T) {
	events := []*models.Event{
		timed("a", "First", monday, time.Hour),
		timed("b", "Second", monday.Add(2*time.Hour), time.Hour),
	}

	stats := NewStatsCalculator(time.UTC).Compute(events)
	assert.Equal(t, "First", stats.LongestMeeting.Title)
	assert.Equal(t, "First", stats.ShortestMeeting.Title)
}

func TestDayLabelsUseLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 20:00 UTC on Monday is Tuesday morning in Tokyo.
	events := []*models.Event{timed("late", "Late call", monday.Add(11*time.Hour), time.Hour)}

	assert.Equal(t, map[string]int{"3/3/2025": 1}, NewStatsCalculator(time.UTC).Compute(events).MeetingsByDay)
	assert.Equal(t, map[string]int{"3/4/2025": 1}, NewStatsCalculator(tokyo).Compute(events).MeetingsByDay)
}

func TestStatsInvariants(t *testing.T) {
	events := []*models.Event{
		timed("1", "A", monday, 30*time.Minute, attendee("a@x.com", "a"), attendee("b@x.com", "b"), self("me@x.com")),
		timed("2", "B", monday.Add(2*time.Hour), 90*time.Minute, attendee("A@X.COM", "a")),
		timed("3", "C", monday.Add(26*time.Hour), 45*time.Minute),
		allDay("4", "D", monday, attendee("c@x.com", "c")),
		timed("5", "E", monday.Add(50*time.Hour), 2*time.Hour, attendee("c@x.com", "c"), attendee("d@y.org", "d")),
	}

	stats := NewStatsCalculator(time.UTC).Compute(events)

	sum := 0
	for _, n := range stats.MeetingsByDay {
		sum += n
	}
	assert.Equal(t, stats.TotalMeetings, sum)
	assert.Equal(t, 4, stats.TotalMeetings)
	assert.InDelta(t, stats.TotalHours/float64(stats.TotalMeetings), stats.AverageMeetingLength, 1e-9)
	assert.InDelta(t, float64(stats.TotalAttendees)/float64(stats.TotalMeetings), stats.AverageAttendeesPerMeeting, 1e-9)
	assert.LessOrEqual(t, stats.UniqueAttendees, stats.TotalAttendees)
	assert.Equal(t, 5, stats.TotalAttendees)
	assert.Equal(t, 4, stats.UniqueAttendees)
	assert.Equal(t, "E", stats.LongestMeeting.Title)
	assert.Equal(t, "A", stats.ShortestMeeting.Title)
}

func TestCategorize(t *testing.T) {
	events := []*models.Event{
		timed("e1", "Partner sync", monday, time.Hour,
			attendee("ann@Gmail.com", "Ann"),
			attendee("vendor@partner.io", "Vendor"),
			self("me@google.com"),
		),
		timed("e2", "Review", monday.Add(time.Hour), time.Hour,
			attendee("ann@gmail.com", "Ann"),
			attendee("spoof@notgoogle.com", "Spoof"),
		),
	}

	result := NewCategorizer(nil).Categorize(events)
	require.Len(t, result.Internal, 2)
	require.Len(t, result.External, 2)
	assert.Empty(t, result.Recurring)

	assert.Equal(t, models.AttendeeRecord{
		Email:       "ann@Gmail.com",
		DisplayName: "Ann",
		EventTitle:  "Partner sync",
		EventID:     "e1",
		Start:       "2025-03-03T09:00:00Z",
		End:         "2025-03-03T10:00:00Z",
	}, result.Internal[0])
	assert.Equal(t, "e2", result.Internal[1].EventID)
	assert.Equal(t, "vendor@partner.io", result.External[0].Email)
	assert.Equal(t, "spoof@notgoogle.com", result.External[1].Email)
}

func TestCategorizerCustomDomains(t *testing.T) {
	c := NewCategorizer([]string{"@Acme.com", " "})
	assert.True(t, c.IsInternal("jane@acme.COM"))
	assert.False(t, c.IsInternal("jane@gmail.com"))
	assert.False(t, c.IsInternal("not-an-email"))
}

func TestAssemble(t *testing.T) {
	var events []*models.Event
	for i := 0; i < 7; i++ {
		events = append(events, timed(string(rune('a'+i)), "Meeting", monday.Add(time.Duration(i)*time.Hour), time.Hour, attendee("a@x.com", "a")))
	}
	stats := NewStatsCalculator(time.UTC).Compute(events)
	profiles := Aggregate(events)

	payload := Assemble(events, stats, profiles, 0)
	assert.Equal(t, 7, payload.EventCount)
	assert.Len(t, payload.Events, DefaultContextEvents)
	assert.Equal(t, "a", payload.Events[0].ID)
	assert.Equal(t, stats, payload.Stats)
	require.Len(t, payload.Attendees, 1)
	assert.Equal(t, 7, payload.Attendees[0].MeetingCount)
	assert.Len(t, payload.Attendees[0].RecentTitles, 3)

	assert.Len(t, Assemble(events, stats, profiles, 10).Events, 7)
	assert.Empty(t, Assemble(nil, models.MeetingStatistics{}, nil, 5).Events)
}

func TestAnalyze(t *testing.T) {
	events := []*models.Event{
		allDay("holiday", "Holiday", monday),
		timed("e1", "Planning", monday, 2*time.Hour, attendee("a@gmail.com", "a"), attendee("b@corp.io", "b")),
	}

	report, err := Analyze(context.Background(), events, Options{})
	require.NoError(t, err)

	assert.Len(t, report.Events, 2)
	assert.Equal(t, 1, report.Stats.TotalMeetings)
	assert.Len(t, report.Attendees, 2)
	assert.Len(t, report.Categorized.Internal, 1)
	assert.Len(t, report.Categorized.External, 1)
	assert.Equal(t, 2, report.Context(5).EventCount)
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Analyze(ctx, nil, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
