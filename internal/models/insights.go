package models

import "time"

// MeetingRef points at one event an attendee took part in.
type MeetingRef struct {
	EventID string `json:"eventId"`
	Title   string `json:"title"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// AttendeeProfile is one unique attendee across a batch of events.
type AttendeeProfile struct {
	Email       string       `json:"email"`
	DisplayName string       `json:"displayName"`
	Meetings    []MeetingRef `json:"meetings"`
}

// AttendeeRecord is a single attendee occurrence with its event context.
type AttendeeRecord struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	EventTitle  string `json:"eventTitle"`
	EventID     string `json:"eventId"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

// CategorizedAttendees splits attendee occurrences by email domain.
// Recurring is never populated; it is kept so the output shape stays stable.
type CategorizedAttendees struct {
	Internal  []AttendeeRecord `json:"internal"`
	External  []AttendeeRecord `json:"external"`
	Recurring []AttendeeRecord `json:"recurring"`
}

// MeetingSummary describes the longest or shortest meeting.
type MeetingSummary struct {
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"` // hours
	Attendees int     `json:"attendees"`
}

// MeetingStatistics aggregates timed events. All-day events are not counted.
type MeetingStatistics struct {
	TotalMeetings              int             `json:"totalMeetings"`
	TotalHours                 float64         `json:"totalHours"`
	AverageMeetingLength       float64         `json:"averageMeetingLength"`
	MeetingsByDay              map[string]int  `json:"meetingsByDay"`
	LongestMeeting             *MeetingSummary `json:"longestMeeting"`
	ShortestMeeting            *MeetingSummary `json:"shortestMeeting"`
	TotalAttendees             int             `json:"totalAttendees"`
	UniqueAttendees            int             `json:"uniqueAttendees"`
	AverageAttendeesPerMeeting float64         `json:"averageAttendeesPerMeeting"`
}

// AttendeeSummary is an attendee as shown to the assistant.
type AttendeeSummary struct {
	DisplayName  string `json:"displayName"`
	Email        string `json:"email"`
	MeetingCount int    `json:"meetingCount"`
	// RecentTitles holds the first few meeting titles, in processing order.
	RecentTitles []string `json:"recentTitles,omitempty"`
}

// ContextPayload is the calendar context handed to the text-generation service.
type ContextPayload struct {
	EventCount int               `json:"eventCount"`
	Stats      MeetingStatistics `json:"stats"`
	Events     []*Event          `json:"events"`
	Attendees  []AttendeeSummary `json:"attendees"`
}

// ChatEntry is one exchange with the assistant.
type ChatEntry struct {
	ID          string    `json:"id"`
	UserMessage string    `json:"userMessage"`
	AIResponse  string    `json:"aiResponse"`
	Timestamp   time.Time `json:"timestamp"`
}
