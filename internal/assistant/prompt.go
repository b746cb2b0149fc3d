package assistant

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"calassist/internal/models"
)

const basePrompt = "You are a helpful calendar assistant. You help users manage their schedule, " +
	"analyze their calendar data, and provide insights about their meetings and time management."

const capabilitiesPrompt = `You can help with:
1. Analyzing meeting patterns and time spent in meetings
2. Drafting professional emails for scheduling meetings
3. Suggesting schedule optimizations and time blocking strategies
4. Providing insights about meeting frequency and duration
5. Helping with calendar organization and productivity tips
6. Suggesting email recipients from meeting attendees
7. Analyzing attendee patterns and meeting dynamics

IMPORTANT: When users ask for email drafting, provide a complete, professional email draft directly in your response. Include:
- Subject line
- Professional greeting
- Clear purpose and context
- Request for availability or action
- Professional closing
- Your name

If they mention a specific recipient, use that. If they mention recent meeting attendees, suggest drafting to those people. Always be conversational, helpful, and provide actionable advice.`

// NoAttendeeData is returned instead of an attendee analysis when there is nothing to analyze.
const NoAttendeeData = "No attendee data available for analysis."

// systemPrompt renders the instructions plus, when available, the calendar context.
func systemPrompt(payload *models.ContextPayload) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if payload != nil {
		fmt.Fprintf(&b, "\n\nCurrent calendar context:\n- Total events: %d\n- Meeting statistics: %s\n- Recent events: %s\n\n"+
			"Use this calendar data to provide specific, personalized responses.",
			payload.EventCount, indentJSON(payload.Stats), indentJSON(payload.Events))

		if len(payload.Attendees) > 0 {
			b.WriteString("\n\nAvailable attendees for this week:")
			for _, a := range payload.Attendees {
				fmt.Fprintf(&b, "\n- %s (%s) - %d meetings", a.DisplayName, a.Email, a.MeetingCount)
			}
		}
	}

	b.WriteString("\n\n")
	b.WriteString(capabilitiesPrompt)
	return b.String()
}

func meetingAnalysisPrompt(payload *models.ContextPayload) string {
	stats := payload.Stats
	var b strings.Builder
	b.WriteString("Analyze the following meeting data and provide insights:\n\nMeeting Statistics:\n")
	fmt.Fprintf(&b, "- Total meetings: %d\n", stats.TotalMeetings)
	fmt.Fprintf(&b, "- Total hours: %g\n", stats.TotalHours)
	fmt.Fprintf(&b, "- Average meeting length: %g hours\n", stats.AverageMeetingLength)
	fmt.Fprintf(&b, "- Meetings by day: %s\n", compactJSON(stats.MeetingsByDay))
	fmt.Fprintf(&b, "- Total attendees: %d\n", stats.TotalAttendees)
	fmt.Fprintf(&b, "- Unique attendees: %d\n", stats.UniqueAttendees)
	fmt.Fprintf(&b, "- Average attendees per meeting: %g\n", stats.AverageAttendeesPerMeeting)

	if len(payload.Attendees) > 0 {
		var top []string
		for _, a := range mostFrequent(payload.Attendees, 3) {
			top = append(top, fmt.Sprintf("%s (%d meetings)", a.DisplayName, a.MeetingCount))
		}
		b.WriteString("\nAttendee Analysis:\n")
		fmt.Fprintf(&b, "- Total unique attendees: %d\n", len(payload.Attendees))
		fmt.Fprintf(&b, "- Most frequent attendees: %s\n", strings.Join(top, ", "))
	}

	b.WriteString(`
Provide insights about:
1. Meeting patterns and efficiency
2. Attendee engagement and collaboration
3. Potential optimizations
4. Time management suggestions
5. Productivity recommendations
6. Communication patterns with attendees`)
	return b.String()
}

func attendeePatternPrompt(payload *models.ContextPayload) string {
	var b strings.Builder
	b.WriteString("Analyze the attendee patterns from your recent meetings:\n")
	for _, a := range payload.Attendees {
		fmt.Fprintf(&b, "\n- %s (%s): %d meetings\n  Recent meetings: %s\n",
			a.DisplayName, a.Email, a.MeetingCount, strings.Join(a.RecentTitles, ", "))
	}
	b.WriteString(`
Provide insights about:
1. Most frequent collaborators
2. Meeting types and purposes
3. Communication patterns
4. Potential for relationship building
5. Suggestions for follow-up communications`)
	return b.String()
}

// mostFrequent returns up to n attendees with the most meetings, keeping name order on ties.
func mostFrequent(attendees []models.AttendeeSummary, n int) []models.AttendeeSummary {
	sorted := append([]models.AttendeeSummary(nil), attendees...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MeetingCount > sorted[j].MeetingCount
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
