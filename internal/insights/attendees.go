// Package insights derives statistics and attendee groupings from normalized events.
//
// Every function here is pure: inputs are never mutated and results share no
// state, so callers may run them concurrently over the same slice.
package insights

import (
	"sort"
	"strings"

	"calassist/internal/models"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Aggregate builds one profile per unique (lowercased) attendee email, recording
// every event the attendee appears in. Profiles are sorted by display name.
func Aggregate(events []*models.Event) []models.AttendeeProfile {
	index := make(map[string]int)
	profiles := make([]models.AttendeeProfile, 0)

	for _, event := range events {
		ref := models.MeetingRef{
			EventID: event.ID,
			Title:   event.Title,
			Start:   event.StartValue(),
			End:     event.EndValue(),
		}
		for _, attendee := range event.Participants() {
			key := strings.ToLower(attendee.Email)
			i, ok := index[key]
			if !ok {
				i = len(profiles)
				index[key] = i
				profiles = append(profiles, models.AttendeeProfile{
					Email:       attendee.Email,
					DisplayName: attendee.DisplayName,
				})
			}
			profiles[i].Meetings = append(profiles[i].Meetings, ref)
		}
	}

	sortByDisplayName(profiles)
	return profiles
}

func sortByDisplayName(profiles []models.AttendeeProfile) {
	c := collate.New(language.English)
	sort.SliceStable(profiles, func(i, j int) bool {
		return c.CompareString(profiles[i].DisplayName, profiles[j].DisplayName) < 0
	})
}
