package insights

import (
	"strings"

	"calassist/internal/models"
)

// DefaultInternalDomains is the allow-list used when none is configured.
var DefaultInternalDomains = []string{"gmail.com", "google.com"}

// Categorizer splits attendee occurrences into internal and external by email domain.
//
// This is a best-effort heuristic: an internal colleague using an address outside
// the allow-list is reported as external, and anyone on an allow-listed public
// domain is reported as internal.
type Categorizer struct {
	domains map[string]struct{}
}

// NewCategorizer builds a categorizer for the given domains (case-insensitive).
// An empty list falls back to DefaultInternalDomains.
func NewCategorizer(internalDomains []string) *Categorizer {
	if len(internalDomains) == 0 {
		internalDomains = DefaultInternalDomains
	}
	domains := make(map[string]struct{}, len(internalDomains))
	for _, d := range internalDomains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))
		if d != "" {
			domains[d] = struct{}{}
		}
	}
	return &Categorizer{domains: domains}
}

// IsInternal reports whether email belongs to an allow-listed domain.
func (c *Categorizer) IsInternal(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	_, ok := c.domains[strings.ToLower(email[at+1:])]
	return ok
}

// Categorize emits one record per attendee occurrence; the same person appears
// once for every meeting they attend.
func (c *Categorizer) Categorize(events []*models.Event) models.CategorizedAttendees {
	result := models.CategorizedAttendees{
		Internal:  []models.AttendeeRecord{},
		External:  []models.AttendeeRecord{},
		Recurring: []models.AttendeeRecord{},
	}

	for _, event := range events {
		for _, attendee := range event.Participants() {
			record := models.AttendeeRecord{
				Email:       attendee.Email,
				DisplayName: attendee.DisplayName,
				EventTitle:  event.Title,
				EventID:     event.ID,
				Start:       event.StartValue(),
				End:         event.EndValue(),
			}
			if c.IsInternal(attendee.Email) {
				result.Internal = append(result.Internal, record)
			} else {
				result.External = append(result.External, record)
			}
		}
	}
	return result
}
