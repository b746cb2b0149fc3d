package insights

import (
	"context"

	"calassist/internal/models"

	"golang.org/x/sync/errgroup"
)

// DefaultContextEvents is how many example events the assistant sees.
const DefaultContextEvents = 5

// recentTitles is how many meeting titles are kept per attendee summary.
const recentTitles = 3

// Assemble bundles the derived data for the text-generation service. Only the
// event list is truncated, to at most limit entries (DefaultContextEvents when limit <= 0).
func Assemble(events []*models.Event, stats models.MeetingStatistics, attendees []models.AttendeeProfile, limit int) models.ContextPayload {
	if limit <= 0 {
		limit = DefaultContextEvents
	}
	examples := events
	if len(examples) > limit {
		examples = examples[:limit]
	}

	summaries := make([]models.AttendeeSummary, 0, len(attendees))
	for _, a := range attendees {
		var titles []string
		for i, m := range a.Meetings {
			if i == recentTitles {
				break
			}
			titles = append(titles, m.Title)
		}
		summaries = append(summaries, models.AttendeeSummary{
			DisplayName:  a.DisplayName,
			Email:        a.Email,
			MeetingCount: len(a.Meetings),
			RecentTitles: titles,
		})
	}

	return models.ContextPayload{
		EventCount: len(events),
		Stats:      stats,
		Events:     append([]*models.Event{}, examples...),
		Attendees:  summaries,
	}
}

// Options configures Analyze.
type Options struct {
	Stats       *StatsCalculator
	Categorizer *Categorizer
}

// Report is every view derived from one batch of events.
type Report struct {
	Events      []*models.Event
	Stats       models.MeetingStatistics
	Attendees   []models.AttendeeProfile
	Categorized models.CategorizedAttendees
}

// Context assembles the assistant payload from the report.
func (r *Report) Context(limit int) models.ContextPayload {
	return Assemble(r.Events, r.Stats, r.Attendees, limit)
}

// Analyze runs the aggregator, categorizer and statistics calculator concurrently
// over the same events. It only fails when ctx is done before they finish.
func Analyze(ctx context.Context, events []*models.Event, opts Options) (*Report, error) {
	if opts.Stats == nil {
		opts.Stats = NewStatsCalculator(nil)
	}
	if opts.Categorizer == nil {
		opts.Categorizer = NewCategorizer(nil)
	}

	report := &Report{Events: events}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report.Attendees = Aggregate(events)
		return ctx.Err()
	})
	g.Go(func() error {
		report.Categorized = opts.Categorizer.Categorize(events)
		return ctx.Err()
	})
	g.Go(func() error {
		report.Stats = opts.Stats.Compute(events)
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}
