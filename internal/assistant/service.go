package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"calassist/internal/google"
	"calassist/internal/insights"
	"calassist/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"google.golang.org/api/calendar/v3"
)

const (
	weekLength = 7 * 24 * time.Hour
	cacheSize  = 16
)

var (
	ErrNoSources    = errors.New("no calendar sources configured")
	ErrNoResponder  = errors.New("no text-generation service configured")
	ErrEmptyMessage = errors.New("message is required")
	ErrNotSupported = errors.New("no source supports single event lookup")
)

// EventSource lists raw events in a time window.
type EventSource interface {
	Name() string
	ListEvents(ctx context.Context, from, to time.Time) ([]*calendar.Event, error)
}

// EventGetter is implemented by sources that can fetch a single event.
type EventGetter interface {
	GetEvent(ctx context.Context, eventID string) (*calendar.Event, error)
}

// Options tunes normalization and aggregation.
type Options struct {
	Location          *time.Location
	MalformedPolicy   models.MalformedPolicy
	InternalDomains   []string
	ContextEventLimit int
	CacheTTL          time.Duration
	// SelfEmails are the user's own addresses across every account. Attendees with
	// one of them count as self even in a copy of the event fetched through another account.
	SelfEmails []string
}

// Service fetches calendar data for a week, derives insights from it and
// answers questions about it.
type Service struct {
	logger      *slog.Logger
	sources     []EventSource
	responder   *Responder
	history     *HistoryStore
	opts        Options
	stats       *insights.StatsCalculator
	categorizer *insights.Categorizer
	cache       *expirable.LRU[string, *insights.Report]
	now         func() time.Time
}

// NewService creates a new Service. responder and history may be nil for commands that don't chat.
func NewService(logger *slog.Logger, sources []EventSource, responder *Responder, history *HistoryStore, opts Options) (*Service, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MalformedPolicy == "" {
		opts.MalformedPolicy = models.MalformedSkip
	}

	s := &Service{
		logger:      logger,
		sources:     sources,
		responder:   responder,
		history:     history,
		opts:        opts,
		stats:       insights.NewStatsCalculator(opts.Location),
		categorizer: insights.NewCategorizer(opts.InternalDomains),
		now:         time.Now,
	}
	if opts.CacheTTL > 0 {
		s.cache = expirable.NewLRU[string, *insights.Report](cacheSize, nil, opts.CacheTTL)
	}
	return s, nil
}

// WeekRange resolves the 7-day window starting at week (YYYY-MM-DD or RFC 3339),
// or the current week starting Sunday midnight when week is empty.
func WeekRange(now time.Time, week string, loc *time.Location) (time.Time, time.Time, error) {
	week = strings.TrimSpace(week)
	if week == "" {
		local := now.In(loc)
		from := time.Date(local.Year(), local.Month(), local.Day()-int(local.Weekday()), 0, 0, 0, 0, loc)
		return from, from.Add(weekLength), nil
	}

	from, err := time.ParseInLocation("2006-01-02", week, loc)
	if err != nil {
		if from, err = time.Parse(time.RFC3339, week); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid week start '%s': want YYYY-MM-DD", week)
		}
	}
	return from, from.Add(weekLength), nil
}

// Events fetches and normalizes the events of a week from every source, ordered by start.
func (s *Service) Events(ctx context.Context, week string) ([]*models.Event, error) {
	from, to, err := WeekRange(s.now(), week, s.opts.Location)
	if err != nil {
		return nil, err
	}
	return s.fetchEvents(ctx, from, to)
}

// Report returns every derived view for a week. Results are cached for CacheTTL.
func (s *Service) Report(ctx context.Context, week string) (*insights.Report, error) {
	from, to, err := WeekRange(s.now(), week, s.opts.Location)
	if err != nil {
		return nil, err
	}

	key := from.Format(time.RFC3339)
	if s.cache != nil {
		if report, ok := s.cache.Get(key); ok {
			s.logger.Debug("Using cached report", "week", key)
			return report, nil
		}
	}

	events, err := s.fetchEvents(ctx, from, to)
	if err != nil {
		return nil, err
	}
	report, err := insights.Analyze(ctx, events, insights.Options{Stats: s.stats, Categorizer: s.categorizer})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze events: %w", err)
	}

	if s.cache != nil {
		s.cache.Add(key, report)
	}
	return report, nil
}

// Event fetches and normalizes one event by ID. Sources are tried in order and the
// first one that has the event wins; the error is returned only when none does.
func (s *Service) Event(ctx context.Context, eventID string) (*models.Event, error) {
	var lastErr error
	for _, source := range s.sources {
		getter, ok := source.(EventGetter)
		if !ok {
			continue
		}
		raw, err := getter.GetEvent(ctx, eventID)
		if err != nil {
			s.logger.Debug("Event not found in source", "source", source.Name(), "eventID", eventID, "error", err)
			lastErr = err
			continue
		}
		event, err := google.ToEvent(raw, s.opts.Location)
		if err != nil {
			return nil, err
		}
		markSelf([]*models.Event{event}, s.selfAddresses([]*calendar.Event{raw}))
		return event, nil
	}
	if lastErr == nil {
		return nil, ErrNotSupported
	}
	return nil, fmt.Errorf("event %s not found in any source: %w", eventID, lastErr)
}

// EventAttendees returns the attendee view of one event.
func (s *Service) EventAttendees(ctx context.Context, eventID string) (*models.EventAttendees, error) {
	event, err := s.Event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &models.EventAttendees{
		EventTitle:      event.Title,
		Attendees:       event.Attendees,
		Organizer:       event.Organizer,
		CanSeeAttendees: event.GuestsCanSeeOtherGuests,
	}, nil
}

// Chat answers message with the current week as context and records the exchange.
// Calendar failures do not prevent an answer; the model then runs without context.
func (s *Service) Chat(ctx context.Context, account, message string) (models.ChatEntry, error) {
	if strings.TrimSpace(message) == "" {
		return models.ChatEntry{}, ErrEmptyMessage
	}
	if s.responder == nil {
		return models.ChatEntry{}, ErrNoResponder
	}

	var payload *models.ContextPayload
	report, err := s.Report(ctx, "")
	if err != nil {
		s.logger.Warn("Failed to fetch calendar data for chat context", "error", err)
	} else {
		p := report.Context(s.opts.ContextEventLimit)
		payload = &p
	}

	response, err := s.responder.Respond(ctx, message, payload)
	if err != nil {
		return models.ChatEntry{}, err
	}

	if s.history == nil {
		return models.ChatEntry{UserMessage: message, AIResponse: response, Timestamp: s.now().UTC()}, nil
	}
	entry, err := s.history.Append(account, message, response)
	if err != nil {
		return models.ChatEntry{}, fmt.Errorf("failed to record chat history: %w", err)
	}
	return entry, nil
}

// AnalyzeMeetings asks the model for insights on a week's meeting statistics.
func (s *Service) AnalyzeMeetings(ctx context.Context, week string) (string, *insights.Report, error) {
	if s.responder == nil {
		return "", nil, ErrNoResponder
	}
	report, err := s.Report(ctx, week)
	if err != nil {
		return "", nil, err
	}
	payload := report.Context(s.opts.ContextEventLimit)
	analysis, err := s.responder.Respond(ctx, meetingAnalysisPrompt(&payload), &payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to analyze meetings: %w", err)
	}
	return analysis, report, nil
}

// AnalyzeAttendees asks the model for insights on who the user meets with.
func (s *Service) AnalyzeAttendees(ctx context.Context, week string) (string, *insights.Report, error) {
	if s.responder == nil {
		return "", nil, ErrNoResponder
	}
	report, err := s.Report(ctx, week)
	if err != nil {
		return "", nil, err
	}
	if len(report.Attendees) == 0 {
		return NoAttendeeData, report, nil
	}
	payload := report.Context(s.opts.ContextEventLimit)
	analysis, err := s.responder.Respond(ctx, attendeePatternPrompt(&payload), &payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to analyze attendees: %w", err)
	}
	return analysis, report, nil
}

// fetchEvents retrieves events from all sources. A failing source is logged and
// skipped unless every source fails.
func (s *Service) fetchEvents(ctx context.Context, from, to time.Time) ([]*models.Event, error) {
	var (
		raw     []*calendar.Event
		lastErr error
		failed  int
	)
	for _, source := range s.sources {
		items, err := source.ListEvents(ctx, from, to)
		if err != nil {
			s.logger.Error("Could not fetch events from source", "source", source.Name(), "error", err)
			lastErr = err
			failed++
			continue
		}
		raw = append(raw, items...)
	}
	if failed == len(s.sources) {
		return nil, fmt.Errorf("failed to fetch calendar events: %w", lastErr)
	}

	self := s.selfAddresses(raw)
	unique := dedupe(raw)
	if dropped := len(raw) - len(unique); dropped > 0 {
		s.logger.Debug("Dropped events seen through more than one calendar", "count", dropped)
	}

	events, err := google.ToEvents(unique, s.opts.Location, s.opts.MalformedPolicy, s.logger)
	if err != nil {
		return nil, err
	}
	markSelf(events, self)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})

	s.logger.Info("Fetched calendar events.", "count", len(events), "from", from, "to", to)
	return events, nil
}

// selfAddresses returns the lowercased addresses of the user: the configured ones plus
// every attendee or organizer that some source flagged as self.
func (s *Service) selfAddresses(items []*calendar.Event) map[string]bool {
	self := make(map[string]bool, len(s.opts.SelfEmails))
	for _, email := range s.opts.SelfEmails {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			self[email] = true
		}
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		for _, a := range item.Attendees {
			if a != nil && a.Self && a.Email != "" {
				self[strings.ToLower(a.Email)] = true
			}
		}
		if item.Organizer != nil && item.Organizer.Self && item.Organizer.Email != "" {
			self[strings.ToLower(item.Organizer.Email)] = true
		}
	}
	return self
}

// markSelf flags attendees and organizers whose address belongs to the user.
func markSelf(events []*models.Event, self map[string]bool) {
	if len(self) == 0 {
		return
	}
	for _, event := range events {
		for i := range event.Attendees {
			if self[strings.ToLower(event.Attendees[i].Email)] {
				event.Attendees[i].Self = true
			}
		}
		if event.Organizer != nil && self[strings.ToLower(event.Organizer.Email)] {
			event.Organizer.Self = true
		}
	}
}

// dedupe keeps the first copy of each occurrence. The same meeting shows up once per
// account or calendar it was shared with; copies share the iCalendar UID and start.
func dedupe(items []*calendar.Event) []*calendar.Event {
	seen := make(map[string]bool, len(items))
	unique := make([]*calendar.Event, 0, len(items))
	for _, item := range items {
		key, ok := occurrenceKey(item)
		if ok {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		unique = append(unique, item)
	}
	return unique
}

// occurrenceKey identifies one occurrence by UID (falling back to the event ID) and start
// instant, so instances of a recurring series stay distinct.
func occurrenceKey(item *calendar.Event) (string, bool) {
	if item == nil || item.Start == nil {
		return "", false
	}
	uid := item.ICalUID
	if uid == "" {
		uid = item.Id
	}
	if uid == "" {
		return "", false
	}
	switch {
	case item.Start.DateTime != "":
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return "", false
		}
		return uid + "@" + start.UTC().Format(time.RFC3339), true
	case item.Start.Date != "":
		return uid + "@" + item.Start.Date, true
	default:
		return "", false
	}
}
