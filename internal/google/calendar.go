package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const (
	credentialsFile = "credentials.json"
	desktopRedirect = "urn:ietf:wg:oauth:2.0:oob"

	// maxWeekEvents caps a single window listing.
	maxWeekEvents = 100

	eventFields = "id,iCalUID,summary,start,end,description,location,attendees,organizer," +
		"guestsCanSeeOtherGuests,guestsCanModify,guestsCanInviteOthers"
)

var scopes = []string{
	calendar.CalendarReadonlyScope,
	oauth2api.UserinfoEmailScope,
	oauth2api.UserinfoProfileScope,
}

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service     *calendar.Service
	userinfo    *oauth2api.Service
	logger      *slog.Logger
	account     string
	calendarIDs []string
}

// UserInfo is the profile of the authenticated account.
type UserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// NewClient creates a new Google Calendar client for one authenticated account.
// The accountName selects the token file written by the auth command (token-<account>.json).
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, accountName string, calendarIDs []string) (*CalendarClient, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	token, err := tokenFromFile(TokenFile(accountName))
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", accountName, err)
	}

	httpClient := config.Client(ctx, token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	userinfo, err := oauth2api.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo service: %w", err)
	}

	if len(calendarIDs) == 0 {
		calendarIDs = []string{"primary"}
	}

	return newClient(service, userinfo, logger, accountName, calendarIDs), nil
}

func newClient(service *calendar.Service, userinfo *oauth2api.Service, logger *slog.Logger, account string, calendarIDs []string) *CalendarClient {
	return &CalendarClient{
		service:     service,
		userinfo:    userinfo,
		logger:      logger,
		account:     account,
		calendarIDs: calendarIDs,
	}
}

// Name identifies this source in logs.
func (c *CalendarClient) Name() string {
	return "google-" + c.account
}

// ListEvents fetches the raw events between from and to across all configured calendars,
// expanded to single instances and ordered by start time within each calendar.
func (c *CalendarClient) ListEvents(ctx context.Context, from, to time.Time) ([]*calendar.Event, error) {
	var all []*calendar.Event
	for _, calID := range c.calendarIDs {
		items, err := c.listCalendar(ctx, calID, from, to)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}

func (c *CalendarClient) listCalendar(ctx context.Context, calendarID string, from, to time.Time) ([]*calendar.Event, error) {
	c.logger.Debug("Fetching events", "calendarID", calendarID, "timeMin", from, "timeMax", to)

	events, err := c.service.Events.List(calendarID).
		Context(ctx).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		OrderBy("startTime").
		MaxResults(maxWeekEvents).
		Fields(googleapi.Field("items(" + eventFields + ")")).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events from calendar %s: %w", calendarID, err)
	}

	c.logger.Info("Successfully fetched events from Google Calendar", "count", len(events.Items), "calendarID", calendarID)
	return events.Items, nil
}

// GetEvent fetches one raw event, looking through the configured calendars in order.
func (c *CalendarClient) GetEvent(ctx context.Context, eventID string) (*calendar.Event, error) {
	var lastErr error
	for _, calendarID := range c.calendarIDs {
		c.logger.Debug("Fetching event", "calendarID", calendarID, "eventID", eventID)

		event, err := c.service.Events.Get(calendarID, eventID).
			Context(ctx).
			Fields(googleapi.Field(eventFields)).
			Do()
		if err == nil {
			return event, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	if lastErr == nil {
		return nil, fmt.Errorf("no calendars configured for account %s", c.account)
	}
	return nil, fmt.Errorf("failed to retrieve event %s: %w", eventID, lastErr)
}

// WhoAmI returns the profile of the authenticated account.
func (c *CalendarClient) WhoAmI(ctx context.Context) (*UserInfo, error) {
	info, err := c.userinfo.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	return &UserInfo{ID: info.Id, Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig builds the desktop-flow OAuth2 config with read-only calendar and profile scopes.
// Explicit client credentials win over credentials.json.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  desktopRedirect,
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no OAuth client configured: set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET or provide %s", credentialsFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", credentialsFile, err)
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", credentialsFile, err)
	}
	config.RedirectURL = desktopRedirect
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// TokenFile is the token path for an account name.
func TokenFile(accountName string) string {
	return "token-" + accountName + ".json"
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// GetTokenAccounts lists the account names that have a token file in dir.
func GetTokenAccounts(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}
