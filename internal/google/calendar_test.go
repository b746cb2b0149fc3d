package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.Handler, calendarIDs ...string) *CalendarClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ctx := context.Background()
	service, err := calendar.NewService(ctx, option.WithEndpoint(server.URL+"/"), option.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	userinfo, err := oauth2api.NewService(ctx, option.WithEndpoint(server.URL+"/"), option.WithHTTPClient(server.Client()))
	require.NoError(t, err)

	return newClient(service, userinfo, discardLogger(), "work", calendarIDs)
}

func TestListEventsQueriesEveryCalendar(t *testing.T) {
	var seen []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("singleEvents"))
		assert.Equal(t, "startTime", q.Get("orderBy"))
		assert.Equal(t, "100", q.Get("maxResults"))
		assert.Equal(t, "2025-03-02T00:00:00Z", q.Get("timeMin"))
		assert.Equal(t, "2025-03-09T00:00:00Z", q.Get("timeMax"))

		calID := "team"
		if strings.Contains(r.URL.Path, "primary") {
			calID = "primary"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{
				"id":      calID + "-1",
				"summary": "Sync",
				"start":   map[string]string{"dateTime": "2025-03-03T09:00:00Z"},
				"end":     map[string]string{"dateTime": "2025-03-03T10:00:00Z"},
			}},
		})
	}), "primary", "team")

	from := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	items, err := client.ListEvents(context.Background(), from, from.AddDate(0, 0, 7))
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "primary-1", items[0].Id)
	assert.Equal(t, "team-1", items[1].Id)
	assert.Len(t, seen, 2)
	assert.Equal(t, "google-work", client.Name())
}

func TestListEventsPropagatesAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":401,"message":"invalid credentials"}}`, http.StatusUnauthorized)
	}), "primary")

	_, err := client.ListEvents(context.Background(), time.Now(), time.Now().Add(time.Hour))
	assert.Error(t, err)
}

func TestGetEvent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/calendars/primary/events/abc"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc","summary":"Planning","start":{"date":"2025-03-04"},"end":{"date":"2025-03-05"}}`))
	}), "primary")

	event, err := client.GetEvent(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Planning", event.Summary)
	assert.Equal(t, "2025-03-04", event.Start.Date)
}

func TestGetEventSearchesEveryCalendar(t *testing.T) {
	var seen []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if !strings.HasSuffix(r.URL.Path, "/calendars/team/events/abc") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"abc","iCalUID":"abc@google.com","summary":"Offsite","start":{"date":"2025-03-04"},"end":{"date":"2025-03-05"}}`))
	}), "primary", "team")

	event, err := client.GetEvent(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Offsite", event.Summary)
	assert.Equal(t, "abc@google.com", event.ICalUID)
	assert.Len(t, seen, 2)

	_, err = client.GetEvent(context.Background(), "gone")
	assert.Error(t, err)
	assert.Len(t, seen, 4)
}

func TestTokenRoundTripAndAccounts(t *testing.T) {
	dir := t.TempDir()
	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}

	require.NoError(t, SaveToken(filepath.Join(dir, TokenFile("work")), token))
	require.NoError(t, SaveToken(filepath.Join(dir, TokenFile("personal")), token))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0600))

	loaded, err := tokenFromFile(filepath.Join(dir, TokenFile("work")))
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)

	accounts, err := GetTokenAccounts(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"work", "personal"}, accounts)
}

func TestGetOAuthConfigFromCredentials(t *testing.T) {
	config, err := getOAuthConfig("id", "secret")
	require.NoError(t, err)
	assert.Equal(t, "id", config.ClientID)
	assert.Contains(t, config.Scopes, calendar.CalendarReadonlyScope)
	assert.Contains(t, config.Scopes, oauth2api.UserinfoEmailScope)
}

func TestGetOAuthConfigWithoutClient(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := getOAuthConfig("", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_CLIENT_ID")
}
