package main

import (
	"fmt"
	"log/slog"

	"calassist/internal/assistant"
	"calassist/internal/config"
	"calassist/internal/google"
	"calassist/internal/icloud"

	"github.com/urfave/cli/v2"
)

// env is the configuration and logger shared by every command.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	return &env{cfg: cfg, logger: logger}, nil
}

// googleClients opens a client per authenticated account, or only the --account one.
func (e *env) googleClients(c *cli.Context) ([]*google.CalendarClient, error) {
	accounts := []string{c.String("account")}
	if accounts[0] == "" {
		found, err := google.GetTokenAccounts(".")
		if err != nil {
			return nil, fmt.Errorf("could not find any google accounts, did you run auth command? %w", err)
		}
		accounts = found
	}

	var clients []*google.CalendarClient
	for _, acc := range accounts {
		client, err := google.NewClient(c.Context, e.logger, e.cfg.Google.ClientID, e.cfg.Google.ClientSecret, acc, e.cfg.Google.CalendarIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to create google client for account %s: %w", acc, err)
		}
		clients = append(clients, client)
	}
	e.logger.Debug("Initialized Google clients.", "count", len(clients))
	return clients, nil
}

// sources returns every configured event source, Google accounts first and then CalDAV,
// along with the user's own addresses across those accounts.
func (e *env) sources(c *cli.Context) ([]assistant.EventSource, []string, error) {
	clients, err := e.googleClients(c)
	if err != nil {
		return nil, nil, err
	}
	var sources []assistant.EventSource
	for _, client := range clients {
		sources = append(sources, client)
	}
	selfEmails := e.selfEmails(c, clients)

	if e.cfg.ICloud.Enabled() {
		ic := e.cfg.ICloud
		client, err := icloud.NewClient(c.Context, e.logger, ic.Endpoint, ic.Username, ic.Password, ic.CalendarName, e.cfg.Insights.SelfEmail, e.cfg.PrimaryTimeZone)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create caldav client: %w", err)
		}
		sources = append(sources, client)
	}

	if len(sources) == 0 {
		return nil, nil, fmt.Errorf("%w: run the 'auth' command first or set ICLOUD_USERNAME", assistant.ErrNoSources)
	}
	return sources, selfEmails, nil
}

// selfEmails is SELF_EMAIL plus the address of every authenticated Google account.
// An account whose profile can't be read is skipped; its events still flag it as self.
func (e *env) selfEmails(c *cli.Context, clients []*google.CalendarClient) []string {
	var emails []string
	if e.cfg.Insights.SelfEmail != "" {
		emails = append(emails, e.cfg.Insights.SelfEmail)
	}
	for _, client := range clients {
		info, err := client.WhoAmI(c.Context)
		if err != nil {
			e.logger.Warn("Could not read account profile", "source", client.Name(), "error", err)
			continue
		}
		if info.Email != "" {
			emails = append(emails, info.Email)
		}
	}
	return emails
}

func newService(c *cli.Context, withChat bool) (*assistant.Service, error) {
	e, err := newEnv()
	if err != nil {
		return nil, err
	}
	sources, selfEmails, err := e.sources(c)
	if err != nil {
		return nil, err
	}

	var (
		responder *assistant.Responder
		history   *assistant.HistoryStore
	)
	if withChat {
		if e.cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		responder = assistant.NewResponder(assistant.NewOpenAIClient(e.cfg.OpenAI), e.logger, e.cfg.OpenAI)
		history = assistant.NewHistoryStore(e.cfg.HistoryDir)
	}

	return assistant.NewService(e.logger, sources, responder, history, assistant.Options{
		Location:          e.cfg.PrimaryTimeZone,
		MalformedPolicy:   e.cfg.Insights.MalformedEvents,
		InternalDomains:   e.cfg.Insights.InternalDomains,
		ContextEventLimit: e.cfg.Insights.ContextEventLimit,
		CacheTTL:          e.cfg.CacheTTL,
		SelfEmails:        selfEmails,
	})
}
