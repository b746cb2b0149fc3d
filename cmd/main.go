package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"calassist/internal/assistant"
	"calassist/internal/config"
	"calassist/internal/google"
	"calassist/internal/icloud"
	"calassist/internal/models"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

const defaultHistoryAccount = "default"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "calassist",
		Usage: "Calendar insights and an AI scheduling assistant for Google Calendar.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Usage: "Use only this authenticated Google account."},
		},
		Commands: []*cli.Command{
			authCommand(),
			whoamiCommand(),
			eventsCommand(),
			eventCommand(),
			attendeesCommand(),
			categorizeCommand(),
			statsCommand(),
			exportCommand(),
			chatCommand(),
			analyzeCommand(),
			historyCommand(),
		},
	}
}

var weekFlag = &cli.StringFlag{Name: "week", Usage: "First day of the week (YYYY-MM-DD). Defaults to the current week."}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(cfg.Google.ClientID, cfg.Google.ClientSecret)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(c.App.Reader)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			if accountName == "" {
				return fmt.Errorf("account name is required")
			}
			tokenFile := google.TokenFile(accountName)

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the profile of each authenticated Google account.",
		Action: func(c *cli.Context) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			clients, err := e.googleClients(c)
			if err != nil {
				return err
			}
			var infos []*google.UserInfo
			for _, client := range clients {
				info, err := client.WhoAmI(c.Context)
				if err != nil {
					return err
				}
				infos = append(infos, info)
			}
			return printJSON(c.App.Writer, map[string]any{"accounts": infos})
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "List the normalized events of a week.",
		Flags: []cli.Flag{weekFlag},
		Action: func(c *cli.Context) error {
			svc, err := newService(c, false)
			if err != nil {
				return err
			}
			events, err := svc.Events(c.Context, c.String("week"))
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, map[string]any{"events": events})
		},
	}
}

func eventCommand() *cli.Command {
	return &cli.Command{
		Name:      "event",
		Usage:     "Show one event, or only its attendees.",
		ArgsUsage: "<event-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "attendees", Usage: "Show the attendee view of the event."},
		},
		Action: func(c *cli.Context) error {
			eventID := c.Args().First()
			if eventID == "" {
				return fmt.Errorf("event id is required")
			}
			svc, err := newService(c, false)
			if err != nil {
				return err
			}
			if c.Bool("attendees") {
				view, err := svc.EventAttendees(c.Context, eventID)
				if err != nil {
					return err
				}
				return printJSON(c.App.Writer, view)
			}
			event, err := svc.Event(c.Context, eventID)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, map[string]any{"event": event})
		},
	}
}

func attendeesCommand() *cli.Command {
	return &cli.Command{
		Name:  "attendees",
		Usage: "List the unique attendees of a week with their meetings.",
		Flags: []cli.Flag{weekFlag},
		Action: func(c *cli.Context) error {
			svc, err := newService(c, false)
			if err != nil {
				return err
			}
			report, err := svc.Report(c.Context, c.String("week"))
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, map[string]any{"attendees": report.Attendees})
		},
	}
}

func categorizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "categorize",
		Usage: "Split attendee occurrences into internal and external by email domain.",
		Flags: []cli.Flag{weekFlag},
		Action: func(c *cli.Context) error {
			svc, err := newService(c, false)
			if err != nil {
				return err
			}
			report, err := svc.Report(c.Context, c.String("week"))
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, report.Categorized)
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show meeting statistics for a week.",
		Flags: []cli.Flag{weekFlag},
		Action: func(c *cli.Context) error {
			svc, err := newService(c, false)
			if err != nil {
				return err
			}
			report, err := svc.Report(c.Context, c.String("week"))
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, map[string]any{"stats": report.Stats})
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the events of a week as an iCalendar file.",
		Flags: []cli.Flag{
			weekFlag,
			&cli.StringFlag{Name: "out", Value: "-", Usage: "Output file, '-' for stdout."},
		},
		Action: func(c *cli.Context) error {
			svc, err := newService(c, false)
			if err != nil {
				return err
			}
			events, err := svc.Events(c.Context, c.String("week"))
			if err != nil {
				return err
			}

			out := c.String("out")
			if out == "-" {
				return icloud.WriteICS(c.App.Writer, events, time.Now())
			}
			return writeICSFile(out, events, time.Now())
		},
	}
}

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Ask the assistant about your calendar. Without --message, starts an interactive session.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Send a single message and exit."},
		},
		Action: func(c *cli.Context) error {
			svc, err := newService(c, true)
			if err != nil {
				return err
			}
			account := historyAccount(c)

			if msg := c.String("message"); msg != "" {
				entry, err := svc.Chat(c.Context, account, msg)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, entry.AIResponse)
				return nil
			}

			return chatLoop(c.App.Reader, c.App.Writer, func(msg string) (string, error) {
				entry, err := svc.Chat(c.Context, account, msg)
				return entry.AIResponse, err
			})
		},
	}
}

// chatLoop answers one message per input line until an empty line or EOF.
// A failed answer is logged and the session continues.
func chatLoop(r io.Reader, w io.Writer, ask func(string) (string, error)) error {
	fmt.Fprintln(w, "Ask about your week. Send an empty line or EOF to quit.")
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		msg := strings.TrimSpace(scanner.Text())
		if msg == "" {
			return nil
		}
		reply, err := ask(msg)
		if err != nil {
			slog.Error("Chat failed", "error", err)
			continue
		}
		fmt.Fprintln(w, reply)
	}
}

func writeICSFile(path string, events []*models.Event, stamp time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := icloud.WriteICS(f, events, stamp); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Ask the assistant to analyze meetings or attendee patterns.",
		Subcommands: []*cli.Command{
			{
				Name:  "meetings",
				Usage: "Insights about meeting patterns and time spent.",
				Flags: []cli.Flag{weekFlag},
				Action: func(c *cli.Context) error {
					svc, err := newService(c, true)
					if err != nil {
						return err
					}
					analysis, report, err := svc.AnalyzeMeetings(c.Context, c.String("week"))
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, map[string]any{
						"analysis":  analysis,
						"stats":     report.Stats,
						"timestamp": time.Now().UTC(),
					})
				},
			},
			{
				Name:  "attendees",
				Usage: "Insights about who you meet with.",
				Flags: []cli.Flag{weekFlag},
				Action: func(c *cli.Context) error {
					svc, err := newService(c, true)
					if err != nil {
						return err
					}
					analysis, report, err := svc.AnalyzeAttendees(c.Context, c.String("week"))
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, map[string]any{
						"analysis":  analysis,
						"attendees": report.Attendees,
						"timestamp": time.Now().UTC(),
					})
				},
			},
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show or clear the chat history.",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the chat history.",
				Action: func(c *cli.Context) error {
					e, err := newEnv()
					if err != nil {
						return err
					}
					entries, err := assistant.NewHistoryStore(e.cfg.HistoryDir).Load(historyAccount(c))
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, map[string]any{"history": entries})
				},
			},
			{
				Name:  "clear",
				Usage: "Delete the chat history.",
				Action: func(c *cli.Context) error {
					e, err := newEnv()
					if err != nil {
						return err
					}
					if err := assistant.NewHistoryStore(e.cfg.HistoryDir).Clear(historyAccount(c)); err != nil {
						return err
					}
					e.logger.Info("Chat history cleared.")
					return nil
				},
			},
		},
	}
}

func historyAccount(c *cli.Context) string {
	if account := c.String("account"); account != "" {
		return account
	}
	return defaultHistoryAccount
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
