// Command inbox is the terminal client: the public contact form and, behind
// sign-in, the admin inbox with live updates.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"portfolio-backend/internal/apiclient"
	"portfolio-backend/internal/app"
	"portfolio-backend/internal/contactform"
	"portfolio-backend/internal/inbox"
	"portfolio-backend/internal/session"
	"portfolio-backend/internal/triage"
	"portfolio-backend/internal/tui"
	"portfolio-backend/pkg/logger"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const appDir = "portfolio-inbox"

func main() {
	_ = godotenv.Load()

	apiURL := pflag.String("api", envOr("PORTFOLIO_API_URL", "http://localhost:8080"), "API base URL")
	view := pflag.String("view", "", "start view fragment (#admin opens the inbox)")
	theme := pflag.String("theme", string(app.ThemeDark), "color theme: dark or light")
	logFile := pflag.String("log-file", defaultPath(os.UserCacheDir, "inbox.log"), "log file")
	logLevel := pflag.String("log-level", envOr("LOG_LEVEL", "INFO"), "log level")
	tokenFile := pflag.String("token-file", defaultPath(os.UserConfigDir, "token"), "where the session token is kept")
	pflag.Parse()

	if err := run(*apiURL, *view, app.Theme(*theme), *logFile, *logLevel, *tokenFile); err != nil {
		fmt.Fprintln(os.Stderr, "inbox:", err)
		os.Exit(1)
	}
}

func run(apiURL, view string, theme app.Theme, logFile, logLevel, tokenFile string) error {
	if theme != app.ThemeDark && theme != app.ThemeLight {
		return fmt.Errorf("unknown theme %q", theme)
	}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logger.InitWriter(f, logLevel)
	}

	var opts []apiclient.Option
	if tokenFile != "" {
		if err := os.MkdirAll(filepath.Dir(tokenFile), 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
		opts = append(opts, apiclient.WithTokenFile(tokenFile))
	}
	client, err := apiclient.New(apiURL, opts...)
	if err != nil {
		return err
	}

	gate := session.NewGate(client)
	ctrl := app.New(app.Deps{
		Gate:   gate,
		Inbox:  inbox.NewAdapter(client, gate),
		Triage: triage.NewViewModel(),
		Form:   contactform.New(),
	}, view, app.WithTheme(theme))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	changes, cancelChanges := ctrl.Changes()
	defer cancelChanges()

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	logger.Log.Info("Starting inbox client", "api", apiURL, "view", view)
	program := tea.NewProgram(tui.NewModel(ctx, ctrl, changes), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()

	stop()
	if runErr := <-done; runErr != nil {
		logger.Log.Error("Controller stopped with error", "error", runErr)
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultPath(base func() (string, error), name string) string {
	dir, err := base()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDir, name)
}
