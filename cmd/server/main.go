// Package main implements the entry point for the Shannon server, which
// syncs a user's Gmail into episodic, semantic and procedural memories on
// behalf of the browser extension.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/shannon/internal/config"
	"github.com/phrazzld/shannon/internal/platform/logger"
	"github.com/phrazzld/shannon/internal/platform/postgres"
	"github.com/phrazzld/shannon/internal/service/auth"
)

var errMigrationsNeedDatabase = errors.New("migrations need database.url (SHANNON_DATABASE_URL)")

// options are the command line flags of the server binary.
type options struct {
	migrate    string
	issueToken string
}

func parseFlags(args []string) (options, error) {
	var opts options

	fs := flag.NewFlagSet("shannon", flag.ContinueOnError)
	fs.StringVar(&opts.migrate, "migrate", "",
		"run a migration command (up, down, reset, status, version) and exit")
	fs.StringVar(&opts.issueToken, "issue-token", "",
		"print a bearer token for the named client and exit")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		slog.Error("shannon exited with error", "error", err)
		stop()
		os.Exit(1)
	}
}

// run loads configuration and either performs a one-shot command or
// serves until ctx is cancelled.
func run(ctx context.Context, opts options, stdout io.Writer) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	l, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	switch {
	case opts.migrate != "":
		return runMigrations(ctx, cfg, opts.migrate, l)
	case opts.issueToken != "":
		return issueClientToken(ctx, cfg, opts.issueToken, stdout)
	}

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

// loadAppConfig loads and validates the configuration.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// runMigrations executes a goose command against the configured database.
func runMigrations(ctx context.Context, cfg *config.Config, command string, l *slog.Logger) error {
	if cfg.Database.URL == "" {
		return errMigrationsNeedDatabase
	}

	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			l.Error("failed to close database connection", "error", err)
		}
	}()

	l.Info("running migrations", "command", command, "database", postgres.MaskURL(cfg.Database.URL))
	return postgres.Migrate(ctx, db, command, l)
}

// issueClientToken writes a signed bearer token for client to out.
func issueClientToken(ctx context.Context, cfg *config.Config, client string, out io.Writer) error {
	svc, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	token, err := svc.GenerateToken(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	_, err = fmt.Fprintln(out, token)
	return err
}
