package testdb

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/shannon/internal/platform/postgres"
)

// EnvDatabaseURL names the variable holding the test database URL.
const EnvDatabaseURL = "SHANNON_TEST_DATABASE_URL"

// Tables lists the memory tables emptied by Reset, children first.
var Tables = []string{"processed_emails", "patterns", "facts", "episodes"}

var (
	migrateOnce sync.Once
	migrateErr  error
)

// DatabaseURL returns the configured test database URL, or "".
func DatabaseURL() string {
	return os.Getenv(EnvDatabaseURL)
}

// ShouldSkip reports whether database tests must be skipped.
func ShouldSkip() bool {
	return DatabaseURL() == ""
}

// Open connects to the test database, migrating it on first use. The
// connection is closed when the test ends. Without a configured URL the
// test is skipped.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	if ShouldSkip() {
		t.Skipf("%s not set, skipping database test", EnvDatabaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Open(ctx, DatabaseURL())
	if err != nil {
		t.Fatalf("failed to open test database %s: %v", postgres.MaskURL(DatabaseURL()), err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})

	migrateOnce.Do(func() {
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		migrateErr = postgres.Migrate(ctx, db, "up", quiet)
	})
	if migrateErr != nil {
		t.Fatalf("failed to migrate test database: %v", migrateErr)
	}

	return db
}

// Reset empties every memory table.
func Reset(t *testing.T, db *sql.DB) {
	t.Helper()

	for _, table := range Tables {
		if _, err := db.ExecContext(context.Background(), "DELETE FROM "+table); err != nil {
			t.Fatalf("failed to reset %s: %v", table, err)
		}
	}
}
