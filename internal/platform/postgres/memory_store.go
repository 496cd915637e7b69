package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/shannon/internal/domain"
	"github.com/phrazzld/shannon/internal/platform/logger"
	"github.com/phrazzld/shannon/internal/store"
)

// PostgresMemoryStore implements store.MemoryStore on PostgreSQL.
type PostgresMemoryStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Ensure PostgresMemoryStore implements store.MemoryStore interface
var _ store.MemoryStore = (*PostgresMemoryStore)(nil)

// NewPostgresMemoryStore creates a store on db. If logger is nil, the
// default logger is used.
func NewPostgresMemoryStore(db *sql.DB, logger *slog.Logger) *PostgresMemoryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresMemoryStore{
		db:     db,
		logger: logger.With("component", "memory_store"),
		now:    time.Now,
	}
}

// FilterUnprocessed implements store.MemoryStore.
func (s *PostgresMemoryStore) FilterUnprocessed(ctx context.Context, emailIDs []string) ([]string, error) {
	if len(emailIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(emailIDs))
	args := make([]any, len(emailIDs))
	for i, id := range emailIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := "SELECT email_id FROM processed_emails WHERE email_id IN (" +
		strings.Join(placeholders, ", ") + ")"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError("processed email", "query", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	processed := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("processed email", "scan", err)
		}
		processed[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("processed email", "query", MapError(err))
	}

	out := make([]string, 0, len(emailIDs))
	for _, id := range emailIDs {
		if _, ok := processed[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// SaveClassification implements store.MemoryStore. Patterns that already
// exist have their frequency increased instead of being duplicated.
func (s *PostgresMemoryStore) SaveClassification(
	ctx context.Context,
	emailIDs []string,
	c *domain.Classification,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now().UTC()

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		for _, e := range c.Episodes {
			if err := insertEpisode(ctx, tx, e); err != nil {
				return err
			}
		}
		for _, f := range c.Facts {
			if err := insertFact(ctx, tx, f); err != nil {
				return err
			}
		}
		for _, p := range c.Patterns {
			if err := upsertPattern(ctx, tx, p); err != nil {
				return err
			}
		}
		for _, id := range emailIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO processed_emails (email_id, processed_at) VALUES ($1, $2)
				 ON CONFLICT (email_id) DO UPDATE SET processed_at = EXCLUDED.processed_at`,
				id, now,
			); err != nil {
				return store.NewStoreError("processed email", "insert", MapError(err))
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to save classification", "error", err, "emails", len(emailIDs))
		return err
	}

	episodic, semantic, procedural := c.Count()
	log.Info("classification saved",
		"emails", len(emailIDs),
		"episodes", episodic,
		"facts", semantic,
		"patterns", procedural)
	return nil
}

func insertEpisode(ctx context.Context, db store.DBTX, e *domain.Episode) error {
	participants, err := json.Marshal(e.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	var occurredAt sql.NullTime
	if !e.OccurredAt.IsZero() {
		occurredAt = sql.NullTime{Time: e.OccurredAt, Valid: true}
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO episodes
			(id, email_id, thread_id, subject, participants, summary, occurred_at, token_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.EmailID, e.ThreadID, e.Subject, string(participants), e.Summary,
		occurredAt, e.TokenCount, e.CreatedAt,
	)
	return store.NewStoreError("episode", "insert", MapError(err))
}

func insertFact(ctx context.Context, db store.DBTX, f *domain.Fact) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO facts
			(id, subject, predicate, object, confidence, source_email_id, token_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.Subject, f.Predicate, f.Object, f.Confidence, f.SourceEmailID, f.TokenCount, f.CreatedAt,
	)
	return store.NewStoreError("fact", "insert", MapError(err))
}

func upsertPattern(ctx context.Context, db store.DBTX, p *domain.Pattern) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO patterns (id, trigger, action, frequency, token_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (trigger, action) DO UPDATE SET frequency = patterns.frequency + EXCLUDED.frequency`,
		p.ID, p.Trigger, p.Action, p.Frequency, p.TokenCount, p.CreatedAt,
	)
	return store.NewStoreError("pattern", "upsert", MapError(err))
}

const statsQuery = `
SELECT
	(SELECT COUNT(*) FROM episodes),
	(SELECT COUNT(*) FROM facts),
	(SELECT COUNT(*) FROM patterns),
	(SELECT COALESCE(SUM(token_count), 0) FROM episodes)
		+ (SELECT COALESCE(SUM(token_count), 0) FROM facts)
		+ (SELECT COALESCE(SUM(token_count), 0) FROM patterns),
	(SELECT COUNT(*) FROM processed_emails),
	(SELECT MAX(processed_at) FROM processed_emails)`

// Stats implements store.MemoryStore.
func (s *PostgresMemoryStore) Stats(ctx context.Context) (*domain.WorkspaceStats, error) {
	var (
		stats    domain.WorkspaceStats
		lastSync sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, statsQuery).Scan(
		&stats.Episodic.Episodes,
		&stats.Semantic.Facts,
		&stats.Procedural.Patterns,
		&stats.TotalTokens,
		&stats.GmailIntegration.TotalEmailsProcessed,
		&lastSync,
	)
	if err != nil {
		return nil, store.NewStoreError("stats", "query", MapError(err))
	}

	if lastSync.Valid {
		t := lastSync.Time.UTC()
		stats.GmailIntegration.LastSyncAt = &t
	}
	return &stats, nil
}
