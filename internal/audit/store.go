// Package audit persists anonymization audit records in PostgreSQL for
// compliance reporting. The trail records what was replaced and how much,
// never the values themselves.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Config contains database configuration.
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

const schema = `
CREATE TABLE IF NOT EXISTS anonymization_audit (
	id             BIGSERIAL PRIMARY KEY,
	request_id     TEXT NOT NULL,
	session_id     TEXT NOT NULL DEFAULT '',
	provider       TEXT NOT NULL DEFAULT '',
	policy         TEXT NOT NULL,
	entity_counts  JSONB NOT NULL DEFAULT '{}',
	total_entities INT NOT NULL,
	risk           TEXT NOT NULL,
	text_chars     INT NOT NULL,
	duration_ms    DOUBLE PRECISION NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audit_created_at ON anonymization_audit (created_at);
CREATE INDEX IF NOT EXISTS idx_audit_session ON anonymization_audit (session_id);`

// Store writes audit records to PostgreSQL.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore connects, configures the pool, and ensures the audit table
// exists. Connectivity problems are construction-time errors.
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	store := &Store{db: db, logger: logger}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit store: %w", err)
	}

	logger.Info("Audit store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns))

	return store, nil
}

func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// Insert writes one audit record and fills its ID and CreatedAt.
func (s *Store) Insert(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO anonymization_audit
			(request_id, session_id, provider, policy, entity_counts, total_entities, risk, text_chars, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		record.RequestID,
		record.SessionID,
		record.Provider,
		record.Policy,
		record.EntityCounts,
		record.TotalEntities,
		record.Risk,
		record.TextChars,
		record.DurationMS,
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		s.logger.Error("Failed to insert audit record",
			zap.Error(err),
			zap.String("request_id", record.RequestID))
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Recent returns the newest records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	var records []Record
	query := `SELECT * FROM anonymization_audit ORDER BY created_at DESC LIMIT $1`
	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	return records, nil
}

// CountsByEntityType aggregates detections per entity type since the given
// time.
func (s *Store) CountsByEntityType(ctx context.Context, since time.Time) ([]TypeCount, error) {
	var counts []TypeCount
	query := `
		SELECT key AS entity_type, SUM(value::bigint) AS count
		FROM anonymization_audit, jsonb_each_text(entity_counts)
		WHERE created_at >= $1
		GROUP BY key
		ORDER BY count DESC`
	if err := s.db.SelectContext(ctx, &counts, query, since); err != nil {
		return nil, fmt.Errorf("failed to aggregate audit records: %w", err)
	}
	return counts, nil
}

// Close releases the database pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// maskDatabaseURL hides credentials in the connection URL for logging.
func maskDatabaseURL(url string) string {
	if !strings.Contains(url, "@") {
		return url
	}
	parts := strings.SplitN(url, "@", 2)
	if idx := strings.LastIndex(parts[0], ":"); idx > strings.Index(parts[0], "//")+1 {
		parts[0] = parts[0][:idx+1] + "***"
	}
	return strings.Join(parts, "@")
}
