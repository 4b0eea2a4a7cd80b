package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Config holds database configuration.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	IdleConnections int
	MaxLifetime     time.Duration
}

// DSN renders a libpq connection string.
func (c Config) DSN() string {
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, ssl)
}

// Client manages the Postgres connection pool and run persistence.
type Client struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewClient opens a connection pool and verifies connectivity.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	database, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 10
	}
	idle := cfg.IdleConnections
	if idle <= 0 {
		idle = 5
	}
	lifetime := cfg.MaxLifetime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	database.SetMaxOpenConns(maxConns)
	database.SetMaxIdleConns(idle)
	database.SetConnMaxLifetime(lifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Database connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
	)
	return &Client{db: database, logger: logger}, nil
}

// NewClientWithDB wraps an existing connection, used by tests.
func NewClientWithDB(database *sqlx.DB, logger *zap.Logger) *Client {
	return &Client{db: database, logger: logger}
}

// Schema creates the research_runs table when it does not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS research_runs (
    id               TEXT PRIMARY KEY,
    session_id       TEXT NOT NULL,
    user_id          TEXT NOT NULL DEFAULT '',
    question         TEXT NOT NULL,
    final_answer     TEXT NOT NULL DEFAULT '',
    canonical_answer TEXT NOT NULL DEFAULT '',
    claim_count      INTEGER NOT NULL DEFAULT 0,
    document_count   INTEGER NOT NULL DEFAULT 0,
    retry_count      INTEGER NOT NULL DEFAULT 0,
    missing_claims   JSONB,
    sources          JSONB,
    duration_ms      BIGINT NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_research_runs_session ON research_runs(session_id);
CREATE INDEX IF NOT EXISTS idx_research_runs_user ON research_runs(user_id);
`

// EnsureSchema applies the schema. Safe to call on every startup.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const insertRunQuery = `
INSERT INTO research_runs (
    id, session_id, user_id, question, final_answer, canonical_answer,
    claim_count, document_count, retry_count, missing_claims, sources,
    duration_ms, created_at
) VALUES (
    :id, :session_id, :user_id, :question, :final_answer, :canonical_answer,
    :claim_count, :document_count, :retry_count, :missing_claims, :sources,
    :duration_ms, :created_at
)`

// SaveRun inserts a completed run record.
func (c *Client) SaveRun(ctx context.Context, run *ResearchRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if _, err := c.db.NamedExecContext(ctx, insertRunQuery, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	c.logger.Debug("Run persisted",
		zap.String("run_id", run.ID),
		zap.String("session_id", run.SessionID),
	)
	return nil
}

// GetRun fetches one run by id. Returns sql.ErrNoRows via the driver
// when the run does not exist.
func (c *Client) GetRun(ctx context.Context, id string) (*ResearchRun, error) {
	var run ResearchRun
	err := c.db.GetContext(ctx, &run,
		`SELECT * FROM research_runs WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// RecentRuns lists the newest runs for a session, newest first.
func (c *Client) RecentRuns(ctx context.Context, sessionID string, limit int) ([]ResearchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := []ResearchRun{}
	err := c.db.SelectContext(ctx, &runs,
		`SELECT * FROM research_runs WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return runs, nil
}

// Ping verifies database connectivity for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}
