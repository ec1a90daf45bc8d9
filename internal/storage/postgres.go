package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/mira/internal/embeddings"
	"github.com/bdougie/mira/internal/models"
)

// PostgresConfig holds connection details for PostgreSQL
type PostgresConfig struct {
	// URL takes precedence over the individual fields when set.
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ConnString builds a postgres:// connection URL.
func (c PostgresConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}
	conn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.User, c.Password, c.Host, c.Port, c.DBName)
	if c.SSLMode != "" {
		conn += "?sslmode=" + c.SSLMode
	}
	return conn
}

// PostgresStorage stores results with a pgvector embedding of their text.
type PostgresStorage struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
	session  string
	logger   *slog.Logger
}

var (
	_ Storage = (*PostgresStorage)(nil)
	_ Lister  = (*PostgresStorage)(nil)
)

// NewPostgresStorage connects to PostgreSQL. When session is non-empty the
// session row is created if missing and AddResult writes under it.
func NewPostgresStorage(ctx context.Context, config PostgresConfig, session string, embedder embeddings.Embedder, logger *slog.Logger) (*PostgresStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &PostgresStorage{
		pool:     pool,
		embedder: embedder,
		session:  session,
		logger:   logger,
	}
	if session != "" {
		if err := storage.ensureSession(ctx, session); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return storage, nil
}

// Close closes the database connection
func (s *PostgresStorage) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStorage) ensureSession(ctx context.Context, session string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, created_at) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		session, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create session entry: %w", err)
	}
	return nil
}

// AddResult stores the frame and its analysis. Successful results get an
// embedding; a failed embedding is logged and stored as NULL.
func (s *PostgresStorage) AddResult(ctx context.Context, result models.AnalysisResult) error {
	if s.session == "" {
		return errors.New("postgres storage opened without a session")
	}

	var frameID int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO frames
        (session_id, analyzer, seq, captured_at, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (session_id, analyzer, seq) DO UPDATE SET captured_at = EXCLUDED.captured_at
        RETURNING id`,
		s.session, result.Analyzer, int64(result.Seq), result.CapturedAt, time.Now()).Scan(&frameID)
	if err != nil {
		return fmt.Errorf("failed to store frame information: %w", err)
	}

	var embedding any
	if result.Kind == models.ResultSuccess.String() && s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, result.Content)
		if err != nil {
			s.logger.Warn("failed to generate embedding", "seq", result.Seq, "error", err)
		} else {
			embedding = pgvector.NewVector(vec)
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses
        (frame_id, kind, content, embedding, completed_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		frameID, result.Kind, result.Content, embedding, result.CompletedAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store analysis: %w", err)
	}
	return nil
}

// Flush implements the Storage interface - no-op for Postgres as we save immediately
func (s *PostgresStorage) Flush() error {
	return nil
}

// SearchSimilarFrames finds analyses whose text is closest to query by
// cosine distance. It searches every session when the store has none.
func (s *PostgresStorage) SearchSimilarFrames(ctx context.Context, query string, limit int) ([]models.FrameSearchResult, error) {
	if s.embedder == nil {
		return nil, errors.New("similarity search needs an embedder")
	}
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT f.session_id, f.seq, f.analyzer, a.content, f.captured_at,
        1 - (a.embedding <=> $1) AS similarity
        FROM analyses a
        JOIN frames f ON a.frame_id = f.id
        WHERE a.embedding IS NOT NULL AND ($2 = '' OR f.session_id = $2)
        ORDER BY a.embedding <=> $1
        LIMIT $3`,
		pgvector.NewVector(queryEmbedding), s.session, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar frames: %w", err)
	}
	defer rows.Close()

	var results []models.FrameSearchResult
	for rows.Next() {
		var r models.FrameSearchResult
		var seq int64
		if err := rows.Scan(&r.Session, &seq, &r.Analyzer, &r.Description, &r.CapturedAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		r.Seq = uint64(seq)
		results = append(results, r)
	}
	return results, rows.Err()
}

// List returns the latest analyses of session.
func (s *PostgresStorage) List(ctx context.Context, session string, limit int) ([]models.AnalysisResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT f.session_id, f.analyzer, f.seq, a.kind, a.content, f.captured_at, a.completed_at
        FROM analyses a
        JOIN frames f ON a.frame_id = f.id
        WHERE f.session_id = $1
        ORDER BY f.seq DESC, a.id DESC
        LIMIT $2`,
		session, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var results []models.AnalysisResult
	for rows.Next() {
		var r models.AnalysisResult
		var seq int64
		if err := rows.Scan(&r.Session, &r.Analyzer, &seq, &r.Kind, &r.Content, &r.CapturedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analyses: %w", err)
		}
		r.Seq = uint64(seq)
		results = append(results, r)
	}
	return results, rows.Err()
}

// InitSchema creates the database schema if it doesn't exist. dim is the
// embedding size and must match the configured embedder.
func InitSchema(ctx context.Context, config PostgresConfig, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dim)
	}

	conn, err := pgx.Connect(ctx, config.ConnString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err = conn.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS sessions (
            id TEXT PRIMARY KEY,
            created_at TIMESTAMPTZ NOT NULL
        );

        CREATE TABLE IF NOT EXISTS frames (
            id SERIAL PRIMARY KEY,
            session_id TEXT REFERENCES sessions(id) ON DELETE CASCADE,
            analyzer VARCHAR(64) NOT NULL,
            seq BIGINT NOT NULL,
            captured_at TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(session_id, analyzer, seq)
        );

        CREATE TABLE IF NOT EXISTS analyses (
            id SERIAL PRIMARY KEY,
            frame_id INTEGER REFERENCES frames(id) ON DELETE CASCADE,
            kind VARCHAR(16) NOT NULL,
            content TEXT NOT NULL,
            embedding vector(%d),
            completed_at TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );
    `, dim))
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_frames_session_id ON frames(session_id);
        CREATE INDEX IF NOT EXISTS idx_analyses_frame_id ON analyses(frame_id);
        CREATE INDEX IF NOT EXISTS idx_embedding_vector ON analyses USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}
	return nil
}
