package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skypro1111/transcript-worker/internal/job"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcription_jobs (
	id                  TEXT PRIMARY KEY,
	audio_ref           TEXT NOT NULL,
	"interval"          TEXT NOT NULL CHECK ("interval" IN ('1min', '5min')),
	include_speaker     BOOLEAN NOT NULL DEFAULT FALSE,
	job_status          TEXT NOT NULL DEFAULT 'pending',
	transcript_blob_url TEXT,
	transcript_filename TEXT,
	error_message       TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS transcription_jobs_status_idx ON transcription_jobs (job_status);
`

// Config contains connection settings
type Config struct {
	DSN      string
	MaxConns int
}

// Store is a job store on a pgx connection pool
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to the database and verifies the connection
func New(ctx context.Context, config Config, logger *slog.Logger) (*Store, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("database dsn cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid database dsn: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = int32(config.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		slog.String("host", poolConfig.ConnConfig.Host),
		slog.String("database", poolConfig.ConnConfig.Database),
		slog.Int("max_conns", int(poolConfig.MaxConns)),
	)

	return &Store{pool: pool, logger: logger}, nil
}

// Migrate creates the jobs table if it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool
func (s *Store) Close() {
	s.pool.Close()
}

// Create inserts a new job
func (s *Store) Create(ctx context.Context, j *job.Job) error {
	if !j.Status.Valid() {
		return fmt.Errorf("invalid job status %q", j.Status)
	}

	createdAt := j.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO transcription_jobs (id, audio_ref, "interval", include_speaker, job_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		j.ID, j.AudioRef, j.Interval, j.IncludeSpeaker, string(j.Status), createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", j.ID, err)
	}
	return nil
}

// Get reads a job by id
func (s *Store) Get(ctx context.Context, id string) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, audio_ref, "interval", include_speaker, job_status,
		       transcript_blob_url, transcript_filename, error_message, created_at, updated_at
		FROM transcription_jobs WHERE id = $1`, id)

	var (
		j                     job.Job
		status                string
		url, filename, errMsg *string
	)
	err := row.Scan(&j.ID, &j.AudioRef, &j.Interval, &j.IncludeSpeaker, &status,
		&url, &filename, &errMsg, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, job.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read job %s: %w", id, err)
	}

	j.Status = job.Status(status)
	j.TranscriptURL = deref(url)
	j.TranscriptFilename = deref(filename)
	j.Error = deref(errMsg)
	return &j, nil
}

// Update writes a status change if the stored status permits it
func (s *Store) Update(ctx context.Context, id string, update job.Update) error {
	from := job.AllowedFrom(update.Status)
	if len(from) == 0 {
		return fmt.Errorf("%w: no transition into %q", job.ErrInvalidTransition, update.Status)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE transcription_jobs
		SET job_status = $2,
		    transcript_blob_url = NULLIF($3, ''),
		    transcript_filename = NULLIF($4, ''),
		    error_message = NULLIF($5, ''),
		    updated_at = now()
		WHERE id = $1 AND job_status = ANY($6)`,
		id, string(update.Status), update.TranscriptURL, update.TranscriptFilename, update.Error, statusStrings(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is %s, cannot move to %s", job.ErrInvalidTransition, id, current.Status, update.Status)
}

func statusStrings(statuses []job.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
