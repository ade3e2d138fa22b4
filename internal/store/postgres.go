package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amishk599/hirewire/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	company       TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	contract_type TEXT,
	url           TEXT NOT NULL DEFAULT '',
	posted_at     TIMESTAMPTZ,
	description   TEXT NOT NULL DEFAULT '',
	fetched_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_fetched_at ON jobs (fetched_at DESC);
CREATE TABLE IF NOT EXISTS seen_fingerprints (
	fingerprint TEXT PRIMARY KEY,
	first_seen  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_seen_first_seen ON seen_fingerprints (first_seen);
`

const postgresUpsert = `
INSERT INTO jobs (id, source, title, company, location, contract_type, url, posted_at, description, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
	source        = EXCLUDED.source,
	title         = EXCLUDED.title,
	company       = EXCLUDED.company,
	location      = EXCLUDED.location,
	url           = EXCLUDED.url,
	contract_type = COALESCE(EXCLUDED.contract_type, jobs.contract_type),
	posted_at     = COALESCE(EXCLUDED.posted_at, jobs.posted_at),
	description   = CASE WHEN EXCLUDED.description <> '' THEN EXCLUDED.description ELSE jobs.description END,
	fetched_at    = EXCLUDED.fetched_at`

const postgresSelectJob = `SELECT id, source, title, company, location, contract_type, url, posted_at, description, fetched_at FROM jobs`

// PostgresStore is the shared-database variant of SQLiteStore, for several
// hirewire processes writing to one place.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore connects with dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 4
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, job model.Job) error {
	_, err := s.pool.Exec(ctx, postgresUpsert,
		job.ID, job.Source, job.Title, job.Company, job.Location,
		job.ContractType, job.URL, job.PostedAt, job.Description,
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting job %s: %w", job.ID, err)
	}
	return nil
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres health check: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (model.Job, error) {
	job, err := scanPostgresJob(s.pool.QueryRow(ctx, postgresSelectJob+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Job{}, ErrNotFound
	}
	if err != nil {
		return model.Job{}, fmt.Errorf("getting job %s: %w", id, err)
	}
	return job, nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx, postgresSelectJob+` ORDER BY fetched_at DESC, id LIMIT $1`, recentLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanPostgresJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) CheckAndMark(ctx context.Context, fp string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO seen_fingerprints (fingerprint, first_seen) VALUES ($1, $2) ON CONFLICT (fingerprint) DO NOTHING`,
		fp, s.now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("marking fingerprint %s: %w", fp, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Unmark(ctx context.Context, fp string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM seen_fingerprints WHERE fingerprint = $1`, fp); err != nil {
		return fmt.Errorf("unmarking fingerprint %s: %w", fp, err)
	}
	return nil
}

func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM seen_fingerprints`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting fingerprints: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM seen_fingerprints WHERE first_seen < $1`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning fingerprints older than %v: %w", olderThan, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPostgresJob(r rowScanner) (model.Job, error) {
	var job model.Job
	err := r.Scan(&job.ID, &job.Source, &job.Title, &job.Company, &job.Location,
		&job.ContractType, &job.URL, &job.PostedAt, &job.Description, &job.FetchedAt)
	if err != nil {
		return model.Job{}, err
	}
	return job, nil
}
