package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/hirewire/internal/model"
)

// Timestamps are stored as Unix milliseconds so ordering and pruning stay
// integer comparisons.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	company       TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	contract_type TEXT,
	url           TEXT NOT NULL DEFAULT '',
	posted_at     INTEGER,
	description   TEXT NOT NULL DEFAULT '',
	fetched_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_fetched_at ON jobs (fetched_at DESC);
CREATE TABLE IF NOT EXISTS seen_fingerprints (
	fingerprint TEXT PRIMARY KEY,
	first_seen  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_seen_first_seen ON seen_fingerprints (first_seen);
`

// The description column keeps its old value when the incoming one is empty,
// contract_type and posted_at when the incoming value is NULL.
const sqliteUpsert = `
INSERT INTO jobs (id, source, title, company, location, contract_type, url, posted_at, description, fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	source        = excluded.source,
	title         = excluded.title,
	company       = excluded.company,
	location      = excluded.location,
	url           = excluded.url,
	contract_type = COALESCE(excluded.contract_type, jobs.contract_type),
	posted_at     = COALESCE(excluded.posted_at, jobs.posted_at),
	description   = CASE WHEN excluded.description <> '' THEN excluded.description ELSE jobs.description END,
	fetched_at    = excluded.fetched_at`

const sqliteSelectJob = `SELECT id, source, title, company, location, contract_type, url, posted_at, description, fetched_at FROM jobs`

// SQLiteStore keeps jobs and seen fingerprints in a single SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// jobs and seen_fingerprints tables exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer; the pipeline's workers serialize here instead of on SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Upsert writes job keyed by id, merging with any existing row.
// fetched_at is always set to now.
func (s *SQLiteStore) Upsert(ctx context.Context, job model.Job) error {
	_, err := s.db.ExecContext(ctx, sqliteUpsert,
		job.ID, job.Source, job.Title, job.Company, job.Location,
		job.ContractType, job.URL, millisPtr(job.PostedAt), job.Description,
		s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upserting job %s: %w", job.ID, err)
	}
	return nil
}

func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite health check: %w", err)
	}
	return nil
}

// Get returns the stored job with the given id, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Job, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectJob+` WHERE id = ?`, id)
	job, err := scanSQLiteJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, ErrNotFound
	}
	if err != nil {
		return model.Job{}, fmt.Errorf("getting job %s: %w", id, err)
	}
	return job, nil
}

// Recent lists jobs by descending fetched_at.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectJob+` ORDER BY fetched_at DESC, id LIMIT ?`, recentLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CheckAndMark inserts fp into seen_fingerprints and reports whether the row
// was new. The primary key makes this atomic for concurrent callers.
func (s *SQLiteStore) CheckAndMark(ctx context.Context, fp string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO seen_fingerprints (fingerprint, first_seen) VALUES (?, ?) ON CONFLICT(fingerprint) DO NOTHING`,
		fp, s.now().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("marking fingerprint %s: %w", fp, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking fingerprint %s: %w", fp, err)
	}
	return n == 1, nil
}

// Unmark removes fp so the next cycle treats the candidate as new.
func (s *SQLiteStore) Unmark(ctx context.Context, fp string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM seen_fingerprints WHERE fingerprint = ?`, fp); err != nil {
		return fmt.Errorf("unmarking fingerprint %s: %w", fp, err)
	}
	return nil
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_fingerprints`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting fingerprints: %w", err)
	}
	return n, nil
}

// Prune deletes fingerprints first seen before olderThan.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM seen_fingerprints WHERE first_seen < ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("pruning fingerprints older than %v: %w", olderThan, err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteJob(r rowScanner) (model.Job, error) {
	var (
		job       model.Job
		contract  sql.NullString
		postedAt  sql.NullInt64
		fetchedAt int64
	)
	err := r.Scan(&job.ID, &job.Source, &job.Title, &job.Company, &job.Location,
		&contract, &job.URL, &postedAt, &job.Description, &fetchedAt)
	if err != nil {
		return model.Job{}, err
	}
	if contract.Valid {
		job.ContractType = &contract.String
	}
	if postedAt.Valid {
		t := time.UnixMilli(postedAt.Int64).UTC()
		job.PostedAt = &t
	}
	job.FetchedAt = time.UnixMilli(fetchedAt).UTC()
	return job, nil
}
