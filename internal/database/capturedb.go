package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitediff/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "sitediff.db"

// CaptureDB provides SQLite-based storage for captures and diff results.
type CaptureDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CaptureDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CaptureDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CaptureDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CaptureDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CaptureDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CaptureDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CaptureDB) createTables() error {
	schema := `
	-- Sites remember where their latest run pointed
	CREATE TABLE IF NOT EXISTS sites (
		name TEXT PRIMARY KEY,
		website TEXT NOT NULL DEFAULT '',
		compare_domain TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	-- Captures hold the latest render of each URL per generation
	CREATE TABLE IF NOT EXISTS captures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		generation TEXT NOT NULL,
		url TEXT NOT NULL,
		image_path TEXT NOT NULL,
		fingerprint TEXT NOT NULL DEFAULT '',
		captured_at TEXT NOT NULL,
		UNIQUE(site, generation, url)
	);

	CREATE INDEX IF NOT EXISTS idx_captures_site ON captures(site, generation);

	-- Diff results hold the latest comparison, in report order
	CREATE TABLE IF NOT EXISTS diff_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		candidate_url TEXT NOT NULL DEFAULT '',
		diff REAL,
		error TEXT NOT NULL DEFAULT '',
		original_image_path TEXT NOT NULL DEFAULT '',
		new_image_path TEXT NOT NULL DEFAULT '',
		diff_image_path TEXT NOT NULL DEFAULT '',
		compared_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_diff_results_site ON diff_results(site, position);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SiteRecord is the stored state of one site.
type SiteRecord struct {
	Name          string
	Website       string
	CompareDomain string
	UpdatedAt     time.Time
}

// UpsertSite records the website and compare domain of a site.
func (cdb *CaptureDB) UpsertSite(ctx context.Context, site SiteRecord) error {
	if site.UpdatedAt.IsZero() {
		site.UpdatedAt = time.Now()
	}

	query := `
	INSERT INTO sites (name, website, compare_domain, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		website = excluded.website,
		compare_domain = excluded.compare_domain,
		updated_at = excluded.updated_at
	`

	_, err := cdb.db.ExecContext(ctx, query,
		site.Name,
		site.Website,
		site.CompareDomain,
		formatTimestamp(site.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save site: %w", err)
	}
	return nil
}

// GetSite returns the stored state of a site, or nil when unknown.
func (cdb *CaptureDB) GetSite(ctx context.Context, name string) (*SiteRecord, error) {
	query := `
	SELECT name, website, compare_domain, updated_at
	FROM sites
	WHERE name = ?
	`

	var rec SiteRecord
	var updatedAt string
	err := cdb.db.QueryRowContext(ctx, query, name).Scan(&rec.Name, &rec.Website, &rec.CompareDomain, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}

	rec.UpdatedAt = parseTimestamp(updatedAt)
	return &rec, nil
}

// ReplaceCaptures stores artifacts as the only captures of a site's
// generation. Captures of the other generation are left alone.
func (cdb *CaptureDB) ReplaceCaptures(ctx context.Context, site string, gen model.Generation, artifacts []model.CaptureArtifact) error {
	return cdb.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM captures WHERE site = ? AND generation = ?", site, gen.String()); err != nil {
			return fmt.Errorf("failed to clear captures: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO captures (site, generation, url, image_path, fingerprint, captured_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(site, generation, url) DO UPDATE SET
			image_path = excluded.image_path,
			fingerprint = excluded.fingerprint,
			captured_at = excluded.captured_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare capture insert: %w", err)
		}
		defer stmt.Close()

		for _, a := range artifacts {
			capturedAt := a.CapturedAt
			if capturedAt.IsZero() {
				capturedAt = time.Now()
			}
			if _, err := stmt.ExecContext(ctx,
				site, gen.String(), a.URL, a.ImagePath, a.Fingerprint, formatTimestamp(capturedAt)); err != nil {
				return fmt.Errorf("failed to insert capture of %s: %w", a.URL, err)
			}
		}
		return nil
	})
}

// ListCaptures returns the stored captures of a site's generation in
// insertion order.
func (cdb *CaptureDB) ListCaptures(ctx context.Context, site string, gen model.Generation) ([]model.CaptureArtifact, error) {
	query := `
	SELECT url, image_path, fingerprint, captured_at
	FROM captures
	WHERE site = ? AND generation = ?
	ORDER BY id
	`

	rows, err := cdb.db.QueryContext(ctx, query, site, gen.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	defer rows.Close()

	var artifacts []model.CaptureArtifact
	for rows.Next() {
		a := model.CaptureArtifact{Generation: gen}
		var capturedAt string
		if err := rows.Scan(&a.URL, &a.ImagePath, &a.Fingerprint, &capturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		a.CapturedAt = parseTimestamp(capturedAt)
		artifacts = append(artifacts, a)
	}

	return artifacts, rows.Err()
}

// SaveDiffResults replaces the stored comparison of a site with results,
// keeping their order.
func (cdb *CaptureDB) SaveDiffResults(ctx context.Context, site string, results []model.DiffResult) error {
	comparedAt := formatTimestamp(time.Now())

	return cdb.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM diff_results WHERE site = ?", site); err != nil {
			return fmt.Errorf("failed to clear diff results: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO diff_results (site, position, url, candidate_url, diff, error,
			original_image_path, new_image_path, diff_image_path, compared_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare diff result insert: %w", err)
		}
		defer stmt.Close()

		for i, r := range results {
			var diff sql.NullFloat64
			if r.DiffPercent != nil {
				diff = sql.NullFloat64{Float64: *r.DiffPercent, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx,
				site, i, r.URL, r.CandidateURL, diff, r.Error,
				r.OriginalImagePath, r.NewImagePath, r.DiffImagePath, comparedAt); err != nil {
				return fmt.Errorf("failed to insert diff result of %s: %w", r.URL, err)
			}
		}
		return nil
	})
}

// LatestDiffResults returns the stored comparison of a site in report
// order and when it was saved. A site without results returns nil and
// the zero time.
func (cdb *CaptureDB) LatestDiffResults(ctx context.Context, site string) ([]model.DiffResult, time.Time, error) {
	query := `
	SELECT url, candidate_url, diff, error, original_image_path, new_image_path, diff_image_path, compared_at
	FROM diff_results
	WHERE site = ?
	ORDER BY position
	`

	rows, err := cdb.db.QueryContext(ctx, query, site)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to get diff results: %w", err)
	}
	defer rows.Close()

	var results []model.DiffResult
	var comparedAt time.Time
	for rows.Next() {
		var r model.DiffResult
		var diff sql.NullFloat64
		var ts string
		if err := rows.Scan(&r.URL, &r.CandidateURL, &diff, &r.Error,
			&r.OriginalImagePath, &r.NewImagePath, &r.DiffImagePath, &ts); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan diff result: %w", err)
		}
		if diff.Valid {
			p := diff.Float64
			r.DiffPercent = &p
		}
		comparedAt = parseTimestamp(ts)
		results = append(results, r)
	}

	return results, comparedAt, rows.Err()
}

// ListSites returns the names of all sites with stored captures or results.
func (cdb *CaptureDB) ListSites(ctx context.Context) ([]string, error) {
	query := `
	SELECT site FROM captures
	UNION
	SELECT site FROM diff_results
	UNION
	SELECT name FROM sites
	ORDER BY 1
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// inTx runs fn in a transaction, committing when it returns nil.
func (cdb *CaptureDB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// formatTimestamp formats t for storage.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses a stored timestamp, returning zero time when no
// format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
