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

	"github.com/nao1215/catalogscan/internal/model"
)

// DBFileName is the name of the history database file inside the data directory.
const DBFileName = "catalogscan.db"

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// HistoryDB provides SQLite-based storage for crawl run history.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
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

// Open opens or creates the history database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

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

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		source_count INTEGER NOT NULL,
		failed_sources INTEGER NOT NULL,
		total_items INTEGER NOT NULL,
		unique_items INTEGER NOT NULL,
		output_file TEXT,
		written INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS source_crawls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		source_url TEXT NOT NULL,
		stop_reason TEXT NOT NULL,
		items INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		fetches INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		error TEXT,
		duration_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_source_crawls_run ON source_crawls(run_id);
	CREATE INDEX IF NOT EXISTS idx_source_crawls_url ON source_crawls(source_url);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		crawl_id INTEGER NOT NULL REFERENCES source_crawls(id) ON DELETE CASCADE,
		page_index INTEGER NOT NULL,
		url TEXT NOT NULL,
		item_count INTEGER NOT NULL,
		fingerprint TEXT,
		outcome TEXT NOT NULL,
		attempts INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pages_crawl ON pages(crawl_id);

	CREATE TABLE IF NOT EXISTS products (
		name TEXT PRIMARY KEY,
		first_seen_run INTEGER NOT NULL REFERENCES runs(id),
		last_seen_run INTEGER NOT NULL REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_products_first_seen ON products(first_seen_run);
	CREATE INDEX IF NOT EXISTS idx_products_last_seen ON products(last_seen_run);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is a stored run.
type RunRecord struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    time.Time
	SourceCount   int
	FailedSources int
	TotalItems    int
	UniqueItems   int
	OutputFile    string
	Written       bool
	Error         string
}

// Elapsed returns the run duration.
func (r RunRecord) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SourceCrawlRecord is a stored source crawl.
type SourceCrawlRecord struct {
	ID         int64
	RunID      int64
	Position   int
	SourceURL  string
	StopReason model.StopReason
	Items      int
	Pages      int
	Fetches    int
	Attempts   int
	Error      string
	Duration   time.Duration
}

// SaveRun stores run with all its source crawls, pages and catalog products
// in a single transaction and returns the new run ID.
func (h *HistoryDB) SaveRun(ctx context.Context, run *model.Run) (id int64, err error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (started_at, finished_at, source_count, failed_sources, total_items, unique_items, output_file, written, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTimestamp(run.StartedAt),
		formatTimestamp(finished),
		len(run.Sources),
		run.FailedSources(),
		run.TotalItems,
		len(run.Catalog),
		run.OutputFile,
		run.Written,
		run.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	for i, result := range run.Results {
		if result == nil {
			continue
		}
		if err := insertSourceCrawl(ctx, tx, runID, i, result); err != nil {
			return 0, err
		}
	}

	if err := upsertProducts(ctx, tx, runID, run.Catalog); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

func insertSourceCrawl(ctx context.Context, tx *sql.Tx, runID int64, position int, result *model.SourceResult) error {
	res, err := tx.ExecContext(ctx, `
	INSERT INTO source_crawls (run_id, position, source_url, stop_reason, items, pages, fetches, attempts, error, duration_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		position,
		result.SourceURL,
		string(result.StopReason),
		len(result.Items),
		result.AcceptedPages(),
		result.Fetches,
		result.Attempts,
		result.ErrorMessage,
		result.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert source crawl %s: %w", result.SourceURL, err)
	}
	crawlID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get source crawl ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (crawl_id, page_index, url, item_count, fingerprint, outcome, attempts)
	VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range result.Pages {
		if _, err := stmt.ExecContext(ctx, crawlID, p.Index, p.URL, p.ItemCount, p.Fingerprint, string(p.Outcome), p.Attempts); err != nil {
			return fmt.Errorf("failed to insert page %d of %s: %w", p.Number(), result.SourceURL, err)
		}
	}
	return nil
}

func upsertProducts(ctx context.Context, tx *sql.Tx, runID int64, names []string) error {
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO products (name, first_seen_run, last_seen_run) VALUES (?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET last_seen_run = excluded.last_seen_run`)
	if err != nil {
		return fmt.Errorf("failed to prepare product upsert: %w", err)
	}
	defer stmt.Close()

	for _, name := range names {
		if _, err := stmt.ExecContext(ctx, name, runID, runID); err != nil {
			return fmt.Errorf("failed to upsert product %q: %w", name, err)
		}
	}
	return nil
}

const runColumns = `id, started_at, finished_at, source_count, failed_sources, total_items, unique_items, output_file, written, error`

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all runs.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given ID, or ErrRunNotFound.
func (h *HistoryDB) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestRunID returns the ID of the most recent run, or ErrRunNotFound if
// no run has been recorded.
func (h *HistoryDB) LatestRunID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := h.db.QueryRowContext(ctx, `SELECT MAX(id) FROM runs`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to query latest run: %w", err)
	}
	if !id.Valid {
		return 0, ErrRunNotFound
	}
	return id.Int64, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (RunRecord, error) {
	var (
		r                   RunRecord
		started, finished   string
		outputFile, errText sql.NullString
	)
	err := s.Scan(&r.ID, &started, &finished, &r.SourceCount, &r.FailedSources,
		&r.TotalItems, &r.UniqueItems, &outputFile, &r.Written, &errText)
	if err != nil {
		return RunRecord{}, err
	}
	r.StartedAt = parseTimestamp(started)
	r.FinishedAt = parseTimestamp(finished)
	r.OutputFile = outputFile.String
	r.Error = errText.String
	return r, nil
}

// SourceCrawls returns the source crawls of a run in source order.
func (h *HistoryDB) SourceCrawls(ctx context.Context, runID int64) ([]SourceCrawlRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT id, run_id, position, source_url, stop_reason, items, pages, fetches, attempts, error, duration_ms
	FROM source_crawls WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query source crawls: %w", err)
	}
	defer rows.Close()

	crawls := make([]SourceCrawlRecord, 0)
	for rows.Next() {
		var (
			c          SourceCrawlRecord
			stopReason string
			errText    sql.NullString
			durationMS int64
		)
		if err := rows.Scan(&c.ID, &c.RunID, &c.Position, &c.SourceURL, &stopReason,
			&c.Items, &c.Pages, &c.Fetches, &c.Attempts, &errText, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan source crawl: %w", err)
		}
		c.StopReason = model.StopReason(stopReason)
		c.Error = errText.String
		c.Duration = time.Duration(durationMS) * time.Millisecond
		crawls = append(crawls, c)
	}
	return crawls, rows.Err()
}

// Pages returns the page log of a source crawl in page order.
func (h *HistoryDB) Pages(ctx context.Context, crawlID int64) ([]model.PageRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT page_index, url, item_count, fingerprint, outcome, attempts
	FROM pages WHERE crawl_id = ? ORDER BY page_index`, crawlID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	pages := make([]model.PageRecord, 0)
	for rows.Next() {
		var (
			p           model.PageRecord
			fingerprint sql.NullString
			outcome     string
		)
		if err := rows.Scan(&p.Index, &p.URL, &p.ItemCount, &fingerprint, &outcome, &p.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.Fingerprint = fingerprint.String
		p.Outcome = model.PageOutcome(outcome)
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// NewProducts returns the products first seen in the given run, sorted by name.
func (h *HistoryDB) NewProducts(ctx context.Context, runID int64) ([]string, error) {
	return h.queryNames(ctx, `SELECT name FROM products WHERE first_seen_run = ? ORDER BY name`, runID)
}

// MissingProducts returns the products seen in the run before runID but not
// in runID, sorted by name. It is empty for the first run. Only the latest
// run gives exact results: later runs move last_seen_run forward.
func (h *HistoryDB) MissingProducts(ctx context.Context, runID int64) ([]string, error) {
	return h.queryNames(ctx, `
	SELECT name FROM products
	WHERE last_seen_run = (SELECT MAX(id) FROM runs WHERE id < ?1)
	ORDER BY name`, runID)
}

// CountProducts returns the number of distinct products ever recorded.
func (h *HistoryDB) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func (h *HistoryDB) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

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

// parseTimestamp parses a stored timestamp, returning the zero time if no
// known format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
