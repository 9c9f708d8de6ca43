package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/linkscan/internal/model"
)

// DBFileName is the name of the history database inside the data directory.
const DBFileName = "linkscan.db"

// ErrReportNotFound is returned when no stored report matches a lookup.
var ErrReportNotFound = errors.New("scan report not found")

// timestampLayout is how scan times are written. Millisecond precision keeps
// consecutive scans of the same site in order.
const timestampLayout = "2006-01-02 15:04:05.000"

// ScanDB provides SQLite-based storage for scan reports.
// It is safe for concurrent use; SQLite serializes the writes.
type ScanDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	// now returns the time recorded for a new report.
	now func() time.Time
}

// Options configures ScanDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ScanDB in the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ScanDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

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

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &ScanDB{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Close closes the database connection.
func (sdb *ScanDB) Close() error {
	return sdb.db.Close()
}

// Path returns the database file path.
func (sdb *ScanDB) Path() string {
	return sdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (sdb *ScanDB) createTables() error {
	schema := `
	-- Scan reports store complete scan results as JSON
	CREATE TABLE IF NOT EXISTS scan_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL UNIQUE,
		start_url TEXT NOT NULL,
		host TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		report_json TEXT NOT NULL,
		scanned_count INTEGER NOT NULL,
		broken_count INTEGER NOT NULL,
		total_links INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_host ON scan_reports(host);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON scan_reports(timestamp);

	-- Broken links are denormalized for querying across scans
	CREATE TABLE IF NOT EXISTS broken_links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL REFERENCES scan_reports(scan_id) ON DELETE CASCADE,
		source_page TEXT NOT NULL,
		link TEXT NOT NULL,
		status_code INTEGER,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_broken_scan ON broken_links(scan_id);
	CREATE INDEX IF NOT EXISTS idx_broken_link ON broken_links(link);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveScanReport stores a report and its broken links in one transaction.
// It returns the generated scan ID.
func (sdb *ScanDB) SaveScanReport(ctx context.Context, report *model.ScanReport) (string, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to serialize report: %w", err)
	}

	scanID := uuid.NewString()

	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	query := `
	INSERT INTO scan_reports (scan_id, start_url, host, timestamp, report_json, scanned_count, broken_count, total_links)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		scanID,
		report.StartURL,
		report.Host(),
		sdb.now().UTC().Format(timestampLayout),
		string(reportJSON),
		report.ScannedCount,
		report.BrokenCount,
		report.TotalLinksChecked,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save scan report: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO broken_links (scan_id, source_page, link, status_code, error)
	VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare broken link insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range report.Broken {
		var status sql.NullInt64
		if b.StatusCode != nil {
			status = sql.NullInt64{Int64: int64(*b.StatusCode), Valid: true}
		}
		var errText sql.NullString
		if b.Error != nil {
			errText = sql.NullString{String: *b.Error, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, scanID, b.SourcePage, b.Link, status, errText); err != nil {
			return "", fmt.Errorf("failed to save broken link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit scan report: %w", err)
	}

	return scanID, nil
}

// GetLatestScanReport retrieves the most recent scan report for a host.
func (sdb *ScanDB) GetLatestScanReport(ctx context.Context, host string) (*model.ScanReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE host = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`
	return sdb.queryReport(ctx, query, host)
}

// GetScanReportByID retrieves a scan report by its database ID.
func (sdb *ScanDB) GetScanReportByID(ctx context.Context, id int64) (*model.ScanReport, error) {
	return sdb.queryReport(ctx, `SELECT report_json FROM scan_reports WHERE id = ?`, id)
}

// GetScanReportByScanID retrieves a scan report by its scan UUID.
func (sdb *ScanDB) GetScanReportByScanID(ctx context.Context, scanID string) (*model.ScanReport, error) {
	return sdb.queryReport(ctx, `SELECT report_json FROM scan_reports WHERE scan_id = ?`, scanID)
}

func (sdb *ScanDB) queryReport(ctx context.Context, query string, args ...any) (*model.ScanReport, error) {
	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListScannedSites returns every host with at least one stored report.
func (sdb *ScanDB) ListScannedSites(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT host FROM scan_reports
	ORDER BY host
	`

	rows, err := sdb.db.QueryContext(ctx, query)
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

// ScanReportMetadata contains summary information about a scan report.
// This is used for displaying scan history without loading the full report.
type ScanReportMetadata struct {
	// ID is the database row ID, used by history --with-scan-id.
	ID int64 `json:"id"`

	// ScanID is the scan UUID.
	ScanID string `json:"scan_id"`

	// StartURL is the normalized start URL of the scan.
	StartURL string `json:"start_url"`

	// Host is the site key.
	Host string `json:"host"`

	// Timestamp is when the scan was stored.
	Timestamp time.Time `json:"timestamp"`

	// ScannedCount is the number of pages scanned.
	ScannedCount int `json:"scanned_count"`

	// BrokenCount is the number of broken links found.
	BrokenCount int `json:"broken_count"`

	// TotalLinks is the number of links checked.
	TotalLinks int `json:"total_links"`
}

// GetScanHistoryWithMetadata retrieves scan metadata for a host, newest first.
func (sdb *ScanDB) GetScanHistoryWithMetadata(ctx context.Context, host string) ([]ScanReportMetadata, error) {
	query := `
	SELECT id, scan_id, start_url, host, timestamp, scanned_count, broken_count, total_links
	FROM scan_reports
	WHERE host = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := sdb.db.QueryContext(ctx, query, host)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var results []ScanReportMetadata
	for rows.Next() {
		var meta ScanReportMetadata
		var timestamp string

		if err := rows.Scan(&meta.ID, &meta.ScanID, &meta.StartURL, &meta.Host, &timestamp,
			&meta.ScannedCount, &meta.BrokenCount, &meta.TotalLinks); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetBrokenLinks returns the broken links stored for a scan, in discovery order.
func (sdb *ScanDB) GetBrokenLinks(ctx context.Context, scanID string) ([]model.BrokenLink, error) {
	query := `
	SELECT source_page, link, status_code, error
	FROM broken_links
	WHERE scan_id = ?
	ORDER BY id
	`

	rows, err := sdb.db.QueryContext(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get broken links: %w", err)
	}
	defer rows.Close()

	links := make([]model.BrokenLink, 0)
	for rows.Next() {
		var b model.BrokenLink
		var status sql.NullInt64
		var errText sql.NullString
		if err := rows.Scan(&b.SourcePage, &b.Link, &status, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan broken link: %w", err)
		}
		if status.Valid {
			code := int(status.Int64)
			b.StatusCode = &code
		}
		if errText.Valid {
			msg := errText.String
			b.Error = &msg
		}
		links = append(links, b)
	}

	return links, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,        // format written by SaveScanReport
	"2006-01-02 15:04:05",  // SQLite default datetime format
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",  // ISO 8601 without timezone
	time.RFC3339,           // Full RFC3339 format
	time.RFC3339Nano,       // RFC3339 with nanoseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
