// Package chromium implements the host capabilities against a Chromium
// profile: the History SQLite file for history, and a DevTools connection
// (go-rod) for cookies, cache, per-origin storage and tab events.
package chromium

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/HendryAvila/sitesweep/internal/host"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// webkitEpochOffset is the number of seconds between 1601-01-01 (the
// origin of Chromium timestamps) and the Unix epoch.
const webkitEpochOffset = 11644473600

// ErrNoProfile is returned when no History file can be located.
var ErrNoProfile = errors.New("chromium: history file not found")

// FromWebKit converts Chromium microseconds-since-1601 to time.
// Zero stays the zero time.
func FromWebKit(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us - webkitEpochOffset*1_000_000).UTC()
}

// ToWebKit converts t to Chromium microseconds-since-1601.
func ToWebKit(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro() + webkitEpochOffset*1_000_000
}

// DefaultHistoryPath returns the History file of the default Chrome
// profile for the current OS.
func DefaultHistoryPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = filepath.Join(os.Getenv("LOCALAPPDATA"), "Google", "Chrome", "User Data")
	case "darwin":
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(dir, "Google", "Chrome")
	default:
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(dir, "google-chrome")
	}
	path := filepath.Join(base, "Default", "History")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoProfile, path)
	}
	return path, nil
}

// HistoryDB is a host.HistoryStore over a Chromium History file.
//
// Chromium keeps the file open while it runs; writes wait up to the busy
// timeout for its lock.
type HistoryDB struct {
	db   *sql.DB
	path string
}

var _ host.HistoryStore = (*HistoryDB)(nil)

// OpenHistory opens the History database at path.
func OpenHistory(path string) (*HistoryDB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoProfile, err)
	}
	db, err := openDB("sqlite", path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("chromium: open history: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("chromium: open history: %w", err)
	}
	return &HistoryDB{db: db, path: path}, nil
}

// Close closes the database.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path is the History file in use.
func (h *HistoryDB) Path() string { return h.path }

// Search returns visible history entries whose URL or title contains
// q.Text, most recent first.
func (h *HistoryDB) Search(ctx context.Context, q host.Query) ([]host.HistoryEntry, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, "hidden = 0")
	if q.Text != "" {
		like := "%" + escapeLike(q.Text) + "%"
		where = append(where, `(url LIKE ? ESCAPE '\' OR title LIKE ? ESCAPE '\')`)
		args = append(args, like, like)
	}
	if !q.Start.IsZero() {
		where = append(where, "last_visit_time >= ?")
		args = append(args, ToWebKit(q.Start))
	}
	if !q.End.IsZero() {
		where = append(where, "last_visit_time <= ?")
		args = append(args, ToWebKit(q.End))
	}
	limit := -1
	if q.MaxResults > 0 {
		limit = q.MaxResults
	}
	args = append(args, limit)

	query := `SELECT url, title, last_visit_time FROM urls WHERE ` +
		strings.Join(where, " AND ") +
		` ORDER BY last_visit_time DESC LIMIT ?`

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("chromium: search history: %w", err)
	}
	defer rows.Close()

	var out []host.HistoryEntry
	for rows.Next() {
		var (
			e     host.HistoryEntry
			title sql.NullString
			last  int64
		)
		if err := rows.Scan(&e.URL, &title, &last); err != nil {
			return nil, fmt.Errorf("chromium: scan history: %w", err)
		}
		e.Title = title.String
		e.LastVisitTime = FromWebKit(last)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteURL removes the URL and all of its visits.
func (h *HistoryDB) DeleteURL(ctx context.Context, rawURL string) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("chromium: delete %s: %w", rawURL, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM visits WHERE url IN (SELECT id FROM urls WHERE url = ?)`, rawURL); err != nil {
		return fmt.Errorf("chromium: delete visits of %s: %w", rawURL, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM urls WHERE url = ?`, rawURL); err != nil {
		return fmt.Errorf("chromium: delete %s: %w", rawURL, err)
	}
	return tx.Commit()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
