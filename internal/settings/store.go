package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is swapped by tests.
var timeNow = time.Now

// runTimeLayout is fixed-width so stored run timestamps sort as text.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z"

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls this far behind misses changes.
const subscriberBuffer = 16

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds settings store configuration.
type Config struct {
	DataDir string
}

// DefaultConfig returns the default configuration for the settings store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{DataDir: filepath.Join(home, ".sitesweep")}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// SQLiteStore is the Store backed by SQLite.
type SQLiteStore struct {
	db    *sql.DB
	cfg   Config
	hooks storeHooks

	// mu serializes Update within the process; _txlock=immediate covers
	// other processes sharing the file.
	mu sync.Mutex

	subMu  sync.Mutex
	subs   map[int]chan Change
	nextID int
}

type storeHooks struct {
	beginTx func(ctx context.Context, db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		beginTx: func(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
			return db.BeginTx(ctx, nil)
		},
		commit: func(tx *sql.Tx) error {
			return tx.Commit()
		},
	}
}

func (s *SQLiteStore) beginTxHook(ctx context.Context) (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(ctx, s.db)
	}
	return s.db.BeginTx(ctx, nil)
}

func (s *SQLiteStore) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// New creates a new SQLiteStore with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// runs migrations and seeds defaults on first run.
func New(cfg Config) (*SQLiteStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("settings: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "settings.db")
	db, err := openDB("sqlite", dbPath+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("settings: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("settings: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:    db,
		cfg:   cfg,
		hooks: defaultStoreHooks(),
		subs:  make(map[int]chan Change),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("settings: migration: %w", err)
	}
	return s, nil
}

// Close closes the database and every subscriber channel.
func (s *SQLiteStore) Close() error {
	s.subMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS purge_runs (
			id              TEXT PRIMARY KEY,
			trigger         TEXT    NOT NULL,
			trigger_site    TEXT    NOT NULL DEFAULT '',
			sites           TEXT    NOT NULL DEFAULT '[]',
			deleted         INTEGER NOT NULL DEFAULT 0,
			skipped         INTEGER NOT NULL DEFAULT 0,
			kept            INTEGER NOT NULL DEFAULT 0,
			failed          INTEGER NOT NULL DEFAULT 0,
			cookies_removed INTEGER NOT NULL DEFAULT 0,
			started_at      TEXT    NOT NULL,
			finished_at     TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_purge_runs_started ON purge_runs(started_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Seed defaults; existing rows are never overwritten here.
	values, err := encode(Defaults())
	if err != nil {
		return err
	}
	now := timeNow().UTC().Format(time.RFC3339)
	for _, key := range AllKeys {
		if _, err := s.db.Exec(
			`INSERT OR IGNORE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
			key, values[key], now,
		); err != nil {
			return fmt.Errorf("seed %s: %w", key, err)
		}
	}
	return nil
}

// ─── Get / Update ────────────────────────────────────────────────────────────

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Get returns the current settings.
func (s *SQLiteStore) Get(ctx context.Context) (Settings, error) {
	cur, err := load(ctx, s.db)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: get: %w", err)
	}
	return cur, nil
}

// Update applies fn to the current settings inside one transaction.
func (s *SQLiteStore) Update(ctx context.Context, fn func(*Settings) error) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return Change{}, fmt.Errorf("settings: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	old, err := load(ctx, tx)
	if err != nil {
		return Change{}, fmt.Errorf("settings: update: %w", err)
	}

	next := old.Clone()
	if err := fn(&next); err != nil {
		return Change{}, err
	}
	Normalize(&next)

	oldValues, err := encode(old)
	if err != nil {
		return Change{}, fmt.Errorf("settings: update: %w", err)
	}
	newValues, err := encode(next)
	if err != nil {
		return Change{}, fmt.Errorf("settings: update: %w", err)
	}

	change := Change{Old: old, New: next}
	now := timeNow().UTC().Format(time.RFC3339)
	for _, key := range AllKeys {
		if oldValues[key] == newValues[key] {
			continue
		}
		change.Keys = append(change.Keys, key)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, newValues[key], now,
		); err != nil {
			return Change{}, fmt.Errorf("settings: write %s: %w", key, err)
		}
	}

	if len(change.Keys) == 0 {
		return change, nil
	}
	if err := s.commitHook(tx); err != nil {
		return Change{}, fmt.Errorf("settings: commit: %w", err)
	}

	s.broadcast(change)
	return change, nil
}

// ─── Subscribers ─────────────────────────────────────────────────────────────

// Subscribe returns a channel receiving every committed change and a
// function that unsubscribes and closes it.
func (s *SQLiteStore) Subscribe() (<-chan Change, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Change, subscriberBuffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
			}
		})
	}
}

func (s *SQLiteStore) broadcast(c Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// ─── Purge runs ──────────────────────────────────────────────────────────────

// RecordRun stores a purge run, assigning an ID when it has none.
func (s *SQLiteStore) RecordRun(ctx context.Context, run PurgeRun) (PurgeRun, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Sites == nil {
		run.Sites = []string{}
	}
	sitesJSON, err := json.Marshal(run.Sites)
	if err != nil {
		return PurgeRun{}, fmt.Errorf("settings: record run: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO purge_runs
			(id, trigger, trigger_site, sites, deleted, skipped, kept, failed, cookies_removed, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Trigger, run.TriggerSite, string(sitesJSON),
		run.Deleted, run.Skipped, run.Kept, run.Failed, run.CookiesRemoved,
		run.StartedAt.UTC().Format(runTimeLayout), run.FinishedAt.UTC().Format(runTimeLayout),
	)
	if err != nil {
		return PurgeRun{}, fmt.Errorf("settings: record run: %w", err)
	}
	return run, nil
}

// Runs lists purge runs newest first. A non-positive limit means 20.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]PurgeRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trigger, trigger_site, sites, deleted, skipped, kept, failed, cookies_removed, started_at, finished_at
		 FROM purge_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("settings: list runs: %w", err)
	}
	defer rows.Close()

	var runs []PurgeRun
	for rows.Next() {
		var (
			r                 PurgeRun
			sitesJSON         string
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.Trigger, &r.TriggerSite, &sitesJSON,
			&r.Deleted, &r.Skipped, &r.Kept, &r.Failed, &r.CookiesRemoved,
			&started, &finished); err != nil {
			return nil, fmt.Errorf("settings: scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(sitesJSON), &r.Sites); err != nil {
			return nil, fmt.Errorf("settings: run %s sites: %w", r.ID, err)
		}
		r.StartedAt, _ = time.Parse(runTimeLayout, started)
		r.FinishedAt, _ = time.Parse(runTimeLayout, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ─── Encoding ────────────────────────────────────────────────────────────────

// load reads every key row into a Settings. Missing keys keep defaults.
func load(ctx context.Context, q queryer) (Settings, error) {
	rows, err := q.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return Settings{}, err
	}
	defer rows.Close()

	out := Defaults()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, err
		}
		if err := decodeKey(&out, key, []byte(value)); err != nil {
			return Settings{}, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	if err := rows.Err(); err != nil {
		return Settings{}, err
	}
	Normalize(&out)
	return out, nil
}

// encode renders each key as JSON. Times are stored as Unix milliseconds,
// with 0 (next_fire_at) or null (last_cleaned_at) meaning unset.
func encode(s Settings) (map[string]string, error) {
	var nextFire int64
	if !s.NextFireAt.IsZero() {
		nextFire = s.NextFireAt.UnixMilli()
	}
	var lastCleaned *int64
	if s.LastCleanedAt != nil {
		ms := s.LastCleanedAt.UnixMilli()
		lastCleaned = &ms
	}
	sites := s.TrackedSites
	if sites == nil {
		sites = []string{}
	}

	raw := map[string]any{
		KeyEnabled:         s.Enabled,
		KeyTrackedSites:    sites,
		KeyIntervalMinutes: s.IntervalMinutes,
		KeyTimerActive:     s.TimerActive,
		KeyNextFireAt:      nextFire,
		KeyTriggerSite:     s.TriggerSite,
		KeyLastCleanedAt:   lastCleaned,
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		out[k] = string(b)
	}
	return out, nil
}

func decodeKey(s *Settings, key string, value []byte) error {
	switch key {
	case KeyEnabled:
		return json.Unmarshal(value, &s.Enabled)
	case KeyTrackedSites:
		return json.Unmarshal(value, &s.TrackedSites)
	case KeyIntervalMinutes:
		return json.Unmarshal(value, &s.IntervalMinutes)
	case KeyTimerActive:
		return json.Unmarshal(value, &s.TimerActive)
	case KeyNextFireAt:
		var ms int64
		if err := json.Unmarshal(value, &ms); err != nil {
			return err
		}
		if ms > 0 {
			s.NextFireAt = time.UnixMilli(ms)
		}
		return nil
	case KeyTriggerSite:
		return json.Unmarshal(value, &s.TriggerSite)
	case KeyLastCleanedAt:
		var ms *int64
		if err := json.Unmarshal(value, &ms); err != nil {
			return err
		}
		if ms != nil {
			t := time.UnixMilli(*ms)
			s.LastCleanedAt = &t
		}
		return nil
	}
	// Keys written by a newer version are ignored.
	return nil
}
