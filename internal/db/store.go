package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
)

// Filename is the database file inside the data directory.
const Filename = "syncmonster.sqlite"

const schema = `
	CREATE TABLE IF NOT EXISTS credentials (
		baseUrl TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		token TEXT NOT NULL,
		savedAt REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		videoId TEXT NOT NULL,
		segments TEXT NOT NULL,
		outcome TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		submittedAt REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_video
		ON submissions(videoId, submittedAt);
`

// Store provides access to the local SQLite database.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the database path inside dataDir.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, Filename)
}

// Open opens (creating if needed) the database at path with WAL and applies
// the schema. Pass ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveCredential stores the token for a backend, replacing any previous one.
func (s *Store) SaveCredential(ctx context.Context, c Credential) error {
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (baseUrl, username, token, savedAt)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(baseUrl) DO UPDATE SET
			username = excluded.username,
			token = excluded.token,
			savedAt = excluded.savedAt
	`, c.BaseURL, c.Username, c.Token, unixFromTime(c.SavedAt))
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Credential returns the saved token for a backend, or nil if there is none.
func (s *Store) Credential(ctx context.Context, baseURL string) (*Credential, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT baseUrl, username, token, savedAt
		FROM credentials
		WHERE baseUrl = ?
	`, baseURL)

	var c Credential
	var savedAt float64
	if err := row.Scan(&c.BaseURL, &c.Username, &c.Token, &savedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	c.SavedAt = timeFromUnix(savedAt)
	return &c, nil
}

// DeleteCredential forgets the token for a backend.
func (s *Store) DeleteCredential(ctx context.Context, baseURL string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE baseUrl = ?`, baseURL); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// RecordSubmission appends a split attempt to the journal.
func (s *Store) RecordSubmission(ctx context.Context, sub Submission) error {
	segs, err := json.Marshal(sub.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, videoId, segments, outcome, message, submittedAt)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.VideoID, string(segs), sub.Outcome, sub.Message, unixFromTime(sub.SubmittedAt))
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// SubmissionsForVideo returns the most recent attempts for a video, newest
// first. A non-positive limit returns all of them.
func (s *Store) SubmissionsForVideo(ctx context.Context, videoID string, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, videoId, segments, outcome, message, submittedAt
		FROM submissions
		WHERE videoId = ?
		ORDER BY submittedAt DESC
		LIMIT ?
	`, videoID, limit)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var sub Submission
		var segs string
		var submittedAt float64
		if err := rows.Scan(&sub.ID, &sub.VideoID, &segs, &sub.Outcome, &sub.Message, &submittedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		var ranges []api.Range
		if err := json.Unmarshal([]byte(segs), &ranges); err != nil {
			return nil, fmt.Errorf("decode segments for %s: %w", sub.ID, err)
		}
		sub.Segments = ranges
		sub.SubmittedAt = timeFromUnix(submittedAt)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
