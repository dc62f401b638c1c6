package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/saferoute/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS feedback (
	id         TEXT PRIMARY KEY,
	route_id   TEXT NOT NULL,
	rating     INTEGER NOT NULL,
	comments   TEXT NOT NULL DEFAULT '',
	issues     TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS explanation_cache (
	cache_key   TEXT PRIMARY KEY,
	explanation TEXT NOT NULL,
	cached_at   TEXT NOT NULL,
	expires_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_route_id ON feedback(route_id);
CREATE INDEX IF NOT EXISTS idx_explanation_cache_expires_at ON explanation_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendFeedback(ctx context.Context, fb model.Feedback) (string, error) {
	fb = stamp(fb)

	issuesJSON, err := json.Marshal(nonNil(fb.Issues))
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal issues")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, route_id, rating, comments, issues, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.RouteID, int(fb.Rating), fb.Comments, string(issuesJSON), formatTime(fb.CreatedAt),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert feedback")
	}
	return fb.ID, nil
}

func (s *SQLiteStore) ListFeedback(ctx context.Context) ([]model.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, route_id, rating, comments, issues, created_at FROM feedback ORDER BY rowid`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list feedback")
	}
	defer rows.Close() //nolint:errcheck
	return scanFeedbackRows(rows)
}

func (s *SQLiteStore) ListFeedbackByRoute(ctx context.Context, routeID string) ([]model.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, route_id, rating, comments, issues, created_at FROM feedback WHERE route_id = ? ORDER BY rowid`,
		routeID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list feedback for route %s", routeID)
	}
	defer rows.Close() //nolint:errcheck
	return scanFeedbackRows(rows)
}

func (s *SQLiteStore) GetCachedExplanation(ctx context.Context, key string) (*model.Explanation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT explanation FROM explanation_cache WHERE cache_key = ? AND expires_at > ?`,
		key, formatTime(time.Now()),
	)

	var data string
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached explanation")
	}

	var exp model.Explanation
	if err := json.Unmarshal([]byte(data), &exp); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached explanation")
	}
	return &exp, nil
}

func (s *SQLiteStore) SetCachedExplanation(ctx context.Context, key string, exp model.Explanation, ttl time.Duration) error {
	now := time.Now().UTC()

	data, err := json.Marshal(exp)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal explanation")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO explanation_cache (cache_key, explanation, cached_at, expires_at) VALUES (?, ?, ?, ?)`,
		key, string(data), formatTime(now), formatTime(now.Add(ttl)),
	)
	return eris.Wrap(err, "sqlite: set cached explanation")
}

// DeleteExpiredExplanations removes cache rows past their expiry and returns
// how many were deleted.
func (s *SQLiteStore) DeleteExpiredExplanations(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM explanation_cache WHERE expires_at <= ?`, formatTime(time.Now()),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired explanations")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanFeedbackRows(rows *sql.Rows) ([]model.Feedback, error) {
	out := []model.Feedback{}
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate feedback")
}

func scanFeedback(row scannable) (model.Feedback, error) {
	var (
		fb         model.Feedback
		rating     int
		issuesJSON string
		createdAt  string
	)
	if err := row.Scan(&fb.ID, &fb.RouteID, &rating, &fb.Comments, &issuesJSON, &createdAt); err != nil {
		return model.Feedback{}, eris.Wrap(err, "sqlite: scan feedback")
	}
	fb.Rating = model.Rating(rating)

	if err := json.Unmarshal([]byte(issuesJSON), &fb.Issues); err != nil {
		return model.Feedback{}, eris.Wrap(err, "sqlite: unmarshal issues")
	}
	if len(fb.Issues) == 0 {
		fb.Issues = nil
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return model.Feedback{}, eris.Wrap(err, "sqlite: parse created_at")
	}
	fb.CreatedAt = t
	return fb, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
