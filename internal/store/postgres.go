package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/saferoute/internal/db"
	"github.com/sells-group/saferoute/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS feedback (
	seq        BIGSERIAL,
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	route_id   TEXT NOT NULL,
	rating     INTEGER NOT NULL CHECK (rating IN (-2, 0, 1)),
	comments   TEXT NOT NULL DEFAULT '',
	issues     JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_feedback_route_id ON feedback(route_id, seq);

CREATE TABLE IF NOT EXISTS explanation_cache (
	cache_key   TEXT PRIMARY KEY,
	explanation JSONB NOT NULL,
	cached_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_explanation_cache_expires_at ON explanation_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AppendFeedback(ctx context.Context, fb model.Feedback) (string, error) {
	fb = stamp(fb)

	issuesJSON, err := json.Marshal(nonNil(fb.Issues))
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal issues")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO feedback (id, route_id, rating, comments, issues, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		fb.ID, fb.RouteID, int(fb.Rating), fb.Comments, issuesJSON, fb.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert feedback")
	}
	return fb.ID, nil
}

func (s *PostgresStore) ListFeedback(ctx context.Context) ([]model.Feedback, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, route_id, rating, comments, issues, created_at FROM feedback ORDER BY seq`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list feedback")
	}
	defer rows.Close()
	return collectFeedback(rows)
}

func (s *PostgresStore) ListFeedbackByRoute(ctx context.Context, routeID string) ([]model.Feedback, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, route_id, rating, comments, issues, created_at FROM feedback WHERE route_id = $1 ORDER BY seq`,
		routeID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list feedback for route %s", routeID)
	}
	defer rows.Close()
	return collectFeedback(rows)
}

func (s *PostgresStore) GetCachedExplanation(ctx context.Context, key string) (*model.Explanation, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT explanation FROM explanation_cache WHERE cache_key = $1 AND expires_at > now()`,
		key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached explanation")
	}

	var exp model.Explanation
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached explanation")
	}
	return &exp, nil
}

func (s *PostgresStore) SetCachedExplanation(ctx context.Context, key string, exp model.Explanation, ttl time.Duration) error {
	now := time.Now().UTC()

	data, err := json.Marshal(exp)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal explanation")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO explanation_cache (cache_key, explanation, cached_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cache_key) DO UPDATE SET explanation = $2, cached_at = $3, expires_at = $4`,
		key, data, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached explanation")
}

// DeleteExpiredExplanations removes cache rows past their expiry and returns
// how many were deleted.
func (s *PostgresStore) DeleteExpiredExplanations(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM explanation_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired explanations")
	}
	return int(tag.RowsAffected()), nil
}

func collectFeedback(rows pgx.Rows) ([]model.Feedback, error) {
	out := []model.Feedback{}
	for rows.Next() {
		var (
			fb         model.Feedback
			rating     int
			issuesJSON []byte
		)
		if err := rows.Scan(&fb.ID, &fb.RouteID, &rating, &fb.Comments, &issuesJSON, &fb.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan feedback")
		}
		fb.Rating = model.Rating(rating)
		if len(issuesJSON) > 0 {
			if err := json.Unmarshal(issuesJSON, &fb.Issues); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal issues")
			}
		}
		if len(fb.Issues) == 0 {
			fb.Issues = nil
		}
		out = append(out, fb)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate feedback")
}
