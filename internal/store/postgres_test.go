package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/saferoute/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var feedbackColumns = []string{"id", "route_id", "rating", "comments", "issues", "created_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS feedback`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendFeedback(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO feedback`).
		WithArgs("fb-1", "route2", -2, "", []byte(`["crowded"]`), created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.AppendFeedback(context.Background(), model.Feedback{
		ID:        "fb-1",
		RouteID:   "route2",
		Rating:    model.RatingUnsafe,
		Issues:    []string{"crowded"},
		CreatedAt: created,
	})
	require.NoError(t, err)
	assert.Equal(t, "fb-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendFeedback_GeneratesID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO feedback`).
		WithArgs(pgxmock.AnyArg(), "route1", 1, "ok", []byte(`[]`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.AppendFeedback(context.Background(), model.Feedback{RouteID: "route1", Rating: model.RatingSafe, Comments: "ok"})
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendFeedback_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO feedback`).
		WillReturnError(errors.New("connection reset"))

	_, err := s.AppendFeedback(context.Background(), model.Feedback{RouteID: "route1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert feedback")
}

func TestPostgresStore_ListFeedbackByRoute(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	t1 := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	rows := pgxmock.NewRows(feedbackColumns).
		AddRow("a", "route2", 1, "", []byte(`[]`), t1).
		AddRow("b", "route2", -2, "dark", []byte(`["poor lighting"]`), t2)

	mock.ExpectQuery(`SELECT id, route_id, rating, comments, issues, created_at FROM feedback WHERE route_id = \$1 ORDER BY seq`).
		WithArgs("route2").
		WillReturnRows(rows)

	got, err := s.ListFeedbackByRoute(context.Background(), "route2")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, model.RatingSafe, got[0].Rating)
	assert.Nil(t, got[0].Issues)
	assert.Equal(t, model.RatingUnsafe, got[1].Rating)
	assert.Equal(t, []string{"poor lighting"}, got[1].Issues)
	assert.Equal(t, t2, got[1].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListFeedback_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, route_id, rating, comments, issues, created_at FROM feedback ORDER BY seq`).
		WillReturnError(errors.New("timeout"))

	_, err := s.ListFeedback(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: list feedback")
}

func TestPostgresStore_GetCachedExplanation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT explanation FROM explanation_cache`).
		WithArgs("route2:43").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetCachedExplanation(context.Background(), "route2:43")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedExplanation_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT explanation FROM explanation_cache`).
		WithArgs("route2:43").
		WillReturnRows(pgxmock.NewRows([]string{"explanation"}).
			AddRow([]byte(`{"explanation":"Good lighting.","provenance":"live","model":"m"}`)))

	got, err := s.GetCachedExplanation(context.Background(), "route2:43")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Good lighting.", got.Text)
	assert.Equal(t, model.ProvenanceLive, got.Provenance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCachedExplanation_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(cache_key\) DO UPDATE`).
		WithArgs("route2:43", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetCachedExplanation(context.Background(), "route2:43", model.Explanation{Text: "x"}, 5*time.Minute)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpiredExplanations(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM explanation_cache WHERE expires_at <= now\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.DeleteExpiredExplanations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseWithoutPool(t *testing.T) {
	s := &PostgresStore{}
	assert.NoError(t, s.Close())
}
