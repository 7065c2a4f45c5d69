package eventrequests

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventRequestColumns = []string{
	"id", "title", "description", "event_type", "event_date", "guest_count",
	"location_preference", "requirements", "contact_name", "contact_email", "contact_phone", "created_at",
}

func setupMockDB(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func strPtr(s string) *string { return &s }

func TestGetByID(t *testing.T) {
	mock := setupMockDB(t)
	repo := NewRepository(mock)
	id := uuid.New()
	created := time.Date(2023, 5, 2, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE er.id = $1")).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(eventRequestColumns).AddRow(
			id, "Firemní večírek", "", "party", nil, strPtr("26-50"),
			strPtr("Praha 5"), nil, "Eva", "eva@example.cz", nil, created))

	er, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, er)
	assert.Equal(t, "26-50", *er.GuestCount)
	assert.Equal(t, created, er.CreatedAt)
	assert.Nil(t, er.ContactPhone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_Missing(t *testing.T) {
	mock := setupMockDB(t)
	repo := NewRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM event_requests er")).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM event_requests er")).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	er, err := repo.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, er)

	_, err = repo.GetByID(context.Background(), uuid.New())
	assert.ErrorContains(t, err, "connection reset")
}

func TestListUnlinked_FirstPage(t *testing.T) {
	mock := setupMockDB(t)
	repo := NewRepository(mock)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("NOT EXISTS (SELECT 1 FROM broadcasts b WHERE b.event_request_id = er.id) ORDER BY er.created_at, er.id LIMIT $1")).
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(eventRequestColumns).AddRow(
			id, "", "", "", nil, nil, nil, nil, "Jan", "jan@example.cz", nil, time.Now()))

	list, err := repo.ListUnlinked(context.Background(), nil, 50)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUnlinked_AfterCursor(t *testing.T) {
	mock := setupMockDB(t)
	repo := NewRepository(mock)
	cur := &Cursor{CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), ID: uuid.New()}

	mock.ExpectQuery(regexp.QuoteMeta("AND (er.created_at, er.id) > ($2, $3)")).
		WithArgs(100, cur.CreatedAt, cur.ID).
		WillReturnRows(pgxmock.NewRows(eventRequestColumns))

	list, err := repo.ListUnlinked(context.Background(), cur, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountUnlinked(t *testing.T) {
	mock := setupMockDB(t)
	repo := NewRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM event_requests er")).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.CountUnlinked(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
