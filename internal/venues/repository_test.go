package venues

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinmuron/prostormat-sub002/internal/models"
)

var venueColumns = []string{
	"id", "name", "slug", "status", "contact_email", "address", "district",
	"capacity_seated", "capacity_standing", "parent_id", "manager_name", "manager_email", "updated_at",
}

func setupMockDB(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestCandidateQuery_BaseOnly(t *testing.T) {
	q, args := candidateQuery(Filter{})
	assert.Contains(t, q, "v.status = $1 AND v.parent_id IS NULL")
	assert.NotContains(t, q, "ILIKE")
	assert.NotContains(t, q, "capacity_seated >=")
	assert.Equal(t, []any{models.VenueStatusPublished}, args)
}

func TestCandidateQuery_WholeCity(t *testing.T) {
	q, args := candidateQuery(Filter{WholeCity: true, District: "Praha 1"})
	assert.Contains(t, q, "(v.district ILIKE $2 OR v.address ILIKE $3)")
	assert.NotContains(t, q, "LOWER(v.district)")
	assert.Equal(t, []any{models.VenueStatusPublished, "Praha%", "%Praha%"}, args)
}

func TestCandidateQuery_DistrictAndCapacity(t *testing.T) {
	q, args := candidateQuery(Filter{District: " Praha 1 ", MinCapacity: 40})
	assert.Contains(t, q, "(LOWER(v.district) = LOWER($2) OR v.address ILIKE $3)")
	assert.Contains(t, q, "(v.capacity_seated >= $4 OR v.capacity_standing >= $4)")
	assert.Equal(t, []any{models.VenueStatusPublished, "Praha 1", "%Praha 1%", 40}, args)
}

func TestCandidateQuery_EscapesLikeWildcards(t *testing.T) {
	_, args := candidateQuery(Filter{District: `50%_off\`})
	assert.Equal(t, `%50\%\_off\\%`, args[2])
}

func TestFindCandidates_ScansRows(t *testing.T) {
	mock := setupMockDB(t)
	repo := NewRepository(mock)

	id := uuid.New()
	parent := uuid.New()
	now := time.Now()
	rows := pgxmock.NewRows(venueColumns).
		AddRow(id, "Sál Karlova", "sal-karlova", models.VenueStatusPublished, strPtr("sal@example.cz"), "Karlova 1", strPtr("Praha 1"),
			intPtr(50), nil, nil, strPtr("Jana"), strPtr("jana@example.cz"), now).
		AddRow(uuid.New(), "Salonek", "salonek", models.VenueStatusPublished, nil, "Karlova 1", strPtr("Praha 1"),
			nil, intPtr(80), &parent, nil, nil, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM venues v")).
		WithArgs(models.VenueStatusPublished, "Praha 1", "%Praha 1%", 40).
		WillReturnRows(rows)

	got, err := repo.FindCandidates(context.Background(), Filter{District: "Praha 1", MinCapacity: 40})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, "Praha 1", *got[0].District)
	assert.Equal(t, 50, got[0].EffectiveCapacity())
	require.NotNil(t, got[0].Manager)
	assert.Equal(t, "jana@example.cz", got[0].Manager.Email)
	assert.Nil(t, got[0].ParentID)

	assert.True(t, got[1].IsSubVenue())
	assert.Nil(t, got[1].Manager)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCandidates_QueryError(t *testing.T) {
	mock := setupMockDB(t)
	repo := NewRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM venues v")).
		WithArgs(models.VenueStatusPublished).
		WillReturnError(errors.New("timeout"))

	_, err := repo.FindCandidates(context.Background(), Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query venue candidates")
}

func TestUpdateDistricts_OneTransaction(t *testing.T) {
	mock := setupMockDB(t)
	repo := NewRepository(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE venues SET district = $2")).
		WithArgs(id, "Praha 5").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateDistricts(context.Background(), map[uuid.UUID]string{id: "Praha 5"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDistricts_RollsBackOnError(t *testing.T) {
	mock := setupMockDB(t)
	repo := NewRepository(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE venues SET district = $2")).
		WithArgs(id, "Praha 5").
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := repo.UpdateDistricts(context.Background(), map[uuid.UUID]string{id: "Praha 5"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDistricts_NothingToDo(t *testing.T) {
	mock := setupMockDB(t)
	repo := NewRepository(mock)

	require.NoError(t, repo.UpdateDistricts(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDs(t *testing.T) {
	mock := setupMockDB(t)
	repo := NewRepository(mock)

	id := uuid.New()
	gone := uuid.New()
	rows := pgxmock.NewRows(venueColumns).
		AddRow(id, "Sál Karlova", "sal-karlova", models.VenueStatusPublished, strPtr("sal@example.cz"), "Karlova 1", strPtr("Praha 1"),
			intPtr(50), nil, nil, strPtr("Jana"), strPtr("jana@example.cz"), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE v.id = ANY($1)")).
		WithArgs([]uuid.UUID{id, gone}).
		WillReturnRows(rows)

	got, err := repo.FindByIDs(context.Background(), []uuid.UUID{id, gone})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, "jana@example.cz", got[0].Manager.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDs_EmptySkipsQuery(t *testing.T) {
	mock := setupMockDB(t)
	got, err := NewRepository(mock).FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}
