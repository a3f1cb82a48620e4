package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var salleColumns = []string{
	"id", "nom", "description", "capacite_tables", "capacite_chaises",
	"equipement_pc", "equipement_datashow", "has_internet", "image_path",
	"prix_horaire", "created_at", "updated_at",
}

func salleRow(id uint64, nom string, prix float64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(salleColumns).
		AddRow(id, nom, nil, 10, 20, true, false, true, nil, prix, now, now)
}

func TestSalleGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT .+ FROM salles WHERE id = \\?").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows(salleColumns))

	repo := NewSalleRepo(db)
	_, err = repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrSalleNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalleListAppliesCapacityFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("capacite_tables >= ?")).
		WithArgs(8, 16).
		WillReturnRows(salleRow(1, "Salle A", 25))

	repo := NewSalleRepo(db)
	minTables, minChaises := uint32(8), uint32(16)
	out, err := repo.List(context.Background(), SalleFilter{
		MinTables:  &minTables,
		MinChaises: &minChaises,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Salle A", out[0].Nom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalleListSortsByPrice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("ORDER BY prix_horaire DESC").
		WillReturnRows(salleRow(2, "Salle B", 40))

	repo := NewSalleRepo(db)
	out, err := repo.List(context.Background(), SalleFilter{Sort: "prix_desc"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalleDeleteRefusedWhileReserved(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM salles WHERE id = ? LIMIT 1")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reservations WHERE salle_id = ?")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	repo := NewSalleRepo(db)
	err = repo.Delete(context.Background(), 7)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalleDeleteMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM salles WHERE id = ? LIMIT 1")).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectRollback()

	repo := NewSalleRepo(db)
	err = repo.Delete(context.Background(), 99)
	assert.ErrorIs(t, err, ErrSalleNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalleFindMatchingSkipsZeroCapacities(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Zero capacities must not restrict; only the PC flag does here.
	mock.ExpectQuery("equipement_pc = TRUE").
		WillReturnRows(salleRow(3, "Salle C", 15))

	repo := NewSalleRepo(db)
	zero := uint32(0)
	out, err := repo.FindMatching(context.Background(), MatchCriteria{
		CapaciteTables: &zero,
		EquipementPC:   true,
	}, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalleFindMatchingHonorsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("LIMIT \\?").
		WithArgs(1).
		WillReturnRows(salleRow(4, "Salle D", 30))

	repo := NewSalleRepo(db)
	out, err := repo.FindMatching(context.Background(), MatchCriteria{}, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalleDeleteOtherError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM salles WHERE id = ? LIMIT 1")).
		WithArgs(5).
		WillReturnError(boom)
	mock.ExpectRollback()

	repo := NewSalleRepo(db)
	err = repo.Delete(context.Background(), 5)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
