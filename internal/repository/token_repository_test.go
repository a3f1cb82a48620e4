package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRefreshFiltersRevokedAndExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`revoked_at IS NULL AND expires_at > UTC_TIMESTAMP\(\)`).
		WithArgs("deadbeef").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	repo := NewTokenRepo(db)
	_, err = repo.ValidateRefresh(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateRefreshResolvesOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT user_id FROM refresh_tokens`).
		WithArgs("deadbeef").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(7))

	repo := NewTokenRepo(db)
	uid, err := repo.ValidateRefresh(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), uid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeByHashTouchesOnlyActiveRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP\(\)`).
		WithArgs("deadbeef").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewTokenRepo(db)
	require.NoError(t, repo.RevokeByHash(context.Background(), "deadbeef"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
