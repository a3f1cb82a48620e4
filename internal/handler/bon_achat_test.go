package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayoubz/gestion-salles/internal/repository"
)

func newBonHandler(t *testing.T) (*BonAchatHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBonAchatHandler(
		repository.NewBonAchatRepo(db),
		repository.NewReservationRepo(db),
		repository.NewUserRepo(db),
	), mock
}

var bonDetailCols = []string{
	"id", "user_id", "reservation_id", "code", "montant", "date_expiration",
	"is_used", "created_at", "updated_at",
	"u_id", "u_name", "u_email", "u_role",
	"r_id", "r_salle_id", "r_date_debut", "r_date_fin", "r_statut",
}

func bonDetailRow(id, userID uint64, expiration time.Time, used bool) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(bonDetailCols).AddRow(
		id, userID, 21, "BON-ABC123", 2.5, expiration, used, now, now,
		userID, "Ayoub", "ayoub@example.com", "utilisateur",
		21, 3, now, now.Add(2*time.Hour), "validee",
	)
}

func TestRedeemExpiredVoucherFails(t *testing.T) {
	h, mock := newBonHandler(t)

	expired := time.Now().UTC().AddDate(0, 0, -1)
	mock.ExpectQuery("FROM bons_achat b").
		WithArgs(5).
		WillReturnRows(bonDetailRow(5, 7, expired, false))

	c, rec := jsonContext(t, http.MethodPut, "/bons-achat/5", `{"is_used":true}`, 7, "utilisateur")
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.Update(c))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "expiré")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeemVoucher(t *testing.T) {
	h, mock := newBonHandler(t)

	valid := time.Now().UTC().AddDate(0, 3, 0)
	mock.ExpectQuery("FROM bons_achat b").
		WithArgs(5).
		WillReturnRows(bonDetailRow(5, 7, valid, false))
	mock.ExpectExec("UPDATE bons_achat SET is_used").
		WithArgs(true, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, rec := jsonContext(t, http.MethodPut, "/bons-achat/5", `{"is_used":true}`, 7, "utilisateur")
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.Update(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_used":true`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnredeemVoucherRefused(t *testing.T) {
	h, mock := newBonHandler(t)

	valid := time.Now().UTC().AddDate(0, 3, 0)
	mock.ExpectQuery("FROM bons_achat b").
		WithArgs(5).
		WillReturnRows(bonDetailRow(5, 7, valid, true))

	c, rec := jsonContext(t, http.MethodPut, "/bons-achat/5", `{"is_used":false}`, 7, "utilisateur")
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.Update(c))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "réactivé")
}

func TestVoucherForeignOwnerForbidden(t *testing.T) {
	h, mock := newBonHandler(t)

	valid := time.Now().UTC().AddDate(0, 3, 0)
	mock.ExpectQuery("FROM bons_achat b").
		WithArgs(5).
		WillReturnRows(bonDetailRow(5, 99, valid, false))

	c, rec := jsonContext(t, http.MethodGet, "/bons-achat/5", "", 7, "utilisateur")
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.Get(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestManualVoucherValidation(t *testing.T) {
	h, _ := newBonHandler(t)

	c, rec := jsonContext(t, http.MethodPost, "/bons-achat",
		`{"user_id":0,"reservation_id":0,"montant":-5}`, 1, "administrateur")
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "user_id")
	assert.Contains(t, body, "reservation_id")
	assert.Contains(t, body, "montant")
}
