package handler

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayoubz/gestion-salles/internal/repository"
)

func newReservationHandler(t *testing.T) (*ReservationHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReservationHandler(
		repository.NewReservationRepo(db),
		repository.NewSalleRepo(db),
		repository.NewBonAchatRepo(db),
		repository.NewUserRepo(db),
	), mock
}

func jsonContext(t *testing.T, method, target, body string, userID float64, role string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	c.Set("role", role)
	return c, rec
}

var salleCols = []string{
	"id", "nom", "description", "capacite_tables", "capacite_chaises",
	"equipement_pc", "equipement_datashow", "has_internet", "image_path",
	"prix_horaire", "created_at", "updated_at",
}

func salleRow(id uint64, prix float64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(salleCols).
		AddRow(id, "Salle test", nil, 10, 20, false, false, false, nil, prix, now, now)
}

func TestCreateReservationValidation(t *testing.T) {
	h, _ := newReservationHandler(t)

	c, rec := jsonContext(t, http.MethodPost, "/reservations",
		`{"salle_id":0,"date_debut":"","date_fin":""}`, 7, "utilisateur")
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "salle_id")
	assert.Contains(t, rec.Body.String(), "date_debut")
}

func TestCreateReservationEndBeforeStart(t *testing.T) {
	h, _ := newReservationHandler(t)

	c, rec := jsonContext(t, http.MethodPost, "/reservations",
		`{"salle_id":3,"date_debut":"2025-05-01 12:00:00","date_fin":"2025-05-01 10:00:00"}`,
		7, "utilisateur")
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "date_fin")
}

func TestCreateReservationConflictRollsBack(t *testing.T) {
	h, mock := newReservationHandler(t)

	mock.ExpectQuery("SELECT .+ FROM salles WHERE id = \\?").
		WithArgs(3).
		WillReturnRows(salleRow(3, 25))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reservations").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	c, rec := jsonContext(t, http.MethodPost, "/reservations",
		`{"salle_id":3,"date_debut":"2025-05-01 10:00:00","date_fin":"2025-05-01 12:00:00"}`,
		7, "utilisateur")
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "La salle est déjà réservée pour cette période.")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReservationSuccess(t *testing.T) {
	h, mock := newReservationHandler(t)

	debut := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	fin := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM salles WHERE id = \\?").
		WithArgs(3).
		WillReturnRows(salleRow(3, 25))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reservations").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO reservations").
		WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectQuery("SELECT id, user_id, salle_id").
		WithArgs(21).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "salle_id", "date_debut", "date_fin",
			"statut", "commentaire", "created_at", "updated_at",
		}).AddRow(21, 7, 3, debut, fin, "en_attente", nil, now, now))
	mock.ExpectCommit()

	c, rec := jsonContext(t, http.MethodPost, "/reservations",
		`{"salle_id":3,"date_debut":"2025-05-01 10:00:00","date_fin":"2025-05-01 12:00:00"}`,
		7, "utilisateur")
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"statut":"en_attente"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionApprovalIssuesVoucherOnce(t *testing.T) {
	h, mock := newReservationHandler(t)

	debut := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	fin := debut.Add(2 * time.Hour)
	now := time.Now().UTC()
	resCols := []string{
		"id", "user_id", "salle_id", "date_debut", "date_fin",
		"statut", "commentaire", "created_at", "updated_at",
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(21).
		WillReturnRows(sqlmock.NewRows(resCols).
			AddRow(21, 7, 3, debut, fin, "en_attente", nil, now, now))
	mock.ExpectExec("UPDATE reservations SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reservations").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM bons_achat WHERE reservation_id = ?")).
		WithArgs(21).
		WillReturnRows(sqlmock.NewRows([]string{"1"})) // no voucher yet
	mock.ExpectQuery("SELECT .+ FROM salles WHERE id = \\?").
		WithArgs(3).
		WillReturnRows(salleRow(3, 25))
	mock.ExpectExec("INSERT INTO bons_achat").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery("SELECT id, user_id, reservation_id, code").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "reservation_id", "code", "montant",
			"date_expiration", "is_used", "created_at", "updated_at",
		}).AddRow(5, 7, 21, "BON-ABC123", 2.5, now.AddDate(0, 6, 0), false, now, now))
	mock.ExpectCommit()

	// Best-effort enrichment of the published event after commit.
	mock.ExpectQuery("SELECT id,name,email,password_hash").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "email", "password_hash", "role", "created_at", "updated_at",
		}).AddRow(7, "Ayoub", "ayoub@example.com", "x", "utilisateur", now, now))
	mock.ExpectQuery("SELECT .+ FROM salles WHERE id = \\?").
		WithArgs(3).
		WillReturnRows(salleRow(3, 25))

	c, rec := jsonContext(t, http.MethodPut, "/reservations/21",
		`{"statut":"validee"}`, 1, "administrateur")
	c.SetParamNames("id")
	c.SetParamValues("21")
	require.NoError(t, h.Transition(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bonAchat")
	assert.Contains(t, rec.Body.String(), "BON-ABC123")
}

func TestTransitionApprovalConflicts(t *testing.T) {
	h, mock := newReservationHandler(t)

	debut := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	fin := debut.Add(2 * time.Hour)
	now := time.Now().UTC()
	resCols := []string{
		"id", "user_id", "salle_id", "date_debut", "date_fin",
		"statut", "commentaire", "created_at", "updated_at",
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(21).
		WillReturnRows(sqlmock.NewRows(resCols).
			AddRow(21, 7, 3, debut, fin, "en_attente", nil, now, now))
	mock.ExpectExec("UPDATE reservations SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reservations").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	c, rec := jsonContext(t, http.MethodPut, "/reservations/21",
		`{"statut":"validee"}`, 1, "administrateur")
	c.SetParamNames("id")
	c.SetParamValues("21")
	require.NoError(t, h.Transition(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReservationOwnerOnlyWhilePending(t *testing.T) {
	h, mock := newReservationHandler(t)

	debut := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	resCols := []string{
		"id", "user_id", "salle_id", "date_debut", "date_fin",
		"statut", "commentaire", "created_at", "updated_at",
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(21).
		WillReturnRows(sqlmock.NewRows(resCols).
			AddRow(21, 7, 3, debut, debut.Add(time.Hour), "validee", nil, now, now))
	mock.ExpectRollback()

	c, rec := jsonContext(t, http.MethodDelete, "/reservations/21", "", 7, "utilisateur")
	c.SetParamNames("id")
	c.SetParamValues("21")
	require.NoError(t, h.Delete(c))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "déjà traitée")
}

func TestDeleteReservationForeignOwnerForbidden(t *testing.T) {
	h, mock := newReservationHandler(t)

	debut := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	resCols := []string{
		"id", "user_id", "salle_id", "date_debut", "date_fin",
		"statut", "commentaire", "created_at", "updated_at",
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(21).
		WillReturnRows(sqlmock.NewRows(resCols).
			AddRow(21, 99, 3, debut, debut.Add(time.Hour), "en_attente", nil, now, now))
	mock.ExpectRollback()

	c, rec := jsonContext(t, http.MethodDelete, "/reservations/21", "", 7, "utilisateur")
	c.SetParamNames("id")
	c.SetParamValues("21")
	require.NoError(t, h.Delete(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Non autorisé")
}

func TestListByUserForbiddenForOthers(t *testing.T) {
	h, _ := newReservationHandler(t)

	c, rec := jsonContext(t, http.MethodGet, "/user-reservations/99", "", 7, "utilisateur")
	c.SetParamNames("userId")
	c.SetParamValues("99")
	require.NoError(t, h.ListByUser(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
