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

func newDemandeHandler(t *testing.T) (*DemandeHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDemandeHandler(
		repository.NewDemandeRepo(db),
		repository.NewSalleRepo(db),
	), mock
}

var demandeDetailCols = []string{
	"id", "user_id", "titre", "description",
	"capacite_tables", "capacite_chaises",
	"equipement_pc", "equipement_datashow", "has_internet",
	"date_souhaitee", "duree_souhaitee",
	"statut", "reponse_admin", "salle_id",
	"created_at", "updated_at",
	"u_id", "u_name", "u_email", "u_role",
	"s_id", "s_nom", "s_description", "s_capacite_tables", "s_capacite_chaises",
	"s_equipement_pc", "s_equipement_datashow", "s_has_internet", "s_image_path",
	"s_prix_horaire", "s_created_at", "s_updated_at",
}

func demandeDetailRow(id, userID uint64, statut string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(demandeDetailCols).AddRow(
		id, userID, "Salle de formation", "Une grande salle avec PC",
		12, 24, true, false, true, nil, nil,
		statut, nil, nil, now, now,
		userID, "Ayoub", "ayoub@example.com", "utilisateur",
		nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
	)
}

var demandeBaseCols = []string{
	"id", "user_id", "titre", "description",
	"capacite_tables", "capacite_chaises",
	"equipement_pc", "equipement_datashow", "has_internet",
	"date_souhaitee", "duree_souhaitee",
	"statut", "reponse_admin", "salle_id",
	"created_at", "updated_at",
}

func TestDemandeCreateAcceptsFreeTextDuration(t *testing.T) {
	h, mock := newDemandeHandler(t)

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO demande_personnalisees").
		WithArgs(7, "Salle de formation", "Une grande salle avec PC",
			nil, nil, false, false, false, nil, "2 heures", "en_attente").
		WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectQuery("FROM demande_personnalisees d WHERE d.id").
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows(demandeBaseCols).AddRow(
			4, 7, "Salle de formation", "Une grande salle avec PC",
			nil, nil, false, false, false, nil, "2 heures",
			"en_attente", nil, nil, now, now))

	c, rec := jsonContext(t, http.MethodPost, "/demandes-personnalisees",
		`{"titre":"Salle de formation","description":"Une grande salle avec PC","duree_souhaitee":"2 heures"}`,
		7, "utilisateur")
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"duree_souhaitee":"2 heures"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDemandeCreateValidation(t *testing.T) {
	h, _ := newDemandeHandler(t)

	c, rec := jsonContext(t, http.MethodPost, "/demandes-personnalisees",
		`{"titre":"","description":"  "}`, 7, "utilisateur")
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "titre")
	assert.Contains(t, body, "description")
}

func TestDemandeOwnerCannotEditProcessed(t *testing.T) {
	h, mock := newDemandeHandler(t)

	mock.ExpectQuery("FROM demande_personnalisees d").
		WithArgs(4).
		WillReturnRows(demandeDetailRow(4, 7, "validee"))

	c, rec := jsonContext(t, http.MethodPut, "/demandes-personnalisees/4",
		`{"titre":"Nouveau titre","description":"Nouvelle description"}`, 7, "utilisateur")
	c.SetParamNames("id")
	c.SetParamValues("4")
	require.NoError(t, h.Update(c))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Impossible de modifier une demande déjà traitée")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDemandeOwnerCannotDeleteProcessed(t *testing.T) {
	h, mock := newDemandeHandler(t)

	mock.ExpectQuery("FROM demande_personnalisees d").
		WithArgs(4).
		WillReturnRows(demandeDetailRow(4, 7, "refusee"))

	c, rec := jsonContext(t, http.MethodDelete, "/demandes-personnalisees/4", "", 7, "utilisateur")
	c.SetParamNames("id")
	c.SetParamValues("4")
	require.NoError(t, h.Delete(c))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Impossible de supprimer une demande déjà traitée")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDemandeForeignOwnerForbidden(t *testing.T) {
	h, mock := newDemandeHandler(t)

	mock.ExpectQuery("FROM demande_personnalisees d").
		WithArgs(4).
		WillReturnRows(demandeDetailRow(4, 99, "en_attente"))

	c, rec := jsonContext(t, http.MethodGet, "/demandes-personnalisees/4", "", 7, "utilisateur")
	c.SetParamNames("id")
	c.SetParamValues("4")
	require.NoError(t, h.Get(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Non autorisé")
}

func TestDemandeAdminApproveAutoAttachesMatch(t *testing.T) {
	h, mock := newDemandeHandler(t)

	now := time.Now().UTC()
	mock.ExpectQuery("FROM demande_personnalisees d").
		WithArgs(4).
		WillReturnRows(demandeDetailRow(4, 7, "en_attente"))
	// Best-effort match: capacities and requested equipment restrict, LIMIT 1.
	mock.ExpectQuery("LIMIT \\?").
		WithArgs(12, 24, 1).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "nom", "description", "capacite_tables", "capacite_chaises",
			"equipement_pc", "equipement_datashow", "has_internet", "image_path",
			"prix_horaire", "created_at", "updated_at",
		}).AddRow(8, "Salle formation", nil, 15, 30, true, false, true, nil, 35.0, now, now))
	mock.ExpectExec("UPDATE demande_personnalisees SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM demande_personnalisees d").
		WithArgs(4).
		WillReturnRows(demandeDetailRow(4, 7, "validee"))

	c, rec := jsonContext(t, http.MethodPut, "/demandes-personnalisees/4",
		`{"statut":"validee","reponse_admin":"Une salle correspond"}`, 1, "administrateur")
	c.SetParamNames("id")
	c.SetParamValues("4")
	require.NoError(t, h.Update(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDemandeSuggestions(t *testing.T) {
	h, mock := newDemandeHandler(t)

	now := time.Now().UTC()
	mock.ExpectQuery("FROM demande_personnalisees d").
		WithArgs(4).
		WillReturnRows(demandeDetailRow(4, 7, "en_attente"))
	mock.ExpectQuery("FROM salles").
		WithArgs(12, 24).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "nom", "description", "capacite_tables", "capacite_chaises",
			"equipement_pc", "equipement_datashow", "has_internet", "image_path",
			"prix_horaire", "created_at", "updated_at",
		}).AddRow(8, "Salle formation", nil, 15, 30, true, false, true, nil, 35.0, now, now))

	c, rec := jsonContext(t, http.MethodGet, "/demandes-personnalisees/4/suggestions", "", 7, "utilisateur")
	c.SetParamNames("id")
	c.SetParamValues("4")
	require.NoError(t, h.Suggestions(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Salle formation")
	assert.NoError(t, mock.ExpectationsWereMet())
}
