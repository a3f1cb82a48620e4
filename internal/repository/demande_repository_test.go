package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var demandeDetailColumns = []string{
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

func pendingDemandeRow(rows *sqlmock.Rows, id, userID uint64, created time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, userID, "Salle de réunion", "Avec vidéoprojecteur",
		nil, nil, false, true, false, nil, "3 heures",
		"en_attente", nil, nil, created, created,
		userID, "Ayoub", "ayoub@example.com", "utilisateur",
		nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
	)
}

func TestDemandeListPendingNewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(demandeDetailColumns)
	pendingDemandeRow(rows, 2, 7, now)
	pendingDemandeRow(rows, 1, 9, now.Add(-time.Hour))
	mock.ExpectQuery(`(?s)WHERE d\.statut = \?.*ORDER BY d\.created_at DESC`).
		WithArgs("en_attente").
		WillReturnRows(rows)

	repo := NewDemandeRepo(db)
	out, err := repo.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint64(2), out[0].ID)
	assert.Equal(t, uint64(1), out[1].ID)
	require.NotNil(t, out[0].DureeSouhaitee)
	assert.Equal(t, "3 heures", *out[0].DureeSouhaitee)
	assert.NoError(t, mock.ExpectationsWereMet())
}
