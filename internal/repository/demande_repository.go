package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ayoubz/gestion-salles/internal/model"
)

// Demande mirrors the 'demande_personnalisees' table.  A custom request
// describes the room a user wishes existed; administrators answer it and
// may attach an existing room that satisfies the criteria.
type Demande struct {
	ID                 uint64       `json:"id"`
	UserID             uint64       `json:"user_id"`
	Titre              string       `json:"titre"`
	Description        string       `json:"description"`
	CapaciteTables     *uint32      `json:"capacite_tables"`
	CapaciteChaises    *uint32      `json:"capacite_chaises"`
	EquipementPC       bool         `json:"equipement_pc"`
	EquipementDatashow bool         `json:"equipement_datashow"`
	HasInternet        bool         `json:"has_internet"`
	DateSouhaitee      *time.Time   `json:"date_souhaitee"`
	DureeSouhaitee     *string      `json:"duree_souhaitee"`
	Statut             model.Status `json:"statut"`
	ReponseAdmin       *string      `json:"reponse_admin"`
	SalleID            *uint64      `json:"salle_id"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`

	User  *UserSummary `json:"user,omitempty"`
	Salle *Salle       `json:"salle,omitempty"`
}

// Criteria converts the request's desired-room fields into room matching
// criteria.
func (d *Demande) Criteria() MatchCriteria {
	return MatchCriteria{
		CapaciteTables:     d.CapaciteTables,
		CapaciteChaises:    d.CapaciteChaises,
		EquipementPC:       d.EquipementPC,
		EquipementDatashow: d.EquipementDatashow,
		HasInternet:        d.HasInternet,
	}
}

// ErrDemandeNotFound indicates that a custom request was not located in the DB.
var ErrDemandeNotFound = errors.New("demande not found")

// DemandeRepo manages persistence for custom room requests.
type DemandeRepo struct {
	db *sql.DB
}

// NewDemandeRepo constructs a DemandeRepo with the given DB handle.
func NewDemandeRepo(db *sql.DB) *DemandeRepo { return &DemandeRepo{db: db} }

// DB exposes the underlying sql.DB.
func (r *DemandeRepo) DB() *sql.DB { return r.db }

const demandeCols = `d.id, d.user_id, d.titre, d.description,
                     d.capacite_tables, d.capacite_chaises,
                     d.equipement_pc, d.equipement_datashow, d.has_internet,
                     d.date_souhaitee, d.duree_souhaitee,
                     d.statut, d.reponse_admin, d.salle_id,
                     d.created_at, d.updated_at`

// Create inserts a new request with status en_attente and reads the
// stored row back.
func (r *DemandeRepo) Create(ctx context.Context, d *Demande) error {
	const q = `INSERT INTO demande_personnalisees
               (user_id, titre, description, capacite_tables, capacite_chaises,
                equipement_pc, equipement_datashow, has_internet,
                date_souhaitee, duree_souhaitee, statut)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, d.UserID, d.Titre, d.Description,
		d.CapaciteTables, d.CapaciteChaises,
		d.EquipementPC, d.EquipementDatashow, d.HasInternet,
		d.DateSouhaitee, d.DureeSouhaitee, string(model.StatusPending))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	sel := `SELECT ` + demandeCols + ` FROM demande_personnalisees d WHERE d.id = ?`
	return scanDemande(r.db.QueryRowContext(ctx, sel, d.ID), d)
}

// GetByID returns one request with its user and, when attached, its room.
func (r *DemandeRepo) GetByID(ctx context.Context, id uint64) (*Demande, error) {
	q := `SELECT ` + demandeCols + `,
                 u.id, u.name, u.email, u.role,
                 s.id, s.nom, s.description, s.capacite_tables, s.capacite_chaises,
                 s.equipement_pc, s.equipement_datashow, s.has_internet, s.image_path,
                 s.prix_horaire, s.created_at, s.updated_at
          FROM demande_personnalisees d
          JOIN users u ON u.id = d.user_id
          LEFT JOIN salles s ON s.id = d.salle_id
          WHERE d.id = ?`
	d, err := scanDemandeDetail(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDemandeNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListAll returns every request with user and attached room, newest first.
func (r *DemandeRepo) ListAll(ctx context.Context) ([]Demande, error) {
	return r.list(ctx, "", nil)
}

// ListByUser returns the user's requests, newest first.
func (r *DemandeRepo) ListByUser(ctx context.Context, userID uint64) ([]Demande, error) {
	return r.list(ctx, "d.user_id = ?", []interface{}{userID})
}

// ListPending returns requests still awaiting an admin answer, newest
// first.
func (r *DemandeRepo) ListPending(ctx context.Context) ([]Demande, error) {
	q := `SELECT ` + demandeCols + `,
                 u.id, u.name, u.email, u.role,
                 s.id, s.nom, s.description, s.capacite_tables, s.capacite_chaises,
                 s.equipement_pc, s.equipement_datashow, s.has_internet, s.image_path,
                 s.prix_horaire, s.created_at, s.updated_at
          FROM demande_personnalisees d
          JOIN users u ON u.id = d.user_id
          LEFT JOIN salles s ON s.id = d.salle_id
          WHERE d.statut = ?
          ORDER BY d.created_at DESC`
	return r.queryDetail(ctx, q, string(model.StatusPending))
}

func (r *DemandeRepo) list(ctx context.Context, where string, args []interface{}) ([]Demande, error) {
	q := `SELECT ` + demandeCols + `,
                 u.id, u.name, u.email, u.role,
                 s.id, s.nom, s.description, s.capacite_tables, s.capacite_chaises,
                 s.equipement_pc, s.equipement_datashow, s.has_internet, s.image_path,
                 s.prix_horaire, s.created_at, s.updated_at
          FROM demande_personnalisees d
          JOIN users u ON u.id = d.user_id
          LEFT JOIN salles s ON s.id = d.salle_id`
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY d.created_at DESC"
	return r.queryDetail(ctx, q, args...)
}

func (r *DemandeRepo) queryDetail(ctx context.Context, q string, args ...interface{}) ([]Demande, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Demande, 0)
	for rows.Next() {
		d, err := scanDemandeDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAdmin applies the admin's decision: status, response text and an
// optional attached room.  Nil pointers leave columns untouched.
func (r *DemandeRepo) UpdateAdmin(ctx context.Context, id uint64, statut *model.Status, reponse *string, salleID *uint64) error {
	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if statut != nil {
		sets = append(sets, "statut = ?")
		args = append(args, string(*statut))
	}
	if reponse != nil {
		sets = append(sets, "reponse_admin = ?")
		args = append(args, *reponse)
	}
	if salleID != nil {
		sets = append(sets, "salle_id = ?")
		args = append(args, *salleID)
	}
	if len(sets) == 0 {
		return nil
	}
	return r.update(ctx, id, sets, args)
}

// UpdateContent rewrites the request's descriptive fields.  Owners may
// only do this while the request is still en_attente; the handler checks
// that before calling here.
func (r *DemandeRepo) UpdateContent(ctx context.Context, d *Demande) error {
	sets := []string{
		"titre = ?", "description = ?",
		"capacite_tables = ?", "capacite_chaises = ?",
		"equipement_pc = ?", "equipement_datashow = ?", "has_internet = ?",
		"date_souhaitee = ?", "duree_souhaitee = ?",
	}
	args := []interface{}{
		d.Titre, d.Description,
		d.CapaciteTables, d.CapaciteChaises,
		d.EquipementPC, d.EquipementDatashow, d.HasInternet,
		d.DateSouhaitee, d.DureeSouhaitee,
	}
	return r.update(ctx, d.ID, sets, args)
}

func (r *DemandeRepo) update(ctx context.Context, id uint64, sets []string, args []interface{}) error {
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	q := "UPDATE demande_personnalisees SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		if err := r.db.QueryRowContext(ctx,
			`SELECT 1 FROM demande_personnalisees WHERE id = ? LIMIT 1`, id).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrDemandeNotFound
			}
			return err
		}
	}
	return nil
}

// Delete removes a request.
func (r *DemandeRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM demande_personnalisees WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDemandeNotFound
	}
	return nil
}

func scanDemande(row interface{ Scan(...interface{}) error }, d *Demande) error {
	var statut string
	var tables, chaises sql.NullInt64
	var date sql.NullTime
	var duree, reponse sql.NullString
	var salleID sql.NullInt64
	err := row.Scan(&d.ID, &d.UserID, &d.Titre, &d.Description,
		&tables, &chaises,
		&d.EquipementPC, &d.EquipementDatashow, &d.HasInternet,
		&date, &duree, &statut, &reponse, &salleID,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return err
	}
	d.Statut = model.Status(statut)
	if tables.Valid {
		v := uint32(tables.Int64)
		d.CapaciteTables = &v
	}
	if chaises.Valid {
		v := uint32(chaises.Int64)
		d.CapaciteChaises = &v
	}
	if date.Valid {
		t := date.Time
		d.DateSouhaitee = &t
	}
	if duree.Valid {
		s := duree.String
		d.DureeSouhaitee = &s
	}
	if reponse.Valid {
		s := reponse.String
		d.ReponseAdmin = &s
	}
	if salleID.Valid {
		v := uint64(salleID.Int64)
		d.SalleID = &v
	}
	return nil
}

func scanDemandeDetail(row interface{ Scan(...interface{}) error }) (*Demande, error) {
	var d Demande
	var statut string
	var tables, chaises sql.NullInt64
	var date sql.NullTime
	var duree, reponse sql.NullString
	var salleID sql.NullInt64

	var u UserSummary
	var uRole string

	var sID sql.NullInt64
	var sNom, sDesc, sImg sql.NullString
	var sTables, sChaises sql.NullInt64
	var sPC, sDatashow, sNet sql.NullBool
	var sPrix sql.NullFloat64
	var sCreated, sUpdated sql.NullTime

	err := row.Scan(&d.ID, &d.UserID, &d.Titre, &d.Description,
		&tables, &chaises,
		&d.EquipementPC, &d.EquipementDatashow, &d.HasInternet,
		&date, &duree, &statut, &reponse, &salleID,
		&d.CreatedAt, &d.UpdatedAt,
		&u.ID, &u.Name, &u.Email, &uRole,
		&sID, &sNom, &sDesc, &sTables, &sChaises,
		&sPC, &sDatashow, &sNet, &sImg,
		&sPrix, &sCreated, &sUpdated)
	if err != nil {
		return nil, err
	}
	d.Statut = model.Status(statut)
	if tables.Valid {
		v := uint32(tables.Int64)
		d.CapaciteTables = &v
	}
	if chaises.Valid {
		v := uint32(chaises.Int64)
		d.CapaciteChaises = &v
	}
	if date.Valid {
		t := date.Time
		d.DateSouhaitee = &t
	}
	if duree.Valid {
		s := duree.String
		d.DureeSouhaitee = &s
	}
	if reponse.Valid {
		s := reponse.String
		d.ReponseAdmin = &s
	}
	if salleID.Valid {
		v := uint64(salleID.Int64)
		d.SalleID = &v
	}
	u.Role = model.RoleFromString(uRole)
	d.User = &u
	if sID.Valid {
		s := Salle{
			ID:                 uint64(sID.Int64),
			Nom:                sNom.String,
			CapaciteTables:     uint32(sTables.Int64),
			CapaciteChaises:    uint32(sChaises.Int64),
			EquipementPC:       sPC.Bool,
			EquipementDatashow: sDatashow.Bool,
			HasInternet:        sNet.Bool,
			PrixHoraire:        sPrix.Float64,
			CreatedAt:          sCreated.Time,
			UpdatedAt:          sUpdated.Time,
		}
		if sDesc.Valid {
			v := sDesc.String
			s.Description = &v
		}
		if sImg.Valid {
			v := sImg.String
			s.ImagePath = &v
		}
		d.Salle = &s
	}
	return &d, nil
}
