// This file contains data access for the room catalog.  A Salle is a
// bookable room with fixed capacities, equipment flags and an hourly
// price.  Rooms are created and edited by administrators only; deletion
// is refused while any reservation references the room.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Salle mirrors the 'salles' table.
type Salle struct {
	ID                 uint64    `json:"id"`
	Nom                string    `json:"nom"`
	Description        *string   `json:"description"`
	CapaciteTables     uint32    `json:"capacite_tables"`
	CapaciteChaises    uint32    `json:"capacite_chaises"`
	EquipementPC       bool      `json:"equipement_pc"`
	EquipementDatashow bool      `json:"equipement_datashow"`
	HasInternet        bool      `json:"has_internet"`
	ImagePath          *string   `json:"image_path"`
	PrixHoraire        float64   `json:"prix_horaire"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ErrSalleNotFound indicates that a room was not located in the DB.
var ErrSalleNotFound = errors.New("salle not found")

// SalleFilter captures the catalog listing filters.  Nil numeric fields
// mean "no restriction" (an empty query value is ignored, never treated
// as zero).  Equipment flags restrict only when true.
type SalleFilter struct {
	MinTables  *uint32
	MinChaises *uint32
	PC         bool
	Datashow   bool
	Internet   bool
	Sort       string // "", "prix_asc" or "prix_desc"
}

// MatchCriteria describes a custom request's desired room.  Capacities
// are optional; equipment flags restrict only when true (a false flag
// never excludes rooms that happen to have the equipment).
type MatchCriteria struct {
	CapaciteTables     *uint32
	CapaciteChaises    *uint32
	EquipementPC       bool
	EquipementDatashow bool
	HasInternet        bool
}

// SalleRepo manages persistence for rooms.
type SalleRepo struct {
	db *sql.DB
}

// NewSalleRepo constructs a SalleRepo with the given DB handle.
func NewSalleRepo(db *sql.DB) *SalleRepo { return &SalleRepo{db: db} }

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning multiple repositories.
func (r *SalleRepo) DB() *sql.DB { return r.db }

const salleCols = `id, nom, description, capacite_tables, capacite_chaises,
                   equipement_pc, equipement_datashow, has_internet, image_path,
                   prix_horaire, created_at, updated_at`

func scanSalle(row interface{ Scan(...interface{}) error }, s *Salle) error {
	var desc, img sql.NullString
	err := row.Scan(&s.ID, &s.Nom, &desc, &s.CapaciteTables, &s.CapaciteChaises,
		&s.EquipementPC, &s.EquipementDatashow, &s.HasInternet, &img,
		&s.PrixHoraire, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return err
	}
	if desc.Valid {
		d := desc.String
		s.Description = &d
	}
	if img.Valid {
		p := img.String
		s.ImagePath = &p
	}
	return nil
}

// List returns rooms matching the filter.  Default order is by name
// ascending; prix_asc/prix_desc sort by hourly price instead.  An empty
// slice is returned when nothing matches.
func (r *SalleRepo) List(ctx context.Context, f SalleFilter) ([]Salle, error) {
	q := `SELECT ` + salleCols + ` FROM salles WHERE 1=1`
	args := make([]interface{}, 0, 2)
	if f.MinTables != nil {
		q += " AND capacite_tables >= ?"
		args = append(args, *f.MinTables)
	}
	if f.MinChaises != nil {
		q += " AND capacite_chaises >= ?"
		args = append(args, *f.MinChaises)
	}
	if f.PC {
		q += " AND equipement_pc = TRUE"
	}
	if f.Datashow {
		q += " AND equipement_datashow = TRUE"
	}
	if f.Internet {
		q += " AND has_internet = TRUE"
	}
	switch f.Sort {
	case "prix_asc":
		q += " ORDER BY prix_horaire ASC"
	case "prix_desc":
		q += " ORDER BY prix_horaire DESC"
	default:
		q += " ORDER BY nom ASC"
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	salles := make([]Salle, 0)
	for rows.Next() {
		var s Salle
		if err := scanSalle(rows, &s); err != nil {
			return nil, err
		}
		salles = append(salles, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return salles, nil
}

// GetByID retrieves a room by its ID.  It returns ErrSalleNotFound if
// there is no matching row.
func (r *SalleRepo) GetByID(ctx context.Context, id uint64) (*Salle, error) {
	q := `SELECT ` + salleCols + ` FROM salles WHERE id = ?`
	var s Salle
	if err := scanSalle(r.db.QueryRowContext(ctx, q, id), &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSalleNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Create inserts a new room and reads the stored row back so defaults and
// timestamps are populated on the given Salle.
func (r *SalleRepo) Create(ctx context.Context, s *Salle) error {
	const q = `INSERT INTO salles
               (nom, description, capacite_tables, capacite_chaises,
                equipement_pc, equipement_datashow, has_internet, image_path, prix_horaire)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.Nom, s.Description, s.CapaciteTables, s.CapaciteChaises,
		s.EquipementPC, s.EquipementDatashow, s.HasInternet, s.ImagePath, s.PrixHoraire)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	sel := `SELECT ` + salleCols + ` FROM salles WHERE id = ?`
	return scanSalle(r.db.QueryRowContext(ctx, sel, s.ID), s)
}

// Update persists all mutable fields of the room.  The handler loads the
// current row first and overlays the request's partial fields, so a full
// UPDATE here is safe.
func (r *SalleRepo) Update(ctx context.Context, s *Salle) error {
	const q = `UPDATE salles
               SET nom = ?, description = ?, capacite_tables = ?, capacite_chaises = ?,
                   equipement_pc = ?, equipement_datashow = ?, has_internet = ?,
                   image_path = ?, prix_horaire = ?, updated_at = CURRENT_TIMESTAMP
               WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, s.Nom, s.Description, s.CapaciteTables, s.CapaciteChaises,
		s.EquipementPC, s.EquipementDatashow, s.HasInternet, s.ImagePath, s.PrixHoraire, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Row may exist with identical values; distinguish from a missing id.
		var one int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM salles WHERE id = ? LIMIT 1`, s.ID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSalleNotFound
			}
			return err
		}
	}
	sel := `SELECT ` + salleCols + ` FROM salles WHERE id = ?`
	return scanSalle(r.db.QueryRowContext(ctx, sel, s.ID), s)
}

// Delete removes a room unless reservations still reference it.  The
// check and the delete run in one transaction.  Returns ErrSalleNotFound
// when the room does not exist and ErrConflict when it is still booked.
func (r *SalleRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			_ = tx.Commit()
		}
	}()
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM salles WHERE id = ? LIMIT 1`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrSalleNotFound
		}
		return err
	}
	var resCount int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE salle_id = ?`, id).Scan(&resCount); err != nil {
		return err
	}
	if resCount > 0 {
		err = ErrConflict
		return err
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM salles WHERE id = ?`, id)
	return err
}

// FindMatching returns rooms satisfying the custom-request criteria in
// natural order.  limit > 0 caps the result; the admin auto-attach takes
// the first row only, the suggestions endpoint takes them all.
func (r *SalleRepo) FindMatching(ctx context.Context, m MatchCriteria, limit int) ([]Salle, error) {
	q := `SELECT ` + salleCols + ` FROM salles WHERE 1=1`
	args := make([]interface{}, 0, 2)
	if m.CapaciteTables != nil && *m.CapaciteTables > 0 {
		q += " AND capacite_tables >= ?"
		args = append(args, *m.CapaciteTables)
	}
	if m.CapaciteChaises != nil && *m.CapaciteChaises > 0 {
		q += " AND capacite_chaises >= ?"
		args = append(args, *m.CapaciteChaises)
	}
	if m.EquipementPC {
		q += " AND equipement_pc = TRUE"
	}
	if m.EquipementDatashow {
		q += " AND equipement_datashow = TRUE"
	}
	if m.HasInternet {
		q += " AND has_internet = TRUE"
	}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	salles := make([]Salle, 0)
	for rows.Next() {
		var s Salle
		if err := scanSalle(rows, &s); err != nil {
			return nil, err
		}
		salles = append(salles, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return salles, nil
}
