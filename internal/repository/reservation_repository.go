package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ayoubz/gestion-salles/internal/model"
)

// ReservationRepo provides CRUD operations for reservations.  A
// reservation books one room for a [date_debut, date_fin] interval and
// moves from en_attente to validee or refusee under admin control.  All
// timestamp fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying sql.DB.  Handlers use it to begin
// transactions spanning the conflict check, the insert and, on approval,
// the voucher issuance.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// ErrReservationNotFound indicates that a reservation was not located in the DB.
var ErrReservationNotFound = errors.New("reservation not found")

// Reservation mirrors the 'reservations' table.  User, Salle and
// BonAchat are populated by the list/get queries that join them and
// omitted from JSON otherwise.
type Reservation struct {
	ID          uint64       `json:"id"`
	UserID      uint64       `json:"user_id"`
	SalleID     uint64       `json:"salle_id"`
	DateDebut   time.Time    `json:"date_debut"`
	DateFin     time.Time    `json:"date_fin"`
	Statut      model.Status `json:"statut"`
	Commentaire *string      `json:"commentaire"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	User     *UserSummary `json:"user,omitempty"`
	Salle    *Salle       `json:"salle,omitempty"`
	BonAchat *BonAchat    `json:"bon_achat,omitempty"`
}

// ReservationFilter narrows the admin listing.  Nil fields apply no
// restriction.  Date selects reservations whose interval contains the day.
type ReservationFilter struct {
	Statut *model.Status
	Date   *time.Time
	UserID *uint64
}

// CountApprovedOverlapping counts validee reservations on the room whose
// interval overlaps [debut, fin] with inclusive bounds: a reservation
// ending exactly when another begins is a conflict.  excludeID skips one
// reservation (used when re-checking at approval time); pass 0 to check
// them all.  The query runs on the provided transaction so the count and
// the subsequent write see the same snapshot.
func (r *ReservationRepo) CountApprovedOverlapping(ctx context.Context, tx *sql.Tx, salleID uint64, debut, fin time.Time, excludeID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM reservations
               WHERE salle_id = ? AND statut = ? AND id <> ?
                 AND NOT (date_fin < ? OR date_debut > ?)`
	var n int
	err := tx.QueryRowContext(ctx, q, salleID, string(model.StatusApproved), excludeID, debut, fin).Scan(&n)
	return n, err
}

// CreateTx inserts a new reservation within the scope of an existing
// transaction and reads the stored row back to populate defaults and
// timestamps.  The caller must commit or rollback.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *Reservation) error {
	const q = `INSERT INTO reservations (user_id, salle_id, date_debut, date_fin, statut, commentaire)
               VALUES (?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.UserID, res.SalleID, res.DateDebut, res.DateFin,
		string(res.Statut), res.Commentaire)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	const sel = `SELECT id, user_id, salle_id, date_debut, date_fin, statut, commentaire, created_at, updated_at
                 FROM reservations WHERE id = ?`
	return scanReservation(tx.QueryRowContext(ctx, sel, res.ID), res)
}

// GetForUpdateTx loads the base reservation row under a row lock so a
// status transition and its voucher issuance observe a stable state.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*Reservation, error) {
	const q = `SELECT id, user_id, salle_id, date_debut, date_fin, statut, commentaire, created_at, updated_at
               FROM reservations WHERE id = ? FOR UPDATE`
	var res Reservation
	if err := scanReservation(tx.QueryRowContext(ctx, q, id), &res); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

// UpdateTx persists the provided fields within the transaction.  Nil
// pointers leave the corresponding column untouched.
func (r *ReservationRepo) UpdateTx(ctx context.Context, tx *sql.Tx, id uint64, statut *model.Status, commentaire *string) error {
	sets := make([]string, 0, 2)
	args := make([]interface{}, 0, 3)
	if statut != nil {
		sets = append(sets, "statut = ?")
		args = append(args, string(*statut))
	}
	if commentaire != nil {
		sets = append(sets, "commentaire = ?")
		args = append(args, *commentaire)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	q := "UPDATE reservations SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// DeleteTx removes a reservation and its attached voucher, if any, within
// the transaction.  The voucher row must go first because of the foreign key.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM bons_achat WHERE reservation_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// GetByID returns a reservation along with its user, room and voucher.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*Reservation, error) {
	const q = `SELECT r.id, r.user_id, r.salle_id, r.date_debut, r.date_fin, r.statut, r.commentaire,
                      r.created_at, r.updated_at,
                      u.id, u.name, u.email, u.role,
                      s.id, s.nom, s.description, s.capacite_tables, s.capacite_chaises,
                      s.equipement_pc, s.equipement_datashow, s.has_internet, s.image_path,
                      s.prix_horaire, s.created_at, s.updated_at,
                      b.id, b.user_id, b.reservation_id, b.code, b.montant, b.date_expiration,
                      b.is_used, b.created_at, b.updated_at
               FROM reservations r
               JOIN users u ON u.id = r.user_id
               JOIN salles s ON s.id = r.salle_id
               LEFT JOIN bons_achat b ON b.reservation_id = r.id
               WHERE r.id = ?`
	row := r.db.QueryRowContext(ctx, q, id)
	res, err := scanReservationDetail(row, true, true, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

// List returns reservations matching the filter with user and room
// embedded.  Used by the admin dashboard.
func (r *ReservationRepo) List(ctx context.Context, f ReservationFilter) ([]Reservation, error) {
	q := `SELECT r.id, r.user_id, r.salle_id, r.date_debut, r.date_fin, r.statut, r.commentaire,
                 r.created_at, r.updated_at,
                 u.id, u.name, u.email, u.role,
                 s.id, s.nom, s.description, s.capacite_tables, s.capacite_chaises,
                 s.equipement_pc, s.equipement_datashow, s.has_internet, s.image_path,
                 s.prix_horaire, s.created_at, s.updated_at
          FROM reservations r
          JOIN users u ON u.id = r.user_id
          JOIN salles s ON s.id = r.salle_id
          WHERE 1=1`
	args := make([]interface{}, 0, 3)
	if f.Statut != nil {
		q += " AND r.statut = ?"
		args = append(args, string(*f.Statut))
	}
	if f.Date != nil {
		day := f.Date.Format("2006-01-02")
		q += " AND DATE(r.date_debut) <= ? AND DATE(r.date_fin) >= ?"
		args = append(args, day, day)
	}
	if f.UserID != nil {
		q += " AND r.user_id = ?"
		args = append(args, *f.UserID)
	}
	q += " ORDER BY r.created_at DESC"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Reservation, 0)
	for rows.Next() {
		res, err := scanReservationDetail(rows, true, true, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns the user's reservations with room and voucher
// embedded, newest start first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]Reservation, error) {
	const q = `SELECT r.id, r.user_id, r.salle_id, r.date_debut, r.date_fin, r.statut, r.commentaire,
                      r.created_at, r.updated_at,
                      s.id, s.nom, s.description, s.capacite_tables, s.capacite_chaises,
                      s.equipement_pc, s.equipement_datashow, s.has_internet, s.image_path,
                      s.prix_horaire, s.created_at, s.updated_at,
                      b.id, b.user_id, b.reservation_id, b.code, b.montant, b.date_expiration,
                      b.is_used, b.created_at, b.updated_at
               FROM reservations r
               JOIN salles s ON s.id = r.salle_id
               LEFT JOIN bons_achat b ON b.reservation_id = r.id
               WHERE r.user_id = ?
               ORDER BY r.date_debut DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Reservation, 0)
	for rows.Next() {
		res, err := scanReservationDetail(rows, false, true, true)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBySalle returns the room's reservations with requester and voucher
// embedded, newest start first.
func (r *ReservationRepo) ListBySalle(ctx context.Context, salleID uint64) ([]Reservation, error) {
	const q = `SELECT r.id, r.user_id, r.salle_id, r.date_debut, r.date_fin, r.statut, r.commentaire,
                      r.created_at, r.updated_at,
                      u.id, u.name, u.email, u.role,
                      b.id, b.user_id, b.reservation_id, b.code, b.montant, b.date_expiration,
                      b.is_used, b.created_at, b.updated_at
               FROM reservations r
               JOIN users u ON u.id = r.user_id
               LEFT JOIN bons_achat b ON b.reservation_id = r.id
               WHERE r.salle_id = ?
               ORDER BY r.date_debut DESC`
	rows, err := r.db.QueryContext(ctx, q, salleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Reservation, 0)
	for rows.Next() {
		res, err := scanReservationDetail(rows, true, false, true)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// scanReservation fills the base columns of a reservation row.
func scanReservation(row interface{ Scan(...interface{}) error }, res *Reservation) error {
	var statut string
	var comment sql.NullString
	err := row.Scan(&res.ID, &res.UserID, &res.SalleID, &res.DateDebut, &res.DateFin,
		&statut, &comment, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return err
	}
	res.Statut = model.Status(statut)
	if comment.Valid {
		c := comment.String
		res.Commentaire = &c
	}
	return nil
}

// scanReservationDetail scans a joined row.  The flags mirror which
// tables were joined in the query, in the fixed order user, salle, bon.
func scanReservationDetail(row interface{ Scan(...interface{}) error }, withUser, withSalle, withBon bool) (*Reservation, error) {
	var res Reservation
	var statut string
	var comment sql.NullString

	dest := []interface{}{&res.ID, &res.UserID, &res.SalleID, &res.DateDebut, &res.DateFin,
		&statut, &comment, &res.CreatedAt, &res.UpdatedAt}

	var u UserSummary
	var uRole string
	if withUser {
		dest = append(dest, &u.ID, &u.Name, &u.Email, &uRole)
	}

	var s Salle
	var sDesc, sImg sql.NullString
	if withSalle {
		dest = append(dest, &s.ID, &s.Nom, &sDesc, &s.CapaciteTables, &s.CapaciteChaises,
			&s.EquipementPC, &s.EquipementDatashow, &s.HasInternet, &sImg,
			&s.PrixHoraire, &s.CreatedAt, &s.UpdatedAt)
	}

	var bID, bUserID, bResID sql.NullInt64
	var bCode sql.NullString
	var bMontant sql.NullFloat64
	var bExp, bCreated, bUpdated sql.NullTime
	var bUsed sql.NullBool
	if withBon {
		dest = append(dest, &bID, &bUserID, &bResID, &bCode, &bMontant, &bExp, &bUsed, &bCreated, &bUpdated)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	res.Statut = model.Status(statut)
	if comment.Valid {
		c := comment.String
		res.Commentaire = &c
	}
	if withUser {
		u.Role = model.RoleFromString(uRole)
		res.User = &u
	}
	if withSalle {
		if sDesc.Valid {
			d := sDesc.String
			s.Description = &d
		}
		if sImg.Valid {
			p := sImg.String
			s.ImagePath = &p
		}
		res.Salle = &s
	}
	if withBon && bID.Valid {
		res.BonAchat = &BonAchat{
			ID:             uint64(bID.Int64),
			UserID:         uint64(bUserID.Int64),
			ReservationID:  uint64(bResID.Int64),
			Code:           bCode.String,
			Montant:        bMontant.Float64,
			DateExpiration: bExp.Time,
			IsUsed:         bUsed.Bool,
			CreatedAt:      bCreated.Time,
			UpdatedAt:      bUpdated.Time,
		}
	}
	return &res, nil
}
