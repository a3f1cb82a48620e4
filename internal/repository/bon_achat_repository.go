package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ayoubz/gestion-salles/internal/model"
)

// BonAchat mirrors the 'bons_achat' table.  A voucher is issued
// automatically when a reservation is approved, or manually by an
// administrator, and expires six months after issuance.
type BonAchat struct {
	ID             uint64    `json:"id"`
	UserID         uint64    `json:"user_id"`
	ReservationID  uint64    `json:"reservation_id"`
	Code           string    `json:"code"`
	Montant        float64   `json:"montant"`
	DateExpiration time.Time `json:"date_expiration"`
	IsUsed         bool      `json:"is_used"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	User        *UserSummary        `json:"user,omitempty"`
	Reservation *ReservationSummary `json:"reservation,omitempty"`
}

// ReservationSummary is the slim embedding of a reservation inside a
// voucher listing.
type ReservationSummary struct {
	ID        uint64       `json:"id"`
	SalleID   uint64       `json:"salle_id"`
	DateDebut time.Time    `json:"date_debut"`
	DateFin   time.Time    `json:"date_fin"`
	Statut    model.Status `json:"statut"`
}

// ErrBonNotFound indicates that a voucher was not located in the DB.
var ErrBonNotFound = errors.New("bon d'achat not found")

// ErrBonExists indicates a voucher already references the reservation.
var ErrBonExists = errors.New("bon d'achat already exists for reservation")

// BonAchatRepo manages persistence for vouchers.
type BonAchatRepo struct {
	db *sql.DB
}

// NewBonAchatRepo constructs a BonAchatRepo with the given DB handle.
func NewBonAchatRepo(db *sql.DB) *BonAchatRepo { return &BonAchatRepo{db: db} }

// DB exposes the underlying sql.DB.
func (r *BonAchatRepo) DB() *sql.DB { return r.db }

const bonCols = `id, user_id, reservation_id, code, montant, date_expiration,
                 is_used, created_at, updated_at`

func scanBon(row interface{ Scan(...interface{}) error }, b *BonAchat) error {
	return row.Scan(&b.ID, &b.UserID, &b.ReservationID, &b.Code, &b.Montant,
		&b.DateExpiration, &b.IsUsed, &b.CreatedAt, &b.UpdatedAt)
}

// ExistsForReservationTx reports whether a voucher already references the
// reservation.  Runs on the approval transaction so the check and the
// insert cannot race.
func (r *BonAchatRepo) ExistsForReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM bons_achat WHERE reservation_id = ? LIMIT 1`, reservationID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateTx inserts a voucher within the approval transaction and reads the
// stored row back.  A duplicate reservation_id maps to ErrBonExists via
// the unique index.
func (r *BonAchatRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *BonAchat) error {
	const q = `INSERT INTO bons_achat
               (user_id, reservation_id, code, montant, date_expiration, is_used)
               VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.UserID, b.ReservationID, b.Code, b.Montant,
		b.DateExpiration, b.IsUsed)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrBonExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	sel := `SELECT ` + bonCols + ` FROM bons_achat WHERE id = ?`
	return scanBon(tx.QueryRowContext(ctx, sel, b.ID), b)
}

// Create inserts a manually issued voucher outside any transaction.
func (r *BonAchatRepo) Create(ctx context.Context, b *BonAchat) error {
	const q = `INSERT INTO bons_achat
               (user_id, reservation_id, code, montant, date_expiration, is_used)
               VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, b.UserID, b.ReservationID, b.Code, b.Montant,
		b.DateExpiration, b.IsUsed)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrBonExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	sel := `SELECT ` + bonCols + ` FROM bons_achat WHERE id = ?`
	return scanBon(r.db.QueryRowContext(ctx, sel, b.ID), b)
}

// GetByID returns one voucher with its owner and reservation embedded.
func (r *BonAchatRepo) GetByID(ctx context.Context, id uint64) (*BonAchat, error) {
	const q = `SELECT b.id, b.user_id, b.reservation_id, b.code, b.montant, b.date_expiration,
                      b.is_used, b.created_at, b.updated_at,
                      u.id, u.name, u.email, u.role,
                      r.id, r.salle_id, r.date_debut, r.date_fin, r.statut
               FROM bons_achat b
               JOIN users u ON u.id = b.user_id
               JOIN reservations r ON r.id = b.reservation_id
               WHERE b.id = ?`
	b, err := scanBonDetail(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBonNotFound
		}
		return nil, err
	}
	return b, nil
}

// List returns all vouchers with owner and reservation embedded, newest
// first.  Non-nil userID restricts to one owner.
func (r *BonAchatRepo) List(ctx context.Context, userID *uint64) ([]BonAchat, error) {
	q := `SELECT b.id, b.user_id, b.reservation_id, b.code, b.montant, b.date_expiration,
                 b.is_used, b.created_at, b.updated_at,
                 u.id, u.name, u.email, u.role,
                 r.id, r.salle_id, r.date_debut, r.date_fin, r.statut
          FROM bons_achat b
          JOIN users u ON u.id = b.user_id
          JOIN reservations r ON r.id = b.reservation_id`
	args := make([]interface{}, 0, 1)
	if userID != nil {
		q += " WHERE b.user_id = ?"
		args = append(args, *userID)
	}
	q += " ORDER BY b.created_at DESC"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]BonAchat, 0)
	for rows.Next() {
		b, err := scanBonDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SetUsed flips the redemption flag.  Returns ErrBonNotFound when the
// voucher does not exist.
func (r *BonAchatRepo) SetUsed(ctx context.Context, id uint64, used bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bons_achat SET is_used = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, used, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM bons_achat WHERE id = ? LIMIT 1`, id).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBonNotFound
			}
			return err
		}
	}
	return nil
}

// Delete removes a voucher.
func (r *BonAchatRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bons_achat WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBonNotFound
	}
	return nil
}

func scanBonDetail(row interface{ Scan(...interface{}) error }) (*BonAchat, error) {
	var b BonAchat
	var u UserSummary
	var uRole string
	var rs ReservationSummary
	var rsStatut string
	err := row.Scan(&b.ID, &b.UserID, &b.ReservationID, &b.Code, &b.Montant,
		&b.DateExpiration, &b.IsUsed, &b.CreatedAt, &b.UpdatedAt,
		&u.ID, &u.Name, &u.Email, &uRole,
		&rs.ID, &rs.SalleID, &rs.DateDebut, &rs.DateFin, &rsStatut)
	if err != nil {
		return nil, err
	}
	u.Role = model.RoleFromString(uRole)
	rs.Statut = model.Status(rsStatut)
	b.User = &u
	b.Reservation = &rs
	return &b, nil
}
