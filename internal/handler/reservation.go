package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ayoubz/gestion-salles/internal/model"
	"github.com/ayoubz/gestion-salles/internal/queue"
	"github.com/ayoubz/gestion-salles/internal/repository"
	queue_publisher "github.com/ayoubz/gestion-salles/internal/service"
	"github.com/ayoubz/gestion-salles/internal/utils"
)

const overlapMessage = "La salle est déjà réservée pour cette période."

// ReservationHandler owns the reservation lifecycle: creation with the
// conflict check, admin transitions with voucher issuance, deletion and
// the listing endpoints.
type ReservationHandler struct {
	Reservations *repository.ReservationRepo
	Salles       *repository.SalleRepo
	Bons         *repository.BonAchatRepo
	Users        *repository.UserRepo
}

func NewReservationHandler(r *repository.ReservationRepo, s *repository.SalleRepo,
	b *repository.BonAchatRepo, u *repository.UserRepo) *ReservationHandler {
	return &ReservationHandler{Reservations: r, Salles: s, Bons: b, Users: u}
}

type createReservationReq struct {
	SalleID     uint64  `json:"salle_id"`
	DateDebut   string  `json:"date_debut"`
	DateFin     string  `json:"date_fin"`
	Commentaire *string `json:"commentaire"`
}

type updateReservationReq struct {
	Statut      *string `json:"statut"`
	Commentaire *string `json:"commentaire"`
}

// Create books a room for the caller.  The overlap check against validee
// reservations and the insert run in one transaction so two concurrent
// requests cannot both pass the check.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid := getUserID(c)
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Requête invalide"})
	}

	errs := map[string][]string{}
	if req.SalleID == 0 {
		errs["salle_id"] = append(errs["salle_id"], "La salle est obligatoire")
	}
	debut, errDebut := parseDateTime(req.DateDebut)
	if req.DateDebut == "" || errDebut != nil {
		errs["date_debut"] = append(errs["date_debut"], "La date de début est invalide")
	}
	fin, errFin := parseDateTime(req.DateFin)
	if req.DateFin == "" || errFin != nil {
		errs["date_fin"] = append(errs["date_fin"], "La date de fin est invalide")
	}
	if len(errs) == 0 && !fin.After(debut) {
		errs["date_fin"] = append(errs["date_fin"], "La date de fin doit être postérieure à la date de début")
	}
	if len(errs) > 0 {
		return validationErrors(c, errs)
	}

	ctx := c.Request().Context()
	if _, err := h.Salles.GetByID(ctx, req.SalleID); err != nil {
		if errors.Is(err, repository.ErrSalleNotFound) {
			return validationError(c, "salle_id", "La salle sélectionnée est invalide")
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la réservation"})
	}

	tx, err := h.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la réservation"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	n, err := h.Reservations.CountApprovedOverlapping(ctx, tx, req.SalleID, debut, fin, 0)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la réservation"})
	}
	if n > 0 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"message": overlapMessage})
	}

	res := &repository.Reservation{
		UserID:      uid,
		SalleID:     req.SalleID,
		DateDebut:   debut,
		DateFin:     fin,
		Statut:      model.StatusPending,
		Commentaire: trimPtr(req.Commentaire),
	}
	if err := h.Reservations.CreateTx(ctx, tx, res); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la réservation"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la réservation"})
	}
	committed = true

	return c.JSON(http.StatusCreated, res)
}

// Transition applies an admin decision.  Approval re-runs the overlap
// check (excluding this reservation) and issues the voucher inside the
// same transaction; a re-approval never issues a second voucher.
func (h *ReservationHandler) Transition(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Identifiant invalide"})
	}
	var req updateReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Requête invalide"})
	}

	var newStatut *model.Status
	if req.Statut != nil {
		st := model.Status(strings.TrimSpace(*req.Statut))
		if !st.Valid() {
			return validationError(c, "statut", "Statut invalide")
		}
		newStatut = &st
	}

	ctx := c.Request().Context()
	tx, err := h.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := h.Reservations.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Réservation introuvable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
	}
	prev := res.Statut

	if err := h.Reservations.UpdateTx(ctx, tx, id, newStatut, trimPtr(req.Commentaire)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
	}
	if newStatut != nil {
		res.Statut = *newStatut
	}
	if p := trimPtr(req.Commentaire); p != nil {
		res.Commentaire = p
	}

	var bon *repository.BonAchat
	approving := newStatut != nil && *newStatut == model.StatusApproved && prev != model.StatusApproved
	if approving {
		n, err := h.Reservations.CountApprovedOverlapping(ctx, tx, res.SalleID, res.DateDebut, res.DateFin, res.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
		}
		if n > 0 {
			return c.JSON(http.StatusConflict, echo.Map{"message": overlapMessage})
		}

		exists, err := h.Bons.ExistsForReservationTx(ctx, tx, res.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
		}
		if !exists {
			salle, err := h.Salles.GetByID(ctx, res.SalleID)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
			}
			code, err := utils.NewAutoCode()
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
			}
			now := time.Now().UTC()
			bon = &repository.BonAchat{
				UserID:         res.UserID,
				ReservationID:  res.ID,
				Code:           code,
				Montant:        utils.VoucherAmount(res.DateDebut, res.DateFin, salle.PrixHoraire),
				DateExpiration: utils.VoucherExpiry(now),
			}
			if err := h.Bons.CreateTx(ctx, tx, bon); err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
	}
	committed = true

	if approving {
		h.publishValidated(res, bon)
		return c.JSON(http.StatusOK, echo.Map{
			"reservation": res,
			"bonAchat":    bon,
			"message":     "Réservation validée",
		})
	}
	return c.JSON(http.StatusOK, res)
}

// Delete removes a reservation.  Owners may delete only while the request
// is still pending; administrators always may.  The attached voucher goes
// in the same transaction.
func (h *ReservationHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Identifiant invalide"})
	}
	uid := getUserID(c)
	role := getRole(c)

	ctx := c.Request().Context()
	tx, err := h.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la suppression"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := h.Reservations.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Réservation introuvable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la suppression"})
	}
	if !role.IsAdmin() {
		if res.UserID != uid {
			return forbidden(c)
		}
		if res.Statut != model.StatusPending {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{
				"message": "Impossible de supprimer une réservation déjà traitée",
			})
		}
	}

	if err := h.Reservations.DeleteTx(ctx, tx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la suppression"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la suppression"})
	}
	committed = true

	return c.NoContent(http.StatusNoContent)
}

// List returns reservations matching the optional statut/date/user_id
// filters (admin only; the router enforces that).
func (h *ReservationHandler) List(c echo.Context) error {
	var f repository.ReservationFilter
	if v := strings.TrimSpace(c.QueryParam("statut")); v != "" {
		st := model.Status(v)
		if !st.Valid() {
			return validationError(c, "statut", "Statut invalide")
		}
		f.Statut = &st
	}
	if v := strings.TrimSpace(c.QueryParam("date")); v != "" {
		d, err := parseDateTime(v)
		if err != nil {
			return validationError(c, "date", "Date invalide")
		}
		f.Date = &d
	}
	if v := strings.TrimSpace(c.QueryParam("user_id")); v != "" {
		uid, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return validationError(c, "user_id", "Identifiant invalide")
		}
		f.UserID = &uid
	}

	out, err := h.Reservations.List(c.Request().Context(), f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement des réservations"})
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one reservation; owners see their own, admins any.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Identifiant invalide"})
	}
	res, err := h.Reservations.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Réservation introuvable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement de la réservation"})
	}
	if !getRole(c).IsAdmin() && res.UserID != getUserID(c) {
		return forbidden(c)
	}
	return c.JSON(http.StatusOK, res)
}

// ListByUser returns a user's reservations; only the user themselves or
// an admin may read them.
func (h *ReservationHandler) ListByUser(c echo.Context) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Identifiant invalide"})
	}
	if !getRole(c).IsAdmin() && userID != getUserID(c) {
		return forbidden(c)
	}
	out, err := h.Reservations.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement des réservations"})
	}
	return c.JSON(http.StatusOK, out)
}

// ListBySalle returns all reservations on a room (admin only; the router
// enforces that).
func (h *ReservationHandler) ListBySalle(c echo.Context) error {
	salleID, err := parseID(c, "salleId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Identifiant invalide"})
	}
	out, err := h.Reservations.ListBySalle(c.Request().Context(), salleID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement des réservations"})
	}
	return c.JSON(http.StatusOK, out)
}

// publishValidated emits the reservation.validated event, best effort.
func (h *ReservationHandler) publishValidated(res *repository.Reservation, bon *repository.BonAchat) {
	ev := queue.ReservationValidatedEvent{
		ReservationID: res.ID,
		UserID:        res.UserID,
		SalleID:       res.SalleID,
		DateDebut:     res.DateDebut.UTC().Format(time.RFC3339),
		DateFin:       res.DateFin.UTC().Format(time.RFC3339),
		ValidatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if u, err := h.Users.GetByID(ctx, res.UserID); err == nil {
		ev.UserEmail = u.Email
	}
	if s, err := h.Salles.GetByID(ctx, res.SalleID); err == nil {
		ev.SalleNom = s.Nom
	}
	if bon != nil {
		ev.BonCode = bon.Code
		ev.BonMontant = bon.Montant
	}
	go func() {
		pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pcancel()
		_ = queue_publisher.PublishReservationValidated(pctx, ev)
	}()
}
