package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ayoubz/gestion-salles/internal/repository"
	"github.com/ayoubz/gestion-salles/internal/utils"
)

// BonAchatHandler serves the voucher endpoints.  Automatic issuance lives
// in the reservation approval flow; this handler covers listing, manual
// issuance, redemption and deletion.
type BonAchatHandler struct {
	Bons         *repository.BonAchatRepo
	Reservations *repository.ReservationRepo
	Users        *repository.UserRepo
}

func NewBonAchatHandler(b *repository.BonAchatRepo, r *repository.ReservationRepo,
	u *repository.UserRepo) *BonAchatHandler {
	return &BonAchatHandler{Bons: b, Reservations: r, Users: u}
}

type createBonReq struct {
	UserID        uint64  `json:"user_id"`
	ReservationID uint64  `json:"reservation_id"`
	Montant       float64 `json:"montant"`
}

type updateBonReq struct {
	IsUsed *bool `json:"is_used"`
}

// List returns vouchers: all of them for an admin, the caller's own
// otherwise.
func (h *BonAchatHandler) List(c echo.Context) error {
	var userID *uint64
	if !getRole(c).IsAdmin() {
		uid := getUserID(c)
		userID = &uid
	}
	out, err := h.Bons.List(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement des bons d'achat"})
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one voucher; owners see their own, admins any.
func (h *BonAchatHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Identifiant invalide"})
	}
	b, err := h.Bons.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrBonNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Bon d'achat introuvable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement du bon d'achat"})
	}
	if !getRole(c).IsAdmin() && b.UserID != getUserID(c) {
		return forbidden(c)
	}
	return c.JSON(http.StatusOK, b)
}

// Create issues a manual voucher (admin only): caller-supplied amount,
// eight-character code, same six-month expiry as automatic ones.
func (h *BonAchatHandler) Create(c echo.Context) error {
	var req createBonReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Requête invalide"})
	}

	errs := map[string][]string{}
	if req.UserID == 0 {
		errs["user_id"] = append(errs["user_id"], "L'utilisateur est obligatoire")
	}
	if req.ReservationID == 0 {
		errs["reservation_id"] = append(errs["reservation_id"], "La réservation est obligatoire")
	}
	if req.Montant < 0 {
		errs["montant"] = append(errs["montant"], "Le montant doit être positif")
	}
	if len(errs) > 0 {
		return validationErrors(c, errs)
	}

	ctx := c.Request().Context()
	if _, err := h.Users.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return validationError(c, "user_id", "L'utilisateur sélectionné est invalide")
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la création du bon d'achat"})
	}
	if _, err := h.Reservations.GetByID(ctx, req.ReservationID); err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return validationError(c, "reservation_id", "La réservation sélectionnée est invalide")
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la création du bon d'achat"})
	}

	code, err := utils.NewManualCode()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la création du bon d'achat"})
	}
	b := &repository.BonAchat{
		UserID:         req.UserID,
		ReservationID:  req.ReservationID,
		Code:           code,
		Montant:        req.Montant,
		DateExpiration: utils.VoucherExpiry(time.Now().UTC()),
	}
	if err := h.Bons.Create(ctx, b); err != nil {
		if errors.Is(err, repository.ErrBonExists) {
			return validationError(c, "reservation_id", "Un bon d'achat existe déjà pour cette réservation")
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la création du bon d'achat"})
	}
	return c.JSON(http.StatusCreated, b)
}

// Update mutates the redemption flag only.  Redeeming an expired voucher
// fails, and a used voucher cannot be un-used.
func (h *BonAchatHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Identifiant invalide"})
	}
	var req updateBonReq
	if err := c.Bind(&req); err != nil || req.IsUsed == nil {
		return validationError(c, "is_used", "is_used est obligatoire")
	}

	ctx := c.Request().Context()
	b, err := h.Bons.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBonNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Bon d'achat introuvable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
	}
	if !getRole(c).IsAdmin() && b.UserID != getUserID(c) {
		return forbidden(c)
	}
	if !*req.IsUsed {
		if b.IsUsed {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{
				"message": "Un bon d'achat utilisé ne peut pas être réactivé",
			})
		}
		return c.JSON(http.StatusOK, b)
	}
	if time.Now().UTC().After(b.DateExpiration) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"message": "Ce bon d'achat a expiré"})
	}

	if err := h.Bons.SetUsed(ctx, id, true); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
	}
	b.IsUsed = true
	return c.JSON(http.StatusOK, b)
}

// Delete removes a voucher (admin only).
func (h *BonAchatHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Identifiant invalide"})
	}
	if err := h.Bons.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrBonNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Bon d'achat introuvable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la suppression"})
	}
	return c.NoContent(http.StatusNoContent)
}
