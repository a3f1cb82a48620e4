package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ayoubz/gestion-salles/internal/model"
	"github.com/ayoubz/gestion-salles/internal/repository"
)

// DemandeHandler serves custom room requests: users describe the room
// they wish existed, administrators answer and may attach a matching
// existing room.
type DemandeHandler struct {
	Demandes *repository.DemandeRepo
	Salles   *repository.SalleRepo
}

func NewDemandeHandler(d *repository.DemandeRepo, s *repository.SalleRepo) *DemandeHandler {
	return &DemandeHandler{Demandes: d, Salles: s}
}

type demandeContentReq struct {
	Titre              string  `json:"titre"`
	Description        string  `json:"description"`
	CapaciteTables     *uint32 `json:"capacite_tables"`
	CapaciteChaises    *uint32 `json:"capacite_chaises"`
	EquipementPC       bool    `json:"equipement_pc"`
	EquipementDatashow bool    `json:"equipement_datashow"`
	HasInternet        bool    `json:"has_internet"`
	DateSouhaitee      *string `json:"date_souhaitee"`
	DureeSouhaitee     *string `json:"duree_souhaitee"`
}

type demandeAdminReq struct {
	Statut       *string `json:"statut"`
	ReponseAdmin *string `json:"reponse_admin"`
	SalleID      *uint64 `json:"salle_id"`
}

// Create registers a new request owned by the caller, always pending.
func (h *DemandeHandler) Create(c echo.Context) error {
	var req demandeContentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Requête invalide"})
	}
	d, errs := h.buildDemande(&req)
	if len(errs) > 0 {
		return validationErrors(c, errs)
	}
	d.UserID = getUserID(c)

	if err := h.Demandes.Create(c.Request().Context(), d); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la création de la demande"})
	}
	return c.JSON(http.StatusCreated, d)
}

// List returns all requests for an admin, the caller's own otherwise.
func (h *DemandeHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		out []repository.Demande
		err error
	)
	if getRole(c).IsAdmin() {
		out, err = h.Demandes.ListAll(ctx)
	} else {
		out, err = h.Demandes.ListByUser(ctx, getUserID(c))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement des demandes"})
	}
	return c.JSON(http.StatusOK, out)
}

// ListPending returns requests still awaiting an answer (admin only).
func (h *DemandeHandler) ListPending(c echo.Context) error {
	out, err := h.Demandes.ListPending(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement des demandes"})
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one request to its owner or an admin.
func (h *DemandeHandler) Get(c echo.Context) error {
	d, errResp := h.loadAuthorized(c)
	if errResp != nil {
		return errResp
	}
	return c.JSON(http.StatusOK, d)
}

// Update has two branches.  Admins set the decision fields; approving
// without an explicit salle_id triggers the best-effort match and
// attaches the first satisfying room.  Owners may rewrite the content
// fields only while the request is still pending.
func (h *DemandeHandler) Update(c echo.Context) error {
	d, errResp := h.loadAuthorized(c)
	if errResp != nil {
		return errResp
	}
	ctx := c.Request().Context()

	if getRole(c).IsAdmin() {
		var req demandeAdminReq
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
		salleID := req.SalleID
		if salleID != nil {
			if _, err := h.Salles.GetByID(ctx, *salleID); err != nil {
				if errors.Is(err, repository.ErrSalleNotFound) {
					return validationError(c, "salle_id", "La salle sélectionnée est invalide")
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
			}
		}
		if salleID == nil && newStatut != nil && *newStatut == model.StatusApproved {
			matches, err := h.Salles.FindMatching(ctx, d.Criteria(), 1)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
			}
			if len(matches) > 0 {
				salleID = &matches[0].ID
			}
		}
		if err := h.Demandes.UpdateAdmin(ctx, d.ID, newStatut, trimPtr(req.ReponseAdmin), salleID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
		}
	} else {
		if d.Statut != model.StatusPending {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{
				"message": "Impossible de modifier une demande déjà traitée",
			})
		}
		var req demandeContentReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Requête invalide"})
		}
		upd, errs := h.buildDemande(&req)
		if len(errs) > 0 {
			return validationErrors(c, errs)
		}
		upd.ID = d.ID
		if err := h.Demandes.UpdateContent(ctx, upd); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
		}
	}

	fresh, err := h.Demandes.GetByID(ctx, d.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement de la demande"})
	}
	return c.JSON(http.StatusOK, fresh)
}

// Delete removes a request: owners while pending, admins always.
func (h *DemandeHandler) Delete(c echo.Context) error {
	d, errResp := h.loadAuthorized(c)
	if errResp != nil {
		return errResp
	}
	if !getRole(c).IsAdmin() && d.Statut != model.StatusPending {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"message": "Impossible de supprimer une demande déjà traitée",
		})
	}
	if err := h.Demandes.Delete(c.Request().Context(), d.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la suppression"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Suggestions returns every room matching the request's criteria.
func (h *DemandeHandler) Suggestions(c echo.Context) error {
	d, errResp := h.loadAuthorized(c)
	if errResp != nil {
		return errResp
	}
	salles, err := h.Salles.FindMatching(c.Request().Context(), d.Criteria(), 0)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement des suggestions"})
	}
	return c.JSON(http.StatusOK, salles)
}

// loadAuthorized fetches the request and enforces owner-or-admin access.
// A non-nil second value is the error response already sent.
func (h *DemandeHandler) loadAuthorized(c echo.Context) (*repository.Demande, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"message": "Identifiant invalide"})
	}
	d, err := h.Demandes.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrDemandeNotFound) {
			return nil, c.JSON(http.StatusNotFound, echo.Map{"message": "Demande introuvable"})
		}
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement de la demande"})
	}
	if !getRole(c).IsAdmin() && d.UserID != getUserID(c) {
		return nil, forbidden(c)
	}
	return d, nil
}

// buildDemande validates the content fields shared by create and the
// owner update branch.
func (h *DemandeHandler) buildDemande(req *demandeContentReq) (*repository.Demande, map[string][]string) {
	errs := map[string][]string{}
	req.Titre = strings.TrimSpace(req.Titre)
	req.Description = strings.TrimSpace(req.Description)
	if req.Titre == "" {
		errs["titre"] = append(errs["titre"], "Le titre est obligatoire")
	}
	if req.Description == "" {
		errs["description"] = append(errs["description"], "La description est obligatoire")
	}

	var date *time.Time
	if req.DateSouhaitee != nil && strings.TrimSpace(*req.DateSouhaitee) != "" {
		t, err := parseDateTime(*req.DateSouhaitee)
		if err != nil {
			errs["date_souhaitee"] = append(errs["date_souhaitee"], "La date souhaitée est invalide")
		} else {
			date = &t
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	return &repository.Demande{
		Titre:              req.Titre,
		Description:        req.Description,
		CapaciteTables:     req.CapaciteTables,
		CapaciteChaises:    req.CapaciteChaises,
		EquipementPC:       req.EquipementPC,
		EquipementDatashow: req.EquipementDatashow,
		HasInternet:        req.HasInternet,
		DateSouhaitee:      date,
		DureeSouhaitee:     trimPtr(req.DureeSouhaitee),
		Statut:             model.StatusPending,
	}, nil
}
