package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ayoubz/gestion-salles/internal/config"
	"github.com/ayoubz/gestion-salles/internal/repository"
)

// SalleHandler serves the room catalog: public listing and admin CRUD.
type SalleHandler struct {
	Cfg    config.Config
	Salles *repository.SalleRepo
}

func NewSalleHandler(cfg config.Config, s *repository.SalleRepo) *SalleHandler {
	return &SalleHandler{Cfg: cfg, Salles: s}
}

// List returns rooms matching the query filters.  Empty numeric filters
// are ignored, never treated as zero.
func (h *SalleHandler) List(c echo.Context) error {
	var f repository.SalleFilter
	if v := strings.TrimSpace(c.QueryParam("min_tables")); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return validationError(c, "min_tables", "doit être un entier positif")
		}
		u := uint32(n)
		f.MinTables = &u
	}
	if v := strings.TrimSpace(c.QueryParam("min_chaises")); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return validationError(c, "min_chaises", "doit être un entier positif")
		}
		u := uint32(n)
		f.MinChaises = &u
	}
	f.PC = truthy(c.QueryParam("pc"))
	f.Datashow = truthy(c.QueryParam("datashow"))
	f.Internet = truthy(c.QueryParam("internet"))
	f.Sort = strings.TrimSpace(c.QueryParam("sort"))

	salles, err := h.Salles.List(c.Request().Context(), f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement des salles"})
	}
	return c.JSON(http.StatusOK, salles)
}

// Get returns one room.
func (h *SalleHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Identifiant invalide"})
	}
	s, err := h.Salles.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSalleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Salle introuvable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement de la salle"})
	}
	return c.JSON(http.StatusOK, s)
}

// Create inserts a room from a multipart form (admin only).
func (h *SalleHandler) Create(c echo.Context) error {
	s, errs := h.bindSalleForm(c, nil)
	if len(errs) > 0 {
		return validationErrors(c, errs)
	}

	if file, err := c.FormFile("image"); err == nil && file != nil {
		path, err := h.storeImage(file)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de l'enregistrement de l'image"})
		}
		s.ImagePath = &path
	}

	if err := h.Salles.Create(c.Request().Context(), s); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la création de la salle"})
	}
	return c.JSON(http.StatusCreated, s)
}

// Update applies a partial multipart update (admin only).  A replacement
// image removes the previous file best-effort.
func (h *SalleHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Identifiant invalide"})
	}
	current, err := h.Salles.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSalleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Salle introuvable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement de la salle"})
	}

	s, errs := h.bindSalleForm(c, current)
	if len(errs) > 0 {
		return validationErrors(c, errs)
	}

	if file, err := c.FormFile("image"); err == nil && file != nil {
		path, err := h.storeImage(file)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de l'enregistrement de l'image"})
		}
		if current.ImagePath != nil {
			_ = os.Remove(*current.ImagePath)
		}
		s.ImagePath = &path
	}

	if err := h.Salles.Update(c.Request().Context(), s); err != nil {
		if errors.Is(err, repository.ErrSalleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Salle introuvable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour de la salle"})
	}
	return c.JSON(http.StatusOK, s)
}

// Delete removes a room (admin only).  Refused with 422 while
// reservations still reference it.
func (h *SalleHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Identifiant invalide"})
	}
	s, err := h.Salles.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSalleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Salle introuvable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la suppression"})
	}
	if err := h.Salles.Delete(c.Request().Context(), id); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{
				"message": "Impossible de supprimer une salle avec des réservations",
			})
		case errors.Is(err, repository.ErrSalleNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Salle introuvable"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la suppression"})
		}
	}
	if s.ImagePath != nil {
		_ = os.Remove(*s.ImagePath)
	}
	return c.NoContent(http.StatusNoContent)
}

// bindSalleForm reads the multipart fields into a Salle.  With a non-nil
// base the form is treated as partial: absent fields keep the base value.
func (h *SalleHandler) bindSalleForm(c echo.Context, base *repository.Salle) (*repository.Salle, map[string][]string) {
	var s repository.Salle
	if base != nil {
		s = *base
	}
	errs := map[string][]string{}

	if v, ok := formValue(c, "nom"); ok {
		s.Nom = strings.TrimSpace(v)
	}
	if s.Nom == "" {
		errs["nom"] = append(errs["nom"], "Le nom est obligatoire")
	}
	if v, ok := formValue(c, "description"); ok {
		s.Description = trimPtr(&v)
	}
	if v, ok := formValue(c, "capacite_tables"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			errs["capacite_tables"] = append(errs["capacite_tables"], "doit être un entier positif")
		} else {
			s.CapaciteTables = uint32(n)
		}
	}
	if v, ok := formValue(c, "capacite_chaises"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			errs["capacite_chaises"] = append(errs["capacite_chaises"], "doit être un entier positif")
		} else {
			s.CapaciteChaises = uint32(n)
		}
	}
	if v, ok := formValue(c, "equipement_pc"); ok {
		s.EquipementPC = truthy(v)
	}
	if v, ok := formValue(c, "equipement_datashow"); ok {
		s.EquipementDatashow = truthy(v)
	}
	if v, ok := formValue(c, "has_internet"); ok {
		s.HasInternet = truthy(v)
	}
	if v, ok := formValue(c, "prix_horaire"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || f < 0 {
			errs["prix_horaire"] = append(errs["prix_horaire"], "doit être un nombre positif")
		} else {
			s.PrixHoraire = f
		}
	}
	return &s, errs
}

// storeImage writes an uploaded file under the storage directory named by
// the current unix timestamp, keeping the original extension.
func (h *SalleHandler) storeImage(file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(h.Cfg.StoragePath, 0o755); err != nil {
		return "", err
	}
	ext := filepath.Ext(file.Filename)
	path := filepath.Join(h.Cfg.StoragePath, fmt.Sprintf("%d%s", time.Now().Unix(), ext))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return path, nil
}

// formValue reports whether the form field was supplied at all, so
// partial updates can distinguish "absent" from "empty".
func formValue(c echo.Context, name string) (string, bool) {
	form, err := c.MultipartForm()
	if err == nil && form != nil {
		if vals, ok := form.Value[name]; ok && len(vals) > 0 {
			return vals[0], true
		}
		return "", false
	}
	params, err := c.FormParams()
	if err != nil {
		return "", false
	}
	if vals, ok := params[name]; ok && len(vals) > 0 {
		return vals[0], true
	}
	return "", false
}

// truthy interprets the usual form/query encodings of a boolean flag.
func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
