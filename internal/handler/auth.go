package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ayoubz/gestion-salles/internal/config"
	"github.com/ayoubz/gestion-salles/internal/mailer"
	"github.com/ayoubz/gestion-salles/internal/model"
	"github.com/ayoubz/gestion-salles/internal/repository"
	"github.com/ayoubz/gestion-salles/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
	Resets *repository.PasswordResetRepo
	Mail   *mailer.Mailer
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo,
	r *repository.PasswordResetRepo, m *mailer.Mailer) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Resets: r, Mail: m}
}

// ----- DTOs -----

type registerReq struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type updateProfileReq struct {
	Name                 *string `json:"name"`
	Email                *string `json:"email"`
	Password             *string `json:"password"`
	PasswordConfirmation *string `json:"password_confirmation"`
}
type forgotReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Token                string `json:"token"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// Register creates an account with the regular user role and returns a
// token pair so the SPA can sign in immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Requête invalide"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	errs := map[string][]string{}
	if req.Name == "" {
		errs["name"] = append(errs["name"], "Le nom est obligatoire")
	}
	if req.Email == "" {
		errs["email"] = append(errs["email"], "L'email est obligatoire")
	} else if !strings.Contains(req.Email, "@") {
		errs["email"] = append(errs["email"], "L'email est invalide")
	}
	if len(req.Password) < 6 {
		errs["password"] = append(errs["password"], "Le mot de passe doit contenir au moins 6 caractères")
	}
	if req.Password != req.PasswordConfirmation {
		errs["password"] = append(errs["password"], "La confirmation ne correspond pas")
	}
	if len(errs) > 0 {
		return validationErrors(c, errs)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Name, req.Email, req.Password, model.RoleUser, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return validationError(c, "email", "Cet email est déjà utilisé")
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la création du compte"})
	}

	access, refresh, err := h.issueTokens(ctx, uid, model.RoleUser)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la création du jeton"})
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement du profil"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"user":          u,
		"token":         access.Token,
		"refresh_token": refresh.Raw,
		"message":       "Inscription réussie",
	})
}

// Login verifies credentials, revokes any previous refresh tokens (one
// active session per user) and returns a fresh pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Requête invalide"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return validationError(c, "email", "Email et mot de passe sont obligatoires")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Identifiants invalides"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la connexion"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Identifiants invalides"})
	}

	_ = h.Tokens.RevokeAllForUser(ctx, u.ID)

	access, refresh, err := h.issueTokens(ctx, u.ID, u.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la création du jeton"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user":          u,
		"token":         access.Token,
		"refresh_token": refresh.Raw,
		"message":       "Connexion réussie",
	})
}

// Refresh rotates a refresh token: validate by hash, revoke it, issue a
// new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "refresh_token est obligatoire"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Jeton de rafraîchissement invalide"})
	}
	_ = h.Tokens.RevokeByHash(ctx, hash)

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement du profil"})
	}

	access, refresh, err := h.issueTokens(ctx, u.ID, u.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la création du jeton"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user":          u,
		"token":         access.Token,
		"refresh_token": refresh.Raw,
	})
}

// Logout revokes every refresh token of the caller.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid := getUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Non authentifié"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la déconnexion"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Déconnexion réussie"})
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	uid := getUserID(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Utilisateur introuvable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement du profil"})
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateProfile applies partial name/email/password changes to the caller.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	uid := getUserID(c)
	var req updateProfileReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Requête invalide"})
	}
	req.Name = trimPtr(req.Name)
	req.Email = trimPtr(req.Email)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if req.Email != nil {
		email := strings.ToLower(*req.Email)
		req.Email = &email
		if !strings.Contains(email, "@") {
			return validationError(c, "email", "L'email est invalide")
		}
		taken, err := h.Users.EmailTakenByOther(ctx, email, uid)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
		}
		if taken {
			return validationError(c, "email", "Cet email est déjà utilisé")
		}
	}

	var passwordHash *string
	if req.Password != nil && *req.Password != "" {
		if len(*req.Password) < 6 {
			return validationError(c, "password", "Le mot de passe doit contenir au moins 6 caractères")
		}
		if req.PasswordConfirmation == nil || *req.Password != *req.PasswordConfirmation {
			return validationError(c, "password", "La confirmation ne correspond pas")
		}
		hash, err := utils.HashPassword(*req.Password, h.Cfg.BcryptCost)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
		}
		passwordHash = &hash
	}

	if err := h.Users.UpdateProfile(ctx, uid, req.Name, req.Email, passwordHash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la mise à jour"})
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec du chargement du profil"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u, "message": "Profil mis à jour"})
}

// ForgotPassword issues a password-reset token and mails the reset link.
// When mail delivery fails the link is returned in the response body so
// the flow still works without SMTP.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return validationError(c, "email", "L'email est obligatoire")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Aucun utilisateur trouvé avec cet email"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la demande"})
	}

	token, err := utils.RandomHex(30) // 60-char reset token
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la demande"})
	}
	tokenHash, err := utils.HashPassword(token, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la demande"})
	}
	if err := h.Resets.Replace(ctx, email, tokenHash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la demande"})
	}

	link := h.Cfg.FrontendURL + "/reset-password?token=" + url.QueryEscape(token) +
		"&email=" + url.QueryEscape(email)
	body := "<p>Pour réinitialiser votre mot de passe, cliquez sur le lien suivant :</p>" +
		"<p><a href=\"" + link + "\">" + link + "</a></p>" +
		"<p>Ce lien expire dans 24 heures.</p>"

	if err := h.Mail.Send(email, "Réinitialisation du mot de passe", body); err != nil {
		return c.JSON(http.StatusOK, echo.Map{
			"message":    "Impossible d'envoyer l'email, utilisez ce lien",
			"reset_link": link,
			"error":      err.Error(),
			"status":     "email_error",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Email de réinitialisation envoyé",
		"status":  "success",
	})
}

// CheckResetToken verifies a reset token before the SPA shows the form.
func (h *AuthHandler) CheckResetToken(c echo.Context) error {
	token := strings.TrimSpace(c.QueryParam("token"))
	email := strings.ToLower(strings.TrimSpace(c.QueryParam("email")))
	if token == "" || email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Token et email sont obligatoires"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.verifyReset(ctx, email, token); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Token invalide ou expiré"})
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "message": "Token valide"})
}

// ResetPassword consumes a valid reset token and replaces the password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Requête invalide"})
	}
	req.Token = strings.TrimSpace(req.Token)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	errs := map[string][]string{}
	if req.Token == "" {
		errs["token"] = append(errs["token"], "Le token est obligatoire")
	}
	if req.Email == "" {
		errs["email"] = append(errs["email"], "L'email est obligatoire")
	}
	if len(req.Password) < 6 {
		errs["password"] = append(errs["password"], "Le mot de passe doit contenir au moins 6 caractères")
	}
	if req.Password != req.PasswordConfirmation {
		errs["password"] = append(errs["password"], "La confirmation ne correspond pas")
	}
	if len(errs) > 0 {
		return validationErrors(c, errs)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.verifyReset(ctx, req.Email, req.Token); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Token invalide ou expiré"})
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la réinitialisation"})
	}
	if err := h.Users.UpdatePasswordByEmail(ctx, req.Email, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Échec de la réinitialisation"})
	}
	_ = h.Resets.Delete(ctx, req.Email)

	// Force re-login everywhere with the new password.
	if u, err := h.Users.GetByEmail(ctx, req.Email); err == nil {
		_ = h.Tokens.RevokeAllForUser(ctx, u.ID)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Mot de passe réinitialisé avec succès"})
}

// verifyReset checks existence, bcrypt match and TTL of a reset token.
func (h *AuthHandler) verifyReset(ctx context.Context, email, token string) error {
	hash, createdAt, err := h.Resets.Get(ctx, email)
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(hash, token) {
		return repository.ErrResetNotFound
	}
	if time.Now().UTC().Sub(createdAt) > repository.ResetTTL {
		return repository.ErrResetNotFound
	}
	return nil
}

// issueTokens creates an access/refresh pair and stores the refresh hash.
func (h *AuthHandler) issueTokens(ctx context.Context, uid uint64, role model.Role) (utils.AccessToken, utils.RefreshToken, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, string(role), h.Cfg.AccessTTLMin)
	if err != nil {
		return utils.AccessToken{}, utils.RefreshToken{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return utils.AccessToken{}, utils.RefreshToken{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, uid, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return utils.AccessToken{}, utils.RefreshToken{}, err
	}
	return access, refresh, nil
}
