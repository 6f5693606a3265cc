package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hfurst/taskpay/internal/apperr"
	"github.com/hfurst/taskpay/internal/auth"
	"github.com/hfurst/taskpay/internal/middleware"
	"github.com/hfurst/taskpay/internal/model"
	"github.com/hfurst/taskpay/internal/store"
	"github.com/hfurst/taskpay/internal/upload"
)

const tokenMaxAge = 24 * 60 * 60 // seconds, matches the token TTL

type AuthHandler struct {
	users         *store.UserStore
	uploads       *upload.Store
	jwtSecret     string
	adminJoinCode string
	logger        *slog.Logger
}

func NewAuthHandler(us *store.UserStore, up *upload.Store, jwtSecret, adminJoinCode string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:         us,
		uploads:       up,
		jwtSecret:     jwtSecret,
		adminJoinCode: adminJoinCode,
		logger:        logger,
	}
}

type signupRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	AdminJoinCode string `json:"admin_join_code"`
}

// Signup registers a new account. Accepts JSON or multipart form data; the
// multipart variant may carry a profile image under the "image" field.
// Presenting the correct admin join code registers the account as an admin.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	var imageURL string

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(upload.MaxFileSize); err != nil {
			writeError(w, h.logger, apperr.Validation("invalid form data"))
			return
		}
		req.Name = r.FormValue("name")
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
		req.AdminJoinCode = r.FormValue("admin_join_code")

		if file, header, err := r.FormFile("image"); err == nil {
			defer file.Close()
			url, err := h.uploads.Save(upload.KindImage, header.Filename, file)
			if err != nil {
				writeError(w, h.logger, err)
				return
			}
			imageURL = url
		}
	} else {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, h.logger, apperr.Validation("name, email and password are required"))
		return
	}
	if len(req.Password) < 8 {
		writeError(w, h.logger, apperr.Validation("password must be at least 8 characters"))
		return
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if existing != nil {
		writeError(w, h.logger, apperr.Conflict("email already registered"))
		return
	}

	role := model.RoleUser
	if req.AdminJoinCode != "" && h.adminJoinCode != "" && req.AdminJoinCode == h.adminJoinCode {
		role = model.RoleAdmin
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.Create(req.Name, req.Email, string(hash), role, imageURL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.issueToken(w, r, user)
	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	// Same response for unknown email and wrong password.
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}

	h.issueToken(w, r, user)
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Profile returns the authenticated user's own record.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentity(r.Context())
	user, err := h.users.GetByID(id.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if user == nil {
		writeError(w, h.logger, apperr.NotFound("user not found"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfile changes the caller's name, email, or password. Empty fields
// are left unchanged.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentity(r.Context())

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var hash string
	if req.Password != "" {
		if len(req.Password) < 8 {
			writeError(w, h.logger, apperr.Validation("password must be at least 8 characters"))
			return
		}
		b, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		hash = string(b)
	}

	user, err := h.users.UpdateProfile(id.UserID, strings.TrimSpace(req.Name),
		strings.ToLower(strings.TrimSpace(req.Email)), hash, "")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UploadImage stores a new profile image and points the caller's record at it.
func (h *AuthHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentity(r.Context())

	if err := r.ParseMultipartForm(upload.MaxFileSize); err != nil {
		writeError(w, h.logger, apperr.Validation("invalid form data"))
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, h.logger, apperr.Validation("image file is required"))
		return
	}
	defer file.Close()

	url, err := h.uploads.Save(upload.KindImage, header.Filename, file)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.UpdateProfile(id.UserID, "", "", "", url)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) issueToken(w http.ResponseWriter, r *http.Request, user *model.User) {
	token, err := auth.SignToken([]byte(h.jwtSecret), user.ID, user.Role, 0)
	if err != nil {
		h.logger.Error("sign token", "error", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   tokenMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}
