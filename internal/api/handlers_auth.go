package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/paydesk/paydesk/internal/auth"
	"github.com/paydesk/paydesk/internal/session"
	"github.com/paydesk/paydesk/internal/store"
	"github.com/paydesk/paydesk/pkg/webcore"
)

func principalOf(u store.User) session.Principal {
	return session.Principal{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// startSession issues a token for p and sets the session cookie.
func (h *Handler) startSession(w http.ResponseWriter, p session.Principal) error {
	token, _, err := h.codec.Encode(p)
	if err != nil {
		return err
	}
	auth.SetSessionCookie(w, token, h.secure)
	return nil
}

// SignIn handles POST /api/auth/signin.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(w, r, &req); err != nil {
		webcore.Error(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if req.Email == "" || req.Password == "" {
		webcore.Error(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.db.UserByEmail(r.Context(), auth.NormalizeEmail(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		webcore.Error(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		h.logger.Error("Login error", "err", err)
		webcore.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		webcore.Error(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !user.IsActive {
		webcore.Error(w, http.StatusUnauthorized, "Account is deactivated")
		return
	}

	if err := h.db.TouchLastLogin(r.Context(), user.ID); err != nil {
		h.logger.Warn("last login not recorded", "user_id", user.ID, "err", err)
	}

	p := principalOf(user)
	if err := h.startSession(w, p); err != nil {
		h.logger.Error("Login error", "err", err)
		webcore.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	webcore.JSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    p,
	})
}

// SignUp handles POST /api/auth/signup.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if err := decode(w, r, &req); err != nil {
		webcore.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if errs := req.Validate(); errs != nil {
		webcore.ValidationError(w, "Validation failed", errs)
		return
	}

	email := auth.NormalizeEmail(req.Email)
	_, err := h.db.UserByEmail(r.Context(), email)
	if err == nil {
		webcore.Error(w, http.StatusConflict, "User with this email already exists")
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		h.logger.Error("Signup error", "err", err)
		webcore.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("Signup error", "err", err)
		webcore.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	user, err := h.db.CreateUser(r.Context(), store.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         req.Role,
		IsActive:     true,
	})
	if errors.Is(err, store.ErrConflict) {
		webcore.Error(w, http.StatusConflict, "User with this email already exists")
		return
	}
	if err != nil {
		h.logger.Error("Failed to create user", "err", err)
		webcore.Error(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	p := principalOf(user)
	if err := h.startSession(w, p); err != nil {
		h.logger.Error("Signup error", "err", err)
		webcore.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	webcore.JSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    p,
	})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secure)
	webcore.JSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Session handles GET /api/auth/session. In demo mode a request without
// a usable session is answered with the demo principal.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	p, err := h.gate.Authenticate(r)
	if err != nil {
		if h.gate.Mode() != auth.ModeDemo {
			webcore.Error(w, http.StatusUnauthorized, auth.Message(err, "No authentication token"))
			return
		}
		p = auth.DemoPrincipal
	}
	webcore.JSON(w, http.StatusOK, map[string]any{"user": p})
}
