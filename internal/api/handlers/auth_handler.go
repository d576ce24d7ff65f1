package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/careloop/postop-followup/backend/internal/api/middleware"
	"github.com/careloop/postop-followup/backend/internal/domain/repositories"
	"github.com/careloop/postop-followup/backend/pkg/config"
)

// AuthHandler issues JWTs for dashboard logins.
type AuthHandler struct {
	users repositories.UserRepository
	cfg   *config.AuthConfig
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(users repositories.UserRepository, cfg *config.AuthConfig) *AuthHandler {
	return &AuthHandler{users: users, cfg: cfg}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		// Do not reveal whether the username exists.
		respondWithError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondWithError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	ttl := time.Duration(h.cfg.TokenTTLHrs) * time.Hour
	token, err := middleware.GenerateToken(h.cfg.JWTSecret, ttl, user)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"role":       user.Role,
		"patient_id": user.PatientID,
		"doctor_id":  user.DoctorID,
	})
}
