// Package handlers implements the HTTP endpoints listed in spec §6, each
// grounded on the teacher's pkg/api/handlers request-decode/respond style
// (see pkg/api/handlers/users.go, auth.go) generalized to PhotoSync's
// domain.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/photosync/backend/internal/credentials"
	"github.com/photosync/backend/internal/httpjson"
)

// AuthHandler implements /api/register and /api/login.
type AuthHandler struct {
	creds  *credentials.Store
	tokens *credentials.TokenService
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(creds *credentials.Store, tokens *credentials.TokenService) *AuthHandler {
	return &AuthHandler{creds: creds, tokens: tokens}
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceUUID string `json:"device_uuid"`
	DeviceName string `json:"device_name"`
	PlanGB     int    `json:"plan_gb"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceUUID string `json:"device_uuid"`
	DeviceName string `json:"device_name"`
}

type sessionResponse struct {
	Token  string `json:"token"`
	UserID uint   `json:"userId"`
}

// Register creates a user (and, when plan_gb is non-zero, starts a trial),
// binds the submitted device, and returns a session token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid request body", "", nil)
		return
	}
	if req.Email == "" || req.Password == "" || req.DeviceUUID == "" {
		httpjson.Error(w, http.StatusBadRequest, "email, password, and device_uuid are required", "", nil)
		return
	}

	if err := credentials.ValidatePassword(req.Password); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error(), "", nil)
		return
	}

	user, err := h.creds.Register(req.Email, req.Password, req.PlanGB)
	if err != nil {
		if errors.Is(err, credentials.ErrEmailExists) {
			httpjson.Error(w, http.StatusConflict, "Email already registered", "", nil)
			return
		}
		httpjson.Error(w, http.StatusInternalServerError, "Failed to register user", "", nil)
		return
	}

	if _, err := h.creds.EnsureDevice(user.ID, req.DeviceUUID, req.DeviceName); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to bind device", "", nil)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.UserUUID, user.Email, req.DeviceUUID)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to issue session token", "", nil)
		return
	}

	httpjson.JSON(w, http.StatusOK, sessionResponse{Token: token, UserID: user.ID})
}

// Login verifies credentials, binds the device if new, and returns a
// session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid request body", "", nil)
		return
	}
	if req.Email == "" || req.Password == "" || req.DeviceUUID == "" {
		httpjson.Error(w, http.StatusBadRequest, "email, password, and device_uuid are required", "", nil)
		return
	}

	user, _, err := h.creds.Login(req.Email, req.Password, req.DeviceUUID, req.DeviceName)
	if err != nil {
		if errors.Is(err, credentials.ErrInvalidCredentials) {
			httpjson.Error(w, http.StatusUnauthorized, "Invalid email or password", "", nil)
			return
		}
		httpjson.Error(w, http.StatusInternalServerError, "Failed to log in", "", nil)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.UserUUID, user.Email, req.DeviceUUID)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to issue session token", "", nil)
		return
	}

	httpjson.JSON(w, http.StatusOK, sessionResponse{Token: token, UserID: user.ID})
}
