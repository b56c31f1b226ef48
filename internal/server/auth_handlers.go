package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/leadboost/leadboost/internal/auth"
	"github.com/leadboost/leadboost/internal/model"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// handleRegister creates a user plus a personal organization on the
// default plan.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	existing, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	if existing != nil {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}

	ownerName := req.FirstName
	if ownerName == "" {
		ownerName = "User"
	}
	org := &model.Organization{
		Name:     ownerName + "'s Organization",
		PlanTier: s.catalog.Default().Name,
	}
	if err := s.store.CreateOrganization(r.Context(), org); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	user := &model.User{
		Email:          req.Email,
		HashedPassword: hashed,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		OrganizationID: org.ID,
		IsActive:       true,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	if _, err := s.gate.AssignPlan(r.Context(), org.ID, s.catalog.Default().Name); err != nil {
		zap.L().Warn("server: default plan assignment failed",
			zap.String("organization_id", org.ID),
			zap.Error(err),
		)
	}

	writeJSON(w, http.StatusOK, user)
}

// handleLogin authenticates form credentials and issues a token pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := r.PostFormValue("username")
	password := r.PostFormValue("password")

	user, err := s.store.GetUserByEmail(r.Context(), email)
	if err != nil || user == nil || !auth.VerifyPassword(password, user.HashedPassword) {
		unauthorized(w, "Incorrect email or password")
		return
	}
	if !user.IsActive {
		unauthorized(w, "Inactive user")
		return
	}

	accessToken, err := s.tokens.CreateAccessToken(user.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Login failed")
		return
	}
	refreshToken, err := s.tokens.CreateRefreshToken(user.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "bearer",
		"user_id":       user.ID,
		"email":         user.Email,
	})
}

// handleRefresh exchanges a valid refresh token for a new access token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	userID, err := s.tokens.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil || user == nil || !user.IsActive {
		writeDetail(w, http.StatusUnauthorized, "User not found or inactive")
		return
	}

	accessToken, err := s.tokens.CreateAccessToken(user.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Token refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": accessToken,
		"token_type":   "bearer",
	})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

type updateMeRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Password  *string `json:"password"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user := currentUser(r)
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Password != nil && *req.Password != "" {
		hashed, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "Update failed")
			return
		}
		user.HashedPassword = hashed
	}

	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
