package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leadboost/leadboost/internal/model"
)

type organizationRequest struct {
	Name string `json:"name"`
}

// handleCreateOrganization creates a new organization and moves the
// caller into it.
func (s *Server) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req organizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	existing, err := s.store.GetOrganizationByName(r.Context(), req.Name)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to create organization")
		return
	}
	if existing != nil {
		writeDetail(w, http.StatusBadRequest, "Organization with this name already exists")
		return
	}

	org := &model.Organization{
		Name:     req.Name,
		PlanTier: s.catalog.Default().Name,
	}
	if err := s.store.CreateOrganization(r.Context(), org); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to create organization")
		return
	}

	user := currentUser(r)
	user.OrganizationID = org.ID
	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to create organization")
		return
	}

	writeJSON(w, http.StatusOK, org)
}

func (s *Server) handleGetOwnOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := s.store.GetOrganization(r.Context(), currentUser(r).OrganizationID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to load organization")
		return
	}
	if org == nil {
		writeDetail(w, http.StatusNotFound, "Organization not found")
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	org := s.ownedOrganization(w, r)
	if org == nil {
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (s *Server) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	org := s.ownedOrganization(w, r)
	if org == nil {
		return
	}

	var req organizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name != "" {
		org.Name = req.Name
	}

	if err := s.store.UpdateOrganization(r.Context(), org); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to update organization")
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// ownedOrganization loads the path organization and enforces that the
// caller belongs to it. Writes the error response and returns nil on
// failure.
func (s *Server) ownedOrganization(w http.ResponseWriter, r *http.Request) *model.Organization {
	id := chi.URLParam(r, "id")
	if id != currentUser(r).OrganizationID {
		writeDetail(w, http.StatusForbidden, "Not authorized to access this organization")
		return nil
	}
	org, err := s.store.GetOrganization(r.Context(), id)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to load organization")
		return nil
	}
	if org == nil {
		writeDetail(w, http.StatusNotFound, "Organization not found")
		return nil
	}
	return org
}
