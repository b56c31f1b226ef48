package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leadboost/leadboost/internal/model"
	"github.com/leadboost/leadboost/internal/store"
)

const defaultMessageStyle = "professional"

type createLeadsRequest struct {
	URLs         []string `json:"urls"`
	MessageStyle string   `json:"message_style"`
}

// handleCreateLeads accepts a batch of URLs, checks quota, persists the
// leads, and enqueues one pipeline job per lead.
func (s *Server) handleCreateLeads(w http.ResponseWriter, r *http.Request) {
	var req createLeadsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.URLs) == 0 {
		writeDetail(w, http.StatusBadRequest, "No URLs provided")
		return
	}
	if req.MessageStyle == "" {
		req.MessageStyle = defaultMessageStyle
	}

	user := currentUser(r)
	usage, err := s.gate.Usage(r.Context(), user.OrganizationID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to check plan usage")
		return
	}
	if !usage.CanProcessMoreToday {
		writeDetail(w, http.StatusTooManyRequests, "Daily lead limit exceeded for your subscription plan")
		return
	}
	if len(req.URLs) > usage.RemainingDailyLeads {
		writeDetail(w, http.StatusTooManyRequests, fmt.Sprintf(
			"Cannot create %d leads. Only %d leads remaining for today.",
			len(req.URLs), usage.RemainingDailyLeads,
		))
		return
	}

	leads := make([]*model.Lead, 0, len(req.URLs))
	for _, url := range req.URLs {
		leads = append(leads, model.NewLead(user.OrganizationID, user.ID, url))
	}
	if err := s.store.CreateLeads(r.Context(), leads); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to create leads")
		return
	}

	for _, lead := range leads {
		s.enqueueProcessing(r, lead, req.MessageStyle)
	}
	s.recordUsage(r, user.OrganizationID, len(leads))

	writeJSON(w, http.StatusOK, leads)
}

type createSingleLeadRequest struct {
	URL            string `json:"url"`
	OrganizationID string `json:"organization_id"`
	MessageStyle   string `json:"message_style"`
}

// handleCreateSingleLead creates one lead. The owner is always the
// caller; a mismatched organization is rejected rather than reassigned.
func (s *Server) handleCreateSingleLead(w http.ResponseWriter, r *http.Request) {
	var req createSingleLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		writeDetail(w, http.StatusBadRequest, "No URLs provided")
		return
	}

	user := currentUser(r)
	if req.OrganizationID != "" && req.OrganizationID != user.OrganizationID {
		writeDetail(w, http.StatusForbidden, "Not authorized to create leads for this organization")
		return
	}

	ok, err := s.gate.CanCreateLead(r.Context(), user.OrganizationID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to check plan usage")
		return
	}
	if !ok {
		writeDetail(w, http.StatusTooManyRequests, "Daily lead limit exceeded for your subscription plan")
		return
	}

	lead := model.NewLead(user.OrganizationID, user.ID, req.URL)
	if err := s.store.CreateLead(r.Context(), lead); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to create lead")
		return
	}

	style := req.MessageStyle
	if style == "" {
		style = defaultMessageStyle
	}
	s.enqueueProcessing(r, lead, style)
	s.recordUsage(r, user.OrganizationID, 1)

	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	leads, err := s.store.ListLeads(r.Context(), store.LeadFilter{
		OrganizationID: user.OrganizationID,
		Limit:          limit,
		Offset:         skip,
	})
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to list leads")
		return
	}
	writeJSON(w, http.StatusOK, leads)
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead := s.ownedLead(w, r)
	if lead == nil {
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

type updateLeadRequest struct {
	CompanyName  *string `json:"company_name"`
	ContactName  *string `json:"contact_name"`
	ContactTitle *string `json:"contact_title"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	Industry     *string `json:"industry"`
	AboutText    *string `json:"about_text"`
	LinkedInURL  *string `json:"linkedin_url"`
}

func (s *Server) handleUpdateLead(w http.ResponseWriter, r *http.Request) {
	lead := s.ownedLead(w, r)
	if lead == nil {
		return
	}

	var req updateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.CompanyName != nil {
		lead.CompanyName = *req.CompanyName
	}
	if req.ContactName != nil {
		lead.ContactName = *req.ContactName
	}
	if req.ContactTitle != nil {
		lead.ContactTitle = *req.ContactTitle
	}
	if req.Email != nil {
		lead.Email = *req.Email
	}
	if req.Phone != nil {
		lead.Phone = *req.Phone
	}
	if req.Industry != nil {
		lead.Industry = *req.Industry
	}
	if req.AboutText != nil {
		lead.AboutText = *req.AboutText
	}
	if req.LinkedInURL != nil {
		lead.LinkedInURL = *req.LinkedInURL
	}

	if err := s.store.UpdateLead(r.Context(), lead); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to update lead")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleDeleteLead(w http.ResponseWriter, r *http.Request) {
	lead := s.ownedLead(w, r)
	if lead == nil {
		return
	}

	if err := s.store.SoftDeleteLead(r.Context(), lead.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to delete lead")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Lead deleted successfully"})
}

type processLeadRequest struct {
	MessageStyle string `json:"message_style"`
}

// handleProcessLead re-enqueues an existing lead through the pipeline.
// Requires a plan with AI features.
func (s *Server) handleProcessLead(w http.ResponseWriter, r *http.Request) {
	lead := s.ownedLead(w, r)
	if lead == nil {
		return
	}

	user := currentUser(r)
	canUseAI, err := s.gate.CanUseAI(r.Context(), user.OrganizationID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to check plan features")
		return
	}
	if !canUseAI {
		writeDetail(w, http.StatusForbidden, "AI features are not available on your subscription plan")
		return
	}

	var req processLeadRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.MessageStyle == "" {
		req.MessageStyle = defaultMessageStyle
	}
	s.enqueueProcessing(r, lead, req.MessageStyle)

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Lead processing started",
		"lead_id": lead.ID,
	})
}

// ownedLead loads the path lead and enforces tenancy. Writes the error
// response and returns nil when the lead is missing or foreign.
func (s *Server) ownedLead(w http.ResponseWriter, r *http.Request) *model.Lead {
	lead, err := s.store.GetLead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to load lead")
		return nil
	}
	if lead == nil {
		writeDetail(w, http.StatusNotFound, "Lead not found")
		return nil
	}
	if lead.OrganizationID != currentUser(r).OrganizationID {
		writeDetail(w, http.StatusForbidden, "Not authorized to access this lead")
		return nil
	}
	return lead
}

// recordUsage appends a billing audit row for created leads. Best-effort:
// quota enforcement counts lead rows, not these records.
func (s *Server) recordUsage(r *http.Request, orgID string, quantity int) {
	rec := &model.UsageRecord{
		OrganizationID: orgID,
		Action:         "lead_created",
		Quantity:       quantity,
	}
	if err := s.store.AppendUsageRecord(r.Context(), rec); err != nil {
		zap.L().Warn("server: append usage record failed",
			zap.String("organization_id", orgID),
			zap.Error(err),
		)
	}
}

// enqueueProcessing queues a pipeline job for the lead. Enqueue failures
// are logged, not surfaced: the lead itself was already created.
func (s *Server) enqueueProcessing(r *http.Request, lead *model.Lead, style string) {
	job := &model.Job{
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		MessageStyle:   style,
	}
	if err := s.store.EnqueueJob(r.Context(), job); err != nil {
		zap.L().Error("server: enqueue job failed",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
	}
}
