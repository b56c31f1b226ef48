package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/leadboost/leadboost/internal/model"
)

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.gate.Usage(r.Context(), currentUser(r).OrganizationID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to load usage")
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	planName := r.URL.Query().Get("plan_name")

	ok, err := s.gate.AssignPlan(r.Context(), currentUser(r).OrganizationID, model.PlanName(planName))
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to upgrade subscription")
		return
	}
	if !ok {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Invalid plan name: %s", planName))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Subscription upgraded to %s successfully", planName),
	})
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.All())
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	immediate, _ := strconv.ParseBool(r.URL.Query().Get("immediate"))

	ok, err := s.gate.CancelSubscription(r.Context(), currentUser(r).OrganizationID, immediate)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to cancel subscription")
		return
	}
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Failed to cancel subscription")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Subscription cancelled successfully",
	})
}
