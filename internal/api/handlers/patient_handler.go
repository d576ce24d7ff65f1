package handlers

import (
	"net/http"

	"github.com/careloop/postop-followup/backend/internal/api/middleware"
	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	"github.com/careloop/postop-followup/backend/internal/domain/repositories"
)

// PatientHandler serves patient records and their conversation history.
type PatientHandler struct {
	patients      repositories.PatientRepository
	conversations repositories.ConversationRepository
}

// NewPatientHandler creates a new patient handler.
func NewPatientHandler(patients repositories.PatientRepository, conversations repositories.ConversationRepository) *PatientHandler {
	return &PatientHandler{patients: patients, conversations: conversations}
}

// ListPatients handles GET /api/patients
func (h *PatientHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.patients.List(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"patients": patients,
		"count":    len(patients),
	})
}

// GetPatient handles GET /api/patients/{id}
func (h *PatientHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	if patientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}

	patient, err := h.patients.GetByID(r.Context(), patientID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, patient)
}

// ListConversations handles GET /api/patients/{id}/conversations.
// Patients may only read their own thread; doctors and admins may read any.
func (h *PatientHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	if patientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}
	if !mayAccessPatient(r, patientID) {
		respondWithError(w, http.StatusForbidden, "access denied")
		return
	}

	conversations, err := h.conversations.ListByPatient(r.Context(), patientID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": conversations,
		"count":         len(conversations),
	})
}

// PainTrend handles GET /api/patients/{id}/pain-trend
func (h *PatientHandler) PainTrend(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	if patientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}
	if !mayAccessPatient(r, patientID) {
		respondWithError(w, http.StatusForbidden, "access denied")
		return
	}

	trend, err := h.conversations.PainTrend(r.Context(), patientID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"patient_id": patientID,
		"trend":      trend,
	})
}

// mayAccessPatient allows doctors and admins through, and patients only to
// their own record.
func mayAccessPatient(r *http.Request, patientID string) bool {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return false
	}
	switch claims.Role {
	case entities.RoleDoctor, entities.RoleAdmin:
		return true
	case entities.RolePatient:
		return claims.PatientID == patientID
	}
	return false
}
