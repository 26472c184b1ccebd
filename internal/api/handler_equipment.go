package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clinic-session-backend/internal/availability"
	"clinic-session-backend/internal/mw"
)

// GetEquipment handles GET /api/equipment: equipment definitions with
// aggregated assignment counts for the caller's tenant system.
func (h *Handler) GetEquipment(c *gin.Context) {
	summaries, err := h.store.ListEquipmentSummaries(c.Request.Context(), c.GetString(mw.CtxSystemID))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve equipment"})
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// GetClinicEquipment handles GET /api/clinics/{clinic_id}/equipment: the
// active assignments of one clinic classified against the latest telemetry
// snapshot.
func (h *Handler) GetClinicEquipment(c *gin.Context) {
	assignments, err := h.store.ListClinicAssignments(c.Request.Context(), c.Param("clinic_id"), c.GetString(mw.CtxSystemID))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve clinic equipment"})
		return
	}

	candidates := make([]availability.Candidate, 0, len(assignments))
	for _, assignment := range assignments {
		candidates = append(candidates, availability.ClassifyAssignment(assignment))
	}
	c.JSON(http.StatusOK, candidates)
}
