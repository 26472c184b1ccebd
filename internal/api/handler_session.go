package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-session-backend/internal/model"
	"clinic-session-backend/internal/mw"
	"clinic-session-backend/internal/session"
)

// PauseAppointment handles POST /api/appointments/{id}/pause.
func (h *Handler) PauseAppointment(c *gin.Context) {
	usage, err := h.sessions.Pause(c.Request.Context(), c.Param("id"), c.GetString(mw.CtxSystemID))
	if err != nil {
		h.abortSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(usage, "appointment paused"))
}

// ResumeAppointment handles POST /api/appointments/{id}/resume.
func (h *Handler) ResumeAppointment(c *gin.Context) {
	usage, err := h.sessions.Resume(c.Request.Context(), c.Param("id"), c.GetString(mw.CtxSystemID))
	if err != nil {
		h.abortSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(usage, "appointment resumed"))
}

type stopRequest struct {
	Reason string `json:"reason"`
}

// StopAppointment handles POST /api/appointments/{id}/stop. Stopping a
// session is terminal; a second stop is rejected because no live session
// remains.
func (h *Handler) StopAppointment(c *gin.Context) {
	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	usage, err := h.sessions.Stop(c.Request.Context(), c.Param("id"), c.GetString(mw.CtxSystemID), req.Reason)
	if err != nil {
		h.abortSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(usage, "appointment stopped"))
}

type durationRequest struct {
	EstimatedMinutes *int `json:"estimatedMinutes" binding:"required"`
}

// UpdateAppointmentDuration handles PUT /api/appointments/{id}/duration,
// re-synchronizing a live session's estimate after the appointment's
// aggregate service duration changed.
func (h *Handler) UpdateAppointmentDuration(c *gin.Context) {
	var req durationRequest
	if err := c.ShouldBindJSON(&req); err != nil || *req.EstimatedMinutes < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "estimatedMinutes is required and must be >= 0"})
		return
	}

	usage, err := h.sessions.Sync(c.Request.Context(), c.Param("id"), c.GetString(mw.CtxSystemID), *req.EstimatedMinutes)
	if err != nil {
		h.abortSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(usage, "session duration updated"))
}

type assignDeviceRequest struct {
	EquipmentAssignmentID string `json:"equipmentAssignmentId" binding:"required"`
}

// AssignDevice handles POST /api/appointments/{id}/assign-device: binds a
// specific physical instance to the appointment and starts the usage session
// over the services that require that equipment type.
func (h *Handler) AssignDevice(c *gin.Context) {
	userID := c.GetString(mw.CtxUserID)
	systemID := c.GetString(mw.CtxSystemID)

	var req assignDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "equipmentAssignmentId is required"})
		return
	}

	appointment, err := h.store.LoadAppointmentGraph(c.Request.Context(), c.Param("id"), systemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load appointment"})
		return
	}

	assignment, err := h.store.FindActiveAssignment(c.Request.Context(), req.EquipmentAssignmentID, appointment.ClinicID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load assignment"})
		return
	}
	if assignment == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "equipment assignment not found or not active"})
		return
	}

	usage, err := h.sessions.AssignDevice(c.Request.Context(), appointment, assignment, userID)
	switch {
	case errors.Is(err, session.ErrAlreadyStarted):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "this appointment already has an active device"})
		return
	case errors.Is(err, session.ErrEquipmentInUse):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "this device is already in use by another appointment"})
		return
	case err != nil:
		h.abortSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "device assigned",
		"data": gin.H{
			"sessionId":        usage.ID,
			"startedAt":        usage.StartedAt,
			"estimatedMinutes": usage.EstimatedMinutes,
			"equipment": startedEquipment{
				ID:           assignment.EquipmentID,
				Name:         assignment.Equipment.Name,
				AssignmentID: assignment.ID,
				DeviceName:   assignment.Label(),
			},
		},
	})
}

func sessionResponse(usage *model.UsageSession, message string) gin.H {
	return gin.H{
		"success": true,
		"message": message,
		"data": gin.H{
			"sessionId":        usage.ID,
			"currentStatus":    usage.CurrentStatus,
			"startedAt":        usage.StartedAt,
			"endedAt":          usage.EndedAt,
			"estimatedMinutes": usage.EstimatedMinutes,
			"actualMinutes":    usage.ActualMinutes,
			"pauseIntervals":   usage.PauseIntervals,
			"endedReason":      usage.EndedReason,
		},
	}
}
