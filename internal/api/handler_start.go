package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-session-backend/internal/availability"
	"clinic-session-backend/internal/model"
	"clinic-session-backend/internal/mw"
	"clinic-session-backend/internal/session"
)

type startRequest struct {
	EquipmentID           string `json:"equipmentId"`
	EquipmentAssignmentID string `json:"equipmentAssignmentId"`
	WithoutEquipment      bool   `json:"withoutEquipment"`
}

type startedEquipment struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AssignmentID string `json:"assignmentId"`
	DeviceName   string `json:"deviceName"`
	DeviceID     string `json:"deviceId,omitempty"`
}

// StartAppointment handles POST /api/appointments/{id}/start. It resolves the
// appointment's equipment requirements, classifies the candidates against the
// latest telemetry snapshot, and either starts the usage session or returns
// the classified list for the caller to pick from.
func (h *Handler) StartAppointment(c *gin.Context) {
	appointmentID := c.Param("id")
	userID := c.GetString(mw.CtxUserID)
	systemID := c.GetString(mw.CtxSystemID)

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	appointment, err := h.store.LoadAppointmentGraph(c.Request.Context(), appointmentID, systemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load appointment"})
		return
	}

	outcome, err := h.resolveOutcome(c, appointment, req)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch outcome.Kind {
	case availability.OutcomeRequiresSelection:
		c.JSON(http.StatusOK, gin.H{
			"requiresEquipmentSelection": true,
			"availableEquipment":         outcome.Candidates,
			"message":                    "select the equipment for this appointment",
		})
		return

	case availability.OutcomeAllOccupied:
		c.JSON(http.StatusConflict, gin.H{
			"error":              "all required equipment is currently occupied",
			"availableEquipment": outcome.Candidates,
		})
		return
	}

	usage, err := h.sessions.Start(c.Request.Context(), appointment, outcome, userID)
	if err != nil {
		h.abortSessionError(c, err)
		return
	}

	data := gin.H{
		"sessionId":         usage.ID,
		"startedAt":         usage.StartedAt,
		"estimatedMinutes":  usage.EstimatedMinutes,
		"requiresEquipment": outcome.Binds(),
	}
	if outcome.Binds() {
		equipment := startedEquipment{
			ID:           outcome.Assignment.EquipmentID,
			Name:         outcome.Assignment.Equipment.Name,
			AssignmentID: outcome.Assignment.ID,
			DeviceName:   outcome.Assignment.Label(),
		}
		if outcome.Assignment.DeviceID != nil {
			equipment.DeviceID = *outcome.Assignment.DeviceID
		}
		data["equipment"] = equipment
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": startMessage(outcome.Kind),
		"data":    data,
	})
}

// resolveOutcome turns the request into a decision outcome: an explicit
// caller override when the body names equipment, otherwise the analyzer plus
// decision engine over the resolved requirements.
func (h *Handler) resolveOutcome(c *gin.Context, appointment *model.Appointment, req startRequest) (availability.Outcome, error) {
	ctx := c.Request.Context()

	switch {
	case req.WithoutEquipment:
		// Explicit override takes precedence over analysis even when
		// candidates are available.
		return availability.Without(), nil

	case req.EquipmentAssignmentID != "":
		assignment, err := h.store.FindActiveAssignment(ctx, req.EquipmentAssignmentID, appointment.ClinicID)
		if err != nil {
			return availability.Outcome{}, err
		}
		if assignment == nil {
			return availability.Outcome{}, session.ErrEquipmentUnavailable
		}
		return availability.Explicit(assignment), nil

	case req.EquipmentID != "":
		assignment, err := h.store.FindActiveAssignmentByEquipment(ctx, req.EquipmentID, appointment.ClinicID)
		if err != nil {
			return availability.Outcome{}, err
		}
		if assignment == nil {
			return availability.Outcome{}, session.ErrEquipmentUnavailable
		}
		return availability.Explicit(assignment), nil
	}

	return availability.Decide(availability.Classify(appointment)), nil
}

// GetAppointmentAvailability handles GET /api/appointments/{id}/equipment-availability:
// the analyzer output without any state mutation.
func (h *Handler) GetAppointmentAvailability(c *gin.Context) {
	systemID := c.GetString(mw.CtxSystemID)

	appointment, err := h.store.LoadAppointmentGraph(c.Request.Context(), c.Param("id"), systemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load appointment"})
		return
	}

	candidates := availability.Classify(appointment)
	available := 0
	for _, candidate := range candidates {
		if candidate.IsAvailable {
			available++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"equipment":      candidates,
		"totalCount":     len(candidates),
		"availableCount": available,
	})
}

func startMessage(kind availability.OutcomeKind) string {
	switch kind {
	case availability.OutcomeWithout:
		return "appointment started without equipment"
	case availability.OutcomeAutoSelected:
		return "appointment started with auto-selected equipment"
	default:
		return "appointment started with selected equipment"
	}
}

// abortSessionError maps the session error taxonomy onto HTTP statuses.
func (h *Handler) abortSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrAlreadyStarted),
		errors.Is(err, session.ErrEquipmentInUse),
		errors.Is(err, session.ErrEquipmentUnavailable),
		errors.Is(err, session.ErrNoLiveSession),
		errors.Is(err, session.ErrNotActive),
		errors.Is(err, session.ErrNotPaused),
		errors.Is(err, session.ErrNoServiceRequiresEquipment):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
