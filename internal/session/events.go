package session

import (
	"time"

	"clinic-session-backend/internal/model"
)

// TimerData is the session snapshot carried on a broadcast event.
type TimerData struct {
	ID                          string               `json:"id"`
	AppointmentID               string               `json:"appointmentId"`
	StartedAt                   time.Time            `json:"startedAt"`
	EndedAt                     *time.Time           `json:"endedAt"`
	EstimatedMinutes            int                  `json:"estimatedMinutes"`
	ActualMinutes               int                  `json:"actualMinutes"`
	CurrentStatus               model.UsageStatus    `json:"currentStatus"`
	PauseIntervals              model.PauseIntervals `json:"pauseIntervals"`
	EquipmentID                 *string              `json:"equipmentId"`
	EquipmentClinicAssignmentID *string              `json:"equipmentClinicAssignmentId"`
	DeviceID                    *string              `json:"deviceId"`
}

// AssignmentDetails names the physical instance bound to a session.
type AssignmentDetails struct {
	EquipmentName string `json:"equipmentName"`
	DeviceName    string `json:"deviceName"`
	ClinicName    string `json:"clinicName"`
	CabinName     string `json:"cabinName,omitempty"`
}

// TimerEvent is broadcast on the tenant channel after a session transition
// commits.
type TimerEvent struct {
	Type              string             `json:"type"` // always "appointment-timer-update"
	AppointmentID     string             `json:"appointmentId"`
	Action            string             `json:"action"` // started | paused | resumed | stopped | synced
	TimerData         TimerData          `json:"timerData"`
	EquipmentUsed     bool               `json:"equipmentUsed,omitempty"`
	AssignmentDetails *AssignmentDetails `json:"assignmentDetails,omitempty"`
}

// Publisher delivers a timer event to the tenant's real-time subscribers.
// Delivery is best-effort and strictly downstream of the transaction: a
// publish failure is logged by the caller, never propagated.
type Publisher interface {
	Publish(systemID string, event TimerEvent) error
}

// FreedNotifier is told when a COMPLETED session releases an equipment
// assignment, so interested staff can be pushed.
type FreedNotifier interface {
	Dispatch(assignmentID string)
}

func newTimerEvent(usage *model.UsageSession, action string) TimerEvent {
	return TimerEvent{
		Type:          "appointment-timer-update",
		AppointmentID: usage.AppointmentID,
		Action:        action,
		TimerData: TimerData{
			ID:                          usage.ID,
			AppointmentID:               usage.AppointmentID,
			StartedAt:                   usage.StartedAt,
			EndedAt:                     usage.EndedAt,
			EstimatedMinutes:            usage.EstimatedMinutes,
			ActualMinutes:               usage.ActualMinutes,
			CurrentStatus:               usage.CurrentStatus,
			PauseIntervals:              usage.PauseIntervals,
			EquipmentID:                 usage.EquipmentID,
			EquipmentClinicAssignmentID: usage.EquipmentClinicAssignmentID,
			DeviceID:                    usage.DeviceID,
		},
	}
}
