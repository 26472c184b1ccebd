package availability

import (
	"clinic-session-backend/internal/model"
)

// Status classifies one candidate assignment from its telemetry snapshot.
type Status string

const (
	// StatusNoSmartPlug means the assignment has no telemetry device bound.
	// Unverifiable, treated optimistically as available.
	StatusNoSmartPlug Status = "no_smart_plug"
	// StatusOffline means the bound device is not reporting.
	StatusOffline Status = "offline"
	// StatusOccupied means the relay is on, so the instance is in use.
	StatusOccupied Status = "occupied"
	// StatusAvailable means the device is online with the relay off.
	StatusAvailable Status = "available"
)

// PlugState is the telemetry snapshot carried on a classified candidate.
type PlugState struct {
	Online       bool    `json:"online"`
	RelayOn      bool    `json:"relayOn"`
	CurrentPower float64 `json:"currentPower"`
	Voltage      float64 `json:"voltage"`
	Temperature  float64 `json:"temperature"`
}

// Candidate is one classified physical equipment instance a session could
// claim, annotated with the service that requires it.
type Candidate struct {
	AssignmentID  string     `json:"id"`
	EquipmentID   string     `json:"equipmentId"`
	EquipmentName string     `json:"equipmentName"`
	DeviceName    string     `json:"deviceName"`
	SerialNumber  string     `json:"serialNumber"`
	DeviceID      *string    `json:"deviceId,omitempty"`
	ClinicID      string     `json:"clinicId"`
	ClinicName    string     `json:"clinicName"`
	CabinID       *string    `json:"cabinId,omitempty"`
	CabinName     string     `json:"cabinName,omitempty"`
	ServiceID     string     `json:"serviceId"`
	ServiceName   string     `json:"serviceName"`
	SmartPlug     *PlugState `json:"smartPlugDevice,omitempty"`
	Status        Status     `json:"status"`
	IsAvailable   bool       `json:"isAvailable"`

	// Assignment keeps the loaded row so a chosen candidate can be bound
	// without a second lookup.
	Assignment model.EquipmentClinicAssignment `json:"-"`
}

// Classify walks the resolved requirement graph of an appointment and
// produces the flat candidate list across all required equipment types.
// Only assignments of the appointment's clinic are considered. Telemetry is
// whatever snapshot was loaded with the graph; this never re-polls.
func Classify(appointment *model.Appointment) []Candidate {
	var candidates []Candidate

	for _, appointmentService := range appointment.Services {
		service := appointmentService.Service
		for _, req := range service.EquipmentRequirements {
			equipment := req.Equipment
			for _, assignment := range equipment.ClinicAssignments {
				if assignment.ClinicID != appointment.ClinicID || !assignment.IsActive {
					continue
				}
				// Classification is per-instance; restore the equipment ref
				// lost by the preload direction.
				assignment.Equipment = equipment

				candidate := ClassifyAssignment(assignment)
				candidate.ServiceID = service.ID
				candidate.ServiceName = service.Name
				candidate.ClinicName = appointment.Clinic.Name
				candidates = append(candidates, candidate)
			}
		}
	}

	return candidates
}

// ClassifyAssignment classifies a single assignment from its telemetry
// snapshot. Equipment must be preloaded on the assignment.
func ClassifyAssignment(assignment model.EquipmentClinicAssignment) Candidate {
	candidate := Candidate{
		AssignmentID:  assignment.ID,
		EquipmentID:   assignment.EquipmentID,
		EquipmentName: assignment.Equipment.Name,
		DeviceName:    assignment.Label(),
		SerialNumber:  assignment.SerialNumber,
		DeviceID:      assignment.DeviceID,
		ClinicID:      assignment.ClinicID,
		CabinID:       assignment.CabinID,
		Assignment:    assignment,
	}
	if assignment.Cabin != nil {
		candidate.CabinName = assignment.Cabin.Name
	}

	plug := assignment.SmartPlugDevice
	switch {
	case plug == nil:
		candidate.Status = StatusNoSmartPlug
		candidate.IsAvailable = true
	case !plug.Online:
		candidate.Status = StatusOffline
		candidate.IsAvailable = false
	case plug.RelayOn:
		candidate.Status = StatusOccupied
		candidate.IsAvailable = false
	default:
		candidate.Status = StatusAvailable
		candidate.IsAvailable = true
	}

	if plug != nil {
		candidate.SmartPlug = &PlugState{
			Online:       plug.Online,
			RelayOn:      plug.RelayOn,
			CurrentPower: plug.CurrentPower,
			Voltage:      plug.Voltage,
			Temperature:  plug.Temperature,
		}
	}

	return candidate
}
