package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppointmentStatus enumerates the lifecycle states of an appointment.
type AppointmentStatus string

const (
	AppointmentScheduled  AppointmentStatus = "SCHEDULED"
	AppointmentInProgress AppointmentStatus = "IN_PROGRESS"
	AppointmentCompleted  AppointmentStatus = "COMPLETED"
	AppointmentLocked     AppointmentStatus = "LOCKED"
	AppointmentNoShow     AppointmentStatus = "NO_SHOW"
	AppointmentCancelled  AppointmentStatus = "CANCELLED"
)

// AppointmentServiceStatus enumerates the per-service states.
type AppointmentServiceStatus string

const (
	ServiceScheduled  AppointmentServiceStatus = "SCHEDULED"
	ServiceInProgress AppointmentServiceStatus = "IN_PROGRESS"
	ServiceValidated  AppointmentServiceStatus = "VALIDATED"
	ServiceNoShow     AppointmentServiceStatus = "NO_SHOW"
)

// Appointment is a scheduled visit. The scheduling UI owns most fields; the
// session state machine mutates only Status and the equipment linkage.
type Appointment struct {
	ID                          string            `gorm:"primaryKey;size:36" json:"id"`
	SystemID                    string            `gorm:"index;size:36;not null" json:"systemId"`
	ClinicID                    string            `gorm:"index;size:36;not null" json:"clinicId"`
	Status                      AppointmentStatus `gorm:"size:32;not null;default:SCHEDULED" json:"status"`
	StartTime                   time.Time         `gorm:"not null" json:"startTime"`
	EndTime                     time.Time         `gorm:"not null" json:"endTime"`
	EstimatedDurationMinutes    int               `gorm:"not null" json:"estimatedDurationMinutes"`
	EquipmentID                 *string           `gorm:"size:36" json:"equipmentId,omitempty"`
	EquipmentClinicAssignmentID *string           `gorm:"size:36" json:"equipmentClinicAssignmentId,omitempty"`
	DeviceActivationAt          *time.Time        `json:"deviceActivationAt,omitempty"`
	CreatedAt                   time.Time         `gorm:"not null" json:"createdAt"`
	UpdatedAt                   time.Time         `gorm:"not null" json:"updatedAt"`

	// Associations
	Clinic   Clinic               `gorm:"foreignKey:ClinicID" json:"clinic,omitempty"`
	Services []AppointmentService `gorm:"foreignKey:AppointmentID" json:"services,omitempty"`
}

// AppointmentService links an appointment to one of its booked services.
type AppointmentService struct {
	ID                     string                   `gorm:"primaryKey;size:36" json:"id"`
	AppointmentID          string                   `gorm:"index;size:36;not null" json:"appointmentId"`
	ServiceID              string                   `gorm:"size:36;not null" json:"serviceId"`
	Status                 AppointmentServiceStatus `gorm:"size:32;not null;default:SCHEDULED" json:"status"`
	ServiceStartedAt       *time.Time               `json:"serviceStartedAt,omitempty"`
	ServiceStartedByUserID *string                  `gorm:"size:36" json:"serviceStartedByUserId,omitempty"`

	// Associations
	Service Service `gorm:"foreignKey:ServiceID" json:"service,omitempty"`
}

// EstimatedMinutes sums the per-service duration rule over all booked services.
func (a *Appointment) EstimatedMinutes() int {
	total := 0
	for _, svc := range a.Services {
		total += svc.Service.EstimatedMinutes()
	}
	return total
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func (s *AppointmentService) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
