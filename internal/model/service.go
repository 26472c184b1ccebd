package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is a bookable treatment. TreatmentDurationMinutes is the
// equipment-bound portion of the treatment; when > 0 it takes priority over
// DurationMinutes in session duration estimates.
type Service struct {
	ID                       string    `gorm:"primaryKey;size:36" json:"id"`
	SystemID                 string    `gorm:"index;size:36;not null" json:"systemId"`
	Name                     string    `gorm:"size:256;not null" json:"name"`
	DurationMinutes          int       `gorm:"not null" json:"durationMinutes"`
	TreatmentDurationMinutes int       `gorm:"not null;default:0" json:"treatmentDurationMinutes"`
	CreatedAt                time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt                time.Time `gorm:"not null" json:"updatedAt"`

	// Associations
	EquipmentRequirements []ServiceEquipmentRequirement `gorm:"foreignKey:ServiceID" json:"equipmentRequirements,omitempty"`
}

// ServiceEquipmentRequirement links a service to an equipment type it needs.
type ServiceEquipmentRequirement struct {
	ServiceID   string `gorm:"primaryKey;size:36" json:"serviceId"`
	EquipmentID string `gorm:"primaryKey;size:36" json:"equipmentId"`

	// Associations
	Equipment Equipment `gorm:"foreignKey:EquipmentID" json:"equipment,omitempty"`
}

// EstimatedMinutes returns the session duration this service contributes:
// the treatment duration when set, the booking duration otherwise.
func (s *Service) EstimatedMinutes() int {
	if s.TreatmentDurationMinutes > 0 {
		return s.TreatmentDurationMinutes
	}
	return s.DurationMinutes
}

func (s *Service) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
