package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Equipment is an abstract device definition (e.g. "Pressotherapy V2").
// Physical instances are represented by EquipmentClinicAssignment.
type Equipment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	SystemID  string    `gorm:"index;size:36;not null" json:"systemId"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	IsActive  bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`

	// Associations
	ClinicAssignments []EquipmentClinicAssignment `gorm:"foreignKey:EquipmentID" json:"clinicAssignments,omitempty"`
}

// EquipmentClinicAssignment binds one Equipment to one clinic (and optionally
// one cabin). It is the physical instance a usage session claims, optionally
// paired with exactly one telemetry-emitting smart plug.
type EquipmentClinicAssignment struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	EquipmentID  string    `gorm:"index;size:36;not null" json:"equipmentId"`
	ClinicID     string    `gorm:"index;size:36;not null" json:"clinicId"`
	CabinID      *string   `gorm:"size:36" json:"cabinId,omitempty"`
	DeviceID     *string   `gorm:"size:64" json:"deviceId,omitempty"` // external telemetry device id
	SerialNumber string    `gorm:"size:64;not null" json:"serialNumber"`
	DeviceName   string    `gorm:"size:256" json:"deviceName"`
	IsActive     bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null" json:"updatedAt"`

	// Associations
	Equipment       Equipment        `gorm:"foreignKey:EquipmentID" json:"equipment,omitempty"`
	Clinic          Clinic           `gorm:"foreignKey:ClinicID" json:"clinic,omitempty"`
	Cabin           *Cabin           `gorm:"foreignKey:CabinID" json:"cabin,omitempty"`
	SmartPlugDevice *SmartPlugDevice `gorm:"foreignKey:EquipmentClinicAssignmentID" json:"smartPlugDevice,omitempty"`
}

// Label returns the human-facing name of a physical instance. Falls back to
// the equipment name plus the serial tail when no display name is configured.
func (a *EquipmentClinicAssignment) Label() string {
	if a.DeviceName != "" {
		return a.DeviceName
	}
	serial := a.SerialNumber
	if len(serial) > 3 {
		serial = serial[len(serial)-3:]
	}
	return a.Equipment.Name + " #" + serial
}

func (e *Equipment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

func (a *EquipmentClinicAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
