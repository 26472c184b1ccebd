package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SmartPlugDevice mirrors the latest known telemetry snapshot of a physical
// relay-switchable device. Rows are written by an external ingestion pipeline;
// this service only ever reads them.
type SmartPlugDevice struct {
	ID                          string    `gorm:"primaryKey;size:36" json:"id"`
	SystemID                    string    `gorm:"index;size:36;not null" json:"systemId"`
	DeviceID                    string    `gorm:"uniqueIndex;size:64;not null" json:"deviceId"` // external id
	Name                        string    `gorm:"size:256;not null" json:"name"`
	Online                      bool      `gorm:"not null" json:"online"`
	RelayOn                     bool      `gorm:"not null" json:"relayOn"`
	CurrentPower                float64   `json:"currentPower"`
	Voltage                     float64   `json:"voltage"`
	Temperature                 float64   `json:"temperature"`
	EquipmentClinicAssignmentID *string   `gorm:"index;size:36" json:"equipmentClinicAssignmentId,omitempty"`
	LastSeenAt                  time.Time `json:"lastSeenAt"`
	UpdatedAt                   time.Time `gorm:"not null" json:"updatedAt"`
}

func (d *SmartPlugDevice) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
