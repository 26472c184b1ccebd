package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Clinic represents a single clinic location within a tenant system.
type Clinic struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	SystemID  string    `gorm:"index;size:36;not null" json:"systemId"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`

	// Associations
	Cabins []Cabin `gorm:"foreignKey:ClinicID" json:"cabins,omitempty"`
}

// Cabin represents a treatment room inside a clinic.
type Cabin struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	ClinicID string `gorm:"index;size:36;not null" json:"clinicId"`
	Name     string `gorm:"size:128;not null" json:"name"`
}

func (c *Clinic) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (c *Cabin) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
