package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Staff subscribe to equipment assignments and get pushed when one frees up.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	SystemID  string    `gorm:"index;size:36;not null"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Assignments []*EquipmentClinicAssignment `gorm:"many2many:subscription_assignment_mapping;"`
}
