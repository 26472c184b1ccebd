package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageStatus enumerates the states of a usage session.
type UsageStatus string

const (
	UsageActive    UsageStatus = "ACTIVE"
	UsagePaused    UsageStatus = "PAUSED"
	UsageCompleted UsageStatus = "COMPLETED"
)

// LiveUsageStatuses are the states that claim an appointment and (when bound)
// a physical equipment instance.
var LiveUsageStatuses = []UsageStatus{UsageActive, UsagePaused}

// PauseInterval is one pause window inside a session. End is nil while the
// session is still paused.
type PauseInterval struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end"`
}

// PauseIntervals is the ordered pause history of a session, stored as JSON.
type PauseIntervals []PauseInterval

// UsageSession is a bounded period during which an appointment runs against a
// specific (or no) physical equipment instance. Rows are never deleted;
// COMPLETED sessions are consumed by the energy analytics subsystem.
type UsageSession struct {
	ID                          string         `gorm:"primaryKey;size:36" json:"id"`
	SystemID                    string         `gorm:"index;size:36;not null" json:"systemId"`
	AppointmentID               string         `gorm:"index;size:36;not null" json:"appointmentId"`
	EquipmentID                 *string        `gorm:"size:36" json:"equipmentId,omitempty"`
	EquipmentClinicAssignmentID *string        `gorm:"index;size:36" json:"equipmentClinicAssignmentId,omitempty"`
	DeviceID                    *string        `gorm:"size:64" json:"deviceId,omitempty"`
	StartedAt                   time.Time      `gorm:"not null" json:"startedAt"`
	EndedAt                     *time.Time     `json:"endedAt,omitempty"`
	EstimatedMinutes            int            `gorm:"not null" json:"estimatedMinutes"`
	ActualMinutes               int            `gorm:"not null;default:0" json:"actualMinutes"`
	CurrentStatus               UsageStatus    `gorm:"size:16;not null" json:"currentStatus"`
	PauseIntervals              PauseIntervals `gorm:"serializer:json" json:"pauseIntervals"`
	EndedReason                 string         `gorm:"size:64" json:"endedReason,omitempty"`
	StartedByUserID             string         `gorm:"size:36;not null" json:"startedByUserId"`
	CreatedAt                   time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt                   time.Time      `gorm:"not null" json:"updatedAt"`
}

// OpenPause returns the currently open pause interval, or nil if the session
// is not paused.
func (s *UsageSession) OpenPause() *PauseInterval {
	if len(s.PauseIntervals) == 0 {
		return nil
	}
	last := &s.PauseIntervals[len(s.PauseIntervals)-1]
	if last.End == nil {
		return last
	}
	return nil
}

// PausedDuration sums all closed pause intervals.
func (s *UsageSession) PausedDuration() time.Duration {
	var total time.Duration
	for _, p := range s.PauseIntervals {
		if p.End != nil {
			total += p.End.Sub(p.Start)
		}
	}
	return total
}

func (s *UsageSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
