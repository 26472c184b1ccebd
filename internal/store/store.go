package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"clinic-session-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Transaction runs fn against a transaction-scoped Store. Any error rolls
	// the whole transaction back.
	Transaction(ctx context.Context, fn func(Store) error) error

	// LoadAppointmentGraph loads an appointment with its services, each
	// service's equipment requirements, and every active clinic assignment of
	// the required equipment joined with its telemetry device. Returns
	// gorm.ErrRecordNotFound if the appointment does not exist or belongs to
	// another tenant system.
	LoadAppointmentGraph(ctx context.Context, appointmentID, systemID string) (*model.Appointment, error)

	// FindLiveSessionByAppointment returns the ACTIVE/PAUSED session for an
	// appointment, or nil when there is none.
	FindLiveSessionByAppointment(ctx context.Context, appointmentID string) (*model.UsageSession, error)

	// FindLiveSessionByAssignment returns the ACTIVE/PAUSED session claiming
	// an equipment assignment, excluding sessions of excludeAppointmentID.
	FindLiveSessionByAssignment(ctx context.Context, assignmentID, excludeAppointmentID string) (*model.UsageSession, error)

	// FindActiveAssignment looks up an active assignment by id within a clinic.
	FindActiveAssignment(ctx context.Context, assignmentID, clinicID string) (*model.EquipmentClinicAssignment, error)

	// FindActiveAssignmentByEquipment looks up the active assignment of an
	// equipment type within a clinic.
	FindActiveAssignmentByEquipment(ctx context.Context, equipmentID, clinicID string) (*model.EquipmentClinicAssignment, error)

	CreateSession(ctx context.Context, session *model.UsageSession) error
	SaveSession(ctx context.Context, session *model.UsageSession) error

	// MarkAppointmentStarted flips the appointment to IN_PROGRESS and records
	// the equipment linkage when a bound assignment is supplied.
	MarkAppointmentStarted(ctx context.Context, appointmentID string, now time.Time, assignment *model.EquipmentClinicAssignment) error

	// MarkScheduledServicesStarted moves all SCHEDULED services of the
	// appointment to IN_PROGRESS with the start stamp.
	MarkScheduledServicesStarted(ctx context.Context, appointmentID, userID string, now time.Time) error

	// ListEquipmentSummaries aggregates equipment definitions with their
	// assignment counts for a tenant system.
	ListEquipmentSummaries(ctx context.Context, systemID string) ([]EquipmentSummary, error)

	// ListClinicAssignments returns the active assignments of one clinic with
	// equipment and telemetry preloaded.
	ListClinicAssignments(ctx context.Context, clinicID, systemID string) ([]model.EquipmentClinicAssignment, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) LoadAppointmentGraph(ctx context.Context, appointmentID, systemID string) (*model.Appointment, error) {
	var appointment model.Appointment
	err := s.db.WithContext(ctx).
		Preload("Clinic").
		Preload("Services.Service.EquipmentRequirements.Equipment").
		Preload("Services.Service.EquipmentRequirements.Equipment.ClinicAssignments", "is_active = ?", true).
		Preload("Services.Service.EquipmentRequirements.Equipment.ClinicAssignments.Clinic").
		Preload("Services.Service.EquipmentRequirements.Equipment.ClinicAssignments.Cabin").
		Preload("Services.Service.EquipmentRequirements.Equipment.ClinicAssignments.SmartPlugDevice").
		Where("id = ? AND system_id = ?", appointmentID, systemID).
		First(&appointment).Error
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

func (s *gormStore) FindLiveSessionByAppointment(ctx context.Context, appointmentID string) (*model.UsageSession, error) {
	var session model.UsageSession
	err := s.db.WithContext(ctx).
		Where("appointment_id = ? AND current_status IN ?", appointmentID, model.LiveUsageStatuses).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query live session for appointment %s: %w", appointmentID, err)
	}
	return &session, nil
}

func (s *gormStore) FindLiveSessionByAssignment(ctx context.Context, assignmentID, excludeAppointmentID string) (*model.UsageSession, error) {
	query := s.db.WithContext(ctx).
		Where("equipment_clinic_assignment_id = ? AND current_status IN ?", assignmentID, model.LiveUsageStatuses)
	if excludeAppointmentID != "" {
		query = query.Where("appointment_id <> ?", excludeAppointmentID)
	}

	var session model.UsageSession
	err := query.First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query live session for assignment %s: %w", assignmentID, err)
	}
	return &session, nil
}

func (s *gormStore) FindActiveAssignment(ctx context.Context, assignmentID, clinicID string) (*model.EquipmentClinicAssignment, error) {
	var assignment model.EquipmentClinicAssignment
	err := s.db.WithContext(ctx).
		Preload("Equipment").
		Preload("Clinic").
		Preload("Cabin").
		Preload("SmartPlugDevice").
		Where("id = ? AND clinic_id = ? AND is_active = ?", assignmentID, clinicID, true).
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query assignment %s: %w", assignmentID, err)
	}
	return &assignment, nil
}

func (s *gormStore) FindActiveAssignmentByEquipment(ctx context.Context, equipmentID, clinicID string) (*model.EquipmentClinicAssignment, error) {
	var assignment model.EquipmentClinicAssignment
	err := s.db.WithContext(ctx).
		Preload("Equipment").
		Preload("Clinic").
		Preload("Cabin").
		Preload("SmartPlugDevice").
		Where("equipment_id = ? AND clinic_id = ? AND is_active = ?", equipmentID, clinicID, true).
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query assignment for equipment %s: %w", equipmentID, err)
	}
	return &assignment, nil
}

func (s *gormStore) CreateSession(ctx context.Context, session *model.UsageSession) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create usage session for appointment %s: %w", session.AppointmentID, err)
	}
	return nil
}

func (s *gormStore) SaveSession(ctx context.Context, session *model.UsageSession) error {
	if err := s.db.WithContext(ctx).Save(session).Error; err != nil {
		return fmt.Errorf("failed to save usage session %s: %w", session.ID, err)
	}
	return nil
}

func (s *gormStore) MarkAppointmentStarted(ctx context.Context, appointmentID string, now time.Time, assignment *model.EquipmentClinicAssignment) error {
	updates := map[string]any{
		"status": model.AppointmentInProgress,
	}
	if assignment != nil {
		updates["equipment_id"] = assignment.EquipmentID
		updates["equipment_clinic_assignment_id"] = assignment.ID
		updates["device_activation_at"] = now
	}

	err := s.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("id = ?", appointmentID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to mark appointment %s started: %w", appointmentID, err)
	}
	return nil
}

func (s *gormStore) MarkScheduledServicesStarted(ctx context.Context, appointmentID, userID string, now time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&model.AppointmentService{}).
		Where("appointment_id = ? AND status = ?", appointmentID, model.ServiceScheduled).
		Updates(map[string]any{
			"status":                     model.ServiceInProgress,
			"service_started_at":         now,
			"service_started_by_user_id": userID,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark services started for appointment %s: %w", appointmentID, err)
	}
	return nil
}

func (s *gormStore) ListEquipmentSummaries(ctx context.Context, systemID string) ([]EquipmentSummary, error) {
	var equipment []model.Equipment
	if err := s.db.WithContext(ctx).Where("system_id = ?", systemID).Find(&equipment).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve equipment: %w", err)
	}

	type aggRow struct {
		EquipmentID      string
		TotalAssignments int64
		ActiveCount      int64
	}
	var aggs []aggRow
	err := s.db.WithContext(ctx).
		Model(&model.EquipmentClinicAssignment{}).
		Select("equipment_id as equipment_id, COUNT(*) as total_assignments, SUM(CASE WHEN is_active THEN 1 ELSE 0 END) as active_count").
		Group("equipment_id").
		Scan(&aggs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate assignments: %w", err)
	}

	aggMap := make(map[string]aggRow, len(aggs))
	for _, a := range aggs {
		aggMap[a.EquipmentID] = a
	}

	summaries := make([]EquipmentSummary, 0, len(equipment))
	for _, e := range equipment {
		a := aggMap[e.ID]
		summaries = append(summaries, EquipmentSummary{
			ID:                e.ID,
			Name:              e.Name,
			IsActive:          e.IsActive,
			TotalAssignments:  a.TotalAssignments,
			ActiveAssignments: a.ActiveCount,
		})
	}
	return summaries, nil
}

func (s *gormStore) ListClinicAssignments(ctx context.Context, clinicID, systemID string) ([]model.EquipmentClinicAssignment, error) {
	var assignments []model.EquipmentClinicAssignment
	err := s.db.WithContext(ctx).
		Preload("Equipment").
		Preload("Cabin").
		Preload("SmartPlugDevice").
		Joins("JOIN equipment ON equipment.id = equipment_clinic_assignments.equipment_id AND equipment.system_id = ?", systemID).
		Where("equipment_clinic_assignments.clinic_id = ? AND equipment_clinic_assignments.is_active = ?", clinicID, true).
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve clinic assignments: %w", err)
	}
	return assignments, nil
}
