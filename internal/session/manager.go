package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"clinic-session-backend/internal/availability"
	"clinic-session-backend/internal/metrics"
	"clinic-session-backend/internal/model"
	"clinic-session-backend/internal/store"
)

// Manager executes the usage session state machine. It is the only component
// that writes UsageSession rows; every transition runs as one transaction.
type Manager struct {
	store     store.Store
	publisher Publisher
	freed     FreedNotifier
	clock     clockwork.Clock
}

// NewManager creates a session manager. publisher and freed may be nil, in
// which case the corresponding side effects are skipped.
func NewManager(s store.Store, publisher Publisher, freed FreedNotifier, clock clockwork.Clock) *Manager {
	return &Manager{
		store:     s,
		publisher: publisher,
		freed:     freed,
		clock:     clock,
	}
}

// Start executes a deciding outcome (without / auto_selected / explicit) as
// one atomic transaction: uniqueness re-checks, session insert, appointment
// and service status updates. The broadcast happens after commit and never
// fails the start.
func (m *Manager) Start(ctx context.Context, appointment *model.Appointment, outcome availability.Outcome, userID string) (*model.UsageSession, error) {
	return m.start(ctx, appointment, outcome, userID, appointment.EstimatedMinutes())
}

// AssignDevice binds a specific assignment to an appointment, estimating the
// session over only the services that require that equipment type. The
// assignment must be needed by at least one of the appointment's services.
func (m *Manager) AssignDevice(ctx context.Context, appointment *model.Appointment, assignment *model.EquipmentClinicAssignment, userID string) (*model.UsageSession, error) {
	estimated := 0
	required := false
	for _, appointmentService := range appointment.Services {
		for _, req := range appointmentService.Service.EquipmentRequirements {
			if req.EquipmentID == assignment.EquipmentID {
				required = true
				estimated += appointmentService.Service.EstimatedMinutes()
				break
			}
		}
	}
	if !required {
		return nil, ErrNoServiceRequiresEquipment
	}

	return m.start(ctx, appointment, availability.Explicit(assignment), userID, estimated)
}

func (m *Manager) start(ctx context.Context, appointment *model.Appointment, outcome availability.Outcome, userID string, estimatedMinutes int) (*model.UsageSession, error) {
	if !outcome.Mutates() {
		return nil, fmt.Errorf("outcome %q cannot start a session", outcome.Kind)
	}

	now := m.clock.Now().UTC()
	usage := &model.UsageSession{
		SystemID:         appointment.SystemID,
		AppointmentID:    appointment.ID,
		StartedAt:        now,
		EstimatedMinutes: estimatedMinutes,
		CurrentStatus:    model.UsageActive,
		PauseIntervals:   model.PauseIntervals{},
		StartedByUserID:  userID,
	}
	if outcome.Binds() {
		usage.EquipmentID = &outcome.Assignment.EquipmentID
		usage.EquipmentClinicAssignmentID = &outcome.Assignment.ID
		usage.DeviceID = outcome.Assignment.DeviceID
	}

	err := m.store.Transaction(ctx, func(tx store.Store) error {
		existing, err := tx.FindLiveSessionByAppointment(ctx, appointment.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyStarted
		}

		if outcome.Binds() {
			claimed, err := tx.FindLiveSessionByAssignment(ctx, outcome.Assignment.ID, appointment.ID)
			if err != nil {
				return err
			}
			if claimed != nil {
				return ErrEquipmentInUse
			}
		}

		if err := tx.CreateSession(ctx, usage); err != nil {
			return translateUniqueViolation(err)
		}
		if err := tx.MarkAppointmentStarted(ctx, appointment.ID, now, outcome.Assignment); err != nil {
			return err
		}
		return tx.MarkScheduledServicesStarted(ctx, appointment.ID, userID, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.StartOutcomes.WithLabelValues(string(outcome.Kind)).Inc()
	metrics.LiveSessions.Inc()

	event := newTimerEvent(usage, "started")
	if outcome.Binds() {
		event.EquipmentUsed = true
		details := &AssignmentDetails{
			EquipmentName: outcome.Assignment.Equipment.Name,
			DeviceName:    outcome.Assignment.Label(),
			ClinicName:    outcome.Assignment.Clinic.Name,
		}
		if outcome.Assignment.Cabin != nil {
			details.CabinName = outcome.Assignment.Cabin.Name
		}
		event.AssignmentDetails = details
	}
	m.publish(appointment.SystemID, event)

	return usage, nil
}

// Pause opens a pause interval on the appointment's ACTIVE session.
func (m *Manager) Pause(ctx context.Context, appointmentID, systemID string) (*model.UsageSession, error) {
	var usage *model.UsageSession
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		usage, err = m.liveSession(ctx, tx, appointmentID, systemID)
		if err != nil {
			return err
		}
		if usage.CurrentStatus != model.UsageActive {
			return ErrNotActive
		}

		usage.PauseIntervals = append(usage.PauseIntervals, model.PauseInterval{Start: m.clock.Now().UTC()})
		usage.CurrentStatus = model.UsagePaused
		return tx.SaveSession(ctx, usage)
	})
	if err != nil {
		return nil, err
	}

	m.publish(systemID, newTimerEvent(usage, "paused"))
	return usage, nil
}

// Resume closes the open pause interval and reactivates the session.
func (m *Manager) Resume(ctx context.Context, appointmentID, systemID string) (*model.UsageSession, error) {
	var usage *model.UsageSession
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		usage, err = m.liveSession(ctx, tx, appointmentID, systemID)
		if err != nil {
			return err
		}
		if usage.CurrentStatus != model.UsagePaused {
			return ErrNotPaused
		}

		if open := usage.OpenPause(); open != nil {
			end := m.clock.Now().UTC()
			open.End = &end
		}
		usage.CurrentStatus = model.UsageActive
		return tx.SaveSession(ctx, usage)
	})
	if err != nil {
		return nil, err
	}

	m.publish(systemID, newTimerEvent(usage, "resumed"))
	return usage, nil
}

// Stop completes the session from ACTIVE or PAUSED. ActualMinutes is the
// elapsed wall-clock time minus the sum of closed pause intervals. COMPLETED
// is terminal; a second stop fails with ErrNoLiveSession.
func (m *Manager) Stop(ctx context.Context, appointmentID, systemID, reason string) (*model.UsageSession, error) {
	if reason == "" {
		reason = "MANUAL"
	}

	var usage *model.UsageSession
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		usage, err = m.liveSession(ctx, tx, appointmentID, systemID)
		if err != nil {
			return err
		}

		now := m.clock.Now().UTC()
		if open := usage.OpenPause(); open != nil {
			open.End = &now
		}

		elapsed := now.Sub(usage.StartedAt) - usage.PausedDuration()
		if elapsed < 0 {
			elapsed = 0
		}
		usage.ActualMinutes = int(elapsed.Round(time.Minute) / time.Minute)
		usage.CurrentStatus = model.UsageCompleted
		usage.EndedAt = &now
		usage.EndedReason = reason
		return tx.SaveSession(ctx, usage)
	})
	if err != nil {
		return nil, err
	}

	metrics.LiveSessions.Dec()
	metrics.SessionMinutes.Observe(float64(usage.ActualMinutes))

	m.publish(systemID, newTimerEvent(usage, "stopped"))

	if usage.EquipmentClinicAssignmentID != nil && m.freed != nil {
		m.freed.Dispatch(*usage.EquipmentClinicAssignmentID)
	}

	return usage, nil
}

// Sync re-synchronizes the session's estimate after the appointment's
// aggregate service duration changed. Status and pause history are untouched.
func (m *Manager) Sync(ctx context.Context, appointmentID, systemID string, estimatedMinutes int) (*model.UsageSession, error) {
	var usage *model.UsageSession
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		usage, err = m.liveSession(ctx, tx, appointmentID, systemID)
		if err != nil {
			return err
		}

		usage.EstimatedMinutes = estimatedMinutes
		return tx.SaveSession(ctx, usage)
	})
	if err != nil {
		return nil, err
	}

	m.publish(systemID, newTimerEvent(usage, "synced"))
	return usage, nil
}

func (m *Manager) liveSession(ctx context.Context, tx store.Store, appointmentID, systemID string) (*model.UsageSession, error) {
	usage, err := tx.FindLiveSessionByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if usage == nil || usage.SystemID != systemID {
		return nil, ErrNoLiveSession
	}
	return usage, nil
}

func (m *Manager) publish(systemID string, event TimerEvent) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(systemID, event); err != nil {
		log.Printf("Error broadcasting %s event for appointment %s: %v", event.Action, event.AppointmentID, err)
	}
}

// translateUniqueViolation maps a violation of one of the partial unique
// indexes onto the specific taxonomy error. The pre-checks inside the
// transaction catch almost every conflict first; the index is the arbiter
// when two transactions pass the pre-check concurrently. Postgres names the
// index in its message, sqlite names the indexed column.
func translateUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "uniq_live_session_per_appointment"),
		strings.Contains(msg, "usage_sessions.appointment_id"):
		return ErrAlreadyStarted
	case strings.Contains(msg, "uniq_live_session_per_assignment"),
		strings.Contains(msg, "usage_sessions.equipment_clinic_assignment_id"):
		return ErrEquipmentInUse
	}
	return err
}
