package session

import "errors"

// Error taxonomy of the session state machine. Handlers map these onto HTTP
// statuses; everything else is treated as an internal failure and rolled back.
var (
	// ErrNotFound: the appointment does not exist or belongs to another tenant.
	ErrNotFound = errors.New("appointment not found")

	// ErrAlreadyStarted: a live session already exists for this appointment.
	ErrAlreadyStarted = errors.New("appointment already started")

	// ErrEquipmentInUse: the target assignment is claimed by another live session.
	ErrEquipmentInUse = errors.New("equipment already in use by another appointment")

	// ErrEquipmentUnavailable: an explicit equipment reference is invalid,
	// inactive, or belongs to another clinic.
	ErrEquipmentUnavailable = errors.New("equipment not available in this clinic")

	// ErrNoLiveSession: pause/resume/stop/sync was requested but the
	// appointment has no ACTIVE or PAUSED session.
	ErrNoLiveSession = errors.New("appointment has no live session")

	// ErrNotActive: pause requires an ACTIVE session.
	ErrNotActive = errors.New("session is not active")

	// ErrNotPaused: resume requires a PAUSED session.
	ErrNotPaused = errors.New("session is not paused")

	// ErrNoServiceRequiresEquipment: device assignment was requested but no
	// service of the appointment requires that equipment type.
	ErrNoServiceRequiresEquipment = errors.New("no service of this appointment requires this equipment")
)
