package service

import "errors"

// Domain errors surfaced to callers. Every rejected operation maps to a
// specific reason; handlers translate these into HTTP statuses.
var (
	// Not-found.
	ErrEventNotFound        = errors.New("event not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrAttendanceNotFound   = errors.New("attendance record not found")

	// State-conflict.
	ErrAlreadyRegistered = errors.New("you have already registered for this event")
	// ErrPreviouslyCancelled is distinct from ErrAlreadyRegistered:
	// self-service re-registration after cancellation is not allowed,
	// an administrator has to re-register the user.
	ErrPreviouslyCancelled = errors.New("registration was cancelled; contact an administrator to re-register")
	ErrAlreadyCancelled    = errors.New("registration already cancelled")
	ErrNotRegistered       = errors.New("user is not registered for this event")
	ErrDuplicateAttendance = errors.New("attendance already recorded for this user")

	// Policy-violation.
	ErrEventUnavailable   = errors.New("event is not available")
	ErrRegistrationClosed = errors.New("registration is closed")
	ErrAttendanceDisabled = errors.New("attendance is not enabled for this event")

	// Authorization.
	ErrNotAuthorized = errors.New("not authorized to perform this action")
)
