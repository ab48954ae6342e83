// Package model defines the core domain types for event registration,
// waitlisting, and attendance tracking.
package model

import (
	"encoding/json"
	"time"
)

// Role is the actor role carried by the Account Directory.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// IsAdmin reports whether the role grants administrative access.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

// RegistrationStatus is the lifecycle state of a registration.
// Cancelled is terminal; there is no transition out of it.
type RegistrationStatus string

const (
	StatusConfirmed  RegistrationStatus = "confirmed"
	StatusWaitlisted RegistrationStatus = "waitlisted"
	StatusCancelled  RegistrationStatus = "cancelled"
)

// Event is the read-only view of an event owned by the Event Catalog.
type Event struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Enabled           bool      `json:"enabled"`
	RegistrationOpen  bool      `json:"registration_open"`
	RegistrationLimit *int      `json:"registration_limit,omitempty"`
	AttendanceEnabled bool      `json:"attendance_enabled"`
	CreatedAt         time.Time `json:"created_at"`
}

// Unlimited reports whether the event has no registration limit.
// Unlimited events never waitlist anyone.
func (e *Event) Unlimited() bool {
	return e.RegistrationLimit == nil
}

// IsFull reports whether the given confirmed count exhausts the limit.
func (e *Event) IsFull(confirmed int) bool {
	return e.RegistrationLimit != nil && confirmed >= *e.RegistrationLimit
}

// Session is a single scheduled occurrence of an event.
type Session struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Name      string    `json:"session_name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Registration is one user's registration for one event.
// QueuePosition is set if and only if Status is waitlisted; among the
// waitlisted registrations of an event, positions are always 1..K dense.
type Registration struct {
	ID               string             `json:"id"`
	EventID          string             `json:"event_id"`
	UserID           string             `json:"user_id"`
	Status           RegistrationStatus `json:"status"`
	QueuePosition    *int               `json:"queue_position,omitempty"`
	RegistrationData json.RawMessage    `json:"registration_data,omitempty"`
	RegisteredAt     time.Time          `json:"registered_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Active reports whether the registration still counts for the user,
// i.e. it has not been cancelled.
func (r *Registration) Active() bool {
	return r.Status != StatusCancelled
}

// RegistrationDetail is a registration joined with the registrant's
// account fields, used in administrative listings.
type RegistrationDetail struct {
	Registration
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AttendanceRecord marks that a user attended a session.
type AttendanceRecord struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	RecordedBy string    `json:"recorded_by"`
	RecordedAt time.Time `json:"recorded_at"`
	Notes      *string   `json:"notes,omitempty"`
}

// SessionAttendee is one row of a session attendance sheet: a confirmed
// registrant plus their attendance record, if any.
type SessionAttendee struct {
	RegistrationID string     `json:"registration_id"`
	UserID         string     `json:"user_id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Attended       bool       `json:"attended"`
	AttendanceID   *string    `json:"attendance_id,omitempty"`
	RecordedAt     *time.Time `json:"recorded_at,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
}

// Actor identifies the authenticated caller of an operation.
// The core trusts the identity and role passed to it; authentication
// happens at the transport layer.
type Actor struct {
	ID   string
	Role Role
}

// MarkAttendanceRequest is the payload for recording attendance.
type MarkAttendanceRequest struct {
	SessionID string  `json:"session_id"`
	UserID    string  `json:"user_id"`
	Notes     *string `json:"notes,omitempty"`
}

// RegisterResponse wraps a created registration with a human-readable
// outcome message ("registration successful" vs. waitlist position).
type RegisterResponse struct {
	Message      string        `json:"message"`
	Registration *Registration `json:"registration"`
}

// SessionAttendanceResponse is the attendance sheet for one session.
type SessionAttendanceResponse struct {
	Session   *Session          `json:"session"`
	Attendees []SessionAttendee `json:"attendees"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
