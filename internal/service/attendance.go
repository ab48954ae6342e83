package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eventhall/registrar/internal/model"
	"github.com/eventhall/registrar/internal/repository"
)

// AttendanceService records and removes per-session attendance.
// Attendance can only be recorded for users holding a currently
// confirmed registration for the session's event; a later change to the
// registration does not revoke the record.
type AttendanceService struct {
	events        repository.EventStore
	registrations repository.RegistrationStore
	attendance    repository.AttendanceStore

	now   func() time.Time
	newID func() string
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(events repository.EventStore, registrations repository.RegistrationStore, attendance repository.AttendanceStore) *AttendanceService {
	return &AttendanceService{
		events:        events,
		registrations: registrations,
		attendance:    attendance,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
}

// sessionEvent resolves a session and its event, enforcing that the
// event has attendance tracking enabled.
func (s *AttendanceService) sessionEvent(ctx context.Context, sessionID string) (*model.Session, *model.Event, error) {
	sess, err := s.events.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("get session: %w", err)
	}
	ev, err := s.events.GetEvent(ctx, sess.EventID)
	if err != nil {
		return nil, nil, fmt.Errorf("get event: %w", err)
	}
	if !ev.AttendanceEnabled {
		return nil, nil, ErrAttendanceDisabled
	}
	return sess, ev, nil
}

// SessionAttendance returns the attendance sheet for a session: every
// confirmed registrant of its event, sorted by name, with their record
// if one exists.
func (s *AttendanceService) SessionAttendance(ctx context.Context, sessionID string) (*model.SessionAttendanceResponse, error) {
	sess, ev, err := s.sessionEvent(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	attendees, err := s.attendance.ListSessionAttendance(ctx, sessionID, ev.ID)
	if err != nil {
		return nil, err
	}
	if attendees == nil {
		attendees = []model.SessionAttendee{}
	}
	return &model.SessionAttendanceResponse{Session: sess, Attendees: attendees}, nil
}

// Record marks userID as having attended the session. The user must
// hold a confirmed registration for the session's event, and at most
// one record may exist per (session, user).
func (s *AttendanceService) Record(ctx context.Context, sessionID, userID, recordedBy string, notes *string) (*model.AttendanceRecord, error) {
	if sessionID == "" || userID == "" {
		return nil, fmt.Errorf("session id and user id are required")
	}
	_, ev, err := s.sessionEvent(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	reg, err := s.registrations.FindByEventAndUser(ctx, ev.ID, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	if reg == nil || reg.Status != model.StatusConfirmed {
		return nil, ErrNotRegistered
	}

	if _, err := s.attendance.FindRecord(ctx, sessionID, userID); err == nil {
		return nil, ErrDuplicateAttendance
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	rec := &model.AttendanceRecord{
		ID:         s.newID(),
		SessionID:  sessionID,
		UserID:     userID,
		RecordedBy: recordedBy,
		RecordedAt: s.now(),
		Notes:      notes,
	}
	if err := s.attendance.Insert(ctx, rec); err != nil {
		// The unique index catches a concurrent insert between the
		// existence check and ours.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateAttendance
		}
		return nil, err
	}
	return rec, nil
}

// Remove deletes an attendance record.
func (s *AttendanceService) Remove(ctx context.Context, attendanceID string) error {
	if err := s.attendance.Delete(ctx, attendanceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAttendanceNotFound
		}
		return err
	}
	return nil
}
