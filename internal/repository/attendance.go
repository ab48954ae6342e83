package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventhall/registrar/internal/model"
)

// AttendanceRepository handles persistence for attendance records.
// Uniqueness of (session_id, user_id) is enforced by a database index,
// so no event-wide locking is needed here.
type AttendanceRepository struct {
	db *pgxpool.Pool
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListSessionAttendance returns every confirmed registrant of the
// session's event with their attendance record, if any, sorted by name.
func (r *AttendanceRepository) ListSessionAttendance(ctx context.Context, sessionID, eventID string) ([]model.SessionAttendee, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.user_id, a.email, a.name,
		        att.id, att.recorded_at, att.notes
		 FROM event_registrations r
		 JOIN accounts a ON a.id = r.user_id
		 LEFT JOIN attendance_records att
		   ON att.session_id = $1 AND att.user_id = r.user_id
		 WHERE r.event_id = $2 AND r.status = 'confirmed'
		 ORDER BY a.name ASC, a.email ASC`,
		sessionID, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var attendees []model.SessionAttendee
	for rows.Next() {
		var at model.SessionAttendee
		if err := rows.Scan(&at.RegistrationID, &at.UserID, &at.Email, &at.Name,
			&at.AttendanceID, &at.RecordedAt, &at.Notes); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		at.Attended = at.AttendanceID != nil
		attendees = append(attendees, at)
	}
	return attendees, rows.Err()
}

// FindRecord returns the attendance record for (session, user) or
// ErrNotFound.
func (r *AttendanceRepository) FindRecord(ctx context.Context, sessionID, userID string) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := r.db.QueryRow(ctx,
		`SELECT id, session_id, user_id, recorded_by, recorded_at, notes
		 FROM attendance_records
		 WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID,
	).Scan(&rec.ID, &rec.SessionID, &rec.UserID, &rec.RecordedBy, &rec.RecordedAt, &rec.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &rec, nil
}

// Insert creates an attendance record. A concurrent insert for the same
// (session, user) pair surfaces as ErrDuplicate via the unique index.
func (r *AttendanceRepository) Insert(ctx context.Context, rec *model.AttendanceRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO attendance_records (id, session_id, user_id, recorded_by, recorded_at, notes)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.SessionID, rec.UserID, rec.RecordedBy, rec.RecordedAt, rec.Notes,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// Delete removes an attendance record or returns ErrNotFound.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM attendance_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
