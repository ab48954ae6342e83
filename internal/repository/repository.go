// Package repository implements all database access for the registration
// core. It uses pgx directly (no ORM) and exposes small store interfaces
// so the service layer can be tested against in-memory fakes.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/eventhall/registrar/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness rule.
var ErrDuplicate = errors.New("duplicate record")

// EventStore is the read-only view of the Event Catalog.
type EventStore interface {
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	GetSession(ctx context.Context, id string) (*model.Session, error)
}

// RegistrationStore persists registrations and scopes mutations to a
// per-event exclusive lock.
type RegistrationStore interface {
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	FindByEventAndUser(ctx context.Context, eventID, userID string) (*model.Registration, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.RegistrationDetail, error)
	ListActiveByUser(ctx context.Context, userID string) ([]model.Registration, error)

	// WithEventLock runs fn inside a transaction holding an exclusive
	// lock on the event row. All capacity checks and status mutations
	// for an event must happen inside this scope; concurrent calls for
	// the same event serialize, different events proceed in parallel.
	// Returns ErrNotFound when the event does not exist.
	WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, ev *model.Event, tx RegistrationTx) error) error
}

// RegistrationTx is the transaction-scoped registration store handed to
// WithEventLock callbacks.
type RegistrationTx interface {
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	FindByEventAndUser(ctx context.Context, eventID, userID string) (*model.Registration, error)
	CountConfirmed(ctx context.Context, eventID string) (int, error)
	NextQueuePosition(ctx context.Context, eventID string) (int, error)
	ListWaitlisted(ctx context.Context, eventID string) ([]model.Registration, error)
	Insert(ctx context.Context, reg *model.Registration) error
	// UpdateStatus sets the status, clears the queue position, and
	// bumps updated_at.
	UpdateStatus(ctx context.Context, id string, status model.RegistrationStatus, updatedAt time.Time) error
	SetQueuePosition(ctx context.Context, id string, position int) error
}

// AttendanceStore persists per-session attendance records.
type AttendanceStore interface {
	ListSessionAttendance(ctx context.Context, sessionID, eventID string) ([]model.SessionAttendee, error)
	FindRecord(ctx context.Context, sessionID, userID string) (*model.AttendanceRecord, error)
	Insert(ctx context.Context, rec *model.AttendanceRecord) error
	Delete(ctx context.Context, id string) error
}

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx, letting query
// helpers run inside or outside a transaction.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
