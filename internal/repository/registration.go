package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventhall/registrar/internal/model"
)

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, event_id, user_id, status, queue_position,
	registration_data, registered_at, updated_at`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Status,
		&reg.QueuePosition, &reg.RegistrationData, &reg.RegisteredAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	return &reg, nil
}

func getRegistration(ctx context.Context, q queryer, id string) (*model.Registration, error) {
	return scanRegistration(q.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM event_registrations WHERE id = $1`, id))
}

func findRegistration(ctx context.Context, q queryer, eventID, userID string) (*model.Registration, error) {
	return scanRegistration(q.QueryRow(ctx,
		`SELECT `+registrationColumns+`
		 FROM event_registrations
		 WHERE event_id = $1 AND user_id = $2
		 ORDER BY registered_at DESC
		 LIMIT 1`,
		eventID, userID))
}

// GetByID returns a registration or ErrNotFound.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	return getRegistration(ctx, r.db, id)
}

// FindByEventAndUser returns the user's registration for the event, or
// ErrNotFound. When cancelled history rows exist alongside a privileged
// re-registration, the most recent row wins.
func (r *RegistrationRepository) FindByEventAndUser(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	return findRegistration(ctx, r.db, eventID, userID)
}

// ListByEvent returns all registrations for an event joined with account
// fields, confirmed first, then waitlisted by queue position, then
// cancelled, each group in arrival order.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.RegistrationDetail, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.event_id, r.user_id, r.status, r.queue_position,
		        r.registration_data, r.registered_at, r.updated_at,
		        a.email, a.name
		 FROM event_registrations r
		 JOIN accounts a ON a.id = r.user_id
		 WHERE r.event_id = $1
		 ORDER BY
		   CASE r.status
		     WHEN 'confirmed' THEN 1
		     WHEN 'waitlisted' THEN 2
		     ELSE 3
		   END,
		   r.queue_position ASC NULLS LAST,
		   r.registered_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var details []model.RegistrationDetail
	for rows.Next() {
		var d model.RegistrationDetail
		if err := rows.Scan(&d.ID, &d.EventID, &d.UserID, &d.Status, &d.QueuePosition,
			&d.RegistrationData, &d.RegisteredAt, &d.UpdatedAt, &d.Email, &d.Name); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// ListActiveByUser returns the user's non-cancelled registrations,
// newest first.
func (r *RegistrationRepository) ListActiveByUser(ctx context.Context, userID string) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM event_registrations
		 WHERE user_id = $1 AND status <> 'cancelled'
		 ORDER BY registered_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()
	return collectRegistrations(rows)
}

func collectRegistrations(rows pgx.Rows) ([]model.Registration, error) {
	var regs []model.Registration
	for rows.Next() {
		var reg model.Registration
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Status,
			&reg.QueuePosition, &reg.RegistrationData, &reg.RegisteredAt, &reg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// WithEventLock opens a transaction and takes an exclusive row lock on
// the event with SELECT ... FOR UPDATE before running fn.
//
// Registration is a check-then-act sequence: read capacity and the
// confirmed count, then insert or update. Two concurrent requests that
// both read "one seat left" would both confirm and overbook the event.
// The row lock serialises all such sequences per event: a concurrent
// transaction blocks on the same SELECT ... FOR UPDATE until this one
// commits or rolls back. Cancellation, promotion, and queue compaction
// run under the same lock so no other mutation of the event's queue can
// interleave. Operations on different events do not contend.
func (r *RegistrationRepository) WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, ev *model.Event, tx RegistrationTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ev, err := scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID))
	if err != nil {
		return err
	}

	if err := fn(ctx, ev, &registrationTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// registrationTx implements RegistrationTx over an open pgx transaction.
type registrationTx struct {
	tx pgx.Tx
}

func (t *registrationTx) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	return getRegistration(ctx, t.tx, id)
}

func (t *registrationTx) FindByEventAndUser(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	return findRegistration(ctx, t.tx, eventID, userID)
}

func (t *registrationTx) CountConfirmed(ctx context.Context, eventID string) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM event_registrations
		 WHERE event_id = $1 AND status = 'confirmed'`,
		eventID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count confirmed: %w", err)
	}
	return count, nil
}

func (t *registrationTx) NextQueuePosition(ctx context.Context, eventID string) (int, error) {
	var next int
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(queue_position), 0) + 1
		 FROM event_registrations
		 WHERE event_id = $1 AND status = 'waitlisted'`,
		eventID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next queue position: %w", err)
	}
	return next, nil
}

// ListWaitlisted returns the event's waitlist in promotion order.
// Positions are dense and assigned in arrival order, so ordering by
// position with registered_at as tie-break serves both promotion and
// full-recompute compaction.
func (t *registrationTx) ListWaitlisted(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM event_registrations
		 WHERE event_id = $1 AND status = 'waitlisted'
		 ORDER BY queue_position ASC NULLS LAST, registered_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list waitlisted: %w", err)
	}
	defer rows.Close()
	return collectRegistrations(rows)
}

func (t *registrationTx) Insert(ctx context.Context, reg *model.Registration) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO event_registrations
		   (id, event_id, user_id, status, queue_position, registration_data, registered_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		reg.ID, reg.EventID, reg.UserID, reg.Status, reg.QueuePosition,
		reg.RegistrationData, reg.RegisteredAt, reg.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (t *registrationTx) UpdateStatus(ctx context.Context, id string, status model.RegistrationStatus, updatedAt time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE event_registrations
		 SET status = $2, queue_position = NULL, updated_at = $3
		 WHERE id = $1`,
		id, status, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *registrationTx) SetQueuePosition(ctx context.Context, id string, position int) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE event_registrations SET queue_position = $2 WHERE id = $1`,
		id, position,
	)
	if err != nil {
		return fmt.Errorf("set queue position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
