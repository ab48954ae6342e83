// Package service implements the registration and attendance business
// logic: the capacity gate, waitlist promotion, queue compaction, and
// attendance recording. All waitlist math runs inside the per-event
// lock scope provided by the repository layer.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventhall/registrar/internal/model"
	"github.com/eventhall/registrar/internal/repository"
)

// RegistrationService decides whether registrants are confirmed or
// waitlisted, and keeps the waitlist dense and fair across
// cancellations and promotions.
type RegistrationService struct {
	events        repository.EventStore
	registrations repository.RegistrationStore
	log           *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(events repository.EventStore, registrations repository.RegistrationStore, log *zap.Logger) *RegistrationService {
	return &RegistrationService{
		events:        events,
		registrations: registrations,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
}

// Register creates a registration for userID on the event. When the
// event has free capacity (or no limit) the registration is confirmed;
// otherwise it joins the waitlist at the next queue position. The whole
// decision runs under the event lock, so concurrent requests can never
// confirm past the limit.
func (s *RegistrationService) Register(ctx context.Context, eventID, userID string, data json.RawMessage) (*model.Registration, error) {
	if eventID == "" || userID == "" {
		return nil, fmt.Errorf("event id and user id are required")
	}

	var reg *model.Registration
	err := s.registrations.WithEventLock(ctx, eventID, func(ctx context.Context, ev *model.Event, tx repository.RegistrationTx) error {
		if !ev.Enabled {
			return ErrEventUnavailable
		}
		if !ev.RegistrationOpen {
			return ErrRegistrationClosed
		}

		existing, err := tx.FindByEventAndUser(ctx, eventID, userID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("find registration: %w", err)
		}
		if existing != nil {
			if existing.Status == model.StatusCancelled {
				return ErrPreviouslyCancelled
			}
			return ErrAlreadyRegistered
		}

		status := model.StatusConfirmed
		var position *int
		if !ev.Unlimited() {
			confirmed, err := tx.CountConfirmed(ctx, eventID)
			if err != nil {
				return err
			}
			if ev.IsFull(confirmed) {
				status = model.StatusWaitlisted
				next, err := tx.NextQueuePosition(ctx, eventID)
				if err != nil {
					return err
				}
				position = &next
			}
		}

		now := s.now()
		reg = &model.Registration{
			ID:               s.newID(),
			EventID:          eventID,
			UserID:           userID,
			Status:           status,
			QueuePosition:    position,
			RegistrationData: data,
			RegisteredAt:     now,
			UpdatedAt:        now,
		}
		return tx.Insert(ctx, reg)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return reg, nil
}

// Cancel marks a registration cancelled. Non-admin actors may only
// cancel their own registration. A confirmed cancellation frees a seat
// and triggers waitlist promotion; a waitlisted cancellation leaves a
// gap and triggers compaction. Cancellation, promotion, and compaction
// share one transaction, so the queue is never observable half-updated.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID string, actor model.Actor) error {
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRegistrationNotFound
		}
		return fmt.Errorf("get registration: %w", err)
	}
	if reg.UserID != actor.ID && !actor.Role.IsAdmin() {
		return ErrNotAuthorized
	}
	if reg.Status == model.StatusCancelled {
		return ErrAlreadyCancelled
	}

	return s.registrations.WithEventLock(ctx, reg.EventID, func(ctx context.Context, ev *model.Event, tx repository.RegistrationTx) error {
		// Re-read under the lock; the status may have changed since
		// the unlocked check above.
		reg, err := tx.GetByID(ctx, registrationID)
		if err != nil {
			return fmt.Errorf("get registration: %w", err)
		}
		if reg.Status == model.StatusCancelled {
			return ErrAlreadyCancelled
		}
		prior := reg.Status

		if err := tx.UpdateStatus(ctx, registrationID, model.StatusCancelled, s.now()); err != nil {
			return err
		}

		if prior == model.StatusConfirmed {
			return s.promote(ctx, ev, tx)
		}
		return s.reorder(ctx, ev.ID, tx)
	})
}

// promote fills freed capacity from the waitlist in strict queue order,
// then compacts the remaining positions. Unlimited events never
// waitlist anyone, so there is nothing to promote.
func (s *RegistrationService) promote(ctx context.Context, ev *model.Event, tx repository.RegistrationTx) error {
	if ev.Unlimited() {
		return nil
	}

	confirmed, err := tx.CountConfirmed(ctx, ev.ID)
	if err != nil {
		return err
	}
	freed := *ev.RegistrationLimit - confirmed
	if freed > 0 {
		waiting, err := tx.ListWaitlisted(ctx, ev.ID)
		if err != nil {
			return err
		}
		if freed > len(waiting) {
			freed = len(waiting)
		}
		for _, w := range waiting[:freed] {
			if err := tx.UpdateStatus(ctx, w.ID, model.StatusConfirmed, s.now()); err != nil {
				return err
			}
			s.log.Info("promoted from waitlist",
				zap.String("registration_id", w.ID),
				zap.String("user_id", w.UserID),
				zap.String("event_id", ev.ID),
			)
		}
	}
	return s.reorder(ctx, ev.ID, tx)
}

// reorder recomputes queue positions as 1..K over the remaining
// waitlist in arrival order. A full recompute is deliberately preferred
// over incremental position arithmetic: it cannot drift, and running it
// twice without an intervening mutation changes nothing.
func (s *RegistrationService) reorder(ctx context.Context, eventID string, tx repository.RegistrationTx) error {
	waiting, err := tx.ListWaitlisted(ctx, eventID)
	if err != nil {
		return err
	}
	for i, w := range waiting {
		want := i + 1
		if w.QueuePosition != nil && *w.QueuePosition == want {
			continue
		}
		if err := tx.SetQueuePosition(ctx, w.ID, want); err != nil {
			return err
		}
	}
	return nil
}

// ListByEvent returns all registrations for an event with registrant
// account details. Intended for administrative callers; role checks
// happen at the transport layer.
func (s *RegistrationService) ListByEvent(ctx context.Context, eventID string) ([]model.RegistrationDetail, error) {
	if _, err := s.events.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return s.registrations.ListByEvent(ctx, eventID)
}

// ListMine returns the actor's non-cancelled registrations, newest
// first.
func (s *RegistrationService) ListMine(ctx context.Context, userID string) ([]model.Registration, error) {
	return s.registrations.ListActiveByUser(ctx, userID)
}
