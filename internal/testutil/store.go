// Package testutil provides an in-memory store implementation used by
// service and handler tests in place of PostgreSQL.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eventhall/registrar/internal/model"
	"github.com/eventhall/registrar/internal/repository"
)

// Store is an in-memory implementation of the repository store
// interfaces. A single mutex stands in for the per-event row lock;
// tests exercise ordering and invariants, not parallelism.
type Store struct {
	mu            sync.Mutex
	Events        map[string]model.Event
	Sessions      map[string]model.Session
	Registrations map[string]*model.Registration
	Attendance    map[string]*model.AttendanceRecord
	// Names maps user IDs to display names for listings.
	Names map[string]string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		Events:        map[string]model.Event{},
		Sessions:      map[string]model.Session{},
		Registrations: map[string]*model.Registration{},
		Attendance:    map[string]*model.AttendanceRecord{},
		Names:         map[string]string{},
	}
}

func (s *Store) email(userID string) string {
	return userID + "@example.com"
}

func copyRegistration(r *model.Registration) *model.Registration {
	c := *r
	if r.QueuePosition != nil {
		p := *r.QueuePosition
		c.QueuePosition = &p
	}
	return &c
}

// ─── repository.EventStore ────────────────────────────────────────────────────

func (s *Store) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.Events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ev, nil
}

func (s *Store) GetSession(_ context.Context, id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.Sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sess, nil
}

// ─── repository.RegistrationStore ─────────────────────────────────────────────

func (s *Store) GetByID(_ context.Context, id string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getRegistration(id)
}

func (s *Store) getRegistration(id string) (*model.Registration, error) {
	reg, ok := s.Registrations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyRegistration(reg), nil
}

func (s *Store) FindByEventAndUser(_ context.Context, eventID, userID string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findRegistration(eventID, userID)
}

func (s *Store) findRegistration(eventID, userID string) (*model.Registration, error) {
	var latest *model.Registration
	for _, reg := range s.Registrations {
		if reg.EventID != eventID || reg.UserID != userID {
			continue
		}
		if latest == nil || reg.RegisteredAt.After(latest.RegisteredAt) {
			latest = reg
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return copyRegistration(latest), nil
}

func (s *Store) ListByEvent(_ context.Context, eventID string) ([]model.RegistrationDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	statusRank := map[model.RegistrationStatus]int{
		model.StatusConfirmed:  1,
		model.StatusWaitlisted: 2,
		model.StatusCancelled:  3,
	}
	var details []model.RegistrationDetail
	for _, reg := range s.Registrations {
		if reg.EventID != eventID {
			continue
		}
		details = append(details, model.RegistrationDetail{
			Registration: *copyRegistration(reg),
			Email:        s.email(reg.UserID),
			Name:         s.Names[reg.UserID],
		})
	}
	sort.Slice(details, func(i, j int) bool {
		a, b := details[i], details[j]
		if statusRank[a.Status] != statusRank[b.Status] {
			return statusRank[a.Status] < statusRank[b.Status]
		}
		ap, bp := a.QueuePosition, b.QueuePosition
		if ap != nil && bp != nil && *ap != *bp {
			return *ap < *bp
		}
		return a.RegisteredAt.Before(b.RegisteredAt)
	})
	return details, nil
}

func (s *Store) ListActiveByUser(_ context.Context, userID string) ([]model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var regs []model.Registration
	for _, reg := range s.Registrations {
		if reg.UserID == userID && reg.Status != model.StatusCancelled {
			regs = append(regs, *copyRegistration(reg))
		}
	}
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].RegisteredAt.After(regs[j].RegisteredAt)
	})
	return regs, nil
}

func (s *Store) WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, ev *model.Event, tx repository.RegistrationTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.Events[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	return fn(ctx, &ev, &storeTx{s: s})
}

// storeTx exposes the transaction-scoped operations; the Store mutex is
// already held for the duration of the callback.
type storeTx struct {
	s *Store
}

func (t *storeTx) GetByID(_ context.Context, id string) (*model.Registration, error) {
	return t.s.getRegistration(id)
}

func (t *storeTx) FindByEventAndUser(_ context.Context, eventID, userID string) (*model.Registration, error) {
	return t.s.findRegistration(eventID, userID)
}

func (t *storeTx) CountConfirmed(_ context.Context, eventID string) (int, error) {
	count := 0
	for _, reg := range t.s.Registrations {
		if reg.EventID == eventID && reg.Status == model.StatusConfirmed {
			count++
		}
	}
	return count, nil
}

func (t *storeTx) NextQueuePosition(_ context.Context, eventID string) (int, error) {
	max := 0
	for _, reg := range t.s.Registrations {
		if reg.EventID == eventID && reg.Status == model.StatusWaitlisted &&
			reg.QueuePosition != nil && *reg.QueuePosition > max {
			max = *reg.QueuePosition
		}
	}
	return max + 1, nil
}

func (t *storeTx) ListWaitlisted(_ context.Context, eventID string) ([]model.Registration, error) {
	var regs []model.Registration
	for _, reg := range t.s.Registrations {
		if reg.EventID == eventID && reg.Status == model.StatusWaitlisted {
			regs = append(regs, *copyRegistration(reg))
		}
	}
	sort.Slice(regs, func(i, j int) bool {
		ap, bp := regs[i].QueuePosition, regs[j].QueuePosition
		switch {
		case ap != nil && bp != nil && *ap != *bp:
			return *ap < *bp
		case ap == nil && bp != nil:
			return false
		case ap != nil && bp == nil:
			return true
		}
		return regs[i].RegisteredAt.Before(regs[j].RegisteredAt)
	})
	return regs, nil
}

func (t *storeTx) Insert(_ context.Context, reg *model.Registration) error {
	for _, existing := range t.s.Registrations {
		if existing.EventID == reg.EventID && existing.UserID == reg.UserID &&
			existing.Status != model.StatusCancelled {
			return repository.ErrDuplicate
		}
	}
	t.s.Registrations[reg.ID] = copyRegistration(reg)
	return nil
}

func (t *storeTx) UpdateStatus(_ context.Context, id string, status model.RegistrationStatus, updatedAt time.Time) error {
	reg, ok := t.s.Registrations[id]
	if !ok {
		return repository.ErrNotFound
	}
	reg.Status = status
	reg.QueuePosition = nil
	reg.UpdatedAt = updatedAt
	return nil
}

func (t *storeTx) SetQueuePosition(_ context.Context, id string, position int) error {
	reg, ok := t.s.Registrations[id]
	if !ok {
		return repository.ErrNotFound
	}
	reg.QueuePosition = &position
	return nil
}

// ─── repository.AttendanceStore ───────────────────────────────────────────────

func (s *Store) ListSessionAttendance(_ context.Context, sessionID, eventID string) ([]model.SessionAttendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var attendees []model.SessionAttendee
	for _, reg := range s.Registrations {
		if reg.EventID != eventID || reg.Status != model.StatusConfirmed {
			continue
		}
		at := model.SessionAttendee{
			RegistrationID: reg.ID,
			UserID:         reg.UserID,
			Email:          s.email(reg.UserID),
			Name:           s.Names[reg.UserID],
		}
		for _, rec := range s.Attendance {
			if rec.SessionID == sessionID && rec.UserID == reg.UserID {
				id := rec.ID
				recordedAt := rec.RecordedAt
				at.Attended = true
				at.AttendanceID = &id
				at.RecordedAt = &recordedAt
				at.Notes = rec.Notes
				break
			}
		}
		attendees = append(attendees, at)
	}
	sort.Slice(attendees, func(i, j int) bool {
		if attendees[i].Name != attendees[j].Name {
			return attendees[i].Name < attendees[j].Name
		}
		return attendees[i].Email < attendees[j].Email
	})
	return attendees, nil
}

func (s *Store) FindRecord(_ context.Context, sessionID, userID string) (*model.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.Attendance {
		if rec.SessionID == sessionID && rec.UserID == userID {
			c := *rec
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) Insert(_ context.Context, rec *model.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.Attendance {
		if existing.SessionID == rec.SessionID && existing.UserID == rec.UserID {
			return repository.ErrDuplicate
		}
	}
	c := *rec
	s.Attendance[rec.ID] = &c
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Attendance[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.Attendance, id)
	return nil
}

// Clock hands out strictly increasing timestamps so arrival order is
// unambiguous in tests.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock starts a Clock at the given time.
func NewClock(start time.Time) *Clock {
	return &Clock{t: start}
}

// Now advances the clock by one second and returns the new time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}
