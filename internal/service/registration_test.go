package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eventhall/registrar/internal/model"
	"github.com/eventhall/registrar/internal/repository"
	"github.com/eventhall/registrar/internal/testutil"
)

func newRegistrationService(store *testutil.Store) *RegistrationService {
	svc := NewRegistrationService(store, store, zap.NewNop())
	clock := testutil.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc.now = clock.Now
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("reg-%d", n)
	}
	return svc
}

func addEvent(store *testutil.Store, id string, limit *int) {
	store.Events[id] = model.Event{
		ID:                id,
		Title:             "Event " + id,
		Enabled:           true,
		RegistrationOpen:  true,
		RegistrationLimit: limit,
		AttendanceEnabled: true,
	}
}

func limitOf(n int) *int {
	return &n
}

func actor(id string) model.Actor {
	return model.Actor{ID: id, Role: model.RoleUser}
}

func admin(id string) model.Actor {
	return model.Actor{ID: id, Role: model.RoleAdmin}
}

// waitlistPositions returns userID → queue position for every
// waitlisted registration of the event.
func waitlistPositions(t *testing.T, store *testutil.Store, eventID string) map[string]int {
	t.Helper()
	positions := map[string]int{}
	for _, reg := range store.Registrations {
		if reg.EventID != eventID || reg.Status != model.StatusWaitlisted {
			continue
		}
		require.NotNil(t, reg.QueuePosition, "waitlisted registration %s has no queue position", reg.ID)
		positions[reg.UserID] = *reg.QueuePosition
	}
	return positions
}

func confirmedCount(store *testutil.Store, eventID string) int {
	count := 0
	for _, reg := range store.Registrations {
		if reg.EventID == eventID && reg.Status == model.StatusConfirmed {
			count++
		}
	}
	return count
}

func TestRegisterUnlimitedEventConfirms(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", nil)

	reg, err := svc.Register(context.Background(), "ev", "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, reg.Status)
	assert.Nil(t, reg.QueuePosition)
}

func TestRegisterUnknownEvent(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)

	_, err := svc.Register(context.Background(), "missing", "alice", nil)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestRegisterDisabledEvent(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", nil)
	ev := store.Events["ev"]
	ev.Enabled = false
	store.Events["ev"] = ev

	_, err := svc.Register(context.Background(), "ev", "alice", nil)
	assert.ErrorIs(t, err, ErrEventUnavailable)
}

func TestRegisterClosedRegistration(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", nil)
	ev := store.Events["ev"]
	ev.RegistrationOpen = false
	store.Events["ev"] = ev

	_, err := svc.Register(context.Background(), "ev", "alice", nil)
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestRegisterWaitlistsPastCapacity(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", limitOf(2))
	ctx := context.Background()

	a, err := svc.Register(ctx, "ev", "alice", nil)
	require.NoError(t, err)
	b, err := svc.Register(ctx, "ev", "bob", nil)
	require.NoError(t, err)
	c, err := svc.Register(ctx, "ev", "carol", nil)
	require.NoError(t, err)
	d, err := svc.Register(ctx, "ev", "dave", nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusConfirmed, a.Status)
	assert.Nil(t, a.QueuePosition)
	assert.Equal(t, model.StatusConfirmed, b.Status)
	assert.Nil(t, b.QueuePosition)

	require.Equal(t, model.StatusWaitlisted, c.Status)
	require.NotNil(t, c.QueuePosition)
	assert.Equal(t, 1, *c.QueuePosition)

	require.Equal(t, model.StatusWaitlisted, d.Status)
	require.NotNil(t, d.QueuePosition)
	assert.Equal(t, 2, *d.QueuePosition)

	assert.LessOrEqual(t, confirmedCount(store, "ev"), 2)
}

func TestRegisterTwiceRejected(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ev", "alice", nil)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "ev", "alice", nil)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegisterAfterCancelRejected(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", nil)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "ev", "alice", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, reg.ID, actor("alice")))

	_, err = svc.Register(ctx, "ev", "alice", nil)
	assert.ErrorIs(t, err, ErrPreviouslyCancelled)
	assert.NotErrorIs(t, err, ErrAlreadyRegistered)
}

func TestCancelConfirmedPromotesNextInQueue(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", limitOf(2))
	ctx := context.Background()

	a, err := svc.Register(ctx, "ev", "alice", nil)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "ev", "bob", nil)
	require.NoError(t, err)
	c, err := svc.Register(ctx, "ev", "carol", nil)
	require.NoError(t, err)
	require.Equal(t, model.StatusWaitlisted, c.Status)

	require.NoError(t, svc.Cancel(ctx, a.ID, actor("alice")))

	promoted, err := svc.registrations.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, promoted.Status)
	assert.Nil(t, promoted.QueuePosition)

	assert.Empty(t, waitlistPositions(t, store, "ev"))
	assert.Equal(t, 2, confirmedCount(store, "ev"))
}

func TestCancelWaitlistedCompactsQueue(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", limitOf(1))
	ctx := context.Background()

	_, err := svc.Register(ctx, "ev", "alice", nil)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "ev", "bob", nil)
	require.NoError(t, err)
	c, err := svc.Register(ctx, "ev", "carol", nil)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "ev", "dave", nil)
	require.NoError(t, err)

	// bob=1, carol=2, dave=3; cancelling carol must leave bob=1, dave=2.
	require.NoError(t, svc.Cancel(ctx, c.ID, actor("carol")))

	positions := waitlistPositions(t, store, "ev")
	assert.Equal(t, map[string]int{"bob": 1, "dave": 2}, positions)
	assert.Equal(t, 1, confirmedCount(store, "ev"))
}

func TestCancelConfirmedWithEmptyWaitlist(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", limitOf(5))
	ctx := context.Background()

	reg, err := svc.Register(ctx, "ev", "alice", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, reg.ID, actor("alice")))

	cancelled, err := svc.registrations.GetByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.QueuePosition)
}

func TestCancelAuthorization(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", nil)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "ev", "alice", nil)
	require.NoError(t, err)

	err = svc.Cancel(ctx, reg.ID, actor("bob"))
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// Admins may cancel anyone's registration.
	require.NoError(t, svc.Cancel(ctx, reg.ID, admin("root")))
}

func TestCancelAlreadyCancelled(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", nil)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "ev", "alice", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, reg.ID, actor("alice")))

	err = svc.Cancel(ctx, reg.ID, actor("alice"))
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestCancelUnknownRegistration(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)

	err := svc.Cancel(context.Background(), "missing", actor("alice"))
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestPromoteFillsAllFreedCapacity(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", limitOf(1))
	ctx := context.Background()

	_, err := svc.Register(ctx, "ev", "alice", nil)
	require.NoError(t, err)
	for _, user := range []string{"bob", "carol", "dave"} {
		_, err := svc.Register(ctx, "ev", user, nil)
		require.NoError(t, err)
	}

	// The catalog raised the limit since; the next promotion pass must
	// fill every freed seat in queue order.
	ev := store.Events["ev"]
	ev.RegistrationLimit = limitOf(3)
	store.Events["ev"] = ev

	err = store.WithEventLock(ctx, "ev", func(ctx context.Context, ev *model.Event, tx repository.RegistrationTx) error {
		return svc.promote(ctx, ev, tx)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, confirmedCount(store, "ev"))
	assert.Equal(t, map[string]int{"dave": 1}, waitlistPositions(t, store, "ev"))
}

func TestReorderIdempotent(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", limitOf(1))
	ctx := context.Background()

	_, err := svc.Register(ctx, "ev", "alice", nil)
	require.NoError(t, err)
	for _, user := range []string{"bob", "carol", "dave"} {
		_, err := svc.Register(ctx, "ev", user, nil)
		require.NoError(t, err)
	}

	// Punch gaps into the positions to simulate drift.
	for _, reg := range store.Registrations {
		if reg.Status == model.StatusWaitlisted {
			p := *reg.QueuePosition * 3
			reg.QueuePosition = &p
		}
	}

	reorderOnce := func() map[string]int {
		err := store.WithEventLock(ctx, "ev", func(ctx context.Context, ev *model.Event, tx repository.RegistrationTx) error {
			return svc.reorder(ctx, ev.ID, tx)
		})
		require.NoError(t, err)
		return waitlistPositions(t, store, "ev")
	}

	first := reorderOnce()
	assert.Equal(t, map[string]int{"bob": 1, "carol": 2, "dave": 3}, first)

	second := reorderOnce()
	assert.Equal(t, first, second)
}

func TestListMineExcludesCancelled(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev1", nil)
	addEvent(store, "ev2", nil)
	ctx := context.Background()

	first, err := svc.Register(ctx, "ev1", "alice", nil)
	require.NoError(t, err)
	second, err := svc.Register(ctx, "ev2", "alice", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, first.ID, actor("alice")))

	mine, err := svc.ListMine(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, second.ID, mine[0].ID)
}

func TestListByEvent(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", limitOf(1))
	ctx := context.Background()

	_, err := svc.ListByEvent(ctx, "missing")
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = svc.Register(ctx, "ev", "alice", nil)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "ev", "bob", nil)
	require.NoError(t, err)

	details, err := svc.ListByEvent(ctx, "ev")
	require.NoError(t, err)
	require.Len(t, details, 2)
	// Confirmed registrations come before waitlisted ones.
	assert.Equal(t, model.StatusConfirmed, details[0].Status)
	assert.Equal(t, model.StatusWaitlisted, details[1].Status)
	assert.Equal(t, "alice@example.com", details[0].Email)
}

func TestRegisterKeepsRegistrationData(t *testing.T) {
	store := testutil.NewStore()
	svc := newRegistrationService(store)
	addEvent(store, "ev", nil)

	data := []byte(`{"shirt_size":"M"}`)
	reg, err := svc.Register(context.Background(), "ev", "alice", data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"shirt_size":"M"}`, string(reg.RegistrationData))
}
