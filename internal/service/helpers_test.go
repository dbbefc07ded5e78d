package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository/inmemory"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type pushed struct {
	userID  int
	payload []byte
}

type fakePusher struct {
	mu   sync.Mutex
	sent []pushed
	err  error
}

func (p *fakePusher) PushToUser(_ context.Context, userID int, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, pushed{userID: userID, payload: payload})
	return p.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.BookingEvent
}

func (p *fakePublisher) Publish(_ context.Context, event domain.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type testEnv struct {
	store     *inmemory.Store
	pusher    *fakePusher
	publisher *fakePublisher
	parking   *ParkingService
	notifier  *NotificationService
	clock     time.Time

	admin domain.Actor
	staff domain.Actor
	alice domain.Actor
	bob   domain.Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := inmemory.NewStore()
	store.SeedPricing(10, 20)
	logger := testLogger()

	env := &testEnv{
		store:     store,
		pusher:    &fakePusher{},
		publisher: &fakePublisher{},
		clock:     time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC),
	}
	env.notifier = NewNotificationService(store.Notifications(), store.Users(), env.pusher, logger)
	env.parking = NewParkingService(store.Slots(), store.Vehicles(), store.Bookings(), store.Pricing(),
		store.Payments(), store.BookingEvents(), env.notifier, env.publisher, logger)
	env.parking.now = func() time.Time { return env.clock }

	env.admin = env.addUser(t, "admin", domain.RoleAdmin)
	env.staff = env.addUser(t, "attendant", domain.RoleStaff)
	env.alice = env.addUser(t, "alice", domain.RoleUser)
	env.bob = env.addUser(t, "bob", domain.RoleUser)
	return env
}

func (e *testEnv) addUser(t *testing.T, username string, role domain.Role) domain.Actor {
	t.Helper()
	u, err := e.store.Users().Create(context.Background(), &domain.User{Username: username, Name: username, Role: role})
	require.NoError(t, err)
	return domain.Actor{UserID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}
}

func (e *testEnv) addSlot(t *testing.T, name string) *domain.ParkingSlot {
	t.Helper()
	slot, err := e.parking.CreateSlot(context.Background(), e.admin, domain.CreateSlotDTO{Name: name})
	require.NoError(t, err)
	return slot
}

func (e *testEnv) book(t *testing.T, actor domain.Actor, slotID int, vehicleType, number string) *domain.BookingView {
	t.Helper()
	view, err := e.parking.Book(context.Background(), actor, domain.BookSlotDTO{
		SlotID: slotID, VehicleType: vehicleType, VehicleNumber: number,
	})
	require.NoError(t, err)
	return view
}

func (e *testEnv) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}
