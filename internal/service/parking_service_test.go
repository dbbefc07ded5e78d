package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

func TestBookSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.addSlot(t, "A1")

	view := env.book(t, env.alice, slot.ID, "four", "MH12AB1234")

	assert.Equal(t, domain.BookingActive, view.State)
	assert.True(t, view.IsActive)
	assert.False(t, view.CheckedOut)
	assert.Equal(t, "A1", view.Slot.Name)
	assert.Equal(t, env.clock, view.StartTime)
	assert.InDelta(t, 20.0, view.Price, 1e-9, "minimum one hour at the four wheeler rate")

	stored, err := env.store.Slots().FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsAvailable)

	notes := env.store.NotificationsFor(env.alice.UserID)
	require.Len(t, notes, 1)
	assert.Equal(t, "Your parking booking has been confirmed.", notes[0].Content)
	require.Len(t, env.pusher.sent, 1)
	assert.Equal(t, env.alice.UserID, env.pusher.sent[0].userID)

	events := env.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.BookingActive, events[0].State)
	require.Len(t, env.publisher.events, 1)
	assert.Equal(t, events[0].EventID, env.publisher.events[0].EventID)
}

func TestBookOccupiedSlotLeavesStateUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.addSlot(t, "A1")
	env.book(t, env.alice, slot.ID, "two", "KA01X1234")

	before, err := env.store.Bookings().Find(ctx, domain.BookingFilter{})
	require.NoError(t, err)
	notesBefore := len(env.store.NotificationsFor(env.bob.UserID))

	_, err = env.parking.Book(ctx, env.bob, domain.BookSlotDTO{SlotID: slot.ID, VehicleType: "four", VehicleNumber: "KA02Y9999"})
	assert.ErrorIs(t, err, ErrSlotOccupied)

	after, err := env.store.Bookings().Find(ctx, domain.BookingFilter{})
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, env.store.NotificationsFor(env.bob.UserID), notesBefore)
	assert.Len(t, env.store.Events(), 1)
}

func TestBookRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a1 := env.addSlot(t, "A1")
	a2 := env.addSlot(t, "A2")

	_, err := env.parking.Book(ctx, env.alice, domain.BookSlotDTO{SlotID: 999, VehicleType: "two", VehicleNumber: "X1"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = env.parking.Book(ctx, env.alice, domain.BookSlotDTO{SlotID: a1.ID, VehicleType: "three", VehicleNumber: "X1"})
	assert.Error(t, err)

	env.book(t, env.alice, a1.ID, "two", "X1")
	_, err = env.parking.Book(ctx, env.alice, domain.BookSlotDTO{SlotID: a2.ID, VehicleType: "two", VehicleNumber: "X2"})
	assert.ErrorIs(t, err, ErrActiveBookingExists)

	stored, err := env.store.Slots().FindByID(ctx, a2.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAvailable, "rejected booking must not claim the slot")
}

func TestBookReusesVehicle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a1 := env.addSlot(t, "A1")
	a2 := env.addSlot(t, "A2")

	first := env.book(t, env.alice, a1.ID, "two", "KA01X1234")
	second := env.book(t, env.bob, a2.ID, "two", "KA01X1234")
	assert.Equal(t, first.Vehicle.ID, second.Vehicle.ID)

	other, err := env.store.Vehicles().GetOrCreate(ctx, domain.VehicleFourWheeler, "KA01X1234")
	require.NoError(t, err)
	assert.NotEqual(t, first.Vehicle.ID, other.ID, "the same number with another type is a distinct vehicle")
}

func TestRequestCheckout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.parking.RequestCheckout(ctx, env.alice)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	slot := env.addSlot(t, "B7")
	booked := env.book(t, env.alice, slot.ID, "two", "KA01X1234")
	env.advance(90 * time.Minute)

	view, err := env.parking.RequestCheckout(ctx, env.alice)
	require.NoError(t, err)
	assert.Equal(t, booked.ID, view.ID)
	assert.Equal(t, domain.BookingCheckoutRequested, view.State)
	assert.True(t, view.IsActive)
	assert.True(t, view.CheckedOut)
	assert.Equal(t, env.clock, view.CheckoutTime.Time)
	assert.InDelta(t, 10.0, view.Price, 1e-9)

	stored, err := env.store.Slots().FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsAvailable, "slot stays occupied until staff accept")

	for _, staff := range []domain.Actor{env.admin, env.staff} {
		notes := env.store.NotificationsFor(staff.UserID)
		require.Len(t, notes, 1)
		assert.Equal(t, "Check Out request generated for: B7", notes[0].Content)
	}

	_, err = env.parking.RequestCheckout(ctx, env.alice)
	assert.ErrorIs(t, err, repository.ErrNotFound, "a requested booking is no longer active")
}

func TestAcceptCheckout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.addSlot(t, "C3")
	booked := env.book(t, env.alice, slot.ID, "four", "TN09BZ4321")

	_, err := env.parking.AcceptCheckout(ctx, env.staff, booked.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "checkout must be requested first")

	env.advance(3 * time.Hour)
	_, err = env.parking.RequestCheckout(ctx, env.alice)
	require.NoError(t, err)

	_, err = env.parking.AcceptCheckout(ctx, env.bob, booked.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.parking.AcceptCheckout(ctx, env.staff, 12345)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	env.advance(5 * time.Hour)
	view, err := env.parking.AcceptCheckout(ctx, env.staff, booked.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingClosed, view.State)
	assert.False(t, view.IsActive)
	assert.True(t, view.CheckedOut)
	assert.InDelta(t, 60.0, view.Price, 1e-9, "price is frozen at the checkout request")

	stored, err := env.store.Slots().FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAvailable)

	notes := env.store.NotificationsFor(env.alice.UserID)
	require.NotEmpty(t, notes)
	assert.Equal(t, "Check Out request accepted for: C3", notes[len(notes)-1].Content)

	states := []domain.BookingState{}
	for _, e := range env.store.Events() {
		states = append(states, e.State)
	}
	assert.Equal(t, []domain.BookingState{domain.BookingActive, domain.BookingCheckoutRequested, domain.BookingClosed}, states)
}

func TestAcceptCheckoutTwiceDoesNotFreeSlotAgain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.addSlot(t, "D1")
	first := env.book(t, env.alice, slot.ID, "two", "KA01X1234")
	_, err := env.parking.RequestCheckout(ctx, env.alice)
	require.NoError(t, err)
	_, err = env.parking.AcceptCheckout(ctx, env.admin, first.ID)
	require.NoError(t, err)

	// the freed slot is taken by someone else
	env.book(t, env.bob, slot.ID, "four", "KA05M7777")

	_, err = env.parking.AcceptCheckout(ctx, env.admin, first.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := env.store.Slots().FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsAvailable, "second accept must not free bob's slot")
}

func TestSlotAvailabilityMatchesOpenBookings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slots := []*domain.ParkingSlot{env.addSlot(t, "A1"), env.addSlot(t, "A2"), env.addSlot(t, "A3")}
	carol := env.addUser(t, "carol", domain.RoleUser)

	b1 := env.book(t, env.alice, slots[0].ID, "two", "N1")
	env.book(t, env.bob, slots[1].ID, "four", "N2")
	_, err := env.parking.Book(ctx, carol, domain.BookSlotDTO{SlotID: slots[1].ID, VehicleType: "two", VehicleNumber: "N3"})
	require.ErrorIs(t, err, ErrSlotOccupied)
	_, err = env.parking.RequestCheckout(ctx, env.alice)
	require.NoError(t, err)
	_, err = env.parking.AcceptCheckout(ctx, env.staff, b1.ID)
	require.NoError(t, err)
	env.book(t, carol, slots[2].ID, "two", "N3")

	for _, slot := range slots {
		stored, err := env.store.Slots().FindByID(ctx, slot.ID)
		require.NoError(t, err)
		_, openErr := env.store.Bookings().FindOpenVehicleTypeBySlot(ctx, slot.ID)
		hasOpen := openErr == nil
		assert.Equal(t, !hasOpen, stored.IsAvailable, "slot %s", slot.Name)
		if openErr != nil {
			assert.True(t, errors.Is(openErr, repository.ErrNotFound), "slot %s has more than one open booking", slot.Name)
		}
	}
}

func TestListSlots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.addSlot(t, "B1")
	env.addSlot(t, "A1")
	env.book(t, env.alice, b.ID, "four", "MH01AA0001")

	_, err := env.parking.CreateSlot(ctx, env.alice, domain.CreateSlotDTO{Name: "Z9"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.parking.CreateSlot(ctx, env.admin, domain.CreateSlotDTO{Name: "A1"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)

	staffView, err := env.parking.ListSlots(ctx, env.staff)
	require.NoError(t, err)
	require.Len(t, staffView, 2)
	assert.Equal(t, "A1", staffView[0].Name)
	require.NotNil(t, staffView[0].VehicleType)
	assert.False(t, staffView[0].VehicleType.Valid)
	require.NotNil(t, staffView[1].VehicleType)
	assert.Equal(t, "four", staffView[1].VehicleType.String)

	userView, err := env.parking.ListSlots(ctx, env.bob)
	require.NoError(t, err)
	for _, slot := range userView {
		assert.Nil(t, slot.VehicleType, "regular users never see vehicle types")
	}
}

func TestBookingListingsByRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a1 := env.addSlot(t, "A1")
	a2 := env.addSlot(t, "A2")

	aliceBooking := env.book(t, env.alice, a1.ID, "two", "N1")
	env.book(t, env.bob, a2.ID, "two", "N2")

	current, err := env.parking.ListCurrentBookings(ctx, env.staff)
	require.NoError(t, err)
	assert.Len(t, current, 2)

	current, err = env.parking.ListCurrentBookings(ctx, env.alice)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, aliceBooking.ID, current[0].ID)

	_, err = env.parking.RequestCheckout(ctx, env.alice)
	require.NoError(t, err)

	history, err := env.parking.ListBookingHistory(ctx, env.alice)
	require.NoError(t, err)
	require.Len(t, history, 1, "users see their requested checkouts in history")

	history, err = env.parking.ListBookingHistory(ctx, env.staff)
	require.NoError(t, err)
	assert.Empty(t, history, "staff history only holds closed bookings")

	_, err = env.parking.ListCheckoutQueue(ctx, env.alice)
	assert.ErrorIs(t, err, ErrForbidden)

	queue, err := env.parking.ListCheckoutQueue(ctx, env.staff)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, aliceBooking.ID, queue[0].ID)
	assert.False(t, queue[0].PaymentMethod.Valid)

	_, err = env.parking.GetBooking(ctx, env.bob, aliceBooking.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	got, err := env.parking.GetBooking(ctx, env.alice, aliceBooking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCheckoutRequested, got.State)
}

func TestCheckoutQueuePaymentMethod(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.addSlot(t, "A1")
	booked := env.book(t, env.alice, slot.ID, "two", "N1")
	_, err := env.parking.RequestCheckout(ctx, env.alice)
	require.NoError(t, err)

	_, err = env.store.Payments().Create(ctx, &domain.Payment{
		BookingID: booked.ID, Method: "upi", Amount: 10, Reference: "ref-1", PaidAt: env.clock,
	})
	require.NoError(t, err)

	queue, err := env.parking.ListCheckoutQueue(ctx, env.staff)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "upi", queue[0].PaymentMethod.String)

	env.store.PaymentLookupErr = errors.New("connection reset")
	queue, err = env.parking.ListCheckoutQueue(ctx, env.staff)
	require.NoError(t, err, "payment lookup failures are swallowed")
	require.Len(t, queue, 1)
	assert.False(t, queue[0].PaymentMethod.Valid)
}

func TestBookingPriceWithoutPricing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fresh := NewParkingService(env.store.Slots(), env.store.Vehicles(), env.store.Bookings(), unseededPricing{},
		env.store.Payments(), nil, env.notifier, nil, testLogger())
	slot := env.addSlot(t, "A1")

	view, err := fresh.Book(ctx, env.alice, domain.BookSlotDTO{SlotID: slot.ID, VehicleType: "two", VehicleNumber: "N1"})
	require.NoError(t, err)
	assert.Zero(t, view.Price)
}

type unseededPricing struct{}

func (unseededPricing) Get(context.Context) (*domain.PricingTable, error) {
	return nil, repository.ErrNotFound
}

func (unseededPricing) Update(context.Context, float64, float64) (*domain.PricingTable, error) {
	return nil, repository.ErrNotFound
}
