// Package inmemory implements the repository interfaces over process memory.
// It mirrors the conditional-update semantics of the Postgres repositories and
// backs service and handler tests.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

type bookingRow struct {
	id           int
	userID       int
	slotID       int
	vehicleID    int
	startTime    time.Time
	state        domain.BookingState
	checkoutTime *time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

// Store holds every table behind one lock.
type Store struct {
	mu sync.Mutex

	users         []domain.User
	slots         []domain.ParkingSlot
	vehicles      []domain.Vehicle
	bookings      []bookingRow
	pricing       *domain.PricingTable
	comments      []domain.Comment
	replies       []domain.Reply
	notifications []domain.Notification
	payments      []domain.Payment
	events        []domain.BookingEvent

	seq map[string]int

	// PaymentLookupErr, when set, fails every payment read.
	PaymentLookupErr error
}

func NewStore() *Store {
	return &Store{seq: make(map[string]int)}
}

func (s *Store) nextID(table string) int {
	s.seq[table]++
	return s.seq[table]
}

func (s *Store) Users() repository.UserRepository                 { return &userRepo{s} }
func (s *Store) Slots() repository.ParkingSlotRepository          { return &slotRepo{s} }
func (s *Store) Vehicles() repository.VehicleRepository           { return &vehicleRepo{s} }
func (s *Store) Bookings() repository.BookingRepository           { return &bookingRepo{s} }
func (s *Store) Pricing() repository.PricingRepository            { return &pricingRepo{s} }
func (s *Store) Comments() repository.CommentRepository           { return &commentRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{s} }
func (s *Store) Payments() repository.PaymentRepository           { return &paymentRepo{s} }
func (s *Store) BookingEvents() repository.BookingEventRepository { return &bookingEventRepo{s} }

// SeedPricing installs the pricing row, which production seeds out of band.
func (s *Store) SeedPricing(two, four float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pricing = &domain.PricingTable{ID: 1, TwoWheelerRate: two, FourWheelerRate: four, UpdatedAt: time.Now().UTC()}
}

// Events returns a copy of the recorded booking events.
func (s *Store) Events() []domain.BookingEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.BookingEvent(nil), s.events...)
}

// Notifications for a user in insertion order.
func (s *Store) NotificationsFor(userID int) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// BackdateBooking moves a booking's start time, for price tests.
func (s *Store) BackdateBooking(id int, start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bookings {
		if s.bookings[i].id == id {
			s.bookings[i].startTime = start
		}
	}
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == user.Username {
			return nil, fmt.Errorf("%w: username '%s' is taken", repository.ErrDuplicateEntry, user.Username)
		}
	}
	now := time.Now().UTC()
	user.ID = r.s.nextID("users")
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users = append(r.s.users, *user)
	return user, nil
}

func (r *userRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) FindByID(_ context.Context, id int) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u := r.s.userByID(id); u != nil {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) FindStaff(_ context.Context) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.User
	for _, u := range r.s.users {
		if u.Role.IsStaff() {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) userByID(id int) *domain.User {
	for i := range s.users {
		if s.users[i].ID == id {
			return &s.users[i]
		}
	}
	return nil
}

type slotRepo struct{ s *Store }

func (r *slotRepo) Create(_ context.Context, slot *domain.ParkingSlot) (*domain.ParkingSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.slots {
		if existing.Name == slot.Name {
			return nil, fmt.Errorf("%w: slot '%s' already exists", repository.ErrDuplicateEntry, slot.Name)
		}
	}
	now := time.Now().UTC()
	slot.ID = r.s.nextID("slots")
	slot.CreatedAt, slot.UpdatedAt = now, now
	r.s.slots = append(r.s.slots, *slot)
	return slot, nil
}

func (r *slotRepo) FindByID(_ context.Context, id int) (*domain.ParkingSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if slot := r.s.slotByID(id); slot != nil {
		cp := *slot
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *slotRepo) FindAll(_ context.Context) ([]domain.ParkingSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := append([]domain.ParkingSlot{}, r.s.slots...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *slotRepo) Claim(_ context.Context, id int) error {
	return r.setAvailable(id, true, false)
}

func (r *slotRepo) Release(_ context.Context, id int) error {
	return r.setAvailable(id, false, true)
}

func (r *slotRepo) setAvailable(id int, from, to bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	slot := r.s.slotByID(id)
	if slot == nil || slot.IsAvailable != from {
		return repository.ErrStaleState
	}
	slot.IsAvailable = to
	slot.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *slotRepo) CountAvailable(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, slot := range r.s.slots {
		if slot.IsAvailable {
			n++
		}
	}
	return n, nil
}

func (s *Store) slotByID(id int) *domain.ParkingSlot {
	for i := range s.slots {
		if s.slots[i].ID == id {
			return &s.slots[i]
		}
	}
	return nil
}

type vehicleRepo struct{ s *Store }

func (r *vehicleRepo) GetOrCreate(_ context.Context, vehicleType domain.VehicleType, number string) (*domain.Vehicle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.vehicles {
		if v.Type == vehicleType && v.Number == number {
			v := v
			return &v, nil
		}
	}
	v := domain.Vehicle{ID: r.s.nextID("vehicles"), Type: vehicleType, Number: number}
	r.s.vehicles = append(r.s.vehicles, v)
	return &v, nil
}

func (s *Store) vehicleByID(id int) domain.Vehicle {
	for _, v := range s.vehicles {
		if v.ID == id {
			return v
		}
	}
	return domain.Vehicle{ID: id}
}
