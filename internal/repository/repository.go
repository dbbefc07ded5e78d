package repository

import (
	"context"
	"errors"
	"time"

	"parkingspace/internal/domain"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")
var ErrMultipleActive = errors.New("more than one open booking matched")

// ErrStaleState is returned by conditional updates when the row is no longer in the expected state.
var ErrStaleState = errors.New("record changed state concurrently")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
	FindStaff(ctx context.Context) ([]domain.User, error)
}

type ParkingSlotRepository interface {
	Create(ctx context.Context, slot *domain.ParkingSlot) (*domain.ParkingSlot, error)
	FindByID(ctx context.Context, id int) (*domain.ParkingSlot, error)
	FindAll(ctx context.Context) ([]domain.ParkingSlot, error)
	// Claim flips an available slot to occupied. ErrStaleState when it is already occupied.
	Claim(ctx context.Context, id int) error
	Release(ctx context.Context, id int) error
	CountAvailable(ctx context.Context) (int, error)
}

type VehicleRepository interface {
	GetOrCreate(ctx context.Context, vehicleType domain.VehicleType, number string) (*domain.Vehicle, error)
}

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) (*domain.Booking, error)
	FindByID(ctx context.Context, id int) (*domain.Booking, error)
	Find(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error)
	// FindOpenVehicleTypeBySlot returns the vehicle type of the single booking holding the slot.
	// ErrNotFound when none, ErrMultipleActive when more than one.
	FindOpenVehicleTypeBySlot(ctx context.Context, slotID int) (domain.VehicleType, error)
	// Transition moves a booking from one state to another only if it is still in from.
	Transition(ctx context.Context, id int, from, to domain.BookingState, checkoutTime *time.Time) error
	CountOpenByVehicleType(ctx context.Context, vehicleType domain.VehicleType) (int, error)
}

type PricingRepository interface {
	Get(ctx context.Context) (*domain.PricingTable, error)
	Update(ctx context.Context, twoRate, fourRate float64) (*domain.PricingTable, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	FindCommentByID(ctx context.Context, id int) (*domain.Comment, error)
	FindCommentsByBooking(ctx context.Context, bookingID int) ([]domain.Comment, error)
	CreateReply(ctx context.Context, reply *domain.Reply) (*domain.Reply, error)
	FindRepliesByComments(ctx context.Context, commentIDs []int) ([]domain.Reply, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	FindByUser(ctx context.Context, userID int, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, id int) error
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) (*domain.Payment, error)
	FindByBookingID(ctx context.Context, bookingID int) (*domain.Payment, error)
	FindByBookingIDs(ctx context.Context, bookingIDs []int) (map[int]domain.Payment, error)
	// SumBetween totals payment amounts with from <= paid_at < to.
	SumBetween(ctx context.Context, from, to time.Time) (float64, error)
}

type BookingEventRepository interface {
	Create(ctx context.Context, event *domain.BookingEvent) error
}
