package inmemory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

type pricingRepo struct{ s *Store }

func (r *pricingRepo) Get(_ context.Context) (*domain.PricingTable, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.pricing == nil {
		return nil, repository.ErrNotFound
	}
	cp := *r.s.pricing
	return &cp, nil
}

func (r *pricingRepo) Update(_ context.Context, twoRate, fourRate float64) (*domain.PricingTable, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.pricing == nil {
		return nil, repository.ErrNotFound
	}
	r.s.pricing.TwoWheelerRate = twoRate
	r.s.pricing.FourWheelerRate = fourRate
	r.s.pricing.UpdatedAt = time.Now().UTC()
	cp := *r.s.pricing
	return &cp, nil
}

type commentRepo struct{ s *Store }

func (r *commentRepo) CreateComment(_ context.Context, c *domain.Comment) (*domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = r.s.nextID("comments")
	c.CreatedAt = time.Now().UTC()
	r.s.comments = append(r.s.comments, *c)
	return c, nil
}

func (r *commentRepo) FindCommentByID(_ context.Context, id int) (*domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.comments {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *commentRepo) FindCommentsByBooking(_ context.Context, bookingID int) ([]domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Comment{}
	for _, c := range r.s.comments {
		if c.BookingID == bookingID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *commentRepo) CreateReply(_ context.Context, reply *domain.Reply) (*domain.Reply, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	reply.ID = r.s.nextID("replies")
	reply.CreatedAt = time.Now().UTC()
	r.s.replies = append(r.s.replies, *reply)
	return reply, nil
}

func (r *commentRepo) FindRepliesByComments(_ context.Context, commentIDs []int) ([]domain.Reply, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[int]bool, len(commentIDs))
	for _, id := range commentIDs {
		wanted[id] = true
	}
	var out []domain.Reply
	for _, reply := range r.s.replies {
		if wanted[reply.CommentID] {
			out = append(out, reply)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(_ context.Context, n *domain.Notification) (*domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = r.s.nextID("notifications")
	n.CreatedAt = time.Now().UTC()
	r.s.notifications = append(r.s.notifications, *n)
	return n, nil
}

func (r *notificationRepo) FindByUser(_ context.Context, userID int, limit int) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Notification{}
	for i := len(r.s.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if n := r.s.notifications[i]; n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *notificationRepo) MarkRead(_ context.Context, userID, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.notifications {
		if n := &r.s.notifications[i]; n.ID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return repository.ErrNotFound
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(_ context.Context, p *domain.Payment) (*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.payments {
		if existing.BookingID == p.BookingID {
			return nil, fmt.Errorf("%w: booking %d is already paid", repository.ErrDuplicateEntry, p.BookingID)
		}
		if existing.Reference == p.Reference {
			return nil, fmt.Errorf("%w: payment reference '%s' already recorded", repository.ErrDuplicateEntry, p.Reference)
		}
	}
	p.ID = r.s.nextID("payments")
	r.s.payments = append(r.s.payments, *p)
	return p, nil
}

func (r *paymentRepo) FindByBookingID(_ context.Context, bookingID int) (*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.PaymentLookupErr != nil {
		return nil, r.s.PaymentLookupErr
	}
	for _, p := range r.s.payments {
		if p.BookingID == bookingID {
			p := p
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *paymentRepo) FindByBookingIDs(_ context.Context, bookingIDs []int) (map[int]domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.PaymentLookupErr != nil {
		return nil, r.s.PaymentLookupErr
	}
	out := make(map[int]domain.Payment)
	for _, id := range bookingIDs {
		for _, p := range r.s.payments {
			if p.BookingID == id {
				out[id] = p
			}
		}
	}
	return out, nil
}

func (r *paymentRepo) SumBetween(_ context.Context, from, to time.Time) (float64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := 0.0
	for _, p := range r.s.payments {
		if !p.PaidAt.Before(from) && p.PaidAt.Before(to) {
			total += p.Amount
		}
	}
	return total, nil
}

type bookingEventRepo struct{ s *Store }

func (r *bookingEventRepo) Create(_ context.Context, event *domain.BookingEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	event.ID = int64(r.s.nextID("booking_events"))
	r.s.events = append(r.s.events, *event)
	return nil
}
