package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	bookingRepo repository.BookingRepository
	logger      *logrus.Logger
}

func NewCommentService(commentRepo repository.CommentRepository, bookingRepo repository.BookingRepository, logger *logrus.Logger) *CommentService {
	return &CommentService{commentRepo: commentRepo, bookingRepo: bookingRepo, logger: logger}
}

func (s *CommentService) AddComment(ctx context.Context, actor domain.Actor, dto domain.AddCommentDTO) (*domain.Comment, error) {
	booking, err := s.bookingRepo.FindByID(ctx, dto.BookingID)
	if err != nil {
		return nil, fmt.Errorf("booking %d: %w", dto.BookingID, err)
	}
	if !actor.IsStaff() && booking.UserID != actor.UserID {
		return nil, ErrForbidden
	}

	comment, err := s.commentRepo.CreateComment(ctx, &domain.Comment{
		BookingID: booking.ID,
		Author:    actor.DisplayName(),
		Text:      dto.Text,
	})
	if err != nil {
		return nil, err
	}
	comment.Replies = []domain.Reply{}
	s.logger.WithFields(logrus.Fields{"comment_id": comment.ID, "booking_id": booking.ID}).Debug("Comment added")
	return comment, nil
}

func (s *CommentService) AddReply(ctx context.Context, actor domain.Actor, commentID int, dto domain.AddReplyDTO) (*domain.Reply, error) {
	comment, err := s.commentRepo.FindCommentByID(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("comment %d: %w", commentID, err)
	}
	if !actor.IsStaff() {
		booking, err := s.bookingRepo.FindByID(ctx, comment.BookingID)
		if err != nil {
			return nil, err
		}
		if booking.UserID != actor.UserID {
			return nil, ErrForbidden
		}
	}

	return s.commentRepo.CreateReply(ctx, &domain.Reply{
		CommentID: comment.ID,
		Author:    actor.DisplayName(),
		Text:      dto.Text,
	})
}

// GetThread returns a booking's comments newest first, each with its replies oldest first.
// Staff name the booking; everyone else always reads the thread of their own active booking.
func (s *CommentService) GetThread(ctx context.Context, actor domain.Actor, bookingID *int) ([]domain.Comment, error) {
	var id int
	if actor.IsStaff() {
		if bookingID == nil {
			return nil, ErrBookingIDRequired
		}
		id = *bookingID
		if _, err := s.bookingRepo.FindByID(ctx, id); err != nil {
			return nil, fmt.Errorf("booking %d: %w", id, err)
		}
	} else {
		active, err := s.bookingRepo.Find(ctx, domain.BookingFilter{
			UserID: &actor.UserID,
			States: []domain.BookingState{domain.BookingActive},
		})
		if err != nil {
			return nil, err
		}
		switch len(active) {
		case 0:
			return nil, fmt.Errorf("%w: no active booking", repository.ErrNotFound)
		case 1:
			id = active[0].ID
		default:
			return nil, repository.ErrMultipleActive
		}
	}

	comments, err := s.commentRepo.FindCommentsByBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return comments, nil
	}

	ids := make([]int, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	replies, err := s.commentRepo.FindRepliesByComments(ctx, ids)
	if err != nil {
		return nil, err
	}
	byComment := make(map[int][]domain.Reply, len(comments))
	for _, r := range replies {
		byComment[r.CommentID] = append(byComment[r.CommentID], r)
	}
	for i := range comments {
		comments[i].Replies = byComment[comments[i].ID]
		if comments[i].Replies == nil {
			comments[i].Replies = []domain.Reply{}
		}
	}
	return comments, nil
}
