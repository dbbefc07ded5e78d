package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

type pgCommentRepository struct {
	db *sql.DB
}

func NewPgCommentRepository(db *sql.DB) repository.CommentRepository {
	return &pgCommentRepository{db: db}
}

func (r *pgCommentRepository) CreateComment(ctx context.Context, c *domain.Comment) (*domain.Comment, error) {
	query := `INSERT INTO comments (booking_id, author, body, created_at)
	           VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
	           RETURNING id, created_at`
	if err := r.db.QueryRowContext(ctx, query, c.BookingID, c.Author, c.Text).Scan(&c.ID, &c.CreatedAt); err != nil {
		return nil, fmt.Errorf("CommentRepository.CreateComment: %w", err)
	}
	c.CreatedAt = c.CreatedAt.In(time.UTC)
	return c, nil
}

func (r *pgCommentRepository) FindCommentByID(ctx context.Context, id int) (*domain.Comment, error) {
	query := `SELECT id, booking_id, author, body, created_at FROM comments WHERE id = $1`
	c := &domain.Comment{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.BookingID, &c.Author, &c.Text, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("CommentRepository.FindCommentByID: %w", err)
	}
	c.CreatedAt = c.CreatedAt.In(time.UTC)
	return c, nil
}

// FindCommentsByBooking returns the booking's comments newest first.
func (r *pgCommentRepository) FindCommentsByBooking(ctx context.Context, bookingID int) ([]domain.Comment, error) {
	query := `SELECT id, booking_id, author, body, created_at
	            FROM comments WHERE booking_id = $1
	           ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("CommentRepository.FindCommentsByBooking: %w", err)
	}
	defer rows.Close()

	comments := []domain.Comment{}
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.BookingID, &c.Author, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("CommentRepository.FindCommentsByBooking (scanning row): %w", err)
		}
		c.CreatedAt = c.CreatedAt.In(time.UTC)
		comments = append(comments, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("CommentRepository.FindCommentsByBooking (rows error): %w", err)
	}
	return comments, nil
}

func (r *pgCommentRepository) CreateReply(ctx context.Context, reply *domain.Reply) (*domain.Reply, error) {
	query := `INSERT INTO replies (comment_id, author, body, created_at)
	           VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
	           RETURNING id, created_at`
	if err := r.db.QueryRowContext(ctx, query, reply.CommentID, reply.Author, reply.Text).Scan(&reply.ID, &reply.CreatedAt); err != nil {
		return nil, fmt.Errorf("CommentRepository.CreateReply: %w", err)
	}
	reply.CreatedAt = reply.CreatedAt.In(time.UTC)
	return reply, nil
}

// FindRepliesByComments returns the replies of all given comments, oldest first.
func (r *pgCommentRepository) FindRepliesByComments(ctx context.Context, commentIDs []int) ([]domain.Reply, error) {
	if len(commentIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT id, comment_id, author, body, created_at
	            FROM replies WHERE comment_id IN (%s)
	           ORDER BY created_at ASC, id ASC`, placeholders(1, len(commentIDs)))
	args := make([]interface{}, len(commentIDs))
	for i, id := range commentIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("CommentRepository.FindRepliesByComments: %w", err)
	}
	defer rows.Close()

	var replies []domain.Reply
	for rows.Next() {
		var reply domain.Reply
		if err := rows.Scan(&reply.ID, &reply.CommentID, &reply.Author, &reply.Text, &reply.CreatedAt); err != nil {
			return nil, fmt.Errorf("CommentRepository.FindRepliesByComments (scanning row): %w", err)
		}
		reply.CreatedAt = reply.CreatedAt.In(time.UTC)
		replies = append(replies, reply)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("CommentRepository.FindRepliesByComments (rows error): %w", err)
	}
	return replies, nil
}
