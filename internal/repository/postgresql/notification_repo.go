package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

type pgNotificationRepository struct {
	db *sql.DB
}

func NewPgNotificationRepository(db *sql.DB) repository.NotificationRepository {
	return &pgNotificationRepository{db: db}
}

func (r *pgNotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	query := `INSERT INTO notifications (user_id, content, is_read, created_at)
	           VALUES ($1, $2, FALSE, CURRENT_TIMESTAMP)
	           RETURNING id, created_at`
	if err := r.db.QueryRowContext(ctx, query, n.UserID, n.Content).Scan(&n.ID, &n.CreatedAt); err != nil {
		return nil, fmt.Errorf("NotificationRepository.Create: %w", err)
	}
	n.CreatedAt = n.CreatedAt.In(time.UTC)
	return n, nil
}

func (r *pgNotificationRepository) FindByUser(ctx context.Context, userID int, limit int) ([]domain.Notification, error) {
	query := `SELECT id, user_id, content, is_read, created_at
	            FROM notifications WHERE user_id = $1
	           ORDER BY created_at DESC, id DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("NotificationRepository.FindByUser: %w", err)
	}
	defer rows.Close()

	notifications := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Content, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("NotificationRepository.FindByUser (scanning row): %w", err)
		}
		n.CreatedAt = n.CreatedAt.In(time.UTC)
		notifications = append(notifications, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("NotificationRepository.FindByUser (rows error): %w", err)
	}
	return notifications, nil
}

func (r *pgNotificationRepository) MarkRead(ctx context.Context, userID, id int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("NotificationRepository.MarkRead: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("NotificationRepository.MarkRead (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
