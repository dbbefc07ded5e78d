package domain

import "time"

type Comment struct {
	ID        int       `json:"id"`
	BookingID int       `json:"-"`
	Author    string    `json:"name"`
	Text      string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	Replies   []Reply   `json:"replies"`
}

type Reply struct {
	ID        int       `json:"-"`
	CommentID int       `json:"-"`
	Author    string    `json:"name"`
	Text      string    `json:"reply"`
	CreatedAt time.Time `json:"created_at"`
}

type AddCommentDTO struct {
	BookingID int    `json:"id" binding:"required,min=1"`
	Text      string `json:"comment" binding:"required"`
}

type AddReplyDTO struct {
	Text string `json:"comment" binding:"required"`
}
