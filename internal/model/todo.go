package model

import "time"

// Todo is an item in a user's personal to-do list (`todos` table).
type Todo struct {
	ID          int64
	UserID      int64
	Title       string
	IsCompleted bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
